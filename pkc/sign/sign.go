package sign

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"

	"github.com/cloudflare/circl/sign/ed25519"
)

// Algorithm names the signature scheme published alongside the public key.
const Algorithm = "ed25519"

const (
	PublicKeySize = ed25519.PublicKeySize
	SignatureSize = ed25519.SignatureSize
)

var ErrKeyGen = errors.New("signing key generation failed")

// Signer owns one Ed25519 keypair for the lifetime of the process. The
// private key never leaves the Signer.
type Signer struct {
	pub  ed25519.PublicKey
	priv ed25519.PrivateKey
}

// New generates a fresh keypair from r (crypto/rand.Reader in production).
func New(r io.Reader) (*Signer, error) {
	pub, priv, err := ed25519.GenerateKey(r)
	if err != nil {
		return nil, errors.Join(ErrKeyGen, err)
	}
	return &Signer{pub: pub, priv: priv}, nil
}

// Sign returns a detached signature over payload. Ed25519 signing is
// deterministic, so equal payloads yield equal signatures.
func (s *Signer) Sign(payload []byte) []byte {
	return ed25519.Sign(s.priv, payload)
}

// PublicKey returns a copy of the verification key.
func (s *Signer) PublicKey() []byte {
	return bytes.Clone(s.pub)
}

// Verify checks sig against payload under the signer's own public key.
func (s *Signer) Verify(payload, sig []byte) bool {
	return Verify(payload, sig, s.pub)
}

// Verify reports whether sig is a valid signature of payload under pub.
// Malformed keys or signatures yield false rather than an error.
func Verify(payload, sig, pub []byte) bool {
	if len(pub) != PublicKeySize || len(sig) != SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pub), payload, sig)
}

// submission is the signed field tuple. Field order is part of the wire
// contract: it must stay studentId, questionId, response, timestamp.
type submission struct {
	StudentID  string `json:"studentId"`
	QuestionID string `json:"questionId"`
	Response   string `json:"response"`
	Timestamp  int64  `json:"timestamp"`
}

// Canonical encodes a submission as compact JSON with no HTML escaping,
// matching what JSON.stringify produces for the same object. timestampMillis
// is Unix milliseconds.
func Canonical(studentID, questionID, response string, timestampMillis int64) []byte {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	// Encoding a struct of strings and an int64 cannot fail.
	_ = enc.Encode(submission{
		StudentID:  studentID,
		QuestionID: questionID,
		Response:   response,
		Timestamp:  timestampMillis,
	})
	return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'})
}
