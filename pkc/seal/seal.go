package seal

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/sha3"
)

// MinSecretLen is the shortest secret accepted by New.
const MinSecretLen = 16

var (
	ErrShortSecret = errors.New("seal: secret too short")
	ErrOpen        = errors.New("seal: cannot open sealed field")
)

// Sealer encrypts individual question fields at rest with AES-256-GCM.
// Every call to Seal draws a fresh nonce, so equal plaintexts produce
// unrelated ciphertexts.
//
// Wire format: nonce || ciphertext+tag.
type Sealer struct {
	aead cipher.AEAD
	rand io.Reader
}

// New derives the field key from secret. context binds the key to a purpose
// (for example "quizledger/questions/v1"); different contexts yield
// independent keys.
func New(secret, context []byte) (*Sealer, error) {
	if len(secret) < MinSecretLen {
		return nil, ErrShortSecret
	}
	block, err := aes.NewCipher(deriveKey(secret, context))
	if err != nil {
		return nil, fmt.Errorf("seal: aes: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("seal: gcm: %w", err)
	}
	return &Sealer{aead: aead, rand: rand.Reader}, nil
}

func (s *Sealer) Seal(plaintext string) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(plaintext)+s.aead.Overhead())
	if _, err := io.ReadFull(s.rand, nonce); err != nil {
		return nil, fmt.Errorf("seal: nonce: %w", err)
	}
	return s.aead.Seal(nonce, nonce, []byte(plaintext), nil), nil
}

func (s *Sealer) Open(blob []byte) (string, error) {
	n := s.aead.NonceSize()
	if len(blob) < n+s.aead.Overhead() {
		return "", ErrOpen
	}
	pt, err := s.aead.Open(nil, blob[:n], blob[n:], nil)
	if err != nil {
		return "", ErrOpen
	}
	return string(pt), nil
}

// deriveKey is HKDF-SHA3-256(secret, info = SHA3-256(context))[0:32].
func deriveKey(secret, context []byte) []byte {
	info := sha3.Sum256(context)
	hk := hkdf.New(sha3.New256, secret, nil, info[:])
	key := make([]byte, 32) // AES-256-GCM
	if _, err := io.ReadFull(hk, key); err != nil {
		panic(err)
	}
	return key
}
