package sign_test

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collapsinghierarchy/quizledger/pkc/sign"
)

func newSigner(t *testing.T) *sign.Signer {
	t.Helper()
	s, err := sign.New(rand.Reader)
	require.NoError(t, err)
	return s
}

func TestCanonical_MatchesJSONStringify(t *testing.T) {
	got := sign.Canonical("s1", "q1", "2", 1721150280000)
	want := `{"studentId":"s1","questionId":"q1","response":"2","timestamp":1721150280000}`
	assert.Equal(t, want, string(got))
}

func TestCanonical_NoHTMLEscaping(t *testing.T) {
	got := sign.Canonical("a<b", "q&1", "x>y", 0)
	assert.Equal(t, `{"studentId":"a<b","questionId":"q&1","response":"x>y","timestamp":0}`, string(got))
}

func TestSignVerify_RoundTrip(t *testing.T) {
	s := newSigner(t)
	payload := sign.Canonical("s1", "q1", "0", 42)

	sig := s.Sign(payload)
	require.Len(t, sig, sign.SignatureSize)
	assert.True(t, s.Verify(payload, sig))
	assert.True(t, sign.Verify(payload, sig, s.PublicKey()))
}

func TestSign_Deterministic(t *testing.T) {
	s := newSigner(t)
	payload := sign.Canonical("s1", "q1", "2", 42)
	assert.Equal(t, s.Sign(payload), s.Sign(payload))
}

func TestVerify_AnyFieldTamperedFails(t *testing.T) {
	s := newSigner(t)
	sig := s.Sign(sign.Canonical("s1", "q1", "2", 42))

	tampered := [][]byte{
		sign.Canonical("s2", "q1", "2", 42),
		sign.Canonical("s1", "q2", "2", 42),
		sign.Canonical("s1", "q1", "3", 42),
		sign.Canonical("s1", "q1", "2", 43),
	}
	for _, p := range tampered {
		assert.False(t, s.Verify(p, sig), "payload %s", p)
	}
}

func TestVerify_MalformedInputs(t *testing.T) {
	s := newSigner(t)
	other := newSigner(t)
	payload := sign.Canonical("s1", "q1", "2", 42)
	sig := s.Sign(payload)

	assert.False(t, sign.Verify(payload, sig[:10], s.PublicKey()), "short signature")
	assert.False(t, sign.Verify(payload, nil, s.PublicKey()), "nil signature")
	assert.False(t, sign.Verify(payload, sig, []byte("short")), "short key")
	assert.False(t, sign.Verify(payload, sig, other.PublicKey()), "wrong key")
}

func TestPublicKey_IsCopy(t *testing.T) {
	s := newSigner(t)
	pk := s.PublicKey()
	pk[0] ^= 0xFF
	assert.NotEqual(t, pk, s.PublicKey())
}
