package seal_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collapsinghierarchy/quizledger/pkc/seal"
)

var secret = []byte("0123456789abcdef-test-secret")

func TestSealOpen(t *testing.T) {
	s, err := seal.New(secret, []byte("ctx"))
	require.NoError(t, err)

	blob, err := s.Seal("What is 2 + 2")
	require.NoError(t, err)
	assert.False(t, bytes.Contains(blob, []byte("What is")), "plaintext leaked into blob")

	pt, err := s.Open(blob)
	require.NoError(t, err)
	assert.Equal(t, "What is 2 + 2", pt)
}

func TestSeal_FreshNonce(t *testing.T) {
	s, err := seal.New(secret, []byte("ctx"))
	require.NoError(t, err)

	a, _ := s.Seal("4")
	b, _ := s.Seal("4")
	assert.NotEqual(t, a, b, "equal plaintexts must not produce equal blobs")
}

func TestSeal_EmptyPlaintext(t *testing.T) {
	s, err := seal.New(secret, []byte("ctx"))
	require.NoError(t, err)

	blob, err := s.Seal("")
	require.NoError(t, err)
	pt, err := s.Open(blob)
	require.NoError(t, err)
	assert.Empty(t, pt)
}

func TestContextBinding(t *testing.T) {
	a, _ := seal.New(secret, []byte("A"))
	b, _ := seal.New(secret, []byte("B"))

	blob, err := a.Seal("secret")
	require.NoError(t, err)
	_, err = b.Open(blob)
	assert.ErrorIs(t, err, seal.ErrOpen)
}

func TestOpen_Tampered(t *testing.T) {
	s, _ := seal.New(secret, []byte("ctx"))
	blob, _ := s.Seal("option 1")

	tampered := bytes.Clone(blob)
	tampered[len(tampered)-1] ^= 0xFF
	_, err := s.Open(tampered)
	assert.ErrorIs(t, err, seal.ErrOpen)

	_, err = s.Open(blob[:5])
	assert.ErrorIs(t, err, seal.ErrOpen)
}

func TestNew_ShortSecret(t *testing.T) {
	_, err := seal.New([]byte("short"), nil)
	assert.ErrorIs(t, err, seal.ErrShortSecret)
}
