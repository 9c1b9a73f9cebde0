package ecies

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/brightchain/brightchain/pkg/identity"
)

func newMember(t testing.TB) *identity.Member {
	t.Helper()
	m, err := identity.New()
	require.NoError(t, err)
	return m
}

func TestSealUnsealRoundTrip(t *testing.T) {
	recipient := newMember(t)
	plaintext := []byte("the owl and the pussycat went to sea")

	sealed, err := Seal(recipient, plaintext)
	require.NoError(t, err)

	// Sealed output is strictly longer than the plaintext by the header
	// overhead, and never contains the plaintext verbatim.
	assert.Len(t, sealed, len(plaintext)+SingleOverhead)
	assert.False(t, bytes.Contains(sealed, plaintext))

	opened, err := Unseal(recipient, sealed)
	require.NoError(t, err)
	assert.Equal(t, plaintext, opened)
}

func TestSealUnsealRoundTripProperty(t *testing.T) {
	recipient := newMember(t)
	rapid.Check(t, func(t *rapid.T) {
		plaintext := rapid.SliceOfN(rapid.Byte(), 0, 2048).Draw(t, "plaintext")
		sealed, err := Seal(recipient, plaintext)
		if err != nil {
			t.Fatalf("Seal: %v", err)
		}
		opened, err := Unseal(recipient, sealed)
		if err != nil {
			t.Fatalf("Unseal: %v", err)
		}
		if !bytes.Equal(plaintext, opened) {
			t.Fatalf("round trip mismatch: %d in, %d out", len(plaintext), len(opened))
		}
	})
}

func TestUnsealIgnoresTrailingPadding(t *testing.T) {
	recipient := newMember(t)
	plaintext := []byte("padded block content")

	sealed, err := Seal(recipient, plaintext)
	require.NoError(t, err)
	padded := append(sealed, make([]byte, 128)...)

	opened, err := Unseal(recipient, padded)
	require.NoError(t, err)
	assert.Equal(t, plaintext, opened)
}

func TestUnsealWrongRecipient(t *testing.T) {
	recipient := newMember(t)
	other := newMember(t)

	sealed, err := Seal(recipient, []byte("secret"))
	require.NoError(t, err)

	_, err = Unseal(other, sealed)
	assert.ErrorIs(t, err, ErrRecipientNotFound)
}

func TestUnsealWithoutPrivateKey(t *testing.T) {
	recipient := newMember(t)
	sealed, err := Seal(recipient, []byte("secret"))
	require.NoError(t, err)

	_, err = Unseal(recipient.Public(), sealed)
	assert.ErrorIs(t, err, identity.ErrPrivateKeyRequired)
}

func TestUnsealTamperedCiphertext(t *testing.T) {
	recipient := newMember(t)
	sealed, err := Seal(recipient, []byte("integrity matters"))
	require.NoError(t, err)

	sealed[len(sealed)-1] ^= 0x01
	_, err = Unseal(recipient, sealed)
	assert.Error(t, err)
}

func TestSealMultiRoundTrip(t *testing.T) {
	recipients := []*identity.Member{newMember(t), newMember(t), newMember(t)}
	plaintext := []byte("shared across three recipients")

	sealed, err := SealMulti(recipients, plaintext)
	require.NoError(t, err)
	assert.Len(t, sealed, len(plaintext)+MultiBaseOverhead+3*RecipientEntrySize)

	// Every recipient independently recovers the plaintext.
	for _, r := range recipients {
		opened, err := UnsealMulti(r, sealed)
		require.NoError(t, err)
		assert.Equal(t, plaintext, opened)
	}

	_, err = UnsealMulti(newMember(t), sealed)
	assert.ErrorIs(t, err, ErrRecipientNotFound)
}

func TestSealMultiRejectsTooFewRecipients(t *testing.T) {
	_, err := SealMulti([]*identity.Member{newMember(t)}, []byte("x"))
	assert.ErrorIs(t, err, ErrInvalidRecipientCount)
}

func TestSealMultiRejectsDuplicateRecipients(t *testing.T) {
	m := newMember(t)
	_, err := SealMulti([]*identity.Member{m, m}, []byte("x"))
	assert.ErrorIs(t, err, ErrInvalidRecipientIDs)
}
