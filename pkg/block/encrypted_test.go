package block

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightchain/brightchain/pkg/blocksize"
	"github.com/brightchain/brightchain/pkg/ecies"
	"github.com/brightchain/brightchain/pkg/identity"
)

func ownedBlock(t *testing.T, payload []byte, creator *identity.Member) *EphemeralBlock {
	t.Helper()
	b, err := NewEphemeralBlock(
		cs, TypeOwnedData, DataTypeRaw, blocksize.Message, payload, creator, time.Now(),
	)
	require.NoError(t, err)
	return b
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	creator := newMember(t)
	payload := []byte("data worth protecting")
	plain := ownedBlock(t, payload, creator)

	enc, err := Encrypt(cs, plain, TypeEncryptedOwnedData, nil, creator)
	require.NoError(t, err)

	assert.Equal(t, TypeEncryptedOwnedData, enc.Type())
	assert.Equal(t, DataTypeEncrypted, enc.DataType())
	assert.Equal(t, ecies.EncryptionTypeSingle, enc.EncryptionType())
	assert.Len(t, enc.Data(), blocksize.Message.Bytes())
	assert.Equal(t, ecies.SingleOverhead, enc.TotalOverhead())
	assert.Equal(t, len(payload), enc.LengthBeforeEncryption())
	assert.NotEqual(t, payload, enc.Payload())
	assert.NoError(t, enc.Validate(context.Background()))

	dec, err := enc.Decrypt(creator, TypeOwnedData)
	require.NoError(t, err)
	assert.Equal(t, payload, dec.Data())
	// Fresh checksum over the re-padded decrypted buffer.
	assert.False(t, dec.Checksum().Equal(enc.Checksum()))
	assert.NoError(t, dec.Validate(context.Background()))
}

func TestEncryptMultiRecipient(t *testing.T) {
	creator := newMember(t)
	alice := newMember(t)
	bob := newMember(t)
	payload := []byte("shared secret")
	plain := ownedBlock(t, payload, creator)

	enc, err := Encrypt(cs, plain, TypeEncryptedOwnedData, nil, creator, alice, bob)
	require.NoError(t, err)
	assert.Equal(t, ecies.EncryptionTypeMulti, enc.EncryptionType())

	ids, err := enc.Recipients()
	require.NoError(t, err)
	assert.Len(t, ids, 3)

	for _, m := range []*identity.Member{creator, alice, bob} {
		dec, err := enc.Decrypt(m, TypeOwnedData)
		require.NoError(t, err)
		assert.Equal(t, payload, dec.Data())
	}

	// A member outside the table cannot decrypt.
	_, err = enc.Decrypt(newMember(t), TypeOwnedData)
	assert.ErrorIs(t, err, ecies.ErrRecipientNotFound)
}

func TestDecryptRequiresPrivateKey(t *testing.T) {
	creator := newMember(t)
	enc, err := Encrypt(cs, ownedBlock(t, []byte("x"), creator), TypeEncryptedOwnedData, nil, creator)
	require.NoError(t, err)

	_, err = enc.Decrypt(creator.Public(), TypeOwnedData)
	assert.ErrorIs(t, err, identity.ErrPrivateKeyRequired)
}

func TestEncryptRejectsOverCapacity(t *testing.T) {
	creator := newMember(t)
	// Fits the block, but not alongside the encryption header.
	payload := make([]byte, blocksize.Message.Bytes()-ecies.SingleOverhead+1)
	payload[0] = 1
	plain := ownedBlock(t, payload, creator)

	_, err := Encrypt(cs, plain, TypeEncryptedOwnedData, nil, creator)
	var exceeds *DataLengthExceedsCapacityError
	assert.ErrorAs(t, err, &exceeds)
}

func TestNewEncryptedBlockRejectsUnknownType(t *testing.T) {
	buf := fullBuffer(blocksize.Message, 0)
	buf[0] = byte(ecies.EncryptionTypeSingle)

	_, err := NewEncryptedBlock(cs, TypeRawData, blocksize.Message, buf, nil, time.Now(), nil)
	var invalid *InvalidBlockTypeError
	assert.ErrorAs(t, err, &invalid)
}

func TestNewEncryptedBlockRejectsBadEncryptionType(t *testing.T) {
	buf := fullBuffer(blocksize.Message, 0)
	buf[0] = 0x7F
	_, err := NewEncryptedBlock(cs, TypeEncryptedOwnedData, blocksize.Message, buf, nil, time.Now(), nil)
	assert.ErrorIs(t, err, ecies.ErrInvalidEncryptionType)
}

func TestValidateRejectsInflatedLengthClaim(t *testing.T) {
	creator := newMember(t)
	enc, err := Encrypt(cs, ownedBlock(t, []byte("modest"), creator), TypeEncryptedOwnedData, nil, creator)
	require.NoError(t, err)

	// Rewrite the plaintext-length field to claim more than the capacity
	// allows. Offset: EncType(1) + RecipientID(16) + tags(3) + key(33) +
	// IV(12) + tag(16).
	tampered := append([]byte{}, enc.Buffer()...)
	lengthOffset := 1 + 16 + 3 + 33 + 12 + 16
	for i := 0; i < 8; i++ {
		tampered[lengthOffset+i] = 0xFF
	}

	reparsed, err := NewEncryptedBlock(
		cs, TypeEncryptedOwnedData, blocksize.Message, tampered, creator, time.Now(), nil,
	)
	require.NoError(t, err)

	var exceeds *DataLengthExceedsCapacityError
	assert.ErrorAs(t, reparsed.Validate(context.Background()), &exceeds)

	_, err = reparsed.Decrypt(creator, TypeOwnedData)
	assert.ErrorAs(t, err, &exceeds)
}

func TestHeaderParsingIsIdempotent(t *testing.T) {
	creator := newMember(t)
	enc, err := Encrypt(cs, ownedBlock(t, []byte("stable"), creator), TypeEncryptedOwnedData, nil, creator)
	require.NoError(t, err)

	h1, err := enc.Header()
	require.NoError(t, err)
	h2, err := enc.Header()
	require.NoError(t, err)
	assert.Same(t, h1, h2)

	// Cached parse agrees with a fresh parse of the raw bytes.
	fresh, err := ecies.ParseHeader(enc.Buffer())
	require.NoError(t, err)
	assert.Equal(t, fresh, h1)
}
