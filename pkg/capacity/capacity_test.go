package capacity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightchain/brightchain/pkg/block"
	"github.com/brightchain/brightchain/pkg/blocksize"
	"github.com/brightchain/brightchain/pkg/cbl"
	"github.com/brightchain/brightchain/pkg/ecies"
)

func TestAvailable(t *testing.T) {
	c := NewCalculator()

	n, err := c.Available(blocksize.Message, block.TypeRawData, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 512, n)

	n, err = c.Available(blocksize.Message, block.TypeEncryptedOwnedData, ecies.EncryptionTypeSingle, 1)
	require.NoError(t, err)
	assert.Equal(t, 512-ecies.SingleOverhead, n)

	n, err = c.Available(blocksize.Tiny, block.TypeEncryptedOwnedData, ecies.EncryptionTypeMulti, 3)
	require.NoError(t, err)
	overhead, err := ecies.Overhead(ecies.EncryptionTypeMulti, 3)
	require.NoError(t, err)
	assert.Equal(t, 1024-overhead, n)

	n, err = c.Available(blocksize.Message, block.TypeConstituentBlockList, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 512-cbl.HeaderSize, n)
}

func TestAvailableErrors(t *testing.T) {
	c := NewCalculator()

	_, err := c.Available(blocksize.Unknown, block.TypeRawData, 0, 0)
	var invalid *blocksize.InvalidLengthError
	assert.ErrorAs(t, err, &invalid)

	_, err = c.Available(blocksize.Message, block.Type(0xEE), 0, 0)
	var badType *block.InvalidBlockTypeError
	assert.ErrorAs(t, err, &badType)

	_, err = c.Available(blocksize.Message, block.TypeEncryptedOwnedData, ecies.EncryptionTypeMulti, 1)
	assert.ErrorIs(t, err, ecies.ErrInvalidRecipientCount)
}

func TestAvailableAddresses(t *testing.T) {
	c := NewCalculator()

	n, err := c.AvailableAddresses(blocksize.Tiny, false, 0, 0, 3)
	require.NoError(t, err)
	assert.Equal(t, cbl.MaxAddressCount(blocksize.Tiny, 3), n)

	// Sealed list: (1024 - 89 - 101) / 64 = 13, rounded down to 12.
	n, err = c.AvailableAddresses(blocksize.Tiny, true, ecies.EncryptionTypeSingle, 1, 3)
	require.NoError(t, err)
	assert.Equal(t, 12, n)
}
