package cbl

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightchain/brightchain/pkg/block"
	"github.com/brightchain/brightchain/pkg/blocksize"
	"github.com/brightchain/brightchain/pkg/checksum"
	"github.com/brightchain/brightchain/pkg/identity"
)

var cs = checksum.NewService()

func newMember(t *testing.T) *identity.Member {
	t.Helper()
	m, err := identity.New()
	require.NoError(t, err)
	return m
}

func addressesOf(n int) ([]checksum.Checksum, []byte) {
	addrs := make([]checksum.Checksum, n)
	for i := range addrs {
		for j := range addrs[i] {
			addrs[i][j] = byte(i + j)
		}
	}
	return addrs, serializeAddresses(addrs)
}

func TestHeaderSizeConstant(t *testing.T) {
	assert.Equal(t, 101, HeaderSize)

	h := &Header{DateCreated: time.Now()}
	assert.Len(t, h.Encode(), HeaderSize)
}

func TestMakeHeaderRoundTrip(t *testing.T) {
	creator := newMember(t)
	created := time.Now().Add(-time.Hour)
	_, list := addressesOf(3)

	h, err := MakeHeader(cs, creator, created, 3, 12345, list, blocksize.Tiny, 3)
	require.NoError(t, err)

	parsed, err := ReadHeader(h.Encode())
	require.NoError(t, err)
	assert.Equal(t, h.CreatorID, parsed.CreatorID)
	assert.Equal(t, h.Signature, parsed.Signature)
	assert.Equal(t, h.DateCreated.UnixMilli(), parsed.DateCreated.UnixMilli())
	assert.Equal(t, h.AddressCount, parsed.AddressCount)
	assert.Equal(t, h.OriginalDataLength, parsed.OriginalDataLength)

	assert.True(t, parsed.Verify(cs, creator, list))
	assert.True(t, parsed.Verify(cs, creator.Public(), list))
}

func TestMakeHeaderRejections(t *testing.T) {
	creator := newMember(t)
	_, list := addressesOf(3)

	t.Run("count not a tuple multiple", func(t *testing.T) {
		bad := make([]byte, 4*checksum.Size)
		_, err := MakeHeader(cs, creator, time.Now(), 4, 0, bad, blocksize.Tiny, 3)
		var invalid *InvalidAddressCountError
		require.ErrorAs(t, err, &invalid)
		assert.Equal(t, 4, invalid.Count)
		assert.Equal(t, 3, invalid.TupleSize)
	})

	t.Run("count over capacity", func(t *testing.T) {
		// A Message block holds floor((512-101)/64)=6 addresses.
		addrs9 := make([]byte, 9*checksum.Size)
		_, err := MakeHeader(cs, creator, time.Now(), 9, 0, addrs9, blocksize.Message, 3)
		var exceeds *AddressCountExceedsCapacityError
		require.ErrorAs(t, err, &exceeds)
		assert.Equal(t, 6, exceeds.Capacity)
	})

	t.Run("list length mismatch", func(t *testing.T) {
		_, err := MakeHeader(cs, creator, time.Now(), 3, 0, list[:10], blocksize.Tiny, 3)
		assert.ErrorIs(t, err, ErrAddressListLength)
	})

	t.Run("no private key", func(t *testing.T) {
		_, err := MakeHeader(cs, creator.Public(), time.Now(), 3, 0, list, blocksize.Tiny, 3)
		assert.ErrorIs(t, err, ErrCreatorPrivateKeyRequired)
	})

	t.Run("future date", func(t *testing.T) {
		_, err := MakeHeader(cs, creator, time.Now().Add(time.Hour), 3, 0, list, blocksize.Tiny, 3)
		var future *block.FutureCreationDateError
		assert.ErrorAs(t, err, &future)
	})
}

func TestReadHeaderRejections(t *testing.T) {
	creator := newMember(t)
	_, list := addressesOf(3)
	h, err := MakeHeader(cs, creator, time.Now(), 3, 7, list, blocksize.Tiny, 3)
	require.NoError(t, err)
	wire := h.Encode()

	_, err = ReadHeader(wire[:HeaderSize-1])
	assert.ErrorIs(t, err, ErrHeaderTooShort)

	mutated := append([]byte{}, wire...)
	mutated[0] = 0x02
	_, err = ReadHeader(mutated)
	var unsupported *UnsupportedVersionError
	assert.ErrorAs(t, err, &unsupported)
}

func TestVerifyRejectsTampering(t *testing.T) {
	creator := newMember(t)
	_, list := addressesOf(3)
	h, err := MakeHeader(cs, creator, time.Now(), 3, 7, list, blocksize.Tiny, 3)
	require.NoError(t, err)

	tamperedList := append([]byte{}, list...)
	tamperedList[17] ^= 0x01
	assert.False(t, h.Verify(cs, creator, tamperedList))

	tamperedHeader := *h
	tamperedHeader.OriginalDataLength++
	assert.False(t, tamperedHeader.Verify(cs, creator, list))

	assert.False(t, h.Verify(cs, newMember(t), list))
}

func TestCapacityMath(t *testing.T) {
	// Message: floor((512-101)/64) = 6 raw addresses.
	assert.Equal(t, 6, MaxAddressCount(blocksize.Message, 3))
	assert.Equal(t, 2, MaxTupleCount(blocksize.Message, 3))
	assert.Equal(t, int64(1024), MaxFileSize(blocksize.Message, 3))

	// Tiny: floor((1024-101)/64) = 14, rounded down to 12 for tuples of 3.
	assert.Equal(t, 12, MaxAddressCount(blocksize.Tiny, 3))
	assert.Equal(t, 4, MaxTupleCount(blocksize.Tiny, 3))

	assert.Equal(t, blocksize.Message, FileSizeToBlockSize(1, 3))
	assert.Equal(t, blocksize.Message, FileSizeToBlockSize(1024, 3))
	assert.Equal(t, blocksize.Tiny, FileSizeToBlockSize(1025, 3))
	assert.Equal(t, blocksize.Unknown, FileSizeToBlockSize(-1, 3))
	assert.Equal(t, blocksize.Unknown,
		FileSizeToBlockSize(MaxFileSize(blocksize.Huge, 3)+1, 3))
}
