package blockservice

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightchain/brightchain/pkg/block"
	"github.com/brightchain/brightchain/pkg/blocksize"
	"github.com/brightchain/brightchain/pkg/capacity"
	"github.com/brightchain/brightchain/pkg/cbl"
	"github.com/brightchain/brightchain/pkg/checksum"
	"github.com/brightchain/brightchain/pkg/identity"
	"github.com/brightchain/brightchain/pkg/store"
	"github.com/brightchain/brightchain/pkg/workerpool"
)

var cs = checksum.NewService()

func newService(t *testing.T) *Service {
	t.Helper()
	pool := workerpool.New(workerpool.Config{Workers: 4})
	t.Cleanup(pool.Close)
	mem := store.NewMemoryStore()
	t.Cleanup(func() { mem.Close() })

	s, err := New(Config{
		Checksums: cs,
		Capacity:  capacity.NewCalculator(),
		Store:     mem,
		Workers:   pool,
	})
	require.NoError(t, err)
	return s
}

func newMember(t *testing.T) *identity.Member {
	t.Helper()
	m, err := identity.New()
	require.NoError(t, err)
	return m
}

func TestBlockSizeForData(t *testing.T) {
	assert.Equal(t, blocksize.Message, BlockSizeForData(400))
	assert.Equal(t, blocksize.Tiny, BlockSizeForData(900))
	assert.Equal(t, blocksize.Small, BlockSizeForData(3900))
	assert.Equal(t, blocksize.Unknown, BlockSizeForData(268435500))
	assert.Equal(t, blocksize.Unknown, BlockSizeForData(-50))

	// Boundaries sit exactly at capacity, never at the raw block size.
	msgCap := int64(blocksize.Message.Bytes()) - 89
	assert.Equal(t, blocksize.Message, BlockSizeForData(msgCap))
	assert.Equal(t, blocksize.Tiny, BlockSizeForData(msgCap+1))
}

func TestBreakFileIntoBlocks(t *testing.T) {
	chunks, err := BreakFileIntoBlocks(nil, blocksize.Message)
	require.NoError(t, err)
	assert.Empty(t, chunks)

	data := make([]byte, blocksize.Message.Bytes()*2+100)
	for i := range data {
		data[i] = byte(i)
	}
	chunks, err = BreakFileIntoBlocks(data, blocksize.Message)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], blocksize.Message.Bytes())
	assert.Len(t, chunks[1], blocksize.Message.Bytes())
	assert.Len(t, chunks[2], 100)
	assert.Equal(t, data[:blocksize.Message.Bytes()], chunks[0])
	assert.Equal(t, data[blocksize.Message.Bytes()*2:], chunks[2])

	_, err = BreakFileIntoBlocks(data, blocksize.Unknown)
	var invalid *blocksize.InvalidLengthError
	assert.ErrorAs(t, err, &invalid)
}

func pairBlock(t *testing.T, a, b byte) *block.RawBlock {
	t.Helper()
	data := make([]byte, blocksize.Message.Bytes())
	data[0], data[1] = a, b
	blk, err := block.NewRawBlockComputed(
		cs, block.TypeRawData, block.DataTypeRaw, blocksize.Message, data, time.Now(),
	)
	require.NoError(t, err)
	return blk
}

func whitenerFromBytes(t *testing.T, a, b byte) *block.WhitenedBlock {
	t.Helper()
	zero := make([]byte, blocksize.Message.Bytes())
	data := make([]byte, blocksize.Message.Bytes())
	data[0], data[1] = a, b
	w, err := block.NewWhitenedBlock(cs, blocksize.Message, data, zero)
	require.NoError(t, err)
	return w
}

func TestRoundRobinWhitening(t *testing.T) {
	s := newService(t)

	blocks := []block.Block{pairBlock(t, 1, 1), pairBlock(t, 2, 2), pairBlock(t, 3, 3)}
	whiteners := []*block.WhitenedBlock{whitenerFromBytes(t, 10, 10), whitenerFromBytes(t, 20, 20)}

	out, err := s.XORBlocksWithWhitenersRoundRobin(blocks, whiteners)
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, []byte{11, 11}, out[0].Buffer()[:2])
	assert.Equal(t, []byte{22, 22}, out[1].Buffer()[:2])
	assert.Equal(t, []byte{9, 9}, out[2].Buffer()[:2])
}

func TestWhiteningRejectsEmptyWhiteners(t *testing.T) {
	s := newService(t)
	b := pairBlock(t, 1, 1)

	_, err := s.XORBlockWithWhiteners(b, nil)
	assert.ErrorIs(t, err, ErrNoWhitenersProvided)

	_, err = s.XORBlocksWithWhitenersRoundRobin([]block.Block{b}, nil)
	assert.ErrorIs(t, err, ErrNoWhitenersProvided)
}

func TestXORBlockWithWhiteners(t *testing.T) {
	s := newService(t)
	b := pairBlock(t, 0xFF, 0x0F)
	w1 := whitenerFromBytes(t, 0xF0, 0x00)
	w2 := whitenerFromBytes(t, 0x0F, 0x0F)

	out, err := s.XORBlockWithWhiteners(b, []*block.WhitenedBlock{w1, w2})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x00}, out.Buffer()[:2])
}

func TestEncryptDecryptDispatch(t *testing.T) {
	s := newService(t)
	m := newMember(t)

	eb, err := block.NewEphemeralBlock(
		cs, block.TypeOwnedData, block.DataTypeRaw, blocksize.Message,
		[]byte("payload"), m, time.Now(),
	)
	require.NoError(t, err)

	enc, err := s.Encrypt(eb, m)
	require.NoError(t, err)
	assert.Equal(t, block.TypeEncryptedOwnedData, enc.Type())

	dec, err := s.Decrypt(enc, m)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), dec.Data())
}

func TestEncryptRejectsNonEphemeral(t *testing.T) {
	s := newService(t)
	m := newMember(t)

	var cannotEnc *CannotEncryptError
	_, err := s.Encrypt(pairBlock(t, 1, 2), m)
	assert.ErrorAs(t, err, &cannotEnc)

	var cannotDec *CannotDecryptError
	_, err = s.Decrypt(pairBlock(t, 1, 2), m)
	assert.ErrorAs(t, err, &cannotDec)
}

func TestEncryptBlocksKeepsOrder(t *testing.T) {
	s := newService(t)
	m := newMember(t)

	var blocks []*block.EphemeralBlock
	for i := 0; i < 8; i++ {
		eb, err := block.NewEphemeralBlock(
			cs, block.TypeOwnedData, block.DataTypeRaw, blocksize.Message,
			[]byte{byte(i + 1)}, m, time.Now(),
		)
		require.NoError(t, err)
		blocks = append(blocks, eb)
	}

	encs, err := s.EncryptBlocks(blocks, m)
	require.NoError(t, err)
	require.Len(t, encs, 8)
	for i, enc := range encs {
		dec, err := s.Decrypt(enc, m)
		require.NoError(t, err)
		assert.Equal(t, []byte{byte(i + 1)}, dec.Data())
	}
}

func TestCreateAndStoreCBL(t *testing.T) {
	s := newService(t)
	m := newMember(t)
	ctx := context.Background()

	blocks := []block.Block{pairBlock(t, 1, 1), pairBlock(t, 2, 2), pairBlock(t, 3, 3)}
	list, err := s.CreateAndStoreCBL(ctx, blocks, m, 1000)
	require.NoError(t, err)
	assert.Equal(t, 3, list.AddressCount())
	assert.Equal(t, uint64(1000), list.OriginalDataLength())
	assert.True(t, list.ValidateSignature(m.Public()))

	// Every constituent is retrievable from the pool.
	for i, b := range blocks {
		got, err := s.FetchBlock(ctx, b.Checksum())
		require.NoError(t, err, "block %d", i)
		assert.Equal(t, b.Buffer(), got.Buffer())
	}

	// The tuples resolve through the stored blocks.
	tuples, err := list.HandleTuples(ctx, s.FetchBlock, nil)
	require.NoError(t, err)
	require.Len(t, tuples, 1)
}

func TestCreateAndStoreCBLRejections(t *testing.T) {
	s := newService(t)
	m := newMember(t)
	ctx := context.Background()

	_, err := s.CreateAndStoreCBL(ctx, nil, m, 0)
	assert.ErrorIs(t, err, ErrEmptyBlocksArray)

	big, err := block.NewRawBlockComputed(
		cs, block.TypeRawData, block.DataTypeRaw, blocksize.Tiny,
		make([]byte, blocksize.Tiny.Bytes()), time.Now(),
	)
	require.NoError(t, err)
	_, err = s.CreateAndStoreCBL(ctx, []block.Block{pairBlock(t, 1, 1), big}, m, 0)
	assert.ErrorIs(t, err, ErrBlockSizeMismatch)

	var invalidCount *cbl.InvalidAddressCountError
	_, err = s.CreateAndStoreCBL(ctx, []block.Block{pairBlock(t, 1, 1), pairBlock(t, 2, 2)}, m, 10)
	assert.ErrorAs(t, err, &invalidCount)
}
