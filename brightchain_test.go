package brightchain

import (
	"bytes"
	"context"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightchain/brightchain/pkg/blocksize"
	"github.com/brightchain/brightchain/pkg/cbl"
	"github.com/brightchain/brightchain/pkg/identity"
)

func newNode(t *testing.T) *BrightChain {
	t.Helper()
	bc, err := New(Config{})
	require.NoError(t, err)
	t.Cleanup(func() { bc.Close() })
	return bc
}

func newMember(t *testing.T) *identity.Member {
	t.Helper()
	m, err := identity.New()
	require.NoError(t, err)
	return m
}

func TestStoreRetrieveRoundTrip(t *testing.T) {
	bc := newNode(t)
	creator := newMember(t)
	ctx := context.Background()

	data := make([]byte, 3000)
	_, err := rand.Read(data)
	require.NoError(t, err)

	list, err := bc.StoreFile(ctx, data, creator)
	require.NoError(t, err)
	assert.True(t, list.ValidateSignature(creator.Public()))
	assert.Equal(t, uint64(3000), list.OriginalDataLength())

	got, err := bc.RetrieveFile(ctx, list)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(data, got))
}

func TestStoreFileSpansMultipleTuples(t *testing.T) {
	bc, err := New(Config{MaxBlockSize: int64(blocksize.Message)})
	require.NoError(t, err)
	t.Cleanup(func() { bc.Close() })
	creator := newMember(t)
	ctx := context.Background()

	// Past one Message block, so the file splits across two tuples.
	data := make([]byte, blocksize.Message.Bytes()+100)
	data[0], data[len(data)-1] = 0xAA, 0xBB

	list, err := bc.StoreFile(ctx, data, creator)
	require.NoError(t, err)
	assert.Equal(t, 2*bc.config.TupleSize, list.AddressCount())

	got, err := bc.RetrieveFile(ctx, list)
	require.NoError(t, err)
	require.Len(t, got, len(data))
	assert.Equal(t, byte(0xAA), got[0])
	assert.Equal(t, byte(0xBB), got[len(got)-1])
}

func TestStoreFileRejectsEmpty(t *testing.T) {
	bc := newNode(t)
	_, err := bc.StoreFile(context.Background(), nil, newMember(t))
	assert.Error(t, err)
}

func TestStoreFileRequiresPrivateKey(t *testing.T) {
	bc := newNode(t)
	m := newMember(t)
	_, err := bc.StoreFile(context.Background(), []byte("data"), m.Public())
	assert.ErrorIs(t, err, cbl.ErrCreatorPrivateKeyRequired)
}

func TestVerifyFile(t *testing.T) {
	bc := newNode(t)
	creator := newMember(t)
	ctx := context.Background()

	list, err := bc.StoreFile(ctx, []byte("verifiable content"), creator)
	require.NoError(t, err)
	require.NoError(t, bc.VerifyFile(ctx, list))

	// Deleting any constituent breaks verification.
	addr := list.Addresses()[1]
	require.NoError(t, bc.store.Delete(ctx, bc.svc.Pool(), addr))
	var integrity *cbl.PoolIntegrityError
	err = bc.VerifyFile(ctx, list)
	require.ErrorAs(t, err, &integrity)
	assert.True(t, integrity.Address.Equal(addr))

	_, err = bc.RetrieveFile(ctx, list)
	assert.Error(t, err)
}

func TestConfigDefaults(t *testing.T) {
	cfg, err := Config{}.withDefaults()
	require.NoError(t, err)
	assert.Equal(t, "primary", cfg.Pool)
	assert.Equal(t, 3, cfg.TupleSize)
	assert.NotNil(t, cfg.Logger)

	_, err = Config{LogLevel: "nonsense"}.withDefaults()
	assert.Error(t, err)
}
