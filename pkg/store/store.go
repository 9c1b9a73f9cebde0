// Package store persists blocks by checksum address, scoped by pool.
package store

import (
	"context"
	"errors"

	"github.com/brightchain/brightchain/pkg/checksum"
)

// ErrNotFound is returned when no block exists under an address in the
// requested pool.
var ErrNotFound = errors.New("store: block not found")

// Store is a byte-addressed block store. Addresses are block checksums;
// the pool name partitions the keyspace so the same block can live in
// several pools independently.
type Store interface {
	Put(ctx context.Context, pool string, id checksum.Checksum, data []byte) error
	Get(ctx context.Context, pool string, id checksum.Checksum) ([]byte, error)
	Has(ctx context.Context, pool string, id checksum.Checksum) (bool, error)
	Delete(ctx context.Context, pool string, id checksum.Checksum) error
	Close() error
}

// key builds the storage key: pool ‖ 0x00 ‖ checksum. Pool names must not
// contain NUL; the separator keeps pool prefixes unambiguous.
func key(pool string, id checksum.Checksum) []byte {
	k := make([]byte, 0, len(pool)+1+checksum.Size)
	k = append(k, pool...)
	k = append(k, 0x00)
	k = append(k, id[:]...)
	return k
}
