package cbl

import (
	"errors"
	"fmt"

	"github.com/brightchain/brightchain/pkg/checksum"
)

var (
	// ErrCreatorPrivateKeyRequired is returned when building or signing a
	// list without the creator's signing key.
	ErrCreatorPrivateKeyRequired = errors.New("cbl: creator private key required")

	// ErrCreatorRequired is returned when a creator identity is missing
	// entirely.
	ErrCreatorRequired = errors.New("cbl: creator identity required")

	ErrHeaderTooShort    = errors.New("cbl: header data too short")
	ErrAddressListLength = errors.New("cbl: address list length does not match address count")
	ErrInvalidSignature  = errors.New("cbl: creator signature does not verify")
)

// UnsupportedVersionError reports a header whose leading version byte
// names a format this implementation does not speak.
type UnsupportedVersionError struct {
	Version byte
}

func (e *UnsupportedVersionError) Error() string {
	return fmt.Sprintf("cbl: unsupported header version %#02x", e.Version)
}

// InvalidAddressCountError reports an address count that is not a
// positive multiple of the tuple size.
type InvalidAddressCountError struct {
	Count     int
	TupleSize int
}

func (e *InvalidAddressCountError) Error() string {
	return fmt.Sprintf("cbl: address count %d is not a positive multiple of tuple size %d",
		e.Count, e.TupleSize)
}

// AddressCountExceedsCapacityError reports an address count beyond what
// the chosen block size can index.
type AddressCountExceedsCapacityError struct {
	Count    int
	Capacity int
}

func (e *AddressCountExceedsCapacityError) Error() string {
	return fmt.Sprintf("cbl: address count %d exceeds block capacity of %d addresses",
		e.Count, e.Capacity)
}

// PoolIntegrityError reports a referenced address that could not be
// verified present in the claimed storage pool.
type PoolIntegrityError struct {
	Pool    string
	Address checksum.Checksum
}

func (e *PoolIntegrityError) Error() string {
	return fmt.Sprintf("cbl: address %s not present in pool %q", e.Address, e.Pool)
}
