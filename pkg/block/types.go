// Package block implements the layered block model: raw checksum-addressed
// blocks, in-memory ephemeral blocks with random padding, XOR-whitened
// owner-free blocks, ECIES-encrypted blocks, and fixed-size tuples for XOR
// reconstruction. Blocks are immutable once constructed; XOR, encrypt and
// decrypt all produce new instances.
package block

import (
	"context"
	"fmt"
	"time"

	"github.com/brightchain/brightchain/pkg/blocksize"
	"github.com/brightchain/brightchain/pkg/checksum"
	"github.com/brightchain/brightchain/pkg/ecies"
)

// Type tags what a block is.
type Type uint8

const (
	TypeRawData Type = iota + 1
	TypeOwnedData
	TypeEncryptedOwnedData
	TypeConstituentBlockList
	TypeEncryptedConstituentBlockList
	TypeOwnerFreeWhitened
	TypeInput
)

func (t Type) String() string {
	switch t {
	case TypeRawData:
		return "RawData"
	case TypeOwnedData:
		return "OwnedDataBlock"
	case TypeEncryptedOwnedData:
		return "EncryptedOwnedDataBlock"
	case TypeConstituentBlockList:
		return "ConstituentBlockList"
	case TypeEncryptedConstituentBlockList:
		return "EncryptedConstituentBlockListBlock"
	case TypeOwnerFreeWhitened:
		return "OwnerFreeWhitenedBlock"
	case TypeInput:
		return "Input"
	default:
		return fmt.Sprintf("Type(%d)", uint8(t))
	}
}

// DataType tags what a block's bytes are.
type DataType uint8

const (
	DataTypeRaw DataType = iota + 1
	DataTypeEncrypted
	DataTypeEphemeralStructured
)

func (t DataType) String() string {
	switch t {
	case DataTypeRaw:
		return "RawData"
	case DataTypeEncrypted:
		return "EncryptedData"
	case DataTypeEphemeralStructured:
		return "EphemeralStructuredData"
	default:
		return fmt.Sprintf("DataType(%d)", uint8(t))
	}
}

// Block is the unit of storage. The layered accessors (LayerHeaderData,
// Payload, TotalOverhead, Capacity) reflect each implementation's own
// header layout; the base has no header.
type Block interface {
	Type() Type
	DataType() DataType
	Size() blocksize.Size

	// Buffer is the full buffer, always exactly Size bytes.
	Buffer() []byte
	// Data is the caller-visible view: the full buffer for raw and
	// encrypted blocks, the logical unpadded prefix for plain ephemeral
	// blocks.
	Data() []byte

	Checksum() checksum.Checksum
	DateCreated() time.Time
	CanRead() bool
	CanPersist() bool

	// Validate recomputes the checksum over the current buffer and
	// re-checks the block's structural invariants.
	Validate(ctx context.Context) error

	LayerHeaderData() []byte
	Payload() []byte
	PayloadLength() int
	TotalOverhead() int
	Capacity() int
}

// CapacityProvider maps a block shape to its available payload capacity.
// The concrete implementation lives in pkg/capacity; it is injected here so
// core block logic never reaches for a global service.
type CapacityProvider interface {
	Available(size blocksize.Size, t Type, enc ecies.EncryptionType, recipients int) (int, error)
}
