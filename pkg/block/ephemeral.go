package block

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"time"

	"github.com/brightchain/brightchain/pkg/blocksize"
	"github.com/brightchain/brightchain/pkg/checksum"
	"github.com/brightchain/brightchain/pkg/ecies"
	"github.com/brightchain/brightchain/pkg/identity"
)

// EphemeralBlock is an in-memory block that is never persisted in raw
// form. Supplied data shorter than the block size is padded with
// cryptographically random bytes; predictable padding would leak payload
// boundaries, so zero fill is never used.
type EphemeralBlock struct {
	cs        *checksum.Service
	typ       Type
	dataType  DataType
	size      blocksize.Size
	buf       []byte
	sum       checksum.Checksum
	created   time.Time
	creator   *identity.Member
	length    int // payload length before padding/encryption
	encrypted bool
}

var _ Block = (*EphemeralBlock)(nil)

// NewEphemeralBlock pads data with random bytes up to size and constructs
// an unencrypted ephemeral block. The checksum is computed over the full
// padded buffer so it stays stable across the block's lifetime.
func NewEphemeralBlock(
	cs *checksum.Service,
	typ Type,
	dataType DataType,
	size blocksize.Size,
	data []byte,
	creator *identity.Member,
	created time.Time,
) (*EphemeralBlock, error) {
	if !blocksize.Validate(int64(size)) {
		return nil, &blocksize.InvalidLengthError{Length: int64(size)}
	}
	if len(data) == 0 {
		return nil, ErrDataCannotBeEmpty
	}
	if len(data) > size.Bytes() {
		return nil, &DataLengthExceedsCapacityError{Length: len(data), Capacity: size.Bytes()}
	}
	if created.IsZero() {
		created = time.Now()
	}
	if created.After(time.Now()) {
		return nil, &FutureCreationDateError{Date: created}
	}

	buf := make([]byte, size.Bytes())
	copy(buf, data)
	if _, err := io.ReadFull(rand.Reader, buf[len(data):]); err != nil {
		return nil, fmt.Errorf("block: generate padding: %w", err)
	}

	return &EphemeralBlock{
		cs:       cs,
		typ:      typ,
		dataType: dataType,
		size:     size,
		buf:      buf,
		sum:      cs.Sum(buf),
		created:  created,
		creator:  creator,
		length:   len(data),
	}, nil
}

// NewEphemeralBlockFromBuffer adopts a full-size buffer that was padded
// previously, preserving it byte for byte so the checksum matches the
// stored form. length is the logical payload length within the buffer.
func NewEphemeralBlockFromBuffer(
	cs *checksum.Service,
	typ Type,
	dataType DataType,
	size blocksize.Size,
	buf []byte,
	length int,
	creator *identity.Member,
	created time.Time,
) (*EphemeralBlock, error) {
	if !blocksize.Validate(int64(size)) {
		return nil, &blocksize.InvalidLengthError{Length: int64(size)}
	}
	if len(buf) != size.Bytes() {
		if len(buf) > size.Bytes() {
			return nil, &DataLengthExceedsCapacityError{Length: len(buf), Capacity: size.Bytes()}
		}
		return nil, ErrDataBufferTruncated
	}
	if length <= 0 || length > len(buf) {
		return nil, fmt.Errorf("block: payload length %d outside buffer of %d bytes", length, len(buf))
	}
	if created.IsZero() {
		created = time.Now()
	}
	if created.After(time.Now()) {
		return nil, &FutureCreationDateError{Date: created}
	}

	owned := make([]byte, len(buf))
	copy(owned, buf)
	return &EphemeralBlock{
		cs:       cs,
		typ:      typ,
		dataType: dataType,
		size:     size,
		buf:      owned,
		sum:      cs.Sum(owned),
		created:  created,
		creator:  creator,
		length:   length,
	}, nil
}

func (b *EphemeralBlock) Type() Type                  { return b.typ }
func (b *EphemeralBlock) DataType() DataType          { return b.dataType }
func (b *EphemeralBlock) Size() blocksize.Size        { return b.size }
func (b *EphemeralBlock) Buffer() []byte              { return b.buf }
func (b *EphemeralBlock) Checksum() checksum.Checksum { return b.sum }
func (b *EphemeralBlock) DateCreated() time.Time      { return b.created }
func (b *EphemeralBlock) CanRead() bool               { return true }

// CanPersist is false: ephemeral blocks exist only in memory until
// whitened or encrypted into a persistable form.
func (b *EphemeralBlock) CanPersist() bool { return false }

// Data returns the logical unpadded prefix for unencrypted blocks. For
// encrypted blocks the entire buffer is meaningful to the encryption layer
// and is returned whole.
func (b *EphemeralBlock) Data() []byte {
	if b.encrypted {
		return b.buf
	}
	return b.buf[:b.length]
}

func (b *EphemeralBlock) LayerHeaderData() []byte { return nil }
func (b *EphemeralBlock) Payload() []byte         { return b.Data() }
func (b *EphemeralBlock) PayloadLength() int      { return b.length }
func (b *EphemeralBlock) TotalOverhead() int      { return 0 }
func (b *EphemeralBlock) Capacity() int           { return b.size.Bytes() }

// Creator is the identity that produced this block, if known.
func (b *EphemeralBlock) Creator() *identity.Member { return b.creator }

// LengthBeforeEncryption is the actual payload length before padding and
// encryption overhead.
func (b *EphemeralBlock) LengthBeforeEncryption() int { return b.length }

// Encrypted reports whether the buffer holds ciphertext.
func (b *EphemeralBlock) Encrypted() bool { return b.encrypted }

// CanEncrypt reports whether this block's payload plus the header overhead
// for the given encryption shape still fits the block size.
func (b *EphemeralBlock) CanEncrypt(enc ecies.EncryptionType, recipients int) bool {
	if b.encrypted {
		return false
	}
	overhead, err := ecies.Overhead(enc, recipients)
	if err != nil {
		return false
	}
	return b.length+overhead <= b.size.Bytes()
}

// CanDecrypt reports whether this block holds ciphertext to decrypt.
func (b *EphemeralBlock) CanDecrypt() bool { return b.encrypted }

func (b *EphemeralBlock) Validate(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(b.buf) != b.size.Bytes() {
		return ErrDataBufferTruncated
	}
	if computed := b.cs.Sum(b.buf); !computed.Equal(b.sum) {
		return &checksum.MismatchError{Expected: b.sum, Computed: computed}
	}
	if b.created.After(time.Now()) {
		return &FutureCreationDateError{Date: b.created}
	}
	return nil
}

// XOR combines this block's full padded buffer with another same-size
// block.
func (b *EphemeralBlock) XOR(other Block) (*RawBlock, error) {
	return XOR(b.cs, b, other)
}
