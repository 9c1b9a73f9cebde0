package block

import (
	"context"
	"time"

	"github.com/brightchain/brightchain/pkg/blocksize"
	"github.com/brightchain/brightchain/pkg/checksum"
)

// RawBlock is the base block: a full-size buffer with no layered header.
// Whitened blocks, XOR results and store round-trips all surface as raw
// blocks.
type RawBlock struct {
	cs         *checksum.Service
	typ        Type
	dataType   DataType
	size       blocksize.Size
	buf        []byte
	sum        checksum.Checksum
	created    time.Time
	canRead    bool
	canPersist bool
}

var _ Block = (*RawBlock)(nil)

// NewRawBlock validates and constructs a raw block from a full-size buffer
// and its expected checksum. The buffer must be exactly size bytes; the
// checksum must match recomputation; created must not be in the future.
func NewRawBlock(
	cs *checksum.Service,
	typ Type,
	dataType DataType,
	size blocksize.Size,
	data []byte,
	sum checksum.Checksum,
	created time.Time,
) (*RawBlock, error) {
	b, err := newRawUnchecked(cs, typ, dataType, size, data, created)
	if err != nil {
		return nil, err
	}
	if computed := cs.Sum(b.buf); !computed.Equal(sum) {
		return nil, &checksum.MismatchError{Expected: sum, Computed: computed}
	}
	b.sum = sum
	return b, nil
}

// NewRawBlockComputed constructs a raw block, computing the checksum from
// the supplied buffer.
func NewRawBlockComputed(
	cs *checksum.Service,
	typ Type,
	dataType DataType,
	size blocksize.Size,
	data []byte,
	created time.Time,
) (*RawBlock, error) {
	b, err := newRawUnchecked(cs, typ, dataType, size, data, created)
	if err != nil {
		return nil, err
	}
	b.sum = cs.Sum(b.buf)
	return b, nil
}

// newRawUnchecked performs every structural validation except the checksum
// comparison. Structural errors are detected before any cryptographic work.
func newRawUnchecked(
	cs *checksum.Service,
	typ Type,
	dataType DataType,
	size blocksize.Size,
	data []byte,
	created time.Time,
) (*RawBlock, error) {
	if !blocksize.Validate(int64(size)) {
		return nil, &blocksize.InvalidLengthError{Length: int64(size)}
	}
	if len(data) == 0 {
		return nil, ErrDataCannotBeEmpty
	}
	if len(data) > size.Bytes() {
		return nil, &DataLengthExceedsCapacityError{Length: len(data), Capacity: size.Bytes()}
	}
	if len(data) < size.Bytes() {
		return nil, ErrDataBufferTruncated
	}
	if created.IsZero() {
		created = time.Now()
	}
	if created.After(time.Now()) {
		return nil, &FutureCreationDateError{Date: created}
	}

	buf := make([]byte, len(data))
	copy(buf, data)
	return &RawBlock{
		cs:         cs,
		typ:        typ,
		dataType:   dataType,
		size:       size,
		buf:        buf,
		created:    created,
		canRead:    true,
		canPersist: true,
	}, nil
}

func (b *RawBlock) Type() Type               { return b.typ }
func (b *RawBlock) DataType() DataType       { return b.dataType }
func (b *RawBlock) Size() blocksize.Size     { return b.size }
func (b *RawBlock) Buffer() []byte           { return b.buf }
func (b *RawBlock) Data() []byte             { return b.buf }
func (b *RawBlock) Checksum() checksum.Checksum { return b.sum }
func (b *RawBlock) DateCreated() time.Time   { return b.created }
func (b *RawBlock) CanRead() bool            { return b.canRead }
func (b *RawBlock) CanPersist() bool         { return b.canPersist }

// The base layer has no header: the full buffer is payload.
func (b *RawBlock) LayerHeaderData() []byte { return nil }
func (b *RawBlock) Payload() []byte         { return b.buf }
func (b *RawBlock) PayloadLength() int      { return len(b.buf) }
func (b *RawBlock) TotalOverhead() int      { return 0 }
func (b *RawBlock) Capacity() int           { return b.size.Bytes() }

func (b *RawBlock) Validate(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if computed := b.cs.Sum(b.buf); !computed.Equal(b.sum) {
		return &checksum.MismatchError{Expected: b.sum, Computed: computed}
	}
	if b.created.After(time.Now()) {
		return &FutureCreationDateError{Date: b.created}
	}
	return nil
}

// XOR combines this block with another of the same size, producing a new
// raw block over the position-wise XOR of both full buffers with a freshly
// computed checksum.
func (b *RawBlock) XOR(other Block) (*RawBlock, error) {
	return XOR(b.cs, b, other)
}

// XOR is the block combination primitive used by whitening and tuple
// reconstruction. Both operands must share a block size.
func XOR(cs *checksum.Service, a, b Block) (*RawBlock, error) {
	if a.Size() != b.Size() {
		return nil, ErrBlockSizesDoNotMatch
	}
	out := xorBytes(a.Buffer(), b.Buffer())
	return NewRawBlockComputed(cs, TypeRawData, DataTypeRaw, a.Size(), out, time.Now())
}

func xorBytes(a, b []byte) []byte {
	out := make([]byte, len(a))
	for i := range a {
		out[i] = a[i] ^ b[i]
	}
	return out
}
