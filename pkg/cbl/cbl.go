package cbl

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/brightchain/brightchain/pkg/block"
	"github.com/brightchain/brightchain/pkg/blocksize"
	"github.com/brightchain/brightchain/pkg/checksum"
	"github.com/brightchain/brightchain/pkg/identity"
)

// Block is a constituent block list: an ephemeral block whose payload is
// a signed header followed by the ordered checksums of the blocks that
// compose a file. Once constructed it is immutable; every accessor reads
// from the parsed header, which agrees with the raw bytes by
// construction.
type Block struct {
	*block.EphemeralBlock

	cs        *checksum.Service
	header    *Header
	addresses []checksum.Checksum
	tupleSize int
}

// New builds and signs a list over addresses for a file of
// originalDataLength bytes. The creator must hold a private key; size is
// chosen by the caller, typically via FileSizeToBlockSize.
func New(
	cs *checksum.Service,
	creator *identity.Member,
	created time.Time,
	originalDataLength uint64,
	addresses []checksum.Checksum,
	size blocksize.Size,
	tupleSize int,
) (*Block, error) {
	addressList := serializeAddresses(addresses)
	h, err := MakeHeader(cs, creator, created, len(addresses), originalDataLength, addressList, size, tupleSize)
	if err != nil {
		return nil, err
	}

	payload := append(h.Encode(), addressList...)
	eb, err := block.NewEphemeralBlock(
		cs, block.TypeConstituentBlockList, block.DataTypeEphemeralStructured,
		size, payload, creator, h.DateCreated,
	)
	if err != nil {
		return nil, err
	}

	return &Block{
		EphemeralBlock: eb,
		cs:             cs,
		header:         h,
		addresses:      append([]checksum.Checksum(nil), addresses...),
		tupleSize:      tupleSize,
	}, nil
}

// Parse reinterprets a full-size buffer as a list block. Bytes beyond the
// address list are padding and are preserved verbatim, so the checksum of
// the parsed block matches the stored form. creator supplies the public
// key for signature verification and must carry the header's ID.
func Parse(
	cs *checksum.Service,
	size blocksize.Size,
	buf []byte,
	creator *identity.Member,
	tupleSize int,
) (*Block, error) {
	if tupleSize < block.MinTupleSize || tupleSize > block.MaxTupleSize {
		return nil, &block.InvalidTupleSizeError{Size: tupleSize}
	}
	h, err := ReadHeader(buf)
	if err != nil {
		return nil, err
	}
	count := int(h.AddressCount)
	if count <= 0 || count%tupleSize != 0 {
		return nil, &InvalidAddressCountError{Count: count, TupleSize: tupleSize}
	}
	if max := MaxAddressCount(size, tupleSize); count > max {
		return nil, &AddressCountExceedsCapacityError{Count: count, Capacity: max}
	}
	listEnd := HeaderSize + count*checksum.Size
	if len(buf) < listEnd {
		return nil, fmt.Errorf("%w: %d bytes for %d addresses", ErrAddressListLength, len(buf)-HeaderSize, count)
	}
	addressList := buf[HeaderSize:listEnd]
	if !h.Verify(cs, creator, addressList) {
		return nil, ErrInvalidSignature
	}

	eb, err := block.NewEphemeralBlockFromBuffer(
		cs, block.TypeConstituentBlockList, block.DataTypeEphemeralStructured,
		size, buf, listEnd, creator, h.DateCreated,
	)
	if err != nil {
		return nil, err
	}

	return &Block{
		EphemeralBlock: eb,
		cs:             cs,
		header:         h,
		addresses:      parseAddresses(addressList),
		tupleSize:      tupleSize,
	}, nil
}

// Header returns the decoded list header.
func (b *Block) Header() *Header { return b.header }

// CreatorID is the claimed creator's ID.
func (b *Block) CreatorID() uuid.UUID { return b.header.CreatorID }

// Signature is the creator's signature over the header and address list.
func (b *Block) Signature() [identity.SignatureSize]byte { return b.header.Signature }

// AddressCount is the number of constituent addresses, always a multiple
// of the tuple size.
func (b *Block) AddressCount() int { return int(b.header.AddressCount) }

// OriginalDataLength is the pre-encryption byte length of the file the
// list describes.
func (b *Block) OriginalDataLength() uint64 { return b.header.OriginalDataLength }

// TupleSize is the grouping width the address list was built with.
func (b *Block) TupleSize() int { return b.tupleSize }

// Addresses returns the constituent checksums in order.
func (b *Block) Addresses() []checksum.Checksum {
	return append([]checksum.Checksum(nil), b.addresses...)
}

// AddressListBytes is the raw serialized address list, in wire order.
func (b *Block) AddressListBytes() []byte {
	return serializeAddresses(b.addresses)
}

// ValidateSignature re-verifies the stored signature against the block's
// current bytes and the given creator public key.
func (b *Block) ValidateSignature(creator *identity.Member) bool {
	h, err := ReadHeader(b.Buffer())
	if err != nil {
		return false
	}
	listEnd := HeaderSize + int(h.AddressCount)*checksum.Size
	if len(b.Buffer()) < listEnd {
		return false
	}
	return h.Verify(b.cs, creator, b.Buffer()[HeaderSize:listEnd])
}

// PoolVerifier answers whether a block is present within a named storage
// pool. Implemented by stores.
type PoolVerifier interface {
	Has(ctx context.Context, pool string, id checksum.Checksum) (bool, error)
}

// PoolVerification names the pool every referenced address must be found
// in before tuples are handed out.
type PoolVerification struct {
	Verifier PoolVerifier
	Pool     string
}

// HandleTuples groups the address list into tuples and resolves each
// member via fetch. When verification is supplied, every address is first
// checked present in the named pool; the first unverifiable address
// aborts the whole operation with a PoolIntegrityError.
func (b *Block) HandleTuples(
	ctx context.Context,
	fetch block.FetchFunc,
	verification *PoolVerification,
) ([]*block.Tuple, error) {
	if verification != nil {
		for _, addr := range b.addresses {
			ok, err := verification.Verifier.Has(ctx, verification.Pool, addr)
			if err != nil {
				return nil, fmt.Errorf("cbl: verify pool %q: %w", verification.Pool, err)
			}
			if !ok {
				return nil, &PoolIntegrityError{Pool: verification.Pool, Address: addr}
			}
		}
	}

	tuples := make([]*block.Tuple, 0, len(b.addresses)/b.tupleSize)
	for i := 0; i < len(b.addresses); i += b.tupleSize {
		t, err := block.TupleFromIDs(ctx, b.tupleSize, b.addresses[i:i+b.tupleSize], fetch)
		if err != nil {
			return nil, err
		}
		tuples = append(tuples, t)
	}
	return tuples, nil
}

func serializeAddresses(addresses []checksum.Checksum) []byte {
	out := make([]byte, 0, len(addresses)*checksum.Size)
	for _, a := range addresses {
		out = append(out, a[:]...)
	}
	return out
}

func parseAddresses(addressList []byte) []checksum.Checksum {
	out := make([]checksum.Checksum, len(addressList)/checksum.Size)
	for i := range out {
		copy(out[i][:], addressList[i*checksum.Size:])
	}
	return out
}
