package cbl

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/brightchain/brightchain/pkg/block"
	"github.com/brightchain/brightchain/pkg/blocksize"
	"github.com/brightchain/brightchain/pkg/checksum"
	"github.com/brightchain/brightchain/pkg/identity"
)

// Version is the canonical header format tag. Exactly one wire format is
// spoken; legacy layouts without a leading version byte are rejected.
const Version byte = 0x01

// HeaderSize is the fixed byte length of the list header:
// Version(1) ‖ CreatorID(16) ‖ CreatorSignature(64) ‖ DateCreated(8) ‖
// AddressCount(4) ‖ OriginalDataLength(8). Addresses follow the header.
const HeaderSize = 1 + identity.IDSize + identity.SignatureSize + 8 + 4 + 8

// Header is the decoded fixed-layout prefix of a constituent block list.
type Header struct {
	CreatorID          uuid.UUID
	Signature          [identity.SignatureSize]byte
	DateCreated        time.Time
	AddressCount       uint32
	OriginalDataLength uint64
}

// encodeUnsigned writes every header field except the signature, in wire
// order. Signing and verification both operate over these bytes followed
// by the raw address list.
func (h *Header) encodeUnsigned() []byte {
	out := make([]byte, 0, HeaderSize-identity.SignatureSize)
	out = append(out, Version)
	out = append(out, h.CreatorID[:]...)
	out = binary.BigEndian.AppendUint64(out, uint64(h.DateCreated.UnixMilli()))
	out = binary.BigEndian.AppendUint32(out, h.AddressCount)
	out = binary.BigEndian.AppendUint64(out, h.OriginalDataLength)
	return out
}

// Encode serializes the header into its fixed 101-byte wire form.
func (h *Header) Encode() []byte {
	out := make([]byte, 0, HeaderSize)
	out = append(out, Version)
	out = append(out, h.CreatorID[:]...)
	out = append(out, h.Signature[:]...)
	out = binary.BigEndian.AppendUint64(out, uint64(h.DateCreated.UnixMilli()))
	out = binary.BigEndian.AppendUint32(out, h.AddressCount)
	out = binary.BigEndian.AppendUint64(out, h.OriginalDataLength)
	return out
}

// digest computes the checksum that the creator signs: unsigned header
// fields followed by the raw address list bytes.
func (h *Header) digest(cs *checksum.Service, addressList []byte) checksum.Checksum {
	unsigned := h.encodeUnsigned()
	buf := make([]byte, 0, len(unsigned)+len(addressList))
	buf = append(buf, unsigned...)
	buf = append(buf, addressList...)
	return cs.Sum(buf)
}

// MakeHeader builds and signs a list header for addressCount addresses
// serialized in addressList. The creator must hold a private key; the
// count must be a positive multiple of tupleSize and fit within size.
func MakeHeader(
	cs *checksum.Service,
	creator *identity.Member,
	created time.Time,
	addressCount int,
	originalDataLength uint64,
	addressList []byte,
	size blocksize.Size,
	tupleSize int,
) (*Header, error) {
	if creator == nil {
		return nil, ErrCreatorRequired
	}
	if !creator.HasPrivateKey() {
		return nil, ErrCreatorPrivateKeyRequired
	}
	if tupleSize < block.MinTupleSize || tupleSize > block.MaxTupleSize {
		return nil, &block.InvalidTupleSizeError{Size: tupleSize}
	}
	if addressCount <= 0 || addressCount%tupleSize != 0 {
		return nil, &InvalidAddressCountError{Count: addressCount, TupleSize: tupleSize}
	}
	if max := MaxAddressCount(size, tupleSize); addressCount > max {
		return nil, &AddressCountExceedsCapacityError{Count: addressCount, Capacity: max}
	}
	if len(addressList) != addressCount*checksum.Size {
		return nil, fmt.Errorf("%w: %d bytes for %d addresses",
			ErrAddressListLength, len(addressList), addressCount)
	}
	if created.IsZero() {
		created = time.Now()
	}
	if created.After(time.Now()) {
		return nil, &block.FutureCreationDateError{Date: created}
	}

	h := &Header{
		CreatorID:          creator.ID(),
		DateCreated:        created.Truncate(time.Millisecond),
		AddressCount:       uint32(addressCount),
		OriginalDataLength: originalDataLength,
	}
	sum := h.digest(cs, addressList)
	sig, err := creator.Sign(sum[:])
	if err != nil {
		return nil, fmt.Errorf("cbl: sign header: %w", err)
	}
	h.Signature = sig
	return h, nil
}

// ReadHeader decodes the fixed prefix of data. Any length or field
// mismatch is a hard error; fields are never truncated or wrapped.
func ReadHeader(data []byte) (*Header, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("%w: %d bytes, want at least %d", ErrHeaderTooShort, len(data), HeaderSize)
	}
	if data[0] != Version {
		return nil, &UnsupportedVersionError{Version: data[0]}
	}

	h := &Header{}
	off := 1
	copy(h.CreatorID[:], data[off:off+identity.IDSize])
	off += identity.IDSize
	copy(h.Signature[:], data[off:off+identity.SignatureSize])
	off += identity.SignatureSize
	h.DateCreated = time.UnixMilli(int64(binary.BigEndian.Uint64(data[off : off+8]))).UTC()
	off += 8
	h.AddressCount = binary.BigEndian.Uint32(data[off : off+4])
	off += 4
	h.OriginalDataLength = binary.BigEndian.Uint64(data[off : off+8])
	return h, nil
}

// Verify recomputes the signed checksum over the unsigned header fields
// and addressList and checks the stored signature against the creator's
// public key. The creator's ID must match the header's.
func (h *Header) Verify(cs *checksum.Service, creator *identity.Member, addressList []byte) bool {
	if creator == nil || !bytes.Equal(h.CreatorID[:], creatorIDBytes(creator)) {
		return false
	}
	sum := h.digest(cs, addressList)
	return creator.Verify(sum[:], h.Signature)
}

func creatorIDBytes(m *identity.Member) []byte {
	id := m.IDBytes()
	return id[:]
}

// MaxAddressCount is how many checksum addresses a list of the given
// block size can carry, rounded down to a multiple of tupleSize.
func MaxAddressCount(size blocksize.Size, tupleSize int) int {
	raw := (size.Bytes() - HeaderSize) / checksum.Size
	if raw <= 0 {
		return 0
	}
	return raw - raw%tupleSize
}

// MaxTupleCount is how many whole tuples the list can reference.
func MaxTupleCount(size blocksize.Size, tupleSize int) int {
	raw := (size.Bytes() - HeaderSize) / checksum.Size
	if raw <= 0 {
		return 0
	}
	return raw / tupleSize
}

// MaxFileSize is the largest file a single list of the given size can
// index, assuming constituent blocks of the same size.
func MaxFileSize(size blocksize.Size, tupleSize int) int64 {
	return int64(size.Bytes()) * int64(MaxTupleCount(size, tupleSize))
}

// FileSizeToBlockSize picks the smallest block size whose single-list
// capacity covers fileSize. Unknown means no size fits.
func FileSizeToBlockSize(fileSize int64, tupleSize int) blocksize.Size {
	if fileSize < 0 {
		return blocksize.Unknown
	}
	for _, s := range blocksize.Sizes() {
		if MaxFileSize(s, tupleSize) >= fileSize {
			return s
		}
	}
	return blocksize.Unknown
}
