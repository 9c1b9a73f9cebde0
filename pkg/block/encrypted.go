package block

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/brightchain/brightchain/pkg/blocksize"
	"github.com/brightchain/brightchain/pkg/checksum"
	"github.com/brightchain/brightchain/pkg/ecies"
	"github.com/brightchain/brightchain/pkg/identity"
)

// EncryptedBlock layers an ECIES encryption header ahead of ciphertext
// inside a full-size block buffer. The header is parsed lazily on first
// access and then cached; the block itself stays immutable.
type EncryptedBlock struct {
	cs      *checksum.Service
	typ     Type
	size    blocksize.Size
	buf     []byte
	sum     checksum.Checksum
	created time.Time
	creator *identity.Member
	cap     CapacityProvider

	parseOnce sync.Once
	header    *ecies.Header
	parseErr  error
}

var _ Block = (*EncryptedBlock)(nil)

// encryptedTypes is the closed registry of block types that may carry an
// encryption header, populated at startup.
var encryptedTypes = map[Type]struct{}{}

// RegisterEncryptedType admits a block type to the encrypted-block
// registry. Construction of an EncryptedBlock with an unregistered type
// fails.
func RegisterEncryptedType(t Type) {
	encryptedTypes[t] = struct{}{}
}

func init() {
	RegisterEncryptedType(TypeEncryptedOwnedData)
	RegisterEncryptedType(TypeEncryptedConstituentBlockList)
}

// NewEncryptedBlock constructs an encrypted block from a full-size buffer
// of header ‖ ciphertext ‖ padding. Byte 0 must name a known encryption
// type; full header parsing is deferred until first use. cap may be nil,
// in which case Validate falls back to the overhead formula directly.
func NewEncryptedBlock(
	cs *checksum.Service,
	typ Type,
	size blocksize.Size,
	buf []byte,
	creator *identity.Member,
	created time.Time,
	cap CapacityProvider,
) (*EncryptedBlock, error) {
	if _, ok := encryptedTypes[typ]; !ok {
		return nil, &InvalidBlockTypeError{Type: typ}
	}
	if !blocksize.Validate(int64(size)) {
		return nil, &blocksize.InvalidLengthError{Length: int64(size)}
	}
	if len(buf) == 0 {
		return nil, ErrDataCannotBeEmpty
	}
	if len(buf) > size.Bytes() {
		return nil, &DataLengthExceedsCapacityError{Length: len(buf), Capacity: size.Bytes()}
	}
	if len(buf) < size.Bytes() {
		return nil, ErrDataBufferTruncated
	}
	switch ecies.EncryptionType(buf[0]) {
	case ecies.EncryptionTypeSingle, ecies.EncryptionTypeMulti:
	default:
		return nil, fmt.Errorf("%w: %d", ecies.ErrInvalidEncryptionType, buf[0])
	}
	if created.IsZero() {
		created = time.Now()
	}
	if created.After(time.Now()) {
		return nil, &FutureCreationDateError{Date: created}
	}

	owned := make([]byte, len(buf))
	copy(owned, buf)
	return &EncryptedBlock{
		cs:      cs,
		typ:     typ,
		size:    size,
		buf:     owned,
		sum:     cs.Sum(owned),
		created: created,
		creator: creator,
		cap:     cap,
	}, nil
}

// Encrypt seals an ephemeral block's logical payload for one or more
// recipients and returns the encrypted block, padded back to the full
// block size with fresh random bytes.
func Encrypt(
	cs *checksum.Service,
	b *EphemeralBlock,
	newType Type,
	cap CapacityProvider,
	recipients ...*identity.Member,
) (*EncryptedBlock, error) {
	if len(recipients) == 0 {
		return nil, fmt.Errorf("%w: no recipients", ecies.ErrInvalidRecipientCount)
	}
	enc := ecies.EncryptionTypeSingle
	if len(recipients) > 1 {
		enc = ecies.EncryptionTypeMulti
	}
	if !b.CanEncrypt(enc, len(recipients)) {
		if b.Encrypted() {
			return nil, fmt.Errorf("block: %s is already encrypted", b.Type())
		}
		overhead, _ := ecies.Overhead(enc, len(recipients))
		return nil, &DataLengthExceedsCapacityError{
			Length:   b.LengthBeforeEncryption() + overhead,
			Capacity: b.Size().Bytes(),
		}
	}

	var sealed []byte
	var err error
	if enc == ecies.EncryptionTypeSingle {
		sealed, err = ecies.Seal(recipients[0], b.Data())
	} else {
		sealed, err = ecies.SealMulti(recipients, b.Data())
	}
	if err != nil {
		return nil, err
	}

	buf := make([]byte, b.Size().Bytes())
	copy(buf, sealed)
	if _, err := io.ReadFull(rand.Reader, buf[len(sealed):]); err != nil {
		return nil, fmt.Errorf("block: generate padding: %w", err)
	}
	return NewEncryptedBlock(cs, newType, b.Size(), buf, b.Creator(), time.Now(), cap)
}

// Header parses and caches the encryption header. Repeated calls return
// the same parsed value; the cached result never diverges from a fresh
// parse of the raw bytes because the buffer is immutable.
func (b *EncryptedBlock) Header() (*ecies.Header, error) {
	b.parseOnce.Do(func() {
		b.header, b.parseErr = ecies.ParseHeader(b.buf)
	})
	return b.header, b.parseErr
}

func (b *EncryptedBlock) Type() Type                  { return b.typ }
func (b *EncryptedBlock) DataType() DataType          { return DataTypeEncrypted }
func (b *EncryptedBlock) Size() blocksize.Size        { return b.size }
func (b *EncryptedBlock) Buffer() []byte              { return b.buf }
func (b *EncryptedBlock) Checksum() checksum.Checksum { return b.sum }
func (b *EncryptedBlock) DateCreated() time.Time      { return b.created }
func (b *EncryptedBlock) CanRead() bool               { return true }
func (b *EncryptedBlock) CanPersist() bool            { return true }

// Data returns the entire padded buffer: header, ciphertext and padding
// are all meaningful to the encryption layer.
func (b *EncryptedBlock) Data() []byte { return b.buf }

func (b *EncryptedBlock) Creator() *identity.Member { return b.creator }

// EncryptionType reads the layout tag from byte 0 without a full parse.
func (b *EncryptedBlock) EncryptionType() ecies.EncryptionType {
	return ecies.EncryptionType(b.buf[0])
}

// Recipients returns the IDs this block is sealed for: the single header
// recipient, or every wrapped-key table entry.
func (b *EncryptedBlock) Recipients() ([]uuid.UUID, error) {
	h, err := b.Header()
	if err != nil {
		return nil, err
	}
	if h.Encryption == ecies.EncryptionTypeSingle {
		return []uuid.UUID{h.RecipientID}, nil
	}
	ids := make([]uuid.UUID, len(h.Recipients))
	for i, r := range h.Recipients {
		ids[i] = r.ID
	}
	return ids, nil
}

// TotalOverhead derives the header size from the parsed header. It is the
// single source of truth for header boundaries; a parse failure surfaces
// as zero here and as an error from Validate.
func (b *EncryptedBlock) TotalOverhead() int {
	h, err := b.Header()
	if err != nil {
		return 0
	}
	overhead, err := h.Overhead()
	if err != nil {
		return 0
	}
	return overhead
}

func (b *EncryptedBlock) LayerHeaderData() []byte {
	overhead := b.TotalOverhead()
	if overhead == 0 {
		return nil
	}
	return b.buf[:overhead]
}

// Payload is the ciphertext: the bytes between the header and the padding.
func (b *EncryptedBlock) Payload() []byte {
	h, err := b.Header()
	if err != nil {
		return nil
	}
	overhead := b.TotalOverhead()
	end := overhead + int(h.PlaintextLength)
	if overhead == 0 || end > len(b.buf) {
		return nil
	}
	return b.buf[overhead:end]
}

func (b *EncryptedBlock) PayloadLength() int {
	h, err := b.Header()
	if err != nil {
		return 0
	}
	return int(h.PlaintextLength)
}

func (b *EncryptedBlock) Capacity() int {
	return b.size.Bytes() - b.TotalOverhead()
}

// LengthBeforeEncryption is the plaintext length recorded in the header.
func (b *EncryptedBlock) LengthBeforeEncryption() int {
	return b.PayloadLength()
}

func (b *EncryptedBlock) CanDecrypt() bool { return true }

// Validate re-checks the checksum, re-parses the header, re-derives the
// layer overhead and confirms the recorded plaintext length fits the
// available capacity. The capacity check is what prevents a maliciously
// large length claim from causing an overread during decrypt.
func (b *EncryptedBlock) Validate(ctx context.Context) error {
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

	h, err := b.Header()
	if err != nil {
		return err
	}
	overhead, err := h.Overhead()
	if err != nil {
		return err
	}

	available := b.size.Bytes() - overhead
	if b.cap != nil {
		available, err = b.cap.Available(b.size, b.typ, h.Encryption, len(h.Recipients))
		if err != nil {
			return err
		}
	}
	if h.PlaintextLength > uint64(available) {
		return &DataLengthExceedsCapacityError{
			Length:   int(h.PlaintextLength),
			Capacity: available,
		}
	}
	return nil
}

// Decrypt recovers the plaintext for member and returns it as a fresh
// ephemeral block of newType, re-padded to the block size with a new
// checksum. Dispatch follows the header's encryption type.
func (b *EncryptedBlock) Decrypt(member *identity.Member, newType Type) (*EphemeralBlock, error) {
	if !member.HasPrivateKey() {
		return nil, identity.ErrPrivateKeyRequired
	}
	if err := b.Validate(context.Background()); err != nil {
		return nil, err
	}

	h, err := b.Header()
	if err != nil {
		return nil, err
	}

	var plaintext []byte
	switch h.Encryption {
	case ecies.EncryptionTypeSingle:
		plaintext, err = ecies.Unseal(member, b.buf)
	case ecies.EncryptionTypeMulti:
		plaintext, err = ecies.UnsealMulti(member, b.buf)
	default:
		err = fmt.Errorf("%w: %s", ecies.ErrInvalidEncryptionType, h.Encryption)
	}
	if err != nil {
		return nil, err
	}

	dataType := DataTypeRaw
	if newType == TypeConstituentBlockList {
		dataType = DataTypeEphemeralStructured
	}
	return NewEphemeralBlock(b.cs, newType, dataType, b.size, plaintext, b.creator, time.Now())
}
