package ecies

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/brightchain/brightchain/pkg/identity"
)

// EncryptionType selects the header layout: one recipient baked into the
// header, or a per-recipient wrapped-key table.
type EncryptionType byte

const (
	EncryptionTypeSingle EncryptionType = 0x01
	EncryptionTypeMulti  EncryptionType = 0x02
)

func (t EncryptionType) String() string {
	switch t {
	case EncryptionTypeSingle:
		return "SingleRecipient"
	case EncryptionTypeMulti:
		return "MultiRecipient"
	default:
		return fmt.Sprintf("EncryptionType(%d)", byte(t))
	}
}

// Wire constants for the single canonical cipher suite. The version and
// suite bytes exist so the format can evolve without guessing.
const (
	CurrentVersion       byte = 0x01
	CipherSuiteAES256GCM byte = 0x01
	FormatWithLength     byte = 0x01

	EphemeralKeySize = 33
	IVSize           = 12
	AuthTagSize      = 16
	WrappedKeySize   = 32

	lengthFieldSize    = 8
	recipientCountSize = 2

	// MinMultiRecipients is the smallest recipient table the multi layout
	// accepts; one recipient must use the single layout.
	MinMultiRecipients = 2
	// MaxRecipients is bounded by the 2-byte recipient count field.
	MaxRecipients = 1<<16 - 1
)

// RecipientEntrySize is the wire width of one wrapped-key table entry:
// RecipientID ‖ KeyIV ‖ KeyAuthTag ‖ WrappedKey.
const RecipientEntrySize = identity.IDSize + IVSize + AuthTagSize + WrappedKeySize

// SingleOverhead is the byte count of the single-recipient header:
// EncType ‖ RecipientID ‖ Version ‖ CipherSuite ‖ FormatTag ‖
// EphemeralPubKey ‖ IV ‖ AuthTag ‖ PlaintextLength.
const SingleOverhead = 1 + identity.IDSize + 3 + EphemeralKeySize + IVSize + AuthTagSize + lengthFieldSize

// MultiBaseOverhead is the byte count of the multi-recipient header before
// the recipient table: EncType ‖ Version ‖ CipherSuite ‖ FormatTag ‖
// EphemeralPubKey ‖ IV ‖ AuthTag ‖ PlaintextLength ‖ RecipientCount.
const MultiBaseOverhead = 1 + 3 + EphemeralKeySize + IVSize + AuthTagSize + lengthFieldSize + recipientCountSize

var (
	ErrInvalidEncryptionType     = errors.New("ecies: invalid encryption type")
	ErrInvalidHeaderLength       = errors.New("ecies: invalid encryption header length")
	ErrInvalidEphemeralPublicKey = errors.New("ecies: invalid ephemeral public key")
	ErrInvalidIVLength           = errors.New("ecies: invalid IV length")
	ErrInvalidAuthTagLength      = errors.New("ecies: invalid auth tag length")
	ErrInvalidRecipientCount     = errors.New("ecies: invalid recipient count")
	ErrInvalidRecipientIDs       = errors.New("ecies: invalid recipient ids")
	ErrInvalidRecipientKeys      = errors.New("ecies: invalid recipient keys")
	ErrUnsupportedVersion        = errors.New("ecies: unsupported header version")
	ErrUnsupportedCipherSuite    = errors.New("ecies: unsupported cipher suite")
	ErrRecipientNotFound         = errors.New("ecies: recipient not found in recipient table")
)

// Overhead returns the fixed header size for the given encryption type and
// recipient count. This is the single source of truth for header
// boundaries; payload and padding offsets all derive from it.
func Overhead(t EncryptionType, recipients int) (int, error) {
	switch t {
	case EncryptionTypeSingle:
		return SingleOverhead, nil
	case EncryptionTypeMulti:
		if recipients < MinMultiRecipients || recipients > MaxRecipients {
			return 0, fmt.Errorf("%w: %d", ErrInvalidRecipientCount, recipients)
		}
		return MultiBaseOverhead + recipients*RecipientEntrySize, nil
	default:
		return 0, fmt.Errorf("%w: %d", ErrInvalidEncryptionType, byte(t))
	}
}

// RecipientEntry is one row of the multi-recipient wrapped-key table.
type RecipientEntry struct {
	ID         uuid.UUID
	KeyIV      [IVSize]byte
	KeyAuthTag [AuthTagSize]byte
	WrappedKey [WrappedKeySize]byte
}

// Header is the parsed form of an encryption header. RecipientID is only
// meaningful for the single layout, Recipients only for the multi layout.
type Header struct {
	Encryption         EncryptionType
	RecipientID        uuid.UUID
	Version            byte
	CipherSuite        byte
	FormatTag          byte
	EphemeralPublicKey [EphemeralKeySize]byte
	IV                 [IVSize]byte
	AuthTag            [AuthTagSize]byte
	PlaintextLength    uint64
	Recipients         []RecipientEntry
}

// Overhead returns the wire size of this header.
func (h *Header) Overhead() (int, error) {
	return Overhead(h.Encryption, len(h.Recipients))
}

// Encode serializes the header into its exact wire form.
func (h *Header) Encode() ([]byte, error) {
	size, err := h.Overhead()
	if err != nil {
		return nil, err
	}
	out := make([]byte, size)
	offset := 0
	out[offset] = byte(h.Encryption)
	offset++

	if h.Encryption == EncryptionTypeSingle {
		copy(out[offset:], h.RecipientID[:])
		offset += identity.IDSize
	}

	out[offset] = h.Version
	out[offset+1] = h.CipherSuite
	out[offset+2] = h.FormatTag
	offset += 3

	copy(out[offset:], h.EphemeralPublicKey[:])
	offset += EphemeralKeySize
	copy(out[offset:], h.IV[:])
	offset += IVSize
	copy(out[offset:], h.AuthTag[:])
	offset += AuthTagSize
	binary.BigEndian.PutUint64(out[offset:], h.PlaintextLength)
	offset += lengthFieldSize

	if h.Encryption == EncryptionTypeMulti {
		binary.BigEndian.PutUint16(out[offset:], uint16(len(h.Recipients)))
		offset += recipientCountSize
		for _, r := range h.Recipients {
			copy(out[offset:], r.ID[:])
			offset += identity.IDSize
			copy(out[offset:], r.KeyIV[:])
			offset += IVSize
			copy(out[offset:], r.KeyAuthTag[:])
			offset += AuthTagSize
			copy(out[offset:], r.WrappedKey[:])
			offset += WrappedKeySize
		}
	}

	if offset != size {
		return nil, fmt.Errorf("ecies: encoded %d header bytes, want %d", offset, size)
	}
	return out, nil
}

// ParseHeader decodes an encryption header from the front of data. Decode
// is strict: any length or field mismatch fails, nothing is silently
// truncated.
func ParseHeader(data []byte) (*Header, error) {
	if len(data) < 1 {
		return nil, ErrInvalidHeaderLength
	}
	h := &Header{Encryption: EncryptionType(data[0])}

	switch h.Encryption {
	case EncryptionTypeSingle:
		return parseSingleHeader(h, data)
	case EncryptionTypeMulti:
		return parseMultiHeader(h, data)
	default:
		return nil, fmt.Errorf("%w: %d", ErrInvalidEncryptionType, data[0])
	}
}

func parseSingleHeader(h *Header, data []byte) (*Header, error) {
	if len(data) < SingleOverhead {
		return nil, fmt.Errorf(
			"%w: need %d bytes, got %d", ErrInvalidHeaderLength, SingleOverhead, len(data),
		)
	}
	offset := 1
	copy(h.RecipientID[:], data[offset:offset+identity.IDSize])
	offset += identity.IDSize

	var err error
	offset, err = parseCommonFields(h, data, offset)
	if err != nil {
		return nil, err
	}
	_ = offset
	return h, nil
}

func parseMultiHeader(h *Header, data []byte) (*Header, error) {
	if len(data) < MultiBaseOverhead {
		return nil, fmt.Errorf(
			"%w: need %d bytes, got %d", ErrInvalidHeaderLength, MultiBaseOverhead, len(data),
		)
	}
	offset, err := parseCommonFields(h, data, 1)
	if err != nil {
		return nil, err
	}

	count := int(binary.BigEndian.Uint16(data[offset : offset+recipientCountSize]))
	offset += recipientCountSize
	if count < MinMultiRecipients {
		return nil, fmt.Errorf("%w: %d", ErrInvalidRecipientCount, count)
	}

	need := offset + count*RecipientEntrySize
	if len(data) < need {
		return nil, fmt.Errorf(
			"%w: recipient table needs %d bytes, got %d", ErrInvalidHeaderLength, need, len(data),
		)
	}

	seen := make(map[uuid.UUID]struct{}, count)
	h.Recipients = make([]RecipientEntry, count)
	for i := range h.Recipients {
		entry := &h.Recipients[i]
		copy(entry.ID[:], data[offset:offset+identity.IDSize])
		offset += identity.IDSize
		copy(entry.KeyIV[:], data[offset:offset+IVSize])
		offset += IVSize
		copy(entry.KeyAuthTag[:], data[offset:offset+AuthTagSize])
		offset += AuthTagSize
		copy(entry.WrappedKey[:], data[offset:offset+WrappedKeySize])
		offset += WrappedKeySize

		if _, dup := seen[entry.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate recipient %s", ErrInvalidRecipientIDs, entry.ID)
		}
		seen[entry.ID] = struct{}{}
	}
	return h, nil
}

// parseCommonFields decodes Version through PlaintextLength, shared by both
// layouts, and returns the offset past the length field.
func parseCommonFields(h *Header, data []byte, offset int) (int, error) {
	h.Version = data[offset]
	h.CipherSuite = data[offset+1]
	h.FormatTag = data[offset+2]
	offset += 3

	if h.Version != CurrentVersion {
		return 0, fmt.Errorf("%w: %d", ErrUnsupportedVersion, h.Version)
	}
	if h.CipherSuite != CipherSuiteAES256GCM {
		return 0, fmt.Errorf("%w: %d", ErrUnsupportedCipherSuite, h.CipherSuite)
	}
	if h.FormatTag != FormatWithLength {
		return 0, fmt.Errorf("ecies: unsupported format tag: %d", h.FormatTag)
	}

	copy(h.EphemeralPublicKey[:], data[offset:offset+EphemeralKeySize])
	offset += EphemeralKeySize
	if h.EphemeralPublicKey[0] != 0x02 && h.EphemeralPublicKey[0] != 0x03 {
		return 0, fmt.Errorf(
			"%w: bad point prefix %#x", ErrInvalidEphemeralPublicKey, h.EphemeralPublicKey[0],
		)
	}

	copy(h.IV[:], data[offset:offset+IVSize])
	offset += IVSize
	copy(h.AuthTag[:], data[offset:offset+AuthTagSize])
	offset += AuthTagSize
	h.PlaintextLength = binary.BigEndian.Uint64(data[offset : offset+lengthFieldSize])
	offset += lengthFieldSize
	return offset, nil
}
