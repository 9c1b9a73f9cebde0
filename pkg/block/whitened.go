package block

import (
	"crypto/rand"
	"fmt"
	"io"
	"time"

	"github.com/brightchain/brightchain/pkg/blocksize"
	"github.com/brightchain/brightchain/pkg/checksum"
)

// WhitenedBlock is a block whose content is the XOR of source data with
// random whitener bytes. Neither the whitened block nor the whitener alone
// reveals anything about the source, which is what lets the owner's copy be
// deleted while the data stays reconstructable. Whitening is not
// encryption and carries no encrypt or sign capability.
type WhitenedBlock struct {
	RawBlock
}

// NewRandomWhitener produces a full-size block of cryptographically random
// bytes to pair with data during whitening.
func NewRandomWhitener(cs *checksum.Service, size blocksize.Size) (*WhitenedBlock, error) {
	if !blocksize.Validate(int64(size)) {
		return nil, &blocksize.InvalidLengthError{Length: int64(size)}
	}
	buf := make([]byte, size.Bytes())
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return nil, fmt.Errorf("block: generate whitener: %w", err)
	}
	return newWhitened(cs, size, buf)
}

// NewWhitenedBlock XOR-combines data with whitener bytes. Both inputs must
// be full block-size buffers of equal length.
func NewWhitenedBlock(
	cs *checksum.Service,
	size blocksize.Size,
	data []byte,
	whitener []byte,
) (*WhitenedBlock, error) {
	if len(data) != len(whitener) {
		return nil, &WhitenedError{
			Reason: fmt.Sprintf("data is %d bytes, whitener is %d", len(data), len(whitener)),
		}
	}
	if len(data) != size.Bytes() {
		return nil, &WhitenedError{
			Reason: fmt.Sprintf("inputs are %d bytes, block size is %d", len(data), size.Bytes()),
		}
	}
	return newWhitened(cs, size, xorBytes(data, whitener))
}

func newWhitened(cs *checksum.Service, size blocksize.Size, buf []byte) (*WhitenedBlock, error) {
	raw, err := NewRawBlockComputed(
		cs, TypeOwnerFreeWhitened, DataTypeRaw, size, buf, time.Now(),
	)
	if err != nil {
		return nil, err
	}
	return &WhitenedBlock{RawBlock: *raw}, nil
}

// CanEncrypt is always false: whitening must never be presented as
// encryption.
func (b *WhitenedBlock) CanEncrypt() bool { return false }

// CanSign is always false for whitened blocks.
func (b *WhitenedBlock) CanSign() bool { return false }
