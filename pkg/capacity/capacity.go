// Package capacity is the single source of payload-capacity math. Every
// layer that needs to know how many bytes or addresses fit in a block
// consults a Calculator instead of repeating overhead arithmetic.
package capacity

import (
	"github.com/brightchain/brightchain/pkg/block"
	"github.com/brightchain/brightchain/pkg/blocksize"
	"github.com/brightchain/brightchain/pkg/cbl"
	"github.com/brightchain/brightchain/pkg/checksum"
	"github.com/brightchain/brightchain/pkg/ecies"
)

// Calculator maps {blockSize, blockType, encryptionType, recipientCount}
// to available payload capacity in bytes.
type Calculator struct{}

var _ block.CapacityProvider = (*Calculator)(nil)

// NewCalculator returns a stateless capacity calculator.
func NewCalculator() *Calculator {
	return &Calculator{}
}

// Available returns the usable payload bytes of a block of the given
// size and type. For encrypted types the encryption header overhead for
// enc and recipients is subtracted; for plaintext list blocks the fixed
// list header is subtracted.
func (c *Calculator) Available(
	size blocksize.Size,
	typ block.Type,
	enc ecies.EncryptionType,
	recipients int,
) (int, error) {
	if !blocksize.Validate(int64(size)) {
		return 0, &blocksize.InvalidLengthError{Length: int64(size)}
	}

	switch typ {
	case block.TypeEncryptedOwnedData, block.TypeEncryptedConstituentBlockList:
		overhead, err := ecies.Overhead(enc, recipients)
		if err != nil {
			return 0, err
		}
		avail := size.Bytes() - overhead
		if avail < 0 {
			avail = 0
		}
		return avail, nil
	case block.TypeConstituentBlockList:
		return size.Bytes() - cbl.HeaderSize, nil
	case block.TypeRawData, block.TypeOwnedData, block.TypeOwnerFreeWhitened, block.TypeInput:
		return size.Bytes(), nil
	default:
		return 0, &block.InvalidBlockTypeError{Type: typ}
	}
}

// AvailableAddresses returns how many checksum addresses a list block of
// the given size can carry once the list header, and for sealed lists
// the encryption overhead, are accounted for. The result is rounded down
// to a multiple of tupleSize.
func (c *Calculator) AvailableAddresses(
	size blocksize.Size,
	encrypted bool,
	enc ecies.EncryptionType,
	recipients int,
	tupleSize int,
) (int, error) {
	if !encrypted {
		if !blocksize.Validate(int64(size)) {
			return 0, &blocksize.InvalidLengthError{Length: int64(size)}
		}
		return cbl.MaxAddressCount(size, tupleSize), nil
	}

	avail, err := c.Available(size, block.TypeEncryptedConstituentBlockList, enc, recipients)
	if err != nil {
		return 0, err
	}
	raw := (avail - cbl.HeaderSize) / checksum.Size
	if raw <= 0 {
		return 0, nil
	}
	return raw - raw%tupleSize, nil
}
