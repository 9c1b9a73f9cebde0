package blockservice

import (
	"errors"
	"fmt"

	"github.com/brightchain/brightchain/pkg/block"
)

var (
	// ErrNoWhitenersProvided is returned by XOR operations given an
	// empty whitener list; they never pass data through unmodified.
	ErrNoWhitenersProvided = errors.New("blockservice: no whiteners provided")

	// ErrEmptyBlocksArray is returned when a list operation receives
	// zero blocks.
	ErrEmptyBlocksArray = errors.New("blockservice: empty blocks array")

	// ErrBlockSizeMismatch is returned when an input set mixes block
	// sizes.
	ErrBlockSizeMismatch = errors.New("blockservice: input blocks have mixed sizes")
)

// CannotEncryptError reports a block whose type does not support
// encryption, or whose payload leaves no room for the header.
type CannotEncryptError struct {
	Type   block.Type
	Reason string
}

func (e *CannotEncryptError) Error() string {
	return fmt.Sprintf("blockservice: cannot encrypt %s block: %s", e.Type, e.Reason)
}

// CannotDecryptError reports a block that holds no ciphertext.
type CannotDecryptError struct {
	Type block.Type
}

func (e *CannotDecryptError) Error() string {
	return fmt.Sprintf("blockservice: cannot decrypt %s block: no ciphertext", e.Type)
}
