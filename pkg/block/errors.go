package block

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrDataCannotBeEmpty rejects empty payloads for block types that
	// require content.
	ErrDataCannotBeEmpty = errors.New("block: data cannot be empty")

	// ErrDataBufferTruncated rejects buffers shorter than the declared
	// block size.
	ErrDataBufferTruncated = errors.New("block: data buffer is truncated")

	// ErrBlockSizesDoNotMatch rejects XOR and tuple operations across
	// blocks of different sizes.
	ErrBlockSizesDoNotMatch = errors.New("block: block sizes do not match")
)

// DataLengthExceedsCapacityError reports data that cannot fit the declared
// block size or capacity.
type DataLengthExceedsCapacityError struct {
	Length   int
	Capacity int
}

func (e *DataLengthExceedsCapacityError) Error() string {
	return fmt.Sprintf(
		"block: data length %d exceeds capacity %d", e.Length, e.Capacity,
	)
}

// FutureCreationDateError reports a creation timestamp in the future. The
// timestamp is never clamped.
type FutureCreationDateError struct {
	Date time.Time
}

func (e *FutureCreationDateError) Error() string {
	return fmt.Sprintf("block: creation date %s is in the future", e.Date)
}

// InvalidBlockTypeError reports a block type that is not valid for the
// attempted operation.
type InvalidBlockTypeError struct {
	Type Type
}

func (e *InvalidBlockTypeError) Error() string {
	return fmt.Sprintf("block: invalid block type %s", e.Type)
}

// InvalidTupleSizeError reports a tuple member count outside the allowed
// range, or not matching the requested tuple size.
type InvalidTupleSizeError struct {
	Size int
}

func (e *InvalidTupleSizeError) Error() string {
	return fmt.Sprintf(
		"block: invalid tuple size %d (want %d..%d)", e.Size, MinTupleSize, MaxTupleSize,
	)
}

// WhitenedError reports a whitening input violation.
type WhitenedError struct {
	Reason string
}

func (e *WhitenedError) Error() string {
	return "block: whitening: " + e.Reason
}
