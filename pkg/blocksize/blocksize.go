// Package blocksize defines the closed set of block sizes BrightChain
// operates on. Every byte length claimed as a block size must equal exactly
// one of these values; Unknown is an error sentinel, never a valid size.
package blocksize

import "fmt"

// Size is one of the fixed power-of-two block sizes.
type Size int64

const (
	Unknown Size = 0
	Message Size = 512
	Tiny    Size = 1024
	Small   Size = 4096
	Medium  Size = 1 << 20 // 1 MiB
	Large   Size = 1 << 26 // 64 MiB
	Huge    Size = 1 << 28 // 256 MiB
)

// sizes is the authoritative table, ascending. Unknown deliberately absent.
var sizes = []Size{Message, Tiny, Small, Medium, Large, Huge}

// Sizes returns the valid block sizes in ascending order.
func Sizes() []Size {
	out := make([]Size, len(sizes))
	copy(out, sizes)
	return out
}

func (s Size) String() string {
	switch s {
	case Message:
		return "Message"
	case Tiny:
		return "Tiny"
	case Small:
		return "Small"
	case Medium:
		return "Medium"
	case Large:
		return "Large"
	case Huge:
		return "Huge"
	default:
		return "Unknown"
	}
}

// Bytes returns the size as an int byte count.
func (s Size) Bytes() int {
	return int(s)
}

// InvalidLengthError reports a byte length that is not a valid block size.
type InvalidLengthError struct {
	Length int64
}

func (e *InvalidLengthError) Error() string {
	return fmt.Sprintf("blocksize: %d is not a valid block size", e.Length)
}

// FromLength maps a byte length to its Size by exact match against the
// table. No match is an error; callers must never treat Unknown as a
// storage size.
func FromLength(n int64) (Size, error) {
	for _, s := range sizes {
		if int64(s) == n {
			return s, nil
		}
	}
	return Unknown, &InvalidLengthError{Length: n}
}

// Validate reports whether n is one of the table's lengths. The Unknown
// sentinel is excluded.
func Validate(n int64) bool {
	_, err := FromLength(n)
	return err == nil
}

// NextLargest returns the smallest table entry >= n, or Unknown if no size
// fits. Used to size a CBL block to fit a required address count.
func NextLargest(n int64) Size {
	if n < 0 {
		return Unknown
	}
	for _, s := range sizes {
		if int64(s) >= n {
			return s
		}
	}
	return Unknown
}
