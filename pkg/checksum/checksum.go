// Package checksum computes the SHA3-512 content digests that serve as
// block addresses throughout BrightChain. Two blocks with equal checksums
// are considered identical content.
package checksum

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/sha3"
)

// Size is the length of a checksum in bytes.
const Size = 64

// Checksum is a SHA3-512 digest over a block's bytes. It is the
// content-derived identity of the block.
type Checksum [Size]byte

// FromBytes converts a raw byte slice into a Checksum. The slice must be
// exactly Size bytes long.
func FromBytes(b []byte) (Checksum, error) {
	var c Checksum
	if len(b) != Size {
		return c, fmt.Errorf("checksum: need %d bytes, got %d", Size, len(b))
	}
	copy(c[:], b)
	return c, nil
}

func (c Checksum) String() string {
	return hex.EncodeToString(c[:])
}

func (c Checksum) Equal(other Checksum) bool {
	return bytes.Equal(c[:], other[:])
}

// MismatchError reports a checksum that did not match its recomputation.
// It always carries both values so callers can diagnose without re-deriving
// them.
type MismatchError struct {
	Expected Checksum
	Computed Checksum
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf(
		"checksum mismatch: expected %s, computed %s",
		e.Expected, e.Computed,
	)
}

// Service computes and validates checksums. It is stateless and safe for
// concurrent use; it exists as a type so callers can inject it explicitly
// instead of reaching for package globals.
type Service struct{}

func NewService() *Service {
	return &Service{}
}

// Sum computes the SHA3-512 digest of data. Deterministic: the same input
// always yields the same output.
func (s *Service) Sum(data []byte) Checksum {
	return Checksum(sha3.Sum512(data))
}

// SumReader computes the digest of everything readable from r. It produces
// byte-identical output to Sum for the same logical content, so large
// blocks need not be materialized to verify. Cancelling ctx abandons the
// in-progress digest with no side effects.
func (s *Service) SumReader(ctx context.Context, r io.Reader) (Checksum, error) {
	var c Checksum
	h := sha3.New512()
	buf := make([]byte, 64*1024)
	for {
		if err := ctx.Err(); err != nil {
			return c, err
		}
		n, err := r.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return c, fmt.Errorf("checksum: read stream: %w", err)
		}
	}
	copy(c[:], h.Sum(nil))
	return c, nil
}

// Validate reports whether data hashes to expected. Any length or content
// mismatch is false; it never fails for valid byte input.
func (s *Service) Validate(data []byte, expected Checksum) bool {
	return s.Sum(data).Equal(expected)
}
