package block

import (
	"context"
	"fmt"

	"github.com/brightchain/brightchain/pkg/checksum"
)

const (
	// DefaultTupleSize is the system tuple size: one data block plus its
	// whiteners, or a CBL and its siblings.
	DefaultTupleSize = 3
	MinTupleSize     = 2
	MaxTupleSize     = 10
)

// Tuple is a fixed-size ordered group of same-size blocks combined via
// XOR, used both for whitener sets and for CBL sibling groups.
type Tuple struct {
	blocks []Block
}

// NewTuple groups blocks into a tuple. The member count must lie within
// the allowed tuple range and every member must share a block size.
func NewTuple(blocks ...Block) (*Tuple, error) {
	if len(blocks) < MinTupleSize || len(blocks) > MaxTupleSize {
		return nil, &InvalidTupleSizeError{Size: len(blocks)}
	}
	size := blocks[0].Size()
	for _, b := range blocks[1:] {
		if b.Size() != size {
			return nil, ErrBlockSizesDoNotMatch
		}
	}
	return &Tuple{blocks: blocks}, nil
}

// FetchFunc resolves a block by its checksum address. It is supplied by an
// external collaborator, typically a disk or network store.
type FetchFunc func(ctx context.Context, id checksum.Checksum) (Block, error)

// TupleFromIDs resolves exactly tupleSize addresses via fetch and groups
// the results. A failure or missing block for any single member aborts the
// whole operation; an incomplete tuple is never returned.
func TupleFromIDs(
	ctx context.Context,
	tupleSize int,
	ids []checksum.Checksum,
	fetch FetchFunc,
) (*Tuple, error) {
	if tupleSize < MinTupleSize || tupleSize > MaxTupleSize {
		return nil, &InvalidTupleSizeError{Size: tupleSize}
	}
	if len(ids) != tupleSize {
		return nil, &InvalidTupleSizeError{Size: len(ids)}
	}

	blocks := make([]Block, len(ids))
	for i, id := range ids {
		b, err := fetch(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("block: fetch tuple member %s: %w", id, err)
		}
		blocks[i] = b
	}
	return NewTuple(blocks...)
}

// Blocks returns the tuple members in order.
func (t *Tuple) Blocks() []Block {
	return t.blocks
}

// Len returns the member count.
func (t *Tuple) Len() int {
	return len(t.blocks)
}

// XOR folds every member's full buffer together position-wise, yielding
// the reconstructed block. Member sizes were checked at construction, so
// the fold never truncates or pads.
func (t *Tuple) XOR(cs *checksum.Service) (*RawBlock, error) {
	acc, err := XOR(cs, t.blocks[0], t.blocks[1])
	if err != nil {
		return nil, err
	}
	for _, b := range t.blocks[2:] {
		acc, err = XOR(cs, acc, b)
		if err != nil {
			return nil, err
		}
	}
	return acc, nil
}
