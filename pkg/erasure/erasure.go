// Package erasure splits stored blocks into Reed-Solomon shards so a
// pool can survive losing members without losing blocks. Shards are
// checksum-addressed like blocks and carry enough metadata to
// reconstruct without external state.
package erasure

import (
	"bytes"
	"fmt"

	rs "github.com/klauspost/reedsolomon"

	"github.com/brightchain/brightchain/pkg/block"
	"github.com/brightchain/brightchain/pkg/checksum"
)

// Shard is one erasure-coded fragment of a block.
type Shard struct {
	// ID addresses the shard itself: checksum over the block ID, the
	// shard geometry and the payload.
	ID checksum.Checksum
	// BlockID is the checksum of the source block.
	BlockID      checksum.Checksum
	Index        uint8
	DataShards   uint8
	ParityShards uint8
	Payload      []byte
	OriginalSize uint64
}

// EncodeBlock splits a block's full buffer into k data shards plus p
// parity shards. Any k of the k+p shards reconstruct the block.
func EncodeBlock(cs *checksum.Service, b block.Block, k, p uint8) ([]Shard, error) {
	if k == 0 {
		return nil, fmt.Errorf("erasure: data shard count must be > 0")
	}
	if int(k)+int(p) > 255 {
		return nil, fmt.Errorf("erasure: %d shards exceed the index range", int(k)+int(p))
	}

	data := b.Buffer()
	enc, err := rs.New(int(k), int(p))
	if err != nil {
		return nil, fmt.Errorf("erasure: new encoder: %w", err)
	}
	shards, err := enc.Split(data)
	if err != nil {
		return nil, fmt.Errorf("erasure: split: %w", err)
	}
	if err := enc.Encode(shards); err != nil {
		return nil, fmt.Errorf("erasure: encode parity: %w", err)
	}

	blockID := b.Checksum()
	n := int(k) + int(p)
	out := make([]Shard, 0, n)
	for i := 0; i < n; i++ {
		payload := make([]byte, len(shards[i]))
		copy(payload, shards[i])

		out = append(out, Shard{
			ID:           shardID(cs, blockID, uint8(i), k, p, payload),
			BlockID:      blockID,
			Index:        uint8(i),
			DataShards:   k,
			ParityShards: p,
			Payload:      payload,
			OriginalSize: uint64(len(data)),
		})
	}
	return out, nil
}

// DecodeBlock reconstructs the block bytes from at least k shards and
// verifies them against the recorded block checksum.
func DecodeBlock(cs *checksum.Service, shards []Shard) ([]byte, error) {
	if len(shards) == 0 {
		return nil, fmt.Errorf("erasure: no shards")
	}

	first := shards[0]
	k, p := int(first.DataShards), int(first.ParityShards)
	n := k + p
	if k <= 0 {
		return nil, fmt.Errorf("erasure: invalid shard geometry %d+%d", k, p)
	}

	enc, err := rs.New(k, p)
	if err != nil {
		return nil, fmt.Errorf("erasure: new encoder: %w", err)
	}

	// Nil entry means missing shard.
	buf := make([][]byte, n)
	for _, s := range shards {
		if !s.BlockID.Equal(first.BlockID) {
			return nil, fmt.Errorf("erasure: shard %d belongs to block %s, want %s",
				s.Index, s.BlockID, first.BlockID)
		}
		if s.DataShards != first.DataShards || s.ParityShards != first.ParityShards {
			return nil, fmt.Errorf("erasure: shard %d has mismatched geometry", s.Index)
		}
		if int(s.Index) >= n {
			return nil, fmt.Errorf("erasure: shard index %d outside %d shards", s.Index, n)
		}
		if got := shardID(cs, s.BlockID, s.Index, s.DataShards, s.ParityShards, s.Payload); !got.Equal(s.ID) {
			return nil, &checksum.MismatchError{Expected: s.ID, Computed: got}
		}
		payload := make([]byte, len(s.Payload))
		copy(payload, s.Payload)
		buf[s.Index] = payload
	}

	if err := enc.Reconstruct(buf); err != nil {
		return nil, fmt.Errorf("erasure: reconstruct: %w", err)
	}

	var out bytes.Buffer
	if err := enc.Join(&out, buf, int(first.OriginalSize)); err != nil {
		return nil, fmt.Errorf("erasure: join: %w", err)
	}
	data := out.Bytes()

	if got := cs.Sum(data); !got.Equal(first.BlockID) {
		return nil, &checksum.MismatchError{Expected: first.BlockID, Computed: got}
	}
	return data, nil
}

// shardID derives the shard address from the block ID, the shard
// geometry and the payload, so a tampered shard never matches its ID.
func shardID(cs *checksum.Service, blockID checksum.Checksum, index, k, p uint8, payload []byte) checksum.Checksum {
	var h bytes.Buffer
	h.Write(blockID[:])
	h.WriteByte(index)
	h.WriteByte(k)
	h.WriteByte(p)
	h.Write(payload)
	return cs.Sum(h.Bytes())
}
