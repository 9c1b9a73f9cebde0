// Package blockservice is the orchestration driver over the block layer:
// it sizes and splits files, whitens and encrypts blocks, and assembles
// constituent block lists.
package blockservice

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	chunker "github.com/ipfs/boxo/chunker"
	"github.com/sirupsen/logrus"

	"github.com/brightchain/brightchain/pkg/block"
	"github.com/brightchain/brightchain/pkg/blocksize"
	"github.com/brightchain/brightchain/pkg/cbl"
	"github.com/brightchain/brightchain/pkg/checksum"
	"github.com/brightchain/brightchain/pkg/ecies"
	"github.com/brightchain/brightchain/pkg/identity"
	"github.com/brightchain/brightchain/pkg/store"
	"github.com/brightchain/brightchain/pkg/workerpool"
)

// Config wires the service's collaborators. Checksums, Store and Workers
// are required; TupleSize defaults to the system tuple size and Pool to
// "primary".
type Config struct {
	Checksums *checksum.Service
	Capacity  block.CapacityProvider
	Store     store.Store
	Workers   *workerpool.Pool
	Logger    *logrus.Logger
	TupleSize int
	Pool      string
}

// Service drives block-layer operations for whole files.
type Service struct {
	cs        *checksum.Service
	cap       block.CapacityProvider
	store     store.Store
	workers   *workerpool.Pool
	log       *logrus.Logger
	tupleSize int
	pool      string
}

func New(cfg Config) (*Service, error) {
	if cfg.Checksums == nil {
		return nil, fmt.Errorf("blockservice: checksum service is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("blockservice: store is required")
	}
	if cfg.Workers == nil {
		return nil, fmt.Errorf("blockservice: worker pool is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.TupleSize == 0 {
		cfg.TupleSize = block.DefaultTupleSize
	}
	if cfg.TupleSize < block.MinTupleSize || cfg.TupleSize > block.MaxTupleSize {
		return nil, &block.InvalidTupleSizeError{Size: cfg.TupleSize}
	}
	if cfg.Pool == "" {
		cfg.Pool = "primary"
	}
	return &Service{
		cs:        cfg.Checksums,
		cap:       cfg.Capacity,
		store:     cfg.Store,
		workers:   cfg.Workers,
		log:       cfg.Logger,
		tupleSize: cfg.TupleSize,
		pool:      cfg.Pool,
	}, nil
}

// Pool is the store pool this service reads and writes.
func (s *Service) Pool() string { return s.pool }

// BlockSizeForData maps a byte length to the smallest block size whose
// encrypted capacity holds it. Thresholds are derived from the header
// overhead, never hard-coded. Negative or oversized lengths yield
// Unknown.
func BlockSizeForData(length int64) blocksize.Size {
	if length < 0 {
		return blocksize.Unknown
	}
	for _, size := range blocksize.Sizes() {
		if length <= int64(size.Bytes()-ecies.SingleOverhead) {
			return size
		}
	}
	return blocksize.Unknown
}

// BreakFileIntoBlocks splits data into size-length chunks; the last chunk
// holds the remainder unpadded. Empty input yields zero chunks.
func BreakFileIntoBlocks(data []byte, size blocksize.Size) ([][]byte, error) {
	if !blocksize.Validate(int64(size)) {
		return nil, &blocksize.InvalidLengthError{Length: int64(size)}
	}
	if len(data) == 0 {
		return nil, nil
	}

	splitter := chunker.NewSizeSplitter(bytes.NewReader(data), int64(size.Bytes()))
	var chunks [][]byte
	for {
		chunk, err := splitter.NextBytes()
		if err == io.EOF {
			return chunks, nil
		}
		if err != nil {
			return nil, fmt.Errorf("blockservice: split file: %w", err)
		}
		chunks = append(chunks, chunk)
	}
}

// XORBlockWithWhiteners XORs one block against every whitener in
// sequence.
func (s *Service) XORBlockWithWhiteners(b block.Block, whiteners []*block.WhitenedBlock) (*block.RawBlock, error) {
	if len(whiteners) == 0 {
		return nil, ErrNoWhitenersProvided
	}
	out, err := block.XOR(s.cs, b, whiteners[0])
	if err != nil {
		return nil, err
	}
	for _, w := range whiteners[1:] {
		out, err = block.XOR(s.cs, out, w)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// XORBlocksWithWhitenersRoundRobin XORs block i with whitener i modulo
// the whitener count. The assignment is deterministic so the same inputs
// always reconstruct the same outputs.
func (s *Service) XORBlocksWithWhitenersRoundRobin(
	blocks []block.Block,
	whiteners []*block.WhitenedBlock,
) ([]*block.RawBlock, error) {
	if len(whiteners) == 0 {
		return nil, ErrNoWhitenersProvided
	}
	if len(blocks) == 0 {
		return nil, ErrEmptyBlocksArray
	}

	room := s.workers.NewRoom()
	for i, b := range blocks {
		b, w := b, whiteners[i%len(whiteners)]
		room.Submit(func() (interface{}, error) {
			return block.XOR(s.cs, b, w)
		})
	}
	results, err := room.Wait()
	if err != nil {
		return nil, err
	}

	out := make([]*block.RawBlock, len(results))
	for i, r := range results {
		out[i] = r.(*block.RawBlock)
	}
	return out, nil
}

// Encrypt seals a block for the given recipients. Blocks whose type
// forbids encryption are rejected with a descriptive error.
func (s *Service) Encrypt(b block.Block, recipients ...*identity.Member) (*block.EncryptedBlock, error) {
	var eb *block.EphemeralBlock
	switch v := b.(type) {
	case *block.EphemeralBlock:
		eb = v
	case *cbl.Block:
		eb = v.EphemeralBlock
	default:
		return nil, &CannotEncryptError{Type: b.Type(), Reason: "type does not support encryption"}
	}
	if eb.Encrypted() {
		return nil, &CannotEncryptError{Type: b.Type(), Reason: "already encrypted"}
	}

	newType := block.TypeEncryptedOwnedData
	if eb.Type() == block.TypeConstituentBlockList {
		newType = block.TypeEncryptedConstituentBlockList
	}
	return block.Encrypt(s.cs, eb, newType, s.cap, recipients...)
}

// Decrypt unseals an encrypted block with member's private key.
func (s *Service) Decrypt(b block.Block, member *identity.Member) (*block.EphemeralBlock, error) {
	enc, ok := b.(*block.EncryptedBlock)
	if !ok {
		return nil, &CannotDecryptError{Type: b.Type()}
	}

	newType := block.TypeOwnedData
	if enc.Type() == block.TypeEncryptedConstituentBlockList {
		newType = block.TypeConstituentBlockList
	}
	return enc.Decrypt(member, newType)
}

// EncryptBlocks seals every block for the same recipients on the worker
// pool. Result i corresponds to input i.
func (s *Service) EncryptBlocks(
	blocks []*block.EphemeralBlock,
	recipients ...*identity.Member,
) ([]*block.EncryptedBlock, error) {
	if len(blocks) == 0 {
		return nil, ErrEmptyBlocksArray
	}

	room := s.workers.NewRoom()
	for _, b := range blocks {
		b := b
		room.Submit(func() (interface{}, error) {
			return s.Encrypt(b, recipients...)
		})
	}
	results, err := room.Wait()
	if err != nil {
		return nil, err
	}

	out := make([]*block.EncryptedBlock, len(results))
	for i, r := range results {
		out[i] = r.(*block.EncryptedBlock)
	}
	return out, nil
}

// StoreBlocks persists every persistable block into the service's pool
// on the worker pool and returns the stored addresses in input order.
func (s *Service) StoreBlocks(ctx context.Context, blocks []block.Block) ([]checksum.Checksum, error) {
	if len(blocks) == 0 {
		return nil, ErrEmptyBlocksArray
	}

	room := s.workers.NewRoom()
	for _, b := range blocks {
		b := b
		room.Submit(func() (interface{}, error) {
			if !b.CanPersist() {
				return nil, fmt.Errorf("blockservice: %s block cannot be persisted", b.Type())
			}
			if err := s.store.Put(ctx, s.pool, b.Checksum(), b.Buffer()); err != nil {
				return nil, err
			}
			return b.Checksum(), nil
		})
	}
	results, err := room.Wait()
	if err != nil {
		return nil, err
	}

	ids := make([]checksum.Checksum, len(results))
	for i, r := range results {
		ids[i] = r.(checksum.Checksum)
	}
	return ids, nil
}

// FetchBlock resolves one raw block from the service's pool.
func (s *Service) FetchBlock(ctx context.Context, id checksum.Checksum) (block.Block, error) {
	data, err := s.store.Get(ctx, s.pool, id)
	if err != nil {
		return nil, err
	}
	size, err := blocksize.FromLength(int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("blockservice: stored block %s has invalid length %d", id, len(data))
	}
	return block.NewRawBlock(s.cs, block.TypeRawData, block.DataTypeRaw, size, data, id, time.Now())
}

// CreateAndStoreCBL stores blocks into the pool and builds a signed list
// over their addresses. All blocks must share one size; totalLength is
// the original file length the list describes.
func (s *Service) CreateAndStoreCBL(
	ctx context.Context,
	blocks []block.Block,
	creator *identity.Member,
	totalLength uint64,
) (*cbl.Block, error) {
	if len(blocks) == 0 {
		return nil, ErrEmptyBlocksArray
	}
	size := blocks[0].Size()
	for _, b := range blocks[1:] {
		if b.Size() != size {
			return nil, fmt.Errorf("%w: %s and %s", ErrBlockSizeMismatch, size, b.Size())
		}
	}
	if len(blocks)%s.tupleSize != 0 {
		return nil, &cbl.InvalidAddressCountError{Count: len(blocks), TupleSize: s.tupleSize}
	}

	ids, err := s.StoreBlocks(ctx, blocks)
	if err != nil {
		return nil, err
	}

	listSize := cbl.FileSizeToBlockSize(int64(totalLength), s.tupleSize)
	if listSize == blocksize.Unknown {
		return nil, &blocksize.InvalidLengthError{Length: int64(totalLength)}
	}
	if max := cbl.MaxAddressCount(listSize, s.tupleSize); len(ids) > max {
		listSize = sizeForAddressCount(len(ids), s.tupleSize)
		if listSize == blocksize.Unknown {
			return nil, &cbl.AddressCountExceedsCapacityError{Count: len(ids), Capacity: max}
		}
	}

	list, err := cbl.New(s.cs, creator, time.Now(), totalLength, ids, listSize, s.tupleSize)
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{
		"addresses": list.AddressCount(),
		"listSize":  listSize.String(),
		"pool":      s.pool,
	}).Info("constituent block list created")
	return list, nil
}

// sizeForAddressCount picks the smallest block size whose list capacity
// covers count addresses.
func sizeForAddressCount(count, tupleSize int) blocksize.Size {
	for _, size := range blocksize.Sizes() {
		if cbl.MaxAddressCount(size, tupleSize) >= count {
			return size
		}
	}
	return blocksize.Unknown
}
