// Package brightchain is a content-addressed, block-oriented encrypted
// storage substrate. Files are split into fixed-size blocks, whitened
// with random blocks for owner-free storage, optionally encrypted for
// one or many recipients, and indexed by a signed constituent block
// list.
package brightchain

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/brightchain/brightchain/pkg/block"
	"github.com/brightchain/brightchain/pkg/blockservice"
	"github.com/brightchain/brightchain/pkg/blocksize"
	"github.com/brightchain/brightchain/pkg/capacity"
	"github.com/brightchain/brightchain/pkg/cbl"
	"github.com/brightchain/brightchain/pkg/checksum"
	"github.com/brightchain/brightchain/pkg/identity"
	"github.com/brightchain/brightchain/pkg/store"
	"github.com/brightchain/brightchain/pkg/workerpool"
)

// BrightChain is the main node handle. It owns the block store, the
// worker pool and the block service, and tears them down on Close.
type BrightChain struct {
	log     *logrus.Logger
	config  Config
	cs      *checksum.Service
	store   store.Store
	workers *workerpool.Pool
	svc     *blockservice.Service
}

// New opens a node from config. With an empty StorePath blocks live in
// memory only.
func New(cfg Config) (*BrightChain, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}

	var blockStore store.Store
	if cfg.StorePath == "" {
		blockStore = store.NewMemoryStore()
	} else {
		blockStore, err = store.NewBadgerStore(store.BadgerConfig{
			Path:             cfg.StorePath,
			MinimumFreeSpace: cfg.MinimumFreeGB,
			Logger:           cfg.Logger,
		})
		if err != nil {
			return nil, err
		}
	}

	cs := checksum.NewService()
	workers := workerpool.New(workerpool.Config{Workers: cfg.Workers})
	svc, err := blockservice.New(blockservice.Config{
		Checksums: cs,
		Capacity:  capacity.NewCalculator(),
		Store:     blockStore,
		Workers:   workers,
		Logger:    cfg.Logger,
		TupleSize: cfg.TupleSize,
		Pool:      cfg.Pool,
	})
	if err != nil {
		workers.Close()
		blockStore.Close()
		return nil, err
	}

	return &BrightChain{
		log:     cfg.Logger,
		config:  cfg,
		cs:      cs,
		store:   blockStore,
		workers: workers,
		svc:     svc,
	}, nil
}

// Service exposes the block service for callers that need block-level
// operations directly.
func (bc *BrightChain) Service() *blockservice.Service { return bc.svc }

// Store exposes the underlying block store.
func (bc *BrightChain) Store() store.Store { return bc.store }

// Checksums exposes the checksum service.
func (bc *BrightChain) Checksums() *checksum.Service { return bc.cs }

// StoreFile splits data into blocks, whitens each into a tuple of one
// stored block plus random whiteners, persists the tuples, and returns
// the signed list indexing them. The creator signs the list and must
// hold a private key.
func (bc *BrightChain) StoreFile(
	ctx context.Context,
	data []byte,
	creator *identity.Member,
) (*cbl.Block, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("brightchain: cannot store an empty file")
	}

	size := blockservice.BlockSizeForData(int64(len(data)))
	if size == blocksize.Unknown {
		// Too big for one block; use the largest size and many blocks.
		size = blocksize.Huge
	}
	if max := bc.config.MaxBlockSize; max > 0 && int64(size) > max {
		size = largestSizeWithin(max)
		if size == blocksize.Unknown {
			return nil, fmt.Errorf("brightchain: maxBlockSize %d is below the smallest block size", max)
		}
	}
	chunks, err := blockservice.BreakFileIntoBlocks(data, size)
	if err != nil {
		return nil, err
	}

	tupleSize := bc.config.TupleSize
	toStore := make([]block.Block, 0, len(chunks)*tupleSize)
	for i, chunk := range chunks {
		tuple, err := bc.whitenChunk(chunk, size, creator)
		if err != nil {
			return nil, fmt.Errorf("brightchain: whiten block %d: %w", i, err)
		}
		toStore = append(toStore, tuple...)
	}

	list, err := bc.svc.CreateAndStoreCBL(ctx, toStore, creator, uint64(len(data)))
	if err != nil {
		return nil, err
	}
	bc.log.WithFields(logrus.Fields{
		"bytes":     len(data),
		"blockSize": size.String(),
		"tuples":    len(chunks),
	}).Info("file stored")
	return list, nil
}

// largestSizeWithin picks the biggest block size not exceeding max.
func largestSizeWithin(max int64) blocksize.Size {
	chosen := blocksize.Unknown
	for _, s := range blocksize.Sizes() {
		if int64(s) > max {
			break
		}
		chosen = s
	}
	return chosen
}

// whitenChunk pads a chunk to the block size and splits it into a
// stored block plus tupleSize-1 whiteners. XOR of the whole tuple
// restores the padded chunk.
func (bc *BrightChain) whitenChunk(
	chunk []byte,
	size blocksize.Size,
	creator *identity.Member,
) ([]block.Block, error) {
	padded, err := block.NewEphemeralBlock(
		bc.cs, block.TypeOwnedData, block.DataTypeRaw, size, chunk, creator, time.Now(),
	)
	if err != nil {
		return nil, err
	}

	whiteners := make([]*block.WhitenedBlock, bc.config.TupleSize-1)
	for i := range whiteners {
		whiteners[i], err = block.NewRandomWhitener(bc.cs, size)
		if err != nil {
			return nil, err
		}
	}

	stored, err := block.NewWhitenedBlock(bc.cs, size, padded.Buffer(), whiteners[0].Buffer())
	if err != nil {
		return nil, err
	}
	var storedBlock block.Block = stored
	for _, w := range whiteners[1:] {
		storedBlock, err = block.XOR(bc.cs, storedBlock, w)
		if err != nil {
			return nil, err
		}
	}

	tuple := make([]block.Block, 0, bc.config.TupleSize)
	tuple = append(tuple, storedBlock)
	for _, w := range whiteners {
		tuple = append(tuple, w)
	}
	return tuple, nil
}

// RetrieveFile resolves every tuple the list references, XOR-combines
// each back into its padded chunk, and reassembles the original bytes.
func (bc *BrightChain) RetrieveFile(ctx context.Context, list *cbl.Block) ([]byte, error) {
	tuples, err := list.HandleTuples(ctx, bc.svc.FetchBlock, nil)
	if err != nil {
		return nil, err
	}

	var out bytes.Buffer
	for _, t := range tuples {
		chunk, err := t.XOR(bc.cs)
		if err != nil {
			return nil, err
		}
		out.Write(chunk.Buffer())
	}

	length := list.OriginalDataLength()
	if uint64(out.Len()) < length {
		return nil, fmt.Errorf("brightchain: reassembled %d bytes, list claims %d", out.Len(), length)
	}
	return out.Bytes()[:length], nil
}

// VerifyFile checks that every address the list references is present
// in the node's pool without fetching block contents.
func (bc *BrightChain) VerifyFile(ctx context.Context, list *cbl.Block) error {
	for _, addr := range list.Addresses() {
		ok, err := bc.store.Has(ctx, bc.svc.Pool(), addr)
		if err != nil {
			return err
		}
		if !ok {
			return &cbl.PoolIntegrityError{Pool: bc.svc.Pool(), Address: addr}
		}
	}
	return nil
}

// Close shuts the worker pool down and closes the block store.
func (bc *BrightChain) Close() error {
	bc.workers.Close()
	return bc.store.Close()
}
