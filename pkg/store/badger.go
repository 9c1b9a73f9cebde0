package store

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"
	"github.com/shirou/gopsutil/disk"
	"github.com/sirupsen/logrus"
	"github.com/ulikunitz/xz"

	"github.com/brightchain/brightchain/pkg/checksum"
)

// BadgerConfig configures an on-disk block store.
type BadgerConfig struct {
	Path string
	// MinimumFreeSpace in GB; opening fails below this. Zero disables
	// the check.
	MinimumFreeSpace int
	Logger           *logrus.Logger
}

// BadgerStore keeps blocks in a badger key-value database. Keys are
// pool ‖ 0x00 ‖ checksum.
type BadgerStore struct {
	config       BadgerConfig
	db           *badger.DB
	log          *logrus.Logger
	readCounter  uint64
	writeCounter uint64
}

var _ Store = (*BadgerStore)(nil)

// NewBadgerStore opens the database at config.Path, verifying the volume
// has enough free space first.
func NewBadgerStore(config BadgerConfig) (*BadgerStore, error) {
	if config.Logger == nil {
		config.Logger = logrus.New()
	}
	if config.Path == "" {
		return nil, fmt.Errorf("store: path is required")
	}

	if config.MinimumFreeSpace > 0 {
		usage, err := disk.Usage(config.Path)
		if err != nil {
			return nil, fmt.Errorf("store: check free space on %s: %w", config.Path, err)
		}
		freeGB := usage.Free / (1 << 30)
		config.Logger.WithFields(logrus.Fields{
			"path":   config.Path,
			"freeGB": freeGB,
			"usedGB": usage.Used / (1 << 30),
		}).Info("block store volume usage")
		if freeGB < uint64(config.MinimumFreeSpace) {
			return nil, fmt.Errorf("store: %s has %dGB free, need %dGB",
				config.Path, freeGB, config.MinimumFreeSpace)
		}
	}

	opts := badger.DefaultOptions(config.Path)
	opts.Logger = nil
	opts.ValueLogFileSize = 1024 * 1024 * 100
	opts.SyncWrites = false

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("store: open badger at %s: %w", config.Path, err)
	}

	return &BadgerStore{
		config: config,
		db:     db,
		log:    config.Logger,
	}, nil
}

func (s *BadgerStore) Put(ctx context.Context, pool string, id checksum.Checksum, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	atomic.AddUint64(&s.writeCounter, 1)
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(pool, id), data)
	})
	if err != nil {
		return fmt.Errorf("store: put %s in pool %q: %w", id, pool, err)
	}
	return nil
}

func (s *BadgerStore) Get(ctx context.Context, pool string, id checksum.Checksum) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	atomic.AddUint64(&s.readCounter, 1)
	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(pool, id))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err == badger.ErrKeyNotFound {
		return nil, fmt.Errorf("%w: %s in pool %q", ErrNotFound, id, pool)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get %s in pool %q: %w", id, pool, err)
	}
	return value, nil
}

func (s *BadgerStore) Has(ctx context.Context, pool string, id checksum.Checksum) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	atomic.AddUint64(&s.readCounter, 1)
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(key(pool, id))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	return found, err
}

func (s *BadgerStore) Delete(ctx context.Context, pool string, id checksum.Checksum) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key(pool, id))
	})
}

// Backup streams an xz-compressed snapshot of the whole store to w.
func (s *BadgerStore) Backup(w io.Writer) error {
	xw, err := xz.NewWriter(w)
	if err != nil {
		return fmt.Errorf("store: open backup writer: %w", err)
	}
	if _, err := s.db.Backup(xw, 0); err != nil {
		return fmt.Errorf("store: backup: %w", err)
	}
	if err := xw.Close(); err != nil {
		return fmt.Errorf("store: flush backup: %w", err)
	}
	s.log.Info("block store backup written")
	return nil
}

// Restore loads an xz-compressed snapshot produced by Backup.
func (s *BadgerStore) Restore(r io.Reader) error {
	xr, err := xz.NewReader(r)
	if err != nil {
		return fmt.Errorf("store: open backup reader: %w", err)
	}
	if err := s.db.Load(xr, 16); err != nil {
		return fmt.Errorf("store: restore: %w", err)
	}
	s.log.Info("block store backup restored")
	return nil
}

// Clean syncs, flattens and garbage-collects the value log.
func (s *BadgerStore) Clean() error {
	if err := s.db.Sync(); err != nil {
		return fmt.Errorf("store: sync: %w", err)
	}
	if err := s.db.Flatten(2); err != nil {
		return fmt.Errorf("store: flatten: %w", err)
	}
	if err := s.db.RunValueLogGC(0.1); err != nil && err != badger.ErrNoRewrite {
		return fmt.Errorf("store: value log gc: %w", err)
	}
	return nil
}

func (s *BadgerStore) Close() error {
	if err := s.Clean(); err != nil {
		s.log.WithError(err).Warn("clean before close failed")
	}
	return s.db.Close()
}
