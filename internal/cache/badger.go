package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/quantmind-br/repo2kas/internal/domain"
	"github.com/quantmind-br/repo2kas/internal/utils"
)

const gcInterval = 5 * time.Minute

// BadgerCache stores layer scan results in a BadgerDB directory
type BadgerCache struct {
	db        *badger.DB
	dir       string
	stopGC    chan struct{}
	closeOnce sync.Once
}

// Stats describes the on-disk state of the cache
type Stats struct {
	Directory   string
	ScanEntries int64
	LSMBytes    int64
	VLogBytes   int64
}

// NewBadgerCache opens (or creates) the cache described by opts
func NewBadgerCache(opts Options) (*BadgerCache, error) {
	var bo badger.Options
	if opts.InMemory {
		bo = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if opts.Directory == "" {
			return nil, errors.New("cache directory not set")
		}
		if err := os.MkdirAll(opts.Directory, 0755); err != nil {
			return nil, fmt.Errorf("create cache directory: %w", err)
		}
		bo = badger.DefaultOptions(opts.Directory)
	}

	if opts.Logger != nil {
		bo = bo.WithLogger(badgerLogger{opts.Logger.WithComponent("cache")}).WithLoggingLevel(badger.WARNING)
	} else {
		bo = bo.WithLogger(nil)
	}

	db, err := badger.Open(bo)
	if err != nil {
		return nil, fmt.Errorf("open cache %s: %w", opts.Directory, err)
	}

	c := &BadgerCache{db: db, dir: opts.Directory, stopGC: make(chan struct{})}
	go c.runGC()
	return c, nil
}

func (c *BadgerCache) runGC() {
	ticker := time.NewTicker(gcInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stopGC:
			return
		case <-ticker.C:
			_ = c.db.RunValueLogGC(0.5)
		}
	}
}

// Get returns the value stored under key or domain.ErrCacheMiss
func (c *BadgerCache) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var value []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return domain.ErrCacheMiss
		}
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	return value, err
}

// Set stores value under key. A positive ttl lets badger expire the entry.
func (c *BadgerCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(key), value)
		if ttl > 0 {
			e = e.WithTTL(ttl)
		}
		return txn.SetEntry(e)
	})
}

// Delete removes key. Missing keys are not an error.
func (c *BadgerCache) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

// Count returns the number of live entries whose key starts with prefix
func (c *BadgerCache) Count(prefix string) int64 {
	var n int64
	_ = c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n
}

// ClearScans drops every cached layer scan
func (c *BadgerCache) ClearScans() error {
	return c.db.DropPrefix([]byte(PrefixScan + ":"))
}

// Stats reports entry count and on-disk sizes
func (c *BadgerCache) Stats() Stats {
	lsm, vlog := c.db.Size()
	return Stats{
		Directory:   c.dir,
		ScanEntries: c.Count(PrefixScan + ":"),
		LSMBytes:    lsm,
		VLogBytes:   vlog,
	}
}

// Close stops garbage collection and closes the database
func (c *BadgerCache) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.stopGC)
		err = c.db.Close()
	})
	return err
}

// badgerLogger routes badger's own messages into zerolog
type badgerLogger struct {
	l *utils.Logger
}

func (b badgerLogger) Errorf(f string, args ...any) {
	b.l.Error().Msg(strings.TrimSpace(fmt.Sprintf(f, args...)))
}

func (b badgerLogger) Warningf(f string, args ...any) {
	b.l.Warn().Msg(strings.TrimSpace(fmt.Sprintf(f, args...)))
}

func (b badgerLogger) Infof(f string, args ...any) {
	b.l.Debug().Msg(strings.TrimSpace(fmt.Sprintf(f, args...)))
}

func (b badgerLogger) Debugf(f string, args ...any) {
	b.l.Trace().Msg(strings.TrimSpace(fmt.Sprintf(f, args...)))
}
