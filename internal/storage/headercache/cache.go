// Package headercache persists decoded snapshot headers between runs.
//
// Entries are keyed by the absolute probe path and validated against the
// file's size and modification time, so a rewritten snapshot is re-read.
package headercache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"

	"github.com/dgraph-io/badger/v3"
)

const keyPrefix = "hdr/"

// key makes relative paths absolute, so runs from different working
// directories never share an entry.
func key(path string) []byte {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return []byte(keyPrefix + path)
}

// Common errors
var (
	ErrMiss   = errors.New("headercache: miss")
	ErrClosed = errors.New("headercache: closed")
)

// Entry is the cached form of one probe file's header.
type Entry struct {
	Size    int64     `json:"size"`
	ModTime int64     `json:"mtime"`
	Raw     []float64 `json:"raw"`
}

// Matches reports whether the entry was taken from a file with the given
// metadata.
func (e Entry) Matches(info fs.FileInfo) bool {
	return info != nil && e.Size == info.Size() && e.ModTime == info.ModTime().UnixNano()
}

// Config configures the cache.
type Config struct {
	// Dir is the badger directory. Ignored when InMemory is set.
	Dir string

	// InMemory keeps the cache in memory only.
	InMemory bool
}

// Cache is a badger-backed header cache. It is safe for concurrent use.
type Cache struct {
	db     *badger.DB
	logger *slog.Logger
}

// Open opens or creates a cache.
func Open(cfg Config, logger *slog.Logger) (*Cache, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if !cfg.InMemory && cfg.Dir == "" {
		return nil, fmt.Errorf("headercache: dir is required")
	}

	opts := badger.DefaultOptions(cfg.Dir)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = &badgerLogger{logger: logger}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("headercache: open db: %w", err)
	}

	logger.Debug("header cache opened", "dir", cfg.Dir, "in_memory", cfg.InMemory)
	return &Cache{db: db, logger: logger}, nil
}

// Get returns the entry stored for path, or ErrMiss.
func (c *Cache) Get(path string) (Entry, error) {
	var e Entry
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(path))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrMiss
			}
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &e)
		})
	})
	if errors.Is(err, badger.ErrDBClosed) {
		return Entry{}, ErrClosed
	}
	return e, err
}

// Lookup returns the cached raw header for path if the entry matches info.
func (c *Cache) Lookup(path string, info fs.FileInfo) ([]float64, bool) {
	e, err := c.Get(path)
	if err != nil {
		if !errors.Is(err, ErrMiss) {
			c.logger.Warn("header cache read failed", "path", path, "error", err)
		}
		return nil, false
	}
	if !e.Matches(info) {
		return nil, false
	}
	return e.Raw, true
}

// Put stores the header read from path.
func (c *Cache) Put(path string, info fs.FileInfo, raw []float64) error {
	e := Entry{Size: info.Size(), ModTime: info.ModTime().UnixNano(), Raw: raw}
	val, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("headercache: encode %s: %w", path, err)
	}
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(path), val)
	})
}

// Len returns the number of cached entries.
func (c *Cache) Len() (int, error) {
	n := 0
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefix)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

// Purge removes every entry.
func (c *Cache) Purge() error {
	return c.db.DropPrefix([]byte(keyPrefix))
}

// Close closes the underlying database.
func (c *Cache) Close() error {
	if err := c.db.Close(); err != nil {
		return fmt.Errorf("headercache: close db: %w", err)
	}
	return nil
}

// badgerLogger adapts slog.Logger to Badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

// Badger is chatty at info; demote to debug.
func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
