package catalog

import (
	"context"
	"errors"
	"io/fs"
	"sync"

	"github.com/yndnr/amrsnap/internal/core/domain"
	"github.com/yndnr/amrsnap/internal/storage/h5"
	"github.com/yndnr/amrsnap/internal/storage/headercache"
	"github.com/yndnr/amrsnap/internal/telemetry/logger"
	"github.com/yndnr/amrsnap/internal/telemetry/metric"
)

// Catalog is the per-kind table of snapshot headers found under an output
// root. Rows are only ever appended.
type Catalog struct {
	root    string
	src     h5.Source
	cache   *headercache.Cache
	log     logger.Logger
	metrics *metric.Registry
	kinds   []domain.Kind

	refreshMu sync.Mutex // serializes Refresh

	mu      sync.RWMutex
	headers map[domain.Kind][]domain.Header
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithSource sets the container source. Defaults to the local filesystem.
func WithSource(src h5.Source) Option {
	return func(c *Catalog) {
		c.src = src
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Catalog) {
		c.log = l
	}
}

// WithMetrics records catalog sizes and cache lookups.
func WithMetrics(m *metric.Registry) Option {
	return func(c *Catalog) {
		c.metrics = m
	}
}

// WithHeaderCache consults cache before opening probe files.
func WithHeaderCache(cache *headercache.Cache) Option {
	return func(c *Catalog) {
		c.cache = cache
	}
}

// WithKinds restricts discovery to the given kinds. The rest stay empty.
func WithKinds(kinds ...domain.Kind) Option {
	return func(c *Catalog) {
		c.kinds = kinds
	}
}

// KindSummary is one row of Summary.
type KindSummary struct {
	Kind  string   `json:"kind" yaml:"kind"`
	Count int      `json:"count" yaml:"count"`
	First *float64 `json:"first_t,omitempty" yaml:"first_t,omitempty"`
	Last  *float64 `json:"last_t,omitempty" yaml:"last_t,omitempty"`
}

// Open discovers every kind under root. For each kind, indices 0, 1, 2, ...
// are probed until the first missing probe file; a later snapshot past a
// gap is never seen. A probe that exists but cannot be opened fails the
// whole call, as does a header that cannot be decoded.
func Open(ctx context.Context, root string, opts ...Option) (*Catalog, error) {
	c := &Catalog{
		root:    root,
		kinds:   domain.Kinds,
		headers: make(map[domain.Kind][]domain.Header, len(domain.Kinds)),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.src == nil {
		c.src = h5.NewFileSource()
	}
	if c.log == nil {
		c.log = logger.Default()
	}
	c.log = c.log.With("component", "catalog")

	for _, k := range c.kinds {
		if !k.Valid() {
			return nil, domain.ErrUnknownKind.WithDetailsf("kind %d", int(k))
		}
		found, err := c.discover(ctx, k, 0)
		if err != nil {
			return nil, err
		}
		c.headers[k] = found
		c.metrics.SetSnapshots(k.String(), len(found))
		if len(found) > 0 {
			c.log.Info("snapshots discovered", "kind", k.String(), "count", len(found))
		}
	}

	c.log.Debug("catalog opened", "root", root)
	return c, nil
}

// Refresh probes each kind from its current count onwards and appends newly
// written snapshots. It returns the number added per kind; kinds without
// additions are omitted. Existing rows are not re-read.
func (c *Catalog) Refresh(ctx context.Context) (map[domain.Kind]int, error) {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	added := make(map[domain.Kind]int)
	for _, k := range c.kinds {
		c.mu.RLock()
		start := len(c.headers[k])
		c.mu.RUnlock()

		found, err := c.discover(ctx, k, start)
		if err != nil {
			return added, err
		}
		if len(found) == 0 {
			continue
		}

		c.mu.Lock()
		// Append to a fresh backing array so slices handed out earlier stay
		// unchanged.
		rows := make([]domain.Header, 0, start+len(found))
		rows = append(rows, c.headers[k]...)
		c.headers[k] = append(rows, found...)
		n := len(c.headers[k])
		c.mu.Unlock()

		added[k] = len(found)
		c.metrics.SetSnapshots(k.String(), n)
		c.log.Info("new snapshots", "kind", k.String(), "added", len(found), "count", n)
	}
	return added, nil
}

func (c *Catalog) discover(ctx context.Context, k domain.Kind, start int) ([]domain.Header, error) {
	var found []domain.Header
	for i := start; ; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		path := k.ProbePath(c.root, i)
		info, err := c.src.Stat(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return found, nil
			}
			return nil, domain.ErrFileOpenFailure.WithDetails(path).Wrap(err)
		}

		h, err := c.readHeader(k, path, info)
		if err != nil {
			return nil, err
		}
		found = append(found, h)
	}
}

func (c *Catalog) readHeader(k domain.Kind, path string, info fs.FileInfo) (domain.Header, error) {
	if c.cache != nil {
		raw, ok := c.cache.Lookup(path, info)
		c.metrics.HeaderCacheHit(ok)
		if ok {
			return decode(k, path, raw)
		}
	}

	f, err := c.src.Open(path)
	if err != nil {
		return domain.Header{}, domain.ErrFileOpenFailure.WithDetails(path).Wrap(err)
	}
	defer f.Close()

	name := k.Layout().HeaderDataset
	if !f.Has(name) {
		return domain.Header{}, domain.ErrHeaderCorrupt.WithDetailsf("%s: no %s dataset", path, name)
	}
	raw, err := f.ReadFloat64(name)
	if err != nil {
		return domain.Header{}, domain.ErrFileOpenFailure.WithDetailsf("%s: %s", path, name).Wrap(err)
	}

	h, err := decode(k, path, raw)
	if err != nil {
		return domain.Header{}, err
	}

	if c.cache != nil {
		if err := c.cache.Put(path, info, raw); err != nil {
			c.log.Warn("header cache write failed", "path", path, "error", err)
		}
	}
	return h, nil
}

func decode(k domain.Kind, path string, raw []float64) (domain.Header, error) {
	h, err := domain.DecodeHeader(k, raw)
	if err != nil {
		var de *domain.DomainError
		if errors.As(err, &de) {
			return domain.Header{}, de.WithDetails(path + ": " + de.Details)
		}
		return domain.Header{}, err
	}
	return h, nil
}

// Root returns the output root.
func (c *Catalog) Root() string {
	return c.root
}

// Source returns the container source the catalog reads from.
func (c *Catalog) Source() h5.Source {
	return c.src
}

// Count returns the number of discovered snapshots of k.
func (c *Catalog) Count(k domain.Kind) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.headers[k])
}

// TimesOf returns the snapshot times of k in discovery order. The result is
// empty, never nil, when nothing was found.
func (c *Catalog) TimesOf(k domain.Kind) []float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rows := c.headers[k]
	times := make([]float64, len(rows))
	for i, h := range rows {
		times[i] = h.T
	}
	return times
}

// Header returns the header of snapshot i of k.
func (c *Catalog) Header(k domain.Kind, i int) (domain.Header, error) {
	if !k.Valid() {
		return domain.Header{}, domain.ErrUnknownKind.WithDetailsf("kind %d", int(k))
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	rows := c.headers[k]
	if i < 0 || i >= len(rows) {
		return domain.Header{}, domain.ErrIndexOutOfRange.WithDetailsf("%s index %d, have %d", k, i, len(rows))
	}
	return rows[i], nil
}

// Headers returns a copy of the header table of k.
func (c *Catalog) Headers(k domain.Kind) []domain.Header {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]domain.Header{}, c.headers[k]...)
}

// Summary returns one row per kind in catalog order. First and Last are nil
// for empty kinds.
func (c *Catalog) Summary() []KindSummary {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]KindSummary, 0, len(domain.Kinds))
	for _, k := range domain.Kinds {
		rows := c.headers[k]
		s := KindSummary{Kind: k.String(), Count: len(rows)}
		if len(rows) > 0 {
			first, last := rows[0].T, rows[len(rows)-1].T
			s.First, s.Last = &first, &last
		}
		out = append(out, s)
	}
	return out
}
