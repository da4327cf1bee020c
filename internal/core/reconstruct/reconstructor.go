package reconstruct

import (
	"context"
	"runtime"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/yndnr/amrsnap/internal/core/catalog"
	"github.com/yndnr/amrsnap/internal/core/domain"
	"github.com/yndnr/amrsnap/internal/storage/h5"
	"github.com/yndnr/amrsnap/internal/telemetry/logger"
	"github.com/yndnr/amrsnap/internal/telemetry/metric"
	"github.com/yndnr/amrsnap/pkg/ndarray"
)

// Reconstructor rebuilds dense arrays from the rank shards of catalogued
// snapshots. It keeps no state between queries and is safe for concurrent
// use.
type Reconstructor struct {
	cat     *catalog.Catalog
	src     h5.Source
	log     logger.Logger
	metrics *metric.Registry
	workers int
}

// Option configures a Reconstructor.
type Option func(*Reconstructor)

// WithSource overrides the container source. Defaults to the catalog's.
func WithSource(src h5.Source) Option {
	return func(r *Reconstructor) {
		r.src = src
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Reconstructor) {
		r.log = l
	}
}

// WithMetrics records shard, gap, box and query metrics.
func WithMetrics(m *metric.Registry) Option {
	return func(r *Reconstructor) {
		r.metrics = m
	}
}

// WithWorkers bounds the number of shards read concurrently. Values below
// 1 mean sequential reads.
func WithWorkers(n int) Option {
	return func(r *Reconstructor) {
		r.workers = n
	}
}

// New creates a Reconstructor over cat.
func New(cat *catalog.Catalog, opts ...Option) *Reconstructor {
	r := &Reconstructor{
		cat:     cat,
		workers: runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.src == nil {
		r.src = cat.Source()
	}
	if r.log == nil {
		r.log = logger.Default()
	}
	if r.workers < 1 {
		r.workers = 1
	}
	r.log = r.log.With("component", "reconstruct")
	return r
}

// Slice rebuilds a 2-D slice of snapshot i along dir at level.
func (r *Reconstructor) Slice(ctx context.Context, i int, dir string, level int, fields []string) (*domain.FieldSet, error) {
	return r.Reconstruct(ctx, domain.Query{Kind: domain.KindSlice, Index: i, Direction: dir, Level: level, Fields: fields})
}

// SliceTruncationError rebuilds a slice and its half-resolution error
// estimate.
func (r *Reconstructor) SliceTruncationError(ctx context.Context, i int, dir string, level int, fields []string) (*domain.FieldSet, error) {
	return r.Reconstruct(ctx, domain.Query{Kind: domain.KindSliceTruncationError, Index: i, Direction: dir, Level: level, Fields: fields})
}

// CoarseBox rebuilds the level-0 box of snapshot i.
func (r *Reconstructor) CoarseBox(ctx context.Context, i int, fields []string) (*domain.FieldSet, error) {
	return r.Reconstruct(ctx, domain.Query{Kind: domain.KindCoarseBox, Index: i, Fields: fields})
}

// CoarseBoxTruncationError rebuilds a coarse box and its error estimate.
func (r *Reconstructor) CoarseBoxTruncationError(ctx context.Context, i int, fields []string) (*domain.FieldSet, error) {
	return r.Reconstruct(ctx, domain.Query{Kind: domain.KindCoarseBoxTruncationError, Index: i, Fields: fields})
}

// FullBox rebuilds the box of snapshot i at level.
func (r *Reconstructor) FullBox(ctx context.Context, i, level int, fields []string) (*domain.FieldSet, error) {
	return r.Reconstruct(ctx, domain.Query{Kind: domain.KindFullBox, Index: i, Level: level, Fields: fields})
}

// FullBoxTruncationError rebuilds a full box and its error estimate.
func (r *Reconstructor) FullBoxTruncationError(ctx context.Context, i, level int, fields []string) (*domain.FieldSet, error) {
	return r.Reconstruct(ctx, domain.Query{Kind: domain.KindFullBoxTruncationError, Index: i, Level: level, Fields: fields})
}

// Reconstruct runs q against the catalog. The whole query fails on the
// first hard error; no partial result is returned.
func (r *Reconstructor) Reconstruct(ctx context.Context, q domain.Query) (*domain.FieldSet, error) {
	start := time.Now()
	ctx = r.begin(ctx)
	log := logger.L(ctx)

	fs, st, err := r.run(ctx, q)

	code := domain.GetErrorCode(err)
	if err != nil && code == "" {
		code = "internal"
	}
	r.metrics.ObserveQuery(q.Kind.String(), time.Since(start), code)

	if err != nil {
		log.Debug("query failed", "kind", q.Kind.String(), "index", q.Index, "error", err)
		return nil, err
	}
	log.Debug("query complete",
		"kind", q.Kind.String(),
		"index", q.Index,
		"level", q.Level,
		"fields", len(q.Fields),
		"shards", st.shards,
		"gaps", st.gaps,
		"boxes", st.boxes,
		"elapsed", time.Since(start))
	return fs, nil
}

// begin tags ctx with a fresh query ID and the reconstructor's logger, so
// every log line of one query can be grouped.
func (r *Reconstructor) begin(ctx context.Context) context.Context {
	return logger.WithQueryID(logger.WithLogger(ctx, r.log), ulid.Make().String())
}

func (r *Reconstructor) run(ctx context.Context, q domain.Query) (*domain.FieldSet, stats, error) {
	if !q.Kind.Valid() {
		return nil, stats{}, domain.ErrUnknownKind.WithDetailsf("kind %d", int(q.Kind))
	}
	l := q.Kind.Layout()
	if !l.Sharded {
		return nil, stats{}, domain.ErrInvalidArgument.WithDetailsf("%s is a record kind", q.Kind)
	}

	h, err := r.cat.Header(q.Kind, q.Index)
	if err != nil {
		return nil, stats{}, err
	}
	if err := validate(q, h); err != nil {
		return nil, stats{}, err
	}

	passes := planPasses(q, h)
	out := &domain.FieldSet{
		Kind:   q.Kind,
		Index:  q.Index,
		T:      h.T,
		Fields: make(map[string]*ndarray.Array, len(q.Fields)*len(passes)),
	}
	for _, p := range passes {
		for key, arr := range p.arrays {
			out.Fields[key] = arr
		}
	}

	st, err := r.readShards(ctx, q, h, passes)
	if err != nil {
		return nil, st, err
	}
	return out, st, nil
}

// validate checks the caller-supplied parts of q against the header.
func validate(q domain.Query, h domain.Header) error {
	l := q.Kind.Layout()

	if len(q.Fields) == 0 {
		return domain.ErrInvalidArgument.WithDetails("no fields requested")
	}
	seen := make(map[string]bool, len(q.Fields))
	for _, f := range q.Fields {
		if f == "" {
			return domain.ErrInvalidArgument.WithDetails("empty field name")
		}
		if seen[f] {
			return domain.ErrInvalidArgument.WithDetailsf("field %q requested twice", f)
		}
		seen[f] = true
	}

	if l.Axes == 2 && !domain.ValidDirection(q.Direction) {
		return domain.ErrInvalidArgument.WithDetailsf("direction %q, want one of %v", q.Direction, domain.Directions)
	}

	switch {
	case l.Leveled:
		if q.Level < 0 || q.Level > h.FinestLevel {
			return domain.ErrInvalidArgument.WithDetailsf("level %d outside [0, %d]", q.Level, h.FinestLevel)
		}
	case q.Level != 0:
		return domain.ErrInvalidArgument.WithDetailsf("%s has only level 0", q.Kind)
	}

	n, ok := h.Cells(q.Level, l.Axes)
	switch {
	case !ok:
		return domain.ErrInvalidArgument.WithDetailsf("level %d of %s exceeds %d cells per array", q.Level, q.Kind, domain.MaxCells)
	case n == 0:
		return domain.ErrInvalidArgument.WithDetailsf("level %d gives an empty %s grid", q.Level, q.Kind)
	}
	return nil
}
