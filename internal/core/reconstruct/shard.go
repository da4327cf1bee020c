package reconstruct

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/yndnr/amrsnap/internal/core/domain"
	"github.com/yndnr/amrsnap/internal/storage/h5"
	"github.com/yndnr/amrsnap/internal/telemetry/logger"
	"github.com/yndnr/amrsnap/pkg/ndarray"
)

// pass is one orientation read from every shard of a snapshot: the plain
// data, or the half-resolution truncation error estimate.
type pass struct {
	ident      string
	dim        int
	downsample int
	fields     []string
	arrays     map[string]*ndarray.Array // keyed by result key
	keys       map[string]string         // field -> result key
}

// planPasses allocates the NaN-filled destination arrays of q.
func planPasses(q domain.Query, h domain.Header) []*pass {
	l := q.Kind.Layout()
	dim := h.Dim(q.Level)

	ident := l.DataIdent
	if l.Axes == 2 {
		ident = q.Direction
	}
	passes := []*pass{newPass(l, ident, dim, h.Downsample, q.Fields, "")}

	if l.TruncationError {
		estIdent := l.EstimateIdent
		if l.Axes == 2 {
			estIdent += q.Direction
		}
		passes = append(passes, newPass(l, estIdent, dim/2, 2*h.Downsample, q.Fields, domain.TruncationErrorSuffix))
	}
	return passes
}

func newPass(l domain.Layout, ident string, dim, downsample int, fields []string, suffix string) *pass {
	shape := make([]int, l.Axes)
	for i := range shape {
		shape[i] = dim
	}
	p := &pass{
		ident:      ident,
		dim:        dim,
		downsample: downsample,
		fields:     fields,
		arrays:     make(map[string]*ndarray.Array, len(fields)),
		keys:       make(map[string]string, len(fields)),
	}
	for _, f := range fields {
		p.keys[f] = f + suffix
		p.arrays[f+suffix] = ndarray.New(l.Dtype, shape...)
	}
	return p
}

// box is one payload ready to be copied.
type box struct {
	bounds domain.BoundingBox
	values map[string][]float64 // keyed by result key
}

// shard is everything read from one rank file.
type shard struct {
	rank  int
	boxes []box
	gaps  int
}

type stats struct {
	shards int
	gaps   int
	boxes  int
}

// readShards reads every rank file of the snapshot, concurrently up to the
// worker limit, and copies payloads into the pass arrays strictly in
// ascending rank order. Results therefore do not depend on worker count or
// scheduling, and overlapping boxes resolve to the highest rank. A rank
// starts reading only within r.workers of the next rank to commit, which
// bounds the decoded shards held in memory.
func (r *Reconstructor) readShards(ctx context.Context, q domain.Query, h domain.Header, passes []*pass) (stats, error) {
	var st stats
	c := &committer{
		window: r.workers,
		apply: func(s *shard) error {
			for _, b := range s.boxes {
				for key, values := range b.values {
					if err := lookup(passes, key).CopyBox(b.bounds.Lo, b.bounds.Hi, values); err != nil {
						return domain.ErrPayloadShapeMismatch.WithDetailsf("rank %d key %s", s.rank, key).Wrap(err)
					}
				}
			}
			st.shards++
			st.gaps += s.gaps
			st.boxes += len(s.boxes)
			return nil
		},
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for rank := 0; rank < h.RankCount; rank++ {
		g.Go(func() error {
			if err := c.wait(gctx, rank); err != nil {
				return err
			}
			s, err := r.readShard(gctx, q, rank, passes)
			if err != nil {
				logger.L(ctx).Debug("shard read failed", "rank", rank, "error", err)
				return err
			}
			return c.submit(s)
		})
	}
	if err := g.Wait(); err != nil {
		return st, err
	}

	kind := q.Kind.String()
	r.metrics.AddBoxes(kind, st.boxes)
	return st, nil
}

func lookup(passes []*pass, key string) *ndarray.Array {
	for _, p := range passes {
		if arr, ok := p.arrays[key]; ok {
			return arr
		}
	}
	return nil
}

// readShard opens one rank file once and reads every pass from it.
func (r *Reconstructor) readShard(ctx context.Context, q domain.Query, rank int, passes []*pass) (*shard, error) {
	path := q.Kind.ShardPath(r.cat.Root(), q.Index, q.Level, rank)

	ok, err := h5.Exists(r.src, path)
	if err != nil {
		return nil, domain.ErrFileOpenFailure.WithDetails(path).Wrap(err)
	}
	if !ok {
		return nil, domain.ErrShardMissing.WithDetailsf("%s (rank %d)", path, rank)
	}

	f, err := r.src.Open(path)
	if err != nil {
		return nil, domain.ErrFileOpenFailure.WithDetails(path).Wrap(err)
	}
	defer f.Close()

	kind := q.Kind.String()
	r.metrics.ShardRead(kind)

	s := &shard{rank: rank}
	axes := q.Kind.Layout().Axes
	for _, p := range passes {
		boxes, covered, err := readBoxes(ctx, f, path, axes, p)
		if err != nil {
			return nil, err
		}
		if !covered {
			s.gaps++
			r.metrics.CoverageGap(kind)
			logger.L(ctx).Debug("coverage gap", "kind", kind, "index", q.Index, "rank", rank, "orientation", p.ident)
			continue
		}
		s.boxes = append(s.boxes, boxes...)
	}
	return s, nil
}

// readBoxes reads the coordinates and payloads of one orientation. A shard
// without any coordinate dataset for the orientation covers nothing and is
// reported as not covered; a shard with only some of them is malformed.
func readBoxes(ctx context.Context, f h5.Container, path string, axes int, p *pass) ([]box, bool, error) {
	names := domain.CoordDatasets(axes, p.ident)

	present := 0
	for _, n := range names {
		if f.Has(n) {
			present++
		}
	}
	if present == 0 {
		return nil, false, nil
	}
	if present != len(names) {
		return nil, false, domain.ErrPayloadShapeMismatch.WithDetailsf("%s: %d of %d coordinate datasets for %q", path, present, len(names), p.ident)
	}

	coords := make([][]float64, len(names))
	for i, n := range names {
		v, err := f.ReadFloat64(n)
		if err != nil {
			return nil, false, domain.ErrFileOpenFailure.WithDetailsf("%s: %s", path, n).Wrap(err)
		}
		if i > 0 && len(v) != len(coords[0]) {
			return nil, false, domain.ErrPayloadShapeMismatch.WithDetailsf("%s: %s has %d entries, %s has %d", path, n, len(v), names[0], len(coords[0]))
		}
		coords[i] = v
	}

	nboxes := len(coords[0])
	boxes := make([]box, 0, nboxes)
	for b := 0; b < nboxes; b++ {
		if err := ctx.Err(); err != nil {
			return nil, false, err
		}
		bb := domain.BoundingBox{Lo: make([]int, axes), Hi: make([]int, axes)}
		for a := 0; a < axes; a++ {
			bb.Lo[a] = floorDiv(int(coords[a][b]), p.downsample)
			bb.Hi[a] = floorDiv(int(coords[axes+a][b]), p.downsample)
			if bb.Lo[a] < 0 || bb.Hi[a] < bb.Lo[a] || bb.Hi[a] > p.dim {
				return nil, false, domain.ErrPayloadShapeMismatch.WithDetailsf("%s: box %d axis %d [%d,%d) outside [0,%d)", path, b, a, bb.Lo[a], bb.Hi[a], p.dim)
			}
		}
		vol := bb.Volume()

		bx := box{bounds: bb, values: make(map[string][]float64, len(p.fields))}
		for _, field := range p.fields {
			name := domain.PayloadDataset(field, p.ident, b)
			if !f.Has(name) {
				return nil, false, domain.ErrPayloadMissing.WithDetailsf("%s: %s", path, name)
			}
			v, err := f.ReadFloat64(name)
			if err != nil {
				return nil, false, domain.ErrFileOpenFailure.WithDetailsf("%s: %s", path, name).Wrap(err)
			}
			if len(v) != vol {
				return nil, false, domain.ErrPayloadShapeMismatch.WithDetailsf("%s: %s has %d values, box %v..%v holds %d", path, name, len(v), bb.Lo, bb.Hi, vol)
			}
			bx.values[p.keys[field]] = v
		}
		boxes = append(boxes, bx)
	}
	return boxes, true, nil
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// committer applies shards in ascending rank order as they arrive, holding
// early arrivals until their predecessors are in. Ranks at or beyond
// next+window wait before reading, so pending never holds more than window
// shards.
type committer struct {
	window int
	apply  func(*shard) error

	mu       sync.Mutex
	next     int
	pending  map[int]*shard
	advanced chan struct{} // closed and replaced whenever next moves
}

// wait blocks until rank is within the window or ctx is done. Ranks are
// started in ascending order, so rank next is always already running and
// never waits itself.
func (c *committer) wait(ctx context.Context, rank int) error {
	for {
		c.mu.Lock()
		if c.advanced == nil {
			c.advanced = make(chan struct{})
		}
		if rank < c.next+max(c.window, 1) {
			c.mu.Unlock()
			return ctx.Err()
		}
		ch := c.advanced
		c.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *committer) submit(s *shard) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending == nil {
		c.pending = make(map[int]*shard)
	}
	c.pending[s.rank] = s
	moved := false
	defer func() {
		if moved && c.advanced != nil {
			close(c.advanced)
			c.advanced = make(chan struct{})
		}
	}()
	for {
		ready, ok := c.pending[c.next]
		if !ok {
			return nil
		}
		delete(c.pending, c.next)
		if err := c.apply(ready); err != nil {
			return err
		}
		c.next++
		moved = true
	}
}
