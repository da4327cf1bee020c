package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/yndnr/amrsnap/internal/core/domain"
	"github.com/yndnr/amrsnap/internal/storage/h5/h5test"
	"github.com/yndnr/amrsnap/internal/storage/headercache"
	"github.com/yndnr/amrsnap/internal/telemetry/logger"
	"github.com/yndnr/amrsnap/internal/telemetry/metric"
)

func openRun(t *testing.T, run *h5test.Run, opts ...Option) *Catalog {
	t.Helper()
	opts = append([]Option{WithSource(run.Src), WithLogger(logger.Discard())}, opts...)
	c, err := Open(context.Background(), run.Root, opts...)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return c
}

func boxHeader(t float64) []float64 {
	return []float64{t, 2, 1, 8, 1, 4}
}

func TestOpen_ContiguousDiscovery(t *testing.T) {
	run := h5test.NewRun()
	run.PutProbe(domain.KindSlice, 0, []float64{0.0, 1, 2, 16, 3})
	run.PutProbe(domain.KindSlice, 1, []float64{0.5, 1, 2, 16, 3})
	run.PutProbe(domain.KindSlice, 2, []float64{1.0, 1, 2, 16, 3})
	// Index 3 missing: 4 is never seen.
	run.PutProbe(domain.KindSlice, 4, []float64{2.0, 1, 2, 16, 3})

	run.PutProbe(domain.KindCoarseBox, 0, boxHeader(0.25))
	run.PutRecord(domain.KindSpectrum, 0, []float64{0.1, 64, 32}, nil)
	run.PutRecord(domain.KindSpectrum, 1, []float64{0.2, 64, 32}, nil)

	c := openRun(t, run)

	tests := []struct {
		kind  domain.Kind
		count int
		times []float64
	}{
		{domain.KindSlice, 3, []float64{0, 0.5, 1}},
		{domain.KindCoarseBox, 1, []float64{0.25}},
		{domain.KindSpectrum, 2, []float64{0.1, 0.2}},
		{domain.KindFullBox, 0, []float64{}},
		{domain.KindGWSpectrum, 0, []float64{}},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			if got := c.Count(tt.kind); got != tt.count {
				t.Errorf("Count() = %d, want %d", got, tt.count)
			}
			times := c.TimesOf(tt.kind)
			if times == nil {
				t.Fatal("TimesOf() returned nil")
			}
			if len(times) != len(tt.times) {
				t.Fatalf("TimesOf() = %v, want %v", times, tt.times)
			}
			for i := range times {
				if times[i] != tt.times[i] {
					t.Errorf("TimesOf()[%d] = %v, want %v", i, times[i], tt.times[i])
				}
			}
		})
	}

	h, err := c.Header(domain.KindSlice, 1)
	if err != nil {
		t.Fatalf("Header() error = %v", err)
	}
	if h.RankCount != 1 || h.FinestLevel != 2 || h.BaseDim != 16 || h.BoxCount != 3 {
		t.Errorf("Header() = %+v", h)
	}
}

func TestOpen_EmptyRoot(t *testing.T) {
	c := openRun(t, h5test.NewRun())
	for _, k := range domain.Kinds {
		if c.Count(k) != 0 {
			t.Errorf("Count(%s) = %d, want 0", k, c.Count(k))
		}
	}
	for _, s := range c.Summary() {
		if s.First != nil || s.Last != nil {
			t.Errorf("Summary(%s) has times for an empty kind", s.Kind)
		}
	}
}

func TestOpen_Errors(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*h5test.Run)
		want  error
	}{
		{
			name: "header dataset missing",
			setup: func(r *h5test.Run) {
				r.Src.Put(domain.KindFullBox.ProbePath(r.Root, 0), map[string][]float64{"other": {1}})
			},
			want: domain.ErrHeaderCorrupt,
		},
		{
			name: "header too short",
			setup: func(r *h5test.Run) {
				r.PutProbe(domain.KindCoarseBox, 0, []float64{0.1, 2, 0})
			},
			want: domain.ErrHeaderCorrupt,
		},
		{
			name: "zero ranks",
			setup: func(r *h5test.Run) {
				r.PutProbe(domain.KindSlice, 0, []float64{0.1, 0, 0, 8})
			},
			want: domain.ErrHeaderCorrupt,
		},
		{
			name: "unreadable gw spectrum",
			setup: func(r *h5test.Run) {
				r.Src.PutBroken(domain.KindGWSpectrum.ProbePath(r.Root, 0), errors.New("bad superblock"))
			},
			want: domain.ErrFileOpenFailure,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run := h5test.NewRun()
			tt.setup(run)
			_, err := Open(context.Background(), run.Root, WithSource(run.Src), WithLogger(logger.Discard()))
			if !errors.Is(err, tt.want) {
				t.Errorf("Open() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestHeader_IndexOutOfRange(t *testing.T) {
	run := h5test.NewRun()
	run.PutProbe(domain.KindFullBox, 0, boxHeader(0))
	c := openRun(t, run)

	for _, k := range domain.Kinds {
		for _, i := range []int{-1, c.Count(k), c.Count(k) + 5} {
			if _, err := c.Header(k, i); !errors.Is(err, domain.ErrIndexOutOfRange) {
				t.Errorf("Header(%s, %d) error = %v, want ErrIndexOutOfRange", k, i, err)
			}
		}
	}
	if _, err := c.Header(domain.Kind(99), 0); !errors.Is(err, domain.ErrUnknownKind) {
		t.Errorf("Header(unknown) error = %v, want ErrUnknownKind", err)
	}
}

func TestOpen_WithKinds(t *testing.T) {
	run := h5test.NewRun()
	run.PutProbe(domain.KindSlice, 0, []float64{0, 1, 0, 8})
	run.PutProbe(domain.KindCoarseBox, 0, boxHeader(0))

	c := openRun(t, run, WithKinds(domain.KindCoarseBox))
	if c.Count(domain.KindSlice) != 0 {
		t.Error("slices discovered although not requested")
	}
	if c.Count(domain.KindCoarseBox) != 1 {
		t.Errorf("Count(coarse_box) = %d, want 1", c.Count(domain.KindCoarseBox))
	}
}

func TestOpen_Canceled(t *testing.T) {
	run := h5test.NewRun()
	run.PutProbe(domain.KindSlice, 0, []float64{0, 1, 0, 8})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Open(ctx, run.Root, WithSource(run.Src), WithLogger(logger.Discard())); !errors.Is(err, context.Canceled) {
		t.Errorf("Open() error = %v, want context.Canceled", err)
	}
}

func TestRefresh(t *testing.T) {
	run := h5test.NewRun()
	run.PutProbe(domain.KindFullBox, 0, boxHeader(0))
	m := metric.NewRegistry()
	c := openRun(t, run, WithMetrics(m))

	before := c.TimesOf(domain.KindFullBox)

	run.PutProbe(domain.KindFullBox, 1, boxHeader(1))
	run.PutProbe(domain.KindFullBox, 2, boxHeader(2))
	run.PutProbe(domain.KindFullBox, 4, boxHeader(4))
	run.PutRecord(domain.KindProjection, 0, []float64{1, 8}, nil)

	added, err := c.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if added[domain.KindFullBox] != 2 || added[domain.KindProjection] != 1 || len(added) != 2 {
		t.Errorf("Refresh() added = %v", added)
	}
	if got := c.TimesOf(domain.KindFullBox); len(got) != 3 || got[2] != 2 {
		t.Errorf("TimesOf() after Refresh = %v", got)
	}
	if len(before) != 1 {
		t.Errorf("earlier TimesOf result changed: %v", before)
	}
	if got := testutil.ToFloat64(m.CatalogSnapshots.WithLabelValues("full_box")); got != 3 {
		t.Errorf("snapshots gauge = %v, want 3", got)
	}

	added, err = c.Refresh(context.Background())
	if err != nil || len(added) != 0 {
		t.Errorf("second Refresh() = %v, %v, want nothing new", added, err)
	}
}

func TestOpen_HeaderCache(t *testing.T) {
	cache, err := headercache.Open(headercache.Config{InMemory: true}, nil)
	if err != nil {
		t.Fatalf("headercache.Open() error = %v", err)
	}
	defer cache.Close()

	run := h5test.NewRun()
	run.PutProbe(domain.KindCoarseBox, 0, boxHeader(0.5))
	run.PutProbe(domain.KindCoarseBox, 1, boxHeader(1.5))
	run.PutRecord(domain.KindSpectrum, 0, []float64{3}, nil)

	m := metric.NewRegistry()
	openRun(t, run, WithHeaderCache(cache), WithMetrics(m))
	cold := run.Src.Opens()
	if cold != 3 {
		t.Fatalf("cold Open() opened %d files, want 3", cold)
	}

	c := openRun(t, run, WithHeaderCache(cache), WithMetrics(m))
	if got := run.Src.Opens(); got != cold {
		t.Errorf("warm Open() opened %d more files, want 0", got-cold)
	}
	if got := c.TimesOf(domain.KindCoarseBox); len(got) != 2 || got[1] != 1.5 {
		t.Errorf("TimesOf() from cache = %v", got)
	}
	if got := testutil.ToFloat64(m.HeaderCacheLookups.WithLabelValues("hit")); got != 3 {
		t.Errorf("cache hits = %v, want 3", got)
	}

	// A rewritten probe is read again.
	run.PutProbe(domain.KindCoarseBox, 0, boxHeader(0.75))
	c = openRun(t, run, WithHeaderCache(cache))
	if got := c.TimesOf(domain.KindCoarseBox); got[0] != 0.75 {
		t.Errorf("stale cache entry used: TimesOf() = %v", got)
	}
	if got := run.Src.Opens(); got != cold+1 {
		t.Errorf("opens after rewrite = %d, want %d", got, cold+1)
	}
}

func TestSummary(t *testing.T) {
	run := h5test.NewRun()
	run.PutRecord(domain.KindProjection, 0, []float64{1, 8}, nil)
	run.PutRecord(domain.KindProjection, 1, []float64{2, 8}, nil)
	c := openRun(t, run)

	rows := c.Summary()
	if len(rows) != len(domain.Kinds) {
		t.Fatalf("Summary() has %d rows, want %d", len(rows), len(domain.Kinds))
	}
	for _, r := range rows {
		if r.Kind != "projections" {
			continue
		}
		if r.Count != 2 || *r.First != 1 || *r.Last != 2 {
			t.Errorf("projections summary = %+v", r)
		}
		return
	}
	t.Error("no projections row in Summary()")
}
