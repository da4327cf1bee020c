// Package h5test builds synthetic AMR output trees in an h5.MemSource.
//
// Fixtures mirror what the solver writes: one file per rank with a header
// dataset, per-orientation bounding-box coordinates and 1-based box payloads.
package h5test

import (
	"github.com/yndnr/amrsnap/internal/core/domain"
	"github.com/yndnr/amrsnap/internal/storage/h5"
)

// Root is the output root used by fixtures unless told otherwise.
const Root = "/run/output"

// Box is one written box: bounds in stored (pre-division) units and the
// payload per field, row-major over Hi-Lo.
type Box struct {
	Lo, Hi []int
	Fields map[string][]float64
}

// Run is a synthetic output tree.
type Run struct {
	Src  *h5.MemSource
	Root string
}

// NewRun returns an empty run rooted at Root.
func NewRun() *Run {
	return &Run{Src: h5.NewMemSource(), Root: Root}
}

// Shard describes one rank file.
type Shard struct {
	Kind  domain.Kind
	Index int
	Level int
	Rank  int

	// Header is written to the kind's header dataset when non-nil.
	Header []float64

	// Orientation maps an identifier ("x", "te_x", "data", "te") to the
	// boxes written under it. An identifier with no entry gets no
	// coordinate datasets at all.
	Orientation map[string][]Box
}

// Datasets renders the shard as a dataset map.
func (s Shard) Datasets() map[string][]float64 {
	ds := make(map[string][]float64)
	if s.Header != nil {
		ds[s.Kind.Layout().HeaderDataset] = s.Header
	}
	axes := s.Kind.Layout().Axes
	for ident, boxes := range s.Orientation {
		names := CoordNames(axes, ident)
		for i := range names {
			ds[names[i]] = make([]float64, 0, len(boxes))
		}
		for b, box := range boxes {
			for a := 0; a < axes; a++ {
				ds[names[a]] = append(ds[names[a]], float64(box.Lo[a]))
				ds[names[axes+a]] = append(ds[names[axes+a]], float64(box.Hi[a]))
			}
			for field, values := range box.Fields {
				ds[PayloadName(field, ident, b)] = values
			}
		}
	}
	return ds
}

// PutShard writes s into the run.
func (r *Run) PutShard(s Shard) string {
	path := s.Kind.ShardPath(r.Root, s.Index, s.Level, s.Rank)
	r.Src.Put(path, s.Datasets())
	return path
}

// PutRecord writes the single file of a projection or spectrum snapshot.
func (r *Run) PutRecord(k domain.Kind, index int, header []float64, datasets map[string][]float64) string {
	ds := make(map[string][]float64, len(datasets)+1)
	for name, v := range datasets {
		ds[name] = v
	}
	if header != nil {
		ds[k.Layout().HeaderDataset] = header
	}
	path := k.RecordPath(r.Root, index)
	r.Src.Put(path, ds)
	return path
}

// PutProbe writes only the level-0 rank-0 file of a sharded snapshot, with
// a header and no coordinates.
func (r *Run) PutProbe(k domain.Kind, index int, header []float64) string {
	return r.PutShard(Shard{Kind: k, Index: index, Header: header})
}

// CoordNames is domain.CoordDatasets.
func CoordNames(axes int, ident string) []string {
	return domain.CoordDatasets(axes, ident)
}

// PayloadName is domain.PayloadDataset.
func PayloadName(field, ident string, b int) string {
	return domain.PayloadDataset(field, ident, b)
}

// Ramp returns n values start, start+1, ...
func Ramp(n int, start float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)
	}
	return out
}

// Fill returns n copies of v.
func Fill(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}
