package domain

import (
	"sort"
	"strconv"

	"github.com/yndnr/amrsnap/pkg/ndarray"
)

// TruncationErrorSuffix keys the estimate array of a truncation-error field.
const TruncationErrorSuffix = "_truncation_error"

// Directions accepted by slice queries.
var Directions = []string{"x", "y", "z"}

// ValidDirection reports whether dir names a slice orientation.
func ValidDirection(dir string) bool {
	for _, d := range Directions {
		if d == dir {
			return true
		}
	}
	return false
}

// BoundingBox is a half-open axis-aligned region [Lo, Hi) in stored
// (already downsampled) index units.
type BoundingBox struct {
	Lo []int
	Hi []int
}

// Extent returns Hi-Lo per axis.
func (b BoundingBox) Extent() []int {
	ext := make([]int, len(b.Lo))
	for i := range b.Lo {
		ext[i] = b.Hi[i] - b.Lo[i]
	}
	return ext
}

// Volume returns the number of cells inside the box.
func (b BoundingBox) Volume() int {
	return ndarray.Volume(b.Extent())
}

// Query selects one snapshot of a sharded kind and the fields to rebuild.
type Query struct {
	Kind      Kind
	Index     int
	Direction string // slice kinds only
	Level     int    // leveled kinds only
	Fields    []string
}

// FieldSet is the result of a slice or box query: the snapshot time and one
// array per requested field. Truncation-error kinds add an entry keyed
// field+TruncationErrorSuffix for each field.
type FieldSet struct {
	Kind   Kind
	Index  int
	T      float64
	Fields map[string]*ndarray.Array
}

// Names returns the field keys in sorted order.
func (fs *FieldSet) Names() []string {
	return sortedKeys(fs.Fields)
}

// Records is the result of a projection or spectrum query. Axis names the
// companion k axis ("k_sq" or "k") and is empty for projections.
type Records struct {
	Kind   Kind
	Index  int
	T      float64
	Axis   string
	K      []float64
	Values map[string]*ndarray.Array
}

// Names returns the record keys in sorted order.
func (r *Records) Names() []string {
	return sortedKeys(r.Values)
}

func sortedKeys(m map[string]*ndarray.Array) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// CoordDatasets returns the bounding-box coordinate dataset names of an
// orientation, all lows then all highs: le1_<o>, le2_<o>, he1_<o>, he2_<o>
// for slices and lex_<o> ... hez_<o> for boxes.
func CoordDatasets(axes int, ident string) []string {
	suffixes := []string{"x", "y", "z"}
	if axes == 2 {
		suffixes = []string{"1", "2"}
	}
	names := make([]string, 0, 2*len(suffixes))
	for _, p := range []string{"le", "he"} {
		for _, s := range suffixes {
			names = append(names, p+s+"_"+ident)
		}
	}
	return names
}

// PayloadDataset names box b (0-based) of a field. The solver numbers boxes
// from 1 on disk.
func PayloadDataset(field, ident string, b int) string {
	return field + "_" + ident + "_" + strconv.Itoa(b+1)
}
