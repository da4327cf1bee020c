package domain

import (
	"path/filepath"
	"strconv"

	"github.com/yndnr/amrsnap/pkg/ndarray"
)

// Kind identifies one of the snapshot series an AMR run writes.
type Kind int

const (
	KindSlice Kind = iota
	KindSliceTruncationError
	KindCoarseBox
	KindCoarseBoxTruncationError
	KindFullBox
	KindFullBoxTruncationError
	KindProjection
	KindSpectrum
	KindGWSpectrum
)

// Kinds lists every kind in catalog order.
var Kinds = []Kind{
	KindSlice,
	KindCoarseBox,
	KindFullBox,
	KindProjection,
	KindSpectrum,
	KindGWSpectrum,
	KindSliceTruncationError,
	KindCoarseBoxTruncationError,
	KindFullBoxTruncationError,
}

// Layout is the on-disk description of a kind. Element width is part of the
// layout rather than being inferred from file contents.
type Layout struct {
	// Dir is the subtree below the output root.
	Dir string
	// Sharded kinds write one file per rank under Level_<L>.
	Sharded bool
	// File is the single file name of non-sharded kinds.
	File string
	// HeaderDataset is read from the probe file.
	HeaderDataset string
	// HeaderLen is the minimum number of header values.
	HeaderLen int
	// Axes is 2 for slices and 3 for boxes, 0 for records.
	Axes int
	// Leveled kinds accept an AMR level in queries.
	Leveled bool
	// HasDownsample marks headers carrying a downsample column.
	HasDownsample bool
	// TruncationError kinds return an estimate alongside each field.
	TruncationError bool
	// DataIdent is the orientation/identifier of box datasets ("data").
	// Empty for slices, where the direction is the identifier.
	DataIdent string
	// EstimateIdent is the identifier prefix of truncation error datasets.
	EstimateIdent string
	// Dtype is the element width of reconstructed arrays.
	Dtype ndarray.Dtype
}

var layouts = map[Kind]Layout{
	KindSlice: {
		Dir: "slices", Sharded: true, HeaderDataset: "Header_x", HeaderLen: 4,
		Axes: 2, Leveled: true, Dtype: ndarray.Float32,
	},
	KindSliceTruncationError: {
		Dir: "slices_truncation_error", Sharded: true, HeaderDataset: "Header_te_x", HeaderLen: 4,
		Axes: 2, Leveled: true, TruncationError: true, EstimateIdent: "te_", Dtype: ndarray.Float32,
	},
	KindCoarseBox: {
		Dir: "coarse_box", Sharded: true, HeaderDataset: "Header_data", HeaderLen: 5,
		Axes: 3, HasDownsample: true, DataIdent: "data", Dtype: ndarray.Float64,
	},
	KindCoarseBoxTruncationError: {
		Dir: "coarse_box_truncation_error", Sharded: true, HeaderDataset: "Header_data", HeaderLen: 5,
		Axes: 3, HasDownsample: true, TruncationError: true, DataIdent: "data", EstimateIdent: "te",
		Dtype: ndarray.Float64,
	},
	KindFullBox: {
		Dir: "full_box", Sharded: true, HeaderDataset: "Header_data", HeaderLen: 5,
		Axes: 3, Leveled: true, HasDownsample: true, DataIdent: "data", Dtype: ndarray.Float64,
	},
	KindFullBoxTruncationError: {
		Dir: "full_box_truncation_error", Sharded: true, HeaderDataset: "Header_data", HeaderLen: 5,
		Axes: 3, Leveled: true, HasDownsample: true, TruncationError: true, DataIdent: "data",
		EstimateIdent: "te", Dtype: ndarray.Float64,
	},
	KindProjection: {
		Dir: "projections", File: "projections.hdf5", HeaderDataset: "Header", HeaderLen: 2,
		Dtype: ndarray.Float64,
	},
	KindSpectrum: {
		Dir: "spectra", File: "spectra.hdf5", HeaderDataset: "Header", HeaderLen: 1,
		Dtype: ndarray.Float64,
	},
	KindGWSpectrum: {
		Dir: "gw_spectra", File: "spectra.hdf5", HeaderDataset: "Header", HeaderLen: 1,
		Dtype: ndarray.Float64,
	},
}

// Layout returns the on-disk description of k.
func (k Kind) Layout() Layout {
	return layouts[k]
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	_, ok := layouts[k]
	return ok
}

// String returns the subtree name, which doubles as the kind's public name.
func (k Kind) String() string {
	if l, ok := layouts[k]; ok {
		return l.Dir
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// ParseKind maps a subtree name ("slices", "full_box", ...) to a Kind.
func ParseKind(name string) (Kind, error) {
	for k, l := range layouts {
		if l.Dir == name {
			return k, nil
		}
	}
	return 0, ErrUnknownKind.WithDetails(name)
}

// SnapshotDir is <root>/<dir>/<index>.
func (k Kind) SnapshotDir(root string, index int) string {
	return filepath.Join(root, k.Layout().Dir, strconv.Itoa(index))
}

// ShardPath is <root>/<dir>/<index>/Level_<level>/<rank>.hdf5.
func (k Kind) ShardPath(root string, index, level, rank int) string {
	return filepath.Join(k.SnapshotDir(root, index), "Level_"+strconv.Itoa(level), strconv.Itoa(rank)+".hdf5")
}

// RecordPath is the single file of a non-sharded snapshot.
func (k Kind) RecordPath(root string, index int) string {
	return filepath.Join(k.SnapshotDir(root, index), k.Layout().File)
}

// ProbePath is the file whose presence defines snapshot index: the first
// shard of level 0 for sharded kinds, the single file otherwise.
func (k Kind) ProbePath(root string, index int) string {
	if k.Layout().Sharded {
		return k.ShardPath(root, index, 0, 0)
	}
	return k.RecordPath(root, index)
}
