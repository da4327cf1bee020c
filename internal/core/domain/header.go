package domain

import (
	"math"
)

// Header is the decoded header row of one snapshot. RankCount and Downsample
// are per snapshot: a series may change decomposition over time.
type Header struct {
	T           float64   `json:"t" yaml:"t"`
	RankCount   int       `json:"rank_count,omitempty" yaml:"rank_count,omitempty"`
	FinestLevel int       `json:"finest_level,omitempty" yaml:"finest_level,omitempty"`
	BaseDim     int       `json:"base_dim,omitempty" yaml:"base_dim,omitempty"`
	Downsample  int       `json:"downsample,omitempty" yaml:"downsample,omitempty"`
	BoxCount    int       `json:"box_count,omitempty" yaml:"box_count,omitempty"`
	KMax        int       `json:"k_max,omitempty" yaml:"k_max,omitempty"`
	Raw         []float64 `json:"-" yaml:"-"`
}

// DecodeHeader turns a raw header dataset into a Header. Column layout:
//
//	slice kinds      [t, ranks, finest_level, base_dim, nboxes]
//	box kinds        [t, ranks, finest_level, base_dim, downsample, nboxes]
//	projection       [t, base_dim]
//	spectrum         [t, base_dim, kmax]
//	gw spectrum      [t, ...]
//
// Trailing columns beyond the kind's minimum are optional.
func DecodeHeader(k Kind, raw []float64) (Header, error) {
	l := k.Layout()
	if len(raw) < l.HeaderLen {
		return Header{}, ErrHeaderCorrupt.WithDetailsf("%s header has %d values, want at least %d", k, len(raw), l.HeaderLen)
	}
	if math.IsNaN(raw[0]) || math.IsInf(raw[0], 0) {
		return Header{}, ErrHeaderCorrupt.WithDetailsf("%s header time is not finite", k)
	}

	h := Header{T: raw[0], Downsample: 1, Raw: append([]float64(nil), raw...)}
	var err error

	switch {
	case l.Sharded:
		if h.RankCount, err = column(k, raw, 1, "rank_count", 1); err != nil {
			return Header{}, err
		}
		if h.FinestLevel, err = column(k, raw, 2, "level_count", 0); err != nil {
			return Header{}, err
		}
		if h.BaseDim, err = column(k, raw, 3, "base_dim", 1); err != nil {
			return Header{}, err
		}
		next := 4
		if l.HasDownsample {
			if h.Downsample, err = column(k, raw, 4, "downsample", 1); err != nil {
				return Header{}, err
			}
			next = 5
		}
		if len(raw) > next {
			if h.BoxCount, err = column(k, raw, next, "box_count", 0); err != nil {
				return Header{}, err
			}
		}
	case k == KindProjection:
		if h.BaseDim, err = column(k, raw, 1, "base_dim", 1); err != nil {
			return Header{}, err
		}
	case k == KindSpectrum:
		if len(raw) > 1 {
			if h.BaseDim, err = column(k, raw, 1, "base_dim", 0); err != nil {
				return Header{}, err
			}
		}
		if len(raw) > 2 {
			if h.KMax, err = column(k, raw, 2, "k_max", 0); err != nil {
				return Header{}, err
			}
		}
	}

	return h, nil
}

// column reads an integral header value no smaller than min. Headers are
// written as float64, so integers arrive as exact floats.
func column(k Kind, raw []float64, i int, name string, min int) (int, error) {
	v := raw[i]
	if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) || v > math.MaxInt32 {
		return 0, ErrHeaderCorrupt.WithDetailsf("%s header %s = %v is not an integer", k, name, v)
	}
	if int(v) < min {
		return 0, ErrHeaderCorrupt.WithDetailsf("%s header %s = %d, want >= %d", k, name, int(v), min)
	}
	return int(v), nil
}

// MaxCells bounds the cell count of one reconstructed array.
const MaxCells = 1 << 33

// Dim is the reconstructed extent per axis at level: base_dim * 2^level
// divided by downsample with truncating integer division, matching the
// solver's own arithmetic. Dim is 0 when base_dim * 2^level overflows int.
func (h Header) Dim(level int) int {
	if !h.fits(level) {
		return 0
	}
	ds := h.Downsample
	if ds < 1 {
		ds = 1
	}
	return (h.BaseDim << uint(level)) / ds
}

func (h Header) fits(level int) bool {
	return level >= 0 && level < 62 && h.BaseDim <= math.MaxInt>>uint(level)
}

// Cells is the cell count of an axes-dimensional grid at level. ok is false
// when the grid overflows int or holds more than MaxCells cells.
func (h Header) Cells(level, axes int) (n int, ok bool) {
	if !h.fits(level) {
		return 0, false
	}
	dim := h.Dim(level)
	if dim < 1 {
		return 0, true
	}
	n = 1
	for range axes {
		if n > MaxCells/dim {
			return 0, false
		}
		n *= dim
	}
	return n, true
}
