package ndarray

import (
	"errors"
	"fmt"
	"math"
)

// Dtype is the element width of an Array.
type Dtype int

const (
	// Float32 stores values as IEEE-754 single precision.
	Float32 Dtype = 32
	// Float64 stores values as IEEE-754 double precision.
	Float64 Dtype = 64
)

// String returns the numpy-style name of the dtype.
func (d Dtype) String() string {
	switch d {
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	default:
		return fmt.Sprintf("dtype(%d)", int(d))
	}
}

// Errors returned by CopyBox and Reshape.
var (
	ErrRank       = errors.New("ndarray: rank mismatch")
	ErrOutOfRange = errors.New("ndarray: box out of range")
	ErrSize       = errors.New("ndarray: element count mismatch")
)

// Array is a dense row-major array. Exactly one of f32/f64 is non-nil.
type Array struct {
	shape   []int
	strides []int
	dtype   Dtype
	f32     []float32
	f64     []float64
}

// New allocates a NaN-filled array. Negative extents are treated as zero.
func New(dtype Dtype, shape ...int) *Array {
	if dtype != Float32 {
		dtype = Float64
	}
	a := &Array{
		shape: make([]int, len(shape)),
		dtype: dtype,
	}
	n := 1
	for i, s := range shape {
		if s < 0 {
			s = 0
		}
		a.shape[i] = s
		n *= s
	}
	a.strides = stridesOf(a.shape)

	switch dtype {
	case Float32:
		a.f32 = make([]float32, n)
		nan := float32(math.NaN())
		for i := range a.f32 {
			a.f32[i] = nan
		}
	default:
		a.f64 = make([]float64, n)
		nan := math.NaN()
		for i := range a.f64 {
			a.f64[i] = nan
		}
	}
	return a
}

// FromFloat64 wraps values into an array of the given shape, converting to
// dtype. The element count must match the shape volume.
func FromFloat64(dtype Dtype, values []float64, shape ...int) (*Array, error) {
	if Volume(shape) != len(values) {
		return nil, fmt.Errorf("%w: %d values for shape %v", ErrSize, len(values), shape)
	}
	a := New(dtype, shape...)
	if a.dtype == Float32 {
		for i, v := range values {
			a.f32[i] = float32(v)
		}
	} else {
		copy(a.f64, values)
	}
	return a, nil
}

func stridesOf(shape []int) []int {
	strides := make([]int, len(shape))
	s := 1
	for i := len(shape) - 1; i >= 0; i-- {
		strides[i] = s
		s *= shape[i]
	}
	return strides
}

// Volume returns the product of extents. An empty shape has volume 1.
func Volume(shape []int) int {
	n := 1
	for _, s := range shape {
		n *= s
	}
	return n
}

// Shape returns a copy of the array shape.
func (a *Array) Shape() []int {
	out := make([]int, len(a.shape))
	copy(out, a.shape)
	return out
}

// Rank returns the number of axes.
func (a *Array) Rank() int { return len(a.shape) }

// Dtype returns the element width.
func (a *Array) Dtype() Dtype { return a.dtype }

// Len returns the total element count.
func (a *Array) Len() int {
	if a.dtype == Float32 {
		return len(a.f32)
	}
	return len(a.f64)
}

// Float32 returns the backing slice of a Float32 array, nil otherwise.
func (a *Array) Float32() []float32 { return a.f32 }

// Float64 returns the backing slice of a Float64 array, nil otherwise.
func (a *Array) Float64() []float64 { return a.f64 }

// At returns the element at idx widened to float64. It panics on a bad index,
// like a slice access would.
func (a *Array) At(idx ...int) float64 {
	off := a.offset(idx)
	if a.dtype == Float32 {
		return float64(a.f32[off])
	}
	return a.f64[off]
}

func (a *Array) offset(idx []int) int {
	if len(idx) != len(a.shape) {
		panic(fmt.Sprintf("ndarray: %d indices for rank %d", len(idx), len(a.shape)))
	}
	off := 0
	for i, v := range idx {
		if v < 0 || v >= a.shape[i] {
			panic(fmt.Sprintf("ndarray: index %d out of range [0,%d) on axis %d", v, a.shape[i], i))
		}
		off += v * a.strides[i]
	}
	return off
}

// CopyBox copies src, a row-major block of extent hi-lo, into the region
// [lo, hi) of the array. src must hold exactly Π(hi-lo) values.
func (a *Array) CopyBox(lo, hi []int, src []float64) error {
	if len(lo) != len(a.shape) || len(hi) != len(a.shape) {
		return fmt.Errorf("%w: box rank %d/%d, array rank %d", ErrRank, len(lo), len(hi), len(a.shape))
	}
	ext := make([]int, len(lo))
	for i := range lo {
		if lo[i] < 0 || hi[i] < lo[i] || hi[i] > a.shape[i] {
			return fmt.Errorf("%w: axis %d [%d,%d) not within [0,%d)", ErrOutOfRange, i, lo[i], hi[i], a.shape[i])
		}
		ext[i] = hi[i] - lo[i]
	}
	if n := Volume(ext); n != len(src) {
		return fmt.Errorf("%w: box %v holds %d cells, payload has %d", ErrSize, ext, n, len(src))
	}
	if len(src) == 0 {
		return nil
	}

	// Copy contiguous runs along the last axis.
	last := len(ext) - 1
	run := ext[last]
	rows := len(src) / run
	idx := make([]int, len(ext))
	for r := 0; r < rows; r++ {
		// Decompose the row number into the leading indices.
		rem := r
		for ax := last - 1; ax >= 0; ax-- {
			idx[ax] = rem % ext[ax]
			rem /= ext[ax]
		}
		dst := lo[last]
		for ax := 0; ax < last; ax++ {
			dst += (lo[ax] + idx[ax]) * a.strides[ax]
		}
		row := src[r*run : (r+1)*run]
		if a.dtype == Float32 {
			out := a.f32[dst : dst+run]
			for i, v := range row {
				out[i] = float32(v)
			}
		} else {
			copy(a.f64[dst:dst+run], row)
		}
	}
	return nil
}

// CountNaN returns the number of cells holding NaN.
func (a *Array) CountNaN() int {
	n := 0
	if a.dtype == Float32 {
		for _, v := range a.f32 {
			if v != v {
				n++
			}
		}
		return n
	}
	for _, v := range a.f64 {
		if math.IsNaN(v) {
			n++
		}
	}
	return n
}

// Stats summarises the finite values of an array.
type Stats struct {
	Covered int
	Missing int
	Min     float64
	Max     float64
	Mean    float64
}

// Stats computes min, max and mean over non-NaN cells. Min, Max and Mean are
// NaN when no cell is covered.
func (a *Array) Stats() Stats {
	st := Stats{Min: math.Inf(1), Max: math.Inf(-1)}
	var sum float64
	visit := func(v float64) {
		if math.IsNaN(v) {
			st.Missing++
			return
		}
		st.Covered++
		sum += v
		st.Min = math.Min(st.Min, v)
		st.Max = math.Max(st.Max, v)
	}
	if a.dtype == Float32 {
		for _, v := range a.f32 {
			visit(float64(v))
		}
	} else {
		for _, v := range a.f64 {
			visit(v)
		}
	}
	if st.Covered == 0 {
		st.Min, st.Max, st.Mean = math.NaN(), math.NaN(), math.NaN()
		return st
	}
	st.Mean = sum / float64(st.Covered)
	return st
}

// Values returns all elements widened to float64. The result is a copy for
// Float32 arrays and the backing slice for Float64 arrays.
func (a *Array) Values() []float64 {
	if a.dtype == Float64 {
		return a.f64
	}
	out := make([]float64, len(a.f32))
	for i, v := range a.f32 {
		out[i] = float64(v)
	}
	return out
}
