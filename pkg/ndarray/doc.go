// Package ndarray provides the dense arrays returned by snapshot reconstruction.
//
// An Array is a row-major, fixed-shape block of either float32 or float64
// values. The element width is chosen by the caller and never changes after
// construction:
//
//   - New: NaN-filled array of the given dtype and shape
//   - CopyBox: copy a flattened payload into the half-open region lo..hi
//   - CountNaN / Stats: coverage and value summaries
//   - Digest: murmur3 fingerprint of the raw values
//
// Usage:
//
//	a := ndarray.New(ndarray.Float64, 8, 8, 8)
//	err := a.CopyBox([]int{0, 0, 0}, []int{4, 8, 8}, payload)
//	missing := a.CountNaN()
//
// Cells that were never written stay NaN, so "not covered" is distinct from
// a stored zero.
package ndarray
