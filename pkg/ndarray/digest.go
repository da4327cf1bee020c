package ndarray

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/spaolacci/murmur3"
)

// Digest returns a murmur3 128-bit fingerprint of dtype, shape and values,
// formatted as 32 hex digits. Every NaN hashes as one canonical pattern
// whatever its payload, so two arrays with the same coverage and values
// share a digest.
func (a *Array) Digest() string {
	h := murmur3.New128()

	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(a.dtype))
	h.Write(buf[:])
	for _, s := range a.shape {
		binary.LittleEndian.PutUint64(buf[:], uint64(s))
		h.Write(buf[:])
	}

	if a.dtype == Float32 {
		b := make([]byte, 4*len(a.f32))
		for i, v := range a.f32 {
			binary.LittleEndian.PutUint32(b[4*i:], canonical32(v))
		}
		h.Write(b)
	} else {
		b := make([]byte, 8*len(a.f64))
		for i, v := range a.f64 {
			binary.LittleEndian.PutUint64(b[8*i:], canonical64(v))
		}
		h.Write(b)
	}

	hi, lo := h.Sum128()
	return fmt.Sprintf("%016x%016x", hi, lo)
}

// NaN payloads differ between producers; fold them to one pattern.
func canonical32(v float32) uint32 {
	if v != v {
		return 0x7fc00000
	}
	return math.Float32bits(v)
}

func canonical64(v float64) uint64 {
	if math.IsNaN(v) {
		return 0x7ff8000000000001
	}
	return math.Float64bits(v)
}
