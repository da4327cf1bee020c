package h5

import (
	"errors"
	"io/fs"
)

// ErrNotFound is returned when a dataset is not present in a container.
var ErrNotFound = errors.New("h5: dataset not found")

// Container is an opened HDF5 file exposing its root-level datasets.
//
// Every dataset is read as a flat []float64 regardless of its on-disk
// width; callers reshape and narrow according to their own layout.
type Container interface {
	// Has reports whether a dataset with the given name exists. It is the
	// capability check used to detect coverage gaps without error handling.
	Has(name string) bool

	// Names returns the dataset names in sorted order.
	Names() []string

	// ReadFloat64 reads a dataset. Returns ErrNotFound if it does not exist.
	ReadFloat64(name string) ([]float64, error)

	// Close releases the underlying file.
	Close() error
}

// Source opens containers by path.
type Source interface {
	// Stat returns file metadata. A missing file yields an error satisfying
	// errors.Is(err, fs.ErrNotExist).
	Stat(path string) (fs.FileInfo, error)

	// Open opens a container read-only.
	Open(path string) (Container, error)
}

// Writer writes root-level datasets into a new container.
type Writer interface {
	WriteFloat64(name string, values []float64) error
	WriteFloat32(name string, values []float32) error
	Close() error
}

// Sink creates containers, truncating existing files.
type Sink interface {
	Create(path string) (Writer, error)
}

// Exists reports whether path exists in src.
func Exists(src Source, path string) (bool, error) {
	_, err := src.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}
