package h5

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/scigolib/hdf5"
)

// FileSource reads HDF5 files from the local filesystem.
type FileSource struct{}

// NewFileSource returns a Source backed by the local filesystem.
func NewFileSource() *FileSource {
	return &FileSource{}
}

// Stat implements Source.
func (FileSource) Stat(path string) (fs.FileInfo, error) {
	return os.Stat(path)
}

// Open implements Source. The file's root group is indexed once; datasets
// are read lazily.
func (FileSource) Open(path string) (Container, error) {
	f, err := hdf5.Open(path)
	if err != nil {
		return nil, fmt.Errorf("h5: open %s: %w", path, err)
	}

	c := &fileContainer{
		path:     path,
		file:     f,
		datasets: make(map[string]*hdf5.Dataset),
	}
	f.Walk(func(p string, obj hdf5.Object) {
		ds, ok := obj.(*hdf5.Dataset)
		if !ok {
			return
		}
		name := strings.TrimPrefix(p, "/")
		// Only root-level datasets carry snapshot data.
		if strings.Contains(name, "/") {
			return
		}
		c.datasets[name] = ds
	})
	return c, nil
}

type fileContainer struct {
	path     string
	file     *hdf5.File
	datasets map[string]*hdf5.Dataset
}

func (c *fileContainer) Has(name string) bool {
	_, ok := c.datasets[name]
	return ok
}

func (c *fileContainer) Names() []string {
	names := make([]string, 0, len(c.datasets))
	for n := range c.datasets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (c *fileContainer) ReadFloat64(name string) ([]float64, error) {
	ds, ok := c.datasets[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s in %s", ErrNotFound, name, c.path)
	}
	values, err := ds.Read()
	if err != nil {
		return nil, fmt.Errorf("h5: read %s in %s: %w", name, c.path, err)
	}
	return values, nil
}

func (c *fileContainer) Close() error {
	return c.file.Close()
}

// FileSink writes HDF5 files to the local filesystem.
type FileSink struct{}

// NewFileSink returns a Sink backed by the local filesystem.
func NewFileSink() *FileSink {
	return &FileSink{}
}

// Create implements Sink. Parent directories are created as needed.
func (FileSink) Create(path string) (Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("h5: create dir for %s: %w", path, err)
	}
	fw, err := hdf5.CreateForWrite(path, hdf5.CreateTruncate)
	if err != nil {
		return nil, fmt.Errorf("h5: create %s: %w", path, err)
	}
	return &fileWriter{path: path, fw: fw}, nil
}

type fileWriter struct {
	path string
	fw   *hdf5.FileWriter
}

func (w *fileWriter) WriteFloat64(name string, values []float64) error {
	ds, err := w.fw.CreateDataset("/"+name, hdf5.Float64, []uint64{uint64(len(values))})
	if err != nil {
		return fmt.Errorf("h5: create dataset %s in %s: %w", name, w.path, err)
	}
	if err := ds.Write(values); err != nil {
		return fmt.Errorf("h5: write dataset %s in %s: %w", name, w.path, err)
	}
	return nil
}

func (w *fileWriter) WriteFloat32(name string, values []float32) error {
	ds, err := w.fw.CreateDataset("/"+name, hdf5.Float32, []uint64{uint64(len(values))})
	if err != nil {
		return fmt.Errorf("h5: create dataset %s in %s: %w", name, w.path, err)
	}
	if err := ds.Write(values); err != nil {
		return fmt.Errorf("h5: write dataset %s in %s: %w", name, w.path, err)
	}
	return nil
}

func (w *fileWriter) Close() error {
	return w.fw.Close()
}
