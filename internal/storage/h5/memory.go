package h5

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// MemSource is an in-memory Source and Sink. Files are maps of dataset name
// to values keyed by cleaned path. It is safe for concurrent use.
type MemSource struct {
	mu    sync.RWMutex
	files map[string]*memFile
	opens atomic.Int64
	clock time.Time
}

type memFile struct {
	datasets map[string][]float64
	modTime  time.Time
	broken   error
}

// NewMemSource creates an empty in-memory source.
func NewMemSource() *MemSource {
	return &MemSource{
		files: make(map[string]*memFile),
		clock: time.Unix(1700000000, 0),
	}
}

// Put stores a file, replacing any previous one at path.
func (m *MemSource) Put(path string, datasets map[string][]float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := make(map[string][]float64, len(datasets))
	for k, v := range datasets {
		cp[k] = append([]float64(nil), v...)
	}
	m.clock = m.clock.Add(time.Second)
	m.files[filepath.Clean(path)] = &memFile{datasets: cp, modTime: m.clock}
}

// PutBroken stores a file that exists but fails to open with err.
func (m *MemSource) PutBroken(path string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clock = m.clock.Add(time.Second)
	m.files[filepath.Clean(path)] = &memFile{broken: err, modTime: m.clock}
}

// Remove deletes a file.
func (m *MemSource) Remove(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, filepath.Clean(path))
}

// Opens returns how many times Open succeeded or failed on an existing file.
func (m *MemSource) Opens() int64 {
	return m.opens.Load()
}

// Dataset returns a copy of a stored dataset.
func (m *MemSource) Dataset(path, name string) ([]float64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.files[filepath.Clean(path)]
	if !ok {
		return nil, false
	}
	v, ok := f.datasets[name]
	return append([]float64(nil), v...), ok
}

// Stat implements Source.
func (m *MemSource) Stat(path string) (fs.FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	clean := filepath.Clean(path)
	f, ok := m.files[clean]
	if !ok {
		return nil, &fs.PathError{Op: "stat", Path: path, Err: fs.ErrNotExist}
	}
	size := int64(0)
	for _, v := range f.datasets {
		size += int64(8 * len(v))
	}
	return memInfo{name: filepath.Base(clean), size: size, modTime: f.modTime}, nil
}

// Open implements Source.
func (m *MemSource) Open(path string) (Container, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.files[filepath.Clean(path)]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: path, Err: fs.ErrNotExist}
	}
	m.opens.Add(1)
	if f.broken != nil {
		return nil, fmt.Errorf("h5: open %s: %w", path, f.broken)
	}
	return &memContainer{path: path, datasets: f.datasets}, nil
}

// Create implements Sink.
func (m *MemSource) Create(path string) (Writer, error) {
	return &memWriter{src: m, path: path, datasets: make(map[string][]float64)}, nil
}

type memContainer struct {
	path     string
	datasets map[string][]float64
}

func (c *memContainer) Has(name string) bool {
	_, ok := c.datasets[name]
	return ok
}

func (c *memContainer) Names() []string {
	names := make([]string, 0, len(c.datasets))
	for n := range c.datasets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (c *memContainer) ReadFloat64(name string) ([]float64, error) {
	v, ok := c.datasets[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s in %s", ErrNotFound, name, c.path)
	}
	return append([]float64(nil), v...), nil
}

func (c *memContainer) Close() error { return nil }

type memWriter struct {
	src      *MemSource
	path     string
	datasets map[string][]float64
}

func (w *memWriter) WriteFloat64(name string, values []float64) error {
	w.datasets[name] = append([]float64(nil), values...)
	return nil
}

func (w *memWriter) WriteFloat32(name string, values []float32) error {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = float64(v)
	}
	w.datasets[name] = out
	return nil
}

func (w *memWriter) Close() error {
	w.src.Put(w.path, w.datasets)
	return nil
}

type memInfo struct {
	name    string
	size    int64
	modTime time.Time
}

func (i memInfo) Name() string       { return i.name }
func (i memInfo) Size() int64        { return i.size }
func (i memInfo) Mode() fs.FileMode  { return 0o644 }
func (i memInfo) ModTime() time.Time { return i.modTime }
func (i memInfo) IsDir() bool        { return false }
func (i memInfo) Sys() any           { return nil }
