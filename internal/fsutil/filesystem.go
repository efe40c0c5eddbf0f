// Package fsutil abstracts the filesystem operations the segmentation
// pipeline performs: enumerating frame sequences, reading frame images and
// writing mask images. Production code uses OSFileSystem; tests run entire
// pipelines against MemoryFileSystem without touching disk.
package fsutil

import (
	"bytes"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// FileSystem covers the operations frame sources and mask sinks need.
type FileSystem interface {
	// Open opens the named file for reading.
	Open(name string) (fs.File, error)

	// Create creates or truncates the named file for writing.
	Create(name string) (io.WriteCloser, error)

	// ReadFile returns the contents of the named file.
	ReadFile(name string) ([]byte, error)

	// WriteFile writes data to the named file, creating it if necessary.
	WriteFile(name string, data []byte, perm os.FileMode) error

	// ReadDir returns the entries of the named directory sorted by name.
	ReadDir(name string) ([]fs.DirEntry, error)

	// MkdirAll creates a directory and any missing parents.
	MkdirAll(path string, perm os.FileMode) error
}

// OSFileSystem is the real filesystem.
type OSFileSystem struct{}

func (OSFileSystem) Open(name string) (fs.File, error) {
	return os.Open(name)
}

func (OSFileSystem) Create(name string) (io.WriteCloser, error) {
	return os.Create(name)
}

func (OSFileSystem) ReadFile(name string) ([]byte, error) {
	return os.ReadFile(name)
}

func (OSFileSystem) WriteFile(name string, data []byte, perm os.FileMode) error {
	return os.WriteFile(name, data, perm)
}

func (OSFileSystem) ReadDir(name string) ([]fs.DirEntry, error) {
	return os.ReadDir(name)
}

func (OSFileSystem) MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}

// MemoryFileSystem keeps files and directories in a single path-keyed map.
// Writing a file registers its parent directories, so a test can drop frames
// into "/seq" and list them without an explicit MkdirAll. Safe for
// concurrent use.
type MemoryFileSystem struct {
	mu    sync.RWMutex
	nodes map[string]*memNode
}

// memNode is one file or directory. Directory nodes carry no data.
type memNode struct {
	dir  bool
	data []byte
	mode os.FileMode
}

// NewMemoryFileSystem returns an empty in-memory filesystem.
func NewMemoryFileSystem() *MemoryFileSystem {
	return &MemoryFileSystem{nodes: make(map[string]*memNode)}
}

// addDir registers path and every ancestor as directories. Caller holds mu.
func (m *MemoryFileSystem) addDir(path string) {
	for p := filepath.Clean(path); p != "." && p != "/" && p != ""; p = filepath.Dir(p) {
		if n, ok := m.nodes[p]; ok && n.dir {
			return
		}
		m.nodes[p] = &memNode{dir: true, mode: fs.ModeDir | 0o755}
	}
}

// Open opens a stored file for reading.
func (m *MemoryFileSystem) Open(name string) (fs.File, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	name = filepath.Clean(name)
	n, ok := m.nodes[name]
	if !ok || n.dir {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	return &memHandle{name: name, size: int64(len(n.data)), Reader: bytes.NewReader(n.data)}, nil
}

// Create returns a writer whose contents become the file when closed.
// Nothing is visible under the name until Close.
func (m *MemoryFileSystem) Create(name string) (io.WriteCloser, error) {
	return &memWriter{fs: m, name: filepath.Clean(name)}, nil
}

// ReadFile returns a copy of the stored contents.
func (m *MemoryFileSystem) ReadFile(name string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	name = filepath.Clean(name)
	n, ok := m.nodes[name]
	if !ok || n.dir {
		return nil, &fs.PathError{Op: "read", Path: name, Err: fs.ErrNotExist}
	}
	out := make([]byte, len(n.data))
	copy(out, n.data)
	return out, nil
}

// WriteFile stores a copy of data under name and registers parent
// directories.
func (m *MemoryFileSystem) WriteFile(name string, data []byte, perm os.FileMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	name = filepath.Clean(name)
	stored := make([]byte, len(data))
	copy(stored, data)
	m.addDir(filepath.Dir(name))
	m.nodes[name] = &memNode{data: stored, mode: perm}
	return nil
}

// ReadDir lists the direct children of a directory, sorted by name.
func (m *MemoryFileSystem) ReadDir(name string) ([]fs.DirEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	name = filepath.Clean(name)
	if name != "." && name != "/" {
		n, ok := m.nodes[name]
		if !ok || !n.dir {
			return nil, &fs.PathError{Op: "readdir", Path: name, Err: fs.ErrNotExist}
		}
	}

	var entries []fs.DirEntry
	for p, n := range m.nodes {
		if filepath.Dir(p) != name || p == name {
			continue
		}
		entries = append(entries, &memInfo{
			name: filepath.Base(p),
			size: int64(len(n.data)),
			mode: n.mode,
			dir:  n.dir,
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	return entries, nil
}

// MkdirAll registers a directory and its parents.
func (m *MemoryFileSystem) MkdirAll(path string, perm os.FileMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addDir(path)
	return nil
}

// Exists reports whether a file or directory is present. Test helper; not
// part of FileSystem.
func (m *MemoryFileSystem) Exists(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.nodes[filepath.Clean(name)]
	return ok
}

// memHandle adapts a stored byte slice to fs.File.
type memHandle struct {
	name string
	size int64
	*bytes.Reader
}

func (h *memHandle) Close() error { return nil }

func (h *memHandle) Stat() (fs.FileInfo, error) {
	return &memInfo{name: filepath.Base(h.name), size: h.size, mode: 0o644}, nil
}

// memWriter buffers writes and commits them as one file on Close.
type memWriter struct {
	fs   *MemoryFileSystem
	name string
	buf  bytes.Buffer
}

func (w *memWriter) Write(p []byte) (int, error) {
	return w.buf.Write(p)
}

func (w *memWriter) Close() error {
	w.fs.mu.Lock()
	defer w.fs.mu.Unlock()
	w.fs.addDir(filepath.Dir(w.name))
	w.fs.nodes[w.name] = &memNode{data: w.buf.Bytes(), mode: 0o644}
	return nil
}

// memInfo implements both fs.FileInfo and fs.DirEntry for one node.
type memInfo struct {
	name string
	size int64
	mode os.FileMode
	dir  bool
}

func (i *memInfo) Name() string       { return i.name }
func (i *memInfo) Size() int64        { return i.size }
func (i *memInfo) Mode() os.FileMode  { return i.mode }
func (i *memInfo) ModTime() time.Time { return time.Time{} }
func (i *memInfo) IsDir() bool        { return i.dir }
func (i *memInfo) Sys() any           { return nil }

func (i *memInfo) Type() fs.FileMode          { return i.mode.Type() }
func (i *memInfo) Info() (fs.FileInfo, error) { return i, nil }
