// Package testutil provides the shared test doubles and the end-to-end
// harness: an in-memory filesystem with controllable mtimes, a spy shell
// that records and scripts recipe execution, and helpers for running
// makefile text through a full engine instance.
package testutil

import (
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
)

type memFile struct {
	data  string
	mtime int64
}

// MemFS is an in-memory caps.FileSystem with a logical clock, so tests
// control exactly which files are newer than which. Relative paths
// resolve under Base when it is set, mirroring how the engine treats its
// working directory.
type MemFS struct {
	mu    sync.Mutex
	files map[string]*memFile
	clock int64

	Base string
}

// NewMemFS creates an empty in-memory filesystem.
func NewMemFS() *MemFS {
	return &MemFS{files: make(map[string]*memFile), clock: 1000}
}

func (f *MemFS) tick() int64 {
	f.clock += 1000
	return f.clock
}

// key normalizes a path, anchoring relative ones under Base.
func (f *MemFS) key(p string) string {
	if f.Base != "" && !strings.HasPrefix(p, "/") {
		p = f.Base + "/" + p
	}
	return path.Clean(p)
}

// Put writes a file with the next logical timestamp.
func (f *MemFS) Put(p, data string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[f.key(p)] = &memFile{data: data, mtime: f.tick()}
}

// PutAt writes a file with an explicit timestamp.
func (f *MemFS) PutAt(p, data string, mtime int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[f.key(p)] = &memFile{data: data, mtime: mtime}
}

// Exists reports presence of a file.
func (f *MemFS) Exists(p string) bool {
	return f.Timestamp(p) != 0
}

// Content returns a file's data, empty if missing.
func (f *MemFS) Content(p string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if file, ok := f.files[f.key(p)]; ok {
		return file.data
	}
	return ""
}

// Timestamp implements caps.FileSystem.
func (f *MemFS) Timestamp(p string) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if file, ok := f.files[f.key(p)]; ok {
		return file.mtime
	}
	return 0
}

// TimestampSymlink implements caps.FileSystem; MemFS has no symlinks.
func (f *MemFS) TimestampSymlink(p string) int64 {
	return f.Timestamp(p)
}

// Unlink implements caps.FileSystem.
func (f *MemFS) Unlink(p string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := f.key(p)
	if _, ok := f.files[key]; !ok {
		return fmt.Errorf("unlink %s: no such file", p)
	}
	delete(f.files, key)
	return nil
}

// Touch implements caps.FileSystem.
func (f *MemFS) Touch(p string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := f.key(p)
	if file, ok := f.files[key]; ok {
		file.mtime = f.tick()
		return nil
	}
	f.files[key] = &memFile{mtime: f.tick()}
	return nil
}

// ReadFile implements caps.FileSystem.
func (f *MemFS) ReadFile(p string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if file, ok := f.files[f.key(p)]; ok {
		return file.data, nil
	}
	return "", fmt.Errorf("read %s: no such file", p)
}

// WriteFile implements caps.FileSystem.
func (f *MemFS) WriteFile(p, text string, appendTo bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := f.key(p)
	if file, ok := f.files[key]; ok && appendTo {
		file.data += text
		file.mtime = f.tick()
		return nil
	}
	f.files[key] = &memFile{data: text, mtime: f.tick()}
	return nil
}

// Realpath implements caps.FileSystem.
func (f *MemFS) Realpath(p string) (string, error) {
	key := f.key(p)
	if !f.Exists(key) {
		return "", fmt.Errorf("realpath %s: no such file", p)
	}
	if !strings.HasPrefix(key, "/") {
		key = "/" + key
	}
	return key, nil
}

// Glob implements caps.FileSystem using path.Match against stored names.
func (f *MemFS) Glob(pattern string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rel := f.Base != "" && !strings.HasPrefix(pattern, "/")
	var out []string
	for name := range f.files {
		ok, err := path.Match(f.key(pattern), name)
		if err != nil {
			return nil, err
		}
		if ok {
			if rel {
				name = strings.TrimPrefix(name, f.Base+"/")
			}
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out, nil
}
