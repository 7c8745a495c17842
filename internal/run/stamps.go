package run

import "math"

// timestamp returns the cached mtime of path, honoring the -o/-W override
// lists and the symlink-checking option. Caches live until clearCaches
// runs after a step that may have created or removed files.
func (r *Runner) timestamp(path string) int64 {
	for _, p := range r.opts.AssumeNew {
		if p == path {
			return math.MaxInt64
		}
	}
	for _, p := range r.opts.AssumeOld {
		if p == path {
			return 1
		}
	}

	r.mu.Lock()
	if ts, ok := r.tsCache[path]; ok {
		r.mu.Unlock()
		return ts
	}
	r.mu.Unlock()

	var ts int64
	if r.opts.CheckSymlink {
		ts = r.fs.TimestampSymlink(path)
	} else {
		ts = r.fs.Timestamp(path)
	}

	r.mu.Lock()
	r.tsCache[path] = ts
	r.mu.Unlock()
	return ts
}

// resolvePath runs one prerequisite name through the vpath resolver, with
// per-run caching. Unresolvable names map to themselves.
func (r *Runner) resolvePath(name string) string {
	r.mu.Lock()
	if p, ok := r.pathCache[name]; ok {
		r.mu.Unlock()
		return p
	}
	r.mu.Unlock()

	resolved := name
	if r.paths != nil {
		if p, ok := r.paths.Resolve(name); ok {
			resolved = p
		}
	}

	r.mu.Lock()
	r.pathCache[name] = resolved
	r.mu.Unlock()
	return resolved
}

// clearCaches drops the timestamp and path caches after a successful
// recipe, a touch, or a .DELETE_ON_ERROR deletion, any of which may have
// created, mutated or removed files.
func (r *Runner) clearCaches() {
	r.mu.Lock()
	r.tsCache = make(map[string]int64)
	r.pathCache = make(map[string]string)
	r.mu.Unlock()
}
