package caps

import (
	"path"
	"strings"
)

// VPathEntry is one vpath directive: a %-pattern and the directories to
// search for files matching it.
type VPathEntry struct {
	Pattern string
	Dirs    []string
}

// SearchResolver is the default PathResolver: a file that exists stays
// put; otherwise vpath entries whose pattern matches are searched in
// order, then the general VPATH directory list.
type SearchResolver struct {
	FS FileSystem

	// Entries returns the current vpath directives; GeneralDirs the
	// VPATH variable's directories. Both are read per lookup because
	// parsing (eval, deferred includes) can add entries mid-run.
	Entries     func() []VPathEntry
	GeneralDirs func() []string
}

// Resolve implements PathResolver.
func (r *SearchResolver) Resolve(file string) (string, bool) {
	if r.FS.Timestamp(file) != 0 {
		return file, true
	}
	if r.Entries != nil {
		for _, e := range r.Entries() {
			if !matchVPattern(e.Pattern, file) {
				continue
			}
			for _, dir := range e.Dirs {
				cand := path.Join(dir, file)
				if r.FS.Timestamp(cand) != 0 {
					return cand, true
				}
			}
		}
	}
	if r.GeneralDirs != nil {
		for _, dir := range r.GeneralDirs() {
			cand := path.Join(dir, file)
			if r.FS.Timestamp(cand) != 0 {
				return cand, true
			}
		}
	}
	return "", false
}

// matchVPattern tests file against a vpath %-pattern; a pattern without %
// matches only the exact name.
func matchVPattern(pattern, file string) bool {
	i := strings.IndexByte(pattern, '%')
	if i < 0 {
		return pattern == file
	}
	pre, suf := pattern[:i], pattern[i+1:]
	return len(file) >= len(pre)+len(suf) &&
		strings.HasPrefix(file, pre) && strings.HasSuffix(file, suf)
}
