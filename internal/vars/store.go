package vars

// Store is an insertion-ordered name to Value map. The engine keeps one
// global Store plus small per-target scope Stores layered over it by the
// expander.
type Store struct {
	order []string
	m     map[string]*Value

	// EnvOverrides makes environment bindings win over plain file
	// assignments (the -e behavior).
	EnvOverrides bool

	// ExportAll marks every variable for export, set by a bare `export`
	// line and cleared by a bare `unexport`; .EXPORT_ALL_VARIABLES is
	// checked separately by the runner.
	ExportAll bool
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{m: make(map[string]*Value)}
}

// Lookup returns the binding for name, if any.
func (s *Store) Lookup(name string) (*Value, bool) {
	v, ok := s.m[name]
	return v, ok
}

// Names returns all currently bound names in insertion order. This backs
// the .VARIABLES builtin.
func (s *Store) Names() []string {
	out := make([]string, 0, len(s.order))
	for _, n := range s.order {
		if _, ok := s.m[n]; ok {
			out = append(out, n)
		}
	}
	return out
}

// Install binds name to v, replacing any previous binding but keeping the
// original insertion position.
func (s *Store) Install(name string, v *Value) {
	if _, ok := s.m[name]; !ok {
		s.order = append(s.order, name)
	}
	s.m[name] = v
}

// Delete removes a binding (the undefine directive).
func (s *Store) Delete(name string) {
	if _, ok := s.m[name]; !ok {
		return
	}
	delete(s.m, name)
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i:i], s.order[i+1:]...)
			break
		}
	}
}

// Len reports the number of live bindings.
func (s *Store) Len() int {
	return len(s.m)
}

// Clone returns a shallow copy sharing no map or slice structure with the
// receiver. Value pointers are shared; scope stores built from clones must
// install fresh Values rather than mutating existing ones.
func (s *Store) Clone() *Store {
	c := &Store{
		order:        append([]string(nil), s.order...),
		m:            make(map[string]*Value, len(s.m)),
		EnvOverrides: s.EnvOverrides,
		ExportAll:    s.ExportAll,
	}
	for k, v := range s.m {
		c.m[k] = v
	}
	return c
}
