package alias

import (
	"strings"

	"grimm.is/aliasync/internal/errors"
)

// ErrDuplicateName is returned when a declared set names the same alias twice.
var ErrDuplicateName = errors.New("duplicate alias name")

// Set is the ordered, declared collection of aliases aliasync is authoritative
// over. Names are unique; NewSet enforces it.
type Set struct {
	specs []Spec
	index map[string]int
}

// NewSet validates uniqueness and builds a Set in declaration order.
func NewSet(specs ...Spec) (*Set, error) {
	s := &Set{
		specs: make([]Spec, 0, len(specs)),
		index: make(map[string]int, len(specs)),
	}
	for _, spec := range specs {
		name := strings.TrimSpace(spec.Name)
		if name == "" {
			return nil, errors.New("alias with empty name")
		}
		if _, dup := s.index[name]; dup {
			return nil, errors.Wrapf(ErrDuplicateName, "%q", name)
		}
		spec.Name = name
		s.index[name] = len(s.specs)
		s.specs = append(s.specs, spec)
	}
	return s, nil
}

// Specs returns a copy of the declared aliases in order.
func (s *Set) Specs() []Spec {
	out := make([]Spec, len(s.specs))
	copy(out, s.specs)
	return out
}

// Len returns the number of declared aliases.
func (s *Set) Len() int { return len(s.specs) }

// Lookup finds a declared alias by name.
func (s *Set) Lookup(name string) (Spec, bool) {
	i, ok := s.index[name]
	if !ok {
		return Spec{}, false
	}
	return s.specs[i], true
}

// Names returns the declared names as a NameSet.
func (s *Set) Names() NameSet {
	n := make(NameSet, len(s.specs))
	for _, spec := range s.specs {
		n[spec.Name] = struct{}{}
	}
	return n
}

// NameSet is an exact-match set of alias names.
type NameSet map[string]struct{}

// NewNameSet builds a NameSet from names.
func NewNameSet(names ...string) NameSet {
	n := make(NameSet, len(names))
	for _, name := range names {
		n[name] = struct{}{}
	}
	return n
}

// Has reports exact membership.
func (n NameSet) Has(name string) bool {
	_, ok := n[name]
	return ok
}
