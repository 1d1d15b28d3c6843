package reconciler

import (
	"maps"
	"slices"
)

// Set is a set of entity ids
type Set map[string]struct{}

// NewSet creates a set holding ids
func NewSet(ids ...string) Set {
	s := make(Set, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s Set) Has(id string) bool {
	_, ok := s[id]
	return ok
}

func (s Set) Add(id string) {
	s[id] = struct{}{}
}

func (s Set) Remove(id string) {
	delete(s, id)
}

// Clone returns an independent copy
func (s Set) Clone() Set {
	if s == nil {
		return Set{}
	}
	return maps.Clone(s)
}

// Equal reports whether s and other hold the same ids
func (s Set) Equal(other Set) bool {
	if len(s) != len(other) {
		return false
	}
	for id := range s {
		if !other.Has(id) {
			return false
		}
	}
	return true
}

// Sorted returns the ids in ascending order
func (s Set) Sorted() []string {
	return slices.Sorted(maps.Keys(s))
}

// Diff returns the ids to assign (pending - current) and to unassign
// (current - pending), each sorted
func Diff(current, pending Set) (toAssign, toUnassign []string) {
	for id := range pending {
		if !current.Has(id) {
			toAssign = append(toAssign, id)
		}
	}
	for id := range current {
		if !pending.Has(id) {
			toUnassign = append(toUnassign, id)
		}
	}
	slices.Sort(toAssign)
	slices.Sort(toUnassign)
	return toAssign, toUnassign
}
