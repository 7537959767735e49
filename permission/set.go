package permission

import "sort"

// Set is an immutable set of permission keys. The zero value and a nil *Set
// are both empty.
type Set struct {
	keys   []string
	lookup map[string]struct{}
}

// NewSet builds a set from keys, dropping duplicates and empty strings.
func NewSet(keys ...string) *Set {
	s := &Set{lookup: make(map[string]struct{}, len(keys))}
	for _, k := range keys {
		if k == "" {
			continue
		}
		if _, ok := s.lookup[k]; ok {
			continue
		}
		s.lookup[k] = struct{}{}
		s.keys = append(s.keys, k)
	}
	sort.Strings(s.keys)
	return s
}

// Contains reports whether key is in the set.
func (s *Set) Contains(key string) bool {
	if s == nil {
		return false
	}
	_, ok := s.lookup[key]
	return ok
}

// Len returns the number of keys.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.keys)
}

// Keys returns a sorted copy of the set's keys.
func (s *Set) Keys() []string {
	if s == nil {
		return []string{}
	}
	out := make([]string, len(s.keys))
	copy(out, s.keys)
	return out
}

// Equal reports whether both sets hold exactly the same keys.
func (s *Set) Equal(other *Set) bool {
	if s.Len() != other.Len() {
		return false
	}
	for _, k := range s.Keys() {
		if !other.Contains(k) {
			return false
		}
	}
	return true
}
