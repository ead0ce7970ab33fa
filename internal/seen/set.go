// Package seen tracks which appointment ids have already produced a
// notification, so a slot is announced at most once across restarts.
package seen

import "sort"

// Set is the in-memory set of already-notified appointment ids. The poll
// loop is its sole owner and mutator; within a run it only ever grows.
type Set map[string]struct{}

func NewSet(ids ...string) Set {
	s := make(Set, len(ids))
	s.Add(ids...)
	return s
}

func (s Set) Contains(id string) bool {
	_, ok := s[id]
	return ok
}

// Add inserts ids. Inserting an already-present id is a no-op.
func (s Set) Add(ids ...string) {
	for _, id := range ids {
		s[id] = struct{}{}
	}
}

func (s Set) Len() int { return len(s) }

func (s Set) clone() Set {
	out := make(Set, len(s))
	for id := range s {
		out[id] = struct{}{}
	}
	return out
}

func (s Set) sorted() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
