// Package identifier defines the torrent info-hash identifier and the
// case-insensitive set operations used to reconcile the YTS catalog against
// a Real-Debrid account.
package identifier

import (
	"sort"
	"strings"
)

// Identifier is an opaque torrent info hash. Comparison is case-insensitive;
// the canonical form is lower-case.
type Identifier string

// Normalize returns the canonical lower-case form of a hash string.
func Normalize(hash string) Identifier {
	return Identifier(strings.ToLower(strings.TrimSpace(hash)))
}

// String returns the canonical string form.
func (id Identifier) String() string {
	return string(id)
}

// Set is a deduplicating set of identifiers with O(1) membership.
// Values are stored in canonical form, so "ABC123" and "abc123" occupy
// one slot. The zero value is not usable; call NewSet.
type Set struct {
	members map[Identifier]struct{}
}

// NewSet creates an empty set.
func NewSet() *Set {
	return &Set{members: make(map[Identifier]struct{})}
}

// FromSlice builds a set from raw hash strings, normalizing each.
func FromSlice(hashes []string) *Set {
	s := NewSet()
	for _, h := range hashes {
		s.Add(h)
	}
	return s
}

// Add inserts a hash after normalization. Empty strings are ignored.
func (s *Set) Add(hash string) {
	id := Normalize(hash)
	if id == "" {
		return
	}
	s.members[id] = struct{}{}
}

// Contains reports membership, case-insensitively.
func (s *Set) Contains(hash string) bool {
	_, ok := s.members[Normalize(hash)]
	return ok
}

// Union merges other into s.
func (s *Set) Union(other *Set) {
	if other == nil {
		return
	}
	for id := range other.members {
		s.members[id] = struct{}{}
	}
}

// Len returns the number of distinct identifiers.
func (s *Set) Len() int {
	return len(s.members)
}

// Slice returns the members sorted ascending for deterministic output.
func (s *Set) Slice() []Identifier {
	out := make([]Identifier, 0, len(s.members))
	for id := range s.members {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Difference returns the identifiers present in catalog but absent from
// account, sorted ascending. It is a pure function of its two inputs:
// neither set is modified. Matching is exact after normalization, no
// fuzzy or prefix matching.
func Difference(catalog, account *Set) []Identifier {
	if catalog == nil {
		return nil
	}
	missing := make([]Identifier, 0)
	for id := range catalog.members {
		if account == nil || !account.Contains(string(id)) {
			missing = append(missing, id)
		}
	}
	sort.Slice(missing, func(i, j int) bool { return missing[i] < missing[j] })
	return missing
}
