// Package httpheader implements the ordered, case-insensitive header map and
// the cookie parse/format rules shared by the request and response value
// objects (spec §3 Request/Cookie/Response, §4.I).
package httpheader

import "strings"

// entry holds one header field-value under its original case.
type entry struct {
	name  string
	value string
}

// Map is an ordered, multi-valued, case-insensitive header collection.
// Lookups fold case; iteration (via Names/Range) preserves first-seen
// order and each value's original-case name, per spec §3's Request
// invariant: "the header mapping stores each header under its original
// case but lookups are case-folded".
type Map struct {
	entries []entry
	// index maps the lower-cased name to the list of entries indices,
	// kept in insertion order, for O(1)-ish lookups without scanning the
	// whole entry slice on every Get/Values call.
	index map[string][]int
}

// NewMap returns an empty header map ready for use.
func NewMap() *Map {
	return &Map{index: make(map[string][]int, 8)}
}

func foldKey(name string) string {
	return strings.ToLower(name)
}

// Add appends value under name, preserving name's original case and
// keeping any prior values for the same (case-folded) name.
func (m *Map) Add(name, value string) {
	if m.index == nil {
		m.index = make(map[string][]int, 8)
	}
	key := foldKey(name)
	idx := len(m.entries)
	m.entries = append(m.entries, entry{name: name, value: value})
	m.index[key] = append(m.index[key], idx)
}

// Set replaces all existing values for name (case-insensitive) with a
// single value, preserving the first occurrence's position when one
// already existed, or appending a new entry otherwise.
func (m *Map) Set(name, value string) {
	key := foldKey(name)
	if idxs, ok := m.index[key]; ok && len(idxs) > 0 {
		m.entries[idxs[0]] = entry{name: name, value: value}
		for _, extra := range idxs[1:] {
			m.entries[extra].name = "" // tombstoned, skipped on iteration
		}
		m.index[key] = idxs[:1]
		return
	}
	m.Add(name, value)
}

// Get returns the first value for name, or "" if absent.
func (m *Map) Get(name string) string {
	idxs := m.index[foldKey(name)]
	if len(idxs) == 0 {
		return ""
	}
	return m.entries[idxs[0]].value
}

// Values returns all values for name in insertion order. The returned
// slice is a fresh copy safe for the caller to retain.
func (m *Map) Values(name string) []string {
	idxs := m.index[foldKey(name)]
	if len(idxs) == 0 {
		return nil
	}
	out := make([]string, 0, len(idxs))
	for _, i := range idxs {
		if m.entries[i].name != "" {
			out = append(out, m.entries[i].value)
		}
	}
	return out
}

// Has reports whether name has at least one value.
func (m *Map) Has(name string) bool {
	return len(m.index[foldKey(name)]) > 0
}

// Del removes every value for name.
func (m *Map) Del(name string) {
	key := foldKey(name)
	for _, i := range m.index[key] {
		m.entries[i].name = ""
	}
	delete(m.index, key)
}

// Names returns the distinct header names in first-seen order, each in
// its original case.
func (m *Map) Names() []string {
	seen := make(map[string]bool, len(m.entries))
	names := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		if e.name == "" {
			continue
		}
		key := foldKey(e.name)
		if seen[key] {
			continue
		}
		seen[key] = true
		names = append(names, e.name)
	}
	return names
}

// Range calls fn for every (name, value) pair in insertion order.
func (m *Map) Range(fn func(name, value string)) {
	for _, e := range m.entries {
		if e.name == "" {
			continue
		}
		fn(e.name, e.value)
	}
}

// Clone returns a deep copy.
func (m *Map) Clone() *Map {
	c := NewMap()
	for _, e := range m.entries {
		if e.name != "" {
			c.Add(e.name, e.value)
		}
	}
	return c
}
