package filesystem

import (
	"fmt"
	"slices"
	"strings"

	"github.com/brettbedarf/gfs"
)

// EntryTable maps names to child nodes for exactly one directory. Every
// entry counts toward its child's Nlink. The synthetic "." and ".." names
// are never stored.
//
// EntryTable is not safe for concurrent use; the owning directory's lock
// must be held for every call.
type EntryTable struct {
	entries map[string]*Node
	max     int // 0 = unlimited
}

func newEntryTable(limit int) *EntryTable {
	return &EntryTable{
		entries: make(map[string]*Node),
		max:     limit,
	}
}

func (t *EntryTable) Len() int {
	return len(t.entries)
}

// full reports whether one more name would exceed the ceiling.
func (t *EntryTable) full() bool {
	return t.max > 0 && len(t.entries) >= t.max
}

func (t *EntryTable) get(name string) (*Node, bool) {
	n, ok := t.entries[name]
	return n, ok
}

// insert adds a new name. Fails if the name is taken or the table is full.
func (t *EntryTable) insert(name string, n *Node) error {
	if _, ok := t.entries[name]; ok {
		return gfs.ErrAlreadyExists
	}
	if t.full() {
		return fmt.Errorf("%w: directory holds %d entries", gfs.ErrResourceExhausted, len(t.entries))
	}
	t.entries[name] = n
	return nil
}

// put stores name -> n unconditionally, returning any node it displaced.
// Capacity is the caller's concern.
func (t *EntryTable) put(name string, n *Node) (old *Node) {
	old = t.entries[name]
	t.entries[name] = n
	return old
}

func (t *EntryTable) remove(name string) (*Node, bool) {
	n, ok := t.entries[name]
	if ok {
		delete(t.entries, name)
	}
	return n, ok
}

// list returns the entries sorted by name.
func (t *EntryTable) list() []gfs.DirEntry {
	out := make([]gfs.DirEntry, 0, len(t.entries))
	for name, n := range t.entries {
		out = append(out, gfs.DirEntry{
			Name: name,
			ID:   n.id,
			Kind: n.kind,
			Mode: n.Mode(),
		})
	}
	slices.SortFunc(out, func(a, b gfs.DirEntry) int {
		return strings.Compare(a.Name, b.Name)
	})
	return out
}

// nodes returns the child nodes in no particular order.
func (t *EntryTable) nodes() []*Node {
	out := make([]*Node, 0, len(t.entries))
	for _, n := range t.entries {
		out = append(out, n)
	}
	return out
}

// reset drops every entry without touching the children.
func (t *EntryTable) reset() {
	clear(t.entries)
}
