package filesystem

import (
	"testing"

	"github.com/brettbedarf/gfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testNode(id uint64, kind gfs.Kind) *Node {
	return &Node{id: id, kind: kind}
}

func TestEntryTable_InsertGetRemove(t *testing.T) {
	t.Parallel()

	tbl := newEntryTable(0)
	n := testNode(2, gfs.KindRegular)

	require.NoError(t, tbl.insert("a", n))
	got, ok := tbl.get("a")
	require.True(t, ok)
	assert.Same(t, n, got)
	assert.Equal(t, 1, tbl.Len())

	assert.ErrorIs(t, tbl.insert("a", testNode(3, gfs.KindRegular)), gfs.ErrAlreadyExists)
	got, _ = tbl.get("a")
	assert.Same(t, n, got)

	removed, ok := tbl.remove("a")
	require.True(t, ok)
	assert.Same(t, n, removed)
	_, ok = tbl.remove("a")
	assert.False(t, ok)
	assert.Zero(t, tbl.Len())
}

func TestEntryTable_Ceiling(t *testing.T) {
	t.Parallel()

	tbl := newEntryTable(2)
	require.NoError(t, tbl.insert("a", testNode(2, gfs.KindRegular)))
	assert.False(t, tbl.full())
	require.NoError(t, tbl.insert("b", testNode(3, gfs.KindRegular)))
	assert.True(t, tbl.full())

	assert.ErrorIs(t, tbl.insert("c", testNode(4, gfs.KindRegular)), gfs.ErrResourceExhausted)
	_, ok := tbl.get("c")
	assert.False(t, ok)

	// put replaces regardless of capacity
	repl := testNode(5, gfs.KindRegular)
	old := tbl.put("b", repl)
	assert.Equal(t, uint64(3), old.id)
	assert.Equal(t, 2, tbl.Len())
}

func TestEntryTable_ListSorted(t *testing.T) {
	t.Parallel()

	tbl := newEntryTable(0)
	dir := testNode(4, gfs.KindDirectory)
	dir.fuseAttr.Mode = gfs.DirType | 0o755
	require.NoError(t, tbl.insert("zeta", testNode(2, gfs.KindRegular)))
	require.NoError(t, tbl.insert("alpha", dir))
	require.NoError(t, tbl.insert("mid", testNode(3, gfs.KindSymlink)))

	list := tbl.list()
	require.Len(t, list, 3)
	assert.Equal(t, gfs.DirEntry{Name: "alpha", ID: 4, Kind: gfs.KindDirectory, Mode: gfs.DirType | 0o755}, list[0])
	assert.Equal(t, "mid", list[1].Name)
	assert.Equal(t, "zeta", list[2].Name)

	assert.Len(t, tbl.nodes(), 3)
	tbl.reset()
	assert.Zero(t, tbl.Len())
	assert.Empty(t, tbl.list())
}

func TestEntryTable_SameNodeUnderTwoNames(t *testing.T) {
	t.Parallel()

	tbl := newEntryTable(0)
	n := testNode(2, gfs.KindRegular)
	require.NoError(t, tbl.insert("one", n))
	require.NoError(t, tbl.insert("two", n))

	a, _ := tbl.get("one")
	b, _ := tbl.get("two")
	assert.Same(t, a, b)
	assert.Len(t, tbl.nodes(), 2)
}
