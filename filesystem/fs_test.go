package filesystem

import (
	"errors"
	"testing"

	"github.com/brettbedarf/gfs"
	"github.com/brettbedarf/gfs/internal/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestMount(t *testing.T) {
	t.Parallel()

	cfg := createTestConfig()
	cfg.RootMode = 0o700
	fs := mountTestFSWithConfig(t, cfg)

	root := fs.Root()
	require.NotNil(t, root)
	assert.Equal(t, uint64(RootID), root.ID())
	assert.True(t, root.IsDir())
	assert.Equal(t, uint32(gfs.DirType|0o700), root.Mode())
	assert.Equal(t, uint32(2), root.LinkCount())
	assert.Empty(t, entryNames(t, fs, root))

	assert.Equal(t, "test", fs.Source())
	assert.Equal(t, cfg.Magic, fs.Magic())
	assert.Same(t, cfg, fs.Config())
	assert.Contains(t, fs.String(), fs.ID().String())

	got, ok := fs.NodeByID(RootID)
	require.True(t, ok)
	assert.Same(t, root, got)

	stats := fs.Stats()
	assert.Equal(t, uint64(1), stats.Live)
	assert.Equal(t, 1, stats.Linked)
	assert.Equal(t, uint64(RootID), stats.LastID)
}

func TestMount_NilConfig(t *testing.T) {
	t.Parallel()

	fs, err := Mount(nil, "defaults")
	require.NoError(t, err)
	assert.NotNil(t, fs.Config())
	assert.Equal(t, fs.Config().RootMode, fs.Root().Mode()&gfs.PermMask)
	fs.Unmount()
}

func TestMount_Independent(t *testing.T) {
	t.Parallel()

	fs1 := mountTestFS(t)
	fs2 := mountTestFS(t)
	assert.NotEqual(t, fs1.ID(), fs2.ID())
	assert.Equal(t, fs1.Root().ID(), fs2.Root().ID())

	a := mustCreate(t, fs1, fs1.Root(), "a")
	assert.Empty(t, entryNames(t, fs2, fs2.Root()))
	assert.Equal(t, uint64(1), fs2.Stats().Live)

	b := mustCreate(t, fs2, fs2.Root(), "b")
	assert.Equal(t, a.ID(), b.ID(), "id sequences are per mount")

	_, err := fs2.Create(fs1.Root(), "x", 0o644, nil)
	assert.ErrorIs(t, err, gfs.ErrInvalidArgument)
	assert.ErrorIs(t, fs2.Link(fs2.Root(), "x", a), gfs.ErrInvalidArgument)

	fs1.Unmount()
	got, err := fs2.Lookup(fs2.Root(), "b")
	require.NoError(t, err)
	assert.Same(t, b, got)
	assert.False(t, b.IsDel())
}

func TestFileSystem_IDsIncreaseAndAreNotReused(t *testing.T) {
	t.Parallel()

	fs := mountTestFS(t)
	root := fs.Root()
	var last uint64 = RootID
	for _, name := range []string{"a", "b", "c"} {
		n := mustCreate(t, fs, root, name)
		assert.Greater(t, n.ID(), last)
		last = n.ID()
	}

	require.NoError(t, fs.Unlink(root, "c"))
	n := mustCreate(t, fs, root, "c")
	assert.Greater(t, n.ID(), last)
	assert.Equal(t, n.ID(), fs.Stats().LastID)
}

func TestFileSystem_NodeCeiling(t *testing.T) {
	t.Parallel()

	cfg := createTestConfig()
	cfg.MaxNodes = 3
	fs := mountTestFSWithConfig(t, cfg)
	root := fs.Root()

	_ = mustCreate(t, fs, root, "a")
	d := mustMkdir(t, fs, root, "d")

	_, err := fs.Create(root, "b", 0o644, nil)
	assert.ErrorIs(t, err, gfs.ErrResourceExhausted)
	_, err = fs.Mkdir(d, "e", 0o755, nil)
	assert.ErrorIs(t, err, gfs.ErrResourceExhausted)
	_, err = fs.Symlink(root, "s", "t", nil)
	assert.ErrorIs(t, err, gfs.ErrResourceExhausted)

	assert.Equal(t, []string{"a", "d"}, entryNames(t, fs, root))
	assert.Empty(t, entryNames(t, fs, d))
	assert.Equal(t, uint32(2), d.LinkCount())
	assert.Equal(t, uint64(3), fs.Stats().Live)

	require.NoError(t, fs.Unlink(root, "a"))
	_ = mustCreate(t, fs, root, "b")
}

func TestFileSystem_ContentProvider(t *testing.T) {
	t.Parallel()

	handle := &mocks.MockContentHandle{}
	handle.On("Release").Return().Once()
	provider := &mocks.MockContentProvider{}
	provider.On("NewContent", mock.AnythingOfType("uint64")).Return(handle, nil).Once()

	fs := mountTestFS(t, WithContentProvider(provider))
	root := fs.Root()

	// Only regular nodes get content.
	_ = mustMkdir(t, fs, root, "d")
	_, err := fs.Symlink(root, "s", "t", nil)
	require.NoError(t, err)

	file := mustCreate(t, fs, root, "f")
	assert.Same(t, handle, file.Content())
	provider.AssertCalled(t, "NewContent", file.ID())

	require.NoError(t, fs.Unlink(root, "f"))
	handle.AssertExpectations(t)
	provider.AssertExpectations(t)
}

func TestFileSystem_ContentProviderFailure(t *testing.T) {
	t.Parallel()

	provider := &mocks.MockContentProvider{}
	provider.On("NewContent", mock.Anything).Return(nil, errors.New("out of space"))

	fs := mountTestFS(t, WithContentProvider(provider))
	_, err := fs.Create(fs.Root(), "f", 0o644, nil)
	assert.ErrorIs(t, err, gfs.ErrResourceExhausted)
	assert.Contains(t, err.Error(), "out of space")
	assert.Empty(t, entryNames(t, fs, fs.Root()))
	assert.Equal(t, uint64(1), fs.Stats().Live)
}

func TestFileSystem_PinsDelayDestruction(t *testing.T) {
	t.Parallel()

	handle := &mocks.MockContentHandle{}
	provider := &mocks.MockContentProvider{}
	provider.On("NewContent", mock.Anything).Return(handle, nil)

	fs := mountTestFS(t, WithContentProvider(provider))
	root := fs.Root()
	file := mustCreate(t, fs, root, "f")

	require.NoError(t, fs.Acquire(file))
	require.NoError(t, fs.Acquire(file))
	require.NoError(t, fs.Unlink(root, "f"))

	assert.False(t, file.IsDel())
	assert.Zero(t, file.LinkCount())
	assert.Equal(t, uint64(2), fs.Stats().Live)
	handle.AssertNotCalled(t, "Release")

	fs.Release(file)
	assert.False(t, file.IsDel())

	handle.On("Release").Return().Once()
	fs.Release(file)
	assert.True(t, file.IsDel())
	assert.Equal(t, uint64(1), fs.Stats().Live)
	handle.AssertExpectations(t)

	assert.ErrorIs(t, fs.Acquire(file), gfs.ErrNotFound)
}

func TestFileSystem_ReleaseLinkedNode(t *testing.T) {
	t.Parallel()

	fs := mountTestFS(t)
	file := mustCreate(t, fs, fs.Root(), "f")
	require.NoError(t, fs.Acquire(file))
	fs.Release(file)
	fs.Release(file) // unbalanced release is ignored
	assert.False(t, file.IsDel())
	assert.Equal(t, uint32(1), file.LinkCount())
}

func TestFileSystem_Unmount(t *testing.T) {
	t.Parallel()

	var handles []*countingHandle
	provider := gfs.ContentProviderFunc(func(uint64) (gfs.ContentHandle, error) {
		h := &countingHandle{}
		handles = append(handles, h)
		return h, nil
	})
	fs := mountTestFS(t, WithContentProvider(provider))
	root := fs.Root()

	a := mustMkdir(t, fs, root, "a")
	b := mustMkdir(t, fs, a, "b")
	f1 := mustCreate(t, fs, b, "f1")
	require.NoError(t, fs.Link(root, "f1-link", f1))
	require.NoError(t, fs.Link(b, "f1-again", f1))
	_ = mustCreate(t, fs, root, "f2")
	_, err := fs.Symlink(a, "s", "/x", nil)
	require.NoError(t, err)
	_, err = fs.Mknod(a, "tty", gfs.CharType|0o620, &gfs.DeviceInfo{Major: 4, Minor: 1}, nil)
	require.NoError(t, err)

	// An unlinked node the host still holds open.
	orphan := mustCreate(t, fs, root, "orphan")
	require.NoError(t, fs.Acquire(orphan))
	require.NoError(t, fs.Unlink(root, "orphan"))

	pinned := mustCreate(t, fs, root, "pinned")
	require.NoError(t, fs.Acquire(pinned))

	require.Equal(t, uint64(9), fs.Stats().Live)

	fs.Unmount()

	stats := fs.Stats()
	assert.Zero(t, stats.Live)
	assert.Zero(t, stats.Linked)
	for _, n := range []*Node{root, a, b, f1, orphan, pinned} {
		assert.True(t, n.IsDel(), "node %d", n.ID())
	}
	require.Len(t, handles, 4)
	for _, h := range handles {
		assert.Equal(t, 1, h.Released())
	}

	assert.NotPanics(t, fs.Unmount)
	for _, h := range handles {
		assert.Equal(t, 1, h.Released())
	}
}
