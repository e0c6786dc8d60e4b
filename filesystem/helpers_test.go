package filesystem

import (
	"sync"
	"testing"
	"time"

	"github.com/brettbedarf/gfs"
	"github.com/brettbedarf/gfs/config"
	"github.com/stretchr/testify/require"
)

// fakeClock hands out strictly increasing timestamps so tests can tell
// which operations touched which times.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func createTestConfig() *config.Config {
	cfg := config.NewDefaultConfig()
	cfg.DefaultUID = 1000
	cfg.DefaultGID = 1000
	return cfg
}

func mountTestFS(t *testing.T, opts ...Option) *FileSystem {
	t.Helper()
	return mountTestFSWithConfig(t, createTestConfig(), opts...)
}

func mountTestFSWithConfig(t *testing.T, cfg *config.Config, opts ...Option) *FileSystem {
	t.Helper()
	fs, err := Mount(cfg, "test", opts...)
	require.NoError(t, err)
	require.NotNil(t, fs)
	return fs
}

func mustMkdir(t *testing.T, fs *FileSystem, parent *Node, name string) *Node {
	t.Helper()
	n, err := fs.Mkdir(parent, name, 0o755, nil)
	require.NoError(t, err)
	return n
}

func mustCreate(t *testing.T, fs *FileSystem, parent *Node, name string) *Node {
	t.Helper()
	n, err := fs.Create(parent, name, 0o644, nil)
	require.NoError(t, err)
	return n
}

// entryNames lists dir's names for compact assertions.
func entryNames(t *testing.T, fs *FileSystem, dir *Node) []string {
	t.Helper()
	entries, err := fs.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name)
	}
	return names
}

// countingHandle records Release calls without testify bookkeeping, for
// tests that create many nodes.
type countingHandle struct {
	mu       sync.Mutex
	released int
}

func (h *countingHandle) Release() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.released++
}

func (h *countingHandle) Released() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.released
}

var _ gfs.ContentHandle = (*countingHandle)(nil)
