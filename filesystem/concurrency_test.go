package filesystem

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/brettbedarf/gfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// waitOrFail fails the test if wg does not finish within d, which is how a
// lock-order deadlock shows up.
func waitOrFail(t *testing.T, wg *sync.WaitGroup, d time.Duration) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(d):
		t.Fatal("operations did not finish; possible deadlock")
	}
}

func TestFileSystem_ConcurrentCreate(t *testing.T) {
	t.Parallel()

	const workers, perWorker = 8, 50
	fs := mountTestFS(t)
	root := fs.Root()

	var wg sync.WaitGroup
	var mu sync.Mutex
	ids := make(map[uint64]struct{})
	for w := range workers {
		wg.Go(func() {
			for i := range perWorker {
				n, err := fs.Create(root, fmt.Sprintf("w%d-%d", w, i), 0o644, nil)
				if !assert.NoError(t, err) {
					return
				}
				mu.Lock()
				ids[n.ID()] = struct{}{}
				mu.Unlock()
			}
		})
	}
	waitOrFail(t, &wg, 10*time.Second)

	assert.Len(t, ids, workers*perWorker)
	assert.Len(t, entryNames(t, fs, root), workers*perWorker)
	assert.Equal(t, uint64(workers*perWorker+1), fs.Stats().Live)
}

func TestFileSystem_ConcurrentCreateSameName(t *testing.T) {
	t.Parallel()

	fs := mountTestFS(t)
	root := fs.Root()

	var wg sync.WaitGroup
	var created, exists atomic.Int32
	for range 32 {
		wg.Go(func() {
			_, err := fs.Mkdir(root, "shared", 0o755, nil)
			switch {
			case err == nil:
				created.Add(1)
			case errors.Is(err, gfs.ErrAlreadyExists):
				exists.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
	waitOrFail(t, &wg, 10*time.Second)

	assert.Equal(t, int32(1), created.Load())
	assert.Equal(t, int32(31), exists.Load())
	assert.Equal(t, uint32(3), root.LinkCount())
	assert.Equal(t, uint64(2), fs.Stats().Live)
}

func TestFileSystem_ConcurrentOpposingRenames(t *testing.T) {
	t.Parallel()

	const files = 100
	fs := mountTestFS(t)
	root := fs.Root()
	a := mustMkdir(t, fs, root, "a")
	b := mustMkdir(t, fs, root, "b")
	for i := range files {
		_ = mustCreate(t, fs, a, fmt.Sprintf("a%d", i))
		_ = mustCreate(t, fs, b, fmt.Sprintf("b%d", i))
	}

	var wg sync.WaitGroup
	for i := range files {
		wg.Go(func() {
			name := fmt.Sprintf("a%d", i)
			assert.NoError(t, fs.Rename(a, name, b, name))
		})
		wg.Go(func() {
			name := fmt.Sprintf("b%d", i)
			assert.NoError(t, fs.Rename(b, name, a, name))
		})
	}
	waitOrFail(t, &wg, 10*time.Second)

	aNames := entryNames(t, fs, a)
	bNames := entryNames(t, fs, b)
	require.Len(t, aNames, files)
	require.Len(t, bNames, files)
	for _, name := range aNames {
		assert.Equal(t, byte('b'), name[0])
	}
	for _, name := range bNames {
		assert.Equal(t, byte('a'), name[0])
	}
}

func TestFileSystem_ConcurrentCrossingDirectoryMoves(t *testing.T) {
	t.Parallel()

	for range 50 {
		fs := mountTestFS(t)
		root := fs.Root()
		a := mustMkdir(t, fs, root, "a")
		b := mustMkdir(t, fs, root, "b")

		var wg sync.WaitGroup
		errs := make([]error, 2)
		wg.Go(func() { errs[0] = fs.Rename(root, "a", b, "a") })
		wg.Go(func() { errs[1] = fs.Rename(root, "b", a, "b") })
		waitOrFail(t, &wg, 10*time.Second)

		// Exactly one move wins; the other would have made a cycle.
		succeeded := 0
		for _, err := range errs {
			if err == nil {
				succeeded++
				continue
			}
			assert.True(t, errors.Is(err, gfs.ErrInvalidArgument) || errors.Is(err, gfs.ErrNotFound), "got %v", err)
		}
		assert.Equal(t, 1, succeeded)
		assert.Len(t, entryNames(t, fs, root), 1)
		assert.Equal(t, uint32(3), root.LinkCount())
		fs.Unmount()
	}
}

func TestFileSystem_ConcurrentMixedOps(t *testing.T) {
	t.Parallel()

	fs := mountTestFS(t)
	root := fs.Root()
	dirs := make([]*Node, 4)
	for i := range dirs {
		dirs[i] = mustMkdir(t, fs, root, fmt.Sprintf("d%d", i))
	}

	var wg sync.WaitGroup
	for w := range 8 {
		wg.Go(func() {
			for i := range 100 {
				src := dirs[(w+i)%len(dirs)]
				dst := dirs[(w+i+1)%len(dirs)]
				name := fmt.Sprintf("f%d-%d", w, i)
				n, err := fs.Create(src, name, 0o644, nil)
				if !assert.NoError(t, err) {
					return
				}
				_, _ = fs.Lookup(dst, name)
				_, _ = fs.ReadDir(dst)
				assert.NoError(t, fs.Link(dst, name+"-l", n))
				assert.NoError(t, fs.Rename(src, name, dst, name))
				assert.NoError(t, fs.Unlink(dst, name))
				assert.NoError(t, fs.Unlink(dst, name+"-l"))
				assert.True(t, n.IsDel())
			}
		})
	}
	waitOrFail(t, &wg, 20*time.Second)

	for _, d := range dirs {
		assert.Empty(t, entryNames(t, fs, d))
	}
	assert.Equal(t, uint64(len(dirs)+1), fs.Stats().Live)
	fs.Unmount()
	assert.Zero(t, fs.Stats().Live)
}
