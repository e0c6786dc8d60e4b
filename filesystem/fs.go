package filesystem

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brettbedarf/gfs"
	"github.com/brettbedarf/gfs/config"
	"github.com/brettbedarf/gfs/internal/util"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/puzpuzpuz/xsync/v4"
)

// FileSystem is one mounted gfs instance (its mount context): the root
// directory, the node allocator and the id registry. Mounts share nothing;
// any number may coexist in a process.
type FileSystem struct {
	cfg      *config.Config
	id       uuid.UUID
	source   string
	root     *Node
	alloc    *Allocator
	registry *xsync.Map[uint64, *Node] // every linked, not yet destroyed node by id
	now      func() time.Time

	renameMu  sync.Mutex // serializes cross-directory renames
	unmounted atomic.Bool
}

// Option customizes a mount.
type Option func(*mountOptions)

type mountOptions struct {
	now     func() time.Time
	content gfs.ContentProvider
}

// WithClock replaces time.Now as the source of node timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *mountOptions) { o.now = now }
}

// WithContentProvider sets the factory for regular node content handles.
// Without one, regular nodes carry a nil handle.
func WithContentProvider(p gfs.ContentProvider) Option {
	return func(o *mountOptions) { o.content = p }
}

// Mount creates a new namespace with an empty root directory. source is the
// host's backing identifier; it is kept for logging only. A nil cfg uses the
// defaults.
func Mount(cfg *config.Config, source string, opts ...Option) (*FileSystem, error) {
	logger := util.GetLogger("FS.Mount")
	if cfg == nil {
		cfg = config.NewDefaultConfig()
	}
	o := mountOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	fs := &FileSystem{
		cfg:      cfg,
		id:       uuid.New(),
		source:   source,
		alloc:    newAllocator(cfg.MaxNodes, cfg.MaxEntries, o.now, o.content),
		registry: xsync.NewMap[uint64, *Node](),
		now:      o.now,
	}

	root, err := fs.alloc.Allocate(gfs.KindDirectory, cfg.RootMode, gfs.Actor{UID: cfg.DefaultUID, GID: cfg.DefaultGID})
	if err != nil {
		logger.Error().Err(err).Str("source", source).Msg("Failed to allocate root")
		return nil, &gfs.OpError{Op: "mount", Name: source, Err: err}
	}
	root.fuseAttr.Nlink = 2
	fs.root = root
	fs.registry.Store(root.id, root)

	logger.Info().
		Str("mount", fs.id.String()).
		Str("source", source).
		Uint32("magic", cfg.Magic).
		Str("maxNodes", maxNodesString(cfg.MaxNodes)).
		Msg("Mounted")
	return fs, nil
}

func maxNodesString(n uint64) string {
	if n == 0 {
		return "unlimited"
	}
	return humanize.Comma(int64(n))
}

// Unmount destroys every node reachable from root, children before their
// directory, then root itself. Calling it again is a no-op. Pins held by the
// host do not delay destruction. The host must not run other operations on
// the mount concurrently with Unmount.
//
// A node left over after the walk means the tree and registry disagree; that
// is an internal defect and panics.
func (fs *FileSystem) Unmount() {
	logger := util.GetLogger("FS.Unmount")
	if !fs.unmounted.CompareAndSwap(false, true) {
		return
	}

	destroyed := fs.drain(fs.root)
	fs.destroy(fs.root)
	destroyed++

	// Unlinked nodes still pinned by the host are off the tree by now.
	var orphans []*Node
	fs.registry.Range(func(_ uint64, n *Node) bool {
		if n.LinkCount() == 0 {
			orphans = append(orphans, n)
		}
		return true
	})
	for _, n := range orphans {
		if fs.destroy(n) {
			destroyed++
		}
	}

	if left := fs.registry.Size(); left != 0 || fs.alloc.Live() != 0 {
		logger.Panic().
			Int("registry", left).
			Uint64("live", fs.alloc.Live()).
			Msg("Unmount left nodes behind")
	}
	logger.Info().
		Str("mount", fs.id.String()).
		Str("source", fs.source).
		Int("destroyed", destroyed).
		Msg("Unmounted")
}

// drain destroys everything below dir in post-order and empties its table.
// Hard-linked nodes are visited once per name but destroyed once.
func (fs *FileSystem) drain(dir *Node) int {
	dir.mu.Lock()
	children := dir.entries.nodes()
	dir.entries.reset()
	dir.mu.Unlock()

	count := 0
	for _, child := range children {
		if child.IsDir() {
			count += fs.drain(child)
		}
		if fs.destroy(child) {
			count++
		}
	}
	return count
}

// destroy releases n's payload and forgets it. Returns false if n was
// already destroyed.
func (fs *FileSystem) destroy(n *Node) bool {
	if !n.isDel.CompareAndSwap(false, true) {
		return false
	}
	n.updateAttr(func(attr *fuse.Attr) { attr.Nlink = 0 })
	if n.content != nil {
		n.content.Release()
	}
	fs.registry.Delete(n.id)
	fs.alloc.release()

	logger := util.GetLogger("FS.destroy")
	logger.Trace().Uint64("id", n.id).Str("kind", n.kind.String()).Msg("Destroyed node")
	return true
}

// discard undoes an allocation that was never linked.
func (fs *FileSystem) discard(n *Node) {
	if n.content != nil {
		n.content.Release()
	}
	n.isDel.Store(true)
	fs.alloc.release()
}

// dropLink removes one name's worth of Nlink from a non-directory and
// destroys it once neither names nor pins remain.
func (fs *FileSystem) dropLink(n *Node, now time.Time) {
	n.attrMu.Lock()
	if n.fuseAttr.Nlink > 0 {
		n.fuseAttr.Nlink--
	}
	setCtime(&n.fuseAttr, now)
	dead := n.fuseAttr.Nlink == 0 && n.pins == 0
	n.attrMu.Unlock()

	if dead {
		fs.destroy(n)
	}
}

// dropDir marks a removed directory unlinked and destroys it unless pinned.
func (fs *FileSystem) dropDir(n *Node, now time.Time) {
	n.attrMu.Lock()
	n.fuseAttr.Nlink = 0
	setCtime(&n.fuseAttr, now)
	dead := n.pins == 0
	n.attrMu.Unlock()

	if dead {
		fs.destroy(n)
	}
}

// Acquire pins n on behalf of the host (an open handle, a cached reference).
// A pinned node outlives its last name until the matching [FileSystem.Release].
func (fs *FileSystem) Acquire(n *Node) error {
	n.attrMu.Lock()
	defer n.attrMu.Unlock()
	if n.isDel.Load() {
		return &gfs.OpError{Op: "acquire", Err: gfs.ErrNotFound}
	}
	n.pins++
	return nil
}

// Release drops one pin, destroying n if it has no names left.
func (fs *FileSystem) Release(n *Node) {
	n.attrMu.Lock()
	if n.pins > 0 {
		n.pins--
	}
	dead := n.pins == 0 && n.fuseAttr.Nlink == 0
	n.attrMu.Unlock()

	if dead {
		fs.destroy(n)
	}
}

// Root returns the mount's root directory.
func (fs *FileSystem) Root() *Node {
	return fs.root
}

// ID returns the mount instance identifier.
func (fs *FileSystem) ID() uuid.UUID {
	return fs.id
}

// Source returns the backing identifier given to [Mount].
func (fs *FileSystem) Source() string {
	return fs.source
}

// Magic returns the filesystem type identifier.
func (fs *FileSystem) Magic() uint32 {
	return fs.cfg.Magic
}

func (fs *FileSystem) Config() *config.Config {
	return fs.cfg
}

// NodeByID returns a live node of this mount by id.
func (fs *FileSystem) NodeByID(id uint64) (*Node, bool) {
	return fs.registry.Load(id)
}

// Stats is a snapshot of a mount's allocation state.
type Stats struct {
	Live     uint64 // nodes allocated and not destroyed, unlinked-but-pinned included
	Linked   int    // nodes reachable by id
	MaxNodes uint64 // 0 = unlimited
	LastID   uint64
}

func (fs *FileSystem) Stats() Stats {
	return Stats{
		Live:     fs.alloc.Live(),
		Linked:   fs.registry.Size(),
		MaxNodes: fs.cfg.MaxNodes,
		LastID:   fs.alloc.LastID(),
	}
}

// owns reports whether n was allocated by this mount and is still linked or pinned.
func (fs *FileSystem) owns(n *Node) bool {
	got, ok := fs.registry.Load(n.id)
	return ok && got == n
}

// actor resolves a nil actor to the configured defaults.
func (fs *FileSystem) actor(a *gfs.Actor) gfs.Actor {
	if a != nil {
		return *a
	}
	return gfs.Actor{UID: fs.cfg.DefaultUID, GID: fs.cfg.DefaultGID}
}

func opErr(op, name string, err error) error {
	return &gfs.OpError{Op: op, Name: name, Err: err}
}

func (fs *FileSystem) String() string {
	return fmt.Sprintf("gfs(%s@%s)", fs.id, fs.source)
}
