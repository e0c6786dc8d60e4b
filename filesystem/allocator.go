package filesystem

import (
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/brettbedarf/gfs"
	"github.com/dustin/go-humanize"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// RootID is the identifier of every mount's root directory. It is the first
// id the allocator hands out and matches the FUSE root node id.
const RootID = fuse.FUSE_ROOT_ID

// Allocator assigns node ids and builds typed nodes. One Allocator belongs to
// exactly one [FileSystem]; ids are never shared or reused across mounts.
type Allocator struct {
	lastID     atomic.Uint64 // Last id assigned
	live       atomic.Uint64 // Nodes allocated and not yet destroyed
	maxLive    uint64        // 0 = bounded only by the id space
	maxID      uint64
	maxEntries int
	now        func() time.Time
	content    gfs.ContentProvider
}

func newAllocator(maxLive uint64, maxEntries int, now func() time.Time, content gfs.ContentProvider) *Allocator {
	a := &Allocator{
		maxLive:    maxLive,
		maxID:      math.MaxUint64,
		maxEntries: maxEntries,
		now:        now,
		content:    content,
	}
	a.lastID.Store(RootID - 1)
	return a
}

// Live returns the number of nodes currently allocated.
func (a *Allocator) Live() uint64 {
	return a.live.Load()
}

// LastID returns the most recently assigned id.
func (a *Allocator) LastID() uint64 {
	return a.lastID.Load()
}

// Allocate builds a node of the given kind. mode's permission bits are kept;
// its type bits, if any, must agree with kind. Special nodes must carry type
// bits so the device class is known.
//
// Nothing is linked anywhere, so a failure here leaves the tree untouched.
func (a *Allocator) Allocate(kind gfs.Kind, mode uint32, owner gfs.Actor) (*Node, error) {
	class, err := checkModeKind(kind, mode)
	if err != nil {
		return nil, err
	}

	if err := a.reserve(); err != nil {
		return nil, err
	}
	id, err := a.nextID()
	if err != nil {
		a.release()
		return nil, err
	}

	n := &Node{
		id:       id,
		kind:     kind,
		fuseAttr: newDefaultAttr(id, gfs.TypeBits(kind, class)|(mode&gfs.PermMask), owner, a.now()),
	}
	switch kind {
	case gfs.KindDirectory:
		n.entries = newEntryTable(a.maxEntries)
	case gfs.KindRegular:
		if a.content != nil {
			h, err := a.content.NewContent(id)
			if err != nil {
				a.release()
				return nil, fmt.Errorf("%w: content for node %d: %v", gfs.ErrResourceExhausted, id, err)
			}
			n.content = h
		}
	case gfs.KindSpecial:
		n.device.Class = class
	}
	return n, nil
}

// reserve claims a live-node slot against the ceiling.
func (a *Allocator) reserve() error {
	if a.maxLive == 0 {
		a.live.Add(1)
		return nil
	}
	for {
		cur := a.live.Load()
		if cur >= a.maxLive {
			return fmt.Errorf("%w: node ceiling of %s reached", gfs.ErrResourceExhausted, humanize.Comma(int64(a.maxLive)))
		}
		if a.live.CompareAndSwap(cur, cur+1) {
			return nil
		}
	}
}

// nextID hands out the next id, failing once the id space is spent.
func (a *Allocator) nextID() (uint64, error) {
	for {
		cur := a.lastID.Load()
		if cur >= a.maxID {
			return 0, fmt.Errorf("%w: node id space exhausted", gfs.ErrResourceExhausted)
		}
		if a.lastID.CompareAndSwap(cur, cur+1) {
			return cur + 1, nil
		}
	}
}

// release returns a live-node slot.
func (a *Allocator) release() {
	a.live.Add(^uint64(0))
}

func checkModeKind(kind gfs.Kind, mode uint32) (gfs.DeviceClass, error) {
	if mode&gfs.TypeMask == 0 {
		if kind == gfs.KindSpecial {
			return 0, fmt.Errorf("%w: special node without file type bits", gfs.ErrInvalidArgument)
		}
		return 0, nil
	}
	got, class, err := gfs.KindFromMode(mode)
	if err != nil {
		return 0, err
	}
	if got != kind {
		return 0, fmt.Errorf("%w: mode %#o is not a %s", gfs.ErrInvalidArgument, mode, kind)
	}
	return class, nil
}
