package filesystem

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/brettbedarf/gfs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// Node is a single filesystem object. Its kind is fixed at allocation and
// selects which payload field is live: entries for directories, content for
// regular files, target for symlinks, device for special files.
//
// Nodes carry no parent pointer or name; a regular node may sit under several
// names at once. All mutation goes through [FileSystem] operations.
type Node struct {
	id   uint64
	kind gfs.Kind

	mu      sync.RWMutex // Directory lock. Guards entries
	entries *EntryTable

	attrMu   sync.RWMutex // Guards fuseAttr and pins
	fuseAttr fuse.Attr
	pins     int // host references keeping an unlinked node alive

	target  string            // Symlink payload
	device  gfs.DeviceInfo    // Special payload
	content gfs.ContentHandle // Regular payload, owned by the host

	isDel atomic.Bool
}

var _ gfs.NodeInfo = (*Node)(nil)

// ID returns the node's mount-unique identifier
func (n *Node) ID() uint64 {
	return n.id
}

func (n *Node) Kind() gfs.Kind {
	return n.kind
}

func (n *Node) IsDir() bool {
	return n.kind == gfs.KindDirectory
}

// IsDel returns true once the node has been destroyed
func (n *Node) IsDel() bool {
	return n.isDel.Load()
}

// CopyAttr returns a thread-safe copy of the node's attributes
func (n *Node) CopyAttr() fuse.Attr {
	n.attrMu.RLock()
	defer n.attrMu.RUnlock()
	return n.fuseAttr
}

func (n *Node) Mode() uint32 {
	n.attrMu.RLock()
	defer n.attrMu.RUnlock()
	return n.fuseAttr.Mode
}

// LinkCount returns the number of names referring to this node (Nlink).
func (n *Node) LinkCount() uint32 {
	n.attrMu.RLock()
	defer n.attrMu.RUnlock()
	return n.fuseAttr.Nlink
}

// Target returns a symlink's stored target; empty for other kinds.
func (n *Node) Target() string {
	return n.target
}

// Device returns a special node's device identifier.
func (n *Node) Device() gfs.DeviceInfo {
	return n.device
}

// Content returns the host content handle of a regular node; nil otherwise.
func (n *Node) Content() gfs.ContentHandle {
	return n.content
}

// updateAttr runs fn under the attribute write-lock.
func (n *Node) updateAttr(fn func(attr *fuse.Attr)) {
	n.attrMu.Lock()
	defer n.attrMu.Unlock()
	fn(&n.fuseAttr)
}

// touchModified marks a content or entry change at now.
func (n *Node) touchModified(now time.Time) {
	n.updateAttr(func(attr *fuse.Attr) {
		setMtime(attr, now)
		setCtime(attr, now)
	})
}

// touchChanged marks a metadata-only change at now.
func (n *Node) touchChanged(now time.Time) {
	n.updateAttr(func(attr *fuse.Attr) {
		setCtime(attr, now)
	})
}

// addLinks adjusts Nlink by delta and returns the new count.
func (n *Node) addLinks(delta int) uint32 {
	n.attrMu.Lock()
	defer n.attrMu.Unlock()
	n.fuseAttr.Nlink = uint32(int(n.fuseAttr.Nlink) + delta)
	return n.fuseAttr.Nlink
}
