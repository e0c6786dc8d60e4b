package filesystem

import (
	"errors"
	"fmt"
	"strings"

	"github.com/brettbedarf/gfs"
	"github.com/brettbedarf/gfs/internal/util"
	"github.com/hanwen/go-fuse/v2/fuse"
)

/* Namespace operations. Every operation takes a parent directory of this
mount plus a name, and either completes or fails with an *gfs.OpError
leaving the tree exactly as it was. */

// Lookup returns the node named name in parent. "." resolves to parent
// itself; ".." is left to the host. Lookup never mutates anything.
func (fs *FileSystem) Lookup(parent *Node, name string) (*Node, error) {
	const op = "lookup"
	logger := util.GetLogger("FS.Lookup")

	if err := fs.requireDir(op, name, parent); err != nil {
		return nil, err
	}
	if name == "." {
		if gone(parent) {
			return nil, opErr(op, name, gfs.ErrNotFound)
		}
		return parent, nil
	}
	if err := fs.checkName(op, name); err != nil {
		return nil, err
	}

	ctx := rlockDir(parent)
	defer ctx.Close()
	if gone(parent) {
		return nil, opErr(op, name, gfs.ErrNotFound)
	}
	child, ok := parent.entries.get(name)
	if !ok {
		logger.Trace().Uint64("parent", parent.id).Str("name", name).Msg("No entry")
		return nil, opErr(op, name, gfs.ErrNotFound)
	}
	return child, nil
}

// Create adds a regular file. Equivalent to Mknod with regular type bits.
func (fs *FileSystem) Create(parent *Node, name string, mode uint32, actor *gfs.Actor) (*Node, error) {
	const op = "create"
	if t := mode & gfs.TypeMask; t != 0 && t != gfs.RegularType {
		return nil, opErr(op, name, fmt.Errorf("%w: mode %#o is not a regular file", gfs.ErrInvalidArgument, mode))
	}
	return fs.mknod(op, parent, name, mode|gfs.RegularType, nil, "", actor)
}

// Mkdir adds an empty directory with Nlink 2 and bumps parent's Nlink by one
// for the new directory's implicit "..".
func (fs *FileSystem) Mkdir(parent *Node, name string, mode uint32, actor *gfs.Actor) (*Node, error) {
	const op = "mkdir"
	if t := mode & gfs.TypeMask; t != 0 && t != gfs.DirType {
		return nil, opErr(op, name, fmt.Errorf("%w: mode %#o is not a directory", gfs.ErrInvalidArgument, mode))
	}
	return fs.mknod(op, parent, name, mode|gfs.DirType, nil, "", actor)
}

// Mknod adds a node typed by mode's type bits. Special nodes require dev.
// Directory type bits behave exactly like [FileSystem.Mkdir]; symlink type
// bits are rejected since a symlink needs a target.
func (fs *FileSystem) Mknod(parent *Node, name string, mode uint32, dev *gfs.DeviceInfo, actor *gfs.Actor) (*Node, error) {
	const op = "mknod"
	if mode&gfs.TypeMask == gfs.SymlinkType {
		return nil, opErr(op, name, fmt.Errorf("%w: symlinks are created with a target", gfs.ErrInvalidArgument))
	}
	return fs.mknod(op, parent, name, mode, dev, "", actor)
}

// Symlink adds a symlink storing target verbatim. The target is never
// resolved or validated beyond its length.
func (fs *FileSystem) Symlink(parent *Node, name, target string, actor *gfs.Actor) (*Node, error) {
	return fs.mknod("symlink", parent, name, gfs.SymlinkType|0o777, nil, target, actor)
}

// mknod is the single creating primitive behind Create, Mkdir, Mknod and
// Symlink. Checks that can fail run before allocation so that nothing has to
// be unlinked on error.
func (fs *FileSystem) mknod(op string, parent *Node, name string, mode uint32, dev *gfs.DeviceInfo, target string, actor *gfs.Actor) (*Node, error) {
	logger := util.GetLogger("FS.Mknod")

	kind, class, err := gfs.KindFromMode(mode)
	if err != nil {
		return nil, opErr(op, name, err)
	}
	if err := fs.requireDir(op, name, parent); err != nil {
		return nil, err
	}
	if err := fs.checkName(op, name); err != nil {
		return nil, err
	}

	ctx := lockDirs(parent)
	defer ctx.Close()

	if gone(parent) {
		return nil, opErr(op, name, gfs.ErrNotFound)
	}
	if _, ok := parent.entries.get(name); ok {
		return nil, opErr(op, name, gfs.ErrAlreadyExists)
	}
	if kind == gfs.KindSpecial {
		if err := checkDevice(class, dev); err != nil {
			return nil, opErr(op, name, err)
		}
	}
	if parent.entries.full() {
		return nil, opErr(op, name, fmt.Errorf("%w: directory %d is full", gfs.ErrResourceExhausted, parent.id))
	}

	n, err := fs.alloc.Allocate(kind, mode, fs.actor(actor))
	if err != nil {
		logger.Debug().Err(err).Str("op", op).Str("name", name).Msg("Allocation failed")
		return nil, opErr(op, name, err)
	}

	// n is not yet published, so its fields are written directly.
	switch kind {
	case gfs.KindDirectory:
		n.fuseAttr.Nlink = 2
	case gfs.KindSymlink:
		if err := fs.storeTarget(n, target); err != nil {
			fs.discard(n)
			return nil, opErr(op, name, err)
		}
	case gfs.KindSpecial:
		n.device = gfs.DeviceInfo{Class: class, Major: dev.Major, Minor: dev.Minor}
		n.fuseAttr.Rdev = uint32(n.device.Rdev())
	}

	if err := parent.entries.insert(name, n); err != nil {
		fs.discard(n)
		return nil, opErr(op, name, err)
	}
	fs.registry.Store(n.id, n)

	now := fs.now()
	parent.updateAttr(func(attr *fuse.Attr) {
		if kind == gfs.KindDirectory {
			attr.Nlink++
		}
		setMtime(attr, now)
		setCtime(attr, now)
	})

	logger.Debug().
		Str("op", op).
		Uint64("parent", parent.id).
		Str("name", name).
		Uint64("id", n.id).
		Str("kind", kind.String()).
		Msg("Created node")
	return n, nil
}

// Largest device numbers the 32-bit FUSE rdev encoding can carry.
const (
	maxDevMajor = 1<<12 - 1
	maxDevMinor = 1<<20 - 1
)

// checkDevice requires device info for special nodes, and for character and
// block devices a major/minor pair that survives the attribute's rdev field.
func checkDevice(class gfs.DeviceClass, dev *gfs.DeviceInfo) error {
	if dev == nil {
		return fmt.Errorf("%w: %s node requires device info", gfs.ErrInvalidArgument, class)
	}
	if class != gfs.CharDevice && class != gfs.BlockDevice {
		return nil
	}
	if dev.Major > maxDevMajor || dev.Minor > maxDevMinor {
		return fmt.Errorf("%w: device %d:%d exceeds %d:%d", gfs.ErrInvalidArgument, dev.Major, dev.Minor, maxDevMajor, maxDevMinor)
	}
	return nil
}

func (fs *FileSystem) storeTarget(n *Node, target string) error {
	if target == "" {
		return fmt.Errorf("%w: empty symlink target", gfs.ErrInvalidArgument)
	}
	if limit := fs.cfg.MaxSymlinkLen; limit > 0 && len(target) > limit {
		return fmt.Errorf("%w: symlink target of %d bytes exceeds %d", gfs.ErrInvalidArgument, len(target), limit)
	}
	n.target = target
	n.fuseAttr.Size = uint64(len(target))
	return nil
}

// Link adds name in parent as a new hard link to existing. Directories cannot
// be hard linked.
func (fs *FileSystem) Link(parent *Node, name string, existing *Node) error {
	const op = "link"
	logger := util.GetLogger("FS.Link")

	if err := fs.requireDir(op, name, parent); err != nil {
		return err
	}
	if err := fs.checkName(op, name); err != nil {
		return err
	}
	if existing == nil {
		return opErr(op, name, fmt.Errorf("%w: nil link target", gfs.ErrInvalidArgument))
	}
	if existing.IsDir() {
		return opErr(op, name, gfs.ErrIsADirectory)
	}
	if !fs.owns(existing) {
		if existing.IsDel() {
			return opErr(op, name, gfs.ErrNotFound)
		}
		return opErr(op, name, fmt.Errorf("%w: node %d belongs to another mount", gfs.ErrInvalidArgument, existing.id))
	}

	ctx := lockDirs(parent)
	defer ctx.Close()

	if gone(parent) {
		return opErr(op, name, gfs.ErrNotFound)
	}
	if _, ok := parent.entries.get(name); ok {
		return opErr(op, name, gfs.ErrAlreadyExists)
	}
	if parent.entries.full() {
		return opErr(op, name, fmt.Errorf("%w: directory %d is full", gfs.ErrResourceExhausted, parent.id))
	}

	now := fs.now()
	existing.attrMu.Lock()
	if existing.isDel.Load() || existing.fuseAttr.Nlink == 0 {
		existing.attrMu.Unlock()
		return opErr(op, name, gfs.ErrNotFound)
	}
	existing.fuseAttr.Nlink++
	setCtime(&existing.fuseAttr, now)
	existing.attrMu.Unlock()

	// Cannot fail: presence and capacity were checked under the same lock.
	_ = parent.entries.insert(name, existing)
	parent.touchModified(now)

	logger.Debug().Uint64("parent", parent.id).Str("name", name).Uint64("id", existing.id).Msg("Linked node")
	return nil
}

// Unlink removes a non-directory name. The node is destroyed once its last
// name is gone and the host holds no pins on it.
func (fs *FileSystem) Unlink(parent *Node, name string) error {
	const op = "unlink"
	logger := util.GetLogger("FS.Unlink")

	if err := fs.requireDir(op, name, parent); err != nil {
		return err
	}
	if err := fs.checkName(op, name); err != nil {
		return err
	}

	ctx := lockDirs(parent)
	defer ctx.Close()

	if gone(parent) {
		return opErr(op, name, gfs.ErrNotFound)
	}
	child, ok := parent.entries.get(name)
	if !ok {
		return opErr(op, name, gfs.ErrNotFound)
	}
	if child.IsDir() {
		return opErr(op, name, gfs.ErrIsADirectory)
	}

	parent.entries.remove(name)
	now := fs.now()
	parent.touchModified(now)
	fs.dropLink(child, now)

	logger.Debug().Uint64("parent", parent.id).Str("name", name).Uint64("id", child.id).Msg("Unlinked node")
	return nil
}

// Rmdir removes an empty directory and drops parent's Nlink by one.
func (fs *FileSystem) Rmdir(parent *Node, name string) error {
	const op = "rmdir"

	if err := fs.requireDir(op, name, parent); err != nil {
		return err
	}
	if err := fs.checkName(op, name); err != nil {
		return err
	}
	for {
		retry, err := fs.tryRmdir(parent, name)
		if !retry {
			return err
		}
	}
}

// tryRmdir needs the child's lock as well as the parent's to check emptiness.
// It finds the child under the parent lock, then locks both in id order and
// asks for a retry if the entry changed in between.
func (fs *FileSystem) tryRmdir(parent *Node, name string) (retry bool, err error) {
	const op = "rmdir"
	logger := util.GetLogger("FS.Rmdir")

	child, err := fs.peek(op, parent, name)
	if err != nil {
		return false, err
	}
	if !child.IsDir() {
		return false, opErr(op, name, gfs.ErrNotADirectory)
	}

	ctx := lockDirs(parent, child)
	defer ctx.Close()

	if gone(parent) {
		return false, opErr(op, name, gfs.ErrNotFound)
	}
	if cur, ok := parent.entries.get(name); !ok || cur != child {
		return true, nil
	}
	if child.entries.Len() > 0 {
		return false, opErr(op, name, gfs.ErrDirectoryNotEmpty)
	}

	parent.entries.remove(name)
	now := fs.now()
	parent.updateAttr(func(attr *fuse.Attr) {
		attr.Nlink--
		setMtime(attr, now)
		setCtime(attr, now)
	})
	fs.dropDir(child, now)

	logger.Debug().Uint64("parent", parent.id).Str("name", name).Uint64("id", child.id).Msg("Removed directory")
	return false, nil
}

// Rename moves oldName in oldParent to newName in newParent, replacing a
// compatible existing target. Observers see the name in exactly one place:
// both directories stay locked across the swap.
//
// Not every existing target is replaced. As with rename(2), a directory
// cannot replace a non-directory (NotADirectory), a non-directory cannot
// replace a directory (IsADirectory), and a directory target must be empty
// (DirectoryNotEmpty).
func (fs *FileSystem) Rename(oldParent *Node, oldName string, newParent *Node, newName string) error {
	const op = "rename"

	if err := fs.requireDir(op, oldName, oldParent); err != nil {
		return err
	}
	if err := fs.requireDir(op, newName, newParent); err != nil {
		return err
	}
	if err := fs.checkName(op, oldName); err != nil {
		return err
	}
	if err := fs.checkName(op, newName); err != nil {
		return err
	}

	// Only cross-directory renames can change ancestry; holding renameMu
	// keeps the subtree check below valid until the swap is done.
	if oldParent != newParent {
		fs.renameMu.Lock()
		defer fs.renameMu.Unlock()
	}
	for {
		retry, err := fs.tryRename(oldParent, oldName, newParent, newName)
		if !retry {
			return err
		}
	}
}

func (fs *FileSystem) tryRename(oldParent *Node, oldName string, newParent *Node, newName string) (retry bool, err error) {
	const op = "rename"
	logger := util.GetLogger("FS.Rename")
	cross := oldParent != newParent

	src, err := fs.peek(op, oldParent, oldName)
	if err != nil {
		return false, err
	}
	tgt, err := fs.peek(op, newParent, newName)
	if err != nil && !isNotFound(err) {
		return false, err
	}
	if src == tgt {
		// Both names already refer to the same node.
		return false, nil
	}
	if cross && src.IsDir() && fs.isWithin(src, newParent) {
		return false, opErr(op, newName, fmt.Errorf("%w: cannot move a directory into itself", gfs.ErrInvalidArgument))
	}

	var tgtDir *Node
	if tgt != nil && tgt.IsDir() {
		tgtDir = tgt
	}
	ctx := lockDirs(oldParent, newParent, tgtDir)
	defer ctx.Close()

	if gone(oldParent) || gone(newParent) {
		return false, opErr(op, oldName, gfs.ErrNotFound)
	}
	if cur, ok := oldParent.entries.get(oldName); !ok || cur != src {
		return true, nil
	}
	if cur, _ := newParent.entries.get(newName); cur != tgt {
		return true, nil
	}

	if tgt != nil {
		switch {
		case src.IsDir() && !tgt.IsDir():
			return false, opErr(op, newName, gfs.ErrNotADirectory)
		case !src.IsDir() && tgt.IsDir():
			return false, opErr(op, newName, gfs.ErrIsADirectory)
		case tgt.IsDir() && tgt.entries.Len() > 0:
			return false, opErr(op, newName, gfs.ErrDirectoryNotEmpty)
		}
	} else if cross && newParent.entries.full() {
		return false, opErr(op, newName, fmt.Errorf("%w: directory %d is full", gfs.ErrResourceExhausted, newParent.id))
	}

	oldParent.entries.remove(oldName)
	newParent.entries.put(newName, src)

	now := fs.now()
	if tgt != nil {
		if tgt.IsDir() {
			newParent.addLinks(-1)
			fs.dropDir(tgt, now)
		} else {
			fs.dropLink(tgt, now)
		}
	}
	if src.IsDir() && cross {
		oldParent.addLinks(-1)
		newParent.addLinks(1)
	}
	oldParent.touchModified(now)
	if cross {
		newParent.touchModified(now)
	}
	src.touchChanged(now)

	logger.Debug().
		Uint64("oldParent", oldParent.id).
		Str("oldName", oldName).
		Uint64("newParent", newParent.id).
		Str("newName", newName).
		Uint64("id", src.id).
		Bool("replaced", tgt != nil).
		Msg("Renamed node")
	return false, nil
}

// peek reads one entry under a short read lock.
func (fs *FileSystem) peek(op string, dir *Node, name string) (*Node, error) {
	ctx := rlockDir(dir)
	defer ctx.Close()
	if gone(dir) {
		return nil, opErr(op, name, gfs.ErrNotFound)
	}
	n, ok := dir.entries.get(name)
	if !ok {
		return nil, opErr(op, name, gfs.ErrNotFound)
	}
	return n, nil
}

// isWithin reports whether n is dir or lies anywhere below it. Each
// directory is read-locked on its own, never two at once.
func (fs *FileSystem) isWithin(dir, n *Node) bool {
	stack := []*Node{dir}
	for len(stack) > 0 {
		d := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if d == n {
			return true
		}
		ctx := rlockDir(d)
		for _, child := range d.entries.nodes() {
			if child.IsDir() {
				stack = append(stack, child)
			}
		}
		ctx.Close()
	}
	return false
}

// ReadDir lists dir's entries sorted by name, without "." and "..".
func (fs *FileSystem) ReadDir(dir *Node) ([]gfs.DirEntry, error) {
	const op = "readdir"
	if err := fs.requireDir(op, "", dir); err != nil {
		return nil, err
	}
	ctx := rlockDir(dir)
	defer ctx.Close()
	if gone(dir) {
		return nil, opErr(op, "", gfs.ErrNotFound)
	}
	return dir.entries.list(), nil
}

// Readlink returns a symlink's stored target.
func (fs *FileSystem) Readlink(n *Node) (string, error) {
	const op = "readlink"
	if n == nil || n.IsDel() {
		return "", opErr(op, "", gfs.ErrNotFound)
	}
	if n.kind != gfs.KindSymlink {
		return "", opErr(op, "", fmt.Errorf("%w: node %d is a %s", gfs.ErrInvalidArgument, n.id, n.kind))
	}
	return n.target, nil
}

// SetAttr applies attribute bookkeeping from req and bumps ctime. No
// permission checks are made.
func (fs *FileSystem) SetAttr(n *Node, req *gfs.SetAttrRequest) error {
	const op = "setattr"
	logger := util.GetLogger("FS.SetAttr")

	if n == nil || n.IsDel() {
		return opErr(op, "", gfs.ErrNotFound)
	}
	if req == nil {
		return nil
	}
	now := fs.now()
	n.updateAttr(func(attr *fuse.Attr) {
		if req.Mode != nil {
			attr.Mode = (attr.Mode &^ gfs.PermMask) | (*req.Mode & gfs.PermMask)
		}
		if req.UID != nil {
			attr.Owner.Uid = *req.UID
		}
		if req.GID != nil {
			attr.Owner.Gid = *req.GID
		}
		if req.Atime != nil {
			setAtime(attr, *req.Atime)
		}
		if req.Mtime != nil {
			setMtime(attr, *req.Mtime)
		}
		setCtime(attr, now)
	})
	logger.Trace().Uint64("id", n.id).Msg("Updated attributes")
	return nil
}

// TouchContent records a change to a regular node's content, as after a
// host write or truncate.
func (fs *FileSystem) TouchContent(n *Node) error {
	if n == nil || n.IsDel() {
		return opErr("touch", "", gfs.ErrNotFound)
	}
	n.touchModified(fs.now())
	return nil
}

// requireDir checks that n is a live directory of this mount.
func (fs *FileSystem) requireDir(op, name string, n *Node) error {
	if n == nil {
		return opErr(op, name, fmt.Errorf("%w: nil directory", gfs.ErrInvalidArgument))
	}
	if !n.IsDir() {
		return opErr(op, name, gfs.ErrNotADirectory)
	}
	if !fs.owns(n) {
		if n.IsDel() {
			return opErr(op, name, gfs.ErrNotFound)
		}
		return opErr(op, name, fmt.Errorf("%w: directory %d belongs to another mount", gfs.ErrInvalidArgument, n.id))
	}
	return nil
}

// checkName rejects names that can never be stored in an entry table.
func (fs *FileSystem) checkName(op, name string) error {
	switch {
	case name == "":
		return opErr(op, name, fmt.Errorf("%w: empty name", gfs.ErrInvalidArgument))
	case name == "." || name == "..":
		return opErr(op, name, fmt.Errorf("%w: reserved name", gfs.ErrInvalidArgument))
	case strings.ContainsAny(name, "/\x00"):
		return opErr(op, name, fmt.Errorf("%w: name contains '/' or NUL", gfs.ErrInvalidArgument))
	case fs.cfg.MaxNameLen > 0 && len(name) > fs.cfg.MaxNameLen:
		return opErr(op, name, fmt.Errorf("%w: name longer than %d bytes", gfs.ErrInvalidArgument, fs.cfg.MaxNameLen))
	}
	return nil
}

// gone reports whether a directory has been removed or destroyed. Callers
// hold its lock, which rmdir also holds while unlinking it.
func gone(n *Node) bool {
	return n.IsDel() || n.LinkCount() == 0
}

func isNotFound(err error) bool {
	return errors.Is(err, gfs.ErrNotFound)
}
