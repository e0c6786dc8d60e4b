// Package fusefs exposes a gfs namespace to the kernel through the go-fuse
// node API. Every callback is a thin translation onto a
// [filesystem.FileSystem] operation.
package fusefs

import (
	"context"
	"syscall"

	"github.com/brettbedarf/gfs"
	"github.com/brettbedarf/gfs/filesystem"
	"github.com/brettbedarf/gfs/internal/util"
	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
	"golang.org/x/sys/unix"
)

// Node bridges one engine node to the kernel. go-fuse deduplicates inodes by
// Ino, so every name of a hard-linked node maps to the same Node.
type Node struct {
	fs.Inode

	fsys *filesystem.FileSystem
	node *filesystem.Node
}

var (
	_ fs.NodeLookuper   = (*Node)(nil)
	_ fs.NodeGetattrer  = (*Node)(nil)
	_ fs.NodeSetattrer  = (*Node)(nil)
	_ fs.NodeMkdirer    = (*Node)(nil)
	_ fs.NodeMknoder    = (*Node)(nil)
	_ fs.NodeCreater    = (*Node)(nil)
	_ fs.NodeSymlinker  = (*Node)(nil)
	_ fs.NodeLinker     = (*Node)(nil)
	_ fs.NodeReadlinker = (*Node)(nil)
	_ fs.NodeUnlinker   = (*Node)(nil)
	_ fs.NodeRmdirer    = (*Node)(nil)
	_ fs.NodeRenamer    = (*Node)(nil)
	_ fs.NodeReaddirer  = (*Node)(nil)
	_ fs.NodeOpener     = (*Node)(nil)
	_ fs.NodeReader     = (*Node)(nil)
	_ fs.NodeWriter     = (*Node)(nil)
	_ fs.NodeReleaser   = (*Node)(nil)
	_ fs.NodeStatfser   = (*Node)(nil)
)

// NewRoot returns the bridge node for fsys's root directory.
func NewRoot(fsys *filesystem.FileSystem) *Node {
	return &Node{fsys: fsys, node: fsys.Root()}
}

// Engine returns the engine node behind n.
func (n *Node) Engine() *filesystem.Node {
	return n.node
}

// actor reads the calling process's credentials from ctx.
func actor(ctx context.Context) *gfs.Actor {
	caller, ok := fuse.FromContext(ctx)
	if !ok {
		return nil
	}
	return &gfs.Actor{UID: caller.Uid, GID: caller.Gid}
}

// newChild wraps an engine node in a kernel inode and fills the entry reply.
func (n *Node) newChild(ctx context.Context, child *filesystem.Node, out *fuse.EntryOut) *fs.Inode {
	n.fillEntry(ctx, child, out)
	op := &Node{fsys: n.fsys, node: child}
	return n.NewInode(ctx, op, fs.StableAttr{
		Mode: child.Mode() & gfs.TypeMask,
		Ino:  child.ID(),
	})
}

func (n *Node) fillEntry(ctx context.Context, child *filesystem.Node, out *fuse.EntryOut) {
	cfg := n.fsys.Config()
	fillAttr(ctx, child, &out.Attr)
	out.SetEntryTimeout(seconds(cfg.EntryTimeout))
	out.SetAttrTimeout(seconds(cfg.AttrTimeout))
}

func (n *Node) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	logger := util.GetLogger("Fuse.Lookup")
	child, err := n.fsys.Lookup(n.node, name)
	if err != nil {
		logger.Trace().Err(err).Uint64("parent", n.node.ID()).Str("name", name).Msg("Lookup failed")
		return nil, ToErrno(err)
	}
	return n.newChild(ctx, child, out), fs.OK
}

func (n *Node) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	fillAttr(ctx, n.node, &out.Attr)
	out.SetTimeout(seconds(n.fsys.Config().AttrTimeout))
	return fs.OK
}

// Setattr applies mode, owner and time changes through the engine. A size
// change truncates the node's content.
func (n *Node) Setattr(ctx context.Context, f fs.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	logger := util.GetLogger("Fuse.Setattr")

	if size, ok := in.GetSize(); ok {
		fa, ok := n.node.Content().(gfs.FileAdapter)
		if !ok {
			if n.node.IsDir() {
				return syscall.EISDIR
			}
			return syscall.EINVAL
		}
		if err := fa.Truncate(ctx, int64(size)); err != nil {
			logger.Debug().Err(err).Uint64("id", n.node.ID()).Uint64("size", size).Msg("Truncate failed")
			return ToErrno(err)
		}
		if err := n.fsys.TouchContent(n.node); err != nil {
			return ToErrno(err)
		}
	}

	req := &gfs.SetAttrRequest{}
	if mode, ok := in.GetMode(); ok {
		req.Mode = &mode
	}
	if uid, ok := in.GetUID(); ok {
		req.UID = &uid
	}
	if gid, ok := in.GetGID(); ok {
		req.GID = &gid
	}
	if atime, ok := in.GetATime(); ok {
		req.Atime = &atime
	}
	if mtime, ok := in.GetMTime(); ok {
		req.Mtime = &mtime
	}
	if err := n.fsys.SetAttr(n.node, req); err != nil {
		return ToErrno(err)
	}
	return n.Getattr(ctx, f, out)
}

func (n *Node) Mkdir(ctx context.Context, name string, mode uint32, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	child, err := n.fsys.Mkdir(n.node, name, mode, actor(ctx))
	if err != nil {
		return nil, ToErrno(err)
	}
	return n.newChild(ctx, child, out), fs.OK
}

// Mknod creates a node typed by mode. dev is only meaningful for character
// and block devices.
func (n *Node) Mknod(ctx context.Context, name string, mode, dev uint32, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	_, class, err := gfs.KindFromMode(mode)
	if err != nil {
		return nil, ToErrno(err)
	}
	info := gfs.DeviceFromRdev(class, uint64(dev))
	child, err := n.fsys.Mknod(n.node, name, mode, &info, actor(ctx))
	if err != nil {
		return nil, ToErrno(err)
	}
	return n.newChild(ctx, child, out), fs.OK
}

// Create makes a regular file and opens it in one step.
func (n *Node) Create(ctx context.Context, name string, flags, mode uint32, out *fuse.EntryOut) (*fs.Inode, fs.FileHandle, uint32, syscall.Errno) {
	child, err := n.fsys.Create(n.node, name, mode, actor(ctx))
	if err != nil {
		return nil, nil, 0, ToErrno(err)
	}
	inode := n.newChild(ctx, child, out)
	fh, errno := openHandle(ctx, n.fsys, child, flags)
	if errno != fs.OK {
		return nil, nil, 0, errno
	}
	return inode, fh, 0, fs.OK
}

func (n *Node) Symlink(ctx context.Context, target, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	child, err := n.fsys.Symlink(n.node, name, target, actor(ctx))
	if err != nil {
		return nil, ToErrno(err)
	}
	return n.newChild(ctx, child, out), fs.OK
}

func (n *Node) Link(ctx context.Context, target fs.InodeEmbedder, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	existing, ok := target.(*Node)
	if !ok || existing.fsys != n.fsys {
		return nil, syscall.EXDEV
	}
	if err := n.fsys.Link(n.node, name, existing.node); err != nil {
		return nil, ToErrno(err)
	}
	return n.newChild(ctx, existing.node, out), fs.OK
}

func (n *Node) Readlink(ctx context.Context) ([]byte, syscall.Errno) {
	target, err := n.fsys.Readlink(n.node)
	if err != nil {
		return nil, ToErrno(err)
	}
	return []byte(target), fs.OK
}

func (n *Node) Unlink(ctx context.Context, name string) syscall.Errno {
	return ToErrno(n.fsys.Unlink(n.node, name))
}

func (n *Node) Rmdir(ctx context.Context, name string) syscall.Errno {
	return ToErrno(n.fsys.Rmdir(n.node, name))
}

// Rename supports RENAME_NOREPLACE; RENAME_EXCHANGE is refused.
func (n *Node) Rename(ctx context.Context, name string, newParent fs.InodeEmbedder, newName string, flags uint32) syscall.Errno {
	logger := util.GetLogger("Fuse.Rename")

	dst, ok := newParent.(*Node)
	if !ok || dst.fsys != n.fsys {
		return syscall.EXDEV
	}
	if flags&unix.RENAME_EXCHANGE != 0 {
		return syscall.ENOTSUP
	}
	if flags&unix.RENAME_NOREPLACE != 0 {
		if _, err := n.fsys.Lookup(dst.node, newName); err == nil {
			return syscall.EEXIST
		}
	}
	if err := n.fsys.Rename(n.node, name, dst.node, newName); err != nil {
		logger.Debug().Err(err).Str("name", name).Str("newName", newName).Msg("Rename failed")
		return ToErrno(err)
	}
	return fs.OK
}

func (n *Node) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	entries, err := n.fsys.ReadDir(n.node)
	if err != nil {
		return nil, ToErrno(err)
	}
	out := make([]fuse.DirEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, fuse.DirEntry{
			Name: e.Name,
			Ino:  e.ID,
			Mode: e.Mode & gfs.TypeMask,
		})
	}
	return fs.NewListDirStream(out), fs.OK
}

// Statfs reports node usage against the configured ceiling.
func (n *Node) Statfs(ctx context.Context, out *fuse.StatfsOut) syscall.Errno {
	cfg := n.fsys.Config()
	stats := n.fsys.Stats()

	out.Bsize = 4096
	out.Frsize = 4096
	out.NameLen = uint32(cfg.MaxNameLen)
	if stats.MaxNodes > 0 {
		out.Files = stats.MaxNodes
		out.Ffree = stats.MaxNodes - min(stats.Live, stats.MaxNodes)
	} else {
		out.Files = stats.Live + freeFilesUnbounded
		out.Ffree = freeFilesUnbounded
	}
	return fs.OK
}

// freeFilesUnbounded is reported as free inodes when no ceiling is set.
const freeFilesUnbounded = 1 << 32
