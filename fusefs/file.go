package fusefs

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"syscall"

	"github.com/brettbedarf/gfs"
	"github.com/brettbedarf/gfs/filesystem"
	"github.com/brettbedarf/gfs/internal/util"
	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// fileHandle is one open of a regular node. It holds a pin so the node
// survives an unlink until the last close.
type fileHandle struct {
	node     *filesystem.Node
	released atomic.Bool
}

func openHandle(ctx context.Context, fsys *filesystem.FileSystem, n *filesystem.Node, flags uint32) (*fileHandle, syscall.Errno) {
	if n.IsDir() {
		return nil, syscall.EISDIR
	}
	if err := fsys.Acquire(n); err != nil {
		return nil, ToErrno(err)
	}
	if flags&syscall.O_TRUNC != 0 {
		if fa, ok := n.Content().(gfs.FileAdapter); ok {
			if err := fa.Truncate(ctx, 0); err != nil {
				fsys.Release(n)
				return nil, ToErrno(err)
			}
			_ = fsys.TouchContent(n)
		}
	}
	return &fileHandle{node: n}, fs.OK
}

func (n *Node) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	fh, errno := openHandle(ctx, n.fsys, n.node, flags)
	if errno != fs.OK {
		return nil, 0, errno
	}
	return fh, 0, fs.OK
}

func (n *Node) Read(ctx context.Context, f fs.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	fa, ok := n.node.Content().(gfs.FileAdapter)
	if !ok {
		return fuse.ReadResultData(nil), fs.OK
	}
	cnt, err := fa.Read(ctx, off, dest)
	if err != nil && !errors.Is(err, io.EOF) {
		logger := util.GetLogger("Fuse.Read")
		logger.Debug().Err(err).Uint64("id", n.node.ID()).Int64("offset", off).Msg("Read failed")
		return nil, ToErrno(err)
	}
	return fuse.ReadResultData(dest[:cnt]), fs.OK
}

func (n *Node) Write(ctx context.Context, f fs.FileHandle, data []byte, off int64) (uint32, syscall.Errno) {
	fa, ok := n.node.Content().(gfs.FileAdapter)
	if !ok {
		return 0, syscall.ENOTSUP
	}
	cnt, err := fa.Write(ctx, off, data)
	if err != nil {
		logger := util.GetLogger("Fuse.Write")
		logger.Debug().Err(err).Uint64("id", n.node.ID()).Int64("offset", off).Msg("Write failed")
		return uint32(cnt), ToErrno(err)
	}
	if err := n.fsys.TouchContent(n.node); err != nil {
		return uint32(cnt), ToErrno(err)
	}
	return uint32(cnt), fs.OK
}

// Release drops the pin taken by Open or Create.
func (n *Node) Release(ctx context.Context, f fs.FileHandle) syscall.Errno {
	fh, ok := f.(*fileHandle)
	if !ok {
		return fs.OK
	}
	if fh.released.CompareAndSwap(false, true) {
		n.fsys.Release(fh.node)
	}
	return fs.OK
}
