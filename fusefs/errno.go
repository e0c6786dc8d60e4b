package fusefs

import (
	"context"
	"errors"
	"syscall"

	"github.com/brettbedarf/gfs"
)

// ToErrno maps engine errors onto the errno the kernel expects. Errors
// outside the engine's taxonomy become EIO.
func ToErrno(err error) syscall.Errno {
	var errno syscall.Errno
	switch {
	case err == nil:
		return 0
	case errors.Is(err, gfs.ErrNotFound):
		return syscall.ENOENT
	case errors.Is(err, gfs.ErrAlreadyExists):
		return syscall.EEXIST
	case errors.Is(err, gfs.ErrNotADirectory):
		return syscall.ENOTDIR
	case errors.Is(err, gfs.ErrIsADirectory):
		return syscall.EISDIR
	case errors.Is(err, gfs.ErrDirectoryNotEmpty):
		return syscall.ENOTEMPTY
	case errors.Is(err, gfs.ErrInvalidArgument):
		return syscall.EINVAL
	case errors.Is(err, gfs.ErrResourceExhausted):
		return syscall.ENOSPC
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return syscall.EINTR
	case errors.As(err, &errno):
		return errno
	default:
		return syscall.EIO
	}
}
