package fusefs

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"testing"

	"github.com/brettbedarf/gfs"
	"github.com/stretchr/testify/assert"
)

func TestToErrno(t *testing.T) {
	t.Parallel()

	tests := []struct {
		desc string
		err  error
		want syscall.Errno
	}{
		{"nil", nil, 0},
		{"not found", gfs.ErrNotFound, syscall.ENOENT},
		{"exists", gfs.ErrAlreadyExists, syscall.EEXIST},
		{"not a directory", gfs.ErrNotADirectory, syscall.ENOTDIR},
		{"is a directory", gfs.ErrIsADirectory, syscall.EISDIR},
		{"not empty", gfs.ErrDirectoryNotEmpty, syscall.ENOTEMPTY},
		{"invalid", gfs.ErrInvalidArgument, syscall.EINVAL},
		{"exhausted", gfs.ErrResourceExhausted, syscall.ENOSPC},
		{"wrapped op error", &gfs.OpError{Op: "mkdir", Name: "x", Err: fmt.Errorf("%w: detail", gfs.ErrAlreadyExists)}, syscall.EEXIST},
		{"canceled", context.Canceled, syscall.EINTR},
		{"raw errno", fmt.Errorf("backend: %w", syscall.EROFS), syscall.EROFS},
		{"unknown", errors.New("boom"), syscall.EIO},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			assert.Equal(t, tt.want, ToErrno(tt.err))
		})
	}
}
