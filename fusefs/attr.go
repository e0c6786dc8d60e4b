package fusefs

import (
	"context"
	"time"

	"github.com/brettbedarf/gfs"
	"github.com/brettbedarf/gfs/filesystem"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// blockSize is the unit st_blocks is counted in.
const blockSize = 512

// fillAttr copies n's attributes into out. Regular nodes report the size of
// their content rather than the stored attribute.
func fillAttr(ctx context.Context, n *filesystem.Node, out *fuse.Attr) {
	*out = n.CopyAttr()
	if fa, ok := n.Content().(gfs.FileAdapter); ok {
		if size, err := fa.Size(ctx); err == nil && size >= 0 {
			out.Size = uint64(size)
		}
	}
	out.Blocks = (out.Size + blockSize - 1) / blockSize
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
