package filesystem

import (
	"time"

	"github.com/brettbedarf/gfs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// defaultBlksize is the preferred I/O size reported for every node.
const defaultBlksize = 4096

// newDefaultAttr returns the attributes of a freshly allocated node.
// NOTE: Nlink starts at 1; directory creation corrects it to 2.
func newDefaultAttr(ino uint64, mode uint32, owner gfs.Actor, now time.Time) fuse.Attr {
	attr := fuse.Attr{
		Ino:   ino,
		Mode:  mode,
		Nlink: 1,
		Owner: fuse.Owner{
			Uid: owner.UID,
			Gid: owner.GID,
		},
		Blksize: defaultBlksize,
	}
	setAtime(&attr, now)
	setMtime(&attr, now)
	setCtime(&attr, now)
	return attr
}

func setAtime(attr *fuse.Attr, t time.Time) {
	attr.Atime = uint64(t.Unix())
	attr.Atimensec = uint32(t.Nanosecond())
}

func setMtime(attr *fuse.Attr, t time.Time) {
	attr.Mtime = uint64(t.Unix())
	attr.Mtimensec = uint32(t.Nanosecond())
}

func setCtime(attr *fuse.Attr, t time.Time) {
	attr.Ctime = uint64(t.Unix())
	attr.Ctimensec = uint32(t.Nanosecond())
}

// AttrAtime, AttrMtime and AttrCtime decode the fuse wire timestamps.
func AttrAtime(attr fuse.Attr) time.Time {
	return time.Unix(int64(attr.Atime), int64(attr.Atimensec))
}

func AttrMtime(attr fuse.Attr) time.Time {
	return time.Unix(int64(attr.Mtime), int64(attr.Mtimensec))
}

func AttrCtime(attr fuse.Attr) time.Time {
	return time.Unix(int64(attr.Ctime), int64(attr.Ctimensec))
}
