package gfs

import (
	"time"

	"golang.org/x/sys/unix"
)

// Actor carries the identity copied into a new node's owner and group.
// A nil *Actor means "use the mount's configured defaults".
type Actor struct {
	UID uint32
	GID uint32
}

// DeviceClass distinguishes the kinds of Special node.
type DeviceClass uint8

const (
	CharDevice DeviceClass = iota + 1
	BlockDevice
	FIFO
	Socket
)

func (c DeviceClass) String() string {
	switch c {
	case CharDevice:
		return "char"
	case BlockDevice:
		return "block"
	case FIFO:
		return "fifo"
	case Socket:
		return "socket"
	default:
		return "unknown"
	}
}

// DeviceInfo is the payload of a Special node: its device class plus the
// major/minor identifier pair.
type DeviceInfo struct {
	Class DeviceClass
	Major uint32
	Minor uint32
}

// Rdev encodes the major/minor pair the way stat(2) reports it.
// Only non-zero for character and block devices.
func (d DeviceInfo) Rdev() uint64 {
	if d.Class != CharDevice && d.Class != BlockDevice {
		return 0
	}
	return unix.Mkdev(d.Major, d.Minor)
}

// DeviceFromRdev splits a stat(2) style device number into a [DeviceInfo].
func DeviceFromRdev(class DeviceClass, rdev uint64) DeviceInfo {
	return DeviceInfo{
		Class: class,
		Major: unix.Major(rdev),
		Minor: unix.Minor(rdev),
	}
}

// SetAttrRequest lists the attribute updates a host may apply to a node.
// Nil fields are left untouched. Only permission bits of Mode are honored;
// the type bits of a node never change.
type SetAttrRequest struct {
	Mode  *uint32
	UID   *uint32
	GID   *uint32
	Atime *time.Time
	Mtime *time.Time
}
