package gfs

import (
	"fmt"
	"syscall"
)

// Kind is the fixed type of a node. It is chosen at allocation time from the
// type bits of the requested mode and never changes.
type Kind uint8

const (
	KindDirectory Kind = iota + 1
	KindRegular
	KindSymlink
	KindSpecial
)

// File type bits, as found in the S_IFMT portion of a mode.
const (
	TypeMask    = syscall.S_IFMT
	DirType     = syscall.S_IFDIR
	RegularType = syscall.S_IFREG
	SymlinkType = syscall.S_IFLNK
	CharType    = syscall.S_IFCHR
	BlockType   = syscall.S_IFBLK
	FIFOType    = syscall.S_IFIFO
	SocketType  = syscall.S_IFSOCK

	// PermMask covers the permission, setuid/setgid and sticky bits.
	PermMask = 0o7777
)

func (k Kind) String() string {
	switch k {
	case KindDirectory:
		return "directory"
	case KindRegular:
		return "regular"
	case KindSymlink:
		return "symlink"
	case KindSpecial:
		return "special"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// KindFromMode resolves the node kind encoded in mode's type bits.
// A mode with no type bits is a regular file, as with mknod(2).
// The device class is only meaningful for [KindSpecial].
func KindFromMode(mode uint32) (Kind, DeviceClass, error) {
	switch mode & TypeMask {
	case 0, RegularType:
		return KindRegular, 0, nil
	case DirType:
		return KindDirectory, 0, nil
	case SymlinkType:
		return KindSymlink, 0, nil
	case CharType:
		return KindSpecial, CharDevice, nil
	case BlockType:
		return KindSpecial, BlockDevice, nil
	case FIFOType:
		return KindSpecial, FIFO, nil
	case SocketType:
		return KindSpecial, Socket, nil
	default:
		return 0, 0, fmt.Errorf("%w: unknown file type bits %#o", ErrInvalidArgument, mode&TypeMask)
	}
}

// TypeBits returns the S_IFMT bits that agree with k. For [KindSpecial] the
// device class picks between the character, block, fifo and socket bits.
func TypeBits(k Kind, class DeviceClass) uint32 {
	switch k {
	case KindDirectory:
		return DirType
	case KindRegular:
		return RegularType
	case KindSymlink:
		return SymlinkType
	case KindSpecial:
		switch class {
		case BlockDevice:
			return BlockType
		case FIFO:
			return FIFOType
		case Socket:
			return SocketType
		default:
			return CharType
		}
	}
	return 0
}
