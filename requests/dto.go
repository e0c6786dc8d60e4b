package requests

import "time"

// NodeType selects what a [NodeRequestDTO] creates.
type NodeType string

const (
	FileNodeType     NodeType = "file"
	DirNodeType      NodeType = "dir"
	SymlinkNodeType  NodeType = "symlink"
	HardlinkNodeType NodeType = "hardlink"
	DeviceNodeType   NodeType = "device"
)

// NodeRequestDTO is one entry of a nodes definition file. Missing parent
// directories along Path are created with default permissions.
type NodeRequestDTO struct {
	Path     string     `json:"path" yaml:"path"`
	Type     NodeType   `json:"type" yaml:"type"`
	Perms    *uint32    `json:"perms,omitempty" yaml:"perms,omitempty"` // i.e. 0755
	OwnerUID *uint32    `json:"owner_uid,omitempty" yaml:"owner_uid,omitempty"`
	OwnerGID *uint32    `json:"owner_gid,omitempty" yaml:"owner_gid,omitempty"`
	Atime    *time.Time `json:"atime,omitempty" yaml:"atime,omitempty"` // Last Accessed at (Default current time)
	Mtime    *time.Time `json:"mtime,omitempty" yaml:"mtime,omitempty"` // Last Modified at (Default current time)

	// Content is the initial data of a file
	Content *string `json:"content,omitempty" yaml:"content,omitempty"`
	// Target is stored verbatim in a symlink
	Target string `json:"target,omitempty" yaml:"target,omitempty"`
	// Link is the path of the existing node a hardlink refers to
	Link string `json:"link,omitempty" yaml:"link,omitempty"`
	// Device describes a device, fifo or socket node
	Device *DeviceDTO `json:"device,omitempty" yaml:"device,omitempty"`
}

// DeviceDTO is the JSON representation of [gfs.DeviceInfo]. Class is one of
// "char", "block", "fifo" or "socket".
type DeviceDTO struct {
	Class string `json:"class" yaml:"class"`
	Major uint32 `json:"major,omitempty" yaml:"major,omitempty"`
	Minor uint32 `json:"minor,omitempty" yaml:"minor,omitempty"`
}
