package gfs

// NodeInfo provides read-only access to node information for external consumers
type NodeInfo interface {
	// ID returns the node's mount-unique identifier
	ID() uint64

	// Kind returns the node's immutable kind
	Kind() Kind

	// Mode returns the type and permission bits
	Mode() uint32

	// LinkCount returns the number of names referring to the node
	LinkCount() uint32

	// IsDel returns true once the node has been destroyed
	IsDel() bool
}

// DirEntry is one name in a directory listing.
type DirEntry struct {
	Name string
	ID   uint64
	Kind Kind
	Mode uint32
}
