// Package gfs contains the core domain types and interfaces for the gfs
// in-memory namespace engine and the hosts that drive it.
package gfs

import "context"

// ContentHandle is the opaque, host-owned byte store behind a Regular node.
// The engine never interprets it; it only hands it back to the host and calls
// Release once the node is destroyed.
type ContentHandle interface {
	// Release frees any resources held for the node's content. Called exactly
	// once, after the node has no names and no host pins left.
	Release()
}

// FileAdapter is the content I/O surface a host bridge expects from the
// handles its [ContentProvider] produces. Instances are 1:1 with the
// underlying Regular node.
type FileAdapter interface {
	ContentHandle

	// Reads up to len(p) bytes into p starting at offset
	// Returns number of bytes read and any error
	Read(ctx context.Context, offset int64, p []byte) (int, error)

	// Writes len(p) bytes from p to the file starting at offset
	// Returns number of bytes written and any error
	Write(ctx context.Context, offset int64, p []byte) (int, error)

	// Returns the size of the file
	Size(ctx context.Context) (int64, error)

	// Truncate shrinks or zero-extends the file to size bytes
	Truncate(ctx context.Context, size int64) error
}

// ContentProvider is a factory for [ContentHandle]s, invoked by the node
// allocator whenever a Regular node is built. An error is reported to the
// caller as [ErrResourceExhausted] and nothing is linked.
type ContentProvider interface {
	NewContent(nodeID uint64) (ContentHandle, error)
}

// ContentProviderFunc adapts a plain function to [ContentProvider].
type ContentProviderFunc func(nodeID uint64) (ContentHandle, error)

func (f ContentProviderFunc) NewContent(nodeID uint64) (ContentHandle, error) {
	return f(nodeID)
}
