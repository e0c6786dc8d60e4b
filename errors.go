package gfs

import "errors"

var (
	// ErrNotFound occurs when a name is absent from a directory, or when the
	// directory itself has already been destroyed.
	ErrNotFound = errors.New("no such entry")

	// ErrAlreadyExists occurs when a creating operation targets a name that
	// is already present in the directory.
	ErrAlreadyExists = errors.New("entry already exists")

	// ErrNotADirectory occurs when a directory was required but the node is
	// of another kind.
	ErrNotADirectory = errors.New("not a directory")

	// ErrIsADirectory occurs when an operation refuses a directory target
	// (unlink, hard link, rename of a non-directory onto a directory).
	ErrIsADirectory = errors.New("is a directory")

	// ErrDirectoryNotEmpty occurs when removing or replacing a directory that
	// still has entries.
	ErrDirectoryNotEmpty = errors.New("directory not empty")

	// ErrInvalidArgument covers bad names, bad mode/type combinations,
	// missing device info and oversize symlink targets.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrResourceExhausted occurs when the node allocator or a directory's
	// entry table reaches its ceiling.
	ErrResourceExhausted = errors.New("resource exhausted")
)

// OpError records a failed namespace operation together with the name it was
// applied to. Err is always one of the sentinels above, possibly wrapped with
// extra detail.
type OpError struct {
	Op   string
	Name string
	Err  error
}

func (e *OpError) Error() string {
	if e.Name == "" {
		return e.Op + ": " + e.Err.Error()
	}
	return e.Op + " " + e.Name + ": " + e.Err.Error()
}

func (e *OpError) Unwrap() error { return e.Err }
