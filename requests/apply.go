package requests

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/brettbedarf/gfs"
	"github.com/brettbedarf/gfs/filesystem"
	"github.com/brettbedarf/gfs/internal/util"
)

const (
	defaultFilePerms   uint32 = 0o644
	defaultDirPerms    uint32 = 0o755
	defaultDevicePerms uint32 = 0o600
)

// Result counts the outcome of [Apply].
type Result struct {
	Created int
	Failed  int
}

// Apply creates every requested node in order, continuing past failures.
// The returned error joins every individual failure.
func Apply(ctx context.Context, fsys *filesystem.FileSystem, reqs []NodeRequestDTO) (Result, error) {
	logger := util.GetLogger("Requests.Apply")
	var (
		res  Result
		errs []error
	)
	for _, req := range reqs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := applyOne(ctx, fsys, req); err != nil {
			logger.Debug().Err(err).Str("path", req.Path).Str("type", string(req.Type)).Msg("Failed to add node")
			res.Failed++
			errs = append(errs, err)
			continue
		}
		res.Created++
	}
	return res, errors.Join(errs...)
}

func applyOne(ctx context.Context, fsys *filesystem.FileSystem, req NodeRequestDTO) error {
	dirNames, name := splitPath(req.Path)
	if name == "" {
		return fmt.Errorf("%s: %w: empty path", req.Path, gfs.ErrInvalidArgument)
	}
	parent, err := mkdirAll(fsys, dirNames)
	if err != nil {
		return fmt.Errorf("%s: %w", req.Path, err)
	}
	actor := actorFor(fsys, req)

	var n *filesystem.Node
	switch req.Type {
	case DirNodeType:
		n, err = fsys.Mkdir(parent, name, valueOrDefault(req.Perms, defaultDirPerms), actor)
	case FileNodeType:
		n, err = fsys.Create(parent, name, valueOrDefault(req.Perms, defaultFilePerms), actor)
		if err == nil && req.Content != nil {
			if err = writeContent(ctx, fsys, n, *req.Content); err != nil {
				// A file without its content does not count as created.
				err = errors.Join(err, fsys.Unlink(parent, name))
			}
		}
	case SymlinkNodeType:
		n, err = fsys.Symlink(parent, name, req.Target, actor)
	case HardlinkNodeType:
		var existing *filesystem.Node
		if existing, err = resolve(fsys, req.Link); err == nil {
			err = fsys.Link(parent, name, existing)
			n = existing
		}
	case DeviceNodeType:
		var (
			mode uint32
			dev  gfs.DeviceInfo
		)
		if mode, dev, err = deviceMode(req.Device); err == nil {
			n, err = fsys.Mknod(parent, name, mode|valueOrDefault(req.Perms, defaultDevicePerms), &dev, actor)
		}
	default:
		err = fmt.Errorf("%w: unknown node type %q", gfs.ErrInvalidArgument, req.Type)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", req.Path, err)
	}

	if req.Type != HardlinkNodeType && (req.Atime != nil || req.Mtime != nil) {
		if err := fsys.SetAttr(n, &gfs.SetAttrRequest{Atime: req.Atime, Mtime: req.Mtime}); err != nil {
			return fmt.Errorf("%s: %w", req.Path, err)
		}
	}
	return nil
}

func writeContent(ctx context.Context, fsys *filesystem.FileSystem, n *filesystem.Node, content string) error {
	fa, ok := n.Content().(gfs.FileAdapter)
	if !ok {
		return fmt.Errorf("%w: content backend does not accept writes", gfs.ErrInvalidArgument)
	}
	if _, err := fa.Write(ctx, 0, []byte(content)); err != nil {
		return err
	}
	return fsys.TouchContent(n)
}

// mkdirAll walks names from the root, creating directories that are missing.
func mkdirAll(fsys *filesystem.FileSystem, names []string) (*filesystem.Node, error) {
	dir := fsys.Root()
	for _, name := range names {
		child, err := fsys.Lookup(dir, name)
		if errors.Is(err, gfs.ErrNotFound) {
			child, err = fsys.Mkdir(dir, name, defaultDirPerms, nil)
			if errors.Is(err, gfs.ErrAlreadyExists) {
				child, err = fsys.Lookup(dir, name)
			}
		}
		if err != nil {
			return nil, err
		}
		if !child.IsDir() {
			return nil, fmt.Errorf("%s: %w", name, gfs.ErrNotADirectory)
		}
		dir = child
	}
	return dir, nil
}

// resolve looks up an existing node by slash separated path.
func resolve(fsys *filesystem.FileSystem, path string) (*filesystem.Node, error) {
	dirNames, name := splitPath(path)
	n := fsys.Root()
	for _, part := range append(dirNames, name) {
		if part == "" {
			continue
		}
		child, err := fsys.Lookup(n, part)
		if err != nil {
			return nil, err
		}
		n = child
	}
	return n, nil
}

func splitPath(path string) (dirs []string, name string) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	return parts[:len(parts)-1], parts[len(parts)-1]
}

func deviceMode(d *DeviceDTO) (uint32, gfs.DeviceInfo, error) {
	if d == nil {
		return 0, gfs.DeviceInfo{}, fmt.Errorf("%w: missing device info", gfs.ErrInvalidArgument)
	}
	var (
		mode  uint32
		class gfs.DeviceClass
	)
	switch d.Class {
	case "char":
		mode, class = gfs.CharType, gfs.CharDevice
	case "block":
		mode, class = gfs.BlockType, gfs.BlockDevice
	case "fifo":
		mode, class = gfs.FIFOType, gfs.FIFO
	case "socket":
		mode, class = gfs.SocketType, gfs.Socket
	default:
		return 0, gfs.DeviceInfo{}, fmt.Errorf("%w: unknown device class %q", gfs.ErrInvalidArgument, d.Class)
	}
	return mode, gfs.DeviceInfo{Class: class, Major: d.Major, Minor: d.Minor}, nil
}

// actorFor returns nil unless the request overrides an owner, so the mount's
// defaults apply.
func actorFor(fsys *filesystem.FileSystem, req NodeRequestDTO) *gfs.Actor {
	if req.OwnerUID == nil && req.OwnerGID == nil {
		return nil
	}
	cfg := fsys.Config()
	return &gfs.Actor{
		UID: valueOrDefault(req.OwnerUID, cfg.DefaultUID),
		GID: valueOrDefault(req.OwnerGID, cfg.DefaultGID),
	}
}

func valueOrDefault[T any](v *T, def T) T {
	if v != nil {
		return *v
	}
	return def
}
