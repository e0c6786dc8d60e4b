package server

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/brettbedarf/gfs/adapters"
	"github.com/brettbedarf/gfs/config"
	"github.com/brettbedarf/gfs/filesystem"
	"github.com/brettbedarf/gfs/fusefs"
	"github.com/brettbedarf/gfs/internal/util"
	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// fuseServer is the part of [fuse.Server] the Server drives.
type fuseServer interface {
	Wait()
	Unmount() error
}

// Server owns one mounted namespace and the FUSE server exposing it
type Server struct {
	*filesystem.FileSystem
	cfg    *config.Config
	server fuseServer
	waited atomic.Bool // kernel side already unmounted
}

// New mounts a fresh namespace using the content backend named by
// cfg.Content, looked up in the built-in registry.
func New(cfg *config.Config, opts ...filesystem.Option) (*Server, error) {
	return NewWithRegistry(cfg, adapters.NewBuiltinRegistry(), opts...)
}

// NewWithRegistry is [New] with a caller supplied content registry.
func NewWithRegistry(cfg *config.Config, registry *adapters.Registry, opts ...filesystem.Option) (*Server, error) {
	if cfg == nil {
		cfg = config.NewDefaultConfig()
	}
	provider, err := registry.ProviderFor(cfg.Content)
	if err != nil {
		return nil, fmt.Errorf("content backend %q: %w", cfg.Content, err)
	}
	opts = append([]filesystem.Option{filesystem.WithContentProvider(provider)}, opts...)
	fsys, err := filesystem.Mount(cfg, cfg.FsName, opts...)
	if err != nil {
		return nil, err
	}
	return &Server{FileSystem: fsys, cfg: cfg}, nil
}

// Options builds the go-fuse mount options for the configured timeouts and
// mount names.
func (s *Server) Options() *fs.Options {
	entry := seconds(s.cfg.EntryTimeout)
	attr := seconds(s.cfg.AttrTimeout)
	debug := s.cfg.Debug || s.cfg.LogLvl == util.TraceLevel
	return &fs.Options{
		MountOptions: fuse.MountOptions{
			Name:   s.cfg.Name,
			FsName: s.cfg.FsName,
			Debug:  debug,
			Logger: util.NewLogLogger("FuseServer", util.TraceLevel),
		},
		EntryTimeout: &entry,
		AttrTimeout:  &attr,
		Logger:       util.NewLogLogger("FuseBridge", util.DebugLevel),
	}
}

// Serve mounts and serves the filesystem at the given mountPoint. It returns
// once the kernel has acknowledged the mount.
func (s *Server) Serve(mountPoint string) error {
	logger := util.GetLogger("Server")
	if s.server != nil {
		return errors.New("already serving")
	}
	srv, err := fs.Mount(mountPoint, fusefs.NewRoot(s.FileSystem), s.Options())
	if err != nil {
		return err
	}
	s.server = srv
	logger.Info().Str("mountpoint", mountPoint).Str("mount", s.ID().String()).Msg("Serving")
	return nil
}

// Wait blocks until the kernel unmounts the filesystem.
func (s *Server) Wait() {
	if s.server != nil {
		s.server.Wait()
		s.waited.Store(true)
	}
}

// Unmount detaches the filesystem from the kernel, unless that already
// happened, and destroys every node. The namespace is torn down even when
// the kernel unmount fails; that error is still returned.
func (s *Server) Unmount() error {
	defer s.FileSystem.Unmount()
	if s.server == nil || s.waited.Load() {
		return nil
	}
	if err := s.server.Unmount(); err != nil {
		logger := util.GetLogger("Server")
		logger.Error().Err(err).Msg("FUSE unmount failed")
		return err
	}
	return nil
}
