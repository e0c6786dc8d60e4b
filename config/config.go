package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/brettbedarf/gfs/internal/util"
	"gopkg.in/yaml.v3"
)

// Log verbosity as exposed to users (CLI flag, config files). Converted to
// [util.LogLevel] on merge.
const (
	ErrorVerbose = iota + 1
	WarnVerbose
	InfoVerbose
	DebugVerbose
	TraceVerbose
)

// Default configuration constants. See [Config] for field descriptions.
const (
	DefaultFsName = "gfs"
	DefaultName   = "gfs"

	// DefaultMagic identifies the filesystem type at the host boundary ("GFS\0").
	DefaultMagic uint32 = 0x47465300

	DefaultLogLvl = util.InfoLevel

	// DefaultMaxNodes of 0 leaves the allocator bounded only by its id space.
	DefaultMaxNodes uint64 = 0

	// DefaultMaxEntries of 0 leaves directories unbounded.
	DefaultMaxEntries = 0

	// DefaultMaxNameLen matches NAME_MAX.
	DefaultMaxNameLen = 255

	// DefaultMaxSymlinkLen matches PATH_MAX minus the terminator.
	DefaultMaxSymlinkLen = 4095

	DefaultRootMode uint32 = 0o755

	// DefaultContent is the content provider registered by adapters.RegisterBuiltins.
	DefaultContent = "memory"

	// DefaultAttrTimeout is the attribute cache timeout in seconds
	DefaultAttrTimeout = 1.0

	// DefaultEntryTimeout is the directory entry cache timeout in seconds
	DefaultEntryTimeout = 1.0
)

// Config contains runtime configuration values for one gfs mount.
type Config struct {
	MountOptions

	LogLvl util.LogLevel

	MaxNodes      uint64 // Ceiling on live nodes, root included (Default 0 = id space only)
	MaxEntries    int    // Ceiling on entries per directory (Default 0 = unlimited)
	MaxNameLen    int    // Longest accepted entry name in bytes (Default 255)
	MaxSymlinkLen int    // Longest accepted symlink target in bytes (Default 4095)

	DefaultUID uint32 // Owner for nodes created without an actor (Default process uid)
	DefaultGID uint32 // Group for nodes created without an actor (Default process gid)
	RootMode   uint32 // Permission bits of the root directory (Default 0755)

	Content string // Registered content provider name (Default "memory")

	// NOTE: Low-level FUSE config:

	AttrTimeout  float64 // Attribute cache timeout in seconds (Default 1.0)
	EntryTimeout float64 // Directory entry cache timeout in seconds (Default 1.0)
}

// ConfigOverride uses pointer fields to distinguish between unset and zero values
// when loading partial configuration. See [Config] for field descriptions.
type ConfigOverride struct {
	FsName        *string  `yaml:"fs_name,omitempty" json:"fs_name,omitempty"`
	Name          *string  `yaml:"name,omitempty" json:"name,omitempty"`
	Debug         *bool    `yaml:"debug,omitempty" json:"debug,omitempty"`
	Magic         *uint32  `yaml:"magic,omitempty" json:"magic,omitempty"`
	LogLvl        *int     `yaml:"log_level,omitempty" json:"log_level,omitempty"` // verbosity 1 (error) to 5 (trace)
	MaxNodes      *uint64  `yaml:"max_nodes,omitempty" json:"max_nodes,omitempty"`
	MaxEntries    *int     `yaml:"max_entries,omitempty" json:"max_entries,omitempty"`
	MaxNameLen    *int     `yaml:"max_name_len,omitempty" json:"max_name_len,omitempty"`
	MaxSymlinkLen *int     `yaml:"max_symlink_len,omitempty" json:"max_symlink_len,omitempty"`
	DefaultUID    *uint32  `yaml:"default_uid,omitempty" json:"default_uid,omitempty"`
	DefaultGID    *uint32  `yaml:"default_gid,omitempty" json:"default_gid,omitempty"`
	RootMode      *uint32  `yaml:"root_mode,omitempty" json:"root_mode,omitempty"`
	Content       *string  `yaml:"content,omitempty" json:"content,omitempty"`
	AttrTimeout   *float64 `yaml:"attr_timeout,omitempty" json:"attr_timeout,omitempty"`
	EntryTimeout  *float64 `yaml:"entry_timeout,omitempty" json:"entry_timeout,omitempty"`
}

// NewDefaultConfig creates a new Config with all default values.
func NewDefaultConfig() *Config {
	return &Config{
		MountOptions: MountOptions{
			FsName: DefaultFsName,
			Name:   DefaultName,
			Magic:  DefaultMagic,
		},
		LogLvl:        DefaultLogLvl,
		MaxNodes:      DefaultMaxNodes,
		MaxEntries:    DefaultMaxEntries,
		MaxNameLen:    DefaultMaxNameLen,
		MaxSymlinkLen: DefaultMaxSymlinkLen,
		DefaultUID:    uint32(os.Getuid()),
		DefaultGID:    uint32(os.Getgid()),
		RootMode:      DefaultRootMode,
		Content:       DefaultContent,
		AttrTimeout:   DefaultAttrTimeout,
		EntryTimeout:  DefaultEntryTimeout,
	}
}

// NewConfig returns the defaults with override applied on top. A nil
// override yields the defaults.
func NewConfig(override *ConfigOverride) *Config {
	cfg := NewDefaultConfig()
	if override != nil {
		cfg.Merge(override)
	}
	return cfg
}

// verbosityLevels maps CLI verbosity 1..5 onto log levels.
var verbosityLevels = [5]util.LogLevel{
	util.ErrorLevel,
	util.WarnLevel,
	util.InfoLevel,
	util.DebugLevel,
	util.TraceLevel,
}

// LevelFromVerbosity converts a verbosity (clamped to 1..5) into a log level.
func LevelFromVerbosity(verbose int) util.LogLevel {
	return verbosityLevels[util.Clamp(verbose, ErrorVerbose, TraceVerbose)-1]
}

// Merge applies non-nil values from override onto this Config.
// This allows partial configuration updates while preserving existing values.
func (c *Config) Merge(override *ConfigOverride) {
	if override.FsName != nil {
		c.FsName = *override.FsName
	}
	if override.Name != nil {
		c.Name = *override.Name
	}
	if override.Debug != nil {
		c.Debug = *override.Debug
	}
	if override.Magic != nil {
		c.Magic = *override.Magic
	}
	if override.LogLvl != nil {
		c.LogLvl = LevelFromVerbosity(*override.LogLvl)
	}
	if override.MaxNodes != nil {
		c.MaxNodes = *override.MaxNodes
	}
	if override.MaxEntries != nil {
		c.MaxEntries = *override.MaxEntries
	}
	if override.MaxNameLen != nil {
		c.MaxNameLen = *override.MaxNameLen
	}
	if override.MaxSymlinkLen != nil {
		c.MaxSymlinkLen = *override.MaxSymlinkLen
	}
	if override.DefaultUID != nil {
		c.DefaultUID = *override.DefaultUID
	}
	if override.DefaultGID != nil {
		c.DefaultGID = *override.DefaultGID
	}
	if override.RootMode != nil {
		c.RootMode = *override.RootMode
	}
	if override.Content != nil {
		c.Content = *override.Content
	}
	if override.AttrTimeout != nil {
		c.AttrTimeout = *override.AttrTimeout
	}
	if override.EntryTimeout != nil {
		c.EntryTimeout = *override.EntryTimeout
	}
}

// LoadConfigOverrideFile loads configuration overrides from a file without merging.
// Supports both YAML (.yaml, .yml) and JSON (.json) formats.
func LoadConfigOverrideFile(path string) (*ConfigOverride, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var override ConfigOverride

	// Determine format by file extension
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &override); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config file: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &override); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config file: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown config file extension: %s", path)
	}

	return &override, nil
}

// NewConfigFromFile creates a new Config by merging file overrides with defaults.
// This is a convenience function that combines NewDefaultConfig, LoadConfigOverrideFile, and Merge.
func NewConfigFromFile(path string) (*Config, error) {
	override, err := LoadConfigOverrideFile(path)
	if err != nil {
		return nil, err
	}
	return NewConfig(override), nil
}
