package config

import (
	"fmt"
	"strconv"

	"github.com/joho/godotenv"
)

// Keys recognized in dotenv-style config files.
const (
	EnvFsName        = "GFS_FS_NAME"
	EnvName          = "GFS_NAME"
	EnvDebug         = "GFS_DEBUG"
	EnvMagic         = "GFS_MAGIC"
	EnvLogLvl        = "GFS_LOG_LEVEL"
	EnvMaxNodes      = "GFS_MAX_NODES"
	EnvMaxEntries    = "GFS_MAX_ENTRIES"
	EnvMaxNameLen    = "GFS_MAX_NAME_LEN"
	EnvMaxSymlinkLen = "GFS_MAX_SYMLINK_LEN"
	EnvDefaultUID    = "GFS_DEFAULT_UID"
	EnvDefaultGID    = "GFS_DEFAULT_GID"
	EnvRootMode      = "GFS_ROOT_MODE"
	EnvContent       = "GFS_CONTENT"
	EnvAttrTimeout   = "GFS_ATTR_TIMEOUT"
	EnvEntryTimeout  = "GFS_ENTRY_TIMEOUT"
)

// LoadEnvOverrideFile reads one or more dotenv files into a [ConfigOverride].
// Later files win. Unknown keys are ignored; malformed values are an error.
func LoadEnvOverrideFile(filenames ...string) (*ConfigOverride, error) {
	envMap, err := godotenv.Read(filenames...)
	if err != nil {
		return nil, fmt.Errorf("(config-godotenv) %w", err)
	}
	return overrideFromEnvMap(envMap)
}

func overrideFromEnvMap(envMap map[string]string) (*ConfigOverride, error) {
	var (
		o   ConfigOverride
		err error
	)
	if v, ok := envMap[EnvFsName]; ok {
		o.FsName = &v
	}
	if v, ok := envMap[EnvName]; ok {
		o.Name = &v
	}
	if v, ok := envMap[EnvContent]; ok {
		o.Content = &v
	}
	if o.Debug, err = envBool(envMap, EnvDebug); err != nil {
		return nil, err
	}
	if o.Magic, err = envUint32(envMap, EnvMagic); err != nil {
		return nil, err
	}
	if o.LogLvl, err = envInt(envMap, EnvLogLvl); err != nil {
		return nil, err
	}
	if o.MaxNodes, err = envUint64(envMap, EnvMaxNodes); err != nil {
		return nil, err
	}
	if o.MaxEntries, err = envInt(envMap, EnvMaxEntries); err != nil {
		return nil, err
	}
	if o.MaxNameLen, err = envInt(envMap, EnvMaxNameLen); err != nil {
		return nil, err
	}
	if o.MaxSymlinkLen, err = envInt(envMap, EnvMaxSymlinkLen); err != nil {
		return nil, err
	}
	if o.DefaultUID, err = envUint32(envMap, EnvDefaultUID); err != nil {
		return nil, err
	}
	if o.DefaultGID, err = envUint32(envMap, EnvDefaultGID); err != nil {
		return nil, err
	}
	if o.RootMode, err = envUint32(envMap, EnvRootMode); err != nil {
		return nil, err
	}
	if o.AttrTimeout, err = envFloat(envMap, EnvAttrTimeout); err != nil {
		return nil, err
	}
	if o.EntryTimeout, err = envFloat(envMap, EnvEntryTimeout); err != nil {
		return nil, err
	}
	return &o, nil
}

func envBool(envMap map[string]string, key string) (*bool, error) {
	v, ok := envMap[key]
	if !ok {
		return nil, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return &b, nil
}

func envInt(envMap map[string]string, key string) (*int, error) {
	v, ok := envMap[key]
	if !ok {
		return nil, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return &i, nil
}

// envUint32 accepts decimal, 0x hex and 0o/leading-zero octal (for modes).
func envUint32(envMap map[string]string, key string) (*uint32, error) {
	v, ok := envMap[key]
	if !ok {
		return nil, nil
	}
	u, err := strconv.ParseUint(v, 0, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	u32 := uint32(u)
	return &u32, nil
}

func envUint64(envMap map[string]string, key string) (*uint64, error) {
	v, ok := envMap[key]
	if !ok {
		return nil, nil
	}
	u, err := strconv.ParseUint(v, 0, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return &u, nil
}

func envFloat(envMap map[string]string, key string) (*float64, error) {
	v, ok := envMap[key]
	if !ok {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return &f, nil
}
