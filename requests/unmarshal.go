package requests

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadFile reads a nodes definition file. The format follows the extension:
// .json, or .yaml/.yml.
func LoadFile(path string) ([]NodeRequestDTO, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		return UnmarshalJSON(data)
	case ".yaml", ".yml":
		return UnmarshalYAML(data)
	default:
		return nil, fmt.Errorf("unknown nodes file extension: %s", path)
	}
}

// UnmarshalJSON decodes a JSON array of node requests.
func UnmarshalJSON(data []byte) ([]NodeRequestDTO, error) {
	var reqs []NodeRequestDTO
	if err := json.Unmarshal(data, &reqs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal nodes: %w", err)
	}
	return reqs, validate(reqs)
}

// UnmarshalYAML decodes a YAML sequence of node requests.
func UnmarshalYAML(data []byte) ([]NodeRequestDTO, error) {
	var reqs []NodeRequestDTO
	if err := yaml.Unmarshal(data, &reqs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal nodes: %w", err)
	}
	return reqs, validate(reqs)
}

func validate(reqs []NodeRequestDTO) error {
	for i, r := range reqs {
		if strings.Trim(r.Path, "/") == "" {
			return fmt.Errorf("node %d: missing path", i)
		}
		switch r.Type {
		case FileNodeType, DirNodeType:
		case SymlinkNodeType:
			if r.Target == "" {
				return fmt.Errorf("node %d (%s): symlink without target", i, r.Path)
			}
		case HardlinkNodeType:
			if r.Link == "" {
				return fmt.Errorf("node %d (%s): hardlink without link", i, r.Path)
			}
		case DeviceNodeType:
			if r.Device == nil {
				return fmt.Errorf("node %d (%s): device without device info", i, r.Path)
			}
		default:
			return fmt.Errorf("node %d (%s): unknown type %q", i, r.Path, r.Type)
		}
	}
	return nil
}
