package requests

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnmarshalJSON(t *testing.T) {
	data := []byte(`[
		{"type": "dir", "path": "/docs", "perms": 493},
		{"type": "file", "path": "/docs/readme.txt", "content": "hello", "mtime": "2024-01-02T03:04:05Z"},
		{"type": "symlink", "path": "/latest", "target": "docs/readme.txt"},
		{"type": "hardlink", "path": "/docs/alias", "link": "/docs/readme.txt"},
		{"type": "device", "path": "/dev/null", "device": {"class": "char", "major": 1, "minor": 3}}
	]`)

	reqs, err := UnmarshalJSON(data)
	require.NoError(t, err)
	require.Len(t, reqs, 5)

	assert.Equal(t, DirNodeType, reqs[0].Type)
	require.NotNil(t, reqs[0].Perms)
	assert.Equal(t, uint32(0o755), *reqs[0].Perms)

	require.NotNil(t, reqs[1].Content)
	assert.Equal(t, "hello", *reqs[1].Content)
	require.NotNil(t, reqs[1].Mtime)
	assert.True(t, reqs[1].Mtime.Equal(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)))
	assert.Nil(t, reqs[1].Atime)

	assert.Equal(t, "docs/readme.txt", reqs[2].Target)
	assert.Equal(t, "/docs/readme.txt", reqs[3].Link)
	assert.Equal(t, &DeviceDTO{Class: "char", Major: 1, Minor: 3}, reqs[4].Device)
}

func TestUnmarshalYAML(t *testing.T) {
	data := []byte(`
- type: dir
  path: /srv
- type: file
  path: /srv/app.conf
  perms: 384
  owner_uid: 42
  content: |
    key=value
`)

	reqs, err := UnmarshalYAML(data)
	require.NoError(t, err)
	require.Len(t, reqs, 2)

	assert.Equal(t, FileNodeType, reqs[1].Type)
	require.NotNil(t, reqs[1].Perms)
	assert.Equal(t, uint32(0o600), *reqs[1].Perms)
	require.NotNil(t, reqs[1].OwnerUID)
	assert.Equal(t, uint32(42), *reqs[1].OwnerUID)
	assert.Nil(t, reqs[1].OwnerGID)
	assert.Equal(t, "key=value\n", *reqs[1].Content)
}

func TestUnmarshal_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"not an array", `{"type": "file"}`, "failed to unmarshal"},
		{"missing path", `[{"type": "file"}]`, "missing path"},
		{"root path", `[{"type": "dir", "path": "/"}]`, "missing path"},
		{"unknown type", `[{"type": "pipe", "path": "/p"}]`, "unknown type"},
		{"symlink without target", `[{"type": "symlink", "path": "/l"}]`, "without target"},
		{"hardlink without link", `[{"type": "hardlink", "path": "/h"}]`, "without link"},
		{"device without info", `[{"type": "device", "path": "/d"}]`, "without device info"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalJSON([]byte(tt.data))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "nodes.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`[{"type": "dir", "path": "/a"}]`), 0o644))
	reqs, err := LoadFile(jsonPath)
	require.NoError(t, err)
	assert.Len(t, reqs, 1)

	yamlPath := filepath.Join(dir, "nodes.YML")
	require.NoError(t, os.WriteFile(yamlPath, []byte("- {type: dir, path: /a}\n- {type: dir, path: /b}\n"), 0o644))
	reqs, err = LoadFile(yamlPath)
	require.NoError(t, err)
	assert.Len(t, reqs, 2)

	txtPath := filepath.Join(dir, "nodes.txt")
	require.NoError(t, os.WriteFile(txtPath, []byte(`[]`), 0o644))
	_, err = LoadFile(txtPath)
	assert.ErrorContains(t, err, "unknown nodes file extension")

	_, err = LoadFile(filepath.Join(dir, "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
