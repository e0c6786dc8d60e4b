package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/brettbedarf/gfs"
	"github.com/brettbedarf/gfs/internal/util"
	"github.com/dustin/go-humanize"
)

// MemoryOptions contains memory-specific content options
type MemoryOptions struct {
	Type        string `json:"type"`
	MaxFileSize int64  `json:"max_file_size,omitempty"` // 0 = unlimited
}

func RegisterMemory(r *Registry) {
	r.Register(MemoryContentType, func(raw []byte) (gfs.ContentProvider, error) {
		var opts MemoryOptions
		if err := json.Unmarshal(raw, &opts); err != nil {
			return nil, err
		}
		if opts.MaxFileSize < 0 {
			return nil, fmt.Errorf("invalid max_file_size %d", opts.MaxFileSize)
		}
		return NewMemoryProvider(opts.MaxFileSize), nil
	})
}

// MemoryProvider hands out heap-backed content for regular nodes and keeps a
// running total of the bytes they hold.
type MemoryProvider struct {
	maxFileSize int64
	used        atomic.Int64
	open        atomic.Int64
}

var _ gfs.ContentProvider = (*MemoryProvider)(nil)

func NewMemoryProvider(maxFileSize int64) *MemoryProvider {
	return &MemoryProvider{maxFileSize: maxFileSize}
}

func (p *MemoryProvider) NewContent(nodeID uint64) (gfs.ContentHandle, error) {
	p.open.Add(1)
	return &MemoryContent{nodeID: nodeID, provider: p}, nil
}

// Used returns the bytes currently held by every live handle.
func (p *MemoryProvider) Used() int64 {
	return p.used.Load()
}

// Handles returns the number of handles not yet released.
func (p *MemoryProvider) Handles() int64 {
	return p.open.Load()
}

// MemoryContent implements [gfs.FileAdapter] over a byte slice.
type MemoryContent struct {
	nodeID   uint64
	provider *MemoryProvider

	mu       sync.RWMutex
	data     []byte
	released bool
}

var _ gfs.FileAdapter = (*MemoryContent)(nil)

func (m *MemoryContent) Read(ctx context.Context, offset int64, p []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if offset < 0 {
		return 0, fmt.Errorf("%w: negative offset %d", gfs.ErrInvalidArgument, offset)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if offset >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[offset:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (m *MemoryContent) Write(ctx context.Context, offset int64, p []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if offset < 0 {
		return 0, fmt.Errorf("%w: negative offset %d", gfs.ErrInvalidArgument, offset)
	}
	end := offset + int64(len(p))
	if err := m.checkSize(end); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.released {
		return 0, fmt.Errorf("%w: content of node %d released", gfs.ErrNotFound, m.nodeID)
	}
	if end > int64(len(m.data)) {
		m.grow(end)
	}
	return copy(m.data[offset:], p), nil
}

func (m *MemoryContent) Size(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.data)), nil
}

func (m *MemoryContent) Truncate(ctx context.Context, size int64) error {
	if size < 0 {
		return fmt.Errorf("%w: negative size %d", gfs.ErrInvalidArgument, size)
	}
	if err := m.checkSize(size); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.released {
		return fmt.Errorf("%w: content of node %d released", gfs.ErrNotFound, m.nodeID)
	}
	if size > int64(len(m.data)) {
		m.grow(size)
		return nil
	}
	m.provider.used.Add(size - int64(len(m.data)))
	clear(m.data[size:])
	m.data = m.data[:size]
	return nil
}

// Release drops the buffer. Further writes fail; reads see an empty file.
func (m *MemoryContent) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.released {
		return
	}
	m.released = true
	m.provider.used.Add(-int64(len(m.data)))
	m.provider.open.Add(-1)
	m.data = nil

	logger := util.GetLogger("Content.Memory")
	logger.Trace().Uint64("id", m.nodeID).Msg("Released content")
}

func (m *MemoryContent) checkSize(size int64) error {
	if limit := m.provider.maxFileSize; limit > 0 && size > limit {
		return fmt.Errorf("%w: %s exceeds the %s file size limit",
			gfs.ErrResourceExhausted, humanize.IBytes(uint64(size)), humanize.IBytes(uint64(limit)))
	}
	return nil
}

// grow zero-extends data to size. Callers hold mu.
func (m *MemoryContent) grow(size int64) {
	m.provider.used.Add(size - int64(len(m.data)))
	if size <= int64(cap(m.data)) {
		m.data = m.data[:size]
		return
	}
	buf := make([]byte, size, max(size, 2*int64(cap(m.data))))
	copy(buf, m.data)
	m.data = buf
}
