package mocks

import (
	"github.com/brettbedarf/gfs"
	"github.com/stretchr/testify/mock"
)

// MockContentHandle implements gfs.ContentHandle for testing across packages
type MockContentHandle struct {
	mock.Mock
}

func (m *MockContentHandle) Release() {
	m.Called()
}

var _ gfs.ContentHandle = (*MockContentHandle)(nil)

// MockContentProvider implements gfs.ContentProvider for testing across packages
type MockContentProvider struct {
	mock.Mock
}

func (m *MockContentProvider) NewContent(nodeID uint64) (gfs.ContentHandle, error) {
	args := m.Called(nodeID)

	// Handle function return types (for per-node handles)
	if fn, ok := args.Get(0).(func(uint64) gfs.ContentHandle); ok {
		return fn(nodeID), args.Error(1)
	}

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(gfs.ContentHandle), args.Error(1)
}

var _ gfs.ContentProvider = (*MockContentProvider)(nil)
