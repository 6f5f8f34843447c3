package storage

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"
)

// MockObjectStore is a testify mock for ObjectStore. Put drains body so
// callers see the same behaviour as a real store.
type MockObjectStore struct {
	mock.Mock
}

func (m *MockObjectStore) Put(ctx context.Context, key string, contentType string, body io.Reader, size int64) (string, error) {
	_, _ = io.Copy(io.Discard, body)
	args := m.Called(ctx, key, contentType, size)
	return args.String(0), args.Error(1)
}

func (m *MockObjectStore) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}
