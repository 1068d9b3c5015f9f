// internal/blob/blob.go

// Package blob stores binary assets (profile images) outside the document
// store.
package blob

import (
	"context"
	"errors"
	"sync"
)

// ErrNotFound is returned when the named blob does not exist.
var ErrNotFound = errors.New("blob not found")

// Store is a flat key-addressed binary store.
type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	// Delete removes a blob, or returns ErrNotFound.
	Delete(ctx context.Context, key string) error
}

// ProfileImageKey is where a user's profile image lives.
func ProfileImageKey(userID string) string {
	return "profile-images/" + userID
}

// Memory is an in-memory blob store for tests.
type Memory struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{blobs: make(map[string][]byte)}
}

func (m *Memory) Put(ctx context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[key] = append([]byte(nil), data...)
	return nil
}

func (m *Memory) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.blobs[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.blobs[key]; !ok {
		return ErrNotFound
	}
	delete(m.blobs, key)
	return nil
}
