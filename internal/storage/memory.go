package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"scout-portal/internal/domain"

	"github.com/google/uuid"
)

// MemoryStore keeps files in process memory. Used for local development
// and tests.
type MemoryStore struct {
	mu    sync.RWMutex
	files map[string]memoryFile
}

type memoryFile struct {
	name        string
	contentType string
	data        []byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{files: make(map[string]memoryFile)}
}

func (m *MemoryStore) Put(_ context.Context, obj Object) (domain.FileRef, error) {
	data, err := io.ReadAll(obj.Body)
	if err != nil {
		return domain.FileRef{}, fmt.Errorf("memory store: read %s: %w", obj.Name, err)
	}

	id := uuid.NewString()
	m.mu.Lock()
	m.files[id] = memoryFile{name: obj.Name, contentType: obj.ContentType, data: data}
	m.mu.Unlock()

	return domain.FileRef{ID: id, URL: "memory://" + id}, nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.files[id]; !ok {
		return fmt.Errorf("memory store: %s not found", id)
	}
	delete(m.files, id)
	return nil
}

// Get returns the stored bytes of id.
func (m *MemoryStore) Get(id string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.files[id]
	if !ok {
		return nil, false
	}
	return bytes.Clone(f.data), true
}

func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.files)
}
