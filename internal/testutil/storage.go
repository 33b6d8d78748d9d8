package testutil

import (
	"context"
	"fmt"
	"os"
	"sync"

	"bk-go/internal/bk"
)

// MemoryStorage is an in-memory bk.Storage for testing. Archives are
// held as byte slices keyed by name. Safe for concurrent use.
type MemoryStorage struct {
	mu      sync.Mutex
	kind    string
	objects map[string][]byte

	// StoreCalls counts Store invocations.
	StoreCalls int
	// FailStore makes Store return an error when set.
	FailStore error
}

// NewMemoryStorage creates a MemoryStorage reporting the given kind
// ("local" or "remote").
func NewMemoryStorage(kind string) *MemoryStorage {
	return &MemoryStorage{kind: kind, objects: make(map[string][]byte)}
}

func (s *MemoryStorage) Kind() string {
	return s.kind
}

func (s *MemoryStorage) Store(ctx context.Context, localPath, name string) (bk.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.StoreCalls++
	if s.FailStore != nil {
		return "", s.FailStore
	}

	data, err := os.ReadFile(localPath)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", localPath, err)
	}
	s.objects[name] = data
	return bk.Handle(name), nil
}

func (s *MemoryStorage) Retrieve(ctx context.Context, handle bk.Handle, destPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.objects[string(handle)]
	if !ok {
		return fmt.Errorf("object %s: %w", handle, bk.ErrNotFound)
	}
	return os.WriteFile(destPath, data, 0644)
}

func (s *MemoryStorage) Delete(ctx context.Context, handle bk.Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, string(handle))
	return nil
}

func (s *MemoryStorage) Exists(ctx context.Context, handle bk.Handle) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[string(handle)]
	return ok, nil
}

// Remove drops an object directly, simulating out-of-band deletion.
func (s *MemoryStorage) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, name)
}

// Names returns the stored object names.
func (s *MemoryStorage) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.objects))
	for name := range s.objects {
		names = append(names, name)
	}
	return names
}

var _ bk.Storage = (*MemoryStorage)(nil)
