package store

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Memory is an in-process Store bounded to a fixed number of keys.
// Least recently used keys are dropped first when full.
type Memory struct {
	entries *lru.Cache[string, []byte]
}

// NewMemory creates a memory store holding at most size keys.
func NewMemory(size int) (*Memory, error) {
	c, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, err
	}
	return &Memory{entries: c}, nil
}

func (m *Memory) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, ok := m.entries.Get(key)
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func (m *Memory) Set(ctx context.Context, key string, value []byte) error {
	v := make([]byte, len(value))
	copy(v, value)
	m.entries.Add(key, v)
	return nil
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	m.entries.Remove(key)
	return nil
}

func (m *Memory) Clear(ctx context.Context) error {
	m.entries.Purge()
	return nil
}

// Len returns the number of stored keys.
func (m *Memory) Len() int {
	return m.entries.Len()
}
