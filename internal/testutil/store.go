package testutil

import (
	"context"
	"errors"
	"sync"
)

var ErrStoreDown = errors.New("store unavailable")

// FlakyStore is an in-memory store whose reads and writes can be made to fail.
type FlakyStore struct {
	mu       sync.Mutex
	data     map[string]string
	FailGet  bool
	FailSet  bool
	SetCalls int
}

func NewFlakyStore() *FlakyStore {
	return &FlakyStore{data: map[string]string{}}
}

func (s *FlakyStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailGet {
		return "", false, ErrStoreDown
	}
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *FlakyStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SetCalls++
	if s.FailSet {
		return ErrStoreDown
	}
	s.data[key] = value
	return nil
}

// Raw returns the stored value for key without failure injection.
func (s *FlakyStore) Raw(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok
}

// Put stores value for key without failure injection.
func (s *FlakyStore) Put(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
}
