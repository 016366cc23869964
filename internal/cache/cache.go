// Package cache is the settings cache: a small JSON key-value layer for
// the store profile and theme. Keys are namespaced with "pospro:" and a
// value that fails to decode is removed rather than returned.
package cache

import (
	"context"
	"encoding/json"
	"sync"
)

const prefix = "pospro:"

const (
	KeyStoreProfile = "store-profile"
	KeyTheme        = "theme"
)

type SettingsCache interface {
	// Get decodes the value stored under key into out. It reports false
	// when the key is absent or the stored payload was corrupt.
	Get(ctx context.Context, key string, out any) (bool, error)
	// Set stores value marshalled as JSON. A nil value deletes the key.
	Set(ctx context.Context, key string, value any) error
	Delete(ctx context.Context, key string) error
}

// Memory is the default cache used without Redis.
type Memory struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{entries: make(map[string][]byte)}
}

func (m *Memory) Get(_ context.Context, key string, out any) (bool, error) {
	m.mu.RLock()
	payload, ok := m.entries[prefix+key]
	m.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		// Corrupt entry, drop it so the next read starts clean.
		m.mu.Lock()
		delete(m.entries, prefix+key)
		m.mu.Unlock()
		return false, nil
	}
	return true, nil
}

func (m *Memory) Set(_ context.Context, key string, value any) error {
	if value == nil {
		m.mu.Lock()
		delete(m.entries, prefix+key)
		m.mu.Unlock()
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.entries[prefix+key] = payload
	m.mu.Unlock()
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.entries, prefix+key)
	m.mu.Unlock()
	return nil
}
