package blob

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"strconv"
	"sync"
)

// Memory is an in-memory Store implementation backed by a map.
// It is safe for concurrent use and intended primarily for testing; its
// conditional-put semantics mirror a strongly consistent backend, so the
// optimistic-concurrency paths can be exercised without a real bucket.
type Memory struct {
	mu      sync.RWMutex
	objects map[string]*Object
	seq     int64
}

// NewMemory creates a new in-memory Store.
func NewMemory() *Memory {
	return &Memory{objects: make(map[string]*Object)}
}

func (m *Memory) Get(_ context.Context, key string) (*Object, error) {
	m.mu.RLock()
	obj, ok := m.objects[key]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("blob: get %s: %w", key, ErrNotFound)
	}
	return cloneObject(obj, true), nil
}

func (m *Memory) Put(_ context.Context, key string, body []byte, opts *PutOptions) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, exists := m.objects[key]
	if opts != nil {
		if opts.IfNoneMatch && exists {
			return "", fmt.Errorf("blob: put %s: %w", key, ErrPreconditionFailed)
		}
		if opts.IfMatch != "" && (!exists || cur.Version != opts.IfMatch) {
			return "", fmt.Errorf("blob: put %s: %w", key, ErrPreconditionFailed)
		}
	}

	m.seq++
	obj := &Object{
		Body:    append([]byte(nil), body...),
		Size:    int64(len(body)),
		Version: strconv.FormatInt(m.seq, 10),
	}
	if opts != nil {
		obj.ContentType = opts.ContentType
		if len(opts.Meta) > 0 {
			obj.Meta = maps.Clone(opts.Meta)
		}
	}
	m.objects[key] = obj
	return obj.Version, nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.objects, key)
	m.mu.Unlock()
	return nil
}

func (m *Memory) List(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	var keys []string
	for k := range m.objects {
		if prefix == "" || len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			keys = append(keys, k)
		}
	}
	m.mu.RUnlock()
	sort.Strings(keys)
	return keys, nil
}

func (m *Memory) Head(_ context.Context, key string) (*Object, error) {
	m.mu.RLock()
	obj, ok := m.objects[key]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("blob: head %s: %w", key, ErrNotFound)
	}
	return cloneObject(obj, false), nil
}

// cloneObject copies an object to prevent callers from mutating the store.
func cloneObject(obj *Object, withBody bool) *Object {
	cp := &Object{
		ContentType: obj.ContentType,
		Size:        obj.Size,
		Version:     obj.Version,
	}
	if obj.Meta != nil {
		cp.Meta = maps.Clone(obj.Meta)
	}
	if withBody {
		cp.Body = append([]byte(nil), obj.Body...)
	}
	return cp
}

// Compile-time interface check.
var _ Store = (*Memory)(nil)
