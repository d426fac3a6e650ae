package docstore

import (
	"context"
	"sort"
	"sync"
)

type memoryStore struct {
	mu   sync.RWMutex
	docs map[string]map[string]Document
}

// NewInMemoryStore returns a process-local Store, used offline and in tests.
func NewInMemoryStore() Store {
	return &memoryStore{docs: map[string]map[string]Document{}}
}

func (m *memoryStore) Get(_ context.Context, collection, key string) (Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.docs[collection][key]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(d)
}

func (m *memoryStore) Set(_ context.Context, collection, key string, doc Document, merge bool) error {
	cp, err := clone(doc)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	coll, ok := m.docs[collection]
	if !ok {
		coll = map[string]Document{}
		m.docs[collection] = coll
	}
	if merge {
		cp = mergeInto(coll[key], cp)
	}
	if cp == nil {
		cp = Document{}
	}
	coll[key] = cp
	return nil
}

func (m *memoryStore) Delete(_ context.Context, collection, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs[collection], key)
	return nil
}

func (m *memoryStore) Query(_ context.Context, collection string, filters ...Filter) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []Entry{}
	for k, d := range m.docs[collection] {
		if !matches(d, filters) {
			continue
		}
		cp, err := clone(d)
		if err != nil {
			return nil, err
		}
		out = append(out, Entry{Key: k, Doc: cp})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}
