package docstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryStore keeps every collection in process memory. It backs local
// development and tests.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]Data
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]map[string]Data)}
}

func (m *MemoryStore) Get(_ context.Context, ref DocRef) (Snapshot, error) {
	if !ref.Valid() {
		return Snapshot{}, fmt.Errorf("%w: %q", ErrInvalidPath, ref.Path())
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.collections[ref.parent.path][ref.id]
	if !ok {
		return Snapshot{}, ErrNotFound
	}
	return Snapshot{Ref: ref, Data: Clone(d)}, nil
}

func (m *MemoryStore) Set(_ context.Context, ref DocRef, data Data) error {
	if !ref.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidPath, ref.Path())
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setLocked(ref, Clone(data))
	return nil
}

func (m *MemoryStore) setLocked(ref DocRef, data Data) {
	col, ok := m.collections[ref.parent.path]
	if !ok {
		col = make(map[string]Data)
		m.collections[ref.parent.path] = col
	}
	col[ref.id] = data
}

func (m *MemoryStore) Delete(_ context.Context, ref DocRef) error {
	if !ref.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidPath, ref.Path())
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.collections[ref.parent.path], ref.id)
	return nil
}

func (m *MemoryStore) List(_ context.Context, col CollectionRef) ([]Snapshot, error) {
	if !col.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPath, col.Path())
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.filterLocked(col, func(string, Data) bool { return true }), nil
}

func (m *MemoryStore) Where(_ context.Context, col CollectionRef, field string, value any) ([]Snapshot, error) {
	if !col.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPath, col.Path())
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.filterLocked(col, func(_ string, d Data) bool {
		v, ok := d[field]
		return ok && Equal(v, value)
	}), nil
}

func (m *MemoryStore) WhereIDIn(_ context.Context, col CollectionRef, ids []string) ([]Snapshot, error) {
	if len(ids) > MaxIDsPerQuery {
		return nil, ErrTooManyIDs
	}
	if !col.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPath, col.Path())
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.filterLocked(col, func(id string, _ Data) bool { return want[id] }), nil
}

func (m *MemoryStore) CollectionGroup(_ context.Context, name, field string, value any) ([]Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []Snapshot{}
	paths := make([]string, 0, len(m.collections))
	for path := range m.collections {
		if (CollectionRef{path: path}).Name() == name {
			paths = append(paths, path)
		}
	}
	sort.Strings(paths)
	for _, path := range paths {
		out = append(out, m.filterLocked(CollectionRef{path: path}, func(_ string, d Data) bool {
			v, ok := d[field]
			return ok && Equal(v, value)
		})...)
	}
	return out, nil
}

func (m *MemoryStore) filterLocked(col CollectionRef, keep func(id string, d Data) bool) []Snapshot {
	docs := m.collections[col.path]
	ids := make([]string, 0, len(docs))
	for id, d := range docs {
		if keep(id, d) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	out := make([]Snapshot, 0, len(ids))
	for _, id := range ids {
		out = append(out, Snapshot{Ref: col.Doc(id), Data: Clone(docs[id])})
	}
	return out
}

func (m *MemoryStore) Batch() Batch {
	return &memoryBatch{store: m}
}

// Close is a no-op.
func (m *MemoryStore) Close(context.Context) error { return nil }

type memoryBatch struct {
	Ops
	store *MemoryStore
}

func (b *memoryBatch) Set(ref DocRef, data Data) Batch {
	b.AddSet(ref, data)
	return b
}

func (b *memoryBatch) Delete(ref DocRef) Batch {
	b.AddDelete(ref)
	return b
}

func (b *memoryBatch) Len() int { return len(b.List) }

func (b *memoryBatch) Commit(context.Context) error {
	if err := b.Validate(); err != nil {
		return err
	}
	b.store.mu.Lock()
	defer b.store.mu.Unlock()
	for _, op := range b.List {
		switch op.Kind {
		case OpSet:
			b.store.setLocked(op.Ref, op.Data)
		case OpDelete:
			delete(b.store.collections[op.Ref.parent.path], op.Ref.id)
		}
	}
	return nil
}
