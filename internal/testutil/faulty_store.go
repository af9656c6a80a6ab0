// Package testutil holds fixtures shared by service and handler tests.
package testutil

import (
	"context"
	"errors"
	"strings"
	"sync"

	"unify/internal/docstore"
)

// ErrInjected is the default error returned by a FaultyStore rule.
var ErrInjected = errors.New("injected store failure")

// Store operation names understood by FaultyStore rules.
const (
	OpGet             = "get"
	OpSet             = "set"
	OpDelete          = "delete"
	OpList            = "list"
	OpWhere           = "where"
	OpWhereIDIn       = "whereIdIn"
	OpCollectionGroup = "collectionGroup"
	OpCommit          = "commit"
)

type rule struct {
	op        string
	fragment  string
	err       error
	remaining int // <0 means unlimited
}

// FaultyStore wraps a docstore.Store and fails selected operations. A rule
// matches when the operation name matches and the target path contains the
// fragment. For commits the target is every path in the batch.
type FaultyStore struct {
	docstore.Store

	mu    sync.Mutex
	rules []*rule
	calls map[string]int
}

// NewFaultyStore wraps inner.
func NewFaultyStore(inner docstore.Store) *FaultyStore {
	return &FaultyStore{Store: inner, calls: make(map[string]int)}
}

// FailAlways fails every matching operation until Reset.
func (f *FaultyStore) FailAlways(op, fragment string, err error) {
	f.add(op, fragment, err, -1)
}

// FailTimes fails the next n matching operations.
func (f *FaultyStore) FailTimes(op, fragment string, n int, err error) {
	f.add(op, fragment, err, n)
}

func (f *FaultyStore) add(op, fragment string, err error, n int) {
	if err == nil {
		err = ErrInjected
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = append(f.rules, &rule{op: op, fragment: fragment, err: err, remaining: n})
}

// Reset drops every rule and call count.
func (f *FaultyStore) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = nil
	f.calls = make(map[string]int)
}

// Calls reports how often op was invoked.
func (f *FaultyStore) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *FaultyStore) check(op string, paths ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
	for _, r := range f.rules {
		if r.op != op || r.remaining == 0 {
			continue
		}
		for _, p := range paths {
			if strings.Contains(p, r.fragment) {
				if r.remaining > 0 {
					r.remaining--
				}
				return r.err
			}
		}
	}
	return nil
}

func (f *FaultyStore) Get(ctx context.Context, ref docstore.DocRef) (docstore.Snapshot, error) {
	if err := f.check(OpGet, ref.Path()); err != nil {
		return docstore.Snapshot{}, err
	}
	return f.Store.Get(ctx, ref)
}

func (f *FaultyStore) Set(ctx context.Context, ref docstore.DocRef, data docstore.Data) error {
	if err := f.check(OpSet, ref.Path()); err != nil {
		return err
	}
	return f.Store.Set(ctx, ref, data)
}

func (f *FaultyStore) Delete(ctx context.Context, ref docstore.DocRef) error {
	if err := f.check(OpDelete, ref.Path()); err != nil {
		return err
	}
	return f.Store.Delete(ctx, ref)
}

func (f *FaultyStore) List(ctx context.Context, col docstore.CollectionRef) ([]docstore.Snapshot, error) {
	if err := f.check(OpList, col.Path()); err != nil {
		return nil, err
	}
	return f.Store.List(ctx, col)
}

func (f *FaultyStore) Where(ctx context.Context, col docstore.CollectionRef, field string, value any) ([]docstore.Snapshot, error) {
	if err := f.check(OpWhere, col.Path()); err != nil {
		return nil, err
	}
	return f.Store.Where(ctx, col, field, value)
}

func (f *FaultyStore) WhereIDIn(ctx context.Context, col docstore.CollectionRef, ids []string) ([]docstore.Snapshot, error) {
	if err := f.check(OpWhereIDIn, col.Path()); err != nil {
		return nil, err
	}
	return f.Store.WhereIDIn(ctx, col, ids)
}

func (f *FaultyStore) CollectionGroup(ctx context.Context, name, field string, value any) ([]docstore.Snapshot, error) {
	if err := f.check(OpCollectionGroup, name); err != nil {
		return nil, err
	}
	return f.Store.CollectionGroup(ctx, name, field, value)
}

func (f *FaultyStore) Batch() docstore.Batch {
	return &faultyBatch{store: f, inner: f.Store.Batch()}
}

type faultyBatch struct {
	store *FaultyStore
	inner docstore.Batch
	paths []string
}

func (b *faultyBatch) Set(ref docstore.DocRef, data docstore.Data) docstore.Batch {
	b.inner.Set(ref, data)
	b.paths = append(b.paths, ref.Path())
	return b
}

func (b *faultyBatch) Delete(ref docstore.DocRef) docstore.Batch {
	b.inner.Delete(ref)
	b.paths = append(b.paths, ref.Path())
	return b
}

func (b *faultyBatch) Len() int { return b.inner.Len() }

func (b *faultyBatch) Commit(ctx context.Context) error {
	if err := b.store.check(OpCommit, b.paths...); err != nil {
		return err
	}
	return b.inner.Commit(ctx)
}
