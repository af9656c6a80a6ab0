// Package docstore defines the document/collection primitives the content
// graph is persisted through, plus an in-process backend.
//
// Paths alternate collection and document segments: "posts",
// "posts/p1", "posts/p1/comments", "posts/p1/comments/c1". A subcollection
// belongs to exactly one parent document, and deleting that document does
// not delete it.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// MaxIDsPerQuery is the largest id set WhereIDIn accepts.
const MaxIDsPerQuery = 10

var (
	// ErrNotFound is returned by Get when the document does not exist.
	ErrNotFound = errors.New("docstore: document not found")
	// ErrTooManyIDs is returned by WhereIDIn for more than MaxIDsPerQuery ids.
	ErrTooManyIDs = fmt.Errorf("docstore: id-set query accepts at most %d ids", MaxIDsPerQuery)
	// ErrInvalidPath is returned for refs with empty segments.
	ErrInvalidPath = errors.New("docstore: invalid path")
)

// Data is the field set of one document.
type Data map[string]any

// CollectionRef addresses a top-level collection or a subcollection.
type CollectionRef struct {
	path string
}

// Collection returns a reference to a top-level collection.
func Collection(name string) CollectionRef {
	return CollectionRef{path: name}
}

// Path is the full slash-separated collection path.
func (c CollectionRef) Path() string { return c.path }

// Name is the last path segment; collection group queries match on it.
func (c CollectionRef) Name() string {
	if i := strings.LastIndexByte(c.path, '/'); i >= 0 {
		return c.path[i+1:]
	}
	return c.path
}

// Doc returns a reference to the document with the given id.
func (c CollectionRef) Doc(id string) DocRef {
	return DocRef{parent: c, id: id}
}

// Parent returns the owning document of a subcollection.
func (c CollectionRef) Parent() (DocRef, bool) {
	i := strings.LastIndexByte(c.path, '/')
	if i < 0 {
		return DocRef{}, false
	}
	return DocRefFromPath(c.path[:i])
}

// Valid reports whether every path segment is non-empty.
func (c CollectionRef) Valid() bool {
	return validSegments(c.path, 1)
}

// DocRef addresses a single document.
type DocRef struct {
	parent CollectionRef
	id     string
}

// DocRefFromPath parses "col/doc[/col/doc...]".
func DocRefFromPath(path string) (DocRef, bool) {
	if !validSegments(path, 0) {
		return DocRef{}, false
	}
	i := strings.LastIndexByte(path, '/')
	return DocRef{parent: CollectionRef{path: path[:i]}, id: path[i+1:]}, true
}

// ID is the document id.
func (d DocRef) ID() string { return d.id }

// Parent is the collection holding the document.
func (d DocRef) Parent() CollectionRef { return d.parent }

// Path is the full slash-separated document path.
func (d DocRef) Path() string { return d.parent.path + "/" + d.id }

// Collection returns a subcollection scoped under this document.
func (d DocRef) Collection(name string) CollectionRef {
	return CollectionRef{path: d.Path() + "/" + name}
}

// Valid reports whether every path segment is non-empty.
func (d DocRef) Valid() bool {
	return d.id != "" && !strings.Contains(d.id, "/") && d.parent.Valid()
}

func validSegments(path string, parity int) bool {
	if path == "" {
		return false
	}
	parts := strings.Split(path, "/")
	if len(parts)%2 != parity {
		return false
	}
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			return false
		}
	}
	return true
}

// Snapshot is a document read from the store.
type Snapshot struct {
	Ref  DocRef
	Data Data
}

// ID is the document id.
func (s Snapshot) ID() string { return s.Ref.ID() }

// DataTo decodes the document fields into v.
func (s Snapshot) DataTo(v any) error {
	return Decode(s.Data, v)
}

// Store is the set of primitives every backend provides. Query results are
// never nil; a query that matched nothing returns an empty slice.
type Store interface {
	Get(ctx context.Context, ref DocRef) (Snapshot, error)
	Set(ctx context.Context, ref DocRef, data Data) error
	Delete(ctx context.Context, ref DocRef) error
	List(ctx context.Context, col CollectionRef) ([]Snapshot, error)
	// Where returns the documents of col whose field equals value.
	Where(ctx context.Context, col CollectionRef, field string, value any) ([]Snapshot, error)
	// WhereIDIn returns the documents of col among ids. Missing ids are
	// skipped. More than MaxIDsPerQuery ids fail with ErrTooManyIDs.
	WhereIDIn(ctx context.Context, col CollectionRef, ids []string) ([]Snapshot, error)
	// CollectionGroup queries every collection named name, under any parent.
	CollectionGroup(ctx context.Context, name, field string, value any) ([]Snapshot, error)
	Batch() Batch
	Close(ctx context.Context) error
}

// Batch accumulates writes that commit all-or-nothing.
type Batch interface {
	Set(ref DocRef, data Data) Batch
	Delete(ref DocRef) Batch
	Commit(ctx context.Context) error
	Len() int
}

// OpKind is the kind of a batched write.
type OpKind int

const (
	OpSet OpKind = iota
	OpDelete
)

// Op is one batched write, exposed so backends can share batch bookkeeping.
type Op struct {
	Kind OpKind
	Ref  DocRef
	Data Data
}

// Ops collects batched writes. Backends embed it.
type Ops struct {
	List []Op
}

func (o *Ops) add(op Op) { o.List = append(o.List, op) }

// AddSet queues a set.
func (o *Ops) AddSet(ref DocRef, data Data) { o.add(Op{Kind: OpSet, Ref: ref, Data: Clone(data)}) }

// AddDelete queues a delete.
func (o *Ops) AddDelete(ref DocRef) { o.add(Op{Kind: OpDelete, Ref: ref}) }

// Validate checks every queued ref.
func (o *Ops) Validate() error {
	for _, op := range o.List {
		if !op.Ref.Valid() {
			return fmt.Errorf("%w: %q", ErrInvalidPath, op.Ref.Path())
		}
	}
	return nil
}

// ChunkIDs splits ids into consecutive slices of at most size elements.
func ChunkIDs(ids []string, size int) [][]string {
	if size <= 0 {
		size = MaxIDsPerQuery
	}
	chunks := make([][]string, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}
