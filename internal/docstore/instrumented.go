package docstore

import (
	"context"
	"errors"

	"unify/internal/observability"
)

// Instrumented wraps a Store with latency metrics, tracing spans and error
// logging. backend labels the spans ("memory", "postgres", "mongo", ...).
type Instrumented struct {
	inner   Store
	backend string
}

// NewInstrumented decorates inner.
func NewInstrumented(inner Store, backend string) *Instrumented {
	return &Instrumented{inner: inner, backend: backend}
}

// Unwrap returns the decorated store.
func (s *Instrumented) Unwrap() Store { return s.inner }

func (s *Instrumented) observe(ctx context.Context, op, collection string) (context.Context, func(error)) {
	done := observability.TrackStoreOperation(op, collection)
	ctx, span := observability.TraceStoreOperation(ctx, s.backend, op, collection)
	return ctx, func(err error) {
		done()
		if err != nil && !errors.Is(err, ErrNotFound) {
			span.RecordError(err)
			observability.StoreErrors.WithLabelValues(op, collection).Inc()
			observability.NewStoreLogger(collection).LogError(ctx, err, op)
		}
		span.End()
	}
}

func (s *Instrumented) Get(ctx context.Context, ref DocRef) (snap Snapshot, err error) {
	ctx, finish := s.observe(ctx, "get", ref.Parent().Name())
	defer func() { finish(err) }()
	return s.inner.Get(ctx, ref)
}

func (s *Instrumented) Set(ctx context.Context, ref DocRef, data Data) (err error) {
	ctx, finish := s.observe(ctx, "set", ref.Parent().Name())
	defer func() { finish(err) }()
	return s.inner.Set(ctx, ref, data)
}

func (s *Instrumented) Delete(ctx context.Context, ref DocRef) (err error) {
	ctx, finish := s.observe(ctx, "delete", ref.Parent().Name())
	defer func() { finish(err) }()
	if err = s.inner.Delete(ctx, ref); err == nil {
		observability.NewStoreLogger(ref.Parent().Name()).LogDelete(ctx, map[string]interface{}{"path": ref.Path()})
	}
	return err
}

func (s *Instrumented) List(ctx context.Context, col CollectionRef) (out []Snapshot, err error) {
	ctx, finish := s.observe(ctx, "list", col.Name())
	defer func() { finish(err) }()
	return s.inner.List(ctx, col)
}

func (s *Instrumented) Where(ctx context.Context, col CollectionRef, field string, value any) (out []Snapshot, err error) {
	ctx, finish := s.observe(ctx, "where", col.Name())
	defer func() { finish(err) }()
	return s.inner.Where(ctx, col, field, value)
}

func (s *Instrumented) WhereIDIn(ctx context.Context, col CollectionRef, ids []string) (out []Snapshot, err error) {
	ctx, finish := s.observe(ctx, "where_id_in", col.Name())
	defer func() { finish(err) }()
	if out, err = s.inner.WhereIDIn(ctx, col, ids); err == nil {
		observability.NewStoreLogger(col.Name()).LogRead(ctx, map[string]interface{}{
			"requested": len(ids),
			"found":     len(out),
		})
	}
	return out, err
}

func (s *Instrumented) CollectionGroup(ctx context.Context, name, field string, value any) (out []Snapshot, err error) {
	ctx, finish := s.observe(ctx, "collection_group", name)
	defer func() { finish(err) }()
	return s.inner.CollectionGroup(ctx, name, field, value)
}

func (s *Instrumented) Batch() Batch {
	return &instrumentedBatch{inner: s.inner.Batch(), store: s}
}

func (s *Instrumented) Close(ctx context.Context) error {
	return s.inner.Close(ctx)
}

type instrumentedBatch struct {
	inner Batch
	store *Instrumented
}

func (b *instrumentedBatch) Set(ref DocRef, data Data) Batch {
	b.inner.Set(ref, data)
	return b
}

func (b *instrumentedBatch) Delete(ref DocRef) Batch {
	b.inner.Delete(ref)
	return b
}

func (b *instrumentedBatch) Len() int { return b.inner.Len() }

func (b *instrumentedBatch) Commit(ctx context.Context) (err error) {
	ctx, finish := b.store.observe(ctx, "commit", "batch")
	defer func() { finish(err) }()
	if err = b.inner.Commit(ctx); err == nil {
		observability.NewStoreLogger("batch").LogWrite(ctx, map[string]interface{}{"ops": b.inner.Len()})
	}
	return err
}
