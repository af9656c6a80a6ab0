package docstore_test

import (
	"context"
	"sync"
	"testing"

	"unify/internal/docstore"
	"unify/internal/docstore/docstoretest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Conformance(t *testing.T) {
	docstoretest.Run(t, func(*testing.T) docstore.Store {
		return docstore.NewMemoryStore()
	})
}

func TestInstrumented_Conformance(t *testing.T) {
	docstoretest.Run(t, func(*testing.T) docstore.Store {
		return docstore.NewInstrumented(docstore.NewMemoryStore(), "memory")
	})
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	t.Parallel()

	s := docstore.NewMemoryStore()
	ctx := context.Background()
	ref := docstore.Collection("posts").Doc("p1")
	data := docstore.Data{"pending": []any{"a"}}
	require.NoError(t, s.Set(ctx, ref, data))
	data["pending"] = []any{"mutated"}

	snap, err := s.Get(ctx, ref)
	require.NoError(t, err)
	snap.Data["pending"].([]any)[0] = "again"

	again, err := s.Get(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, []any{"a"}, again.Data["pending"])
}

func TestMemoryStore_ConcurrentWrites(t *testing.T) {
	t.Parallel()

	s := docstore.NewMemoryStore()
	ctx := context.Background()
	col := docstore.Collection("posts").Doc("p1").Collection("comments")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = s.Set(ctx, col.Doc(string(rune('a'+i%26))+string(rune('a'+i/26))), docstore.Data{"i": i})
		}(i)
	}
	wg.Wait()

	list, err := s.List(ctx, col)
	require.NoError(t, err)
	assert.Len(t, list, 50)
}
