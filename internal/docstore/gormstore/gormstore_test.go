package gormstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"unify/internal/docstore"
	"unify/internal/docstore/docstoretest"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

func newSQLiteStore(t *testing.T) *Store {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	s := New(db)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

// setupMockDB opens a gorm postgres dialect over sqlmock.
func setupMockDB(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	db, err := gorm.Open(postgres.New(postgres.Config{
		Conn: sqlDB,
	}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return New(db), mock
}

func TestStore_Conformance(t *testing.T) {
	docstoretest.Run(t, func(t *testing.T) docstore.Store {
		return newSQLiteStore(t)
	})
}

func TestStore_IndexRowsFollowDocument(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()
	ref := docstore.Collection("posts").Doc("p1").Collection("comments").Doc("c1")

	require.NoError(t, s.Set(ctx, ref, docstore.Data{
		"authorId":  "u1",
		"createdAt": 10,
		"nested":    map[string]any{"skip": true},
	}))

	var fields []documentField
	require.NoError(t, s.db.Where("doc_path = ?", ref.Path()).Order("field").Find(&fields).Error)
	require.Len(t, fields, 2)
	assert.Equal(t, "authorId", fields[0].Field)
	assert.Equal(t, "s:u1", fields[0].Value)
	assert.Equal(t, "comments", fields[0].GroupName)
	assert.Equal(t, "posts/p1/comments", fields[0].Collection)
	assert.Equal(t, "n:10", fields[1].Value)

	require.NoError(t, s.Delete(ctx, ref))
	var count int64
	require.NoError(t, s.db.Model(&documentField{}).Where("doc_path = ?", ref.Path()).Count(&count).Error)
	assert.Zero(t, count)
}

func TestStore_LongValuesFitTheIndexColumn(t *testing.T) {
	sch, err := schema.Parse(&documentField{}, &sync.Map{}, schema.NamingStrategy{})
	require.NoError(t, err)
	size := sch.LookUpField("Value").Size
	require.Positive(t, size)

	s := newSQLiteStore(t)
	ctx := context.Background()
	body := strings.Repeat("sublet near campus ", 300)
	ref := docstore.Collection("posts").Doc("p1")
	require.NoError(t, s.Set(ctx, ref, docstore.Data{"title": "Sublet", "body": body}))

	var fields []documentField
	require.NoError(t, s.db.Where("doc_path = ?", ref.Path()).Find(&fields).Error)
	require.Len(t, fields, 2)
	for _, f := range fields {
		assert.LessOrEqual(t, len(f.Value), size, "field %q", f.Field)
		if f.Field == "body" {
			assert.True(t, strings.HasPrefix(f.Value, "h:"))
		}
	}

	got, err := s.Where(ctx, docstore.Collection("posts"), "body", body)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, body, got[0].Data["body"])

	miss, err := s.Where(ctx, docstore.Collection("posts"), "body", body+"!")
	require.NoError(t, err)
	assert.Empty(t, miss)

	group, err := s.CollectionGroup(ctx, "posts", "body", body)
	require.NoError(t, err)
	assert.Len(t, group, 1)
}

func TestStore_WhereRejectsNonScalar(t *testing.T) {
	s := newSQLiteStore(t)
	_, err := s.Where(context.Background(), docstore.Collection("posts"), "tags", []any{"a"})
	assert.Error(t, err)
}

func TestStore_SurfacesDriverErrors(t *testing.T) {
	s, mock := setupMockDB(t)
	boom := errors.New("connection reset")

	mock.ExpectQuery(`SELECT \* FROM "documents"`).WillReturnError(boom)
	_, err := s.Get(context.Background(), docstore.Collection("posts").Doc("p1"))
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, docstore.ErrNotFound)

	mock.ExpectQuery(`SELECT \* FROM "documents"`).WillReturnError(boom)
	_, err = s.List(context.Background(), docstore.Collection("posts"))
	assert.ErrorIs(t, err, boom)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_BatchRollsBackOnFailure(t *testing.T) {
	s, mock := setupMockDB(t)
	boom := errors.New("deadlock detected")

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "document_fields"`).WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(`DELETE FROM "documents"`).WillReturnError(boom)
	mock.ExpectRollback()

	post := docstore.Collection("posts").Doc("p1")
	err := s.Batch().Delete(post).Commit(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_GetNotFound(t *testing.T) {
	s, mock := setupMockDB(t)
	mock.ExpectQuery(`SELECT \* FROM "documents"`).WillReturnRows(sqlmock.NewRows([]string{"path", "collection", "group_name", "doc_id", "data", "updated_at"}))

	_, err := s.Get(context.Background(), docstore.Collection("posts").Doc("p1"))
	assert.ErrorIs(t, err, docstore.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
