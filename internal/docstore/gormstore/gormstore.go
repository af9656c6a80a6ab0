// Package gormstore persists documents in SQL through gorm. Each document is
// one row in documents; each scalar top-level field is mirrored into
// document_fields so equality and collection group queries hit an index.
package gormstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"unify/internal/docstore"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type document struct {
	Path       string    `gorm:"primaryKey;size:512"`
	Collection string    `gorm:"size:512;not null;index"`
	GroupName  string    `gorm:"size:128;not null;index"`
	DocID      string    `gorm:"size:256;not null"`
	Data       string    `gorm:"type:text;not null"`
	UpdatedAt  time.Time `gorm:"not null"`
}

func (document) TableName() string { return "documents" }

type documentField struct {
	DocPath    string `gorm:"primaryKey;size:512"`
	Field      string `gorm:"primaryKey;size:128;index:idx_document_fields_lookup,priority:2"`
	Value      string `gorm:"size:1024;not null;index:idx_document_fields_lookup,priority:3"`
	Collection string `gorm:"size:512;not null;index:idx_document_fields_lookup,priority:1"`
	GroupName  string `gorm:"size:128;not null;index"`
}

func (documentField) TableName() string { return "document_fields" }

// maxIndexValue is the longest key stored verbatim in document_fields.value.
// Longer keys are stored as "h:" plus their sha256, which still fits the
// column and keeps equality lookups exact.
const maxIndexValue = 256

func indexValue(key string) string {
	if len(key) <= maxIndexValue {
		return key
	}
	sum := sha256.Sum256([]byte(key))
	return "h:" + hex.EncodeToString(sum[:])
}

// Store implements docstore.Store on a gorm connection.
type Store struct {
	db *gorm.DB
}

// New wraps db. Call Migrate before first use on a fresh database.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates or updates the documents and document_fields tables.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&document{}, &documentField{}); err != nil {
		return fmt.Errorf("gormstore: migrate: %w", err)
	}
	return nil
}

// DB exposes the underlying connection for health checks.
func (s *Store) DB() *gorm.DB { return s.db }

func (s *Store) Get(ctx context.Context, ref docstore.DocRef) (docstore.Snapshot, error) {
	if !ref.Valid() {
		return docstore.Snapshot{}, fmt.Errorf("%w: %q", docstore.ErrInvalidPath, ref.Path())
	}
	var row document
	err := s.db.WithContext(ctx).Where("path = ?", ref.Path()).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return docstore.Snapshot{}, docstore.ErrNotFound
	}
	if err != nil {
		return docstore.Snapshot{}, err
	}
	return toSnapshot(row)
}

func (s *Store) Set(ctx context.Context, ref docstore.DocRef, data docstore.Data) error {
	if !ref.Valid() {
		return fmt.Errorf("%w: %q", docstore.ErrInvalidPath, ref.Path())
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return setTx(tx, ref, data)
	})
}

func (s *Store) Delete(ctx context.Context, ref docstore.DocRef) error {
	if !ref.Valid() {
		return fmt.Errorf("%w: %q", docstore.ErrInvalidPath, ref.Path())
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return deleteTx(tx, ref)
	})
}

func (s *Store) List(ctx context.Context, col docstore.CollectionRef) ([]docstore.Snapshot, error) {
	if !col.Valid() {
		return nil, fmt.Errorf("%w: %q", docstore.ErrInvalidPath, col.Path())
	}
	var rows []document
	err := s.db.WithContext(ctx).
		Where("collection = ?", col.Path()).
		Order("doc_id").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toSnapshots(rows)
}

func (s *Store) Where(ctx context.Context, col docstore.CollectionRef, field string, value any) ([]docstore.Snapshot, error) {
	if !col.Valid() {
		return nil, fmt.Errorf("%w: %q", docstore.ErrInvalidPath, col.Path())
	}
	key, ok := docstore.IndexKey(value)
	if !ok {
		return nil, fmt.Errorf("gormstore: field %q: value of type %T is not queryable", field, value)
	}
	var rows []document
	err := s.db.WithContext(ctx).
		Select("documents.*").
		Joins("JOIN document_fields ON document_fields.doc_path = documents.path").
		Where("document_fields.collection = ? AND document_fields.field = ? AND document_fields.value = ?", col.Path(), field, indexValue(key)).
		Order("documents.doc_id").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toSnapshots(rows)
}

func (s *Store) WhereIDIn(ctx context.Context, col docstore.CollectionRef, ids []string) ([]docstore.Snapshot, error) {
	if len(ids) > docstore.MaxIDsPerQuery {
		return nil, docstore.ErrTooManyIDs
	}
	if !col.Valid() {
		return nil, fmt.Errorf("%w: %q", docstore.ErrInvalidPath, col.Path())
	}
	if len(ids) == 0 {
		return []docstore.Snapshot{}, nil
	}
	var rows []document
	err := s.db.WithContext(ctx).
		Where("collection = ? AND doc_id IN ?", col.Path(), ids).
		Order("doc_id").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toSnapshots(rows)
}

func (s *Store) CollectionGroup(ctx context.Context, name, field string, value any) ([]docstore.Snapshot, error) {
	key, ok := docstore.IndexKey(value)
	if !ok {
		return nil, fmt.Errorf("gormstore: field %q: value of type %T is not queryable", field, value)
	}
	var rows []document
	err := s.db.WithContext(ctx).
		Select("documents.*").
		Joins("JOIN document_fields ON document_fields.doc_path = documents.path").
		Where("document_fields.group_name = ? AND document_fields.field = ? AND document_fields.value = ?", name, field, indexValue(key)).
		Order("documents.path").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toSnapshots(rows)
}

func (s *Store) Batch() docstore.Batch {
	return &batch{store: s}
}

// Close releases the connection pool.
func (s *Store) Close(context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

type batch struct {
	docstore.Ops
	store *Store
}

func (b *batch) Set(ref docstore.DocRef, data docstore.Data) docstore.Batch {
	b.AddSet(ref, data)
	return b
}

func (b *batch) Delete(ref docstore.DocRef) docstore.Batch {
	b.AddDelete(ref)
	return b
}

func (b *batch) Len() int { return len(b.List) }

func (b *batch) Commit(ctx context.Context) error {
	if err := b.Validate(); err != nil {
		return err
	}
	return b.store.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, op := range b.List {
			var err error
			switch op.Kind {
			case docstore.OpSet:
				err = setTx(tx, op.Ref, op.Data)
			case docstore.OpDelete:
				err = deleteTx(tx, op.Ref)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func setTx(tx *gorm.DB, ref docstore.DocRef, data docstore.Data) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("gormstore: encode %s: %w", ref.Path(), err)
	}
	col := ref.Parent()
	row := document{
		Path:       ref.Path(),
		Collection: col.Path(),
		GroupName:  col.Name(),
		DocID:      ref.ID(),
		Data:       string(raw),
		UpdatedAt:  time.Now().UTC(),
	}
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "path"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
	}).Create(&row).Error; err != nil {
		return err
	}
	if err := tx.Where("doc_path = ?", row.Path).Delete(&documentField{}).Error; err != nil {
		return err
	}
	fields := indexFields(row, data)
	if len(fields) == 0 {
		return nil
	}
	return tx.Create(&fields).Error
}

func deleteTx(tx *gorm.DB, ref docstore.DocRef) error {
	if err := tx.Where("doc_path = ?", ref.Path()).Delete(&documentField{}).Error; err != nil {
		return err
	}
	return tx.Where("path = ?", ref.Path()).Delete(&document{}).Error
}

func indexFields(row document, data docstore.Data) []documentField {
	out := make([]documentField, 0, len(data))
	for field, v := range data {
		key, ok := docstore.IndexKey(v)
		if !ok {
			continue
		}
		out = append(out, documentField{
			DocPath:    row.Path,
			Field:      field,
			Value:      indexValue(key),
			Collection: row.Collection,
			GroupName:  row.GroupName,
		})
	}
	return out
}

func toSnapshot(row document) (docstore.Snapshot, error) {
	ref, ok := docstore.DocRefFromPath(row.Path)
	if !ok {
		return docstore.Snapshot{}, fmt.Errorf("%w: stored path %q", docstore.ErrInvalidPath, row.Path)
	}
	var data docstore.Data
	if err := json.Unmarshal([]byte(row.Data), &data); err != nil {
		return docstore.Snapshot{}, fmt.Errorf("gormstore: decode %s: %w", row.Path, err)
	}
	if data == nil {
		data = docstore.Data{}
	}
	return docstore.Snapshot{Ref: ref, Data: data}, nil
}

func toSnapshots(rows []document) ([]docstore.Snapshot, error) {
	out := make([]docstore.Snapshot, 0, len(rows))
	for _, row := range rows {
		snap, err := toSnapshot(row)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, nil
}
