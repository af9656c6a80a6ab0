// Package search indexes threads for market search.
package search

import (
	"context"
	"strings"

	"unify/internal/models"
)

// ThreadRecord is the data indexed for a thread.
type ThreadRecord struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Body         string `json:"body"`
	Category     string `json:"category"`
	CategoryKey  string `json:"categoryKey"`
	IsMarketItem bool   `json:"isMarketItem"`
	CreatedAt    int64  `json:"createdAt"`
}

// RecordFromThread builds the index record of t.
func RecordFromThread(t models.Thread) ThreadRecord {
	return ThreadRecord{
		ID:           t.ID,
		Title:        t.Title,
		Body:         t.Body,
		Category:     t.Category,
		CategoryKey:  models.HubKey(t.Category),
		IsMarketItem: t.IsMarketItem,
		CreatedAt:    t.CreatedAt,
	}
}

// Query describes a thread search.
type Query struct {
	Text       string
	Category   string // empty = all categories
	MarketOnly bool
	Limit      int
}

// Index is a full-text thread index.
type Index interface {
	IndexThread(ctx context.Context, r ThreadRecord) error
	DeleteThread(ctx context.Context, id string) error
	// Search returns matching thread ids, best match first.
	Search(ctx context.Context, q Query) ([]string, error)
	Healthy() bool
}

// Matches is the in-process fallback: a case-insensitive substring match of
// text against the title or the body. Blank text matches everything.
func Matches(text, title, body string) bool {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return true
	}
	return strings.Contains(strings.ToLower(title), text) || strings.Contains(strings.ToLower(body), text)
}
