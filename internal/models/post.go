// Package models contains the document shapes and projections of the content graph.
package models

import "strings"

// AnonymousDisplayName is shown in place of the author of an anonymous post.
const AnonymousDisplayName = "Anonymous"

// Post is the persisted shape of a thread document in the posts collection.
type Post struct {
	ID               string   `json:"id"`
	Title            string   `json:"title"`
	Body             string   `json:"body"`
	Category         string   `json:"category"`
	IsAnonymous      bool     `json:"isAnonymous"`
	AuthorID         string   `json:"authorId"`
	AuthorUsername   *string  `json:"authorUsername,omitempty"`
	AuthorUniversity *string  `json:"authorUniversity,omitempty"`
	CreatedAt        int64    `json:"createdAt"`
	IsMarketItem     bool     `json:"isMarketItem,omitempty"`
	Price            *float64 `json:"price,omitempty"`
	Contact          *string  `json:"contact,omitempty"`
	Image            string   `json:"image,omitempty"`
	ImageKey         string   `json:"imageKey,omitempty"`
}

// Thread is the read-only view of a Post handed to every list-producing
// component. CommentCount is only set when a caller resolved it.
type Thread struct {
	ID               string   `json:"id"`
	Title            string   `json:"title"`
	Body             string   `json:"body"`
	Category         string   `json:"category"`
	IsAnonymous      bool     `json:"isAnonymous"`
	AuthorID         string   `json:"authorId"`
	AuthorName       string   `json:"authorName"`
	AuthorUniversity string   `json:"authorUniversity,omitempty"`
	CreatedAt        int64    `json:"createdAt"`
	IsMarketItem     bool     `json:"isMarketItem"`
	Price            *float64 `json:"price,omitempty"`
	Contact          string   `json:"contact,omitempty"`
	Image            string   `json:"image,omitempty"`
	ImageKey         string   `json:"imageKey,omitempty"`
	CommentCount     *int     `json:"commentCount,omitempty"`
}

// ThreadFromPost projects a stored post into its display form.
func ThreadFromPost(p *Post) Thread {
	t := Thread{
		ID:           p.ID,
		Title:        p.Title,
		Body:         p.Body,
		Category:     p.Category,
		IsAnonymous:  p.IsAnonymous,
		AuthorID:     p.AuthorID,
		CreatedAt:    p.CreatedAt,
		IsMarketItem: p.IsMarketItem,
		Price:        p.Price,
		Contact:      deref(p.Contact),
		Image:        p.Image,
		ImageKey:     p.ImageKey,
	}
	if p.IsAnonymous {
		t.AuthorName = AnonymousDisplayName
	} else {
		t.AuthorName = deref(p.AuthorUsername)
		t.AuthorUniversity = deref(p.AuthorUniversity)
	}
	return t
}

// WithCommentCount returns a copy of t carrying a resolved comment count.
func (t Thread) WithCommentCount(n int) Thread {
	t.CommentCount = &n
	return t
}

// SameCategory reports whether a stored category matches a queried one.
// Matching is exact apart from letter case.
func SameCategory(stored, query string) bool {
	return strings.EqualFold(stored, query)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// StringPtr returns a pointer to s, or nil when s is blank.
func StringPtr(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}
