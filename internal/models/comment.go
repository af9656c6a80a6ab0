package models

import "strings"

// Comment is the persisted shape of a document in posts/{postId}/comments.
type Comment struct {
	ID               string  `json:"id"`
	PostID           string  `json:"postId"`
	ParentCommentID  *string `json:"parentCommentId,omitempty"`
	Text             string  `json:"text"`
	AuthorID         string  `json:"authorId"`
	AuthorUsername   *string `json:"authorUsername,omitempty"`
	AuthorUniversity *string `json:"authorUniversity,omitempty"`
	CreatedAt        int64   `json:"createdAt"`
}

// ParentID returns the trimmed parent comment id. Absent, empty and
// whitespace-only values all collapse to "".
func (c *Comment) ParentID() string {
	if c.ParentCommentID == nil {
		return ""
	}
	return strings.TrimSpace(*c.ParentCommentID)
}

// IsTopLevel reports whether the comment has no parent.
func (c *Comment) IsTopLevel() bool {
	return c.ParentID() == ""
}

// CommentNode is a top-level comment with its direct replies in creation order.
type CommentNode struct {
	Comment    Comment   `json:"comment"`
	Replies    []Comment `json:"replies"`
	ReplyCount int       `json:"replyCount"`
}
