package service

import (
	"sort"

	"unify/internal/models"
)

// BuildCommentTree partitions one post's comments into top-level comments,
// each carrying its direct replies. Top-level order follows the input; replies
// are ordered by creation time. Only one level of nesting exists: a comment
// whose parent is itself a reply, or names no comment in the list, is not
// attached to any node.
func BuildCommentTree(comments []models.Comment) []models.CommentNode {
	nodes := make([]models.CommentNode, 0, len(comments))
	index := make(map[string]int, len(comments))
	for _, c := range comments {
		if !c.IsTopLevel() {
			continue
		}
		index[c.ID] = len(nodes)
		nodes = append(nodes, models.CommentNode{Comment: c, Replies: []models.Comment{}})
	}

	for _, c := range comments {
		if c.IsTopLevel() {
			continue
		}
		i, ok := index[c.ParentID()]
		if !ok {
			continue
		}
		nodes[i].Replies = append(nodes[i].Replies, c)
	}

	for i := range nodes {
		replies := nodes[i].Replies
		sort.SliceStable(replies, func(a, b int) bool {
			if replies[a].CreatedAt != replies[b].CreatedAt {
				return replies[a].CreatedAt < replies[b].CreatedAt
			}
			return replies[a].ID < replies[b].ID
		})
		nodes[i].ReplyCount = len(replies)
	}
	return nodes
}
