package models

// ListKind names one of the per-user post id sets.
type ListKind string

const (
	ListSaved ListKind = "saved"
	ListCart  ListKind = "cart"
)

// Subcollection is the per-user subcollection backing the set.
func (k ListKind) Subcollection() string {
	if k == ListCart {
		return "cart"
	}
	return "savedPosts"
}

// TimestampField is the entry field holding the time the id was added.
func (k ListKind) TimestampField() string {
	if k == ListCart {
		return "addedAt"
	}
	return "savedAt"
}

// Valid reports whether k is a known list.
func (k ListKind) Valid() bool {
	return k == ListSaved || k == ListCart
}

// ListEntry is one per-user subcollection document. AddedAt is read from
// savedAt or addedAt depending on the list.
type ListEntry struct {
	PostID  string `json:"postId"`
	AddedAt int64  `json:"addedAt"`
}
