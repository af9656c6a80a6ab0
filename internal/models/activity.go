package models

// ActivityKind selects one of the derived activity feeds.
type ActivityKind string

const (
	// ActivityCommented lists posts the user commented on.
	ActivityCommented ActivityKind = "commented"
	// ActivityReplies lists posts holding replies to the user's comments.
	ActivityReplies ActivityKind = "replies"
)

// Valid reports whether k is a known feed.
func (k ActivityKind) Valid() bool {
	return k == ActivityCommented || k == ActivityReplies
}

// ActivityEntry is one row of a derived feed.
type ActivityEntry struct {
	Thread Thread `json:"thread"`
	Count  int    `json:"count"`
	LastAt int64  `json:"lastAt"`
}
