package models

// CascadeState is the persisted step of a hub deletion job.
type CascadeState string

const (
	CascadeListing          CascadeState = "listing"
	CascadeCascading        CascadeState = "cascading"
	CascadeDeletingCategory CascadeState = "deleting_category"
	CascadeCompleted        CascadeState = "completed"
	CascadeAborted          CascadeState = "aborted"
)

// Terminal reports whether no further step runs without a new invocation.
func (s CascadeState) Terminal() bool {
	return s == CascadeCompleted || s == CascadeAborted
}

// PostFailure records a post whose cascade batch did not commit.
type PostFailure struct {
	PostID string `json:"postId"`
	Error  string `json:"error"`
}

// CascadeJob is the checkpoint of a hub deletion, stored at cascadeJobs/{hubId}.
// Pending holds the posts still to cascade.
type CascadeJob struct {
	HubID     string        `json:"hubId"`
	HubName   string        `json:"hubName"`
	CreatorID string        `json:"creatorId,omitempty"`
	State     CascadeState  `json:"state"`
	Pending   []string      `json:"pending"`
	Failed    []PostFailure `json:"failed"`
	Deleted   int           `json:"deleted"`
	Attempts  int           `json:"attempts"`
	CreatedAt int64         `json:"createdAt"`
	UpdatedAt int64         `json:"updatedAt"`
}
