package models

import "strings"

// Hub is a category record. NameLowercase is the lookup key used for
// implicit creation and prefix suggestions.
type Hub struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	NameLowercase string `json:"nameLowercase"`
	CreatorID     string `json:"creatorId,omitempty"`
	CreatedAt     int64  `json:"createdAt"`
}

// HubKey normalizes a display name into the hub lookup key.
func HubKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
