package models

import "time"

// WinnerRecord snapshots a confirmed winner's contact data and score at
// confirmation time. Stored under winner:{id} and indexed by winner:list.
type WinnerRecord struct {
	UserID    int64  `json:"user_id"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Email     string `json:"email,omitempty"`
	Wallet    string `json:"wallet"`
	Points    int64  `json:"points"`

	ConfirmedAt time.Time `json:"confirmed_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
