package models

import "time"

// ChallengeTTL bounds how long an issued challenge stays answerable.
const ChallengeTTL = 5 * time.Minute

// Challenge is the one-time human-verification puzzle gating all further
// interaction. Stored only while pending, cleared once passed.
type Challenge struct {
	Prompt    string    `json:"prompt"`
	Answer    string    `json:"answer"`
	Options   []string  `json:"options"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}
