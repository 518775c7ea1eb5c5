package models

import "time"

// ProfileCounts is the observable state of one social profile. Followers or
// Following may be nil when the fetcher could not read that side.
type ProfileCounts struct {
	URL       string `json:"url"`
	Followers *int64 `json:"followers"`
	Following *int64 `json:"following"`
	Success   bool   `json:"success"`
}

// HasFollowers reports whether the followers count is usable.
func (c *ProfileCounts) HasFollowers() bool {
	return c != nil && c.Success && c.Followers != nil
}

// HasFollowing reports whether the following count is usable.
func (c *ProfileCounts) HasFollowing() bool {
	return c != nil && c.Success && c.Following != nil
}

// SocialBaseline captures the "before" counts for a follow verification.
// Stored under baseline:{id}:{questId} with a short TTL.
type SocialBaseline struct {
	User       ProfileCounts `json:"user"`
	Target     ProfileCounts `json:"target"`
	CapturedAt time.Time     `json:"captured_at"`
}

// FollowVerification is the persisted quest metadata for a verified follow:
// the before/after counts and when the check concluded.
type FollowVerification struct {
	UserBefore   ProfileCounts `json:"user_before"`
	UserAfter    ProfileCounts `json:"user_after"`
	TargetBefore ProfileCounts `json:"target_before"`
	TargetAfter  ProfileCounts `json:"target_after"`
	VerifiedAt   time.Time     `json:"verified_at"`
}
