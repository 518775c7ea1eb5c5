package models

import "time"

// ParticipantSchemaVersion is stamped into every stored record so future
// deployments can migrate or quarantine payloads they no longer understand.
const ParticipantSchemaVersion = 1

// QuestProgressEntry tracks one catalog quest for one participant.
// Completed flips to true exactly once; later writes only refresh Metadata.
type QuestProgressEntry struct {
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Metadata    string     `json:"metadata,omitempty"`
}

// Participant is the single document of record for one campaign entrant,
// stored as JSON under participant:{id}.
type Participant struct {
	SchemaVersion int   `json:"schema_version"`
	UserID        int64 `json:"user_id"`

	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`

	ChallengePassed   bool       `json:"challenge_passed"`
	ChallengeAttempts int        `json:"challenge_attempts"`
	PendingChallenge  *Challenge `json:"pending_challenge,omitempty"`

	// Quests always carries one entry per catalog quest id; missing ids are
	// backfilled on read, never dropped.
	Quests map[string]*QuestProgressEntry `json:"quests"`

	Points int64 `json:"points"`
	// QuestPoints records how many points were already credited per quest and
	// guards the award path against double-crediting.
	QuestPoints map[string]int64 `json:"quest_points"`

	ReferredBy           int64   `json:"referred_by,omitempty"`
	ReferralBonusClaimed bool    `json:"referral_bonus_claimed"`
	CreditedReferrals    []int64 `json:"credited_referrals"`

	Email               string `json:"email,omitempty"`
	Wallet              string `json:"wallet,omitempty"`
	SolanaWallet        string `json:"solana_wallet,omitempty"`
	XProfileURL         string `json:"x_profile_url,omitempty"`
	InstagramProfileURL string `json:"instagram_profile_url,omitempty"`
	DiscordUserID       string `json:"discord_user_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasCompleted reports whether the given quest is marked complete.
func (p *Participant) HasCompleted(questID string) bool {
	entry, ok := p.Quests[questID]
	return ok && entry.Completed
}

// CompletedAnyQuest reports whether at least one quest is complete. The
// referral bonus keys off this, not off mandatory quests.
func (p *Participant) CompletedAnyQuest() bool {
	for _, entry := range p.Quests {
		if entry.Completed {
			return true
		}
	}
	return false
}

// HasCreditedReferral reports whether referredID was already credited to
// this participant's referral tally.
func (p *Participant) HasCreditedReferral(referredID int64) bool {
	for _, id := range p.CreditedReferrals {
		if id == referredID {
			return true
		}
	}
	return false
}

// ParticipantAttrs are the display attributes refreshed on every inbound
// interaction, plus the optional one-time referrer assignment.
type ParticipantAttrs struct {
	Username   string
	FirstName  string
	LastName   string
	ReferredBy int64
}

// ContactField enumerates the updatable contact slots. Every field is
// globally unique across participants.
type ContactField string

const (
	ContactEmail        ContactField = "email"
	ContactWallet       ContactField = "wallet"
	ContactSolanaWallet ContactField = "solana_wallet"
	ContactXProfile     ContactField = "x_profile_url"
	ContactInstagram    ContactField = "instagram_profile_url"
	ContactDiscordID    ContactField = "discord_user_id"
)

// ContactPatch is an explicit field-level patch: only non-nil fields are
// applied, and the whole patch is applied atomically or not at all.
type ContactPatch struct {
	Email               *string
	Wallet              *string
	SolanaWallet        *string
	XProfileURL         *string
	InstagramProfileURL *string
	DiscordUserID       *string
}

// IsEmpty reports whether the patch carries no fields.
func (p ContactPatch) IsEmpty() bool {
	return p.Email == nil && p.Wallet == nil && p.SolanaWallet == nil &&
		p.XProfileURL == nil && p.InstagramProfileURL == nil && p.DiscordUserID == nil
}

// Apply merges the patch into a copy of the participant and returns it.
// Pure: the receiver participant is not mutated.
func (p ContactPatch) Apply(participant Participant) Participant {
	if p.Email != nil {
		participant.Email = *p.Email
	}
	if p.Wallet != nil {
		participant.Wallet = *p.Wallet
	}
	if p.SolanaWallet != nil {
		participant.SolanaWallet = *p.SolanaWallet
	}
	if p.XProfileURL != nil {
		participant.XProfileURL = *p.XProfileURL
	}
	if p.InstagramProfileURL != nil {
		participant.InstagramProfileURL = *p.InstagramProfileURL
	}
	if p.DiscordUserID != nil {
		participant.DiscordUserID = *p.DiscordUserID
	}
	return participant
}
