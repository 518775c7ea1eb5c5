package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/selveresta/projectQuestBot/logger"
	"github.com/selveresta/projectQuestBot/models"
)

const participantKeyPrefix = "participant:"

func participantKey(userID int64) string {
	return fmt.Sprintf("%s%d", participantKeyPrefix, userID)
}

// ParticipantService owns the participant record: challenge gating state,
// quest completion, point accounting and referral bookkeeping. Stateless
// over the Store; every mutation is read-modify-write on a single document.
type ParticipantService struct {
	Store               Store
	Catalog             *models.QuestCatalog
	ReferralBonusPoints int64
}

func NewParticipantService(store Store, catalog *models.QuestCatalog, referralBonusPoints int64) *ParticipantService {
	return &ParticipantService{
		Store:               store,
		Catalog:             catalog,
		ReferralBonusPoints: referralBonusPoints,
	}
}

func (s *ParticipantService) newParticipant(userID int64) *models.Participant {
	now := time.Now().UTC()
	p := &models.Participant{
		SchemaVersion:     models.ParticipantSchemaVersion,
		UserID:            userID,
		Quests:            make(map[string]*models.QuestProgressEntry),
		QuestPoints:       make(map[string]int64),
		CreditedReferrals: []int64{},
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	for _, questID := range s.Catalog.QuestIDs() {
		p.Quests[questID] = &models.QuestProgressEntry{}
	}
	return p
}

// normalizeParticipant backfills quest entries for catalog ids added after
// the record was written and repairs nil maps from older schema versions.
// Reports whether anything changed so the caller can persist the migration.
func (s *ParticipantService) normalizeParticipant(p *models.Participant) bool {
	changed := false
	if p.Quests == nil {
		p.Quests = make(map[string]*models.QuestProgressEntry)
		changed = true
	}
	for _, questID := range s.Catalog.QuestIDs() {
		if _, ok := p.Quests[questID]; !ok {
			p.Quests[questID] = &models.QuestProgressEntry{}
			changed = true
		}
	}
	if p.QuestPoints == nil {
		p.QuestPoints = make(map[string]int64)
		changed = true
	}
	if p.CreditedReferrals == nil {
		p.CreditedReferrals = []int64{}
		changed = true
	}
	if p.SchemaVersion != models.ParticipantSchemaVersion {
		p.SchemaVersion = models.ParticipantSchemaVersion
		changed = true
	}
	return changed
}

func (s *ParticipantService) save(ctx context.Context, p *models.Participant) error {
	p.UpdatedAt = time.Now().UTC()
	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode participant %d: %w", p.UserID, err)
	}
	if _, err := s.Store.Set(ctx, participantKey(p.UserID), payload, SetOptions{}); err != nil {
		return err
	}
	return nil
}

func (s *ParticipantService) decode(key string, payload []byte) (*models.Participant, bool) {
	var p models.Participant
	if err := json.Unmarshal(payload, &p); err != nil {
		// Deserialize-or-quarantine: a corrupt record is logged and treated
		// as absent instead of poisoning the read path.
		logger.Error("quarantined unreadable participant record",
			zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return &p, true
}

// Get loads one participant, running the lazy catalog backfill and
// persisting it when it changed anything.
func (s *ParticipantService) Get(ctx context.Context, userID int64) (*models.Participant, bool, error) {
	payload, err := s.Store.Get(ctx, participantKey(userID))
	if err == ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	p, ok := s.decode(participantKey(userID), payload)
	if !ok {
		return nil, false, nil
	}
	if s.normalizeParticipant(p) {
		if err := s.save(ctx, p); err != nil {
			return nil, false, err
		}
	}
	return p, true, nil
}

func (s *ParticipantService) getOrCreate(ctx context.Context, userID int64) (*models.Participant, error) {
	p, found, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !found {
		p = s.newParticipant(userID)
	}
	return p, nil
}

// GetOrCreate materializes the participant on first contact and refreshes
// display attributes on every later one. A referrer is honored only once,
// and never when it points at the participant itself.
func (s *ParticipantService) GetOrCreate(ctx context.Context, userID int64, attrs models.ParticipantAttrs) (*models.Participant, error) {
	p, err := s.getOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	if attrs.Username != "" {
		p.Username = attrs.Username
	}
	if attrs.FirstName != "" {
		p.FirstName = attrs.FirstName
	}
	if attrs.LastName != "" {
		p.LastName = attrs.LastName
	}
	if attrs.ReferredBy != 0 && p.ReferredBy == 0 && attrs.ReferredBy != userID {
		p.ReferredBy = attrs.ReferredBy
	}
	if err := s.save(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// AssignReferrer records the referrer when the participant has none yet.
// Self-referrals are ignored.
func (s *ParticipantService) AssignReferrer(ctx context.Context, userID, referrerID int64) (*models.Participant, error) {
	p, err := s.getOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	if p.ReferredBy == 0 && userID != referrerID {
		p.ReferredBy = referrerID
		if err := s.save(ctx, p); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// CompleteQuest marks the quest complete and credits its catalog points at
// most once; repeat calls only refresh metadata. Afterwards the referral
// bonus is evaluated. The returned referrer id is non-zero exactly when
// this call credited the bonus, so the caller can notify the referrer.
func (s *ParticipantService) CompleteQuest(ctx context.Context, userID int64, questID, metadata string) (*models.Participant, int64, error) {
	p, err := s.getOrCreate(ctx, userID)
	if err != nil {
		return nil, 0, err
	}

	entry, ok := p.Quests[questID]
	if !ok {
		entry = &models.QuestProgressEntry{}
		p.Quests[questID] = entry
	}
	if !entry.Completed {
		now := time.Now().UTC()
		entry.Completed = true
		entry.CompletedAt = &now
	}
	if metadata != "" {
		entry.Metadata = metadata
	}

	// Idempotent point award: credit only the delta still owed for this quest.
	if value := s.Catalog.PointsFor(questID); value > 0 {
		if credited := p.QuestPoints[questID]; credited < value {
			p.Points += value - credited
			p.QuestPoints[questID] = value
		}
	}

	if err := s.save(ctx, p); err != nil {
		return nil, 0, err
	}

	rewardedReferrer, err := s.evaluateReferralBonus(ctx, p)
	if err != nil {
		return nil, 0, err
	}
	return p, rewardedReferrer, nil
}

// evaluateReferralBonus runs after every successful completion. Trigger is
// "any quest complete", deliberately looser than the eligibility condition.
// Two sequential single-key writes: credit the referrer (guarded by their
// credited set), then flip the claimant's flag. Safe to retry after a
// crash in between, impossible to double-credit.
func (s *ParticipantService) evaluateReferralBonus(ctx context.Context, p *models.Participant) (int64, error) {
	if p.ReferredBy == 0 || p.ReferralBonusClaimed || !p.CompletedAnyQuest() {
		return 0, nil
	}

	referrer, found, err := s.Get(ctx, p.ReferredBy)
	if err != nil {
		return 0, err
	}

	credited := int64(0)
	if found && !referrer.HasCreditedReferral(p.UserID) {
		referrer.CreditedReferrals = append(referrer.CreditedReferrals, p.UserID)
		referrer.Points += s.ReferralBonusPoints
		if err := s.save(ctx, referrer); err != nil {
			return 0, err
		}
		credited = referrer.UserID
		logger.Info("referral bonus credited",
			zap.Int64("referrer_id", referrer.UserID),
			zap.Int64("referred_id", p.UserID),
			zap.Int64("bonus_points", s.ReferralBonusPoints))
	}

	p.ReferralBonusClaimed = true
	if err := s.save(ctx, p); err != nil {
		return 0, err
	}
	return credited, nil
}

// SetQuestMetadata refreshes the stored metadata (e.g. a resubmitted
// profile URL) without touching completion state.
func (s *ParticipantService) SetQuestMetadata(ctx context.Context, userID int64, questID, metadata string) (*models.Participant, error) {
	p, err := s.getOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	entry, ok := p.Quests[questID]
	if !ok {
		entry = &models.QuestProgressEntry{}
		p.Quests[questID] = entry
	}
	entry.Metadata = metadata
	if err := s.save(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// UpdateContact applies the patch atomically: every unique field is first
// normalized and checked against all other participants, and a single
// collision rejects the whole patch with DuplicateContactError.
func (s *ParticipantService) UpdateContact(ctx context.Context, userID int64, patch models.ContactPatch) (*models.Participant, error) {
	if patch.IsEmpty() {
		return s.getOrCreate(ctx, userID)
	}
	patch = normalizePatch(patch)

	others, err := s.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	for _, field := range uniqueContactFields {
		value, ok := patchFieldValue(patch, field)
		if !ok || strings.TrimSpace(value) == "" {
			continue
		}
		canonical := canonicalContact(field, value)
		for _, other := range others {
			if other.UserID == userID {
				continue
			}
			existing := contactFieldValue(other, field)
			if existing != "" && canonicalContact(field, existing) == canonical {
				return nil, &DuplicateContactError{
					Field:             field,
					Value:             value,
					ConflictingUserID: other.UserID,
				}
			}
		}
	}

	p, err := s.getOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	updated := patch.Apply(*p)
	if err := s.save(ctx, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// normalizePatch canonicalizes submitted values before they are compared
// or stored: profile links through URL normalization, the rest trimmed.
func normalizePatch(patch models.ContactPatch) models.ContactPatch {
	trim := func(v *string) *string {
		if v == nil {
			return nil
		}
		t := strings.TrimSpace(*v)
		return &t
	}
	normURL := func(v *string) *string {
		if v == nil {
			return nil
		}
		n := NormalizeProfileURL(*v)
		return &n
	}
	return models.ContactPatch{
		Email:               trim(patch.Email),
		Wallet:              trim(patch.Wallet),
		SolanaWallet:        trim(patch.SolanaWallet),
		XProfileURL:         normURL(patch.XProfileURL),
		InstagramProfileURL: normURL(patch.InstagramProfileURL),
		DiscordUserID:       trim(patch.DiscordUserID),
	}
}

// SetChallenge stores a freshly issued challenge, resetting the passed flag.
func (s *ParticipantService) SetChallenge(ctx context.Context, userID int64, challenge *models.Challenge) (*models.Participant, error) {
	p, err := s.getOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	p.PendingChallenge = challenge
	p.ChallengePassed = false
	if err := s.save(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// ClearChallenge drops the pending challenge without passing it.
func (s *ParticipantService) ClearChallenge(ctx context.Context, userID int64) (*models.Participant, error) {
	p, found, err := s.Get(ctx, userID)
	if err != nil || !found {
		return nil, err
	}
	p.PendingChallenge = nil
	if err := s.save(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// IncrementChallengeAttempts bumps the wrong-answer counter.
func (s *ParticipantService) IncrementChallengeAttempts(ctx context.Context, userID int64) (*models.Participant, error) {
	p, err := s.getOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	p.ChallengeAttempts++
	if err := s.save(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// MarkChallengePassed permanently opens the gate for this participant.
func (s *ParticipantService) MarkChallengePassed(ctx context.Context, userID int64) (*models.Participant, error) {
	p, err := s.getOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	p.ChallengePassed = true
	p.PendingChallenge = nil
	if err := s.save(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// IsEligible reports whether the participant passed the challenge and
// completed every mandatory quest.
func (s *ParticipantService) IsEligible(p *models.Participant) bool {
	if p == nil || !p.ChallengePassed {
		return false
	}
	for _, questID := range s.Catalog.MandatoryQuestIDs() {
		if !p.HasCompleted(questID) {
			return false
		}
	}
	return true
}

// ListAll scans every participant record, skipping quarantined payloads.
func (s *ParticipantService) ListAll(ctx context.Context) ([]*models.Participant, error) {
	keys, err := s.Store.ScanKeys(ctx, participantKeyPrefix+"*")
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, nil
	}

	values, err := s.Store.MGet(ctx, keys)
	if err != nil {
		return nil, err
	}

	participants := make([]*models.Participant, 0, len(values))
	for i, payload := range values {
		if payload == nil {
			continue
		}
		p, ok := s.decode(keys[i], payload)
		if !ok {
			continue
		}
		s.normalizeParticipant(p)
		participants = append(participants, p)
	}
	return participants, nil
}

// CountEligible is the full-scan aggregate behind campaign stats.
func (s *ParticipantService) CountEligible(ctx context.Context) (int, error) {
	participants, err := s.ListAll(ctx)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, p := range participants {
		if s.IsEligible(p) {
			count++
		}
	}
	return count, nil
}
