package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/selveresta/projectQuestBot/logger"
	"github.com/selveresta/projectQuestBot/models"
)

// ProfileCountFetcher returns follower/following counts for a public
// profile URL. Implementations may scrape or drive a browser; the verifier
// only sees the result shape and treats unusable counts uniformly.
type ProfileCountFetcher interface {
	Fetch(ctx context.Context, url string) (*models.ProfileCounts, error)
}

// ErrTransientFetch means the fetcher could not produce usable counts.
// Recoverable by retrying; no baseline state was committed.
var ErrTransientFetch = errors.New("could not read profile counts, try again later")

const (
	defaultVerifyWait  = 4 * time.Second
	minimumVerifyWait  = 1 * time.Second
	defaultBaselineTTL = 15 * time.Minute
	pendingCaptureTTL  = 90 * time.Second
	pendingSocialTTL   = 10 * time.Minute
)

func baselineKey(userID int64, questID string) string {
	return fmt.Sprintf("baseline:%d:%s", userID, questID)
}

func baselinePendingKey(userID int64, questID string) string {
	return fmt.Sprintf("baseline-pending:%d:%s", userID, questID)
}

func pendingSocialKey(userID int64) string {
	return fmt.Sprintf("pending-social:%d", userID)
}

// BaselineState tells the presentation layer what to do next.
type BaselineState int

const (
	// BaselineCaptured: counts snapshotted just now; follow the target,
	// then verify.
	BaselineCaptured BaselineState = iota
	// BaselineReady: a baseline already exists, verification can proceed.
	BaselineReady
	// BaselineCapturePending: another capture is in flight, retry shortly.
	BaselineCapturePending
)

// VerifyOutcome is the result of one verification attempt. Failed
// verification is a normal negative outcome, not an error.
type VerifyOutcome struct {
	Verified bool
	// Reason is human-readable and set on every non-verified outcome.
	Reason string
	// NeedsBaseline means no baseline existed; the caller must re-enter the
	// capture phase (follow first, then verify).
	NeedsBaseline bool
	// RewardedReferrerID is non-zero when this verification completed the
	// participant's first quest and credited their referrer.
	RewardedReferrerID int64
	Participant        *models.Participant
}

// FollowVerifier decides whether a participant really followed the target
// profile, by diffing follower/following counts captured before and after
// the follow. A single cached "is following" read is easy to fake with a
// pre-existing follow; the two-sided delta is not.
type FollowVerifier struct {
	Store        Store
	Participants *ParticipantService
	Fetcher      ProfileCountFetcher
	WaitDelay    time.Duration
	BaselineTTL  time.Duration
}

func NewFollowVerifier(store Store, participants *ParticipantService, fetcher ProfileCountFetcher, waitDelay time.Duration) *FollowVerifier {
	if waitDelay <= 0 {
		waitDelay = defaultVerifyWait
	}
	if waitDelay < minimumVerifyWait {
		waitDelay = minimumVerifyWait
	}
	return &FollowVerifier{
		Store:        store,
		Participants: participants,
		Fetcher:      fetcher,
		WaitDelay:    waitDelay,
		BaselineTTL:  defaultBaselineTTL,
	}
}

func (v *FollowVerifier) loadBaseline(ctx context.Context, userID int64, questID string) (*models.SocialBaseline, error) {
	payload, err := v.Store.Get(ctx, baselineKey(userID, questID))
	if err == ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var baseline models.SocialBaseline
	if err := json.Unmarshal(payload, &baseline); err != nil {
		logger.Error("quarantined unreadable baseline",
			zap.Int64("user_id", userID), zap.String("quest_id", questID), zap.Error(err))
		return nil, nil
	}
	return &baseline, nil
}

func (v *FollowVerifier) fetchPair(ctx context.Context, userURL, targetURL string) (*models.ProfileCounts, *models.ProfileCounts, error) {
	user, err := v.Fetcher.Fetch(ctx, userURL)
	if err != nil {
		return nil, nil, err
	}
	target, err := v.Fetcher.Fetch(ctx, targetURL)
	if err != nil {
		return nil, nil, err
	}
	return user, target, nil
}

// EnsureBaseline drives phase one: capture "before" counts for both sides
// of the follow relationship. A pending marker prevents concurrent
// duplicate captures for the same (participant, quest) pair.
func (v *FollowVerifier) EnsureBaseline(ctx context.Context, userID int64, questID, userURL, targetURL string) (BaselineState, error) {
	existing, err := v.loadBaseline(ctx, userID, questID)
	if err != nil {
		return BaselineCapturePending, err
	}
	if existing != nil {
		return BaselineReady, nil
	}

	pendingKey := baselinePendingKey(userID, questID)
	acquired, err := v.Store.Set(ctx, pendingKey, []byte("1"), SetOptions{TTL: pendingCaptureTTL, NX: true})
	if err != nil {
		return BaselineCapturePending, err
	}
	if !acquired {
		return BaselineCapturePending, nil
	}

	user, target, err := v.fetchPair(ctx, userURL, targetURL)
	if err != nil || !user.HasFollowing() || !target.HasFollowers() {
		_ = v.Store.Del(ctx, pendingKey)
		if err != nil {
			logger.Warn("baseline capture failed",
				zap.Int64("user_id", userID), zap.String("quest_id", questID), zap.Error(err))
		}
		return BaselineCapturePending, ErrTransientFetch
	}

	baseline := models.SocialBaseline{
		User:       *user,
		Target:     *target,
		CapturedAt: time.Now().UTC(),
	}
	payload, err := json.Marshal(baseline)
	if err != nil {
		_ = v.Store.Del(ctx, pendingKey)
		return BaselineCapturePending, fmt.Errorf("failed to encode baseline: %w", err)
	}
	if _, err := v.Store.Set(ctx, baselineKey(userID, questID), payload, SetOptions{TTL: v.BaselineTTL}); err != nil {
		_ = v.Store.Del(ctx, pendingKey)
		return BaselineCapturePending, err
	}
	if err := v.Store.Del(ctx, pendingKey); err != nil {
		logger.Warn("failed to clear baseline-pending marker",
			zap.Int64("user_id", userID), zap.String("quest_id", questID), zap.Error(err))
	}
	return BaselineCaptured, nil
}

// VerifyFollow drives phase two: wait out the propagation delay, re-read
// both counts and require the user's following and the target's followers
// to each have grown by exactly one. Whatever the outcome (other than a
// transient fetch failure), the baseline is cleared so it can never back a
// second attempt.
func (v *FollowVerifier) VerifyFollow(ctx context.Context, userID int64, questID, userURL, targetURL string) (*VerifyOutcome, error) {
	baseline, err := v.loadBaseline(ctx, userID, questID)
	if err != nil {
		return nil, err
	}
	if baseline == nil {
		return &VerifyOutcome{
			NeedsBaseline: true,
			Reason:        "No baseline captured yet. Open the quest again, follow the profile, then verify.",
		}, nil
	}

	if !baseline.User.HasFollowing() || !baseline.Target.HasFollowers() {
		if err := v.ClearBaseline(ctx, userID, questID); err != nil {
			return nil, err
		}
		return &VerifyOutcome{Reason: "Could not read baseline counts for the provided profiles."}, nil
	}

	select {
	case <-time.After(v.WaitDelay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	userAfter, targetAfter, err := v.fetchPair(ctx, userURL, targetURL)
	if err != nil || !userAfter.HasFollowing() || !targetAfter.HasFollowers() {
		if err != nil {
			logger.Warn("verification fetch failed",
				zap.Int64("user_id", userID), zap.String("quest_id", questID), zap.Error(err))
		}
		// A failed read fails the attempt and consumes the baseline: a stale
		// snapshot must never back a later verification.
		if clearErr := v.ClearBaseline(ctx, userID, questID); clearErr != nil {
			return nil, clearErr
		}
		return &VerifyOutcome{Reason: "Could not read updated counts after the waiting period."}, nil
	}

	userDelta := *userAfter.Following - *baseline.User.Following
	targetDelta := *targetAfter.Followers - *baseline.Target.Followers

	if userDelta != 1 || targetDelta != 1 {
		if err := v.ClearBaseline(ctx, userID, questID); err != nil {
			return nil, err
		}
		logger.Info("follow verification rejected",
			zap.Int64("user_id", userID),
			zap.String("quest_id", questID),
			zap.Int64("user_delta", userDelta),
			zap.Int64("target_delta", targetDelta))
		return &VerifyOutcome{
			Reason: "Follow verification failed. Please ensure you follow the target profile and try again.",
		}, nil
	}

	verification := models.FollowVerification{
		UserBefore:   baseline.User,
		UserAfter:    *userAfter,
		TargetBefore: baseline.Target,
		TargetAfter:  *targetAfter,
		VerifiedAt:   time.Now().UTC(),
	}
	metadata, err := json.Marshal(verification)
	if err != nil {
		return nil, fmt.Errorf("failed to encode verification metadata: %w", err)
	}

	participant, rewardedReferrer, err := v.Participants.CompleteQuest(ctx, userID, questID, string(metadata))
	if err != nil {
		return nil, err
	}
	if err := v.ClearBaseline(ctx, userID, questID); err != nil {
		return nil, err
	}

	logger.Info("follow verified",
		zap.Int64("user_id", userID), zap.String("quest_id", questID))
	return &VerifyOutcome{
		Verified:           true,
		RewardedReferrerID: rewardedReferrer,
		Participant:        participant,
	}, nil
}

// ClearBaseline drops both the baseline and any pending-capture marker.
func (v *FollowVerifier) ClearBaseline(ctx context.Context, userID int64, questID string) error {
	if err := v.Store.Del(ctx, baselineKey(userID, questID)); err != nil {
		return err
	}
	return v.Store.Del(ctx, baselinePendingKey(userID, questID))
}

// SetPendingQuest remembers which social quest the participant is currently
// submitting a profile for; expires on its own.
func (v *FollowVerifier) SetPendingQuest(ctx context.Context, userID int64, questID string) error {
	_, err := v.Store.Set(ctx, pendingSocialKey(userID), []byte(questID), SetOptions{TTL: pendingSocialTTL})
	return err
}

// PendingQuest returns the remembered quest id, empty when none is pending.
func (v *FollowVerifier) PendingQuest(ctx context.Context, userID int64) (string, error) {
	payload, err := v.Store.Get(ctx, pendingSocialKey(userID))
	if err == ErrNotFound {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return string(payload), nil
}

// ClearPendingQuest drops the marker.
func (v *FollowVerifier) ClearPendingQuest(ctx context.Context, userID int64) error {
	return v.Store.Del(ctx, pendingSocialKey(userID))
}
