package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/selveresta/projectQuestBot/logger"
	"github.com/selveresta/projectQuestBot/models"
)

const (
	winnerSetKey     = "winner:list"
	pendingWalletTTL = 10 * time.Minute
)

func winnerKey(userID int64) string {
	return fmt.Sprintf("winner:%d", userID)
}

func candidateWalletKey(userID int64) string {
	return fmt.Sprintf("winner:candidate_wallet:%d", userID)
}

func pendingWalletKey(userID int64) string {
	return fmt.Sprintf("winner:pending_wallet:%d", userID)
}

// WinnerService keeps the post-draw ledger: confirmed winner snapshots,
// staged candidate wallets and the TTL'd awaiting-wallet marker. Delivery
// of prizes and all winner-facing chat flow live in the presentation layer.
type WinnerService struct {
	Store        Store
	Participants *ParticipantService
}

func NewWinnerService(store Store, participants *ParticipantService) *WinnerService {
	return &WinnerService{Store: store, Participants: participants}
}

func (s *WinnerService) GetWinner(ctx context.Context, userID int64) (*models.WinnerRecord, error) {
	payload, err := s.Store.Get(ctx, winnerKey(userID))
	if err == ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var record models.WinnerRecord
	if err := json.Unmarshal(payload, &record); err != nil {
		logger.Error("quarantined unreadable winner record",
			zap.Int64("user_id", userID), zap.Error(err))
		return nil, nil
	}
	return &record, nil
}

func (s *WinnerService) HasWinner(ctx context.Context, userID int64) (bool, error) {
	return s.Store.Exists(ctx, winnerKey(userID))
}

// ListWinners returns every confirmed winner ordered by confirmation time.
func (s *WinnerService) ListWinners(ctx context.Context) ([]*models.WinnerRecord, error) {
	members, err := s.Store.SMembers(ctx, winnerSetKey)
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, nil
	}

	keys := make([]string, 0, len(members))
	for _, member := range members {
		userID, err := strconv.ParseInt(member, 10, 64)
		if err != nil {
			logger.Warn("skipping malformed winner set member", zap.String("member", member))
			continue
		}
		keys = append(keys, winnerKey(userID))
	}

	values, err := s.Store.MGet(ctx, keys)
	if err != nil {
		return nil, err
	}

	winners := make([]*models.WinnerRecord, 0, len(values))
	for i, payload := range values {
		if payload == nil {
			continue
		}
		var record models.WinnerRecord
		if err := json.Unmarshal(payload, &record); err != nil {
			logger.Error("quarantined unreadable winner record",
				zap.String("key", keys[i]), zap.Error(err))
			continue
		}
		winners = append(winners, &record)
	}
	sort.Slice(winners, func(i, j int) bool {
		return winners[i].ConfirmedAt.Before(winners[j].ConfirmedAt)
	})
	return winners, nil
}

// ConfirmWinner snapshots the participant's contact data and points under
// the supplied payout wallet, keeping the original confirmation time on
// re-confirmation. Staged wallet state is cleared afterwards.
func (s *WinnerService) ConfirmWinner(ctx context.Context, userID int64, wallet string) (*models.WinnerRecord, error) {
	sanitized := strings.TrimSpace(wallet)
	if sanitized == "" {
		return nil, fmt.Errorf("wallet is required to confirm winner %d", userID)
	}

	existing, err := s.GetWinner(ctx, userID)
	if err != nil {
		return nil, err
	}
	participant, err := s.Participants.GetOrCreate(ctx, userID, models.ParticipantAttrs{})
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	record := &models.WinnerRecord{
		UserID:      userID,
		Username:    participant.Username,
		FirstName:   participant.FirstName,
		LastName:    participant.LastName,
		Email:       participant.Email,
		Wallet:      sanitized,
		Points:      participant.Points,
		ConfirmedAt: now,
		UpdatedAt:   now,
	}
	if existing != nil {
		record.ConfirmedAt = existing.ConfirmedAt
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to encode winner record: %w", err)
	}
	if _, err := s.Store.Set(ctx, winnerKey(userID), payload, SetOptions{}); err != nil {
		return nil, err
	}
	if err := s.Store.SAdd(ctx, winnerSetKey, strconv.FormatInt(userID, 10)); err != nil {
		return nil, err
	}
	if err := s.ClearCandidateWallet(ctx, userID); err != nil {
		return nil, err
	}
	if err := s.FinishWalletUpdate(ctx, userID); err != nil {
		return nil, err
	}

	logger.Info("winner confirmed", zap.Int64("user_id", userID))
	return record, nil
}

func (s *WinnerService) CandidateWallet(ctx context.Context, userID int64) (string, error) {
	payload, err := s.Store.Get(ctx, candidateWalletKey(userID))
	if err == ErrNotFound {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return string(payload), nil
}

func (s *WinnerService) SaveCandidateWallet(ctx context.Context, userID int64, wallet string) error {
	sanitized := strings.TrimSpace(wallet)
	if sanitized == "" {
		return nil
	}
	_, err := s.Store.Set(ctx, candidateWalletKey(userID), []byte(sanitized), SetOptions{})
	return err
}

func (s *WinnerService) ClearCandidateWallet(ctx context.Context, userID int64) error {
	return s.Store.Del(ctx, candidateWalletKey(userID))
}

// BeginWalletUpdate marks the winner as mid-flow on a wallet submission;
// the marker expires on its own if they abandon it.
func (s *WinnerService) BeginWalletUpdate(ctx context.Context, userID int64) error {
	_, err := s.Store.Set(ctx, pendingWalletKey(userID), []byte("1"), SetOptions{TTL: pendingWalletTTL})
	return err
}

func (s *WinnerService) FinishWalletUpdate(ctx context.Context, userID int64) error {
	return s.Store.Del(ctx, pendingWalletKey(userID))
}

func (s *WinnerService) IsAwaitingWallet(ctx context.Context, userID int64) (bool, error) {
	return s.Store.Exists(ctx, pendingWalletKey(userID))
}

// ResolveWalletHint suggests a wallet to prefill: staged candidate first,
// then a confirmed record, then the participant's quest-submitted wallet.
func (s *WinnerService) ResolveWalletHint(ctx context.Context, userID int64) (string, error) {
	candidate, err := s.CandidateWallet(ctx, userID)
	if err != nil {
		return "", err
	}
	if candidate != "" {
		return candidate, nil
	}
	winner, err := s.GetWinner(ctx, userID)
	if err != nil {
		return "", err
	}
	if winner != nil && winner.Wallet != "" {
		return winner.Wallet, nil
	}
	participant, found, err := s.Participants.Get(ctx, userID)
	if err != nil || !found {
		return "", err
	}
	return participant.Wallet, nil
}
