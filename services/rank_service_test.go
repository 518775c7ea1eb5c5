package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/selveresta/projectQuestBot/models"
)

func seedParticipant(t *testing.T, store *memStore, userID, points int64, createdAt time.Time) {
	t.Helper()
	p := &models.Participant{
		SchemaVersion:     models.ParticipantSchemaVersion,
		UserID:            userID,
		Quests:            map[string]*models.QuestProgressEntry{},
		QuestPoints:       map[string]int64{},
		CreditedReferrals: []int64{},
		Points:            points,
		CreatedAt:         createdAt,
		UpdatedAt:         createdAt,
	}
	raw, _ := json.Marshal(p)
	if _, err := store.Set(context.Background(), participantKey(userID), raw, SetOptions{}); err != nil {
		t.Fatalf("seed participant %d: %v", userID, err)
	}
}

func newTestRank(t *testing.T) (*RankService, *memStore) {
	t.Helper()
	participants, store := newTestParticipants(t)
	return NewRankService(participants), store
}

func TestRankOfDenseRanking(t *testing.T) {
	ranks, store := newTestRank(t)
	ctx := context.Background()
	base := time.Now().UTC()

	seedParticipant(t, store, 1, 50, base)
	seedParticipant(t, store, 2, 50, base.Add(time.Minute))
	seedParticipant(t, store, 3, 30, base.Add(2*time.Minute))

	for _, tc := range []struct {
		userID int64
		rank   int
	}{
		{1, 1},
		{2, 1},
		{3, 2},
	} {
		info, err := ranks.RankOf(ctx, tc.userID)
		if err != nil {
			t.Fatalf("RankOf(%d): %v", tc.userID, err)
		}
		if info == nil || info.Rank != tc.rank {
			t.Fatalf("RankOf(%d) = %+v, want rank %d", tc.userID, info, tc.rank)
		}
		if info.Total != 3 {
			t.Fatalf("RankOf(%d).Total = %d, want 3", tc.userID, info.Total)
		}
	}
}

func TestRankOfUnknownParticipant(t *testing.T) {
	ranks, store := newTestRank(t)
	ctx := context.Background()

	info, err := ranks.RankOf(ctx, 42)
	if err != nil {
		t.Fatalf("RankOf on empty ledger: %v", err)
	}
	if info != nil {
		t.Fatalf("RankOf on empty ledger = %+v, want nil", info)
	}

	seedParticipant(t, store, 1, 10, time.Now().UTC())
	info, err = ranks.RankOf(ctx, 42)
	if err != nil {
		t.Fatalf("RankOf unknown id: %v", err)
	}
	if info != nil {
		t.Fatalf("RankOf unknown id = %+v, want nil", info)
	}
}

func TestTopOrderingAndTieBreak(t *testing.T) {
	ranks, store := newTestRank(t)
	ctx := context.Background()
	base := time.Now().UTC()

	// 2 registered before 1; equal points, so 2 sorts first.
	seedParticipant(t, store, 1, 40, base.Add(time.Hour))
	seedParticipant(t, store, 2, 40, base)
	seedParticipant(t, store, 3, 90, base.Add(2*time.Hour))
	seedParticipant(t, store, 4, 5, base)

	top, err := ranks.Top(ctx, 3)
	if err != nil {
		t.Fatalf("Top: %v", err)
	}
	if len(top) != 3 {
		t.Fatalf("Top(3) returned %d participants", len(top))
	}
	wantOrder := []int64{3, 2, 1}
	for i, want := range wantOrder {
		if top[i].UserID != want {
			t.Fatalf("Top order[%d] = %d, want %d", i, top[i].UserID, want)
		}
	}

	all, err := ranks.Top(ctx, 0)
	if err != nil {
		t.Fatalf("Top(0): %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("Top(0) returned %d participants, want all 4", len(all))
	}
}
