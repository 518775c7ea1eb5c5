package services

import (
	"context"
	"sort"

	"github.com/selveresta/projectQuestBot/models"
)

// RankService derives leaderboard ordering on demand from the full ledger.
// No persisted index: the participant set is bounded for a time-boxed
// campaign, so a scan-and-sort per query is acceptable.
type RankService struct {
	Participants *ParticipantService
}

func NewRankService(participants *ParticipantService) *RankService {
	return &RankService{Participants: participants}
}

// RankInfo is one participant's position in the total ordering.
type RankInfo struct {
	Rank   int   `json:"rank"`
	Points int64 `json:"points"`
	Total  int   `json:"total"`
}

// sortByPoints orders by points descending; earlier registration wins ties.
func sortByPoints(participants []*models.Participant) {
	sort.SliceStable(participants, func(i, j int) bool {
		if participants[i].Points != participants[j].Points {
			return participants[i].Points > participants[j].Points
		}
		return participants[i].CreatedAt.Before(participants[j].CreatedAt)
	})
}

// Top returns the first n participants of the total ordering, or all of
// them when n <= 0.
func (s *RankService) Top(ctx context.Context, n int) ([]*models.Participant, error) {
	participants, err := s.Participants.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	sortByPoints(participants)
	if n <= 0 || n >= len(participants) {
		return participants, nil
	}
	return participants[:n], nil
}

// RankOf computes the participant's dense rank: tied point values share a
// rank and the next distinct value gets the previous rank plus one, so
// points [50, 50, 30] rank as [1, 1, 2].
func (s *RankService) RankOf(ctx context.Context, userID int64) (*RankInfo, error) {
	participants, err := s.Participants.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	if len(participants) == 0 {
		return nil, nil
	}
	sortByPoints(participants)

	rank := 0
	var previousPoints int64
	for i, p := range participants {
		if i == 0 || p.Points < previousPoints {
			rank++
			previousPoints = p.Points
		}
		if p.UserID == userID {
			return &RankInfo{Rank: rank, Points: p.Points, Total: len(participants)}, nil
		}
	}
	return nil, nil
}
