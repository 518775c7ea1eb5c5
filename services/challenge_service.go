package services

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/selveresta/projectQuestBot/models"
)

var challengeSymbolPool = []string{"🔥", "❄️", "⚡️", "🌊", "🌟", "🍀", "🎯", "🧩", "🎈", "🚀"}

// challengeOptionCount is how many symbols a participant gets to pick from.
const challengeOptionCount = 4

// ChallengeService issues and checks the human-verification puzzle. Pure
// given the challenge record; the only randomness lives in Issue. Retry
// policy belongs to the caller, which re-issues once attempts run out.
type ChallengeService struct{}

func NewChallengeService() *ChallengeService {
	return &ChallengeService{}
}

func shuffled(items []string) []string {
	out := make([]string, len(items))
	copy(out, items)
	rand.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out
}

// Issue draws a random option subset from the symbol pool, picks one as the
// answer and stamps the TTL window.
func (s *ChallengeService) Issue() *models.Challenge {
	pool := shuffled(challengeSymbolPool)
	answer := pool[0]
	options := shuffled(pool[:challengeOptionCount])
	now := time.Now().UTC()

	return &models.Challenge{
		Prompt:    fmt.Sprintf("Tap on %s to prove you are human.", answer),
		Answer:    answer,
		Options:   options,
		CreatedAt: now,
		ExpiresAt: now.Add(models.ChallengeTTL),
	}
}

// IsExpired treats a missing challenge as expired.
func (s *ChallengeService) IsExpired(challenge *models.Challenge) bool {
	if challenge == nil {
		return true
	}
	return time.Now().After(challenge.ExpiresAt)
}

// Verify checks the response against the stored answer; an expired or
// missing challenge never verifies, even with the right answer.
func (s *ChallengeService) Verify(challenge *models.Challenge, response string) bool {
	if challenge == nil || s.IsExpired(challenge) {
		return false
	}
	return challenge.Answer == response
}
