// handlers/participant_routes.go
package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/selveresta/projectQuestBot/middleware"
	"github.com/selveresta/projectQuestBot/models"
	"github.com/selveresta/projectQuestBot/services"
)

func parseParticipantID(c *fiber.Ctx) (int64, error) {
	return strconv.ParseInt(c.Params("id"), 10, 64)
}

// SetupParticipantRoutes exposes the ledger operations the chat frontend
// drives: registration, challenge flow, quest completion, contact updates
// and the two-phase follow verification.
func SetupParticipantRoutes(
	app *fiber.App,
	participantService *services.ParticipantService,
	challengeService *services.ChallengeService,
	followVerifier *services.FollowVerifier,
	winnerService *services.WinnerService,
	challengeRetries int,
) {
	securedGroup := app.Group("/s", middleware.OpsAuthMiddleware())

	securedGroup.Put("/participants/:id", func(c *fiber.Ctx) error {
		userID, err := parseParticipantID(c)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "participant id must be numeric"})
		}
		var body struct {
			Username   string `json:"username"`
			FirstName  string `json:"first_name"`
			LastName   string `json:"last_name"`
			ReferredBy int64  `json:"referred_by"`
		}
		if err := c.BodyParser(&body); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
		}
		participant, err := participantService.GetOrCreate(c.Context(), userID, models.ParticipantAttrs{
			Username:   body.Username,
			FirstName:  body.FirstName,
			LastName:   body.LastName,
			ReferredBy: body.ReferredBy,
		})
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load participant", "cause": err.Error()})
		}
		return c.JSON(participant)
	})

	securedGroup.Get("/participants/:id", func(c *fiber.Ctx) error {
		userID, err := parseParticipantID(c)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "participant id must be numeric"})
		}
		participant, found, err := participantService.Get(c.Context(), userID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load participant", "cause": err.Error()})
		}
		if !found {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "participant not found"})
		}
		return c.JSON(fiber.Map{
			"participant": participant,
			"eligible":    participantService.IsEligible(participant),
		})
	})

	// Challenge flow: issue stores a fresh challenge; answer verifies it,
	// re-issuing automatically once the retries run out.
	securedGroup.Post("/participants/:id/challenge", func(c *fiber.Ctx) error {
		userID, err := parseParticipantID(c)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "participant id must be numeric"})
		}
		challenge := challengeService.Issue()
		if _, err := participantService.SetChallenge(c.Context(), userID, challenge); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to store challenge", "cause": err.Error()})
		}
		// The answer stays server-side.
		return c.JSON(fiber.Map{
			"prompt":     challenge.Prompt,
			"options":    challenge.Options,
			"expires_at": challenge.ExpiresAt,
		})
	})

	securedGroup.Post("/participants/:id/challenge/answer", func(c *fiber.Ctx) error {
		userID, err := parseParticipantID(c)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "participant id must be numeric"})
		}
		var body struct {
			Answer string `json:"answer"`
		}
		if err := c.BodyParser(&body); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
		}

		participant, err := participantService.GetOrCreate(c.Context(), userID, models.ParticipantAttrs{})
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load participant", "cause": err.Error()})
		}
		if participant.ChallengePassed {
			return c.JSON(fiber.Map{"passed": true})
		}

		if challengeService.Verify(participant.PendingChallenge, body.Answer) {
			if _, err := participantService.MarkChallengePassed(c.Context(), userID); err != nil {
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to record pass", "cause": err.Error()})
			}
			return c.JSON(fiber.Map{"passed": true})
		}

		updated, err := participantService.IncrementChallengeAttempts(c.Context(), userID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to record attempt", "cause": err.Error()})
		}
		expired := challengeService.IsExpired(participant.PendingChallenge)
		reissued := false
		if expired || updated.ChallengeAttempts >= challengeRetries {
			challenge := challengeService.Issue()
			if _, err := participantService.SetChallenge(c.Context(), userID, challenge); err != nil {
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to reissue challenge", "cause": err.Error()})
			}
			reissued = true
		}
		return c.JSON(fiber.Map{"passed": false, "expired": expired, "reissued": reissued})
	})

	securedGroup.Post("/participants/:id/quests/:questId/complete", func(c *fiber.Ctx) error {
		userID, err := parseParticipantID(c)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "participant id must be numeric"})
		}
		var body struct {
			Metadata string `json:"metadata"`
		}
		if err := c.BodyParser(&body); err != nil && len(c.Body()) > 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
		}
		participant, rewardedReferrer, err := participantService.CompleteQuest(c.Context(), userID, c.Params("questId"), body.Metadata)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to complete quest", "cause": err.Error()})
		}
		return c.JSON(fiber.Map{
			"participant":          participant,
			"eligible":             participantService.IsEligible(participant),
			"rewarded_referrer_id": rewardedReferrer,
		})
	})

	securedGroup.Post("/participants/:id/contact", func(c *fiber.Ctx) error {
		userID, err := parseParticipantID(c)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "participant id must be numeric"})
		}
		var body struct {
			Email               *string `json:"email"`
			Wallet              *string `json:"wallet"`
			SolanaWallet        *string `json:"solana_wallet"`
			XProfileURL         *string `json:"x_profile_url"`
			InstagramProfileURL *string `json:"instagram_profile_url"`
			DiscordUserID       *string `json:"discord_user_id"`
		}
		if err := c.BodyParser(&body); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
		}
		participant, err := participantService.UpdateContact(c.Context(), userID, models.ContactPatch{
			Email:               body.Email,
			Wallet:              body.Wallet,
			SolanaWallet:        body.SolanaWallet,
			XProfileURL:         body.XProfileURL,
			InstagramProfileURL: body.InstagramProfileURL,
			DiscordUserID:       body.DiscordUserID,
		})
		if err != nil {
			if dup, ok := services.IsDuplicateContact(err); ok {
				return c.Status(fiber.StatusConflict).JSON(fiber.Map{
					"error":               "duplicate contact",
					"field":               dup.Field,
					"value":               dup.Value,
					"conflicting_user_id": dup.ConflictingUserID,
				})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to update contact", "cause": err.Error()})
		}
		return c.JSON(participant)
	})

	securedGroup.Post("/participants/:id/quests/:questId/follow/baseline", func(c *fiber.Ctx) error {
		userID, err := parseParticipantID(c)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "participant id must be numeric"})
		}
		var body struct {
			UserURL   string `json:"user_url"`
			TargetURL string `json:"target_url"`
		}
		if err := c.BodyParser(&body); err != nil || body.UserURL == "" || body.TargetURL == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "user_url and target_url are required"})
		}
		state, err := followVerifier.EnsureBaseline(c.Context(), userID, c.Params("questId"), body.UserURL, body.TargetURL)
		if err == services.ErrTransientFetch {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": err.Error()})
		}
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to capture baseline", "cause": err.Error()})
		}
		switch state {
		case services.BaselineCaptured:
			return c.JSON(fiber.Map{"state": "captured"})
		case services.BaselineReady:
			return c.JSON(fiber.Map{"state": "ready"})
		default:
			return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"state": "pending"})
		}
	})

	securedGroup.Post("/participants/:id/quests/:questId/follow/verify", func(c *fiber.Ctx) error {
		userID, err := parseParticipantID(c)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "participant id must be numeric"})
		}
		var body struct {
			UserURL   string `json:"user_url"`
			TargetURL string `json:"target_url"`
		}
		if err := c.BodyParser(&body); err != nil || body.UserURL == "" || body.TargetURL == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "user_url and target_url are required"})
		}
		outcome, err := followVerifier.VerifyFollow(c.Context(), userID, c.Params("questId"), body.UserURL, body.TargetURL)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "verification error", "cause": err.Error()})
		}
		return c.JSON(fiber.Map{
			"verified":             outcome.Verified,
			"reason":               outcome.Reason,
			"needs_baseline":       outcome.NeedsBaseline,
			"rewarded_referrer_id": outcome.RewardedReferrerID,
		})
	})

	securedGroup.Post("/winners/:id/confirm", func(c *fiber.Ctx) error {
		userID, err := parseParticipantID(c)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "participant id must be numeric"})
		}
		var body struct {
			Wallet string `json:"wallet"`
		}
		if err := c.BodyParser(&body); err != nil || body.Wallet == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "wallet is required"})
		}
		record, err := winnerService.ConfirmWinner(c.Context(), userID, body.Wallet)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to confirm winner", "cause": err.Error()})
		}
		return c.JSON(record)
	})
}
