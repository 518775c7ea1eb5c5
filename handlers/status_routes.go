// handlers/status_routes.go
package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/selveresta/projectQuestBot/middleware"
	"github.com/selveresta/projectQuestBot/models"
	"github.com/selveresta/projectQuestBot/services"
)

// leaderboardRow is the public shape of one leaderboard entry; contact
// fields never leave the service.
type leaderboardRow struct {
	UserID    int64  `json:"user_id"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	Points    int64  `json:"points"`
	Eligible  bool   `json:"eligible"`
}

// SetupStatusRoutes exposes the campaign-ops surface: health, leaderboard,
// per-participant rank and aggregate stats. Everything except /health sits
// behind the ops token.
func SetupStatusRoutes(
	app *fiber.App,
	participantService *services.ParticipantService,
	rankService *services.RankService,
	winnerService *services.WinnerService,
) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	securedGroup := app.Group("/s", middleware.OpsAuthMiddleware())

	securedGroup.Get("/leaderboard", func(c *fiber.Ctx) error {
		limit := c.QueryInt("limit", 10)

		top, err := rankService.Top(c.Context(), limit)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to build leaderboard",
				"cause": err.Error(),
			})
		}

		rows := make([]leaderboardRow, 0, len(top))
		for _, p := range top {
			rows = append(rows, leaderboardRow{
				UserID:    p.UserID,
				Username:  p.Username,
				FirstName: p.FirstName,
				Points:    p.Points,
				Eligible:  participantService.IsEligible(p),
			})
		}
		return c.JSON(fiber.Map{"leaderboard": rows})
	})

	securedGroup.Get("/participants/:id/rank", func(c *fiber.Ctx) error {
		userID, err := strconv.ParseInt(c.Params("id"), 10, 64)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "participant id must be numeric",
			})
		}

		info, err := rankService.RankOf(c.Context(), userID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to compute rank",
				"cause": err.Error(),
			})
		}
		if info == nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "participant not found",
			})
		}
		return c.JSON(info)
	})

	securedGroup.Get("/stats", func(c *fiber.Ctx) error {
		all, err := participantService.ListAll(c.Context())
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to list participants",
				"cause": err.Error(),
			})
		}
		eligible := 0
		challengePassed := 0
		for _, p := range all {
			if p.ChallengePassed {
				challengePassed++
			}
			if participantService.IsEligible(p) {
				eligible++
			}
		}
		return c.JSON(fiber.Map{
			"participants":     len(all),
			"challenge_passed": challengePassed,
			"eligible":         eligible,
		})
	})

	securedGroup.Get("/winners", func(c *fiber.Ctx) error {
		winners, err := winnerService.ListWinners(c.Context())
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to list winners",
				"cause": err.Error(),
			})
		}
		if winners == nil {
			winners = []*models.WinnerRecord{}
		}
		return c.JSON(fiber.Map{"winners": winners})
	})
}
