// services/scheduler.go
package services

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"github.com/selveresta/projectQuestBot/logger"
)

// StartStatsScheduler logs campaign totals on a fixed interval so operators
// can watch eligibility grow without querying the store by hand. Returns
// the scheduler so main can shut it down.
func StartStatsScheduler(participants *ParticipantService, interval time.Duration) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	sched.Start()

	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			all, err := participants.ListAll(ctx)
			if err != nil {
				logger.Error("stats job failed to list participants", zap.Error(err))
				return
			}
			eligible := 0
			for _, p := range all {
				if participants.IsEligible(p) {
					eligible++
				}
			}
			logger.Info("campaign stats",
				zap.Int("participants", len(all)),
				zap.Int("eligible", eligible))
		}),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, err
	}
	return sched, nil
}
