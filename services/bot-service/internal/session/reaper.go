package session

import (
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/Rohianon/chatcommerce/pkg/logger"
	"github.com/Rohianon/chatcommerce/pkg/metrics"
)

const DefaultReapSchedule = "@every 1m"

// Reaper is implemented by stores that need explicit expiry sweeps.
type Reaper interface {
	Reap() int
}

// StartReaper runs store.Reap on schedule. Stop the returned cron on
// shutdown.
func StartReaper(schedule string, store Reaper) (*cron.Cron, error) {
	if schedule == "" {
		schedule = DefaultReapSchedule
	}

	cronLogger := cron.PrintfLogger(&logger.Logger)
	c := cron.New(cron.WithChain(cron.Recover(cronLogger)))

	if _, err := c.AddFunc(schedule, func() { reap(store) }); err != nil {
		return nil, fmt.Errorf("failed to schedule session reaper: %w", err)
	}

	c.Start()
	logger.Info().Str("schedule", schedule).Msg("Session reaper started")
	return c, nil
}

func reap(store Reaper) {
	n := store.Reap()
	if n == 0 {
		return
	}
	for i := 0; i < n; i++ {
		metrics.RecordSessionReset("reaped")
	}
	logger.Debug().Int("count", n).Msg("Reaped expired sessions")
}
