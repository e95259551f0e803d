package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chrissnell/storemonitor/internal/types"
	"go.uber.org/zap"
)

// Pinger is implemented by backends that can check their connection
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewInterval builds a BusinessHoursInterval from its stored string form
func NewInterval(storeID string, day int, start, end string) (types.BusinessHoursInterval, error) {
	s, err := types.ParseLocalClock(start)
	if err != nil {
		return types.BusinessHoursInterval{}, fmt.Errorf("store %s day %d: %w", storeID, day, err)
	}
	e, err := types.ParseLocalClock(end)
	if err != nil {
		return types.BusinessHoursInterval{}, fmt.Errorf("store %s day %d: %w", storeID, day, err)
	}

	return types.BusinessHoursInterval{StoreID: storeID, DayOfWeek: day, Start: s, End: e}, nil
}

// StartHealthMonitor pings a backend on an interval and records the outcome in hm
// until ctx is cancelled.
func StartHealthMonitor(ctx context.Context, wg *sync.WaitGroup, backend string, p Pinger, hm *HealthManager, interval time.Duration, logger *zap.SugaredLogger) {
	check := func() {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		health := Health{LastCheck: time.Now(), Status: StatusHealthy}
		if err := p.Ping(pingCtx); err != nil {
			health.Status = StatusUnhealthy
			health.Error = err.Error()
			logger.Warnf("%s health check failed: %v", backend, err)
		}
		hm.UpdateHealth(backend, health)
	}

	check()

	wg.Add(1)
	go func() {
		defer wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				check()
			case <-ctx.Done():
				logger.Infof("stopping %s health monitor", backend)
				return
			}
		}
	}()
}
