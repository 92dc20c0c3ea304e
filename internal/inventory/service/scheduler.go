package service

import (
	"context"
	"time"

	"github.com/stockflow/inventory-backend/pkg/logger"
	"github.com/stockflow/inventory-backend/pkg/tenant"
)

// ExpirySweeper periodically moves expired AVAILABLE stock to EXPIRED in every
// country schema.
type ExpirySweeper struct {
	stock     *StockService
	countries []tenant.Country
	interval  time.Duration
	now       func() time.Time
	logger    *logger.Logger
	cancel    context.CancelFunc
}

// NewExpirySweeper creates a new sweeper. An interval of zero disables it.
func NewExpirySweeper(stock *StockService, interval time.Duration, log *logger.Logger) *ExpirySweeper {
	return &ExpirySweeper{
		stock:     stock,
		countries: tenant.All,
		interval:  interval,
		now:       time.Now,
		logger:    log.WithComponent("expiry-sweeper"),
	}
}

// Start starts the sweeper in a background goroutine.
// It sweeps once immediately, then on every tick.
func (s *ExpirySweeper) Start(ctx context.Context) {
	if s.interval <= 0 {
		s.logger.Info().Msg("expiry sweeper disabled")
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)

	go func() {
		s.logger.Info().Dur("interval", s.interval).Msg("expiry sweeper started")

		s.Sweep(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Info().Msg("expiry sweeper stopped")
				return
			case <-ticker.C:
				s.Sweep(ctx)
			}
		}
	}()
}

// Stop stops the sweeper goroutine
func (s *ExpirySweeper) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

// Sweep runs one pass over every country. A failing country is logged and the
// others still run.
func (s *ExpirySweeper) Sweep(ctx context.Context) int {
	start := time.Now()
	today := s.now().UTC()
	total := 0

	for _, country := range s.countries {
		if ctx.Err() != nil {
			return total
		}
		moved, err := s.stock.ExpireStock(tenant.WithCountry(ctx, country), today)
		if err != nil {
			s.logger.Error().Err(err).Str("country", country.String()).Msg("expiry sweep failed")
			continue
		}
		total += len(moved)
	}

	s.logger.Info().
		Dur("duration", time.Since(start)).
		Int("moved", total).
		Msg("expiry sweep completed")
	return total
}
