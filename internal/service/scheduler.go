package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/chatimitate/feishu-chatimitate/internal/biz/domain"
)

// Maintainer is the engine surface driven by MaintenanceScheduler
type Maintainer interface {
	Sync(ctx context.Context)
	ClearupContext(ctx context.Context) (*domain.PruneResult, error)
	UpdateGlobalBlacklist(ctx context.Context)
}

// MaintenanceScheduler periodically persists the engine caches and prunes
// stale contexts once per calendar day
type MaintenanceScheduler struct {
	engine   Maintainer
	interval time.Duration
	log      *slog.Logger
	now      func() time.Time

	lastCleanupDay string

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewMaintenanceScheduler creates a new maintenance scheduler
func NewMaintenanceScheduler(engine Maintainer, interval time.Duration) *MaintenanceScheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	return &MaintenanceScheduler{
		engine:   engine,
		interval: interval,
		log:      slog.Default().With("component", "maintenance"),
		now:      time.Now,
	}
}

// Start loads the global blacklist and starts the maintenance loop
func (s *MaintenanceScheduler) Start(ctx context.Context) {
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.engine.UpdateGlobalBlacklist(s.ctx)

	s.wg.Add(1)
	go s.loop()

	s.log.Info("started", "interval", s.interval)
}

// Stop stops the loop and runs a final best-effort sync
func (s *MaintenanceScheduler) Stop() {
	s.stopOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
		s.wg.Wait()

		s.engine.Sync(context.Background())
		s.log.Info("stopped")
	})
}

func (s *MaintenanceScheduler) loop() {
	defer s.wg.Done()

	// Initial run
	s.runOnce(s.ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(s.ctx)
		}
	}
}

// runOnce syncs and, on the first run of a new day, clears up contexts
func (s *MaintenanceScheduler) runOnce(ctx context.Context) {
	s.engine.Sync(ctx)

	today := s.now().Format("20060102")
	if s.lastCleanupDay == today {
		return
	}
	res, err := s.engine.ClearupContext(ctx)
	if err != nil {
		s.log.Warn("clearup failed", "error", err)
		return
	}
	s.lastCleanupDay = today
	if res != nil {
		s.log.Info("cleared up contexts",
			"contexts_deleted", res.ContextsDeleted,
			"answers_deleted", res.AnswersDeleted,
			"contexts_cleared", res.ContextsCleared)
	}
}
