package sweeper

import (
	"context"
	"time"

	"github.com/fekuna/omnipos-stock-service/internal/inventory"
	"github.com/fekuna/omnipos-stock-service/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultLockKey = "inventory:sweeper:lock"

// Locker is satisfied by cache.RedisClient.
type Locker interface {
	AcquireLock(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key, value string) error
}

type Config struct {
	Interval  time.Duration
	BatchSize int
	// ReconcileEvery runs the conservation check every N sweeps; 0 disables it.
	ReconcileEvery int
	LockKey        string
}

// Sweeper periodically expires stale cart reservations. With a Locker only
// one replica sweeps per tick.
type Sweeper struct {
	uc       inventory.UseCase
	locker   Locker
	cfg      Config
	holderID string
	ticks    int
	now      func() time.Time
	logger   logger.ZapLogger
}

func New(uc inventory.UseCase, locker Locker, cfg Config, log logger.ZapLogger) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.LockKey == "" {
		cfg.LockKey = defaultLockKey
	}
	return &Sweeper{
		uc:       uc,
		locker:   locker,
		cfg:      cfg,
		holderID: uuid.New().String(),
		now:      func() time.Time { return time.Now().UTC() },
		logger:   log,
	}
}

func (s *Sweeper) Start(ctx context.Context) {
	s.logger.Info("Starting reservation sweeper", zap.Duration("interval", s.cfg.Interval))
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Stopping reservation sweeper")
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("Reservation sweep failed", zap.Error(err))
			}
		}
	}
}

// RunOnce performs a single sweep. It returns nil without doing anything when
// another replica holds the lock.
func (s *Sweeper) RunOnce(ctx context.Context) error {
	if s.locker != nil {
		// the lock outlives one interval at most
		ok, err := s.locker.AcquireLock(ctx, s.cfg.LockKey, s.holderID, s.cfg.Interval)
		if err != nil {
			return err
		}
		if !ok {
			s.logger.Debug("sweep skipped, lock held elsewhere")
			return nil
		}
		defer func() {
			if err := s.locker.ReleaseLock(context.WithoutCancel(ctx), s.cfg.LockKey, s.holderID); err != nil {
				s.logger.Warn("failed to release sweeper lock", zap.Error(err))
			}
		}()
	}

	result, err := s.uc.ExpireStaleReservations(ctx, s.now(), s.cfg.BatchSize)
	if err != nil {
		return err
	}
	s.logger.Debug("sweep done",
		zap.Int("expired", len(result.Expired)),
		zap.Int("overdue", len(result.Overdue)),
	)

	s.ticks++
	if s.cfg.ReconcileEvery > 0 && s.ticks%s.cfg.ReconcileEvery == 0 {
		// mismatches are logged by the use case
		if _, err := s.uc.ReconcileReservations(ctx); err != nil {
			return err
		}
	}
	return nil
}
