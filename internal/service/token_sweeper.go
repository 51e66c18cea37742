package service

import (
    "context"
    "time"

    "github.com/robfig/cron/v3"
    "go.uber.org/zap"
)

// SweepGrace is how long expired or revoked refresh tokens are kept before
// the sweeper deletes them.
const SweepGrace = 24 * time.Hour

// tokenPurger is the part of the token repository the sweeper needs.
type tokenPurger interface {
    PurgeStale(ctx context.Context, cutoff time.Time) (int64, error)
}

// TokenSweeper periodically deletes stale refresh tokens on a cron
// schedule evaluated in UTC.
type TokenSweeper struct {
    tokens tokenPurger
    cron   *cron.Cron
    log    *zap.SugaredLogger
    now    func() time.Time
}

// NewTokenSweeper schedules Sweep according to spec (standard cron syntax
// or descriptors such as "@hourly").
func NewTokenSweeper(tokens tokenPurger, spec string, log *zap.SugaredLogger) (*TokenSweeper, error) {
    s := &TokenSweeper{
        tokens: tokens,
        cron:   cron.New(cron.WithLocation(time.UTC)),
        log:    log,
        now:    func() time.Time { return time.Now().UTC() },
    }
    if _, err := s.cron.AddFunc(spec, func() { s.Sweep(context.Background()) }); err != nil {
        return nil, err
    }
    return s, nil
}

// Start runs the scheduler in its own goroutine.
func (s *TokenSweeper) Start() { s.cron.Start() }

// Stop halts the scheduler and waits for a running sweep to finish.
func (s *TokenSweeper) Stop() { <-s.cron.Stop().Done() }

// Sweep deletes tokens that expired or were revoked more than SweepGrace
// ago and returns how many were removed.
func (s *TokenSweeper) Sweep(ctx context.Context) int64 {
    ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
    defer cancel()
    n, err := s.tokens.PurgeStale(ctx, s.now().Add(-SweepGrace))
    if err != nil {
        s.log.Errorw("token sweep failed", "error", err)
        return 0
    }
    if n > 0 {
        s.log.Infow("token sweep removed stale refresh tokens", "count", n)
    }
    return n
}
