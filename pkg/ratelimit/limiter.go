package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"igsaved/pkg/config"
	"igsaved/pkg/logger"
)

// Limiter paces page visits
type Limiter interface {
	// Allow reports whether a visit may happen now, consuming a token if so
	Allow() bool
	// Wait blocks until a visit may happen or ctx is done
	Wait(ctx context.Context) error
}

// Pacer spaces profile visits evenly over time. One Pacer is shared by
// every run in the process, so concurrent runs together stay under the
// configured rate.
type Pacer struct {
	limiter *rate.Limiter
	logger  logger.Logger
}

// NewPacer allows perMinute visits per minute with bursts of burst
func NewPacer(perMinute, burst int, log logger.Logger) *Pacer {
	if perMinute <= 0 {
		perMinute = 30
	}
	if burst <= 0 {
		burst = 1
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Pacer{
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), burst),
		logger:  log,
	}
}

// FromConfig builds a Pacer from the rate limit section
func FromConfig(cfg config.RateLimitConfig, log logger.Logger) *Pacer {
	return NewPacer(cfg.ProfilesPerMinute, cfg.BurstSize, log)
}

func (p *Pacer) Allow() bool {
	return p.limiter.Allow()
}

func (p *Pacer) Wait(ctx context.Context) error {
	start := time.Now()
	if err := p.limiter.Wait(ctx); err != nil {
		p.logger.WarnWithFields("Pacer wait aborted", map[string]interface{}{"error": err})
		return err
	}
	if waited := time.Since(start); waited > 100*time.Millisecond {
		p.logger.DebugWithFields("Paced page visit", map[string]interface{}{"waited": waited})
	}
	return nil
}

// Interval returns the steady-state spacing between visits
func (p *Pacer) Interval() time.Duration {
	return time.Duration(float64(time.Second) / float64(p.limiter.Limit()))
}

// Unlimited never waits
type Unlimited struct{}

func (Unlimited) Allow() bool { return true }
func (Unlimited) Wait(ctx context.Context) error { return ctx.Err() }

var (
	_ Limiter = (*Pacer)(nil)
	_ Limiter = Unlimited{}
)
