package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"igsaved/pkg/config"
)

func TestPacerBurst(t *testing.T) {
	p := NewPacer(60, 2, nil)

	for i := 0; i < 2; i++ {
		if !p.Allow() {
			t.Errorf("Expected visit %d to be allowed", i+1)
		}
	}
	if p.Allow() {
		t.Error("Expected burst to be exhausted")
	}
}

func TestPacerInterval(t *testing.T) {
	p := FromConfig(config.RateLimitConfig{ProfilesPerMinute: 30, BurstSize: 1}, nil)

	if got := p.Interval(); got != 2*time.Second {
		t.Errorf("Expected 2s interval, got %v", got)
	}
}

func TestPacerDefaults(t *testing.T) {
	p := NewPacer(0, 0, nil)

	if got := p.Interval(); got != 2*time.Second {
		t.Errorf("Expected default 2s interval, got %v", got)
	}
	if !p.Allow() {
		t.Error("Expected first visit to be allowed")
	}
}

func TestPacerWaitHonorsContext(t *testing.T) {
	p := NewPacer(1, 1, nil)
	if err := p.Wait(context.Background()); err != nil {
		t.Fatalf("First wait should not block: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := p.Wait(ctx)
	if err == nil {
		t.Fatal("Expected wait to fail before the next token")
	}
	if time.Since(start) > time.Second {
		t.Error("Wait should give up early when the deadline cannot be met")
	}
}

func TestUnlimited(t *testing.T) {
	var l Limiter = Unlimited{}
	if !l.Allow() {
		t.Error("Unlimited should always allow")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := l.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected cancellation, got %v", err)
	}
}
