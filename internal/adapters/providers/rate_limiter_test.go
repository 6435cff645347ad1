package providers

import (
	"context"
	"testing"
	"time"

	"hermes/pkg/errors"
)

func TestLocalLimiterBurstThenBlocks(t *testing.T) {
	// 60 req/min = 1 req/sec, burst 2
	limiter := NewLocalLimiter(ProviderNameOpenAI, 60, 2)

	if !limiter.Allow() {
		t.Error("first request should be allowed")
	}
	if !limiter.Allow() {
		t.Error("second request should be allowed")
	}
	if limiter.Allow() {
		t.Error("third request should be denied with the burst spent")
	}
}

func TestLocalLimiterWaitHonorsContext(t *testing.T) {
	limiter := NewLocalLimiter(ProviderNameOpenAI, 6, 1) // 0.1 req/sec

	_ = limiter.Allow()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := limiter.Wait(ctx)
	if err == nil {
		t.Fatal("expected error once the context deadline passes")
	}
}

func TestLocalLimiterLimit(t *testing.T) {
	limiter := NewLocalLimiter(ProviderNameGrok, 120, 10)

	if limit := limiter.Limit(); limit != 120 {
		t.Fatalf("expected 120 req/min, got %f", limit)
	}
}

func TestNoOpLimiterNeverBlocks(t *testing.T) {
	limiter := NewNoOpLimiter()
	ctx := context.Background()

	for i := 0; i < 1000; i++ {
		if err := limiter.Wait(ctx); err != nil {
			t.Fatalf("NoOpLimiter should never fail: %v", err)
		}
		if !limiter.Allow() {
			t.Fatal("NoOpLimiter should always allow")
		}
	}

	if limiter.Limit() != -1 {
		t.Errorf("expected limit -1, got %f", limiter.Limit())
	}
}

func TestFactoryCreatesNoOpWhenDisabled(t *testing.T) {
	factory := NewRateLimiterFactory(nil)

	limiter := factory.Create(ProviderNameOpenAI, RateLimitConfig{Enabled: false, ReqPerMinute: 100, Burst: 10})
	if _, ok := limiter.(*NoOpLimiter); !ok {
		t.Errorf("expected NoOpLimiter when disabled, got %T", limiter)
	}

	limiter = factory.Create(ProviderNameOpenAI, RateLimitConfig{Enabled: true, ReqPerMinute: 0})
	if _, ok := limiter.(*NoOpLimiter); !ok {
		t.Errorf("expected NoOpLimiter for zero rate, got %T", limiter)
	}
}

func TestFactoryCreatesLocalWithoutRedis(t *testing.T) {
	factory := NewRateLimiterFactory(nil)

	limiter := factory.Create(ProviderNameOpenAI, RateLimitConfig{Enabled: true, ReqPerMinute: 100, Burst: 10})
	if _, ok := limiter.(*LocalLimiter); !ok {
		t.Errorf("expected LocalLimiter without Redis, got %T", limiter)
	}
}

func TestDefaultRateLimitsShape(t *testing.T) {
	limits := DefaultRateLimits()

	openai, ok := limits[ProviderNameOpenAI]
	if !ok || !openai.Enabled || openai.ReqPerMinute != 500 {
		t.Fatalf("unexpected openai limits: %+v", openai)
	}

	ollama, ok := limits[ProviderNameOllama]
	if !ok {
		t.Fatal("ollama limit not found")
	}
	if ollama.Enabled {
		t.Error("local ollama should carry no rate limit")
	}

	anthropic := limits[ProviderNameAnthropic]
	if anthropic.ReqPerMinute != 50 {
		t.Errorf("expected anthropic 50 req/min, got %f", anthropic.ReqPerMinute)
	}
}

func TestRateLimitErrorUnwrap(t *testing.T) {
	inner := context.DeadlineExceeded
	err := &RateLimitError{Provider: ProviderNameGrok, Limit: 60, Err: inner}

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatal("expected RateLimitError to unwrap to its cause")
	}

	var rle *RateLimitError
	if !errors.As(err, &rle) {
		t.Fatal("expected errors.As to find RateLimitError")
	}
	if rle.Provider != ProviderNameGrok {
		t.Fatalf("unexpected provider: %s", rle.Provider)
	}
}
