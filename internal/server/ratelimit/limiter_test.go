package ratelimit

import (
	"net/http/httptest"
	"testing"
	"time"
)

func TestLimiterAllow(t *testing.T) {
	t.Run("WithinBurst", func(t *testing.T) {
		l := NewLimiter(10, time.Minute, 3)
		defer l.Close()
		for i := range 3 {
			if res := l.Allow("a"); !res.Allowed {
				t.Fatalf("request %d denied within burst", i)
			}
		}
	})
	t.Run("ExhaustedDenies", func(t *testing.T) {
		l := NewLimiter(1, time.Hour, 2)
		defer l.Close()
		l.Allow("a")
		l.Allow("a")
		res := l.Allow("a")
		if res.Allowed {
			t.Fatal("request allowed past burst")
		}
		if res.RetryAfter <= 0 {
			t.Fatalf("RetryAfter = %v, want positive", res.RetryAfter)
		}
	})
	t.Run("KeysAreIndependent", func(t *testing.T) {
		l := NewLimiter(1, time.Hour, 1)
		defer l.Close()
		l.Allow("a")
		if res := l.Allow("a"); res.Allowed {
			t.Fatal("second request for a allowed")
		}
		if res := l.Allow("b"); !res.Allowed {
			t.Fatal("first request for b denied")
		}
	})
}

func TestResponseWriterInjectsHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	w := NewResponseWriter(rec, Result{
		Allowed:    false,
		Limit:      30,
		Remaining:  0,
		ResetAt:    time.Now().Add(time.Minute),
		RetryAfter: 2 * time.Second,
	})
	w.WriteHeader(429)
	if got := rec.Header().Get("X-RateLimit-Limit"); got != "30" {
		t.Fatalf("X-RateLimit-Limit = %q", got)
	}
	if got := rec.Header().Get("Retry-After"); got != "2" {
		t.Fatalf("Retry-After = %q", got)
	}
}
