package resilience

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCall_NilGuardCallsThrough(t *testing.T) {
	got, err := Call(context.Background(), nil, "finnhub", "quote", func(_ context.Context) (float64, error) {
		return 410.5, nil
	})
	require.NoError(t, err)
	assert.InDelta(t, 410.5, got, 0.0001)
}

func TestCall_OpensBreakerAfterRepeatedFailures(t *testing.T) {
	g := NewGuard(fastPolicy(2), BreakerConfig{FailureThreshold: 2, Cooldown: time.Minute})

	calls := 0
	fail := func(_ context.Context) (string, error) {
		calls++
		return "", errUpstream
	}

	for i := 0; i < 2; i++ {
		_, err := Call(context.Background(), g, "sec_edgar", "submissions", fail)
		require.Error(t, err)
	}
	assert.Equal(t, 4, calls, "two calls with two attempts each")

	_, err := Call(context.Background(), g, "sec_edgar", "submissions", fail)
	assert.True(t, errors.Is(err, ErrBreakerOpen))
	assert.Equal(t, 4, calls, "open breaker must not reach the provider")

	assert.Equal(t, BreakerOpen, g.Breakers().States()["sec_edgar"])
}

func TestCall_ProvidersAreIsolated(t *testing.T) {
	g := NewGuard(fastPolicy(1), BreakerConfig{FailureThreshold: 1, Cooldown: time.Minute})

	_, _ = Call(context.Background(), g, "rss", "feed", func(_ context.Context) (int, error) {
		return 0, errUpstream
	})

	v, err := Call(context.Background(), g, "finnhub", "quote", func(_ context.Context) (int, error) {
		return 7, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestNewGuardFromConfig_Defaults(t *testing.T) {
	g := NewGuardFromConfig(0, 0, 0, 0, -1, 0, 0)
	assert.Equal(t, 3, g.retry.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, g.retry.InitialBackoff)

	g = NewGuardFromConfig(5, 10, 100, 3, 0, 2, 5)
	assert.Equal(t, 5, g.retry.MaxAttempts)
	assert.Equal(t, 10*time.Millisecond, g.retry.InitialBackoff)
	assert.Equal(t, 100*time.Millisecond, g.retry.MaxBackoff)
	assert.Zero(t, g.retry.Jitter)
}

func TestStatusError(t *testing.T) {
	err := StatusError("finnhub", http.StatusTooManyRequests, []byte(`{"error":"API limit reached"}`))
	assert.True(t, IsTransient(err))
	assert.Contains(t, err.Error(), "unexpected status 429")

	var te *TransientError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, 429, te.StatusCode)

	err = StatusError("finnhub", http.StatusForbidden, []byte("You don't have access to this resource."))
	assert.False(t, IsTransient(err))
	assert.Contains(t, err.Error(), "403")
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("bad request"), false},
		{"transient wrapper", NewTransientError(errors.New("x"), 502), true},
		{"reset string", errors.New("read tcp: connection reset by peer"), true},
		{"timeout string", errors.New("dial tcp: i/o timeout"), true},
		{"deadline", context.DeadlineExceeded, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}
