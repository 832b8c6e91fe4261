package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/simplesurance/pushcord/internal/notiferr"
)

func TestPacerFirstSendIsNotDelayed(t *testing.T) {
	p := newPacer(time.Hour, zaptest.NewLogger(t))

	start := time.Now()
	require.NoError(t, p.Wait(context.Background()))
	assert.Less(t, time.Since(start), time.Second)
}

func TestPacerNextSendTime(t *testing.T) {
	const interval = time.Second

	retryAfter := time.Now().Add(time.Minute)

	tcs := []struct {
		name     string
		err      error
		minDelay time.Duration
		maxDelay time.Duration
	}{
		{
			name:     "success",
			minDelay: interval - 100*time.Millisecond,
			maxDelay: interval,
		},
		{
			name:     "non retryable error",
			err:      errors.New("400 bad request"),
			minDelay: interval - 100*time.Millisecond,
			maxDelay: interval,
		},
		{
			name:     "retryable error with retry time",
			err:      notiferr.NewRetryableError(errors.New("429"), retryAfter),
			minDelay: time.Until(retryAfter) - time.Second,
			maxDelay: time.Until(retryAfter),
		},
		{
			name:     "retryable error with retry time before interval",
			err:      notiferr.NewRetryableError(errors.New("429"), time.Now()),
			minDelay: interval - 100*time.Millisecond,
			maxDelay: interval,
		},
		{
			// the first backoff interval is randomized around 1s
			name:     "retryable error without retry time",
			err:      notiferr.NewRetryableAnytimeError(errors.New("503")),
			minDelay: 500*time.Millisecond - 100*time.Millisecond,
			maxDelay: 1500 * time.Millisecond,
		},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			p := newPacer(interval, zaptest.NewLogger(t))
			p.Sent(tc.err)

			delay := time.Until(p.next)
			assert.GreaterOrEqual(t, delay, tc.minDelay)
			assert.LessOrEqual(t, delay, tc.maxDelay)
		})
	}
}

func TestPacerBackoffGrowsAndResets(t *testing.T) {
	p := newPacer(0, zaptest.NewLogger(t))
	retryable := notiferr.NewRetryableAnytimeError(errors.New("503"))

	var last time.Duration
	for i := 0; i < 5; i++ {
		p.Sent(retryable)
		last = time.Until(p.next)
	}

	// 5th backoff interval is >= 1s * 1.5^4 * 0.5
	assert.Greater(t, last, 2*time.Second)
	assert.LessOrEqual(t, last, rateLimitBackoffMaxInterval)

	p.Sent(nil)
	p.Sent(retryable)
	assert.LessOrEqual(t, time.Until(p.next), 1500*time.Millisecond)
}

func TestPacerWaitIsCancelable(t *testing.T) {
	p := newPacer(time.Hour, zaptest.NewLogger(t))
	p.Sent(nil)

	ctx, cancelFn := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancelFn()

	start := time.Now()
	err := p.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Minute)
}
