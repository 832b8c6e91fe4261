package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff"
	"go.uber.org/zap"

	"github.com/simplesurance/pushcord/internal/logfields"
	"github.com/simplesurance/pushcord/internal/notiferr"
)

const (
	rateLimitBackoffInitialInterval = time.Second
	rateLimitBackoffMaxInterval     = 30 * time.Second
)

// pacer spaces consecutive sends to a destination.
// After a successful send the next one is delayed by the interval, after a
// send failed with a notiferr.RetryableError it is delayed until the time
// announced by the destination. If the destination did not announce a time,
// an exponential backoff is used.
type pacer struct {
	interval time.Duration
	bo       *backoff.ExponentialBackOff
	next     time.Time
	logger   *zap.Logger
}

func newPacer(interval time.Duration, logger *zap.Logger) *pacer {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = rateLimitBackoffInitialInterval
	bo.MaxInterval = rateLimitBackoffMaxInterval
	bo.MaxElapsedTime = 0
	bo.Reset()

	return &pacer{
		interval: interval,
		bo:       bo,
		logger:   logger,
	}
}

// Wait blocks until the next send is allowed or ctx is cancelled.
func (p *pacer) Wait(ctx context.Context) error {
	d := time.Until(p.next)
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Sent schedules the next send depending on the result of the last one.
func (p *pacer) Sent(err error) {
	now := time.Now()
	p.next = now.Add(p.interval)

	if err == nil {
		p.bo.Reset()
		return
	}

	var retryErr *notiferr.RetryableError
	if !errors.As(err, &retryErr) {
		return
	}

	var notBefore time.Time
	if retryErr.After.IsZero() {
		notBefore = now.Add(p.bo.NextBackOff())
	} else {
		notBefore = retryErr.After
	}

	if notBefore.After(p.next) {
		p.next = notBefore
	}

	p.logger.Info(
		"send failed with retryable error, delaying next send",
		logfields.Event("delivery_delayed"),
		zap.Duration("delay", p.next.Sub(now)),
	)
}
