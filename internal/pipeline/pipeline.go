// Package pipeline turns accepted webhook events into Discord messages.
// Push events are enriched with commit details from the GitHub API, the
// notifications are built and delivered sequentially.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/simplesurance/pushcord/internal/discord"
	"github.com/simplesurance/pushcord/internal/event"
	"github.com/simplesurance/pushcord/internal/logfields"
	"github.com/simplesurance/pushcord/internal/notify"
)

//go:generate mockgen -source=pipeline.go -destination=mocks/pipeline.go -package=mocks

const loggerName = "pipeline"

const DefaultDeliveryInterval = time.Second

// Enricher retrieves supplementary information about commits.
type Enricher interface {
	CommitDetails(ctx context.Context, owner, repo, sha string) (*event.CommitDetails, error)
}

// Sender delivers a single message.
type Sender interface {
	Send(ctx context.Context, embed *discord.Embed) error
}

// Pipeline builds and delivers the notifications for events.
type Pipeline struct {
	builder          *notify.Builder
	sender           Sender
	enricher         Enricher
	enrichOpts       []EnrichOption
	deliveryInterval time.Duration
	logger           *zap.Logger
}

type Option func(*Pipeline)

// WithEnricher enables enriching push events with commit details.
func WithEnricher(enricher Enricher, opts ...EnrichOption) Option {
	return func(p *Pipeline) {
		p.enricher = enricher
		p.enrichOpts = opts
	}
}

// WithDeliveryInterval sets the min. duration between sending 2 messages
// of the same event.
func WithDeliveryInterval(d time.Duration) Option {
	return func(p *Pipeline) {
		p.deliveryInterval = d
	}
}

func New(builder *notify.Builder, sender Sender, opts ...Option) *Pipeline {
	p := Pipeline{
		builder:          builder,
		sender:           sender,
		deliveryInterval: DefaultDeliveryInterval,
		logger:           zap.L().Named(loggerName),
	}

	for _, opt := range opts {
		opt(&p)
	}

	return &p
}

// Process builds the notifications for ev and sends them in order.
// When sending a message fails, the remaining messages are still sent. The
// returned error contains all send errors.
func (p *Pipeline) Process(ctx context.Context, ev event.Event) error {
	logger := p.logger.With(ev.LogFields()...)

	var enr *notify.Enrichment

	if push, ok := ev.(*event.Push); ok && p.enricher != nil {
		enr = Enrich(ctx, p.enricher, &push.Repository, push.Commits, p.enrichOpts...)
	}

	embeds, err := p.builder.Build(ev, enr)
	if err != nil {
		return fmt.Errorf("building notification failed: %w", err)
	}

	return p.deliver(ctx, logger, embeds)
}

func (p *Pipeline) deliver(ctx context.Context, logger *zap.Logger, embeds []*discord.Embed) error {
	var errs []error

	pacer := newPacer(p.deliveryInterval, logger)

	for i, embed := range embeds {
		logger := logger.With(
			logfields.MessageIndex(i+1),
			logfields.MessageCount(len(embeds)),
		)

		if err := pacer.Wait(ctx); err != nil {
			logger.Info(
				"delivery cancelled",
				logfields.Event("delivery_cancelled"),
				zap.Error(err),
			)

			errs = append(errs, fmt.Errorf("message %d/%d not sent: %w", i+1, len(embeds), err))
			break
		}

		err := p.sender.Send(ctx, embed)
		pacer.Sent(err)
		if err != nil {
			metrics.MessagesDeliveredInc(resultLabelFailureVal)

			logger.Error(
				"sending message failed",
				logfields.Event("delivery_failed"),
				zap.Error(err),
			)

			errs = append(errs, fmt.Errorf("sending message %d/%d failed: %w", i+1, len(embeds), err))
			continue
		}

		metrics.MessagesDeliveredInc(resultLabelSuccessVal)

		logger.Debug(
			"message sent",
			logfields.Event("delivery_succeeded"),
		)
	}

	return errors.Join(errs...)
}
