package webhook

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/simplesurance/pushcord/internal/event"
	"github.com/simplesurance/pushcord/internal/logfields"
)

//go:generate mockgen -source=handler.go -destination=mocks/processor.go -package=mocks

// Processor creates and delivers the notifications for an accepted event.
type Processor interface {
	Process(ctx context.Context, ev event.Event) error
}

// response bodies
const (
	respInvalidSignature = "Invalid signature"
	respEventIgnored     = "Event ignored"
	respProcessed        = "Webhook processed"
	respProcessingFailed = "Error processing webhook"
)

// Handler is the http handler for GitHub webhook deliveries.
// Accepted events are processed synchronously, the response is sent after
// all notifications were delivered.
type Handler struct {
	classifier *Classifier
	processor  Processor
	logger     *zap.Logger
}

func NewHandler(classifier *Classifier, processor Processor) *Handler {
	return &Handler{
		classifier: classifier,
		processor:  processor,
		logger:     zap.L().Named(loggerName),
	}
}

func (h *Handler) ServeHTTP(resp http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		resp.Header().Set("Allow", http.MethodPost)
		http.Error(resp, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	env, err := NewEnvelope(req)
	if err != nil {
		h.logger.Info(
			"received invalid http request, reading body failed",
			logfields.Event("github_http_request_reading_failed"),
			zap.Error(err),
		)

		metrics.RequestsInc(req.Header.Get("X-GitHub-Event"), outcomeLabelInvalidRequestVal)

		if errors.Is(err, ErrPayloadTooLarge) {
			http.Error(resp, err.Error(), http.StatusRequestEntityTooLarge)
			return
		}

		http.Error(resp, err.Error(), http.StatusBadRequest)
		return
	}

	logger := h.logger.With(env.LogFields()...)

	logger.Debug(
		"received http request",
		logfields.Event("github_event_received"),
		zap.Int("http_body_size", len(env.Body)),
	)

	result := h.classifier.Classify(req.Context(), env)

	switch result.Outcome {
	case Rejected:
		metrics.RequestsInc(env.Type, Rejected.String())

		if errors.Is(result.Err, ErrInvalidSignature) {
			logger.Info(
				"received invalid http request, signature verification failed",
				logfields.Event("github_http_request_signature_invalid"),
			)
			http.Error(resp, respInvalidSignature, http.StatusUnauthorized)
			return
		}

		logger.Info(
			"received invalid http request, payload rejected",
			logfields.Event("github_http_request_rejected"),
			zap.Error(result.Err),
		)
		http.Error(resp, result.Err.Error(), http.StatusBadRequest)
		return

	case Ignored:
		metrics.RequestsInc(env.Type, Ignored.String())

		logger.Info(
			"ignoring event",
			logfields.Event("github_event_ignored"),
			zap.String("reason", result.Reason),
		)

		resp.WriteHeader(http.StatusOK)
		fmt.Fprintf(resp, "%s: %s\n", respEventIgnored, result.Reason)
		return

	case Accepted:
		// the event fields contain the delivery id
		logger = h.logger.With(append(
			[]zap.Field{logfields.EventProvider("github"), logfields.WebhookType(env.Type)},
			result.Event.LogFields()...,
		)...)

		if err := h.process(req.Context(), logger, result.Event); err != nil {
			metrics.RequestsInc(env.Type, outcomeLabelFailedVal)

			logger.Warn(
				"processing event failed",
				logfields.Event("github_event_processing_failed"),
				zap.Error(err),
			)

			http.Error(resp, respProcessingFailed, http.StatusInternalServerError)
			return
		}

		metrics.RequestsInc(env.Type, outcomeLabelProcessedVal)

		logger.Info(
			"event processed",
			logfields.Event("github_event_processed"),
		)

		resp.WriteHeader(http.StatusOK)
		fmt.Fprintln(resp, respProcessed)
		return

	default:
		logger.DPanic(
			"classifier returned undefined outcome",
			logfields.Event("github_event_classification_undefined"),
			zap.Stringer("outcome", result.Outcome),
		)

		http.Error(resp, respProcessingFailed, http.StatusInternalServerError)
	}
}

// process runs the Processor and converts panics to errors.
func (h *Handler) process(ctx context.Context, logger *zap.Logger, ev event.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error(
				"panic caught while processing event",
				logfields.Event("github_event_processing_panicked"),
				zap.String("panic", fmt.Sprintf("%v", r)),
				zap.StackSkip("stacktrace", 1),
			)

			err = fmt.Errorf("processing panicked: %v", r)
		}
	}()

	return h.processor.Process(ctx, ev)
}
