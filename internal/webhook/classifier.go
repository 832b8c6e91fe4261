// Package webhook receives GitHub webhook deliveries, verifies and
// classifies them and passes accepted events to a Processor.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/go-github/v59/github"
	"github.com/itchyny/gojq"
	"go.uber.org/zap"

	"github.com/simplesurance/pushcord/internal/event"
	"github.com/simplesurance/pushcord/internal/logfields"
	"github.com/simplesurance/pushcord/internal/signature"
)

const loggerName = "webhook"

const (
	EventTypePush   = "push"
	EventTypeIssues = "issues"
)

const issueActionOpened = "opened"

var (
	ErrInvalidSignature = errors.New("invalid signature")
	ErrMalformedPayload = errors.New("malformed payload")
	ErrFilterQuery      = errors.New("filter query evaluation failed")
)

// Outcome is the result of classifying a webhook delivery.
type Outcome int

const (
	OutcomeUndefined Outcome = iota
	// Accepted deliveries are processed.
	Accepted
	// Ignored deliveries are valid but do not result in a notification.
	Ignored
	// Rejected deliveries are invalid.
	Rejected
)

func (o Outcome) String() string {
	switch o {
	case Accepted:
		return "accepted"
	case Ignored:
		return "ignored"
	case Rejected:
		return "rejected"
	default:
		return "undefined"
	}
}

// Result is the classification of a delivery.
type Result struct {
	Outcome Outcome
	// Event is set when Outcome is Accepted.
	Event event.Event
	// Reason describes why an event was ignored.
	Reason string
	// Err is set when Outcome is Rejected, it wraps ErrInvalidSignature,
	// ErrMalformedPayload or ErrFilterQuery.
	Err error
}

func accepted(ev event.Event) *Result {
	return &Result{Outcome: Accepted, Event: ev}
}

func ignored(reason string) *Result {
	return &Result{Outcome: Ignored, Reason: reason}
}

func rejected(err error) *Result {
	return &Result{Outcome: Rejected, Err: err}
}

// Classifier decides if a webhook delivery is processed.
type Classifier struct {
	secret      []byte
	eventTypes  map[string]struct{}
	filterQuery *gojq.Query
	logger      *zap.Logger
}

type ClassifierOption func(*Classifier) error

// WithEventTypes sets the webhook event types that are accepted.
// Supported are EventTypePush and EventTypeIssues, by default only push
// events are accepted.
func WithEventTypes(types ...string) ClassifierOption {
	return func(c *Classifier) error {
		c.eventTypes = make(map[string]struct{}, len(types))

		for _, t := range types {
			switch t {
			case EventTypePush, EventTypeIssues:
				c.eventTypes[t] = struct{}{}
			default:
				return fmt.Errorf("unsupported event type: %q", t)
			}
		}

		return nil
	}
}

// WithFilterQuery sets a jq query that is evaluated for the JSON payload of
// every delivery of an accepted type. It must evaluate to exactly one
// boolean, deliveries for that it returns false are ignored.
func WithFilterQuery(jqQuery string) ClassifierOption {
	return func(c *Classifier) error {
		if strings.TrimSpace(jqQuery) == "" {
			c.filterQuery = nil
			return nil
		}

		query, err := gojq.Parse(jqQuery)
		if err != nil {
			return fmt.Errorf("parsing filter query failed: %w", err)
		}

		c.filterQuery = query
		return nil
	}
}

// NewClassifier returns a classifier that verifies the signatures of
// deliveries with secret.
func NewClassifier(secret []byte, opts ...ClassifierOption) (*Classifier, error) {
	c := Classifier{
		secret:     secret,
		eventTypes: map[string]struct{}{EventTypePush: {}},
		logger:     zap.L().Named(loggerName),
	}

	for _, opt := range opts {
		if err := opt(&c); err != nil {
			return nil, err
		}
	}

	return &c, nil
}

// Classify verifies the signature of env, parses the payload and decides
// if it is processed. The signature is verified before anything else is
// evaluated.
func (c *Classifier) Classify(ctx context.Context, env *Envelope) *Result {
	if !signature.Verify(c.secret, env.Body, env.Signature) {
		return rejected(ErrInvalidSignature)
	}

	if _, ok := c.eventTypes[env.Type]; !ok {
		return ignored(fmt.Sprintf("event type %q is not enabled", env.Type))
	}

	payload, err := github.ParseWebHook(env.Type, env.Body)
	if err != nil {
		return rejected(fmt.Errorf("%w: %s", ErrMalformedPayload, err))
	}

	var ev event.Event

	switch v := payload.(type) {
	case *github.PushEvent:
		push, err := event.FromPushEvent(env.DeliveryID, v)
		if err != nil {
			return rejected(fmt.Errorf("%w: %s", ErrMalformedPayload, err))
		}

		if len(push.Commits) == 0 {
			return ignored("push contains no commits")
		}

		ev = push

	case *github.IssuesEvent:
		issue, err := event.FromIssuesEvent(env.DeliveryID, v)
		if err != nil {
			return rejected(fmt.Errorf("%w: %s", ErrMalformedPayload, err))
		}

		if issue.Action != issueActionOpened {
			return ignored(fmt.Sprintf("issue action %q is not supported", issue.Action))
		}

		ev = issue

	default:
		return ignored(fmt.Sprintf("event type %q is not supported", env.Type))
	}

	if c.filterQuery != nil {
		match, err := c.evalFilterQuery(ctx, env.Body)
		if err != nil {
			return rejected(fmt.Errorf("%w: %s", ErrFilterQuery, err))
		}

		if !match {
			return ignored("filter query evaluated to false")
		}
	}

	return accepted(ev)
}

func (c *Classifier) evalFilterQuery(ctx context.Context, payload []byte) (bool, error) {
	var evUn any

	if err := json.Unmarshal(payload, &evUn); err != nil {
		return false, fmt.Errorf("unmarshaling json failed: %w", err)
	}

	result, errs := goJQIterToSlice(c.filterQuery.RunWithContext(ctx, evUn))
	if len(errs) != 0 {
		return false, fmt.Errorf("json query returned errors, query: %q: %w", c.filterQuery.String(), errors.Join(errs...))
	}

	if len(result) != 1 {
		return false, fmt.Errorf("json query returned %d results, expected 1, query: %q", len(result), c.filterQuery.String())
	}

	val, ok := result[0].(bool)
	if !ok {
		return false, fmt.Errorf(
			"json query returned non-bool result: %+v (%T), query: %q",
			result[0], result[0], c.filterQuery.String(),
		)
	}

	c.logger.Debug(
		"filter query evaluated",
		logfields.Event("filter_query_evaluated"),
		zap.Bool("match", val),
	)

	return val, nil
}

func goJQIterToSlice(iter gojq.Iter) ([]any, []error) {
	var result []any
	var errs []error

	for {
		res, ok := iter.Next()
		if !ok {
			return result, errs
		}

		if err, isErr := res.(error); isErr {
			errs = append(errs, err)
			continue
		}

		result = append(result, res)
	}
}
