package webhook

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/google/go-github/v59/github"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/simplesurance/pushcord/internal/logfields"
	"github.com/simplesurance/pushcord/internal/signature"
)

// MaxPayloadSize is the max. size of a webhook request body that is
// accepted. GitHub caps payloads at 25MiB.
const MaxPayloadSize = 25 << 20

const localDeliveryIDPrefix = "local-"

var ErrPayloadTooLarge = errors.New("payload exceeds max. size")

// Envelope is an inbound webhook delivery.
type Envelope struct {
	// DeliveryID is the unique ID GitHub assigned to the delivery. When
	// the request has no delivery header, a random ID with the prefix
	// "local-" is generated.
	DeliveryID string
	// Type is the value of the X-GitHub-Event header.
	Type string
	// Signature is the value of the X-Hub-Signature-256 header.
	Signature string
	// Body is the unmodified request body, the signature is calculated
	// over it.
	Body []byte
}

// NewEnvelope reads the webhook headers and the body of req.
func NewEnvelope(req *http.Request) (*Envelope, error) {
	body, err := io.ReadAll(io.LimitReader(req.Body, MaxPayloadSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading request body failed: %w", err)
	}

	if len(body) > MaxPayloadSize {
		return nil, ErrPayloadTooLarge
	}

	deliveryID := github.DeliveryID(req)
	if deliveryID == "" {
		deliveryID = localDeliveryIDPrefix + uuid.NewString()
	}

	return &Envelope{
		DeliveryID: deliveryID,
		Type:       github.WebHookType(req),
		Signature:  req.Header.Get(signature.Header),
		Body:       body,
	}, nil
}

func (e *Envelope) LogFields() []zap.Field {
	return []zap.Field{
		logfields.EventProvider("github"),
		logfields.DeliveryID(e.DeliveryID),
		logfields.WebhookType(e.Type),
	}
}
