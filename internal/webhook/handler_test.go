package webhook

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/simplesurance/pushcord/internal/event"
	"github.com/simplesurance/pushcord/internal/signature"
	"github.com/simplesurance/pushcord/internal/webhook/mocks"
)

func newWebhookRequest(eventType string, body []byte, secret []byte) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-GitHub-Event", eventType)
	req.Header.Set("X-GitHub-Delivery", testDeliveryID)

	if secret != nil {
		req.Header.Set(signature.Header, signature.Sign(secret, body))
	}

	return req
}

func newTestHandler(t *testing.T) (*Handler, *mocks.MockProcessor) {
	t.Helper()

	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t)))

	mockctrl := gomock.NewController(t)
	processor := mocks.NewMockProcessor(mockctrl)

	return NewHandler(mustNewClassifier(t), processor), processor
}

func TestHandlerInvalidSignatureIsNotProcessed(t *testing.T) {
	push := mustReadFile(t, "testdata/push.json")

	tcs := []struct {
		name   string
		secret []byte
	}{
		{name: "unsigned"},
		{name: "wrong secret", secret: []byte("wrong")},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			// the processor has no expectations, a call fails the test
			h, _ := newTestHandler(t)

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, newWebhookRequest(EventTypePush, push, tc.secret))

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, respInvalidSignature, strings.TrimSpace(rec.Body.String()))
		})
	}
}

func TestHandlerProcessesAcceptedEvent(t *testing.T) {
	h, processor := newTestHandler(t)

	processor.EXPECT().
		Process(gomock.Any(), gomock.AssignableToTypeOf(&event.Push{})).
		DoAndReturn(func(_ context.Context, ev event.Event) error {
			assert.Equal(t, "octo-org/hello-world", ev.GetRepository().String())
			return nil
		}).
		Times(1)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, newWebhookRequest(EventTypePush, mustReadFile(t, "testdata/push.json"), testSecret))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, respProcessed, strings.TrimSpace(rec.Body.String()))
}

func TestHandlerProcessingFails(t *testing.T) {
	h, processor := newTestHandler(t)

	processor.EXPECT().
		Process(gomock.Any(), gomock.Any()).
		Return(errors.New("discord unavailable")).
		Times(1)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, newWebhookRequest(EventTypePush, mustReadFile(t, "testdata/push.json"), testSecret))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, respProcessingFailed, strings.TrimSpace(rec.Body.String()))
}

func TestHandlerRecoversPanic(t *testing.T) {
	h, processor := newTestHandler(t)

	processor.EXPECT().
		Process(gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, event.Event) error {
			panic("builder bug")
		}).
		Times(2)

	push := mustReadFile(t, "testdata/push.json")

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		require.NotPanics(t, func() {
			h.ServeHTTP(rec, newWebhookRequest(EventTypePush, push, testSecret))
		})

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, respProcessingFailed, strings.TrimSpace(rec.Body.String()))
	}
}

func TestHandlerIgnoredEventIsNotProcessed(t *testing.T) {
	h, _ := newTestHandler(t)

	tcs := []struct {
		name      string
		eventType string
		body      []byte
	}{
		{
			name:      "push without commits",
			eventType: EventTypePush,
			body:      []byte(emptyPushPayload),
		},
		{
			name:      "disabled event type",
			eventType: EventTypeIssues,
			body:      mustReadFile(t, "testdata/issue_opened.json"),
		},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, newWebhookRequest(tc.eventType, tc.body, testSecret))

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.True(t,
				strings.HasPrefix(rec.Body.String(), respEventIgnored+": "),
				"unexpected body: %q", rec.Body.String(),
			)
		})
	}
}

func TestHandlerInvalidRequests(t *testing.T) {
	h, _ := newTestHandler(t)

	t.Run("method not allowed", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/webhook", nil))

		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
		assert.Equal(t, http.MethodPost, rec.Header().Get("Allow"))
	})

	t.Run("malformed payload", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, newWebhookRequest(EventTypePush, []byte(`{"commits": 5}`), testSecret))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("payload too large", func(t *testing.T) {
		body := bytes.Repeat([]byte{' '}, MaxPayloadSize+1)

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, newWebhookRequest(EventTypePush, body, testSecret))

		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})
}

func TestNewEnvelope(t *testing.T) {
	body := mustReadFile(t, "testdata/push.json")
	req := newWebhookRequest(EventTypePush, body, testSecret)

	env, err := NewEnvelope(req)
	require.NoError(t, err)

	assert.Equal(t, testDeliveryID, env.DeliveryID)
	assert.Equal(t, EventTypePush, env.Type)
	assert.Equal(t, signature.Sign(testSecret, body), env.Signature)
	assert.Equal(t, body, env.Body)
}

func TestNewEnvelopeWithoutDeliveryID(t *testing.T) {
	req := newWebhookRequest(EventTypePush, []byte(`{}`), testSecret)
	req.Header.Del("X-GitHub-Delivery")

	env, err := NewEnvelope(req)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(env.DeliveryID, localDeliveryIDPrefix), env.DeliveryID)
	assert.Len(t, env.DeliveryID, len(localDeliveryIDPrefix)+36)
}
