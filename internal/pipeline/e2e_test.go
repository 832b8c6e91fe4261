package pipeline

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/simplesurance/pushcord/internal/discord"
	"github.com/simplesurance/pushcord/internal/event"
	"github.com/simplesurance/pushcord/internal/notify"
	"github.com/simplesurance/pushcord/internal/pipeline/mocks"
	"github.com/simplesurance/pushcord/internal/signature"
	"github.com/simplesurance/pushcord/internal/webhook"
)

var e2eSecret = []byte("e2e-secret")

type discordServer struct {
	mu       sync.Mutex
	messages []*discord.Message
	srv      *httptest.Server
}

func newDiscordServer(t *testing.T) *discordServer {
	ds := discordServer{}

	ds.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var msg discord.Message

		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
			t.Errorf("decoding discord message failed: %s", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		ds.mu.Lock()
		ds.messages = append(ds.messages, &msg)
		ds.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": "1"}`))
	}))

	t.Cleanup(ds.srv.Close)

	return &ds
}

func (ds *discordServer) Messages() []*discord.Message {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	return append([]*discord.Message(nil), ds.messages...)
}

func newE2EHandler(t *testing.T, ds *discordServer, enricher Enricher) *webhook.Handler {
	t.Helper()

	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t)))

	sender, err := discord.NewWebhookClient(
		ds.srv.URL+"/api/webhooks/1/token",
		discord.WithHTTPClient(ds.srv.Client()),
	)
	require.NoError(t, err)

	var opts []Option
	opts = append(opts, WithDeliveryInterval(testDeliveryInterval))
	if enricher != nil {
		opts = append(opts, WithEnricher(enricher))
	}

	p := New(notify.NewBuilder(&notify.Config{}), sender, opts...)

	classifier, err := webhook.NewClassifier(e2eSecret)
	require.NoError(t, err)

	return webhook.NewHandler(classifier, p)
}

func newPushRequest(t *testing.T, secret []byte) *http.Request {
	t.Helper()

	body, err := os.ReadFile("../webhook/testdata/push.json")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	req.Header.Set("X-GitHub-Event", "push")
	req.Header.Set("X-GitHub-Delivery", "72d3162e-cc78-11e3-81ab-4c9367dc0958")
	req.Header.Set(signature.Header, signature.Sign(secret, body))

	return req
}

func TestE2EPushIsDeliveredToDiscord(t *testing.T) {
	ds := newDiscordServer(t)

	enricher := mocks.NewMockEnricher(gomock.NewController(t))
	enricher.EXPECT().
		CommitDetails(gomock.Any(), gomock.Eq("octo-org"), gomock.Eq("hello-world"), gomock.Any()).
		Return(&event.CommitDetails{Stats: &event.LineStats{Additions: 3, Deletions: 1, Total: 4}}, nil).
		Times(2)

	h := newE2EHandler(t, ds, enricher)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, newPushRequest(t, e2eSecret))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Webhook processed", strings.TrimSpace(rec.Body.String()))

	msgs := ds.Messages()
	require.Len(t, msgs, 1)
	require.Len(t, msgs[0].Embeds, 1)

	embed := msgs[0].Embeds[0]
	assert.Equal(t, "2 new commits to hello-world", embed.Title)

	var values []string
	for _, f := range embed.Fields {
		values = append(values, f.Name+"="+f.Value)
	}

	assert.Contains(t, values, "Line Changes=+6 -2 (8 lines)")
	assert.Contains(t, values, "Branch=main")
}

func TestE2EInvalidSignatureCausesNoOutboundCalls(t *testing.T) {
	ds := newDiscordServer(t)

	// no expectations, any github api call fails the test
	enricher := mocks.NewMockEnricher(gomock.NewController(t))
	h := newE2EHandler(t, ds, enricher)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, newPushRequest(t, []byte("wrong secret")))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, ds.Messages())
}
