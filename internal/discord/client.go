package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/simplesurance/pushcord/internal/logfields"
	"github.com/simplesurance/pushcord/internal/notiferr"
)

const DefaultHTTPClientTimeout = 30 * time.Second

// DefaultAPIURL is the base URL of the Discord REST API used in bot mode.
const DefaultAPIURL = "https://discord.com/api/v10"

const loggerName = "discord_client"

// maxResponseBodySize limits how much of a response body is read, it is
// only used for error messages.
const maxResponseBodySize = 64 * 1024

// Client sends messages to a single Discord channel.
// It either posts to an incoming webhook URL or uses a bot token to post
// via the channel messages API.
type Client struct {
	url        string
	authHeader string
	client     *http.Client
	logger     *zap.Logger
}

type Option func(*Client)

// WithHTTPClient sets the http client that is used to send requests.
func WithHTTPClient(clt *http.Client) Option {
	return func(c *Client) {
		c.client = clt
	}
}

// NewWebhookClient returns a client that posts messages to an incoming
// webhook URL.
func NewWebhookClient(webhookURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(webhookURL)
	if err != nil {
		return nil, fmt.Errorf("parsing webhook url failed: %w", err)
	}

	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("webhook url %q is not absolute", webhookURL)
	}

	// with wait=true discord validates the message before responding,
	// otherwise errors are not reported
	q := u.Query()
	q.Set("wait", "true")
	u.RawQuery = q.Encode()

	return newClient(u.String(), "", opts...), nil
}

// NewBotClient returns a client that posts messages with a bot token to the
// channel with the given ID.
// If apiURL is empty DefaultAPIURL is used.
func NewBotClient(apiURL, token, channelID string, opts ...Option) (*Client, error) {
	if token == "" {
		return nil, errors.New("bot token is empty")
	}

	if channelID == "" {
		return nil, errors.New("channel id is empty")
	}

	if apiURL == "" {
		apiURL = DefaultAPIURL
	}

	endpoint, err := url.JoinPath(apiURL, "channels", channelID, "messages")
	if err != nil {
		return nil, fmt.Errorf("building channel messages url failed: %w", err)
	}

	return newClient(endpoint, "Bot "+token, opts...), nil
}

func newClient(endpoint, authHeader string, opts ...Option) *Client {
	c := Client{
		url:        endpoint,
		authHeader: authHeader,
		logger:     zap.L().Named(loggerName),
	}

	for _, o := range opts {
		o(&c)
	}

	if c.client == nil {
		c.client = &http.Client{
			Timeout: DefaultHTTPClientTimeout,
		}
	}

	return &c
}

// Send posts a message containing embed.
// It returns an ErrorHTTPRequest when discord responds with an unsuccessful
// status code. When the rate limit is exceeded or discord responds with a
// 5xx code, the error is wrapped in a notiferr.RetryableError.
func (c *Client) Send(ctx context.Context, embed *Embed) error {
	body, err := json.Marshal(&Message{Embeds: []*Embed{embed}})
	if err != nil {
		return fmt.Errorf("encoding message failed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")
	if c.authHeader != "" {
		req.Header.Set("Authorization", c.authHeader)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}

	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		c.logger.Warn(
			"reading http response body failed",
			logfields.Event("discord_reading_response_body_failed"),
			zap.Int("http_response_code", resp.StatusCode),
			zap.Error(err),
		)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		c.logger.Debug(
			"message sent",
			logfields.Event("discord_message_sent"),
			zap.Int("http_response_code", resp.StatusCode),
		)

		return nil
	}

	reqErr := &ErrorHTTPRequest{
		Body:   respBody,
		Status: resp.StatusCode,
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		retryIn := retryAfter(resp.Header, respBody)

		c.logger.Info(
			"rate limit exceeded",
			logfields.Event("discord_rate_limit_exceeded"),
			zap.Duration("retry_after", retryIn),
		)

		if retryIn <= 0 {
			return notiferr.NewRetryableAnytimeError(reqErr)
		}

		return notiferr.NewRetryableError(reqErr, time.Now().Add(retryIn))
	}

	if resp.StatusCode >= 500 {
		return notiferr.NewRetryableAnytimeError(reqErr)
	}

	return reqErr
}

type rateLimitResponse struct {
	RetryAfter float64 `json:"retry_after"`
	Global     bool    `json:"global"`
}

// retryAfter returns how long to wait after a 429 response.
// The JSON body contains the value with millisecond precision, the
// Retry-After header only whole seconds. 0 is returned if neither is set.
func retryAfter(header http.Header, body []byte) time.Duration {
	var rl rateLimitResponse
	if err := json.Unmarshal(body, &rl); err == nil && rl.RetryAfter > 0 {
		return time.Duration(rl.RetryAfter * float64(time.Second))
	}

	if secs, err := strconv.ParseFloat(header.Get("Retry-After"), 64); err == nil && secs > 0 {
		return time.Duration(secs * float64(time.Second))
	}

	return 0
}

func (c *Client) String() string {
	if c.authHeader != "" {
		return "discord bot: " + c.url
	}

	return "discord webhook"
}
