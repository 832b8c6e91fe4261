// Package cfg loads the pushcord configuration from a TOML file and the
// environment.
package cfg

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml"

	"github.com/simplesurance/pushcord/internal/maputils"
)

const (
	StatsAPIREST    = "rest"
	StatsAPIGraphQL = "graphql"
)

const maxColor = 0xFFFFFF

type Config struct {
	HTTPListenAddr            string `toml:"http_server_listen_addr" default:":3000"`
	HTTPSListenAddr           string `toml:"https_server_listen_addr"`
	HTTPSCertFile             string `toml:"https_ssl_cert_file"`
	HTTPSKeyFile              string `toml:"https_ssl_key_file"`
	HTTPGithubWebhookEndpoint string `toml:"github_webhook_endpoint" default:"/webhook"`
	HTTPMetricsEndpoint       string `toml:"metrics_endpoint" default:"/metrics"`

	GithubWebHookSecret string `toml:"github_webhook_secret"`
	GithubAPIToken      string `toml:"github_api_token"`
	GithubAPIURL        string `toml:"github_api_url"`
	GithubStatsAPI      string `toml:"github_stats_api" default:"rest"`

	EnrichCommits         bool   `toml:"enrich_commits" default:"true"`
	EnrichmentTimeoutStr  string `toml:"enrichment_timeout" default:"10s"`
	EnrichmentConcurrency int    `toml:"enrichment_concurrency" default:"4"`

	DiscordWebhookURL   string `toml:"discord_webhook_url"`
	DiscordBotToken     string `toml:"discord_bot_token"`
	DiscordChannelID    string `toml:"discord_channel_id"`
	DiscordAPIURL       string `toml:"discord_api_url" default:"https://discord.com/api/v10"`
	DeliveryIntervalStr string `toml:"delivery_interval" default:"1s"`

	PublicBaseURL   string         `toml:"public_base_url"`
	MessageTitle    string         `toml:"message_title"`
	MessageColorStr string         `toml:"message_color" default:"0x0099FF"`
	EventTypes      []string       `toml:"event_types"`
	FilterQuery     string         `toml:"filter_query" default:"true"`
	Languages       map[string]any `toml:"languages"`

	LogFormat  string `toml:"log_format" default:"logfmt"`
	LogTimeKey string `toml:"log_time_key" default:"time"`
	LogLevel   string `toml:"log_level" default:"info"`

	// The following fields are set by Validate.
	EnrichmentTimeout time.Duration     `toml:"-"`
	DeliveryInterval  time.Duration     `toml:"-"`
	MessageColor      int               `toml:"-"`
	LanguageOverrides map[string]string `toml:"-"`
}

// Load parses a TOML configuration. Unset options have their default
// values. An empty reader results in the default configuration.
func Load(reader io.Reader) (*Config, error) {
	var result Config

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}

	if err := toml.Unmarshal(data, &result); err != nil {
		return nil, err
	}

	if result.EventTypes == nil {
		result.EventTypes = []string{"push"}
	}

	return &result, nil
}

// UseDiscordBot returns true if messages are sent via the bot API instead
// of an incoming webhook.
func (c *Config) UseDiscordBot() bool {
	return c.DiscordWebhookURL == ""
}

// Validate checks the configuration for errors and sets the fields that are
// derived from string options.
func (c *Config) Validate() error {
	var err error

	if c.GithubWebHookSecret == "" {
		return errors.New("github_webhook_secret must be set")
	}

	if err := c.validateDiscordDestination(); err != nil {
		return err
	}

	if c.HTTPListenAddr == "" && c.HTTPSListenAddr == "" {
		return errors.New("https_server_listen_addr or http_server_listen_addr must be set, both are empty")
	}

	if c.HTTPSListenAddr != "" && (c.HTTPSCertFile == "" || c.HTTPSKeyFile == "") {
		return errors.New("https_ssl_cert_file and https_ssl_key_file must be set when https_server_listen_addr is set")
	}

	switch c.GithubStatsAPI {
	case StatsAPIREST, StatsAPIGraphQL:
	default:
		return fmt.Errorf("github_stats_api: unsupported value %q, supported: %q, %q", c.GithubStatsAPI, StatsAPIREST, StatsAPIGraphQL)
	}

	if c.EnrichmentConcurrency < 1 {
		return fmt.Errorf("enrichment_concurrency must be >=1, is %d", c.EnrichmentConcurrency)
	}

	c.EnrichmentTimeout, err = parsePositiveDuration("enrichment_timeout", c.EnrichmentTimeoutStr)
	if err != nil {
		return err
	}

	c.DeliveryInterval, err = time.ParseDuration(c.DeliveryIntervalStr)
	if err != nil {
		return fmt.Errorf("delivery_interval: %w", err)
	}

	if c.DeliveryInterval < 0 {
		return fmt.Errorf("delivery_interval must not be negative, is %s", c.DeliveryInterval)
	}

	c.MessageColor, err = ParseColor(c.MessageColorStr)
	if err != nil {
		return fmt.Errorf("message_color: %w", err)
	}

	c.LanguageOverrides, err = maputils.ToStrMap(c.Languages)
	if err != nil {
		return fmt.Errorf("languages: %w", err)
	}

	if c.PublicBaseURL != "" {
		if err := validateAbsoluteURL(c.PublicBaseURL); err != nil {
			return fmt.Errorf("public_base_url: %w", err)
		}
	}

	return nil
}

func (c *Config) validateDiscordDestination() error {
	botConfigured := c.DiscordBotToken != "" || c.DiscordChannelID != ""

	if c.DiscordWebhookURL != "" {
		if botConfigured {
			return errors.New("discord_webhook_url and discord_bot_token/discord_channel_id are mutually exclusive")
		}

		if err := validateAbsoluteURL(c.DiscordWebhookURL); err != nil {
			return fmt.Errorf("discord_webhook_url: %w", err)
		}

		return nil
	}

	if c.DiscordBotToken == "" || c.DiscordChannelID == "" {
		return errors.New("either discord_webhook_url or discord_bot_token and discord_channel_id must be set")
	}

	return nil
}

func parsePositiveDuration(key, val string) (time.Duration, error) {
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}

	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, is %s", key, d)
	}

	return d, nil
}

func validateAbsoluteURL(s string) error {
	u, err := url.Parse(s)
	if err != nil {
		return err
	}

	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%q is not an absolute url", s)
	}

	return nil
}

// ParseColor parses an RGB color in hexadecimal ("0x0099FF", "#0099FF") or
// decimal notation.
func ParseColor(s string) (int, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "#") {
		s = "0x" + s[1:]
	}

	v, err := strconv.ParseInt(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid color %q: %w", s, err)
	}

	if v < 0 || v > maxColor {
		return 0, fmt.Errorf("color %q is out of range", s)
	}

	return int(v), nil
}
