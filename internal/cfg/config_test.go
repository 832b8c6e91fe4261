package cfg

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustLoadFile(t *testing.T, path string) *Config {
	t.Helper()

	f, err := os.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })

	config, err := Load(f)
	require.NoError(t, err)

	return config
}

func TestLoadDefaults(t *testing.T) {
	config, err := Load(strings.NewReader(""))
	require.NoError(t, err)

	assert.Equal(t, ":3000", config.HTTPListenAddr)
	assert.Equal(t, "/webhook", config.HTTPGithubWebhookEndpoint)
	assert.Equal(t, "/metrics", config.HTTPMetricsEndpoint)
	assert.Equal(t, StatsAPIREST, config.GithubStatsAPI)
	assert.True(t, config.EnrichCommits)
	assert.Equal(t, 4, config.EnrichmentConcurrency)
	assert.Equal(t, "https://discord.com/api/v10", config.DiscordAPIURL)
	assert.Equal(t, []string{"push"}, config.EventTypes)
	assert.Equal(t, "true", config.FilterQuery)
	assert.Equal(t, "logfmt", config.LogFormat)
	assert.Equal(t, "time", config.LogTimeKey)
	assert.Equal(t, "info", config.LogLevel)

	config.GithubWebHookSecret = "secret"
	config.DiscordWebhookURL = "https://discord.com/api/webhooks/1/abc"
	require.NoError(t, config.Validate())

	assert.Equal(t, 10*time.Second, config.EnrichmentTimeout)
	assert.Equal(t, time.Second, config.DeliveryInterval)
	assert.Equal(t, 0x0099FF, config.MessageColor)
	assert.Empty(t, config.LanguageOverrides)
	assert.False(t, config.UseDiscordBot())
}

func TestLoadFile(t *testing.T) {
	config := mustLoadFile(t, "testdata/config.toml")
	require.NoError(t, config.Validate())

	assert.Equal(t, ":8080", config.HTTPListenAddr)
	assert.Equal(t, "/listener/github", config.HTTPGithubWebhookEndpoint)
	assert.Equal(t, "/metrics", config.HTTPMetricsEndpoint)
	assert.Equal(t, StatsAPIGraphQL, config.GithubStatsAPI)
	assert.True(t, config.EnrichCommits)
	assert.Equal(t, 3*time.Second, config.EnrichmentTimeout)
	assert.Equal(t, 2, config.EnrichmentConcurrency)
	assert.Equal(t, 500*time.Millisecond, config.DeliveryInterval)
	assert.Equal(t, 0xFF0000, config.MessageColor)
	assert.Equal(t, []string{"push", "issues"}, config.EventTypes)
	assert.Equal(t, `.ref == "refs/heads/main"`, config.FilterQuery)
	assert.Equal(t, map[string]string{".tf": "Terraform", "vue": "JavaScript"}, config.LanguageOverrides)
	assert.True(t, config.UseDiscordBot())
	assert.Equal(t, "json", config.LogFormat)
}

func TestApplyEnv(t *testing.T) {
	config, err := Load(strings.NewReader(`github_webhook_secret = "from-file"` + "\n" + `log_level = "debug"`))
	require.NoError(t, err)

	env := map[string]string{
		"PORT":                  "9000",
		"GITHUB_WEBHOOK_SECRET": "from-env",
		"GITHUB_TOKEN":          "ghp_env",
		"DISCORD_WEBHOOK_URL":   "https://discord.com/api/webhooks/1/abc",
		"EMBED_COLOR":           "255",
		"EMBED_TITLE":           "",
	}

	config.ApplyEnv(func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	})

	assert.Equal(t, ":9000", config.HTTPListenAddr)
	assert.Equal(t, "from-env", config.GithubWebHookSecret)
	assert.Equal(t, "ghp_env", config.GithubAPIToken)
	assert.Equal(t, "https://discord.com/api/webhooks/1/abc", config.DiscordWebhookURL)
	assert.Equal(t, "debug", config.LogLevel)
	assert.Empty(t, config.MessageTitle)

	require.NoError(t, config.Validate())
	assert.Equal(t, 255, config.MessageColor)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := dir + "/.env"

	require.NoError(t, os.WriteFile(envFile, []byte("PUSHCORD_TEST_DOTENV=loaded\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("PUSHCORD_TEST_DOTENV") })

	require.NoError(t, LoadDotEnv(envFile, dir+"/missing.env"))
	assert.Equal(t, "loaded", os.Getenv("PUSHCORD_TEST_DOTENV"))
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		config, err := Load(strings.NewReader(""))
		require.NoError(t, err)

		config.GithubWebHookSecret = "secret"
		config.DiscordWebhookURL = "https://discord.com/api/webhooks/1/abc"

		return config
	}

	tcs := []struct {
		name   string
		modify func(*Config)
	}{
		{
			name:   "missing secret",
			modify: func(c *Config) { c.GithubWebHookSecret = "" },
		},
		{
			name:   "no destination",
			modify: func(c *Config) { c.DiscordWebhookURL = "" },
		},
		{
			name: "bot token without channel",
			modify: func(c *Config) {
				c.DiscordWebhookURL = ""
				c.DiscordBotToken = "token"
			},
		},
		{
			name:   "webhook and bot",
			modify: func(c *Config) { c.DiscordChannelID = "123" },
		},
		{
			name:   "relative webhook url",
			modify: func(c *Config) { c.DiscordWebhookURL = "/api/webhooks/1/abc" },
		},
		{
			name:   "unsupported stats api",
			modify: func(c *Config) { c.GithubStatsAPI = "soap" },
		},
		{
			name:   "zero concurrency",
			modify: func(c *Config) { c.EnrichmentConcurrency = 0 },
		},
		{
			name:   "invalid timeout",
			modify: func(c *Config) { c.EnrichmentTimeoutStr = "10" },
		},
		{
			name:   "zero timeout",
			modify: func(c *Config) { c.EnrichmentTimeoutStr = "0s" },
		},
		{
			name:   "negative delivery interval",
			modify: func(c *Config) { c.DeliveryIntervalStr = "-1s" },
		},
		{
			name:   "invalid color",
			modify: func(c *Config) { c.MessageColorStr = "blue" },
		},
		{
			name:   "non-string language",
			modify: func(c *Config) { c.Languages = map[string]any{".go": int64(1)} },
		},
		{
			name: "no listen address",
			modify: func(c *Config) {
				c.HTTPListenAddr = ""
			},
		},
		{
			name: "https without cert",
			modify: func(c *Config) {
				c.HTTPSListenAddr = ":443"
			},
		},
	}

	require.NoError(t, valid().Validate())

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			config := valid()
			tc.modify(config)
			assert.Error(t, config.Validate())
		})
	}
}

func TestParseColor(t *testing.T) {
	tcs := []struct {
		in       string
		expected int
		err      bool
	}{
		{in: "0x0099FF", expected: 0x0099FF},
		{in: "#0099ff", expected: 0x0099FF},
		{in: "39423", expected: 39423},
		{in: "0", expected: 0},
		{in: "0x1000000", err: true},
		{in: "-1", err: true},
		{in: "", err: true},
	}

	for _, tc := range tcs {
		t.Run(tc.in, func(t *testing.T) {
			v, err := ParseColor(tc.in)
			if tc.err {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.expected, v)
		})
	}
}
