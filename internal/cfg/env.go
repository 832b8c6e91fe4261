package cfg

import (
	"errors"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

// LoadDotEnv sets environment variables from the given .env files, or from
// ".env" in the working directory if none are passed. Variables that are
// already set are not overwritten. Missing files are ignored.
func LoadDotEnv(filenames ...string) error {
	if len(filenames) == 0 {
		filenames = []string{".env"}
	}

	for _, fn := range filenames {
		err := godotenv.Load(fn)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}

	return nil
}

// LookupEnvFunc has the signature of os.LookupEnv.
type LookupEnvFunc func(key string) (string, bool)

// ApplyEnv overwrites options with the values of the corresponding
// environment variables, if they are set.
// If lookup is nil, os.LookupEnv is used.
func (c *Config) ApplyEnv(lookup LookupEnvFunc) {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	set := func(key string, dest *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dest = v
		}
	}

	if port, ok := lookup("PORT"); ok && port != "" {
		c.HTTPListenAddr = ":" + port
	}

	set("GITHUB_WEBHOOK_SECRET", &c.GithubWebHookSecret)
	set("GITHUB_TOKEN", &c.GithubAPIToken)
	set("GITHUB_API_URL", &c.GithubAPIURL)
	set("DISCORD_WEBHOOK_URL", &c.DiscordWebhookURL)
	set("DISCORD_TOKEN", &c.DiscordBotToken)
	set("DISCORD_CHANNEL_ID", &c.DiscordChannelID)
	set("PUBLIC_URL", &c.PublicBaseURL)
	set("EMBED_TITLE", &c.MessageTitle)
	set("EMBED_COLOR", &c.MessageColorStr)
	set("LOG_LEVEL", &c.LogLevel)
}
