package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	zaplogfmt "github.com/sykesm/zap-logfmt"
	"github.com/thecodeteam/goodbye"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/simplesurance/pushcord/internal/cfg"
	"github.com/simplesurance/pushcord/internal/discord"
	"github.com/simplesurance/pushcord/internal/githubclt"
	"github.com/simplesurance/pushcord/internal/logfields"
	"github.com/simplesurance/pushcord/internal/notify"
	"github.com/simplesurance/pushcord/internal/pipeline"
	"github.com/simplesurance/pushcord/internal/signature"
	"github.com/simplesurance/pushcord/internal/webhook"
)

const appName = "pushcord"

var logger *zap.Logger

// Version is set via a ldflag on compilation
var Version = "unknown"

func exitOnErr(msg string, err error) {
	if err == nil {
		return
	}

	fmt.Fprintln(os.Stderr, "ERROR:", msg+", error:", err.Error())
	os.Exit(1)
}

func panicHandler() {
	if r := recover(); r != nil {
		logger.Info(
			"panic caught , terminating gracefully",
			zap.String("panic", fmt.Sprintf("%v", r)),
			zap.StackSkip("stacktrace", 1),
		)

		ctx, cancelFn := context.WithTimeout(context.Background(), time.Minute)
		defer cancelFn()

		goodbye.Exit(ctx, 1)
	}
}

func registerShutdown(name string, srv *http.Server) {
	goodbye.Register(func(context.Context, os.Signal) {
		const shutdownTimeout = 30 * time.Second
		ctx, cancelFn := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancelFn()

		logger.Debug(
			"terminating "+name+" server",
			logfields.Event(name+"_server_terminating"),
			zap.Duration("shutdown_timeout", shutdownTimeout),
		)

		err := srv.Shutdown(ctx)
		if err != nil {
			logger.Warn(
				"shutting down "+name+" server failed",
				logfields.Event(name+"_server_termination_failed"),
				zap.Error(err),
			)
		}
	})
}

func startHTTPSServer(listenAddr string, certFile, keyFile string, mux *http.ServeMux) {
	httpsServer := http.Server{
		Addr:              listenAddr,
		Handler:           mux,
		ReadHeaderTimeout: time.Minute,
	}

	registerShutdown("https", &httpsServer)

	go func() {
		defer panicHandler()

		logger.Info(
			"https server started",
			logfields.Event("https_server_started"),
			zap.String("listenAddr", listenAddr),
		)

		err := httpsServer.ListenAndServeTLS(certFile, keyFile)
		if errors.Is(err, http.ErrServerClosed) {
			logger.Info("https server terminated", logfields.Event("https_server_terminated"))
			return
		}

		logger.Fatal(
			"https server terminated unexpectedly",
			logfields.Event("https_server_terminated_unexpectedly"),
			zap.Error(err),
		)
	}()
}

func startHTTPServer(listenAddr string, mux *http.ServeMux) {
	httpServer := http.Server{
		Addr:              listenAddr,
		Handler:           mux,
		ReadHeaderTimeout: time.Minute,
	}

	registerShutdown("http", &httpServer)

	go func() {
		defer panicHandler()

		logger.Info(
			"http server started",
			logfields.Event("http_server_started"),
			zap.String("listenAddr", listenAddr),
		)

		err := httpServer.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			logger.Info("http server terminated", logfields.Event("http_server_terminated"))
			return
		}

		logger.Fatal(
			"http server terminated unexpectedly",
			logfields.Event("http_server_terminated_unexpectedly"),
			zap.Error(err),
		)
	}()
}

type arguments struct {
	Verbose     *bool
	ConfigFile  *string
	EnvFile     *string
	ShowVersion *bool
	SignFile    *string
}

var args arguments

func mustParseCommandlineParams() {
	args = arguments{
		Verbose: pflag.BoolP(
			"verbose",
			"v",
			false,
			"enable verbose logging",
		),
		ConfigFile: pflag.StringP(
			"cfg-file",
			"c",
			"",
			"path to the pushcord configuration file, if unset the configuration is read from environment variables",
		),
		EnvFile: pflag.String(
			"env-file",
			".env",
			"path to a file containing environment variables, it is ignored if it does not exist",
		),
		ShowVersion: pflag.Bool(
			"version",
			false,
			"print the version and exit",
		),
		SignFile: pflag.String(
			"sign",
			"",
			"print the "+signature.Header+" header value for the content of the file, signed with the configured webhook secret, and exit",
		),
	}

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTION]\nReceive GitHub webhook events and post them to a Discord channel.\n", appName)
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		pflag.PrintDefaults()
	}

	pflag.Parse()
}

func mustParseCfg() *cfg.Config {
	// we use exitOnErr in this function instead of logger.Fatal() because
	// the logger is not initialized yet

	err := cfg.LoadDotEnv(*args.EnvFile)
	exitOnErr(fmt.Sprintf("could not load environment file: %s", *args.EnvFile), err)

	var config *cfg.Config

	if *args.ConfigFile == "" {
		config, err = cfg.Load(strings.NewReader(""))
		exitOnErr("could not initialize default configuration", err)
	} else {
		file, err := os.Open(*args.ConfigFile)
		exitOnErr("could not open configuration files", err)
		defer file.Close()

		config, err = cfg.Load(file)
		exitOnErr(fmt.Sprintf("could not load configuration file: %s", *args.ConfigFile), err)
	}

	config.ApplyEnv(nil)

	return config
}

func initLogFmtLogger(config *cfg.Config, logLevel zapcore.Level) *zap.Logger {
	cfg := zapEncoderConfig(config)

	logger := zap.New(zapcore.NewCore(
		zaplogfmt.NewEncoder(cfg),
		os.Stdout,
		logLevel),
	)

	return logger
}

func zapEncoderConfig(config *cfg.Config) zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()

	cfg.LevelKey = "loglevel"
	cfg.TimeKey = config.LogTimeKey
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeDuration = zapcore.StringDurationEncoder

	return cfg
}

func mustInitZapFormatLogger(config *cfg.Config, logLevel zapcore.Level) *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.Sampling = nil
	cfg.EncoderConfig = zapEncoderConfig(config)
	cfg.OutputPaths = []string{"stdout"}
	cfg.Encoding = config.LogFormat
	cfg.Level = zap.NewAtomicLevelAt(logLevel)

	logger, err := cfg.Build()
	exitOnErr("could not initialize logger", err)

	return logger
}

func mustInitLogger(config *cfg.Config) {
	var logLevel zapcore.Level
	if *args.Verbose {
		logLevel = zapcore.DebugLevel
	} else {
		if err := (&logLevel).Set(config.LogLevel); err != nil {
			fmt.Fprintf(os.Stderr, "can not set log level to %q: %s \n", config.LogLevel, err)
			os.Exit(2)
		}
	}

	switch config.LogFormat {
	case "logfmt":
		logger = initLogFmtLogger(config, logLevel)
	case "console", "json":
		logger = mustInitZapFormatLogger(config, logLevel)
	default:
		fmt.Fprintf(os.Stderr, "unsupported log-format argument: %q\n", config.LogFormat)
		os.Exit(2)
	}

	logger = logger.Named("main")
	zap.ReplaceGlobals(logger)

	goodbye.Register(func(context.Context, os.Signal) {
		if err := logger.Sync(); err != nil {
			fmt.Fprintf(os.Stderr, "flushing logs failed: %s\n", err)
		}
	})
}

func hide(in string) string {
	if in == "" {
		return in
	}

	return "**hidden**"
}

func mustSign(config *cfg.Config, path string) {
	if config.GithubWebHookSecret == "" {
		exitOnErr("can not sign payload", errors.New("github_webhook_secret is not set"))
	}

	payload, err := os.ReadFile(path)
	exitOnErr("could not read payload file", err)

	fmt.Printf("%s: %s\n", signature.Header, signature.Sign([]byte(config.GithubWebHookSecret), payload))
}

func mustNewDiscordClient(config *cfg.Config) *discord.Client {
	if config.UseDiscordBot() {
		clt, err := discord.NewBotClient(config.DiscordAPIURL, config.DiscordBotToken, config.DiscordChannelID)
		exitOnErr("could not create discord bot client", err)

		return clt
	}

	clt, err := discord.NewWebhookClient(config.DiscordWebhookURL)
	exitOnErr("could not create discord webhook client", err)

	return clt
}

func mustNewPipeline(config *cfg.Config) *pipeline.Pipeline {
	languages := notify.DefaultLanguageTable()
	if len(config.LanguageOverrides) > 0 {
		languages = languages.WithOverrides(config.LanguageOverrides)
	}

	builder := notify.NewBuilder(&notify.Config{
		Title:     config.MessageTitle,
		Color:     config.MessageColor,
		Languages: languages,
		IconURL:   notify.TemplateIconResolver(config.PublicBaseURL),
	})

	opts := []pipeline.Option{pipeline.WithDeliveryInterval(config.DeliveryInterval)}

	if config.EnrichCommits {
		ghOpts := []githubclt.Option{githubclt.WithStatsSource(githubclt.StatsSource(config.GithubStatsAPI))}
		if config.GithubAPIURL != "" {
			ghOpts = append(ghOpts, githubclt.WithBaseURL(config.GithubAPIURL))
		}

		githubClient, err := githubclt.New(config.GithubAPIToken, ghOpts...)
		exitOnErr("could not create github client", err)

		opts = append(opts, pipeline.WithEnricher(
			githubClient,
			pipeline.WithEnrichmentConcurrency(config.EnrichmentConcurrency),
			pipeline.WithEnrichmentTimeout(config.EnrichmentTimeout),
		))
	}

	return pipeline.New(builder, mustNewDiscordClient(config), opts...)
}

func main() {
	defer panicHandler()

	defer goodbye.Exit(context.Background(), 1)
	goodbye.Notify(context.Background())

	mustParseCommandlineParams()

	if *args.ShowVersion {
		fmt.Printf("%s %s\n", appName, Version)
		os.Exit(0) // nolint:gocritic // defer functions won't run
	}

	config := mustParseCfg()

	if *args.SignFile != "" {
		mustSign(config, *args.SignFile)
		os.Exit(0) // nolint:gocritic // defer functions won't run
	}

	exitOnErr("invalid configuration", config.Validate())

	mustInitLogger(config)

	logger.Info(
		"loaded configuration",
		logfields.Event("cfg_loaded"),
		zap.String("cfg_file", *args.ConfigFile),
		zap.String("http_server_listen_addr", config.HTTPListenAddr),
		zap.String("https_server_listen_addr", config.HTTPSListenAddr),
		zap.String("github_webhook_endpoint", config.HTTPGithubWebhookEndpoint),
		zap.String("metrics_endpoint", config.HTTPMetricsEndpoint),
		zap.String("github_webhook_secret", hide(config.GithubWebHookSecret)),
		zap.String("github_api_token", hide(config.GithubAPIToken)),
		zap.String("github_api_url", config.GithubAPIURL),
		zap.String("github_stats_api", config.GithubStatsAPI),
		zap.Bool("enrich_commits", config.EnrichCommits),
		zap.Duration("enrichment_timeout", config.EnrichmentTimeout),
		zap.Int("enrichment_concurrency", config.EnrichmentConcurrency),
		zap.String("discord_webhook_url", hide(config.DiscordWebhookURL)),
		zap.String("discord_bot_token", hide(config.DiscordBotToken)),
		zap.String("discord_channel_id", config.DiscordChannelID),
		zap.String("discord_api_url", config.DiscordAPIURL),
		zap.Duration("delivery_interval", config.DeliveryInterval),
		zap.String("public_base_url", config.PublicBaseURL),
		zap.String("message_title", config.MessageTitle),
		zap.Int("message_color", config.MessageColor),
		zap.Strings("event_types", config.EventTypes),
		zap.String("filter_query", config.FilterQuery),
		zap.Any("languages", config.LanguageOverrides),
		zap.String("log_format", config.LogFormat),
		zap.String("log_time_key", config.LogTimeKey),
		zap.String("log_level", config.LogLevel),
	)

	goodbye.Register(func(_ context.Context, sig os.Signal) {
		logger.Info(fmt.Sprintf("terminating, received signal %s", sig.String()))
	})

	classifier, err := webhook.NewClassifier(
		[]byte(config.GithubWebHookSecret),
		webhook.WithEventTypes(config.EventTypes...),
		webhook.WithFilterQuery(config.FilterQuery),
	)
	exitOnErr("could not create webhook classifier", err)

	mux := http.NewServeMux()

	mux.Handle(config.HTTPGithubWebhookEndpoint, webhook.NewHandler(classifier, mustNewPipeline(config)))
	logger.Info(
		"registered github webhook event http endpoint",
		logfields.Event("github_http_handler_registered"),
		zap.String("endpoint", config.HTTPGithubWebhookEndpoint),
	)

	if config.HTTPMetricsEndpoint != "" {
		mux.Handle(config.HTTPMetricsEndpoint, promhttp.Handler())
		logger.Info(
			"registered prometheus metrics http endpoint",
			logfields.Event("metrics_http_handler_registered"),
			zap.String("endpoint", config.HTTPMetricsEndpoint),
		)
	}

	if config.HTTPListenAddr != "" {
		startHTTPServer(config.HTTPListenAddr, mux)
	}

	if config.HTTPSListenAddr != "" {
		startHTTPSServer(
			config.HTTPSListenAddr,
			config.HTTPSCertFile,
			config.HTTPSKeyFile,
			mux,
		)
	}

	select {}
}
