// Package githubclt provides a github API client.
package githubclt

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/go-github/v59/github"
	"github.com/shurcooL/githubv4"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/simplesurance/pushcord/internal/event"
	"github.com/simplesurance/pushcord/internal/logfields"
	"github.com/simplesurance/pushcord/internal/notiferr"
)

const DefaultHTTPClientTimeout = time.Minute

const loggerName = "github_client"

// ErrCommitNotFound is returned when the repository does not contain a
// commit with the requested ID.
var ErrCommitNotFound = errors.New("commit not found")

// StatsSource defines which GitHub API is queried for commit information.
type StatsSource string

const (
	// StatsSourceREST retrieves line stats and changed files via the
	// REST commits endpoint.
	StatsSourceREST StatsSource = "rest"
	// StatsSourceGraphQL retrieves only line stats via the GraphQL API.
	StatsSourceGraphQL StatsSource = "graphql"
)

// Client is an github API client.
// All methods return a notiferr.RetryableError when an operation failed
// because of a temporary condition, e.g. when the API ratelimit is exceeded.
type Client struct {
	restClt     *github.Client
	graphQLClt  *githubv4.Client
	statsSource StatsSource
	logger      *zap.Logger
}

type Option func(*options)

type options struct {
	baseURL     string
	statsSource StatsSource
	httpClient  *http.Client
}

// WithBaseURL sets the URL of the GitHub REST API, e.g. for GitHub
// Enterprise installations (https://ghe.example.com/api/v3/).
// The GraphQL endpoint is derived from it.
func WithBaseURL(baseURL string) Option {
	return func(o *options) {
		o.baseURL = baseURL
	}
}

// WithStatsSource sets the API that is used by CommitDetails.
func WithStatsSource(src StatsSource) Option {
	return func(o *options) {
		o.statsSource = src
	}
}

// WithHTTPClient sets the http client used for requests, the api token
// passed to New is ignored when it is set.
func WithHTTPClient(clt *http.Client) Option {
	return func(o *options) {
		o.httpClient = clt
	}
}

// New returns a new github api client.
func New(oauthAPItoken string, opts ...Option) (*Client, error) {
	o := options{statsSource: StatsSourceREST}
	for _, opt := range opts {
		opt(&o)
	}

	switch o.statsSource {
	case StatsSourceREST, StatsSourceGraphQL:
	default:
		return nil, fmt.Errorf("unsupported stats source: %q", o.statsSource)
	}

	httpClient := o.httpClient
	if httpClient == nil {
		httpClient = newHTTPClient(oauthAPItoken)
	}

	clt := Client{
		restClt:     github.NewClient(httpClient),
		graphQLClt:  githubv4.NewClient(httpClient),
		statsSource: o.statsSource,
		logger:      zap.L().Named(loggerName),
	}

	if o.baseURL != "" {
		baseURL, err := url.Parse(o.baseURL)
		if err != nil {
			return nil, fmt.Errorf("parsing github api url failed: %w", err)
		}

		if !strings.HasSuffix(baseURL.Path, "/") {
			baseURL.Path += "/"
		}

		clt.restClt.BaseURL = baseURL
		clt.graphQLClt = githubv4.NewEnterpriseClient(graphQLURL(baseURL), httpClient)
	}

	return &clt, nil
}

func newHTTPClient(apiToken string) *http.Client {
	if apiToken == "" {
		return &http.Client{
			Timeout: DefaultHTTPClientTimeout,
		}
	}

	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: apiToken},
	)

	tc := oauth2.NewClient(context.Background(), ts)
	tc.Timeout = DefaultHTTPClientTimeout

	return tc
}

// graphQLURL returns the GraphQL endpoint for a REST API base URL.
// GitHub Enterprise serves the REST API at /api/v3/ and GraphQL at
// /api/graphql, github.com at / and /graphql.
func graphQLURL(restBaseURL *url.URL) string {
	u := *restBaseURL

	if strings.HasSuffix(u.Path, "/api/v3/") {
		u.Path = strings.TrimSuffix(u.Path, "v3/") + "graphql"
		return u.String()
	}

	u.Path += "graphql"
	return u.String()
}

// CommitDetails returns the line stats and the changed files of a commit.
// When the client uses StatsSourceGraphQL, the returned Files are nil.
func (clt *Client) CommitDetails(ctx context.Context, owner, repo, sha string) (*event.CommitDetails, error) {
	if clt.statsSource == StatsSourceGraphQL {
		stats, err := clt.CommitStats(ctx, owner, repo, sha)
		if err != nil {
			return nil, err
		}

		return &event.CommitDetails{Stats: stats}, nil
	}

	commit, _, err := clt.restClt.Repositories.GetCommit(ctx, owner, repo, sha, nil)
	if err != nil {
		return nil, clt.wrapRetryableErrors(err)
	}

	var result event.CommitDetails

	if stats := commit.GetStats(); stats != nil {
		result.Stats = &event.LineStats{
			Additions: stats.GetAdditions(),
			Deletions: stats.GetDeletions(),
			Total:     stats.GetTotal(),
		}
	}

	if len(commit.Files) > 0 {
		result.Files = toFileSet(commit.Files)
	}

	clt.logger.Debug(
		"retrieved commit details",
		logfields.Event("github_commit_details_retrieved"),
		logfields.RepositoryOwner(owner),
		logfields.Repository(repo),
		logfields.Commit(sha),
		zap.Int("changed_files", len(commit.Files)),
	)

	return &result, nil
}

func toFileSet(files []*github.CommitFile) *event.FileSet {
	var result event.FileSet

	for _, f := range files {
		name := f.GetFilename()
		if name == "" {
			continue
		}

		switch f.GetStatus() {
		case "added":
			result.Added = append(result.Added, name)

		case "removed":
			result.Removed = append(result.Removed, name)

		case "renamed":
			if prev := f.GetPreviousFilename(); prev != "" {
				result.Removed = append(result.Removed, prev)
			}
			result.Added = append(result.Added, name)

		default:
			result.Modified = append(result.Modified, name)
		}
	}

	return &result
}

func (clt *Client) wrapRetryableErrors(err error) error {
	switch v := err.(type) {
	case *github.RateLimitError:
		clt.logger.Info(
			"rate limit exceeded",
			logfields.Event("github_api_rate_limit_exceeded"),
			zap.Int("github_api_rate_limit", v.Rate.Limit),
			zap.Time("github_api_rate_limit_reset_time", v.Rate.Reset.Time),
		)

		return notiferr.NewRetryableError(err, v.Rate.Reset.Time)

	case *github.AbuseRateLimitError:
		clt.logger.Info(
			"secondary rate limit exceeded",
			logfields.Event("github_api_secondary_rate_limit_exceeded"),
			zap.Durationp("retry_after", v.RetryAfter),
		)

		if v.RetryAfter != nil {
			return notiferr.NewRetryableError(err, time.Now().Add(*v.RetryAfter))
		}

		return notiferr.NewRetryableAnytimeError(err)

	case *github.ErrorResponse:
		if v.Response != nil && v.Response.StatusCode >= 500 && v.Response.StatusCode < 600 {
			return notiferr.NewRetryableAnytimeError(err)
		}
	}

	return err
}

var graphQlHTTPStatusErrRe = regexp.MustCompile(`^non-200 OK status code: ([0-9]+) .*`)

func (clt *Client) wrapGraphQLRetryableErrors(err error) error {
	matches := graphQlHTTPStatusErrRe.FindStringSubmatch(err.Error())
	if len(matches) != 2 {
		return err
	}

	errcode, atoiErr := strconv.Atoi(matches[1])
	if atoiErr != nil {
		clt.logger.Info(
			"parsing http code from error string failed",
			zap.Error(atoiErr),
			zap.String("error_string", err.Error()),
			zap.String("http_errcode", matches[1]),
		)
		return err
	}

	if errcode >= 500 && errcode < 600 {
		return notiferr.NewRetryableAnytimeError(err)
	}

	return err
}
