package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/simplesurance/pushcord/internal/event"
	"github.com/simplesurance/pushcord/internal/logfields"
	"github.com/simplesurance/pushcord/internal/notify"
	"github.com/simplesurance/pushcord/internal/routines"
)

const (
	DefaultEnrichmentConcurrency = 4
	DefaultEnrichmentTimeout     = 10 * time.Second
)

type enrichOptions struct {
	concurrency int
	timeout     time.Duration
}

type EnrichOption func(*enrichOptions)

// WithEnrichmentConcurrency sets the max. number of concurrent
// CommitDetails calls.
func WithEnrichmentConcurrency(n int) EnrichOption {
	return func(o *enrichOptions) {
		o.concurrency = n
	}
}

// WithEnrichmentTimeout sets the timeout of a single CommitDetails call.
func WithEnrichmentTimeout(d time.Duration) EnrichOption {
	return func(o *enrichOptions) {
		o.timeout = d
	}
}

// Enrich retrieves the details of all commits.
// Commits for that retrieving the details fails are missing in the
// returned Enrichment, failures are logged and never abort the enrichment.
func Enrich(ctx context.Context, enricher Enricher, repo *event.Repository, commits []*event.Commit, opts ...EnrichOption) *notify.Enrichment {
	o := enrichOptions{
		concurrency: DefaultEnrichmentConcurrency,
		timeout:     DefaultEnrichmentTimeout,
	}

	for _, opt := range opts {
		opt(&o)
	}

	logger := zap.L().Named(loggerName).With(
		logfields.RepositoryOwner(repo.Owner),
		logfields.Repository(repo.Name),
	)

	result := notify.Enrichment{Details: make(map[string]*event.CommitDetails, len(commits))}
	if len(commits) == 0 {
		return &result
	}

	// indexed by commit position, each go-routine only writes its own
	// element
	details := make([]*event.CommitDetails, len(commits))

	pool := routines.NewPool(min(o.concurrency, len(commits)))

	for i, commit := range commits {
		i, commit := i, commit

		pool.Queue(func() {
			d, err := commitDetails(ctx, enricher, repo, commit.ID, o.timeout)
			if err != nil {
				metrics.EnrichmentFailuresInc()

				logger.Warn(
					"retrieving commit details failed, notification will not contain them",
					logfields.Event("commit_enrichment_failed"),
					logfields.PushedCommit(commit.ID),
					zap.Error(err),
				)

				return
			}

			details[i] = d
		})
	}

	pool.Wait()

	for i, d := range details {
		if d != nil {
			result.Details[commits[i].ID] = d
		}
	}

	logger.Debug(
		"commit enrichment finished",
		logfields.Event("commit_enrichment_finished"),
		zap.Int("commits", len(commits)),
		zap.Int("enriched_commits", len(result.Details)),
	)

	return &result
}

func commitDetails(ctx context.Context, enricher Enricher, repo *event.Repository, sha string, timeout time.Duration) (details *event.CommitDetails, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("retrieving commit details panicked: %v", r)
		}
	}()

	ctx, cancelFn := context.WithTimeout(ctx, timeout)
	defer cancelFn()

	details, err = enricher.CommitDetails(ctx, repo.Owner, repo.Name, sha)
	if err != nil {
		return nil, err
	}

	if details == nil {
		return nil, fmt.Errorf("no commit details returned for %s", sha)
	}

	return details, nil
}
