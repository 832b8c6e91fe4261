package githubclt

import (
	"context"
	"fmt"

	"github.com/shurcooL/githubv4"

	"github.com/simplesurance/pushcord/internal/event"
)

// CommitStats returns the number of added and deleted lines of a commit,
// queried via the GraphQL API.
func (clt *Client) CommitStats(ctx context.Context, owner, repo, sha string) (*event.LineStats, error) {
	var q struct {
		Repository struct {
			Object struct {
				Commit struct {
					Oid       string
					Additions int
					Deletions int
				} `graphql:"... on Commit"`
			} `graphql:"object(oid: $oid)"`
		} `graphql:"repository(owner: $owner, name: $name)"`
	}

	vars := map[string]any{
		"owner": githubv4.String(owner),
		"name":  githubv4.String(repo),
		"oid":   githubv4.GitObjectID(sha),
	}

	if err := clt.graphQLClt.Query(ctx, &q, vars); err != nil {
		return nil, clt.wrapGraphQLRetryableErrors(err)
	}

	commit := q.Repository.Object.Commit
	if commit.Oid == "" {
		return nil, fmt.Errorf("%w: %s/%s@%s", ErrCommitNotFound, owner, repo, sha)
	}

	return &event.LineStats{
		Additions: commit.Additions,
		Deletions: commit.Deletions,
		Total:     commit.Additions + commit.Deletions,
	}, nil
}
