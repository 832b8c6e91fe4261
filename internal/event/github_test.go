package event

import (
	"os"
	"testing"
	"time"

	"github.com/google/go-github/v59/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParseWebHook(t *testing.T, eventType, path string) any {
	t.Helper()

	payload, err := os.ReadFile(path)
	require.NoError(t, err)

	ev, err := github.ParseWebHook(eventType, payload)
	require.NoError(t, err)

	return ev
}

func TestFromPushEvent(t *testing.T) {
	ghEv := mustParseWebHook(t, "push", "testdata/push.json").(*github.PushEvent)

	ev, err := FromPushEvent("3355fab0-b22c-11eb-9936-51d9540c0cdc", ghEv)
	require.NoError(t, err)

	assert.Equal(t, "octo-org", ev.Repository.Owner)
	assert.Equal(t, "hello-world", ev.Repository.Name)
	assert.Equal(t, "octo-org/hello-world", ev.Repository.FullName)
	assert.Equal(t, "refs/heads/main", ev.Ref)
	assert.Equal(t, "main", ev.Branch)
	assert.Equal(t, "octocat", ev.Pusher)
	assert.Equal(t, "push", ev.Type())

	require.Len(t, ev.Commits, 2)
	first := ev.Commits[0]
	assert.Equal(t, "2f8b4c7", first.ShortID())
	assert.Equal(t, "The Octocat", first.Author.Name)
	assert.Equal(t, "octocat", first.Author.Username)
	assert.Equal(t, []string{"x.py"}, first.Files.Added)
	assert.Empty(t, first.Files.Modified)
	assert.True(t, first.Timestamp.Equal(time.Date(2024, 5, 10, 12, 3, 21, 0, time.UTC)))

	assert.Equal(t, []string{"y.js"}, ev.Commits[1].Files.Modified)
}

func TestFromPushEventWithoutRepository(t *testing.T) {
	_, err := FromPushEvent("", &github.PushEvent{Ref: github.String("refs/heads/main")})
	assert.ErrorIs(t, err, ErrNoRepository)
}

func TestFromPushEventTag(t *testing.T) {
	ev, err := FromPushEvent("", &github.PushEvent{
		Ref: github.String("refs/tags/v1.0.0"),
		Repo: &github.PushEventRepository{
			Name:  github.String("repo"),
			Owner: &github.User{Name: github.String("owner")},
		},
	})
	require.NoError(t, err)

	assert.Empty(t, ev.Branch)
	assert.Equal(t, "owner", ev.Repository.Owner)
	assert.Equal(t, "owner/repo", ev.Repository.String())
}

func TestFromIssuesEvent(t *testing.T) {
	ghEv := mustParseWebHook(t, "issues", "testdata/issue_opened.json").(*github.IssuesEvent)

	ev, err := FromIssuesEvent("", ghEv)
	require.NoError(t, err)

	assert.Equal(t, "opened", ev.Action)
	assert.Equal(t, 42, ev.Number)
	assert.Equal(t, "Crash on startup", ev.Title)
	assert.Equal(t, "hubot", ev.Author.Login)
	assert.Equal(t, []string{"bug", "p1"}, ev.Labels)
	assert.Equal(t, "issues", ev.Type())
}

func TestLineStatsAdd(t *testing.T) {
	var sum LineStats
	sum.Add(&LineStats{Additions: 10, Deletions: 3, Total: 13})
	sum.Add(&LineStats{Additions: 10, Deletions: 3, Total: 13})

	assert.Equal(t, LineStats{Additions: 20, Deletions: 6, Total: 26}, sum)
}

func TestShortID(t *testing.T) {
	assert.Equal(t, "abc", ShortID("abc"))
	assert.Equal(t, "8ad9dec", ShortID("8ad9dec4298f6b8f020997373cf4fe22005f2c06"))
}
