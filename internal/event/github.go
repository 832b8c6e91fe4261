package event

import (
	"errors"
	"strings"

	"github.com/google/go-github/v59/github"
)

// ErrNoRepository is returned when an event does not identify the
// repository it belongs to.
var ErrNoRepository = errors.New("event contains no repository owner or name")

const branchRefPrefix = "refs/heads/"

// FromPushEvent converts a parsed GitHub push webhook event.
func FromPushEvent(deliveryID string, ev *github.PushEvent) (*Push, error) {
	repo := ev.GetRepo()

	result := Push{
		DeliveryID: deliveryID,
		Repository: Repository{
			Owner:    ownerName(repo.GetOwner()),
			Name:     repo.GetName(),
			FullName: repo.GetFullName(),
			HTMLURL:  repo.GetHTMLURL(),
		},
		Ref:        ev.GetRef(),
		CompareURL: ev.GetCompare(),
		Pusher:     ev.GetPusher().GetName(),
		Commits:    make([]*Commit, 0, len(ev.Commits)),
	}

	if result.Repository.Owner == "" || result.Repository.Name == "" {
		return nil, ErrNoRepository
	}

	if strings.HasPrefix(result.Ref, branchRefPrefix) {
		result.Branch = strings.TrimPrefix(result.Ref, branchRefPrefix)
	}

	for _, c := range ev.Commits {
		if c == nil {
			continue
		}

		result.Commits = append(result.Commits, &Commit{
			ID: c.GetID(),
			Author: Author{
				Name:     c.GetAuthor().GetName(),
				Username: c.GetAuthor().GetLogin(),
			},
			Message:   c.GetMessage(),
			URL:       c.GetURL(),
			Timestamp: c.GetTimestamp().Time,
			Files: FileSet{
				Added:    c.Added,
				Modified: c.Modified,
				Removed:  c.Removed,
			},
		})
	}

	return &result, nil
}

// FromIssuesEvent converts a parsed GitHub issues webhook event.
func FromIssuesEvent(deliveryID string, ev *github.IssuesEvent) (*Issue, error) {
	repo := ev.GetRepo()
	issue := ev.GetIssue()
	user := issue.GetUser()

	result := Issue{
		DeliveryID: deliveryID,
		Action:     ev.GetAction(),
		Repository: Repository{
			Owner:    ownerName(repo.GetOwner()),
			Name:     repo.GetName(),
			FullName: repo.GetFullName(),
			HTMLURL:  repo.GetHTMLURL(),
		},
		Number: issue.GetNumber(),
		Title:  issue.GetTitle(),
		Body:   issue.GetBody(),
		URL:    issue.GetHTMLURL(),
		Author: IssueUser{
			Login:      user.GetLogin(),
			ProfileURL: user.GetHTMLURL(),
			AvatarURL:  user.GetAvatarURL(),
		},
		CreatedAt: issue.GetCreatedAt().Time,
	}

	if result.Repository.Owner == "" || result.Repository.Name == "" {
		return nil, ErrNoRepository
	}

	for _, l := range issue.Labels {
		if name := l.GetName(); name != "" {
			result.Labels = append(result.Labels, name)
		}
	}

	return &result, nil
}

// ownerName returns the login of the owner, push events of some GitHub
// versions only contain the name field.
func ownerName(owner *github.User) string {
	if login := owner.GetLogin(); login != "" {
		return login
	}

	return owner.GetName()
}
