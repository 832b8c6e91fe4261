// Package event contains the domain representation of the GitHub webhook
// events that are turned into notifications.
package event

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/simplesurance/pushcord/internal/logfields"
)

// ShortIDLen is the number of characters of a commit id shown to users.
const ShortIDLen = 7

// Event is a parsed webhook event that can be turned into notifications.
type Event interface {
	// Type returns the GitHub webhook event type, e.g. "push".
	Type() string
	GetRepository() *Repository
	LogFields() []zap.Field
}

type Repository struct {
	Owner    string
	Name     string
	FullName string
	HTMLURL  string
}

func (r *Repository) String() string {
	if r.FullName != "" {
		return r.FullName
	}

	return r.Owner + "/" + r.Name
}

type Author struct {
	Name string
	// Username is the GitHub login, it is empty when the commit author
	// email is not associated with a GitHub account.
	Username string
}

// FileSet contains the paths changed by a commit, grouped by kind of
// change.
type FileSet struct {
	Added    []string
	Modified []string
	Removed  []string
}

// IsEmpty returns true if the set contains no paths.
func (f *FileSet) IsEmpty() bool {
	return f == nil || len(f.Added)+len(f.Modified)+len(f.Removed) == 0
}

type Commit struct {
	ID        string
	Author    Author
	Message   string
	URL       string
	Timestamp time.Time
	Files     FileSet
}

// ShortID returns the abbreviated commit id.
func (c *Commit) ShortID() string {
	return ShortID(c.ID)
}

// ShortID returns the first ShortIDLen characters of id.
func ShortID(id string) string {
	if len(id) <= ShortIDLen {
		return id
	}

	return id[:ShortIDLen]
}

// LineStats are line change counters of one or more commits.
type LineStats struct {
	Additions int
	Deletions int
	Total     int
}

// Add adds the counters of o to s.
func (s *LineStats) Add(o *LineStats) {
	s.Additions += o.Additions
	s.Deletions += o.Deletions
	s.Total += o.Total
}

// CommitDetails is supplementary information about a commit retrieved from
// the GitHub API. Stats or Files are nil when they are not available.
type CommitDetails struct {
	Stats *LineStats
	Files *FileSet
}

// Push is a push webhook event.
type Push struct {
	DeliveryID string
	Repository Repository
	Ref        string
	// Branch is Ref without the refs/heads/ prefix, it is empty when a tag
	// was pushed.
	Branch     string
	CompareURL string
	Pusher     string
	Commits    []*Commit
}

func (p *Push) Type() string {
	return "push"
}

func (p *Push) GetRepository() *Repository {
	return &p.Repository
}

func (p *Push) String() string {
	return fmt.Sprintf("push to %s %s (deliveryID: %s)", p.Repository.String(), p.Ref, p.DeliveryID)
}

func (p *Push) LogFields() []zap.Field {
	fields := make([]zap.Field, 0, 5)

	if p.DeliveryID != "" {
		fields = append(fields, logfields.DeliveryID(p.DeliveryID))
	}

	fields = append(fields,
		logfields.RepositoryOwner(p.Repository.Owner),
		logfields.Repository(p.Repository.Name),
	)

	if p.Branch != "" {
		fields = append(fields, logfields.Branch(p.Branch))
	}

	if len(p.Commits) > 0 {
		fields = append(fields, logfields.Commit(p.Commits[len(p.Commits)-1].ID))
	}

	return fields
}

type IssueUser struct {
	Login      string
	ProfileURL string
	AvatarURL  string
}

// Issue is an issues webhook event.
type Issue struct {
	DeliveryID string
	Action     string
	Repository Repository
	Number     int
	Title      string
	Body       string
	URL        string
	Author     IssueUser
	CreatedAt  time.Time
	Labels     []string
}

func (i *Issue) Type() string {
	return "issues"
}

func (i *Issue) GetRepository() *Repository {
	return &i.Repository
}

func (i *Issue) String() string {
	return fmt.Sprintf("issue %s#%d %s (deliveryID: %s)", i.Repository.String(), i.Number, i.Action, i.DeliveryID)
}

func (i *Issue) LogFields() []zap.Field {
	fields := make([]zap.Field, 0, 4)

	if i.DeliveryID != "" {
		fields = append(fields, logfields.DeliveryID(i.DeliveryID))
	}

	return append(fields,
		logfields.RepositoryOwner(i.Repository.Owner),
		logfields.Repository(i.Repository.Name),
		logfields.Issue(i.Number),
	)
}
