// Package notify turns GitHub webhook events into Discord embeds.
//
// For push events the Builder summarizes the commits, the changed files per
// kind of change, the most used programming language and the number of
// changed lines. Embeds are kept within the Discord limits, file lists
// that do not fit into the first embed are sent as additional embeds
// instead of being dropped.
package notify

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/simplesurance/pushcord/internal/discord"
	"github.com/simplesurance/pushcord/internal/event"
	"github.com/simplesurance/pushcord/internal/logfields"
	"github.com/simplesurance/pushcord/internal/stringutils"
)

const loggerName = "notify"

const DefaultColor = 0x0099FF

const (
	// MaxListedCommits is the max. number of commits in the commit list
	// field.
	MaxListedCommits = 10
	// MaxListedFiles is the max. number of paths per file list field.
	MaxListedFiles = 10
	// MaxCommitSubjectLen is the max. number of characters of a commit
	// message first line in the commit list.
	MaxCommitSubjectLen = 100
	// maxListedPathLen is the max. number of characters of a path in a
	// file list, it leaves room for the backticks and the "...and N more"
	// line.
	maxListedPathLen = discord.MaxFieldValueLen - 32
	// FieldBlockThreshold is the max. serialized size of the fields of
	// the first embed, including a file list field that is about to be
	// added. File lists exceeding it are sent as separate embeds.
	FieldBlockThreshold = discord.MaxFieldValueLen
)

const githubURL = "https://github.com"

var (
	ErrNoCommits        = errors.New("push event contains no commits")
	ErrUnsupportedEvent = errors.New("unsupported event type")
)

// Config configures a Builder.
type Config struct {
	// Title is the title of the first push embed, if it is empty a title
	// containing the number of commits and the repository name is
	// generated.
	Title string
	// Color of the embeds, if 0 DefaultColor is used.
	Color     int
	Languages *LanguageTable
	IconURL   IconResolver
}

// Builder creates Discord embeds from events.
// It is stateless and can be used concurrently.
type Builder struct {
	title     string
	color     int
	languages *LanguageTable
	iconURL   IconResolver
	logger    *zap.Logger
}

func NewBuilder(cfg *Config) *Builder {
	b := Builder{
		title:     cfg.Title,
		color:     cfg.Color,
		languages: cfg.Languages,
		iconURL:   cfg.IconURL,
		logger:    zap.L().Named(loggerName),
	}

	if b.color == 0 {
		b.color = DefaultColor
	}

	if b.languages == nil {
		b.languages = DefaultLanguageTable()
	}

	if b.iconURL == nil {
		b.iconURL = TemplateIconResolver("")
	}

	return &b
}

// Enrichment contains supplementary commit information retrieved from the
// GitHub API, keyed by commit id.
// A nil Enrichment or missing entries are valid, the information is then
// omitted from the notification.
type Enrichment struct {
	Details map[string]*event.CommitDetails
}

// Get returns the details of the commit, nil if none are available.
func (e *Enrichment) Get(commitID string) *event.CommitDetails {
	if e == nil {
		return nil
	}

	return e.Details[commitID]
}

// Build creates the embeds for ev, the returned slice contains at least 1
// element when no error is returned. The embeds must be sent in order.
func (b *Builder) Build(ev event.Event, enr *Enrichment) ([]*discord.Embed, error) {
	switch v := ev.(type) {
	case *event.Push:
		return b.buildPush(v, enr)
	case *event.Issue:
		return b.buildIssue(v)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedEvent, ev)
	}
}

func (b *Builder) buildPush(ev *event.Push, enr *Enrichment) ([]*discord.Embed, error) {
	if len(ev.Commits) == 0 {
		return nil, ErrNoCommits
	}

	if ev.Repository.Owner == "" || ev.Repository.Name == "" {
		return nil, event.ErrNoRepository
	}

	logger := b.logger.With(ev.LogFields()...)

	files := aggregateFiles(ev.Commits, enr)
	lang := b.languages.MostUsed(files.Added, files.Modified)
	stats, statsFound := sumLineStats(logger, ev.Commits, enr)
	latest := ev.Commits[len(ev.Commits)-1]

	base := discord.Embed{
		Title:       b.pushTitle(ev),
		URL:         ev.CompareURL,
		Description: pushDescription(ev),
		Color:       b.color,
		Author:      commitAuthor(&latest.Author),
		Footer:      &discord.Footer{Text: "Commit " + latest.ShortID()},
		Timestamp:   timestamp(latest.Timestamp),
	}

	if base.URL == "" {
		base.URL = latest.URL
	}

	if icon := b.iconURL(lang.Language.Icon); icon != "" {
		base.Thumbnail = &discord.Image{URL: icon}
	}

	base.AddField("Repository", ev.Repository.String(), true)
	base.AddField("Branch", branchName(ev), true)
	base.AddField("Files Changed", strconv.Itoa(files.Len()), true)
	if !lang.IsUnknown() {
		base.AddField("Language", fmt.Sprintf("%s (%s)", lang.Language.Name, pluralize(lang.Count, "file")), true)
	}
	base.AddField("Recent Commits", commitList(ev.Commits), false)

	if statsFound {
		base.AddField(
			"Line Changes",
			fmt.Sprintf("+%d -%d (%s)", stats.Additions, stats.Deletions, pluralize(stats.Total, "line")),
			false,
		)
	}

	result := []*discord.Embed{&base}

	for _, category := range files.categories() {
		if len(category.paths) == 0 {
			continue
		}

		fields := fileListFields(category)

		if fitsFieldBlock(base.Fields, fields) {
			base.Fields = append(base.Fields, fields...)
			continue
		}

		logger.Debug(
			"file list exceeds field block threshold, sending it as separate embed",
			logfields.Event("file_list_moved_to_separate_embed"),
			zap.String("file_category", category.name),
			zap.Int("file_count", len(category.paths)),
		)

		result = append(result, b.fileListEmbeds(ev, category, &base, fields)...)
	}

	for _, e := range result {
		discord.Clamp(e)
	}

	return result, nil
}

func (b *Builder) pushTitle(ev *event.Push) string {
	if b.title != "" {
		return b.title
	}

	return fmt.Sprintf("%s to %s", pluralize(len(ev.Commits), "new commit"), ev.Repository.Name)
}

func pushDescription(ev *event.Push) string {
	if len(ev.Commits) == 1 {
		return ev.Commits[0].Message
	}

	pusher := ev.Pusher
	if pusher == "" {
		pusher = ev.Commits[len(ev.Commits)-1].Author.Name
	}
	if pusher == "" {
		pusher = "Unknown"
	}

	return fmt.Sprintf("%s pushed %d commits to %s", pusher, len(ev.Commits), branchName(ev))
}

func branchName(ev *event.Push) string {
	if ev.Branch != "" {
		return ev.Branch
	}

	return ev.Ref
}

func commitAuthor(a *event.Author) *discord.Author {
	result := discord.Author{Name: a.Name}

	if result.Name == "" {
		result.Name = a.Username
	}
	if result.Name == "" {
		result.Name = "Unknown"
	}

	if a.Username != "" {
		result.URL = githubURL + "/" + a.Username
		result.IconURL = githubURL + "/" + a.Username + ".png"
	}

	return &result
}

func timestamp(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}

	t = t.UTC()
	return &t
}

// moreSuffix returns the line that is appended to a list when n of its
// entries are not shown.
func moreSuffix(n int) string {
	return fmt.Sprintf("\n...and %d more", n)
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

// commitList returns the value of the recent commits field, one line per
// commit in the order of the event.
// Lines are only added while the value, including the suffix for the
// omitted commits, does not exceed discord.MaxFieldValueLen.
func commitList(commits []*event.Commit) string {
	var sb strings.Builder
	var valLen, listed int

	reserved := runeLen(moreSuffix(len(commits)))

	for i, c := range commits {
		if i == MaxListedCommits {
			break
		}

		line := fmt.Sprintf("`%s`: %s",
			c.ShortID(),
			stringutils.Ellipsize(stringutils.FirstLine(c.Message), MaxCommitSubjectLen),
		)

		need := valLen + runeLen(line)
		if i > 0 {
			need++
		}
		if i < len(commits)-1 {
			need += reserved
		}

		if i > 0 && need > discord.MaxFieldValueLen {
			break
		}

		if i > 0 {
			sb.WriteByte('\n')
			valLen++
		}

		sb.WriteString(line)
		valLen += runeLen(line)
		listed++
	}

	if listed < len(commits) {
		sb.WriteString(moreSuffix(len(commits) - listed))
	}

	return sb.String()
}

// fileListFields returns the fields listing the paths of c.
// The listed paths are distributed over as many fields as needed to stay
// within discord.MaxFieldValueLen, a path is only shortened when it alone
// exceeds the limit.
func fileListFields(c *fileCategory) []*discord.Field {
	listed := c.paths
	var suffix string

	if len(listed) > MaxListedFiles {
		listed = listed[:MaxListedFiles]
		suffix = moreSuffix(len(c.paths) - MaxListedFiles)
	}

	var values []string
	var sb strings.Builder
	var valLen int

	for i, p := range listed {
		line := "`" + stringutils.Ellipsize(p, maxListedPathLen) + "`"

		need := valLen + runeLen(line)
		if valLen > 0 {
			need++
		}
		if i == len(listed)-1 {
			need += runeLen(suffix)
		}

		if valLen > 0 && need > discord.MaxFieldValueLen {
			values = append(values, sb.String())
			sb.Reset()
			valLen = 0
		}

		if valLen > 0 {
			sb.WriteByte('\n')
			valLen++
		}

		sb.WriteString(line)
		valLen += runeLen(line)
	}

	sb.WriteString(suffix)
	values = append(values, sb.String())

	result := make([]*discord.Field, 0, len(values))
	for i, v := range values {
		name := fmt.Sprintf("%s (%d)", c.name, len(c.paths))
		if i > 0 {
			name = fmt.Sprintf("%s (%d, continued)", c.name, len(c.paths))
		}

		result = append(result, &discord.Field{Name: name, Value: v})
	}

	return result
}

// fileListEmbeds returns the secondary embeds containing fields.
// A new embed is started when adding a field would exceed the field count
// or the embed size limit.
func (b *Builder) fileListEmbeds(ev *event.Push, c *fileCategory, base *discord.Embed, fields []*discord.Field) []*discord.Embed {
	var result []*discord.Embed
	var cur *discord.Embed

	latest := ev.Commits[len(ev.Commits)-1]

	for _, f := range fields {
		if cur != nil && len(cur.Fields) < discord.MaxFields {
			cur.Fields = append(cur.Fields, f)
			if discord.SerializedSize(cur) < discord.MaxEmbedSize {
				continue
			}

			cur.Fields = cur.Fields[:len(cur.Fields)-1]
		}

		cur = &discord.Embed{
			Title:       fmt.Sprintf("%s in %s", c.name, ev.Repository.String()),
			URL:         base.URL,
			Description: fmt.Sprintf("Branch %s, commit %s", branchName(ev), latest.ShortID()),
			Color:       b.color,
			Timestamp:   base.Timestamp,
			Fields:      []*discord.Field{f},
		}
		result = append(result, cur)
	}

	return result
}

// fitsFieldBlock returns true if the serialized size of fields with
// candidates appended is below FieldBlockThreshold.
func fitsFieldBlock(fields []*discord.Field, candidates []*discord.Field) bool {
	all := make([]*discord.Field, 0, len(fields)+len(candidates))
	all = append(all, fields...)
	all = append(all, candidates...)

	return discord.SerializedSize(all) < FieldBlockThreshold
}

func sumLineStats(logger *zap.Logger, commits []*event.Commit, enr *Enrichment) (sum event.LineStats, found bool) {
	for _, c := range commits {
		details := enr.Get(c.ID)
		if details == nil || details.Stats == nil {
			logger.Debug(
				"line stats of commit unavailable, not included in sum",
				logfields.Event("commit_line_stats_missing"),
				logfields.PushedCommit(c.ID),
			)
			continue
		}

		sum.Add(details.Stats)
		found = true
	}

	return sum, found
}

func pluralize(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}

	return fmt.Sprintf("%d %ss", n, word)
}

func (b *Builder) buildIssue(ev *event.Issue) ([]*discord.Embed, error) {
	if ev.Repository.Owner == "" || ev.Repository.Name == "" {
		return nil, event.ErrNoRepository
	}

	e := discord.Embed{
		Title:       fmt.Sprintf("Issue opened: #%d %s", ev.Number, ev.Title),
		URL:         ev.URL,
		Description: ev.Body,
		Color:       b.color,
		Footer:      &discord.Footer{Text: fmt.Sprintf("Issue #%d", ev.Number)},
		Timestamp:   timestamp(ev.CreatedAt),
	}

	if e.Description == "" {
		e.Description = "No description provided."
	}

	author := discord.Author{
		Name:    ev.Author.Login,
		URL:     ev.Author.ProfileURL,
		IconURL: ev.Author.AvatarURL,
	}

	if author.Name == "" {
		author.Name = "Unknown"
	} else {
		if author.URL == "" {
			author.URL = githubURL + "/" + ev.Author.Login
		}
		if author.IconURL == "" {
			author.IconURL = githubURL + "/" + ev.Author.Login + ".png"
		}
	}

	e.Author = &author

	e.AddField("Repository", ev.Repository.String(), true)
	if len(ev.Labels) > 0 {
		e.AddField("Labels", strings.Join(ev.Labels, ", "), true)
	}

	discord.Clamp(&e)

	return []*discord.Embed{&e}, nil
}
