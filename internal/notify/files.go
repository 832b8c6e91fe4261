package notify

import (
	"github.com/simplesurance/pushcord/internal/event"
	"github.com/simplesurance/pushcord/internal/orderedmap"
)

type changedFiles struct {
	Added    []string
	Modified []string
	Removed  []string
}

type fileCategory struct {
	name  string
	paths []string
}

func (c *changedFiles) categories() []*fileCategory {
	return []*fileCategory{
		{name: "Added Files", paths: c.Added},
		{name: "Modified Files", paths: c.Modified},
		{name: "Removed Files", paths: c.Removed},
	}
}

// Len returns the number of paths in all categories.
func (c *changedFiles) Len() int {
	return len(c.Added) + len(c.Modified) + len(c.Removed)
}

// aggregateFiles merges the changed files of all commits per category.
// Paths are deduplicated, the order is the order in which they appear first.
// If enrichment contains a file list for a commit, it is used instead of the
// one from the event.
func aggregateFiles(commits []*event.Commit, enr *Enrichment) *changedFiles {
	added := orderedmap.New[string, struct{}]()
	modified := orderedmap.New[string, struct{}]()
	removed := orderedmap.New[string, struct{}]()

	for _, c := range commits {
		files := &c.Files
		if details := enr.Get(c.ID); details != nil && !details.Files.IsEmpty() {
			files = details.Files
		}

		for _, p := range files.Added {
			added.EnqueueIfNotExist(p, struct{}{})
		}

		for _, p := range files.Modified {
			modified.EnqueueIfNotExist(p, struct{}{})
		}

		for _, p := range files.Removed {
			removed.EnqueueIfNotExist(p, struct{}{})
		}
	}

	return &changedFiles{
		Added:    added.Keys(),
		Modified: modified.Keys(),
		Removed:  removed.Keys(),
	}
}
