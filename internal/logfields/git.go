package logfields

import "go.uber.org/zap"

func Repository(val string) zap.Field {
	return zap.String("git.repository", val)
}

func RepositoryOwner(val string) zap.Field {
	return zap.String("github.repository_owner", val)
}

func Branch(val string) zap.Field {
	return zap.String("git.branch", val)
}

func Commit(val string) zap.Field {
	return zap.String("git.commit", val)
}

// PushedCommit identifies one of the commits of a push event, Commit is the
// head commit.
func PushedCommit(val string) zap.Field {
	return zap.String("git.pushed_commit", val)
}

func Issue(val int) zap.Field {
	return zap.Int("github.issue", val)
}
