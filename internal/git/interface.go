package git

import (
	"context"
)

// Client defines the interface for Git operations
type Client interface {
	// Open makes the tree of a repository at a revision readable. Remote
	// repositories are cloned into memory; local paths are opened in place.
	Open(ctx context.Context, opts OpenOptions) (*Snapshot, error)
}

// OpenOptions selects a repository and revision
type OpenOptions struct {
	URL string
	// Revision is a branch, tag, full ref or commit SHA. Empty means the
	// remote default branch (HEAD for local repositories).
	Revision string
	// Token authenticates HTTPS clones when set
	Token string
}
