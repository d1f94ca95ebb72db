package interfaces

import (
	"context"
	"time"
)

// Archiver owns the result-bundle lifecycle and is the only mutator of the
// archive directory tree. An archive's presence means the group was
// archived; its absence means "not yet", never an error.
type Archiver interface {
	// Archive bundles outputs/<gid> into results/<gid>.zip and removes the
	// raw directory. Returns created=false when there is nothing to
	// archive. A partially written zip is never promoted.
	Archive(groupID string) (created bool, err error)

	// Remove deletes the archive file if present; reports whether it existed
	Remove(groupID string) bool

	// Ensure returns the archive path, building it lazily. ErrNotFound when
	// neither raw data nor an archive exists.
	Ensure(groupID string) (string, error)

	// Reap deletes archives older than retention together with their raw
	// directories and store rows; returns the removed group ids.
	Reap(ctx context.Context, retention time.Duration) ([]string, error)
}
