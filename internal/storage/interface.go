package storage

import "context"

// Archiver stores the raw upstream payload captured by a successful sync.
type Archiver interface {
	ArchiveSnapshot(ctx context.Context, platform, username string, payload []byte) (string, error)
}
