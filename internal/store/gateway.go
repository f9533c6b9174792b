package store

import (
	"context"
	"errors"
	"time"

	"codetrack/internal/models"
)

// ErrNoAccount is returned when the requested account does not exist.
var ErrNoAccount = errors.New("account_not_found")

// Gateway is the durable store for platform accounts. All operations are
// atomic per key; the engine never issues multi-key transactions.
type Gateway interface {
	Get(ctx context.Context, ownerID, platform, username string) (*models.PlatformAccount, error)
	GetByID(ctx context.Context, id int64, ownerID string) (*models.PlatformAccount, error)
	Upsert(ctx context.Context, account *models.PlatformAccount) (*models.PlatformAccount, error)
	Delete(ctx context.Context, id int64, ownerID string) error
	ListByOwner(ctx context.Context, ownerID string) ([]models.PlatformAccount, error)
	// ListStale returns accounts whose last sync is older than the cutoff
	// (never-synced accounts included), for the resync worker.
	ListStale(ctx context.Context, cutoff time.Time, limit int) ([]models.PlatformAccount, error)
	Ping(ctx context.Context) error
}
