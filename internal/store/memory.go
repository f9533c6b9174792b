package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"codetrack/internal/models"
)

// Memory is an in-process Gateway used as a test double. Production code
// wires Postgres.
type Memory struct {
	mu       sync.Mutex
	nextID   int64
	accounts map[int64]*models.PlatformAccount
}

func NewMemory() *Memory {
	return &Memory{
		nextID:   1,
		accounts: make(map[int64]*models.PlatformAccount),
	}
}

func (m *Memory) find(ownerID, platform, username string) *models.PlatformAccount {
	for _, a := range m.accounts {
		if a.OwnerID == ownerID && a.Platform == platform && a.PlatformUsername == username {
			return a
		}
	}
	return nil
}

func copyAccount(a *models.PlatformAccount) *models.PlatformAccount {
	cp := *a
	if a.LastSyncedAt != nil {
		ts := *a.LastSyncedAt
		cp.LastSyncedAt = &ts
	}
	if a.ProfileData != nil {
		pd := *a.ProfileData
		if pd.Rating != nil {
			r := *pd.Rating
			pd.Rating = &r
		}
		if pd.MaxRating != nil {
			r := *pd.MaxRating
			pd.MaxRating = &r
		}
		pd.ContestHistory = append([]models.ContestEntry(nil), pd.ContestHistory...)
		pd.RecentSubmissions = append([]models.SubmissionEntry(nil), pd.RecentSubmissions...)
		cp.ProfileData = &pd
	}
	return &cp
}

func (m *Memory) Get(_ context.Context, ownerID, platform, username string) (*models.PlatformAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a := m.find(ownerID, platform, username); a != nil {
		return copyAccount(a), nil
	}
	return nil, ErrNoAccount
}

func (m *Memory) GetByID(_ context.Context, id int64, ownerID string) (*models.PlatformAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.accounts[id]; ok && a.OwnerID == ownerID {
		return copyAccount(a), nil
	}
	return nil, ErrNoAccount
}

func (m *Memory) Upsert(_ context.Context, account *models.PlatformAccount) (*models.PlatformAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	existing := m.find(account.OwnerID, account.Platform, account.PlatformUsername)
	if existing == nil {
		cp := copyAccount(account)
		cp.ID = m.nextID
		m.nextID++
		cp.CreatedAt = now
		cp.UpdatedAt = now
		if cp.ProfileData == nil {
			cp.ProfileData = models.EmptyProfile()
		}
		m.accounts[cp.ID] = cp
		return copyAccount(cp), nil
	}

	// is_verified only transitions false -> true
	existing.IsVerified = existing.IsVerified || account.IsVerified
	if account.LastSyncedAt != nil {
		existing.LastSyncedAt = account.LastSyncedAt
	}
	if account.ProfileData != nil {
		pd := *account.ProfileData
		existing.ProfileData = &pd
	}
	existing.UpdatedAt = now
	return copyAccount(existing), nil
}

func (m *Memory) Delete(_ context.Context, id int64, ownerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.accounts[id]; ok && a.OwnerID == ownerID {
		delete(m.accounts, id)
		return nil
	}
	return ErrNoAccount
}

func (m *Memory) ListByOwner(_ context.Context, ownerID string) ([]models.PlatformAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.PlatformAccount
	for _, a := range m.accounts {
		if a.OwnerID == ownerID {
			out = append(out, *copyAccount(a))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Platform != out[j].Platform {
			return out[i].Platform < out[j].Platform
		}
		return out[i].PlatformUsername < out[j].PlatformUsername
	})
	return out, nil
}

func (m *Memory) ListStale(_ context.Context, cutoff time.Time, limit int) ([]models.PlatformAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.PlatformAccount
	for _, a := range m.accounts {
		if a.LastSyncedAt == nil || a.LastSyncedAt.Before(cutoff) {
			out = append(out, *copyAccount(a))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		li, lj := out[i].LastSyncedAt, out[j].LastSyncedAt
		if li == nil {
			return true
		}
		if lj == nil {
			return false
		}
		return li.Before(*lj)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) Ping(ctx context.Context) error {
	return nil
}
