package models

import (
	"encoding/json"
	"time"
)

// PlatformAccount is one connected account on one external platform.
// (OwnerID, Platform, PlatformUsername) is unique; the same owner may connect
// several usernames on the same platform.
type PlatformAccount struct {
	ID               int64             `json:"id"`
	OwnerID          string            `json:"owner_id"`
	Platform         string            `json:"platform"`
	PlatformUsername string            `json:"platform_username"`
	IsVerified       bool              `json:"is_verified"`
	LastSyncedAt     *time.Time        `json:"last_synced_at,omitempty"`
	ProfileData      *CanonicalProfile `json:"profile_data,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// CanonicalProfile is the platform-agnostic snapshot stored after a successful
// sync. Rating fields are nil for platforms without a rating system; callers
// should branch on the platform capability descriptor, not on field presence.
type CanonicalProfile struct {
	Rating               *int              `json:"rating"`
	MaxRating            *int              `json:"max_rating"`
	ProblemsSolved       int               `json:"problems_solved"`
	Easy                 int               `json:"easy"`
	Medium               int               `json:"medium"`
	Hard                 int               `json:"hard"`
	ContestsParticipated int               `json:"contests_participated"`
	ContestHistory       []ContestEntry    `json:"contest_history"`
	RecentSubmissions    []SubmissionEntry `json:"recent_submissions"`
	Extras               map[string]any    `json:"extras,omitempty"`
}

type ContestEntry struct {
	Name         string    `json:"name"`
	Rank         int       `json:"rank"`
	OldRating    int       `json:"old_rating"`
	NewRating    int       `json:"new_rating"`
	RatingChange int       `json:"rating_change"`
	Timestamp    time.Time `json:"timestamp"`
}

type SubmissionEntry struct {
	ProblemID string    `json:"problem_id"`
	Title     string    `json:"title"`
	Status    string    `json:"status"`
	Language  string    `json:"language"`
	Tags      []string  `json:"tags"`
	Timestamp time.Time `json:"timestamp"`
}

// Submission is the cross-platform view consumed by analytics.
type Submission struct {
	Platform    string    `json:"platform"`
	ProblemID   string    `json:"problem_id"`
	ProblemName string    `json:"problem_name"`
	Difficulty  string    `json:"difficulty"` // easy | medium | hard
	Status      string    `json:"status"`     // solved | attempted
	Tags        []string  `json:"tags"`
	SubmittedAt time.Time `json:"submitted_at"`
}

const (
	StatusSolved    = "solved"
	StatusAttempted = "attempted"
)

// DailyActivity is one calendar day of aggregated activity.
type DailyActivity struct {
	Date            string   `json:"date"` // YYYY-MM-DD
	ProblemsSolved  int      `json:"problems_solved"`
	PlatformsActive []string `json:"platforms_active"`
}

// SyncResult is produced for every account in a sync, success or failure.
type SyncResult struct {
	Platform  string            `json:"platform"`
	AccountID int64             `json:"account_id"`
	Success   bool              `json:"success"`
	Data      *CanonicalProfile `json:"data,omitempty"`
	ErrorKind string            `json:"error_kind,omitempty"`
	Error     string            `json:"error,omitempty"`
}

// TopicStat is one row of the topic breakdown.
type TopicStat struct {
	Topic      string `json:"topic"`
	Solved     int    `json:"solved"`
	Total      int    `json:"total"`
	Percentage int    `json:"percentage"`
}

// EmptyProfile returns the defaults an account carries before its first
// successful sync.
func EmptyProfile() *CanonicalProfile {
	return &CanonicalProfile{
		ContestHistory:    []ContestEntry{},
		RecentSubmissions: []SubmissionEntry{},
	}
}

// MarshalProfile renders a profile for storage; nil becomes empty defaults so
// stored rows never carry SQL NULL json.
func MarshalProfile(p *CanonicalProfile) ([]byte, error) {
	if p == nil {
		p = EmptyProfile()
	}
	return json.Marshal(p)
}

const DateLayout = "2006-01-02"
