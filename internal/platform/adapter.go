package platform

import "context"

// RawProfile is the adapter output before normalization: the upstream fields
// under each platform's own names, assembled from 1-3 sub-calls. The
// normalizer owns the mapping to the canonical schema.
type RawProfile map[string]any

// Capability declares which canonical fields a platform can populate.
type Capability struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	APIType        string `json:"api_type"`
	HasRating      bool   `json:"has_rating"`
	HasContests    bool   `json:"has_contests"`
	HasSubmissions bool   `json:"has_submissions"`
}

// Adapter fetches a raw profile from one upstream platform.
//
// The identity-defining call (does this username exist) is mandatory; optional
// sub-calls (contest history, submissions) degrade to empty fields on failure.
// Adapters never retry; that is the caller's decision.
type Adapter interface {
	Capability() Capability
	FetchProfile(ctx context.Context, username string) (RawProfile, error)
}
