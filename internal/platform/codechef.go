package platform

import (
	"context"
	"net/http"
	"net/url"
)

// CodeChefAdapter uses the community rating API; CodeChef has no official
// public API for profiles.
type CodeChefAdapter struct {
	baseURL string
	client  *http.Client
}

func NewCodeChefAdapter() *CodeChefAdapter {
	return &CodeChefAdapter{
		baseURL: "https://competitive-rating.vercel.app",
		client:  SharedHTTPClient,
	}
}

func (a *CodeChefAdapter) Capability() Capability {
	return Capability{
		ID:             CodeChef,
		Name:           "CodeChef",
		APIType:        "unofficial",
		HasRating:      true,
		HasContests:    true,
		HasSubmissions: false,
	}
}

type ccResponse struct {
	Error              string `json:"error"`
	Username           string `json:"username"`
	Rating             int    `json:"rating"`
	Stars              int    `json:"stars"`
	GlobalRank         int    `json:"global_rank"`
	CountryRank        int    `json:"country_rank"`
	Country            string `json:"country"`
	ParticipationCount int    `json:"participation_count"`
	CompletelySolved   int    `json:"completely_solved"`
	PartiallySolved    int    `json:"partially_solved"`
}

// FetchProfile is a single call; everything rides on it.
func (a *CodeChefAdapter) FetchProfile(ctx context.Context, username string) (RawProfile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		a.baseURL+"/codechef/"+url.PathEscape(username), nil)
	if err != nil {
		return nil, Errf(KindUpstreamUnavailable, "codechef: %v", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, wrapTransport(CodeChef, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(CodeChef, resp.StatusCode)
	}

	var data ccResponse
	if err := decodeJSON(CodeChef, resp.Body, &data); err != nil {
		return nil, err
	}
	if data.Error != "" {
		return nil, Errf(KindNotFound, "codechef: %s", data.Error)
	}
	if data.Username == "" && data.Rating == 0 {
		return nil, Errf(KindNotFound, "codechef: user not found")
	}

	return RawProfile{
		"username":             data.Username,
		"rating":               data.Rating,
		"stars":                data.Stars,
		"globalRank":           data.GlobalRank,
		"countryRank":          data.CountryRank,
		"country":              data.Country,
		"contestsParticipated": data.ParticipationCount,
		"problemsSolved":       data.CompletelySolved + data.PartiallySolved,
		"completelySolved":     data.CompletelySolved,
		"partiallySolved":      data.PartiallySolved,
	}, nil
}
