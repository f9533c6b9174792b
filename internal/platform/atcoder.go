package platform

import (
	"context"
	"net/http"
	"net/url"
	"sync"
)

// AtCoderAdapter combines the AtCoder Problems API (kenkoooo.com) for solve
// counts with atcoder.jp's public history JSON for ratings.
type AtCoderAdapter struct {
	problemsURL string
	siteURL     string
	client      *http.Client
}

func NewAtCoderAdapter() *AtCoderAdapter {
	return &AtCoderAdapter{
		problemsURL: "https://kenkoooo.com/atcoder",
		siteURL:     "https://atcoder.jp",
		client:      SharedHTTPClient,
	}
}

func (a *AtCoderAdapter) Capability() Capability {
	return Capability{
		ID:             AtCoder,
		Name:           "AtCoder",
		APIType:        "unofficial",
		HasRating:      true,
		HasContests:    true,
		HasSubmissions: false,
	}
}

type acRankResponse struct {
	Count *int `json:"count"`
	Rank  int  `json:"rank"`
}

type acContest struct {
	ContestName string `json:"ContestName"`
	Place       int    `json:"Place"`
	OldRating   int    `json:"OldRating"`
	NewRating   int    `json:"NewRating"`
	Performance int    `json:"Performance"`
	IsRated     bool   `json:"IsRated"`
	EndTime     string `json:"EndTime"`
}

func (a *AtCoderAdapter) fetchRank(ctx context.Context, username string) (*acRankResponse, error) {
	u := a.problemsURL + "/atcoder-api/v3/user/ac_rank?" + url.Values{"user": {username}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, Errf(KindUpstreamUnavailable, "atcoder: %v", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, wrapTransport(AtCoder, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(AtCoder, resp.StatusCode)
	}

	var data acRankResponse
	if err := decodeJSON(AtCoder, resp.Body, &data); err != nil {
		return nil, err
	}
	if data.Count == nil {
		return nil, Errf(KindNotFound, "atcoder: user has no accepted submissions")
	}
	return &data, nil
}

func (a *AtCoderAdapter) fetchHistory(ctx context.Context, username string) ([]acContest, error) {
	u := a.siteURL + "/users/" + url.PathEscape(username) + "/history/json"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, Errf(KindUpstreamUnavailable, "atcoder: %v", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, wrapTransport(AtCoder, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(AtCoder, resp.StatusCode)
	}

	var contests []acContest
	if err := decodeJSON(AtCoder, resp.Body, &contests); err != nil {
		return nil, err
	}
	return contests, nil
}

// FetchProfile treats either sub-call as identity-defining: the fetch only
// fails when both fail, matching how sparse AtCoder's public data is.
func (a *AtCoderAdapter) FetchProfile(ctx context.Context, username string) (RawProfile, error) {
	var (
		wg       sync.WaitGroup
		rank     *acRankResponse
		contests []acContest
		rankErr, histErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		rank, rankErr = a.fetchRank(ctx, username)
	}()
	go func() {
		defer wg.Done()
		contests, histErr = a.fetchHistory(ctx, username)
	}()
	wg.Wait()

	if rankErr != nil && histErr != nil {
		return nil, rankErr
	}

	raw := RawProfile{"username": username}

	if rankErr == nil {
		raw["problemsSolved"] = *rank.Count
		raw["acRank"] = rank.Rank
	}

	if histErr == nil {
		list := make([]map[string]any, 0, len(contests))
		currentRating, maxRating := 0, 0
		for _, c := range contests {
			if c.IsRated {
				currentRating = c.NewRating
				if c.NewRating > maxRating {
					maxRating = c.NewRating
				}
			}
			list = append(list, map[string]any{
				"contestName":  c.ContestName,
				"place":        c.Place,
				"oldRating":    c.OldRating,
				"newRating":    c.NewRating,
				"ratingChange": c.NewRating - c.OldRating,
				"endTime":      c.EndTime,
			})
		}
		if len(list) > 20 {
			list = list[len(list)-20:]
		}
		raw["rating"] = currentRating
		raw["maxRating"] = maxRating
		raw["contestsParticipated"] = len(contests)
		raw["contestHistory"] = list
	}

	return raw, nil
}
