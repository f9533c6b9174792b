package platform

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
)

// CodeforcesAdapter talks to the official Codeforces API.
// https://codeforces.com/apiHelp
type CodeforcesAdapter struct {
	baseURL string
	client  *http.Client
}

func NewCodeforcesAdapter() *CodeforcesAdapter {
	return &CodeforcesAdapter{
		baseURL: "https://codeforces.com/api",
		client:  SharedHTTPClient,
	}
}

func (a *CodeforcesAdapter) Capability() Capability {
	return Capability{
		ID:             Codeforces,
		Name:           "Codeforces",
		APIType:        "official",
		HasRating:      true,
		HasContests:    true,
		HasSubmissions: true,
	}
}

// cfEnvelope is the common Codeforces response wrapper.
type cfEnvelope struct {
	Status  string          `json:"status"`
	Comment string          `json:"comment"`
}

type cfUserInfoResponse struct {
	cfEnvelope
	Result []struct {
		Handle        string `json:"handle"`
		Rating        int    `json:"rating"`
		MaxRating     int    `json:"maxRating"`
		Rank          string `json:"rank"`
		MaxRank       string `json:"maxRank"`
		Contribution  int    `json:"contribution"`
		FriendOfCount int    `json:"friendOfCount"`
		Organization  string `json:"organization"`
		Country       string `json:"country"`
	} `json:"result"`
}

type cfStatusResponse struct {
	cfEnvelope
	Result []struct {
		ID        int64 `json:"id"`
		ContestID int   `json:"contestId"`
		Problem   struct {
			Index string   `json:"index"`
			Name  string   `json:"name"`
			Tags  []string `json:"tags"`
		} `json:"problem"`
		Verdict             string `json:"verdict"`
		ProgrammingLanguage string `json:"programmingLanguage"`
		CreationTimeSeconds int64  `json:"creationTimeSeconds"`
	} `json:"result"`
}

type cfRatingResponse struct {
	cfEnvelope
	Result []struct {
		ContestName              string `json:"contestName"`
		Rank                     int    `json:"rank"`
		OldRating                int    `json:"oldRating"`
		NewRating                int    `json:"newRating"`
		RatingUpdateTimeSeconds  int64  `json:"ratingUpdateTimeSeconds"`
	} `json:"result"`
}

func (a *CodeforcesAdapter) get(ctx context.Context, path string, params url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return Errf(KindUpstreamUnavailable, "codeforces: %v", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := a.client.Do(req)
	if err != nil {
		return wrapTransport(Codeforces, err)
	}
	defer resp.Body.Close()

	// Codeforces signals user errors with a FAILED envelope on 400, so the
	// body is decoded before the status code is judged.
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusBadRequest {
		return statusError(Codeforces, resp.StatusCode)
	}
	return decodeJSON(Codeforces, resp.Body, out)
}

func cfCheck(env cfEnvelope) error {
	if env.Status == "OK" {
		return nil
	}
	if strings.Contains(strings.ToLower(env.Comment), "not found") {
		return Errf(KindNotFound, "codeforces: %s", env.Comment)
	}
	return Errf(KindUpstreamUnavailable, "codeforces: %s", env.Comment)
}

// FetchProfile runs user.info (identity), user.status and user.rating in
// parallel. Only the identity call is mandatory.
func (a *CodeforcesAdapter) FetchProfile(ctx context.Context, username string) (RawProfile, error) {
	var (
		wg      sync.WaitGroup
		info    cfUserInfoResponse
		status  cfStatusResponse
		ratings cfRatingResponse
		infoErr, statusErr, ratingErr error
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		infoErr = a.get(ctx, "/user.info", url.Values{"handles": {username}}, &info)
		if infoErr == nil {
			infoErr = cfCheck(info.cfEnvelope)
		}
	}()
	go func() {
		defer wg.Done()
		statusErr = a.get(ctx, "/user.status", url.Values{"handle": {username}, "count": {"200"}}, &status)
		if statusErr == nil {
			statusErr = cfCheck(status.cfEnvelope)
		}
	}()
	go func() {
		defer wg.Done()
		ratingErr = a.get(ctx, "/user.rating", url.Values{"handle": {username}}, &ratings)
		if ratingErr == nil {
			ratingErr = cfCheck(ratings.cfEnvelope)
		}
	}()
	wg.Wait()

	if infoErr != nil {
		return nil, infoErr
	}
	if len(info.Result) == 0 {
		return nil, Errf(KindNotFound, "codeforces: empty user.info result")
	}
	user := info.Result[0]

	raw := RawProfile{
		"handle":        user.Handle,
		"rating":        user.Rating,
		"maxRating":     user.MaxRating,
		"rank":          user.Rank,
		"maxRank":       user.MaxRank,
		"contribution":  user.Contribution,
		"friendOfCount": user.FriendOfCount,
		"organization":  user.Organization,
		"country":       user.Country,
	}

	if statusErr == nil {
		solved := make(map[string]struct{})
		subs := make([]map[string]any, 0, len(status.Result))
		for _, sub := range status.Result {
			problemID := strconv.Itoa(sub.ContestID) + sub.Problem.Index
			if sub.Verdict == "OK" {
				solved[problemID] = struct{}{}
			}
			if len(subs) < 20 {
				subs = append(subs, map[string]any{
					"problemId":           problemID,
					"problemName":         sub.Problem.Name,
					"tags":                sub.Problem.Tags,
					"verdict":             sub.Verdict,
					"programmingLanguage": sub.ProgrammingLanguage,
					"creationTimeSeconds": sub.CreationTimeSeconds,
				})
			}
		}
		raw["problemsSolved"] = len(solved)
		raw["recentSubmissions"] = subs
	}

	if ratingErr == nil {
		contests := make([]map[string]any, 0, len(ratings.Result))
		for _, c := range ratings.Result {
			contests = append(contests, map[string]any{
				"contestName":             c.ContestName,
				"rank":                    c.Rank,
				"oldRating":               c.OldRating,
				"newRating":               c.NewRating,
				"ratingChange":            c.NewRating - c.OldRating,
				"ratingUpdateTimeSeconds": c.RatingUpdateTimeSeconds,
			})
		}
		raw["contestsParticipated"] = len(contests)
		raw["ratingHistory"] = contests
	}

	return raw, nil
}
