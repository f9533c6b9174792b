package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"net/http"
	"sync"
)

// LeetCodeAdapter talks to the unofficial LeetCode GraphQL API.
type LeetCodeAdapter struct {
	baseURL string
	client  *http.Client
}

func NewLeetCodeAdapter() *LeetCodeAdapter {
	return &LeetCodeAdapter{
		baseURL: "https://leetcode.com/graphql",
		client:  SharedHTTPClient,
	}
}

func (a *LeetCodeAdapter) Capability() Capability {
	return Capability{
		ID:             LeetCode,
		Name:           "LeetCode",
		APIType:        "unofficial",
		HasRating:      true,
		HasContests:    true,
		HasSubmissions: true,
	}
}

const lcProfileQuery = `
query getUserProfile($username: String!) {
    matchedUser(username: $username) {
        username
        profile { realName userAvatar ranking reputation }
        submitStatsGlobal { acSubmissionNum { difficulty count } }
    }
}`

const lcContestQuery = `
query userContestRankingInfo($username: String!) {
    userContestRanking(username: $username) {
        attendedContestsCount
        rating
        globalRanking
        topPercentage
    }
    userContestRankingHistory(username: $username) {
        attended
        rating
        ranking
        contest { title startTime }
    }
}`

const lcSubmissionsQuery = `
query recentSubmissions($username: String!, $limit: Int!) {
    recentSubmissionList(username: $username, limit: $limit) {
        title
        titleSlug
        timestamp
        statusDisplay
        lang
    }
}`

type lcProfileData struct {
	MatchedUser *struct {
		Username string `json:"username"`
		Profile  struct {
			RealName   string `json:"realName"`
			UserAvatar string `json:"userAvatar"`
			Ranking    int    `json:"ranking"`
			Reputation int    `json:"reputation"`
		} `json:"profile"`
		SubmitStatsGlobal struct {
			ACSubmissionNum []struct {
				Difficulty string `json:"difficulty"`
				Count      int    `json:"count"`
			} `json:"acSubmissionNum"`
		} `json:"submitStatsGlobal"`
	} `json:"matchedUser"`
}

type lcContestData struct {
	UserContestRanking *struct {
		AttendedContestsCount int     `json:"attendedContestsCount"`
		Rating                float64 `json:"rating"`
		GlobalRanking         int     `json:"globalRanking"`
		TopPercentage         float64 `json:"topPercentage"`
	} `json:"userContestRanking"`
	UserContestRankingHistory []struct {
		Attended bool    `json:"attended"`
		Rating   float64 `json:"rating"`
		Ranking  int     `json:"ranking"`
		Contest  struct {
			Title     string `json:"title"`
			StartTime int64  `json:"startTime"`
		} `json:"contest"`
	} `json:"userContestRankingHistory"`
}

type lcSubmissionsData struct {
	RecentSubmissionList []struct {
		Title         string `json:"title"`
		TitleSlug     string `json:"titleSlug"`
		Timestamp     string `json:"timestamp"`
		StatusDisplay string `json:"statusDisplay"`
		Lang          string `json:"lang"`
	} `json:"recentSubmissionList"`
}

func (a *LeetCodeAdapter) query(ctx context.Context, query string, variables map[string]any, out any) error {
	body, err := json.Marshal(map[string]any{"query": query, "variables": variables})
	if err != nil {
		return Errf(KindUpstreamUnavailable, "leetcode: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL, bytes.NewReader(body))
	if err != nil {
		return Errf(KindUpstreamUnavailable, "leetcode: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Referer", "https://leetcode.com")
	req.Header.Set("Origin", "https://leetcode.com")
	req.Header.Set("User-Agent", userAgent)

	resp, err := a.client.Do(req)
	if err != nil {
		return wrapTransport(LeetCode, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(LeetCode, resp.StatusCode)
	}

	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := decodeJSON(LeetCode, resp.Body, &envelope); err != nil {
		return err
	}
	if len(envelope.Errors) > 0 {
		return Errf(KindUpstreamUnavailable, "leetcode: %s", envelope.Errors[0].Message)
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return Errf(KindSchemaMismatch, "leetcode: unexpected payload: %v", err)
	}
	return nil
}

// FetchProfile runs the three GraphQL queries in parallel; matchedUser is the
// identity call.
func (a *LeetCodeAdapter) FetchProfile(ctx context.Context, username string) (RawProfile, error) {
	var (
		wg       sync.WaitGroup
		profile  lcProfileData
		contest  lcContestData
		recent   lcSubmissionsData
		profErr, contErr, subErr error
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		profErr = a.query(ctx, lcProfileQuery, map[string]any{"username": username}, &profile)
	}()
	go func() {
		defer wg.Done()
		contErr = a.query(ctx, lcContestQuery, map[string]any{"username": username}, &contest)
	}()
	go func() {
		defer wg.Done()
		subErr = a.query(ctx, lcSubmissionsQuery, map[string]any{"username": username, "limit": 20}, &recent)
	}()
	wg.Wait()

	if profErr != nil {
		return nil, profErr
	}
	if profile.MatchedUser == nil {
		return nil, Errf(KindNotFound, "leetcode: user not found")
	}
	user := profile.MatchedUser

	counts := map[string]int{}
	total := 0
	for _, stat := range user.SubmitStatsGlobal.ACSubmissionNum {
		if stat.Difficulty == "All" {
			total = stat.Count
			continue
		}
		counts[stat.Difficulty] = stat.Count
	}

	raw := RawProfile{
		"username":           user.Username,
		"realName":           user.Profile.RealName,
		"ranking":            user.Profile.Ranking,
		"reputation":         user.Profile.Reputation,
		"problemsSolved":     total,
		"solvedByDifficulty": counts,
	}

	if contErr == nil {
		if contest.UserContestRanking != nil {
			raw["rating"] = int(math.Round(contest.UserContestRanking.Rating))
			raw["contestsParticipated"] = contest.UserContestRanking.AttendedContestsCount
			raw["globalRanking"] = contest.UserContestRanking.GlobalRanking
		}
		history := make([]map[string]any, 0, len(contest.UserContestRankingHistory))
		maxRating := 0
		for _, c := range contest.UserContestRankingHistory {
			if !c.Attended {
				continue
			}
			r := int(math.Round(c.Rating))
			if r > maxRating {
				maxRating = r
			}
			history = append(history, map[string]any{
				"contestName": c.Contest.Title,
				"ranking":     c.Ranking,
				"rating":      r,
				"startTime":   c.Contest.StartTime,
			})
		}
		raw["contestHistory"] = history
		if maxRating > 0 {
			raw["maxRating"] = maxRating
		}
	}

	if subErr == nil {
		subs := make([]map[string]any, 0, len(recent.RecentSubmissionList))
		for _, s := range recent.RecentSubmissionList {
			subs = append(subs, map[string]any{
				"problemId": s.TitleSlug,
				"title":     s.Title,
				"status":    s.StatusDisplay,
				"language":  s.Lang,
				"timestamp": s.Timestamp,
			})
		}
		raw["recentSubmissions"] = subs
	}

	return raw, nil
}
