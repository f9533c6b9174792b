package platform

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"time"
)

// GitHubAdapter talks to the official GitHub REST API. A token raises the
// rate limit but is optional.
type GitHubAdapter struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewGitHubAdapter(token string) *GitHubAdapter {
	return &GitHubAdapter{
		baseURL: "https://api.github.com",
		token:   token,
		client:  SharedHTTPClient,
	}
}

func (a *GitHubAdapter) Capability() Capability {
	return Capability{
		ID:             GitHub,
		Name:           "GitHub",
		APIType:        "official",
		HasRating:      false,
		HasContests:    false,
		HasSubmissions: false,
	}
}

type ghUser struct {
	Login       string `json:"login"`
	Name        string `json:"name"`
	Bio         string `json:"bio"`
	Company     string `json:"company"`
	Location    string `json:"location"`
	PublicRepos int    `json:"public_repos"`
	PublicGists int    `json:"public_gists"`
	Followers   int    `json:"followers"`
	Following   int    `json:"following"`
	CreatedAt   string `json:"created_at"`
}

type ghRepo struct {
	Name            string `json:"name"`
	FullName        string `json:"full_name"`
	Description     string `json:"description"`
	StargazersCount int    `json:"stargazers_count"`
	ForksCount      int    `json:"forks_count"`
	Language        string `json:"language"`
	HTMLURL         string `json:"html_url"`
}

type ghEvent struct {
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
}

func (a *GitHubAdapter) get(ctx context.Context, path string, params url.Values, out any) error {
	u := a.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Errf(KindUpstreamUnavailable, "github: %v", err)
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	req.Header.Set("User-Agent", userAgent)
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return wrapTransport(GitHub, err)
	}
	defer resp.Body.Close()

	// github reports exhausted quota as 403
	if resp.StatusCode == http.StatusForbidden {
		return Errf(KindRateLimited, "github: quota exhausted")
	}
	if resp.StatusCode != http.StatusOK {
		return statusError(GitHub, resp.StatusCode)
	}
	return decodeJSON(GitHub, resp.Body, out)
}

// FetchProfile fetches the user (identity), repos and public events in
// parallel; repos and events degrade to zeroes.
func (a *GitHubAdapter) FetchProfile(ctx context.Context, username string) (RawProfile, error) {
	var (
		wg     sync.WaitGroup
		user   ghUser
		repos  []ghRepo
		events []ghEvent
		userErr, repoErr, eventErr error
	)

	userPath := "/users/" + url.PathEscape(username)

	wg.Add(3)
	go func() {
		defer wg.Done()
		userErr = a.get(ctx, userPath, nil, &user)
	}()
	go func() {
		defer wg.Done()
		repoErr = a.get(ctx, userPath+"/repos", url.Values{
			"per_page": {"100"}, "sort": {"updated"}, "direction": {"desc"},
		}, &repos)
	}()
	go func() {
		defer wg.Done()
		eventErr = a.get(ctx, userPath+"/events/public", url.Values{"per_page": {"100"}}, &events)
	}()
	wg.Wait()

	if userErr != nil {
		return nil, userErr
	}

	raw := RawProfile{
		"username":    user.Login,
		"name":        user.Name,
		"bio":         user.Bio,
		"company":     user.Company,
		"location":    user.Location,
		"publicRepos": user.PublicRepos,
		"publicGists": user.PublicGists,
		"followers":   user.Followers,
		"following":   user.Following,
		"createdAt":   user.CreatedAt,
	}

	if repoErr == nil {
		totalStars, totalForks := 0, 0
		languages := map[string]int{}
		top := make([]map[string]any, 0, 5)
		for _, r := range repos {
			totalStars += r.StargazersCount
			totalForks += r.ForksCount
			if r.Language != "" {
				languages[r.Language]++
			}
			if len(top) < 5 {
				top = append(top, map[string]any{
					"name":     r.FullName,
					"stars":    r.StargazersCount,
					"forks":    r.ForksCount,
					"language": r.Language,
					"url":      r.HTMLURL,
				})
			}
		}
		raw["totalStars"] = totalStars
		raw["totalForks"] = totalForks
		raw["languages"] = languages
		raw["repoCount"] = len(repos)
		raw["topRepos"] = top
	}

	if eventErr == nil {
		cutoff := time.Now().AddDate(0, 0, -30)
		pushes, prs, issues, recent := 0, 0, 0, 0
		for _, e := range events {
			if e.CreatedAt.Before(cutoff) {
				continue
			}
			recent++
			switch e.Type {
			case "PushEvent":
				pushes++
			case "PullRequestEvent":
				prs++
			case "IssuesEvent":
				issues++
			}
		}
		raw["recentContributions"] = recent
		raw["pushEvents"] = pushes
		raw["pullRequestEvents"] = prs
		raw["issueEvents"] = issues
	}

	return raw, nil
}
