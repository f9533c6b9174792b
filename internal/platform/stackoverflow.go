package platform

import (
	"context"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// StackOverflowAdapter talks to the Stack Exchange API. Usernames are display
// names and not unique, so a name search resolves the user id first; numeric
// input is taken as a user id directly.
type StackOverflowAdapter struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewStackOverflowAdapter(apiKey string) *StackOverflowAdapter {
	return &StackOverflowAdapter{
		baseURL: "https://api.stackexchange.com/2.3",
		apiKey:  apiKey,
		client:  SharedHTTPClient,
	}
}

func (a *StackOverflowAdapter) Capability() Capability {
	return Capability{
		ID:             StackOverflow,
		Name:           "Stack Overflow",
		APIType:        "official",
		HasRating:      false,
		HasContests:    false,
		HasSubmissions: false,
	}
}

type soUser struct {
	UserID      int64  `json:"user_id"`
	DisplayName string `json:"display_name"`
	Reputation  int    `json:"reputation"`
	Location    string `json:"location"`
	BadgeCounts struct {
		Gold   int `json:"gold"`
		Silver int `json:"silver"`
		Bronze int `json:"bronze"`
	} `json:"badge_counts"`
	QuestionCount int `json:"question_count"`
	AnswerCount   int `json:"answer_count"`
}

type soUsersResponse struct {
	Items []soUser `json:"items"`
}

type soTagsResponse struct {
	Items []struct {
		TagName       string `json:"tag_name"`
		QuestionScore int    `json:"question_score"`
		AnswerScore   int    `json:"answer_score"`
		QuestionCount int    `json:"question_count"`
		AnswerCount   int    `json:"answer_count"`
	} `json:"items"`
}

func (a *StackOverflowAdapter) get(ctx context.Context, path string, params url.Values, out any) error {
	params.Set("site", "stackoverflow")
	if a.apiKey != "" {
		params.Set("key", a.apiKey)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return Errf(KindUpstreamUnavailable, "stackoverflow: %v", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := a.client.Do(req)
	if err != nil {
		return wrapTransport(StackOverflow, err)
	}
	defer resp.Body.Close()

	// backoff violations come back as 400 with an error payload
	if resp.StatusCode == http.StatusBadRequest {
		return Errf(KindRateLimited, "stackoverflow: throttled")
	}
	if resp.StatusCode != http.StatusOK {
		return statusError(StackOverflow, resp.StatusCode)
	}
	return decodeJSON(StackOverflow, resp.Body, out)
}

var soNumericID = regexp.MustCompile(`^\d+$`)

func (a *StackOverflowAdapter) resolveUserID(ctx context.Context, username string) (int64, error) {
	if soNumericID.MatchString(username) {
		return strconv.ParseInt(username, 10, 64)
	}

	var found soUsersResponse
	err := a.get(ctx, "/users", url.Values{
		"inname":   {username},
		"pagesize": {"10"},
		"order":    {"desc"},
		"sort":     {"reputation"},
	}, &found)
	if err != nil {
		return 0, err
	}
	if len(found.Items) == 0 {
		return 0, Errf(KindNotFound, "stackoverflow: no user matches %q", username)
	}

	// prefer an exact display-name match; fall back to the top result
	for _, u := range found.Items {
		if strings.EqualFold(u.DisplayName, username) {
			return u.UserID, nil
		}
	}
	return found.Items[0].UserID, nil
}

// FetchProfile resolves the user id, then fetches the user record (identity)
// and top tags (optional).
func (a *StackOverflowAdapter) FetchProfile(ctx context.Context, username string) (RawProfile, error) {
	userID, err := a.resolveUserID(ctx, username)
	if err != nil {
		return nil, err
	}

	idStr := strconv.FormatInt(userID, 10)

	var users soUsersResponse
	if err := a.get(ctx, "/users/"+idStr, url.Values{}, &users); err != nil {
		return nil, err
	}
	if len(users.Items) == 0 {
		return nil, Errf(KindNotFound, "stackoverflow: user %d not found", userID)
	}
	user := users.Items[0]

	raw := RawProfile{
		"userId":        user.UserID,
		"displayName":   user.DisplayName,
		"reputation":    user.Reputation,
		"location":      user.Location,
		"badgeGold":     user.BadgeCounts.Gold,
		"badgeSilver":   user.BadgeCounts.Silver,
		"badgeBronze":   user.BadgeCounts.Bronze,
		"questionCount": user.QuestionCount,
		"answerCount":   user.AnswerCount,
	}

	var tags soTagsResponse
	if err := a.get(ctx, "/users/"+idStr+"/top-tags", url.Values{"pagesize": {"10"}}, &tags); err == nil {
		top := make([]map[string]any, 0, len(tags.Items))
		for _, t := range tags.Items {
			top = append(top, map[string]any{
				"tagName":       t.TagName,
				"questionScore": t.QuestionScore,
				"answerScore":   t.AnswerScore,
				"questionCount": t.QuestionCount,
				"answerCount":   t.AnswerCount,
			})
		}
		raw["topTags"] = top
	}

	return raw, nil
}
