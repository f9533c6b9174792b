package platform

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newGitHubTestServer(t *testing.T, handlers map[string]http.HandlerFunc) *GitHubAdapter {
	t.Helper()
	mux := http.NewServeMux()
	for path, h := range handlers {
		mux.HandleFunc(path, h)
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return &GitHubAdapter{baseURL: srv.URL, token: "test-token", client: srv.Client()}
}

func TestGitHub_FetchProfile(t *testing.T) {
	recentEvent := time.Now().UTC().Add(-24 * time.Hour).Format(time.RFC3339)
	staleEvent := time.Now().UTC().AddDate(0, 0, -60).Format(time.RFC3339)

	adapter := newGitHubTestServer(t, map[string]http.HandlerFunc{
		"/users/octocat": func(w http.ResponseWriter, r *http.Request) {
			if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
				t.Errorf("expected bearer token, got %q", got)
			}
			w.Write([]byte(`{"login":"octocat","name":"The Octocat","public_repos":8,
				"followers":100,"following":9,"created_at":"2011-01-25T18:44:36Z"}`))
		},
		"/users/octocat/repos": func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`[
				{"name":"hello","full_name":"octocat/hello","stargazers_count":200,"forks_count":50,"language":"Go","html_url":"https://github.com/octocat/hello"},
				{"name":"world","full_name":"octocat/world","stargazers_count":50,"forks_count":10,"language":"Go","html_url":"https://github.com/octocat/world"}
			]`))
		},
		"/users/octocat/events/public": func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprintf(w, `[
				{"type":"PushEvent","created_at":%q},
				{"type":"PullRequestEvent","created_at":%q},
				{"type":"PushEvent","created_at":%q}
			]`, recentEvent, recentEvent, staleEvent)
		},
	})

	raw, err := adapter.FetchProfile(context.Background(), "octocat")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if raw["username"] != "octocat" {
		t.Errorf("expected username octocat, got %v", raw["username"])
	}
	if raw["totalStars"] != 250 {
		t.Errorf("expected 250 total stars, got %v", raw["totalStars"])
	}
	languages, ok := raw["languages"].(map[string]int)
	if !ok || languages["Go"] != 2 {
		t.Errorf("unexpected language counts: %v", raw["languages"])
	}
	// the 60-day-old push falls outside the 30-day window
	if raw["recentContributions"] != 2 {
		t.Errorf("expected 2 recent contributions, got %v", raw["recentContributions"])
	}
	if raw["pushEvents"] != 1 {
		t.Errorf("expected 1 recent push event, got %v", raw["pushEvents"])
	}
}

func TestGitHub_UserNotFound(t *testing.T) {
	adapter := newGitHubTestServer(t, map[string]http.HandlerFunc{
		"/": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"message":"Not Found"}`))
		},
	})

	_, err := adapter.FetchProfile(context.Background(), "ghost-user")
	if err == nil {
		t.Fatal("expected error for missing user")
	}
	if KindOf(err) != KindNotFound {
		t.Errorf("expected not_found, got %s", KindOf(err))
	}
}

func TestGitHub_QuotaExhausted(t *testing.T) {
	adapter := newGitHubTestServer(t, map[string]http.HandlerFunc{
		"/": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte(`{"message":"API rate limit exceeded"}`))
		},
	})

	_, err := adapter.FetchProfile(context.Background(), "octocat")
	if err == nil {
		t.Fatal("expected error on quota exhaustion")
	}
	if KindOf(err) != KindRateLimited {
		t.Errorf("expected rate_limited, got %s", KindOf(err))
	}
}

func TestGitHub_OptionalCallsDegrade(t *testing.T) {
	adapter := newGitHubTestServer(t, map[string]http.HandlerFunc{
		"/users/octocat": func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"login":"octocat","public_repos":8}`))
		},
		"/users/octocat/repos": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		},
		"/users/octocat/events/public": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		},
	})

	raw, err := adapter.FetchProfile(context.Background(), "octocat")
	if err != nil {
		t.Fatalf("identity succeeded, optional calls must not fail the fetch: %v", err)
	}
	if _, ok := raw["totalStars"]; ok {
		t.Error("failed repo call must not produce star counts")
	}
	if _, ok := raw["recentContributions"]; ok {
		t.Error("failed events call must not produce contribution counts")
	}
}
