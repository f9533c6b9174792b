package platform

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newCodeforcesTestServer(t *testing.T, handlers map[string]http.HandlerFunc) *CodeforcesAdapter {
	t.Helper()
	mux := http.NewServeMux()
	for path, h := range handlers {
		mux.HandleFunc(path, h)
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return &CodeforcesAdapter{baseURL: srv.URL, client: srv.Client()}
}

func TestCodeforces_FetchProfile(t *testing.T) {
	adapter := newCodeforcesTestServer(t, map[string]http.HandlerFunc{
		"/user.info": func(w http.ResponseWriter, r *http.Request) {
			if got := r.URL.Query().Get("handles"); got != "tourist" {
				t.Errorf("expected handles=tourist, got %q", got)
			}
			w.Write([]byte(`{"status":"OK","result":[{
				"handle":"tourist","rating":3800,"maxRating":3979,
				"rank":"legendary grandmaster","maxRank":"legendary grandmaster",
				"contribution":120,"friendOfCount":30000,
				"organization":"ITMO University","country":"Belarus"}]}`))
		},
		"/user.status": func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"status":"OK","result":[
				{"id":1,"contestId":1900,"problem":{"index":"A","name":"Cutting","tags":["greedy"]},
				 "verdict":"OK","programmingLanguage":"GNU C++20","creationTimeSeconds":1700000100},
				{"id":2,"contestId":1900,"problem":{"index":"A","name":"Cutting","tags":["greedy"]},
				 "verdict":"WRONG_ANSWER","programmingLanguage":"GNU C++20","creationTimeSeconds":1700000050}
			]}`))
		},
		"/user.rating": func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"status":"OK","result":[
				{"contestName":"Round #1","rank":1,"oldRating":3700,"newRating":3800,"ratingUpdateTimeSeconds":1700000000}
			]}`))
		},
	})

	raw, err := adapter.FetchProfile(context.Background(), "tourist")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if raw["handle"] != "tourist" {
		t.Errorf("expected handle tourist, got %v", raw["handle"])
	}
	if raw["rating"] != 3800 {
		t.Errorf("expected rating 3800, got %v", raw["rating"])
	}
	// two submissions for the same problem, one accepted: distinct solved count is 1
	if raw["problemsSolved"] != 1 {
		t.Errorf("expected 1 distinct solved problem, got %v", raw["problemsSolved"])
	}
	if raw["contestsParticipated"] != 1 {
		t.Errorf("expected 1 contest, got %v", raw["contestsParticipated"])
	}
	subs, ok := raw["recentSubmissions"].([]map[string]any)
	if !ok || len(subs) != 2 {
		t.Fatalf("expected 2 recent submissions, got %v", raw["recentSubmissions"])
	}
	if subs[0]["problemId"] != "1900A" {
		t.Errorf("expected problem id 1900A, got %v", subs[0]["problemId"])
	}
}

func TestCodeforces_UnknownHandle(t *testing.T) {
	notFound := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"status":"FAILED","comment":"handles: User with handle nobody not found"}`))
	}
	adapter := newCodeforcesTestServer(t, map[string]http.HandlerFunc{
		"/user.info":   notFound,
		"/user.status": notFound,
		"/user.rating": notFound,
	})

	_, err := adapter.FetchProfile(context.Background(), "nobody")
	if err == nil {
		t.Fatal("expected error for unknown handle")
	}
	if KindOf(err) != KindNotFound {
		t.Errorf("expected not_found, got %s", KindOf(err))
	}
}

func TestCodeforces_OptionalCallsDegrade(t *testing.T) {
	adapter := newCodeforcesTestServer(t, map[string]http.HandlerFunc{
		"/user.info": func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"status":"OK","result":[{"handle":"fresh","rating":0,"maxRating":0}]}`))
		},
		"/user.status": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		},
		"/user.rating": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		},
	})

	raw, err := adapter.FetchProfile(context.Background(), "fresh")
	if err != nil {
		t.Fatalf("identity succeeded, optional calls must not fail the fetch: %v", err)
	}
	if raw["handle"] != "fresh" {
		t.Errorf("expected handle fresh, got %v", raw["handle"])
	}
	if _, ok := raw["problemsSolved"]; ok {
		t.Error("failed status call must not produce a solved count")
	}
	if _, ok := raw["ratingHistory"]; ok {
		t.Error("failed rating call must not produce contest history")
	}
}

func TestCodeforces_UpstreamDown(t *testing.T) {
	down := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	adapter := newCodeforcesTestServer(t, map[string]http.HandlerFunc{
		"/user.info":   down,
		"/user.status": down,
		"/user.rating": down,
	})

	_, err := adapter.FetchProfile(context.Background(), "anyone")
	if err == nil {
		t.Fatal("expected error when upstream is down")
	}
	if KindOf(err) != KindUpstreamUnavailable {
		t.Errorf("expected upstream_unavailable, got %s", KindOf(err))
	}
}
