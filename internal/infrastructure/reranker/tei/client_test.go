package tei

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestScoreMapsResultsBackToInputOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rerank" {
			http.NotFound(w, r)
			return
		}
		var payload struct {
			Query string   `json:"query"`
			Texts []string `json:"texts"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if payload.Query != "q" || len(payload.Texts) != 3 {
			t.Fatalf("unexpected request: %+v", payload)
		}
		// Sorted by score, as the service responds.
		_, _ = w.Write([]byte(`[{"index":2,"score":0.9},{"index":0,"score":0.5},{"index":1,"score":0.1}]`))
	}))
	defer server.Close()

	client := New(server.URL)
	scores, err := client.Score(context.Background(), "q", []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	want := []float64{0.5, 0.1, 0.9}
	for i, s := range scores {
		if s != want[i] {
			t.Fatalf("score %d: got %v, want %v", i, s, want[i])
		}
	}
}

func TestScoreRejectsCountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"index":0,"score":0.5}]`))
	}))
	defer server.Close()

	client := New(server.URL)
	if _, err := client.Score(context.Background(), "q", []string{"a", "b"}); err == nil {
		t.Fatal("expected error on result count mismatch")
	}
}

func TestScoreSurfacesHTTPFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model loading", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := New(server.URL)
	if _, err := client.Score(context.Background(), "q", []string{"a"}); err == nil {
		t.Fatal("expected error on http failure")
	}
}
