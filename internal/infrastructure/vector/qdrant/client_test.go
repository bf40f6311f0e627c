package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dkomarov/doc-analyst/internal/core/domain"
	"github.com/dkomarov/doc-analyst/internal/core/ports"
)

func TestUpsertEnsuresCollectionAndWritesPayload(t *testing.T) {
	var ensured bool
	var captured struct {
		Points []struct {
			ID      string         `json:"id"`
			Vector  []float32      `json:"vector"`
			Payload map[string]any `json:"payload"`
		} `json:"points"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPut && r.URL.Path == "/collections/chunks":
			ensured = true
			_, _ = w.Write([]byte(`{"result":true}`))
		case r.Method == http.MethodPut && r.URL.Path == "/collections/chunks/points":
			if r.URL.Query().Get("wait") != "true" {
				t.Fatal("upsert must wait for durability")
			}
			if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
				t.Fatalf("decode upsert: %v", err)
			}
			_, _ = w.Write([]byte(`{"result":{}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := New(server.URL, "chunks")
	err := client.Upsert(context.Background(), []ports.VectorRecord{{
		ID:     "doc-1-0-abc123",
		Vector: []float32{0.1, 0.2},
		Chunk: domain.Chunk{
			ID:         "doc-1-0-abc123",
			Source:     "manual.pdf",
			ChunkIndex: 0,
			Text:       "chunk body",
			Summary:    "summary line",
			Quality:    0.8,
		},
	}})
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if !ensured {
		t.Fatal("collection was not ensured before upsert")
	}
	if len(captured.Points) != 1 {
		t.Fatalf("expected 1 point, got %d", len(captured.Points))
	}
	p := captured.Points[0]
	if p.ID == "" || p.ID == "doc-1-0-abc123" {
		t.Fatalf("point id must be a fresh uuid, got %q", p.ID)
	}
	if p.Payload["chunk_id"] != "doc-1-0-abc123" || p.Payload["source"] != "manual.pdf" {
		t.Fatalf("unexpected payload: %v", p.Payload)
	}
	if p.Payload["text"] != "chunk body" || p.Payload["summary"] != "summary line" {
		t.Fatalf("unexpected payload text fields: %v", p.Payload)
	}
}

func TestQueryParsesMatches(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collections/chunks/points/search" {
			http.NotFound(w, r)
			return
		}
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode search: %v", err)
		}
		if payload["limit"] != float64(7) {
			t.Fatalf("unexpected limit: %v", payload["limit"])
		}
		_, _ = w.Write([]byte(`{"result":[{"score":0.92,"payload":{"chunk_id":"c1","source":"a.pdf","chunk_index":3,"text":"body","quality":0.5}}]}`))
	}))
	defer server.Close()

	client := New(server.URL, "chunks")
	matches, err := client.Query(context.Background(), []float32{0.1}, 7)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
	m := matches[0]
	if m.Score != 0.92 || m.ScoreIsDistance {
		t.Fatalf("qdrant scores are similarities: %+v", m)
	}
	if m.Chunk.ID != "c1" || m.Chunk.ChunkIndex != 3 || m.Chunk.Quality != 0.5 {
		t.Fatalf("unexpected chunk: %+v", m.Chunk)
	}
}

func TestScanAllFollowsScrollPagination(t *testing.T) {
	pages := []string{
		`{"result":{"points":[{"payload":{"chunk_id":"c1","text":"first"}}],"next_page_offset":"cursor-2"}}`,
		`{"result":{"points":[{"payload":{"chunk_id":"c2","text":"second"}}],"next_page_offset":null}}`,
	}
	var offsets []any
	call := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collections/chunks/points/scroll" {
			http.NotFound(w, r)
			return
		}
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode scroll: %v", err)
		}
		offsets = append(offsets, payload["offset"])
		_, _ = w.Write([]byte(pages[call]))
		call++
	}))
	defer server.Close()

	client := New(server.URL, "chunks")
	chunks, err := client.ScanAll(context.Background())
	if err != nil {
		t.Fatalf("ScanAll() error = %v", err)
	}
	if len(chunks) != 2 || chunks[0].ID != "c1" || chunks[1].ID != "c2" {
		t.Fatalf("unexpected chunks: %+v", chunks)
	}
	if offsets[0] != nil {
		t.Fatalf("first scroll must not carry an offset, got %v", offsets[0])
	}
	if offsets[1] != "cursor-2" {
		t.Fatalf("second scroll must resume from the cursor, got %v", offsets[1])
	}
}

func TestQuerySurfacesHTTPFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "collection missing", http.StatusNotFound)
	}))
	defer server.Close()

	client := New(server.URL, "chunks")
	if _, err := client.Query(context.Background(), []float32{0.1}, 5); err == nil {
		t.Fatal("expected error on http failure")
	}
}
