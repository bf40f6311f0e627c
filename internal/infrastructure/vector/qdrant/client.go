package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dkomarov/doc-analyst/internal/core/domain"
	"github.com/dkomarov/doc-analyst/internal/core/ports"
)

const scrollBatchSize = 256

// Client implements the vector store over Qdrant's HTTP API. Chunk metadata
// travels in the point payload; the point ID is a fresh UUID because Qdrant
// restricts ID formats, and the chunk's own ID lives in the payload instead.
type Client struct {
	baseURL    string
	collection string
	httpClient *http.Client

	ensureMu          sync.Mutex
	ensuredCollection bool
	ensuredVectorSize int
}

func New(baseURL, collection string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *Client) Upsert(ctx context.Context, records []ports.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}

	if err := c.ensureCollection(ctx, len(records[0].Vector)); err != nil {
		return err
	}

	type point struct {
		ID      string         `json:"id"`
		Vector  []float32      `json:"vector"`
		Payload map[string]any `json:"payload"`
	}

	points := make([]point, 0, len(records))
	for _, r := range records {
		points = append(points, point{
			ID:      uuid.NewString(),
			Vector:  r.Vector,
			Payload: chunkPayload(r.Chunk),
		})
	}

	body, err := json.Marshal(map[string]any{"points": points})
	if err != nil {
		return fmt.Errorf("marshal upsert body: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s/points?wait=true", c.baseURL, c.collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create upsert request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant upsert request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant upsert status: %s", resp.Status)
	}
	return nil
}

// Query returns similarity-scored matches; Qdrant reports cosine similarity
// directly, so no distance conversion is needed downstream.
func (c *Client) Query(ctx context.Context, vector []float32, k int) ([]ports.VectorMatch, error) {
	reqBody := map[string]any{
		"vector":       vector,
		"limit":        k,
		"with_payload": true,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal search body: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s/points/search", c.baseURL, c.collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("qdrant search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("qdrant search status: %s", resp.Status)
	}

	var searchResp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	out := make([]ports.VectorMatch, 0, len(searchResp.Result))
	for _, r := range searchResp.Result {
		out = append(out, ports.VectorMatch{
			Chunk: chunkFromPayload(r.Payload),
			Score: r.Score,
		})
	}
	return out, nil
}

// ScanAll pages through the whole collection with the scroll API, payload
// only, for lexical index construction.
func (c *Client) ScanAll(ctx context.Context) ([]domain.Chunk, error) {
	var (
		out    []domain.Chunk
		offset any
	)
	for {
		reqBody := map[string]any{
			"limit":        scrollBatchSize,
			"with_payload": true,
			"with_vector":  false,
		}
		if offset != nil {
			reqBody["offset"] = offset
		}

		body, err := json.Marshal(reqBody)
		if err != nil {
			return nil, fmt.Errorf("marshal scroll body: %w", err)
		}

		url := fmt.Sprintf("%s/collections/%s/points/scroll", c.baseURL, c.collection)
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("create scroll request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("qdrant scroll request: %w", err)
		}

		var scrollResp struct {
			Result struct {
				Points []struct {
					Payload map[string]any `json:"payload"`
				} `json:"points"`
				NextPageOffset any `json:"next_page_offset"`
			} `json:"result"`
		}
		if resp.StatusCode >= 300 {
			resp.Body.Close()
			return nil, fmt.Errorf("qdrant scroll status: %s", resp.Status)
		}
		if err := json.NewDecoder(resp.Body).Decode(&scrollResp); err != nil {
			resp.Body.Close()
			return nil, fmt.Errorf("decode scroll response: %w", err)
		}
		resp.Body.Close()

		for _, p := range scrollResp.Result.Points {
			out = append(out, chunkFromPayload(p.Payload))
		}
		if scrollResp.Result.NextPageOffset == nil || len(scrollResp.Result.Points) == 0 {
			return out, nil
		}
		offset = scrollResp.Result.NextPageOffset
	}
}

func (c *Client) ensureCollection(ctx context.Context, vectorSize int) error {
	c.ensureMu.Lock()
	if c.ensuredCollection && c.ensuredVectorSize == vectorSize {
		c.ensureMu.Unlock()
		return nil
	}
	c.ensureMu.Unlock()

	reqBody := map[string]any{
		"vectors": map[string]any{
			"size":     vectorSize,
			"distance": "Cosine",
		},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal create collection body: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s", c.baseURL, c.collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create collection request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant ensure collection request: %w", err)
	}
	defer resp.Body.Close()

	// 200/201 for create, 409 when it already exists.
	if resp.StatusCode == http.StatusConflict {
		c.markCollectionEnsured(vectorSize)
		return nil
	}
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		if msg := strings.TrimSpace(string(body)); msg != "" {
			return fmt.Errorf("qdrant ensure collection status: %s: %s", resp.Status, msg)
		}
		return fmt.Errorf("qdrant ensure collection status: %s", resp.Status)
	}
	c.markCollectionEnsured(vectorSize)
	return nil
}

func (c *Client) markCollectionEnsured(vectorSize int) {
	c.ensureMu.Lock()
	defer c.ensureMu.Unlock()
	c.ensuredCollection = true
	c.ensuredVectorSize = vectorSize
}

func chunkPayload(chunk domain.Chunk) map[string]any {
	return map[string]any{
		"chunk_id":    chunk.ID,
		"source":      chunk.Source,
		"chunk_index": chunk.ChunkIndex,
		"text":        chunk.Text,
		"summary":     chunk.Summary,
		"quality":     chunk.Quality,
	}
}

func chunkFromPayload(payload map[string]any) domain.Chunk {
	return domain.Chunk{
		ID:         getStringPayload(payload, "chunk_id"),
		Source:     getStringPayload(payload, "source"),
		ChunkIndex: getIntPayload(payload, "chunk_index"),
		Text:       getStringPayload(payload, "text"),
		Summary:    getStringPayload(payload, "summary"),
		Quality:    getFloatPayload(payload, "quality"),
	}
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func getIntPayload(payload map[string]any, key string) int {
	if v, ok := payload[key].(float64); ok {
		return int(v)
	}
	return 0
}

func getFloatPayload(payload map[string]any, key string) float64 {
	if v, ok := payload[key].(float64); ok {
		return v
	}
	return 0
}
