package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
)

var errQdrantNotFound = errors.New("qdrant: not found")

// QdrantConfig holds connection settings for a Qdrant collection.
type QdrantConfig struct {
	URL        string
	APIKey     string
	Collection string
}

// QdrantIndex is a VectorIndex backed by a Qdrant collection over its REST API.
// The collection is created with cosine distance on first write.
type QdrantIndex struct {
	url        string
	apiKey     string
	collection string
	dimensions int
	client     *http.Client

	mu    sync.Mutex
	ready bool
}

// NewQdrantIndex returns a Qdrant-backed index. No request is made until first use.
func NewQdrantIndex(cfg QdrantConfig, dimensions int) (*QdrantIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	if cfg.URL == "" || cfg.Collection == "" {
		return nil, fmt.Errorf("qdrant url and collection are required")
	}
	return &QdrantIndex{
		url:        strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		dimensions: dimensions,
		client:     &http.Client{},
	}, nil
}

// PointID maps a chunk ID to the UUID Qdrant stores it under.
func (q *QdrantIndex) PointID(id string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(q.collection+"/"+id)).String()
}

func (q *QdrantIndex) collectionURL() string {
	return fmt.Sprintf("%s/collections/%s", q.url, q.collection)
}

func (q *QdrantIndex) ensureCollection(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.ready {
		return nil
	}
	err := q.do(ctx, http.MethodGet, q.collectionURL(), nil, nil)
	if errors.Is(err, errQdrantNotFound) {
		body := map[string]any{
			"vectors": map[string]any{
				"size":     q.dimensions,
				"distance": "Cosine",
			},
		}
		err = q.do(ctx, http.MethodPut, q.collectionURL(), body, nil)
	}
	if err != nil {
		return fmt.Errorf("failed to ensure collection %s: %w", q.collection, err)
	}
	q.ready = true
	return nil
}

// Add upserts points. The chunk ID is kept in the payload as chunk_id.
func (q *QdrantIndex) Add(ctx context.Context, ids []string, vectors [][]float32, payloads []map[string]interface{}) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch")
	}
	if payloads != nil && len(payloads) != len(ids) {
		return fmt.Errorf("ids and payloads length mismatch")
	}
	if len(ids) == 0 {
		return nil
	}
	if err := q.ensureCollection(ctx); err != nil {
		return err
	}
	points := make([]map[string]any, len(ids))
	for i, id := range ids {
		if len(vectors[i]) != q.dimensions {
			return fmt.Errorf("vector dimension mismatch: got %d, expected %d", len(vectors[i]), q.dimensions)
		}
		payload := map[string]any{}
		if payloads != nil {
			for k, v := range payloads[i] {
				payload[k] = v
			}
		}
		payload["chunk_id"] = id
		points[i] = map[string]any{
			"id":      q.PointID(id),
			"vector":  vectors[i],
			"payload": payload,
		}
	}
	body := map[string]any{"points": points}
	if err := q.do(ctx, http.MethodPut, q.collectionURL()+"/points?wait=true", body, nil); err != nil {
		return fmt.Errorf("failed to upsert points: %w", err)
	}
	return nil
}

// Search returns the k nearest points in the order Qdrant ranks them.
func (q *QdrantIndex) Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error) {
	if len(query) != q.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), q.dimensions)
	}
	if k <= 0 {
		return nil, nil
	}
	req := map[string]any{
		"vector":       query,
		"limit":        k,
		"with_payload": true,
	}
	var resp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	err := q.do(ctx, http.MethodPost, q.collectionURL()+"/points/search", req, &resp)
	if errors.Is(err, errQdrantNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to search points: %w", err)
	}
	results := make([]*VectorResult, 0, len(resp.Result))
	for _, r := range resp.Result {
		id, _ := r.Payload["chunk_id"].(string)
		if id == "" {
			continue
		}
		results = append(results, &VectorResult{ID: id, Score: r.Score})
	}
	return results, nil
}

// Reset drops the collection. It is recreated on the next Add.
func (q *QdrantIndex) Reset(ctx context.Context) error {
	q.mu.Lock()
	q.ready = false
	q.mu.Unlock()
	err := q.do(ctx, http.MethodDelete, q.collectionURL(), nil, nil)
	if err != nil && !errors.Is(err, errQdrantNotFound) {
		return fmt.Errorf("failed to delete collection: %w", err)
	}
	return nil
}

// Count returns the exact number of points in the collection.
func (q *QdrantIndex) Count(ctx context.Context) (int, error) {
	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	err := q.do(ctx, http.MethodPost, q.collectionURL()+"/points/count", map[string]any{"exact": true}, &resp)
	if errors.Is(err, errQdrantNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to count points: %w", err)
	}
	return resp.Result.Count, nil
}

// Save is a no-op; Qdrant persists on its own.
func (q *QdrantIndex) Save(path string) error { return nil }

// Load is a no-op; Qdrant persists on its own.
func (q *QdrantIndex) Load(path string) error { return nil }

// Close releases idle connections.
func (q *QdrantIndex) Close() error {
	q.client.CloseIdleConnections()
	return nil
}

func (q *QdrantIndex) do(ctx context.Context, method, url string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if q.apiKey != "" {
		req.Header.Set("api-key", q.apiKey)
	}
	resp, err := q.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return errQdrantNotFound
	}
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("qdrant %s %s failed: %s: %s", method, url, resp.Status, strings.TrimSpace(string(msg)))
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
