package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ESClient is a thin HTTP client for the search cluster.
type ESClient struct {
	BaseURL string
	Client  *http.Client
}

func NewESClient(baseURL string) *ESClient {
	return &ESClient{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: 35 * time.Second},
	}
}

// Search posts a search body to the index and returns the raw response.
func (c *ESClient) Search(ctx context.Context, index string, body map[string]any) (map[string]any, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal search body: %w", err)
	}

	url := fmt.Sprintf("%s/%s/_search", c.BaseURL, index)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("search returned status %d: %s", resp.StatusCode, string(msg))
	}

	var raw map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return raw, nil
}

// GetMapping fetches the field mapping of an index.
func (c *ESClient) GetMapping(ctx context.Context, index string) (map[string]any, error) {
	url := fmt.Sprintf("%s/%s/_mapping", c.BaseURL, index)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create mapping request: %w", err)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mapping request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("mapping returned status %d: %s", resp.StatusCode, string(msg))
	}

	var raw map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode mapping response: %w", err)
	}
	return raw, nil
}

// Hit is one search hit, with its source document.
type Hit struct {
	ID    string         `json:"id"`
	Score float64        `json:"score"`
	Data  map[string]any `json:"data"`
}

// SearchResult is the formatted outcome of a search, stripped down to
// what the narration and download layers need.
type SearchResult struct {
	Total        int64          `json:"total"`
	Took         int            `json:"took"`
	Hits         []Hit          `json:"results"`
	Aggregations map[string]any `json:"aggregations"`
}

// ESExecutor runs validated search documents against a fixed index.
type ESExecutor struct {
	client *ESClient
	index  string
}

func NewESExecutor(client *ESClient, index string) *ESExecutor {
	return &ESExecutor{client: client, index: index}
}

// ExecuteQuery adds a default timeout to the document and formats the
// response. The timeout key is injected after validation on purpose:
// it is not part of the user-controlled surface.
func (e *ESExecutor) ExecuteQuery(ctx context.Context, body map[string]any) (*SearchResult, error) {
	if _, ok := body["timeout"]; !ok {
		body["timeout"] = "30s"
	}

	raw, err := e.client.Search(ctx, e.index, body)
	if err != nil {
		return nil, err
	}
	return formatSearchResponse(raw), nil
}

func formatSearchResponse(raw map[string]any) *SearchResult {
	result := &SearchResult{Hits: []Hit{}}

	if took, ok := raw["took"].(float64); ok {
		result.Took = int(took)
	}
	if aggs, ok := raw["aggregations"].(map[string]any); ok {
		result.Aggregations = aggs
	}

	hits, _ := raw["hits"].(map[string]any)
	if hits == nil {
		return result
	}

	if total, ok := hits["total"].(map[string]any); ok {
		if value, ok := total["value"].(float64); ok {
			result.Total = int64(value)
		}
	}

	rawHits, _ := hits["hits"].([]any)
	for _, rawHit := range rawHits {
		hit, ok := rawHit.(map[string]any)
		if !ok {
			continue
		}

		formatted := Hit{}
		if id, ok := hit["_id"].(string); ok {
			formatted.ID = id
		}
		if score, ok := hit["_score"].(float64); ok {
			formatted.Score = score
		}
		if source, ok := hit["_source"].(map[string]any); ok {
			formatted.Data = source
		}
		result.Hits = append(result.Hits, formatted)
	}

	return result
}
