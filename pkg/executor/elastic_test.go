package executor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestESExecutor_ExecuteQuery(t *testing.T) {
	var receivedBody map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/client_case/_search", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&receivedBody))

		json.NewEncoder(w).Encode(map[string]any{
			"took": 12,
			"hits": map[string]any{
				"total": map[string]any{"value": 2},
				"hits": []any{
					map[string]any{"_id": "1", "_score": 1.5, "_source": map[string]any{"caseReference": "94P0237518"}},
					map[string]any{"_id": "2", "_score": 0.9, "_source": map[string]any{"caseReference": "94P0237519"}},
				},
			},
			"aggregations": map[string]any{
				"clients": map[string]any{"buckets": []any{}},
			},
		})
	}))
	defer server.Close()

	e := NewESExecutor(NewESClient(server.URL), "client_case")

	result, err := e.ExecuteQuery(context.Background(), map[string]any{
		"query": map[string]any{"match_all": map[string]any{}},
	})
	require.NoError(t, err)

	assert.Equal(t, int64(2), result.Total)
	assert.Equal(t, 12, result.Took)
	require.Len(t, result.Hits, 2)
	assert.Equal(t, "1", result.Hits[0].ID)
	assert.Equal(t, "94P0237518", result.Hits[0].Data["caseReference"])
	assert.Contains(t, result.Aggregations, "clients")

	// default timeout injected into the outgoing document
	assert.Equal(t, "30s", receivedBody["timeout"])
}

func TestESExecutor_PreservesExplicitTimeout(t *testing.T) {
	var receivedBody map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&receivedBody)
		json.NewEncoder(w).Encode(map[string]any{"took": 1, "hits": map[string]any{}})
	}))
	defer server.Close()

	e := NewESExecutor(NewESClient(server.URL), "client_case")

	_, err := e.ExecuteQuery(context.Background(), map[string]any{"timeout": "5s"})
	require.NoError(t, err)
	assert.Equal(t, "5s", receivedBody["timeout"])
}

func TestESExecutor_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"index_not_found_exception"}`, http.StatusNotFound)
	}))
	defer server.Close()

	e := NewESExecutor(NewESClient(server.URL), "client_case")

	_, err := e.ExecuteQuery(context.Background(), map[string]any{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestESClient_GetMapping(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/client_case/_mapping", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"client_case_v3": map[string]any{
				"mappings": map[string]any{
					"properties": map[string]any{
						"caseReference": map[string]any{"type": "keyword"},
					},
				},
			},
		})
	}))
	defer server.Close()

	c := NewESClient(server.URL)

	mapping, err := c.GetMapping(context.Background(), "client_case")
	require.NoError(t, err)
	assert.Contains(t, mapping, "client_case_v3")
}

func TestFormatSearchResponse_EmptyBody(t *testing.T) {
	result := formatSearchResponse(map[string]any{})

	assert.Zero(t, result.Total)
	assert.Empty(t, result.Hits)
	assert.Nil(t, result.Aggregations)
}
