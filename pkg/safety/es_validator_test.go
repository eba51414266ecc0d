package safety

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestESValidator_Validate(t *testing.T) {
	v := NewESValidator()

	tests := []struct {
		name      string
		raw       string
		wantCheck string
	}{
		{
			name: "full read query passes",
			raw:  `{"query":{"match":{"status":"done"}},"size":10,"from":0,"sort":[{"created_at":"desc"}],"_source":["id","reference"],"track_total_hits":true}`,
		},
		{
			name: "aggregation query passes",
			raw:  `{"aggs":{"per_status":{"terms":{"field":"status"}}},"size":0}`,
		},
		{
			name:      "script key rejected",
			raw:       `{"query":{"match_all":{}},"script":{"source":"ctx._source.x = 1"}}`,
			wantCheck: CheckDocumentKeys,
		},
		{
			name:      "unknown key rejected",
			raw:       `{"query":{"match_all":{}},"pit":{"id":"x"}}`,
			wantCheck: CheckDocumentKeys,
		},
		{
			name:      "malformed json rejected",
			raw:       `{"query":`,
			wantCheck: CheckDocumentKeys,
		},
		{
			name: "size at ceiling passes",
			raw:  `{"query":{"match_all":{}},"size":1000}`,
		},
		{
			name:      "size above ceiling rejected",
			raw:       `{"query":{"match_all":{}},"size":1001}`,
			wantCheck: CheckResultBounds,
		},
		{
			name: "from at ceiling passes",
			raw:  `{"query":{"match_all":{}},"from":10000}`,
		},
		{
			name:      "from above ceiling rejected",
			raw:       `{"query":{"match_all":{}},"from":10001}`,
			wantCheck: CheckResultBounds,
		},
		{
			name:      "non-numeric size rejected",
			raw:       `{"query":{"match_all":{}},"size":"plenty"}`,
			wantCheck: CheckResultBounds,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := v.Validate(tt.raw)

			if tt.wantCheck != "" {
				require.Error(t, err)
				var unsafeErr *UnsafeQueryError
				require.True(t, errors.As(err, &unsafeErr))
				assert.Equal(t, tt.wantCheck, unsafeErr.Check)
				assert.Nil(t, doc)
				return
			}

			require.NoError(t, err)
			assert.NotNil(t, doc)
		})
	}
}

func TestESValidator_ValidateDocument_IntSize(t *testing.T) {
	v := NewESValidator()

	err := v.ValidateDocument(map[string]any{"query": map[string]any{}, "size": 50})
	require.NoError(t, err)

	err = v.ValidateDocument(map[string]any{"query": map[string]any{}, "size": 5000})
	require.Error(t, err)
}
