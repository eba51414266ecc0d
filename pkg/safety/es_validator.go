package safety

import (
	"encoding/json"
	"fmt"
)

const (
	// MaxResultSize caps the "size" parameter of a search document.
	MaxResultSize = 1000
	// MaxResultOffset caps the "from" parameter of a search document.
	MaxResultOffset = 10000
)

var allowedDocumentKeys = map[string]struct{}{
	"query":            {},
	"size":             {},
	"from":             {},
	"sort":             {},
	"_source":          {},
	"track_total_hits": {},
	"aggs":             {},
	"aggregations":     {},
}

// ESValidator checks search documents before they reach the search
// cluster: only read-oriented top-level keys are allowed, and result
// window parameters are bounded.
type ESValidator struct{}

func NewESValidator() *ESValidator {
	return &ESValidator{}
}

// Validate returns the parsed document on pass. Rejection is always an
// *UnsafeQueryError; malformed JSON is reported as such rather than
// being repaired.
func (v *ESValidator) Validate(raw string) (map[string]any, error) {
	var doc map[string]any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, reject(CheckDocumentKeys, "search document is not valid JSON: %v", err)
	}
	if err := v.ValidateDocument(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (v *ESValidator) ValidateDocument(doc map[string]any) error {
	for key := range doc {
		if _, ok := allowedDocumentKeys[key]; !ok {
			return reject(CheckDocumentKeys, "top-level key %q is not allow-listed", key)
		}
	}

	if size, present, err := numericField(doc, "size"); err != nil {
		return err
	} else if present && size > MaxResultSize {
		return reject(CheckResultBounds, "size %d exceeds maximum %d", size, MaxResultSize)
	}

	if from, present, err := numericField(doc, "from"); err != nil {
		return err
	} else if present && from > MaxResultOffset {
		return reject(CheckResultBounds, "from %d exceeds maximum %d", from, MaxResultOffset)
	}

	return nil
}

// numericField tolerates the numeric encodings a generated document can
// carry: json.Number-free decoding yields float64, hand-built documents
// may carry int.
func numericField(doc map[string]any, key string) (int, bool, error) {
	raw, ok := doc[key]
	if !ok {
		return 0, false, nil
	}

	switch n := raw.(type) {
	case float64:
		return int(n), true, nil
	case int:
		return n, true, nil
	case int64:
		return int(n), true, nil
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false, reject(CheckResultBounds, "%s is not an integer: %v", key, err)
		}
		return int(i), true, nil
	default:
		return 0, false, reject(CheckResultBounds, "%s must be numeric, got %s", key, jsonTypeName(raw))
	}
}

func jsonTypeName(v any) string {
	switch v.(type) {
	case string:
		return "string"
	case bool:
		return "boolean"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case nil:
		return "null"
	default:
		return fmt.Sprintf("%T", v)
	}
}
