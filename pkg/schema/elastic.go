package schema

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
)

const esSchemaCacheKey = "elasticsearch_mapping_structure"

// MappingClient fetches the raw mapping of an index.
type MappingClient interface {
	GetMapping(ctx context.Context, index string) (map[string]any, error)
}

// ESSchema describes the search index for the query generator. When the
// cluster is unreachable it falls back to a static description so the
// chatbot keeps answering.
type ESSchema struct {
	client MappingClient
	index  string
	cache  *cache.Cache
}

func NewESSchema(client MappingClient, index string) *ESSchema {
	return &ESSchema{
		client: client,
		index:  index,
		cache:  cache.New(schemaCacheTTL, 10*time.Minute),
	}
}

// MappingStructure returns one description line per indexed field, in
// the form "name (type) - usage hint".
func (s *ESSchema) MappingStructure(ctx context.Context) []string {
	if cached, found := s.cache.Get(esSchemaCacheKey); found {
		return cached.([]string)
	}

	structure, err := s.fetchMappingStructure(ctx)
	if err != nil {
		return staticMappingDescription()
	}

	s.cache.Set(esSchemaCacheKey, structure, cache.DefaultExpiration)
	return structure
}

func (s *ESSchema) Invalidate() {
	s.cache.Delete(esSchemaCacheKey)
}

func (s *ESSchema) fetchMappingStructure(ctx context.Context) ([]string, error) {
	raw, err := s.client.GetMapping(ctx, s.index)
	if err != nil {
		return nil, err
	}

	// The response is keyed by the concrete index name, which may differ
	// from the alias we asked for.
	for _, indexMapping := range raw {
		body, ok := indexMapping.(map[string]any)
		if !ok {
			continue
		}
		mappings, _ := body["mappings"].(map[string]any)
		properties, _ := mappings["properties"].(map[string]any)
		if properties == nil {
			continue
		}
		return formatMappingForLLM(properties), nil
	}

	return nil, fmt.Errorf("mapping response for index %s has no properties", s.index)
}

func formatMappingForLLM(properties map[string]any) []string {
	fields := make([]string, 0, len(properties))
	for name := range properties {
		fields = append(fields, name)
	}
	sort.Strings(fields)

	formatted := make([]string, 0, len(fields))
	for _, name := range fields {
		config, _ := properties[name].(map[string]any)
		formatted = append(formatted, describeField(name, config))
	}
	return formatted
}

func describeField(name string, config map[string]any) string {
	fieldType, _ := config["type"].(string)
	if fieldType == "" {
		fieldType = "unknown"
	}

	var description string
	switch fieldType {
	case "keyword":
		description = "exact match, filtering, aggregations"
	case "text":
		description = "full-text search, analyzed"
		if fields, ok := config["fields"].(map[string]any); ok {
			if _, hasKeyword := fields["keyword"]; hasKeyword {
				description += " (has .keyword for exact match)"
			}
		}
	case "integer", "long":
		description = "numeric, range queries, aggregations"
	case "date":
		description = "date/time, range queries, date aggregations"
	case "boolean":
		description = "true/false filtering"
	case "nested":
		description = "nested objects - use nested queries"
		if nested, ok := config["properties"].(map[string]any); ok {
			names := make([]string, 0, len(nested))
			for n := range nested {
				names = append(names, n)
			}
			sort.Strings(names)
			description += " (nested fields: " + strings.Join(names, ", ") + ")"
		}
	default:
		description = fieldType
	}

	return fmt.Sprintf("%s (%s) - %s", name, fieldType, description)
}

func staticMappingDescription() []string {
	return []string{
		"caseId (integer) - unique case identifier",
		"caseReference (keyword) - exact client case reference",
		"caseShortReference (keyword) - short reference code",
		"caseProject (text) - project name, full-text searchable",
		"caseClient (text) - client name, full-text searchable (has .keyword and .normalized)",
		"caseAgency (text) - agency name, full-text searchable (has .keyword and .normalized)",
		"caseManager (text) - manager name, full-text searchable (has .keyword)",
		"caseStatus (keyword) - status for exact filtering",
		"caseCreatedAt (date) - creation date",
		"reportsCount (integer) - computed total reports count",
		"reports (nested) - nested reports array - use nested queries",
		"  reports.reportId (integer) - report ID",
		"  reports.reportFilename (keyword) - report filename",
		"  reports.reportReference (keyword) - report reference",
		"  reports.reportImported (boolean) - import status",
		"  reports.reportS3Path (keyword) - storage path of the report file",
		"  reports.reportCreatedAt (date) - report creation date",
		"  reports.reportReviews (nested) - nested reviews array - use nested queries",
		"    reports.reportReviews.reviewId (integer) - review ID",
		"    reports.reportReviews.reviewDomain (keyword) - technical domain (Portes, SSI...)",
		"    reports.reportReviews.reviewValue (keyword) - raw review code (F, D, S...)",
		"    reports.reportReviews.reviewValueName (keyword) - decoded value (Favorable, Défavorable...)",
	}
}
