package contract

import (
	"context"

	"construction-chatbot-be/internal/entity"
	"construction-chatbot-be/internal/repository/specification"

	"github.com/google/uuid"
)

// ScoredRagExample wraps a RagExample with its similarity score
type ScoredRagExample struct {
	Example    *entity.RagExample
	Similarity float64 // 0.0 to 1.0 (1.0 = identical)
}

// IntentUsage is one row of the per-intent usage statistics.
type IntentUsage struct {
	Intent     string `json:"intent"`
	Count      int64  `json:"count"`
	TotalUsage int64  `json:"total_usage"`
}

type RagExampleRepository interface {
	Create(ctx context.Context, example *entity.RagExample) error
	Update(ctx context.Context, example *entity.RagExample) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.RagExample, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.RagExample, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
	// SearchSimilarWithScore returns active examples ordered by cosine
	// similarity to the query vector, keeping only those at or above
	// threshold. An empty intent disables the intent filter.
	SearchSimilarWithScore(ctx context.Context, embedding []float32, intent string, threshold float64, limit int) ([]*ScoredRagExample, error)
	// IncrementUsage bumps usage_count for the given examples.
	IncrementUsage(ctx context.Context, ids []uuid.UUID) error
	// UsageStats aggregates example counts and usage per intent.
	UsageStats(ctx context.Context) ([]IntentUsage, error)
}
