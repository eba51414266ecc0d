// Package memory provides an in-process RagExampleRepository. It keeps
// the full corpus in a map and scans it with the same cosine similarity
// the database implementation delegates to pgvector, so retrieval
// behavior can be tested without a database.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"construction-chatbot-be/internal/entity"
	"construction-chatbot-be/internal/repository/contract"
	"construction-chatbot-be/internal/repository/specification"
	"construction-chatbot-be/pkg/similarity"

	"github.com/google/uuid"
)

type RagExampleRepository struct {
	mu       sync.RWMutex
	examples map[uuid.UUID]*entity.RagExample
}

func NewRagExampleRepository() *RagExampleRepository {
	return &RagExampleRepository{
		examples: make(map[uuid.UUID]*entity.RagExample),
	}
}

func (r *RagExampleRepository) Create(_ context.Context, example *entity.RagExample) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if example.Id == uuid.Nil {
		example.Id = uuid.New()
	}
	if example.CreatedAt.IsZero() {
		example.CreatedAt = time.Now()
	}

	stored := *example
	r.examples[example.Id] = &stored
	return nil
}

func (r *RagExampleRepository) Update(_ context.Context, example *entity.RagExample) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *example
	r.examples[example.Id] = &stored
	return nil
}

func (r *RagExampleRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.examples[id]; ok {
		now := time.Now()
		e.DeletedAt = &now
		e.IsDeleted = true
	}
	return nil
}

// FindOne supports the specifications the services actually use:
// ByID, ByQuestion, ByIntent and ActiveOnly.
func (r *RagExampleRepository) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.RagExample, error) {
	all, err := r.FindAll(ctx, specs...)
	if err != nil || len(all) == 0 {
		return nil, err
	}
	return all[0], nil
}

func (r *RagExampleRepository) FindAll(_ context.Context, specs ...specification.Specification) ([]*entity.RagExample, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*entity.RagExample
	for _, e := range r.examples {
		if e.IsDeleted || !matches(e, specs) {
			continue
		}
		clone := *e
		out = append(out, &clone)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *RagExampleRepository) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	all, err := r.FindAll(ctx, specs...)
	if err != nil {
		return 0, err
	}
	return int64(len(all)), nil
}

func (r *RagExampleRepository) SearchSimilarWithScore(_ context.Context, embedding []float32, intent string, threshold float64, limit int) ([]*contract.ScoredRagExample, error) {
	if limit <= 0 {
		limit = 3
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var scored []*contract.ScoredRagExample
	for _, e := range r.examples {
		if e.IsDeleted || !e.Active {
			continue
		}
		if intent != "" && e.Intent != intent {
			continue
		}

		score := similarity.Cosine(embedding, e.Embedding)
		if score <= threshold {
			continue
		}

		clone := *e
		scored = append(scored, &contract.ScoredRagExample{Example: &clone, Similarity: score})
	}

	sort.Slice(scored, func(i, j int) bool {
		return scored[i].Similarity > scored[j].Similarity
	})

	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

func (r *RagExampleRepository) IncrementUsage(_ context.Context, ids []uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range ids {
		if e, ok := r.examples[id]; ok {
			e.UsageCount++
		}
	}
	return nil
}

func (r *RagExampleRepository) UsageStats(_ context.Context) ([]contract.IntentUsage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	byIntent := make(map[string]*contract.IntentUsage)
	for _, e := range r.examples {
		if e.IsDeleted {
			continue
		}
		row, ok := byIntent[e.Intent]
		if !ok {
			row = &contract.IntentUsage{Intent: e.Intent}
			byIntent[e.Intent] = row
		}
		row.Count++
		row.TotalUsage += int64(e.UsageCount)
	}

	stats := make([]contract.IntentUsage, 0, len(byIntent))
	for _, row := range byIntent {
		stats = append(stats, *row)
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Intent < stats[j].Intent })
	return stats, nil
}

func matches(e *entity.RagExample, specs []specification.Specification) bool {
	for _, spec := range specs {
		switch s := spec.(type) {
		case specification.ByID:
			if e.Id != s.ID {
				return false
			}
		case specification.ByQuestion:
			if e.Question != s.Question {
				return false
			}
		case specification.ByIntent:
			if e.Intent != s.Intent {
				return false
			}
		case specification.ActiveOnly:
			if !e.Active {
				return false
			}
		}
	}
	return true
}
