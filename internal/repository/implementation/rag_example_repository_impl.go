package implementation

import (
	"context"
	"errors"

	"construction-chatbot-be/internal/entity"
	"construction-chatbot-be/internal/mapper"
	"construction-chatbot-be/internal/model"
	"construction-chatbot-be/internal/repository/contract"
	"construction-chatbot-be/internal/repository/specification"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

type RagExampleRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.RagExampleMapper
}

func NewRagExampleRepository(db *gorm.DB) contract.RagExampleRepository {
	return &RagExampleRepositoryImpl{
		db:     db,
		mapper: mapper.NewRagExampleMapper(),
	}
}

func (r *RagExampleRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *RagExampleRepositoryImpl) Create(ctx context.Context, example *entity.RagExample) error {
	m := r.mapper.ToModel(example)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*example = *r.mapper.ToEntity(m)
	return nil
}

func (r *RagExampleRepositoryImpl) Update(ctx context.Context, example *entity.RagExample) error {
	m := r.mapper.ToModel(example)
	if err := r.db.WithContext(ctx).Save(m).Error; err != nil {
		return err
	}
	*example = *r.mapper.ToEntity(m)
	return nil
}

func (r *RagExampleRepositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&model.RagExample{}, id).Error
}

func (r *RagExampleRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.RagExample, error) {
	var m model.RagExample
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *RagExampleRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.RagExample, error) {
	var models []*model.RagExample
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models), nil
}

func (r *RagExampleRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	err := query.Model(&model.RagExample{}).Count(&count).Error
	return count, err
}

// SearchSimilarWithScore runs the vector search in the database.
// Cosine distance in pgvector is 1 - cosine_similarity, so
// 1 - (embedding_value <=> query_vector) is the similarity.
func (r *RagExampleRepositoryImpl) SearchSimilarWithScore(ctx context.Context, embedding []float32, intent string, threshold float64, limit int) ([]*contract.ScoredRagExample, error) {
	if limit <= 0 {
		limit = 3
	}

	type result struct {
		model.RagExample
		Similarity float64
	}
	var results []result

	queryVector := pgvector.NewVector(embedding)

	query := r.db.WithContext(ctx).
		Table("rag_examples").
		Select("rag_examples.*, 1 - (embedding_value <=> ?) as similarity", queryVector).
		Where("active = ?", true).
		Where("deleted_at IS NULL").
		Where("1 - (embedding_value <=> ?) > ?", queryVector, threshold)

	if intent != "" {
		query = query.Where("intent = ?", intent)
	}

	err := query.
		Order("similarity DESC").
		Limit(limit).
		Scan(&results).Error
	if err != nil {
		return nil, err
	}

	scored := make([]*contract.ScoredRagExample, len(results))
	for i, res := range results {
		scored[i] = &contract.ScoredRagExample{
			Example:    r.mapper.ToEntity(&res.RagExample),
			Similarity: res.Similarity,
		}
	}
	return scored, nil
}

func (r *RagExampleRepositoryImpl) IncrementUsage(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&model.RagExample{}).
		Where("id IN ?", ids).
		UpdateColumn("usage_count", gorm.Expr("usage_count + 1")).Error
}

func (r *RagExampleRepositoryImpl) UsageStats(ctx context.Context) ([]contract.IntentUsage, error) {
	var stats []contract.IntentUsage
	err := r.db.WithContext(ctx).
		Model(&model.RagExample{}).
		Select("intent, COUNT(*) as count, COALESCE(SUM(usage_count), 0) as total_usage").
		Group("intent").
		Order("intent").
		Scan(&stats).Error
	return stats, err
}
