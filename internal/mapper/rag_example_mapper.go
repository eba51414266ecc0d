package mapper

import (
	"encoding/json"
	"time"

	"construction-chatbot-be/internal/entity"
	"construction-chatbot-be/internal/model"

	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type RagExampleMapper struct{}

func NewRagExampleMapper() *RagExampleMapper {
	return &RagExampleMapper{}
}

func (m *RagExampleMapper) ToEntity(e *model.RagExample) *entity.RagExample {
	if e == nil {
		return nil
	}

	var deletedAt *time.Time
	if e.DeletedAt.Valid {
		t := e.DeletedAt.Time
		deletedAt = &t
	}

	var updatedAt *time.Time
	if !e.UpdatedAt.IsZero() {
		t := e.UpdatedAt
		updatedAt = &t
	}

	var metadata map[string]interface{}
	if len(e.Metadata) > 0 {
		_ = json.Unmarshal(e.Metadata, &metadata)
	}

	var tags []string
	if len(e.Tags) > 0 {
		_ = json.Unmarshal(e.Tags, &tags)
	}

	return &entity.RagExample{
		Id:         e.Id,
		Question:   e.Question,
		Query:      e.Query,
		Intent:     e.Intent,
		Embedding:  e.EmbeddingValue.Slice(),
		Metadata:   metadata,
		Tags:       tags,
		UsageCount: e.UsageCount,
		Active:     e.Active,
		CreatedAt:  e.CreatedAt,
		UpdatedAt:  updatedAt,
		DeletedAt:  deletedAt,
		IsDeleted:  e.DeletedAt.Valid,
	}
}

func (m *RagExampleMapper) ToModel(e *entity.RagExample) *model.RagExample {
	if e == nil {
		return nil
	}

	var deletedAt gorm.DeletedAt
	if e.DeletedAt != nil {
		deletedAt = gorm.DeletedAt{Time: *e.DeletedAt, Valid: true}
	} else if e.IsDeleted {
		deletedAt = gorm.DeletedAt{Time: time.Now(), Valid: true}
	}

	var updatedAt time.Time
	if e.UpdatedAt != nil {
		updatedAt = *e.UpdatedAt
	}

	metadata := datatypes.JSON("{}")
	if e.Metadata != nil {
		if encoded, err := json.Marshal(e.Metadata); err == nil {
			metadata = encoded
		}
	}

	tags := datatypes.JSON("[]")
	if e.Tags != nil {
		if encoded, err := json.Marshal(e.Tags); err == nil {
			tags = encoded
		}
	}

	return &model.RagExample{
		Id:             e.Id,
		Question:       e.Question,
		Query:          e.Query,
		Intent:         e.Intent,
		EmbeddingValue: pgvector.NewVector(e.Embedding),
		Metadata:       metadata,
		Tags:           tags,
		UsageCount:     e.UsageCount,
		Active:         e.Active,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      updatedAt,
		DeletedAt:      deletedAt,
	}
}

func (m *RagExampleMapper) ToEntities(examples []*model.RagExample) []*entity.RagExample {
	entities := make([]*entity.RagExample, len(examples))
	for i, e := range examples {
		entities[i] = m.ToEntity(e)
	}
	return entities
}

func (m *RagExampleMapper) ToModels(examples []*entity.RagExample) []*model.RagExample {
	models := make([]*model.RagExample, len(examples))
	for i, e := range examples {
		models[i] = m.ToModel(e)
	}
	return models
}
