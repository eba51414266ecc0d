package entity

import (
	"time"

	"github.com/google/uuid"
)

// RagExample is one curated question/query pair used as a few-shot
// example during query generation. Embedding is the 384-dimension
// sentence vector of Question; an example without a vector is inactive
// until the embedding consumer fills it in.
type RagExample struct {
	Id         uuid.UUID
	Question   string
	Query      string
	Intent     string
	Embedding  []float32
	Metadata   map[string]interface{}
	Tags       []string
	UsageCount int
	Active     bool
	CreatedAt  time.Time
	UpdatedAt  *time.Time
	DeletedAt  *time.Time
	IsDeleted  bool
}
