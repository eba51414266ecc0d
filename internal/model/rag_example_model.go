package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type RagExample struct {
	Id             uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Question       string          `gorm:"type:text;not null"`
	Query          string          `gorm:"type:text;not null"`
	Intent         string          `gorm:"type:varchar(20);not null;index"`
	EmbeddingValue pgvector.Vector `gorm:"type:vector(384)"` // all-MiniLM-L6-v2 uses 384 dimensions
	Metadata       datatypes.JSON  `gorm:"type:jsonb"`
	Tags           datatypes.JSON  `gorm:"type:jsonb"`
	UsageCount     int             `gorm:"default:0"`
	Active         bool            `gorm:"default:false;index"`
	CreatedAt      time.Time       `gorm:"autoCreateTime"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime"`
	DeletedAt      gorm.DeletedAt  `gorm:"index"`
}

func (RagExample) TableName() string {
	return "rag_examples"
}
