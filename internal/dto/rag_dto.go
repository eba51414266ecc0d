package dto

import (
	"time"

	"github.com/google/uuid"
)

type AddExampleRequest struct {
	Question string                 `json:"question" validate:"required,min=1,max=2000"`
	Query    string                 `json:"query" validate:"required"`
	Intent   string                 `json:"intent" validate:"required,oneof=INFO DOWNLOAD CHITCHAT"`
	Metadata map[string]interface{} `json:"metadata"`
	Tags     []string               `json:"tags"`
}

type AddExampleResponse struct {
	Id     uuid.UUID `json:"id"`
	Active bool      `json:"active"`
}

type RagStatsResponse struct {
	TotalExamples  int64            `json:"total_examples"`
	ActiveExamples int64            `json:"active_examples"`
	PerIntent      []IntentUsageRow `json:"per_intent"`
	GeneratedAt    time.Time        `json:"generated_at"`
}

type IntentUsageRow struct {
	Intent     string `json:"intent"`
	Count      int64  `json:"count"`
	TotalUsage int64  `json:"total_usage"`
}
