package dto

import "construction-chatbot-be/pkg/sse"

type AskRequest struct {
	Question  string `json:"question" validate:"required,min=1,max=2000"`
	SessionId string `json:"session_id"`
}

// AskMetadata describes how the answer was produced.
type AskMetadata struct {
	Intent        string  `json:"intent"`
	Query         string  `json:"query,omitempty"`
	ExecutionTime float64 `json:"execution_time"`
	ResultCount   int     `json:"result_count"`
	ExamplesUsed  int     `json:"examples_used"`
}

type AskResponse struct {
	Success  bool              `json:"success"`
	Response string            `json:"response"`
	Metadata AskMetadata       `json:"metadata"`
	Download *sse.DownloadInfo `json:"download,omitempty"`
}

type StatusResponse struct {
	Status        string   `json:"status"`
	QueryBackend  string   `json:"query_backend"`
	AllowedTables []string `json:"allowed_tables"`
	Time          string   `json:"time"`
}
