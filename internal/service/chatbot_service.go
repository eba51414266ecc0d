package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"construction-chatbot-be/internal/config"
	"construction-chatbot-be/internal/dto"
	"construction-chatbot-be/internal/entity"
	"construction-chatbot-be/internal/pkg/apperrors"
	"construction-chatbot-be/internal/pkg/logger"
	"construction-chatbot-be/pkg/executor"
	"construction-chatbot-be/pkg/intent"
	"construction-chatbot-be/pkg/safety"
	"construction-chatbot-be/pkg/sse"
	"construction-chatbot-be/pkg/textnorm"
)

// Collaborator contracts, satisfied by pkg/intent, pkg/generate,
// pkg/safety, pkg/schema and pkg/executor. Kept narrow so the pipeline
// can be tested with fakes.
type intentClassifier interface {
	Classify(ctx context.Context, question string) (intent.Intent, error)
}

type sqlQueryGenerator interface {
	Generate(ctx context.Context, question string, schema map[string][]string, queryIntent intent.Intent) (string, error)
}

type esQueryGenerator interface {
	GenerateQueryBody(ctx context.Context, question string, mapping []string, queryIntent intent.Intent, contextualExamples string) (map[string]any, error)
}

type narrator interface {
	Generate(ctx context.Context, question string, results any, executedQuery string) (string, error)
	Stream(ctx context.Context, question string, results any, executedQuery string, onChunk func(chunk string) error) error
	GenerateChitchat(ctx context.Context, question string) (string, error)
	StreamChitchat(ctx context.Context, question string, onChunk func(chunk string) error) error
}

type sqlQueryValidator interface {
	Validate(query string) (string, error)
}

type esQueryValidator interface {
	ValidateDocument(doc map[string]any) error
}

type sqlSchemaDescriber interface {
	TablesStructure(ctx context.Context) (map[string][]string, error)
}

type esSchemaDescriber interface {
	MappingStructure(ctx context.Context) []string
}

type sqlQueryExecutor interface {
	ExecuteQuery(ctx context.Context, query string) ([]map[string]any, error)
}

type esQueryExecutor interface {
	ExecuteQuery(ctx context.Context, body map[string]any) (*executor.SearchResult, error)
}

// PreparedQuery is the outcome of the shared pipeline stages, consumed
// by both the synchronous and the streaming interface.
type PreparedQuery struct {
	Question     string // normalized
	Intent       intent.Intent
	QueryText    string
	Results      any
	ResultCount  int
	SearchResult *executor.SearchResult
	Rows         []map[string]any
	ExamplesUsed int
}

type IChatbotService interface {
	ProcessQuestion(ctx context.Context, req *dto.AskRequest) (*dto.AskResponse, error)
	// Prepare runs normalize, classify, retrieve, generate, validate and
	// execute; narration is left to the caller. For CHITCHAT it stops
	// after classification.
	Prepare(ctx context.Context, question string) (*PreparedQuery, error)
	Status() *dto.StatusResponse
}

type ChatbotDeps struct {
	Normalizer     *textnorm.Normalizer
	Classifier     intentClassifier
	RagService     IRagService
	SQLGenerator   sqlQueryGenerator
	ESGenerator    esQueryGenerator
	Narrator       narrator
	SQLValidator   sqlQueryValidator
	ESValidator    esQueryValidator
	SQLSchema      sqlSchemaDescriber
	ESSchema       esSchemaDescriber
	SQLExecutor    sqlQueryExecutor
	ESExecutor     esQueryExecutor
	ArchiveService IArchiveService
	Config         config.ChatbotConfig
	AllowedTables  []string
	Logger         logger.ILogger
}

type chatbotService struct {
	deps ChatbotDeps
}

func NewChatbotService(deps ChatbotDeps) IChatbotService {
	return &chatbotService{deps: deps}
}

func (s *chatbotService) ProcessQuestion(ctx context.Context, req *dto.AskRequest) (*dto.AskResponse, error) {
	start := time.Now()

	prepared, err := s.Prepare(ctx, req.Question)
	if err != nil {
		return nil, s.mapError(req.Question, err)
	}

	response := &dto.AskResponse{
		Success: true,
		Metadata: dto.AskMetadata{
			Intent:       prepared.Intent.String(),
			Query:        prepared.QueryText,
			ResultCount:  prepared.ResultCount,
			ExamplesUsed: prepared.ExamplesUsed,
		},
	}

	if prepared.Intent == intent.IntentChitchat {
		answer, err := s.deps.Narrator.GenerateChitchat(ctx, prepared.Question)
		if err != nil {
			return nil, s.mapError(req.Question, err)
		}
		response.Response = answer
		response.Metadata.ExecutionTime = time.Since(start).Seconds()
		return response, nil
	}

	answer, err := s.deps.Narrator.Generate(ctx, prepared.Question, prepared.Results, prepared.QueryText)
	if err != nil {
		return nil, s.mapError(req.Question, err)
	}
	response.Response = answer

	if prepared.Intent == intent.IntentDownload {
		response.Download = s.buildDownload(ctx, prepared)
	}

	response.Metadata.ExecutionTime = time.Since(start).Seconds()
	return response, nil
}

func (s *chatbotService) Prepare(ctx context.Context, question string) (*PreparedQuery, error) {
	normalized := s.deps.Normalizer.Normalize(question)

	queryIntent, err := s.deps.Classifier.Classify(ctx, normalized)
	if err != nil {
		// Classification falls back to INFO so a flaky model never
		// blocks the pipeline.
		s.deps.Logger.Warn("chatbot", "Intent classification failed, defaulting to INFO", map[string]interface{}{
			"error": err.Error(),
		})
		queryIntent = intent.IntentInfo
	}

	prepared := &PreparedQuery{Question: normalized, Intent: queryIntent}
	if queryIntent == intent.IntentChitchat {
		return prepared, nil
	}

	examples := s.deps.RagService.FindSimilarExamples(
		ctx, normalized, queryIntent.String(),
		s.deps.Config.SimilarityThreshold, s.deps.Config.MaxExamples,
	)
	prepared.ExamplesUsed = len(examples)

	switch s.deps.Config.QueryBackend {
	case "sql":
		if err := s.prepareSQL(ctx, prepared); err != nil {
			return nil, err
		}
	default:
		contextual := s.deps.RagService.BuildContextualPrompt(examples, "")
		if err := s.prepareES(ctx, prepared, contextual); err != nil {
			return nil, err
		}
	}

	s.deps.RagService.RecordExampleUsage(ctx, examples)
	return prepared, nil
}

func (s *chatbotService) prepareSQL(ctx context.Context, prepared *PreparedQuery) error {
	tables, err := s.deps.SQLSchema.TablesStructure(ctx)
	if err != nil {
		return err
	}

	generated, err := s.deps.SQLGenerator.Generate(ctx, prepared.Question, tables, prepared.Intent)
	if err != nil {
		return err
	}

	clean, err := s.deps.SQLValidator.Validate(generated)
	if err != nil {
		return err
	}

	rows, err := s.deps.SQLExecutor.ExecuteQuery(ctx, clean)
	if err != nil {
		return err
	}

	prepared.QueryText = clean
	prepared.Rows = rows
	prepared.Results = rows
	prepared.ResultCount = len(rows)
	return nil
}

func (s *chatbotService) prepareES(ctx context.Context, prepared *PreparedQuery, contextualExamples string) error {
	mapping := s.deps.ESSchema.MappingStructure(ctx)

	body, err := s.deps.ESGenerator.GenerateQueryBody(ctx, prepared.Question, mapping, prepared.Intent, contextualExamples)
	if err != nil {
		return err
	}

	if err := s.deps.ESValidator.ValidateDocument(body); err != nil {
		return err
	}

	result, err := s.deps.ESExecutor.ExecuteQuery(ctx, body)
	if err != nil {
		return err
	}

	encoded, _ := json.Marshal(body)
	prepared.QueryText = string(encoded)
	prepared.SearchResult = result
	prepared.Results = result
	prepared.ResultCount = len(result.Hits)
	if prepared.ResultCount == 0 && result.Total > 0 {
		prepared.ResultCount = int(result.Total)
	}
	return nil
}

func (s *chatbotService) buildDownload(ctx context.Context, prepared *PreparedQuery) *sse.DownloadInfo {
	var docs []entity.DocumentRef
	if prepared.SearchResult != nil {
		docs = s.deps.ArchiveService.ResolveFromSearchResult(prepared.SearchResult)
	} else {
		docs = s.deps.ArchiveService.ResolveFromSQLRows(prepared.Rows)
	}

	archive := s.deps.ArchiveService.BuildPackage(ctx, docs)
	return downloadInfoFromArchive(archive)
}

// downloadInfoFromArchive shapes an archive result for the client, the
// same way for the synchronous answer and the download_ready event.
func downloadInfoFromArchive(archive *entity.ArchiveResult) *sse.DownloadInfo {
	if !archive.Success {
		return &sse.DownloadInfo{
			Available: false,
			Status:    "error",
			Message:   archive.Error,
		}
	}

	return &sse.DownloadInfo{
		Available:     true,
		Status:        "ready",
		DownloadURL:   archive.DownloadURL,
		Filename:      archive.FileName,
		FileCount:     archive.Stats.Downloaded,
		EstimatedSize: archive.Stats.TotalSize,
		Message:       "Votre archive est prête au téléchargement !",
		Stats: map[string]any{
			"total_requested": archive.Stats.TotalRequested,
			"downloaded":      archive.Stats.Downloaded,
			"errors":          archive.Stats.Errors,
			"total_size":      archive.Stats.TotalSize,
			"error_details":   archive.Stats.ErrorDetails,
		},
		ErrorCount:    archive.Stats.Errors,
		ErrorMessages: archive.Stats.ErrorDetails,
	}
}

func (s *chatbotService) mapError(question string, err error) error {
	var unsafeErr *safety.UnsafeQueryError
	if errors.As(err, &unsafeErr) {
		s.deps.Logger.Warn("chatbot", "Generated query rejected", map[string]interface{}{
			"question": question,
			"check":    unsafeErr.Check,
			"reason":   unsafeErr.Reason,
		})
		return apperrors.NewSecurity(unsafeErr)
	}

	s.deps.Logger.Error("chatbot", "Question processing failed", map[string]interface{}{
		"question": question,
		"error":    err.Error(),
	})
	return apperrors.NewGeneral("Je n'ai pas pu traiter votre question, veuillez réessayer.", err)
}

func (s *chatbotService) Status() *dto.StatusResponse {
	return &dto.StatusResponse{
		Status:        "ok",
		QueryBackend:  s.deps.Config.QueryBackend,
		AllowedTables: s.deps.AllowedTables,
		Time:          time.Now().Format(time.RFC3339),
	}
}
