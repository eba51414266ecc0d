package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"construction-chatbot-be/internal/dto"
	"construction-chatbot-be/internal/entity"
	"construction-chatbot-be/internal/pkg/logger"
	"construction-chatbot-be/internal/repository/contract"
	"construction-chatbot-be/internal/repository/specification"
	"construction-chatbot-be/pkg/embedding"

	"github.com/google/uuid"
)

type IRagService interface {
	// FindSimilarExamples retrieves the active examples most similar to
	// the question. Retrieval failures degrade to an empty result: the
	// chatbot answers without few-shot guidance rather than failing.
	FindSimilarExamples(ctx context.Context, question, intent string, threshold float64, maxResults int) []*contract.ScoredRagExample
	// BuildContextualPrompt appends the retrieved examples to basePrompt.
	BuildContextualPrompt(examples []*contract.ScoredRagExample, basePrompt string) string
	// RecordExampleUsage bumps usage counters, best effort.
	RecordExampleUsage(ctx context.Context, examples []*contract.ScoredRagExample)
	AddExample(ctx context.Context, req *dto.AddExampleRequest) (*dto.AddExampleResponse, error)
	Stats(ctx context.Context) (*dto.RagStatsResponse, error)
}

type ragService struct {
	repository        contract.RagExampleRepository
	embeddingProvider embedding.EmbeddingProvider
	publisherService  IPublisherService
	logger            logger.ILogger
}

func NewRagService(
	repository contract.RagExampleRepository,
	embeddingProvider embedding.EmbeddingProvider,
	publisherService IPublisherService,
	log logger.ILogger,
) IRagService {
	return &ragService{
		repository:        repository,
		embeddingProvider: embeddingProvider,
		publisherService:  publisherService,
		logger:            log,
	}
}

func (s *ragService) FindSimilarExamples(ctx context.Context, question, intent string, threshold float64, maxResults int) []*contract.ScoredRagExample {
	questionEmbedding, err := s.embeddingProvider.Generate(ctx, question)
	if err != nil {
		s.logger.Warn("rag", "Failed to embed question, answering without examples", map[string]interface{}{
			"error": err.Error(),
		})
		return nil
	}
	if len(questionEmbedding) == 0 {
		s.logger.Warn("rag", "No embedding generated for question", map[string]interface{}{
			"question": question,
		})
		return nil
	}

	examples, err := s.repository.SearchSimilarWithScore(ctx, questionEmbedding, intent, threshold, maxResults)
	if err != nil {
		s.logger.Warn("rag", "Vector search failed, answering without examples", map[string]interface{}{
			"error": err.Error(),
		})
		return nil
	}
	return examples
}

func (s *ragService) BuildContextualPrompt(examples []*contract.ScoredRagExample, basePrompt string) string {
	if len(examples) == 0 {
		return basePrompt
	}

	var b strings.Builder
	b.WriteString(basePrompt)
	b.WriteString("\n\n## Exemples similaires pertinents:\n\n")

	for i, scored := range examples {
		b.WriteString(fmt.Sprintf("### Exemple %d (similarité: %.1f%%)\n", i+1, scored.Similarity*100))
		b.WriteString("**Question:** " + scored.Example.Question + "\n")
		b.WriteString("**Query:**\n```json\n")
		b.WriteString(scored.Example.Query)
		b.WriteString("\n```\n\n")
	}

	b.WriteString("---\n\n")
	b.WriteString("Utilise ces exemples similaires comme guide pour générer une query appropriée.\n")
	return b.String()
}

func (s *ragService) RecordExampleUsage(ctx context.Context, examples []*contract.ScoredRagExample) {
	if len(examples) == 0 {
		return
	}

	ids := make([]uuid.UUID, 0, len(examples))
	for _, scored := range examples {
		ids = append(ids, scored.Example.Id)
	}

	if err := s.repository.IncrementUsage(ctx, ids); err != nil {
		s.logger.Error("rag", "Failed to update example usage", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	s.logger.Info("rag", "Updated example usage statistics", map[string]interface{}{
		"updated_count": len(ids),
	})
}

// AddExample stores the example inactive and hands it to the embedding
// consumer; it becomes retrievable once its vector is in place. Adding
// an already known question/intent pair returns the existing example.
func (s *ragService) AddExample(ctx context.Context, req *dto.AddExampleRequest) (*dto.AddExampleResponse, error) {
	existing, err := s.repository.FindOne(ctx,
		specification.ByQuestion{Question: req.Question},
		specification.ByIntent{Intent: req.Intent},
	)
	if err != nil {
		return nil, fmt.Errorf("check existing example: %w", err)
	}
	if existing != nil {
		return &dto.AddExampleResponse{Id: existing.Id, Active: existing.Active}, nil
	}

	example := entity.RagExample{
		Id:        uuid.New(),
		Question:  req.Question,
		Query:     req.Query,
		Intent:    req.Intent,
		Metadata:  req.Metadata,
		Tags:      req.Tags,
		Active:    false,
		CreatedAt: time.Now(),
	}

	if err := s.repository.Create(ctx, &example); err != nil {
		return nil, fmt.Errorf("create example: %w", err)
	}

	if err := s.publisherService.PublishEmbedExample(ctx, example.Id); err != nil {
		s.logger.Error("rag", "Failed to publish embed message", map[string]interface{}{
			"example_id": example.Id.String(),
			"error":      err.Error(),
		})
	}

	return &dto.AddExampleResponse{Id: example.Id, Active: example.Active}, nil
}

func (s *ragService) Stats(ctx context.Context) (*dto.RagStatsResponse, error) {
	total, err := s.repository.Count(ctx)
	if err != nil {
		return nil, err
	}
	active, err := s.repository.Count(ctx, specification.ActiveOnly{})
	if err != nil {
		return nil, err
	}
	usage, err := s.repository.UsageStats(ctx)
	if err != nil {
		return nil, err
	}

	rows := make([]dto.IntentUsageRow, len(usage))
	for i, u := range usage {
		rows[i] = dto.IntentUsageRow{Intent: u.Intent, Count: u.Count, TotalUsage: u.TotalUsage}
	}

	return &dto.RagStatsResponse{
		TotalExamples:  total,
		ActiveExamples: active,
		PerIntent:      rows,
		GeneratedAt:    time.Now(),
	}, nil
}
