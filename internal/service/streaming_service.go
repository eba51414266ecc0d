package service

import (
	"context"
	"errors"

	"construction-chatbot-be/internal/entity"
	"construction-chatbot-be/internal/pkg/logger"
	"construction-chatbot-be/pkg/intent"
	"construction-chatbot-be/pkg/safety"
	"construction-chatbot-be/pkg/sse"
)

type IStreamingService interface {
	// StreamQuestion runs the full pipeline and pushes every event onto
	// the bus. Errors are reported on the bus, never returned; the bus
	// is always sealed when StreamQuestion comes back.
	StreamQuestion(ctx context.Context, question string, bus *sse.Bus)
}

type streamingService struct {
	chatbotService IChatbotService
	narrator       narrator
	archiveService IArchiveService
	logger         logger.ILogger
}

func NewStreamingService(
	chatbotService IChatbotService,
	streamNarrator narrator,
	archiveService IArchiveService,
	logger logger.ILogger,
) IStreamingService {
	return &streamingService{
		chatbotService: chatbotService,
		narrator:       streamNarrator,
		archiveService: archiveService,
		logger:         logger,
	}
}

func (s *streamingService) StreamQuestion(ctx context.Context, question string, bus *sse.Bus) {
	prepared, err := s.chatbotService.Prepare(ctx, question)
	if err != nil {
		s.fail(bus, question, err)
		return
	}

	onChunk := func(chunk string) error {
		return bus.SendChunk(chunk)
	}

	if prepared.Intent == intent.IntentChitchat {
		err = s.narrator.StreamChitchat(ctx, prepared.Question, onChunk)
	} else {
		err = s.narrator.Stream(ctx, prepared.Question, prepared.Results, prepared.QueryText, onChunk)
	}
	if err != nil {
		s.fail(bus, question, err)
		return
	}

	if err := bus.SendLlmComplete(); err != nil {
		return
	}

	if prepared.Intent == intent.IntentDownload && prepared.ResultCount > 0 {
		s.streamDownload(ctx, prepared, bus)
	}

	_ = bus.SendFinalComplete()
}

// streamDownload narrates the archive phase step by step, then resolves
// it with download_ready or download_error.
func (s *streamingService) streamDownload(ctx context.Context, prepared *PreparedQuery, bus *sse.Bus) {
	_ = bus.SendDownloadStep("📁 Préparation des fichiers...")

	var docs []entity.DocumentRef
	if prepared.SearchResult != nil {
		docs = s.archiveService.ResolveFromSearchResult(prepared.SearchResult)
	} else {
		docs = s.archiveService.ResolveFromSQLRows(prepared.Rows)
	}

	_ = bus.SendDownloadStep("☁️ Téléchargement depuis le stockage...")
	_ = bus.SendDownloadStep("📦 Création de l'archive ZIP...")

	archive := s.archiveService.BuildPackage(ctx, docs)
	info := downloadInfoFromArchive(archive)
	if archive.Success {
		_ = bus.SendDownloadReady(*info)
	} else {
		_ = bus.SendDownloadError(*info)
	}
}

func (s *streamingService) fail(bus *sse.Bus, question string, err error) {
	var unsafeErr *safety.UnsafeQueryError
	if errors.As(err, &unsafeErr) {
		s.logger.Warn("streaming", "Generated query rejected", map[string]interface{}{
			"question": question,
			"check":    unsafeErr.Check,
			"reason":   unsafeErr.Reason,
		})
		_ = bus.SendError("La requête générée a été bloquée pour des raisons de sécurité")
		return
	}

	s.logger.Error("streaming", "Streaming pipeline failed", map[string]interface{}{
		"question": question,
		"error":    err.Error(),
	})
	_ = bus.SendError("Je n'ai pas pu traiter votre question, veuillez réessayer.")
}
