package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"construction-chatbot-be/internal/dto"
	"construction-chatbot-be/internal/entity"
	"construction-chatbot-be/internal/pkg/logger"
	"construction-chatbot-be/pkg/intent"
	"construction-chatbot-be/pkg/safety"
	"construction-chatbot-be/pkg/sse"
)

type fakeChatbot struct {
	prepared *PreparedQuery
	err      error
}

func (f *fakeChatbot) ProcessQuestion(_ context.Context, _ *dto.AskRequest) (*dto.AskResponse, error) {
	return nil, errors.New("not supported")
}

func (f *fakeChatbot) Prepare(_ context.Context, question string) (*PreparedQuery, error) {
	return f.prepared, f.err
}

func (f *fakeChatbot) Status() *dto.StatusResponse {
	return &dto.StatusResponse{}
}

// streamAndCollect runs the streaming pipeline, then drains the sealed
// bus and returns the event types in wire order.
func streamAndCollect(t *testing.T, svc IStreamingService, question string) []string {
	t.Helper()

	bus := sse.NewBus(0)
	svc.StreamQuestion(context.Background(), question, bus)

	var buf bytes.Buffer
	require.NoError(t, bus.Drain(&buf))

	var types []string
	for _, line := range strings.Split(buf.String(), "\n") {
		if rest, ok := strings.CutPrefix(line, "event: "); ok {
			types = append(types, rest)
		}
	}
	return types
}

func newStreamingFixture(prepared *PreparedQuery, narrator *fakeNarrator, archive *fakeArchiveService) IStreamingService {
	return NewStreamingService(
		&fakeChatbot{prepared: prepared},
		narrator,
		archive,
		logger.NewNopLogger(),
	)
}

func TestStreamQuestion_InfoFlow(t *testing.T) {
	prepared := &PreparedQuery{
		Question:    "combien de dossiers",
		Intent:      intent.IntentInfo,
		Results:     []map[string]any{{"count": 4}},
		ResultCount: 1,
	}
	narrator := &fakeNarrator{chunks: []string{"Il y a ", "4 dossiers."}}
	svc := newStreamingFixture(prepared, narrator, &fakeArchiveService{})

	types := streamAndCollect(t, svc, "combien de dossiers ?")
	assert.Equal(t, []string{"chunk", "chunk", "llm_complete", "end"}, types)
	assert.Equal(t, 1, narrator.generateCalls)
	assert.Zero(t, narrator.chitchatCalls)
}

func TestStreamQuestion_ChitchatFlow(t *testing.T) {
	prepared := &PreparedQuery{Question: "bonjour", Intent: intent.IntentChitchat}
	narrator := &fakeNarrator{chunks: []string{"Bonjour !"}}
	svc := newStreamingFixture(prepared, narrator, &fakeArchiveService{})

	types := streamAndCollect(t, svc, "bonjour")
	assert.Equal(t, []string{"chunk", "llm_complete", "end"}, types)
	assert.Equal(t, 1, narrator.chitchatCalls)
	assert.Zero(t, narrator.generateCalls)
}

func TestStreamQuestion_DownloadFlow(t *testing.T) {
	prepared := &PreparedQuery{
		Question:    "télécharge les rapports",
		Intent:      intent.IntentDownload,
		ResultCount: 2,
	}
	narrator := &fakeNarrator{chunks: []string{"Je prépare vos fichiers."}}
	archive := &fakeArchiveService{result: &entity.ArchiveResult{
		Success:     true,
		FileName:    "reports.zip",
		DownloadURL: "/downloads/reports.zip",
		Stats:       entity.ArchiveStats{TotalRequested: 2, Downloaded: 2, TotalSize: "10 B", ErrorDetails: []string{}},
	}}
	svc := newStreamingFixture(prepared, narrator, archive)

	types := streamAndCollect(t, svc, "télécharge les rapports")
	assert.Equal(t, []string{
		"chunk", "llm_complete",
		"download_step", "download_step", "download_step",
		"download_ready", "end",
	}, types)
	assert.Equal(t, 1, archive.buildCalls)
	// rows path, no search result attached
	assert.Equal(t, 1, archive.sqlCalls)
	assert.Zero(t, archive.searchCalls)
}

func TestStreamQuestion_DownloadFailureEmitsDownloadError(t *testing.T) {
	prepared := &PreparedQuery{
		Question:    "télécharge les rapports",
		Intent:      intent.IntentDownload,
		ResultCount: 1,
	}
	archive := &fakeArchiveService{result: &entity.ArchiveResult{
		Success: false,
		Error:   "Aucun fichier n'a pu être téléchargé.",
	}}
	svc := newStreamingFixture(prepared, &fakeNarrator{chunks: []string{"ok"}}, archive)

	types := streamAndCollect(t, svc, "télécharge les rapports")
	assert.Equal(t, []string{
		"chunk", "llm_complete",
		"download_step", "download_step", "download_step",
		"download_error", "end",
	}, types)
}

func TestStreamQuestion_DownloadSkippedWithoutResults(t *testing.T) {
	prepared := &PreparedQuery{
		Question: "télécharge les rapports",
		Intent:   intent.IntentDownload,
	}
	archive := &fakeArchiveService{}
	svc := newStreamingFixture(prepared, &fakeNarrator{chunks: []string{"Aucun rapport trouvé."}}, archive)

	types := streamAndCollect(t, svc, "télécharge les rapports")
	assert.Equal(t, []string{"chunk", "llm_complete", "end"}, types)
	assert.Zero(t, archive.buildCalls)
}

func TestStreamQuestion_PrepareFailureEmitsError(t *testing.T) {
	svc := NewStreamingService(
		&fakeChatbot{err: errors.New("connection refused")},
		&fakeNarrator{},
		&fakeArchiveService{},
		logger.NewNopLogger(),
	)

	bus := sse.NewBus(0)
	svc.StreamQuestion(context.Background(), "combien de dossiers ?", bus)

	var buf bytes.Buffer
	require.NoError(t, bus.Drain(&buf))

	assert.Contains(t, buf.String(), "event: error")
	assert.Contains(t, buf.String(), "Je n'ai pas pu traiter votre question")
	assert.Contains(t, buf.String(), `"hasError":true`)
}

func TestStreamQuestion_UnsafeQueryEmitsSecurityMessage(t *testing.T) {
	svc := NewStreamingService(
		&fakeChatbot{err: &safety.UnsafeQueryError{Check: safety.CheckDeniedKeyword, Reason: "DROP"}},
		&fakeNarrator{},
		&fakeArchiveService{},
		logger.NewNopLogger(),
	)

	bus := sse.NewBus(0)
	svc.StreamQuestion(context.Background(), "question", bus)

	var buf bytes.Buffer
	require.NoError(t, bus.Drain(&buf))

	assert.Contains(t, buf.String(), "bloquée pour des raisons de sécurité")
	// the offending keyword stays server-side
	assert.NotContains(t, buf.String(), "DROP")
}

func TestStreamQuestion_NarrationFailureEmitsError(t *testing.T) {
	prepared := &PreparedQuery{Question: "combien", Intent: intent.IntentInfo}
	svc := newStreamingFixture(prepared, &fakeNarrator{err: errors.New("stream reset")}, &fakeArchiveService{})

	types := streamAndCollect(t, svc, "combien")
	assert.Equal(t, []string{"error", "end"}, types)
}
