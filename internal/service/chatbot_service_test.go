package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"construction-chatbot-be/internal/config"
	"construction-chatbot-be/internal/dto"
	"construction-chatbot-be/internal/entity"
	"construction-chatbot-be/internal/pkg/apperrors"
	"construction-chatbot-be/internal/pkg/logger"
	"construction-chatbot-be/internal/repository/contract"
	"construction-chatbot-be/pkg/executor"
	"construction-chatbot-be/pkg/intent"
	"construction-chatbot-be/pkg/safety"
	"construction-chatbot-be/pkg/textnorm"
)

type fakeClassifier struct {
	result intent.Intent
	err    error
	calls  int
}

func (f *fakeClassifier) Classify(_ context.Context, _ string) (intent.Intent, error) {
	f.calls++
	return f.result, f.err
}

type fakeRagService struct {
	examples      []*contract.ScoredRagExample
	recordedCalls int
	promptCalls   int
}

func (f *fakeRagService) FindSimilarExamples(_ context.Context, _, _ string, _ float64, _ int) []*contract.ScoredRagExample {
	return f.examples
}

func (f *fakeRagService) BuildContextualPrompt(examples []*contract.ScoredRagExample, basePrompt string) string {
	f.promptCalls++
	return basePrompt
}

func (f *fakeRagService) RecordExampleUsage(_ context.Context, examples []*contract.ScoredRagExample) {
	f.recordedCalls += len(examples)
}

func (f *fakeRagService) AddExample(_ context.Context, _ *dto.AddExampleRequest) (*dto.AddExampleResponse, error) {
	return nil, errors.New("not supported")
}

func (f *fakeRagService) Stats(_ context.Context) (*dto.RagStatsResponse, error) {
	return nil, errors.New("not supported")
}

type fakeNarrator struct {
	answer        string
	chitchat      string
	chunks        []string
	err           error
	generateCalls int
	chitchatCalls int
}

func (f *fakeNarrator) Generate(_ context.Context, _ string, _ any, _ string) (string, error) {
	f.generateCalls++
	return f.answer, f.err
}

func (f *fakeNarrator) Stream(_ context.Context, _ string, _ any, _ string, onChunk func(string) error) error {
	f.generateCalls++
	if f.err != nil {
		return f.err
	}
	for _, c := range f.chunks {
		if err := onChunk(c); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeNarrator) GenerateChitchat(_ context.Context, _ string) (string, error) {
	f.chitchatCalls++
	return f.chitchat, f.err
}

func (f *fakeNarrator) StreamChitchat(_ context.Context, _ string, onChunk func(string) error) error {
	f.chitchatCalls++
	if f.err != nil {
		return f.err
	}
	for _, c := range f.chunks {
		if err := onChunk(c); err != nil {
			return err
		}
	}
	return nil
}

type fakeESGenerator struct {
	body  map[string]any
	err   error
	calls int
}

func (f *fakeESGenerator) GenerateQueryBody(_ context.Context, _ string, _ []string, _ intent.Intent, _ string) (map[string]any, error) {
	f.calls++
	return f.body, f.err
}

type fakeSQLGenerator struct {
	query string
	err   error
	calls int
}

func (f *fakeSQLGenerator) Generate(_ context.Context, _ string, _ map[string][]string, _ intent.Intent) (string, error) {
	f.calls++
	return f.query, f.err
}

type fakeESValidator struct {
	err   error
	calls int
}

func (f *fakeESValidator) ValidateDocument(_ map[string]any) error {
	f.calls++
	return f.err
}

type fakeSQLValidator struct {
	err   error
	calls int
}

func (f *fakeSQLValidator) Validate(query string) (string, error) {
	f.calls++
	return query, f.err
}

type fakeESSchema struct{ calls int }

func (f *fakeESSchema) MappingStructure(_ context.Context) []string {
	f.calls++
	return []string{"caseReference (keyword)"}
}

type fakeSQLSchema struct{ calls int }

func (f *fakeSQLSchema) TablesStructure(_ context.Context) (map[string][]string, error) {
	f.calls++
	return map[string][]string{"reports": {"id (uuid, NOT NULL)"}}, nil
}

type fakeESExecutor struct {
	result *executor.SearchResult
	err    error
	calls  int
}

func (f *fakeESExecutor) ExecuteQuery(_ context.Context, _ map[string]any) (*executor.SearchResult, error) {
	f.calls++
	return f.result, f.err
}

type fakeSQLExecutor struct {
	rows  []map[string]any
	err   error
	calls int
}

func (f *fakeSQLExecutor) ExecuteQuery(_ context.Context, _ string) ([]map[string]any, error) {
	f.calls++
	return f.rows, f.err
}

type fakeArchiveService struct {
	result      *entity.ArchiveResult
	searchCalls int
	sqlCalls    int
	buildCalls  int
}

func (f *fakeArchiveService) BuildPackage(_ context.Context, _ []entity.DocumentRef) *entity.ArchiveResult {
	f.buildCalls++
	return f.result
}

func (f *fakeArchiveService) ResolveFromSearchResult(_ *executor.SearchResult) []entity.DocumentRef {
	f.searchCalls++
	return []entity.DocumentRef{{Key: "report/a/b.pdf", Name: "b.pdf"}}
}

func (f *fakeArchiveService) ResolveFromSQLRows(_ []map[string]any) []entity.DocumentRef {
	f.sqlCalls++
	return []entity.DocumentRef{{Key: "report/a/b.pdf", Name: "b.pdf"}}
}

type pipelineFakes struct {
	classifier  *fakeClassifier
	rag         *fakeRagService
	narrator    *fakeNarrator
	esGenerator *fakeESGenerator
	sqlGen      *fakeSQLGenerator
	esValidator *fakeESValidator
	sqlVal      *fakeSQLValidator
	esExecutor  *fakeESExecutor
	sqlExecutor *fakeSQLExecutor
	archive     *fakeArchiveService
}

func newPipeline(t *testing.T, backend string, fakes *pipelineFakes) IChatbotService {
	t.Helper()

	return NewChatbotService(ChatbotDeps{
		Normalizer:     textnorm.NewNormalizer(),
		Classifier:     fakes.classifier,
		RagService:     fakes.rag,
		SQLGenerator:   fakes.sqlGen,
		ESGenerator:    fakes.esGenerator,
		Narrator:       fakes.narrator,
		SQLValidator:   fakes.sqlVal,
		ESValidator:    fakes.esValidator,
		SQLSchema:      &fakeSQLSchema{},
		ESSchema:       &fakeESSchema{},
		SQLExecutor:    fakes.sqlExecutor,
		ESExecutor:     fakes.esExecutor,
		ArchiveService: fakes.archive,
		Config: config.ChatbotConfig{
			QueryBackend:        backend,
			SimilarityThreshold: 0.65,
			MaxExamples:         3,
		},
		AllowedTables: []string{"client_cases", "reports", "reviews"},
		Logger:        logger.NewNopLogger(),
	})
}

func defaultFakes() *pipelineFakes {
	return &pipelineFakes{
		classifier:  &fakeClassifier{result: intent.IntentInfo},
		rag:         &fakeRagService{},
		narrator:    &fakeNarrator{answer: "Voici les résultats.", chitchat: "Bonjour !"},
		esGenerator: &fakeESGenerator{body: map[string]any{"query": map[string]any{"match_all": map[string]any{}}, "size": float64(10)}},
		sqlGen:      &fakeSQLGenerator{query: "SELECT COUNT(*) FROM reports WHERE deleted_at IS NULL;"},
		esValidator: &fakeESValidator{},
		sqlVal:      &fakeSQLValidator{},
		esExecutor: &fakeESExecutor{result: &executor.SearchResult{
			Total: 2,
			Hits: []executor.Hit{
				{ID: "case-1", Data: map[string]any{"caseReference": "REF-1"}},
				{ID: "case-2", Data: map[string]any{"caseReference": "REF-2"}},
			},
		}},
		sqlExecutor: &fakeSQLExecutor{rows: []map[string]any{{"count": int64(4)}}},
		archive:     &fakeArchiveService{result: &entity.ArchiveResult{Success: true, FileName: "reports.zip", DownloadURL: "/downloads/reports.zip", Stats: entity.ArchiveStats{TotalRequested: 1, Downloaded: 1, TotalSize: "12 B", ErrorDetails: []string{}}}},
	}
}

func TestProcessQuestion_ChitchatShortCircuits(t *testing.T) {
	fakes := defaultFakes()
	fakes.classifier.result = intent.IntentChitchat
	svc := newPipeline(t, "elasticsearch", fakes)

	resp, err := svc.ProcessQuestion(context.Background(), &dto.AskRequest{Question: "bonjour, ça va ?"})
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.Equal(t, "Bonjour !", resp.Response)
	assert.Equal(t, "CHITCHAT", resp.Metadata.Intent)
	assert.Empty(t, resp.Metadata.Query)
	assert.Nil(t, resp.Download)

	// small talk must never reach the data layer
	assert.Zero(t, fakes.esGenerator.calls)
	assert.Zero(t, fakes.sqlGen.calls)
	assert.Zero(t, fakes.esValidator.calls)
	assert.Zero(t, fakes.esExecutor.calls)
	assert.Zero(t, fakes.sqlExecutor.calls)
	assert.Equal(t, 1, fakes.narrator.chitchatCalls)
	assert.Zero(t, fakes.narrator.generateCalls)
}

func TestProcessQuestion_ElasticsearchFlow(t *testing.T) {
	fakes := defaultFakes()
	fakes.rag.examples = []*contract.ScoredRagExample{
		{Example: &entity.RagExample{Question: "q1"}, Similarity: 0.9},
		{Example: &entity.RagExample{Question: "q2"}, Similarity: 0.8},
	}
	svc := newPipeline(t, "elasticsearch", fakes)

	resp, err := svc.ProcessQuestion(context.Background(), &dto.AskRequest{Question: "Combien de dossiers ?"})
	require.NoError(t, err)

	assert.Equal(t, "INFO", resp.Metadata.Intent)
	assert.Equal(t, 2, resp.Metadata.ResultCount)
	assert.Equal(t, 2, resp.Metadata.ExamplesUsed)
	assert.Contains(t, resp.Metadata.Query, "match_all")
	assert.Equal(t, 1, fakes.esGenerator.calls)
	assert.Equal(t, 1, fakes.esValidator.calls)
	assert.Equal(t, 1, fakes.esExecutor.calls)
	assert.Zero(t, fakes.sqlGen.calls)
	assert.Equal(t, 2, fakes.rag.recordedCalls)
	assert.Nil(t, resp.Download)
}

func TestProcessQuestion_SQLFlow(t *testing.T) {
	fakes := defaultFakes()
	svc := newPipeline(t, "sql", fakes)

	resp, err := svc.ProcessQuestion(context.Background(), &dto.AskRequest{Question: "Combien de rapports ?"})
	require.NoError(t, err)

	assert.Equal(t, 1, fakes.sqlGen.calls)
	assert.Equal(t, 1, fakes.sqlVal.calls)
	assert.Equal(t, 1, fakes.sqlExecutor.calls)
	assert.Zero(t, fakes.esGenerator.calls)
	assert.Equal(t, 1, resp.Metadata.ResultCount)
	assert.Contains(t, resp.Metadata.Query, "SELECT COUNT(*)")
}

func TestProcessQuestion_ClassifierFailureDefaultsToInfo(t *testing.T) {
	fakes := defaultFakes()
	fakes.classifier.err = errors.New("model unavailable")
	svc := newPipeline(t, "elasticsearch", fakes)

	resp, err := svc.ProcessQuestion(context.Background(), &dto.AskRequest{Question: "Combien de dossiers ?"})
	require.NoError(t, err)

	assert.Equal(t, "INFO", resp.Metadata.Intent)
	assert.Equal(t, 1, fakes.esExecutor.calls)
}

func TestProcessQuestion_UnsafeQueryMapsToSecurityError(t *testing.T) {
	fakes := defaultFakes()
	fakes.esValidator.err = &safety.UnsafeQueryError{Check: safety.CheckDocumentKeys, Reason: "script key"}
	svc := newPipeline(t, "elasticsearch", fakes)

	_, err := svc.ProcessQuestion(context.Background(), &dto.AskRequest{Question: "Combien de dossiers ?"})
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.TypeSecurity, appErr.Type)
	// the internal reason is never surfaced in the client message
	assert.NotContains(t, appErr.Message, "script key")

	assert.Zero(t, fakes.esExecutor.calls)
}

func TestProcessQuestion_ExecutionFailureMapsToGeneralError(t *testing.T) {
	fakes := defaultFakes()
	fakes.esExecutor.err = errors.New("connection refused")
	svc := newPipeline(t, "elasticsearch", fakes)

	_, err := svc.ProcessQuestion(context.Background(), &dto.AskRequest{Question: "Combien de dossiers ?"})
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.TypeGeneral, appErr.Type)
	assert.Equal(t, "Je n'ai pas pu traiter votre question, veuillez réessayer.", appErr.Message)
}

func TestProcessQuestion_DownloadBuildsArchive(t *testing.T) {
	fakes := defaultFakes()
	fakes.classifier.result = intent.IntentDownload
	svc := newPipeline(t, "elasticsearch", fakes)

	resp, err := svc.ProcessQuestion(context.Background(), &dto.AskRequest{Question: "Télécharge les rapports du dossier REF-1"})
	require.NoError(t, err)

	require.NotNil(t, resp.Download)
	assert.True(t, resp.Download.Available)
	assert.Equal(t, "ready", resp.Download.Status)
	assert.Equal(t, "/downloads/reports.zip", resp.Download.DownloadURL)
	assert.Equal(t, 1, fakes.archive.searchCalls)
	assert.Zero(t, fakes.archive.sqlCalls)
	assert.Equal(t, 1, fakes.archive.buildCalls)
}

func TestProcessQuestion_DownloadFailureIsReportedNotFatal(t *testing.T) {
	fakes := defaultFakes()
	fakes.classifier.result = intent.IntentDownload
	fakes.archive.result = &entity.ArchiveResult{Success: false, Error: "Aucun fichier n'a pu être téléchargé."}
	svc := newPipeline(t, "elasticsearch", fakes)

	resp, err := svc.ProcessQuestion(context.Background(), &dto.AskRequest{Question: "Télécharge les rapports"})
	require.NoError(t, err)

	require.NotNil(t, resp.Download)
	assert.False(t, resp.Download.Available)
	assert.Equal(t, "error", resp.Download.Status)
	assert.Equal(t, "Aucun fichier n'a pu être téléchargé.", resp.Download.Message)
}

func TestStatus(t *testing.T) {
	fakes := defaultFakes()
	svc := newPipeline(t, "elasticsearch", fakes)

	status := svc.Status()
	assert.Equal(t, "ok", status.Status)
	assert.Equal(t, "elasticsearch", status.QueryBackend)
	assert.Equal(t, []string{"client_cases", "reports", "reviews"}, status.AllowedTables)
}
