package generate

import (
	"context"
	"encoding/json"
	"fmt"

	"construction-chatbot-be/pkg/llm"
)

const humanResponseSystemPrompt = "Tu es un assistant spécialisé dans le bâtiment. Tu dois transformer des résultats de base de données en réponses compréhensibles pour des utilisateurs non techniques.\n\n" +
	"TYPES DE DEMANDES:\n" +
	"1. INFORMATION (combien, liste, résumé, qui, quand, etc.) → Fournis une réponse textuelle normale\n" +
	"2. TÉLÉCHARGEMENT (télécharger, récupérer, envoyer, exporter des fichiers/rapports) → Confirme que les fichiers sont en cours de préparation\n\n" +
	"RÈGLES MÉTIER:\n" +
	"- Par défaut, considère uniquement les éléments actifs (is_enabled = TRUE, deleted_at IS NULL)\n" +
	"- Si l'utilisateur demande explicitement 'tous' ou 'y compris supprimés', alors inclus tout\n" +
	"- Sois précis dans tes réponses et utilise les termes métier appropriés\n"

const chitchatSystemPrompt = "Tu es l'assistant d'une entreprise de bâtiment. La question de l'utilisateur ne concerne pas les données de l'entreprise. " +
	"Réponds poliment et brièvement, et invite l'utilisateur à poser une question sur les affaires, rapports ou avis.\n"

// ResponseGenerator narrates query results back to the user.
type ResponseGenerator struct {
	llmProvider llm.LLMProvider
}

func NewResponseGenerator(llmProvider llm.LLMProvider) *ResponseGenerator {
	return &ResponseGenerator{llmProvider: llmProvider}
}

// Generate produces the complete answer in one call.
func (g *ResponseGenerator) Generate(ctx context.Context, question string, results any, executedQuery string) (string, error) {
	history, err := buildNarrationHistory(question, results, executedQuery)
	if err != nil {
		return "", err
	}

	response, err := g.llmProvider.Chat(ctx, history, llm.WithTemperature(0.7))
	if err != nil {
		return "", fmt.Errorf("response generation failed: %w", err)
	}
	return response, nil
}

// Stream narrates the answer chunk by chunk, forwarding each chunk to
// onChunk as it arrives from the model.
func (g *ResponseGenerator) Stream(ctx context.Context, question string, results any, executedQuery string, onChunk func(chunk string) error) error {
	history, err := buildNarrationHistory(question, results, executedQuery)
	if err != nil {
		return err
	}

	if err := g.llmProvider.ChatStream(ctx, history, onChunk, llm.WithTemperature(0.7)); err != nil {
		return fmt.Errorf("streaming response generation failed: %w", err)
	}
	return nil
}

// GenerateChitchat answers an off-topic question without touching any
// data source.
func (g *ResponseGenerator) GenerateChitchat(ctx context.Context, question string) (string, error) {
	history := []llm.Message{
		{Role: "system", Content: chitchatSystemPrompt},
		{Role: "user", Content: question},
	}

	response, err := g.llmProvider.Chat(ctx, history, llm.WithTemperature(0.7))
	if err != nil {
		return "", fmt.Errorf("chitchat response generation failed: %w", err)
	}
	return response, nil
}

// StreamChitchat is the streaming counterpart of GenerateChitchat.
func (g *ResponseGenerator) StreamChitchat(ctx context.Context, question string, onChunk func(chunk string) error) error {
	history := []llm.Message{
		{Role: "system", Content: chitchatSystemPrompt},
		{Role: "user", Content: question},
	}

	if err := g.llmProvider.ChatStream(ctx, history, onChunk, llm.WithTemperature(0.7)); err != nil {
		return fmt.Errorf("streaming chitchat generation failed: %w", err)
	}
	return nil
}

func buildNarrationHistory(question string, results any, executedQuery string) ([]llm.Message, error) {
	encoded, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal results for narration: %w", err)
	}

	userPrompt := fmt.Sprintf(
		"Question originale: %s\n\nRequête exécutée: %s\n\nRésultats de la base de données: %s\n\nFournis une réponse claire et compréhensible à l'utilisateur.",
		question,
		executedQuery,
		string(encoded),
	)

	return []llm.Message{
		{Role: "system", Content: humanResponseSystemPrompt},
		{Role: "user", Content: userPrompt},
	}, nil
}
