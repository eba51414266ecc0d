package intent

import (
	"context"
	"strings"

	"construction-chatbot-be/pkg/llm"
)

// Classifier resolves a question to one Intent through a single
// deterministic LLM call. Classification failures degrade to INFO so a
// flaky model never blocks the pipeline.
type Classifier struct {
	llmProvider llm.LLMProvider
}

func NewClassifier(llmProvider llm.LLMProvider) *Classifier {
	return &Classifier{
		llmProvider: llmProvider,
	}
}

func (c *Classifier) Classify(ctx context.Context, question string) (Intent, error) {
	history := []llm.Message{
		{Role: "system", Content: classificationPrompt},
		{Role: "user", Content: "Question de l'utilisateur: " + question},
	}

	response, err := c.llmProvider.Chat(ctx, history, llm.WithTemperature(0.0))
	if err != nil {
		return IntentInfo, err
	}

	return Parse(strings.ToUpper(strings.TrimSpace(response))), nil
}

const classificationPrompt = `You are an intent classifier for a construction company's case database assistant.

Analyse the user's question and answer with exactly one label.

INTENT TYPES:
- INFO: the user wants information, statistics, counts or textual lists
- DOWNLOAD: the user wants to retrieve, download or export files/reports
- CHITCHAT: greetings, thanks, or anything unrelated to the case database

DOWNLOAD keywords (French): donner, fournir, envoyer, télécharger, récupérer, exporter, "peux-tu me donner", "j'ai besoin de"
INFO keywords (French): combien, comment, qui, quand, où, lister, afficher, montrer, "combien de", "quels sont"

INSTRUCTIONS:
- Answer ONLY with INFO, DOWNLOAD or CHITCHAT
- When in doubt between INFO and DOWNLOAD, choose INFO
- Judge the main verb and the overall intention`
