package generate

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"construction-chatbot-be/pkg/intent"
	"construction-chatbot-be/pkg/llm"
)

var (
	jsonFenceOpenPattern = regexp.MustCompile("(?i)```json\\s*")
	anyFencePattern      = regexp.MustCompile("```\\s*")
	jsonObjectPattern    = regexp.MustCompile(`(?s)\{.*\}`)
)

// ESGenerator produces an Elasticsearch search body for a question,
// guided by the index mapping, the classified intent, and retrieved
// few-shot examples.
type ESGenerator struct {
	llmProvider llm.LLMProvider
}

func NewESGenerator(llmProvider llm.LLMProvider) *ESGenerator {
	return &ESGenerator{llmProvider: llmProvider}
}

// GenerateQueryBody returns the parsed search document. contextualExamples
// is appended verbatim to the system prompt; pass an empty string when no
// similar examples were retrieved.
func (g *ESGenerator) GenerateQueryBody(ctx context.Context, question string, mapping []string, queryIntent intent.Intent, contextualExamples string) (map[string]any, error) {
	history := []llm.Message{
		{Role: "system", Content: BuildESSystemPrompt(mapping, queryIntent) + contextualExamples},
		{Role: "user", Content: "Génère une requête Elasticsearch pour répondre à cette question: " + question},
	}

	response, err := g.llmProvider.Chat(ctx, history, llm.WithTemperature(0.1))
	if err != nil {
		return nil, fmt.Errorf("elasticsearch query generation failed: %w", err)
	}

	return extractJSONDocument(response)
}

func BuildESSystemPrompt(mapping []string, queryIntent intent.Intent) string {
	var b strings.Builder
	b.WriteString("Voici la structure de l'index Elasticsearch 'client_case' d'une entreprise de bâtiment:\n\n")

	for _, fieldInfo := range mapping {
		b.WriteString("• " + fieldInfo + "\n")
	}

	b.WriteString("\n\n🎯 ATTENTION - STRUCTURE OPTIMISÉE POUR LLM :\n")
	b.WriteString("• caseReference = référence de L'AFFAIRE (ex: '94P0237518')\n")
	b.WriteString("• reports.reportReference = référence D'UN RAPPORT (ex: 'AD-001')\n")
	b.WriteString("• caseManager = responsable de l'affaire\n")
	b.WriteString("• caseClient = client de l'affaire\n")
	b.WriteString("• reports.reportReviews = avis dans les rapports\n")
	b.WriteString("• reports.reportReviews.reviewDomain = domaine technique (Portes, SSI...)\n")
	b.WriteString("• reports.reportReviews.reviewValueName = valeur décodée (Favorable, Défavorable...)\n\n")

	b.WriteString("\n\nINSTRUCTIONS ELASTICSEARCH:\n\n")
	b.WriteString("1. STRUCTURE DE RÉPONSE:\n")
	b.WriteString("   - Génère UNIQUEMENT le body JSON de la requête Elasticsearch\n")
	b.WriteString("   - Format: JSON valide sans explications\n")
	b.WriteString("   - Pas de commentaires dans le JSON\n\n")

	b.WriteString("2. RÈGLES DE REQUÊTE:\n")
	b.WriteString("   - Pour comptages simples: utiliser size: 0 et track_total_hits: true\n")
	b.WriteString("   - Pour recherche texte: utiliser match sur les champs text\n")
	b.WriteString("   - Pour filtrage exact: utiliser term sur les champs keyword\n")
	b.WriteString("   - Pour champs integer: utiliser term avec valeur numérique (ex: \"caseId\": 123)\n")
	b.WriteString("   - Pour agrégations normalisées: utiliser les champs .normalized (caseClient.normalized, caseAgency.normalized, etc.)\n")
	b.WriteString("   - Pour agrégations exactes: utiliser les champs .keyword\n")
	b.WriteString("   - ATTENTION: caseId est integer, pas keyword ! Utiliser {\"term\": {\"caseId\": 869}} pas {\"term\": {\"caseId.keyword\": \"869\"}}\n\n")

	b.WriteString("3. GESTION DES CHAMPS VIDES ET NULL:\n")
	b.WriteString("   - \"sans manager\", \"pas de manager\", \"manager vide\" → {\"term\": {\"caseManager.keyword\": \"\"}}\n")
	b.WriteString("   - \"sans client\", \"pas de client\", \"client vide\" → {\"term\": {\"caseClient.keyword\": \"\"}}\n")
	b.WriteString("   - \"sans agence\", \"pas d'agence\", \"agence vide\" → {\"term\": {\"caseAgency.keyword\": \"\"}}\n")
	b.WriteString("   - En général: \"sans [CHAMP]\" = champ vide (\"\"), PAS champ inexistant\n")
	b.WriteString("   - NE PAS utiliser {\"must_not\": {\"exists\": {\"field\": \"xxx\"}}} pour les champs métier\n\n")

	b.WriteString("4. EXEMPLES DE REQUÊTES:\n")
	b.WriteString("   RECHERCHE PAR ID:\n")
	b.WriteString("   {\"query\": {\"term\": {\"caseId\": 869}}, \"_source\": [\"caseClient\"]}\n\n")
	b.WriteString("   RECHERCHE PAR RÉFÉRENCE D'AFFAIRE:\n")
	b.WriteString("   {\"query\": {\"term\": {\"caseReference\": \"94P0237518\"}}}\n\n")
	b.WriteString("   RECHERCHE DANS LES RAPPORTS (NESTED):\n")
	b.WriteString("   {\"query\": {\"nested\": {\"path\": \"reports\", \"query\": {\"term\": {\"reports.reportReference\": \"AD-001\"}}}}}\n\n")
	b.WriteString("   RECHERCHE DANS LES AVIS (DOUBLE NESTED):\n")
	b.WriteString("   {\"query\": {\"nested\": {\"path\": \"reports\", \"query\": {\"nested\": {\"path\": \"reports.reportReviews\", \"query\": {\"term\": {\"reports.reportReviews.reviewValueName.keyword\": \"Favorable\"}}}}}}}\n\n")
	b.WriteString("   AGGREGATION PAR CLIENT (normalisé - recommandé):\n")
	b.WriteString("   {\"aggs\": {\"clients\": {\"terms\": {\"field\": \"caseClient.normalized\"}}}, \"size\": 0}\n\n")
	b.WriteString("   AGGREGATION PAR AGENCE (normalisé - recommandé):\n")
	b.WriteString("   {\"aggs\": {\"agencies\": {\"terms\": {\"field\": \"caseAgency.normalized\"}}}, \"size\": 0}\n\n")

	switch queryIntent {
	case intent.IntentInfo:
		b.WriteString("5. OPTIMISATION POUR INFO:\n")
		b.WriteString("   - Utiliser size: 0 pour les comptages\n")
		b.WriteString("   - Utiliser aggregations pour les statistiques\n")
		b.WriteString("   - Limiter les champs retournés avec _source si nécessaire\n")
		b.WriteString("   - Optimiser pour la vitesse de réponse\n\n")
	case intent.IntentDownload:
		b.WriteString("5. OPTIMISATION POUR TÉLÉCHARGEMENT:\n")
		b.WriteString("   - SIMPLE: Récupérer uniquement reports.reportS3Path\n")
		b.WriteString("   - _source: [\"reports.reportS3Path\"] suffit pour le téléchargement\n")
		b.WriteString("   - LIMITE PRAGMATIQUE: Éviter les téléchargements massifs (>100 fichiers)\n")
		b.WriteString("   - RÈGLE SIMPLE: Une affaire = environ 5-15 fichiers en moyenne\n")
		b.WriteString("   - EXCEPTION: Si affaire unique (recherche par référence), pas de limite\n")
		b.WriteString("   - PAS de filtre sur reportImported: tous les rapports sont téléchargeables\n\n")
		b.WriteString("   RÈGLES DE LIMITATION:\n")
		b.WriteString("   - Recherche par AFFAIRE SPÉCIFIQUE (caseReference): pas de limite (1 seule affaire)\n")
		b.WriteString("   - Recherche par MANAGER/CLIENT: size: 8 (estimation: 8×12≈100 fichiers max)\n")
		b.WriteString("   - Recherche LARGE (range, multi-critères): size: 5 (très prudent)\n\n")
	case intent.IntentChitchat:
		// chitchat never reaches query generation
	}

	return b.String()
}

// extractJSONDocument decodes the model output, falling back to the
// first top-level JSON object when the model wrapped it in prose or
// markdown fences.
func extractJSONDocument(response string) (map[string]any, error) {
	response = jsonFenceOpenPattern.ReplaceAllString(response, "")
	response = anyFencePattern.ReplaceAllString(response, "")
	response = strings.TrimSpace(response)

	var doc map[string]any
	if err := json.Unmarshal([]byte(response), &doc); err == nil {
		return doc, nil
	}

	candidate := jsonObjectPattern.FindString(response)
	if candidate != "" {
		if err := json.Unmarshal([]byte(candidate), &doc); err == nil {
			return doc, nil
		}
	}

	return nil, fmt.Errorf("invalid JSON response from LLM: %s", truncateForError(response))
}

func truncateForError(s string) string {
	const max = 200
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
