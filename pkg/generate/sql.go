// Package generate turns natural-language questions into executable
// queries and database results into human-readable answers, via an LLM
// provider. Generated queries are untrusted output: callers must run
// them through the safety validators before execution.
package generate

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"construction-chatbot-be/pkg/intent"
	"construction-chatbot-be/pkg/llm"
)

var (
	sqlFenceOpenPattern = regexp.MustCompile("(?i)```sql\\s*")
	fenceClosePattern   = regexp.MustCompile("```\\s*$")
)

// SQLGenerator produces a SELECT statement for a question, guided by
// the database schema and the classified intent.
type SQLGenerator struct {
	llmProvider llm.LLMProvider
}

func NewSQLGenerator(llmProvider llm.LLMProvider) *SQLGenerator {
	return &SQLGenerator{llmProvider: llmProvider}
}

func (g *SQLGenerator) Generate(ctx context.Context, question string, schema map[string][]string, queryIntent intent.Intent) (string, error) {
	history := []llm.Message{
		{Role: "system", Content: buildSQLSystemPrompt(schema, queryIntent)},
		{Role: "user", Content: "Génère une requête SQL pour répondre à cette question: " + question},
	}

	response, err := g.llmProvider.Chat(ctx, history, llm.WithTemperature(0.1))
	if err != nil {
		return "", fmt.Errorf("sql generation failed: %w", err)
	}

	return extractSQL(response), nil
}

func buildSQLSystemPrompt(schema map[string][]string, queryIntent intent.Intent) string {
	var b strings.Builder
	b.WriteString("Voici la structure de la base de données d'une entreprise de bâtiment:\n\n")

	tables := make([]string, 0, len(schema))
	for table := range schema {
		tables = append(tables, table)
	}
	sort.Strings(tables)

	for _, table := range tables {
		b.WriteString("Table: " + table + "\n")
		b.WriteString("Colonnes: " + strings.Join(schema[table], ", ") + "\n\n")
	}

	b.WriteString("INSTRUCTIONS IMPORTANTES:\n")
	b.WriteString("- Génère UNIQUEMENT des requêtes SELECT\n")
	b.WriteString("- N'utilise que les tables et colonnes mentionnées ci-dessus\n")
	b.WriteString("- Utilise des JOINs appropriés si nécessaire\n")
	b.WriteString("- Retourne UNIQUEMENT le code SQL, sans explications\n")
	b.WriteString("- Limite les résultats si approprié (LIMIT)\n")
	b.WriteString("RÈGLES MÉTIER:\n")
	b.WriteString("- PAR DÉFAUT: ajouter WHERE deleted_at IS NULL (exclure supprimés)\n")
	b.WriteString("- Pour les collaborateurs: ajouter is_enabled = TRUE\n")
	b.WriteString("- SAUF si l'utilisateur utilise des mots comme: tous, total, ensemble, y compris, même, supprimés, effacés, archivés\n")

	switch queryIntent {
	case intent.IntentInfo:
		b.WriteString("TYPE DE REQUÊTE: INFORMATION\n")
		b.WriteString("- Optimise pour l'affichage d'informations textuelles\n")
		b.WriteString("- Utilise COUNT, SUM, AVG pour les statistiques\n")
		b.WriteString("- Sélectionne uniquement les colonnes nécessaires à l'information demandée\n")
	case intent.IntentDownload:
		b.WriteString("TYPE DE REQUÊTE: TÉLÉCHARGEMENT DE FICHIERS\n")
		b.WriteString("- OBLIGATOIRE pour les rapports: inclure ces colonnes exactes:\n")
		b.WriteString("  SELECT r.id, r.imported, r.filename, r.reference, r.created_at,\n")
		b.WriteString("         cc.id as client_case_id, cc.short_reference as client_case_short_reference\n")
		b.WriteString("- TOUJOURS faire le JOIN: FROM report r JOIN client_case cc ON r.client_case_id = cc.id\n")
		b.WriteString("- Ces colonnes sont nécessaires pour générer les chemins de téléchargement\n")
		b.WriteString("- Limiter à 50 résultats maximum pour éviter les téléchargements trop volumineux\n")
	case intent.IntentChitchat:
		// chitchat never reaches query generation
	}

	return b.String()
}

// extractSQL strips markdown fences the model sometimes wraps its
// answer in, and makes sure the statement ends with a semicolon.
func extractSQL(response string) string {
	response = sqlFenceOpenPattern.ReplaceAllString(response, "")
	response = fenceClosePattern.ReplaceAllString(response, "")

	sql := strings.TrimSpace(response)
	if sql != "" && !strings.HasSuffix(sql, ";") {
		sql += ";"
	}
	return sql
}
