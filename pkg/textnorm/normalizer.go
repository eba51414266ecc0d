package textnorm

import (
	"regexp"
	"strings"
)

// Review verdict codes used verbally by inspectors ("avis F", "avis NC")
// expanded to the full values stored in the database and search index.
var reviewCodeMappings = map[string]string{
	"F":  "Favorable",
	"S":  "Suspendu",
	"D":  "Défavorable",
	"PM": "Pour mémoire",
	"SO": "Sans objet",
	"HM": "Hors mission",
	"C":  "Conforme",
	"NC": "Non conforme",
}

var (
	reviewCodePattern = regexp.MustCompile(`(?i)\bavis\s+([A-Za-z]{1,2})\b`)

	abbreviations = []struct {
		pattern     *regexp.Regexp
		replacement string
	}{
		{regexp.MustCompile(`(?i)\binfos?\b`), "informations"},
		{regexp.MustCompile(`(?i)\bréf\.?\s`), "référence "},
	}
)

// Normalizer expands domain codes and common abbreviations in user
// questions before they reach intent classification and generation.
type Normalizer struct{}

func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

func (n *Normalizer) Normalize(question string) string {
	question = strings.TrimSpace(question)
	question = n.expandReviewCodes(question)
	question = n.expandAbbreviations(question)
	return question
}

func (n *Normalizer) expandReviewCodes(question string) string {
	return reviewCodePattern.ReplaceAllStringFunc(question, func(match string) string {
		sub := reviewCodePattern.FindStringSubmatch(match)
		code := strings.ToUpper(sub[1])
		if full, ok := reviewCodeMappings[code]; ok {
			return "avis " + full
		}
		return match
	})
}

func (n *Normalizer) expandAbbreviations(question string) string {
	for _, abbr := range abbreviations {
		question = abbr.pattern.ReplaceAllString(question, abbr.replacement)
	}
	return question
}
