package textnorm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	n := NewNormalizer()

	tests := []struct {
		name     string
		question string
		want     string
	}{
		{
			name:     "review code expanded",
			question: "combien de rapports avec avis F",
			want:     "combien de rapports avec avis Favorable",
		},
		{
			name:     "two letter code expanded",
			question: "liste des avis NC sur l'affaire 94P0237518",
			want:     "liste des avis Non conforme sur l'affaire 94P0237518",
		},
		{
			name:     "lowercase code expanded",
			question: "avis d sur le lot portes",
			want:     "avis Défavorable sur le lot portes",
		},
		{
			name:     "unknown code untouched",
			question: "avis XY sur le dossier",
			want:     "avis XY sur le dossier",
		},
		{
			name:     "abbreviation expanded",
			question: "donne les infos du dossier",
			want:     "donne les informations du dossier",
		},
		{
			name:     "whitespace trimmed",
			question: "  combien d'affaires  ",
			want:     "combien d'affaires",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, n.Normalize(tt.question))
		})
	}
}
