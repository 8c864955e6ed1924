package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchAnswer(t *testing.T) {
	tests := []struct {
		name      string
		submitted string
		correct   string
		want      bool
	}{
		{"exact", "Paris", "Paris", true},
		{"case and punctuation", "  pArIs!! ", "Paris", true},
		{"submission contains answer", "I think it is Paris", "Paris", true},
		{"answer contains submission", "Shakespeare", "William Shakespeare", true},
		{"digits", "7", "7", true},
		{"short substring is accepted", "is", "Paris", true},
		{"wrong", "Lyon", "Paris", false},
		{"empty submission", "", "Paris", false},
		{"only punctuation", "?!", "Paris", false},
		{"extra words around answer", "Mars, the red planet", "Mars", true},
		{"phrasing variant is rejected", "CO2", "Carbon dioxide", false},
		{"unicode letters", "Zürich", "zurich", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MatchAnswer(tt.submitted, tt.correct))
		})
	}
}
