package questionnaire_test

import (
	"testing"

	"github.com/p-n-ai/pai-unit/internal/content"
	"github.com/p-n-ai/pai-unit/internal/questionnaire"
)

func TestMatchesAny(t *testing.T) {
	tests := []struct {
		name     string
		itype    content.InteractionType
		response string
		patterns []string
		want     bool
	}{
		{"choice exact", content.InteractionChoice, "a", []string{"a"}, true},
		{"choice any order", content.InteractionChoice, "b[,]a", []string{"a[,]b"}, true},
		{"choice missing item", content.InteractionChoice, "a", []string{"a[,]b"}, false},
		{"choice order forced", content.InteractionChoice, "b[,]a", []string{"{order_matters=true}a[,]b"}, false},
		{"sequencing ordered", content.InteractionSequencing, "b[,]a", []string{"a[,]b"}, false},
		{"matching pairs", content.InteractionMatching, "2[.]b[,]1[.]a", []string{"1[.]a[,]2[.]b"}, true},
		{"fill-in ignores case", content.InteractionFillIn, "Kuala Lumpur", []string{"kuala lumpur"}, true},
		{"fill-in case matters", content.InteractionFillIn, "Kuala Lumpur", []string{"{case_matters=true}kuala lumpur"}, false},
		{"fill-in lang modifier", content.InteractionFillIn, "hello", []string{"{lang=en}hello"}, true},
		{"numeric exact", content.InteractionNumeric, "4", []string{"4.0"}, true},
		{"numeric range", content.InteractionNumeric, "7", []string{"5[:]10"}, true},
		{"numeric open range", content.InteractionNumeric, "70", []string{"5[:]"}, true},
		{"numeric out of range", content.InteractionNumeric, "2", []string{"5[:]10"}, false},
		{"numeric not a number", content.InteractionNumeric, "four", []string{"4"}, false},
		{"second pattern", content.InteractionTrueFalse, "false", []string{"true", "false"}, true},
		{"no patterns", content.InteractionOther, "x", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := questionnaire.MatchesAny(tt.itype, tt.response, tt.patterns); got != tt.want {
				t.Errorf("MatchesAny(%q, %v) = %v, want %v", tt.response, tt.patterns, got, tt.want)
			}
		})
	}
}

func TestScoreResponse(t *testing.T) {
	components := content.QuestionDefinition{
		InteractionType: content.InteractionChoice,
		MultipleChoice:  true,
		Choices: []content.InteractionComponent{
			{ID: "a", Score: scorePtr(2)},
			{ID: "b", Score: scorePtr(-1)},
			{ID: "c"},
		},
	}
	question := content.QuestionDefinition{
		InteractionType:         content.InteractionChoice,
		Score:                   scorePtr(5),
		CorrectResponsesPattern: []string{"a"},
		Choices:                 components.Choices,
	}

	tests := []struct {
		name     string
		def      content.QuestionDefinition
		response string
		want     float64
	}{
		{"component sum", components, "a[,]b", 1},
		{"unscored component", components, "c", 0},
		{"question score when correct", question, "a", 5},
		{"question score replaces components", question, "b", 0},
		{"empty response", components, "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := questionnaire.ScoreResponse(tt.def, tt.response); got != tt.want {
				t.Errorf("ScoreResponse(%q) = %v, want %v", tt.response, got, tt.want)
			}
		})
	}
}
