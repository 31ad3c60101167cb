package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWeightsForQueryType(t *testing.T) {
	tests := []struct {
		name         string
		queryType    QueryType
		wantLexical  float64
		wantSemantic float64
	}{
		{"lexical", QueryTypeLexical, 0.85, 0.15},
		{"semantic", QueryTypeSemantic, 0.20, 0.80},
		{"mixed", QueryTypeMixed, 0.35, 0.65},
		{"unknown defaults to mixed", QueryType("UNKNOWN"), 0.35, 0.65},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := WeightsForQueryType(tt.queryType)
			assert.InDelta(t, tt.wantLexical, w.Lexical, 0.001)
			assert.InDelta(t, tt.wantSemantic, w.Semantic, 0.001)
		})
	}
}

func TestPatternClassifier_Classify(t *testing.T) {
	p := NewPatternClassifier()
	tests := []struct {
		query string
		want  QueryType
	}{
		{"ERR_CONNECTION_REFUSED", QueryTypeLexical},
		{"E0001", QueryTypeLexical},
		{`"exact match"`, QueryTypeLexical},
		{"src/auth/handler.go", QueryTypeLexical},
		{"getUserById", QueryTypeLexical},
		{"handle_auth", QueryTypeLexical},
		{"how does authentication work", QueryTypeSemantic},
		{"explain the search algorithm", QueryTypeSemantic},
		{"a query with quite a few plain words", QueryTypeSemantic},
		{"authentication", QueryTypeMixed},
		{"useEffect cleanup", QueryTypeMixed},
		{"", QueryTypeMixed},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			qt, weights, err := p.Classify(context.Background(), tt.query)
			assert.NoError(t, err)
			assert.Equal(t, tt.want, qt)
			assert.Equal(t, WeightsForQueryType(tt.want), weights)
		})
	}
}

func TestHybridClassifier_FallsBackToPatternsWhenLLMNil(t *testing.T) {
	h := NewHybridClassifier(nil)
	qt, _, err := h.Classify(context.Background(), "how does caching work")
	assert.NoError(t, err)
	assert.Equal(t, QueryTypeSemantic, qt)
}

func TestHybridClassifier_CachesByNormalizedQuery(t *testing.T) {
	h := NewHybridClassifier(nil)
	qt1, _, _ := h.Classify(context.Background(), "  How Does Caching Work  ")
	qt2, _, _ := h.Classify(context.Background(), "how does caching work")
	assert.Equal(t, qt1, qt2)
}
