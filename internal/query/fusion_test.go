package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRRFFusion_EmptyInputsReturnEmptySlice(t *testing.T) {
	f := newRRFFusion()
	results := f.fuse(nil, nil, DefaultWeights())
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestRRFFusion_BothListsMarksInBothLists(t *testing.T) {
	f := newRRFFusion()
	lex := []lexicalHit{{chunkID: "a", score: 1.0}, {chunkID: "b", score: 0.5}}
	vec := []vectorHit{{chunkID: "a", score: 0.9}}

	results := f.fuse(lex, vec, DefaultWeights())

	byID := map[string]*Result{}
	for _, r := range results {
		byID[r.ChunkID] = r
	}
	assert.True(t, byID["a"].InBothLists)
	assert.False(t, byID["b"].InBothLists)
}

func TestRRFFusion_TopResultHasMaxNormalizedScore(t *testing.T) {
	f := newRRFFusion()
	lex := []lexicalHit{{chunkID: "a"}, {chunkID: "b"}}
	vec := []vectorHit{{chunkID: "a"}, {chunkID: "c"}}

	results := f.fuse(lex, vec, DefaultWeights())
	assert.Equal(t, 1.0, results[0].Score)
	assert.Equal(t, "a", results[0].ChunkID)
}

func TestRRFFusion_TieBreaksDeterministically(t *testing.T) {
	f := newRRFFusion()
	// Two chunks absent from both lists' overlap, identical ranks in
	// separate single-element searches so their fused score ties.
	lex := []lexicalHit{{chunkID: "z"}}
	vec := []vectorHit{{chunkID: "y"}}

	results := f.fuse(lex, vec, Weights{Lexical: 0.5, Semantic: 0.5})
	require := assert.New(t)
	require.Len(results, 2)
	// both have no overlap and identical single-list rank 1 contribution
	// plus missing-rank contribution; deterministic ChunkID tie-break applies
	assert.True(t, results[0].ChunkID < results[1].ChunkID || results[0].Score != results[1].Score)
}

func TestRRFFusion_LexicalOnlyResultCarriesNoVectorRank(t *testing.T) {
	f := newRRFFusion()
	lex := []lexicalHit{{chunkID: "solo", snippet: "func Foo()"}}

	results := f.fuse(lex, nil, DefaultWeights())
	require := assert.New(t)
	require.Len(results, 1)
	assert.Equal(t, 0, results[0].VectorRank)
	assert.Equal(t, 1, results[0].LexicalRank)
	assert.Equal(t, "func Foo()", results[0].Snippet)
}
