package query

import "sort"

// DefaultRRFConstant is the standard smoothing parameter (k=60 is the value
// used by Azure AI Search and OpenSearch alike; it needs no per-deployment
// tuning).
const DefaultRRFConstant = 60

// lexicalHit and vectorHit are the two legs fused into a Result. Both carry
// a chunk id so they can be merged: lexicalHit resolves content search's
// file+line hit to its enclosing chunk (see engine.go), vectorHit parses
// its point id back to a chunk id via semanticstore.ParsePointID.
type lexicalHit struct {
	chunkID         string
	fileID          string
	line            int
	snippet         string
	enclosingSymbol string
	score           float64
}

type vectorHit struct {
	chunkID string
	fileID  string
	score   float64
}

// rrfFusion combines a lexical and a vector ranking into one list using
// Reciprocal Rank Fusion: score(d) = Σ weight_i / (k + rank_i), with a
// missing-rank penalty of max(len_a, len_b)+1 for a document absent from
// one leg.
type rrfFusion struct {
	k int
}

func newRRFFusion() *rrfFusion {
	return &rrfFusion{k: DefaultRRFConstant}
}

func (f *rrfFusion) fuse(lex []lexicalHit, vec []vectorHit, weights Weights) []*Result {
	if len(lex) == 0 && len(vec) == 0 {
		return []*Result{}
	}

	byChunk := make(map[string]*Result, len(lex)+len(vec))
	get := func(id string) *Result {
		if r, ok := byChunk[id]; ok {
			return r
		}
		r := &Result{ChunkID: id}
		byChunk[id] = r
		return r
	}

	for rank, h := range lex {
		r := get(h.chunkID)
		r.FileID = h.fileID
		r.Line = h.line
		r.Snippet = h.snippet
		r.EnclosingSymbol = h.enclosingSymbol
		r.LexicalScore = h.score
		r.LexicalRank = rank + 1
		r.Score += weights.Lexical / float64(f.k+rank+1)
	}

	for rank, h := range vec {
		r := get(h.chunkID)
		if r.FileID == "" {
			r.FileID = h.fileID
		}
		r.VectorScore = h.score
		r.VectorRank = rank + 1
		r.Score += weights.Semantic / float64(f.k+rank+1)
		if r.LexicalRank > 0 {
			r.InBothLists = true
		}
	}

	missingRank := f.missingRank(len(lex), len(vec))
	for _, r := range byChunk {
		if r.LexicalRank == 0 && r.VectorRank > 0 {
			r.Score += weights.Lexical / float64(f.k+missingRank)
		}
		if r.VectorRank == 0 && r.LexicalRank > 0 {
			r.Score += weights.Semantic / float64(f.k+missingRank)
		}
	}

	results := make([]*Result, 0, len(byChunk))
	for _, r := range byChunk {
		results = append(results, r)
	}

	sort.Slice(results, func(i, j int) bool { return f.less(results[i], results[j]) })
	f.normalize(results)
	return results
}

func (f *rrfFusion) missingRank(lexLen, vecLen int) int {
	if lexLen > vecLen {
		return lexLen + 1
	}
	return vecLen + 1
}

// less orders by fused score, then both-lists membership, then lexical
// score, then chunk id — the last tie-break keeps ordering deterministic
// across runs with identical scores.
func (f *rrfFusion) less(a, b *Result) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.InBothLists != b.InBothLists {
		return a.InBothLists
	}
	if a.LexicalScore != b.LexicalScore {
		return a.LexicalScore > b.LexicalScore
	}
	return a.ChunkID < b.ChunkID
}

func (f *rrfFusion) normalize(results []*Result) {
	if len(results) == 0 {
		return
	}
	max := results[0].Score
	if max == 0 {
		return
	}
	for _, r := range results {
		r.Score /= max
	}
}
