package plugin

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"time"
	"unicode/utf8"
)

// lexicalPlugin is the degraded-mode fallback (§4.2): when no grammar is
// available for a file (ErrParserUnavailable, or the registry has no
// grammar at all for the extension), indexing still produces something
// searchable instead of failing the whole file. Symbols come from a
// keyword-anchored identifier scan rather than a parse tree, always carry
// kind=other, and the shard is marked LexicalMode so callers can rank it
// below parsed results.
type lexicalPlugin struct{}

func newLexicalPlugin() Plugin { return &lexicalPlugin{} }

// declKeyword matches a common subset of declaration keywords across
// mainstream languages followed by an identifier, e.g. "func foo", "def
// foo", "class Foo", "function foo", "fn foo", "struct Foo".
var declKeyword = regexp.MustCompile(`(?m)^\s*(?:func|def|fn|class|struct|interface|function|public\s+class|private\s+class|type)\s+([A-Za-z_][A-Za-z0-9_]*)`)

func (p *lexicalPlugin) Name() string { return "lexical" }

// Supports accepts anything that looks like text; it is meant to be tried
// last, after every language-specific plugin has declined.
func (p *lexicalPlugin) Supports(path string, content []byte) bool {
	if content == nil {
		return true
	}
	if bytes.IndexByte(content, 0) != -1 {
		return false // binary
	}
	return utf8.Valid(content)
}

func (p *lexicalPlugin) Index(ctx context.Context, file *FileInput) (*IndexShard, error) {
	symbols := p.ExtractSymbols(nil, file.Content)
	chunks := p.slidingWindowChunks(file)
	return &IndexShard{
		Language:    file.Language,
		Symbols:     symbols,
		Chunks:      chunks,
		LexicalMode: true,
	}, nil
}

// ExtractSymbols ignores tree (always nil in lexical mode) and regex-scans
// source directly.
func (p *lexicalPlugin) ExtractSymbols(tree *Tree, source []byte) []*Symbol {
	matches := declKeyword.FindAllSubmatchIndex(source, -1)
	symbols := make([]*Symbol, 0, len(matches))
	for _, m := range matches {
		nameStart, nameEnd := m[2], m[3]
		name := string(source[nameStart:nameEnd])
		line := 1 + bytes.Count(source[:m[0]], []byte("\n"))
		symbols = append(symbols, &Symbol{
			Name:          name,
			QualifiedName: name,
			Type:          SymbolTypeOther,
			ByteRange:     ByteRange{Start: uint32(m[0]), End: uint32(m[1])},
			StartLine:     line,
			EndLine:       line,
		})
	}
	return symbols
}

func (p *lexicalPlugin) ExtractReferences(tree *Tree, source []byte) []*Reference { return nil }

func (p *lexicalPlugin) Chunk(ctx context.Context, file *FileInput) ([]*Chunk, error) {
	return p.slidingWindowChunks(file), nil
}

// slidingWindowChunks splits content into roughly DefaultMaxChunkTokens-sized
// windows with DefaultOverlapTokens overlap, since there is no symbol or
// section boundary to chunk along in lexical mode.
func (p *lexicalPlugin) slidingWindowChunks(file *FileInput) []*Chunk {
	content := string(file.Content)
	if content == "" {
		return nil
	}
	windowChars := DefaultMaxChunkTokens * TokensPerChar
	overlapChars := DefaultOverlapTokens * TokensPerChar
	step := windowChars - overlapChars
	if step <= 0 {
		step = windowChars
	}

	now := time.Now()
	var chunks []*Chunk
	for start := 0; start < len(content); start += step {
		end := start + windowChars
		if end > len(content) {
			end = len(content)
		}
		raw := content[start:end]
		startLine := 1 + countNewlines(content[:start])
		endLine := startLine + countNewlines(raw)

		sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%s:%d", file.Path, raw, startLine)))
		chunks = append(chunks, &Chunk{
			ID:          hex.EncodeToString(sum[:]),
			FilePath:    file.Path,
			Content:     raw,
			RawContent:  raw,
			ContentType: ContentTypeText,
			ChunkKind:   ChunkKindSliding,
			Language:    file.Language,
			StartLine:   startLine,
			EndLine:     endLine,
			TokenCount:  len(raw) / TokensPerChar,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
		if end == len(content) {
			break
		}
	}
	return chunks
}

func countNewlines(s string) int {
	n := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			n++
		}
	}
	return n
}

func (p *lexicalPlugin) Lookup(shard *IndexShard, name string) []*Symbol {
	return lookupByName(shard, name)
}

func (p *lexicalPlugin) Search(shard *IndexShard, pattern string) []*Symbol {
	return searchByPattern(shard, pattern)
}
