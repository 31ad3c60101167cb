package plugin

import (
	"context"
	"path/filepath"
	"strings"
)

// Plugin is the language plugin contract (C2, §4.2): a capability set a
// Registry dispatches to by extension or content sniff. Not every plugin
// implements every capability meaningfully — a documentation plugin has no
// references, a lexical fallback has no reliable symbol kinds — but every
// plugin answers every method without panicking, returning empty results
// where a capability does not apply.
type Plugin interface {
	// Name identifies the plugin for logging and registry diagnostics.
	Name() string

	// Supports reports whether this plugin should handle path. content may
	// be nil when only the path is available (extension-based routing);
	// plugins that need a content sniff (e.g. extensionless files) should
	// treat a nil content as "ask again once content is read."
	Supports(path string, content []byte) bool

	// Index runs the full pipeline (parse, extract symbols, extract
	// references, chunk) and returns one IndexShard, the pure product of
	// file's bytes under this plugin's configuration (§4.2).
	Index(ctx context.Context, file *FileInput) (*IndexShard, error)

	// ExtractSymbols and ExtractReferences expose the sub-steps directly so
	// a caller holding an already-parsed Tree (e.g. during a reparse) can
	// skip Index's redundant parse.
	ExtractSymbols(tree *Tree, source []byte) []*Symbol
	ExtractReferences(tree *Tree, source []byte) []*Reference

	// Chunk splits a file into retrievable units for the semantic store.
	Chunk(ctx context.Context, file *FileInput) ([]*Chunk, error)

	// Lookup resolves name against a shard's own symbol table, for
	// same-file go-to-definition without round-tripping through the
	// symbol store.
	Lookup(shard *IndexShard, name string) []*Symbol

	// Search does a plugin-local pattern match over a shard's symbols,
	// independent of the store's FTS/fuzzy index — used when a caller
	// wants a quick grep-like scan of one file's declarations.
	Search(shard *IndexShard, pattern string) []*Symbol
}

// codePlugin is the tree-sitter-backed plugin serving go/typescript/tsx/
// javascript/jsx/python (§4.2's "specialized" plugin tier).
type codePlugin struct {
	name       string
	extensions []string
	language   string
	parser     *MultiParser
	symbols    *SymbolExtractor
	refs       *ReferenceExtractor
	chunker    *CodeChunker
}

// newCodePlugins builds one codePlugin per language in registry, all sharing
// the same underlying MultiParser (and therefore the same adapter cache).
func newCodePlugins(registry *LanguageRegistry) []Plugin {
	parser := NewParserWithRegistry(registry)
	symbols := NewSymbolExtractorWithRegistry(registry)
	refs := NewReferenceExtractorWithRegistry(registry)
	chunker := NewCodeChunkerWithOptions(CodeChunkerOptions{})

	var out []Plugin
	for _, ext := range registry.SupportedExtensions() {
		config, ok := registry.GetByExtension(ext)
		if !ok {
			continue
		}
		out = append(out, &codePlugin{
			name:       "code:" + config.Name,
			extensions: config.Extensions,
			language:   config.Name,
			parser:     parser,
			symbols:    symbols,
			refs:       refs,
			chunker:    chunker,
		})
	}
	return dedupeByName(out)
}

func dedupeByName(plugins []Plugin) []Plugin {
	seen := make(map[string]bool, len(plugins))
	var out []Plugin
	for _, p := range plugins {
		if seen[p.Name()] {
			continue
		}
		seen[p.Name()] = true
		out = append(out, p)
	}
	return out
}

func (p *codePlugin) Name() string { return p.name }

func (p *codePlugin) Supports(path string, content []byte) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range p.extensions {
		if e == ext {
			return true
		}
	}
	return false
}

func (p *codePlugin) Index(ctx context.Context, file *FileInput) (*IndexShard, error) {
	tree, err := p.parser.Parse(ctx, file.Content, p.language)
	if err != nil {
		return nil, err
	}
	symbols := p.symbols.Extract(tree, file.Content)
	refs := p.refs.Extract(tree, file.Content)
	ResolveSameFileTargets(symbols, refs)

	chunks, err := p.chunker.Chunk(ctx, file)
	if err != nil {
		return nil, err
	}

	return &IndexShard{
		Language:   p.language,
		Symbols:    symbols,
		References: refs,
		Chunks:     chunks,
	}, nil
}

func (p *codePlugin) ExtractSymbols(tree *Tree, source []byte) []*Symbol {
	return p.symbols.Extract(tree, source)
}

func (p *codePlugin) ExtractReferences(tree *Tree, source []byte) []*Reference {
	return p.refs.Extract(tree, source)
}

func (p *codePlugin) Chunk(ctx context.Context, file *FileInput) ([]*Chunk, error) {
	return p.chunker.Chunk(ctx, file)
}

func (p *codePlugin) Lookup(shard *IndexShard, name string) []*Symbol {
	return lookupByName(shard, name)
}

func (p *codePlugin) Search(shard *IndexShard, pattern string) []*Symbol {
	return searchByPattern(shard, pattern)
}

func lookupByName(shard *IndexShard, name string) []*Symbol {
	if shard == nil {
		return nil
	}
	var out []*Symbol
	for _, s := range shard.Symbols {
		if s.Name == name || s.QualifiedName == name {
			out = append(out, s)
		}
	}
	return out
}

func searchByPattern(shard *IndexShard, pattern string) []*Symbol {
	if shard == nil || pattern == "" {
		return nil
	}
	pattern = strings.ToLower(pattern)
	var out []*Symbol
	for _, s := range shard.Symbols {
		if strings.Contains(strings.ToLower(s.Name), pattern) || strings.Contains(strings.ToLower(s.QualifiedName), pattern) {
			out = append(out, s)
		}
	}
	return out
}

// markdownPlugin wraps MarkdownChunker: no symbol/reference extraction, a
// DocumentSection tree instead (§4.2's documentation plugin).
type markdownPlugin struct {
	chunker *MarkdownChunker
}

func newMarkdownPlugin() Plugin {
	return &markdownPlugin{chunker: NewMarkdownChunker()}
}

func (p *markdownPlugin) Name() string { return "markdown" }

func (p *markdownPlugin) Supports(path string, content []byte) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range p.chunker.SupportedExtensions() {
		if e == ext {
			return true
		}
	}
	return false
}

func (p *markdownPlugin) Index(ctx context.Context, file *FileInput) (*IndexShard, error) {
	chunks, err := p.chunker.Chunk(ctx, file)
	if err != nil {
		return nil, err
	}
	return &IndexShard{
		Language: "markdown",
		Chunks:   chunks,
		Sections: p.chunker.Sections(file),
	}, nil
}

func (p *markdownPlugin) ExtractSymbols(tree *Tree, source []byte) []*Symbol     { return nil }
func (p *markdownPlugin) ExtractReferences(tree *Tree, source []byte) []*Reference { return nil }

func (p *markdownPlugin) Chunk(ctx context.Context, file *FileInput) ([]*Chunk, error) {
	return p.chunker.Chunk(ctx, file)
}

func (p *markdownPlugin) Lookup(shard *IndexShard, name string) []*Symbol { return nil }
func (p *markdownPlugin) Search(shard *IndexShard, pattern string) []*Symbol {
	return nil
}
