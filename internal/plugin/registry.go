package plugin

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
)

// serializedPlugin wraps a Plugin that is not safe for concurrent use (a
// tree-sitter Adapter reuses one parser and one "last tree" across calls,
// per internal/parseradapter's Adapter doc comment) behind a per-instance
// mutex, so the registry can hand the same Plugin to multiple concurrent
// indexing jobs without racing the parser.
type serializedPlugin struct {
	mu    sync.Mutex
	inner Plugin
}

func serialize(p Plugin) Plugin { return &serializedPlugin{inner: p} }

func (s *serializedPlugin) Name() string { return s.inner.Name() }

func (s *serializedPlugin) Supports(path string, content []byte) bool {
	return s.inner.Supports(path, content) // read-only, no lock needed
}

func (s *serializedPlugin) Index(ctx context.Context, file *FileInput) (*IndexShard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Index(ctx, file)
}

func (s *serializedPlugin) ExtractSymbols(tree *Tree, source []byte) []*Symbol {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.ExtractSymbols(tree, source)
}

func (s *serializedPlugin) ExtractReferences(tree *Tree, source []byte) []*Reference {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.ExtractReferences(tree, source)
}

func (s *serializedPlugin) Chunk(ctx context.Context, file *FileInput) ([]*Chunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Chunk(ctx, file)
}

func (s *serializedPlugin) Lookup(shard *IndexShard, name string) []*Symbol {
	return s.inner.Lookup(shard, name) // pure function over shard, no shared state
}

func (s *serializedPlugin) Search(shard *IndexShard, pattern string) []*Symbol {
	return s.inner.Search(shard, pattern)
}

// Registry routes a file to the Plugin that should index it (C3, §4.2):
// first by extension, falling back to a content sniff, and finally to the
// lexical degraded-mode plugin so every file produces something searchable.
// Duplicate-extension registrations keep whichever plugin registered first
// (first-registered-wins); Reconfigure atomically swaps the whole plugin
// list without blocking a Lookup already in flight, since callers hold
// their own Plugin reference once PluginFor returns.
type Registry struct {
	mu       sync.RWMutex
	byExt    map[string]Plugin
	sniffers []Plugin // plugins tried by content sniff when extension lookup misses
	fallback Plugin
}

// NewRegistry builds the default registry: one codePlugin per language in
// languageRegistry, a markdown plugin, and the lexical plugin as fallback.
func NewRegistry() *Registry {
	return NewRegistryWithPlugins(append(newCodePlugins(DefaultRegistry()), newMarkdownPlugin()))
}

// NewRegistryWithPlugins builds a registry over an explicit plugin list,
// useful for tests and for wiring a custom language set.
func NewRegistryWithPlugins(plugins []Plugin) *Registry {
	r := &Registry{
		byExt:    make(map[string]Plugin),
		fallback: serialize(newLexicalPlugin()),
	}
	r.reconfigure(plugins)
	return r
}

// Reconfigure hot-swaps the registry's plugin set. In-flight Index/Chunk
// calls already hold a Plugin pointer from an earlier PluginFor and are
// unaffected; only subsequent PluginFor calls see the new set.
func (r *Registry) Reconfigure(plugins []Plugin) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reconfigure(plugins)
}

func (r *Registry) reconfigure(plugins []Plugin) {
	byExt := make(map[string]Plugin, len(plugins)*2)
	sniffers := make([]Plugin, 0, len(plugins))
	for _, p := range plugins {
		wrapped := serialize(p)
		sniffers = append(sniffers, wrapped)
		for _, ext := range extensionsOf(p) {
			if _, exists := byExt[ext]; exists {
				continue // first-registered-wins
			}
			byExt[ext] = wrapped
		}
	}
	r.byExt = byExt
	r.sniffers = sniffers
}

// extensionsOf asks a plugin which extensions it claims, since Plugin has
// no ListExtensions method of its own (keeping the interface to capability
// verbs only).
func extensionsOf(p Plugin) []string {
	probe, ok := p.(interface{ pluginExtensions() []string })
	if !ok {
		return nil
	}
	return probe.pluginExtensions()
}

func (p *codePlugin) pluginExtensions() []string { return p.extensions }
func (p *markdownPlugin) pluginExtensions() []string {
	return p.chunker.SupportedExtensions()
}

// PluginFor resolves the plugin that should index path. content is used for
// a sniff pass when extension routing misses, and may be nil if unread yet
// (extension routing alone will usually be enough). Never returns nil: the
// lexical plugin is the final fallback.
func (r *Registry) PluginFor(path string, content []byte) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ext := strings.ToLower(filepath.Ext(path))
	if p, ok := r.byExt[ext]; ok {
		return p
	}
	for _, p := range r.sniffers {
		if p.Supports(path, content) {
			return p
		}
	}
	return r.fallback
}

// SupportedExtensions lists every extension this registry currently routes
// to a non-fallback plugin.
func (r *Registry) SupportedExtensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exts := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		exts = append(exts, ext)
	}
	return exts
}
