package plugin

import (
	"context"
	"fmt"
	"sync"

	"github.com/siftd/siftd/internal/parseradapter"
)

// MultiParser fans a single Parse call out to one parseradapter.Adapter per
// language, created lazily and cached. This is the shape C2's "a plugin
// owns a parser adapter" takes when one plugin instance serves several
// closely related grammars (e.g. the specialized plugin serving
// go/typescript/tsx/javascript/jsx/python).
type MultiParser struct {
	mu       sync.Mutex
	registry *LanguageRegistry
	adapters map[string]*parseradapter.Adapter
}

// NewParser creates a MultiParser over the default language registry.
func NewParser() *MultiParser {
	return NewParserWithRegistry(DefaultRegistry())
}

// NewParserWithRegistry creates a MultiParser over a custom registry.
func NewParserWithRegistry(registry *LanguageRegistry) *MultiParser {
	return &MultiParser{
		registry: registry,
		adapters: make(map[string]*parseradapter.Adapter),
	}
}

// Parse parses source as the named language, returning ErrParserUnavailable
// (wrapped) if no grammar is registered for it.
func (p *MultiParser) Parse(ctx context.Context, source []byte, language string) (*Tree, error) {
	adapter, err := p.adapterFor(language)
	if err != nil {
		return nil, err
	}
	return adapter.Parse(ctx, source)
}

// Query runs a tree-sitter query pattern against source parsed as language.
func (p *MultiParser) Query(language, pattern string, source []byte) ([]parseradapter.Capture, error) {
	adapter, err := p.adapterFor(language)
	if err != nil {
		return nil, err
	}
	return adapter.Query(pattern, source)
}

func (p *MultiParser) adapterFor(language string) (*parseradapter.Adapter, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if a, ok := p.adapters[language]; ok {
		return a, nil
	}
	grammar, ok := p.registry.grammar(language)
	if !ok {
		return nil, fmt.Errorf("plugin: unsupported language %q: %w", language, parseradapter.ErrParserUnavailable)
	}
	a, err := parseradapter.New(grammar)
	if err != nil {
		return nil, fmt.Errorf("plugin: %s: %w", language, err)
	}
	p.adapters[language] = a
	return a, nil
}

// Close releases every adapter this MultiParser has created.
func (p *MultiParser) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, a := range p.adapters {
		a.Close()
	}
	p.adapters = make(map[string]*parseradapter.Adapter)
}
