package semanticstore

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// ProviderKind selects which Embedder backs a repository's semantic index.
type ProviderKind string

const (
	// ProviderHTTP uses a remote embedding service (Ollama-shaped /api/embed).
	ProviderHTTP ProviderKind = "http"

	// ProviderStatic uses the dependency-free hash-based embedder.
	ProviderStatic ProviderKind = "static"
)

// NewEmbedder builds an Embedder for the requested provider, falling back
// to the static embedder (embed-deferred degradation, §4.5) when a remote
// provider is unreachable rather than failing the whole indexing run. The
// SIFTD_EMBEDDER environment variable overrides provider selection for
// deployments that want it pinned outside of repository config.
func NewEmbedder(ctx context.Context, kind ProviderKind, model string) (Embedder, bool, error) {
	if env := os.Getenv("SIFTD_EMBEDDER"); env != "" {
		switch strings.ToLower(env) {
		case "http":
			kind = ProviderHTTP
		case "static":
			kind = ProviderStatic
		}
	}

	var embedder Embedder
	deferred := false

	switch kind {
	case ProviderStatic:
		embedder = NewStaticEmbedder()
	default:
		cfg := DefaultProviderConfig()
		if model != "" {
			cfg.Model = model
		}
		if host := os.Getenv("SIFTD_EMBED_HOST"); host != "" {
			cfg.Host = host
		}

		provider, err := NewHTTPProvider(ctx, cfg)
		if err != nil {
			slog.Warn("embedding provider unreachable, deferring to static fallback",
				slog.String("error", err.Error()))
			embedder = NewStaticEmbedder()
			deferred = true
		} else {
			embedder = provider
		}
	}

	if !isCacheDisabled() {
		embedder = NewCachedEmbedder(embedder, DefaultEmbeddingCacheSize)
	}

	return embedder, deferred, nil
}

func isCacheDisabled() bool {
	v := strings.ToLower(os.Getenv("SIFTD_EMBED_CACHE"))
	return v == "false" || v == "0" || v == "off" || v == "disabled"
}

// ParseProviderKind converts a config string to a ProviderKind, defaulting
// to the remote HTTP provider.
func ParseProviderKind(s string) ProviderKind {
	switch strings.ToLower(s) {
	case "static":
		return ProviderStatic
	default:
		return ProviderHTTP
	}
}

// EmbedderInfo summarizes the active embedder for status reporting.
type EmbedderInfo struct {
	Provider   ProviderKind
	Model      string
	Dimensions int
	Available  bool
	Deferred   bool
}

// GetInfo inspects embedder (unwrapping a CachedEmbedder) and reports its
// identity for the get_status operation.
func GetInfo(ctx context.Context, embedder Embedder, deferred bool) EmbedderInfo {
	inner := embedder
	if cached, ok := embedder.(*CachedEmbedder); ok {
		inner = cached.Inner()
	}

	kind := ProviderStatic
	if _, ok := inner.(*HTTPProvider); ok {
		kind = ProviderHTTP
	}

	return EmbedderInfo{
		Provider:   kind,
		Model:      embedder.ModelName(),
		Dimensions: embedder.Dimensions(),
		Available:  embedder.Available(ctx),
		Deferred:   deferred,
	}
}

// MustNewEmbedder creates an embedder and panics on failure. Nothing in the
// repository calls it.
func MustNewEmbedder(ctx context.Context, kind ProviderKind, model string) Embedder {
	embedder, _, err := NewEmbedder(ctx, kind, model)
	if err != nil {
		panic(fmt.Sprintf("failed to create embedder: %v", err))
	}
	return embedder
}
