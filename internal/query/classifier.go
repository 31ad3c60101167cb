package query

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	DefaultClassifierModel     = "llama3.2:1b"
	DefaultClassifierTimeout   = 2 * time.Second
	DefaultClassifierCacheSize = 10000
	DefaultOllamaHost          = "http://localhost:11434"
)

// ClassifierConfig configures the Ollama-backed leg of HybridClassifier.
type ClassifierConfig struct {
	Model      string
	Timeout    time.Duration
	CacheSize  int
	OllamaHost string
}

func DefaultClassifierConfig() ClassifierConfig {
	return ClassifierConfig{
		Model:      DefaultClassifierModel,
		Timeout:    DefaultClassifierTimeout,
		CacheSize:  DefaultClassifierCacheSize,
		OllamaHost: DefaultOllamaHost,
	}
}

type classificationResult struct {
	queryType QueryType
	weights   Weights
}

// HybridClassifier tries an LLM classification first and falls back to
// PatternClassifier when the LLM is unavailable or errors. Results are
// cached by normalized query text.
type HybridClassifier struct {
	llm      *LLMClassifier
	patterns *PatternClassifier
	cache    *lru.Cache[string, classificationResult]
}

// NewHybridClassifier builds a classifier; llm may be nil, in which case
// only pattern classification runs.
func NewHybridClassifier(llm *LLMClassifier) *HybridClassifier {
	return NewHybridClassifierWithConfig(llm, DefaultClassifierConfig())
}

func NewHybridClassifierWithConfig(llm *LLMClassifier, config ClassifierConfig) *HybridClassifier {
	size := config.CacheSize
	if size <= 0 {
		size = DefaultClassifierCacheSize
	}
	cache, _ := lru.New[string, classificationResult](size)
	return &HybridClassifier{llm: llm, patterns: NewPatternClassifier(), cache: cache}
}

func (h *HybridClassifier) Classify(ctx context.Context, q string) (QueryType, Weights, error) {
	key := normalizeQuery(q)
	if key == "" {
		return QueryTypeMixed, WeightsForQueryType(QueryTypeMixed), nil
	}

	if r, ok := h.cache.Get(key); ok {
		return r.queryType, r.weights, nil
	}

	if h.llm != nil {
		qt, weights, err := h.llm.Classify(ctx, q)
		if err == nil {
			h.cache.Add(key, classificationResult{qt, weights})
			return qt, weights, nil
		}
	}

	qt, weights, err := h.patterns.Classify(ctx, q)
	if err == nil {
		h.cache.Add(key, classificationResult{qt, weights})
	}
	return qt, weights, err
}

func normalizeQuery(q string) string {
	return strings.ToLower(strings.TrimSpace(q))
}

var _ Classifier = (*HybridClassifier)(nil)

// LLMClassifier asks a local Ollama model to name the query's character.
type LLMClassifier struct {
	client *http.Client
	config ClassifierConfig
	prompt string
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

func NewLLMClassifier(config ClassifierConfig) *LLMClassifier {
	if config.Model == "" {
		config.Model = DefaultClassifierModel
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultClassifierTimeout
	}
	if config.OllamaHost == "" {
		config.OllamaHost = DefaultOllamaHost
	}
	return &LLMClassifier{
		client: &http.Client{Timeout: config.Timeout},
		config: config,
		prompt: classificationPrompt,
	}
}

const classificationPrompt = `You are a search query classifier. Classify the given query into exactly ONE of these categories:

LEXICAL - The query needs exact/keyword matching. Examples:
- Error codes: ERR_CONNECTION_REFUSED, E0001
- Function/variable names: getUserById, handle_auth
- File paths: src/auth/handler.go
- Quoted phrases: "exact match"

SEMANTIC - The query is natural language seeking meaning. Examples:
- Questions: "how does authentication work"
- Conceptual: "explain the search algorithm"
- Descriptions: "find code that handles errors"

MIXED - The query benefits from both approaches. Examples:
- Short technical terms: "useEffect cleanup"
- Ambiguous: "authentication" (could be code or concept)

Respond with ONLY one word: LEXICAL, SEMANTIC, or MIXED.

Query: %s

Classification:`

func (l *LLMClassifier) Classify(ctx context.Context, q string) (QueryType, Weights, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return QueryTypeMixed, WeightsForQueryType(QueryTypeMixed), nil
	}

	body, err := json.Marshal(generateRequest{Model: l.config.Model, Prompt: fmt.Sprintf(l.prompt, q), Stream: false})
	if err != nil {
		return QueryTypeMixed, WeightsForQueryType(QueryTypeMixed), fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.config.OllamaHost+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return QueryTypeMixed, WeightsForQueryType(QueryTypeMixed), fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return QueryTypeMixed, WeightsForQueryType(QueryTypeMixed), fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return QueryTypeMixed, WeightsForQueryType(QueryTypeMixed), fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var result generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return QueryTypeMixed, WeightsForQueryType(QueryTypeMixed), fmt.Errorf("decode response: %w", err)
	}

	qt := parseClassificationResponse(result.Response)
	return qt, WeightsForQueryType(qt), nil
}

func parseClassificationResponse(response string) QueryType {
	response = strings.ToUpper(strings.TrimSpace(response))
	switch response {
	case "LEXICAL":
		return QueryTypeLexical
	case "SEMANTIC":
		return QueryTypeSemantic
	case "MIXED":
		return QueryTypeMixed
	}
	switch {
	case strings.Contains(response, "LEXICAL"):
		return QueryTypeLexical
	case strings.Contains(response, "SEMANTIC"):
		return QueryTypeSemantic
	default:
		return QueryTypeMixed
	}
}

// Available reports whether Ollama is reachable.
func (l *LLMClassifier) Available(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.config.OllamaHost+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode == http.StatusOK
}

var _ Classifier = (*LLMClassifier)(nil)
