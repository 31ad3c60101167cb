package semanticstore

import "time"

// HTTP embedding provider constants.
const (
	// DefaultProviderHost is the default embedding service endpoint. It
	// speaks the same wire protocol as Ollama's /api/embed, which is
	// common enough among local embedding servers to use as the default
	// shape rather than invent a bespoke one.
	DefaultProviderHost = "http://localhost:11434"

	DefaultProviderModel = "qwen3-embedding:0.6b"

	ProviderConnectTimeout = 5 * time.Second
	ProviderPoolSize       = 4

	DefaultTimeout     = 60 * time.Second
	DefaultWarmTimeout = 120 * time.Second
	DefaultColdTimeout = 180 * time.Second

	// ModelUnloadThreshold is the idle duration after which a remote
	// provider is assumed to have unloaded its model and needs the cold
	// timeout again.
	ModelUnloadThreshold = 5 * time.Minute

	MinBatchSize     = 1
	MaxBatchSize     = 256
	DefaultBatchSize = 32

	DefaultMaxRetries = 3

	// DefaultDimensions is used when no dimension probe ran (SkipHealthCheck)
	// and ProviderConfig.Dimensions is 0. A failed probe is an error instead.
	DefaultDimensions = 768
)

// FallbackModels are tried, in order, if the primary model is unavailable
// on the provider.
var FallbackModels = []string{
	"embeddinggemma",
	"mxbai-embed-large",
}

// ProviderConfig configures an HTTPProvider.
type ProviderConfig struct {
	// Host is the embedding service's base URL.
	Host string

	// Model is the embedding model name to request.
	Model string

	// FallbackModels are tried in order if Model is unavailable.
	FallbackModels []string

	// Dimensions overrides auto-detection; 0 means detect from a probe call.
	Dimensions int

	// BatchSize bounds how many texts go in one request.
	BatchSize int

	// Timeout is defaulted but not read by HTTPProvider: each attempt's
	// timeout starts from DefaultWarmTimeout or DefaultColdTimeout and grows
	// by half of that per retry.
	Timeout time.Duration

	// ConnectTimeout is defaulted but not read by HTTPProvider; the startup
	// health check / model discovery call is bounded by DefaultColdTimeout.
	ConnectTimeout time.Duration

	MaxRetries int
	PoolSize   int

	// SkipHealthCheck skips the startup probe.
	SkipHealthCheck bool

	// RequestsPerSecond rate-limits outbound embedding requests against the
	// provider; 0 disables limiting.
	RequestsPerSecond float64

	// ProgressFunc is called after each batch with (completed, total).
	ProgressFunc func(completed, total int)
}

// DefaultProviderConfig returns sensible defaults.
func DefaultProviderConfig() ProviderConfig {
	return ProviderConfig{
		Host:              DefaultProviderHost,
		Model:             DefaultProviderModel,
		FallbackModels:    FallbackModels,
		BatchSize:         DefaultBatchSize,
		Timeout:           DefaultTimeout,
		ConnectTimeout:    ProviderConnectTimeout,
		MaxRetries:        DefaultMaxRetries,
		PoolSize:          ProviderPoolSize,
		RequestsPerSecond: 10,
	}
}

// embedRequest is the wire shape of an /api/embed request.
type embedRequest struct {
	Model string `json:"model"`
	Input any    `json:"input"` // string or []string for batch
}

// embedResponse is the wire shape of an /api/embed response.
type embedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float64 `json:"embeddings"`
}

// modelListResponse is the wire shape of a /api/tags response.
type modelListResponse struct {
	Models []modelInfo `json:"models"`
}

// modelInfo describes one model the provider has loaded.
type modelInfo struct {
	Name       string    `json:"name"`
	ModifiedAt time.Time `json:"modified_at"`
	Size       int64     `json:"size"`
}
