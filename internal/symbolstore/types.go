// Package symbolstore persists the repository/file/symbol/reference/chunk
// entity model (§3) in an embedded relational engine and serves content,
// trigram-fuzzy, and symbol-name search over it (C4).
package symbolstore

import (
	"context"
	"fmt"
	"time"
)

// SymbolKind is the symbol vocabulary from §3.
type SymbolKind string

const (
	SymbolKindFunction   SymbolKind = "function"
	SymbolKindMethod     SymbolKind = "method"
	SymbolKindClass      SymbolKind = "class"
	SymbolKindStruct     SymbolKind = "struct"
	SymbolKindInterface  SymbolKind = "interface"
	SymbolKindTrait      SymbolKind = "trait"
	SymbolKindEnum       SymbolKind = "enum"
	SymbolKindVariable   SymbolKind = "variable"
	SymbolKindConstant   SymbolKind = "constant"
	SymbolKindTypeAlias  SymbolKind = "type_alias"
	SymbolKindModule     SymbolKind = "module"
	SymbolKindMacro      SymbolKind = "macro"
	SymbolKindOther      SymbolKind = "other"
)

// ReferenceKind is the reference vocabulary from §3.
type ReferenceKind string

const (
	ReferenceKindCall      ReferenceKind = "call"
	ReferenceKindRead      ReferenceKind = "read"
	ReferenceKindWrite     ReferenceKind = "write"
	ReferenceKindImport    ReferenceKind = "import"
	ReferenceKindInherit   ReferenceKind = "inherit"
	ReferenceKindImplement ReferenceKind = "implement"
)

// ChunkKind mirrors plugin.ChunkKind; kept as its own type here (not a type
// alias) since the store's Chunk row carries fields (embedding_model_id,
// point_id) a plugin-level Chunk has no business knowing about.
type ChunkKind string

const (
	ChunkKindSymbol   ChunkKind = "symbol"
	ChunkKindParagraph ChunkKind = "paragraph"
	ChunkKindSection  ChunkKind = "section"
	ChunkKindSliding  ChunkKind = "sliding"
)

// Repository is the root of the ownership tree (§3): it owns files, which
// own symbols/references/chunks/sections. Destroyed only by explicit
// deregistration, cascading to every descendant row.
type Repository struct {
	ID         string
	RootPath   string
	HeadCommit string // optional; empty when unknown
	Config     string // opaque serialized repository config (ignore globs, language overrides)
	CreatedAt  time.Time
}

// File is a tracked file within a repository (§3). A file is fresh iff
// ContentHash equals the hash of the bytes currently on disk at
// RootPath/RelativePath; otherwise stale. IndexGeneration is the repository's
// generation counter value as of this file's last successful commit.
type File struct {
	ID              string
	RepoID          string
	RelativePath    string
	SizeBytes       int64
	ContentHash     string
	ModifiedTime    time.Time
	LanguageTag     string
	LastIndexedAt   time.Time
	IndexGeneration int64
	Tombstoned      bool // deleted but not yet purged by compaction
}

// ByteRange is a half-open [Start, End) byte interval within a file.
type ByteRange struct {
	Start uint32
	End   uint32
}

// LineRange is a 1-indexed, inclusive line interval.
type LineRange struct {
	Start int
	End   int
}

// Symbol is a row in the symbol table (§3). ParentSymbolID forms a forest
// within a file (top-level symbols have no parent).
type Symbol struct {
	ID              string
	FileID          string
	Kind            SymbolKind
	Name            string
	QualifiedName   string
	Signature       string
	ByteRange       ByteRange
	LineRange       LineRange
	ParentSymbolID  string
	Visibility      string
	Doc             string
}

// Reference is a best-effort call/import/inherit/access site (§3).
// TargetFileID is empty until resolved; resolution may happen at extraction
// time (same-file) or at query time (cross-file, §4.7).
type Reference struct {
	FileID              string
	TargetQualifiedName string
	TargetFileID        string
	ByteRange           ByteRange
	Line                int
	Kind                ReferenceKind
}

// Chunk is the symbol store's authoritative row for a retrievable unit of
// content (§3/§4.5): the semantic store adds EmbeddingModelID and PointID
// once it has embedded and inserted the chunk into a vector store, but the
// chunk row itself — and therefore the decision of which chunks exist for a
// file — belongs here.
type Chunk struct {
	ID              string
	FileID          string
	ByteRange       ByteRange
	StartLine       int // 1-indexed, for content-search snippet attribution
	Kind            ChunkKind
	Content         string
	TokenCount      int
	EmbeddingModelID string // empty until embedded
	PointID         string // opaque id in the vector store; empty until embedded
}

// DocumentSection is a heading-level node in a documentation file's section
// tree (§3). ParentSectionID links to another DocumentSection's ID, or is
// empty at the root.
type DocumentSection struct {
	ID             string
	FileID         string
	HeadingPath    []string
	Level          int
	ByteRange      ByteRange
	ParentSectionID string
}

// RepositoryStats summarizes one repository's current size.
type RepositoryStats struct {
	FileCount   int
	SymbolCount int
	ChunkCount  int
	Generation  int64
}

// Store is the C4 symbol/FTS store contract. A single implementation
// (SQLiteStore) backs it; the interface exists so the coordinator (C8) and
// query router (C7) depend on behavior, not a concrete database.
type Store interface {
	// Repository registry.
	SaveRepository(ctx context.Context, repo *Repository) error
	GetRepository(ctx context.Context, id string) (*Repository, error)
	ListRepositories(ctx context.Context) ([]*Repository, error)
	DeleteRepository(ctx context.Context, id string) error // cascades to every descendant row
	RepositoryStats(ctx context.Context, id string) (*RepositoryStats, error)

	// CommitFile runs the §4.4 write protocol: upsert the file row, replace
	// its symbols/references/chunks/sections, and bump index_generation, all
	// in one transaction. Returns the repository's new generation.
	CommitFile(ctx context.Context, file *File, symbols []*Symbol, refs []*Reference, chunks []*Chunk, sections []*DocumentSection) (int64, error)

	// TombstoneFile marks a file deleted without purging its rows, so
	// concurrent readers keep seeing consistent ids until the next
	// compaction (§3).
	TombstoneFile(ctx context.Context, fileID string) error
	// PurgeTombstones permanently deletes tombstoned files (and their
	// descendant rows) older than the given time; this is compaction.
	PurgeTombstones(ctx context.Context, repoID string, olderThan time.Time) (int, error)

	GetFileByPath(ctx context.Context, repoID, relativePath string) (*File, error)
	GetChangedFiles(ctx context.Context, repoID string, since time.Time) ([]*File, error)
	ListFiles(ctx context.Context, repoID string) ([]*File, error)

	GetChunksByFile(ctx context.Context, fileID string) ([]*Chunk, error)
	GetChunk(ctx context.Context, id string) (*Chunk, error)
	GetChunks(ctx context.Context, ids []string) ([]*Chunk, error)
	SetChunkEmbedding(ctx context.Context, chunkID, modelID, pointID string) error

	// SymbolLookup is an exact/prefix name or qualified-name match.
	SymbolLookup(ctx context.Context, name string, limit int) ([]*Symbol, error)
	// FuzzySymbolSearch is the trigram-prefilter + edit-distance-rerank
	// search described in §4.4.
	FuzzySymbolSearch(ctx context.Context, query string, limit int) ([]*Symbol, error)
	// ContentSearch runs a phrase/boolean/prefix FTS query over file content.
	ContentSearch(ctx context.Context, query string, limit int) ([]*ContentResult, error)
	// References returns every reference whose TargetQualifiedName matches
	// qualifiedName, resolving TargetFileID against same-repository symbols
	// where possible.
	References(ctx context.Context, repoID, qualifiedName string) ([]*Reference, error)

	Close() error
}

// ContentResult is one FTS content-search hit (§4.4): the enclosing symbol
// (if any), a line number, and a highlighted snippet.
type ContentResult struct {
	FileID           string
	Line             int
	Snippet          string
	EnclosingSymbol  string // qualified name, empty if none
	Score            float64
}

// ErrFuzzyBudgetExceeded is returned when a fuzzy search's trigram prefilter
// would exceed the hard per-query candidate budget (§4.4); callers should
// narrow the query rather than retry as-is.
type ErrFuzzyBudgetExceeded struct {
	Budget int
}

func (e ErrFuzzyBudgetExceeded) Error() string {
	return fmt.Sprintf("symbolstore: fuzzy search candidate budget (%d) exceeded, narrow the query", e.Budget)
}
