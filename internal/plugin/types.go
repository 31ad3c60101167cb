// Package plugin implements the language plugin contract (C2) and the
// plugin registry/dispatcher (C3): per-language symbol/reference/chunk
// extraction over an internal/parseradapter tree, routed by file extension
// or content sniff.
package plugin

import (
	"context"
	"time"

	"github.com/siftd/siftd/internal/parseradapter"
)

// Chunk size defaults (based on 2025 RAG research).
const (
	DefaultMaxChunkTokens = 512 // Optimal for 85-90% recall
	DefaultOverlapTokens  = 64  // ~12.5% overlap
	MinChunkTokens        = 100 // Minimum viable chunk
	TokensPerChar         = 4   // Rough approximation: 4 chars = 1 token
)

// ContentType represents the type of content in a chunk.
type ContentType string

const (
	ContentTypeCode     ContentType = "code"
	ContentTypeMarkdown ContentType = "markdown"
	ContentTypeText     ContentType = "text"
)

// ChunkKind distinguishes how a chunk's boundaries were chosen (§3).
type ChunkKind string

const (
	ChunkKindSymbol  ChunkKind = "symbol"
	ChunkKindSection ChunkKind = "section"
	ChunkKindSliding ChunkKind = "sliding"
)

// Chunk is a retrievable unit of content (one function, one doc section, or
// a sliding-window slice once a chunk overflows the token budget).
type Chunk struct {
	ID          string // content-addressable: derived from file_path and content (see generateChunkID); the lexical plugin also mixes in start_line
	FilePath    string // Relative to repository root
	Content     string // Full content with context (heading path / imports prepended)
	RawContent  string // Just the symbol or section body, no context
	Context     string // Imports, package decl, or heading path
	ContentType ContentType
	ChunkKind   ChunkKind
	Language    string
	StartLine   int // 1-indexed
	EndLine     int // inclusive
	TokenCount  int
	Symbols     []*Symbol
	Metadata    map[string]string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// FileInput is input to a plugin's Index/Chunk operations.
type FileInput struct {
	Path     string // Relative path
	Content  []byte
	Language string
}

// Chunker splits a file into retrievable chunks. Kept as a narrow interface
// distinct from Plugin so the semantic store (C5) can depend on chunking
// alone without pulling in symbol/reference extraction.
type Chunker interface {
	Chunk(ctx context.Context, file *FileInput) ([]*Chunk, error)
	SupportedExtensions() []string
}

// SymbolType is the symbol kind vocabulary from §3 (kept as "Type" for
// source compatibility with the teacher's chunker/extractor/store code,
// which already names this field Type throughout).
type SymbolType string

const (
	SymbolTypeFunction    SymbolType = "function"
	SymbolTypeMethod      SymbolType = "method"
	SymbolTypeClass       SymbolType = "class"
	SymbolTypeStruct      SymbolType = "struct"
	SymbolTypeInterface   SymbolType = "interface"
	SymbolTypeTrait       SymbolType = "trait"
	SymbolTypeEnum        SymbolType = "enum"
	SymbolTypeVariable    SymbolType = "variable"
	SymbolTypeConstant    SymbolType = "constant"
	SymbolTypeTypeAlias   SymbolType = "type_alias"
	SymbolTypeType        SymbolType = "type" // legacy alias kept for teacher call sites; equivalent to TypeAlias
	SymbolTypeModule      SymbolType = "module"
	SymbolTypeMacro       SymbolType = "macro"
	SymbolTypeOther       SymbolType = "other"
)

// Visibility is best-effort and language-dependent; empty when the
// language has no visibility concept or the plugin could not determine it.
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

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

// Symbol represents a code symbol extracted from parsing (§3). ParentID and
// QualifiedName are filled in by the extractor's enclosing-declaration walk;
// a plugin operating in isolation (no file/symbol-store ids yet) leaves ID
// fields zero and the caller (internal/symbolstore) assigns them on commit.
type Symbol struct {
	Name          string
	QualifiedName string
	Type          SymbolType
	Signature     string
	ByteRange     ByteRange
	StartLine     int // 1-indexed, derived from ByteRange via the newline index
	EndLine       int
	ParentName    string // enclosing declaration's qualified name, empty at top level
	Visibility    Visibility
	DocComment    string
}

// ReferenceKind is the reference vocabulary from §3.
type ReferenceKind string

const (
	ReferenceCall      ReferenceKind = "call"
	ReferenceRead      ReferenceKind = "read"
	ReferenceWrite     ReferenceKind = "write"
	ReferenceImport    ReferenceKind = "import"
	ReferenceInherit   ReferenceKind = "inherit"
	ReferenceImplement ReferenceKind = "implement"
)

// Reference is a best-effort call/import/inheritance/access site (§3).
// TargetQualifiedName is a lookup key, never a pointer, so references never
// form cross-file cycles; SameFileTarget is filled in when the plugin could
// cheaply resolve the reference to a symbol in the same file.
type Reference struct {
	TargetQualifiedName string
	ByteRange           ByteRange
	Line                int
	Kind                ReferenceKind
	SameFileTarget      string // qualified name of the same-file symbol it resolves to, if any
}

// Diagnostic is a non-fatal parse/extraction issue carried inside a shard.
type Diagnostic struct {
	Message   string
	ByteRange ByteRange
	Severity  string // "error" | "warning"
}

// IndexShard is the pure product of indexing one file (§4.2): same bytes
// and configuration always produce the same shard, enabling
// content-hash-based skip in the change pipeline.
type IndexShard struct {
	Language    string
	Symbols     []*Symbol
	References  []*Reference
	Chunks      []*Chunk
	Sections    []*DocumentSection
	Diagnostics []*Diagnostic
	LexicalMode bool // true if this shard was produced by the lexical-mode fallback
}

// DocumentSection is a heading-level node in a documentation file's section
// tree (§3). ParentIndex is an index into the same slice, or -1 at the root.
type DocumentSection struct {
	HeadingPath []string
	Level       int
	ByteRange   ByteRange
	ParentIndex int
}

// LanguageConfig holds the declarative node-type tables for one language's
// symbol/reference extraction rules (§4.2's "declare a tree pattern, which
// captures map to name/signature/range, the symbol kind").
type LanguageConfig struct {
	Name       string
	Extensions []string

	FunctionTypes  []string
	ClassTypes     []string
	InterfaceTypes []string
	MethodTypes    []string
	TypeDefTypes   []string
	ConstantTypes  []string
	VariableTypes  []string

	// Reference node types, by kind.
	CallTypes      []string
	ImportTypes    []string
	InheritTypes   []string
	ImplementTypes []string

	NameField string
}

// tree/node aliases kept so the moved chunker/extractor files below need no
// further edits beyond their package clause.
type Tree = parseradapter.Tree
type Node = parseradapter.Node
type Point = parseradapter.Point
