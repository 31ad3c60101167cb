package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/siftd/siftd/internal/plugin"
	"github.com/siftd/siftd/internal/semanticstore"
	"github.com/siftd/siftd/internal/symbolstore"
)

// DefaultMaxFileSize mirrors the teacher's 100MB guard: files larger than
// this are skipped rather than indexed, to bound memory use on a single
// commit.
const DefaultMaxFileSize int64 = 100 * 1024 * 1024

// Indexer wires the plugin registry, symbolstore, and semanticstore
// together into the per-file commit path: parse/extract/chunk, write the
// authoritative rows, then embed and record point ids. Its Handle method is
// the Handler a WorkerPool drains its queue through.
type Indexer struct {
	Registry    *plugin.Registry
	Store       symbolstore.Store
	Vector      semanticstore.VectorStore
	Embedder    semanticstore.Embedder
	MaxFileSize int64
}

func (ix *Indexer) maxFileSize() int64 {
	if ix.MaxFileSize > 0 {
		return ix.MaxFileSize
	}
	return DefaultMaxFileSize
}

// Handle indexes or re-indexes the file named by item.Path, relative to the
// repository root item carries. Returns the number of chunks committed.
func (ix *Indexer) Handle(ctx context.Context, item *WorkItem) (int, error) {
	repo, err := ix.Store.GetRepository(ctx, item.RepoID)
	if err != nil {
		return 0, fmt.Errorf("lookup repository: %w", err)
	}

	absPath := filepath.Join(repo.RootPath, item.Path)

	info, err := os.Lstat(absPath)
	if err != nil {
		return 0, fmt.Errorf("stat file: %w", err)
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return 0, nil
	}
	if info.Size() > ix.maxFileSize() {
		return 0, nil
	}

	content, err := os.ReadFile(absPath)
	if err != nil {
		return 0, fmt.Errorf("read file: %w", err)
	}

	contentHash := hashBytes(content)

	existing, err := ix.Store.GetFileByPath(ctx, item.RepoID, item.Path)
	if err == nil && existing != nil && existing.ContentHash == contentHash && !existing.Tombstoned {
		return 0, nil // unchanged since last commit, nothing to do
	}

	fileID := fileID(item.RepoID, item.Path)
	if existing != nil {
		fileID = existing.ID
	}

	p := ix.Registry.PluginFor(item.Path, content)
	shard, err := p.Index(ctx, &plugin.FileInput{Path: item.Path, Content: content})
	if err != nil {
		return 0, fmt.Errorf("index file: %w", err)
	}

	file := &symbolstore.File{
		ID:           fileID,
		RepoID:       item.RepoID,
		RelativePath: item.Path,
		SizeBytes:    info.Size(),
		ContentHash:  contentHash,
		ModifiedTime: info.ModTime(),
		LanguageTag:  shard.Language,
	}

	symbols := make([]*symbolstore.Symbol, 0, len(shard.Symbols))
	idByQualifiedName := make(map[string]string, len(shard.Symbols))
	for _, s := range shard.Symbols {
		idByQualifiedName[s.QualifiedName] = symbolID(fileID, s.QualifiedName, s.ByteRange.Start)
	}
	for _, s := range shard.Symbols {
		symbols = append(symbols, &symbolstore.Symbol{
			ID:             idByQualifiedName[s.QualifiedName],
			FileID:         fileID,
			Kind:           symbolstore.SymbolKind(s.Type),
			Name:           s.Name,
			QualifiedName:  s.QualifiedName,
			Signature:      s.Signature,
			ByteRange:      symbolstore.ByteRange{Start: s.ByteRange.Start, End: s.ByteRange.End},
			LineRange:      symbolstore.LineRange{Start: s.StartLine, End: s.EndLine},
			ParentSymbolID: idByQualifiedName[s.ParentName],
			Visibility:     string(s.Visibility),
			Doc:            s.DocComment,
		})
	}

	refs := make([]*symbolstore.Reference, 0, len(shard.References))
	for _, r := range shard.References {
		refs = append(refs, &symbolstore.Reference{
			FileID:              fileID,
			TargetQualifiedName: r.TargetQualifiedName,
			TargetFileID:        fileIDIfSameFile(r.SameFileTarget, fileID),
			ByteRange:           symbolstore.ByteRange{Start: r.ByteRange.Start, End: r.ByteRange.End},
			Line:                r.Line,
			Kind:                symbolstore.ReferenceKind(r.Kind),
		})
	}

	chunks := make([]*symbolstore.Chunk, 0, len(shard.Chunks))
	for _, c := range shard.Chunks {
		chunks = append(chunks, &symbolstore.Chunk{
			ID:         c.ID,
			FileID:     fileID,
			ByteRange:  symbolstore.ByteRange{}, // plugin chunks carry line ranges, not byte ranges
			StartLine:  c.StartLine,
			Kind:       symbolstore.ChunkKind(c.ChunkKind),
			Content:    c.Content,
			TokenCount: c.TokenCount,
		})
	}

	sectionIDs := make([]string, len(shard.Sections))
	for i := range shard.Sections {
		sectionIDs[i] = sectionID(fileID, i)
	}
	sections := make([]*symbolstore.DocumentSection, 0, len(shard.Sections))
	for i, sec := range shard.Sections {
		parentID := ""
		if sec.ParentIndex >= 0 && sec.ParentIndex < len(sectionIDs) {
			parentID = sectionIDs[sec.ParentIndex]
		}
		sections = append(sections, &symbolstore.DocumentSection{
			ID:              sectionIDs[i],
			FileID:          fileID,
			HeadingPath:     sec.HeadingPath,
			Level:           sec.Level,
			ByteRange:       symbolstore.ByteRange{Start: sec.ByteRange.Start, End: sec.ByteRange.End},
			ParentSectionID: parentID,
		})
	}

	if _, err := ix.Store.CommitFile(ctx, file, symbols, refs, chunks, sections); err != nil {
		return 0, fmt.Errorf("commit file: %w", err)
	}

	if ix.Embedder == nil || ix.Vector == nil {
		return len(chunks), nil
	}

	if err := ix.embedChunks(ctx, fileID, chunks); err != nil {
		return len(chunks), fmt.Errorf("embed chunks: %w", err)
	}

	return len(chunks), nil
}

func (ix *Indexer) embedChunks(ctx context.Context, fileID string, chunks []*symbolstore.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	vectors, err := ix.Embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return err
	}

	ids := make([]string, 0, len(chunks))
	vecs := make([][]float32, 0, len(chunks))
	pointIDs := make([]string, len(chunks))
	for i, c := range chunks {
		contentHash := hashString(c.Content)
		pointID := semanticstore.PointID(fileID, c.ID, contentHash)
		pointIDs[i] = pointID
		ids = append(ids, pointID)
		vecs = append(vecs, vectors[i])
	}

	if err := ix.Vector.Add(ctx, ids, vecs); err != nil {
		return err
	}

	for i, c := range chunks {
		if err := ix.Store.SetChunkEmbedding(ctx, c.ID, ix.Embedder.ModelName(), pointIDs[i]); err != nil {
			return err
		}
	}
	return nil
}

func fileIDIfSameFile(qualifiedName, fileID string) string {
	if qualifiedName == "" {
		return ""
	}
	return fileID
}

func hashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func hashString(s string) string {
	return hashBytes([]byte(s))
}

func fileID(repoID, relPath string) string {
	return hashString(repoID + "\x00" + relPath)
}

func symbolID(fileID, qualifiedName string, byteStart uint32) string {
	return hashString(fmt.Sprintf("%s\x00%s\x00%d", fileID, qualifiedName, byteStart))
}

func sectionID(fileID string, index int) string {
	return hashString(fmt.Sprintf("%s\x00section\x00%d", fileID, index))
}

// Remove removes a deleted file's rows by tombstoning it.
func (ix *Indexer) Remove(ctx context.Context, repoID, relPath string) error {
	existing, err := ix.Store.GetFileByPath(ctx, repoID, relPath)
	if err != nil || existing == nil {
		return nil
	}
	return ix.Store.TombstoneFile(ctx, existing.ID)
}
