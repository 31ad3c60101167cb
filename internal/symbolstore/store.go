package symbolstore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/hbollon/go-edlib"

	_ "modernc.org/sqlite"
)

// fuzzyCandidateBudget bounds how many trigram hits a fuzzy search will
// rerank with edit distance, per §4.4's "hard per-query candidate budget".
const fuzzyCandidateBudget = 10000

// SQLiteStore is the C4 symbol/FTS store: one SQLite database per
// repository set, FTS5 virtual tables for content and symbol-name search,
// and a cross-process advisory write lock so multiple siftd processes never
// interleave writes to the same database (§4.4's "single-writer" guarantee,
// grounded on the teacher's embed-model-download lock pattern, repurposed
// here for store writes instead of file downloads).
type SQLiteStore struct {
	mu       sync.RWMutex // serializes writer goroutines within this process
	db       *sql.DB
	path     string
	writeLck *flock.Flock
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (creating if needed) a symbol store database at path.
// path == "" opens an in-memory store, useful for tests.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	var dsn string
	var lck *flock.Flock
	if path == "" {
		dsn = ":memory:"
	} else {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("symbolstore: create dir %s: %w", dir, err)
		}
		dsn = path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
		lck = flock.New(path + ".lock")
		if err := acquireWithJitteredRetry(lck); err != nil {
			return nil, fmt.Errorf("symbolstore: acquire write lock: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		if lck != nil {
			_ = lck.Unlock()
		}
		return nil, fmt.Errorf("symbolstore: open: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			if lck != nil {
				_ = lck.Unlock()
			}
			return nil, fmt.Errorf("symbolstore: pragma %q: %w", pragma, err)
		}
	}

	s := &SQLiteStore{db: db, path: path, writeLck: lck}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		if lck != nil {
			_ = lck.Unlock()
		}
		return nil, fmt.Errorf("symbolstore: init schema: %w", err)
	}
	return s, nil
}

// acquireWithJitteredRetry tries the advisory lock a bounded number of
// times with jittered backoff, matching §4.4's "on contention, writers back
// off with jittered retry."
func acquireWithJitteredRetry(lck *flock.Flock) error {
	var lastErr error
	for attempt := 0; attempt < 10; attempt++ {
		ok, err := lck.TryLock()
		if err != nil {
			lastErr = err
		} else if ok {
			return nil
		}
		backoff := time.Duration(attempt+1) * 50 * time.Millisecond
		jitter := time.Duration(rand.Intn(50)) * time.Millisecond
		time.Sleep(backoff + jitter)
	}
	if lastErr != nil {
		return lastErr
	}
	return fmt.Errorf("timed out waiting for store write lock")
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS meta (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS repositories (
		id          TEXT PRIMARY KEY,
		root_path   TEXT NOT NULL,
		head_commit TEXT,
		config      TEXT,
		generation  INTEGER NOT NULL DEFAULT 0,
		created_at  INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS files (
		id               TEXT PRIMARY KEY,
		repo_id          TEXT NOT NULL REFERENCES repositories(id) ON DELETE CASCADE,
		relative_path    TEXT NOT NULL,
		size_bytes       INTEGER NOT NULL,
		content_hash     TEXT NOT NULL,
		modified_time    INTEGER NOT NULL,
		language_tag     TEXT,
		last_indexed_at  INTEGER NOT NULL,
		index_generation INTEGER NOT NULL,
		tombstoned       INTEGER NOT NULL DEFAULT 0,
		UNIQUE(repo_id, relative_path)
	);
	CREATE INDEX IF NOT EXISTS idx_files_repo ON files(repo_id);

	CREATE TABLE IF NOT EXISTS symbols (
		id              TEXT PRIMARY KEY,
		file_id         TEXT NOT NULL REFERENCES files(id) ON DELETE CASCADE,
		kind            TEXT NOT NULL,
		name            TEXT NOT NULL,
		qualified_name  TEXT NOT NULL,
		signature       TEXT,
		byte_start      INTEGER NOT NULL,
		byte_end        INTEGER NOT NULL,
		line_start      INTEGER NOT NULL,
		line_end        INTEGER NOT NULL,
		parent_symbol_id TEXT,
		visibility      TEXT,
		doc             TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_symbols_name ON symbols(name);
	CREATE INDEX IF NOT EXISTS idx_symbols_qualified_name ON symbols(qualified_name);
	CREATE INDEX IF NOT EXISTS idx_symbols_file ON symbols(file_id);

	CREATE VIRTUAL TABLE IF NOT EXISTS symbol_trigram USING fts5(
		name, qualified_name, content='symbols', content_rowid='rowid', tokenize='trigram'
	);
	CREATE TRIGGER IF NOT EXISTS symbols_ai AFTER INSERT ON symbols BEGIN
		INSERT INTO symbol_trigram(rowid, name, qualified_name) VALUES (new.rowid, new.name, new.qualified_name);
	END;
	CREATE TRIGGER IF NOT EXISTS symbols_ad AFTER DELETE ON symbols BEGIN
		INSERT INTO symbol_trigram(symbol_trigram, rowid, name, qualified_name) VALUES ('delete', old.rowid, old.name, old.qualified_name);
	END;

	CREATE TABLE IF NOT EXISTS "references" (
		file_id               TEXT NOT NULL REFERENCES files(id) ON DELETE CASCADE,
		target_qualified_name TEXT NOT NULL,
		target_file_id        TEXT,
		byte_start            INTEGER NOT NULL,
		byte_end              INTEGER NOT NULL,
		line                  INTEGER NOT NULL,
		kind                  TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_references_target ON "references"(target_qualified_name);
	CREATE INDEX IF NOT EXISTS idx_references_file ON "references"(file_id);

	CREATE TABLE IF NOT EXISTS chunks (
		id                 TEXT PRIMARY KEY,
		file_id            TEXT NOT NULL REFERENCES files(id) ON DELETE CASCADE,
		byte_start         INTEGER NOT NULL,
		byte_end           INTEGER NOT NULL,
		start_line         INTEGER NOT NULL,
		kind               TEXT NOT NULL,
		content            TEXT NOT NULL,
		token_count        INTEGER NOT NULL,
		embedding_model_id TEXT,
		point_id           TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_file ON chunks(file_id);

	CREATE VIRTUAL TABLE IF NOT EXISTS chunk_fts USING fts5(
		content, content='chunks', content_rowid='rowid'
	);
	CREATE TRIGGER IF NOT EXISTS chunks_ai AFTER INSERT ON chunks BEGIN
		INSERT INTO chunk_fts(rowid, content) VALUES (new.rowid, new.content);
	END;
	CREATE TRIGGER IF NOT EXISTS chunks_ad AFTER DELETE ON chunks BEGIN
		INSERT INTO chunk_fts(chunk_fts, rowid, content) VALUES ('delete', old.rowid, old.content);
	END;

	CREATE TABLE IF NOT EXISTS sections (
		id                TEXT PRIMARY KEY,
		file_id           TEXT NOT NULL REFERENCES files(id) ON DELETE CASCADE,
		heading_path      TEXT NOT NULL,
		level             INTEGER NOT NULL,
		byte_start        INTEGER NOT NULL,
		byte_end          INTEGER NOT NULL,
		parent_section_id TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_sections_file ON sections(file_id);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	return s.setMeta("schema_version", "1")
}

func (s *SQLiteStore) setMeta(key, value string) error {
	_, err := s.db.Exec(`INSERT INTO meta(key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

// SaveRepository upserts a repository row.
func (s *SQLiteStore) SaveRepository(ctx context.Context, repo *Repository) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO repositories(id, root_path, head_commit, config, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET root_path = excluded.root_path, head_commit = excluded.head_commit, config = excluded.config`,
		repo.ID, repo.RootPath, repo.HeadCommit, repo.Config, repo.CreatedAt.Unix())
	return err
}

func (s *SQLiteStore) GetRepository(ctx context.Context, id string) (*Repository, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, root_path, head_commit, config, created_at FROM repositories WHERE id = ?`, id)
	var r Repository
	var headCommit, config sql.NullString
	var createdAt int64
	if err := row.Scan(&r.ID, &r.RootPath, &headCommit, &config, &createdAt); err != nil {
		return nil, err
	}
	r.HeadCommit = headCommit.String
	r.Config = config.String
	r.CreatedAt = time.Unix(createdAt, 0)
	return &r, nil
}

func (s *SQLiteStore) ListRepositories(ctx context.Context) ([]*Repository, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, root_path, head_commit, config, created_at FROM repositories`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Repository
	for rows.Next() {
		var r Repository
		var headCommit, config sql.NullString
		var createdAt int64
		if err := rows.Scan(&r.ID, &r.RootPath, &headCommit, &config, &createdAt); err != nil {
			return nil, err
		}
		r.HeadCommit = headCommit.String
		r.Config = config.String
		r.CreatedAt = time.Unix(createdAt, 0)
		out = append(out, &r)
	}
	return out, rows.Err()
}

// DeleteRepository cascades to every descendant row via ON DELETE CASCADE.
func (s *SQLiteStore) DeleteRepository(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `DELETE FROM repositories WHERE id = ?`, id)
	return err
}

func (s *SQLiteStore) RepositoryStats(ctx context.Context, id string) (*RepositoryStats, error) {
	stats := &RepositoryStats{}
	row := s.db.QueryRowContext(ctx, `SELECT generation FROM repositories WHERE id = ?`, id)
	if err := row.Scan(&stats.Generation); err != nil {
		return nil, err
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM files WHERE repo_id = ? AND tombstoned = 0`, id).Scan(&stats.FileCount); err != nil {
		return nil, err
	}
	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM symbols WHERE file_id IN (SELECT id FROM files WHERE repo_id = ?)`, id).Scan(&stats.SymbolCount); err != nil {
		return nil, err
	}
	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM chunks WHERE file_id IN (SELECT id FROM files WHERE repo_id = ?)`, id).Scan(&stats.ChunkCount); err != nil {
		return nil, err
	}
	return stats, nil
}

// CommitFile implements §4.4's write protocol as a single transaction:
// upsert the file row, delete its old symbols/references/chunks/sections,
// insert the new ones, and bump the repository's generation counter.
// Readers never observe a mixture of old and new rows for this file.
func (s *SQLiteStore) CommitFile(ctx context.Context, file *File, symbols []*Symbol, refs []*Reference, chunks []*Chunk, sections []*DocumentSection) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var generation int64
	if err := tx.QueryRowContext(ctx, `UPDATE repositories SET generation = generation + 1 WHERE id = ? RETURNING generation`, file.RepoID).Scan(&generation); err != nil {
		return 0, fmt.Errorf("bump generation: %w", err)
	}
	file.IndexGeneration = generation
	file.LastIndexedAt = time.Now()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO files(id, repo_id, relative_path, size_bytes, content_hash, modified_time, language_tag, last_indexed_at, index_generation, tombstoned)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0)
		ON CONFLICT(repo_id, relative_path) DO UPDATE SET
			size_bytes = excluded.size_bytes, content_hash = excluded.content_hash,
			modified_time = excluded.modified_time, language_tag = excluded.language_tag,
			last_indexed_at = excluded.last_indexed_at, index_generation = excluded.index_generation,
			tombstoned = 0`,
		file.ID, file.RepoID, file.RelativePath, file.SizeBytes, file.ContentHash,
		file.ModifiedTime.Unix(), file.LanguageTag, file.LastIndexedAt.Unix(), file.IndexGeneration); err != nil {
		return 0, fmt.Errorf("upsert file: %w", err)
	}

	for _, table := range []string{"symbols", `"references"`, "chunks", "sections"} {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE file_id = ?`, table), file.ID); err != nil {
			return 0, fmt.Errorf("clear %s: %w", table, err)
		}
	}

	for _, sym := range symbols {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO symbols(id, file_id, kind, name, qualified_name, signature, byte_start, byte_end, line_start, line_end, parent_symbol_id, visibility, doc)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			sym.ID, file.ID, sym.Kind, sym.Name, sym.QualifiedName, sym.Signature,
			sym.ByteRange.Start, sym.ByteRange.End, sym.LineRange.Start, sym.LineRange.End,
			nullableString(sym.ParentSymbolID), nullableString(sym.Visibility), sym.Doc); err != nil {
			return 0, fmt.Errorf("insert symbol: %w", err)
		}
	}

	for _, ref := range refs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO "references"(file_id, target_qualified_name, target_file_id, byte_start, byte_end, line, kind)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			file.ID, ref.TargetQualifiedName, nullableString(ref.TargetFileID),
			ref.ByteRange.Start, ref.ByteRange.End, ref.Line, ref.Kind); err != nil {
			return 0, fmt.Errorf("insert reference: %w", err)
		}
	}

	for _, c := range chunks {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO chunks(id, file_id, byte_start, byte_end, start_line, kind, content, token_count, embedding_model_id, point_id)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.ID, file.ID, c.ByteRange.Start, c.ByteRange.End, c.StartLine, c.Kind, c.Content, c.TokenCount,
			nullableString(c.EmbeddingModelID), nullableString(c.PointID)); err != nil {
			return 0, fmt.Errorf("insert chunk: %w", err)
		}
	}

	for _, sec := range sections {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO sections(id, file_id, heading_path, level, byte_start, byte_end, parent_section_id)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			sec.ID, file.ID, strings.Join(sec.HeadingPath, " > "), sec.Level,
			sec.ByteRange.Start, sec.ByteRange.End, nullableString(sec.ParentSectionID)); err != nil {
			return 0, fmt.Errorf("insert section: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return generation, nil
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// TombstoneFile marks a file deleted without purging its rows (§3).
func (s *SQLiteStore) TombstoneFile(ctx context.Context, fileID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `UPDATE files SET tombstoned = 1 WHERE id = ?`, fileID)
	return err
}

// PurgeTombstones permanently deletes tombstoned files older than the
// cutoff; cascades remove their symbols/references/chunks/sections.
func (s *SQLiteStore) PurgeTombstones(ctx context.Context, repoID string, olderThan time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM files WHERE repo_id = ? AND tombstoned = 1 AND last_indexed_at < ?`,
		repoID, olderThan.Unix())
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *SQLiteStore) GetFileByPath(ctx context.Context, repoID, relativePath string) (*File, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, repo_id, relative_path, size_bytes, content_hash, modified_time, language_tag, last_indexed_at, index_generation, tombstoned
		FROM files WHERE repo_id = ? AND relative_path = ?`, repoID, relativePath)
	return scanFile(row)
}

func scanFile(row *sql.Row) (*File, error) {
	var f File
	var modified, indexed int64
	var tombstoned int
	var lang sql.NullString
	if err := row.Scan(&f.ID, &f.RepoID, &f.RelativePath, &f.SizeBytes, &f.ContentHash, &modified, &lang, &indexed, &f.IndexGeneration, &tombstoned); err != nil {
		return nil, err
	}
	f.ModifiedTime = time.Unix(modified, 0)
	f.LastIndexedAt = time.Unix(indexed, 0)
	f.LanguageTag = lang.String
	f.Tombstoned = tombstoned != 0
	return &f, nil
}

func (s *SQLiteStore) GetChangedFiles(ctx context.Context, repoID string, since time.Time) ([]*File, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, repo_id, relative_path, size_bytes, content_hash, modified_time, language_tag, last_indexed_at, index_generation, tombstoned
		FROM files WHERE repo_id = ? AND last_indexed_at >= ?`, repoID, since.Unix())
	if err != nil {
		return nil, err
	}
	return scanFiles(rows)
}

func (s *SQLiteStore) ListFiles(ctx context.Context, repoID string) ([]*File, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, repo_id, relative_path, size_bytes, content_hash, modified_time, language_tag, last_indexed_at, index_generation, tombstoned
		FROM files WHERE repo_id = ?`, repoID)
	if err != nil {
		return nil, err
	}
	return scanFiles(rows)
}

func scanFiles(rows *sql.Rows) ([]*File, error) {
	defer rows.Close()
	var out []*File
	for rows.Next() {
		var f File
		var modified, indexed int64
		var tombstoned int
		var lang sql.NullString
		if err := rows.Scan(&f.ID, &f.RepoID, &f.RelativePath, &f.SizeBytes, &f.ContentHash, &modified, &lang, &indexed, &f.IndexGeneration, &tombstoned); err != nil {
			return nil, err
		}
		f.ModifiedTime = time.Unix(modified, 0)
		f.LastIndexedAt = time.Unix(indexed, 0)
		f.LanguageTag = lang.String
		f.Tombstoned = tombstoned != 0
		out = append(out, &f)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) GetChunksByFile(ctx context.Context, fileID string) ([]*Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, file_id, byte_start, byte_end, start_line, kind, content, token_count, embedding_model_id, point_id
		FROM chunks WHERE file_id = ?`, fileID)
	if err != nil {
		return nil, err
	}
	return scanChunks(rows)
}

func (s *SQLiteStore) GetChunk(ctx context.Context, id string) (*Chunk, error) {
	chunks, err := s.GetChunks(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, sql.ErrNoRows
	}
	return chunks[0], nil
}

func (s *SQLiteStore) GetChunks(ctx context.Context, ids []string) ([]*Chunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, file_id, byte_start, byte_end, start_line, kind, content, token_count, embedding_model_id, point_id
		FROM chunks WHERE id IN (%s)`, placeholders), args...)
	if err != nil {
		return nil, err
	}
	return scanChunks(rows)
}

func scanChunks(rows *sql.Rows) ([]*Chunk, error) {
	defer rows.Close()
	var out []*Chunk
	for rows.Next() {
		var c Chunk
		var modelID, pointID sql.NullString
		if err := rows.Scan(&c.ID, &c.FileID, &c.ByteRange.Start, &c.ByteRange.End, &c.StartLine, &c.Kind, &c.Content, &c.TokenCount, &modelID, &pointID); err != nil {
			return nil, err
		}
		c.EmbeddingModelID = modelID.String
		c.PointID = pointID.String
		out = append(out, &c)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) SetChunkEmbedding(ctx context.Context, chunkID, modelID, pointID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `UPDATE chunks SET embedding_model_id = ?, point_id = ? WHERE id = ?`, modelID, pointID, chunkID)
	return err
}

// SymbolLookup does an exact-or-prefix match on name or qualified_name.
func (s *SQLiteStore) SymbolLookup(ctx context.Context, name string, limit int) ([]*Symbol, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, file_id, kind, name, qualified_name, signature, byte_start, byte_end, line_start, line_end, parent_symbol_id, visibility, doc
		FROM symbols WHERE name = ? OR qualified_name = ? OR qualified_name LIKE ?
		LIMIT ?`, name, name, name+".%", limit)
	if err != nil {
		return nil, err
	}
	return scanSymbols(rows)
}

func scanSymbols(rows *sql.Rows) ([]*Symbol, error) {
	defer rows.Close()
	var out []*Symbol
	for rows.Next() {
		var sym Symbol
		var parent, vis, doc, sig sql.NullString
		if err := rows.Scan(&sym.ID, &sym.FileID, &sym.Kind, &sym.Name, &sym.QualifiedName, &sig,
			&sym.ByteRange.Start, &sym.ByteRange.End, &sym.LineRange.Start, &sym.LineRange.End, &parent, &vis, &doc); err != nil {
			return nil, err
		}
		sym.Signature = sig.String
		sym.ParentSymbolID = parent.String
		sym.Visibility = vis.String
		sym.Doc = doc.String
		out = append(out, &sym)
	}
	return out, rows.Err()
}

// FuzzySymbolSearch runs the §4.4 trigram prefilter + edit-distance rerank:
// the symbol_trigram FTS5 table (built with the trigram tokenizer) narrows
// candidates cheaply, then go-edlib scores each candidate's Levenshtein
// distance against query to produce the final ranking.
func (s *SQLiteStore) FuzzySymbolSearch(ctx context.Context, query string, limit int) ([]*Symbol, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.file_id, s.kind, s.name, s.qualified_name, s.signature, s.byte_start, s.byte_end, s.line_start, s.line_end, s.parent_symbol_id, s.visibility, s.doc
		FROM symbol_trigram t
		JOIN symbols s ON s.rowid = t.rowid
		WHERE symbol_trigram MATCH ?
		LIMIT ?`, query, fuzzyCandidateBudget)
	if err != nil {
		return nil, err
	}
	candidates, err := scanSymbols(rows)
	if err != nil {
		return nil, err
	}
	if len(candidates) >= fuzzyCandidateBudget {
		return nil, ErrFuzzyBudgetExceeded{Budget: fuzzyCandidateBudget}
	}

	type scored struct {
		sym   *Symbol
		score float32
	}
	ranked := make([]scored, 0, len(candidates))
	for _, c := range candidates {
		dist, err := edlib.StringsSimilarity(query, c.Name, edlib.Levenshtein)
		if err != nil {
			continue
		}
		ranked = append(ranked, scored{sym: c, score: dist})
	}
	for i := 1; i < len(ranked); i++ {
		for j := i; j > 0 && ranked[j].score > ranked[j-1].score; j-- {
			ranked[j], ranked[j-1] = ranked[j-1], ranked[j]
		}
	}
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	out := make([]*Symbol, len(ranked))
	for i, r := range ranked {
		out[i] = r.sym
	}
	return out, nil
}

// ContentSearch runs the FTS5 content index over chunks, returning the
// enclosing symbol (if any) for each hit by range-containment lookup.
func (s *SQLiteStore) ContentSearch(ctx context.Context, query string, limit int) ([]*ContentResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.file_id, c.start_line, snippet(chunk_fts, 0, '[', ']', '...', 16), bm25(chunk_fts), c.byte_start
		FROM chunk_fts
		JOIN chunks c ON c.rowid = chunk_fts.rowid
		WHERE chunk_fts MATCH ?
		ORDER BY bm25(chunk_fts)
		LIMIT ?`, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*ContentResult
	for rows.Next() {
		var res ContentResult
		var byteStart uint32
		if err := rows.Scan(&res.FileID, &res.Line, &res.Snippet, &res.Score, &byteStart); err != nil {
			return nil, err
		}
		res.EnclosingSymbol = s.enclosingSymbol(ctx, res.FileID, byteStart)
		out = append(out, &res)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) enclosingSymbol(ctx context.Context, fileID string, byteOffset uint32) string {
	var qualifiedName string
	err := s.db.QueryRowContext(ctx, `
		SELECT qualified_name FROM symbols
		WHERE file_id = ? AND byte_start <= ? AND byte_end >= ?
		ORDER BY (byte_end - byte_start) ASC LIMIT 1`, fileID, byteOffset, byteOffset).Scan(&qualifiedName)
	if err != nil {
		return ""
	}
	return qualifiedName
}

// References resolves TargetFileID against same-repository symbols where
// possible; cross-file references whose target cannot be found in any
// indexed file of this repository are still returned, with TargetFileID
// empty (§3: "unresolved references are retained").
func (s *SQLiteStore) References(ctx context.Context, repoID, qualifiedName string) ([]*Reference, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.file_id, r.target_qualified_name, r.target_file_id, r.byte_start, r.byte_end, r.line, r.kind
		FROM "references" r
		JOIN files f ON f.id = r.file_id
		WHERE f.repo_id = ? AND r.target_qualified_name = ?`, repoID, qualifiedName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Reference
	for rows.Next() {
		var r Reference
		var targetFileID sql.NullString
		if err := rows.Scan(&r.FileID, &r.TargetQualifiedName, &targetFileID, &r.ByteRange.Start, &r.ByteRange.End, &r.Line, &r.Kind); err != nil {
			return nil, err
		}
		r.TargetFileID = targetFileID.String
		if r.TargetFileID == "" {
			if resolved, err := s.resolveTargetFile(ctx, repoID, qualifiedName); err == nil {
				r.TargetFileID = resolved
			}
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) resolveTargetFile(ctx context.Context, repoID, qualifiedName string) (string, error) {
	var fileID string
	err := s.db.QueryRowContext(ctx, `
		SELECT s.file_id FROM symbols s
		JOIN files f ON f.id = s.file_id
		WHERE f.repo_id = ? AND s.qualified_name = ? LIMIT 1`, repoID, qualifiedName).Scan(&fileID)
	return fileID, err
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.db.Close()
	if s.writeLck != nil {
		if unlockErr := s.writeLck.Unlock(); unlockErr != nil {
			slog.Warn("symbolstore_unlock_failed", slog.String("path", s.path), slog.String("error", unlockErr.Error()))
		}
	}
	return err
}
