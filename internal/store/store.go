package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"
)

// Store is the embedded database backing RELE's structural graph, full-text
// indices, and per-kind dense vector indices. One Store instance owns one
// SQLite database file plus a DenseIndex per active (NodeKind, EmbeddingSet)
// pair.
type Store struct {
	mu   sync.RWMutex
	db   *sql.DB
	path string

	ddlLock *flock.Flock // cross-process DDL serialization

	dense map[string]VectorStore // key: EmbeddingSet.Key()+"/"+NodeKind
}

// Open opens (creating if necessary) the SQLite database at path and
// configures it for RELE's single-writer, many-reader access pattern. An
// empty path opens an in-memory database, used by tests.
func Open(path string) (*Store, error) {
	dsn := ":memory:"
	var lockPath string
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
		dsn = path + "?_pragma=busy_timeout(5000)"
		lockPath = path + ".lock"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Single writer avoids SQLITE_BUSY under modernc.org/sqlite's
	// connection-per-goroutine model; readers observe committed writes via
	// WAL, which is RELE's only read-consistency guarantee ("NOW" semantics).
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA cache_size = -65536",
		"PRAGMA temp_store = MEMORY",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set pragma %q: %w", p, err)
		}
	}

	s := &Store{
		db:    db,
		path:  path,
		dense: make(map[string]VectorStore),
	}
	if lockPath != "" {
		s.ddlLock = flock.New(lockPath)
	}

	return s, nil
}

// Close releases the database handle and any open dense indices.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, idx := range s.dense {
		if err := idx.Close(); err != nil {
			slog.Warn("close dense index", "key", key, "error", err)
		}
	}
	return s.db.Close()
}

// nodeTableName returns the relation name for a primary node kind, e.g.
// node_function, node_struct.
func nodeTableName(kind NodeKind) string {
	return "node_" + string(kind)
}

// TableNameForKind exposes the node_<kind> table naming convention to
// callers outside this package that need to build raw SQL against a
// specific node relation (the Resolver's ancestor-closure queries).
func TableNameForKind(kind NodeKind) string {
	return nodeTableName(kind)
}

// nodeTableColumns are the columns ensureNodeTable creates for every
// node_<kind> relation, used by checkExistingSchema to detect a
// pre-existing table that doesn't match RELE's expectations.
var nodeTableColumns = []string{
	"id", "name", "visibility", "file_path", "module_path", "span_start",
	"span_end", "tracking_hash", "docstring", "signature", "body",
	"attributes", "cfg_strings", "has_embedding", "parent_scope_id", "created_at",
}

var moduleTableColumns = []string{"id", "path", "kind", "file_path", "visibility", "cfg_strings", "created_at"}
var fileModTableColumns = []string{"owner_module_id", "file_path", "namespace"}
var syntaxEdgeTableColumns = []string{"source_id", "target_id", "kind"}
var embeddingSetTableColumns = []string{"key", "provider_slug", "model_id", "dims", "dtype", "is_active"}

// EnsureSchema idempotently creates every relation the Store needs: one
// table per NodeKind, module, file_mod, syntax_edge, embedding_set, and the
// node_fts FTS5 virtual tables. DDL is serialized under a cross-process
// file lock so concurrent first-run processes don't race on CREATE TABLE.
// Before creating each regular (non-virtual) relation it checks for a
// pre-existing table under that name with a different column set and fails
// with a *SchemaError rather than silently adopting the foreign table.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if s.ddlLock != nil {
		locked, err := s.ddlLock.TryLockContext(ctx, 50*time.Millisecond)
		if err != nil {
			return fmt.Errorf("acquire ddl lock: %w", err)
		}
		if locked {
			defer s.ddlLock.Unlock()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, kind := range AllNodeKinds {
		if err := s.ensureNodeTable(ctx, kind); err != nil {
			return err
		}
	}

	checks := []struct {
		table string
		cols  []string
	}{
		{"module", moduleTableColumns},
		{"file_mod", fileModTableColumns},
		{"syntax_edge", syntaxEdgeTableColumns},
		{"embedding_set", embeddingSetTableColumns},
	}
	for _, c := range checks {
		if err := s.checkExistingSchema(ctx, c.table, c.cols); err != nil {
			return err
		}
	}

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS module (
			id BLOB PRIMARY KEY,
			path TEXT NOT NULL,
			kind TEXT NOT NULL,
			file_path TEXT,
			visibility TEXT,
			cfg_strings TEXT,
			created_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS file_mod (
			owner_module_id BLOB PRIMARY KEY,
			file_path TEXT NOT NULL,
			namespace TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS syntax_edge (
			source_id BLOB NOT NULL,
			target_id BLOB NOT NULL,
			kind TEXT NOT NULL,
			PRIMARY KEY (source_id, target_id, kind)
		)`,
		`CREATE INDEX IF NOT EXISTS syntax_edge_source_idx ON syntax_edge(source_id, kind)`,
		`CREATE INDEX IF NOT EXISTS syntax_edge_target_idx ON syntax_edge(target_id, kind)`,
		`CREATE TABLE IF NOT EXISTS embedding_set (
			key TEXT PRIMARY KEY,
			provider_slug TEXT NOT NULL,
			model_id TEXT NOT NULL,
			dims INTEGER NOT NULL,
			dtype TEXT NOT NULL,
			is_active INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE VIRTUAL TABLE IF NOT EXISTS node_fts_symbols USING fts5(
			node_id UNINDEXED,
			content,
			tokenize='unicode61'
		)`,
		`CREATE VIRTUAL TABLE IF NOT EXISTS node_fts_body USING fts5(
			node_id UNINDEXED,
			content,
			tokenize='unicode61'
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}

	return nil
}

func (s *Store) ensureNodeTable(ctx context.Context, kind NodeKind) error {
	table := nodeTableName(kind)
	if err := s.checkExistingSchema(ctx, table, nodeTableColumns); err != nil {
		return err
	}

	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id BLOB PRIMARY KEY,
		name TEXT NOT NULL,
		visibility TEXT,
		file_path TEXT NOT NULL,
		module_path TEXT,
		span_start INTEGER NOT NULL,
		span_end INTEGER NOT NULL,
		tracking_hash BLOB NOT NULL,
		docstring TEXT,
		signature TEXT,
		body TEXT,
		attributes TEXT,
		cfg_strings TEXT,
		has_embedding INTEGER NOT NULL DEFAULT 0,
		parent_scope_id BLOB,
		created_at INTEGER NOT NULL
	)`, table)
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("ensure table %s: %w", table, err)
	}
	idxStmt := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_file_idx ON %s(file_path)`, table, table)
	if _, err := s.db.ExecContext(ctx, idxStmt); err != nil {
		return fmt.Errorf("ensure index on %s: %w", table, err)
	}
	return nil
}

// checkExistingSchema inspects table via PRAGMA table_info and, if the
// table already exists, compares its column set against want. A table that
// doesn't exist yet is not an error — CREATE TABLE IF NOT EXISTS handles
// that case immediately afterward. Column order is not significant;
// only the set of names is compared, since SQLite's ALTER TABLE ADD COLUMN
// history can legitimately reorder nothing but append.
func (s *Store) checkExistingSchema(ctx context.Context, table string, want []string) error {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`PRAGMA table_info(%s)`, table))
	if err != nil {
		return fmt.Errorf("inspect schema for %s: %w", table, err)
	}
	defer rows.Close()

	got := make(map[string]struct{})
	for rows.Next() {
		var cid int
		var name, colType string
		var notNull, pk int
		var dflt any
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dflt, &pk); err != nil {
			return fmt.Errorf("scan table_info(%s): %w", table, err)
		}
		got[name] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("inspect schema for %s: %w", table, err)
	}
	if len(got) == 0 {
		// Table does not exist yet; nothing to validate.
		return nil
	}

	wantSet := make(map[string]struct{}, len(want))
	for _, name := range want {
		wantSet[name] = struct{}{}
	}
	if len(got) != len(wantSet) {
		return &SchemaError{Relation: table, Reason: fmt.Sprintf("expected %d columns, found %d", len(wantSet), len(got))}
	}
	for name := range wantSet {
		if _, ok := got[name]; !ok {
			return &SchemaError{Relation: table, Reason: fmt.Sprintf("missing expected column %q", name)}
		}
	}
	return nil
}

// PutNodes upserts a batch of primary nodes of one kind, in a single
// transaction, and keeps node_fts in step with the written rows.
func (s *Store) PutNodes(ctx context.Context, kind NodeKind, nodes []PrimaryNode) error {
	if len(nodes) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	table := nodeTableName(kind)
	upsert := fmt.Sprintf(`INSERT INTO %s (
		id, name, visibility, file_path, module_path, span_start, span_end,
		tracking_hash, docstring, signature, body, attributes, cfg_strings,
		has_embedding, parent_scope_id, created_at
	) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
	ON CONFLICT(id) DO UPDATE SET
		name=excluded.name, visibility=excluded.visibility,
		file_path=excluded.file_path, module_path=excluded.module_path,
		span_start=excluded.span_start, span_end=excluded.span_end,
		tracking_hash=excluded.tracking_hash, docstring=excluded.docstring,
		signature=excluded.signature, body=excluded.body,
		attributes=excluded.attributes, cfg_strings=excluded.cfg_strings,
		has_embedding=excluded.has_embedding,
		parent_scope_id=excluded.parent_scope_id`, table)

	stmt, err := tx.PrepareContext(ctx, upsert)
	if err != nil {
		return fmt.Errorf("prepare upsert for %s: %w", table, err)
	}
	defer stmt.Close()

	deleteSymbols, err := tx.PrepareContext(ctx, `DELETE FROM node_fts_symbols WHERE node_id = ?`)
	if err != nil {
		return fmt.Errorf("prepare fts symbol delete: %w", err)
	}
	defer deleteSymbols.Close()
	insertSymbols, err := tx.PrepareContext(ctx, `INSERT INTO node_fts_symbols(node_id, content) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare fts symbol insert: %w", err)
	}
	defer insertSymbols.Close()

	deleteBody, err := tx.PrepareContext(ctx, `DELETE FROM node_fts_body WHERE node_id = ?`)
	if err != nil {
		return fmt.Errorf("prepare fts body delete: %w", err)
	}
	defer deleteBody.Close()
	insertBody, err := tx.PrepareContext(ctx, `INSERT INTO node_fts_body(node_id, content) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare fts body insert: %w", err)
	}
	defer insertBody.Close()

	now := time.Now().Unix()
	for _, n := range nodes {
		idBytes := n.ID[:]
		var parent any
		if !n.ParentScopeID.IsZero() {
			parent = n.ParentScopeID[:]
		}
		if _, err := stmt.ExecContext(ctx, idBytes, n.Name, n.Visibility, n.FilePath,
			strings.Join(n.ModulePath, "::"), n.Span.Start, n.Span.End, n.TrackingHash[:],
			n.Docstring, n.Signature, n.Body, strings.Join(n.Attributes, ","),
			strings.Join(n.CfgStrings, ","), boolToInt(n.HasEmbedding), parent, now); err != nil {
			return fmt.Errorf("upsert node %s: %w", n.ID, err)
		}

		symbolTokens := TokenizeCode(n.SymbolText)
		if _, err := deleteSymbols.ExecContext(ctx, idBytes); err != nil {
			return fmt.Errorf("clear symbol fts for %s: %w", n.ID, err)
		}
		if _, err := insertSymbols.ExecContext(ctx, idBytes, strings.Join(symbolTokens, " ")); err != nil {
			return fmt.Errorf("index symbol fts for %s: %w", n.ID, err)
		}

		bodyTokens := TokenizeCode(n.BodyText)
		if _, err := deleteBody.ExecContext(ctx, idBytes); err != nil {
			return fmt.Errorf("clear body fts for %s: %w", n.ID, err)
		}
		if _, err := insertBody.ExecContext(ctx, idBytes, strings.Join(bodyTokens, " ")); err != nil {
			return fmt.Errorf("index body fts for %s: %w", n.ID, err)
		}
	}

	return tx.Commit()
}

// DeleteNodes removes a batch of primary nodes of one kind and their
// node_fts entries.
func (s *Store) DeleteNodes(ctx context.Context, kind NodeKind, ids []NodeId) error {
	if len(ids) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	table := nodeTableName(kind)
	del := fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, table)
	stmt, err := tx.PrepareContext(ctx, del)
	if err != nil {
		return fmt.Errorf("prepare delete for %s: %w", table, err)
	}
	defer stmt.Close()

	delSym, err := tx.PrepareContext(ctx, `DELETE FROM node_fts_symbols WHERE node_id = ?`)
	if err != nil {
		return err
	}
	defer delSym.Close()
	delBody, err := tx.PrepareContext(ctx, `DELETE FROM node_fts_body WHERE node_id = ?`)
	if err != nil {
		return err
	}
	defer delBody.Close()

	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, id[:]); err != nil {
			return fmt.Errorf("delete node %s: %w", id, err)
		}
		if _, err := delSym.ExecContext(ctx, id[:]); err != nil {
			return err
		}
		if _, err := delBody.ExecContext(ctx, id[:]); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// PutModules upserts module relation rows, the graph's canonical-path
// backbone the Resolver walks via syntax_edge Contains closure.
func (s *Store) PutModules(ctx context.Context, modules []Module) error {
	if len(modules) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO module (
		id, path, kind, file_path, visibility, cfg_strings, created_at
	) VALUES (?,?,?,?,?,?,?)
	ON CONFLICT(id) DO UPDATE SET
		path=excluded.path, kind=excluded.kind, file_path=excluded.file_path,
		visibility=excluded.visibility, cfg_strings=excluded.cfg_strings`)
	if err != nil {
		return fmt.Errorf("prepare module upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	for _, m := range modules {
		if _, err := stmt.ExecContext(ctx, m.ID[:], strings.Join(m.Path, "::"), string(m.Kind),
			m.FilePath, m.Visibility, strings.Join(m.CfgStrings, ","), now); err != nil {
			return fmt.Errorf("upsert module %s: %w", m.ID, err)
		}
	}
	return tx.Commit()
}

// PutFileMods upserts file_mod rows, one per file-based module.
func (s *Store) PutFileMods(ctx context.Context, fileMods []FileMod) error {
	if len(fileMods) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO file_mod (owner_module_id, file_path, namespace)
		VALUES (?,?,?)
		ON CONFLICT(owner_module_id) DO UPDATE SET
			file_path=excluded.file_path, namespace=excluded.namespace`)
	if err != nil {
		return fmt.Errorf("prepare file_mod upsert: %w", err)
	}
	defer stmt.Close()

	for _, fm := range fileMods {
		if _, err := stmt.ExecContext(ctx, fm.OwnerModuleID[:], fm.FilePath, fm.Namespace); err != nil {
			return fmt.Errorf("upsert file_mod %s: %w", fm.OwnerModuleID, err)
		}
	}
	return tx.Commit()
}

// PutEdges upserts syntax_edge rows. The Contains-kind subset is what the
// Resolver's ancestor closure walks; other kinds ride along for
// ResolveEdges.
func (s *Store) PutEdges(ctx context.Context, edges []Edge) error {
	if len(edges) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO syntax_edge (source_id, target_id, kind)
		VALUES (?,?,?)
		ON CONFLICT(source_id, target_id, kind) DO NOTHING`)
	if err != nil {
		return fmt.Errorf("prepare edge upsert: %w", err)
	}
	defer stmt.Close()

	for _, e := range edges {
		if _, err := stmt.ExecContext(ctx, e.SourceID[:], e.TargetID[:], string(e.Kind)); err != nil {
			return fmt.Errorf("upsert edge %s->%s: %w", e.SourceID, e.TargetID, err)
		}
	}
	return tx.Commit()
}

// GetNode reads a single node row (without the large body/docstring
// fields) for resolver and snippet use.
func (s *Store) GetNode(ctx context.Context, kind NodeKind, id NodeId) (*NodeRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	table := nodeTableName(kind)
	query := fmt.Sprintf(`SELECT id, name, file_path, module_path, span_start, span_end, tracking_hash
		FROM %s WHERE id = ?`, table)

	var (
		idBytes, thBytes []byte
		name, filePath, modulePath string
		spanStart, spanEnd int
	)
	row := s.db.QueryRowContext(ctx, query, id[:])
	if err := row.Scan(&idBytes, &name, &filePath, &modulePath, &spanStart, &spanEnd, &thBytes); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get node %s from %s: %w", id, table, err)
	}

	nr := &NodeRow{
		ID:       id,
		Name:     name,
		FilePath: filePath,
		Span:     Span{Start: spanStart, End: spanEnd},
	}
	copy(nr.TrackingHash[:], thBytes)
	nr.FileHash = nr.TrackingHash
	if modulePath != "" {
		nr.ModulePath = strings.Split(modulePath, "::")
	}
	return nr, nil
}

// SearchFTS queries one of the two node_fts relations ("symbols" or
// "body") and returns BM25-ranked hits. This is a direct, store-native
// complement to the BM25Actor's in-memory scorer: both share the same
// tokenizer, so their rankings stay comparable.
func (s *Store) SearchFTS(ctx context.Context, relation, query string, limit int) ([]*BM25Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var table string
	switch relation {
	case "symbols":
		table = "node_fts_symbols"
	case "body":
		table = "node_fts_body"
	default:
		return nil, fmt.Errorf("unknown node_fts relation %q", relation)
	}

	tokens := TokenizeCode(query)
	if len(tokens) == 0 {
		return []*BM25Result{}, nil
	}
	matchQuery := strings.Join(tokens, " ")

	sqlQuery := fmt.Sprintf(`SELECT node_id, bm25(%s) AS score FROM %s WHERE content MATCH ? ORDER BY score LIMIT ?`, table, table)
	rows, err := s.db.QueryContext(ctx, sqlQuery, matchQuery, limit)
	if err != nil {
		if strings.Contains(err.Error(), "fts5:") || strings.Contains(err.Error(), "syntax error") {
			return []*BM25Result{}, nil
		}
		return nil, fmt.Errorf("search %s: %w", table, err)
	}
	defer rows.Close()

	var results []*BM25Result
	for rows.Next() {
		var idBytes []byte
		var score float64
		if err := rows.Scan(&idBytes, &score); err != nil {
			return nil, fmt.Errorf("scan %s result: %w", table, err)
		}
		var id NodeId
		copy(id[:], idBytes)
		results = append(results, &BM25Result{DocID: id, Score: -score, MatchedTerms: tokens})
	}
	return results, rows.Err()
}

// CreateOrReplaceIndex creates (or replaces) the dense index for one
// (NodeKind, EmbeddingSet) pair.
func (s *Store) CreateOrReplaceIndex(kind NodeKind, set EmbeddingSet, cfg VectorStoreConfig) error {
	idx, err := NewDenseIndex(cfg)
	if err != nil {
		return fmt.Errorf("create dense index: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := denseKey(kind, set)
	if old, ok := s.dense[key]; ok {
		_ = old.Close()
	}
	s.dense[key] = idx
	return nil
}

// DenseIndexFor returns the active dense index for (kind, set), or
// *IndexMissing if none has been created.
func (s *Store) DenseIndexFor(kind NodeKind, set EmbeddingSet) (VectorStore, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.dense[denseKey(kind, set)]
	if !ok {
		return nil, &IndexMissing{NodeKind: kind, Reason: "no dense index created for embedding set " + set.Key()}
	}
	return idx, nil
}

// RawQuery runs an arbitrary SQL script against the store and honors NOW
// read semantics implicitly: the single-connection pool (MaxOpenConns=1)
// serializes every statement, and WAL mode guarantees reads only ever
// observe committed transactions. mutable is documentation for callers —
// Store reserves the right to reject mutable scripts issued through this
// path in a future revision; today it is not enforced.
func (s *Store) RawQuery(ctx context.Context, script string, mutable bool, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, script, args...)
}

// AllSparseDocs scans every primary-node relation and returns one
// SparseDoc per row, used by BM25Actor.Rebuild to reconstruct its
// in-memory postings map from the relations of record.
func (s *Store) AllSparseDocs(ctx context.Context) ([]SparseDoc, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var docs []SparseDoc
	for _, kind := range AllNodeKinds {
		table := nodeTableName(kind)
		query := fmt.Sprintf(`SELECT id, name, signature, docstring, body FROM %s`, table)
		rows, err := s.db.QueryContext(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("scan %s for bm25 rebuild: %w", table, err)
		}
		for rows.Next() {
			var idBytes []byte
			var name, signature, docstring, body string
			if err := rows.Scan(&idBytes, &name, &signature, &docstring, &body); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan %s row: %w", table, err)
			}
			var id NodeId
			copy(id[:], idBytes)
			symbolText := name + " " + signature
			bodyText := docstring + " " + body
			docs = append(docs, SparseDoc{
				ID:         id,
				SymbolText: symbolText,
				BodyText:   bodyText,
				DocLen:     len(TokenizeCode(symbolText)) + len(TokenizeCode(bodyText)),
			})
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}
	return docs, nil
}

func denseKey(kind NodeKind, set EmbeddingSet) string {
	return set.Key() + "/" + string(kind)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
