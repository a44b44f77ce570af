// Package resolver turns LLM-supplied (file_path, module_path, item_name)
// references into hash-validated NodeRows by walking the Contains-edge
// containment graph, the Go-on-SQLite analogue of the datalog fixpoint
// queries this component is grounded on.
package resolver

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/ploke-dev/rele/internal/releerr"
	"github.com/ploke-dev/rele/internal/store"
)

// Resolver projects node rows and their outgoing edges through the
// module/file_mod/syntax_edge relations of a Store.
type Resolver struct {
	store *store.Store
}

// New builds a Resolver over st.
func New(st *store.Store) *Resolver {
	return &Resolver{store: st}
}

// ancestorCTE computes, for every node id, the set of its strict
// ancestors under Contains-kind syntax_edge rows (source_id is the
// parent, target_id the child) — the SQL recursive-CTE equivalent of the
// original's `parent_of`/`ancestor` datalog rules.
const ancestorCTE = `
WITH RECURSIVE ancestor(desc_id, anc_id) AS (
	SELECT target_id, source_id FROM syntax_edge WHERE kind = 'Contains'
	UNION
	SELECT a.desc_id, e.source_id
	FROM ancestor a
	JOIN syntax_edge e ON e.target_id = a.anc_id AND e.kind = 'Contains'
),
module_candidate AS (
	SELECT a.desc_id AS node_id, m.id AS module_id, m.path AS module_path
	FROM ancestor a
	JOIN module m ON m.id = a.anc_id
),
self_owner AS (
	SELECT m.id AS module_id, m.id AS owner_id
	FROM module m
	JOIN file_mod fm ON fm.owner_module_id = m.id
),
ancestor_owner AS (
	SELECT a.desc_id AS module_id, fm.owner_module_id AS owner_id
	FROM ancestor a
	JOIN file_mod fm ON fm.owner_module_id = a.anc_id
	JOIN module selfm ON selfm.id = a.desc_id
),
file_owner AS (
	SELECT * FROM self_owner
	UNION
	SELECT * FROM ancestor_owner
)
`

// ResolveExact returns node rows matching relation/file_path/module_path/
// item_name exactly. A well-formed graph yields zero or one row; more
// than one is a UniquenessViolation.
func (r *Resolver) ResolveExact(ctx context.Context, relation store.NodeKind, filePath string, modulePath []string, itemName string) ([]*store.NodeRow, error) {
	return r.resolve(ctx, relation, &filePath, modulePath, itemName)
}

// ResolveByCanon is the relaxed resolver: drops the file_path equality,
// used when absolute paths differ between environments.
func (r *Resolver) ResolveByCanon(ctx context.Context, relation store.NodeKind, modulePath []string, itemName string) ([]*store.NodeRow, error) {
	return r.resolve(ctx, relation, nil, modulePath, itemName)
}

func (r *Resolver) resolve(ctx context.Context, relation store.NodeKind, filePath *string, modulePath []string, itemName string) ([]*store.NodeRow, error) {
	table := store.TableNameForKind(relation)
	modPath := strings.Join(modulePath, "::")

	query := ancestorCTE + fmt.Sprintf(`
SELECT n.id, n.name, fm.file_path, mc.module_path, n.span_start, n.span_end, n.tracking_hash, fm.namespace
FROM %s n
JOIN module_candidate mc ON mc.node_id = n.id
JOIN file_owner fo ON fo.module_id = mc.module_id
JOIN file_mod fm ON fm.owner_module_id = fo.owner_id
WHERE n.name = ? AND mc.module_path = ?`, table)

	args := []any{itemName, modPath}
	if filePath != nil {
		query += " AND fm.file_path = ?"
		args = append(args, *filePath)
	}

	rows, err := r.store.RawQuery(ctx, query, false, args...)
	if err != nil {
		return nil, fmt.Errorf("resolve %s/%s: %w", relation, itemName, err)
	}
	defer rows.Close()

	var results []*store.NodeRow
	for rows.Next() {
		nr, err := scanResolvedRow(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, nr)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(results) > 1 {
		return results, releerr.DomainError(releerr.CodeUniquenessViolation,
			fmt.Sprintf("resolve_exact matched %d rows for %s/%s in module %s", len(results), relation, itemName, modPath), nil)
	}
	return results, nil
}

// ResolveEdges resolves the node named by (relation, file_path,
// module_path, item_name) and returns its outgoing edges joined with
// each target's canonical path and file path.
func (r *Resolver) ResolveEdges(ctx context.Context, relation store.NodeKind, filePath string, modulePath []string, itemName string) ([]*store.EdgeRow, error) {
	sources, err := r.ResolveExact(ctx, relation, filePath, modulePath, itemName)
	if err != nil {
		return nil, err
	}
	if len(sources) == 0 {
		return nil, releerr.DomainError(releerr.CodeNodeNotFound,
			fmt.Sprintf("no node found for %s/%s in module %s", relation, itemName, strings.Join(modulePath, "::")), nil)
	}
	source := sources[0]

	edgeRows, err := r.store.RawQuery(ctx, `SELECT target_id, kind FROM syntax_edge WHERE source_id = ?`, false, source.ID[:])
	if err != nil {
		return nil, fmt.Errorf("list edges for %s: %w", source.ID, err)
	}
	defer edgeRows.Close()

	type edge struct {
		targetID store.NodeId
		kind     store.EdgeKind
	}
	var edges []edge
	for edgeRows.Next() {
		var idBytes []byte
		var kind string
		if err := edgeRows.Scan(&idBytes, &kind); err != nil {
			return nil, err
		}
		var tid store.NodeId
		copy(tid[:], idBytes)
		edges = append(edges, edge{targetID: tid, kind: store.EdgeKind(kind)})
	}
	if err := edgeRows.Err(); err != nil {
		return nil, err
	}

	results := make([]*store.EdgeRow, 0, len(edges))
	for _, e := range edges {
		target, err := r.lookupAnyKind(ctx, e.targetID)
		if err != nil {
			return nil, err
		}
		if target == nil {
			continue
		}
		results = append(results, &store.EdgeRow{
			Kind:           e.kind,
			TargetID:       e.targetID,
			TargetName:     target.Name,
			TargetModule:   target.ModulePath,
			TargetFilePath: target.FilePath,
		})
	}
	return results, nil
}

// lookupAnyKind finds a node's name/file_path/module_path across every
// primary-node relation, since an edge's target kind isn't known ahead
// of time (unlike the original's per-relation datalog macro, which
// assumed the target shares the source's relation).
func (r *Resolver) lookupAnyKind(ctx context.Context, id store.NodeId) (*store.NodeRow, error) {
	for _, kind := range store.AllNodeKinds {
		table := store.TableNameForKind(kind)
		query := fmt.Sprintf(`SELECT id, name, file_path, module_path, span_start, span_end, tracking_hash FROM %s WHERE id = ?`, table)
		rows, err := r.store.RawQuery(ctx, query, false, id[:])
		if err != nil {
			return nil, err
		}
		if rows.Next() {
			nr, err := scanPlainNodeRow(rows)
			rows.Close()
			if err != nil {
				return nil, err
			}
			return nr, nil
		}
		rows.Close()
	}
	return nil, nil
}

// scanResolvedRow scans a row from the ancestor-projection query, which
// includes the file_mod namespace alongside the base node columns.
func scanResolvedRow(rows *sql.Rows) (*store.NodeRow, error) {
	var (
		idBytes, thBytes           []byte
		name, filePath, modulePath string
		spanStart, spanEnd         int
		namespace                  string
	)
	if err := rows.Scan(&idBytes, &name, &filePath, &modulePath, &spanStart, &spanEnd, &thBytes, &namespace); err != nil {
		return nil, fmt.Errorf("scan resolved row: %w", err)
	}
	nr := nodeRowFrom(idBytes, name, filePath, modulePath, spanStart, spanEnd, thBytes)
	nr.Namespace = namespace
	return nr, nil
}

// scanPlainNodeRow scans a row selected directly from a node_<kind>
// table, which has no namespace column (that lives on file_mod).
func scanPlainNodeRow(rows *sql.Rows) (*store.NodeRow, error) {
	var (
		idBytes, thBytes           []byte
		name, filePath, modulePath string
		spanStart, spanEnd         int
	)
	if err := rows.Scan(&idBytes, &name, &filePath, &modulePath, &spanStart, &spanEnd, &thBytes); err != nil {
		return nil, fmt.Errorf("scan node row: %w", err)
	}
	return nodeRowFrom(idBytes, name, filePath, modulePath, spanStart, spanEnd, thBytes), nil
}

func nodeRowFrom(idBytes []byte, name, filePath, modulePath string, spanStart, spanEnd int, thBytes []byte) *store.NodeRow {
	var id store.NodeId
	copy(id[:], idBytes)
	var th store.TrackingHash
	copy(th[:], thBytes)
	nr := &store.NodeRow{
		ID:           id,
		Name:         name,
		FilePath:     filePath,
		FileHash:     th,
		TrackingHash: th,
		Span:         store.Span{Start: spanStart, End: spanEnd},
	}
	if modulePath != "" {
		nr.ModulePath = strings.Split(modulePath, "::")
	}
	return nr
}
