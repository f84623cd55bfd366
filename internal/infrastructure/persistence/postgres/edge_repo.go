package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Moeed-Tahir/perfect-connect/internal/domain/participant"
	"github.com/Moeed-Tahir/perfect-connect/internal/domain/social"
)

// ══════════════════════════════════════════════════════════════════════════════
// INTEREST EDGE REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// EdgeRepository implements social.EdgeRepository for PostgreSQL.
// uq_interest_edge makes concurrent toggles of the same 4-tuple linearizable.
type EdgeRepository struct {
	conn *Connection
}

// NewEdgeRepository creates a new EdgeRepository.
func NewEdgeRepository(conn *Connection) *EdgeRepository {
	return &EdgeRepository{conn: conn}
}

// Upsert inserts the edge unless its 4-tuple already exists.
func (r *EdgeRepository) Upsert(ctx context.Context, edge *social.InterestEdge) (bool, error) {
	query := `
		INSERT INTO interest_edges (id, liker_id, likee_id, program, category, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT ON CONSTRAINT uq_interest_edge DO NOTHING
	`
	tag, err := r.conn.Exec(ctx, query,
		edge.ID,
		string(edge.Liker),
		string(edge.Likee),
		string(edge.Program),
		string(edge.Category),
		edge.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert interest edge: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Delete removes the edge and reports whether it existed.
func (r *EdgeRepository) Delete(ctx context.Context, key social.EdgeKey) (bool, error) {
	query := `
		DELETE FROM interest_edges
		WHERE liker_id = $1 AND likee_id = $2 AND program = $3 AND category = $4
		RETURNING id
	`
	var id string
	err := r.conn.QueryRow(ctx, query, edgeArgs(key)...).Scan(&id)
	if err != nil {
		if IsNoRows(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to delete interest edge: %w", err)
	}
	return true, nil
}

// Exists checks whether the edge is live.
func (r *EdgeRepository) Exists(ctx context.Context, key social.EdgeKey) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM interest_edges
			WHERE liker_id = $1 AND likee_id = $2 AND program = $3 AND category = $4
		)
	`
	var exists bool
	if err := r.conn.QueryRow(ctx, query, edgeArgs(key)...).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check interest edge: %w", err)
	}
	return exists, nil
}

// FindReciprocal returns the reverse edge, or nil when it is absent.
func (r *EdgeRepository) FindReciprocal(ctx context.Context, key social.EdgeKey) (*social.InterestEdge, error) {
	query := `
		SELECT id, liker_id, likee_id, program, category, created_at
		FROM interest_edges
		WHERE liker_id = $1 AND likee_id = $2 AND program = $3 AND category = $4
	`
	edge, err := scanEdge(r.conn.QueryRow(ctx, query, edgeArgs(key.Reverse())...))
	if err != nil {
		if IsNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	return edge, nil
}

// CountBetween counts edges in both directions across programs.
func (r *EdgeRepository) CountBetween(ctx context.Context, a, b participant.ParticipantID) (int, error) {
	query := `
		SELECT COUNT(*) FROM interest_edges
		WHERE (liker_id = $1 AND likee_id = $2)
		   OR (liker_id = $2 AND likee_id = $1)
	`
	var count int
	if err := r.conn.QueryRow(ctx, query, string(a), string(b)).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count interest edges: %w", err)
	}
	return count, nil
}

// MutualProgramsBetween returns the programs with reciprocal edges of the same category.
func (r *EdgeRepository) MutualProgramsBetween(ctx context.Context, a, b participant.ParticipantID) ([]participant.Program, error) {
	query := `
		SELECT DISTINCT e1.program
		FROM interest_edges e1
		JOIN interest_edges e2
		  ON e2.liker_id = e1.likee_id
		 AND e2.likee_id = e1.liker_id
		 AND e2.program = e1.program
		 AND e2.category = e1.category
		WHERE e1.liker_id = $1 AND e1.likee_id = $2
	`
	rows, err := r.conn.Query(ctx, query, string(a), string(b))
	if err != nil {
		return nil, fmt.Errorf("failed to list mutual programs: %w", err)
	}
	defer rows.Close()

	var programs []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("failed to scan program: %w", err)
		}
		programs = append(programs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate mutual programs: %w", err)
	}
	return toPrograms(programs), nil
}

// ListByLiker returns outgoing edges, newest first.
func (r *EdgeRepository) ListByLiker(ctx context.Context, liker participant.ParticipantID, opts social.ListOptions) ([]*social.InterestEdge, error) {
	query := `
		SELECT id, liker_id, likee_id, program, category, created_at
		FROM interest_edges
		WHERE liker_id = $1 AND ($2 = '' OR program = $2)
		ORDER BY created_at DESC, id DESC
		LIMIT $3 OFFSET $4
	`
	rows, err := r.conn.Query(ctx, query, string(liker), string(opts.Program), limitArg(opts), offsetArg(opts))
	if err != nil {
		return nil, fmt.Errorf("failed to list interest edges: %w", err)
	}
	defer rows.Close()

	out := []*social.InterestEdge{}
	for rows.Next() {
		edge, err := scanEdge(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, edge)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate interest edges: %w", err)
	}
	return out, nil
}

// ListMutualPairs returns pairs that have reciprocal edges of the same program and category.
func (r *EdgeRepository) ListMutualPairs(ctx context.Context, opts social.ListOptions) ([]social.MutualPair, error) {
	query := `
		SELECT e1.liker_id || ':' || e1.likee_id AS pair_key,
		       array_agg(DISTINCT e1.program) AS programs
		FROM interest_edges e1
		JOIN interest_edges e2
		  ON e2.liker_id = e1.likee_id
		 AND e2.likee_id = e1.liker_id
		 AND e2.program = e1.program
		 AND e2.category = e1.category
		WHERE e1.liker_id COLLATE "C" < e1.likee_id COLLATE "C"
		  AND ($1 = '' OR e1.program = $1)
		GROUP BY e1.liker_id, e1.likee_id
		ORDER BY pair_key COLLATE "C"
		LIMIT $2 OFFSET $3
	`
	rows, err := r.conn.Query(ctx, query, string(opts.Program), limitArg(opts), offsetArg(opts))
	if err != nil {
		return nil, fmt.Errorf("failed to list mutual pairs: %w", err)
	}
	defer rows.Close()

	out := []social.MutualPair{}
	for rows.Next() {
		var (
			key      string
			programs []string
		)
		if err := rows.Scan(&key, &programs); err != nil {
			return nil, fmt.Errorf("failed to scan mutual pair: %w", err)
		}
		out = append(out, social.MutualPair{
			PairKey:  social.PairKey(key),
			Programs: toPrograms(programs),
		})
	}
	return out, rows.Err()
}

// ListPairsWithEdges returns every pair key with at least one live edge.
func (r *EdgeRepository) ListPairsWithEdges(ctx context.Context, opts social.ListOptions) ([]social.PairKey, error) {
	query := `
		SELECT DISTINCT LEAST(liker_id COLLATE "C", likee_id COLLATE "C") || ':' ||
		       GREATEST(liker_id COLLATE "C", likee_id COLLATE "C") AS pair_key
		FROM interest_edges
		ORDER BY pair_key COLLATE "C"
		LIMIT $1 OFFSET $2
	`
	rows, err := r.conn.Query(ctx, query, limitArg(opts), offsetArg(opts))
	if err != nil {
		return nil, fmt.Errorf("failed to list edge pairs: %w", err)
	}
	defer rows.Close()

	return scanPairKeys(rows)
}

func scanEdge(row pgx.Row) (*social.InterestEdge, error) {
	var (
		edge                            social.InterestEdge
		liker, likee, program, category string
	)
	if err := row.Scan(&edge.ID, &liker, &likee, &program, &category, &edge.CreatedAt); err != nil {
		if IsNoRows(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan interest edge: %w", err)
	}
	edge.EdgeKey = social.EdgeKey{
		Liker:    participant.ParticipantID(liker),
		Likee:    participant.ParticipantID(likee),
		Program:  participant.Program(program),
		Category: social.Category(category),
	}
	return &edge, nil
}

func scanPairKeys(rows pgx.Rows) ([]social.PairKey, error) {
	out := []social.PairKey{}
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan pair key: %w", err)
		}
		out = append(out, social.PairKey(key))
	}
	return out, rows.Err()
}

func edgeArgs(key social.EdgeKey) []interface{} {
	return []interface{}{string(key.Liker), string(key.Likee), string(key.Program), string(key.Category)}
}

// limitArg maps "no limit" to NULL, which LIMIT treats as ALL.
func limitArg(opts social.ListOptions) interface{} {
	if opts.Limit <= 0 {
		return nil
	}
	return opts.Limit
}

func offsetArg(opts social.ListOptions) int {
	if opts.Offset < 0 {
		return 0
	}
	return opts.Offset
}

// toPrograms returns the programs in canonical order.
func toPrograms(values []string) []participant.Program {
	seen := make(map[participant.Program]bool, len(values))
	for _, v := range values {
		seen[participant.Program(v)] = true
	}
	out := make([]participant.Program, 0, len(seen))
	for _, p := range participant.AllPrograms() {
		if seen[p] {
			out = append(out, p)
		}
	}
	return out
}
