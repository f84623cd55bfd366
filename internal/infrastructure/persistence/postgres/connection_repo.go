package postgres

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"

	"github.com/Moeed-Tahir/perfect-connect/internal/domain/participant"
	"github.com/Moeed-Tahir/perfect-connect/internal/domain/social"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONNECTION REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// ConnectionRepository implements social.ConnectionRepository for PostgreSQL.
type ConnectionRepository struct {
	conn *Connection
}

// NewConnectionRepository creates a new ConnectionRepository.
func NewConnectionRepository(conn *Connection) *ConnectionRepository {
	return &ConnectionRepository{conn: conn}
}

const connectionColumns = `pair_key, participant_a, participant_b, report, programs, created_at, updated_at`

// Upsert inserts the connection, or replaces its report and merges its
// programs into the stored array in the same statement. created_at is kept.
func (r *ConnectionRepository) Upsert(ctx context.Context, c *social.Connection) (bool, error) {
	reportJSON, err := json.Marshal(c.Report)
	if err != nil {
		return false, fmt.Errorf("failed to marshal report: %w", err)
	}

	// xmax is zero only for freshly inserted tuples.
	query := `
		INSERT INTO connections (` + connectionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (pair_key) DO UPDATE SET
			report = EXCLUDED.report,
			programs = ARRAY(
				SELECT DISTINCT p FROM unnest(connections.programs || EXCLUDED.programs) AS p ORDER BY p
			),
			updated_at = EXCLUDED.updated_at
		RETURNING (xmax = 0) AS inserted
	`

	var inserted bool
	err = r.conn.QueryRow(ctx, query,
		string(c.PairKey),
		string(c.ParticipantA),
		string(c.ParticipantB),
		reportJSON,
		fromPrograms(c.Programs),
		c.CreatedAt,
		c.UpdatedAt,
	).Scan(&inserted)
	if err != nil {
		return false, fmt.Errorf("failed to upsert connection: %w", err)
	}
	return inserted, nil
}

// SetPrograms overwrites the programs of an existing connection.
func (r *ConnectionRepository) SetPrograms(ctx context.Context, key social.PairKey, programs []participant.Program) (bool, error) {
	query := `UPDATE connections SET programs = $2, updated_at = NOW() WHERE pair_key = $1`

	tag, err := r.conn.Exec(ctx, query, string(key), fromPrograms(programs))
	if err != nil {
		return false, fmt.Errorf("failed to set connection programs: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Remove deletes the connection if present.
func (r *ConnectionRepository) Remove(ctx context.Context, key social.PairKey) (bool, error) {
	tag, err := r.conn.Exec(ctx, `DELETE FROM connections WHERE pair_key = $1`, string(key))
	if err != nil {
		return false, fmt.Errorf("failed to remove connection: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Find returns the connection or social.ErrConnectionNotFound.
func (r *ConnectionRepository) Find(ctx context.Context, key social.PairKey) (*social.Connection, error) {
	query := `SELECT ` + connectionColumns + ` FROM connections WHERE pair_key = $1`

	c, err := scanConnection(r.conn.QueryRow(ctx, query, string(key)))
	if err != nil {
		if IsNoRows(err) {
			return nil, social.ErrConnectionNotFound
		}
		return nil, err
	}
	return c, nil
}

// ListForParticipant returns the participant's connections, newest first.
func (r *ConnectionRepository) ListForParticipant(ctx context.Context, id participant.ParticipantID) ([]*social.Connection, error) {
	query := `
		SELECT ` + connectionColumns + ` FROM connections
		WHERE participant_a = $1 OR participant_b = $1
		ORDER BY created_at DESC, pair_key
	`
	rows, err := r.conn.Query(ctx, query, string(id))
	if err != nil {
		return nil, fmt.Errorf("failed to list connections: %w", err)
	}
	defer rows.Close()

	out := []*social.Connection{}
	for rows.Next() {
		c, err := scanConnection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate connections: %w", err)
	}
	return out, nil
}

// ListPairKeys returns connection keys in order.
func (r *ConnectionRepository) ListPairKeys(ctx context.Context, opts social.ListOptions) ([]social.PairKey, error) {
	query := `SELECT pair_key FROM connections ORDER BY pair_key COLLATE "C" LIMIT $1 OFFSET $2`

	rows, err := r.conn.Query(ctx, query, limitArg(opts), offsetArg(opts))
	if err != nil {
		return nil, fmt.Errorf("failed to list connection keys: %w", err)
	}
	defer rows.Close()

	return scanPairKeys(rows)
}

func scanConnection(row pgx.Row) (*social.Connection, error) {
	var (
		c          social.Connection
		key, a, b  string
		reportJSON []byte
		programs   []string
	)
	if err := row.Scan(&key, &a, &b, &reportJSON, &programs, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if IsNoRows(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan connection: %w", err)
	}

	c.PairKey = social.PairKey(key)
	c.ParticipantA = participant.ParticipantID(a)
	c.ParticipantB = participant.ParticipantID(b)
	c.Programs = toPrograms(programs)

	c.Report = social.EmptyReport()
	if err := json.Unmarshal(reportJSON, &c.Report); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report: %w", err)
	}
	c.Report = c.Report.Clone()
	return &c, nil
}

func fromPrograms(programs []participant.Program) []string {
	out := make([]string, 0, len(programs))
	for _, p := range programs {
		out = append(out, string(p))
	}
	return out
}
