package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"

	"github.com/Moeed-Tahir/perfect-connect/internal/domain/participant"
	"github.com/Moeed-Tahir/perfect-connect/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PARTICIPANT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// ParticipantRepository implements participant.Repository for PostgreSQL.
type ParticipantRepository struct {
	conn *Connection
}

// NewParticipantRepository creates a new ParticipantRepository.
func NewParticipantRepository(conn *Connection) *ParticipantRepository {
	return &ParticipantRepository{conn: conn}
}

const participantColumns = `id, display_name, host, candidate, created_at, updated_at`

// GetByID returns a participant by ID.
func (r *ParticipantRepository) GetByID(ctx context.Context, id participant.ParticipantID) (*participant.Participant, error) {
	query := `SELECT ` + participantColumns + ` FROM participants WHERE id = $1`

	p, err := scanParticipant(r.conn.QueryRow(ctx, query, string(id)))
	if err != nil {
		if IsNoRows(err) {
			return nil, participant.ErrParticipantNotFound
		}
		return nil, err
	}
	return p, nil
}

// Save creates or replaces a participant.
func (r *ParticipantRepository) Save(ctx context.Context, p *participant.Participant) error {
	if err := p.Validate(); err != nil {
		return err
	}

	hostJSON, err := encodeArm(p.Host)
	if err != nil {
		return fmt.Errorf("failed to marshal host profile: %w", err)
	}
	candidateJSON, err := encodeArm(p.Candidate)
	if err != nil {
		return fmt.Errorf("failed to marshal candidate profile: %w", err)
	}

	query := `
		INSERT INTO participants (id, display_name, host, candidate, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			host = EXCLUDED.host,
			candidate = EXCLUDED.candidate,
			updated_at = EXCLUDED.updated_at
	`

	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	updatedAt := p.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}

	_, err = r.conn.Exec(ctx, query,
		string(p.ID),
		p.DisplayName,
		hostJSON,
		candidateJSON,
		createdAt,
		updatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save participant: %w", err)
	}
	return nil
}

// ListActiveInProgram returns participants whose role arm is enabled and not paused for the program.
func (r *ParticipantRepository) ListActiveInProgram(ctx context.Context, role participant.Role, program participant.Program) ([]*participant.Participant, error) {
	if !role.IsValid() {
		return nil, shared.NewDomainError("participant", "ListActiveInProgram", shared.ErrInvalidInput, "unknown role")
	}
	if !program.IsValid() {
		return nil, shared.ErrInvalidProgram
	}

	// role is validated above, so it is safe to use as a column name
	query := fmt.Sprintf(`
		SELECT %s FROM participants
		WHERE (%s -> 'programs' -> $1 ->> 'enabled')::boolean IS TRUE
		  AND COALESCE((%s -> 'programs' -> $1 ->> 'paused')::boolean, FALSE) IS FALSE
		ORDER BY id
	`, participantColumns, role, role)

	rows, err := r.conn.Query(ctx, query, string(program))
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	defer rows.Close()

	out := []*participant.Participant{}
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate participants: %w", err)
	}
	return out, nil
}

func scanParticipant(row pgx.Row) (*participant.Participant, error) {
	var (
		p             participant.Participant
		id            string
		hostJSON      []byte
		candidateJSON []byte
	)
	if err := row.Scan(&id, &p.DisplayName, &hostJSON, &candidateJSON, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if IsNoRows(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan participant: %w", err)
	}
	p.ID = participant.ParticipantID(id)

	if len(hostJSON) > 0 {
		p.Host = &participant.HostProfile{}
		if err := json.Unmarshal(hostJSON, p.Host); err != nil {
			return nil, fmt.Errorf("failed to unmarshal host profile: %w", err)
		}
	}
	if len(candidateJSON) > 0 {
		p.Candidate = &participant.CandidateProfile{}
		if err := json.Unmarshal(candidateJSON, p.Candidate); err != nil {
			return nil, fmt.Errorf("failed to unmarshal candidate profile: %w", err)
		}
	}
	p.Normalize()
	return &p, nil
}

// encodeArm returns nil for an absent arm so the column stores SQL NULL.
func encodeArm(v interface{}) ([]byte, error) {
	switch arm := v.(type) {
	case *participant.HostProfile:
		if arm == nil {
			return nil, nil
		}
	case *participant.CandidateProfile:
		if arm == nil {
			return nil, nil
		}
	}
	return json.Marshal(v)
}

// ══════════════════════════════════════════════════════════════════════════════
// BLOCK REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// BlockRepository implements participant.BlockRepository for PostgreSQL.
type BlockRepository struct {
	conn *Connection
}

// NewBlockRepository creates a new BlockRepository.
func NewBlockRepository(conn *Connection) *BlockRepository {
	return &BlockRepository{conn: conn}
}

// Block records that blocker blocked target. Repeated blocks are no-ops.
func (r *BlockRepository) Block(ctx context.Context, blocker, target participant.ParticipantID) error {
	if blocker == target {
		return shared.ErrSelfBlock
	}
	query := `
		INSERT INTO participant_blocks (blocker_id, target_id)
		VALUES ($1, $2)
		ON CONFLICT (blocker_id, target_id) DO NOTHING
	`
	if _, err := r.conn.Exec(ctx, query, string(blocker), string(target)); err != nil {
		if IsForeignKeyViolation(err) {
			return participant.ErrParticipantNotFound
		}
		return fmt.Errorf("failed to block participant: %w", err)
	}
	return nil
}

// Unblock removes the block if present.
func (r *BlockRepository) Unblock(ctx context.Context, blocker, target participant.ParticipantID) error {
	query := `DELETE FROM participant_blocks WHERE blocker_id = $1 AND target_id = $2`
	if _, err := r.conn.Exec(ctx, query, string(blocker), string(target)); err != nil {
		return fmt.Errorf("failed to unblock participant: %w", err)
	}
	return nil
}

// IsBlocked checks both directions.
func (r *BlockRepository) IsBlocked(ctx context.Context, a, b participant.ParticipantID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM participant_blocks
			WHERE (blocker_id = $1 AND target_id = $2)
			   OR (blocker_id = $2 AND target_id = $1)
		)
	`
	var blocked bool
	if err := r.conn.QueryRow(ctx, query, string(a), string(b)).Scan(&blocked); err != nil {
		return false, fmt.Errorf("failed to check block: %w", err)
	}
	return blocked, nil
}

// ListBlocked returns everyone blocked by or blocking id.
func (r *BlockRepository) ListBlocked(ctx context.Context, id participant.ParticipantID) ([]participant.ParticipantID, error) {
	query := `
		SELECT target_id FROM participant_blocks WHERE blocker_id = $1
		UNION
		SELECT blocker_id FROM participant_blocks WHERE target_id = $1
		ORDER BY 1
	`
	rows, err := r.conn.Query(ctx, query, string(id))
	if err != nil {
		return nil, fmt.Errorf("failed to list blocks: %w", err)
	}
	defer rows.Close()

	out := []participant.ParticipantID{}
	for rows.Next() {
		var other string
		if err := rows.Scan(&other); err != nil {
			return nil, fmt.Errorf("failed to scan block: %w", err)
		}
		out = append(out, participant.ParticipantID(other))
	}
	return out, rows.Err()
}
