package postgres

// Participant ID columns use COLLATE "C" so that <, LEAST, GREATEST and
// ORDER BY compare bytes, the same order social.NewPairKey uses.

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE PARTICIPANTS
// Profile tables belong to the profile collaborator; the engine only reads them.
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
CREATE TABLE IF NOT EXISTS participants (
    id VARCHAR(128) COLLATE "C" PRIMARY KEY,
    display_name VARCHAR(200) NOT NULL DEFAULT '',

    -- Sub-profiles are stored as documents; NULL means the arm is absent
    host JSONB,
    candidate JSONB,

    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_participant_id CHECK (id <> '' AND position(':' in id) = 0)
);

CREATE INDEX IF NOT EXISTS idx_participants_host_programs ON participants USING GIN ((host -> 'programs'));
CREATE INDEX IF NOT EXISTS idx_participants_candidate_programs ON participants USING GIN ((candidate -> 'programs'));

CREATE TABLE IF NOT EXISTS participant_blocks (
    blocker_id VARCHAR(128) COLLATE "C" NOT NULL REFERENCES participants(id) ON DELETE CASCADE,
    target_id VARCHAR(128) COLLATE "C" NOT NULL REFERENCES participants(id) ON DELETE CASCADE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    PRIMARY KEY (blocker_id, target_id),
    CONSTRAINT no_self_block CHECK (blocker_id <> target_id)
);

CREATE INDEX IF NOT EXISTS idx_participant_blocks_target ON participant_blocks(target_id);
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: CREATE INTEREST EDGES
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
CREATE TABLE IF NOT EXISTS interest_edges (
    id UUID PRIMARY KEY,
    liker_id VARCHAR(128) COLLATE "C" NOT NULL,
    likee_id VARCHAR(128) COLLATE "C" NOT NULL,
    program VARCHAR(16) NOT NULL,
    category VARCHAR(64) NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    -- One edge per (liker, likee, program, category); inserts rely on ON CONFLICT
    CONSTRAINT uq_interest_edge UNIQUE (liker_id, likee_id, program, category),
    CONSTRAINT no_self_interest CHECK (liker_id <> likee_id),
    CONSTRAINT valid_program CHECK (program IN ('Connect', 'Haven', 'Link'))
);

CREATE INDEX IF NOT EXISTS idx_interest_edges_liker ON interest_edges(liker_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_interest_edges_likee ON interest_edges(likee_id);
CREATE INDEX IF NOT EXISTS idx_interest_edges_pair ON interest_edges(LEAST(liker_id, likee_id), GREATEST(liker_id, likee_id));
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: CREATE CONNECTIONS
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
CREATE TABLE IF NOT EXISTS connections (
    pair_key VARCHAR(257) COLLATE "C" PRIMARY KEY,
    participant_a VARCHAR(128) COLLATE "C" NOT NULL,
    participant_b VARCHAR(128) COLLATE "C" NOT NULL,
    report JSONB NOT NULL,
    programs TEXT[] NOT NULL DEFAULT '{}',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT canonical_pair CHECK (participant_a < participant_b),
    CONSTRAINT pair_key_matches CHECK (pair_key = participant_a || ':' || participant_b)
);

CREATE INDEX IF NOT EXISTS idx_connections_a ON connections(participant_a, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_connections_b ON connections(participant_b, created_at DESC);
`

// GetMigrations returns all embedded migrations.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_participants",
			UpSQL:   migration001Up,
		},
		{
			Version: 2,
			Name:    "create_interest_edges",
			UpSQL:   migration002Up,
		},
		{
			Version: 3,
			Name:    "create_connections",
			UpSQL:   migration003Up,
		},
	}
}
