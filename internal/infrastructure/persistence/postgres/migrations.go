package postgres

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE CYCLES
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Migration: Create cycles and rollup history
-- Version: 001

CREATE TABLE IF NOT EXISTS cycles (
    id UUID PRIMARY KEY,
    user_id VARCHAR(64) NOT NULL,
    name VARCHAR(200) NOT NULL,
    status VARCHAR(20) NOT NULL DEFAULT 'planned',
    duration VARCHAR(20) NOT NULL DEFAULT 'custom',
    start_date TIMESTAMP WITH TIME ZONE NOT NULL,
    end_date TIMESTAMP WITH TIME ZONE NOT NULL,
    goal_ids JSONB NOT NULL DEFAULT '[]'::jsonb,
    xp_earned INTEGER NOT NULL DEFAULT 0,
    xp_target INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_status CHECK (status IN ('planned', 'active', 'paused', 'completed', 'cancelled')),
    CONSTRAINT valid_duration CHECK (duration IN ('1month', '3months', '6months')),
    CONSTRAINT valid_interval CHECK (end_date > start_date),
    CONSTRAINT valid_xp CHECK (xp_earned >= 0 AND xp_target >= 0)
);

CREATE INDEX IF NOT EXISTS idx_cycles_user_id ON cycles(user_id);
CREATE INDEX IF NOT EXISTS idx_cycles_user_start ON cycles(user_id, start_date DESC);
CREATE INDEX IF NOT EXISTS idx_cycles_status ON cycles(status) WHERE status NOT IN ('completed', 'cancelled');

-- Rollup observations, one row per recomputation, for trend views
CREATE TABLE IF NOT EXISTS cycle_rollups (
    id BIGSERIAL PRIMARY KEY,
    cycle_id UUID NOT NULL REFERENCES cycles(id) ON DELETE CASCADE,
    progress_pct INTEGER NOT NULL,
    days_remaining INTEGER NOT NULL,
    completed_count INTEGER NOT NULL,
    total_count INTEGER NOT NULL,
    xp_earned INTEGER NOT NULL DEFAULT 0,
    xp_target INTEGER NOT NULL DEFAULT 0,
    observed_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_progress CHECK (progress_pct >= 0 AND progress_pct <= 100),
    CONSTRAINT valid_days CHECK (days_remaining >= 0),
    CONSTRAINT valid_counts CHECK (completed_count >= 0 AND completed_count <= total_count)
);

CREATE INDEX IF NOT EXISTS idx_cycle_rollups_cycle_observed ON cycle_rollups(cycle_id, observed_at DESC);
`

const migration001Down = `
DROP TABLE IF EXISTS cycle_rollups;
DROP TABLE IF EXISTS cycles;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: CREATE XP LEDGER
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- Migration: Create append-only XP ledger
-- Version: 002

CREATE TABLE IF NOT EXISTS xp_ledger (
    id BIGSERIAL PRIMARY KEY,
    user_id VARCHAR(64) NOT NULL,
    source_id VARCHAR(128) NOT NULL,
    source_kind VARCHAR(40) NOT NULL,
    amount INTEGER NOT NULL,
    awarded_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    -- One award per source per user; replays are no-ops
    CONSTRAINT uniq_user_source UNIQUE (user_id, source_id),
    CONSTRAINT valid_amount CHECK (amount >= 0)
);

CREATE INDEX IF NOT EXISTS idx_xp_ledger_user_awarded ON xp_ledger(user_id, awarded_at);
CREATE INDEX IF NOT EXISTS idx_xp_ledger_source_kind ON xp_ledger(source_kind);
`

const migration002Down = `
DROP TABLE IF EXISTS xp_ledger;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: CREATE COMPETENCIES
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
-- Migration: Create competency progress and evidence
-- Version: 003

CREATE TABLE IF NOT EXISTS competency_progress (
    competency_id VARCHAR(64) NOT NULL,
    user_id VARCHAR(64) NOT NULL,
    current_level INTEGER NOT NULL,
    target_level INTEGER NOT NULL,
    progress_pct INTEGER NOT NULL DEFAULT 0,
    active_in_cycle BOOLEAN NOT NULL DEFAULT TRUE,
    start_date TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    PRIMARY KEY (competency_id, user_id),

    CONSTRAINT valid_levels CHECK (
        current_level BETWEEN 1 AND 5
        AND target_level BETWEEN 1 AND 5
        AND target_level >= current_level
    ),
    CONSTRAINT valid_pct CHECK (progress_pct >= 0 AND progress_pct <= 100)
);

CREATE INDEX IF NOT EXISTS idx_competency_progress_user ON competency_progress(user_id);

-- Evidence is append-only; rows are never edited after submission
CREATE TABLE IF NOT EXISTS competency_evidence (
    id UUID PRIMARY KEY,
    competency_id VARCHAR(64) NOT NULL,
    user_id VARCHAR(64) NOT NULL,
    type VARCHAR(20) NOT NULL,
    title VARCHAR(300) NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    date TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    verified_by VARCHAR(64) NOT NULL DEFAULT '',
    xp_awarded INTEGER NOT NULL DEFAULT 0,

    CONSTRAINT valid_type CHECK (type IN ('project', 'course', 'certification', 'feedback', '1on1', 'milestone')),
    CONSTRAINT valid_evidence_xp CHECK (xp_awarded >= 0)
);

CREATE INDEX IF NOT EXISTS idx_competency_evidence_progression ON competency_evidence(competency_id, user_id, date);
`

const migration003Down = `
DROP TABLE IF EXISTS competency_evidence;
DROP TABLE IF EXISTS competency_progress;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 004: CREATE ACTIVITIES
// ══════════════════════════════════════════════════════════════════════════════

const migration004Up = `
-- Migration: Create logged activities
-- Version: 004

CREATE TABLE IF NOT EXISTS activities (
    id UUID PRIMARY KEY,
    cycle_id UUID NOT NULL,
    type VARCHAR(20) NOT NULL,
    title VARCHAR(300) NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    details JSONB NOT NULL DEFAULT '{}'::jsonb,
    xp_awarded INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_activity_type CHECK (type IN ('one_on_one', 'mentoring', 'certification', 'generic')),
    CONSTRAINT valid_activity_xp CHECK (xp_awarded >= 0)
);

CREATE INDEX IF NOT EXISTS idx_activities_cycle_created ON activities(cycle_id, created_at);
CREATE INDEX IF NOT EXISTS idx_activities_type ON activities(type);
`

const migration004Down = `
DROP TABLE IF EXISTS activities;
`
