package postgres

// GetMigrations returns all embedded migrations in order.
func GetMigrations() []Migration {
	return []Migration{
		{Version: 1, Name: "create_user_progress", UpSQL: migration001Up, DownSQL: migration001Down},
		{Version: 2, Name: "create_history", UpSQL: migration002Up, DownSQL: migration002Down},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: USER PROGRESS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
CREATE TABLE IF NOT EXISTS user_progress (
    user_id VARCHAR(128) PRIMARY KEY,
    username VARCHAR(30) NOT NULL,
    display_name VARCHAR(50) NOT NULL,
    community_id VARCHAR(100) NOT NULL DEFAULT '',
    total_points INTEGER NOT NULL DEFAULT 0,
    weekly_points INTEGER NOT NULL DEFAULT 0,
    daily_points INTEGER NOT NULL DEFAULT 0,
    xp INTEGER NOT NULL DEFAULT 0,
    level INTEGER NOT NULL DEFAULT 1,
    streak_days INTEGER NOT NULL DEFAULT 0,
    last_active TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    badges TEXT[] NOT NULL DEFAULT '{}',
    achievements JSONB NOT NULL DEFAULT '{}'::jsonb,
    last_daily_challenge_date VARCHAR(10) NOT NULL DEFAULT '',
    version BIGINT NOT NULL DEFAULT 1,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_points CHECK (total_points >= 0 AND weekly_points >= 0 AND daily_points >= 0),
    CONSTRAINT valid_xp CHECK (xp >= 0),
    CONSTRAINT valid_level CHECK (level >= 1),
    CONSTRAINT valid_streak CHECK (streak_days >= 0)
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_user_progress_username ON user_progress (lower(username));

-- Leaderboard scans: points descending, user id ascending as tie-break.
CREATE INDEX IF NOT EXISTS idx_user_progress_total ON user_progress (total_points DESC, user_id COLLATE "C");
CREATE INDEX IF NOT EXISTS idx_user_progress_weekly ON user_progress (weekly_points DESC, user_id COLLATE "C");
CREATE INDEX IF NOT EXISTS idx_user_progress_daily ON user_progress (daily_points DESC, user_id COLLATE "C");
CREATE INDEX IF NOT EXISTS idx_user_progress_community ON user_progress (community_id, total_points DESC)
    WHERE community_id <> '';
`

const migration001Down = `
DROP TABLE IF EXISTS user_progress;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: SESSIONS & DAILY COMPLETIONS
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
CREATE TABLE IF NOT EXISTS game_sessions (
    seq BIGSERIAL PRIMARY KEY,
    id UUID NOT NULL UNIQUE,
    user_id VARCHAR(128) NOT NULL REFERENCES user_progress(user_id) ON DELETE CASCADE,
    game_type VARCHAR(30) NOT NULL,
    results JSONB NOT NULL DEFAULT '[]'::jsonb,
    correct_count INTEGER NOT NULL,
    total_questions INTEGER NOT NULL,
    accuracy NUMERIC(5,2) NOT NULL,
    points_earned INTEGER NOT NULL,
    xp_earned INTEGER NOT NULL,
    completed_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_game_type CHECK (game_type IN ('phishing_detective', 'password_strength', 'url_inspector')),
    CONSTRAINT valid_question_count CHECK (total_questions > 0 AND correct_count BETWEEN 0 AND total_questions)
);

CREATE INDEX IF NOT EXISTS idx_game_sessions_user ON game_sessions (user_id, seq DESC);

CREATE TABLE IF NOT EXISTS daily_completions (
    id UUID PRIMARY KEY,
    user_id VARCHAR(128) NOT NULL REFERENCES user_progress(user_id) ON DELETE CASCADE,
    date VARCHAR(10) NOT NULL,
    challenge_id VARCHAR(100) NOT NULL,
    answer TEXT NOT NULL,
    correct BOOLEAN NOT NULL,
    points_earned INTEGER NOT NULL,
    xp_earned INTEGER NOT NULL,
    time_taken INTEGER NOT NULL DEFAULT 0,
    completed_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT daily_completions_user_date UNIQUE (user_id, date)
);
`

const migration002Down = `
DROP TABLE IF EXISTS daily_completions;
DROP TABLE IF EXISTS game_sessions;
`
