package profile

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/openidx/hijackguard/internal/common/database"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS user_profiles (
	user_id            TEXT PRIMARY KEY,
	typical_ip_prefix  TEXT NOT NULL,
	home_lat           DOUBLE PRECISION NOT NULL,
	home_lon           DOUBLE PRECISION NOT NULL,
	known_devices      TEXT[] NOT NULL DEFAULT '{}',
	known_browsers     TEXT[] NOT NULL DEFAULT '{}',
	typical_login_hour DOUBLE PRECISION NOT NULL
		CHECK (typical_login_hour >= 0 AND typical_login_hour < 24),
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS profile_security_questions (
	user_id     TEXT NOT NULL REFERENCES user_profiles(user_id) ON DELETE CASCADE,
	position    INT  NOT NULL,
	question    TEXT NOT NULL,
	answer_hash TEXT NOT NULL,
	PRIMARY KEY (user_id, position),
	UNIQUE (user_id, question)
);
`

// PostgresRepository stores profiles in PostgreSQL
type PostgresRepository struct {
	db     *database.PostgresDB
	logger *zap.Logger
}

// NewPostgresRepository creates a PostgresRepository
func NewPostgresRepository(db *database.PostgresDB, logger *zap.Logger) *PostgresRepository {
	return &PostgresRepository{
		db:     db,
		logger: logger.With(zap.String("component", "profile_postgres")),
	}
}

// EnsureSchema creates the profile tables if they do not exist
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create profile schema: %w", err)
	}
	return nil
}

// Get loads a profile and its security questions in stored order
func (r *PostgresRepository) Get(ctx context.Context, userID string) (*UserProfile, error) {
	p := &UserProfile{UserID: userID}

	err := r.db.Pool.QueryRow(ctx,
		`SELECT typical_ip_prefix, home_lat, home_lon, known_devices, known_browsers, typical_login_hour
		 FROM user_profiles WHERE user_id = $1`, userID).
		Scan(&p.TypicalIPPrefix, &p.HomeLatitude, &p.HomeLongitude,
			&p.KnownDevices, &p.KnownBrowsers, &p.TypicalLoginHour)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, userID)
		}
		return nil, fmt.Errorf("failed to load profile %s: %w", userID, err)
	}

	rows, err := r.db.Pool.Query(ctx,
		`SELECT question, answer_hash FROM profile_security_questions
		 WHERE user_id = $1 ORDER BY position`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load security questions for %s: %w", userID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var q SecurityQuestion
		if err := rows.Scan(&q.Question, &q.AnswerHash); err != nil {
			return nil, fmt.Errorf("failed to scan security question: %w", err)
		}
		p.SecurityQuestions = append(p.SecurityQuestions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate security questions: %w", err)
	}

	return p, nil
}

// Put upserts a profile and replaces its security questions atomically.
// Only answer hashes are written.
func (r *PostgresRepository) Put(ctx context.Context, p *UserProfile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	p = p.Clone()
	if err := SealAnswers(p); err != nil {
		return err
	}

	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	devices := p.KnownDevices
	if devices == nil {
		devices = []string{}
	}
	browsers := p.KnownBrowsers
	if browsers == nil {
		browsers = []string{}
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO user_profiles
		   (user_id, typical_ip_prefix, home_lat, home_lon, known_devices, known_browsers, typical_login_hour)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (user_id) DO UPDATE SET
		   typical_ip_prefix = EXCLUDED.typical_ip_prefix,
		   home_lat = EXCLUDED.home_lat,
		   home_lon = EXCLUDED.home_lon,
		   known_devices = EXCLUDED.known_devices,
		   known_browsers = EXCLUDED.known_browsers,
		   typical_login_hour = EXCLUDED.typical_login_hour,
		   updated_at = NOW()`,
		p.UserID, p.TypicalIPPrefix, p.HomeLatitude, p.HomeLongitude, devices, browsers, p.TypicalLoginHour)
	if err != nil {
		return fmt.Errorf("failed to upsert profile %s: %w", p.UserID, err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM profile_security_questions WHERE user_id = $1`, p.UserID); err != nil {
		return fmt.Errorf("failed to clear security questions for %s: %w", p.UserID, err)
	}

	batch := &pgx.Batch{}
	for i, q := range p.SecurityQuestions {
		batch.Queue(
			`INSERT INTO profile_security_questions (user_id, position, question, answer_hash)
			 VALUES ($1, $2, $3, $4)`,
			p.UserID, i, q.Question, q.AnswerHash)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to insert security questions for %s: %w", p.UserID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit profile %s: %w", p.UserID, err)
	}

	r.logger.Debug("Profile stored",
		zap.String("user_id", p.UserID),
		zap.Int("questions", len(p.SecurityQuestions)),
	)
	return nil
}
