package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/yourusername/smart-charge/internal/clock"
	"github.com/yourusername/smart-charge/internal/database"
	"github.com/yourusername/smart-charge/internal/models"
)

// PostgresUserActionRepository implements UserActionRepository for PostgreSQL
type PostgresUserActionRepository struct {
	db       *database.DB
	clock    clock.Clock
	validate *validator.Validate
}

// NewPostgresUserActionRepository creates a new user action repository
func NewPostgresUserActionRepository(db *database.DB, clk clock.Clock, v *validator.Validate) *PostgresUserActionRepository {
	return &PostgresUserActionRepository{db: db, clock: clk, validate: v}
}

// SaveUserAction inserts a logged charge
func (r *PostgresUserActionRepository) SaveUserAction(ctx context.Context, action *models.UserAction) error {
	now := r.clock.Now()
	if action.ID == uuid.Nil {
		action.ID = uuid.New()
	}
	if action.Timestamp.IsZero() {
		action.Timestamp = now
	}
	if err := r.validate.Struct(action); err != nil {
		return fmt.Errorf("%w: %w", models.ErrInvalidRecord, err)
	}
	date, err := clock.ParseDate(action.Date, time.UTC)
	if err != nil {
		return fmt.Errorf("%w: %w", models.ErrInvalidRecord, err)
	}
	action.LoggedAt = now

	query := `
		INSERT INTO user_actions (id, timestamp, date, action, kwh_charged, note, logged_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = r.db.GetPool().Exec(ctx, query,
		action.ID, action.Timestamp, date, action.Action, action.KWhCharged, action.Note, action.LoggedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save user action: %w", err)
	}
	return nil
}

// UserActions returns actions logged within the last days, oldest first
func (r *PostgresUserActionRepository) UserActions(ctx context.Context, days int) ([]models.UserAction, error) {
	query := `
		SELECT id, timestamp, date, action, kwh_charged, note, logged_at
		FROM user_actions WHERE logged_at >= $1 ORDER BY logged_at
	`
	rows, err := r.db.GetPool().Query(ctx, query, r.clock.Now().AddDate(0, 0, -days))
	if err != nil {
		return nil, fmt.Errorf("failed to query user actions: %w", err)
	}
	defer rows.Close()

	var out []models.UserAction
	for rows.Next() {
		var (
			a    models.UserAction
			date time.Time
		)
		if err := rows.Scan(&a.ID, &a.Timestamp, &date, &a.Action, &a.KWhCharged, &a.Note, &a.LoggedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user action: %w", err)
		}
		a.Date = date.Format(clock.DateLayout)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read user actions: %w", err)
	}
	return out, nil
}

// DeleteOlderThan removes actions logged more than days ago
func (r *PostgresUserActionRepository) DeleteOlderThan(ctx context.Context, days int) (int64, error) {
	tag, err := r.db.GetPool().Exec(ctx, `DELETE FROM user_actions WHERE logged_at < $1`, r.clock.Now().AddDate(0, 0, -days))
	if err != nil {
		return 0, fmt.Errorf("failed to prune user actions: %w", err)
	}
	return tag.RowsAffected(), nil
}
