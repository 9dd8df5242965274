package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/yourusername/smart-charge/internal/clock"
	"github.com/yourusername/smart-charge/internal/database"
	"github.com/yourusername/smart-charge/internal/models"
)

const recommendationColumns = `id, timestamp, date, day_type, price_source, window_start, window_end,
	avg_price, avg_carbon, total_cost, total_carbon, kwh, rating, reason, savings, score, saved_at`

// PostgresRecommendationRepository implements RecommendationRepository for PostgreSQL
type PostgresRecommendationRepository struct {
	db       *database.DB
	clock    clock.Clock
	validate *validator.Validate
}

// NewPostgresRecommendationRepository creates a new recommendation repository
func NewPostgresRecommendationRepository(db *database.DB, clk clock.Clock, v *validator.Validate) *PostgresRecommendationRepository {
	return &PostgresRecommendationRepository{db: db, clock: clk, validate: v}
}

// SaveRecommendation inserts a recommendation, assigning an ID when missing
func (r *PostgresRecommendationRepository) SaveRecommendation(ctx context.Context, rec *models.Recommendation) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if err := r.validate.Struct(rec); err != nil {
		return fmt.Errorf("%w: %w", models.ErrInvalidRecord, err)
	}
	date, err := clock.ParseDate(rec.Date, time.UTC)
	if err != nil {
		return fmt.Errorf("%w: %w", models.ErrInvalidRecord, err)
	}
	rec.SavedAt = r.clock.Now()

	query := `
		INSERT INTO recommendations (` + recommendationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	_, err = r.db.GetPool().Exec(ctx, query,
		rec.ID, rec.Timestamp, date, rec.DayType, rec.PriceSource, rec.WindowStart, rec.WindowEnd,
		rec.AvgPrice, rec.AvgCarbon, rec.TotalCost, rec.TotalCarbon, rec.KWh, rec.Rating, rec.Reason,
		rec.Savings, rec.Score, rec.SavedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save recommendation: %w", err)
	}
	return nil
}

// Recommendations returns recommendations saved within the last days, oldest first
func (r *PostgresRecommendationRepository) Recommendations(ctx context.Context, days int) ([]models.Recommendation, error) {
	query := `SELECT ` + recommendationColumns + ` FROM recommendations WHERE saved_at >= $1 ORDER BY saved_at`
	rows, err := r.db.GetPool().Query(ctx, query, r.clock.Now().AddDate(0, 0, -days))
	if err != nil {
		return nil, fmt.Errorf("failed to query recommendations: %w", err)
	}
	defer rows.Close()

	var out []models.Recommendation
	for rows.Next() {
		rec, err := scanRecommendation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read recommendations: %w", err)
	}
	return out, nil
}

// RecommendationByDate returns the most recently saved recommendation for date
func (r *PostgresRecommendationRepository) RecommendationByDate(ctx context.Context, date string) (*models.Recommendation, error) {
	d, err := clock.ParseDate(date, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrInvalidRecord, err)
	}
	query := `SELECT ` + recommendationColumns + ` FROM recommendations WHERE date = $1 ORDER BY saved_at DESC LIMIT 1`
	return r.one(ctx, query, d)
}

// LatestRecommendation returns the most recently saved recommendation
func (r *PostgresRecommendationRepository) LatestRecommendation(ctx context.Context) (*models.Recommendation, error) {
	query := `SELECT ` + recommendationColumns + ` FROM recommendations ORDER BY saved_at DESC LIMIT 1`
	return r.one(ctx, query)
}

// DeleteOlderThan removes recommendations saved more than days ago
func (r *PostgresRecommendationRepository) DeleteOlderThan(ctx context.Context, days int) (int64, error) {
	tag, err := r.db.GetPool().Exec(ctx, `DELETE FROM recommendations WHERE saved_at < $1`, r.clock.Now().AddDate(0, 0, -days))
	if err != nil {
		return 0, fmt.Errorf("failed to prune recommendations: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *PostgresRecommendationRepository) one(ctx context.Context, query string, args ...any) (*models.Recommendation, error) {
	rec, err := scanRecommendation(r.db.GetPool().QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	return rec, err
}

func scanRecommendation(row pgx.Row) (*models.Recommendation, error) {
	var (
		rec  models.Recommendation
		date time.Time
	)
	err := row.Scan(
		&rec.ID, &rec.Timestamp, &date, &rec.DayType, &rec.PriceSource, &rec.WindowStart, &rec.WindowEnd,
		&rec.AvgPrice, &rec.AvgCarbon, &rec.TotalCost, &rec.TotalCarbon, &rec.KWh, &rec.Rating, &rec.Reason,
		&rec.Savings, &rec.Score, &rec.SavedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan recommendation: %w", err)
	}
	rec.Date = date.Format(clock.DateLayout)
	return &rec, nil
}
