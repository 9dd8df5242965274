// Package repository selects where recommendations and logged charges live:
// the JSON data store or PostgreSQL.
package repository

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/yourusername/smart-charge/internal/clock"
	"github.com/yourusername/smart-charge/internal/database"
	"github.com/yourusername/smart-charge/internal/store"
)

// Repositories holds all repository implementations
type Repositories struct {
	Recommendations RecommendationRepository
	UserActions     UserActionRepository
}

// NewJSONRepositories serves both collections from the file store.
func NewJSONRepositories(st *store.Store) *Repositories {
	return &Repositories{
		Recommendations: st,
		UserActions:     st,
	}
}

// NewRepositories creates the PostgreSQL implementations
func NewRepositories(db *database.DB, clk clock.Clock) (*Repositories, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if clk == nil {
		clk = clock.RealClock{}
	}
	v := validator.New()
	return &Repositories{
		Recommendations: NewPostgresRecommendationRepository(db, clk, v),
		UserActions:     NewPostgresUserActionRepository(db, clk, v),
	}, nil
}

// RetentionDays is the per-collection retention applied by Prune.
type RetentionDays struct {
	Recommendations int
	UserActions     int
}

// Prune deletes expired rows from backends that implement Pruner and
// returns the number removed. File-store retention is handled by store.Cleanup.
func (r *Repositories) Prune(ctx context.Context, days RetentionDays) (int64, error) {
	var total int64
	if p, ok := r.Recommendations.(Pruner); ok {
		n, err := p.DeleteOlderThan(ctx, days.Recommendations)
		if err != nil {
			return total, err
		}
		total += n
	}
	if p, ok := r.UserActions.(Pruner); ok {
		n, err := p.DeleteOlderThan(ctx, days.UserActions)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}
