package repository

import (
	"context"

	"github.com/yourusername/smart-charge/internal/models"
)

// RecommendationRepository defines the interface for recommendation data access
type RecommendationRepository interface {
	SaveRecommendation(ctx context.Context, rec *models.Recommendation) error
	Recommendations(ctx context.Context, days int) ([]models.Recommendation, error)
	RecommendationByDate(ctx context.Context, date string) (*models.Recommendation, error)
	LatestRecommendation(ctx context.Context) (*models.Recommendation, error)
}

// UserActionRepository defines the interface for logged charge access
type UserActionRepository interface {
	SaveUserAction(ctx context.Context, action *models.UserAction) error
	UserActions(ctx context.Context, days int) ([]models.UserAction, error)
}

// Pruner is implemented by backends that enforce retention themselves.
type Pruner interface {
	DeleteOlderThan(ctx context.Context, days int) (int64, error)
}
