package datasource

import (
	"context"
	"errors"
	"time"

	"github.com/yourusername/smart-charge/internal/models"
)

// PriceSource fetches half-hourly unit rates for a tariff region.
type PriceSource interface {
	// FetchPrices returns slots with from <= time < to, sorted by time.
	FetchPrices(ctx context.Context, region string, from, to time.Time) ([]models.PriceSlot, error)

	// Name returns the name of the data source
	Name() string
}

// CarbonSource fetches grid carbon intensity forecasts.
type CarbonSource interface {
	FetchCarbon(ctx context.Context, from, to time.Time) ([]models.CarbonSlot, error)
	Name() string
}

// DataSourceError represents errors from data source operations
type DataSourceError struct {
	Source  string // Data source name
	Code    string // Error code (e.g., "rate_limit_exceeded")
	Message string // Error message
	Err     error  // Underlying error
}

func (e DataSourceError) Error() string {
	if e.Err != nil {
		return e.Source + ": " + e.Code + ": " + e.Message + " (" + e.Err.Error() + ")"
	}
	return e.Source + ": " + e.Code + ": " + e.Message
}

func (e DataSourceError) Unwrap() error {
	return e.Err
}

// Common error codes
const (
	ErrCodeRateLimitExceeded    = "rate_limit_exceeded"
	ErrCodeAuthenticationFailed = "authentication_failed"
	ErrCodeNotFound             = "not_found"
	ErrCodeInvalidData          = "invalid_data"
	ErrCodeNetworkError         = "network_error"
	ErrCodeServerError          = "server_error"
	ErrCodeInsufficientData     = "insufficient_data"
	ErrCodeUnknown              = "unknown"
)

var (
	ErrRateLimitExceeded    = errors.New("rate limit exceeded")
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrNotFound             = errors.New("data not found")
	ErrInvalidData          = errors.New("invalid data format")
	ErrNetworkError         = errors.New("network error")
	ErrServerError          = errors.New("server error")
	ErrInsufficientData     = errors.New("insufficient coverage")
	ErrAllSourcesFailed     = errors.New("all price sources failed")
)

// NewDataSourceError creates a new data source error
func NewDataSourceError(source, code, message string, err error) DataSourceError {
	return DataSourceError{
		Source:  source,
		Code:    code,
		Message: message,
		Err:     err,
	}
}
