package config

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
)

// validRegions are the fourteen GB distribution network operator letters.
const validRegions = "ABCDEFGHJKLMNP"

// CustomValidator wraps the validator with custom validation rules
type CustomValidator struct {
	validator *validator.Validate
}

// NewValidator creates a new validator with custom validation functions
func NewValidator() *CustomValidator {
	v := validator.New()

	_ = v.RegisterValidation("environment", validateEnvironment)
	_ = v.RegisterValidation("loglevel", validateLogLevel)
	_ = v.RegisterValidation("region", validateRegion)

	return &CustomValidator{validator: v}
}

// Validate validates the entire configuration
func Validate(cfg *Config) error {
	return NewValidator().Validate(cfg)
}

// Validate validates the configuration using registered validation rules
func (cv *CustomValidator) Validate(cfg *Config) error {
	if err := cv.validator.Struct(cfg); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			return formatValidationErrors(validationErrors)
		}
		return fmt.Errorf("validation failed: %w", err)
	}
	return validateCrossField(cfg)
}

func validateEnvironment(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "development", "staging", "production":
		return true
	default:
		return false
	}
}

func validateLogLevel(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}

func validateRegion(fl validator.FieldLevel) bool {
	r := fl.Field().String()
	return len(r) == 1 && strings.Contains(validRegions, strings.ToUpper(r))
}

// validateCrossField performs cross-field validations
func validateCrossField(cfg *Config) error {
	if math.Abs(cfg.Scoring.PriceWeight+cfg.Scoring.CarbonWeight-1) > 0.01 {
		return fmt.Errorf("scoring weights must sum to 1.0, got %.2f", cfg.Scoring.PriceWeight+cfg.Scoring.CarbonWeight)
	}
	if !cfg.Scoring.PriceThresholds.ascending() {
		return fmt.Errorf("price thresholds must be ascending (excellent <= good <= average)")
	}
	if !cfg.Scoring.CarbonThresholds.ascending() {
		return fmt.Errorf("carbon thresholds must be ascending (excellent <= good <= average)")
	}

	if cfg.UsesPostgres() {
		if cfg.Database.Host == "" || cfg.Database.Name == "" || cfg.Database.User == "" {
			return fmt.Errorf("postgres storage requires database host, name and user")
		}
		if cfg.Database.MaxIdleConnections > cfg.Database.MaxConnections {
			return fmt.Errorf("max_idle_connections cannot exceed max_connections")
		}
	}

	if cfg.Notifications.Pushover.Enabled && (cfg.Notifications.Pushover.UserKey == "" || cfg.Notifications.Pushover.APIToken == "") {
		return fmt.Errorf("pushover notifications enabled but user_key or api_token is missing")
	}

	if cfg.Secrets.Enabled && (cfg.Secrets.AWSRegion == "" || cfg.Secrets.SecretName == "") {
		return fmt.Errorf("secrets overlay requires aws_region and secret_name")
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	for name, expr := range cfg.Schedule.entries() {
		if _, err := parser.Parse(expr); err != nil {
			return fmt.Errorf("invalid %s schedule %q: %w", name, expr, err)
		}
	}

	return nil
}

func (t ThresholdConfig) ascending() bool {
	return t.Excellent <= t.Good && t.Good <= t.Average
}

func (s ScheduleConfig) entries() map[string]string {
	return map[string]string{
		"daily":      s.Daily,
		"plan":       s.Plan,
		"comparison": s.Comparison,
		"reminder":   s.Reminder,
		"cleanup":    s.Cleanup,
		"tune":       s.Tune,
		"weekly":     s.Weekly,
		"monthly":    s.Monthly,
	}
}

// formatValidationErrors formats validation errors into a readable string
func formatValidationErrors(validationErrors validator.ValidationErrors) error {
	var errMsg string
	for _, fieldError := range validationErrors {
		field := fieldError.StructField()
		tag := fieldError.Tag()
		value := fieldError.Value()

		switch tag {
		case "required":
			errMsg += fmt.Sprintf("- Field '%s' is required\n", field)
		case "url":
			errMsg += fmt.Sprintf("- Field '%s' must be a valid URL, got '%v'\n", field, value)
		case "min", "max":
			errMsg += fmt.Sprintf("- Field '%s' validation failed: %s constraint violated\n", field, tag)
		case "gt", "gte", "lt", "lte":
			errMsg += fmt.Sprintf("- Field '%s' validation failed: numeric constraint %s violated\n", field, tag)
		case "environment":
			errMsg += fmt.Sprintf("- Field '%s' must be one of: development, staging, production\n", field)
		case "loglevel":
			errMsg += fmt.Sprintf("- Field '%s' must be one of: debug, info, warn, error\n", field)
		case "region":
			errMsg += fmt.Sprintf("- Field '%s' must be a single region letter from %s, got '%v'\n", field, validRegions, value)
		case "oneof":
			errMsg += fmt.Sprintf("- Field '%s' has invalid value '%v'\n", field, value)
		default:
			errMsg += fmt.Sprintf("- Field '%s' failed validation: %s\n", field, tag)
		}
	}
	return fmt.Errorf("configuration validation failed:\n%s", errMsg)
}

// ValidateEnvironment validates environment-specific requirements
func ValidateEnvironment(cfg *Config) error {
	if cfg.IsProduction() {
		if cfg.UsesPostgres() && cfg.Database.SSLMode == "disable" {
			return fmt.Errorf("production environment requires database SSL mode to be 'require' or 'verify-full'")
		}
		if cfg.Notifications.Pushover.Enabled && isTestCredential(cfg.Notifications.Pushover.UserKey) {
			return fmt.Errorf("production environment should not use test Pushover credentials")
		}
	}
	return nil
}

// isTestCredential checks if a credential looks like a test credential
func isTestCredential(credential string) bool {
	testPatterns := []string{
		"test", "demo", "example", "placeholder", "YOUR_",
	}

	for _, pattern := range testPatterns {
		if match, _ := regexp.MatchString("(?i)"+pattern, credential); match {
			return true
		}
	}

	return false
}
