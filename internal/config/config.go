// Package config provides configuration management for the smart-charge application.
package config

import (
	"fmt"
	"time"
)

// Config represents the complete application configuration
type Config struct {
	App           AppConfig           `mapstructure:"app" validate:"required"`
	User          UserConfig          `mapstructure:"user" validate:"required"`
	Scoring       ScoringConfig       `mapstructure:"scoring" validate:"required"`
	Storage       StorageConfig       `mapstructure:"storage" validate:"required"`
	Database      DatabaseConfig      `mapstructure:"database"`
	APIs          APIsConfig          `mapstructure:"apis" validate:"required"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
	Forecast      ForecastConfig      `mapstructure:"forecast" validate:"required"`
	Tuning        TuningConfig        `mapstructure:"tuning"`
	Schedule      ScheduleConfig      `mapstructure:"schedule" validate:"required"`
	Metrics       MetricsConfig       `mapstructure:"metrics"`
	Secrets       SecretsConfig       `mapstructure:"secrets"`
}

// AppConfig represents application-level configuration
type AppConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	Environment string `mapstructure:"environment" validate:"required,environment"`
	LogLevel    string `mapstructure:"log_level" validate:"required,loglevel"`
}

// UserConfig describes the household being planned for
type UserConfig struct {
	Region           string  `mapstructure:"region" validate:"required,region"`
	Postcode         string  `mapstructure:"postcode"`
	CarbonRegionID   int     `mapstructure:"carbon_region_id" validate:"gte=0,lte=17"`
	TypicalChargeKWh float64 `mapstructure:"typical_charge_kwh" validate:"required,gt=0"`
	ChargingRateKW   float64 `mapstructure:"charging_rate_kw" validate:"required,gt=0"`
	BaselineHour     int     `mapstructure:"baseline_hour" validate:"gte=0,lte=23"`
	ReminderLeadMins int     `mapstructure:"reminder_lead_minutes" validate:"gte=0"`
	PlanDays         int     `mapstructure:"plan_days" validate:"gte=1,lte=7"`
}

// ScoringConfig holds opportunity scorer weights and thresholds
type ScoringConfig struct {
	PriceWeight      float64         `mapstructure:"price_weight" validate:"gte=0,lte=1"`
	CarbonWeight     float64         `mapstructure:"carbon_weight" validate:"gte=0,lte=1"`
	PriceThresholds  ThresholdConfig `mapstructure:"price_thresholds"`
	CarbonThresholds ThresholdConfig `mapstructure:"carbon_thresholds"`
}

// ThresholdConfig is an ascending excellent/good/average cutoff triple
type ThresholdConfig struct {
	Excellent float64 `mapstructure:"excellent"`
	Good      float64 `mapstructure:"good"`
	Average   float64 `mapstructure:"average"`
}

// StorageConfig selects the persistence backend and retention
type StorageConfig struct {
	Backend            string `mapstructure:"backend" validate:"required,oneof=json postgres"`
	DataDir            string `mapstructure:"data_dir" validate:"required"`
	ForecastDays       int    `mapstructure:"forecast_retention_days" validate:"gt=0"`
	RecommendationDays int    `mapstructure:"recommendation_retention_days" validate:"gt=0"`
	UserActionDays     int    `mapstructure:"user_action_retention_days" validate:"gt=0"`
	PlanDays           int    `mapstructure:"plan_retention_days" validate:"gt=0"`
}

// DatabaseConfig represents database connection configuration
type DatabaseConfig struct {
	Host               string `mapstructure:"host"`
	Port               int    `mapstructure:"port" validate:"omitempty,min=1,max=65535"`
	Name               string `mapstructure:"name"`
	User               string `mapstructure:"user"`
	Password           string `mapstructure:"password"`
	SSLMode            string `mapstructure:"ssl_mode" validate:"omitempty,oneof=disable require verify-full"`
	MaxConnections     int    `mapstructure:"max_connections" validate:"gte=0"`
	MaxIdleConnections int    `mapstructure:"max_idle_connections" validate:"gte=0"`
}

// APIsConfig holds upstream endpoints and HTTP behaviour
type APIsConfig struct {
	OctopusBaseURL  string `mapstructure:"octopus_base_url" validate:"required,url"`
	OctopusProduct  string `mapstructure:"octopus_product" validate:"required"`
	CarbonBaseURL   string `mapstructure:"carbon_base_url" validate:"required,url"`
	ForecastURL     string `mapstructure:"forecast_url" validate:"required,url"`
	TimeoutSeconds  int    `mapstructure:"timeout_seconds" validate:"required,gt=0,lte=60"`
	MaxRetries      int    `mapstructure:"max_retries" validate:"gte=0,lte=5"`
	RateLimit       int    `mapstructure:"rate_limit" validate:"gt=0"`
	CacheTTLSeconds int    `mapstructure:"cache_ttl_seconds" validate:"gte=0"`
}

// NotificationsConfig groups notification channels
type NotificationsConfig struct {
	Pushover PushoverConfig `mapstructure:"pushover"`
}

// PushoverConfig represents Pushover delivery settings
type PushoverConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	UserKey  string `mapstructure:"user_key"`
	APIToken string `mapstructure:"api_token"`
	MaxDaily int    `mapstructure:"max_daily" validate:"gte=0"`
}

// ForecastConfig controls accuracy and evolution tracking
type ForecastConfig struct {
	SignificantChange float64 `mapstructure:"significant_change" validate:"gt=0"`
	RetentionDays     int     `mapstructure:"evolution_retention_days" validate:"gt=0"`
	AccuracyDays      int     `mapstructure:"accuracy_days" validate:"gt=0"`
}

// TuningConfig controls threshold auto-tuning
type TuningConfig struct {
	Enabled    bool `mapstructure:"enabled"`
	WindowDays int  `mapstructure:"window_days" validate:"omitempty,gt=0"`
}

// ScheduleConfig holds cron expressions for serve mode
type ScheduleConfig struct {
	Daily      string `mapstructure:"daily" validate:"required"`
	Plan       string `mapstructure:"plan" validate:"required"`
	Comparison string `mapstructure:"comparison" validate:"required"`
	Reminder   string `mapstructure:"reminder" validate:"required"`
	Cleanup    string `mapstructure:"cleanup" validate:"required"`
	Tune       string `mapstructure:"tune" validate:"required"`
	Weekly     string `mapstructure:"weekly" validate:"required"`
	Monthly    string `mapstructure:"monthly" validate:"required"`
}

// MetricsConfig represents metrics and monitoring configuration
type MetricsConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Port     int    `mapstructure:"port" validate:"omitempty,min=1,max=65535"`
	Path     string `mapstructure:"path"`
	Textfile string `mapstructure:"textfile"`
}

// SecretsConfig points at an optional AWS Secrets Manager overlay
type SecretsConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	AWSRegion  string `mapstructure:"aws_region"`
	SecretName string `mapstructure:"secret_name"`
}

// IsDevelopment checks if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsProduction checks if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// UsesPostgres reports whether recommendations and user actions live in PostgreSQL
func (c *Config) UsesPostgres() bool {
	return c.Storage.Backend == "postgres"
}

// ChargeHours is the time needed to deliver the typical charge
func (c *Config) ChargeHours() float64 {
	return c.User.TypicalChargeKWh / c.User.ChargingRateKW
}

// APITimeout returns the configured HTTP timeout
func (c *Config) APITimeout() time.Duration {
	return time.Duration(c.APIs.TimeoutSeconds) * time.Second
}

// CacheTTL returns the price cache lifetime
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.APIs.CacheTTLSeconds) * time.Second
}

// ReminderLead returns how long before a window starts a reminder is due
func (c *Config) ReminderLead() time.Duration {
	return time.Duration(c.User.ReminderLeadMins) * time.Minute
}

// GetDatabaseDSN returns a PostgreSQL DSN string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}
