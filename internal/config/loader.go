package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	// EnvPrefix is prepended to every environment override, e.g. SMART_CHARGE_USER_REGION.
	EnvPrefix = "SMART_CHARGE"
	// DefaultConfigPath is used when no path is given.
	DefaultConfigPath = "config/config.yaml"
)

// Load reads the configuration file, expanding ${VAR} placeholders, applies
// SMART_CHARGE_* overrides and fills unset keys from defaults. A .env file in
// the working directory is loaded first; it never overrides variables already set.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = DefaultConfigPath
	}
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found at %s: %w", configPath, err)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	v := newViper()
	if err := v.ReadConfig(bytes.NewBufferString(os.ExpandEnv(string(data)))); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return unmarshal(v)
}

// LoadWithDefaults is Load, except a missing file yields defaults plus environment.
func LoadWithDefaults(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = DefaultConfigPath
	}
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := newViper()
	if data, err := os.ReadFile(configPath); err == nil {
		if err := v.ReadConfig(bytes.NewBufferString(os.ExpandEnv(string(data)))); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return unmarshal(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "smart-charge")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("user.region", "")
	v.SetDefault("user.postcode", "")
	v.SetDefault("user.carbon_region_id", 0)
	v.SetDefault("user.typical_charge_kwh", 30.0)
	v.SetDefault("user.charging_rate_kw", 7.4)
	v.SetDefault("user.baseline_hour", 18)
	v.SetDefault("user.reminder_lead_minutes", 360)
	v.SetDefault("user.plan_days", 7)

	v.SetDefault("scoring.price_weight", 0.6)
	v.SetDefault("scoring.carbon_weight", 0.4)
	v.SetDefault("scoring.price_thresholds.excellent", 10.0)
	v.SetDefault("scoring.price_thresholds.good", 15.0)
	v.SetDefault("scoring.price_thresholds.average", 20.0)
	v.SetDefault("scoring.carbon_thresholds.excellent", 100.0)
	v.SetDefault("scoring.carbon_thresholds.good", 150.0)
	v.SetDefault("scoring.carbon_thresholds.average", 200.0)

	v.SetDefault("storage.backend", "json")
	v.SetDefault("storage.data_dir", "data")
	v.SetDefault("storage.forecast_retention_days", 7)
	v.SetDefault("storage.recommendation_retention_days", 30)
	v.SetDefault("storage.user_action_retention_days", 90)
	v.SetDefault("storage.plan_retention_days", 30)

	v.SetDefault("database.host", "")
	v.SetDefault("database.name", "")
	v.SetDefault("database.user", "")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_connections", 5)
	v.SetDefault("database.max_idle_connections", 1)

	v.SetDefault("apis.octopus_base_url", "https://api.octopus.energy/v1/products")
	v.SetDefault("apis.octopus_product", "AGILE-24-10-01")
	v.SetDefault("apis.carbon_base_url", "https://api.carbonintensity.org.uk")
	v.SetDefault("apis.forecast_url", "https://energy.guylipman.com/forecasts")
	v.SetDefault("apis.timeout_seconds", 10)
	v.SetDefault("apis.max_retries", 3)
	v.SetDefault("apis.rate_limit", 5)
	v.SetDefault("apis.cache_ttl_seconds", 900)

	v.SetDefault("notifications.pushover.enabled", false)
	v.SetDefault("notifications.pushover.max_daily", 5)
	// the bare names match the variables documented for the Pushover app
	_ = v.BindEnv("notifications.pushover.user_key", EnvPrefix+"_NOTIFICATIONS_PUSHOVER_USER_KEY", "PUSHOVER_USER")
	_ = v.BindEnv("notifications.pushover.api_token", EnvPrefix+"_NOTIFICATIONS_PUSHOVER_API_TOKEN", "PUSHOVER_API_TOKEN")
	_ = v.BindEnv("database.password", EnvPrefix+"_DATABASE_PASSWORD")

	v.SetDefault("forecast.significant_change", 10.0)
	v.SetDefault("forecast.evolution_retention_days", 30)
	v.SetDefault("forecast.accuracy_days", 30)

	v.SetDefault("tuning.enabled", false)
	v.SetDefault("tuning.window_days", 30)

	v.SetDefault("schedule.daily", "0 16 * * *")
	v.SetDefault("schedule.plan", "30 16 * * *")
	v.SetDefault("schedule.comparison", "55 23 * * *")
	v.SetDefault("schedule.reminder", "0 21 * * *")
	v.SetDefault("schedule.cleanup", "0 3 * * 0")
	v.SetDefault("schedule.tune", "0 4 * * 1")
	v.SetDefault("schedule.weekly", "0 18 * * 0")
	v.SetDefault("schedule.monthly", "0 8 1 * *")

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.port", 9090)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.textfile", "")

	v.SetDefault("secrets.enabled", false)
	v.SetDefault("secrets.aws_region", "eu-west-2")
	v.SetDefault("secrets.secret_name", "")
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	return cfg, nil
}
