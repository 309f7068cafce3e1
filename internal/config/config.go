// Package config loads runtime settings from the environment and an optional
// .env file.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	DatabaseURL       string        `mapstructure:"DATABASE_URL"`
	ServerAddr        string        `mapstructure:"SERVER_ADDR"`
	DBMaxOpenConns    int           `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBMaxIdleConns    int           `mapstructure:"DB_MAX_IDLE_CONNS"`
	DBConnMaxLifetime time.Duration `mapstructure:"DB_CONN_MAX_LIFETIME"`

	FineFixedFee     float64 `mapstructure:"FINE_FIXED_FEE"`
	FineDailyPercent float64 `mapstructure:"FINE_DAILY_PERCENT"`

	AuthDisabled  bool          `mapstructure:"AUTH_DISABLED"`
	JWTSecret     string        `mapstructure:"JWT_SECRET"`
	JWTTTL        time.Duration `mapstructure:"JWT_TTL"`
	AdminUsername string        `mapstructure:"ADMIN_USERNAME"`
	AdminEmail    string        `mapstructure:"ADMIN_EMAIL"`
	AdminPassword string        `mapstructure:"ADMIN_PASSWORD"`

	CORSOrigin     string `mapstructure:"CORS_ORIGIN"`
	RabbitMQURL    string `mapstructure:"RABBITMQ_URL"`
	EventsExchange string `mapstructure:"EVENTS_EXCHANGE"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`
}

var keys = []string{
	"DATABASE_URL", "SERVER_ADDR", "DB_MAX_OPEN_CONNS", "DB_MAX_IDLE_CONNS", "DB_CONN_MAX_LIFETIME",
	"FINE_FIXED_FEE", "FINE_DAILY_PERCENT",
	"AUTH_DISABLED", "JWT_SECRET", "JWT_TTL", "ADMIN_USERNAME", "ADMIN_EMAIL", "ADMIN_PASSWORD",
	"CORS_ORIGIN", "RABBITMQ_URL", "EVENTS_EXCHANGE",
	"LOG_LEVEL", "LOG_FORMAT",
}

// LoadConfig reads configuration from environment variables. A .env file in
// the working directory is loaded first when present; real environment
// variables take precedence over it.
func LoadConfig() (config Config, err error) {
	_ = godotenv.Load()

	viper.SetDefault("SERVER_ADDR", ":8080")
	viper.SetDefault("DB_MAX_OPEN_CONNS", 20)
	viper.SetDefault("DB_MAX_IDLE_CONNS", 10)
	viper.SetDefault("DB_CONN_MAX_LIFETIME", time.Hour)
	viper.SetDefault("FINE_FIXED_FEE", 10.0)
	viper.SetDefault("FINE_DAILY_PERCENT", 0.05)
	viper.SetDefault("AUTH_DISABLED", false)
	viper.SetDefault("JWT_TTL", 24*time.Hour)
	viper.SetDefault("ADMIN_USERNAME", "admin")
	viper.SetDefault("ADMIN_EMAIL", "admin@biblio.local")
	viper.SetDefault("ADMIN_PASSWORD", "admin123")
	viper.SetDefault("CORS_ORIGIN", "http://localhost:4200")
	viper.SetDefault("EVENTS_EXCHANGE", "biblio.reservations")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_FORMAT", "json")
	viper.AutomaticEnv()

	for _, k := range keys {
		_ = viper.BindEnv(k)
	}

	if err = viper.Unmarshal(&config); err != nil {
		return config, fmt.Errorf("decode config: %w", err)
	}
	return config, config.Validate()
}

// Validate checks settings every command needs. Server-only requirements are
// checked by ValidateServer.
func (c Config) Validate() error {
	if c.FineFixedFee < 0 {
		return errors.New("FINE_FIXED_FEE must not be negative")
	}
	if c.FineDailyPercent < 0 {
		return errors.New("FINE_DAILY_PERCENT must not be negative")
	}
	return nil
}

// ValidateServer checks the settings required to serve the API.
func (c Config) ValidateServer() error {
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}
	if !c.AuthDisabled && c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required unless AUTH_DISABLED=true")
	}
	return nil
}
