package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host string
	Port int
}

type DBConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime string
}

type AuthConfig struct {
	AccessSecret string
}

// EngineConfig holds the scheduling engine knobs.
type EngineConfig struct {
	ExpiringSoonDays   int
	MissedGrace        time.Duration
	OnTimeGrace        time.Duration
	MaterializeHorizon int // days ahead the sweep materializes visits
	SweepInterval      time.Duration
}

type Config struct {
	Environment string
	HTTP        HTTPConfig
	DB          DBConfig
	Auth        AuthConfig
	Engine      EngineConfig
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("./deploy")
	v.AutomaticEnv()

	_ = v.ReadInConfig()

	cfg := &Config{
		Environment: v.GetString("APP_ENV"),
		HTTP: HTTPConfig{
			Host: v.GetString("HTTP_HOST"),
			Port: v.GetInt("HTTP_PORT"),
		},
		DB: DBConfig{
			DSN:             v.GetString("DB_DSN"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetString("DB_CONN_MAX_LIFETIME"),
		},
		Auth: AuthConfig{
			AccessSecret: v.GetString("JWT_ACCESS_SECRET"),
		},
		Engine: EngineConfig{
			ExpiringSoonDays:   v.GetInt("EXPIRING_SOON_DAYS"),
			MissedGrace:        v.GetDuration("MISSED_GRACE"),
			OnTimeGrace:        v.GetDuration("ON_TIME_GRACE"),
			MaterializeHorizon: v.GetInt("MATERIALIZE_HORIZON_DAYS"),
			SweepInterval:      v.GetDuration("SWEEP_INTERVAL"),
		},
	}

	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.HTTP.Host == "" {
		cfg.HTTP.Host = "0.0.0.0"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 7090
	}
	if cfg.Engine.ExpiringSoonDays == 0 {
		cfg.Engine.ExpiringSoonDays = 30
	}
	if cfg.Engine.MissedGrace == 0 {
		cfg.Engine.MissedGrace = 48 * time.Hour
	}
	if cfg.Engine.OnTimeGrace == 0 {
		cfg.Engine.OnTimeGrace = 4 * time.Hour
	}
	if cfg.Engine.MaterializeHorizon == 0 {
		cfg.Engine.MaterializeHorizon = 90
	}
	if cfg.Engine.SweepInterval == 0 {
		cfg.Engine.SweepInterval = time.Hour
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	if cfg.DB.DSN == "" {
		return fmt.Errorf("DB_DSN is required")
	}
	if cfg.Auth.AccessSecret == "" {
		return fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.Engine.ExpiringSoonDays < 0 {
		return fmt.Errorf("EXPIRING_SOON_DAYS must not be negative")
	}
	if cfg.Engine.MaterializeHorizon < 1 {
		return fmt.Errorf("MATERIALIZE_HORIZON_DAYS must be at least 1")
	}
	return nil
}
