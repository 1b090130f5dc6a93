// Package config loads the environment-only configuration shared by the
// six pipeline workers. Each worker only reads the fields it needs.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Service  ServiceConfig  `koanf:"service"`
	Postgres PostgresConfig `koanf:"postgres"`
	Detector DetectorConfig `koanf:"detector"`
	RPKI     RPKIConfig     `koanf:"rpki"`
	ML       MLConfig       `koanf:"ml"`
	RISLive  RISLiveConfig  `koanf:"rislive"`
}

type ServiceConfig struct {
	HTTPListen             string `koanf:"http_listen"`
	LogLevel               string `koanf:"log_level"`
	ShutdownTimeoutSeconds int    `koanf:"shutdown_timeout_seconds"`
}

type PostgresConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Name     string `koanf:"name"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	MaxConns int32  `koanf:"max_conns"`
	MinConns int32  `koanf:"min_conns"`
}

// DSN builds a libpq-style keyword/value connection string, matching the
// original services' build_dsn() shape.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s",
		p.Host, p.Port, p.Name, p.User, p.Password)
}

type DetectorConfig struct {
	PollIntervalSeconds int     `koanf:"poll_interval"`
	AnomalyThreshold    float64 `koanf:"anomaly_threshold"`
	EnsembleMethod      string  `koanf:"ensemble_method"`
	LSTMSequenceLength  int     `koanf:"lstm_sequence_length"`
}

func (d DetectorConfig) PollInterval() time.Duration {
	return time.Duration(d.PollIntervalSeconds) * time.Second
}

type RPKIConfig struct {
	ValidatorURL string `koanf:"validator_url"`
}

type MLConfig struct {
	ArtifactsPath string `koanf:"artifacts_path"`
}

type RISLiveConfig struct {
	URL      string `koanf:"url"`
	ClientID string `koanf:"client_id"`
}

// Load reads configuration from environment variables only. There is no
// config file and no CLI flags: every one of the six worker processes is
// environment-configured, per the external process contract.
func Load() (*Config, error) {
	k := koanf.New(".")

	cfg := &Config{
		Service: ServiceConfig{
			HTTPListen:             ":8080",
			LogLevel:               "info",
			ShutdownTimeoutSeconds: 30,
		},
		Postgres: PostgresConfig{
			Host:     "localhost",
			Port:     5432,
			Name:     "bgp_ensemble_db",
			User:     "postgres",
			Password: "your_password_here",
			MaxConns: 10,
			MinConns: 2,
		},
		Detector: DetectorConfig{
			PollIntervalSeconds: 20,
			AnomalyThreshold:    3.0,
			EnsembleMethod:      "avg",
			LSTMSequenceLength:  10,
		},
		RPKI: RPKIConfig{
			ValidatorURL: "http://localhost:8323",
		},
		ML: MLConfig{
			ArtifactsPath: "/etc/bgpensemble/ml-artifacts.json.zst",
		},
		RISLive: RISLiveConfig{
			URL:      "wss://ris-live.ripe.net/v1/ws/?client=bgp-ensemble",
			ClientID: "bgp-ensemble",
		},
	}

	if err := k.Load(env.Provider("", ".", flatEnvKey), nil); err != nil {
		return nil, fmt.Errorf("loading env config: %w", err)
	}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// flatEnvKey maps flat environment variable names onto the nested koanf
// key space, e.g. DB_HOST -> postgres.host, POLL_INTERVAL -> detector.poll_interval.
func flatEnvKey(s string) string {
	mapping := map[string]string{
		"DB_HOST":                  "postgres.host",
		"DB_PORT":                  "postgres.port",
		"DB_NAME":                  "postgres.name",
		"DB_USER":                  "postgres.user",
		"DB_PASSWORD":              "postgres.password",
		"DB_MAX_CONNS":             "postgres.max_conns",
		"DB_MIN_CONNS":             "postgres.min_conns",
		"HTTP_LISTEN":              "service.http_listen",
		"LOG_LEVEL":                "service.log_level",
		"SHUTDOWN_TIMEOUT_SECONDS": "service.shutdown_timeout_seconds",
		"POLL_INTERVAL":            "detector.poll_interval",
		"ANOMALY_THRESHOLD":        "detector.anomaly_threshold",
		"ENSEMBLE_METHOD":          "detector.ensemble_method",
		"LSTM_SEQUENCE_LENGTH":     "detector.lstm_sequence_length",
		"RPKI_VALIDATOR_URL":       "rpki.validator_url",
		"ML_ARTIFACTS_PATH":        "ml.artifacts_path",
		"RIS_LIVE_URL":             "rislive.url",
		"RIS_LIVE_CLIENT_ID":       "rislive.client_id",
	}
	if key, ok := mapping[s]; ok {
		return key
	}
	return strings.ToLower(s)
}

func (c *Config) Validate() error {
	if c.Postgres.Host == "" {
		return fmt.Errorf("config: DB_HOST is required")
	}
	if c.Postgres.Name == "" {
		return fmt.Errorf("config: DB_NAME is required")
	}
	if c.Postgres.MaxConns <= 0 {
		return fmt.Errorf("config: DB_MAX_CONNS must be > 0 (got %d)", c.Postgres.MaxConns)
	}
	if c.Postgres.MinConns < 0 {
		return fmt.Errorf("config: DB_MIN_CONNS must be >= 0 (got %d)", c.Postgres.MinConns)
	}
	if c.Detector.PollIntervalSeconds <= 0 {
		return fmt.Errorf("config: POLL_INTERVAL must be > 0 (got %d)", c.Detector.PollIntervalSeconds)
	}
	if c.Detector.EnsembleMethod != "avg" && c.Detector.EnsembleMethod != "max" {
		return fmt.Errorf("config: ENSEMBLE_METHOD must be 'avg' or 'max' (got %q)", c.Detector.EnsembleMethod)
	}
	if c.Detector.LSTMSequenceLength <= 0 {
		return fmt.Errorf("config: LSTM_SEQUENCE_LENGTH must be > 0 (got %d)", c.Detector.LSTMSequenceLength)
	}
	if c.Service.ShutdownTimeoutSeconds <= 0 {
		return fmt.Errorf("config: SHUTDOWN_TIMEOUT_SECONDS must be > 0 (got %d)", c.Service.ShutdownTimeoutSeconds)
	}
	return nil
}
