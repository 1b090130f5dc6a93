package config

import "testing"

func validConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			HTTPListen:             ":8080",
			LogLevel:               "info",
			ShutdownTimeoutSeconds: 30,
		},
		Postgres: PostgresConfig{
			Host:     "localhost",
			Name:     "bgp_ensemble_db",
			MaxConns: 10,
			MinConns: 2,
		},
		Detector: DetectorConfig{
			PollIntervalSeconds: 20,
			EnsembleMethod:      "avg",
			LSTMSequenceLength:  10,
		},
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got error: %v", err)
	}
}

func TestValidate_NoHost(t *testing.T) {
	cfg := validConfig()
	cfg.Postgres.Host = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for empty DB_HOST")
	}
}

func TestValidate_NoDBName(t *testing.T) {
	cfg := validConfig()
	cfg.Postgres.Name = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for empty DB_NAME")
	}
}

func TestValidate_MaxConnsZero(t *testing.T) {
	cfg := validConfig()
	cfg.Postgres.MaxConns = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for DB_MAX_CONNS = 0")
	}
}

func TestValidate_PollIntervalZero(t *testing.T) {
	cfg := validConfig()
	cfg.Detector.PollIntervalSeconds = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for POLL_INTERVAL = 0")
	}
}

func TestValidate_InvalidEnsembleMethod(t *testing.T) {
	cfg := validConfig()
	cfg.Detector.EnsembleMethod = "sum"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid ENSEMBLE_METHOD")
	}
}

func TestValidate_ShutdownTimeoutZero(t *testing.T) {
	cfg := validConfig()
	cfg.Service.ShutdownTimeoutSeconds = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for SHUTDOWN_TIMEOUT_SECONDS = 0")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DB_HOST", "envhost")
	t.Setenv("DB_NAME", "envdb")
	t.Setenv("POLL_INTERVAL", "45")
	t.Setenv("ENSEMBLE_METHOD", "max")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Postgres.Host != "envhost" {
		t.Errorf("expected DB_HOST from env, got %q", cfg.Postgres.Host)
	}
	if cfg.Postgres.Name != "envdb" {
		t.Errorf("expected DB_NAME from env, got %q", cfg.Postgres.Name)
	}
	if cfg.Detector.PollIntervalSeconds != 45 {
		t.Errorf("expected POLL_INTERVAL=45 from env, got %d", cfg.Detector.PollIntervalSeconds)
	}
	if cfg.Detector.EnsembleMethod != "max" {
		t.Errorf("expected ENSEMBLE_METHOD=max from env, got %q", cfg.Detector.EnsembleMethod)
	}
}

func TestLoad_InvalidEnsembleMethodFailsValidation(t *testing.T) {
	t.Setenv("ENSEMBLE_METHOD", "bogus")

	_, err := Load()
	if err == nil {
		t.Fatal("expected validation error for invalid ENSEMBLE_METHOD via env")
	}
}
