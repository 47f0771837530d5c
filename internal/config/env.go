package config

import "github.com/caarlos0/env/v11"

func load[T any]() (T, error) {
	var cfg T
	err := env.Parse(&cfg)
	return cfg, err
}

// TestConfig gates the Postgres-backed tests. Each test runs in its own
// schema named SchemaPrefix plus a timestamp.
type TestConfig struct {
	TestPostgresDSN string `env:"TEST_POSTGRES_DSN,required,notEmpty"`
	SchemaPrefix    string `env:"TEST_SCHEMA_PREFIX" envDefault:"domino_test_"`
}

func LoadTest() (TestConfig, error) { return load[TestConfig]() }
