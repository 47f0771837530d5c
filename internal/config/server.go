package config

import "time"

type ServerConfig struct {
	HTTPAddr   string `env:"HTTP_ADDR" envDefault:":8080"`
	InstanceID string `env:"INSTANCE_ID"`

	// RedisURL enables the shared snapshot store and bus. Empty runs a single
	// process on in-memory stand-ins.
	RedisURL          string        `env:"REDIS_URL"`
	RedisKeyPrefix    string        `env:"REDIS_KEY_PREFIX" envDefault:"domino:"`
	SnapshotTTL       time.Duration `env:"SNAPSHOT_TTL" envDefault:"1h"`
	PostgresDSN       string        `env:"POSTGRES_DSN"`
	MigrateOnStart    bool          `env:"MIGRATE_ON_START" envDefault:"true"`
	MatchInterval     time.Duration `env:"MATCHMAKING_INTERVAL" envDefault:"5s"`
	AutoStartDelay    time.Duration `env:"AUTO_START_DELAY" envDefault:"5s"`
	ShutdownTimeout   time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	WSAllowAnyOrigin  bool          `env:"WS_ALLOW_ANY_ORIGIN" envDefault:"false"`
	WSWriteTimeout    time.Duration `env:"WS_WRITE_TIMEOUT" envDefault:"10s"`
	WSPingInterval    time.Duration `env:"WS_PING_INTERVAL" envDefault:"30s"`
	RequestTimeoutSec int           `env:"REQUEST_TIMEOUT_SECONDS" envDefault:"15"`
}

func LoadServer() (ServerConfig, error) { return load[ServerConfig]() }
