package config

import (
	"errors"
	"fmt"
)

type AppConfig struct {
	Server ServerConfig
	Log    LogConfig
}

// LoadApp reads every section the server needs and rejects values that would
// make the schedulers or sinks misbehave.
func LoadApp() (AppConfig, error) {
	logCfg, err := LoadLog()
	if err != nil {
		return AppConfig{}, err
	}
	serverCfg, err := LoadServer()
	if err != nil {
		return AppConfig{}, err
	}
	cfg := AppConfig{Server: serverCfg, Log: logCfg}
	if err := cfg.Validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

func (c AppConfig) Validate() error {
	var errs []error
	for _, f := range []struct {
		name  string
		value int64
	}{
		{"SNAPSHOT_TTL", int64(c.Server.SnapshotTTL)},
		{"MATCHMAKING_INTERVAL", int64(c.Server.MatchInterval)},
		{"AUTO_START_DELAY", int64(c.Server.AutoStartDelay)},
		{"SHUTDOWN_TIMEOUT", int64(c.Server.ShutdownTimeout)},
		{"LOG_MAX_MB", int64(c.Log.Sink.MaxMB)},
	} {
		if f.value <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", f.name))
		}
	}
	if c.Log.Sink.Backups < 0 {
		errs = append(errs, errors.New("LOG_BACKUPS must not be negative"))
	}
	return errors.Join(errs...)
}
