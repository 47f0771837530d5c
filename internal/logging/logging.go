package logging

import (
	"io"
	"os"
	"strings"
	"sync"

	"domino-hall/internal/config"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	sinkMu sync.Mutex
	sink   io.Writer = os.Stdout
	file   *rotatingWriter
)

// Init configures the global zerolog logger. When cfg.Sink is enabled, records go
// to stdout and to a size-bounded file.
func Init(cfg config.LogConfig) error {
	level := zerolog.InfoLevel
	if v := strings.TrimSpace(cfg.Level); v != "" {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(v)); err == nil {
			level = parsed
		}
	}

	var out io.Writer = os.Stdout
	var rw *rotatingWriter
	if cfg.Sink.Enabled() {
		var err error
		rw, err = newRotatingWriter(cfg.Sink.Path, cfg.Sink.MaxMB, cfg.Sink.Backups)
		if err != nil {
			return err
		}
		out = io.MultiWriter(os.Stdout, rw)
	}

	console := out
	if cfg.Pretty {
		console = zerolog.ConsoleWriter{Out: out}
	}

	zerolog.SetGlobalLevel(level)
	logger := zerolog.New(console).With().Timestamp().Logger()
	if cfg.SampleEvery > 1 {
		logger = logger.Sample(&zerolog.BasicSampler{N: uint32(cfg.SampleEvery)})
	}
	log.Logger = logger

	sinkMu.Lock()
	prev := file
	sink, file = out, rw
	sinkMu.Unlock()
	if prev != nil {
		_ = prev.Close()
	}
	return nil
}

// Writer returns the raw sink so other loggers (HTTP access logs) share it.
func Writer() io.Writer {
	sinkMu.Lock()
	defer sinkMu.Unlock()
	return sink
}

// Close flushes and closes the file sink, if any.
func Close() error {
	sinkMu.Lock()
	defer sinkMu.Unlock()
	if file == nil {
		return nil
	}
	err := file.Close()
	file = nil
	sink = os.Stdout
	return err
}
