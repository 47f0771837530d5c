package config

// LogConfig drives logging.Init.
type LogConfig struct {
	Level       string `env:"LOG_LEVEL" envDefault:"info"`
	Pretty      bool   `env:"LOG_PRETTY" envDefault:"false"`
	SampleEvery int    `env:"LOG_SAMPLE_EVERY" envDefault:"0"`
	Sink        FileSink
}

// FileSink enables a rotating log file next to stdout when Path is set.
// Backups is how many rotated files (path.1 .. path.N) are kept.
type FileSink struct {
	Path    string `env:"LOG_FILE"`
	MaxMB   int    `env:"LOG_MAX_MB" envDefault:"10"`
	Backups int    `env:"LOG_BACKUPS" envDefault:"1"`
}

func (s FileSink) Enabled() bool { return s.Path != "" }

func LoadLog() (LogConfig, error) { return load[LogConfig]() }
