package logging

import (
	"io"
	"os"

	"depthbook/internal/config"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup configures the global logger. Unknown levels fall back to info.
func Setup(cfg config.LogConfig) {
	setup(cfg, os.Stderr)
}

func setup(cfg config.LogConfig, out io.Writer) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out}
	}
	log.Logger = zerolog.New(out).With().Timestamp().Logger()

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}
