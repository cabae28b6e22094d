// Package logger provides JSON structured logging using zerolog.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Config controls log level and destination.
type Config struct {
	Level      string `mapstructure:"level"`
	Debug      bool   `mapstructure:"debug"`
	Output     string `mapstructure:"output"`
	TimeFormat string `mapstructure:"time_format"`
	Pretty     bool   `mapstructure:"pretty"`
}

// New builds a logger from cfg. Output is "stdout" (default) or "stderr".
func New(cfg Config) (zerolog.Logger, error) {
	var output io.Writer = os.Stdout
	if cfg.Output == "stderr" {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: time.Kitchen}
	}

	level := zerolog.InfoLevel
	if cfg.Debug {
		level = zerolog.DebugLevel
	} else if cfg.Level != "" {
		var err error
		level, err = zerolog.ParseLevel(cfg.Level)
		if err != nil {
			return zerolog.Nop(), err
		}
	}

	zerolog.TimeFieldFormat = time.RFC3339
	if cfg.TimeFormat != "" {
		zerolog.TimeFieldFormat = cfg.TimeFormat
	}

	return zerolog.New(output).Level(level).With().Timestamp().Logger(), nil
}

// WithComponent tags a logger with a component name.
func WithComponent(l zerolog.Logger, component string) zerolog.Logger {
	return l.With().Str("component", component).Logger()
}

// NewTestLogger returns a logger that discards output.
func NewTestLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}
