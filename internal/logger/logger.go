package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type Config struct {
	Level   string
	Format  string // json or console
	Service string
	Output  io.Writer
}

// New builds the process logger. Components derive children with Component.
func New(cfg Config) zerolog.Logger {
	var output io.Writer = cfg.Output
	if output == nil {
		output = os.Stdout
	}
	if strings.EqualFold(cfg.Format, "console") {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: "15:04:05",
		}
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano

	service := cfg.Service
	if service == "" {
		service = "ridebroker"
	}

	return zerolog.New(output).
		With().
		Timestamp().
		Str("service", service).
		Logger().
		Level(ParseLevel(cfg.Level))
}

func ParseLevel(value string) zerolog.Level {
	levelString := strings.ToLower(strings.TrimSpace(value))
	if levelString == "" {
		return zerolog.InfoLevel
	}
	if lvl, err := zerolog.ParseLevel(levelString); err == nil {
		return lvl
	}
	return zerolog.InfoLevel
}

func Component(base zerolog.Logger, name string) zerolog.Logger {
	return base.With().Str("component", name).Logger()
}
