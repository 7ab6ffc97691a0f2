// Package logging builds the process zerolog logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Options configures the root logger.
type Options struct {
	// Level is trace, debug, info, warn, error or disabled.
	Level string
	// Format is json (default) or console.
	Format  string
	Service string
	Writer  io.Writer
}

// ParseLevel maps a level name to a zerolog level.
func ParseLevel(s string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return zerolog.TraceLevel, nil
	case "debug":
		return zerolog.DebugLevel, nil
	case "", "info":
		return zerolog.InfoLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	case "off", "disabled":
		return zerolog.Disabled, nil
	}
	return zerolog.InfoLevel, fmt.Errorf("unknown log level %q", s)
}

// New builds the root logger and installs it as zerolog's default context
// logger, so zerolog.Ctx on a bare context logs through it.
func New(opt Options) (zerolog.Logger, error) {
	lvl, err := ParseLevel(opt.Level)
	if err != nil {
		return zerolog.Nop(), err
	}
	zerolog.TimeFieldFormat = time.RFC3339Nano

	var w io.Writer = os.Stderr
	if opt.Writer != nil {
		w = opt.Writer
	}
	switch strings.ToLower(opt.Format) {
	case "", "json":
	case "console":
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	default:
		return zerolog.Nop(), fmt.Errorf("unknown log format %q", opt.Format)
	}

	zctx := zerolog.New(w).Level(lvl).With().Timestamp()
	if opt.Service != "" {
		zctx = zctx.Str("service", opt.Service)
	}
	log := zctx.Logger()
	zerolog.DefaultContextLogger = &log
	return log, nil
}
