// Package log wraps zerolog so every component in the store logs the same
// structured shape: a component tag, an optional node_id, and a message.
//
// The rest of the codebase never imports zerolog directly — it calls
// log.Component("wal") or log.WithNode("store", nodeID) and gets back a
// ready-to-use logger.
package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the process-wide base logger. Init overwrites it; until Init is
// called it writes human-readable console output to stderr so tests and
// one-off tools don't need to configure anything.
var Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
	With().Timestamp().Logger()

// Config controls the process-wide logger.
type Config struct {
	Level  string // debug, info, warn, error
	JSON   bool   // JSON lines vs human-readable console output
	Output io.Writer
}

// Init installs the process-wide logger. Call once from main().
func Init(cfg Config) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if !cfg.JSON {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}

	Logger = zerolog.New(out).With().Timestamp().Logger()
}

// Component returns a child logger tagged with component=name.
func Component(name string) zerolog.Logger {
	return Logger.With().Str("component", name).Logger()
}

// WithNode returns a child logger tagged with component=name and node_id=id.
func WithNode(name, id string) zerolog.Logger {
	return Logger.With().Str("component", name).Str("node_id", id).Logger()
}
