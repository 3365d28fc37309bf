package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sweeney/glade/internal/config"
)

// setupLogging configures the global logger. The auto format picks the
// console writer when w is a terminal and JSON otherwise.
func setupLogging(o config.LogOptions, w io.Writer) error {
	level, err := zerolog.ParseLevel(o.Level)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	if level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	if useConsole(o.Format, w) {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	log.Logger = zerolog.New(w).With().Timestamp().Logger()
	return nil
}

func useConsole(format string, w io.Writer) bool {
	switch format {
	case config.FormatConsole:
		return true
	case config.FormatJSON:
		return false
	}
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}
