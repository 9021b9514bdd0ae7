// Package logging configures the global zerolog logger.
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/dkeye/Rooms/internal/config"
)

// Setup points the global logger at stderr, and also at a rotating file when one is configured.
// The returned closer flushes the file sink.
func Setup(cfg config.LoggingConfig) (io.Closer, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	if level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	var console io.Writer = os.Stderr
	if cfg.Format == "console" {
		console = zerolog.ConsoleWriter{Out: os.Stderr}
	}

	out, closer := Writer(console, cfg)
	log.Logger = zerolog.New(out).With().Timestamp().Logger()
	return closer, nil
}

// Writer tees console with a lumberjack file sink when cfg.File is set. The file always gets JSON.
func Writer(console io.Writer, cfg config.LoggingConfig) (io.Writer, io.Closer) {
	if cfg.File == "" {
		return console, io.NopCloser(nil)
	}
	file := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   true,
	}
	return zerolog.MultiLevelWriter(console, file), file
}
