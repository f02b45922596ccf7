package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog.Logger with additional context
type Logger struct {
	zerolog.Logger
	file *os.File
}

// Config holds logger configuration
type Config struct {
	Level  string // debug, info, warn, error
	Format string // json or console
	Output string // stdout, stderr or discard
	File   string // append-only log file, empty disables it

	// Writer replaces Output when set
	Writer io.Writer
}

// New creates a new logger with the given configuration
func New(cfg Config) *Logger {
	var output io.Writer = os.Stdout
	switch cfg.Output {
	case "stderr":
		output = os.Stderr
	case "discard":
		output = io.Discard
	}
	if cfg.Writer != nil {
		output = cfg.Writer
	}

	if cfg.Format == "console" {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}
	}

	// The file always gets JSON lines, whatever the terminal format is
	var file *os.File
	var openErr error
	if cfg.File != "" {
		file, openErr = os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if openErr == nil {
			output = zerolog.MultiLevelWriter(output, file)
		}
	}

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	logger := zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Logger()

	if openErr != nil {
		logger.Warn().Err(openErr).Str("file", cfg.File).Msg("Cannot open log file, logging to terminal only")
	}

	return &Logger{Logger: logger, file: file}
}

// Default creates a default console logger
func Default() *Logger {
	return New(Config{
		Level:  "info",
		Format: "console",
		Output: "stdout",
	})
}

// Nop returns a logger that writes nothing, for tests
func Nop() *Logger {
	return &Logger{Logger: zerolog.Nop()}
}

// Close releases the log file, if one was opened
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// Critical starts a message at the highest severity. Unlike Fatal it does
// not terminate the process.
func (l *Logger) Critical() *zerolog.Event {
	return l.WithLevel(zerolog.FatalLevel)
}

// WithComponent adds a component field to the logger
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		Logger: l.With().Str("component", component).Logger(),
		file:   l.file,
	}
}

// WithSource adds trend source context
func (l *Logger) WithSource(sourceType, sourceName string) *Logger {
	return &Logger{
		Logger: l.With().
			Str("source_type", sourceType).
			Str("source_name", sourceName).
			Logger(),
		file: l.file,
	}
}

// WithTrend adds the selected trend to the logger
func (l *Logger) WithTrend(trend string) *Logger {
	return &Logger{
		Logger: l.With().Str("trend", trend).Logger(),
		file:   l.file,
	}
}

// WithBackend adds a text-generation backend name to the logger
func (l *Logger) WithBackend(name string) *Logger {
	return &Logger{
		Logger: l.With().Str("backend", name).Logger(),
		file:   l.file,
	}
}

// WithAttempt adds a 1-based publish attempt number
func (l *Logger) WithAttempt(attempt int) *Logger {
	return &Logger{
		Logger: l.With().Int("attempt", attempt).Logger(),
		file:   l.file,
	}
}

// Truncate shortens s to at most n runes so upstream error bodies
// do not flood the log.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
