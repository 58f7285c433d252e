package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"
)

// Options configures the process logger
type Options struct {
	Level    string
	LogDir   string
	Symbol   string
	Interval string

	// Console overrides stderr; used by tests.
	Console io.Writer
}

// Logger owns the log file, if any, behind the global zerolog logger
type Logger struct {
	symbol   string
	interval string
	logDir   string
	logFile  *os.File
	started  time.Time
	mu       sync.Mutex
}

// Setup configures the global zerolog logger: console output on stderr, plus
// a per-run file under LogDir when one is configured.
func Setup(opts Options) (*Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	console := opts.Console
	colour := false
	if console == nil {
		console = os.Stderr
		colour = term.IsTerminal(int(os.Stderr.Fd()))
	}
	writers := []io.Writer{zerolog.ConsoleWriter{Out: console, TimeFormat: time.Kitchen, NoColor: !colour}}

	l := &Logger{
		symbol:   strings.ToUpper(opts.Symbol),
		interval: opts.Interval,
		logDir:   opts.LogDir,
		started:  time.Now(),
	}

	if opts.LogDir != "" {
		if err := os.MkdirAll(opts.LogDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		file, err := os.OpenFile(l.GetLogPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		l.logFile = file
		writers = append(writers, file)
	}

	log.Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).With().Timestamp().Logger()

	log.Info().
		Str("symbol", l.symbol).
		Str("interval", l.interval).
		Str("log_file", l.pathOrNone()).
		Msg("session started")

	return l, nil
}

// ParseLevel maps a LOG_LEVEL value to a zerolog level; empty means info
func ParseLevel(level string) (zerolog.Level, error) {
	if strings.TrimSpace(level) == "" {
		return zerolog.InfoLevel, nil
	}
	parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return parsed, nil
}

// GetLogPath returns the file path for this session's log
func (l *Logger) GetLogPath() string {
	symbol := l.symbol
	if symbol == "" {
		symbol = "ENGINE"
	}
	interval := l.interval
	if interval == "" {
		interval = "all"
	}
	filename := fmt.Sprintf("%s_%s_%s.log", symbol, interval, l.started.Format("2006-01-02"))
	return filepath.Join(l.logDir, filename)
}

func (l *Logger) pathOrNone() string {
	if l.logDir == "" {
		return "none"
	}
	return l.GetLogPath()
}

// Close writes the session footer and closes the log file
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	log.Info().Dur("elapsed", time.Since(l.started)).Msg("session ended")

	if l.logFile != nil {
		err := l.logFile.Close()
		l.logFile = nil
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
		return err
	}
	return nil
}
