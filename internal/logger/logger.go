package logger

import (
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	defaultLogger zerolog.Logger
	once          sync.Once
	mu            sync.RWMutex
)

// Options configures the default logger.
type Options struct {
	Level     string // zerolog level name; empty means info
	FilePath  string // when set, logs are written here instead of stderr
	MaxSizeMB int    // rotation threshold for FilePath
	Console   bool   // human-readable console output instead of JSON
}

// Init initializes the default logger writing JSON to os.Stderr.
// It ensures that the logger is initialized only once.
func Init() {
	once.Do(func() {
		set(zerolog.New(os.Stderr).With().Timestamp().Logger().Level(zerolog.InfoLevel))
	})
}

// Configure replaces the default logger according to opts.
func Configure(opts Options) {
	once.Do(func() {})

	var w io.Writer = os.Stderr
	if opts.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(opts.FilePath), 0o750); err == nil {
			w = &lumberjack.Logger{
				Filename:   opts.FilePath,
				MaxSize:    opts.MaxSizeMB,
				MaxBackups: 3,
				Compress:   false,
			}
		}
	}
	if opts.Console && opts.FilePath == "" {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
	}

	level := zerolog.InfoLevel
	if opts.Level != "" {
		if parsed, err := zerolog.ParseLevel(opts.Level); err == nil {
			level = parsed
		}
	}
	set(zerolog.New(w).With().Timestamp().Logger().Level(level))
}

// SetOutput points the default logger at w. Used by tests to capture output.
func SetOutput(w io.Writer) {
	once.Do(func() {})
	set(zerolog.New(w).With().Timestamp().Logger().Level(zerolog.DebugLevel))
}

func set(l zerolog.Logger) {
	mu.Lock()
	defaultLogger = l
	mu.Unlock()
}

// Get returns the initialized default logger.
func Get() *zerolog.Logger {
	Init()
	mu.RLock()
	l := defaultLogger
	mu.RUnlock()
	return &l
}

// Info logs an informational message with alternating key/value fields.
func Info(msg string, args ...any) {
	Get().Info().Fields(args).Msg(msg)
}

// Warn logs a warning message.
func Warn(msg string, args ...any) {
	Get().Warn().Fields(args).Msg(msg)
}

// Error logs an error message; err may be nil.
func Error(msg string, err error, args ...any) {
	Get().Error().Err(err).Fields(args).Msg(msg)
}

// Debug logs a debug message.
func Debug(msg string, args ...any) {
	Get().Debug().Fields(args).Msg(msg)
}
