// Package logger provides structured logging using zerolog.
package logger

import (
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

// Config represents logger configuration.
type Config struct {
	Output string // "stdout", "stderr", or file path
	Level  string // "trace", "debug", "info", "warn", "error"
	File   string // log file path (used when Output is not stdout/stderr)
}

var (
	fileMu sync.Mutex
	file   *os.File // current log file, closed by Close or the next Init
)

// Init initializes the global zerolog logger with the given configuration.
func Init(cfg Config) error {
	level := parseLevel(cfg.Level)
	console := isConsole(cfg.Output)

	var writer io.Writer
	if console {
		writer = os.Stdout
		if strings.ToLower(cfg.Output) == "stderr" {
			writer = os.Stderr
		}
	} else {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return errors.Wrapf(err, "failed to open log file %s", cfg.File)
		}
		swapFile(f)
		writer = f
	}

	logger := build(writer, level, console)

	zerolog.SetGlobalLevel(level)
	zerolog.DefaultContextLogger = &logger
	zlog.Logger = logger

	return nil
}

// Close closes the log file opened by Init, if any.
func Close() error {
	return swapFile(nil)
}

func swapFile(f *os.File) error {
	fileMu.Lock()
	defer fileMu.Unlock()

	var err error
	if file != nil {
		err = file.Close()
	}
	file = f
	return err
}

// build creates a logger writing to w. Console output is colored; caller
// information is added at debug level and below.
func build(w io.Writer, level zerolog.Level, console bool) zerolog.Logger {
	zerolog.TimeFieldFormat = time.TimeOnly
	zerolog.TimestampFieldName = "time"
	zerolog.LevelFieldName = "level"
	zerolog.MessageFieldName = "message"

	zerolog.CallerMarshalFunc = func(pc uintptr, file string, line int) string {
		parts := strings.Split(file, string(filepath.Separator))
		if len(parts) > 1 {
			return filepath.Join(parts[len(parts)-2:]...) + ":" + strconv.Itoa(line)
		}
		return filepath.Base(file) + ":" + strconv.Itoa(line)
	}

	withCaller := level <= zerolog.DebugLevel

	if !console {
		// JSON output for files
		ctx := zerolog.New(w).Level(level).With().Timestamp()
		if withCaller {
			ctx = ctx.Caller()
		}
		return ctx.Logger()
	}

	cw := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.TimeOnly,
	}
	if withCaller {
		cw.PartsOrder = []string{"time", "level", "message", "caller"}
		cw.FormatCaller = func(i interface{}) string {
			s, _ := i.(string)
			return "(" + s + ")"
		}
		return zerolog.New(cw).Level(level).With().Timestamp().Caller().Logger()
	}
	return zerolog.New(cw).Level(level).With().Timestamp().Logger()
}

// isConsole reports whether output names a standard stream.
func isConsole(output string) bool {
	switch strings.ToLower(output) {
	case "stdout", "stderr", "":
		return true
	default:
		return false
	}
}

// parseLevel parses the log level string.
func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info", "":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
