package common

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/lni/dragonboat/v4/logger"
)

// LoggerNames are the loggers used by confcache packages.
var LoggerNames = []string{"graph", "cache", "store", "cli"}

// --------------------------------------------------------------------------
// Custom Logger (implements dragonboats logger.ILogger)
// --------------------------------------------------------------------------

// confLogger implements the ILogger interface with custom formatting
type confLogger struct {
	name   string
	level  logger.LogLevel
	logger *log.Logger
}

func (l *confLogger) SetLevel(level logger.LogLevel) {
	l.level = level
}

func (l *confLogger) Debugf(format string, args ...interface{}) {
	if l.level >= logger.DEBUG {
		l.log("DEBUG", format, args...)
	}
}

func (l *confLogger) Infof(format string, args ...interface{}) {
	if l.level >= logger.INFO {
		l.log("INFO", format, args...)
	}
}

func (l *confLogger) Warningf(format string, args ...interface{}) {
	if l.level >= logger.WARNING {
		l.log("WARN", format, args...)
	}
}

func (l *confLogger) Errorf(format string, args ...interface{}) {
	if l.level >= logger.ERROR {
		l.log("ERROR", format, args...)
	}
}

func (l *confLogger) Panicf(format string, args ...interface{}) {
	if l.level >= logger.CRITICAL {
		panic(fmt.Sprintf(format, args...))
	}
}

// log formats and writes a log message
func (l *confLogger) log(levelStr string, format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)
	l.logger.Printf("%-5s | %-15s | %s", levelStr, l.name, message)
}

// --------------------------------------------------------------------------
// Logger Factory
// --------------------------------------------------------------------------

// CreateLogger implements the dragonboat logger.Factory. Output goes to stderr,
// stdout is reserved for command output.
func CreateLogger(pkgName string) logger.ILogger {
	return newLogger(pkgName, os.Stderr)
}

func newLogger(pkgName string, w io.Writer) *confLogger {
	return &confLogger{
		name:   pkgName,
		level:  logger.INFO,
		logger: log.New(w, "", log.Ldate|log.Ltime),
	}
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// ParseLogLevel converts a string level to logger.LogLevel
func ParseLogLevel(level string) (logger.LogLevel, error) {
	switch strings.ToLower(level) {
	case "debug":
		return logger.DEBUG, nil
	case "info":
		return logger.INFO, nil
	case "warning", "warn":
		return logger.WARNING, nil
	case "error":
		return logger.ERROR, nil
	default:
		return 0, fmt.Errorf("invalid log level: %s. must be one of debug, info, warn, error", level)
	}
}

// mustParseLogLevel is ParseLogLevel for configurations that were validated
func mustParseLogLevel(level string) logger.LogLevel {
	l, err := ParseLogLevel(level)
	if err != nil {
		panic(err)
	}
	return l
}

// --------------------------------------------------------------------------
// Logger initialization
// --------------------------------------------------------------------------

// InitLoggers installs the custom logger factory and sets the level of all
// confcache loggers. The config must have been validated.
func InitLoggers(config Config) {
	logger.SetLoggerFactory(CreateLogger)

	level := mustParseLogLevel(config.LogLevel)
	for _, name := range LoggerNames {
		logger.GetLogger(name).SetLevel(level)
	}
}
