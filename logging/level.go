package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap/zapcore"
)

// Level is a log severity. Levels are ordered; a logger writes entries at or
// above its minimum level.
type Level int8

const (
	Verbose Level = iota
	Debug
	Information
	Warning
	Error
	Fatal
)

var levelNames = [...]string{"Verbose", "Debug", "Information", "Warning", "Error", "Fatal"}

var levelTags = [...]string{"VRB", "DBG", "INF", "WRN", "ERR", "FTL"}

func (l Level) String() string {
	if l < Verbose || l > Fatal {
		return fmt.Sprintf("Level(%d)", int8(l))
	}
	return levelNames[l]
}

// ParseLevel parses a level name case-insensitively. Common short forms
// such as "info", "warn" and "trace" are accepted.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "verbose", "trace", "vrb":
		return Verbose, nil
	case "debug", "dbg":
		return Debug, nil
	case "information", "info", "inf":
		return Information, nil
	case "warning", "warn", "wrn":
		return Warning, nil
	case "error", "err":
		return Error, nil
	case "fatal", "ftl":
		return Fatal, nil
	}
	return Information, fmt.Errorf("logging: unknown level %q", s)
}

// verboseLevel sits below zap's debug level.
const verboseLevel = zapcore.DebugLevel - 1

func (l Level) zap() zapcore.Level {
	switch l {
	case Verbose:
		return verboseLevel
	case Debug:
		return zapcore.DebugLevel
	case Warning:
		return zapcore.WarnLevel
	case Error:
		return zapcore.ErrorLevel
	case Fatal:
		return zapcore.FatalLevel
	}
	return zapcore.InfoLevel
}

func fromZap(z zapcore.Level) Level {
	switch {
	case z <= verboseLevel:
		return Verbose
	case z == zapcore.DebugLevel:
		return Debug
	case z == zapcore.InfoLevel:
		return Information
	case z == zapcore.WarnLevel:
		return Warning
	case z < zapcore.FatalLevel:
		return Error
	}
	return Fatal
}

// encodeLevel writes the bracketed three-letter tag, e.g. "[INF]".
func encodeLevel(z zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString("[" + levelTags[fromZap(z)] + "]")
}
