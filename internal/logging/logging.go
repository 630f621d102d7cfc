// Package logging provides solvereign's structured logger: human-readable
// lines to stderr for interactive CLI use, and a rotated JSONL file (via
// gopkg.in/natefinch/lumberjack.v2) for the solver/daemon log, generalizing
// the teacher's split between plain stderr progress lines and its
// .beads/*.jsonl append-only files onto a single leveled logger.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Level orders log severities.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

// Logger writes leveled, structured entries to a rotated file and plain
// lines to an interactive writer (normally os.Stderr).
type Logger struct {
	mu       sync.Mutex
	file     io.Writer
	human    io.Writer
	minLevel Level
	fields   map[string]any
}

// Config controls where and how much a Logger writes.
type Config struct {
	FilePath   string // empty disables file output
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	MinLevel   Level
	Human      io.Writer // defaults to os.Stderr
}

// New builds a Logger per Config, grounded on the teacher's go.mod
// dependency on lumberjack for rotation.
func New(cfg Config) *Logger {
	human := cfg.Human
	if human == nil {
		human = os.Stderr
	}
	var file io.Writer
	if cfg.FilePath != "" {
		file = &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    maxInt(cfg.MaxSizeMB, 50),
			MaxBackups: maxInt(cfg.MaxBackups, 5),
			MaxAge:     maxInt(cfg.MaxAgeDays, 28),
			Compress:   true,
		}
	}
	return &Logger{file: file, human: human, minLevel: cfg.MinLevel, fields: map[string]any{}}
}

func maxInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// With returns a child logger that always includes the given field.
func (l *Logger) With(key string, value any) *Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	fields := make(map[string]any, len(l.fields)+1)
	for k, v := range l.fields {
		fields[k] = v
	}
	fields[key] = value
	return &Logger{file: l.file, human: l.human, minLevel: l.minLevel, fields: fields}
}

type entry struct {
	Time   string         `json:"time"`
	Level  string         `json:"level"`
	Msg    string         `json:"msg"`
	Fields map[string]any `json:"fields,omitempty"`
}

func (l *Logger) log(level Level, msg string) {
	if level < l.minLevel {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		e := entry{Time: time.Now().UTC().Format(time.RFC3339Nano), Level: level.String(), Msg: msg, Fields: l.fields}
		b, err := json.Marshal(e)
		if err == nil {
			_, _ = l.file.Write(append(b, '\n'))
		}
	}
	fmt.Fprintf(l.human, "%s %-5s %s\n", time.Now().UTC().Format("15:04:05"), level.String(), msg)
}

func (l *Logger) Debug(msg string) { l.log(LevelDebug, msg) }
func (l *Logger) Info(msg string)  { l.log(LevelInfo, msg) }
func (l *Logger) Warn(msg string)  { l.log(LevelWarn, msg) }
func (l *Logger) Error(msg string) { l.log(LevelError, msg) }

func (l *Logger) Infof(format string, args ...any)  { l.Info(fmt.Sprintf(format, args...)) }
func (l *Logger) Warnf(format string, args ...any)  { l.Warn(fmt.Sprintf(format, args...)) }
func (l *Logger) Errorf(format string, args ...any) { l.Error(fmt.Sprintf(format, args...)) }
func (l *Logger) Debugf(format string, args ...any) { l.Debug(fmt.Sprintf(format, args...)) }
