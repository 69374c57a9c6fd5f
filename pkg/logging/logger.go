package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

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

// ParseLevel maps a config string to a Level, defaulting to info.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelWarn:
		return "WARNING"
	case LevelError:
		return "ERROR"
	default:
		return "INFO"
	}
}

// Logger is the logging contract injected into services and the wizard core.
type Logger interface {
	Debug(format string, v ...any)
	Info(format string, v ...any)
	Warn(format string, v ...any)
	Error(format string, v ...any)
	WithFields(fields map[string]any) Logger
}

// Options configures file output and rotation.
type Options struct {
	Dir        string
	Level      string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

type stdLogger struct {
	mu     *sync.Mutex
	level  Level
	out    *log.Logger
	errOut *log.Logger
	fields map[string]any
}

var (
	defaultMu     sync.RWMutex
	defaultLogger Logger = New(os.Stdout, LevelInfo)
)

// New builds a Logger writing every level to w.
func New(w io.Writer, level Level) Logger {
	if w == nil {
		w = os.Stdout
	}
	l := log.New(w, "", log.Ldate|log.Ltime)
	return &stdLogger{mu: &sync.Mutex{}, level: level, out: l, errOut: l}
}

// Setup creates the log directory and returns a Logger that writes to stdout and a
// rotated info.log, with warnings and errors also going to a rotated error.log.
func Setup(opts Options) (Logger, error) {
	dir := opts.Dir
	if dir == "" {
		dir = "logs"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	infoFile := rotating(filepath.Join(dir, "info.log"), opts)
	errorFile := rotating(filepath.Join(dir, "error.log"), opts)

	infoWriter := io.MultiWriter(os.Stdout, infoFile)
	errorWriter := io.MultiWriter(os.Stderr, infoFile, errorFile)

	logger := &stdLogger{
		mu:     &sync.Mutex{},
		level:  ParseLevel(opts.Level),
		out:    log.New(infoWriter, "", log.Ldate|log.Ltime),
		errOut: log.New(errorWriter, "", log.Ldate|log.Ltime),
	}

	// Route the standard library logger (gin, gorm) through the same file.
	log.SetOutput(infoWriter)
	return logger, nil
}

func rotating(path string, opts Options) io.Writer {
	maxSize := opts.MaxSizeMB
	if maxSize <= 0 {
		maxSize = 50
	}
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSize,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   opts.Compress,
	}
}

func (l *stdLogger) Debug(format string, v ...any) { l.log(LevelDebug, 0, format, v...) }
func (l *stdLogger) Info(format string, v ...any)  { l.log(LevelInfo, 0, format, v...) }
func (l *stdLogger) Warn(format string, v ...any)  { l.log(LevelWarn, 0, format, v...) }
func (l *stdLogger) Error(format string, v ...any) { l.log(LevelError, 0, format, v...) }

// WithFields returns a copy that appends key=value pairs to every line.
func (l *stdLogger) WithFields(fields map[string]any) Logger {
	cp := *l
	merged := make(map[string]any, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	cp.fields = merged
	return &cp
}

// log writes one entry. depth counts the frames between the caller being
// reported and the exported method that normally sits right above log.
func (l *stdLogger) log(level Level, depth int, format string, v ...any) {
	if level < l.level {
		return
	}
	message := fmt.Sprintf(format, v...)
	entry := fmt.Sprintf("%s: [%s] %s", level, callerInfo(3+depth), message)
	if f := formatFields(l.fields); f != "" {
		entry += " " + f
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if level >= LevelWarn {
		l.errOut.Println(entry)
		return
	}
	l.out.Println(entry)
}

func callerInfo(skip int) string {
	pc, _, _, ok := runtime.Caller(skip)
	if !ok {
		return "unknown"
	}
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return "unknown"
	}
	name := fn.Name()
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	return name
}

func formatFields(fields map[string]any) string {
	if len(fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, fields[k]))
	}
	return strings.Join(parts, " ")
}

// SetDefault replaces the logger used by the package-level helpers.
func SetDefault(l Logger) {
	if l == nil {
		return
	}
	defaultMu.Lock()
	defaultLogger = l
	defaultMu.Unlock()
}

// Default returns the package-level logger.
func Default() Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

func Debug(format string, v ...any) { logDefault(LevelDebug, format, v...) }
func Info(format string, v ...any)  { logDefault(LevelInfo, format, v...) }
func Warn(format string, v ...any)  { logDefault(LevelWarn, format, v...) }
func Error(format string, v ...any) { logDefault(LevelError, format, v...) }

func logDefault(level Level, format string, v ...any) {
	l := Default()
	if sl, ok := l.(*stdLogger); ok {
		// logDefault and the package helper stand in for the method frame
		sl.log(level, 1, format, v...)
		return
	}
	switch level {
	case LevelDebug:
		l.Debug(format, v...)
	case LevelInfo:
		l.Info(format, v...)
	case LevelWarn:
		l.Warn(format, v...)
	default:
		l.Error(format, v...)
	}
}

// Discard returns a Logger that drops everything; used by tests.
func Discard() Logger {
	return New(io.Discard, LevelError+1)
}
