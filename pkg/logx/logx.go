// Package logx provides component loggers with domain-filtered debug logging.
package logx

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

const timestampFormat = "2006-01-02T15:04:05.000Z"

type ctxKey string

// ComponentKey is the context key carrying the component (or session) id used by Debug.
const ComponentKey ctxKey = "component"

// DebugConfig controls debug logging behavior.
type DebugConfig struct {
	Domains map[string]bool // nil = all domains
	Enabled bool
}

var (
	debugConfig = &DebugConfig{}
	debugMutex  sync.RWMutex

	// logWriter overrides the output destination; nil means stderr.
	logWriter     io.Writer
	logWriterLock sync.Mutex
)

func init() { //nolint:gochecknoinits // env driven debug switch
	initDebugFromEnv()
}

func initDebugFromEnv() {
	debugMutex.Lock()
	defer debugMutex.Unlock()

	if debug := os.Getenv("DEBUG"); debug == "1" || strings.EqualFold(debug, "true") {
		debugConfig.Enabled = true
	}

	// DEBUG_DOMAINS=invoker,session
	if domains := os.Getenv("DEBUG_DOMAINS"); domains != "" {
		debugConfig.Domains = make(map[string]bool)
		for _, domain := range strings.Split(domains, ",") {
			debugConfig.Domains[strings.TrimSpace(domain)] = true
		}
	}
}

// SetOutput redirects all loggers to w. Passing nil restores stderr.
func SetOutput(w io.Writer) {
	logWriterLock.Lock()
	logWriter = w
	logWriterLock.Unlock()
}

// SetDebugConfig toggles debug logging and the set of enabled domains.
func SetDebugConfig(enabled bool, domains []string) {
	debugMutex.Lock()
	defer debugMutex.Unlock()

	debugConfig.Enabled = enabled
	if len(domains) == 0 {
		debugConfig.Domains = nil
		return
	}
	debugConfig.Domains = make(map[string]bool, len(domains))
	for _, domain := range domains {
		debugConfig.Domains[strings.TrimSpace(domain)] = true
	}
}

// IsDebugEnabled returns whether debug logging is enabled.
func IsDebugEnabled() bool {
	debugMutex.RLock()
	defer debugMutex.RUnlock()
	return debugConfig.Enabled
}

// IsDebugEnabledForDomain returns whether debug logging is enabled for a specific domain.
func IsDebugEnabledForDomain(domain string) bool {
	debugMutex.RLock()
	defer debugMutex.RUnlock()

	if !debugConfig.Enabled {
		return false
	}
	if debugConfig.Domains == nil {
		return true
	}
	return debugConfig.Domains[domain]
}

func write(component string, level Level, message string) {
	line := fmt.Sprintf("[%s] [%s] %s: %s\n", time.Now().UTC().Format(timestampFormat), component, level, message)

	logWriterLock.Lock()
	defer logWriterLock.Unlock()
	var w io.Writer = os.Stderr
	if logWriter != nil {
		w = logWriter
	}
	_, _ = io.WriteString(w, line)
}

// Logger writes lines tagged with a component id.
type Logger struct {
	component string
}

func NewLogger(component string) *Logger {
	return &Logger{component: component}
}

func (l *Logger) GetComponent() string {
	return l.component
}

// With returns a logger whose component id is suffixed, e.g. "session/abc123".
func (l *Logger) With(sub string) *Logger {
	return &Logger{component: l.component + "/" + sub}
}

func (l *Logger) Debug(format string, args ...any) {
	if !IsDebugEnabled() {
		return
	}
	write(l.component, LevelDebug, fmt.Sprintf(format, args...))
}

func (l *Logger) Info(format string, args ...any) {
	write(l.component, LevelInfo, fmt.Sprintf(format, args...))
}

func (l *Logger) Warn(format string, args ...any) {
	write(l.component, LevelWarn, fmt.Sprintf(format, args...))
}

func (l *Logger) Error(format string, args ...any) {
	write(l.component, LevelError, fmt.Sprintf(format, args...))
}

// WithComponent stores a component id on ctx for Debug.
func WithComponent(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ComponentKey, id)
}

// Debug logs a debug message with context and domain filtering.
//
//	DEBUG=1                          # all domains
//	DEBUG=1 DEBUG_DOMAINS=invoker    # only the invoker domain
func Debug(ctx context.Context, domain, format string, args ...any) {
	if !IsDebugEnabledForDomain(domain) {
		return
	}

	component := "unknown"
	if ctx != nil {
		if id, ok := ctx.Value(ComponentKey).(string); ok && id != "" {
			component = id
		}
	}
	write(component, LevelDebug, fmt.Sprintf("[%s] %s", domain, fmt.Sprintf(format, args...)))
}

var defaultLogger = NewLogger("system")

func Infof(format string, args ...any) {
	defaultLogger.Info(format, args...)
}

func Warnf(format string, args ...any) {
	defaultLogger.Warn(format, args...)
}

// Errorf logs and returns the formatted error.
//
//	err := logx.Errorf("setup failed: %w", err)
func Errorf(format string, args ...any) error {
	err := fmt.Errorf(format, args...)
	defaultLogger.Error("%s", err.Error())
	return err
}

// Wrap logs msg + ": " + err.Error() and returns fmt.Errorf("%s: %w", msg, err).
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	wrapped := fmt.Errorf("%s: %w", msg, err)
	defaultLogger.Error("%s", wrapped.Error())
	return wrapped
}
