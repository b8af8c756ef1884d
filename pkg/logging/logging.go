// pkg/logging/logging.go - leveled, structured logging for the app store.
//
// Every session writes to a timestamped directory under the configured base
// directory:
// - appstore.log   plain text, one line per entry with key=value pairs
// - events.jsonl   one JSON object per entry (optional)
// - events.yaml    YAML document stream (optional)

package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// LogLevel represents the severity of the log message.
type LogLevel int

const (
	LevelError LogLevel = iota
	LevelWarn
	LevelInfo
	LevelDebug
)

// String returns the string representation of the LogLevel.
func (ll LogLevel) String() string {
	switch ll {
	case LevelError:
		return "ERROR"
	case LevelWarn:
		return "WARN"
	case LevelInfo:
		return "INFO"
	case LevelDebug:
		return "DEBUG"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps a level name to a LogLevel. Unknown names yield LevelInfo.
func ParseLevel(name string) LogLevel {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "ERROR":
		return LevelError
	case "WARN", "WARNING":
		return LevelWarn
	case "DEBUG":
		return LevelDebug
	default:
		return LevelInfo
	}
}

// LevelForVerbosity maps the number of -v flags to a level.
// 0 => ERROR, 1 => WARN, 2 => INFO, 3+ => DEBUG
func LevelForVerbosity(verbosity int) LogLevel {
	switch {
	case verbosity <= 0:
		return LevelError
	case verbosity == 1:
		return LevelWarn
	case verbosity == 2:
		return LevelInfo
	default:
		return LevelDebug
	}
}

// LogEntry is the structured form of a single log call.
type LogEntry struct {
	Time       int64                  `json:"time" yaml:"time"`
	Timestamp  string                 `json:"timestamp" yaml:"timestamp"`
	Level      string                 `json:"level" yaml:"level"`
	Message    string                 `json:"message" yaml:"message"`
	Component  string                 `json:"component" yaml:"component"`
	PID        int64                  `json:"pid" yaml:"pid"`
	Hostname   string                 `json:"hostname" yaml:"hostname"`
	SessionID  string                 `json:"session_id" yaml:"session_id"`
	Properties map[string]interface{} `json:"properties,omitempty" yaml:"properties,omitempty"`
}

// LoggerConfig holds configuration for the logger.
type LoggerConfig struct {
	BaseDir       string    // Base logging directory; empty disables file output
	Component     string    // Component/module name
	Level         LogLevel  // Minimum level written
	KeepSessions  int       // Number of session directories kept (0 = keep all)
	EnableJSON    bool      // Write events.jsonl
	EnableYAML    bool      // Write events.yaml
	EnableConsole bool      // Mirror the text log to Console
	Console       io.Writer // Defaults to os.Stderr
}

// Logger encapsulates the logging state.
type Logger struct {
	mu        sync.RWMutex
	logger    *log.Logger
	logLevel  LogLevel
	logFile   *os.File
	jsonFile  *os.File
	yamlFile  *os.File
	config    LoggerConfig
	logDir    string
	hostname  string
	sessionID string
}

var (
	instance *Logger
	once     sync.Once
	initMu   sync.Mutex
)

// Init initializes the package logger. Only the first call has an effect;
// use ReInit to replace a running logger.
func Init(cfg LoggerConfig) error {
	var initErr error
	once.Do(func() {
		initMu.Lock()
		defer initMu.Unlock()
		instance, initErr = newLogger(cfg)
	})
	return initErr
}

// ReInit closes the current logger and creates a new one from cfg.
func ReInit(cfg LoggerConfig) error {
	CloseLogger()
	l, err := newLogger(cfg)
	if err != nil {
		return err
	}
	once.Do(func() {})
	initMu.Lock()
	instance = l
	initMu.Unlock()
	return nil
}

func generateSessionID(start time.Time) string {
	return fmt.Sprintf("appstore-%d", start.UnixNano())
}

func newLogger(cfg LoggerConfig) (*Logger, error) {
	start := time.Now()
	if cfg.Component == "" {
		cfg.Component = "appstore"
	}
	if cfg.Console == nil {
		cfg.Console = os.Stderr
	}

	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "unknown"
	}

	l := &Logger{
		logLevel:  cfg.Level,
		config:    cfg,
		hostname:  hostname,
		sessionID: generateSessionID(start),
	}

	var writers []io.Writer
	if cfg.BaseDir != "" {
		logDir := filepath.Join(cfg.BaseDir, start.Format("2006-01-02-150405"))
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory %s: %w", logDir, err)
		}
		l.logDir = logDir
		if err := l.openFiles(); err != nil {
			l.closeFiles()
			return nil, err
		}
		writers = append(writers, l.logFile)
		if cfg.KeepSessions > 0 {
			pruneSessions(cfg.BaseDir, cfg.KeepSessions)
		}
	}
	if cfg.EnableConsole {
		writers = append(writers, cfg.Console)
	}
	if len(writers) == 0 {
		writers = append(writers, io.Discard)
	}
	l.logger = log.New(io.MultiWriter(writers...), "", 0)
	return l, nil
}

func (l *Logger) openFiles() error {
	var err error
	l.logFile, err = os.OpenFile(filepath.Join(l.logDir, "appstore.log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open main log file: %w", err)
	}
	if l.config.EnableJSON {
		l.jsonFile, err = os.OpenFile(filepath.Join(l.logDir, "events.jsonl"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("failed to open JSON log file: %w", err)
		}
	}
	if l.config.EnableYAML {
		l.yamlFile, err = os.OpenFile(filepath.Join(l.logDir, "events.yaml"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("failed to open YAML log file: %w", err)
		}
	}
	return nil
}

func (l *Logger) closeFiles() {
	for _, f := range []**os.File{&l.logFile, &l.jsonFile, &l.yamlFile} {
		if *f != nil {
			if err := (*f).Close(); err != nil {
				fmt.Fprintf(os.Stderr, "Failed to close log file: %v\n", err)
			}
			*f = nil
		}
	}
}

// pruneSessions removes the oldest session directories beyond keep.
func pruneSessions(baseDir string, keep int) {
	entries, err := os.ReadDir(baseDir)
	if err != nil {
		return
	}
	var dirs []string
	for _, e := range entries {
		// YYYY-MM-DD-HHMMss
		if e.IsDir() && len(e.Name()) == 17 && strings.Count(e.Name(), "-") == 3 {
			dirs = append(dirs, e.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(dirs)))
	for i := keep; i < len(dirs); i++ {
		os.RemoveAll(filepath.Join(baseDir, dirs[i]))
	}
}

// CloseLogger closes all log files if they're open.
func CloseLogger() {
	initMu.Lock()
	l := instance
	initMu.Unlock()
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closeFiles()
	l.logger = nil
}

// GetCurrentLogDir returns the session log directory, or "" when file logging is off.
func GetCurrentLogDir() string {
	initMu.Lock()
	defer initMu.Unlock()
	if instance == nil {
		return ""
	}
	return instance.logDir
}

// SetLevel changes the minimum level of the package logger.
func SetLevel(level LogLevel) {
	initMu.Lock()
	l := instance
	initMu.Unlock()
	if l == nil {
		return
	}
	l.mu.Lock()
	l.logLevel = level
	l.mu.Unlock()
}

func (l *Logger) createLogEntry(level LogLevel, message string, properties map[string]interface{}) LogEntry {
	now := time.Now()
	return LogEntry{
		Time:       now.Unix(),
		Timestamp:  now.Format(time.RFC3339),
		Level:      level.String(),
		Message:    message,
		Component:  l.config.Component,
		PID:        int64(os.Getpid()),
		Hostname:   l.hostname,
		SessionID:  l.sessionID,
		Properties: properties,
	}
}

// logMessage is the core logging method that writes to all configured outputs.
func (l *Logger) logMessage(level LogLevel, message string, keyValues ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.logger == nil {
		fmt.Printf("LOGGING NOT INITIALIZED: %s %s %v\n", level.String(), message, keyValues)
		return
	}
	if level > l.logLevel {
		return
	}

	properties := make(map[string]interface{})
	for i := 0; i+1 < len(keyValues); i += 2 {
		properties[fmt.Sprintf("%v", keyValues[i])] = stringifyErrors(keyValues[i+1])
	}

	entry := l.createLogEntry(level, message, properties)
	l.writeMainLog(entry, keyValues)
	if l.jsonFile != nil {
		if data, err := json.Marshal(entry); err == nil {
			l.jsonFile.Write(append(data, '\n'))
		}
	}
	if l.yamlFile != nil {
		if data, err := yaml.Marshal(entry); err == nil {
			l.yamlFile.WriteString("---\n" + string(data))
		}
	}
}

// errors carry no exported fields, so JSON would render them as {}.
func stringifyErrors(v interface{}) interface{} {
	if err, ok := v.(error); ok && err != nil {
		return err.Error()
	}
	return v
}

func (l *Logger) writeMainLog(entry LogEntry, keyValues []interface{}) {
	ts := time.Unix(entry.Time, 0).Format("2006-01-02 15:04:05")
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %-5s %s", ts, entry.Level, entry.Message)

	// Long key/value lists go one per line.
	multiline := len(keyValues)/2 > 4
	for i := 0; i+1 < len(keyValues); i += 2 {
		if multiline {
			fmt.Fprintf(&b, "\n        %v: %v", keyValues[i], keyValues[i+1])
		} else {
			fmt.Fprintf(&b, " %v=%v", keyValues[i], keyValues[i+1])
		}
	}
	l.logger.Println(b.String())
}

func current() *Logger {
	initMu.Lock()
	defer initMu.Unlock()
	return instance
}

func logAt(level LogLevel, message string, keyValues []interface{}) {
	l := current()
	if l == nil {
		fmt.Printf("LOGGING NOT INITIALIZED: %s %s %v\n", level.String(), message, keyValues)
		return
	}
	l.logMessage(level, message, keyValues...)
}

// Info logs informational messages.
func Info(message string, keyValues ...interface{}) {
	logAt(LevelInfo, message, keyValues)
}

// Debug logs debug messages.
func Debug(message string, keyValues ...interface{}) {
	logAt(LevelDebug, message, keyValues)
}

// Warn logs warnings.
func Warn(message string, keyValues ...interface{}) {
	logAt(LevelWarn, message, keyValues)
}

// Error logs errors.
func Error(message string, keyValues ...interface{}) {
	logAt(LevelError, message, keyValues)
}
