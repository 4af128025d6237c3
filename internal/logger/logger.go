// Package logger is the category logger used across the resale service.
// Every entry goes to a console writer (colored when attached to the service)
// and, for service loggers, as one JSON object per line to a daily file.
package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	FATAL
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR", "FATAL"}

func (l LogLevel) String() string {
	if l < DEBUG || l > FATAL {
		return "INFO"
	}
	return levelNames[l]
}

type palette struct {
	level    *color.Color
	category *color.Color
}

var palettes = map[LogLevel]palette{
	DEBUG: {color.New(color.FgCyan), color.New(color.FgCyan, color.Bold)},
	INFO:  {color.New(color.FgGreen), color.New(color.FgGreen, color.Bold)},
	WARN:  {color.New(color.FgYellow), color.New(color.FgYellow, color.Bold)},
	ERROR: {color.New(color.FgRed), color.New(color.FgRed, color.Bold)},
	FATAL: {color.New(color.FgRed, color.Bold), color.New(color.FgRed, color.Bold)},
}

var (
	clockColor  = color.New(color.FgBlue)
	callerColor = color.New(color.FgMagenta)
)

// Entry is the JSON line written to the log file.
type Entry struct {
	Time     time.Time `json:"timestamp"`
	Service  string    `json:"service,omitempty"`
	Level    string    `json:"level"`
	Category string    `json:"category"`
	Message  string    `json:"message"`
	Caller   string    `json:"caller,omitempty"`
}

type Logger struct {
	mu       sync.Mutex
	service  string
	console  io.Writer
	file     *os.File
	colored  bool
	minLevel LogLevel
}

// NewLogger logs to stdout and to <LOG_DIR>/<service>-<date>.log
// (LOG_DIR defaults to "logs"). The level comes from LOG_LEVEL.
func NewLogger(service string) *Logger {
	dir := os.Getenv("LOG_DIR")
	if dir == "" {
		dir = "logs"
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		log.Fatal("Failed to create logs directory:", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("%s-%s.log", service, time.Now().Format("2006-01-02")))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		log.Fatal("Failed to create log file:", err)
	}

	l := &Logger{
		service:  service,
		console:  os.Stdout,
		file:     file,
		colored:  true,
		minLevel: parseLevel(os.Getenv("LOG_LEVEL")),
	}
	l.Info("LOGGER", "Writing JSON log lines to "+path)
	return l
}

// NewConsoleLogger logs plain lines to w only. Used by CLIs and tests.
func NewConsoleLogger(w io.Writer) *Logger {
	if w == nil {
		w = io.Discard
	}
	return &Logger{console: w, minLevel: DEBUG}
}

func parseLevel(s string) LogLevel {
	for lvl, name := range levelNames {
		if strings.EqualFold(s, name) {
			return LogLevel(lvl)
		}
	}
	return INFO
}

func (l *Logger) log(level LogLevel, category, message string) {
	if l == nil || level < l.minLevel {
		return
	}

	entry := Entry{
		Time:     time.Now().UTC(),
		Service:  l.service,
		Level:    level.String(),
		Category: strings.ToUpper(category),
		Message:  message,
	}
	if _, file, line, ok := runtime.Caller(2); ok {
		entry.Caller = fmt.Sprintf("%s:%d", filepath.Base(file), line)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	fmt.Fprintln(l.console, l.consoleLine(level, entry))
	if l.file != nil {
		if raw, err := json.Marshal(entry); err == nil {
			l.file.Write(append(raw, '\n'))
		}
	}
}

func (l *Logger) consoleLine(level LogLevel, e Entry) string {
	clock := e.Time.Format("15:04:05")
	if !l.colored {
		return fmt.Sprintf("%s %-5s [%-10s] %s", clock, e.Level, e.Category, e.Message)
	}

	p := palettes[level]
	line := fmt.Sprintf("%s %s %s %s",
		clockColor.Sprint(clock),
		p.level.Sprintf("%-5s", e.Level),
		p.category.Sprintf("[%-10s]", e.Category),
		e.Message)
	if e.Caller != "" {
		line += callerColor.Sprintf(" (%s)", e.Caller)
	}
	return line
}

func (l *Logger) Debug(category, message string) { l.log(DEBUG, category, message) }
func (l *Logger) Info(category, message string)  { l.log(INFO, category, message) }
func (l *Logger) Warn(category, message string)  { l.log(WARN, category, message) }
func (l *Logger) Error(category, message string) { l.log(ERROR, category, message) }

// Fatal logs, closes the log file and exits.
func (l *Logger) Fatal(category, message string) {
	l.log(FATAL, category, message)
	l.Close()
	os.Exit(1)
}

// LogTransaction records an escrow step on a transaction.
func (l *Logger) LogTransaction(action, transactionID, message string) {
	l.Info("ESCROW", fmt.Sprintf("[%s] %s - %s", action, transactionID, message))
}

func (l *Logger) LogDispute(action, disputeID, message string) {
	l.Info("DISPUTE", fmt.Sprintf("[%s] %s - %s", action, disputeID, message))
}

func (l *Logger) LogListing(action, ticketID, message string) {
	l.Info("LISTING", fmt.Sprintf("[%s] %s - %s", action, ticketID, message))
}

func (l *Logger) LogAPI(method, path, status, duration string) {
	l.Info("API", fmt.Sprintf("%s %s - %s (%s)", method, path, status, duration))
}

func (l *Logger) LogKafka(action, topic, message string) {
	l.Info("KAFKA", fmt.Sprintf("[%s] %s - %s", action, topic, message))
}

// LogSecurity flags rejected tokens, failed codes and denied admin actions.
func (l *Logger) LogSecurity(event, message string) {
	l.Warn("SECURITY", fmt.Sprintf("[%s] %s", event, message))
}

func (l *Logger) Close() {
	if l == nil || l.file == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.file.Close()
	l.file = nil
}
