package main

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"werewolfsim/internal/game"
)

// AppLogger provides logging utilities for the simulator
// Used by both the binary and tests
type AppLogger struct {
	outputDir      string
	logPrompts     bool
	logTranscript  bool
	logDB          bool
	logWS          bool
	debug          bool
	promptLog      *os.File
	transcriptLog  *os.File
	dbLog          *os.File
	wsLog          *os.File
	mu             sync.Mutex
	promptCount    int
	wsMessageCount int
}

// Global application logger (used by the binary)
var appLogger *AppLogger

// LogConfig holds logging configuration
type LogConfig struct {
	OutputDir     string
	LogPrompts    bool
	LogTranscript bool
	LogDB         bool
	LogWS         bool
	Debug         bool
}

// NewAppLogger creates a new application logger
func NewAppLogger(config LogConfig) (*AppLogger, error) {
	al := &AppLogger{
		outputDir:     config.OutputDir,
		logPrompts:    config.LogPrompts,
		logTranscript: config.LogTranscript,
		logDB:         config.LogDB,
		logWS:         config.LogWS,
		debug:         config.Debug,
	}

	if al.outputDir == "" {
		return al, nil // No file logging, just in-memory state
	}
	if err := os.MkdirAll(al.outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log dir: %w", err)
	}

	open := func(enabled bool, name string, dst **os.File) error {
		if !enabled {
			return nil
		}
		f, err := os.OpenFile(filepath.Join(al.outputDir, name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", name, err)
		}
		*dst = f
		return nil
	}
	for _, l := range []struct {
		enabled bool
		name    string
		dst     **os.File
	}{
		{al.logPrompts, "prompts.log", &al.promptLog},
		{al.logTranscript, "transcript.log", &al.transcriptLog},
		{al.logDB, "database.log", &al.dbLog},
		{al.logWS, "websocket.log", &al.wsLog},
	} {
		if err := open(l.enabled, l.name, l.dst); err != nil {
			al.Close()
			return nil, err
		}
	}

	return al, nil
}

// InitAppLogger initializes the global application logger
func InitAppLogger(config LogConfig) error {
	var err error
	appLogger, err = NewAppLogger(config)
	return err
}

// Close closes all open log files
func (al *AppLogger) Close() {
	for _, f := range []*os.File{al.promptLog, al.transcriptLog, al.dbLog, al.wsLog} {
		if f != nil {
			f.Close()
		}
	}
}

// LogPrompt logs one exchange with an AI seat
func (al *AppLogger) LogPrompt(seat game.Seat, prompt, answer string) {
	if !al.logPrompts || al.promptLog == nil {
		return
	}

	al.mu.Lock()
	defer al.mu.Unlock()

	al.promptCount++
	timestamp := time.Now().Format("15:04:05.000")

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "\n========== PROMPT #%d [%s] seat %s ==========\n", al.promptCount, timestamp, seat)
	if len(prompt) > 10000 {
		buf.WriteString(prompt[len(prompt)-10000:])
		fmt.Fprintf(&buf, "\n... (head truncated, %d bytes total)\n", len(prompt))
	} else {
		buf.WriteString(prompt)
	}
	fmt.Fprintf(&buf, "\n--- Answer ---\n%s\n", answer)

	al.promptLog.Write(buf.Bytes())
}

// LogTranscript appends one broadcast to the transcript file
func (al *AppLogger) LogTranscript(msg game.Message) {
	if !al.logTranscript || al.transcriptLog == nil {
		return
	}

	al.mu.Lock()
	defer al.mu.Unlock()

	fmt.Fprintf(al.transcriptLog, "[%s] %s -> %s: %s\n", msg.At, msg.Source, audienceLabel(msg.Audience), msg.Text)
}

// LogWebSocket logs a WebSocket message
func (al *AppLogger) LogWebSocket(direction, seat, message string) {
	if !al.logWS || al.wsLog == nil {
		return
	}

	al.mu.Lock()
	defer al.mu.Unlock()

	al.wsMessageCount++
	timestamp := time.Now().Format("15:04:05.000")

	fmt.Fprintf(al.wsLog, "[%s] #%d %s [Seat %s]: %s\n",
		timestamp, al.wsMessageCount, direction, seat, message)
}

// LogDB dumps the current database state
func (al *AppLogger) LogDB(context string) {
	if !al.logDB || al.dbLog == nil || db == nil {
		return
	}

	al.mu.Lock()
	defer al.mu.Unlock()

	timestamp := time.Now().Format("15:04:05.000")

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "\n========== DATABASE DUMP [%s] ==========\n", timestamp)
	fmt.Fprintf(&buf, "Context: %s\n\n", context)

	var tables []string
	if err := db.Select(&tables, "SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%' ORDER BY name"); err != nil {
		fmt.Fprintf(&buf, "Error getting tables: %v\n", err)
		al.dbLog.Write(buf.Bytes())
		return
	}

	for _, table := range tables {
		fmt.Fprintf(&buf, "--- Table: %s ---\n", table)

		rows, err := db.Queryx("SELECT * FROM " + table)
		if err != nil {
			fmt.Fprintf(&buf, "Error: %v\n\n", err)
			continue
		}

		rowCount := 0
		for rows.Next() {
			rowCount++
			values, err := rows.SliceScan()
			if err != nil {
				fmt.Fprintf(&buf, "Error scanning row: %v\n", err)
				continue
			}

			rowStr := make([]string, len(values))
			for i, v := range values {
				switch val := v.(type) {
				case nil:
					rowStr[i] = "NULL"
				case []byte:
					rowStr[i] = string(val)
				default:
					rowStr[i] = fmt.Sprintf("%v", val)
				}
			}
			fmt.Fprintf(&buf, "Row %d: %s\n", rowCount, strings.Join(rowStr, " | "))
		}
		rows.Close()

		if rowCount == 0 {
			fmt.Fprintf(&buf, "(empty)\n")
		}
		buf.WriteString("\n")
	}

	al.dbLog.Write(buf.Bytes())
}

// Debug logs a debug message if debug mode is enabled
func (al *AppLogger) Debug(format string, args ...any) {
	if !al.debug {
		return
	}
	log.Printf("[DEBUG] "+format, args...)
}

// IsEnabled returns true if any logging is enabled
func (al *AppLogger) IsEnabled() bool {
	return al.logPrompts || al.logTranscript || al.logDB || al.logWS || al.debug
}

// newEngineLogger builds the structured logger handed to the game engine. It
// writes to the same place as the standard logger.
func newEngineLogger(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func audienceLabel(seats []game.Seat) string {
	if len(seats) == 1 {
		return "seat " + seats[0].String()
	}
	parts := make([]string, len(seats))
	for i, s := range seats {
		parts[i] = s.String()
	}
	return "seats " + strings.Join(parts, ",")
}

// ============================================================================
// Global helper functions
// ============================================================================

// LogWSMessage logs a WebSocket message using the global logger
func LogWSMessage(direction, seat, message string) {
	if appLogger != nil {
		appLogger.LogWebSocket(direction, seat, message)
	}
}

// LogDBState logs the database state using the global logger
func LogDBState(context string) {
	if appLogger != nil {
		appLogger.LogDB(context)
	}
}

// DebugLog logs a debug message using the global logger
func DebugLog(format string, args ...any) {
	if appLogger != nil {
		appLogger.Debug(format, args...)
	}
}

// CloseAppLogger closes the global application logger
func CloseAppLogger() {
	if appLogger != nil {
		appLogger.Close()
	}
}
