package main

import (
	"context"
	"os"
	"strings"
	"sync"
	"testing"

	"werewolfsim/internal/game"
)

// ============================================================================
// Test logger
// ============================================================================

// TestLogger wraps AppLogger for test use with testing.T integration
type TestLogger struct {
	*AppLogger
	t *testing.T
}

// NewTestLogger creates a test logger from the TEST_* environment variables
func NewTestLogger(t *testing.T) *TestLogger {
	al, err := NewAppLogger(LogConfig{
		OutputDir:     os.Getenv("TEST_OUTPUT_DIR"),
		LogPrompts:    os.Getenv("TEST_LOG_PROMPTS") == "1",
		LogTranscript: os.Getenv("TEST_LOG_TRANSCRIPT") == "1",
		LogDB:         os.Getenv("TEST_LOG_DB") == "1",
		LogWS:         os.Getenv("TEST_LOG_WS") == "1",
		Debug:         os.Getenv("TEST_DEBUG") == "1",
	})
	if err != nil {
		t.Fatalf("Failed to create test logger: %v", err)
	}
	t.Cleanup(al.Close)
	return &TestLogger{AppLogger: al, t: t}
}

// Debug logs a debug message using testing.T.Logf
func (tl *TestLogger) Debug(format string, args ...any) {
	if !tl.debug {
		return
	}
	tl.t.Logf("[DEBUG] "+format, args...)
}

// ============================================================================
// Test context
// ============================================================================

// TestContext holds a fresh in-memory database and the logger for one test.
// Tests using it must not run in parallel: db and appLogger are globals.
type TestContext struct {
	t      *testing.T
	logger *TestLogger
}

func newTestContext(t *testing.T) *TestContext {
	t.Helper()
	logger := NewTestLogger(t)

	conn, err := openDB("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	// Every connection to :memory: is its own database
	conn.SetMaxOpenConns(1)

	prevDB, prevLogger := db, appLogger
	db, appLogger = conn, logger.AppLogger
	t.Cleanup(func() {
		conn.Close()
		db, appLogger = prevDB, prevLogger
	})

	if err := initDB(); err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}
	logger.LogDB("after initDB")
	return &TestContext{t: t, logger: logger}
}

// plans seats the roster in order with one control for everyone.
func (ctx *TestContext) plans(control string, kinds ...game.Kind) []SeatPlan {
	ctx.t.Helper()
	plans, err := planSeats(kinds, []string{control}, nil, false)
	if err != nil {
		ctx.t.Fatalf("planSeats: %v", err)
	}
	return plans
}

func (ctx *TestContext) transcript(plans []SeatPlan) *Transcript {
	ctx.t.Helper()
	tr, err := newTranscript(db, plans)
	if err != nil {
		ctx.t.Fatalf("newTranscript: %v", err)
	}
	return tr
}

// ============================================================================
// Fakes
// ============================================================================

// board collects broadcasts.
type board struct {
	mu   sync.Mutex
	msgs []game.Message
}

func (b *board) Broadcast(m game.Message) {
	b.mu.Lock()
	b.msgs = append(b.msgs, m)
	b.mu.Unlock()
}

func (b *board) texts() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.msgs))
	for i, m := range b.msgs {
		out[i] = m.Text
	}
	return out
}

func (b *board) contains(substr string) bool {
	for _, text := range b.texts() {
		if strings.Contains(text, substr) {
			return true
		}
	}
	return false
}

// fixedChooser always gives the same answers.
type fixedChooser struct {
	one  string
	text string
}

func (f fixedChooser) ChooseOne(ctx context.Context, _ game.Seat, _ string, _ []string) (string, error) {
	return f.one, ctx.Err()
}

func (f fixedChooser) ChooseFreeText(ctx context.Context, _ game.Seat, _ string) (string, error) {
	return f.text, ctx.Err()
}

func everyone(n int) []game.Seat {
	out := make([]game.Seat, n)
	for i := range out {
		out[i] = game.Seat(i)
	}
	return out
}
