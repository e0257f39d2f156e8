package main

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"werewolfsim/internal/game"
)

func testConfig() AppConfig {
	cfg := defaultConfig()
	cfg.Controls = controlRandom
	cfg.Shuffle = false
	cfg.QueryTimeout = 2 * time.Second
	cfg.DiscussionRounds = 1
	cfg.MaxCycles = 20
	return cfg
}

func playTable(t *testing.T, cfg AppConfig, teller Storyteller) *table {
	t.Helper()
	tb, err := setupTable(cfg, teller, nil)
	if err != nil {
		t.Fatalf("setupTable: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	winner, err := tb.play(ctx, cfg, slog.New(slog.DiscardHandler))
	g, gerr := tb.transcript.Game()
	if gerr != nil {
		t.Fatalf("Game: %v", gerr)
	}
	switch {
	case errors.Is(err, game.ErrCycleLimit):
		if g.Status != "aborted" {
			t.Errorf("stopped game has status %q", g.Status)
		}
	case err != nil:
		t.Fatalf("play: %v", err)
	default:
		if g.Status != "finished" || g.Winner != string(winner) {
			t.Errorf("game = %+v, winner %s", g, winner)
		}
	}
	return tb
}

// ============================================================================
// Whole games
// ============================================================================

func TestRandomTablePlaysToTheEnd(t *testing.T) {
	ctx := newTestContext(t)
	tb := playTable(t, testConfig(), nil)

	history, err := tb.transcript.PublicHistory(len(tb.plans))
	if err != nil {
		t.Fatalf("PublicHistory: %v", err)
	}
	if len(history) == 0 {
		t.Fatal("no public messages stored")
	}
	ctx.logger.Debug("game %s: %d public messages", tb.transcript.UUID, len(history))

	seats, err := tb.transcript.Seats()
	if err != nil {
		t.Fatalf("Seats: %v", err)
	}
	for _, s := range seats {
		if s.IsAlive != (s.DeathCauses == "") {
			t.Errorf("seat %d alive=%v causes=%q", s.Seat, s.IsAlive, s.DeathCauses)
		}
	}
}

func TestTableRejectsBadControls(t *testing.T) {
	newTestContext(t)
	cfg := testConfig()
	cfg.Controls = "ai,ws"
	if _, err := setupTable(cfg, nil, nil); err == nil {
		t.Fatal("expected an error for two controls on nine seats")
	}
}

func TestTableWithoutProviderFailsOnAISeat(t *testing.T) {
	newTestContext(t)
	cfg := testConfig()
	cfg.Controls = controlAI
	tb, err := setupTable(cfg, nil, nil)
	if err != nil {
		t.Fatalf("setupTable: %v", err)
	}
	_, err = tb.play(context.Background(), cfg, slog.New(slog.DiscardHandler))
	if !errors.Is(err, game.ErrUnknownControl) {
		t.Fatalf("err = %v, want ErrUnknownControl", err)
	}
	g, _ := tb.transcript.Game()
	if g.Status != "aborted" {
		t.Errorf("status = %q", g.Status)
	}
}

func TestStorytellerNarratesEachDeadlyNight(t *testing.T) {
	newTestContext(t)
	teller := &fakeTeller{story: "Blood on the snow."}
	tb := playTable(t, testConfig(), teller)

	var deadlyNights, stories int
	err := db.Get(&deadlyNights, `
		SELECT COUNT(DISTINCT a.cycle) FROM game_action a
		WHERE a.game_id = ? AND a.action_type = ? AND a.phase = 'night'
		AND EXISTS (SELECT 1 FROM game_message m
			WHERE m.game_id = a.game_id AND m.cycle = a.cycle AND m.phase = 'day' AND m.source = ?)`,
		tb.transcript.GameID, game.EventDeath, game.ModeratorSource)
	if err != nil {
		t.Fatalf("count nights: %v", err)
	}
	err = db.Get(&stories, "SELECT COUNT(*) FROM game_message WHERE game_id = ? AND source = ?",
		tb.transcript.GameID, StorytellerSource)
	if err != nil {
		t.Fatalf("count stories: %v", err)
	}
	if stories != deadlyNights || len(teller.history) != deadlyNights {
		t.Fatalf("%d stories, %d calls for %d deadly nights", stories, len(teller.history), deadlyNights)
	}
}
