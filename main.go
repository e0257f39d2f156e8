package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"werewolfsim/internal/game"
)

var devMode bool

// logError logs an error with context and dumps the database in dev mode
func logError(context string, err error) {
	log.Printf("ERROR [%s]: %v", context, err)
	if devMode {
		LogDBState("error: " + context)
	}
}

// table is everything one game needs besides the engine itself.
type table struct {
	plans      []SeatPlan
	transcript *Transcript
	hub        *Hub
	chooser    game.Chooser
	out        game.Broadcaster
	rec        game.Recorder
	shutdown   func(context.Context) error
}

// setupTable seats the roster, opens the transcript and connects every seat to
// its control. teller and ai are nil when no LLM provider is configured.
func setupTable(cfg AppConfig, teller Storyteller, ai *aiSeats) (*table, error) {
	roster, err := parseRoster(cfg.Roster)
	if err != nil {
		return nil, err
	}
	plans, err := planSeats(roster, splitList(cfg.Controls), splitList(cfg.Names), cfg.Shuffle)
	if err != nil {
		return nil, err
	}
	t := &table{plans: plans, shutdown: func(context.Context) error { return nil }}

	t.transcript, err = newTranscript(db, plans)
	if err != nil {
		return nil, fmt.Errorf("open transcript: %w", err)
	}

	choosers := map[string]game.Chooser{controlRandom: newRandomBot(uint64(time.Now().UnixNano()))}
	out := fanout{t.transcript, logSink{}}
	if ai != nil {
		for _, s := range seatsWith(plans, controlAI) {
			ai.addSeat(s)
		}
		choosers[controlAI] = ai
		out = append(out, ai)
	}
	if len(seatsWith(plans, controlWS)) > 0 {
		gameID := t.transcript.GameID
		t.hub = newHub(
			func(code string) (game.Seat, error) { return seatForCode(db, gameID, code) },
			t.transcript.MessagesFor,
			t.transcript.VisibleActions,
		)
		t.shutdown, err = t.hub.serve(cfg.Addr)
		if err != nil {
			return nil, err
		}
		choosers[controlWS] = t.hub
		out = append(out, t.hub)
	}
	announceSeats(plans, cfg.Addr)

	t.chooser = newRouter(plans, choosers)
	t.out = out
	t.rec = t.transcript
	if teller != nil {
		n := newNarrator(teller, out, len(plans))
		t.out = n
		t.rec = recorders{t.transcript, n}
	}
	return t, nil
}

// play runs one game to the end and closes its transcript.
func (t *table) play(ctx context.Context, cfg AppConfig, logger *slog.Logger) (game.Faction, error) {
	g, err := game.New(cfg.gameConfig(seatedRoster(t.plans), seatedNames(t.plans)), t.chooser, t.out,
		game.WithRecorder(t.rec), game.WithLogger(logger))
	if err != nil {
		return game.FactionUndecided, err
	}
	winner, err := g.Run(ctx)
	if err != nil {
		if ferr := t.transcript.Finish("aborted", "", g.Clock.Cycle); ferr != nil {
			logError("play: finish transcript", ferr)
		}
		return winner, err
	}
	LogDBState("after game " + t.transcript.UUID)
	return winner, nil
}

func main() {
	fv := registerFlags(flag.CommandLine)
	flag.Parse()

	cfg, err := loadConfig(*fv.configPath)
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	fv.applyTo(flag.CommandLine, &cfg)
	devMode = cfg.Dev

	// Set up logging to both stdout and file
	logFile, err := os.OpenFile("werewolf.log", os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		log.Fatal("Failed to open log file:", err)
	}
	defer logFile.Close()
	logOut := io.MultiWriter(os.Stdout, logFile)
	log.SetOutput(logOut)
	engineLog := newEngineLogger(logOut, cfg.LogDebug || cfg.Dev)

	if err := InitAppLogger(cfg.toLogConfig()); err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer CloseAppLogger()

	if appLogger.IsEnabled() {
		log.Println("Extended logging enabled")
	}

	db, err = openDB(cfg.DBDriver, cfg.DB)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()

	if err := initDB(); err != nil {
		log.Fatal("Failed to initialize database:", err)
	}

	LogDBState("after initDB")

	var teller Storyteller
	var ai *aiSeats
	if cfg.LLMProvider != "" {
		model, err := newLLM(cfg)
		if err != nil {
			log.Fatal("Failed to initialize LLM:", err)
		}
		ai = newAISeats(model, cfg, nil, newTokenCounter())
		if cfg.Storyteller {
			teller = &llmStoryteller{llm: model, systemPrompt: storytellerSystemPrompt, callOpts: buildCallOpts(cfg)}
		}
	} else {
		log.Printf("LLM: disabled (set llm_provider to enable AI seats and the storyteller)")
	}

	t, err := setupTable(cfg, teller, ai)
	if err != nil {
		log.Fatal("Failed to set up table:", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	winner, err := t.play(ctx, cfg, engineLog)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if serr := t.shutdown(shutdownCtx); serr != nil {
		logError("main: hub shutdown", serr)
	}

	switch {
	case errors.Is(err, game.ErrCycleLimit):
		log.Printf("Game %s stopped without a winner: %v", t.transcript.UUID, err)
	case err != nil:
		log.Fatal("Game failed: ", err)
	default:
		log.Printf("Game %s finished: %s win", t.transcript.UUID, winner)
	}
}
