package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"werewolfsim/internal/game"
)

// AppConfig holds all simulator configuration.
// Priority (lowest → highest): defaults < .env file < env vars < JSON config file < CLI flags.
type AppConfig struct {
	// Storage and hub
	DB       string `json:"db" env:"DB"`               // database connection string
	DBDriver string `json:"db_driver" env:"DB_DRIVER"` // sqlite3 (cgo) | sqlite (pure Go)
	Dev      bool   `json:"dev" env:"DEV"`             // dev mode: verbose logging, db dumps on errors
	Addr     string `json:"addr" env:"ADDR"`           // websocket listen address, used when a seat is "ws"

	// Logging (extended diagnostics, off by default)
	LogOutputDir  string `json:"log_output_dir" env:"LOG_OUTPUT_DIR"`
	LogPrompts    bool   `json:"log_prompts" env:"LOG_PROMPTS"`
	LogTranscript bool   `json:"log_transcript" env:"LOG_TRANSCRIPT"`
	LogDB         bool   `json:"log_db" env:"LOG_DB"`
	LogWS         bool   `json:"log_ws" env:"LOG_WS"`
	LogDebug      bool   `json:"log_debug" env:"LOG_DEBUG"`

	// LLM provider shared by AI seats and the storyteller
	LLMProvider    string  `json:"llm_provider" env:"LLM_PROVIDER"`       // ollama | openai | claude | gemini | groq | openai-compatible
	LLMModel       string  `json:"llm_model" env:"LLM_MODEL"`             // model name
	LLMOllamaURL   string  `json:"llm_ollama_url" env:"LLM_OLLAMA_URL"`   // Ollama server URL
	LLMURL         string  `json:"llm_url" env:"LLM_URL"`                 // base URL for openai-compatible
	LLMAPIKey      string  `json:"llm_api_key" env:"LLM_API_KEY"`         // API key for openai-compatible
	LLMTemperature string  `json:"llm_temperature" env:"LLM_TEMPERATURE"` // float 0-1 as string
	LLMThinking    string  `json:"llm_thinking" env:"LLM_THINKING"`       // none | low | medium | high | auto
	GroqAPIKey     string  `json:"groq_api_key" env:"GROQ_API_KEY"`       // API key for groq provider
	LLMRatePerMin  float64 `json:"llm_rate_per_min" env:"LLM_RATE_PER_MIN"`
	LLMTokenBudget int     `json:"llm_token_budget" env:"LLM_TOKEN_BUDGET"` // history tokens kept per AI prompt
	LLMRetries     uint    `json:"llm_retries" env:"LLM_RETRIES"`
	Storyteller    bool    `json:"storyteller" env:"STORYTELLER"` // narrate each dawn

	// Game
	Roster           string        `json:"roster" env:"ROSTER"`     // e.g. "villager*3,werewolf*3,seer,witch,hunter"
	Controls         string        `json:"controls" env:"CONTROLS"` // one control for all seats, or one per seat
	Names            string        `json:"names" env:"NAMES"`       // optional comma separated seat names
	Shuffle          bool          `json:"shuffle" env:"SHUFFLE"`   // shuffle roles onto seats
	WinMode          string        `json:"win_mode" env:"WIN_MODE"`
	ElectionRounds   int           `json:"election_rounds" env:"ELECTION_ROUNDS"`
	AllowExposure    bool          `json:"allow_exposure" env:"ALLOW_EXPOSURE"`
	QueryTimeout     time.Duration `json:"query_timeout" env:"QUERY_TIMEOUT"`
	DiscussionRounds int           `json:"discussion_rounds" env:"DISCUSSION_ROUNDS"`
	MaxCycles        int           `json:"max_cycles" env:"MAX_CYCLES"`
}

func (cfg AppConfig) toLogConfig() LogConfig {
	return LogConfig{
		OutputDir:     cfg.LogOutputDir,
		LogPrompts:    cfg.LogPrompts,
		LogTranscript: cfg.LogTranscript,
		LogDB:         cfg.LogDB,
		LogWS:         cfg.LogWS,
		Debug:         cfg.LogDebug,
	}
}

func defaultConfig() AppConfig {
	d := game.DefaultConfig()
	return AppConfig{
		DB:               "file::memory:?cache=shared",
		DBDriver:         "sqlite3",
		Addr:             ":8080",
		LLMOllamaURL:     "http://localhost:11434",
		LLMRatePerMin:    30,
		LLMTokenBudget:   6000,
		LLMRetries:       3,
		Roster:           "villager*3,werewolf*3,seer,witch,hunter",
		Controls:         controlRandom,
		Shuffle:          true,
		WinMode:          string(d.WinMode),
		ElectionRounds:   d.ElectionRounds,
		QueryTimeout:     d.QueryTimeout,
		DiscussionRounds: d.DiscussionRounds,
		MaxCycles:        20,
	}
}

// loadConfig builds a config by layering: defaults → .env → env vars → JSON config file.
// CLI flag overrides are applied separately by flagValues.applyTo after flag.Parse.
func loadConfig(configPath string) (AppConfig, error) {
	cfg := defaultConfig()

	// Layer 1: .env never overrides variables already set in the environment
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Config: failed to read .env: %v", err)
	}

	// Layer 2: env vars, unset ones leave the defaults alone
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}

	// Layer 3: JSON config file, only fields present in the file override env vars
	if data, err := os.ReadFile(configPath); err == nil {
		var overlay map[string]json.RawMessage
		if err := json.Unmarshal(data, &overlay); err != nil {
			log.Printf("Config: failed to parse %s: %v", configPath, err)
		} else {
			if err := applyJSONOverlay(&cfg, overlay); err != nil {
				return cfg, fmt.Errorf("config %s: %w", configPath, err)
			}
			log.Printf("Config: loaded from %s", configPath)
		}
	} else if !os.IsNotExist(err) {
		log.Printf("Config: failed to read %s: %v", configPath, err)
	}

	return cfg, nil
}

// applyJSONOverlay only sets fields that are explicitly present in the JSON map.
func applyJSONOverlay(cfg *AppConfig, m map[string]json.RawMessage) error {
	var errs []error
	set := func(key string, dst any) {
		if v, ok := m[key]; ok {
			if err := json.Unmarshal(v, dst); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
			}
		}
	}
	set("db", &cfg.DB)
	set("db_driver", &cfg.DBDriver)
	set("dev", &cfg.Dev)
	set("addr", &cfg.Addr)
	set("log_output_dir", &cfg.LogOutputDir)
	set("log_prompts", &cfg.LogPrompts)
	set("log_transcript", &cfg.LogTranscript)
	set("log_db", &cfg.LogDB)
	set("log_ws", &cfg.LogWS)
	set("log_debug", &cfg.LogDebug)
	set("llm_provider", &cfg.LLMProvider)
	set("llm_model", &cfg.LLMModel)
	set("llm_ollama_url", &cfg.LLMOllamaURL)
	set("llm_url", &cfg.LLMURL)
	set("llm_api_key", &cfg.LLMAPIKey)
	set("llm_temperature", &cfg.LLMTemperature)
	set("llm_thinking", &cfg.LLMThinking)
	set("groq_api_key", &cfg.GroqAPIKey)
	set("llm_rate_per_min", &cfg.LLMRatePerMin)
	set("llm_token_budget", &cfg.LLMTokenBudget)
	set("llm_retries", &cfg.LLMRetries)
	set("storyteller", &cfg.Storyteller)
	set("roster", &cfg.Roster)
	set("controls", &cfg.Controls)
	set("names", &cfg.Names)
	set("shuffle", &cfg.Shuffle)
	set("win_mode", &cfg.WinMode)
	set("election_rounds", &cfg.ElectionRounds)
	set("allow_exposure", &cfg.AllowExposure)
	set("discussion_rounds", &cfg.DiscussionRounds)
	set("max_cycles", &cfg.MaxCycles)
	if v, ok := m["query_timeout"]; ok {
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			errs = append(errs, fmt.Errorf("query_timeout: %w", err))
		} else if d, err := time.ParseDuration(s); err != nil {
			errs = append(errs, fmt.Errorf("query_timeout: %w", err))
		} else {
			cfg.QueryTimeout = d
		}
	}
	return errors.Join(errs...)
}

// parseRoster expands "kind*count" entries, e.g. "villager*3,seer".
func parseRoster(s string) ([]game.Kind, error) {
	var out []game.Kind
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, count, found := strings.Cut(part, "*")
		n := 1
		if found {
			var err error
			if n, err = strconv.Atoi(strings.TrimSpace(count)); err != nil || n < 1 {
				return nil, fmt.Errorf("roster entry %q: bad count", part)
			}
		}
		k, err := game.ParseKind(strings.ToLower(strings.TrimSpace(name)))
		if err != nil {
			return nil, fmt.Errorf("roster entry %q: %w", part, err)
		}
		for i := 0; i < n; i++ {
			out = append(out, k)
		}
	}
	if len(out) == 0 {
		return nil, errors.New("roster is empty")
	}
	return out, nil
}

// gameConfig turns the app settings into the engine configuration. roster is the
// already seated role order.
func (cfg AppConfig) gameConfig(roster []game.Kind, names []string) game.Config {
	return game.Config{
		Roster:           roster,
		Names:            names,
		WinMode:          game.WinMode(cfg.WinMode),
		ElectionRounds:   cfg.ElectionRounds,
		AllowExposure:    cfg.AllowExposure,
		QueryTimeout:     cfg.QueryTimeout,
		DiscussionRounds: cfg.DiscussionRounds,
		MaxCycles:        cfg.MaxCycles,
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// flagValues holds pointers to all registered CLI flags.
type flagValues struct {
	configPath       *string
	db               *string
	dbDriver         *string
	dev              *bool
	addr             *string
	logOutputDir     *string
	logPrompts       *bool
	logTranscript    *bool
	logDB            *bool
	logWS            *bool
	logDebug         *bool
	llmProvider      *string
	llmModel         *string
	llmOllamaURL     *string
	llmURL           *string
	llmAPIKey        *string
	llmTemperature   *string
	llmThinking      *string
	groqAPIKey       *string
	storyteller      *bool
	roster           *string
	controls         *string
	names            *string
	shuffle          *bool
	winMode          *string
	electionRounds   *int
	allowExposure    *bool
	queryTimeout     *time.Duration
	discussionRounds *int
	maxCycles        *int
}

// registerFlags registers all CLI flags on fs and returns pointers to their values.
// Call fs.Parse after this, then applyTo to layer them over the loaded config.
func registerFlags(fs *flag.FlagSet) flagValues {
	return flagValues{
		configPath:       fs.String("config", "config.json", "path to JSON config file"),
		db:               fs.String("db", "", "database connection string"),
		dbDriver:         fs.String("db-driver", "", "database driver (sqlite3|sqlite)"),
		dev:              fs.Bool("dev", false, "enable development mode (verbose logging, db dumps on error)"),
		addr:             fs.String("addr", "", "websocket listen address (e.g. :8080)"),
		logOutputDir:     fs.String("log-output-dir", "", "directory for extended log files"),
		logPrompts:       fs.Bool("log-prompts", false, "log every prompt sent to an AI seat"),
		logTranscript:    fs.Bool("log-transcript", false, "write the game transcript to a file"),
		logDB:            fs.Bool("log-db", false, "log database dumps"),
		logWS:            fs.Bool("log-ws", false, "log WebSocket messages"),
		logDebug:         fs.Bool("log-debug", false, "enable debug logging"),
		llmProvider:      fs.String("llm-provider", "", "LLM provider (ollama|openai|claude|gemini|groq|openai-compatible)"),
		llmModel:         fs.String("llm-model", "", "LLM model name"),
		llmOllamaURL:     fs.String("llm-ollama-url", "", "Ollama server URL"),
		llmURL:           fs.String("llm-url", "", "base URL for openai-compatible provider"),
		llmAPIKey:        fs.String("llm-api-key", "", "API key for the LLM provider"),
		llmTemperature:   fs.String("llm-temperature", "", "sampling temperature 0-1"),
		llmThinking:      fs.String("llm-thinking", "", "thinking mode: none|low|medium|high|auto"),
		groqAPIKey:       fs.String("groq-api-key", "", "Groq API key"),
		storyteller:      fs.Bool("storyteller", false, "narrate each dawn with the LLM"),
		roster:           fs.String("roster", "", `roles, e.g. "villager*3,werewolf*3,seer,witch,hunter"`),
		controls:         fs.String("controls", "", "seat controls: ai|ws|random, one for all or one per seat"),
		names:            fs.String("names", "", "comma separated seat names"),
		shuffle:          fs.Bool("shuffle", true, "shuffle roles onto seats"),
		winMode:          fs.String("win-mode", "", "werewolf win condition (all|partial)"),
		electionRounds:   fs.Int("election-rounds", 0, "sheriff election rounds"),
		allowExposure:    fs.Bool("allow-exposure", false, "let werewolves reveal themselves to end the day"),
		queryTimeout:     fs.Duration("query-timeout", 0, "time a seat has to answer before it abstains"),
		discussionRounds: fs.Int("discussion-rounds", 0, "discussion rounds per day"),
		maxCycles:        fs.Int("max-cycles", 0, "stop after this many night/day cycles (0 = no limit)"),
	}
}

// applyTo overlays any CLI flags that were explicitly set onto cfg.
// Flags that were not passed on the command line are ignored (env/JSON values win).
func (fv flagValues) applyTo(fs *flag.FlagSet, cfg *AppConfig) {
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "db":
			cfg.DB = *fv.db
		case "db-driver":
			cfg.DBDriver = *fv.dbDriver
		case "dev":
			cfg.Dev = *fv.dev
		case "addr":
			cfg.Addr = *fv.addr
		case "log-output-dir":
			cfg.LogOutputDir = *fv.logOutputDir
		case "log-prompts":
			cfg.LogPrompts = *fv.logPrompts
		case "log-transcript":
			cfg.LogTranscript = *fv.logTranscript
		case "log-db":
			cfg.LogDB = *fv.logDB
		case "log-ws":
			cfg.LogWS = *fv.logWS
		case "log-debug":
			cfg.LogDebug = *fv.logDebug
		case "llm-provider":
			cfg.LLMProvider = *fv.llmProvider
		case "llm-model":
			cfg.LLMModel = *fv.llmModel
		case "llm-ollama-url":
			cfg.LLMOllamaURL = *fv.llmOllamaURL
		case "llm-url":
			cfg.LLMURL = *fv.llmURL
		case "llm-api-key":
			cfg.LLMAPIKey = *fv.llmAPIKey
		case "llm-temperature":
			cfg.LLMTemperature = *fv.llmTemperature
		case "llm-thinking":
			cfg.LLMThinking = *fv.llmThinking
		case "groq-api-key":
			cfg.GroqAPIKey = *fv.groqAPIKey
		case "storyteller":
			cfg.Storyteller = *fv.storyteller
		case "roster":
			cfg.Roster = *fv.roster
		case "controls":
			cfg.Controls = *fv.controls
		case "names":
			cfg.Names = *fv.names
		case "shuffle":
			cfg.Shuffle = *fv.shuffle
		case "win-mode":
			cfg.WinMode = *fv.winMode
		case "election-rounds":
			cfg.ElectionRounds = *fv.electionRounds
		case "allow-exposure":
			cfg.AllowExposure = *fv.allowExposure
		case "query-timeout":
			cfg.QueryTimeout = *fv.queryTimeout
		case "discussion-rounds":
			cfg.DiscussionRounds = *fv.discussionRounds
		case "max-cycles":
			cfg.MaxCycles = *fv.maxCycles
		}
	})
}
