package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"werewolfsim/internal/game"
)

const storytellerSystemPrompt = `You are a dramatic storyteller for a medieval werewolf game. When players are killed, you tell a short atmospheric story about their fate. Keep it to 2-3 sentences. Be gothic and dramatic, fitting for a village plagued by werewolves.`

// StorytellerSource labels narration in the transcript.
const StorytellerSource = "Storyteller"

var errNoProvider = errors.New("no llm provider configured")

// Storyteller generates a dramatic story after deaths in the game.
// onChunk is called with each text chunk as it streams in.
type Storyteller interface {
	Tell(ctx context.Context, history []string, onChunk func(string)) (string, error)
}

type llmStoryteller struct {
	llm          llms.Model
	systemPrompt string
	callOpts     []llms.CallOption
}

func (s *llmStoryteller) Tell(ctx context.Context, history []string, onChunk func(string)) (string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, s.systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman,
			"Game history so far:\n"+strings.Join(history, "\n")+
				"\n\nTell a short dramatic story (2-3 sentences) about what happened to last night's victims."),
	}

	var fullText strings.Builder
	opts := append(s.callOpts, llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
		text := string(chunk)
		fullText.WriteString(text)
		if onChunk != nil {
			onChunk(text)
		}
		return nil
	}))

	_, err := s.llm.GenerateContent(ctx, messages, opts...)
	return strings.TrimSpace(fullText.String()), err
}

// buildCallOpts builds LLM call options from the config.
func buildCallOpts(cfg AppConfig) []llms.CallOption {
	var opts []llms.CallOption

	if cfg.LLMTemperature != "" {
		if f, err := strconv.ParseFloat(cfg.LLMTemperature, 64); err == nil {
			opts = append(opts, llms.WithTemperature(f))
		} else {
			log.Printf("LLM: invalid temperature %q: %v", cfg.LLMTemperature, err)
		}
	}

	if cfg.LLMThinking != "" {
		mode := llms.ThinkingMode(cfg.LLMThinking)
		switch mode {
		case llms.ThinkingModeNone, llms.ThinkingModeLow, llms.ThinkingModeMedium, llms.ThinkingModeHigh, llms.ThinkingModeAuto:
			opts = append(opts, llms.WithThinkingMode(mode))
		default:
			log.Printf("LLM: invalid thinking %q (valid: none, low, medium, high, auto)", cfg.LLMThinking)
		}
	}

	return opts
}

// newLLM builds the model shared by AI seats and the storyteller.
func newLLM(cfg AppConfig) (llms.Model, error) {
	model := cfg.LLMModel

	switch cfg.LLMProvider {
	case "ollama":
		llm, err := ollama.New(ollama.WithModel(model), ollama.WithServerURL(cfg.LLMOllamaURL))
		if err != nil {
			return nil, fmt.Errorf("init Ollama (%s at %s): %w", model, cfg.LLMOllamaURL, err)
		}
		log.Printf("LLM: Ollama model=%s url=%s", model, cfg.LLMOllamaURL)
		return llm, nil
	case "openai":
		llm, err := openai.New(openai.WithModel(model))
		if err != nil {
			return nil, fmt.Errorf("init OpenAI (%s): %w", model, err)
		}
		log.Printf("LLM: OpenAI model=%s", model)
		return llm, nil
	case "claude":
		llm, err := anthropic.New(anthropic.WithModel(model))
		if err != nil {
			return nil, fmt.Errorf("init Claude (%s): %w", model, err)
		}
		log.Printf("LLM: Claude model=%s", model)
		return llm, nil
	case "gemini":
		llm, err := googleai.New(context.Background(), googleai.WithDefaultModel(model))
		if err != nil {
			return nil, fmt.Errorf("init Gemini (%s): %w", model, err)
		}
		log.Printf("LLM: Gemini model=%s", model)
		return llm, nil
	case "groq":
		llm, err := openai.New(
			openai.WithModel(model),
			openai.WithBaseURL("https://api.groq.com/openai/v1"),
			openai.WithToken(cfg.GroqAPIKey),
		)
		if err != nil {
			return nil, fmt.Errorf("init Groq (%s): %w", model, err)
		}
		log.Printf("LLM: Groq model=%s", model)
		return llm, nil
	case "openai-compatible":
		if cfg.LLMURL == "" {
			return nil, errors.New("llm_url is required for openai-compatible provider")
		}
		opts := []openai.Option{
			openai.WithModel(model),
			openai.WithBaseURL(cfg.LLMURL),
		}
		if cfg.LLMAPIKey != "" {
			opts = append(opts, openai.WithToken(cfg.LLMAPIKey))
		}
		llm, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("init openai-compatible (%s at %s): %w", model, cfg.LLMURL, err)
		}
		log.Printf("LLM: openai-compatible model=%s url=%s", model, cfg.LLMURL)
		return llm, nil
	default:
		return nil, errNoProvider
	}
}

// narrator tells a story at dawn about the night's victims. It sits in front of
// the rest of the broadcast chain: it forwards every message to next, and after
// the first public message of a day that follows deaths it adds its story.
type narrator struct {
	teller  Storyteller
	next    game.Broadcaster
	seats   int
	timeout time.Duration

	mu      sync.Mutex
	history []string
	victims []game.Seat
}

func newNarrator(teller Storyteller, next game.Broadcaster, seats int) *narrator {
	return &narrator{teller: teller, next: next, seats: seats, timeout: 30 * time.Second}
}

func (n *narrator) Record(ev game.Event) {
	if ev.Kind != game.EventDeath || ev.At.Phase != game.PhaseNight {
		return
	}
	n.mu.Lock()
	n.victims = append(n.victims, ev.Target)
	n.mu.Unlock()
}

func (n *narrator) Broadcast(msg game.Message) {
	n.next.Broadcast(msg)
	if len(msg.Audience) != n.seats {
		return
	}

	n.mu.Lock()
	n.history = append(n.history, msg.Source+": "+msg.Text)
	due := msg.At.Phase == game.PhaseDay && msg.Source == game.ModeratorSource && len(n.victims) > 0
	var victims []game.Seat
	if due {
		victims = n.victims
		n.victims = nil
	}
	history := append([]string(nil), n.history...)
	n.mu.Unlock()

	if !due {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
	defer cancel()
	story, err := n.teller.Tell(ctx, history, nil)
	if err != nil {
		log.Printf("Storyteller: no story for seats %v: %v", victims, err)
		return
	}
	if story == "" {
		return
	}
	log.Printf("Storyteller: completed story for cycle %d", msg.At.Cycle)
	n.next.Broadcast(game.Message{At: msg.At, Audience: msg.Audience, Source: StorytellerSource, Text: story})
}
