package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"unicode"

	"github.com/cenkalti/backoff/v5"
	"github.com/pkoukk/tiktoken-go"
	"github.com/tmc/langchaingo/llms"
	"golang.org/x/time/rate"

	"werewolfsim/internal/game"
)

const agentSystemPrompt = `You are a player in a game of The Werewolves of Miller's Hollow.
Rules you must keep in mind:
- Werewolves know each other and choose one victim each night.
- The seer learns the side of one seat per night.
- The witch has one antidote and one poison, can use at most one per night, and cannot save herself after the first night.
- The guard protects one seat per night, never the same seat two nights in a row. If the guard and the witch both protect the same seat, that seat dies.
- The hunter shoots one seat when killed, unless poisoned.
- The sheriff's vote counts 1.5. When the sheriff dies, the badge passes to a living seat or is destroyed.
Keep your role secret unless revealing it helps your side. Answer briefly and in character.
When you are given options, reply with exactly one of them and nothing else.`

// maxAgentAttempts bounds how often one query is put to the model before the raw
// answer is handed back to the engine.
const maxAgentAttempts = 3

type tokenCounter func(string) int

// newTokenCounter uses the cl100k encoding when it can be loaded and a length
// estimate otherwise.
func newTokenCounter() tokenCounter {
	enc, err := tiktoken.GetEncoding(tiktoken.MODEL_CL100K_BASE)
	if err != nil {
		log.Printf("Agent: token encoding unavailable, estimating: %v", err)
		return approxTokens
	}
	return func(s string) int {
		return len(enc.Encode(s, nil, nil))
	}
}

func approxTokens(s string) int {
	return (len(s) + 3) / 4
}

// aiSeats plays seats with a language model. Each seat has its own memory: the
// messages whose audience includes it and its own answers.
type aiSeats struct {
	llm      llms.Model
	callOpts []llms.CallOption
	limiter  *rate.Limiter
	retries  uint
	budget   int
	tokens   tokenCounter
	backoff  func() backoff.BackOff
	seats    map[game.Seat]bool

	mu     sync.Mutex
	memory map[game.Seat][]string
}

func newAISeats(model llms.Model, cfg AppConfig, seats []game.Seat, tokens tokenCounter) *aiSeats {
	limit := rate.Inf
	if cfg.LLMRatePerMin > 0 {
		limit = rate.Limit(cfg.LLMRatePerMin / 60)
	}
	a := &aiSeats{
		llm:      model,
		callOpts: buildCallOpts(cfg),
		limiter:  rate.NewLimiter(limit, 1),
		retries:  max(cfg.LLMRetries, 1),
		budget:   cfg.LLMTokenBudget,
		tokens:   tokens,
		backoff:  func() backoff.BackOff { return backoff.NewExponentialBackOff() },
		seats:    make(map[game.Seat]bool, len(seats)),
		memory:   make(map[game.Seat][]string, len(seats)),
	}
	for _, s := range seats {
		a.seats[s] = true
	}
	return a
}

func (a *aiSeats) addSeat(s game.Seat) {
	a.mu.Lock()
	a.seats[s] = true
	a.mu.Unlock()
}

// Broadcast adds msg to the memory of every AI seat in its audience.
func (a *aiSeats) Broadcast(msg game.Message) {
	line := fmt.Sprintf("[%s] %s: %s", msg.At, msg.Source, msg.Text)
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, s := range msg.Audience {
		if a.seats[s] {
			a.memory[s] = append(a.memory[s], line)
		}
	}
}

func (a *aiSeats) remember(seat game.Seat, line string) {
	a.mu.Lock()
	a.memory[seat] = append(a.memory[seat], line)
	a.mu.Unlock()
}

func (a *aiSeats) history(seat game.Seat) []string {
	a.mu.Lock()
	lines := append([]string(nil), a.memory[seat]...)
	a.mu.Unlock()
	return trimHistory(lines, a.budget, a.tokens)
}

// trimHistory keeps the newest lines that fit in budget tokens. The first line,
// which tells the seat its role, is always kept.
func trimHistory(lines []string, budget int, count tokenCounter) []string {
	if budget <= 0 || len(lines) < 2 {
		return lines
	}
	used := count(lines[0])
	start := len(lines)
	for start > 1 {
		n := count(lines[start-1])
		if used+n > budget {
			break
		}
		used += n
		start--
	}
	if start == 1 {
		return lines
	}
	out := make([]string, 0, len(lines)-start+2)
	out = append(out, lines[0], "(earlier messages omitted)")
	return append(out, lines[start:]...)
}

func (a *aiSeats) ChooseOne(ctx context.Context, seat game.Seat, prompt string, options []string) (string, error) {
	question := fmt.Sprintf("%s\nReply with exactly one of: %s.", prompt, strings.Join(options, ", "))
	var answer string
	for attempt := 0; attempt < maxAgentAttempts; attempt++ {
		text, err := a.generate(ctx, seat, question)
		if err != nil {
			return "", err
		}
		if choice, ok := matchOption(text, options); ok {
			a.remember(seat, fmt.Sprintf("You answered %q to: %s", choice, prompt))
			return choice, nil
		}
		answer = strings.TrimSpace(text)
		question = fmt.Sprintf("%s\nYour last reply %q was not one of the options. Reply with exactly one of: %s.",
			prompt, answer, strings.Join(options, ", "))
	}
	return answer, nil
}

func (a *aiSeats) ChooseFreeText(ctx context.Context, seat game.Seat, prompt string) (string, error) {
	text, err := a.generate(ctx, seat, prompt)
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	a.remember(seat, "You said: "+text)
	return text, nil
}

// generate puts one question to the model, waiting for the rate limiter and
// retrying provider errors with backoff.
func (a *aiSeats) generate(ctx context.Context, seat game.Seat, question string) (string, error) {
	body := "What you have seen so far:\n" + strings.Join(a.history(seat), "\n") + "\n\n" + question
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, agentSystemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, body),
	}

	op := func() (string, error) {
		if err := a.limiter.Wait(ctx); err != nil {
			return "", backoff.Permanent(err)
		}
		resp, err := a.llm.GenerateContent(ctx, messages, a.callOpts...)
		if err != nil {
			if ctx.Err() != nil {
				return "", backoff.Permanent(ctx.Err())
			}
			DebugLog("Agent: seat %s: provider error: %v", seat, err)
			return "", err
		}
		if len(resp.Choices) == 0 {
			return "", errors.New("empty response")
		}
		return resp.Choices[0].Content, nil
	}
	text, err := backoff.Retry(ctx, op, backoff.WithBackOff(a.backoff()), backoff.WithMaxTries(a.retries))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", fmt.Errorf("seat %s: llm: %w", seat, err)
	}
	if appLogger != nil {
		appLogger.LogPrompt(seat, body, text)
	}
	return text, nil
}

// matchOption finds the option a model meant. An exact reply wins; otherwise the
// last word of the reply that names an option.
func matchOption(answer string, options []string) (string, bool) {
	clean := strings.ToLower(strings.Trim(strings.TrimSpace(answer), "\"'`.!*"))
	for _, o := range options {
		if clean == strings.ToLower(o) {
			return o, true
		}
	}
	words := strings.FieldsFunc(strings.ToLower(answer), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for i := len(words) - 1; i >= 0; i-- {
		for _, o := range options {
			if words[i] == strings.ToLower(o) {
				return o, true
			}
		}
	}
	return "", false
}
