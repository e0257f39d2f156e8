package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"

	"werewolfsim/internal/game"
)

// Seat controls
const (
	controlAI     = "ai"
	controlWS     = "ws"
	controlRandom = "random"
)

var ErrNoSeat = errors.New("no such seat")

// router sends each query to whatever plays the seat. A seat whose control has no
// chooser fails with game.ErrUnknownControl the first time it is asked.
type router struct {
	controls map[game.Seat]string
	choosers map[string]game.Chooser
}

func newRouter(plans []SeatPlan, choosers map[string]game.Chooser) *router {
	r := &router{controls: make(map[game.Seat]string, len(plans)), choosers: choosers}
	for _, p := range plans {
		r.controls[p.Seat] = p.Control
	}
	return r
}

func (r *router) route(seat game.Seat) (game.Chooser, error) {
	control, ok := r.controls[seat]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoSeat, seat)
	}
	c, ok := r.choosers[control]
	if !ok || c == nil {
		return nil, fmt.Errorf("%w: seat %s is %q", game.ErrUnknownControl, seat, control)
	}
	return c, nil
}

func (r *router) ChooseOne(ctx context.Context, seat game.Seat, prompt string, options []string) (string, error) {
	c, err := r.route(seat)
	if err != nil {
		return "", err
	}
	return c.ChooseOne(ctx, seat, prompt, options)
}

func (r *router) ChooseFreeText(ctx context.Context, seat game.Seat, prompt string) (string, error) {
	c, err := r.route(seat)
	if err != nil {
		return "", err
	}
	return c.ChooseFreeText(ctx, seat, prompt)
}

var botLines = []string{
	"I have nothing to add.",
	"I trust the seats that spoke first.",
	"Someone here is lying, I just do not know who.",
	"Let us vote carefully today.",
}

// randomBot picks uniformly among the offered options. Queries arrive
// concurrently, so the source is guarded.
type randomBot struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func newRandomBot(seed uint64) *randomBot {
	return &randomBot{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (b *randomBot) ChooseOne(ctx context.Context, seat game.Seat, prompt string, options []string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(options) == 0 {
		return "", fmt.Errorf("seat %s: no options offered", seat)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return options[b.rng.IntN(len(options))], nil
}

func (b *randomBot) ChooseFreeText(ctx context.Context, seat game.Seat, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return botLines[b.rng.IntN(len(botLines))], nil
}

// fanout delivers every message to each broadcaster in order.
type fanout []game.Broadcaster

func (f fanout) Broadcast(msg game.Message) {
	for _, b := range f {
		b.Broadcast(msg)
	}
}

// recorders delivers every event to each recorder in order.
type recorders []game.Recorder

func (rs recorders) Record(ev game.Event) {
	for _, r := range rs {
		r.Record(ev)
	}
}

// logSink mirrors the transcript into the extended log and, in debug mode, the
// standard logger.
type logSink struct{}

func (logSink) Broadcast(msg game.Message) {
	if appLogger != nil {
		appLogger.LogTranscript(msg)
	}
	DebugLog("[%s] %s -> %s: %s", msg.At, msg.Source, audienceLabel(msg.Audience), msg.Text)
}
