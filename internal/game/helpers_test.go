package game

import (
	"context"
	"slices"
	"strings"
	"sync"
	"testing"
)

// ============================================================================
// Scripted collaborators
// ============================================================================

// script answers every query through pick and say, one query at a time. Unset
// functions fall back to the most passive option on offer.
type script struct {
	mu    sync.Mutex
	pick  func(seat Seat, prompt string, options []string) string
	say   func(seat Seat, prompt string) string
	asked []string
}

func (s *script) ChooseOne(ctx context.Context, seat Seat, prompt string, options []string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.asked = append(s.asked, seat.String()+": "+prompt)
	if s.pick != nil {
		if ans := s.pick(seat, prompt, options); ans != "" {
			return ans, nil
		}
	}
	return passive(options), nil
}

func (s *script) ChooseFreeText(ctx context.Context, seat Seat, prompt string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.say != nil {
		return s.say(seat, prompt), nil
	}
	return "I have nothing to add.", nil
}

func (s *script) prompts(substr string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, p := range s.asked {
		if strings.Contains(p, substr) {
			out = append(out, p)
		}
	}
	return out
}

func passive(options []string) string {
	for _, o := range []string{PassOption, NoOption, QuitOption, SpeakOption, DestroyOption} {
		if slices.Contains(options, o) {
			return o
		}
	}
	return options[0]
}

type board struct {
	mu   sync.Mutex
	msgs []Message
}

func (b *board) Broadcast(msg Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.msgs = append(b.msgs, msg)
}

func (b *board) contains(substr string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, m := range b.msgs {
		if strings.Contains(m.Text, substr) {
			return true
		}
	}
	return false
}

// ledger keeps every recorded event.
type ledger struct {
	mu     sync.Mutex
	events []Event
}

func (l *ledger) Record(ev Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *ledger) count(kind, detail string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, ev := range l.events {
		if ev.Kind == kind && ev.Detail == detail {
			n++
		}
	}
	return n
}

// ============================================================================
// Table helpers
// ============================================================================

func newTestGame(t *testing.T, cfg Config, sc *script) (*Game, *board) {
	t.Helper()
	if cfg.WinMode == "" {
		cfg.WinMode = WinAll
	}
	b := &board{}
	g, err := New(cfg, sc, b)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return g, b
}

// firstOf returns the lowest offered seat whose kind satisfies keep.
func firstOf(g *Game, options []string, keep func(Kind) bool) string {
	for _, o := range options {
		s, err := ParseSeat(o)
		if err != nil {
			continue
		}
		if keep(g.cfg.Roster[s]) {
			return o
		}
	}
	return ""
}

func isWolf(k Kind) bool    { return k == KindWerewolf }
func isNotWolf(k Kind) bool { return k != KindWerewolf }

// catch runs f and returns the invariant error it raised, if any.
func catch(f func()) (err error) {
	defer recoverInvariant(&err)
	f()
	return nil
}

func mustAlive(t *testing.T, g *Game, s Seat, want bool) {
	t.Helper()
	if got := g.Player(s).Alive; got != want {
		t.Fatalf("seat %s alive = %v, want %v (causes %v)", s, got, want, g.Player(s).DeathCauses)
	}
}
