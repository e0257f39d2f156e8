package game

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func electionTable(t *testing.T, sc *script, allowExposure bool) *Game {
	t.Helper()
	cfg := Config{
		Roster:         []Kind{KindVillager, KindVillager, KindVillager, KindWerewolf, KindSeer},
		ElectionRounds: 2,
		AllowExposure:  allowExposure,
	}
	g, _ := newTestGame(t, cfg, sc)
	g.Clock.AdvancePhase()
	g.Clock.AdvancePhase()
	return g
}

func TestElectionPinsBadge(t *testing.T) {
	sc := &script{pick: func(seat Seat, prompt string, options []string) string {
		switch {
		case strings.HasPrefix(prompt, "Do you run"):
			if seat == 0 || seat == 1 {
				return YesOption
			}
		case strings.HasPrefix(prompt, "Candidate"):
			return SpeakOption
		case strings.Contains(prompt, "elect the sheriff"):
			return "2"
		}
		return ""
	}}
	g := electionTable(t, sc, false)

	out, err := g.election(context.Background())
	if err != nil || out.Interrupted() {
		t.Fatalf("election = %+v, %v", out, err)
	}
	b := g.Badge()
	if !b.HasHolder || b.Holder != 1 || b.State != BadgeElected || b.RoundsLeft != 0 {
		t.Fatalf("badge = %+v", b)
	}
	if w := g.Player(1).VoteWeight; w != WeightSheriff {
		t.Fatalf("sheriff weight = %g", w)
	}
	if n := len(sc.prompts("elect the sheriff")); n != 3 {
		t.Fatalf("%d sheriff ballots, want 3 (non-candidates only)", n)
	}

	// Later rounds are cancelled once someone holds the badge.
	out, err = g.election(context.Background())
	if err != nil || out.Interrupted() || len(sc.prompts("Do you run")) != 5 {
		t.Fatalf("second election ran: %+v %v", out, err)
	}
}

func TestElectionNobodyRuns(t *testing.T) {
	sc := &script{}
	g := electionTable(t, sc, false)
	if _, err := g.election(context.Background()); err != nil {
		t.Fatalf("election: %v", err)
	}
	b := g.Badge()
	if b.HasHolder || b.State != BadgeVacant || b.RoundsLeft != 1 {
		t.Fatalf("badge = %+v", b)
	}
}

func TestElectionTiedTwiceIsVacant(t *testing.T) {
	sc := &script{pick: func(seat Seat, prompt string, options []string) string {
		switch {
		case strings.HasPrefix(prompt, "Do you run"):
			if seat == 0 || seat == 1 {
				return YesOption
			}
		case strings.HasPrefix(prompt, "Candidate"):
			return SpeakOption
		case strings.Contains(prompt, "elect the sheriff"):
			if seat == 2 {
				return "1"
			}
			if seat == 3 {
				return "2"
			}
		}
		return ""
	}}
	g := electionTable(t, sc, false)
	if _, err := g.election(context.Background()); err != nil {
		t.Fatalf("election: %v", err)
	}
	if b := g.Badge(); b.HasHolder || b.State != BadgeVacant {
		t.Fatalf("badge = %+v", b)
	}
	if n := len(sc.prompts("elect the sheriff")); n != 6 {
		t.Fatalf("%d ballots, want one revote", n)
	}
}

func TestElectionExposureInterrupts(t *testing.T) {
	sc := &script{pick: func(seat Seat, prompt string, options []string) string {
		switch {
		case strings.HasPrefix(prompt, "Do you run"):
			if seat == 0 || seat == 3 {
				return YesOption
			}
		case strings.HasPrefix(prompt, "Candidate"):
			if seat == 3 {
				return ExposeOption
			}
			return SpeakOption
		}
		return ""
	}}
	g := electionTable(t, sc, true)

	out, err := g.election(context.Background())
	if err != nil {
		t.Fatalf("election: %v", err)
	}
	if !out.Interrupted() || out.Seat != 3 {
		t.Fatalf("outcome = %+v, want interrupted by seat 4", out)
	}
	p := g.Player(3)
	if p.Alive || !p.diedOf(CauseExposed) {
		t.Fatalf("exposed wolf = %+v", p)
	}
	if len(sc.prompts("elect the sheriff")) != 0 {
		t.Fatalf("vote held after an exposure")
	}
}

// holdout keeps seat 0's campaign answer open until its query is cancelled.
type holdout struct {
	script
	cut chan error
}

func (h *holdout) ChooseOne(ctx context.Context, seat Seat, prompt string, options []string) (string, error) {
	if seat == 0 && strings.HasPrefix(prompt, "Candidate") {
		<-ctx.Done()
		h.cut <- ctx.Err()
		return "", ctx.Err()
	}
	return h.script.ChooseOne(ctx, seat, prompt, options)
}

func TestExposureCancelsOpenCampaignQueries(t *testing.T) {
	h := &holdout{cut: make(chan error, 1)}
	h.pick = func(seat Seat, prompt string, options []string) string {
		switch {
		case strings.HasPrefix(prompt, "Do you run"):
			if seat == 0 || seat == 3 {
				return YesOption
			}
		case strings.HasPrefix(prompt, "Candidate"):
			return ExposeOption
		}
		return ""
	}
	g := electionTable(t, &script{}, true)
	g.chooser = h

	type result struct {
		out Outcome
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := g.election(context.Background())
		done <- result{out, err}
	}()

	select {
	case r := <-done:
		if r.err != nil || !r.out.Interrupted() || r.out.Seat != 3 {
			t.Fatalf("election = %+v, %v", r.out, r.err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("election waited for a candidate after the exposure")
	}
	if err := <-h.cut; !errors.Is(err, context.Canceled) {
		t.Fatalf("open campaign query ended with %v, want context.Canceled", err)
	}
}

func TestExposeNotOfferedWhenDisabled(t *testing.T) {
	var offered bool
	sc := &script{pick: func(seat Seat, prompt string, options []string) string {
		for _, o := range options {
			if o == ExposeOption {
				offered = true
			}
		}
		if strings.HasPrefix(prompt, "Do you run") {
			return YesOption
		}
		return ""
	}}
	g := electionTable(t, sc, false)
	if _, err := g.election(context.Background()); err != nil {
		t.Fatalf("election: %v", err)
	}
	if offered {
		t.Fatalf("expose offered with exposure disabled")
	}
}

func TestBadgeTransfer(t *testing.T) {
	sc := &script{pick: func(seat Seat, prompt string, options []string) string {
		if strings.Contains(prompt, "Give the badge") {
			return "3"
		}
		return ""
	}}
	g := electionTable(t, sc, false)
	g.pin(0)
	g.kill(0, CauseVote)
	if _, err := g.resolvePost(context.Background()); err != nil {
		t.Fatalf("resolvePost: %v", err)
	}
	b := g.Badge()
	if !b.HasHolder || b.Holder != 2 {
		t.Fatalf("badge = %+v, want held by seat 3", b)
	}
	if g.Player(2).VoteWeight != WeightSheriff || g.Player(0).VoteWeight != WeightNormal {
		t.Fatalf("weights not moved with the badge")
	}
}

func TestDestroyedBadgeStaysGone(t *testing.T) {
	sc := &script{}
	g := electionTable(t, sc, false)
	g.pin(1)
	g.kill(1, CauseWerewolf)
	if _, err := g.resolvePost(context.Background()); err != nil {
		t.Fatalf("resolvePost: %v", err)
	}
	b := g.Badge()
	if !b.Destroyed || b.HasHolder || b.State != BadgeVacant {
		t.Fatalf("badge = %+v, want destroyed", b)
	}

	asked := len(sc.prompts(""))
	if err := g.transferBadge(context.Background()); err != nil {
		t.Fatalf("transferBadge: %v", err)
	}
	if len(sc.prompts("")) != asked {
		t.Fatalf("transfer after destruction asked someone")
	}
	if out, err := g.election(context.Background()); err != nil || out.Interrupted() {
		t.Fatalf("election after destruction: %+v %v", out, err)
	}
	if len(sc.prompts("")) != asked {
		t.Fatalf("election held after destruction")
	}
}
