package game

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
)

type BadgeState int

const (
	BadgeNoElection BadgeState = iota
	BadgeNominating
	BadgeCampaigning
	BadgeVoting
	BadgeElected
	BadgeVacant
)

func (s BadgeState) String() string {
	switch s {
	case BadgeNoElection:
		return "no election"
	case BadgeNominating:
		return "nominating"
	case BadgeCampaigning:
		return "campaigning"
	case BadgeVoting:
		return "voting"
	case BadgeElected:
		return "elected"
	case BadgeVacant:
		return "vacant"
	default:
		return fmt.Sprintf("badge(%d)", int(s))
	}
}

// Badge is the sheriff's badge. Only the election and transfer code mutate it.
type Badge struct {
	State      BadgeState
	Holder     Seat
	HasHolder  bool
	RoundsLeft int
	Destroyed  bool
}

func (b Badge) electionOpen() bool {
	return !b.Destroyed && !b.HasHolder && b.RoundsLeft > 0
}

// election runs one sheriff election if one is still due. A self-exposure during
// the campaign interrupts the day.
func (g *Game) election(ctx context.Context) (Outcome, error) {
	if !g.badge.electionOpen() {
		return proceed, nil
	}
	g.badge.RoundsLeft--
	g.badge.State = BadgeNominating
	g.Clock.AdvanceRound()
	g.sayAll(fmt.Sprintf("The %s sheriff election begins. The sheriff's vote counts %g.", humanize.Ordinal(g.cfg.ElectionRounds-g.badge.RoundsLeft), WeightSheriff))

	alive := g.Alive()
	answers, err := g.askAll(ctx, alive, fmt.Sprintf("Do you run for sheriff? Answer %q or %q.", YesOption, NoOption), []string{YesOption, NoOption}, NoOption)
	if err != nil {
		return proceed, fmt.Errorf("nominations: %w", err)
	}
	var running []Seat
	for i, s := range alive {
		if answers[i] == YesOption {
			running = append(running, s)
		}
	}
	if len(running) == 0 {
		g.vacate("Nobody runs for sheriff.")
		return proceed, nil
	}
	g.sayAll(fmt.Sprintf("Seats %s run for sheriff.", seatList(running)))

	g.badge.State = BadgeCampaigning
	g.Clock.AdvanceRound()
	intents, stopped, err := g.fanOut(ctx, running, func(ctx context.Context, s Seat) (string, error) {
		options := []string{SpeakOption, QuitOption}
		if g.canExpose(s) {
			options = append(options, ExposeOption)
		}
		return g.askOne(ctx, s, fmt.Sprintf("Candidate, choose one of %v.", options), options, QuitOption)
	}, func(ans string) bool { return ans == ExposeOption })
	if err != nil {
		return proceed, fmt.Errorf("campaign: %w", err)
	}
	if stopped >= 0 {
		g.badge.State = BadgeNoElection
		return g.expose(running[stopped]), nil
	}

	var candidates []Seat
	for i, s := range running {
		if intents[i] == QuitOption {
			g.sayAll(fmt.Sprintf("Seat %s withdraws.", s))
			continue
		}
		candidates = append(candidates, s)
	}
	if err := g.speeches(ctx, candidates, "Give your campaign speech."); err != nil {
		return proceed, err
	}
	if len(candidates) == 0 {
		g.vacate("Every candidate withdrew.")
		return proceed, nil
	}
	voters := without(alive, candidates...)
	if len(voters) == 0 {
		g.vacate("Nobody is left to vote for sheriff.")
		return proceed, nil
	}

	g.badge.State = BadgeVoting
	vs := VoteSpec{Candidates: candidates, Voters: voters, Task: "elect the sheriff"}
	res, err := g.Vote(ctx, vs)
	if err != nil {
		return proceed, err
	}
	if res.Tied() {
		if err := g.speeches(ctx, res.Winners, "The sheriff vote is tied. Speak once more."); err != nil {
			return proceed, err
		}
		vs.Candidates = res.Winners
		if res, err = g.Vote(ctx, vs); err != nil {
			return proceed, err
		}
	}
	sheriff, ok := res.Decisive()
	if !ok {
		g.vacate("No sheriff was elected.")
		return proceed, nil
	}
	g.pin(sheriff)
	g.badge.State = BadgeElected
	g.badge.RoundsLeft = 0
	g.sayAll(fmt.Sprintf("Seat %s is the sheriff.", sheriff))
	return proceed, nil
}

func (g *Game) vacate(text string) {
	g.badge.State = BadgeVacant
	g.sayAll(text)
}

// pin gives s the badge and its vote weight, taking both from any previous holder.
func (g *Game) pin(s Seat) {
	if g.badge.HasHolder {
		g.mustPlayer(g.badge.Holder).VoteWeight = WeightNormal
	}
	g.badge.Holder, g.badge.HasHolder = s, true
	g.mustPlayer(s).VoteWeight = WeightSheriff
	g.record(Event{Kind: EventBadge, Target: s, Source: s, Detail: "pinned"})
}

// transferBadge lets the dead holder hand the badge on or tear it up. After it is
// destroyed this does nothing.
func (g *Game) transferBadge(ctx context.Context) error {
	if g.badge.Destroyed || !g.badge.HasHolder {
		return nil
	}
	holder := g.badge.Holder
	targets := g.Alive()
	prompt := fmt.Sprintf("You are the sheriff and you died. Give the badge to one of seats %s, or %q it.", seatList(targets), DestroyOption)
	ans, err := g.askOne(ctx, holder, prompt, append(seatOptions(targets), DestroyOption), DestroyOption)
	if err != nil {
		return fmt.Errorf("badge transfer: %w", err)
	}
	if ans == DestroyOption {
		g.destroyBadge()
		return nil
	}
	next, err := ParseSeat(ans)
	if err != nil {
		violate("badge answer %q: %v", ans, err)
	}
	g.pin(next)
	g.sayAll(fmt.Sprintf("Seat %s passes the badge to seat %s.", holder, next))
	return nil
}

func (g *Game) destroyBadge() {
	if g.badge.HasHolder {
		g.mustPlayer(g.badge.Holder).VoteWeight = WeightNormal
	}
	g.record(Event{Kind: EventBadge, Source: g.badge.Holder, Target: g.badge.Holder, Detail: "destroyed"})
	g.badge = Badge{State: BadgeVacant, Destroyed: true}
	g.sayAll("The sheriff's badge is destroyed. There will be no sheriff for the rest of the game.")
}

func (g *Game) canExpose(s Seat) bool {
	p := g.mustPlayer(s)
	return g.cfg.AllowExposure && p.Alive && p.kit.CanExpose
}

// expose kills the seat that revealed itself and ends the day.
func (g *Game) expose(s Seat) Outcome {
	g.sayAll(fmt.Sprintf("Seat %s reveals as a werewolf! The day ends now.", s))
	g.record(Event{Kind: EventExposure, Source: s, Target: s})
	g.kill(s, CauseExposed)
	return interrupted(s, "self-exposure")
}

// speeches lets each seat speak in seat order, one at a time.
func (g *Game) speeches(ctx context.Context, seats []Seat, prompt string) error {
	for _, s := range seats {
		g.Clock.AdvanceRound()
		text, err := g.askText(ctx, s, prompt)
		if err != nil {
			return fmt.Errorf("speech: %w", err)
		}
		if text == "" {
			g.sayAll(fmt.Sprintf("Seat %s stays silent.", s))
			continue
		}
		g.speak(s, g.Audience(), text)
	}
	return nil
}
