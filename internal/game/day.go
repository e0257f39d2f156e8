package game

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
)

// runDay plays the day after a night. before is the living set at dusk.
func (g *Game) runDay(ctx context.Context, before []Seat) (Faction, error) {
	g.Clock.AdvancePhase()
	var died []Seat
	for _, s := range before {
		if !g.players[s].Alive {
			died = append(died, s)
		}
	}
	g.announceDawn(died)
	if w := g.Winner(); w != FactionUndecided {
		return w, nil
	}

	out, err := g.dayActions(ctx, died)
	if err != nil {
		return FactionUndecided, err
	}
	if out.Interrupted() {
		g.log.Info("day interrupted", "seat", out.Seat.String(), "reason", out.Reason)
	}
	return g.resolvePost(ctx)
}

func (g *Game) announceDawn(died []Seat) {
	text := fmt.Sprintf("The %s day breaks. ", humanize.Ordinal(g.Clock.Cycle))
	if len(died) == 0 {
		text += "Nobody died last night."
	} else {
		text += fmt.Sprintf("Seats %s died last night.", seatList(died))
	}
	g.sayAll(text)
	g.sayAll(fmt.Sprintf("Seats still alive: %s.", seatList(g.Alive())))
}

// dayActions is everything between dawn and dusk that a self-exposure can cut
// short. Post marks that become due along the way resolve before the next step.
func (g *Game) dayActions(ctx context.Context, died []Seat) (Outcome, error) {
	// An exposure here also ends the day before the first night's last words.
	out, err := g.election(ctx)
	if err != nil || out.Interrupted() {
		return out, err
	}

	if g.Clock.FirstCycle() {
		if err := g.lastWords(ctx, died); err != nil {
			return proceed, err
		}
	}
	if w, err := g.resolvePost(ctx); err != nil || w != FactionUndecided {
		return proceed, err
	}

	for round := 1; round <= g.cfg.DiscussionRounds; round++ {
		out, err := g.discussion(ctx, round)
		if err != nil || out.Interrupted() {
			return out, err
		}
	}

	eliminated, ok, err := g.dayVote(ctx)
	if err != nil || !ok {
		return proceed, err
	}
	if g.Winner() != FactionUndecided {
		return proceed, nil
	}
	return proceed, g.lastWords(ctx, []Seat{eliminated})
}

// discussion gives every living seat one turn, in seat order. Seats that may
// expose are asked first whether they speak or expose.
func (g *Game) discussion(ctx context.Context, round int) (Outcome, error) {
	g.sayAll(fmt.Sprintf("Discussion, %s round.", humanize.Ordinal(round)))
	for _, s := range g.Alive() {
		if g.canExpose(s) {
			prompt := fmt.Sprintf("Your turn. Answer %q to talk or %q to reveal yourself and end the day.", SpeakOption, ExposeOption)
			ans, err := g.askOne(ctx, s, prompt, []string{SpeakOption, ExposeOption}, SpeakOption)
			if err != nil {
				return proceed, err
			}
			if ans == ExposeOption {
				return g.expose(s), nil
			}
		}
		if err := g.speeches(ctx, []Seat{s}, "Your turn to speak."); err != nil {
			return proceed, err
		}
	}
	return proceed, nil
}

// dayVote runs the elimination vote with one retry among tied seats. A second tie
// or an all-pass vote eliminates nobody.
func (g *Game) dayVote(ctx context.Context) (Seat, bool, error) {
	alive := g.Alive()
	vs := VoteSpec{Candidates: alive, Voters: alive, Task: "eliminate"}
	res, err := g.Vote(ctx, vs)
	if err != nil {
		return 0, false, err
	}
	if res.Tied() {
		g.sayAll(fmt.Sprintf("Seats %s are tied. Each gets one more word before the revote.", seatList(res.Winners)))
		if err := g.speeches(ctx, res.Winners, "You are tied in the vote. Defend yourself."); err != nil {
			return 0, false, err
		}
		vs.Candidates = res.Winners
		if res, err = g.Vote(ctx, vs); err != nil {
			return 0, false, err
		}
	}
	out, ok := res.Decisive()
	if !ok {
		g.sayAll("Nobody is eliminated today.")
		return 0, false, nil
	}
	g.sayAll(fmt.Sprintf("Seat %s is eliminated.", out))
	g.kill(out, CauseVote)
	return out, true, nil
}

// lastWords lets the dead speak once. Seats killed by poison, a shot or their own
// exposure get none.
func (g *Game) lastWords(ctx context.Context, seats []Seat) error {
	var speakers []Seat
	for _, s := range seats {
		p := g.mustPlayer(s)
		if p.diedOf(CausePoison) || p.diedOf(CauseHunter) || p.diedOf(CauseExposed) {
			continue
		}
		speakers = append(speakers, s)
	}
	return g.speeches(ctx, speakers, "You are dead. Say your last words.")
}
