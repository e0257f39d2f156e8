package game

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// VoteSpec describes one poll. Audience defaults to the whole table.
type VoteSpec struct {
	Candidates []Seat
	Voters     []Seat
	Task       string
	Silent     bool
	Audience   []Seat
}

// Cast is one voter's ballot.
type Cast struct {
	Voter  Seat
	Choice Seat
	Pass   bool
	Weight float64
}

type VoteResult struct {
	Winners []Seat
	Casts   []Cast
	Tally   map[Seat]float64
}

// Decisive returns the single winner, if there is one.
func (r VoteResult) Decisive() (Seat, bool) {
	if len(r.Winners) != 1 {
		return 0, false
	}
	return r.Winners[0], true
}

func (r VoteResult) Tied() bool {
	return len(r.Winners) > 1
}

func (r VoteResult) None() bool {
	return len(r.Winners) == 0
}

// Tabulate adds up weights per candidate and returns the candidates sharing the
// highest positive total, in seat order. No positive total means no winner.
func Tabulate(casts []Cast) ([]Seat, map[Seat]float64) {
	tally := make(map[Seat]float64)
	for _, c := range casts {
		if c.Pass {
			continue
		}
		tally[c.Choice] += c.Weight
	}
	var best float64
	for _, w := range tally {
		if w > best {
			best = w
		}
	}
	var winners []Seat
	if best > 0 {
		for s, w := range tally {
			if w == best {
				winners = append(winners, s)
			}
		}
		sort.Slice(winners, func(i, j int) bool { return winners[i] < winners[j] })
	}
	return winners, tally
}

// Vote polls every voter at once and tallies by vote weight. It never retries a
// tie; callers decide what a tie means.
func (g *Game) Vote(ctx context.Context, vs VoteSpec) (VoteResult, error) {
	for _, v := range vs.Voters {
		if !g.mustPlayer(v).Alive {
			violate("dead seat %s in voters for %q", v, vs.Task)
		}
	}
	audience := vs.Audience
	if audience == nil {
		audience = g.Audience()
	}
	if len(vs.Candidates) == 0 {
		return VoteResult{}, nil
	}
	if len(vs.Candidates) == 1 {
		if !vs.Silent {
			g.say(audience, fmt.Sprintf("Seat %s is the only choice to %s.", vs.Candidates[0], vs.Task))
		}
		return VoteResult{Winners: []Seat{vs.Candidates[0]}}, nil
	}

	options := append(seatOptions(vs.Candidates), PassOption)
	prompt := fmt.Sprintf("Vote to %s. Choose one of seats %s, or %q.", vs.Task, seatList(vs.Candidates), PassOption)
	answers, err := g.askAll(ctx, vs.Voters, prompt, options, PassOption)
	if err != nil {
		return VoteResult{}, fmt.Errorf("vote to %s: %w", vs.Task, err)
	}

	casts := make([]Cast, len(vs.Voters))
	for i, v := range vs.Voters {
		c := Cast{Voter: v, Weight: g.players[v].VoteWeight}
		if answers[i] == PassOption {
			c.Pass = true
		} else {
			choice, err := ParseSeat(answers[i])
			if err != nil {
				violate("vote answer %q was offered but does not parse: %v", answers[i], err)
			}
			c.Choice = choice
		}
		casts[i] = c
		g.record(Event{Kind: EventVote, Source: v, Target: c.Choice, Detail: castDetail(vs.Task, c)})
	}
	winners, tally := Tabulate(casts)
	res := VoteResult{Winners: winners, Casts: casts, Tally: tally}

	g.log.Info("vote counted", "task", vs.Task, "winners", seatList(winners), "voters", len(vs.Voters))
	if !vs.Silent {
		g.say(audience, fmt.Sprintf("Votes to %s: %s. %s", vs.Task, describeCasts(casts), describeWinners(winners)))
	}
	return res, nil
}

func castDetail(task string, c Cast) string {
	if c.Pass {
		return task + ": " + PassOption
	}
	return task + ": " + c.Choice.String()
}

func describeCasts(casts []Cast) string {
	parts := make([]string, len(casts))
	for i, c := range casts {
		choice := PassOption
		if !c.Pass {
			choice = c.Choice.String()
		}
		parts[i] = fmt.Sprintf("%s->%s", c.Voter, choice)
		if c.Weight != WeightNormal {
			parts[i] += fmt.Sprintf(" (x%g)", c.Weight)
		}
	}
	return strings.Join(parts, ", ")
}

func describeWinners(winners []Seat) string {
	switch len(winners) {
	case 0:
		return "Nobody got a vote."
	case 1:
		return fmt.Sprintf("Seat %s has the most votes.", winners[0])
	default:
		return fmt.Sprintf("Seats %s are tied.", seatList(winners))
	}
}
