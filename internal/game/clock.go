package game

import "fmt"

type Phase int

const (
	PhaseDay Phase = iota
	PhaseNight
)

func (p Phase) String() string {
	switch p {
	case PhaseNight:
		return "night"
	case PhaseDay:
		return "day"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Clock tracks the cycle and phase. A cycle is one night and the day after it, so
// Night 1 and Day 1 share cycle 1. The zero value is the moment before the first
// night.
type Clock struct {
	Cycle int
	Phase Phase
	Round int // log ordering only
}

// AdvancePhase flips Day/Night, resets the round, and starts a new cycle on nightfall.
func (c *Clock) AdvancePhase() {
	c.Round = 0
	if c.Phase == PhaseDay {
		c.Phase = PhaseNight
		c.Cycle++
		return
	}
	c.Phase = PhaseDay
}

func (c *Clock) AdvanceRound() {
	c.Round++
}

func (c Clock) FirstCycle() bool {
	return c.Cycle == 1
}

func (c Clock) String() string {
	return fmt.Sprintf("cycle %d - %s - round %d", c.Cycle, c.Phase, c.Round)
}
