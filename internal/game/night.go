package game

import (
	"context"
	"fmt"
	"sort"

	"github.com/dustin/go-humanize"
)

// NightSchedule buckets the living seats by night priority, highest first. Seats
// inside a bucket are in seat order; seats without a night turn are left out.
func (g *Game) NightSchedule() [][]Seat {
	buckets := make(map[int][]Seat)
	for _, p := range g.players {
		if !p.Alive || p.kit.NightPriority == 0 || p.kit.Night == nil {
			continue
		}
		buckets[p.kit.NightPriority] = append(buckets[p.kit.NightPriority], p.Seat)
	}
	prios := make([]int, 0, len(buckets))
	for prio := range buckets {
		prios = append(prios, prio)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(prios)))

	out := make([][]Seat, len(prios))
	for i, prio := range prios {
		out[i] = buckets[prio]
	}
	return out
}

// runNight lets every bucket act, then resolves all marks at once. Nobody sees
// the effect of a mark before dawn.
func (g *Game) runNight(ctx context.Context) error {
	g.Clock.AdvancePhase()
	g.night = nightState{}
	g.options = g.Alive()
	g.sayAll(fmt.Sprintf("The %s night falls. Everyone, close your eyes.", humanize.Ordinal(g.Clock.Cycle)))
	g.log.Info("night started", "cycle", g.Clock.Cycle, "alive", len(g.options))

	for _, bucket := range g.NightSchedule() {
		g.Clock.AdvanceRound()
		for _, s := range bucket {
			p := g.players[s]
			if err := p.kit.Night(ctx, g, p, bucket); err != nil {
				return fmt.Errorf("night %d, seat %s (%s): %w", g.Clock.Cycle, s, p.Role.Kind, err)
			}
		}
	}

	g.log.Debug("resolving night", "marks", g.marks.Len())
	return g.resolve(ctx)
}
