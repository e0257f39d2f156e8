package game

import (
	"context"
	"testing"

	"pgregory.net/rapid"
)

func TestQueuePopsByPriorityThenInsertion(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		prios := rapid.SliceOfN(rapid.IntRange(-3, 5), 0, 40).Draw(t, "priorities")
		var q Queue
		for i, p := range prios {
			// distinct targets so nothing collapses
			q.Enqueue(Mark{Name: "m", Source: 0, Target: Seat(i), Priority: p}, false)
		}
		if q.Len() != len(prios) {
			t.Fatalf("Len = %d, want %d", q.Len(), len(prios))
		}

		prev, ok := q.Pop()
		if !ok {
			if len(prios) != 0 {
				t.Fatalf("empty pop with %d marks queued", len(prios))
			}
			return
		}
		popped := 1
		for {
			m, ok := q.Pop()
			if !ok {
				break
			}
			popped++
			if m.Priority > prev.Priority {
				t.Fatalf("priority went up: %d after %d", m.Priority, prev.Priority)
			}
			if m.Priority == prev.Priority && m.Target < prev.Target {
				t.Fatalf("tie out of insertion order: target %d after %d", m.Target, prev.Target)
			}
			prev = m
		}
		if popped != len(prios) {
			t.Fatalf("popped %d, want %d", popped, len(prios))
		}
	})
}

func TestQueueCancelSurvivesArbitraryDrain(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 20).Draw(t, "n")
		var q Queue
		for i := 0; i < n; i++ {
			q.Enqueue(Mark{Name: "kill", Target: Seat(i), Priority: rapid.IntRange(0, 3).Draw(t, "p")}, false)
		}
		cancelled := map[Seat]bool{}
		for q.Len() > 0 {
			m, _ := q.Pop()
			if cancelled[m.Target] {
				t.Fatalf("popped cancelled mark on %d", m.Target)
			}
			victim := Seat(rapid.IntRange(0, n-1).Draw(t, "victim"))
			if q.Cancel("kill", victim) > 0 {
				cancelled[victim] = true
			}
		}
		if len(q.Marks()) != 0 {
			t.Fatalf("drained queue still lists %v", q.Marks())
		}
	})
}

func TestQueueEnqueueDuplicates(t *testing.T) {
	var q Queue
	if !q.Enqueue(Mark{Name: "werewolf", Target: 2, Priority: 0}, false) {
		t.Fatalf("first enqueue should add")
	}
	if q.Enqueue(Mark{Name: "werewolf", Target: 2, Priority: 0}, false) {
		t.Fatalf("duplicate enqueue should not add")
	}
	if q.Len() != 1 {
		t.Fatalf("Len = %d, want 1", q.Len())
	}

	q.Enqueue(Mark{Name: "tally", Target: 4}, true)
	q.Enqueue(Mark{Name: "tally", Target: 4, Quantity: 2}, true)
	var tally Mark
	for _, m := range q.Marks() {
		if m.Name == "tally" {
			tally = m
		}
	}
	if tally.Quantity != 3 {
		t.Fatalf("merged quantity = %d, want 3", tally.Quantity)
	}

	if !q.Pending("werewolf", 2) || q.Pending("werewolf", 3) {
		t.Fatalf("Pending disagrees with queue contents %v", q.Marks())
	}
}

func TestQueueReuseAfterDrain(t *testing.T) {
	var q Queue
	q.Enqueue(Mark{Name: "a", Target: 1}, false)
	q.Pop()
	if _, ok := q.Pop(); ok {
		t.Fatalf("pop from drained queue")
	}
	if !q.Enqueue(Mark{Name: "a", Target: 1}, false) {
		t.Fatalf("drained queue should accept the same mark again")
	}
}

// ============================================================================
// Night resolution
// ============================================================================

func TestAntidoteCancelsOnlyItsTarget(t *testing.T) {
	cfg := Config{Roster: []Kind{KindVillager, KindVillager, KindWerewolf, KindWitch}}
	g, _ := newTestGame(t, cfg, &script{})

	g.enqueue(Mark{Name: SkillBite, Source: 2, Target: 0})
	g.enqueue(Mark{Name: SkillBite, Source: 2, Target: 1})
	g.enqueue(Mark{Name: SkillAntidote, Source: 3, Target: 0})
	if err := g.resolve(context.Background()); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	mustAlive(t, g, 0, true)
	mustAlive(t, g, 1, false)
	if got := g.Player(3).Charges[SkillAntidote]; got != 0 {
		t.Fatalf("antidote charges = %d, want 0", got)
	}
}

func TestGuardAndAntidoteOnSameSeatKill(t *testing.T) {
	cfg := Config{Roster: []Kind{KindVillager, KindWerewolf, KindWitch, KindGuard}}
	g, _ := newTestGame(t, cfg, &script{})

	g.enqueue(Mark{Name: SkillBite, Source: 1, Target: 0})
	g.enqueue(Mark{Name: SkillGuard, Source: 3, Target: 0})
	g.enqueue(Mark{Name: SkillAntidote, Source: 2, Target: 0})
	if err := g.resolve(context.Background()); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	mustAlive(t, g, 0, false)
}

func TestGuardAloneSaves(t *testing.T) {
	cfg := Config{Roster: []Kind{KindVillager, KindWerewolf, KindGuard}}
	g, _ := newTestGame(t, cfg, &script{})

	g.enqueue(Mark{Name: SkillBite, Source: 1, Target: 0})
	g.enqueue(Mark{Name: SkillGuard, Source: 2, Target: 0})
	if err := g.resolve(context.Background()); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	mustAlive(t, g, 0, true)
}

func TestPoisonAndBiteOnSameSeat(t *testing.T) {
	cfg := Config{Roster: []Kind{KindHunter, KindWerewolf, KindWitch, KindVillager}}
	g, _ := newTestGame(t, cfg, &script{})

	g.enqueue(Mark{Name: SkillBite, Source: 1, Target: 0})
	g.enqueue(Mark{Name: SkillPoison, Source: 2, Target: 0})
	if err := g.resolve(context.Background()); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	p := g.Player(0)
	if p.Alive || len(p.DeathCauses) != 2 || p.DeathCauses[0] != CausePoison {
		t.Fatalf("hunter = %+v, want dead of poison then bite", p)
	}
	if g.post.Len() != 0 {
		t.Fatalf("poisoned hunter queued a shot: %v", g.post.Marks())
	}
}

func TestEnqueueRejectsBadMarks(t *testing.T) {
	cfg := Config{Roster: []Kind{KindVillager, KindWerewolf, KindWitch}}
	g, _ := newTestGame(t, cfg, &script{})

	tests := []struct {
		name string
		mark Mark
	}{
		{"skill not in kit", Mark{Name: SkillPoison, Source: 1, Target: 0}},
		{"target out of range", Mark{Name: SkillBite, Source: 1, Target: 7}},
		{"source out of range", Mark{Name: SkillBite, Source: -1, Target: 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := catch(func() { g.enqueue(tt.mark) }); err == nil {
				t.Fatalf("enqueue(%+v) did not fail", tt.mark)
			}
		})
	}

	g.kill(0, CauseVote)
	err := catch(func() { g.enqueue(Mark{Name: SkillBite, Source: 1, Target: 0}) })
	if err == nil {
		t.Fatalf("mark on a dead seat accepted")
	}
}
