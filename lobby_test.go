package main

import (
	"slices"
	"testing"
	"testing/quick"

	"werewolfsim/internal/game"
)

// ============================================================================
// Seating
// ============================================================================

func TestShuffleKeepsRoster(t *testing.T) {
	f := func(counts [6]uint8) bool {
		kinds := []game.Kind{game.KindVillager, game.KindWerewolf, game.KindSeer, game.KindWitch, game.KindHunter, game.KindGuard}
		var roster []game.Kind
		for i, c := range counts {
			for j := 0; j < int(c%4); j++ {
				roster = append(roster, kinds[i])
			}
		}
		shuffled := append([]game.Kind(nil), roster...)
		shuffleRoles(shuffled)

		slices.Sort(roster)
		slices.Sort(shuffled)
		if !slices.Equal(roster, shuffled) {
			t.Errorf("shuffle changed the roster: %v -> %v", roster, shuffled)
			return false
		}
		return true
	}

	if err := quick.Check(f, &quick.Config{MaxCount: 50}); err != nil {
		t.Error(err)
	}
}

func TestPlanSeatsInOrder(t *testing.T) {
	roster := []game.Kind{game.KindWerewolf, game.KindSeer, game.KindVillager}
	plans, err := planSeats(roster, []string{"AI"}, []string{"Ann", "Bob", "Cid"}, false)
	if err != nil {
		t.Fatalf("planSeats: %v", err)
	}
	for i, p := range plans {
		if p.Seat != game.Seat(i) || p.Kind != roster[i] || p.Control != controlAI || p.Code != "" {
			t.Errorf("plan %d = %+v", i, p)
		}
	}
	if !slices.Equal(seatedNames(plans), []string{"Ann", "Bob", "Cid"}) {
		t.Errorf("names = %v", seatedNames(plans))
	}
	if !slices.Equal(seatedRoster(plans), roster) {
		t.Errorf("roster = %v", seatedRoster(plans))
	}
}

func TestPlanSeatsDefaults(t *testing.T) {
	plans, err := planSeats([]game.Kind{game.KindVillager, game.KindWerewolf}, nil, nil, true)
	if err != nil {
		t.Fatalf("planSeats: %v", err)
	}
	if plans[0].Name != "Seat 1" || plans[1].Name != "Seat 2" {
		t.Errorf("default names = %q, %q", plans[0].Name, plans[1].Name)
	}
	if len(seatsWith(plans, controlRandom)) != 2 {
		t.Errorf("default control is not random: %+v", plans)
	}
}

func TestPlanSeatsPerSeatControls(t *testing.T) {
	roster := []game.Kind{game.KindVillager, game.KindWerewolf, game.KindSeer}
	plans, err := planSeats(roster, []string{"ws", "random", "ws"}, nil, false)
	if err != nil {
		t.Fatalf("planSeats: %v", err)
	}
	ws := seatsWith(plans, controlWS)
	if !slices.Equal(ws, []game.Seat{0, 2}) {
		t.Fatalf("ws seats = %v", ws)
	}
	if plans[0].Code == "" || plans[2].Code == "" || plans[0].Code == plans[2].Code {
		t.Errorf("codes = %q, %q", plans[0].Code, plans[2].Code)
	}
}

func TestPlanSeatsRejectsMismatch(t *testing.T) {
	roster := []game.Kind{game.KindVillager, game.KindWerewolf, game.KindSeer}
	if _, err := planSeats(roster, []string{"ai", "ws"}, nil, false); err == nil {
		t.Error("expected an error for 2 controls and 3 seats")
	}
	if _, err := planSeats(roster, nil, []string{"Ann"}, false); err == nil {
		t.Error("expected an error for 1 name and 3 seats")
	}
}

func TestWSHost(t *testing.T) {
	if got := wsHost(":8080"); got != "localhost:8080" {
		t.Errorf("wsHost(:8080) = %q", got)
	}
	if got := wsHost("example.org:80"); got != "example.org:80" {
		t.Errorf("wsHost(example.org:80) = %q", got)
	}
}
