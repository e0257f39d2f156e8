package main

import (
	"crypto/rand"
	"fmt"
	"log"
	"math/big"
	"strings"

	"werewolfsim/internal/game"
)

// SeatPlan is one seat before the game starts.
type SeatPlan struct {
	Seat    game.Seat
	Name    string
	Kind    game.Kind
	Control string
	Code    string // claim code, only for seats played over the hub
}

// planSeats deals the roster onto seats and assigns each seat its control.
// controls holds either one entry for every seat or one entry per seat.
func planSeats(roster []game.Kind, controls, names []string, shuffle bool) ([]SeatPlan, error) {
	if len(controls) == 0 {
		controls = []string{controlRandom}
	}
	if len(controls) != 1 && len(controls) != len(roster) {
		return nil, fmt.Errorf("%d controls for %d seats", len(controls), len(roster))
	}
	if len(names) != 0 && len(names) != len(roster) {
		return nil, fmt.Errorf("%d names for %d seats", len(names), len(roster))
	}

	kinds := append([]game.Kind(nil), roster...)
	if shuffle {
		shuffleRoles(kinds)
	}

	plans := make([]SeatPlan, len(kinds))
	for i, k := range kinds {
		s := game.Seat(i)
		p := SeatPlan{Seat: s, Name: "Seat " + s.String(), Kind: k, Control: controls[0]}
		if len(controls) > 1 {
			p.Control = controls[i]
		}
		p.Control = strings.ToLower(p.Control)
		if len(names) > 0 {
			p.Name = names[i]
		}
		if p.Control == controlWS {
			code, err := generateSecretCode()
			if err != nil {
				return nil, fmt.Errorf("seat %s code: %w", s, err)
			}
			p.Code = code
		}
		plans[i] = p
	}
	return plans, nil
}

func seatedRoster(plans []SeatPlan) []game.Kind {
	out := make([]game.Kind, len(plans))
	for i, p := range plans {
		out[i] = p.Kind
	}
	return out
}

func seatedNames(plans []SeatPlan) []string {
	out := make([]string, len(plans))
	for i, p := range plans {
		out[i] = p.Name
	}
	return out
}

func seatsWith(plans []SeatPlan, control string) []game.Seat {
	var out []game.Seat
	for _, p := range plans {
		if p.Control == control {
			out = append(out, p.Seat)
		}
	}
	return out
}

// announceSeats prints the table and the claim code of every hub seat.
func announceSeats(plans []SeatPlan, addr string) {
	for _, p := range plans {
		DebugLog("announceSeats: seat %s (%s) is a %s, control %s", p.Seat, p.Name, p.Kind, p.Control)
		if p.Code != "" {
			log.Printf("Seat %s (%s): connect to ws://%s/ws?code=%s", p.Seat, p.Name, wsHost(addr), p.Code)
		}
	}
}

func wsHost(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "localhost" + addr
	}
	return addr
}

// shuffleRoles shuffles the role pool using crypto/rand
func shuffleRoles(roles []game.Kind) {
	for i := len(roles) - 1; i > 0; i-- {
		jBig, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			// Fallback: just swap with previous element
			roles[i], roles[i-1] = roles[i-1], roles[i]
			continue
		}
		j := int(jBig.Int64())
		roles[i], roles[j] = roles[j], roles[i]
	}
}
