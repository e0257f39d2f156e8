package game

import (
	"fmt"
	"strconv"
)

// Seat identifies a player for the lifetime of a game. Stored 0-based, shown 1-based.
type Seat int

func (s Seat) String() string {
	return strconv.Itoa(int(s) + 1)
}

// ParseSeat parses the 1-based display form.
func ParseSeat(s string) (Seat, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("parse seat %q: %w", s, err)
	}
	if n < 1 {
		return 0, fmt.Errorf("parse seat %q: out of range", s)
	}
	return Seat(n - 1), nil
}

type Faction string

const (
	FactionUndecided Faction = ""
	FactionVillager  Faction = "villager"
	FactionWerewolf  Faction = "werewolf"
	FactionNobody    Faction = "nobody"
)

type Category string

const (
	CategoryStandard Category = "standard"
	CategoryGod      Category = "god"
	CategoryWerewolf Category = "werewolf"
)

type Kind string

const (
	KindVillager Kind = "villager"
	KindWerewolf Kind = "werewolf"
	KindSeer     Kind = "seer"
	KindWitch    Kind = "witch"
	KindHunter   Kind = "hunter"
	KindGuard    Kind = "guard"
)

// Role classifies a seat. It never changes after assignment.
type Role struct {
	Faction  Faction
	Category Category
	Kind     Kind
}

func (r Role) String() string {
	return string(r.Kind)
}

// Matches reports whether r fits pattern. Zero-valued pattern fields match anything.
func (r Role) Matches(pattern Role) bool {
	if pattern.Faction != "" && pattern.Faction != r.Faction {
		return false
	}
	if pattern.Category != "" && pattern.Category != r.Category {
		return false
	}
	if pattern.Kind != "" && pattern.Kind != r.Kind {
		return false
	}
	return true
}

func (r Role) IsVillagerStandard() bool {
	return r.Faction == FactionVillager && r.Category == CategoryStandard
}

func (r Role) IsGod() bool {
	return r.Faction == FactionVillager && r.Category == CategoryGod
}

func (r Role) IsWerewolf() bool {
	return r.Faction == FactionWerewolf
}

// RoleOf returns the static role for a kind.
func RoleOf(k Kind) (Role, error) {
	kit, ok := kits[k]
	if !ok {
		return Role{}, fmt.Errorf("%w: %q", ErrUnknownRole, k)
	}
	return kit.Role, nil
}

// ParseKind accepts the lower-case kind names used in configuration.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if _, ok := kits[k]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
	return k, nil
}
