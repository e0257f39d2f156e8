package game

// WinMode selects how many villager groups the werewolves must wipe out.
type WinMode string

const (
	WinAll     WinMode = "all"     // every villager and every god
	WinPartial WinMode = "partial" // all villagers or all gods
)

// Census is a head count of living roles.
type Census struct {
	Villagers  int
	Gods       int
	Werewolves int
}

func (c Census) Total() int {
	return c.Villagers + c.Gods + c.Werewolves
}

func Count(roles []Role) Census {
	var c Census
	for _, r := range roles {
		switch {
		case r.IsVillagerStandard():
			c.Villagers++
		case r.IsGod():
			c.Gods++
		case r.IsWerewolf():
			c.Werewolves++
		default:
			violate("role %+v belongs to no side", r)
		}
	}
	return c
}

// Evaluate maps the living roles to a winner. It has no side effects.
func Evaluate(roles []Role, mode WinMode) Faction {
	c := Count(roles)
	switch {
	case c.Total() == 0:
		return FactionNobody
	case c.Werewolves == 0:
		return FactionVillager
	}
	switch mode {
	case WinAll:
		if c.Villagers+c.Gods == 0 {
			return FactionWerewolf
		}
	case WinPartial:
		if c.Villagers == 0 || c.Gods == 0 {
			return FactionWerewolf
		}
	default:
		violate("win mode %q", mode)
	}
	return FactionUndecided
}
