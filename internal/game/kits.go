package game

import (
	"context"
	"fmt"
)

// Skill names double as mark names.
const (
	SkillBite     = "werewolf"
	SkillGuard    = "guard"
	SkillAntidote = "antidote"
	SkillPoison   = "poison"
	SkillShotgun  = "hunter"
	SkillBadge    = "badge"
)

const (
	badgePriority   = 5
	shotgunPriority = 4
)

// Skill is a named effect. Priority orders its marks; Merge lets marks of the same
// name and target add up instead of collapsing.
type Skill struct {
	Priority int
	Merge    bool
	Effect   func(ctx context.Context, g *Game, m Mark) error
}

// Kit is everything a kind of seat can do. NightPriority 0 means no night turn.
type Kit struct {
	Role          Role
	NightPriority int
	Charges       map[string]int
	Skills        map[string]Skill
	CanExpose     bool

	// Night runs once per living seat of the kind, in the seat's night bucket.
	// peers are the seats sharing the bucket.
	Night   func(ctx context.Context, g *Game, p *Player, peers []Seat) error
	OnDeath func(g *Game, p *Player, cause string)
}

var (
	kits        map[Kind]*Kit
	tableSkills map[string]Skill
)

func init() {
	villager := Role{Faction: FactionVillager, Category: CategoryStandard}
	god := Role{Faction: FactionVillager, Category: CategoryGod}

	kits = map[Kind]*Kit{
		KindVillager: {
			Role: withKind(villager, KindVillager),
		},
		KindWerewolf: {
			Role:          Role{Faction: FactionWerewolf, Category: CategoryWerewolf, Kind: KindWerewolf},
			NightPriority: 3,
			CanExpose:     true,
			Night:         werewolfNight,
			Skills: map[string]Skill{
				SkillBite: {Priority: 0, Effect: bite},
			},
		},
		KindGuard: {
			Role:          withKind(god, KindGuard),
			NightPriority: 4,
			Night:         guardNight,
			Skills: map[string]Skill{
				SkillGuard: {Priority: 3, Effect: protect},
			},
		},
		KindWitch: {
			Role:          withKind(god, KindWitch),
			NightPriority: 2,
			Night:         witchNight,
			Charges:       map[string]int{SkillAntidote: 1, SkillPoison: 1},
			Skills: map[string]Skill{
				SkillAntidote: {Priority: 2, Effect: antidote},
				SkillPoison:   {Priority: 1, Effect: poison},
			},
		},
		KindSeer: {
			Role:          withKind(god, KindSeer),
			NightPriority: 1,
			Night:         seerNight,
		},
		KindHunter: {
			Role: withKind(god, KindHunter),
			Skills: map[string]Skill{
				SkillShotgun: {Priority: shotgunPriority, Effect: shoot},
			},
			OnDeath: func(g *Game, p *Player, cause string) {
				if cause == CausePoison {
					return
				}
				g.post.Enqueue(Mark{Name: SkillShotgun, Source: p.Seat, Target: p.Seat, Priority: shotgunPriority}, false)
			},
		},
	}

	tableSkills = map[string]Skill{
		SkillBadge: {Priority: badgePriority, Effect: func(ctx context.Context, g *Game, m Mark) error {
			return g.transferBadge(ctx)
		}},
	}
}

func withKind(r Role, k Kind) Role {
	r.Kind = k
	return r
}

func bite(_ context.Context, g *Game, m Mark) error {
	g.kill(m.Target, CauseWerewolf)
	return nil
}

func protect(_ context.Context, g *Game, m Mark) error {
	g.night.guarded, g.night.hasGuarded = m.Target, true
	g.marks.Cancel(SkillBite, m.Target)
	return nil
}

// antidote saves the bitten seat, unless the guard already did: two protections
// on one seat kill it.
func antidote(_ context.Context, g *Game, m Mark) error {
	g.mustPlayer(m.Source).Charges[SkillAntidote]--
	if g.night.hasGuarded && g.night.guarded == m.Target {
		g.log.Info("guard and antidote on the same seat", "seat", m.Target.String())
		g.kill(m.Target, CauseWerewolf)
		return nil
	}
	g.marks.Cancel(SkillBite, m.Target)
	return nil
}

func poison(_ context.Context, g *Game, m Mark) error {
	g.mustPlayer(m.Source).Charges[SkillPoison]--
	g.kill(m.Target, CausePoison)
	return nil
}

func shoot(ctx context.Context, g *Game, m Mark) error {
	hunter := m.Source
	targets := g.Alive()
	if len(targets) == 0 {
		return nil
	}
	prompt := fmt.Sprintf("You are dead. As the hunter you may shoot one of seats %s, or %q.", seatList(targets), PassOption)
	ans, err := g.askOne(ctx, hunter, prompt, append(seatOptions(targets), PassOption), PassOption)
	if err != nil {
		return err
	}
	if ans == PassOption {
		g.tell(hunter, "You put the gun down.")
		return nil
	}
	target, err := ParseSeat(ans)
	if err != nil {
		violate("hunter answer %q: %v", ans, err)
	}
	g.sayAll(fmt.Sprintf("Seat %s is the hunter and shoots seat %s.", hunter, target))
	g.kill(target, CauseHunter)
	return nil
}

func werewolfNight(ctx context.Context, g *Game, p *Player, peers []Seat) error {
	var pack []Seat
	for _, s := range peers {
		if g.players[s].Role.IsWerewolf() {
			pack = append(pack, s)
		}
	}
	// The first wolf of the bucket acts for the pack.
	if len(pack) == 0 || pack[0] != p.Seat {
		return nil
	}

	g.say(pack, fmt.Sprintf("Werewolves, open your eyes. Seats %s are the %d werewolves still alive.", seatList(pack), len(pack)))
	if err := g.packChat(ctx, pack, "Discuss with your pack who to kill tonight."); err != nil {
		return err
	}

	vs := VoteSpec{Candidates: g.options, Voters: pack, Task: "kill", Audience: pack}
	res, err := g.Vote(ctx, vs)
	if err != nil {
		return err
	}
	if res.Tied() {
		g.say(pack, fmt.Sprintf("The pack is split between seats %s. Talk once more, then vote again.", seatList(res.Winners)))
		if err := g.packChat(ctx, pack, "Settle on one of the tied seats."); err != nil {
			return err
		}
		vs.Candidates = res.Winners
		if res, err = g.Vote(ctx, vs); err != nil {
			return err
		}
	}
	target, ok := res.Decisive()
	if !ok {
		g.say(pack, "The pack could not agree. Nobody is attacked tonight.")
		return nil
	}
	g.enqueue(Mark{Name: SkillBite, Source: p.Seat, Target: target})
	g.night.wolfTarget, g.night.hasWolfTarget = target, true
	g.say(pack, fmt.Sprintf("The pack attacks seat %s.", target))
	return nil
}

// packChat collects one line from every wolf at once and shows them to the pack
// in seat order.
func (g *Game) packChat(ctx context.Context, pack []Seat, prompt string) error {
	if len(pack) < 2 {
		return nil
	}
	lines, err := g.textAll(ctx, pack, prompt)
	if err != nil {
		return fmt.Errorf("pack chat: %w", err)
	}
	for i, s := range pack {
		if lines[i] != "" {
			g.speak(s, pack, lines[i])
		}
	}
	return nil
}

func seerNight(ctx context.Context, g *Game, p *Player, _ []Seat) error {
	targets := without(g.options, p.Seat)
	prompt := fmt.Sprintf("Seer, whose side do you want to learn? Choose one of seats %s, or %q.", seatList(targets), PassOption)
	ans, err := g.askOne(ctx, p.Seat, prompt, append(seatOptions(targets), PassOption), PassOption)
	if err != nil {
		return err
	}
	if ans == PassOption {
		return nil
	}
	target, err := ParseSeat(ans)
	if err != nil {
		violate("seer answer %q: %v", ans, err)
	}
	side := g.mustPlayer(target).Role.Faction
	g.record(Event{Kind: EventInvestigate, Source: p.Seat, Target: target, Detail: string(side)})
	g.tell(p.Seat, fmt.Sprintf("Seat %s is on the %s side.", target, side))
	return nil
}

// witchNight offers the antidote first. Using it ends the witch's night, so both
// potions are never spent on the same night.
func witchNight(ctx context.Context, g *Game, p *Player, _ []Seat) error {
	if p.Charges[SkillAntidote] > 0 {
		if !g.night.hasWolfTarget {
			g.tell(p.Seat, "Nobody was attacked tonight.")
		} else if victim := g.night.wolfTarget; victim != p.Seat || g.Clock.FirstCycle() {
			prompt := fmt.Sprintf("Seat %s was attacked tonight. Use your antidote? Answer %q or %q.", victim, SaveOption, PassOption)
			ans, err := g.askOne(ctx, p.Seat, prompt, []string{SaveOption, PassOption}, PassOption)
			if err != nil {
				return err
			}
			if ans == SaveOption {
				g.enqueue(Mark{Name: SkillAntidote, Source: p.Seat, Target: victim})
				return nil
			}
		} else {
			g.tell(p.Seat, "You were attacked tonight and cannot save yourself.")
		}
	}
	if p.Charges[SkillPoison] <= 0 {
		return nil
	}
	targets := without(g.options, p.Seat)
	prompt := fmt.Sprintf("Use your poison? Choose one of seats %s, or %q.", seatList(targets), PassOption)
	ans, err := g.askOne(ctx, p.Seat, prompt, append(seatOptions(targets), PassOption), PassOption)
	if err != nil || ans == PassOption {
		return err
	}
	target, err := ParseSeat(ans)
	if err != nil {
		violate("witch answer %q: %v", ans, err)
	}
	g.enqueue(Mark{Name: SkillPoison, Source: p.Seat, Target: target})
	return nil
}

// guardNight may not protect the same seat two nights running.
func guardNight(ctx context.Context, g *Game, p *Player, _ []Seat) error {
	targets := g.options
	if p.protected {
		targets = without(targets, p.lastProtected)
	}
	prompt := fmt.Sprintf("Guard, who do you protect tonight? Choose one of seats %s, or %q.", seatList(targets), PassOption)
	ans, err := g.askOne(ctx, p.Seat, prompt, append(seatOptions(targets), PassOption), PassOption)
	if err != nil {
		return err
	}
	if ans == PassOption {
		p.protected = false
		return nil
	}
	target, err := ParseSeat(ans)
	if err != nil {
		violate("guard answer %q: %v", ans, err)
	}
	p.lastProtected, p.protected = target, true
	g.enqueue(Mark{Name: SkillGuard, Source: p.Seat, Target: target})
	return nil
}
