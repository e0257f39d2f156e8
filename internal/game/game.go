// Package game is the rules engine of the werewolf simulation: the Day/Night clock,
// the night scheduler, the deferred effect queue, votes, the sheriff badge and the
// win evaluator. Everything it needs from the outside goes through Chooser and
// Broadcaster.
package game

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
)

const (
	WeightNormal   = 1.0
	WeightSheriff  = 1.5
	WeightSilenced = 0.0
)

// Death causes.
const (
	CauseWerewolf = "werewolf"
	CausePoison   = "witch"
	CauseHunter   = "hunter"
	CauseVote     = "vote"
	CauseExposed  = "exposed"
)

var ErrCycleLimit = errors.New("cycle limit reached")

// Config is everything the engine takes at construction.
type Config struct {
	Roster           []Kind
	Names            []string // optional, by seat
	WinMode          WinMode
	ElectionRounds   int
	AllowExposure    bool
	QueryTimeout     time.Duration // 0 disables the per-query timeout
	DiscussionRounds int
	MaxCycles        int // 0 means no limit
}

// DefaultConfig is the classic nine-seat table.
func DefaultConfig() Config {
	return Config{
		Roster: []Kind{
			KindVillager, KindVillager, KindVillager,
			KindWerewolf, KindWerewolf, KindWerewolf,
			KindSeer, KindWitch, KindHunter,
		},
		WinMode:          WinAll,
		ElectionRounds:   1,
		DiscussionRounds: 2,
		QueryTimeout:     2 * time.Minute,
	}
}

func (c Config) validate() error {
	if len(c.Roster) == 0 {
		return fmt.Errorf("%w: empty roster", ErrBadConfig)
	}
	for _, k := range c.Roster {
		if _, ok := kits[k]; !ok {
			return fmt.Errorf("%w: %w: %q", ErrBadConfig, ErrUnknownRole, k)
		}
	}
	if c.WinMode != WinAll && c.WinMode != WinPartial {
		return fmt.Errorf("%w: win mode %q", ErrBadConfig, c.WinMode)
	}
	if len(c.Names) > 0 && len(c.Names) != len(c.Roster) {
		return fmt.Errorf("%w: %d names for %d seats", ErrBadConfig, len(c.Names), len(c.Roster))
	}
	if c.ElectionRounds < 0 || c.DiscussionRounds < 0 || c.MaxCycles < 0 {
		return fmt.Errorf("%w: negative count", ErrBadConfig)
	}
	return nil
}

// Player is owned by its Game. Other code refers to it by Seat.
type Player struct {
	Seat        Seat
	Name        string
	Role        Role
	Alive       bool
	VoteWeight  float64
	Charges     map[string]int
	DeathCauses []string

	kit           *Kit
	lastProtected Seat
	protected     bool // lastProtected is set
}

func (p *Player) diedOf(cause string) bool {
	for _, c := range p.DeathCauses {
		if c == cause {
			return true
		}
	}
	return false
}

func (p *Player) String() string {
	life := "alive"
	if !p.Alive {
		life = "dead"
	}
	return fmt.Sprintf("%s(seat %s)[%s] %s", p.Name, p.Seat, p.Role.Kind, life)
}

type nightState struct {
	wolfTarget    Seat
	hasWolfTarget bool
	guarded       Seat
	hasGuarded    bool
}

// Game is the authoritative state of one table. It is driven by a single goroutine;
// only seat queries fan out.
type Game struct {
	cfg     Config
	chooser Chooser
	out     Broadcaster
	rec     Recorder
	log     *slog.Logger

	Clock   Clock
	players []*Player
	marks   Queue
	post    Queue
	badge   Badge
	night   nightState
	options []Seat
}

type Option func(*Game)

func WithRecorder(r Recorder) Option {
	return func(g *Game) { g.rec = r }
}

func WithLogger(l *slog.Logger) Option {
	return func(g *Game) { g.log = l }
}

// New seats the roster in order: seat i gets cfg.Roster[i].
func New(cfg Config, chooser Chooser, out Broadcaster, opts ...Option) (*Game, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if chooser == nil || out == nil {
		return nil, fmt.Errorf("%w: chooser and broadcaster are required", ErrBadConfig)
	}
	g := &Game{
		cfg:     cfg,
		chooser: chooser,
		out:     out,
		rec:     nopRecorder{},
		log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, o := range opts {
		o(g)
	}
	for i, k := range cfg.Roster {
		kit := kits[k]
		p := &Player{
			Seat:       Seat(i),
			Name:       "Seat " + Seat(i).String(),
			Role:       kit.Role,
			Alive:      true,
			VoteWeight: WeightNormal,
			Charges:    make(map[string]int, len(kit.Charges)),
			kit:        kit,
		}
		if len(cfg.Names) > 0 {
			p.Name = cfg.Names[i]
		}
		for name, n := range kit.Charges {
			p.Charges[name] = n
		}
		g.players = append(g.players, p)
	}
	g.badge.RoundsLeft = cfg.ElectionRounds
	return g, nil
}

// Player returns a copy of the player at seat.
func (g *Game) Player(s Seat) Player {
	return *g.mustPlayer(s)
}

func (g *Game) Badge() Badge {
	return g.badge
}

func (g *Game) mustPlayer(s Seat) *Player {
	if s < 0 || int(s) >= len(g.players) {
		violate("seat %d out of range (0..%d)", s, len(g.players)-1)
	}
	return g.players[s]
}

// Audience is every seat, living or dead.
func (g *Game) Audience() []Seat {
	out := make([]Seat, len(g.players))
	for i := range g.players {
		out[i] = Seat(i)
	}
	return out
}

func (g *Game) Alive() []Seat {
	return g.aliveWhere(func(*Player) bool { return true })
}

func (g *Game) aliveWhere(keep func(*Player) bool) []Seat {
	var out []Seat
	for _, p := range g.players {
		if p.Alive && keep(p) {
			out = append(out, p.Seat)
		}
	}
	return out
}

func (g *Game) aliveKind(k Kind) []Seat {
	return g.aliveWhere(func(p *Player) bool { return p.Role.Kind == k })
}

// Winner evaluates the living roles.
func (g *Game) Winner() Faction {
	var roles []Role
	for _, p := range g.players {
		if p.Alive {
			roles = append(roles, p.Role)
		}
	}
	return Evaluate(roles, g.cfg.WinMode)
}

// kill marks s dead. Killing a seat that already died in the same resolution only
// adds the cause.
func (g *Game) kill(s Seat, cause string) {
	p := g.mustPlayer(s)
	p.DeathCauses = append(p.DeathCauses, cause)
	if !p.Alive {
		return
	}
	p.Alive = false
	g.log.Info("seat died", "seat", s.String(), "cause", cause, "cycle", g.Clock.Cycle, "phase", g.Clock.Phase.String())
	g.record(Event{Kind: EventDeath, Source: s, Target: s, Detail: cause})
	if p.kit.OnDeath != nil {
		p.kit.OnDeath(g, p, cause)
	}
	if g.badge.HasHolder && g.badge.Holder == s {
		g.post.Enqueue(Mark{Name: SkillBadge, Source: s, Target: s, Priority: badgePriority}, false)
	}
}

// enqueue validates m against the live table and adds it to the night queue.
func (g *Game) enqueue(m Mark) {
	src := g.mustPlayer(m.Source)
	tgt := g.mustPlayer(m.Target)
	skill, ok := src.kit.Skills[m.Name]
	if !ok {
		violate("seat %s (%s) has no skill %q", m.Source, src.Role.Kind, m.Name)
	}
	if !tgt.Alive {
		violate("mark %q targets dead seat %s", m.Name, m.Target)
	}
	m.Priority = skill.Priority
	g.marks.Enqueue(m, skill.Merge)
	g.record(Event{Kind: EventMark, Source: m.Source, Target: m.Target, Detail: m.Name})
}

// handler finds the effect for m: table-wide skills first, then the source's kit.
func (g *Game) handler(m Mark) Skill {
	if s, ok := tableSkills[m.Name]; ok {
		return s
	}
	src := g.mustPlayer(m.Source)
	s, ok := src.kit.Skills[m.Name]
	if !ok {
		violate("no handler %q for seat %s (%s)", m.Name, m.Source, src.Role.Kind)
	}
	return s
}

func (g *Game) apply(ctx context.Context, m Mark) error {
	g.log.Debug("resolving mark", "mark", m.Name, "source", m.Source.String(), "target", m.Target.String(), "priority", m.Priority)
	return g.handler(m).Effect(ctx, g, m)
}

// resolve drains the night queue. Handlers may cancel marks still waiting.
func (g *Game) resolve(ctx context.Context) error {
	for {
		m, ok := g.marks.Pop()
		if !ok {
			return nil
		}
		if err := g.apply(ctx, m); err != nil {
			return err
		}
	}
}

// resolvePost drains post marks one at a time. A decided game fires no more of
// them, so the win check runs before every pop.
func (g *Game) resolvePost(ctx context.Context) (Faction, error) {
	for {
		if w := g.Winner(); w != FactionUndecided {
			return w, nil
		}
		m, ok := g.post.Pop()
		if !ok {
			return FactionUndecided, nil
		}
		g.Clock.AdvanceRound()
		if err := g.apply(ctx, m); err != nil {
			return FactionUndecided, err
		}
	}
}

func (g *Game) record(ev Event) {
	ev.At = g.Clock
	g.rec.Record(ev)
}

func (g *Game) say(audience []Seat, text string) {
	g.out.Broadcast(Message{At: g.Clock, Audience: audience, Source: ModeratorSource, Text: text})
}

func (g *Game) sayAll(text string) {
	g.say(g.Audience(), text)
}

func (g *Game) tell(s Seat, text string) {
	g.say([]Seat{s}, text)
}

func (g *Game) speak(s Seat, audience []Seat, text string) {
	g.out.Broadcast(Message{At: g.Clock, Audience: audience, Source: s.String(), Text: text})
}

// Run plays until a side wins. Invariant violations come back as ErrInvariant.
func (g *Game) Run(ctx context.Context) (winner Faction, err error) {
	defer recoverInvariant(&err)

	g.log.Info("game started", "seats", len(g.players), "win_mode", string(g.cfg.WinMode))
	for _, p := range g.players {
		g.tell(p.Seat, fmt.Sprintf("You are seat %s, a %s.", p.Seat, p.Role.Kind))
	}
	g.sayAll(fmt.Sprintf("This game is The Werewolves of Miller's Hollow with %s. Seats are numbered 1 to %d.",
		rosterSummary(g.cfg.Roster), len(g.players)))

	for {
		if err := ctx.Err(); err != nil {
			return FactionUndecided, err
		}
		if g.cfg.MaxCycles > 0 && g.Clock.Cycle >= g.cfg.MaxCycles {
			return FactionUndecided, fmt.Errorf("%w: %d", ErrCycleLimit, g.cfg.MaxCycles)
		}
		w, err := g.cycle(ctx)
		if err != nil {
			return FactionUndecided, err
		}
		if w != FactionUndecided {
			g.finish(w)
			return w, nil
		}
	}
}

// cycle plays one night and the day after it.
func (g *Game) cycle(ctx context.Context) (Faction, error) {
	before := g.Alive()
	if err := g.runNight(ctx); err != nil {
		return FactionUndecided, err
	}
	return g.runDay(ctx, before)
}

func (g *Game) finish(w Faction) {
	var winners []string
	for _, p := range g.players {
		if p.Role.Faction == w {
			winners = append(winners, p.String())
		}
	}
	g.record(Event{Kind: EventWinner, Detail: string(w)})
	g.log.Info("game finished", "winner", string(w), "cycle", g.Clock.Cycle)
	text := fmt.Sprintf("%s win.", w)
	if len(winners) > 0 {
		text += " Winners: " + strings.Join(winners, ", ") + "."
	}
	g.sayAll(text)
}

func rosterSummary(roster []Kind) string {
	counts := map[Kind]int{}
	var order []Kind
	for _, k := range roster {
		if counts[k] == 0 {
			order = append(order, k)
		}
		counts[k]++
	}
	parts := make([]string, 0, len(order))
	for _, k := range order {
		parts = append(parts, fmt.Sprintf("%d %s", counts[k], k))
	}
	return strings.Join(parts, ", ")
}

func seatList(seats []Seat) string {
	parts := make([]string, len(seats))
	for i, s := range seats {
		parts[i] = s.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func seatOptions(seats []Seat) []string {
	out := make([]string, len(seats))
	for i, s := range seats {
		out[i] = s.String()
	}
	return out
}

func without(seats []Seat, drop ...Seat) []Seat {
	out := make([]Seat, 0, len(seats))
	for _, s := range seats {
		keep := true
		for _, d := range drop {
			if s == d {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, s)
		}
	}
	return out
}
