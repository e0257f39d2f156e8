package main

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"werewolfsim/internal/game"
)

var db *sqlx.DB

// GameRecord is one simulated game.
type GameRecord struct {
	ID     int64  `db:"id"`
	UUID   string `db:"uuid"`
	Status string `db:"status"` // running, finished, aborted
	Winner string `db:"winner"`
	Cycle  int    `db:"cycle"`
}

// SeatRecord is a seat as stored, joined with its role.
type SeatRecord struct {
	ID          int64  `db:"id"`
	GameID      int64  `db:"game_id"`
	Seat        int    `db:"seat"`
	Name        string `db:"name"`
	RoleName    string `db:"role_name"`
	Team        string `db:"team"`
	Control     string `db:"control"`
	SecretCode  string `db:"secret_code"`
	IsAlive     bool   `db:"is_alive"`
	DeathCauses string `db:"death_causes"`
}

// MessageRecord is one broadcast. Audience is stored as ",1,2,3," (display seats)
// so a seat can be matched with LIKE.
type MessageRecord struct {
	ID       int64  `db:"id"`
	GameID   int64  `db:"game_id"`
	Cycle    int    `db:"cycle"`
	Phase    string `db:"phase"`
	Round    int    `db:"round"`
	Audience string `db:"audience"`
	Source   string `db:"source"`
	Text     string `db:"text"`
}

// GameAction is one engine event. Visibility determines who can see it:
//   - "public": everyone can see
//   - "team:werewolf": only werewolf team can see
//   - "team:villager": only villager team can see
//   - "actor": only the acting seat can see
//   - "resolved": hidden until the phase ends, then becomes public
type GameAction struct {
	ID          int64  `db:"id"`
	GameID      int64  `db:"game_id"`
	Cycle       int    `db:"cycle"`
	Phase       string `db:"phase"`
	Round       int    `db:"round"`
	ActorSeat   int    `db:"actor_seat"`
	ActionType  string `db:"action_type"`
	TargetSeat  *int   `db:"target_seat"`
	Visibility  string `db:"visibility"`
	Description string `db:"description"`
}

// Visibility types
const (
	VisibilityPublic       = "public"
	VisibilityTeamWerewolf = "team:werewolf"
	VisibilityTeamVillager = "team:villager"
	VisibilityActor        = "actor"
	VisibilityResolved     = "resolved"
)

// openDB connects with the cgo driver ("sqlite3") or the pure Go one ("sqlite").
func openDB(driver, dsn string) (*sqlx.DB, error) {
	switch driver {
	case "sqlite3", "sqlite":
	default:
		return nil, fmt.Errorf("unsupported db driver %q (want sqlite3 or sqlite)", driver)
	}
	conn, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", driver, err)
	}
	return conn, nil
}

func initDB() error {
	schema := `
	PRAGMA journal_mode=WAL;

	CREATE TABLE IF NOT EXISTS game (
		uuid TEXT NOT NULL UNIQUE,
		status TEXT NOT NULL DEFAULT 'running',
		winner TEXT NOT NULL DEFAULT '',
		cycle INTEGER NOT NULL DEFAULT 0
	);
	CREATE TABLE IF NOT EXISTS role (
		name TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL,
		team TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS game_player (
		game_id INTEGER NOT NULL,
		seat INTEGER NOT NULL,
		name TEXT NOT NULL,
		role_id INTEGER NOT NULL,
		control TEXT NOT NULL,
		secret_code TEXT NOT NULL DEFAULT '',
		is_alive INTEGER NOT NULL DEFAULT 1,
		death_causes TEXT NOT NULL DEFAULT '',
		FOREIGN KEY (game_id) REFERENCES game(rowid),
		FOREIGN KEY (role_id) REFERENCES role(rowid),
		UNIQUE(game_id, seat)
	);
	CREATE TABLE IF NOT EXISTS game_message (
		game_id INTEGER NOT NULL,
		cycle INTEGER NOT NULL,
		phase TEXT NOT NULL,
		round INTEGER NOT NULL,
		audience TEXT NOT NULL,
		source TEXT NOT NULL,
		text TEXT NOT NULL,
		FOREIGN KEY (game_id) REFERENCES game(rowid)
	);
	CREATE TABLE IF NOT EXISTS game_action (
		game_id INTEGER NOT NULL,
		cycle INTEGER NOT NULL,
		phase TEXT NOT NULL,
		round INTEGER NOT NULL,
		actor_seat INTEGER NOT NULL,
		action_type TEXT NOT NULL,
		target_seat INTEGER,
		visibility TEXT NOT NULL DEFAULT 'public',
		description TEXT NOT NULL DEFAULT '',
		FOREIGN KEY (game_id) REFERENCES game(rowid)
	);
	CREATE INDEX IF NOT EXISTS idx_game_message_lookup ON game_message(game_id, cycle, phase);
	CREATE INDEX IF NOT EXISTS idx_game_action_lookup ON game_action(game_id, cycle, phase, visibility);

	INSERT OR IGNORE INTO role (name, description, team)
	VALUES
	  ('villager', 'No special powers, relies on deduction and discussion.', 'villager'),
	  ('werewolf', 'Knows other werewolves, votes to kill villagers at night.', 'werewolf'),
	  ('seer', 'Learns the side of one seat per night.', 'villager'),
	  ('witch', 'Has one antidote and one poison, never both in one night.', 'villager'),
	  ('hunter', 'When killed, except by poison, can immediately shoot one seat.', 'villager'),
	  ('guard', 'Protects one seat per night, but not the same seat twice in a row.', 'villager')
	`
	_, err := db.Exec(schema)
	if err != nil {
		log.Printf("initDB error: %v", err)
		return err
	}
	log.Printf("Database initialized successfully")
	return nil
}

// Transcript persists one game: its seats, every broadcast and every engine event.
// It is both the game's Broadcaster and its Recorder.
type Transcript struct {
	db     *sqlx.DB
	GameID int64
	UUID   string

	mu  sync.Mutex
	now game.Clock // stamp of the latest message or event
}

// newTranscript creates the game row and its seats in one transaction.
func newTranscript(conn *sqlx.DB, plans []SeatPlan) (*Transcript, error) {
	tx, err := conn.Beginx()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	id := uuid.NewString()
	res, err := tx.Exec("INSERT INTO game (uuid) VALUES (?)", id)
	if err != nil {
		return nil, fmt.Errorf("insert game: %w", err)
	}
	gameID, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	for _, p := range plans {
		res, err := tx.Exec(`
			INSERT INTO game_player (game_id, seat, name, role_id, control, secret_code)
			SELECT ?, ?, ?, rowid, ?, ? FROM role WHERE name = ?`,
			gameID, int(p.Seat), p.Name, p.Control, p.Code, string(p.Kind))
		if err != nil {
			return nil, fmt.Errorf("insert seat %s: %w", p.Seat, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil, fmt.Errorf("insert seat %s: %w: %s", p.Seat, game.ErrUnknownRole, p.Kind)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	DebugLog("newTranscript: game %d (%s) with %d seats", gameID, id, len(plans))
	return &Transcript{db: conn, GameID: gameID, UUID: id}, nil
}

func (t *Transcript) Broadcast(msg game.Message) {
	t.advance(msg.At)
	_, err := t.db.Exec(`
		INSERT INTO game_message (game_id, cycle, phase, round, audience, source, text)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.GameID, msg.At.Cycle, msg.At.Phase.String(), msg.At.Round, encodeAudience(msg.Audience), msg.Source, msg.Text)
	if err != nil {
		logError("Transcript.Broadcast", err)
	}
}

func (t *Transcript) Record(ev game.Event) {
	t.advance(ev.At)
	target := int(ev.Target)
	a := GameAction{
		GameID:      t.GameID,
		Cycle:       ev.At.Cycle,
		Phase:       ev.At.Phase.String(),
		Round:       ev.At.Round,
		ActorSeat:   int(ev.Source),
		ActionType:  ev.Kind,
		TargetSeat:  &target,
		Visibility:  visibilityOf(ev),
		Description: describeEvent(ev),
	}
	if ev.Kind == game.EventWinner {
		a.TargetSeat = nil
	}
	_, err := t.db.NamedExec(`
		INSERT INTO game_action (game_id, cycle, phase, round, actor_seat, action_type, target_seat, visibility, description)
		VALUES (:game_id, :cycle, :phase, :round, :actor_seat, :action_type, :target_seat, :visibility, :description)`, a)
	if err != nil {
		logError("Transcript.Record", err)
		return
	}

	switch ev.Kind {
	case game.EventDeath:
		_, err = t.db.Exec(`
			UPDATE game_player
			SET is_alive = 0,
				death_causes = CASE WHEN death_causes = '' THEN ? ELSE death_causes || ',' || ? END
			WHERE game_id = ? AND seat = ?`,
			ev.Detail, ev.Detail, t.GameID, int(ev.Target))
	case game.EventWinner:
		err = t.Finish("finished", ev.Detail, ev.At.Cycle)
	}
	if err != nil {
		logError("Transcript.Record: update", err)
	}
}

func (t *Transcript) advance(at game.Clock) {
	t.mu.Lock()
	t.now = at
	t.mu.Unlock()
}

// Now is the game clock as far as the transcript has seen it.
func (t *Transcript) Now() game.Clock {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.now
}

// Finish closes the game row.
func (t *Transcript) Finish(status, winner string, cycle int) error {
	_, err := t.db.Exec("UPDATE game SET status = ?, winner = ?, cycle = ? WHERE rowid = ?", status, winner, cycle, t.GameID)
	return err
}

func (t *Transcript) Game() (GameRecord, error) {
	var g GameRecord
	err := t.db.Get(&g, "SELECT rowid as id, uuid, status, winner, cycle FROM game WHERE rowid = ?", t.GameID)
	return g, err
}

func (t *Transcript) Seats() ([]SeatRecord, error) {
	var seats []SeatRecord
	err := t.db.Select(&seats, `
		SELECT g.rowid as id,
			g.game_id as game_id,
			g.seat as seat,
			g.name as name,
			r.name as role_name,
			r.team as team,
			g.control as control,
			g.secret_code as secret_code,
			g.is_alive as is_alive,
			g.death_causes as death_causes
		FROM game_player g
			JOIN role r on g.role_id = r.rowid
		WHERE g.game_id = ?
		ORDER BY g.seat`, t.GameID)
	return seats, err
}

func (t *Transcript) seat(s game.Seat) (SeatRecord, error) {
	seats, err := t.Seats()
	if err != nil {
		return SeatRecord{}, err
	}
	for _, r := range seats {
		if r.Seat == int(s) {
			return r, nil
		}
	}
	return SeatRecord{}, fmt.Errorf("%w: %s", ErrNoSeat, s)
}

// MessagesFor returns the broadcasts seat s received, oldest first.
func (t *Transcript) MessagesFor(s game.Seat) ([]game.Message, error) {
	var rows []MessageRecord
	err := t.db.Select(&rows, `
		SELECT rowid as id, game_id, cycle, phase, round, audience, source, text
		FROM game_message
		WHERE game_id = ? AND audience LIKE ?
		ORDER BY rowid ASC`, t.GameID, "%,"+s.String()+",%")
	if err != nil {
		return nil, err
	}
	msgs := make([]game.Message, 0, len(rows))
	for _, r := range rows {
		msgs = append(msgs, r.message())
	}
	return msgs, nil
}

// PublicHistory returns the text of every message all seats received.
func (t *Transcript) PublicHistory(seats int) ([]string, error) {
	var rows []MessageRecord
	err := t.db.Select(&rows, `
		SELECT rowid as id, game_id, cycle, phase, round, audience, source, text
		FROM game_message
		WHERE game_id = ?
		ORDER BY rowid ASC`, t.GameID)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, r := range rows {
		if strings.Count(r.Audience, ",")-1 == seats {
			out = append(out, r.Source+": "+r.Text)
		}
	}
	return out, nil
}

// ActionsFor returns the actions seat s may see at the given moment.
func (t *Transcript) ActionsFor(s game.Seat, now game.Clock) ([]GameAction, error) {
	viewer, err := t.seat(s)
	if err != nil {
		return nil, err
	}
	var all []GameAction
	err = t.db.Select(&all, `
		SELECT rowid as id, game_id, cycle, phase, round, actor_seat, action_type, target_seat, visibility, description
		FROM game_action
		WHERE game_id = ? AND cycle <= ?
		ORDER BY rowid ASC`, t.GameID, now.Cycle)
	if err != nil {
		return nil, err
	}
	var visible []GameAction
	for _, a := range all {
		if canSeeAction(a, viewer, now) {
			visible = append(visible, a)
		}
	}
	return visible, nil
}

// VisibleActions is ActionsFor at the transcript's current clock.
func (t *Transcript) VisibleActions(s game.Seat) ([]GameAction, error) {
	return t.ActionsFor(s, t.Now())
}

// canSeeAction determines if a seat can see a specific action based on visibility rules
func canSeeAction(action GameAction, viewer SeatRecord, now game.Clock) bool {
	switch action.Visibility {
	case VisibilityPublic:
		return true
	case VisibilityTeamWerewolf:
		return viewer.Team == string(game.FactionWerewolf)
	case VisibilityTeamVillager:
		return viewer.Team == string(game.FactionVillager)
	case VisibilityActor:
		return viewer.Seat == action.ActorSeat
	case VisibilityResolved:
		// Visible once we're past the phase when the action happened
		if action.Cycle < now.Cycle {
			return true
		}
		return action.Cycle == now.Cycle && action.Phase == game.PhaseNight.String() && now.Phase == game.PhaseDay
	default:
		return false
	}
}

func visibilityOf(ev game.Event) string {
	switch ev.Kind {
	case game.EventMark, game.EventInvestigate:
		return VisibilityActor
	case game.EventVote:
		if ev.At.Phase == game.PhaseNight {
			return VisibilityTeamWerewolf
		}
		return VisibilityPublic
	case game.EventDeath:
		if ev.At.Phase == game.PhaseNight {
			return VisibilityResolved
		}
		return VisibilityPublic
	default:
		return VisibilityPublic
	}
}

func describeEvent(ev game.Event) string {
	switch ev.Kind {
	case game.EventDeath:
		return fmt.Sprintf("Seat %s died (%s).", ev.Target, ev.Detail)
	case game.EventVote:
		return fmt.Sprintf("Seat %s voted to %s.", ev.Source, ev.Detail)
	case game.EventMark:
		return fmt.Sprintf("Seat %s used %s on seat %s.", ev.Source, ev.Detail, ev.Target)
	case game.EventInvestigate:
		return fmt.Sprintf("Seat %s is on the %s side.", ev.Target, ev.Detail)
	case game.EventBadge:
		return fmt.Sprintf("Badge %s (seat %s).", ev.Detail, ev.Target)
	case game.EventExposure:
		return fmt.Sprintf("Seat %s revealed as a werewolf.", ev.Source)
	case game.EventWinner:
		return fmt.Sprintf("%s win.", ev.Detail)
	}
	return ev.Kind
}

func encodeAudience(seats []game.Seat) string {
	var b strings.Builder
	b.WriteByte(',')
	for _, s := range seats {
		b.WriteString(s.String())
		b.WriteByte(',')
	}
	return b.String()
}

func decodeAudience(s string) []game.Seat {
	var out []game.Seat
	for _, part := range strings.Split(strings.Trim(s, ","), ",") {
		if part == "" {
			continue
		}
		seat, err := game.ParseSeat(part)
		if err != nil {
			continue
		}
		out = append(out, seat)
	}
	return out
}

func parsePhase(s string) game.Phase {
	if s == game.PhaseNight.String() {
		return game.PhaseNight
	}
	return game.PhaseDay
}

func (r MessageRecord) message() game.Message {
	return game.Message{
		At:       game.Clock{Cycle: r.Cycle, Phase: parsePhase(r.Phase), Round: r.Round},
		Audience: decodeAudience(r.Audience),
		Source:   r.Source,
		Text:     r.Text,
	}
}

func (a GameAction) clock() game.Clock {
	return game.Clock{Cycle: a.Cycle, Phase: parsePhase(a.Phase), Round: a.Round}
}

// seatForCode finds the seat a claim code belongs to. Only seats played over the
// websocket hub have codes.
func seatForCode(conn *sqlx.DB, gameID int64, code string) (game.Seat, error) {
	var seat int
	err := conn.Get(&seat, `
		SELECT seat FROM game_player
		WHERE game_id = ? AND secret_code = ? AND secret_code != ''`, gameID, code)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: code %s", ErrNoSeat, strconv.Quote(code))
	}
	if err != nil {
		return 0, err
	}
	return game.Seat(seat), nil
}
