package game

import "context"

//go:generate go tool mockgen -destination=./mocks/collab_mock.go -package=mocks . Chooser,Broadcaster,Recorder

// Chooser asks a seat for an answer. Implementations validate membership of the
// returned option and retry internally on malformed answers.
type Chooser interface {
	ChooseOne(ctx context.Context, seat Seat, prompt string, options []string) (string, error)
	ChooseFreeText(ctx context.Context, seat Seat, prompt string) (string, error)
}

// ModeratorSource labels messages emitted by the engine itself.
const ModeratorSource = "Moderator"

// Message is one broadcast. The engine emits messages in order; a Broadcaster must
// append them to each seat's history in that same order.
type Message struct {
	At       Clock
	Audience []Seat
	Source   string
	Text     string
}

type Broadcaster interface {
	Broadcast(msg Message)
}

// Event kinds passed to a Recorder.
const (
	EventDeath       = "death"
	EventVote        = "vote"
	EventMark        = "mark"
	EventBadge       = "badge"
	EventExposure    = "exposure"
	EventWinner      = "winner"
	EventInvestigate = "investigate"
)

// Event is a structured record of something the engine decided.
type Event struct {
	At     Clock
	Kind   string
	Source Seat
	Target Seat
	Detail string
}

type Recorder interface {
	Record(ev Event)
}

type nopRecorder struct{}

func (nopRecorder) Record(Event) {}
