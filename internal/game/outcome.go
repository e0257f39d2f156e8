package game

type OutcomeKind int

const (
	Continue OutcomeKind = iota
	Interrupted
)

// Outcome is what a day step hands back to the day loop. Interrupted means the
// rest of the day is skipped.
type Outcome struct {
	Kind   OutcomeKind
	Seat   Seat
	Reason string
}

var proceed = Outcome{Kind: Continue}

func interrupted(s Seat, reason string) Outcome {
	return Outcome{Kind: Interrupted, Seat: s, Reason: reason}
}

func (o Outcome) Interrupted() bool {
	return o.Kind == Interrupted
}
