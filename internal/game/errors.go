package game

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownControl is returned by a Chooser whose seat has no usable input channel.
	ErrUnknownControl = errors.New("unknown control")
	// ErrInvariant wraps engine bugs: stale targets, abilities used by the wrong seat.
	ErrInvariant = errors.New("invariant violation")

	ErrUnknownRole = errors.New("unknown role")
	ErrBadConfig   = errors.New("bad game config")
)

type invariantError struct {
	msg string
}

func (e invariantError) Error() string {
	return e.msg
}

// violate aborts the game. Run turns the panic back into an error.
func violate(format string, args ...any) {
	panic(invariantError{msg: fmt.Sprintf(format, args...)})
}

// recoverInvariant converts an invariant panic into err. Other panics propagate.
func recoverInvariant(err *error) {
	r := recover()
	if r == nil {
		return
	}
	if ie, ok := r.(invariantError); ok {
		*err = fmt.Errorf("%w: %s", ErrInvariant, ie.msg)
		return
	}
	panic(r)
}
