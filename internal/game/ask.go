package game

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"golang.org/x/sync/errgroup"
)

// Answers the engine offers in prompts.
const (
	PassOption    = "pass"
	YesOption     = "yes"
	NoOption      = "no"
	SpeakOption   = "speak"
	QuitOption    = "quit"
	ExposeOption  = "expose"
	SaveOption    = "save"
	PoisonOption  = "poison"
	DestroyOption = "destroy"
)

// maxReprompts bounds how often a seat is asked again after a malformed answer
// before it gets the fallback.
const maxReprompts = 8

func (g *Game) queryContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.cfg.QueryTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, g.cfg.QueryTimeout)
}

// timedOut reports whether err is the per-query deadline rather than the caller
// giving up.
func timedOut(ctx context.Context, err error) bool {
	return errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil
}

// askOne asks seat until it picks one of options. A timeout counts as fallback.
func (g *Game) askOne(ctx context.Context, seat Seat, prompt string, options []string, fallback string) (string, error) {
	for attempt := 0; attempt < maxReprompts; attempt++ {
		qctx, cancel := g.queryContext(ctx)
		ans, err := g.chooser.ChooseOne(qctx, seat, prompt, options)
		cancel()
		switch {
		case err == nil && slices.Contains(options, ans):
			return ans, nil
		case err == nil:
			g.log.Debug("answer not offered, asking again", "seat", seat.String(), "answer", ans, "attempt", attempt)
		case timedOut(ctx, err):
			g.log.Info("query timed out", "seat", seat.String(), "fallback", fallback)
			return fallback, nil
		default:
			return "", fmt.Errorf("ask seat %s: %w", seat, err)
		}
	}
	g.log.Warn("seat kept answering outside the options", "seat", seat.String(), "fallback", fallback)
	return fallback, nil
}

// askText asks seat for free text. Empty answers are asked again; a timeout is silence.
func (g *Game) askText(ctx context.Context, seat Seat, prompt string) (string, error) {
	for attempt := 0; attempt < maxReprompts; attempt++ {
		qctx, cancel := g.queryContext(ctx)
		text, err := g.chooser.ChooseFreeText(qctx, seat, prompt)
		cancel()
		switch {
		case err == nil && text != "":
			return text, nil
		case err == nil:
		case timedOut(ctx, err):
			g.log.Info("speech timed out", "seat", seat.String())
			return "", nil
		default:
			return "", fmt.Errorf("ask seat %s: %w", seat, err)
		}
	}
	return "", nil
}

// fanOut runs ask for every seat at once and returns the answers in seat order
// once all of them are in. When stop matches an answer, queries still in flight
// are cancelled and stopped is the index of the first matching seat, else -1.
// Seats cut short by a stop keep an empty answer.
func (g *Game) fanOut(ctx context.Context, seats []Seat, ask func(context.Context, Seat) (string, error), stop func(string) bool) (answers []string, stopped int, err error) {
	answers = make([]string, len(seats))
	abortCtx, abort := context.WithCancel(ctx)
	defer abort()

	eg, egctx := errgroup.WithContext(abortCtx)
	for i, seat := range seats {
		eg.Go(func() error {
			ans, err := ask(egctx, seat)
			if err != nil {
				if abortCtx.Err() != nil && ctx.Err() == nil {
					return nil
				}
				return err
			}
			answers[i] = ans
			if stop != nil && stop(ans) {
				abort()
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, -1, err
	}

	stopped = -1
	if stop != nil {
		for i, ans := range answers {
			if ans != "" && stop(ans) {
				stopped = i
				break
			}
		}
	}
	return answers, stopped, nil
}

func (g *Game) askAll(ctx context.Context, seats []Seat, prompt string, options []string, fallback string) ([]string, error) {
	answers, _, err := g.fanOut(ctx, seats, func(ctx context.Context, s Seat) (string, error) {
		return g.askOne(ctx, s, prompt, options, fallback)
	}, nil)
	return answers, err
}

func (g *Game) textAll(ctx context.Context, seats []Seat, prompt string) ([]string, error) {
	answers, _, err := g.fanOut(ctx, seats, func(ctx context.Context, s Seat) (string, error) {
		return g.askText(ctx, s, prompt)
	}, nil)
	return answers, err
}
