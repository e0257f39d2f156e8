package game_test

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/mock/gomock"

	"werewolfsim/internal/game"
	"werewolfsim/internal/game/mocks"
)

// Run only reaches the outside world through its collaborators.
func TestRunThroughCollaborators(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	chooser := mocks.NewMockChooser(ctrl)
	out := mocks.NewMockBroadcaster(ctrl)
	rec := mocks.NewMockRecorder(ctrl)

	gomock.InOrder(
		chooser.EXPECT().ChooseOne(gomock.Any(), game.Seat(1), gomock.Any(), []string{"1", "2", "3", "pass"}).Return("1", nil),
		chooser.EXPECT().ChooseOne(gomock.Any(), game.Seat(2), gomock.Any(), []string{"1", "2", "pass"}).Return("pass", nil),
	)
	var msgs []game.Message
	out.EXPECT().Broadcast(gomock.Any()).Do(func(m game.Message) { msgs = append(msgs, m) }).AnyTimes()
	var deaths []game.Event
	rec.EXPECT().Record(gomock.Any()).Do(func(ev game.Event) {
		if ev.Kind == game.EventDeath {
			deaths = append(deaths, ev)
		}
	}).AnyTimes()

	cfg := game.Config{
		Roster:  []game.Kind{game.KindVillager, game.KindWerewolf, game.KindSeer},
		WinMode: game.WinPartial,
	}
	g, err := game.New(cfg, chooser, out, game.WithRecorder(rec))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	w, err := g.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if w != game.FactionWerewolf {
		t.Fatalf("winner = %q", w)
	}
	if len(deaths) != 1 || deaths[0].Target != 0 || deaths[0].Detail != game.CauseWerewolf {
		t.Fatalf("deaths = %+v", deaths)
	}
	if len(msgs) == 0 || msgs[len(msgs)-1].Source != game.ModeratorSource {
		t.Fatalf("no closing announcement")
	}
	for i := 1; i < len(msgs); i++ {
		if msgs[i].At.Cycle < msgs[i-1].At.Cycle {
			t.Fatalf("message %d went back in time: %s after %s", i, msgs[i].At, msgs[i-1].At)
		}
	}
}

func TestUnknownControlAbortsRun(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	chooser := mocks.NewMockChooser(ctrl)
	out := mocks.NewMockBroadcaster(ctrl)
	out.EXPECT().Broadcast(gomock.Any()).AnyTimes()
	chooser.EXPECT().ChooseOne(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return("", game.ErrUnknownControl).MinTimes(1)

	cfg := game.Config{Roster: []game.Kind{game.KindVillager, game.KindWerewolf, game.KindVillager}, WinMode: game.WinAll}
	g, err := game.New(cfg, chooser, out)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := g.Run(context.Background()); !errors.Is(err, game.ErrUnknownControl) {
		t.Fatalf("err = %v, want ErrUnknownControl", err)
	}
}
