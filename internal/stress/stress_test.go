package stress

import (
	"context"
	"testing"
	"time"

	"github.com/creachadair/rendezvous"
	"github.com/fortytw2/leaktest"
	"github.com/stretchr/testify/require"
)

func TestRun(t *testing.T) {
	defer leaktest.Check(t)()

	for _, cfg := range []Config{
		{Speakers: 1, Listeners: 1, Rounds: 100},
		{Speakers: 8, Listeners: 3, Rounds: 25},
		{Speakers: 3, Listeners: 8, Rounds: 25},
		{Speakers: 16, Listeners: 16, Rounds: 10, FIFO: true},
	} {
		rep, err := Run(context.Background(), cfg, cfg.NewChannel())
		require.NoError(t, err, "config %+v", cfg)
		require.Equal(t, cfg.Total(), rep.Heard)
		require.Equal(t, cfg.Total(), rep.Spoken)
		require.Len(t, rep.Received, cfg.Total())
		require.Zero(t, rep.Channel.Speakers)
		require.Zero(t, rep.Channel.Listeners)
	}
}

func TestRunInvalid(t *testing.T) {
	for _, cfg := range []Config{
		{},
		{Speakers: 1, Rounds: 1},
		{Speakers: 1, Listeners: 1},
		{Speakers: 1, Listeners: 1, Rounds: 1, Timeout: -time.Second},
	} {
		_, err := Run(context.Background(), cfg, rendezvous.New[int32]())
		require.Error(t, err, "config %+v", cfg)
	}
}

func TestRunClosed(t *testing.T) {
	defer leaktest.Check(t)()

	ch := rendezvous.New[int32]()
	ch.Close()

	_, err := Run(context.Background(), Config{Speakers: 2, Listeners: 2, Rounds: 3}, ch)
	require.ErrorIs(t, err, rendezvous.ErrClosed)
}

func TestRunTimeout(t *testing.T) {
	defer leaktest.Check(t)()

	// An outside speaker already holds the sending slot, so the only listener
	// hears its value and the workload's own speaker is left waiting.
	ch := rendezvous.New[int32]()
	hog := make(chan error, 1)
	go func() { hog <- ch.Speak(context.Background(), -1) }()
	require.Eventually(t, func() bool { return ch.Stats().Speakers == 1 }, 10*time.Second, time.Millisecond)

	cfg := Config{Speakers: 1, Listeners: 1, Rounds: 1, Timeout: 20 * time.Millisecond}
	rep, err := Run(context.Background(), cfg, ch)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, []int32{-1}, rep.Received)
	require.NoError(t, <-hog)
}

func TestCheck(t *testing.T) {
	cfg := Config{Speakers: 2, Listeners: 1, Rounds: 2}

	require.NoError(t, check(cfg, []int32{3, 1, 0, 2}))

	err := check(cfg, []int32{3, 3, 0, 7})
	var merr *MismatchError
	require.ErrorAs(t, err, &merr)
	require.Equal(t, []int32{1, 2}, merr.Missing)
	require.Equal(t, []int32{3}, merr.Duplicated)
	require.Equal(t, []int32{7}, merr.Unknown)
}
