// Package stress drives a rendezvous channel with many concurrent speakers
// and listeners and checks that every spoken value is heard exactly once.
package stress

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/creachadair/mds/mapset"
	"github.com/creachadair/rendezvous"
	"golang.org/x/sync/errgroup"
)

// Config describes a stress workload.
type Config struct {
	Speakers  int           `yaml:"speakers"`  // concurrent speaker goroutines
	Listeners int           `yaml:"listeners"` // concurrent listener goroutines
	Rounds    int           `yaml:"rounds"`    // values spoken by each speaker
	FIFO      bool          `yaml:"fifo"`      // use FIFO admission
	Timeout   time.Duration `yaml:"timeout"`   // overall limit; 0 means none
}

// Validate reports an error if c does not describe a runnable workload.
func (c Config) Validate() error {
	switch {
	case c.Speakers <= 0:
		return errors.New("speakers must be positive")
	case c.Listeners <= 0:
		return errors.New("listeners must be positive")
	case c.Rounds <= 0:
		return errors.New("rounds must be positive")
	case c.Timeout < 0:
		return errors.New("timeout must not be negative")
	}
	return nil
}

// Total reports the number of values exchanged by the workload.
func (c Config) Total() int { return c.Speakers * c.Rounds }

// NewChannel constructs a channel with the admission policy selected by c.
func (c Config) NewChannel() *rendezvous.Channel[int32] {
	if c.FIFO {
		return rendezvous.NewFIFO[int32]()
	}
	return rendezvous.New[int32]()
}

// A Report summarizes a completed workload.
type Report struct {
	Spoken   int              // successful Speak calls
	Heard    int              // successful Listen calls
	Elapsed  time.Duration    // wall time from start to finish
	Channel  rendezvous.Stats // channel statistics at the end of the run
	Received []int32          // values heard, in arrival order
}

// A MismatchError reports that the values heard differ from the values
// spoken.
type MismatchError struct {
	Missing    []int32 // spoken but never heard
	Duplicated []int32 // heard more than once
	Unknown    []int32 // heard but never spoken
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("value mismatch: %d missing, %d duplicated, %d unknown",
		len(e.Missing), len(e.Duplicated), len(e.Unknown))
}

// Run executes the workload described by cfg against ch. Speaker i speaks the
// values i*Rounds through (i+1)*Rounds-1, and the listeners between them hear
// exactly cfg.Total() values. Run reports an error if any call fails, or if
// the values heard are not exactly the values spoken.
func Run(ctx context.Context, cfg Config, ch *rendezvous.Channel[int32]) (*Report, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	var μ sync.Mutex
	heard := make([]int32, 0, cfg.Total())
	gate := make(chan struct{}) // closed to start all workers together

	var quota atomic.Int64 // values not yet claimed by a listener
	quota.Store(int64(cfg.Total()))

	g, gctx := errgroup.WithContext(ctx)
	for i := range cfg.Speakers {
		g.Go(func() error {
			<-gate
			base := int32(i * cfg.Rounds)
			for j := range int32(cfg.Rounds) {
				if err := ch.Speak(gctx, base+j); err != nil {
					return fmt.Errorf("speaker %d: speak %d: %w", i, base+j, err)
				}
			}
			return nil
		})
	}
	for i := range cfg.Listeners {
		g.Go(func() error {
			<-gate
			for quota.Add(-1) >= 0 {
				v, err := ch.Listen(gctx)
				if err != nil {
					return fmt.Errorf("listener %d: %w", i, err)
				}
				μ.Lock()
				heard = append(heard, v)
				μ.Unlock()
			}
			return nil
		})
	}

	start := time.Now()
	close(gate)
	err := g.Wait()
	rep := &Report{
		Heard:    len(heard),
		Elapsed:  time.Since(start),
		Channel:  ch.Stats(),
		Received: heard,
	}
	rep.Spoken = int(rep.Channel.Rounds)
	if err != nil {
		return rep, err
	}
	if err := check(cfg, heard); err != nil {
		return rep, err
	}
	return rep, nil
}

// check verifies that heard contains each value spoken under cfg exactly
// once.
func check(cfg Config, heard []int32) error {
	total := int32(cfg.Total())
	seen := mapset.New[int32]()
	var merr MismatchError
	for _, v := range heard {
		if v < 0 || v >= total {
			merr.Unknown = append(merr.Unknown, v)
		} else if seen.Has(v) {
			merr.Duplicated = append(merr.Duplicated, v)
		}
		seen.Add(v)
	}
	for v := range total {
		if !seen.Has(v) {
			merr.Missing = append(merr.Missing, v)
		}
	}
	if len(merr.Missing) == 0 && len(merr.Duplicated) == 0 && len(merr.Unknown) == 0 {
		return nil
	}
	slices.Sort(merr.Duplicated)
	slices.Sort(merr.Unknown)
	return &merr
}
