package monitor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/looplab/fsm"
	"golang.org/x/sync/singleflight"
)

const (
	stateIdle       = "idle"
	stateRefreshing = "refreshing"
)

// PublishFunc receives each published snapshot, successful or stale-marked,
// exactly once per cycle.
type PublishFunc func(*Snapshot)

// Refresher drives periodic and on-demand snapshot collection with a
// single outstanding refresh at a time. Manual triggers arriving while a
// refresh is in flight coalesce into that refresh instead of queueing.
type Refresher struct {
	interval time.Duration
	collect  func(ctx context.Context) (*Snapshot, error)
	publish  PublishFunc
	logger   *slog.Logger

	machine *fsm.FSM
	group   singleflight.Group
	kick    chan struct{} // capacity 1: the single-slot "refresh requested" flag

	mu   sync.RWMutex
	last *Snapshot
}

func NewRefresher(interval time.Duration, collect func(ctx context.Context) (*Snapshot, error), publish PublishFunc, logger *slog.Logger) *Refresher {
	r := &Refresher{
		interval: interval,
		collect:  collect,
		publish:  publish,
		logger:   logger,
		kick:     make(chan struct{}, 1),
	}
	r.machine = fsm.NewFSM(
		stateIdle,
		fsm.Events{
			{Name: "begin", Src: []string{stateIdle}, Dst: stateRefreshing},
			{Name: "finish", Src: []string{stateRefreshing}, Dst: stateIdle},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				logger.Debug("refresh state transition", "from", e.Src, "to", e.Dst)
			},
		},
	)
	return r
}

// State reports the current scheduler state, "idle" or "refreshing".
func (r *Refresher) State() string { return r.machine.Current() }

// Latest returns the most recently published snapshot, nil before the
// first cycle completes.
func (r *Refresher) Latest() *Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.last
}

// Trigger requests an immediate refresh. A request arriving while the
// previous one is still pending is dropped: the in-flight refresh already
// satisfies it. Returns whether the request was newly recorded.
func (r *Refresher) Trigger() bool {
	select {
	case r.kick <- struct{}{}:
		return true
	default:
		return false
	}
}

// RefreshNow runs one refresh synchronously. Concurrent callers share a
// single collection; no second external command sequence is issued while
// one is in flight.
func (r *Refresher) RefreshNow(ctx context.Context) (*Snapshot, error) {
	v, err, _ := r.group.Do("refresh", func() (any, error) {
		return r.refresh(ctx), nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Snapshot), nil
}

// Run drives the interval timer until ctx is done. One refresh runs
// immediately on start.
func (r *Refresher) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	_, _ = r.RefreshNow(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-r.kick:
		}
		if ctx.Err() != nil {
			return
		}
		_, _ = r.RefreshNow(ctx)
		// A trigger recorded while that refresh ran is already satisfied
		// by it; drop it instead of running twice.
		select {
		case <-r.kick:
		default:
		}
	}
}

// refresh executes one cycle. On collection failure the last known good
// data survives, republished with the stale flag and the failure reason;
// displayed data is never cleared by a transient failure.
func (r *Refresher) refresh(ctx context.Context) *Snapshot {
	// Transitions run on a background context: a cancelled caller context
	// would leave the machine stuck mid-transition.
	_ = r.machine.Event(context.Background(), "begin")
	defer func() { _ = r.machine.Event(context.Background(), "finish") }()

	snap, err := r.collect(ctx)
	if err != nil {
		refreshFailures.Inc()
		r.logger.Warn("refresh failed, keeping previous snapshot", "err", err)

		r.mu.Lock()
		if r.last == nil {
			r.last = &Snapshot{}
		}
		stale := r.last.markedStale(err.Error())
		r.last = stale
		r.mu.Unlock()

		r.publish(stale)
		return stale
	}

	refreshTotal.Inc()
	parseAnomalies.Add(float64(snap.ParseAnomalies))
	r.mu.Lock()
	r.last = snap
	r.mu.Unlock()

	r.publish(snap)
	return snap
}
