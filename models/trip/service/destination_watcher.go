package service

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/NomadCrew/nomad-crew-planner/internal/clock"
	"github.com/NomadCrew/nomad-crew-planner/internal/events"
	"github.com/NomadCrew/nomad-crew-planner/internal/metrics"
	"github.com/NomadCrew/nomad-crew-planner/internal/realtime"
	"github.com/NomadCrew/nomad-crew-planner/internal/throttle"
	"github.com/NomadCrew/nomad-crew-planner/types"
)

// destinationWatcher turns the sync notifications of one trip handle into
// DestinationChanged events. Evaluations are throttled; only the destination
// code is compared.
//
// A watcher is created inactive so syncs received while the selection is
// still being assembled are ignored. Activate runs the first evaluation,
// which always emits because nothing has been recorded yet.
type destinationWatcher struct {
	handle   realtime.TripHandle
	emit     func(*destinationWatcher, types.DestinationChanged)
	throttle *throttle.Throttle
	sub      events.Subscription
	metrics  *metrics.Metrics

	active  atomic.Bool
	stopped atomic.Bool

	mu           sync.Mutex
	recorded     bool
	lastObserved *types.Airport
}

func newDestinationWatcher(
	handle realtime.TripHandle,
	c clock.Clock,
	window time.Duration,
	m *metrics.Metrics,
	emit func(*destinationWatcher, types.DestinationChanged),
) *destinationWatcher {
	w := &destinationWatcher{
		handle:  handle,
		emit:    emit,
		metrics: m,
	}
	w.throttle = throttle.New(c, window, w.evaluate)
	w.sub = handle.OnSync(w.onSync)
	return w
}

func (w *destinationWatcher) onSync(types.Trip) {
	w.metrics.SyncEvents.Inc()
	if !w.active.Load() || w.stopped.Load() {
		return
	}
	w.throttle.Call()
}

// Activate starts reacting to syncs and evaluates the current state.
func (w *destinationWatcher) Activate() {
	if w.stopped.Load() || !w.active.CompareAndSwap(false, true) {
		return
	}
	w.throttle.Call()
}

// Stop detaches the watcher and cancels any pending evaluation. A stopped
// watcher never emits again.
func (w *destinationWatcher) Stop() {
	if !w.stopped.CompareAndSwap(false, true) {
		return
	}
	w.sub.Unsubscribe()
	w.throttle.Stop()
}

// LastObserved returns the recorded destination snapshot.
func (w *destinationWatcher) LastObserved() (*types.Airport, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return cloneAirport(w.lastObserved), w.recorded
}

func (w *destinationWatcher) evaluate() {
	w.mu.Lock()
	if w.stopped.Load() {
		w.mu.Unlock()
		return
	}

	live := w.handle.Destination()
	fromCode := types.AirportCode(w.lastObserved)
	toCode := types.AirportCode(live)
	if w.recorded && fromCode == toCode {
		w.mu.Unlock()
		w.metrics.DestinationEvaluation.WithLabelValues("unchanged").Inc()
		return
	}

	ev := types.DestinationChanged{
		TripID: w.handle.TripID(),
		UserID: w.handle.UserID(),
		From:   w.lastObserved,
		To:     cloneAirport(live),
	}
	w.lastObserved = live
	w.recorded = true
	w.mu.Unlock()

	w.metrics.DestinationEvaluation.WithLabelValues("changed").Inc()
	w.emit(w, ev)
}

func cloneAirport(a *types.Airport) *types.Airport {
	if a == nil {
		return nil
	}
	c := *a
	if a.Coordinates != nil {
		coords := *a.Coordinates
		c.Coordinates = &coords
	}
	return &c
}
