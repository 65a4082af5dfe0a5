package service

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"github.com/NomadCrew/nomad-crew-planner/config"
	apperrors "github.com/NomadCrew/nomad-crew-planner/errors"
	"github.com/NomadCrew/nomad-crew-planner/internal/clock"
	"github.com/NomadCrew/nomad-crew-planner/internal/events"
	"github.com/NomadCrew/nomad-crew-planner/internal/metrics"
	"github.com/NomadCrew/nomad-crew-planner/internal/navigation"
	"github.com/NomadCrew/nomad-crew-planner/internal/realtime"
	"github.com/NomadCrew/nomad-crew-planner/internal/session"
	"github.com/NomadCrew/nomad-crew-planner/logger"
	"github.com/NomadCrew/nomad-crew-planner/types"
	"go.uber.org/zap"
)

// TripSyncService selects the active trip and keeps it synchronized.
//
// Every SelectTrip starts a new generation and cancels the one in flight. A
// selection commits its trip handle, participant set and destination watcher
// together, and only if it is still the latest generation; otherwise it
// closes what it opened and returns ErrSelectionSuperseded.
type TripSyncService struct {
	provider  realtime.Provider
	navigator navigation.Navigator
	session   *session.State
	clock     clock.Clock
	config    config.SyncConfig
	metrics   *metrics.Metrics
	log       *zap.SugaredLogger

	changed *events.Bus[types.DestinationChanged]

	mu         sync.Mutex
	generation uint64
	cancel     context.CancelFunc
	watcher    *destinationWatcher
	observers  []TripObserver

	// commitMu orders commits so observers see selections in commit order.
	commitMu sync.Mutex
	// publishMu is held shared while a destination event is delivered and
	// exclusively while the active watcher is replaced, so no event of a
	// replaced trip reaches listeners after the switch.
	publishMu sync.RWMutex
}

var _ TripSyncServiceInterface = (*TripSyncService)(nil)

func NewTripSyncService(
	provider realtime.Provider,
	navigator navigation.Navigator,
	state *session.State,
	c clock.Clock,
	cfg config.SyncConfig,
) *TripSyncService {
	return &TripSyncService{
		provider:  provider,
		navigator: navigator,
		session:   state,
		clock:     c,
		config:    cfg,
		metrics:   metrics.Get(),
		log:       logger.GetLogger().Named("trip_sync"),
		changed:   events.NewBus[types.DestinationChanged]("destination_changed"),
	}
}

// AddObserver registers o for every committed selection.
func (s *TripSyncService) AddObserver(o TripObserver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, o)
}

func (s *TripSyncService) OnDestinationChanged(fn func(types.DestinationChanged)) events.Subscription {
	return s.changed.Subscribe(fn)
}

// Active returns the committed trip and participant pair, nil when no trip
// is selected.
func (s *TripSyncService) Active() *session.ActiveTrip {
	return s.session.Active()
}

// SelectTrip makes tripID the active trip. An empty userID defaults to the
// session user.
func (s *TripSyncService) SelectTrip(ctx context.Context, tripID, userID string) error {
	if tripID == "" {
		return apperrors.ValidationFailed("invalid trip", "trip ID is required")
	}
	if userID == "" {
		u := s.session.User()
		if u == nil {
			return apperrors.AuthenticationFailed("no authenticated user", nil)
		}
		userID = u.ID
	}

	gen, ctx, cancel := s.begin(ctx)
	defer cancel()
	log := s.log.With("tripID", tripID, "userID", userID, "generation", gen)
	log.Infow("Selecting trip")

	// Navigating
	if err := s.navigator.Navigate(navigation.TripPath(tripID, userID), navigation.Options{Trigger: false}); err != nil {
		log.Warnw("Failed to update navigation", "error", err)
	}

	// Fetching
	handle, err := s.provider.Trip(ctx, tripID, userID)
	if err != nil {
		return s.fail(gen, log, apperrors.TripFetchFailed(tripID, err))
	}
	if err := s.fetch(ctx, handle); err != nil {
		closeQuietly(log, handle)
		return s.fail(gen, log, apperrors.TripFetchFailed(tripID, err))
	}
	if !s.current(gen) {
		closeQuietly(log, handle)
		return s.superseded(log)
	}

	// Watching
	w := newDestinationWatcher(handle, s.clock, s.config.ThrottleWindow(), s.metrics, s.emit)

	// Participants
	participants, err := s.provider.Participants(ctx, tripID, userID)
	if err != nil {
		w.Stop()
		closeQuietly(log, handle)
		return s.fail(gen, log, apperrors.TripFetchFailed(tripID, err))
	}

	// Propagate
	return s.commit(ctx, gen, log, w, &session.ActiveTrip{Trip: handle, Participants: participants})
}

// SetDestination writes a new destination on the active trip.
func (s *TripSyncService) SetDestination(ctx context.Context, airport *types.Airport) error {
	active := s.session.Active()
	if active == nil {
		return apperrors.ValidationFailed("no active trip", "select a trip before setting its destination")
	}
	return active.Trip.SetDestination(ctx, airport)
}

// Detach cancels any selection in flight and closes the active trip.
func (s *TripSyncService) Detach() {
	s.publishMu.Lock()
	s.mu.Lock()
	s.generation++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	w := s.watcher
	s.watcher = nil
	s.mu.Unlock()
	s.publishMu.Unlock()

	s.commitMu.Lock()
	defer s.commitMu.Unlock()
	if w != nil {
		w.Stop()
	}
	if prev := s.session.SwapActive(nil); prev != nil {
		closeQuietly(s.log, prev)
	}
}

func (s *TripSyncService) begin(parent context.Context) (uint64, context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	s.generation++
	s.cancel = cancel
	return s.generation, ctx, cancel
}

func (s *TripSyncService) current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation == gen
}

// fetch issues a fetch and waits for the handle's first sync.
func (s *TripSyncService) fetch(ctx context.Context, handle realtime.TripHandle) error {
	if timeout := s.config.FetchTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	synced := make(chan struct{}, 1)
	sub := handle.OnSync(func(types.Trip) {
		select {
		case synced <- struct{}{}:
		default:
		}
	})
	defer sub.Unsubscribe()

	start := time.Now()
	fetched := make(chan error, 1)
	go func() { fetched <- handle.Fetch(ctx) }()

	for {
		select {
		case <-synced:
			s.metrics.TripFetchDuration.Observe(time.Since(start).Seconds())
			return nil
		case err := <-fetched:
			if err != nil {
				return err
			}
			fetched = nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *TripSyncService) commit(ctx context.Context, gen uint64, log *zap.SugaredLogger, w *destinationWatcher, next *session.ActiveTrip) error {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	s.publishMu.Lock()
	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		s.publishMu.Unlock()
		w.Stop()
		closeQuietly(log, next)
		return s.superseded(log)
	}
	prevWatcher := s.watcher
	s.watcher = w
	observers := append([]TripObserver(nil), s.observers...)
	prev := s.session.SwapActive(next)
	s.mu.Unlock()
	s.publishMu.Unlock()

	if prevWatcher != nil {
		prevWatcher.Stop()
	}
	if prev != nil {
		closeQuietly(log, prev)
	}

	for _, o := range observers {
		o.DisplayTrip(ctx, next)
	}
	w.Activate()

	s.metrics.TripSelections.WithLabelValues("committed").Inc()
	log.Infow("Trip selected", "participants", len(next.Participants.List()))
	return nil
}

// emit publishes an event from w if w is still the active watcher. Listeners
// must not select, detach or write the trip synchronously.
func (s *TripSyncService) emit(w *destinationWatcher, ev types.DestinationChanged) {
	s.publishMu.RLock()
	defer s.publishMu.RUnlock()

	s.mu.Lock()
	current := s.watcher == w
	s.mu.Unlock()
	if !current {
		return
	}
	s.log.Infow("Destination changed",
		"tripID", ev.TripID,
		"from", types.AirportCode(ev.From),
		"to", types.AirportCode(ev.To),
	)
	s.changed.Publish(ev)
}

// fail reports err unless the selection was superseded meanwhile, in which
// case the cancellation is the cause and the caller gets ErrSelectionSuperseded.
func (s *TripSyncService) fail(gen uint64, log *zap.SugaredLogger, err error) error {
	if !s.current(gen) {
		return s.superseded(log)
	}
	s.metrics.TripSelections.WithLabelValues("failed").Inc()
	log.Errorw("Trip selection failed", "error", err)
	return err
}

func (s *TripSyncService) superseded(log *zap.SugaredLogger) error {
	s.metrics.TripSelections.WithLabelValues("superseded").Inc()
	log.Infow("Trip selection superseded")
	return apperrors.ErrSelectionSuperseded
}

type closer interface {
	Close() error
}

func closeQuietly(log *zap.SugaredLogger, c closer) {
	if err := c.Close(); err != nil && !stderrors.Is(err, context.Canceled) {
		log.Warnw("Failed to close realtime handle", "error", err)
	}
}
