package service

import (
	"context"
	stderrors "errors"
	"sync"

	apperrors "github.com/NomadCrew/nomad-crew-planner/errors"
	"github.com/NomadCrew/nomad-crew-planner/internal/events"
	"github.com/NomadCrew/nomad-crew-planner/internal/session"
	"github.com/NomadCrew/nomad-crew-planner/logger"
	authsvc "github.com/NomadCrew/nomad-crew-planner/models/auth/service"
	locationsvc "github.com/NomadCrew/nomad-crew-planner/models/location/service"
	tripsvc "github.com/NomadCrew/nomad-crew-planner/models/trip/service"
	"github.com/NomadCrew/nomad-crew-planner/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	msgCheckingLogin     = "Checking login status..."
	msgDetectingLocation = "Detecting your location..."

	relayQueueSize = 64
)

// PageController orders login, location, trip list, child rendering and
// trip selection, and relays view interactions to the services.
type PageController struct {
	auth     authsvc.SessionAuthenticatorInterface
	location locationsvc.LocationResolverInterface
	trips    tripsvc.TripSyncServiceInterface
	lister   TripLister
	session  *session.State
	mapView  MapView
	sidebar  SidebarView
	notifier Notifier
	log      *zap.SugaredLogger

	// ctx bounds relayed work; cancelled by Close.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Relayed work runs on a single worker in arrival order.
	jobs chan func(ctx context.Context)

	// selectMu guards the latest trip click; a newer click cancels the
	// selection of an older one and skips it if it has not started.
	selectMu     sync.Mutex
	selectSeq    uint64
	selectCancel context.CancelFunc

	bindOnce sync.Once
	subs     events.Subscriptions
}

var _ PageControllerInterface = (*PageController)(nil)

func NewPageController(
	auth authsvc.SessionAuthenticatorInterface,
	location locationsvc.LocationResolverInterface,
	trips tripsvc.TripSyncServiceInterface,
	lister TripLister,
	state *session.State,
	mapView MapView,
	sidebar SidebarView,
	notifier Notifier,
) *PageController {
	ctx, cancel := context.WithCancel(context.Background())
	return &PageController{
		auth:     auth,
		location: location,
		trips:    trips,
		lister:   lister,
		session:  state,
		mapView:  mapView,
		sidebar:  sidebar,
		notifier: notifier,
		log:      logger.GetLogger().Named("page"),
		ctx:      ctx,
		cancel:   cancel,
		jobs:     make(chan func(ctx context.Context), relayQueueSize),
	}
}

// Render runs the page sequence. Authentication and trip failures are shown
// through the notifier and returned; a missing location is not an error.
func (p *PageController) Render(ctx context.Context, params types.NavigationParams) error {
	p.notifier.Info(ctx, msgCheckingLogin)
	user, err := p.auth.GetLoginStatus(ctx)
	if err != nil {
		p.notifier.Error(ctx, err)
		return err
	}

	if !user.HasCoordinates() {
		p.notifier.Info(ctx, msgDetectingLocation)
		if coords := p.location.DetectLocation(ctx); coords != nil {
			user.Coordinates = coords
		} else {
			p.log.Infow("Continuing without a location", "userID", user.ID)
		}
	}

	trips, err := p.lister.UserTrips(ctx, user.ID)
	if err != nil {
		err = apperrors.Wrap(err, apperrors.TripFetchFailure, "Trips could not be loaded")
		p.notifier.Error(ctx, err)
		return err
	}
	p.session.SetTrips(trips)

	if err := p.renderChildren(ctx, user, trips); err != nil {
		p.notifier.Error(ctx, err)
		return err
	}
	p.bind()

	if params.TripID != "" {
		userID := params.UserID
		if userID == "" {
			userID = user.ID
		}
		if err := p.trips.SelectTrip(ctx, params.TripID, userID); err != nil {
			if stderrors.Is(err, apperrors.ErrSelectionSuperseded) {
				return nil
			}
			p.notifier.Error(ctx, err)
			return err
		}
	}

	p.log.Infow("Page ready", "userID", user.ID, "trips", len(trips), "tripID", params.TripID)
	return nil
}

func (p *PageController) renderChildren(ctx context.Context, user *types.User, trips []types.TripSummary) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return p.mapView.Render(gctx, user, trips) })
	g.Go(func() error { return p.sidebar.Render(gctx, user, trips) })
	return g.Wait()
}

// bind wires the relays once; later renders reuse them.
func (p *PageController) bind() {
	p.bindOnce.Do(func() {
		p.wg.Add(1)
		go p.run()

		p.trips.AddObserver(p.mapView)
		p.trips.AddObserver(p.sidebar)

		p.subs.Add(p.trips.OnDestinationChanged(func(ev types.DestinationChanged) {
			p.mapView.DestinationChanged(p.ctx, ev)
			p.sidebar.DestinationChanged(p.ctx, ev)
		}))
		p.subs.Add(p.auth.OnProfile(func(u *types.User) {
			p.enqueue(func(ctx context.Context) {
				if err := p.sidebar.Render(ctx, u, p.session.Trips()); err != nil {
					p.log.Warnw("Failed to re-render sidebar", "error", err)
				}
			})
		}))
		p.subs.Add(p.mapView.Events(p.relay))
		p.subs.Add(p.sidebar.Events(p.relay))
	})
}

// relay queues the reaction to a view event.
func (p *PageController) relay(ev types.ViewEvent) {
	if ev.Type == types.ViewEventTripClick {
		seq := p.supersedeSelection()
		p.enqueue(func(ctx context.Context) { p.selectClicked(ctx, ev, seq) })
		return
	}
	p.enqueue(func(ctx context.Context) { p.handle(ctx, ev) })
}

// enqueue blocks while the queue is full, until the controller is closed.
func (p *PageController) enqueue(job func(ctx context.Context)) {
	select {
	case p.jobs <- job:
	case <-p.ctx.Done():
	}
}

func (p *PageController) run() {
	defer p.wg.Done()
	for {
		select {
		case <-p.ctx.Done():
			return
		case job := <-p.jobs:
			job(p.ctx)
		}
	}
}

func (p *PageController) supersedeSelection() uint64 {
	p.selectMu.Lock()
	defer p.selectMu.Unlock()
	p.selectSeq++
	if p.selectCancel != nil {
		p.selectCancel()
		p.selectCancel = nil
	}
	return p.selectSeq
}

// selectClicked selects the clicked trip unless a later click has arrived.
func (p *PageController) selectClicked(ctx context.Context, ev types.ViewEvent, seq uint64) {
	user := p.session.User()
	if ev.Trip == nil || user == nil {
		p.log.Warnw("Trip click ignored", "hasTrip", ev.Trip != nil, "hasUser", user != nil)
		return
	}

	p.selectMu.Lock()
	if seq != p.selectSeq {
		p.selectMu.Unlock()
		p.log.Debugw("Trip click superseded before it started", "tripID", ev.Trip.ID)
		return
	}
	selectCtx, cancel := context.WithCancel(ctx)
	p.selectCancel = cancel
	p.selectMu.Unlock()
	defer cancel()

	err := p.trips.SelectTrip(selectCtx, ev.Trip.ID, user.ID)
	if err == nil || stderrors.Is(err, apperrors.ErrSelectionSuperseded) || selectCtx.Err() != nil {
		return
	}
	p.notifier.Error(ctx, err)
}

func (p *PageController) handle(ctx context.Context, ev types.ViewEvent) {
	log := p.log.With("event", ev.Type)

	switch ev.Type {
	case types.ViewEventAirportClick:
		if ev.Airport == nil {
			log.Warnw("Airport click without an airport")
			return
		}
		if err := p.trips.SetDestination(ctx, ev.Airport); err != nil {
			p.notifier.Error(ctx, err)
		}

	case types.ViewEventRelocate:
		p.relocate(ctx, log)

	case types.ViewEventShowTrip, types.ViewEventOriginAirportSelected, types.ViewEventDestinationAirportSelected:
		p.mapView.SetTrip(ctx, ev.Trip)

	case types.ViewEventShowTripList:
		p.mapView.SetTrip(ctx, nil)

	default:
		log.Debugw("Unhandled view event")
	}
}

// relocate re-detects the location and moves the user's participant marker
// on the active trip when the user takes part in it.
func (p *PageController) relocate(ctx context.Context, log *zap.SugaredLogger) {
	coords := p.location.DetectLocation(ctx)
	if coords == nil {
		return
	}
	user := p.session.User()
	active := p.trips.Active()
	if user == nil || active == nil {
		return
	}
	if _, ok := active.Participants.Get(user.ID); !ok {
		return
	}
	if err := active.Participants.SetCoordinates(ctx, user.ID, *coords); err != nil {
		log.Warnw("Failed to update participant location", "userID", user.ID, "tripID", active.TripID(), "error", err)
	}
}

// Close detaches the view subscriptions and the active trip. Queued relay
// work that has not started is dropped; Close waits for the running job.
func (p *PageController) Close() {
	p.subs.UnsubscribeAll()
	p.cancel()
	p.wg.Wait()
	p.trips.Detach()
}
