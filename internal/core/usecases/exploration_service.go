package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/urbanbuzz/explorer/internal/core/domain"
	"github.com/urbanbuzz/explorer/internal/core/ports"
	"github.com/urbanbuzz/explorer/internal/core/sampler"
	"github.com/urbanbuzz/explorer/internal/pkg/metrics"
	"github.com/urbanbuzz/explorer/internal/pkg/telemetry"
)

const (
	maxEndpointLen = 200

	// NoImageryMessage is shown when a route yields no images.
	NoImageryMessage = "No Street View imagery available along this route."

	sideChannelTimeout = 3 * time.Second
	eventQueueSize     = 64
)

// SnapshotFunc observes the pipeline. It is called from the exploring
// goroutine, in order, and must not block for long.
type SnapshotFunc func(domain.Snapshot)

// ExplorationConfig tunes the pipeline.
type ExplorationConfig struct {
	StopsPerLeg   int
	RetryAttempts int
	RetryInterval time.Duration
}

// ExplorationService runs the geocode, route, sample, enrich and fetch pipeline.
type ExplorationService struct {
	geocoder   ports.Geocoder
	directions ports.DirectionsProvider
	enricher   *Enricher
	fetcher    *ImageFetcher
	events     ports.EventPublisher
	history    ports.ExplorationRepository
	cfg        ExplorationConfig
	log        *slog.Logger
	tracer     trace.Tracer
}

// NewExplorationService creates a new ExplorationService. events and history may be nil.
func NewExplorationService(
	geocoder ports.Geocoder,
	directions ports.DirectionsProvider,
	enricher *Enricher,
	fetcher *ImageFetcher,
	events ports.EventPublisher,
	history ports.ExplorationRepository,
	cfg ExplorationConfig,
	log *slog.Logger,
) *ExplorationService {
	if cfg.StopsPerLeg <= 0 {
		cfg.StopsPerLeg = sampler.DefaultStopsPerLeg
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 1
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 250 * time.Millisecond
	}
	return &ExplorationService{
		geocoder:   geocoder,
		directions: directions,
		enricher:   enricher,
		fetcher:    fetcher,
		events:     events,
		history:    history,
		cfg:        cfg,
		log:        log,
		tracer:     otel.Tracer(telemetry.TracerName),
	}
}

// exploration is the per-request state. Nothing in it is shared between requests.
type exploration struct {
	id         string
	route      domain.RouteInfo
	onSnapshot SnapshotFunc
	state      domain.ExplorationState
	events     *eventQueue
	log        *slog.Logger
}

// Explore runs one exploration to completion. Fatal failures are returned as
// *domain.ExploreError; a cancelled context returns ctx.Err().
func (s *ExplorationService) Explore(ctx context.Context, origin, destination string, onSnapshot SnapshotFunc) (*domain.Exploration, error) {
	origin, destination = strings.TrimSpace(origin), strings.TrimSpace(destination)
	if err := validateEndpoints(origin, destination); err != nil {
		return nil, err
	}

	run := &exploration{
		id:         uuid.NewString(),
		route:      domain.RouteInfo{Origin: origin, Destination: destination},
		onSnapshot: onSnapshot,
		state:      domain.StateIdle,
	}
	run.log = s.log.With("exploration_id", run.id)

	ctx, span := s.tracer.Start(ctx, telemetry.SpanExplore, trace.WithAttributes(
		attribute.String("exploration.id", run.id),
		attribute.String("exploration.origin", origin),
		attribute.String("exploration.destination", destination),
	))
	defer span.End()

	if s.events != nil {
		run.events = newEventQueue(context.WithoutCancel(ctx), run.log)
		defer run.events.close()
	}

	started := time.Now()
	result, err := s.run(ctx, span, run)
	s.finish(ctx, span, run, started, result, err)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *ExplorationService) run(ctx context.Context, span trace.Span, run *exploration) (*domain.Exploration, error) {
	s.emit(ctx, run, domain.StateGeocoding, nil, nil, domain.Progress{})
	from, err := s.geocode(ctx, run.route.Origin, "Origin")
	if err != nil {
		return nil, err
	}
	to, err := s.geocode(ctx, run.route.Destination, "Destination")
	if err != nil {
		return nil, err
	}
	span.AddEvent(telemetry.EventGeocoded)

	s.emit(ctx, run, domain.StateRouting, nil, nil, domain.Progress{})
	route, err := s.findRoute(ctx, run.route, from.Location, to.Location)
	if err != nil {
		return nil, err
	}
	span.AddEvent(telemetry.EventRouted, trace.WithAttributes(attribute.Int("legs", len(route.Legs))))

	s.emit(ctx, run, domain.StateSampling, nil, nil, domain.Progress{})
	stops := sampler.SampleLegs(route.Legs, s.cfg.StopsPerLeg)
	metrics.StopsSampled.Observe(float64(len(stops)))
	span.AddEvent(telemetry.EventSampled, trace.WithAttributes(attribute.Int("stops", len(stops))))

	s.emit(ctx, run, domain.StateEnriching, stops, nil, domain.Progress{})
	stops = s.enricher.Enrich(ctx, stops)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	span.AddEvent(telemetry.EventEnriched)

	total := len(stops)
	s.emit(ctx, run, domain.StateFetching, stops, nil, domain.Progress{Total: total})
	images, err := s.fetcher.Fetch(ctx, stops, run.route, func(images []domain.StreetViewImage, p domain.Progress) {
		span.AddEvent(telemetry.EventStopDone, trace.WithAttributes(attribute.Int("stop", p.Current)))
		// the last stop is reported by the final snapshot
		if p.Current < p.Total {
			s.emit(ctx, run, domain.StateFetching, stops, images, p)
		}
	})
	if err != nil {
		return nil, err
	}

	result := &domain.Exploration{
		ID:                  run.id,
		Origin:              run.route.Origin,
		Destination:         run.route.Destination,
		OriginLocation:      from.Location,
		DestinationLocation: to.Location,
		Stops:               stops,
		Images:              images,
		Progress:            domain.Progress{Current: total, Total: total},
		State:               domain.StateDone,
	}
	if len(images) == 0 {
		result.NoImagery = true
		result.Message = NoImageryMessage
		span.AddEvent(telemetry.EventNoImagery)
	}

	s.emit(ctx, run, domain.StateDone, stops, images, result.Progress)
	return result, nil
}

func (s *ExplorationService) geocode(ctx context.Context, address, which string) (*domain.Place, error) {
	var place *domain.Place
	err := s.retry(ctx, "geocode", func() error {
		var err error
		place, err = s.geocoder.Geocode(ctx, address)
		return err
	})
	if err == nil {
		return place, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if errors.Is(err, domain.ErrLocationNotFound) {
		return nil, &domain.ExploreError{
			Kind:    domain.ErrLocationNotFound,
			Message: which + " location not found. Please try a different or more specific address.",
			Cause:   err,
		}
	}
	return nil, unavailable(err)
}

func (s *ExplorationService) findRoute(ctx context.Context, info domain.RouteInfo, from, to domain.Coordinate) (*domain.Route, error) {
	var route *domain.Route
	err := s.retry(ctx, "directions", func() error {
		var err error
		route, err = s.directions.Route(ctx, from, to)
		return err
	})
	if err == nil {
		return route, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	switch {
	case errors.Is(err, domain.ErrNoRoute):
		return nil, &domain.ExploreError{
			Kind: domain.ErrNoRoute,
			Message: fmt.Sprintf("No route found between %q and %q. They may be too far apart or there may be no accessible route. "+
				"Please try locations in the same city or region.", info.Origin, info.Destination),
			Cause: err,
		}
	case errors.Is(err, domain.ErrLocationNotFound):
		return nil, &domain.ExploreError{
			Kind: domain.ErrLocationNotFound,
			Message: "One or both locations could not be found. Please check the addresses and try again " +
				"with more specific locations (include city and state/country).",
			Cause: err,
		}
	}
	return nil, unavailable(err)
}

// retry runs op with exponential backoff. Not-found, no-route and invalid-input
// errors are final.
func (s *ExplorationService) retry(ctx context.Context, operation string, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.cfg.RetryInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(s.cfg.RetryAttempts-1)), ctx)

	return backoff.RetryNotify(func() error {
		err := op()
		if err == nil {
			return nil
		}
		if isFinal(err) || ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}, policy, func(err error, wait time.Duration) {
		metrics.UpstreamRetries.WithLabelValues(operation).Inc()
		s.log.Warn("retrying upstream call", "operation", operation, "wait", wait, "error", err)
	})
}

func isFinal(err error) bool {
	return errors.Is(err, domain.ErrLocationNotFound) ||
		errors.Is(err, domain.ErrNoRoute) ||
		errors.Is(err, domain.ErrInvalidInput)
}

func unavailable(err error) error {
	return &domain.ExploreError{
		Kind:    domain.ErrServiceUnavailable,
		Message: "The mapping service is temporarily unavailable. Please try again shortly.",
		Cause:   err,
	}
}

func validateEndpoints(origin, destination string) error {
	var problems []string
	if origin == "" {
		problems = append(problems, "origin is required")
	} else if utf8.RuneCountInString(origin) > maxEndpointLen {
		problems = append(problems, fmt.Sprintf("origin must be at most %d characters", maxEndpointLen))
	}
	if destination == "" {
		problems = append(problems, "destination is required")
	} else if utf8.RuneCountInString(destination) > maxEndpointLen {
		problems = append(problems, fmt.Sprintf("destination must be at most %d characters", maxEndpointLen))
	}
	if len(problems) == 0 {
		return nil
	}
	return &domain.ExploreError{
		Kind:    domain.ErrInvalidInput,
		Message: strings.Join(problems, "; "),
	}
}

func (s *ExplorationService) emit(ctx context.Context, run *exploration, state domain.ExplorationState, stops []domain.PitStop, images []domain.StreetViewImage, p domain.Progress) {
	if state != run.state {
		run.log.Debug("exploration state", "from", run.state, "to", state)
		run.state = state
	}
	if stops == nil {
		stops = []domain.PitStop{}
	}
	if images == nil {
		images = []domain.StreetViewImage{}
	}
	snap := domain.Snapshot{
		ExplorationID: run.id,
		State:         state,
		Stops:         slices.Clone(stops),
		Images:        images,
		Progress:      p,
	}
	if run.onSnapshot != nil {
		run.onSnapshot(snap)
	}
	if run.events != nil {
		run.events.push(func(ctx context.Context) error {
			return s.events.PublishProgress(ctx, &snap)
		})
	}
}

func (s *ExplorationService) finish(ctx context.Context, span trace.Span, run *exploration, started time.Time, result *domain.Exploration, err error) {
	elapsed := time.Since(started)
	rec := &domain.ExplorationRecord{
		ID:          run.id,
		Origin:      run.route.Origin,
		Destination: run.route.Destination,
		StartedAt:   started.UTC(),
		Duration:    elapsed,
	}

	outcome := "done"
	if err != nil {
		rec.State = domain.StateFailed
		rec.ErrorCode = domain.ErrorCode(err)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			rec.ErrorCode = "canceled"
		}
		outcome = rec.ErrorCode
		span.RecordError(err)
		span.SetStatus(codes.Error, rec.ErrorCode)
		s.emit(ctx, run, domain.StateFailed, nil, nil, domain.Progress{})
		run.log.Warn("exploration failed", "code", rec.ErrorCode, "error", err, "duration", elapsed)
	} else {
		rec.State = result.State
		rec.StopCount = len(result.Stops)
		rec.ImageCount = len(result.Images)
		if result.NoImagery {
			outcome = "no_imagery"
		}
		run.log.Info("exploration finished",
			"stops", rec.StopCount, "images", rec.ImageCount, "duration", elapsed)
	}

	metrics.ExplorationsTotal.WithLabelValues(outcome).Inc()
	metrics.ExplorationDuration.Observe(elapsed.Seconds())

	if s.history != nil {
		hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideChannelTimeout)
		defer cancel()
		if err := s.history.Insert(hctx, rec); err != nil {
			run.log.Warn("record exploration history", "error", err)
		}
	}
	if run.events != nil {
		run.events.push(func(ctx context.Context) error {
			return s.events.PublishCompleted(ctx, rec)
		})
	}
}

// eventQueue publishes one exploration's events in order from a single
// goroutine, so a slow or reconnecting broker never holds up the pipeline.
// When the queue is full new events are dropped.
type eventQueue struct {
	ctx context.Context
	ch  chan func(context.Context) error
	log *slog.Logger
}

func newEventQueue(ctx context.Context, log *slog.Logger) *eventQueue {
	q := &eventQueue{ctx: ctx, ch: make(chan func(context.Context) error, eventQueueSize), log: log}
	go q.drain()
	return q
}

func (q *eventQueue) push(publish func(context.Context) error) {
	select {
	case q.ch <- publish:
	default:
		metrics.EventsDropped.Inc()
		q.log.Debug("event queue full, dropping event")
	}
}

// close lets the drain goroutine exit once the queued events are sent.
func (q *eventQueue) close() {
	close(q.ch)
}

func (q *eventQueue) drain() {
	for publish := range q.ch {
		ctx, cancel := context.WithTimeout(q.ctx, sideChannelTimeout)
		if err := publish(ctx); err != nil {
			q.log.Debug("publish event failed", "error", err)
		}
		cancel()
	}
}

// Recent returns the latest exploration summaries, newest first.
func (s *ExplorationService) Recent(ctx context.Context, limit int) ([]domain.ExplorationRecord, error) {
	if limit <= 0 || limit > 50 {
		limit = 20
	}
	if s.history == nil {
		return []domain.ExplorationRecord{}, nil
	}
	return s.history.Recent(ctx, limit)
}
