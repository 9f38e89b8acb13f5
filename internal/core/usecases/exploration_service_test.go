package usecases_test

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/urbanbuzz/explorer/internal/core/domain"
	"github.com/urbanbuzz/explorer/internal/core/ports"
	"github.com/urbanbuzz/explorer/internal/core/usecases"
	"github.com/urbanbuzz/explorer/internal/pkg/logging"
)

type explorationFixture struct {
	geocoder   *mockGeocoder
	directions *mockDirections
	advisor    ports.ImageryAdvisor
	events     *recordingPublisher
	history    *memHistory
	cfg        usecases.ExplorationConfig
}

func newFixture(legs ...domain.RouteLeg) *explorationFixture {
	return &explorationFixture{
		geocoder:   placesGeocoder(),
		directions: routeOf(legs...),
		events:     &recordingPublisher{},
		history:    &memHistory{},
		cfg:        usecases.ExplorationConfig{StopsPerLeg: 8, RetryAttempts: 3, RetryInterval: time.Millisecond},
	}
}

func (f *explorationFixture) service() *usecases.ExplorationService {
	log := logging.Discard()
	enricher := usecases.NewEnricher(f.geocoder, 4, log)
	fetcher := usecases.NewImageFetcher(fakeURLs{}, f.advisor, 50*time.Millisecond,
		usecases.ImageParams{Headings: usecases.DefaultHeadings, FOV: 90}, log)
	return usecases.NewExplorationService(f.geocoder, f.directions, enricher, fetcher, f.events, f.history, f.cfg, log)
}

func collect(snaps *[]domain.Snapshot) usecases.SnapshotFunc {
	return func(s domain.Snapshot) { *snaps = append(*snaps, s) }
}

func TestExplore_TwentyFourStepRoute(t *testing.T) {
	f := newFixture(straightLeg(24))
	var snaps []domain.Snapshot

	res, err := f.service().Explore(context.Background(), " A ", "B", collect(&snaps))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(res.Stops) != 9 {
		t.Fatalf("expected 9 stops, got %d", len(res.Stops))
	}
	if len(res.Images) != 36 {
		t.Fatalf("expected 36 images, got %d", len(res.Images))
	}
	if res.State != domain.StateDone || res.NoImagery {
		t.Errorf("expected done with imagery, got state=%s noImagery=%v", res.State, res.NoImagery)
	}
	if res.Progress != (domain.Progress{Current: 9, Total: 9}) {
		t.Errorf("unexpected final progress %+v", res.Progress)
	}
	if res.Origin != "A" || res.OriginLocation != fivePoints.Location {
		t.Errorf("unexpected origin %q %v", res.Origin, res.OriginLocation)
	}

	// headings in configured order, stops in sampler order
	dirs := []string{"North", "East", "South", "West"}
	for i, img := range res.Images {
		if img.StopIndex != i/4 {
			t.Errorf("image %d: expected stop %d, got %d", i, i/4, img.StopIndex)
		}
		if img.Direction != dirs[i%4] || img.Heading != (i%4)*90 {
			t.Errorf("image %d: unexpected heading %d %s", i, img.Heading, img.Direction)
		}
		if img.RouteInfo.Origin != "A" || img.RouteInfo.Destination != "B" {
			t.Errorf("image %d: missing route info", i)
		}
	}
	if !strings.HasPrefix(res.Images[0].Label, "Step 1 - North: 33.750 Peachtree St NE") {
		t.Errorf("unexpected label %q", res.Images[0].Label)
	}
}

func TestExplore_SnapshotSequence(t *testing.T) {
	f := newFixture(straightLeg(24))
	var snaps []domain.Snapshot

	if _, err := f.service().Explore(context.Background(), "A", "B", collect(&snaps)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantStates := []domain.ExplorationState{
		domain.StateGeocoding, domain.StateRouting, domain.StateSampling, domain.StateEnriching, domain.StateFetching,
	}
	for i, s := range wantStates {
		if snaps[i].State != s {
			t.Errorf("snapshot %d: expected %s, got %s", i, s, snaps[i].State)
		}
	}

	// 5 transitions, 8 per-stop fetching snapshots, 1 done
	if len(snaps) != 14 {
		t.Fatalf("expected 14 snapshots, got %d", len(snaps))
	}

	last := snaps[len(snaps)-1]
	if last.State != domain.StateDone || last.Progress != (domain.Progress{Current: 9, Total: 9}) {
		t.Errorf("unexpected final snapshot %s %+v", last.State, last.Progress)
	}

	full, prev := 0, 0
	for i, s := range snaps {
		if s.Progress.Current < prev {
			t.Errorf("snapshot %d: progress went backwards %d -> %d", i, prev, s.Progress.Current)
		}
		prev = s.Progress.Current
		if s.Progress.Total > 0 && s.Progress.Current == s.Progress.Total {
			full++
		}
		if s.State == domain.StateFetching && s.Progress.Current > 0 && len(s.Images) != s.Progress.Current*4 {
			t.Errorf("snapshot %d: expected %d images, got %d", i, s.Progress.Current*4, len(s.Images))
		}
	}
	if full != 1 {
		t.Errorf("expected {total,total} exactly once, got %d", full)
	}

	progress, completed := f.events.waitCompleted(t, 1)
	if len(progress) != len(snaps) {
		t.Errorf("expected every snapshot published, got %d of %d", len(progress), len(snaps))
	}
	for i := range progress {
		if progress[i].State != snaps[i].State || progress[i].Progress != snaps[i].Progress {
			t.Errorf("published event %d out of order: %s %+v", i, progress[i].State, progress[i].Progress)
		}
	}
	if len(completed) != 1 || completed[0].StopCount != 9 {
		t.Errorf("expected one completed event with 9 stops, got %+v", completed)
	}
	if len(f.history.records) != 1 || f.history.records[0].State != domain.StateDone {
		t.Errorf("expected one done history record, got %+v", f.history.records)
	}
}

func TestExplore_NoRoute(t *testing.T) {
	f := newFixture()
	var calls int32
	f.directions.routeFn = func(ctx context.Context, o, d domain.Coordinate) (*domain.Route, error) {
		atomic.AddInt32(&calls, 1)
		return nil, domain.ErrNoRoute
	}
	var snaps []domain.Snapshot

	res, err := f.service().Explore(context.Background(), "A", "B", collect(&snaps))
	if res != nil {
		t.Fatal("expected no result")
	}

	var ee *domain.ExploreError
	if !errors.As(err, &ee) || !errors.Is(err, domain.ErrNoRoute) {
		t.Fatalf("expected no-route ExploreError, got %v", err)
	}
	if !strings.Contains(ee.Message, `No route found between "A" and "B"`) {
		t.Errorf("unexpected message %q", ee.Message)
	}
	if calls != 1 {
		t.Errorf("no-route must not be retried, got %d calls", calls)
	}

	last := snaps[len(snaps)-1]
	if last.State != domain.StateFailed || len(last.Stops) != 0 || len(last.Images) != 0 {
		t.Errorf("expected empty failed snapshot, got %+v", last)
	}
	if f.history.records[0].ErrorCode != "no_route" {
		t.Errorf("expected no_route in history, got %q", f.history.records[0].ErrorCode)
	}
}

func TestExplore_OriginNotFound(t *testing.T) {
	f := newFixture(straightLeg(4))
	_, err := f.service().Explore(context.Background(), "Nowhere", "B", nil)

	var ee *domain.ExploreError
	if !errors.As(err, &ee) || ee.Kind != domain.ErrLocationNotFound {
		t.Fatalf("expected location-not-found, got %v", err)
	}
	if !strings.HasPrefix(ee.Message, "Origin location not found") {
		t.Errorf("unexpected message %q", ee.Message)
	}
	if ee.Code() != "location_not_found" {
		t.Errorf("unexpected code %q", ee.Code())
	}
}

func TestExplore_RetriesTransientGeocodeFailures(t *testing.T) {
	f := newFixture(straightLeg(4))
	base := f.geocoder.geocodeFn
	var calls int32
	f.geocoder.geocodeFn = func(ctx context.Context, address string) (*domain.Place, error) {
		if address == "A" && atomic.AddInt32(&calls, 1) < 3 {
			return nil, errors.New("connection reset")
		}
		return base(ctx, address)
	}

	if _, err := f.service().Explore(context.Background(), "A", "B", nil); err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
}

func TestExplore_TransientFailuresExhausted(t *testing.T) {
	f := newFixture(straightLeg(4))
	var calls int32
	f.directions.routeFn = func(ctx context.Context, o, d domain.Coordinate) (*domain.Route, error) {
		atomic.AddInt32(&calls, 1)
		return nil, errors.New("upstream 503")
	}

	_, err := f.service().Explore(context.Background(), "A", "B", nil)
	if !errors.Is(err, domain.ErrServiceUnavailable) {
		t.Fatalf("expected service unavailable, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
}

func TestExplore_ReverseGeocodeFailureKeepsFallback(t *testing.T) {
	leg := straightLeg(5) // k=1: start, ends of steps 1..4; the leg end dedupes into step 4
	f := newFixture(leg)
	third := leg.Steps[2].EndLocation
	f.geocoder.reverseFn = func(ctx context.Context, at domain.Coordinate) (string, error) {
		if at == third {
			return "", domain.ErrLocationNotFound // ZERO_RESULTS
		}
		return "Resolved", nil
	}

	res, err := f.service().Explore(context.Background(), "A", "B", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Stops) != 5 {
		t.Fatalf("expected 5 stops, got %d", len(res.Stops))
	}
	if res.Stops[2].Address != "Head north on Peachtree St..." {
		t.Errorf("expected fallback label for stop 3, got %q", res.Stops[2].Address)
	}
	if res.Stops[2].Coordinate() != third {
		t.Errorf("stop 3 coordinates changed: %v", res.Stops[2].Coordinate())
	}
	for i, s := range res.Stops {
		if i != 2 && s.Address != "Resolved" {
			t.Errorf("stop %d: expected enriched address, got %q", i, s.Address)
		}
	}
}

func TestExplore_AdvisorFailureStillEmitsAllHeadings(t *testing.T) {
	f := newFixture(straightLeg(4))
	f.advisor = &mockAdvisor{adviseFn: func(ctx context.Context, stop domain.PitStop) (domain.ImageryAdvice, error) {
		return domain.ImageryAdvice{}, errors.New("model overloaded")
	}}

	res, err := f.service().Explore(context.Background(), "A", "B", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Images) != len(res.Stops)*4 {
		t.Errorf("expected %d images, got %d", len(res.Stops)*4, len(res.Images))
	}
}

func TestExplore_NoImagery(t *testing.T) {
	f := newFixture(straightLeg(4))
	f.advisor = &mockAdvisor{adviseFn: func(ctx context.Context, stop domain.PitStop) (domain.ImageryAdvice, error) {
		return domain.ImageryAdvice{HasStreetView: false}, nil
	}}
	var snaps []domain.Snapshot

	res, err := f.service().Explore(context.Background(), "A", "B", collect(&snaps))
	if err != nil {
		t.Fatalf("no imagery must not be an error, got %v", err)
	}
	if !res.NoImagery || res.Message != usecases.NoImageryMessage {
		t.Errorf("expected no-imagery result, got %+v", res)
	}
	if res.State != domain.StateDone || len(res.Images) != 0 {
		t.Errorf("expected done with zero images, got %s/%d", res.State, len(res.Images))
	}
	if snaps[len(snaps)-1].State != domain.StateDone {
		t.Error("expected final snapshot to be done")
	}
}

func TestExplore_RecommendedDirections(t *testing.T) {
	f := newFixture(straightLeg(4))
	f.advisor = &mockAdvisor{adviseFn: func(ctx context.Context, stop domain.PitStop) (domain.ImageryAdvice, error) {
		return domain.ImageryAdvice{HasStreetView: true, BestDirections: []string{"east", " West"}}, nil
	}}

	res, err := f.service().Explore(context.Background(), "A", "B", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, img := range res.Images[:4] {
		want := img.Direction == "East" || img.Direction == "West"
		if img.Recommended != want {
			t.Errorf("%s: recommended=%v, want %v", img.Direction, img.Recommended, want)
		}
	}
}

func TestExplore_InvalidInput(t *testing.T) {
	f := newFixture(straightLeg(4))
	var calls int32
	f.geocoder.geocodeFn = func(ctx context.Context, address string) (*domain.Place, error) {
		atomic.AddInt32(&calls, 1)
		return nil, nil
	}
	svc := f.service()

	cases := [][2]string{
		{"", "B"},
		{"A", "   "},
		{strings.Repeat("x", 201), "B"},
	}
	for _, c := range cases {
		_, err := svc.Explore(context.Background(), c[0], c[1], nil)
		if !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("Explore(%q, %q): expected invalid input, got %v", c[0], c[1], err)
		}
	}
	if calls != 0 {
		t.Errorf("geocoder must not be called for invalid input, got %d calls", calls)
	}
}

func TestExplore_CancelledMidFetch(t *testing.T) {
	f := newFixture(straightLeg(24))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	res, err := f.service().Explore(ctx, "A", "B", func(s domain.Snapshot) {
		if s.State == domain.StateFetching && s.Progress.Current == 2 {
			cancel()
		}
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if res != nil {
		t.Error("partial results must be discarded")
	}
	if f.history.records[0].ErrorCode != "canceled" {
		t.Errorf("expected canceled history record, got %q", f.history.records[0].ErrorCode)
	}
}

func TestExplore_SideChannelFailuresAreIgnored(t *testing.T) {
	f := newFixture(straightLeg(4))
	f.events.err = errors.New("nats down")
	f.history.err = errors.New("db down")

	if _, err := f.service().Explore(context.Background(), "A", "B", nil); err != nil {
		t.Fatalf("side-channel failures must not fail the exploration: %v", err)
	}
}

func TestExplore_StalledBrokerDoesNotDelayExploration(t *testing.T) {
	f := newFixture(straightLeg(24))
	f.events.block = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := f.service().Explore(context.Background(), "A", "B", nil)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("exploration waited on the broker")
	}

	close(f.events.block)
	progress, completed := f.events.waitCompleted(t, 1)
	if len(progress) != 14 || progress[len(progress)-1].State != domain.StateDone {
		t.Errorf("expected 14 progress events ending in done once the broker recovers, got %d", len(progress))
	}
	if completed[0].State != domain.StateDone {
		t.Errorf("unexpected completed event %+v", completed[0])
	}
}

func TestExplore_Recent(t *testing.T) {
	f := newFixture(straightLeg(4))
	svc := f.service()
	for i := 0; i < 3; i++ {
		if _, err := svc.Explore(context.Background(), "A", "B", nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	recs, err := svc.Recent(context.Background(), 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if recs[0].ID == recs[1].ID {
		t.Error("expected distinct exploration ids")
	}
}
