package telemetry

// Tracer and span names used for instrumentation.
const (
	TracerName = "github.com/urbanbuzz/explorer"

	SpanExplore       = "exploration.explore"
	SpanRouteAnalysis = "route_analysis.start"

	// Span events, one per pipeline stage
	EventGeocoded  = "geocoded"
	EventRouted    = "routed"
	EventSampled   = "sampled"
	EventEnriched  = "enriched"
	EventStopDone  = "stop_fetched"
	EventNoImagery = "no_imagery"
)
