package domain

import (
	"time"
)

// RouteStep is one maneuver of a directions leg.
type RouteStep struct {
	StartLocation   Coordinate `json:"start_location"`
	EndLocation     Coordinate `json:"end_location"`
	DistanceMeters  int        `json:"distance_meters"`
	HTMLInstruction string     `json:"html_instruction"`
}

// RouteLeg is one origin-to-destination segment of a route.
type RouteLeg struct {
	Steps          []RouteStep `json:"steps"`
	StartAddress   string      `json:"start_address"`
	EndAddress     string      `json:"end_address"`
	StartLocation  Coordinate  `json:"start_location"`
	EndLocation    Coordinate  `json:"end_location"`
	DistanceMeters int         `json:"distance_meters"`
}

// Route is the route returned by the directions provider.
type Route struct {
	Legs []RouteLeg `json:"legs"`
}

// PitStop is a sampled coordinate along a route.
type PitStop struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Address string  `json:"address"`
}

// Coordinate returns the stop position.
func (p PitStop) Coordinate() Coordinate {
	return Coordinate{Lat: p.Lat, Lng: p.Lng}
}

// RouteInfo carries the route endpoints as the user typed them.
type RouteInfo struct {
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
}

// ImageAnalysis is the vision model's reading of a street-level image.
type ImageAnalysis struct {
	Description    string   `json:"description"`
	Curves         []string `json:"curves"`
	Accessibility  []string `json:"accessibility"`
	Safety         []string `json:"safety"`
	Infrastructure []string `json:"infrastructure"`
	Hazards        []string `json:"hazards"`
	Features       []string `json:"features"`
	OverallScore   string   `json:"overall_score,omitempty"`
}

// StreetViewImage describes one static street-level image request.
type StreetViewImage struct {
	URL         string         `json:"url"`
	Heading     int            `json:"heading"`
	Pitch       int            `json:"pitch"`
	FOV         int            `json:"fov"`
	Label       string         `json:"label"`
	StopIndex   int            `json:"stop_index"`
	Direction   string         `json:"direction"`
	Address     string         `json:"address"`
	Coordinates Coordinate     `json:"coordinates"`
	RouteInfo   RouteInfo      `json:"route_info"`
	Recommended bool           `json:"recommended"`
	Analysis    *ImageAnalysis `json:"analysis,omitempty"`
}

// ImageryAdvice is the advisory collaborator's verdict for one stop.
type ImageryAdvice struct {
	HasStreetView  bool     `json:"hasStreetView"`
	BestDirections []string `json:"bestDirections"`
}

// DefaultAdvice is used whenever the advisor fails or is not configured.
func DefaultAdvice() ImageryAdvice {
	return ImageryAdvice{HasStreetView: true, BestDirections: []string{}}
}

// Progress counts completed stops.
type Progress struct {
	Current int `json:"current"`
	Total   int `json:"total"`
}

// ExplorationState is a stage of the exploration pipeline.
type ExplorationState string

const (
	StateIdle      ExplorationState = "idle"
	StateGeocoding ExplorationState = "geocoding"
	StateRouting   ExplorationState = "routing"
	StateSampling  ExplorationState = "sampling"
	StateEnriching ExplorationState = "enriching"
	StateFetching  ExplorationState = "fetching"
	StateDone      ExplorationState = "done"
	StateFailed    ExplorationState = "failed"
)

// Snapshot is the partial result observable while an exploration runs.
type Snapshot struct {
	ExplorationID string            `json:"exploration_id"`
	State         ExplorationState  `json:"state"`
	Stops         []PitStop         `json:"stops"`
	Images        []StreetViewImage `json:"images"`
	Progress      Progress          `json:"progress"`
}

// Exploration is the final result of one exploration request.
type Exploration struct {
	ID                  string            `json:"id"`
	Origin              string            `json:"origin"`
	Destination         string            `json:"destination"`
	OriginLocation      Coordinate        `json:"origin_location"`
	DestinationLocation Coordinate        `json:"destination_location"`
	Stops               []PitStop         `json:"stops"`
	Images              []StreetViewImage `json:"images"`
	Progress            Progress          `json:"progress"`
	State               ExplorationState  `json:"state"`
	NoImagery           bool              `json:"no_imagery"`
	Message             string            `json:"message,omitempty"`
}

// ExplorationRecord is the summary kept in the exploration history.
type ExplorationRecord struct {
	ID          string           `json:"id"`
	Origin      string           `json:"origin"`
	Destination string           `json:"destination"`
	State       ExplorationState `json:"state"`
	StopCount   int              `json:"stop_count"`
	ImageCount  int              `json:"image_count"`
	ErrorCode   string           `json:"error_code,omitempty"`
	StartedAt   time.Time        `json:"started_at"`
	Duration    time.Duration    `json:"duration"`
}

// Station is a transit station near a point.
type Station struct {
	Name           string     `json:"name"`
	Address        string     `json:"address"`
	Location       Coordinate `json:"location"`
	PlaceID        string     `json:"place_id,omitempty"`
	DistanceMeters float64    `json:"distance_meters"`

	// Set by keyword place searches; transit searches leave them empty.
	Rating           float64  `json:"rating,omitempty"`
	UserRatingsTotal int      `json:"user_ratings_total,omitempty"`
	Types            []string `json:"types,omitempty"`
}

// TravelEstimate is a human-readable driving distance and duration.
type TravelEstimate struct {
	Distance string `json:"distance"`
	Duration string `json:"duration"`
}

// NearbyPlace is a rated point of interest with the travel estimate to reach it.
type NearbyPlace struct {
	Name             string     `json:"name"`
	Address          string     `json:"address"`
	Rating           float64    `json:"rating"`
	UserRatingsTotal int        `json:"user_ratings_total"`
	Location         Coordinate `json:"location"`
	Distance         string     `json:"distance"`
	Duration         string     `json:"duration"`
	PlaceID          string     `json:"place_id,omitempty"`
	Types            []string   `json:"types"`
}

// LocationInfo names the place a safety report is about.
type LocationInfo struct {
	Address      string      `json:"address"`
	City         string      `json:"city"`
	State        string      `json:"state"`
	Country      string      `json:"country"`
	Neighborhood string      `json:"neighborhood"`
	Coordinates  *Coordinate `json:"coordinates"`
}

type SafetyTrend struct {
	Month string `json:"month"`
	Score int    `json:"score"`
}

type SafetyIncident struct {
	Date        string `json:"date"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

type TimeBasedSafety struct {
	Day   int `json:"day"`
	Night int `json:"night"`
}

// SafetyReport is a model-written safety profile of one location. Scores are 0-100.
type SafetyReport struct {
	OverallScore    int              `json:"overall_score"`
	CrimeStats      map[string]int   `json:"crime_stats"`
	SafetyTrends    []SafetyTrend    `json:"safety_trends"`
	RecentIncidents []SafetyIncident `json:"recent_incidents"`
	SafetyFactors   map[string]int   `json:"safety_factors"`
	TimeBasedSafety TimeBasedSafety  `json:"time_based_safety"`
	Recommendations []string         `json:"recommendations"`
	Summary         string           `json:"summary"`
	DataSource      string           `json:"data_source"`
	DataAvailable   bool             `json:"data_available"`
	LocationInfo    LocationInfo     `json:"location_info"`
}

// StopAnalysis is the vision analysis of one route-analysis stop.
type StopAnalysis struct {
	Location    string     `json:"location"`
	Coordinates Coordinate `json:"coordinates"`
	ImageAnalysis
}

// RouteAnalysis is the aggregated safety/accessibility summary of a route.
type RouteAnalysis struct {
	TotalStopsAnalyzed    int            `json:"total_stops_analyzed"`
	AccessibilityOverall  string         `json:"accessibility_overall"`
	AccessibilityFeatures []string       `json:"accessibility_features"`
	SafetyObservations    []string       `json:"safety_observations"`
	Hazards               []string       `json:"hazards"`
	Curves                []string       `json:"curves"`
	Infrastructure        []string       `json:"infrastructure"`
	DetailedAnalyses      []StopAnalysis `json:"detailed_analyses"`
}
