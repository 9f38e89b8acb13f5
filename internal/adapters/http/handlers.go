package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/gofiber/fiber/v2"

	"github.com/urbanbuzz/explorer/internal/core/domain"
	"github.com/urbanbuzz/explorer/internal/core/usecases"
)

type exploreRequest struct {
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
}

// CreateExplorationHandler runs an exploration and returns the final result.
func CreateExplorationHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req exploreRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		result, err := deps.Explorations.Explore(c.UserContext(), req.Origin, req.Destination, nil)
		if err != nil {
			return errFromDomain(c, err)
		}

		c.Set("Cache-Control", "no-store")
		return c.JSON(result)
	}
}

// RecentExplorationsHandler lists the latest exploration summaries.
func RecentExplorationsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		records, err := deps.Explorations.Recent(c.UserContext(), c.QueryInt("limit", 20))
		if err != nil {
			return errFromDomain(c, err)
		}

		c.Set("Cache-Control", "private, max-age=5")
		return c.JSON(fiber.Map{"data": records})
	}
}

// GeocodeHandler resolves ?address= to a place.
func GeocodeHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		address := c.Query("address")
		if strings.TrimSpace(address) == "" {
			return errBadRequest(c, "address query parameter is required")
		}
		if utf8.RuneCountInString(address) > 200 {
			return errBadRequest(c, "address too long (max 200 characters)")
		}

		place, err := deps.Geocoding.Geocode(c.UserContext(), address)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(place)
	}
}

// ReverseGeocodeHandler returns the address at ?lat=&lng=.
func ReverseGeocodeHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Query("lat") == "" || c.Query("lng") == "" {
			return errBadRequest(c, "lat and lng are required")
		}
		at, err := parseLatLng(c.Query("lat") + "," + c.Query("lng"))
		if err != nil {
			return errBadRequest(c, err.Error())
		}

		address, err := deps.Geocoding.ReverseGeocode(c.UserContext(), at)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(fiber.Map{"address": address, "location": at})
	}
}

// DirectionsHandler returns the driving route for ?origin=lat,lng&destination=lat,lng.
func DirectionsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		origin, err := parseLatLng(c.Query("origin"))
		if err != nil {
			return errBadRequest(c, "origin: "+err.Error())
		}
		destination, err := parseLatLng(c.Query("destination"))
		if err != nil {
			return errBadRequest(c, "destination: "+err.Error())
		}

		route, err := deps.Geocoding.Route(c.UserContext(), origin, destination)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(route)
	}
}

type stationRequest struct {
	Location *domain.Coordinate `json:"location"`
	Address  string             `json:"address"`
	Keyword  string             `json:"keyword"`
}

// NearestStationHandler finds transit stations near a location or address.
func NearestStationHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req stationRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		res, err := deps.Stations.Nearest(c.UserContext(), usecases.StationQuery{
			Location: req.Location,
			Address:  req.Address,
			Keyword:  req.Keyword,
		})
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(res)
	}
}

type nearbyPlacesRequest struct {
	// Location is either {"lat": ..., "lng": ...} or "lat,lng".
	Location json.RawMessage `json:"location"`
	Query    string          `json:"query"`
	Type     string          `json:"type"`
}

// NearbyPlacesHandler lists the best rated places matching a keyword near a point.
func NearbyPlacesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req nearbyPlacesRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		at, err := parseLocation(req.Location)
		if err != nil {
			return errBadRequest(c, err.Error())
		}

		res, err := deps.Places.Find(c.UserContext(), usecases.NearbyQuery{
			Location: at,
			Query:    req.Query,
			Type:     req.Type,
		})
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(res)
	}
}

type safetyRequest struct {
	Location    string             `json:"location"`
	Address     string             `json:"address"`
	Coordinates *domain.Coordinate `json:"coordinates"`
}

// SafetyAnalysisHandler returns a model-written safety report for a location.
func SafetyAnalysisHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req safetyRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		report, err := deps.Safety.Analyze(c.UserContext(), usecases.SafetyQuery{
			Location:    req.Location,
			Address:     req.Address,
			Coordinates: req.Coordinates,
		})
		if err != nil {
			return errFromDomain(c, err)
		}

		c.Set("Cache-Control", "no-store")
		return c.JSON(report)
	}
}

type analyzeImageRequest struct {
	URL         string            `json:"url"`
	Address     string            `json:"address"`
	Coordinates domain.Coordinate `json:"coordinates"`
	Direction   string            `json:"direction"`
	RouteInfo   domain.RouteInfo  `json:"routeInfo"`
}

// AnalyzeImageHandler runs the vision model over one street-level image.
func AnalyzeImageHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req analyzeImageRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		analysis, err := deps.Analysis.AnalyzeImage(c.UserContext(), domain.StreetViewImage{
			URL:         req.URL,
			Address:     req.Address,
			Coordinates: req.Coordinates,
			Direction:   req.Direction,
			RouteInfo:   req.RouteInfo,
		})
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(analysis)
	}
}

// StartRouteAnalysisHandler starts an asynchronous route analysis.
func StartRouteAnalysisHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req exploreRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		id, err := deps.RouteAnalyses.Start(c.UserContext(), req.Origin, req.Destination)
		if err != nil {
			return errFromDomain(c, err)
		}

		c.Set(fiber.HeaderLocation, "/v1/route-analyses/"+id)
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"id": id, "status": "running"})
	}
}

// GetRouteAnalysisHandler returns 202 while an analysis runs and the summary once done.
func GetRouteAnalysisHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		analysis, done, err := deps.RouteAnalyses.Result(c.UserContext(), id)
		if err != nil {
			return errFromDomain(c, err)
		}

		c.Set("Cache-Control", "no-store")
		if !done {
			return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"id": id, "status": "running"})
		}
		return c.JSON(fiber.Map{"id": id, "status": "done", "analysis": analysis})
	}
}

type mapImageRequest struct {
	Origin      domain.Coordinate `json:"origin"`
	Destination domain.Coordinate `json:"destination"`
	Path        [][]float64       `json:"path"` // [lng, lat] pairs
}

// MapImageHandler returns a static map URL for a route polyline.
func MapImageHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req mapImageRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if err := req.Origin.Validate(); err != nil {
			return errBadRequest(c, "origin: "+err.Error())
		}
		if err := req.Destination.Validate(); err != nil {
			return errBadRequest(c, "destination: "+err.Error())
		}

		path := make([]domain.Coordinate, 0, len(req.Path))
		for i, p := range req.Path {
			if len(p) != 2 {
				return errBadRequest(c, fmt.Sprintf("path[%d] must be a [lng, lat] pair", i))
			}
			pt := domain.Coordinate{Lat: p[1], Lng: p[0]}
			if err := pt.Validate(); err != nil {
				return errBadRequest(c, fmt.Sprintf("path[%d]: %v", i, err))
			}
			path = append(path, pt)
		}

		return c.JSON(fiber.Map{"url": deps.Maps.RouteMapURL(req.Origin, req.Destination, path)})
	}
}

// parseLocation accepts a coordinate object or a "lat,lng" string.
func parseLocation(raw json.RawMessage) (domain.Coordinate, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return domain.Coordinate{}, fmt.Errorf("location coordinates are required")
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return domain.Coordinate{}, fmt.Errorf("invalid location")
		}
		return parseLatLng(s)
	}
	var at domain.Coordinate
	if err := json.Unmarshal(raw, &at); err != nil {
		return domain.Coordinate{}, fmt.Errorf("location must be {lat, lng} or \"lat,lng\"")
	}
	return at, at.Validate()
}

// parseLatLng parses "lat,lng".
func parseLatLng(s string) (domain.Coordinate, error) {
	latStr, lngStr, ok := strings.Cut(s, ",")
	if !ok {
		return domain.Coordinate{}, fmt.Errorf("expected lat,lng")
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return domain.Coordinate{}, fmt.Errorf("invalid latitude %q", latStr)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(lngStr), 64)
	if err != nil {
		return domain.Coordinate{}, fmt.Errorf("invalid longitude %q", lngStr)
	}
	at := domain.Coordinate{Lat: lat, Lng: lng}
	return at, at.Validate()
}
