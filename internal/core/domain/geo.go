package domain

import (
	"fmt"
	"math"
)

// Coordinate represents a geographic coordinate (WGS 84).
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Validate checks the coordinate is within the WGS 84 ranges.
func (c Coordinate) Validate() error {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lng) {
		return fmt.Errorf("coordinate %f,%f is not a number", c.Lat, c.Lng)
	}
	if c.Lat < -90 || c.Lat > 90 {
		return fmt.Errorf("latitude %f out of range [-90, 90]", c.Lat)
	}
	if c.Lng < -180 || c.Lng > 180 {
		return fmt.Errorf("longitude %f out of range [-180, 180]", c.Lng)
	}
	return nil
}

// String formats the coordinate as "lat,lng", the form map APIs accept.
func (c Coordinate) String() string {
	return fmt.Sprintf("%f,%f", c.Lat, c.Lng)
}

// Label is the human fallback used when no address is known.
func (c Coordinate) Label() string {
	return fmt.Sprintf("%.6f, %.6f", c.Lat, c.Lng)
}

// Place is a geocoded location.
type Place struct {
	FormattedAddress string     `json:"formatted_address"`
	Location         Coordinate `json:"location"`
	PlaceID          string     `json:"place_id,omitempty"`
}
