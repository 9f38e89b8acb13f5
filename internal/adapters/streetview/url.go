// Package streetview builds Static Street View and Static Maps request URLs.
package streetview

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/urbanbuzz/explorer/internal/core/domain"
)

const (
	streetViewPath = "/maps/api/streetview"
	staticMapPath  = "/maps/api/staticmap"
	mapSize        = "800x500"
	pathStyle      = "color:0x0A3D3D|weight:5"
)

// Builder implements ports.ImageURLBuilder and ports.MapURLBuilder.
type Builder struct {
	base   string
	apiKey string
	size   string
}

// NewBuilder returns a Builder rooted at base, e.g. https://maps.googleapis.com.
func NewBuilder(base, apiKey, size string) *Builder {
	return &Builder{base: strings.TrimRight(base, "/"), apiKey: apiKey, size: size}
}

// Prefix is the URL prefix shared by every image this builder emits.
func (b *Builder) Prefix() string {
	return b.base + "/maps/api/"
}

// StreetViewURL returns the static image URL for one heading at a stop.
func (b *Builder) StreetViewURL(at domain.Coordinate, heading, pitch, fov int) string {
	q := url.Values{}
	q.Set("size", b.size)
	q.Set("location", at.String())
	q.Set("heading", strconv.Itoa(heading))
	q.Set("pitch", strconv.Itoa(pitch))
	q.Set("fov", strconv.Itoa(fov))
	q.Set("key", b.apiKey)
	return b.base + streetViewPath + "?" + encodeOrdered(q, "size", "location", "heading", "pitch", "fov", "key")
}

// RouteMapURL renders the route as a polyline between A and B markers.
func (b *Builder) RouteMapURL(origin, destination domain.Coordinate, path []domain.Coordinate) string {
	points := make([]string, 0, len(path)+2)
	points = append(points, pathStyle, origin.String())
	for _, p := range path {
		points = append(points, p.String())
	}
	points = append(points, destination.String())

	q := url.Values{}
	q.Set("size", mapSize)
	q.Set("path", strings.Join(points, "|"))
	q.Add("markers", fmt.Sprintf("color:green|label:A|%s", origin))
	q.Add("markers", fmt.Sprintf("color:red|label:B|%s", destination))
	q.Set("key", b.apiKey)
	return b.base + staticMapPath + "?" + encodeOrdered(q, "size", "path", "markers", "key")
}

// encodeOrdered keeps parameters in the order the imagery API documents them.
func encodeOrdered(q url.Values, keys ...string) string {
	var sb strings.Builder
	for _, k := range keys {
		for _, v := range q[k] {
			if sb.Len() > 0 {
				sb.WriteByte('&')
			}
			sb.WriteString(url.QueryEscape(k))
			sb.WriteByte('=')
			sb.WriteString(url.QueryEscape(v))
		}
	}
	return sb.String()
}
