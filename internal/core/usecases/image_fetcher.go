package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/urbanbuzz/explorer/internal/core/domain"
	"github.com/urbanbuzz/explorer/internal/core/ports"
	"github.com/urbanbuzz/explorer/internal/pkg/metrics"
)

// Heading is a camera direction and its label.
type Heading struct {
	Degrees   int
	Direction string
}

// DefaultHeadings are the four cardinal directions in emission order.
var DefaultHeadings = []Heading{
	{Degrees: 0, Direction: "North"},
	{Degrees: 90, Direction: "East"},
	{Degrees: 180, Direction: "South"},
	{Degrees: 270, Direction: "West"},
}

const imageLabelAddressLen = 40

// ImageParams are the static camera parameters shared by every descriptor.
type ImageParams struct {
	Headings []Heading
	Pitch    int
	FOV      int
}

// ProgressFunc receives the images accumulated so far after each stop.
type ProgressFunc func(images []domain.StreetViewImage, progress domain.Progress)

// ImageFetcher builds street-level image descriptors stop by stop.
type ImageFetcher struct {
	urls            ports.ImageURLBuilder
	advisor         ports.ImageryAdvisor
	advisoryTimeout time.Duration
	params          ImageParams
	log             *slog.Logger
}

// NewImageFetcher creates an ImageFetcher. advisor may be nil, in which case
// every stop gets every heading.
func NewImageFetcher(urls ports.ImageURLBuilder, advisor ports.ImageryAdvisor, advisoryTimeout time.Duration, params ImageParams, log *slog.Logger) *ImageFetcher {
	if len(params.Headings) == 0 {
		params.Headings = DefaultHeadings
	}
	return &ImageFetcher{
		urls:            urls,
		advisor:         advisor,
		advisoryTimeout: advisoryTimeout,
		params:          params,
		log:             log,
	}
}

// HeadingCount is the number of images a stop yields when imagery is available.
func (f *ImageFetcher) HeadingCount() int {
	return len(f.params.Headings)
}

// Fetch walks stops in order and reports progress after each one. A cancelled
// context aborts the walk, including during the last stop's advisory call,
// and discards what was built.
func (f *ImageFetcher) Fetch(ctx context.Context, stops []domain.PitStop, route domain.RouteInfo, onProgress ProgressFunc) ([]domain.StreetViewImage, error) {
	images := make([]domain.StreetViewImage, 0, len(stops)*len(f.params.Headings))

	for i, stop := range stops {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		advice := f.advise(ctx, i, stop)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if advice.HasStreetView {
			images = append(images, f.Descriptors(i, stop, route, advice.BestDirections)...)
		} else {
			f.log.Info("advisor reported no imagery, skipping stop", "stop", i, "address", stop.Address)
		}

		if onProgress != nil {
			onProgress(slices.Clone(images), domain.Progress{Current: i + 1, Total: len(stops)})
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	metrics.ImagesEmitted.Add(float64(len(images)))
	return images, nil
}

// Descriptors builds one image per configured heading for the stop at index i.
func (f *ImageFetcher) Descriptors(i int, stop domain.PitStop, route domain.RouteInfo, best []string) []domain.StreetViewImage {
	out := make([]domain.StreetViewImage, 0, len(f.params.Headings))
	for _, h := range f.params.Headings {
		out = append(out, domain.StreetViewImage{
			URL:         f.urls.StreetViewURL(stop.Coordinate(), h.Degrees, f.params.Pitch, f.params.FOV),
			Heading:     h.Degrees,
			Pitch:       f.params.Pitch,
			FOV:         f.params.FOV,
			Label:       fmt.Sprintf("Step %d - %s: %s...", i+1, h.Direction, truncateRunes(stop.Address, imageLabelAddressLen)),
			StopIndex:   i,
			Direction:   h.Direction,
			Address:     stop.Address,
			Coordinates: stop.Coordinate(),
			RouteInfo:   route,
			Recommended: containsFold(best, h.Direction),
		})
	}
	return out
}

func (f *ImageFetcher) advise(ctx context.Context, i int, stop domain.PitStop) domain.ImageryAdvice {
	if f.advisor == nil {
		return domain.DefaultAdvice()
	}

	actx := ctx
	if f.advisoryTimeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, f.advisoryTimeout)
		defer cancel()
	}

	advice, err := f.advisor.Advise(actx, stop)
	if err != nil {
		metrics.DegradedTotal.WithLabelValues("advisory").Inc()
		f.log.Warn("imagery advisory failed, using defaults", "stop", i, "error", err)
		return domain.DefaultAdvice()
	}
	return advice
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(strings.TrimSpace(v), s) {
			return true
		}
	}
	return false
}
