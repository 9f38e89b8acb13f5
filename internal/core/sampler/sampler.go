// Package sampler turns directions routes into pit stops for street-level inspection.
package sampler

import (
	"math"
	"regexp"
	"strings"

	"github.com/urbanbuzz/explorer/internal/core/domain"
)

const (
	// DefaultStopsPerLeg is the target number of intermediate stops per leg.
	DefaultStopsPerLeg = 8

	// DedupeTolerance is the per-axis distance in degrees (~11 m) under which
	// two stops are the same stop.
	DedupeTolerance = 0.0001

	instructionLabelLen = 50
)

var htmlTag = regexp.MustCompile(`<[^>]*>`)

// StepInterval returns k, the number of steps between intermediate stops.
func StepInterval(stepCount, targetStopsPerLeg int) int {
	if targetStopsPerLeg <= 0 {
		targetStopsPerLeg = DefaultStopsPerLeg
	}
	return max(1, stepCount/targetStopsPerLeg)
}

// SampleLegs emits, for every leg, its start, the end of every k-th step and
// its end, then removes near-duplicates.
func SampleLegs(legs []domain.RouteLeg, targetStopsPerLeg int) []domain.PitStop {
	var stops []domain.PitStop
	for _, leg := range legs {
		stops = append(stops, newStop(leg.StartLocation, leg.StartAddress))

		k := StepInterval(len(leg.Steps), targetStopsPerLeg)
		for i, step := range leg.Steps {
			if i > 0 && i%k == 0 {
				stops = append(stops, newStop(step.EndLocation, InstructionLabel(step.HTMLInstruction)))
			}
		}

		stops = append(stops, newStop(leg.EndLocation, leg.EndAddress))
	}
	return Dedupe(stops)
}

// InstructionLabel strips markup from a step instruction and truncates it.
// It returns "" when nothing readable remains.
func InstructionLabel(html string) string {
	text := strings.TrimSpace(htmlTag.ReplaceAllString(html, ""))
	if text == "" {
		return ""
	}
	r := []rune(text)
	if len(r) > instructionLabelLen {
		r = r[:instructionLabelLen]
	}
	return string(r) + "..."
}

// Dedupe drops every stop within DedupeTolerance of an earlier one on both axes.
// The first occurrence wins and order is preserved.
func Dedupe(stops []domain.PitStop) []domain.PitStop {
	out := make([]domain.PitStop, 0, len(stops))
	for _, s := range stops {
		dup := false
		for _, kept := range out {
			if math.Abs(kept.Lat-s.Lat) < DedupeTolerance && math.Abs(kept.Lng-s.Lng) < DedupeTolerance {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, s)
		}
	}
	return out
}

// DistancePolicy controls distance-fraction sampling.
type DistancePolicy struct {
	SpacingMeters int
	MinStops      int
	MaxStops      int
}

// DefaultDistancePolicy places a stop roughly every 2 km, between 3 and 15 stops.
var DefaultDistancePolicy = DistancePolicy{SpacingMeters: 2000, MinStops: 3, MaxStops: 15}

// StopCount returns how many stops a leg of totalMeters gets.
func (p DistancePolicy) StopCount(totalMeters int) int {
	n := 0
	if p.SpacingMeters > 0 {
		n = totalMeters / p.SpacingMeters
	}
	return min(max(n, p.MinStops), p.MaxStops)
}

// SampleByDistance places n stops at distance fractions i/(n+1) along the leg,
// interpolating linearly inside the step that crosses each target distance.
// Stops are labelled with their coordinates.
func SampleByDistance(leg domain.RouteLeg, p DistancePolicy) []domain.PitStop {
	if len(leg.Steps) == 0 {
		return nil
	}

	total := leg.DistanceMeters
	if total <= 0 {
		for _, s := range leg.Steps {
			total += s.DistanceMeters
		}
	}

	n := p.StopCount(total)
	stops := make([]domain.PitStop, 0, n)
	for i := 1; i <= n; i++ {
		target := float64(total) * float64(i) / float64(n+1)
		acc := 0.0
		for _, step := range leg.Steps {
			d := float64(step.DistanceMeters)
			if acc+d >= target {
				ratio := 1.0
				if d > 0 {
					ratio = (target - acc) / d
				}
				at := domain.Coordinate{
					Lat: step.StartLocation.Lat + (step.EndLocation.Lat-step.StartLocation.Lat)*ratio,
					Lng: step.StartLocation.Lng + (step.EndLocation.Lng-step.StartLocation.Lng)*ratio,
				}
				stops = append(stops, newStop(at, ""))
				break
			}
			acc += d
		}
	}
	return Dedupe(stops)
}

func newStop(at domain.Coordinate, label string) domain.PitStop {
	if strings.TrimSpace(label) == "" {
		label = at.Label()
	}
	return domain.PitStop{Lat: at.Lat, Lng: at.Lng, Address: label}
}
