package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/urbanbuzz/explorer/internal/core/domain"
)

const safetySystemPrompt = `You are a safety analysis expert. Give a location-specific safety assessment based on what you actually know about the place: its crime reputation, area type, city characteristics and safety patterns. Never reuse template values; different locations get different numbers.`

const safetyInstructions = `Use your actual knowledge of this location's crime statistics and safety reputation. Consider whether it is a high-crime or low-crime area, and whether it is residential, commercial or a tourist area. If you know nothing specific, estimate from the location type.

Return JSON with these fields:
- overallScore: number 0-100
- crimeStats: object with theft, assault, vandalism, burglary, other as percentages summing to about 100
- safetyTrends: array of 6 objects with month (Jan-Jun) and score (0-100)
- recentIncidents: array of 5 objects with date, type, description
- safetyFactors: object with lighting, policePresence, communityWatch, publicTransport, pedestrianSafety (each 0-100)
- timeBasedSafety: object with day and night scores (0-100)
- recommendations: array of 4-5 location-specific safety tips
- summary: 2-3 sentences on this location's safety profile`

const safetyDataSource = "OpenAI Knowledge Base"

var (
	firstNumber       = regexp.MustCompile(`\d+`)
	bareObject        = regexp.MustCompile(`(?s)\{.*\}`)
	recommendationSep = regexp.MustCompile(`[.,;]\s*`)
)

// Safety implements ports.SafetyAnalyzer.
type Safety struct {
	client *Client
	model  string
}

func NewSafety(client *Client, model string) *Safety {
	return &Safety{client: client, model: model}
}

// AnalyzeSafety asks the model for a safety profile of loc. Numbers given as
// strings ("85/100") are read from their first run of digits.
func (s *Safety) AnalyzeSafety(ctx context.Context, loc domain.LocationInfo) (*domain.SafetyReport, error) {
	content, err := s.client.complete(ctx, chatRequest{
		Model: s.model,
		Messages: []chatMessage{
			{Role: "system", Content: safetySystemPrompt},
			{Role: "user", Content: safetyPrompt(loc)},
		},
		MaxTokens:   2000,
		Temperature: 0.9,
	})
	if err != nil {
		return nil, err
	}

	var reply safetyReply
	if err := json.Unmarshal([]byte(extractJSON(content)), &reply); err != nil {
		obj := bareObject.FindString(content)
		if obj == "" {
			return nil, fmt.Errorf("%w: %v", ErrMalformedReply, err)
		}
		if err := json.Unmarshal([]byte(obj), &reply); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedReply, err)
		}
	}
	return reply.report(), nil
}

func safetyPrompt(loc domain.LocationInfo) string {
	return fmt.Sprintf("Analyze the safety of this exact location.\n\nLOCATION: %s\nCity: %s\nState/Region: %s\nCountry: %s\nNeighborhood: %s\n\n%s",
		loc.Address, orUnknown(loc.City), orUnknown(loc.State), orUnknown(loc.Country), orUnknown(loc.Neighborhood), safetyInstructions)
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}

type safetyReply struct {
	OverallScore    looseInt                         `json:"overallScore"`
	CrimeStats      map[string]looseInt              `json:"crimeStats"`
	SafetyTrends    looseList[trendReply]            `json:"safetyTrends"`
	RecentIncidents looseList[domain.SafetyIncident] `json:"recentIncidents"`
	SafetyFactors   map[string]looseInt              `json:"safetyFactors"`
	TimeBasedSafety dayNightReply                    `json:"timeBasedSafety"`
	Recommendations looseStrings                     `json:"recommendations"`
	Summary         string                           `json:"summary"`
	DataSource      string                           `json:"dataSource"`
}

type trendReply struct {
	Month string   `json:"month"`
	Score looseInt `json:"score"`
}

type dayNightReply struct {
	Day   looseInt `json:"day"`
	Night looseInt `json:"night"`
}

func (r safetyReply) report() *domain.SafetyReport {
	out := &domain.SafetyReport{
		OverallScore:    int(r.OverallScore),
		CrimeStats:      ints(r.CrimeStats),
		SafetyTrends:    make([]domain.SafetyTrend, 0, len(r.SafetyTrends)),
		RecentIncidents: []domain.SafetyIncident(r.RecentIncidents),
		SafetyFactors:   ints(r.SafetyFactors),
		TimeBasedSafety: domain.TimeBasedSafety{Day: int(r.TimeBasedSafety.Day), Night: int(r.TimeBasedSafety.Night)},
		Recommendations: []string(r.Recommendations),
		Summary:         r.Summary,
		DataSource:      r.DataSource,
		DataAvailable:   true,
	}
	for _, t := range r.SafetyTrends {
		out.SafetyTrends = append(out.SafetyTrends, domain.SafetyTrend{Month: t.Month, Score: int(t.Score)})
	}
	if out.RecentIncidents == nil {
		out.RecentIncidents = []domain.SafetyIncident{}
	}
	if out.Recommendations == nil {
		out.Recommendations = []string{}
	}
	if out.DataSource == "" {
		out.DataSource = safetyDataSource
	}
	return out
}

func ints(m map[string]looseInt) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = int(v)
	}
	return out
}

// looseInt accepts a JSON number or a string holding digits. Anything else is 0.
type looseInt int

func (n *looseInt) UnmarshalJSON(data []byte) error {
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		*n = looseInt(math.Round(f))
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if m := firstNumber.FindString(s); m != "" {
			v, _ := strconv.Atoi(m)
			*n = looseInt(v)
		}
	}
	return nil
}

// looseList accepts a JSON array; any other value decodes as empty.
type looseList[T any] []T

func (l *looseList[T]) UnmarshalJSON(data []byte) error {
	if !bytes.HasPrefix(bytes.TrimSpace(data), []byte("[")) {
		*l = nil
		return nil
	}
	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	*l = items
	return nil
}

// looseStrings accepts an array of strings or a single string, which is
// split on sentence and list punctuation.
type looseStrings []string

func (l *looseStrings) UnmarshalJSON(data []byte) error {
	var items []string
	if err := json.Unmarshal(data, &items); err == nil {
		*l = items
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		*l = nil
		return nil
	}
	var out []string
	for _, part := range recommendationSep.Split(s, -1) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	*l = out
	return nil
}
