package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/urbanbuzz/explorer/internal/core/domain"
	"github.com/urbanbuzz/explorer/internal/core/ports"
)

const fallbackDescriptionLen = 200

const visionInstructions = `Provide a comprehensive analysis focusing on:

1. CURVES: Identify all curves, turns, bends in the road/path. Describe their sharpness, radius, visibility.
2. ACCESSIBILITY: Evaluate accessibility features - ramps, curb cuts, sidewalks, crosswalks, wheelchair accessibility, pedestrian infrastructure.
3. SAFETY: Assess safety factors - traffic patterns, visibility, lighting, signage, pedestrian safety, potential hazards.
4. INFRASTRUCTURE: Note infrastructure elements - road conditions, sidewalks, bike lanes, public transit access, street furniture.
5. HAZARDS: Identify any potential hazards - obstacles, blind spots, dangerous intersections, construction.
6. FEATURES: List key visual features - buildings, landmarks, signs, vehicles, people, vegetation.

Return as JSON with this exact structure:
{
  "description": "2-3 sentence overview",
  "curves": ["curve description 1", "curve description 2"],
  "accessibility": ["accessibility feature 1", "accessibility feature 2"],
  "safety": ["safety observation 1", "safety observation 2"],
  "infrastructure": ["infrastructure element 1", "infrastructure element 2"],
  "hazards": ["hazard 1", "hazard 2"],
  "features": ["feature 1", "feature 2"],
  "overall_score": "good/fair/poor"
}`

// Vision implements ports.VisionAnalyzer.
type Vision struct {
	client *Client
	model  string
}

func NewVision(client *Client, model string) *Vision {
	return &Vision{client: client, model: model}
}

// Analyze sends the image with its location context. An answer that is not
// JSON becomes a description-only analysis.
func (v *Vision) Analyze(ctx context.Context, req ports.VisionRequest) (*domain.ImageAnalysis, error) {
	contentType := req.ContentType
	if contentType == "" {
		contentType = "image/jpeg"
	}
	dataURL := "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(req.Image)

	content, err := v.client.complete(ctx, chatRequest{
		Model: v.model,
		Messages: []chatMessage{{
			Role: "user",
			Content: []contentPart{
				{Type: "text", Text: visionPrompt(req)},
				{Type: "image_url", ImageURL: &imageURL{URL: dataURL}},
			},
		}},
		MaxTokens: 2000,
	})
	if err != nil {
		return nil, err
	}

	var analysis domain.ImageAnalysis
	if err := json.Unmarshal([]byte(extractJSON(content)), &analysis); err != nil {
		return &domain.ImageAnalysis{Description: truncate(content, fallbackDescriptionLen)}, nil
	}
	return &analysis, nil
}

func visionPrompt(req ports.VisionRequest) string {
	var ctx strings.Builder
	if req.Address != "" {
		fmt.Fprintf(&ctx, "Location: %s\n", req.Address)
	}
	if req.Coordinates != (domain.Coordinate{}) {
		fmt.Fprintf(&ctx, "Coordinates: %v, %v\n", req.Coordinates.Lat, req.Coordinates.Lng)
	}
	if req.RouteInfo.Origin != "" || req.RouteInfo.Destination != "" {
		fmt.Fprintf(&ctx, "Route: %s to %s\n", req.RouteInfo.Origin, req.RouteInfo.Destination)
	}
	if req.Direction != "" {
		fmt.Fprintf(&ctx, "View Direction: %s\n", req.Direction)
	}

	if ctx.Len() == 0 {
		return "Analyze this Street View image. " + visionInstructions
	}
	return "Context:\n" + ctx.String() + "\n\nAnalyze this Street View image from the location above. " + visionInstructions
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
