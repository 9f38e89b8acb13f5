package openai

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/urbanbuzz/explorer/internal/core/domain"
)

const advisoryPrompt = `For location at coordinates %v, %v (%s), determine:
1. Is Street View imagery likely available here? (urban areas usually have it)
2. What type of images would be available? (buildings, streets, landmarks, etc.)
3. What directions would have the most interesting views?

Return JSON: { "hasStreetView": true/false, "imageTypes": ["type1", "type2"], "bestDirections": ["North", "East"], "description": "brief description" }`

// Advisor implements ports.ImageryAdvisor.
type Advisor struct {
	client *Client
	model  string
}

func NewAdvisor(client *Client, model string) *Advisor {
	return &Advisor{client: client, model: model}
}

type advisoryReply struct {
	HasStreetView  *bool    `json:"hasStreetView"`
	BestDirections []string `json:"bestDirections"`
}

// Advise asks whether a stop has street imagery and which views are best.
// A missing hasStreetView counts as true.
func (a *Advisor) Advise(ctx context.Context, stop domain.PitStop) (domain.ImageryAdvice, error) {
	content, err := a.client.complete(ctx, chatRequest{
		Model: a.model,
		Messages: []chatMessage{{
			Role:    "user",
			Content: fmt.Sprintf(advisoryPrompt, stop.Lat, stop.Lng, stop.Address),
		}},
		MaxTokens: 200,
	})
	if err != nil {
		return domain.DefaultAdvice(), err
	}

	var reply advisoryReply
	if err := json.Unmarshal([]byte(extractJSON(content)), &reply); err != nil {
		return domain.DefaultAdvice(), fmt.Errorf("%w: %v", ErrMalformedReply, err)
	}

	advice := domain.DefaultAdvice()
	if reply.HasStreetView != nil {
		advice.HasStreetView = *reply.HasStreetView
	}
	if reply.BestDirections != nil {
		advice.BestDirections = reply.BestDirections
	}
	return advice, nil
}
