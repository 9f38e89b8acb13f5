package usecases

import (
	"context"
	"fmt"
	"strings"

	"github.com/urbanbuzz/explorer/internal/core/domain"
	"github.com/urbanbuzz/explorer/internal/core/ports"
)

// AnalysisService runs the vision model over street-level images on demand.
type AnalysisService struct {
	downloader    ports.ImageDownloader
	vision        ports.VisionAnalyzer
	imageryPrefix string
}

// NewAnalysisService creates an AnalysisService that only fetches URLs starting
// with imageryPrefix. vision may be nil when no model is configured.
func NewAnalysisService(downloader ports.ImageDownloader, vision ports.VisionAnalyzer, imageryPrefix string) *AnalysisService {
	return &AnalysisService{downloader: downloader, vision: vision, imageryPrefix: imageryPrefix}
}

// Enabled reports whether a vision model is configured.
func (s *AnalysisService) Enabled() bool {
	return s.vision != nil
}

// AnalyzeImage downloads img and returns the model's reading of it.
func (s *AnalysisService) AnalyzeImage(ctx context.Context, img domain.StreetViewImage) (*domain.ImageAnalysis, error) {
	if s.vision == nil {
		return nil, fmt.Errorf("%w: image analysis is not configured", domain.ErrServiceUnavailable)
	}
	if img.URL == "" {
		return nil, fmt.Errorf("%w: url is required", domain.ErrInvalidInput)
	}
	if s.imageryPrefix != "" && !strings.HasPrefix(img.URL, s.imageryPrefix) {
		return nil, fmt.Errorf("%w: url must point at the imagery service", domain.ErrInvalidInput)
	}

	body, contentType, err := s.downloader.Download(ctx, img.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: download image: %v", domain.ErrServiceUnavailable, err)
	}

	analysis, err := s.vision.Analyze(ctx, ports.VisionRequest{
		Image:       body,
		ContentType: contentType,
		Address:     img.Address,
		Coordinates: img.Coordinates,
		Direction:   img.Direction,
		RouteInfo:   img.RouteInfo,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: vision analysis: %v", domain.ErrServiceUnavailable, err)
	}
	return analysis, nil
}
