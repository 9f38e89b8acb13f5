package ports

import (
	"context"

	"github.com/urbanbuzz/explorer/internal/core/domain"
)

// ExplorationRepository persists exploration summaries.
type ExplorationRepository interface {
	Insert(ctx context.Context, rec *domain.ExplorationRecord) error
	Recent(ctx context.Context, limit int) ([]domain.ExplorationRecord, error)
}
