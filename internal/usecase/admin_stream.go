package usecase

import (
	"context"
	"fmt"

	"github.com/V4T54L/checkstream/internal/domain"
)

// AdminStreamUseCase provides use cases for stream administration.
type AdminStreamUseCase struct {
	repo domain.StreamAdminRepository
}

// NewAdminStreamUseCase creates a new AdminStreamUseCase.
func NewAdminStreamUseCase(repo domain.StreamAdminRepository) *AdminStreamUseCase {
	return &AdminStreamUseCase{repo: repo}
}

func (uc *AdminStreamUseCase) Info(ctx context.Context, streamID string) (*domain.StreamInfo, error) {
	if streamID == "" {
		return nil, domain.ErrInvalidStreamID
	}
	return uc.repo.Info(ctx, streamID)
}

func (uc *AdminStreamUseCase) Trim(ctx context.Context, streamID string, maxLen int64) error {
	if streamID == "" {
		return domain.ErrInvalidStreamID
	}
	if maxLen <= 0 {
		return fmt.Errorf("%w, got %d", domain.ErrInvalidMaxLen, maxLen)
	}
	return uc.repo.Trim(ctx, streamID, maxLen)
}
