package service

import (
	"context"
	"strings"
	"time"

	"public-eye-service/internal/apperror"
	"public-eye-service/internal/repository"
)

type RewardService struct {
	citizenRepo *repository.CitizenRepository
	now         func() time.Time
}

func NewRewardService(citizenRepo *repository.CitizenRepository) *RewardService {
	return &RewardService{
		citizenRepo: citizenRepo,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// GetPoints returns the citizen's balance; unknown citizens have 0.
func (s *RewardService) GetPoints(ctx context.Context, citizenID string) (int, error) {
	return s.citizenRepo.Balance(ctx, citizenID)
}

// Claim redeems points and returns the remaining balance.
func (s *RewardService) Claim(ctx context.Context, citizenID string, points int) (int, error) {
	citizenID = strings.TrimSpace(citizenID)
	if citizenID == "" {
		return 0, apperror.Validation("citizenId is required")
	}
	if points <= 0 {
		return 0, apperror.Validation("points must be positive")
	}
	return s.citizenRepo.Claim(ctx, citizenID, points, s.now())
}
