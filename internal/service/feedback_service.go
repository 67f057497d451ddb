package service

import (
	"context"
	"strings"
	"time"

	"public-eye-service/internal/apperror"
	"public-eye-service/internal/model"
	"public-eye-service/internal/repository"
)

const (
	minRating = 1
	maxRating = 5
)

// FeedbackService accepts one rating per complaint, only after resolution.
type FeedbackService struct {
	complaintRepo *repository.ComplaintRepository
	now           func() time.Time
}

func NewFeedbackService(complaintRepo *repository.ComplaintRepository) *FeedbackService {
	return &FeedbackService{
		complaintRepo: complaintRepo,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// SubmitFeedback attaches the rating without touching status or reward state.
func (s *FeedbackService) SubmitFeedback(ctx context.Context, id string, rating int, comment string) error {
	if rating < minRating || rating > maxRating {
		return apperror.Validation("rating must be between %d and %d", minRating, maxRating)
	}

	return s.complaintRepo.AttachFeedback(ctx, id, model.Feedback{
		Rating:      rating,
		Comment:     strings.TrimSpace(comment),
		SubmittedAt: s.now(),
	})
}
