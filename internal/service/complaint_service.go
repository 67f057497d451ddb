package service

import (
	"context"
	"strings"
	"time"

	"public-eye-service/config"
	"public-eye-service/internal/apperror"
	"public-eye-service/internal/model"
	"public-eye-service/internal/priority"
	"public-eye-service/internal/repository"

	"go.uber.org/zap"
)

type ComplaintService struct {
	complaintRepo *repository.ComplaintRepository
	rewardPoints  int
	logger        *zap.Logger
	now           func() time.Time
}

func NewComplaintService(complaintRepo *repository.ComplaintRepository, cfg config.ComplaintConfig, logger *zap.Logger) *ComplaintService {
	return &ComplaintService{
		complaintRepo: complaintRepo,
		rewardPoints:  cfg.RewardPoints,
		logger:        logger,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Validates and files a new complaint. Priority and estimated resolution are
// derived from the type at creation and never change.
func (s *ComplaintService) CreateComplaint(ctx context.Context, req *model.CreateComplaintRequest) (*model.Complaint, error) {
	title := strings.TrimSpace(req.Title)
	description := strings.TrimSpace(req.Description)
	complaintType := strings.TrimSpace(req.Type)

	switch {
	case title == "":
		return nil, apperror.Validation("title is required")
	case description == "":
		return nil, apperror.Validation("description is required")
	case complaintType == "":
		return nil, apperror.Validation("type is required")
	}

	now := s.now()
	p, eta := priority.Classify(complaintType, now)

	complaint := &model.Complaint{
		Title:               title,
		Description:         description,
		Type:                complaintType,
		Zone:                orDefault(req.Zone, model.DefaultZone),
		Department:          orDefault(req.Department, model.DefaultDepartment),
		Location:            req.Location,
		Status:              model.StatusPending,
		Priority:            p,
		EstimatedResolution: eta,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	if owner := strings.TrimSpace(req.OwnerExternalID); owner != "" {
		complaint.OwnerID = &owner
	}
	var email *string
	if e := strings.TrimSpace(req.OwnerEmail); e != "" {
		email = &e
	}

	if err := s.complaintRepo.Create(ctx, complaint, email); err != nil {
		return nil, err
	}
	return complaint, nil
}

func (s *ComplaintService) GetComplaint(ctx context.Context, id string) (*model.Complaint, error) {
	return s.complaintRepo.FindByID(ctx, id)
}

// Lists complaints newest first. An empty status matches every status.
func (s *ComplaintService) ListComplaints(ctx context.Context, status, search string) ([]model.Complaint, error) {
	filter := model.ComplaintFilter{Search: strings.TrimSpace(search)}
	if status != "" {
		st, ok := model.ParseStatus(status)
		if !ok {
			return nil, apperror.Validation("invalid status %q", status)
		}
		filter.Status = &st
	}
	return s.complaintRepo.List(ctx, filter)
}

func (s *ComplaintService) GetStats(ctx context.Context) (*model.StatusCounts, error) {
	return s.complaintRepo.StatusCounts(ctx)
}

// Records a status transition and returns the updated complaint. The first
// transition into Resolved credits the owner.
func (s *ComplaintService) UpdateStatus(ctx context.Context, id, status string) (*model.Complaint, error) {
	st, ok := model.ParseStatus(status)
	if !ok {
		return nil, apperror.Validation("invalid status %q", status)
	}

	change, err := s.complaintRepo.SetStatus(ctx, id, st, s.now(), s.rewardPoints)
	if err != nil {
		return nil, err
	}

	if change.PointsCredited > 0 {
		s.logger.Info("reward credited",
			zap.String("complaint_id", id),
			zap.String("citizen_id", *change.OwnerID),
			zap.Int("points", change.PointsCredited),
			zap.Int("balance", change.OwnerBalance),
		)
	}

	return s.complaintRepo.FindByID(ctx, id)
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return def
}
