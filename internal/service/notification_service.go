package service

import (
	"context"

	"public-eye-service/internal/model"
	"public-eye-service/internal/repository"
)

type NotificationService struct {
	notificationRepo *repository.NotificationRepository
}

func NewNotificationService(notificationRepo *repository.NotificationRepository) *NotificationService {
	return &NotificationService{notificationRepo: notificationRepo}
}

func (s *NotificationService) GetCitizenNotifications(ctx context.Context, citizenID string) (*model.NotificationListResponse, error) {
	notifications, err := s.notificationRepo.GetByCitizenID(ctx, citizenID)
	if err != nil {
		return nil, err
	}

	if notifications == nil {
		notifications = []model.Notification{}
	}

	return &model.NotificationListResponse{Notifications: notifications}, nil
}
