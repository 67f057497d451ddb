package model

import (
	"time"

	"github.com/google/uuid"
)

type Citizen struct {
	ID         int64     `json:"-"`
	ExternalID string    `json:"externalId"`
	Email      *string   `json:"email,omitempty"`
	Points     int       `json:"points"`
	CreatedAt  time.Time `json:"createdAt"`
}

type Notification struct {
	ID          uuid.UUID `json:"id"`
	CitizenID   string    `json:"citizenId"`
	ComplaintID *string   `json:"complaintId,omitempty"`
	Title       string    `json:"title"`
	Message     string    `json:"message"`
	CreatedAt   time.Time `json:"createdAt"`
}

type ClaimRequest struct {
	CitizenID string `json:"citizenId" binding:"required"`
	Points    int    `json:"points" binding:"required"`
}

type PointsResponse struct {
	Points int `json:"points"`
}

type ClaimResponse struct {
	Message         string `json:"message"`
	RemainingPoints int    `json:"remainingPoints"`
}

type NotificationListResponse struct {
	Notifications []Notification `json:"notifications"`
}
