package model

import (
	"time"
)

type ComplaintStatus string

const (
	StatusPending    ComplaintStatus = "Pending"
	StatusInProgress ComplaintStatus = "In Progress"
	StatusResolved   ComplaintStatus = "Resolved"
)

// ParseStatus accepts the wire values plus "InProgress" as an alias.
func ParseStatus(s string) (ComplaintStatus, bool) {
	switch s {
	case string(StatusPending):
		return StatusPending, true
	case string(StatusInProgress), "InProgress":
		return StatusInProgress, true
	case string(StatusResolved):
		return StatusResolved, true
	}
	return "", false
}

type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
)

const (
	DefaultZone       = "Unknown Zone"
	DefaultDepartment = "General Department"
)

type Location struct {
	Address   string   `json:"address,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Timestamp string   `json:"timestamp,omitempty"`
}

type ProgressEntry struct {
	Status    ComplaintStatus `json:"status"`
	Timestamp time.Time       `json:"timestamp"`
}

type Feedback struct {
	Rating      int       `json:"rating"`
	Comment     string    `json:"comment"`
	SubmittedAt time.Time `json:"submittedAt"`
}

type Complaint struct {
	Seq                 int64           `json:"-"`
	ID                  string          `json:"complaintId"`
	Title               string          `json:"title"`
	Description         string          `json:"description"`
	Type                string          `json:"type"`
	Zone                string          `json:"zone"`
	Department          string          `json:"department"`
	Location            *Location       `json:"location,omitempty"`
	Status              ComplaintStatus `json:"status"`
	Priority            Priority        `json:"priority"`
	EstimatedResolution time.Time       `json:"estimatedResolution"`
	ProgressHistory     []ProgressEntry `json:"progressHistory"`
	Feedback            *Feedback       `json:"feedback,omitempty"`
	RewardGiven         bool            `json:"rewardGiven"`
	OwnerID             *string         `json:"ownerId,omitempty"`
	CreatedAt           time.Time       `json:"createdAt"`
	UpdatedAt           time.Time       `json:"updatedAt"`
}

// ComplaintFilter narrows a complaint listing. Zero values match everything.
type ComplaintFilter struct {
	Status *ComplaintStatus
	Search string
}

type StatusCounts struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	InProgress int `json:"inProgress"`
	Resolved   int `json:"resolved"`
}

// Request/Response DTOs
type CreateComplaintRequest struct {
	Title           string    `json:"title" binding:"required"`
	Description     string    `json:"description" binding:"required"`
	Type            string    `json:"type" binding:"required"`
	Zone            string    `json:"zone"`
	Department      string    `json:"department"`
	Location        *Location `json:"location"`
	OwnerExternalID string    `json:"ownerExternalId"`
	OwnerEmail      string    `json:"ownerEmail"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type FeedbackRequest struct {
	Rating  int    `json:"rating" binding:"required,min=1,max=5"`
	Comment string `json:"comment"`
}
