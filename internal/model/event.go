package model

// Routing keys of the domain events written to the outbox.
const (
	RoutingKeyComplaintCreated = "complaint.created"
	RoutingKeyStatusUpdated    = "complaint.status.updated"
	RoutingKeyRewardCredited   = "reward.credited"
	RoutingKeyRewardClaimed    = "reward.claimed"
)

type ComplaintCreatedEvent struct {
	ComplaintID string   `json:"complaint_id"`
	Title       string   `json:"title"`
	Type        string   `json:"type"`
	Priority    Priority `json:"priority"`
	Zone        string   `json:"zone"`
	OwnerID     string   `json:"owner_id,omitempty"`
	Timestamp   int64    `json:"timestamp"`
}

type StatusUpdatedEvent struct {
	ComplaintID string          `json:"complaint_id"`
	Title       string          `json:"title"`
	NewStatus   ComplaintStatus `json:"new_status"`
	OwnerID     string          `json:"owner_id,omitempty"`
	Timestamp   int64           `json:"timestamp"`
}

type RewardCreditedEvent struct {
	ComplaintID string `json:"complaint_id"`
	CitizenID   string `json:"citizen_id"`
	Points      int    `json:"points"`
	Balance     int    `json:"balance"`
	Timestamp   int64  `json:"timestamp"`
}

type RewardClaimedEvent struct {
	CitizenID string `json:"citizen_id"`
	Points    int    `json:"points"`
	Balance   int    `json:"balance"`
	Timestamp int64  `json:"timestamp"`
}
