// Package priority derives a complaint's priority and estimated resolution
// time from its type.
package priority

import (
	"time"

	"public-eye-service/internal/model"
)

const day = 24 * time.Hour

// Type matching is case-sensitive; unlisted types are Medium.
var byType = map[string]model.Priority{
	"potholes":     model.PriorityHigh,
	"waterlogging": model.PriorityHigh,
	"garbage":      model.PriorityLow,
}

var slaOffset = map[model.Priority]time.Duration{
	model.PriorityHigh:   1 * day,
	model.PriorityMedium: 3 * day,
	model.PriorityLow:    5 * day,
}

// Classify returns the priority for complaintType and the estimated
// resolution time measured from createdAt.
func Classify(complaintType string, createdAt time.Time) (model.Priority, time.Time) {
	p, ok := byType[complaintType]
	if !ok {
		p = model.PriorityMedium
	}
	return p, createdAt.Add(slaOffset[p])
}

// SLA returns the offset added to the creation time for p.
func SLA(p model.Priority) time.Duration {
	return slaOffset[p]
}
