package types

import (
	"strings"
	"time"
)

// Category is the kind of civic problem an issue reports
type Category string

const (
	CategoryPothole     Category = "pothole"
	CategoryStreetlight Category = "streetlight"
	CategoryGarbage     Category = "garbage"
	CategoryWaterLeak   Category = "water_leak"
	CategoryRoad        Category = "road"
	CategorySanitation  Category = "sanitation"
	CategoryDrainage    Category = "drainage"
	CategoryElectricity Category = "electricity"
	CategoryTraffic     Category = "traffic"
	CategoryOther       Category = "other"
)

// Priority is the triage urgency of an issue
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// IsUrgent reports whether the priority warrants urgent wording
func (p Priority) IsUrgent() bool {
	return p == PriorityHigh || p == PriorityCritical
}

// ParsePriorities parses a comma-separated priority list such as "high,critical"
func ParsePriorities(s string) []Priority {
	var out []Priority
	for _, part := range strings.Split(s, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" {
			out = append(out, Priority(part))
		}
	}
	return out
}

// In reports whether p is one of list
func (p Priority) In(list []Priority) bool {
	for _, q := range list {
		if p == q {
			return true
		}
	}
	return false
}

// Status is the triage state of an issue
type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusResolved   Status = "resolved"
	StatusClosed     Status = "closed"
)

// Issue is a citizen-reported civic problem. The posting pipeline only
// reads it.
type Issue struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    Category  `json:"category"`
	Location    string    `json:"location"`
	PhotoURL    string    `json:"photoUrl,omitempty"`
	Status      Status    `json:"status"`
	Priority    Priority  `json:"priority"`
	CreatedAt   time.Time `json:"createdAt"`
}

// HasPhoto reports whether the issue carries a representative image
func (i *Issue) HasPhoto() bool {
	return strings.TrimSpace(i.PhotoURL) != ""
}
