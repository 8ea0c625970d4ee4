package domain

import "time"

// Project represents a single vendor engagement tracked for a client.
// It is intentionally storage-agnostic and used across repository, batch
// and HTTP layers.
type Project struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	ClientID  string     `json:"client_id"`
	VendorID  *string    `json:"vendor_id,omitempty"` // nil until a vendor is assigned
	Status    string     `json:"status"`              // active, completed, archived
	CreatedAt time.Time  `json:"created_at"`
	Deadline  *time.Time `json:"deadline,omitempty"`
	OnTime    *bool      `json:"on_time,omitempty"`
	OnBudget  *bool      `json:"on_budget,omitempty"`
}

// Status constants
const (
	StatusActive    = "active"
	StatusCompleted = "completed"
	StatusArchived  = "archived"
)

// ValidStatus checks if a status is one of the known lifecycle states.
func ValidStatus(status string) bool {
	return status == StatusActive ||
		status == StatusCompleted ||
		status == StatusArchived
}

// statusRank orders lifecycle states; transitions only move to a higher rank.
func statusRank(status string) int {
	switch status {
	case StatusActive:
		return 0
	case StatusCompleted:
		return 1
	case StatusArchived:
		return 2
	default:
		return -1
	}
}

// CanTransition reports whether a project may move from one status to
// another through ordinary application flow. Archived is terminal and
// nothing ever moves backward.
func CanTransition(from, to string) bool {
	fr, tr := statusRank(from), statusRank(to)
	if fr < 0 || tr < 0 {
		return false
	}
	return tr > fr
}
