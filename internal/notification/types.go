// Package notification provides the in-process notification center for the
// dashboard: typed notifications with a bounded in-memory store, plus
// short-lived toasts surfaced to the user interface.
package notification

import (
	"time"

	"github.com/renalscan/renalscan-go/internal/errors"
)

// Type categorizes a notification.
type Type string

const (
	// TypeError indicates a system error notification
	TypeError Type = "error"
	// TypeWarning indicates a warning notification
	TypeWarning Type = "warning"
	// TypeInfo indicates an informational notification
	TypeInfo Type = "info"
	// TypeDetection indicates a completed detection notification
	TypeDetection Type = "detection"
	// TypeSystem indicates a system status notification
	TypeSystem Type = "system"
)

// Sentinel errors for notification operations
var (
	ErrNotificationNotFound = errors.Newf("notification not found").Component("notification").Category(errors.CategoryNotFound).Build()
)

// Priority represents the urgency level of a notification
type Priority string

const (
	// PriorityHigh indicates important but not urgent
	PriorityHigh Priority = "high"
	// PriorityMedium indicates normal priority
	PriorityMedium Priority = "medium"
	// PriorityLow indicates low priority/informational
	PriorityLow Priority = "low"
)

// Status represents the read state of a notification
type Status string

const (
	// StatusUnread indicates the notification hasn't been seen
	StatusUnread Status = "unread"
	// StatusRead indicates the notification has been seen
	StatusRead Status = "read"
)

// MetadataKeyIsToast identifies toast notifications in metadata
const MetadataKeyIsToast = "isToast"

// Notification represents a single notification event
type Notification struct {
	ID        string         `json:"id"`
	Type      Type           `json:"type"`
	Priority  Priority       `json:"priority"`
	Status    Status         `json:"status"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Component string         `json:"component,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	ExpiresAt time.Time      `json:"expiresAt,omitempty"`
}

// IsExpired reports whether the notification has outlived its expiry.
func (n *Notification) IsExpired() bool {
	return !n.ExpiresAt.IsZero() && time.Now().After(n.ExpiresAt)
}

// isToastNotification checks if a notification is a toast notification
// by examining its metadata for the isToast flag
func isToastNotification(n *Notification) bool {
	if n == nil || n.Metadata == nil {
		return false
	}
	isToast, ok := n.Metadata[MetadataKeyIsToast].(bool)
	return ok && isToast
}

// FilterOptions narrows List results.
type FilterOptions struct {
	Types  []Type
	Status []Status
	Limit  int
}

func (f *FilterOptions) matches(n *Notification) bool {
	if f == nil {
		return true
	}
	if len(f.Types) > 0 {
		ok := false
		for _, t := range f.Types {
			if n.Type == t {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if len(f.Status) > 0 {
		ok := false
		for _, s := range f.Status {
			if n.Status == s {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}
