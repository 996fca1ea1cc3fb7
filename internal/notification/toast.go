package notification

import (
	"time"

	"github.com/google/uuid"
)

// ToastType mirrors the visual style of a toast in the UI.
type ToastType string

const (
	ToastTypeSuccess ToastType = "success"
	ToastTypeError   ToastType = "error"
	ToastTypeWarning ToastType = "warning"
	ToastTypeInfo    ToastType = "info"
)

// Toast is the transient user-facing projection of a notification.
type Toast struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	Type      ToastType `json:"type"`
	Component string    `json:"component,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Duration  int       `json:"duration,omitempty"` // display duration in seconds
}

// toastTypeMapping maps a toast style onto notification type and priority.
func toastTypeMapping(tt ToastType) (Type, Priority) {
	switch tt {
	case ToastTypeError:
		return TypeError, PriorityHigh
	case ToastTypeWarning:
		return TypeWarning, PriorityMedium
	case ToastTypeSuccess:
		return TypeInfo, PriorityLow
	default:
		return TypeInfo, PriorityLow
	}
}

// SendToast emits a toast notification with the default display duration.
func (s *Service) SendToast(message string, tt ToastType, component string) error {
	return s.SendToastWithDuration(message, tt, component, 5)
}

// SendToastWithDuration emits a toast notification with an explicit display
// duration in seconds.
func (s *Service) SendToastWithDuration(message string, tt ToastType, component string, durationSec int) error {
	notifType, priority := toastTypeMapping(tt)
	n := &Notification{
		ID:        uuid.New().String(),
		Type:      notifType,
		Priority:  priority,
		Status:    StatusUnread,
		Title:     string(tt),
		Message:   message,
		Component: component,
		Timestamp: time.Now(),
		ExpiresAt: time.Now().Add(s.config.Expiry),
		Metadata: map[string]any{
			MetadataKeyIsToast: true,
			"toastType":        string(tt),
			"duration":         durationSec,
		},
	}
	s.store(n)
	s.broadcast(n)
	return nil
}

// Toasts returns the stored toast notifications, newest first.
func (s *Service) Toasts(limit int) ([]*Toast, error) {
	all, err := s.List(&FilterOptions{})
	if err != nil {
		return nil, err
	}
	var out []*Toast
	for _, n := range all {
		if !isToastNotification(n) {
			continue
		}
		out = append(out, toastFromNotification(n))
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// AsToast returns the toast projection of n, or nil when n is not a
// toast notification.
func AsToast(n *Notification) *Toast {
	if !isToastNotification(n) {
		return nil
	}
	return toastFromNotification(n)
}

func toastFromNotification(n *Notification) *Toast {
	t := &Toast{
		ID:        n.ID,
		Message:   n.Message,
		Component: n.Component,
		Timestamp: n.Timestamp,
		Type:      ToastTypeInfo,
	}
	if tt, ok := n.Metadata["toastType"].(string); ok {
		t.Type = ToastType(tt)
	}
	if d, ok := n.Metadata["duration"].(int); ok {
		t.Duration = d
	}
	return t
}
