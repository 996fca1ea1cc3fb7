package notification

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/renalscan/renalscan-go/internal/logging"
)

const (
	defaultMaxNotifications = 500
	defaultCleanupInterval  = time.Minute
	defaultExpiry           = 24 * time.Hour
	subscriberBuffer        = 16
)

// ServiceConfig controls the notification service behavior.
type ServiceConfig struct {
	MaxNotifications int           // bounded store size, oldest evicted first
	CleanupInterval  time.Duration // expired entry sweep interval
	Expiry           time.Duration // default notification lifetime
}

// DefaultConfig returns the default service configuration.
func DefaultConfig() *ServiceConfig {
	return &ServiceConfig{
		MaxNotifications: defaultMaxNotifications,
		CleanupInterval:  defaultCleanupInterval,
		Expiry:           defaultExpiry,
	}
}

// Service is the in-process notification center. Thread-safe.
type Service struct {
	mu            sync.RWMutex
	config        *ServiceConfig
	notifications []*Notification // newest first
	subscribers   map[<-chan *Notification]chan *Notification
	stopOnce      sync.Once
	stopCh        chan struct{}
	log           *slog.Logger
}

// NewService creates a notification service and starts its cleanup loop.
func NewService(config *ServiceConfig) *Service {
	if config == nil {
		config = DefaultConfig()
	}
	if config.MaxNotifications <= 0 {
		config.MaxNotifications = defaultMaxNotifications
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = defaultCleanupInterval
	}
	if config.Expiry <= 0 {
		config.Expiry = defaultExpiry
	}
	s := &Service{
		config:      config,
		subscribers: make(map[<-chan *Notification]chan *Notification),
		stopCh:      make(chan struct{}),
		log:         logging.ForService("notification"),
	}
	go s.cleanupLoop()
	return s
}

// Create adds a notification to the store and broadcasts it.
func (s *Service) Create(notifType Type, priority Priority, title, message string) (*Notification, error) {
	return s.CreateWithComponent(notifType, priority, title, message, "")
}

// CreateWithComponent adds a notification tagged with its source component.
func (s *Service) CreateWithComponent(notifType Type, priority Priority, title, message, component string) (*Notification, error) {
	n := &Notification{
		ID:        uuid.New().String(),
		Type:      notifType,
		Priority:  priority,
		Status:    StatusUnread,
		Title:     title,
		Message:   message,
		Component: component,
		Timestamp: time.Now(),
		ExpiresAt: time.Now().Add(s.config.Expiry),
	}
	s.store(n)
	s.broadcast(n)
	return n, nil
}

// Get returns a notification by ID.
func (s *Service) Get(id string) (*Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, n := range s.notifications {
		if n.ID == id {
			return n, nil
		}
	}
	return nil, ErrNotificationNotFound
}

// List returns notifications newest first, narrowed by filter.
func (s *Service) List(filter *FilterOptions) ([]*Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Notification
	for _, n := range s.notifications {
		if n.IsExpired() || !filter.matches(n) {
			continue
		}
		out = append(out, n)
		if filter != nil && filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

// MarkAsRead flips a notification to the read status.
func (s *Service) MarkAsRead(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.notifications {
		if n.ID == id {
			n.Status = StatusRead
			return nil
		}
	}
	return ErrNotificationNotFound
}

// Delete removes a notification from the store.
func (s *Service) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, n := range s.notifications {
		if n.ID == id {
			s.notifications = append(s.notifications[:i], s.notifications[i+1:]...)
			return nil
		}
	}
	return ErrNotificationNotFound
}

// GetUnreadCount returns the number of unread, unexpired notifications.
func (s *Service) GetUnreadCount() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, n := range s.notifications {
		if n.Status == StatusUnread && !n.IsExpired() {
			count++
		}
	}
	return count, nil
}

// Subscribe registers a listener for new notifications. The returned cancel
// function must be called to release the subscription.
func (s *Service) Subscribe() (<-chan *Notification, func()) {
	ch := make(chan *Notification, subscriberBuffer)
	s.mu.Lock()
	s.subscribers[ch] = ch
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subscribers, ch)
			s.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// store inserts newest-first and evicts beyond the bound.
func (s *Service) store(n *Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = append([]*Notification{n}, s.notifications...)
	if len(s.notifications) > s.config.MaxNotifications {
		s.notifications = s.notifications[:s.config.MaxNotifications]
	}
}

// broadcast delivers to subscribers without blocking; a slow subscriber
// drops the notification rather than stalling the producer.
func (s *Service) broadcast(n *Notification) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subscribers {
		select {
		case ch <- n:
		default:
			s.log.Warn("dropping notification for slow subscriber",
				"id", n.ID, "type", string(n.Type))
		}
	}
}

func (s *Service) cleanupLoop() {
	ticker := time.NewTicker(s.config.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.removeExpired()
		}
	}
}

func (s *Service) removeExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.notifications[:0]
	for _, n := range s.notifications {
		if !n.IsExpired() {
			kept = append(kept, n)
		}
	}
	s.notifications = kept
}

// Stop terminates the cleanup loop. Subscribers are not closed; callers
// cancel their own subscriptions.
func (s *Service) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}
