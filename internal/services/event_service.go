package services

import (
	"sync"
	"time"

	"github.com/DEEKSHA240406/stress-management-sub001/internal/models"
	"github.com/google/uuid"
)

// EventServiceProvider defines the interface for event services.
type EventServiceProvider interface {
	CreateEvent(eventType, level, message, userID string) error
	GetRecentEvents(limit int) ([]models.Event, error)
	PruneOlderThan(cutoff time.Time) int
}

// EventPublisher receives every event as it is recorded.
type EventPublisher interface {
	Publish(event models.Event)
}

// EventService keeps a bounded, in-memory audit log of auth events. When full,
// the oldest event is overwritten.
type EventService struct {
	mu        sync.Mutex
	buf       []models.Event
	start     int
	count     int
	publisher EventPublisher
	now       func() time.Time
}

// NewEventService creates an EventService holding up to capacity events.
func NewEventService(capacity int, publisher EventPublisher) *EventService {
	if capacity < 1 {
		capacity = 1
	}
	return &EventService{
		buf:       make([]models.Event, capacity),
		publisher: publisher,
		now:       time.Now,
	}
}

// CreateEvent records a new event and hands it to the publisher.
func (s *EventService) CreateEvent(eventType, level, message, userID string) error {
	event := models.Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Level:     level,
		Message:   message,
		UserID:    userID,
		CreatedAt: s.now().UTC(),
	}

	s.mu.Lock()
	if s.count < len(s.buf) {
		s.buf[(s.start+s.count)%len(s.buf)] = event
		s.count++
	} else {
		s.buf[s.start] = event
		s.start = (s.start + 1) % len(s.buf)
	}
	s.mu.Unlock()

	if s.publisher != nil {
		s.publisher.Publish(event)
	}
	return nil
}

// GetRecentEvents returns up to limit events, newest first.
func (s *EventService) GetRecentEvents(limit int) ([]models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 || limit > s.count {
		limit = s.count
	}
	events := make([]models.Event, 0, limit)
	for i := s.count - 1; i >= s.count-limit; i-- {
		events = append(events, s.buf[(s.start+i)%len(s.buf)])
	}
	return events, nil
}

// PruneOlderThan drops events created before cutoff and returns how many
// were removed.
func (s *EventService) PruneOlderThan(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for s.count > 0 && s.buf[s.start].CreatedAt.Before(cutoff) {
		s.buf[s.start] = models.Event{}
		s.start = (s.start + 1) % len(s.buf)
		s.count--
		removed++
	}
	return removed
}

// Len returns the number of buffered events.
func (s *EventService) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}
