package realtime

import (
	"sync"

	"github.com/gridhall/bingo/internal/models"
)

// Config holds configuration for the fan-out service
type Config struct {
	// BufferSize is the per-subscriber channel buffer. A subscriber that
	// falls this far behind is disconnected and must catch up by
	// resubscribing with its last seen version.
	BufferSize int
}

// Subscription is one subscriber's handle on a session's event stream
type Subscription struct {
	sessionID string
	events    chan *models.SessionEvent
	closed    bool // guarded by the service mutex
}

// Events returns the subscriber's ordered event channel. The channel is
// closed when the subscriber is disconnected or the session is torn down.
func (s *Subscription) Events() <-chan *models.SessionEvent {
	return s.events
}

// SessionID returns the session the subscription belongs to
func (s *Subscription) SessionID() string {
	return s.sessionID
}

// service implements the Service interface with an in-process registry
type service struct {
	mu         sync.Mutex
	bufferSize int
	sessions   map[string]map[*Subscription]struct{}
}

// NewService creates a new fan-out service
func NewService(cfg *Config) (*service, error) {
	bufferSize := 64
	if cfg != nil && cfg.BufferSize > 0 {
		bufferSize = cfg.BufferSize
	}

	return &service{
		bufferSize: bufferSize,
		sessions:   make(map[string]map[*Subscription]struct{}),
	}, nil
}

// Subscribe registers a subscriber for a session's event stream
func (s *service) Subscribe(sessionID string) *Subscription {
	sub := &Subscription{
		sessionID: sessionID,
		events:    make(chan *models.SessionEvent, s.bufferSize),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	subs, ok := s.sessions[sessionID]
	if !ok {
		subs = make(map[*Subscription]struct{})
		s.sessions[sessionID] = subs
	}
	subs[sub] = struct{}{}

	return sub
}

// Unsubscribe removes a subscriber and closes its channel
func (s *service) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.drop(sub)
}

// Publish delivers an event to every subscriber of the session. The
// registry lock is held across the whole delivery so concurrent publishers
// cannot interleave events differently for different subscribers.
func (s *service) Publish(sessionID string, event *models.SessionEvent) {
	if event == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for sub := range s.sessions[sessionID] {
		select {
		case sub.events <- event:
		default:
			// Buffer full: disconnect rather than skip or block. Reconnect
			// plus catch-up is the recovery path; per-subscriber reordering
			// never is.
			s.drop(sub)
		}
	}
}

// CloseSession disconnects every subscriber of a session
func (s *service) CloseSession(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for sub := range s.sessions[sessionID] {
		if !sub.closed {
			sub.closed = true
			close(sub.events)
		}
	}
	delete(s.sessions, sessionID)
}

// drop removes a subscription from the registry; callers hold the mutex
func (s *service) drop(sub *Subscription) {
	subs, ok := s.sessions[sub.sessionID]
	if !ok {
		return
	}
	if _, ok := subs[sub]; !ok {
		return
	}

	delete(subs, sub)
	if len(subs) == 0 {
		delete(s.sessions, sub.sessionID)
	}

	if !sub.closed {
		sub.closed = true
		close(sub.events)
	}
}
