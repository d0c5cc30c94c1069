package realtime

//go:generate mockgen -package=mocks -destination=mocks/mock_service.go github.com/gridhall/bingo/internal/services/realtime Service

import (
	"github.com/gridhall/bingo/internal/models"
)

// Service defines the interface for per-session event fan-out
type Service interface {
	// Subscribe registers a subscriber for a session's event stream
	Subscribe(sessionID string) *Subscription

	// Unsubscribe removes a subscriber and closes its channel
	Unsubscribe(sub *Subscription)

	// Publish delivers an event to every subscriber of the session. All
	// subscribers observe events in the order Publish was called.
	Publish(sessionID string, event *models.SessionEvent)

	// CloseSession disconnects every subscriber of a session
	CloseSession(sessionID string)
}
