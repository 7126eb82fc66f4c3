package notify

import (
	"time"
)

// Event names pushed to connected clients.
const (
	// Approval workflow events
	EventApprovalRequested = "approval.requested"
	EventApprovalVoteAdded = "approval.vote_added"
	EventApprovalCompleted = "approval.completed"
	EventApprovalExpired   = "approval.expired"

	// Organization events
	EventOrgCreated  = "organization.created"
	EventOrgApproved = "organization.approved"
	EventOrgRejected = "organization.rejected"

	// Key events
	EventKeyGenerated = "key.generated"
	EventKeyRevoked   = "key.revoked"
	EventKeyExpiring  = "key.expiring"

	// Signing events
	EventSigningCompleted = "signing.completed"
	EventSigningFailed    = "signing.failed"

	// User events
	EventUserInvited     = "user.invited"
	EventUserRoleChanged = "user.role_changed"
)

// Event is a notification payload delivered to subscribers.
type Event struct {
	Type       string                 `json:"type"`
	Event      string                 `json:"event"`
	Title      string                 `json:"title"`
	Message    string                 `json:"message"`
	EntityType string                 `json:"entity_type,omitempty"`
	EntityID   string                 `json:"entity_id,omitempty"`
	Data       map[string]interface{} `json:"data,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`

	// Routing. Empty UserID and OrganizationID means broadcast; delivery
	// fan-out is the hub's concern, not the workflow's.
	UserID         string `json:"-"`
	OrganizationID string `json:"-"`
}

// NewEvent builds a standardized notification payload.
func NewEvent(event, title, message, entityType, entityID string, data map[string]interface{}) Event {
	if data == nil {
		data = map[string]interface{}{}
	}
	return Event{
		Type:       "notification",
		Event:      event,
		Title:      title,
		Message:    message,
		EntityType: entityType,
		EntityID:   entityID,
		Data:       data,
		Timestamp:  time.Now().UTC(),
	}
}

// Sink accepts events for delivery. Publishing never blocks the caller and
// never reports delivery failure; a workflow transition that already
// succeeded must not be rolled back by a notification problem.
type Sink interface {
	Publish(e Event)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) Publish(Event) {}
