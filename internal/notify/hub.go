package notify

import (
	"sync"
)

// subscriberBuffer is the per-subscriber channel depth. A subscriber whose
// buffer is full misses the event rather than blocking publishers.
const subscriberBuffer = 32

// Subscriber is one registered event consumer.
type Subscriber struct {
	UserID         string
	OrganizationID string
	C              chan Event

	hub *Hub
}

// Close unregisters the subscriber and drains its channel.
func (s *Subscriber) Close() {
	s.hub.unsubscribe(s)
}

// Hub fans events out to subscribers: to a specific user, to everyone in an
// organization, or to all connections. Transport (websocket write loops) is
// layered on top of the channels by the handlers package.
type Hub struct {
	mu sync.RWMutex

	all    map[*Subscriber]struct{}
	byUser map[string]map[*Subscriber]struct{}
	byOrg  map[string]map[*Subscriber]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		all:    make(map[*Subscriber]struct{}),
		byUser: make(map[string]map[*Subscriber]struct{}),
		byOrg:  make(map[string]map[*Subscriber]struct{}),
	}
}

// Subscribe registers a consumer. userID and organizationID are optional
// routing keys; a subscriber always receives broadcasts.
func (h *Hub) Subscribe(userID, organizationID string) *Subscriber {
	sub := &Subscriber{
		UserID:         userID,
		OrganizationID: organizationID,
		C:              make(chan Event, subscriberBuffer),
		hub:            h,
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.all[sub] = struct{}{}
	if userID != "" {
		if h.byUser[userID] == nil {
			h.byUser[userID] = make(map[*Subscriber]struct{})
		}
		h.byUser[userID][sub] = struct{}{}
	}
	if organizationID != "" {
		h.addToOrg(sub, organizationID)
	}
	return sub
}

// SubscribeOrganization adds an extra organization channel to an existing
// subscriber (client-requested subscription change).
func (h *Hub) SubscribeOrganization(sub *Subscriber, organizationID string) {
	if organizationID == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.addToOrg(sub, organizationID)
}

func (h *Hub) addToOrg(sub *Subscriber, organizationID string) {
	if h.byOrg[organizationID] == nil {
		h.byOrg[organizationID] = make(map[*Subscriber]struct{})
	}
	h.byOrg[organizationID][sub] = struct{}{}
}

func (h *Hub) unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.all, sub)
	for _, set := range h.byUser {
		delete(set, sub)
	}
	for _, set := range h.byOrg {
		delete(set, sub)
	}
	if sub.UserID != "" && len(h.byUser[sub.UserID]) == 0 {
		delete(h.byUser, sub.UserID)
	}
	if sub.OrganizationID != "" && len(h.byOrg[sub.OrganizationID]) == 0 {
		delete(h.byOrg, sub.OrganizationID)
	}
}

// Publish routes the event. An event with a UserID goes to that user's
// subscribers, one with an OrganizationID to the organization's, and one
// with neither to every subscriber. Full subscriber buffers are skipped.
func (h *Hub) Publish(e Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	switch {
	case e.UserID != "":
		h.send(h.byUser[e.UserID], e)
	case e.OrganizationID != "":
		h.send(h.byOrg[e.OrganizationID], e)
	default:
		h.send(h.all, e)
	}
}

func (h *Hub) send(subs map[*Subscriber]struct{}, e Event) {
	for sub := range subs {
		select {
		case sub.C <- e:
		default:
			// Slow consumer; drop rather than block the workflow.
		}
	}
}

// ConnectionCount returns the number of active subscribers.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.all)
}

// ChannelCounts returns the number of distinct user and organization channels.
func (h *Hub) ChannelCounts() (users, orgs int) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byUser), len(h.byOrg)
}

var _ Sink = (*Hub)(nil)
