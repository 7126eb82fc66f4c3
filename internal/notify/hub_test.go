package notify

import (
	"testing"
)

func recv(t *testing.T, sub *Subscriber) *Event {
	t.Helper()
	select {
	case e := <-sub.C:
		return &e
	default:
		return nil
	}
}

func TestHubBroadcast(t *testing.T) {
	hub := NewHub()
	a := hub.Subscribe("alice", "")
	b := hub.Subscribe("bob", "")
	defer a.Close()
	defer b.Close()

	hub.Publish(NewEvent(EventKeyExpiring, "Key Expiring", "key-1 expires soon", "pkcs11_key", "key-1", nil))

	for _, sub := range []*Subscriber{a, b} {
		e := recv(t, sub)
		if e == nil {
			t.Fatalf("subscriber %s missed the broadcast", sub.UserID)
		}
		if e.Event != EventKeyExpiring {
			t.Errorf("event = %s, want %s", e.Event, EventKeyExpiring)
		}
	}
}

func TestHubUserRouting(t *testing.T) {
	hub := NewHub()
	a := hub.Subscribe("alice", "")
	b := hub.Subscribe("bob", "")
	defer a.Close()
	defer b.Close()

	ev := NewEvent(EventUserInvited, "Invited", "welcome", "user", "alice", nil)
	ev.UserID = "alice"
	hub.Publish(ev)

	if recv(t, a) == nil {
		t.Error("alice missed her event")
	}
	if recv(t, b) != nil {
		t.Error("bob received alice's event")
	}
}

func TestHubOrganizationRouting(t *testing.T) {
	hub := NewHub()
	inOrg := hub.Subscribe("alice", "org-1")
	outside := hub.Subscribe("bob", "org-2")
	defer inOrg.Close()
	defer outside.Close()

	ev := NewEvent(EventApprovalRequested, "Approval Requested", "2 of 3 needed", "approval_request", "req-1", nil)
	ev.OrganizationID = "org-1"
	hub.Publish(ev)

	if recv(t, inOrg) == nil {
		t.Error("org member missed the event")
	}
	if recv(t, outside) != nil {
		t.Error("non-member received an org-scoped event")
	}
}

func TestHubSubscribeOrganizationLater(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe("alice", "")
	defer sub.Close()

	hub.SubscribeOrganization(sub, "org-9")

	ev := NewEvent(EventOrgApproved, "Approved", "org-9 approved", "organization", "org-9", nil)
	ev.OrganizationID = "org-9"
	hub.Publish(ev)

	if recv(t, sub) == nil {
		t.Error("late organization subscription did not take effect")
	}
}

func TestHubSlowConsumerDropped(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe("alice", "")
	defer sub.Close()

	for i := 0; i < subscriberBuffer+5; i++ {
		hub.Publish(NewEvent(EventSigningCompleted, "Signed", "artifact signed", "signing_config", "cfg-1", nil))
	}

	// The buffer's worth is retained, the overflow is gone, and Publish
	// never blocked to get here.
	drained := 0
	for recv(t, sub) != nil {
		drained++
	}
	if drained != subscriberBuffer {
		t.Errorf("drained %d events, want %d", drained, subscriberBuffer)
	}
}

func TestHubCounts(t *testing.T) {
	hub := NewHub()
	a := hub.Subscribe("alice", "org-1")
	b := hub.Subscribe("bob", "org-1")

	if got := hub.ConnectionCount(); got != 2 {
		t.Errorf("ConnectionCount = %d, want 2", got)
	}
	users, orgs := hub.ChannelCounts()
	if users != 2 || orgs != 1 {
		t.Errorf("ChannelCounts = %d users, %d orgs, want 2 and 1", users, orgs)
	}

	a.Close()
	b.Close()
	if got := hub.ConnectionCount(); got != 0 {
		t.Errorf("ConnectionCount after close = %d, want 0", got)
	}
}
