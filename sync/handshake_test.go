package sync

import (
	"testing"
	"time"
)

func TestHandler_CheckHello_FourCloseConditions(t *testing.T) {
	clock := NewManualClock(time.Unix(0, 0))
	h, _, _ := newTestHandler(t, "self", 1000, clock)
	h.selfVersion, h.selfEnv, h.selfUserID = "1.0", "prod", "user-1"

	cases := []struct {
		name    string
		m       *Message
		wantErr error
	}{
		{"self loop", helloMessage("self", "1.0", "prod", "user-1"), errSelfLoop},
		{"version mismatch", helloMessage("bravo", "2.0", "prod", "user-1"), errVersionMismatch},
		{"env mismatch", helloMessage("bravo", "1.0", "staging", "user-1"), errEnvMismatch},
		{"userId mismatch", helloMessage("bravo", "1.0", "prod", "user-2"), errUserMismatch},
		{"valid", helloMessage("bravo", "1.0", "prod", "user-1"), nil},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := h.checkHello(c.m)
			if c.wantErr == nil {
				if err != nil {
					t.Fatalf("checkHello() = %v, want nil", err)
				}
				return
			}
			se, ok := err.(*Error)
			if !ok {
				t.Fatalf("checkHello() = %v (%T), want *Error", err, err)
			}
			if se.Unwrap() != c.wantErr {
				t.Errorf("underlying err = %v, want %v", se.Unwrap(), c.wantErr)
			}
			if se.Kind != KindIdentity {
				t.Errorf("kind = %v, want KindIdentity", se.Kind)
			}
		})
	}
}

func TestHandler_ReconcileIdentity_RenamesOutboundDialedKey(t *testing.T) {
	clock := NewManualClock(time.Unix(0, 0))
	h, _, _ := newTestHandler(t, "self", 1000, clock)
	h.table.Learn("10.0.0.5:4000", "10.0.0.5:4000")

	c := &conn{dir: outbound, dialedKey: "10.0.0.5:4000"}
	got := h.reconcileIdentity(c, "bravo")

	if got != "bravo" {
		t.Errorf("reconcileIdentity() = %q, want bravo", got)
	}
	if _, ok := h.table.Get("10.0.0.5:4000"); ok {
		t.Error("dialed key should no longer be present after rename")
	}
	p, ok := h.table.Get("bravo")
	if !ok || p.Address != "10.0.0.5:4000" {
		t.Errorf("renamed entry = %+v, ok=%v", p, ok)
	}
}

func TestHandler_ReconcileIdentity_InboundNeverRenames(t *testing.T) {
	clock := NewManualClock(time.Unix(0, 0))
	h, _, _ := newTestHandler(t, "self", 1000, clock)

	c := &conn{dir: inbound}
	got := h.reconcileIdentity(c, "bravo")

	if got != "bravo" {
		t.Errorf("reconcileIdentity() = %q, want bravo", got)
	}
	p, ok := h.table.Get("bravo")
	if !ok {
		t.Fatal("inbound hello should still learn the advertised source")
	}
	if !p.Alive(clock.Now()) {
		t.Error("reconcileIdentity should touch the peer so it starts alive")
	}
}
