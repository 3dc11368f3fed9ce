package bus

import (
	"encoding/json"
	"testing"
	"time"
)

func TestHubDeliversToOthersOnly(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	a := hub.Connect("replica-a")
	b := hub.Connect("replica-b")

	gotA := make(chan Envelope, 4)
	gotB := make(chan Envelope, 4)
	a.Subscribe(func(env Envelope) { gotA <- env })
	b.Subscribe(func(env Envelope) { gotB <- env })

	payload, _ := json.Marshal(map[string]string{"k": "v"})
	if err := a.Publish(Envelope{Type: TypeDataUpdate, Data: payload}); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	select {
	case env := <-gotB:
		if env.Type != TypeDataUpdate {
			t.Errorf("expected type %q, got %q", TypeDataUpdate, env.Type)
		}
		if env.Origin != "replica-a" {
			t.Errorf("expected origin replica-a, got %q", env.Origin)
		}
	case <-time.After(time.Second):
		t.Fatal("replica-b never received the publish")
	}

	select {
	case env := <-gotA:
		t.Errorf("publisher received its own publication back: %+v", env)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHubCloseIsIdempotentNoOp(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	a := hub.Connect("replica-a")
	b := hub.Connect("replica-b")

	gotB := make(chan Envelope, 1)
	b.Subscribe(func(env Envelope) { gotB <- env })

	if err := a.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Errorf("second Close should be a no-op, got %v", err)
	}

	// Publish and Subscribe after close are silent no-ops.
	if err := a.Publish(Envelope{Type: TypeDataUpdate}); err != nil {
		t.Errorf("Publish after Close should be a no-op, got %v", err)
	}
	a.Subscribe(func(Envelope) { t.Error("subscription registered after Close") })

	select {
	case env := <-gotB:
		t.Errorf("closed connection still publishing: %+v", env)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHubMultipleSubscribers(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	a := hub.Connect("replica-a")
	b := hub.Connect("replica-b")

	got := make(chan string, 4)
	b.Subscribe(func(env Envelope) { got <- "first" })
	b.Subscribe(func(env Envelope) { got <- "second" })

	a.Publish(Envelope{Type: TypeKeyUpdate, Key: "users"})

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case s := <-got:
			seen[s] = true
		case <-time.After(time.Second):
			t.Fatalf("only %d of 2 handlers fired", i)
		}
	}
	if !seen["first"] || !seen["second"] {
		t.Errorf("expected both handlers to fire, got %v", seen)
	}
}
