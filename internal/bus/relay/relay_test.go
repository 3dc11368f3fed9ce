package relay

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/HaseMalke174/NoFeds/internal/bus"
)

func startRelay(t *testing.T) string {
	r := New()
	go r.Run()
	srv := httptest.NewServer(r.Router())
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/bus"
}

func TestRelayFanOut(t *testing.T) {
	url := startRelay(t)

	a, err := bus.Dial(url, "replica-a")
	if err != nil {
		t.Fatalf("dial a: %v", err)
	}
	defer a.Close()
	b, err := bus.Dial(url, "replica-b")
	if err != nil {
		t.Fatalf("dial b: %v", err)
	}
	defer b.Close()

	gotA := make(chan bus.Envelope, 4)
	gotB := make(chan bus.Envelope, 4)
	a.Subscribe(func(env bus.Envelope) { gotA <- env })
	b.Subscribe(func(env bus.Envelope) { gotB <- env })

	// Let the relay register both clients before publishing.
	time.Sleep(100 * time.Millisecond)

	if err := a.Publish(bus.Envelope{Type: bus.TypeDataUpdate, Data: []byte(`{"users":[]}`)}); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	select {
	case env := <-gotB:
		if env.Origin != "replica-a" || env.Type != bus.TypeDataUpdate {
			t.Errorf("unexpected envelope: %+v", env)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("replica-b never received the publish")
	}

	select {
	case env := <-gotA:
		t.Errorf("self-origin envelope not filtered: %+v", env)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRelayHealthz(t *testing.T) {
	r := New()
	go r.Run()
	srv := httptest.NewServer(r.Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}
