package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"quant_go/internal/domain"
	"quant_go/internal/infra"

	"github.com/gorilla/websocket"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testClientConfig(endpoints ...Endpoint) Config {
	return Config{
		Symbol:            "BTC-USDT-SWAP",
		Endpoints:         endpoints,
		HandshakeTimeout:  time.Second,
		ReadTimeout:       time.Second,
		PingInterval:      100 * time.Millisecond,
		BackoffBase:       5 * time.Millisecond,
		BackoffMax:        20 * time.Millisecond,
		MaxPerEndpoint:    2,
		MaxProtocolErrors: 3,
	}
}

// depthServer upgrades connections and streams the given frames.
func depthServer(t *testing.T, frames []string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		// Hold the connection open until the client goes away.
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func wsURL(s *httptest.Server) string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

func TestClient_ReceivesDepthUpdates(t *testing.T) {
	srv := depthServer(t, []string{
		`{"bids": [["100.00", "1.5"]], "asks": [["100.02", "0.5"]], "sequence": 1}`,
		`{"bids": [["100.01", "1.0"]], "asks": [["100.03", "0.5"]], "sequence": 2}`,
	})
	defer srv.Close()

	var received atomic.Int32
	metrics := &infra.Metrics{}
	c := NewClient(
		testClientConfig(Endpoint{Name: "test", URL: wsURL(srv), Format: "generic"}),
		func(u *domain.DepthUpdate) { received.Add(1) },
		metrics, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	deadline := time.After(3 * time.Second)
	for received.Load() < 2 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for depth updates")
		case <-time.After(10 * time.Millisecond):
		}
	}

	if c.State() != domain.StateConnected {
		t.Errorf("state = %v, want connected", c.State())
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v on cancellation, want nil", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not honor cancellation")
	}

	if c.State() != domain.StateShuttingDown {
		t.Errorf("final state = %v, want shutting_down", c.State())
	}
}

func TestClient_ReconnectsAfterDrop(t *testing.T) {
	// The first connection is closed by the server right after one frame;
	// the client must back off, reconnect and keep delivering updates.
	var conns atomic.Int32
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		n := conns.Add(1)
		frame := fmt.Sprintf(`{"bids": [["100.00", "1"]], "asks": [["100.02", "1"]], "sequence": %d}`, n)
		if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
			return
		}
		if n == 1 {
			return
		}
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	var received atomic.Int32
	metrics := &infra.Metrics{}
	c := NewClient(
		testClientConfig(Endpoint{Name: "droppy", URL: wsURL(srv), Format: "generic"}),
		func(*domain.DepthUpdate) { received.Add(1) },
		metrics, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	deadline := time.After(3 * time.Second)
	for received.Load() < 2 {
		select {
		case <-deadline:
			t.Fatalf("timed out: %d updates over %d connections", received.Load(), conns.Load())
		case <-time.After(10 * time.Millisecond):
		}
	}

	if conns.Load() < 2 {
		t.Errorf("connections = %d, want a second one after the drop", conns.Load())
	}
	if metrics.Snapshot().Reconnects < 1 {
		t.Errorf("reconnects = %d, want at least 1", metrics.Snapshot().Reconnects)
	}
	if c.State() != domain.StateConnected {
		t.Errorf("state = %v, want connected after recovery", c.State())
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v on cancellation, want nil", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not honor cancellation")
	}
}

func TestClient_EndpointFallbackRotation(t *testing.T) {
	// Both endpoints refuse connections; after MaxPerEndpoint failures the
	// client advances, wrapping around the list.
	cfg := testClientConfig(
		Endpoint{Name: "dead-a", URL: "ws://127.0.0.1:1", Format: "generic"},
		Endpoint{Name: "dead-b", URL: "ws://127.0.0.1:1", Format: "generic"},
	)
	metrics := &infra.Metrics{}
	c := NewClient(cfg, func(*domain.DepthUpdate) {}, metrics, discardLogger())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	c.Run(ctx)

	snap := metrics.Snapshot()
	if snap.EndpointSwitches < 2 {
		t.Errorf("endpoint switches = %d, want at least one full wrap", snap.EndpointSwitches)
	}
	if snap.Reconnects < 4 {
		t.Errorf("reconnects = %d, want several attempts", snap.Reconnects)
	}
}

func TestClient_MalformedFramesFatalPastThreshold(t *testing.T) {
	garbage := []string{
		`{"bids": [["bad", "x"]], "asks": []}`,
		`{"bids": [["bad", "x"]], "asks": []}`,
		`{"bids": [["bad", "x"]], "asks": []}`,
	}
	srv := depthServer(t, garbage)
	defer srv.Close()

	metrics := &infra.Metrics{}
	c := NewClient(
		testClientConfig(Endpoint{Name: "garbage", URL: wsURL(srv), Format: "generic"}),
		func(*domain.DepthUpdate) {}, metrics, discardLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	err := c.Run(ctx)
	if !errors.Is(err, domain.ErrProtocolFailure) {
		t.Fatalf("Run = %v, want fatal protocol failure", err)
	}
	if metrics.Snapshot().DroppedMalformed != 3 {
		t.Errorf("malformed drops = %d, want 3", metrics.Snapshot().DroppedMalformed)
	}
}

func TestClient_ValidFrameResetsProtocolCounter(t *testing.T) {
	frames := []string{
		`{"bids": [["bad", "x"]], "asks": []}`,
		`{"bids": [["bad", "x"]], "asks": []}`,
		`{"bids": [["100.00", "1"]], "asks": [["100.02", "1"]], "sequence": 1}`,
		`{"bids": [["bad", "x"]], "asks": []}`,
		`{"bids": [["bad", "x"]], "asks": []}`,
	}
	srv := depthServer(t, frames)
	defer srv.Close()

	var received atomic.Int32
	c := NewClient(
		testClientConfig(Endpoint{Name: "flaky", URL: wsURL(srv), Format: "generic"}),
		func(*domain.DepthUpdate) { received.Add(1) },
		&infra.Metrics{}, discardLogger())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	// Five garbage frames with a valid one in the middle never reach the
	// threshold of three consecutive failures, so the run ends on the
	// cancelled context, not a protocol failure.
	if err := c.Run(ctx); err != nil {
		t.Fatalf("Run = %v, want nil (no fatal failure)", err)
	}
	if received.Load() != 1 {
		t.Errorf("received = %d valid updates, want 1", received.Load())
	}
}

func TestClient_IgnoresUnrecognizedFrames(t *testing.T) {
	frames := []string{
		`{"event": "info", "message": "hello"}`,
		`{"bids": [["100.00", "1"]], "asks": [["100.02", "1"]], "sequence": 1}`,
	}
	srv := depthServer(t, frames)
	defer srv.Close()

	var received atomic.Int32
	metrics := &infra.Metrics{}
	c := NewClient(
		testClientConfig(Endpoint{Name: "chatty", URL: wsURL(srv), Format: "generic"}),
		func(*domain.DepthUpdate) { received.Add(1) },
		metrics, discardLogger())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	c.Run(ctx)

	if received.Load() != 1 {
		t.Errorf("received = %d, want 1", received.Load())
	}
	if metrics.Snapshot().DroppedMalformed != 0 {
		t.Error("unrecognized frames must not count as malformed")
	}
}

func TestClient_SendsSubscription(t *testing.T) {
	subscribed := make(chan string, 1)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.SetReadDeadline(time.Now().Add(time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		select {
		case subscribed <- string(msg):
		default:
		}
	}))
	defer srv.Close()

	c := NewClient(
		testClientConfig(Endpoint{Name: "okx", URL: wsURL(srv), Format: "okx"}),
		func(*domain.DepthUpdate) {}, &infra.Metrics{}, discardLogger())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	go c.Run(ctx)

	select {
	case msg := <-subscribed:
		if !strings.Contains(msg, `"channel":"books"`) || !strings.Contains(msg, "BTC-USDT-SWAP") {
			t.Errorf("unexpected subscription payload: %s", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no subscription message received")
	}
}
