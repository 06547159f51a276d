package stream

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/amrahmed242/location-mocker/internal/gpx"
	"github.com/amrahmed242/location-mocker/internal/playback"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func receive(t *testing.T, client *Client) []byte {
	t.Helper()
	select {
	case msg := <-client.Send:
		return msg
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("timeout waiting for message on %s", client.SessionID)
	}
	return nil
}

func TestHubBroadcast(t *testing.T) {
	hub := NewHub(nil)
	client := hub.Register("session-1")
	defer hub.Unregister(client)

	hub.Broadcast("session-1", []byte("hello"))
	if msg := receive(t, client); string(msg) != "hello" {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestHubEmitReachesSessionAndCurrent(t *testing.T) {
	hub := NewHub(nil)
	session := hub.Register("session-1")
	defer hub.Unregister(session)
	current := hub.Register(CurrentSession)
	defer hub.Unregister(current)
	other := hub.Register("session-2")
	defer hub.Unregister(other)

	hub.Emit(playback.NewEvent("session-1", 0, gpx.NewPoint(47.1, 8.2).WithElevation(400)))

	for _, c := range []*Client{session, current} {
		var got map[string]any
		if err := json.Unmarshal(receive(t, c), &got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if got["latitude"] != 47.1 || got["longitude"] != 8.2 || got["elevation"] != 400.0 {
			t.Fatalf("unexpected payload %v", got)
		}
		if _, ok := got["time"]; ok {
			t.Fatalf("unexpected time key in %v", got)
		}
	}

	select {
	case msg := <-other.Send:
		t.Fatalf("unrelated session received %q", msg)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestHubDropsWhenClientIsFull(t *testing.T) {
	hub := NewHub(nil)
	client := hub.Register("session-1")
	defer hub.Unregister(client)

	for i := 0; i < cap(client.Send)+10; i++ {
		hub.Broadcast("session-1", []byte("x"))
	}
	if len(client.Send) != cap(client.Send) {
		t.Fatalf("expected full buffer, got %d", len(client.Send))
	}
}

func TestHubHelpers(t *testing.T) {
	ch := redisChannel("abc")
	if ch != "mocker:abc:events" {
		t.Fatalf("unexpected channel %s", ch)
	}
	if sessionIDFromChannel(ch) != "abc" {
		t.Fatalf("unexpected session id")
	}
	if sessionIDFromChannel("bad") != "" {
		t.Fatalf("expected empty session id")
	}
	if sessionIDFromChannel("tracking:abc:broadcast") != "" {
		t.Fatalf("expected foreign channel to be ignored")
	}
}

func TestUnregisterCloses(t *testing.T) {
	hub := NewHub(nil)
	client := hub.Register("session-2")
	hub.Unregister(client)
	_, ok := <-client.Send
	if ok {
		t.Fatalf("expected channel closed")
	}
}

func TestHubRedisBroadcastAndSubscribe(t *testing.T) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()

	hub := NewHub(client)
	defer hub.Close()
	ws := hub.Register("session-redis")
	defer hub.Unregister(ws)

	hub.Broadcast("session-redis", []byte("ping"))
	if msg := receive(t, ws); string(msg) != "ping" {
		t.Fatalf("unexpected message %q", msg)
	}

	// another instance publishing on the same channel
	if err := client.Publish(context.Background(), "mocker:session-redis:events", "pong").Err(); err != nil {
		t.Fatalf("publish error: %v", err)
	}
	if msg := receive(t, ws); string(msg) != "pong" {
		t.Fatalf("unexpected message from redis %q", msg)
	}
}

func TestHubRedisUnavailableDeliversLocally(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	server.Close()
	defer client.Close()

	hub := NewHub(client)
	if hub.redis != nil {
		t.Fatalf("expected local-only hub")
	}
	node := hub.Register("session-bad")
	defer hub.Unregister(node)

	hub.Broadcast("session-bad", []byte("ping"))
	if msg := receive(t, node); string(msg) != "ping" {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestHubPublishErrorFallsBack(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr(), MaxRetries: -1})
	defer client.Close()

	hub := NewHub(client)
	defer hub.Close()
	node := hub.Register("session-1")
	defer hub.Unregister(node)

	server.Close()
	hub.Broadcast("session-1", []byte("ping"))
	if msg := receive(t, node); string(msg) != "ping" {
		t.Fatalf("unexpected message %q", msg)
	}
}
