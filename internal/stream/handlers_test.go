package stream

import (
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/amrahmed242/location-mocker/internal/gpx"
	"github.com/amrahmed242/location-mocker/internal/playback"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
)

// serveHub mounts the stream routes on a real listener and returns its ws base URL.
func serveHub(t *testing.T, hub *Hub) string {
	t.Helper()
	app := fiber.New()
	RegisterRoutes(app.Group("/stream"), hub)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen error: %v", err)
	}
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.Shutdown() })
	return "ws://" + ln.Addr().String() + "/stream/ws/"
}

func dialSession(t *testing.T, base, sessionID string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(base+sessionID, nil)
	if err != nil {
		t.Fatalf("dial error: %v", err)
	}
	return conn
}

func clientCount(hub *Hub, sessionID string) int {
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	return len(hub.clients[sessionID])
}

// waitClients polls until the handler goroutine has (un)registered.
func waitClients(t *testing.T, hub *Hub, sessionID string, want int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for clientCount(hub, sessionID) != want {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d clients on %s, got %d", want, sessionID, clientCount(hub, sessionID))
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func readText(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read error: %v", err)
	}
	return string(msg)
}

func TestStreamHandlersUpgradeRequired(t *testing.T) {
	app := fiber.New()
	RegisterRoutes(app.Group("/stream"), NewHub(nil))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/stream/ws/session-1", nil))
	if err != nil {
		t.Fatalf("request error: %v", err)
	}
	if resp.StatusCode != http.StatusUpgradeRequired {
		t.Fatalf("expected 426 for non-websocket request, got %d", resp.StatusCode)
	}
}

func TestStreamHandlersSessionBroadcast(t *testing.T) {
	hub := NewHub(nil)
	base := serveHub(t, hub)

	conn := dialSession(t, base, "session-1")
	defer conn.Close()
	waitClients(t, hub, "session-1", 1)

	hub.Broadcast("session-2", []byte("other"))
	hub.Broadcast("session-1", []byte("hello"))
	if msg := readText(t, conn); msg != "hello" {
		t.Fatalf("unexpected message %q", msg)
	}

	// client chatter is read and discarded
	if err := conn.WriteMessage(websocket.TextMessage, []byte("client")); err != nil {
		t.Fatalf("write error: %v", err)
	}
	hub.Broadcast("session-1", []byte("still here"))
	if msg := readText(t, conn); msg != "still here" {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestStreamHandlersCurrentReceivesEmits(t *testing.T) {
	hub := NewHub(nil)
	base := serveHub(t, hub)

	conn := dialSession(t, base, CurrentSession)
	defer conn.Close()
	waitClients(t, hub, CurrentSession, 1)

	hub.Emit(playback.NewEvent("run-9", 3, gpx.NewPoint(1.5, 2.5)))
	if msg := readText(t, conn); msg != `{"latitude":1.5,"longitude":2.5}` {
		t.Fatalf("unexpected message %s", msg)
	}
}

func TestStreamHandlersEmitsThroughRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	hub := NewHub(rdb)
	defer hub.Close()
	base := serveHub(t, hub)

	conn := dialSession(t, base, "run-7")
	defer conn.Close()
	waitClients(t, hub, "run-7", 1)

	hub.Emit(playback.NewEvent("run-7", 0, gpx.NewPoint(47.5, 8.25).WithElevation(410)))
	if msg := readText(t, conn); msg != `{"latitude":47.5,"longitude":8.25,"elevation":410}` {
		t.Fatalf("unexpected message %s", msg)
	}
}

func TestStreamHandlersUnregisterOnDisconnect(t *testing.T) {
	hub := NewHub(nil)
	base := serveHub(t, hub)

	conn := dialSession(t, base, "session-2")
	waitClients(t, hub, "session-2", 1)
	conn.Close()

	waitClients(t, hub, "session-2", 0)
	// nobody is listening any more
	hub.Broadcast("session-2", []byte("ping"))
}

func TestStreamHandlersCloseMessage(t *testing.T) {
	hub := NewHub(nil)
	base := serveHub(t, hub)

	conn := dialSession(t, base, "session-3")
	waitClients(t, hub, "session-3", 1)

	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
	conn.Close()

	waitClients(t, hub, "session-3", 0)
}
