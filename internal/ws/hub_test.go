package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nbacklab/ecg-workload/pkg/models"
)

// newTestHub поднимает Hub за httptest сервером
func newTestHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()

	hub := NewHub()
	go hub.Run()

	server := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	t.Cleanup(server.Close)
	return hub, server
}

// dialClient подключает WebSocket клиента с фильтром по прогону
func dialClient(t *testing.T, server *httptest.Server, runID string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "?run_id=" + runID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("failed to dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// waitForClients дожидается регистрации клиентов в Hub
func waitForClients(t *testing.T, hub *Hub, want int) {
	t.Helper()

	for i := 0; i < 100; i++ {
		hub.mu.RLock()
		count := len(hub.clients)
		hub.mu.RUnlock()
		if count == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("clients did not register in time, want %d", want)
}

func TestHub_BroadcastFiltersByRun(t *testing.T) {
	hub, server := newTestHub(t)

	connA := dialClient(t, server, "run-a")
	connB := dialClient(t, server, "run-b")
	waitForClients(t, hub, 2)

	hub.BroadcastProgress(models.ProgressEvent{
		RunID:     "run-a",
		Stage:     "participant",
		Timestamp: time.Now(),
	})

	// Подписчик своего прогона получает событие
	connA.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := connA.ReadMessage()
	if err != nil {
		t.Fatalf("subscriber of run-a must receive the event: %v", err)
	}
	var event models.ProgressEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		t.Fatalf("failed to unmarshal event: %v", err)
	}
	if event.RunID != "run-a" || event.Stage != "participant" {
		t.Errorf("unexpected event: %+v", event)
	}

	// Подписчик чужого прогона события не видит
	connB.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	if _, _, err := connB.ReadMessage(); err == nil {
		t.Error("subscriber of run-b must not receive run-a events")
	}
}

func TestHub_AllSubscriberReceivesEveryRun(t *testing.T) {
	hub, server := newTestHub(t)

	conn := dialClient(t, server, "all")
	waitForClients(t, hub, 1)

	for _, runID := range []string{"run-a", "run-b"} {
		hub.BroadcastProgress(models.ProgressEvent{
			RunID:     runID,
			Stage:     "finished",
			Timestamp: time.Now(),
		})
	}

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, payload, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("subscriber of all runs must receive event %d: %v", i, err)
		}
		var event models.ProgressEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			t.Fatalf("failed to unmarshal event: %v", err)
		}
		seen[event.RunID] = true
	}

	if !seen["run-a"] || !seen["run-b"] {
		t.Errorf("expected events of both runs, got %v", seen)
	}
}
