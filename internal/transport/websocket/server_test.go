package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestHub_RegisterAndUnregister(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go hub.Run(ctx)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.HandleWebSocket(w, r, 1)
	}))
	defer server.Close()

	wsURL := "ws" + server.URL[4:]
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	defer conn.Close()

	// give the hub time to register
	time.Sleep(100 * time.Millisecond)

	hub.mu.RLock()
	connections, exists := hub.connections[1]
	hub.mu.RUnlock()

	if !exists {
		t.Fatal("Connection should be registered")
	}
	if len(connections) != 1 {
		t.Fatalf("Expected 1 connection, got %d", len(connections))
	}

	conn.Close()

	time.Sleep(100 * time.Millisecond)

	hub.mu.RLock()
	_, exists = hub.connections[1]
	hub.mu.RUnlock()

	if exists {
		t.Fatal("Connection should be unregistered")
	}
}

func TestHub_Broadcast(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go hub.Run(ctx)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.HandleWebSocket(w, r, 1)
	}))
	defer server.Close()

	wsURL := "ws" + server.URL[4:]
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	defer conn.Close()

	time.Sleep(100 * time.Millisecond)

	message := &Message{
		Type:    "payment_recorded",
		Channel: "payments",
		Data:    map[string]interface{}{"receipt_number": "RCP-20260830-DEADBEEF"},
	}
	hub.Broadcast(1, message)

	conn.SetReadDeadline(time.Now().Add(1 * time.Second))
	var received Message
	err = conn.ReadJSON(&received)
	if err != nil {
		t.Fatalf("Failed to read message: %v", err)
	}

	if received.Type != "payment_recorded" {
		t.Errorf("Expected type 'payment_recorded', got '%s'", received.Type)
	}
	if received.Channel != "payments" {
		t.Errorf("Expected channel 'payments', got '%s'", received.Channel)
	}
	if received.UserID != 1 {
		t.Errorf("Expected userID 1, got %d", received.UserID)
	}
}

func TestHub_MultipleConnections(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go hub.Run(ctx)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.HandleWebSocket(w, r, 1)
	}))
	defer server.Close()

	// one cashier with several open tabs
	var conns []*websocket.Conn
	for i := 0; i < 3; i++ {
		wsURL := "ws" + server.URL[4:]
		conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
		if err != nil {
			t.Fatalf("Failed to connect: %v", err)
		}
		conns = append(conns, conn)
		defer conn.Close()
	}

	time.Sleep(100 * time.Millisecond)

	hub.mu.RLock()
	connections, exists := hub.connections[1]
	hub.mu.RUnlock()

	if !exists {
		t.Fatal("Connections should be registered")
	}
	if len(connections) != 3 {
		t.Fatalf("Expected 3 connections, got %d", len(connections))
	}

	message := &Message{
		Type:    "export_progress",
		Channel: "exports",
		Data:    map[string]interface{}{"progress": 50},
	}
	hub.Broadcast(1, message)

	// every open tab should receive the broadcast
	var wg sync.WaitGroup
	for i, conn := range conns {
		wg.Add(1)
		go func(idx int, c *websocket.Conn) {
			defer wg.Done()
			c.SetReadDeadline(time.Now().Add(1 * time.Second))
			var received Message
			err := c.ReadJSON(&received)
			if err != nil {
				t.Errorf("Connection %d failed to read message: %v", idx, err)
				return
			}
			if received.Type != "export_progress" {
				t.Errorf("Connection %d: Expected type 'export_progress', got '%s'", idx, received.Type)
			}
		}(i, conn)
	}

	wg.Wait()
}

func TestHub_DifferentUsers(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go hub.Run(ctx)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := int64(1)
		if r.URL.Query().Get("user_id") == "2" {
			userID = 2
		}
		hub.HandleWebSocket(w, r, userID)
	}))
	defer server.Close()

	wsURL1 := "ws" + server.URL[4:] + "?user_id=1"
	conn1, _, err := websocket.DefaultDialer.Dial(wsURL1, nil)
	if err != nil {
		t.Fatalf("Failed to connect user 1: %v", err)
	}
	defer conn1.Close()

	wsURL2 := "ws" + server.URL[4:] + "?user_id=2"
	conn2, _, err := websocket.DefaultDialer.Dial(wsURL2, nil)
	if err != nil {
		t.Fatalf("Failed to connect user 2: %v", err)
	}
	defer conn2.Close()

	time.Sleep(100 * time.Millisecond)

	// addressed to user 1 only
	message := &Message{
		Type:    "export_completed",
		Channel: "exports",
		Data:    map[string]interface{}{"file_url": "http://localhost/files/x.xlsx"},
	}
	hub.Broadcast(1, message)

	conn1.SetReadDeadline(time.Now().Add(1 * time.Second))
	var received1 Message
	err = conn1.ReadJSON(&received1)
	if err != nil {
		t.Fatalf("User 1 failed to read message: %v", err)
	}
	if received1.Type != "export_completed" {
		t.Errorf("User 1: Expected type 'export_completed', got '%s'", received1.Type)
	}

	conn2.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	var received2 Message
	err = conn2.ReadJSON(&received2)
	if err == nil {
		t.Error("User 2 should not receive message for user 1")
	}
}

func TestHub_BroadcastChannelFull(t *testing.T) {
	hub := NewHub()
	// tiny channel with no Run consumer: the second Broadcast must be
	// dropped, not block the caller
	hub.broadcast = make(chan *Message, 1)

	hub.Broadcast(1, &Message{Type: "fill"})

	done := make(chan struct{})
	go func() {
		hub.Broadcast(1, &Message{Type: "dropped"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(1 * time.Second):
		t.Fatal("Broadcast blocked on a full channel")
	}

	msg := <-hub.broadcast
	if msg.Type != "fill" {
		t.Errorf("Expected queued message 'fill', got '%s'", msg.Type)
	}
}

func TestHub_ShutdownClosesConnections(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())

	go hub.Run(ctx)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.HandleWebSocket(w, r, 1)
	}))
	defer server.Close()

	wsURL := "ws" + server.URL[4:]
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}

	time.Sleep(50 * time.Millisecond)

	// cancel the hub context; Run should close underlying connections
	cancel()

	time.Sleep(100 * time.Millisecond)

	conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	_, _, err = conn.ReadMessage()
	if err == nil {
		t.Fatal("Expected connection to be closed after hub shutdown")
	}

	conn.Close()
}
