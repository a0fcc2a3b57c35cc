package main

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

func newGameServer(t *testing.T) *httptest.Server {
	t.Helper()

	cfg := &Config{maxPlayers: 8}
	mux := httprouter.New()
	registerItoGame(cfg, mux)

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func dialWS(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func readState(t *testing.T, conn *websocket.Conn) roomStateMessage {
	t.Helper()

	var state roomStateMessage
	if err := conn.ReadJSON(&state); err != nil {
		t.Fatalf("reading room state: %v", err)
	}
	if state.Type != msgRoomState {
		t.Fatalf("expected %s, got %s", msgRoomState, state.Type)
	}
	return state
}

func TestWebsocketCreateAndJoin(t *testing.T) {
	ts := newGameServer(t)

	host := dialWS(t, ts)
	if err := host.WriteJSON(clientMessage{Type: evCreateRoom, Name: "Ada"}); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	created := readState(t, host)
	if created.Room.Phase != PhaseLobby || len(created.Room.Players) != 1 {
		t.Fatalf("unexpected initial state: %+v", created.Room)
	}
	if !created.You.IsHost {
		t.Fatal("expected creator to be host")
	}

	guest := dialWS(t, ts)
	// Codes are case-insensitive on input.
	joinCode := strings.ToLower(created.Room.Code)
	if err := guest.WriteJSON(clientMessage{Type: evJoinRoom, Code: joinCode, Name: "Bob"}); err != nil {
		t.Fatalf("join failed: %v", err)
	}

	joined := readState(t, guest)
	if len(joined.Room.Players) != 2 {
		t.Fatalf("expected 2 players after join, got %d", len(joined.Room.Players))
	}
	if joined.You.IsHost {
		t.Fatal("expected joiner not to be host")
	}

	// The host receives the same mutation.
	hostUpdate := readState(t, host)
	if len(hostUpdate.Room.Players) != 2 {
		t.Fatalf("expected host to see 2 players, got %d", len(hostUpdate.Room.Players))
	}
}

func TestWebsocketJoinUnknownRoom(t *testing.T) {
	ts := newGameServer(t)

	conn := dialWS(t, ts)
	if err := conn.WriteJSON(clientMessage{Type: evJoinRoom, Code: "zzzz", Name: "Bob"}); err != nil {
		t.Fatalf("join failed: %v", err)
	}

	var errMsg errorMessage
	if err := conn.ReadJSON(&errMsg); err != nil {
		t.Fatalf("reading error: %v", err)
	}
	if errMsg.Type != msgError || errMsg.Message != "Room not found" {
		t.Fatalf("unexpected error message: %+v", errMsg)
	}
}

func TestWebsocketDisconnectBroadcast(t *testing.T) {
	ts := newGameServer(t)

	host := dialWS(t, ts)
	if err := host.WriteJSON(clientMessage{Type: evCreateRoom, Name: "Ada"}); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	created := readState(t, host)

	guest := dialWS(t, ts)
	if err := guest.WriteJSON(clientMessage{Type: evJoinRoom, Code: created.Room.Code, Name: "Bob"}); err != nil {
		t.Fatalf("join failed: %v", err)
	}
	readState(t, guest)
	readState(t, host)

	_ = guest.Close()

	update := readState(t, host)
	if len(update.Room.Players) != 2 {
		t.Fatalf("expected player to remain after disconnect, got %d", len(update.Room.Players))
	}
	if update.Room.Players[1].Connected {
		t.Fatal("expected joiner marked disconnected")
	}
}

// A broadcast racing a disconnect must never send on the closed channel;
// panics here crash the whole coordinator.
func TestSessionTableSendDuringRemove(t *testing.T) {
	for i := 0; i < 1000; i++ {
		st := newSessionTable()
		client := &Client{send: make(chan any, 1), session: "s1"}
		st.add(client)

		done := make(chan struct{})
		go func() {
			defer close(done)
			for j := 0; j < 100; j++ {
				st.Send("s1", j)
			}
		}()

		st.remove(client)
		<-done
	}
}

func TestQRRequiresActiveRoom(t *testing.T) {
	ts := newGameServer(t)

	resp, err := ts.Client().Get(ts.URL + "/qr/zzzz")
	if err != nil {
		t.Fatalf("qr request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != 404 {
		t.Fatalf("expected 404 for unknown room, got %d", resp.StatusCode)
	}

	host := dialWS(t, ts)
	if err := host.WriteJSON(clientMessage{Type: evCreateRoom, Name: "Ada"}); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	created := readState(t, host)

	// Codes are normalized before the lookup.
	resp, err = ts.Client().Get(ts.URL + "/qr/" + strings.ToLower(created.Room.Code))
	if err != nil {
		t.Fatalf("qr request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200 for active room, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Fatalf("expected image/png, got %q", ct)
	}
}

func TestSessionTableSend(t *testing.T) {
	st := newSessionTable()

	if st.Send("nobody", "hello") {
		t.Fatal("expected send to unknown session to fail")
	}

	client := &Client{send: make(chan any, 1), session: "s1"}
	st.add(client)

	if !st.Send("s1", "hello") {
		t.Fatal("expected send to live session to succeed")
	}
	if st.Send("s1", "world") {
		t.Fatal("expected send to full buffer to fail")
	}

	st.remove(client)
	if st.Send("s1", "again") {
		t.Fatal("expected send after removal to fail")
	}
}
