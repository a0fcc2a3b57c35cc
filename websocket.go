package main

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client is one live websocket connection.
type Client struct {
	conn    *websocket.Conn
	send    chan any
	session string
}

// sessionTable maps session ids to live clients. It is the only place
// that knows which session belongs to which connection; the game code
// deals purely in opaque session ids.
type sessionTable struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

func newSessionTable() *sessionTable {
	return &sessionTable{
		clients: make(map[string]*Client),
	}
}

func (st *sessionTable) add(c *Client) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.clients[c.session] = c
}

func (st *sessionTable) remove(c *Client) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if current, ok := st.clients[c.session]; ok && current == c {
		delete(st.clients, c.session)
		close(c.send)
	}
}

// Send implements Transport. Delivery is fire-and-forget: a full send
// buffer counts the same as a dead session, and the client will catch
// up on the next broadcast or be reaped by its own pumps. The read lock
// is held across the send attempt: remove closes the channel under the
// write lock, so a send can never hit a closed channel.
func (st *sessionTable) Send(sessionID string, msg any) bool {
	st.mu.RLock()
	defer st.mu.RUnlock()

	c, ok := st.clients[sessionID]
	if !ok {
		return false
	}

	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// readPump decodes inbound envelopes and queues them for the
// coordinator. Frames that fail to decode are skipped rather than
// killing the connection. On read error the client reports its own
// disconnect.
func (c *Client) readPump(co *Coordinator, st *sessionTable) {
	defer func() {
		st.remove(c)
		_ = c.conn.Close()
		co.submit(c.session, clientMessage{Type: evDisconnect})
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}

		switch msg.Type {
		case evCreateRoom, evJoinRoom, evStartGame, evUpdateOrder, evRevealNumbers, evPlayAgain:
			co.submit(c.session, msg)
		default:
			// ignore unknown types
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

func serveWS(cfg *Config, co *Coordinator, st *sessionTable) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Println("upgrade error:", err)
			return
		}

		client := &Client{
			conn:    conn,
			send:    make(chan any, 8),
			session: uuid.NewString(),
		}

		st.add(client)
		logf(cfg, "CONNS: Session %s connected from %s", client.session, realIP(r))

		go client.writePump()
		client.readPump(co, st)
	}
}

// qrHandler generates a PNG QR code deep-linking to the join page for
// an active room code, so the host can share the room across the table.
func qrHandler(cfg *Config, reg *Registry) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		code := normalizeCode(ps.ByName("code"))
		if code == "" {
			http.Error(w, "missing room code", http.StatusBadRequest)
			return
		}
		if _, ok := reg.Find(code); !ok {
			http.Error(w, "no such room", http.StatusNotFound)
			return
		}

		// Derive scheme (respecting TLS and X-Forwarded-Proto if present).
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}

		url := scheme + "://" + r.Host + cfg.prefix + "/?code=" + code

		const qrSize = 320 // mobile-friendly size
		png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(png)
	}
}

// registerItoGame wires the game into the router:
//   - {prefix}/ws        → websocket carrying all game events
//   - {prefix}/qr/:code  → PNG QR code linking to the join page
func registerItoGame(cfg *Config, mux *httprouter.Router) {
	sessions := newSessionTable()
	co := newCoordinator(cfg, sessions)
	co.start()

	mux.GET(cfg.prefix+"/ws", serveWS(cfg, co, sessions))
	mux.GET(cfg.prefix+"/qr/:code", qrHandler(cfg, co.registry))
}
