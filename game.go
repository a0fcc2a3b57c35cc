// ito-style number ordering game
//
// Players join a shared room via a 4-character code. When the host starts
// a round, every player privately receives a distinct number from 1-100.
// The group then arranges itself into a shared ordering (talking around
// the numbers, never saying them), and the host reveals whether the
// arrangement matches ascending numeric order.
//
// Features:
// - One websocket per client at /ws; all game events ride the same connection
// - Rooms created and joined over the socket, identified by short codes
// - Exactly one host per room, fixed at creation, with start/reveal/replay rights
// - Per-recipient sanitized broadcasts: your own number always, others' only at reveal
// - Disconnected players are marked, never removed, so the ordering stays intact
// - Invalid or unauthorized actions are dropped silently, matching a single
//   explicit error surface (unknown or full room on join)
// - Idle rooms reaped after a configurable timeout
// - QR deep links to the join page, backed by go-qrcode

package main

import (
	"github.com/google/uuid"
)

// Inbound event names, as sent by clients.
const (
	evCreateRoom    = "CREATE_ROOM"
	evJoinRoom      = "JOIN_ROOM"
	evStartGame     = "START_GAME"
	evUpdateOrder   = "UPDATE_ORDER"
	evRevealNumbers = "REVEAL_NUMBERS"
	evPlayAgain     = "PLAY_AGAIN"
	evDisconnect    = "disconnect"
)

// Outbound event names.
const (
	msgRoomState = "ROOM_STATE"
	msgError     = "ERROR"
)

// clientMessage is the inbound event envelope.
type clientMessage struct {
	Type             string   `json:"type"`
	Name             string   `json:"name,omitempty"`
	Code             string   `json:"code,omitempty"`
	OrderedPlayerIDs []string `json:"orderedPlayerIds,omitempty"`
}

type action struct {
	session string
	msg     clientMessage
}

// Coordinator is the authoritative room state machine. All actions from
// all connections funnel through a single channel and are handled to
// completion one at a time (validate, mutate, broadcast), so room
// invariants hold between any two observable states without locking.
type Coordinator struct {
	cfg       *Config
	registry  *Registry
	transport Transport
	actions   chan action
}

func newCoordinator(cfg *Config, transport Transport) *Coordinator {
	return &Coordinator{
		cfg:       cfg,
		registry:  newRegistry(),
		transport: transport,
		actions:   make(chan action, 64),
	}
}

// start launches the event loop and, when configured, the idle-room
// reaper.
func (co *Coordinator) start() {
	go co.run()
	if co.cfg.roomTimeout > 0 {
		go co.registry.reaperLoop(co.cfg, co.cfg.roomTimeout)
	}
}

func (co *Coordinator) run() {
	for a := range co.actions {
		co.dispatch(a)
	}
}

// submit queues an action for serialized handling.
func (co *Coordinator) submit(session string, msg clientMessage) {
	co.actions <- action{session: session, msg: msg}
}

// dispatch routes one action to its handler. Unknown event types are
// dropped, matching the policy for every other malformed input: no
// broadcast, no acknowledgment.
func (co *Coordinator) dispatch(a action) {
	switch a.msg.Type {
	case evCreateRoom:
		co.handleCreateRoom(a.session, a.msg.Name)
	case evJoinRoom:
		co.handleJoinRoom(a.session, a.msg.Code, a.msg.Name)
	case evStartGame:
		co.handleStartGame(a.session, a.msg.Code)
	case evUpdateOrder:
		co.handleUpdateOrder(a.session, a.msg.Code, a.msg.OrderedPlayerIDs)
	case evRevealNumbers:
		co.handleRevealNumbers(a.session, a.msg.Code)
	case evPlayAgain:
		co.handlePlayAgain(a.session, a.msg.Code)
	case evDisconnect:
		co.handleDisconnect(a.session)
	}
}

func (co *Coordinator) handleCreateRoom(session, name string) {
	if name == "" {
		name = "Host"
	}

	color, icon := assignIdentity(nil)
	host := &Player{
		ID:        uuid.NewString(),
		Name:      name,
		IsHost:    true,
		Connected: true,
		Color:     color,
		Icon:      icon,
		sessionID: session,
	}

	room := co.registry.Create(host)
	logf(co.cfg, "ROOMS: Player %q created room %s", host.Name, room.Code)
	broadcastRoom(co.transport, room)
}

func (co *Coordinator) handleJoinRoom(session, code, name string) {
	room, ok := co.registry.Find(code)
	if !ok {
		co.transport.Send(session, errorMessage{Type: msgError, Message: "Room not found"})
		return
	}

	// Occupancy is capped at join time so a later number draw can
	// never exhaust the pool.
	if len(room.Players) >= co.cfg.maxPlayers {
		co.transport.Send(session, errorMessage{Type: msgError, Message: "Room is full"})
		return
	}

	if name == "" {
		name = "Player"
	}

	color, icon := assignIdentity(room.Players)
	player := &Player{
		ID:        uuid.NewString(),
		Name:      name,
		Connected: true,
		Color:     color,
		Icon:      icon,
		sessionID: session,
	}

	room.Players = append(room.Players, player)
	room.CurrentOrder = append(room.CurrentOrder, player.ID)
	room.touch()
	logf(co.cfg, "ROOMS: Player %q joined room %s", player.Name, room.Code)
	broadcastRoom(co.transport, room)
}

// hostFor resolves the acting player and returns the room only when
// that player is its host. Anything else is silently ignored.
func (co *Coordinator) hostFor(session, code string) (*Room, bool) {
	room, ok := co.registry.Find(code)
	if !ok {
		return nil, false
	}
	actor := room.playerBySession(session)
	if actor == nil || !actor.IsHost {
		return nil, false
	}
	return room, true
}

// startRound deals fresh numbers and resets the arrangement to join
// order. Shared by START_GAME and PLAY_AGAIN, which differ only in the
// phase they are called from.
func (co *Coordinator) startRound(room *Room) {
	if err := assignNumbers(room.Players); err != nil {
		// Unreachable while joins are capped at the pool size.
		logf(co.cfg, "ROOMS: Number assignment failed in room %s: %v", room.Code, err)
		return
	}
	room.Phase = PhaseOrdering
	room.CurrentOrder = room.playerIDs()
	room.FinalOrder = nil
	room.touch()
	broadcastRoom(co.transport, room)
}

func (co *Coordinator) handleStartGame(session, code string) {
	room, ok := co.hostFor(session, code)
	if !ok {
		return
	}
	logf(co.cfg, "ROOMS: Round started in room %s with %d players", room.Code, len(room.Players))
	co.startRound(room)
}

func (co *Coordinator) handlePlayAgain(session, code string) {
	room, ok := co.hostFor(session, code)
	if !ok {
		return
	}
	logf(co.cfg, "ROOMS: Replay started in room %s", room.Code)
	co.startRound(room)
}

// handleUpdateOrder replaces the live arrangement, last write wins. The
// payload must be a full permutation of the room's player ids: same
// length, every id known, no id repeated.
func (co *Coordinator) handleUpdateOrder(session, code string, order []string) {
	room, ok := co.registry.Find(code)
	if !ok {
		return
	}
	if room.Phase != PhaseOrdering {
		return
	}
	if room.playerBySession(session) == nil {
		return
	}
	if len(order) != len(room.Players) {
		return
	}

	remaining := make(map[string]bool, len(room.Players))
	for _, p := range room.Players {
		remaining[p.ID] = true
	}
	for _, id := range order {
		if !remaining[id] {
			return
		}
		delete(remaining, id)
	}

	room.CurrentOrder = append([]string(nil), order...)
	room.touch()
	broadcastRoom(co.transport, room)
}

func (co *Coordinator) handleRevealNumbers(session, code string) {
	room, ok := co.hostFor(session, code)
	if !ok {
		return
	}

	room.Phase = PhaseReveal
	room.FinalOrder = append([]string(nil), room.CurrentOrder...)
	room.touch()
	logf(co.cfg, "ROOMS: Numbers revealed in room %s", room.Code)
	broadcastRoom(co.transport, room)
}

// handleDisconnect marks the session's player as disconnected. The
// player entity stays in the room; only the live-session link dies, so
// broadcasts simply skip them. All rooms are scanned defensively even
// though a session only ever belongs to one.
func (co *Coordinator) handleDisconnect(session string) {
	for _, room := range co.registry.All() {
		changed := false
		for _, p := range room.Players {
			if p.sessionID == session && p.Connected {
				p.Connected = false
				changed = true
			}
		}
		if changed {
			broadcastRoom(co.transport, room)
		}
	}
}
