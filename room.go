package main

import (
	"crypto/rand"
	"strings"
	"sync"
	"time"
)

type Phase string

const (
	PhaseLobby    Phase = "LOBBY"
	PhaseOrdering Phase = "ORDERING"
	PhaseReveal   Phase = "REVEAL"
)

// Excludes 0, 1, O and I to keep codes readable when shouted across a room.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const codeLength = 4

// Player holds the data we store server-side. The transport session
// identifier stays unexported so it can never leak into a payload.
type Player struct {
	ID        string
	Name      string
	IsHost    bool
	Number    int // 0 until assigned
	Connected bool
	Color     string
	Icon      string
	sessionID string
}

// Room is a single game session, addressed by its join code.
type Room struct {
	Code         string
	HostID       string
	Players      []*Player
	Phase        Phase
	CurrentOrder []string
	FinalOrder   []string // nil outside REVEAL
	CreatedAt    time.Time

	// lastActive is written by the coordinator and read by the reaper,
	// so it gets its own lock.
	activeMu   sync.Mutex
	lastActive time.Time
}

// playerBySession resolves the acting player for an incoming action.
func (r *Room) playerBySession(sessionID string) *Player {
	for _, p := range r.Players {
		if p.sessionID == sessionID {
			return p
		}
	}
	return nil
}

// playerIDs returns ids in join order, which doubles as the natural
// CurrentOrder at round start.
func (r *Room) playerIDs() []string {
	ids := make([]string, 0, len(r.Players))
	for _, p := range r.Players {
		ids = append(ids, p.ID)
	}
	return ids
}

func (r *Room) touch() {
	r.activeMu.Lock()
	defer r.activeMu.Unlock()
	r.lastActive = time.Now()
}

func (r *Room) idleSince() time.Time {
	r.activeMu.Lock()
	defer r.activeMu.Unlock()
	return r.lastActive
}

// normalizeCode canonicalizes user-supplied room codes; lookups are
// case-insensitive.
func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Registry owns the set of active rooms. It is injected into the
// coordinator rather than living in a package global, so tests can use
// isolated instances.
type Registry struct {
	mu    sync.Mutex
	rooms map[string]*Room
}

func newRegistry() *Registry {
	return &Registry{
		rooms: make(map[string]*Room),
	}
}

// newCode generates a crypto-random room code and ensures it doesn't
// collide with an active room. Callers must hold reg.mu.
func (reg *Registry) newCode() string {
	for {
		buf := make([]byte, codeLength)
		if _, err := rand.Read(buf); err != nil {
			panic("crypto/rand failure: " + err.Error())
		}
		out := make([]byte, codeLength)
		for i := range out {
			out[i] = codeAlphabet[int(buf[i])%len(codeAlphabet)]
		}
		code := string(out)

		if _, exists := reg.rooms[code]; !exists {
			return code
		}
	}
}

// Create allocates a fresh room in LOBBY with host as its only player.
func (reg *Registry) Create(host *Player) *Room {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	now := time.Now()
	room := &Room{
		Code:         reg.newCode(),
		HostID:       host.ID,
		Players:      []*Player{host},
		Phase:        PhaseLobby,
		CurrentOrder: []string{host.ID},
		CreatedAt:    now,
		lastActive:   now,
	}
	reg.rooms[room.Code] = room
	return room
}

// Find looks a room up by code after canonicalizing the input.
func (reg *Registry) Find(code string) (*Room, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	room, ok := reg.rooms[normalizeCode(code)]
	return room, ok
}

// All returns a snapshot of the active rooms, for the disconnect scan.
func (reg *Registry) All() []*Room {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	rooms := make([]*Room, 0, len(reg.rooms))
	for _, room := range reg.rooms {
		rooms = append(rooms, room)
	}
	return rooms
}

// sweep removes rooms whose last accepted action predates cutoff, and
// returns the removed codes.
func (reg *Registry) sweep(cutoff time.Time) []string {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	var reaped []string
	for code, room := range reg.rooms {
		if room.idleSince().Before(cutoff) {
			delete(reg.rooms, code)
			reaped = append(reaped, code)
		}
	}
	return reaped
}

// reaperLoop periodically removes rooms that have been idle longer than
// idleTimeout. Rooms have no other exit: they would otherwise accumulate
// for the life of the process.
func (reg *Registry) reaperLoop(cfg *Config, idleTimeout time.Duration) {
	ticker := time.NewTicker(idleTimeout / 2)
	for range ticker.C {
		for _, code := range reg.sweep(time.Now().Add(-idleTimeout)) {
			logf(cfg, "ROOMS: Reclaimed idle room %s", code)
		}
	}
}
