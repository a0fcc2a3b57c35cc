package main

// Transport routes an outbound message to a specific live session. The
// websocket layer provides the real implementation; tests substitute a
// recorder. Send reports false when the session is no longer live, in
// which case the caller just moves on to the next recipient.
type Transport interface {
	Send(sessionID string, msg any) bool
}

// PlayerView is the client-facing projection of a Player. The session
// identifier never appears here, and Number is null unless the
// recipient is allowed to see it.
type PlayerView struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	IsHost    bool   `json:"isHost"`
	Number    *int   `json:"number"`
	Connected bool   `json:"connected"`
	Color     string `json:"color"`
	Icon      string `json:"icon"`
}

type RoomView struct {
	Code         string       `json:"code"`
	HostID       string       `json:"hostId"`
	Players      []PlayerView `json:"players"`
	Phase        Phase        `json:"phase"`
	CurrentOrder []string     `json:"currentOrder"`
	FinalOrder   []string     `json:"finalOrder"`
	CreatedAt    int64        `json:"createdAt"`
	Result       string       `json:"result,omitempty"` // only set during REVEAL
}

type roomStateMessage struct {
	Type string     `json:"type"` // "ROOM_STATE"
	Room RoomView   `json:"room"`
	You  PlayerView `json:"you"`
}

type errorMessage struct {
	Type    string `json:"type"` // "ERROR"
	Message string `json:"message"`
}

func numberView(n int) *int {
	if n == 0 {
		return nil
	}
	return &n
}

// sanitizePlayer hides the secret number unless reveal is set.
func sanitizePlayer(p *Player, reveal bool) PlayerView {
	view := PlayerView{
		ID:        p.ID,
		Name:      p.Name,
		IsHost:    p.IsHost,
		Connected: p.Connected,
		Color:     p.Color,
		Icon:      p.Icon,
	}
	if reveal {
		view.Number = numberView(p.Number)
	}
	return view
}

// sanitizeRoom projects a room for one recipient. Everyone gets the
// same room view within a phase: numbers are hidden for all players
// until REVEAL, then visible to all.
func sanitizeRoom(room *Room) RoomView {
	reveal := room.Phase == PhaseReveal

	view := RoomView{
		Code:         room.Code,
		HostID:       room.HostID,
		Players:      make([]PlayerView, 0, len(room.Players)),
		Phase:        room.Phase,
		CurrentOrder: room.CurrentOrder,
		FinalOrder:   room.FinalOrder,
		CreatedAt:    room.CreatedAt.UnixMilli(),
	}
	for _, p := range room.Players {
		view.Players = append(view.Players, sanitizePlayer(p, reveal))
	}

	if reveal {
		if orderAscending(room) {
			view.Result = "correct"
		} else {
			view.Result = "incorrect"
		}
	}

	return view
}

// orderAscending reports whether the numbers along FinalOrder form an
// ascending sequence. Numbers are distinct within a round, so strictly
// ascending and non-decreasing coincide.
func orderAscending(room *Room) bool {
	numbers := make(map[string]int, len(room.Players))
	for _, p := range room.Players {
		numbers[p.ID] = p.Number
	}

	prev := 0
	for _, id := range room.FinalOrder {
		n := numbers[id]
		if n < prev {
			return false
		}
		prev = n
	}
	return true
}

// broadcastRoom pushes the current room state to every member. Each
// recipient additionally gets their own full record as "you", so a
// player can always see their own number. Stale sessions are skipped
// without error; the next broadcast skips them again.
func broadcastRoom(t Transport, room *Room) {
	roomView := sanitizeRoom(room)

	for _, p := range room.Players {
		you := sanitizePlayer(p, true)
		t.Send(p.sessionID, roomStateMessage{
			Type: msgRoomState,
			Room: roomView,
			You:  you,
		})
	}
}
