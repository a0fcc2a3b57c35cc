package main

import (
	"testing"
)

func TestAssignIdentityAvoidsUsedPairs(t *testing.T) {
	capacity := len(playerColors) * len(playerIcons)

	var players []*Player
	seen := make(map[string]bool)

	for i := 0; i < capacity; i++ {
		color, icon := assignIdentity(players)
		key := color + "|" + icon
		if seen[key] {
			t.Fatalf("pair %s repeated at player %d", key, i)
		}
		seen[key] = true
		players = append(players, &Player{Color: color, Icon: icon})
	}

	// The enumeration is deterministic: the first two joiners always
	// get the first two pairs.
	if players[0].Color != playerColors[0] || players[0].Icon != playerIcons[0] {
		t.Fatalf("unexpected first pair (%s, %s)", players[0].Color, players[0].Icon)
	}
	if players[1].Color != playerColors[1] || players[1].Icon != playerIcons[1] {
		t.Fatalf("unexpected second pair (%s, %s)", players[1].Color, players[1].Icon)
	}
}

func TestAssignIdentityFallbackPastCapacity(t *testing.T) {
	var players []*Player
	for _, color := range playerColors {
		for _, icon := range playerIcons {
			players = append(players, &Player{Color: color, Icon: icon})
		}
	}

	color, icon := assignIdentity(players)

	validColor := false
	for _, c := range playerColors {
		if c == color {
			validColor = true
		}
	}
	validIcon := false
	for _, i := range playerIcons {
		if i == icon {
			validIcon = true
		}
	}
	if !validColor || !validIcon {
		t.Fatalf("fallback pair (%s, %s) not from the palette", color, icon)
	}
}

func TestAssignNumbersDistinctAndInRange(t *testing.T) {
	players := make([]*Player, numberPoolSize)
	for i := range players {
		players[i] = &Player{ID: "p", Number: 42}
	}

	if err := assignNumbers(players); err != nil {
		t.Fatalf("expected full pool to be assignable, got %v", err)
	}

	seen := make(map[int]bool)
	for _, p := range players {
		if p.Number < 1 || p.Number > numberPoolSize {
			t.Fatalf("number %d out of range", p.Number)
		}
		if seen[p.Number] {
			t.Fatalf("number %d assigned twice", p.Number)
		}
		seen[p.Number] = true
	}
}

func TestRandIndexCoversRange(t *testing.T) {
	const n = 100
	seen := make(map[int]bool)

	for i := 0; i < 20000; i++ {
		idx := randIndex(n)
		if idx < 0 || idx >= n {
			t.Fatalf("randIndex(%d) = %d out of range", n, idx)
		}
		seen[idx] = true
	}

	// Rejection sampling keeps the draw uniform, so every index shows
	// up comfortably within this many draws.
	if len(seen) != n {
		t.Fatalf("expected all %d indices drawn, got %d", n, len(seen))
	}
}

func TestAssignNumbersOverCapacity(t *testing.T) {
	players := make([]*Player, numberPoolSize+1)
	for i := range players {
		players[i] = &Player{}
	}

	if err := assignNumbers(players); err == nil {
		t.Fatal("expected a capacity error with more players than numbers")
	}
}
