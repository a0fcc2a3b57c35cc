package main

import (
	"crypto/rand"
	"fmt"
)

var playerColors = []string{
	"#ff6b6b",
	"#f7b731",
	"#4cd964",
	"#5ac8fa",
	"#007aff",
	"#af52de",
	"#ff9f0a",
	"#ff2d55",
}

var playerIcons = []string{"♠️", "♥️", "♦️", "♣️", "⭐️", "🎵", "🍀", "🔥"}

// Secret numbers are drawn from [1, numberPoolSize] without replacement.
const numberPoolSize = 100

// randIndex returns a uniform random index in [0, n) using crypto/rand.
// Bytes at or above the largest multiple of n are redrawn, so no index
// is favored when n does not divide 256.
func randIndex(n int) int {
	limit := 256 - 256%n
	for {
		var b [1]byte
		if _, err := rand.Read(b[:]); err != nil {
			panic("crypto/rand failure: " + err.Error())
		}
		if v := int(b[0]); v < limit {
			return v % n
		}
	}
}

// assignIdentity picks the first (color, icon) pair not already in use
// by players, walking pairs in a fixed enumeration order so early
// joiners always get distinct colors. Once every combination is taken,
// it falls back to a random pair; duplicates past that point are
// acceptable degradation.
func assignIdentity(players []*Player) (string, string) {
	used := make(map[string]bool, len(players))
	for _, p := range players {
		used[p.Color+"|"+p.Icon] = true
	}

	for i := 0; i < len(playerColors)*len(playerIcons); i++ {
		color := playerColors[i%len(playerColors)]
		icon := playerIcons[i%len(playerIcons)]
		if !used[color+"|"+icon] {
			return color, icon
		}
	}

	return playerColors[randIndex(len(playerColors))], playerIcons[randIndex(len(playerIcons))]
}

// assignNumbers deals every player a distinct secret number from the
// pool, unconditionally replacing any previous round's numbers. The
// room enforces occupancy at join time, so exhausting the pool here is
// a programming error.
func assignNumbers(players []*Player) error {
	if len(players) > numberPoolSize {
		return fmt.Errorf("cannot assign %d players numbers from a pool of %d", len(players), numberPoolSize)
	}

	pool := make([]int, numberPoolSize)
	for i := range pool {
		pool[i] = i + 1
	}

	for _, p := range players {
		idx := randIndex(len(pool))
		p.Number = pool[idx]
		pool = append(pool[:idx], pool[idx+1:]...)
	}

	return nil
}
