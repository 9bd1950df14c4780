package models

import (
	"fmt"
	"sort"
)

// LadderEntry is one team's row in the standings.
type LadderEntry struct {
	Name       string  `json:"name"`
	Rank       int     `json:"rank"`
	Played     int     `json:"played"`
	Pts        int     `json:"pts"`
	Percentage float64 `json:"percentage"`
	Wins       int     `json:"wins"`
	Losses     int     `json:"losses"`
	Draws      int     `json:"draws"`
}

// SortLadder orders entries by rank in place.
func SortLadder(ladder []LadderEntry) {
	sort.Slice(ladder, func(i, j int) bool { return ladder[i].Rank < ladder[j].Rank })
}

// ValidateLadder checks that ranks form a permutation of 1..N.
func ValidateLadder(ladder []LadderEntry) error {
	seen := make([]bool, len(ladder)+1)
	for _, e := range ladder {
		if e.Rank < 1 || e.Rank > len(ladder) {
			return fmt.Errorf("ladder: rank %d of %q out of range 1..%d", e.Rank, e.Name, len(ladder))
		}
		if seen[e.Rank] {
			return fmt.Errorf("ladder: duplicate rank %d", e.Rank)
		}
		seen[e.Rank] = true
	}
	return nil
}

// LadderPosition returns the rank of the named team, or 0 when absent.
func LadderPosition(ladder []LadderEntry, team string) int {
	for _, e := range ladder {
		if e.Name == team {
			return e.Rank
		}
	}
	return 0
}
