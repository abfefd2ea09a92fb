package telemetry

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
)

// HallEntry is one of the best creatures seen in a session.
type HallEntry struct {
	ID         uint64  `json:"id"`
	Fitness    float32 `json:"fitness"`
	Generation int     `json:"generation"`
	Limbs      int     `json:"limbs"`
}

// HallOfFame keeps the best distinct creatures of a session, sorted by
// descending fitness.
type HallOfFame struct {
	entries []HallEntry
	maxSize int
}

// NewHallOfFame creates an empty hall holding at most maxSize entries.
func NewHallOfFame(maxSize int) *HallOfFame {
	if maxSize < 1 {
		maxSize = 1
	}
	return &HallOfFame{entries: make([]HallEntry, 0, maxSize), maxSize: maxSize}
}

// Consider offers an entry. A creature already in the hall is kept once,
// with its best score. Returns true if the hall changed.
func (hof *HallOfFame) Consider(entry HallEntry) bool {
	for i, e := range hof.entries {
		if e.ID != entry.ID {
			continue
		}
		if entry.Fitness <= e.Fitness {
			return false
		}
		hof.entries = append(hof.entries[:i], hof.entries[i+1:]...)
		break
	}
	hof.entries = hof.insertEntry(hof.entries, entry)
	return hof.contains(entry)
}

func (hof *HallOfFame) contains(entry HallEntry) bool {
	for _, e := range hof.entries {
		if e == entry {
			return true
		}
	}
	return false
}

// insertEntry adds an entry to the hall, maintaining sorted order by fitness.
// If the hall is full, the lowest-fitness entry is removed.
func (hof *HallOfFame) insertEntry(hall []HallEntry, entry HallEntry) []HallEntry {
	// Find insertion point (sorted descending by fitness)
	idx := sort.Search(len(hall), func(i int) bool {
		return hall[i].Fitness < entry.Fitness
	})

	// If hall is full and entry would be last (lowest), skip it
	if len(hall) >= hof.maxSize && idx >= hof.maxSize {
		return hall
	}

	hall = append(hall, HallEntry{})
	copy(hall[idx+1:], hall[idx:])
	hall[idx] = entry

	if len(hall) > hof.maxSize {
		hall = hall[:hof.maxSize]
	}

	return hall
}

// Rank returns the entry at 0-based rank i.
func (hof *HallOfFame) Rank(i int) (HallEntry, bool) {
	if i < 0 || i >= len(hof.entries) {
		return HallEntry{}, false
	}
	return hof.entries[i], true
}

// Entries returns a copy of the hall, best first.
func (hof *HallOfFame) Entries() []HallEntry {
	return append([]HallEntry(nil), hof.entries...)
}

// Size returns the number of entries.
func (hof *HallOfFame) Size() int {
	return len(hof.entries)
}

// TopFitness returns the highest fitness in the hall, or 0 if it is empty.
func (hof *HallOfFame) TopFitness() float32 {
	if len(hof.entries) == 0 {
		return 0
	}
	return hof.entries[0].Fitness
}

type hallJSON struct {
	MaxSize int         `json:"max_size"`
	Entries []HallEntry `json:"entries"`
}

// MarshalJSON serializes the hall of fame to JSON.
func (hof *HallOfFame) MarshalJSON() ([]byte, error) {
	return json.MarshalIndent(hallJSON{MaxSize: hof.maxSize, Entries: hof.entries}, "", "  ")
}

// LoadHallOfFameFromFile reads a hall of fame written by WriteHallOfFame.
func LoadHallOfFameFromFile(path string) (*HallOfFame, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading hall of fame: %w", err)
	}

	var raw hallJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing hall of fame JSON: %w", err)
	}

	maxSize := max(raw.MaxSize, len(raw.Entries))
	hof := NewHallOfFame(maxSize)
	for _, e := range raw.Entries {
		if !hof.Consider(e) {
			slog.Warn("hall_of_fame_load: duplicate entry, skipping", "id", e.ID)
		}
	}
	return hof, nil
}
