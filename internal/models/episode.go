package models

import (
	"encoding/json"
	"fmt"
)

// Episode is an identified, ordered sequence of moves. A move's position is its index
// in the link table.
type Episode struct {
	ID    string
	Moves []Move
}

// Texts returns each move's text in order. The first move without usable text stops
// extraction; its index is returned alongside the cause.
func (e Episode) Texts() ([]string, int, error) {
	texts := make([]string, len(e.Moves))
	for i, move := range e.Moves {
		text, err := move.Text()
		if err != nil {
			return nil, i, err
		}
		texts[i] = text
	}
	return texts, -1, nil
}

// LinkedEpisode is an episode's original moves together with their link table.
type LinkedEpisode struct {
	ID    string
	Moves []Move
	Links LinkTable
}

type linkedEpisodeJSON struct {
	Moves []Move    `json:"moves"`
	Links LinkTable `json:"links"`
}

// MarshalJSON writes {"moves": [...], "links": {...}}. The identifier is the key of
// the enclosing collection and is not repeated.
func (e LinkedEpisode) MarshalJSON() ([]byte, error) {
	moves := e.Moves
	if moves == nil {
		moves = []Move{}
	}
	return Marshal(linkedEpisodeJSON{Moves: moves, Links: e.Links})
}

// UnmarshalJSON reads the moves and links of a linked episode and checks they agree.
func (e *LinkedEpisode) UnmarshalJSON(data []byte) error {
	var raw linkedEpisodeJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw.Links) != len(raw.Moves) {
		return fmt.Errorf("links cover %d moves, episode has %d", len(raw.Links), len(raw.Moves))
	}
	e.Moves = raw.Moves
	e.Links = raw.Links
	return nil
}
