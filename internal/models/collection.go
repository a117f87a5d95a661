package models

import (
	"encoding/json"
	"fmt"
)

// Collection maps episode identifiers to episodes, in the order they were read.
type Collection []Episode

// IDs returns the episode identifiers in order.
func (c Collection) IDs() []string {
	ids := make([]string, len(c))
	for i, ep := range c {
		ids[i] = ep.ID
	}
	return ids
}

// MoveCount returns the total number of moves across all episodes.
func (c Collection) MoveCount() int {
	total := 0
	for _, ep := range c {
		total += len(ep.Moves)
	}
	return total
}

// MarshalJSON writes {"id": [moves...], ...} in collection order.
func (c Collection) MarshalJSON() ([]byte, error) {
	w := newObjectWriter()
	for _, ep := range c {
		moves := ep.Moves
		if moves == nil {
			moves = []Move{}
		}
		if err := w.value(ep.ID, moves); err != nil {
			return nil, err
		}
	}
	return w.bytes(), nil
}

// UnmarshalJSON reads an object of episode arrays. Duplicate identifiers are rejected
// because the second would silently replace the first.
func (c *Collection) UnmarshalJSON(data []byte) error {
	seen := make(map[string]struct{})
	episodes := Collection{}
	err := decodeObject(data, func(key string, value json.RawMessage) error {
		if _, dup := seen[key]; dup {
			return fmt.Errorf("duplicate episode id %q", key)
		}
		seen[key] = struct{}{}

		if !isJSONArray(value) {
			return fmt.Errorf("episode %q: moves must be an array", key)
		}
		var moves []Move
		if err := json.Unmarshal(value, &moves); err != nil {
			return fmt.Errorf("episode %q: %w", key, err)
		}
		if moves == nil {
			moves = []Move{}
		}
		episodes = append(episodes, Episode{ID: key, Moves: moves})
		return nil
	})
	if err != nil {
		return err
	}
	*c = episodes
	return nil
}

// LinkedCollection maps episode identifiers to linked episodes, in input order.
type LinkedCollection []LinkedEpisode

// Get returns the linked episode with the given identifier.
func (c LinkedCollection) Get(id string) (LinkedEpisode, bool) {
	for _, ep := range c {
		if ep.ID == id {
			return ep, true
		}
	}
	return LinkedEpisode{}, false
}

// IDs returns the episode identifiers in order.
func (c LinkedCollection) IDs() []string {
	ids := make([]string, len(c))
	for i, ep := range c {
		ids[i] = ep.ID
	}
	return ids
}

// MarshalJSON writes {"id": {"moves": [...], "links": {...}}, ...} in collection order.
func (c LinkedCollection) MarshalJSON() ([]byte, error) {
	w := newObjectWriter()
	for _, ep := range c {
		if err := w.value(ep.ID, ep); err != nil {
			return nil, err
		}
	}
	return w.bytes(), nil
}

// UnmarshalJSON reads a linked collection written by MarshalJSON.
func (c *LinkedCollection) UnmarshalJSON(data []byte) error {
	seen := make(map[string]struct{})
	episodes := LinkedCollection{}
	err := decodeObject(data, func(key string, value json.RawMessage) error {
		if _, dup := seen[key]; dup {
			return fmt.Errorf("duplicate episode id %q", key)
		}
		seen[key] = struct{}{}

		var ep LinkedEpisode
		if err := json.Unmarshal(value, &ep); err != nil {
			return fmt.Errorf("episode %q: %w", key, err)
		}
		ep.ID = key
		episodes = append(episodes, ep)
		return nil
	})
	if err != nil {
		return err
	}
	*c = episodes
	return nil
}
