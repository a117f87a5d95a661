package models

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// LinkTable holds pairwise similarity scores for an episode's moves.
// Row i has exactly i entries: the scores of move i against moves 0..i-1.
// There is never a diagonal or upper-triangle entry.
type LinkTable [][]float64

// NewLinkTable allocates the lower-triangular table for n moves.
func NewLinkTable(n int) LinkTable {
	table := make(LinkTable, n)
	for i := range table {
		table[i] = make([]float64, i)
	}
	return table
}

// Len returns the number of moves the table covers.
func (t LinkTable) Len() int {
	return len(t)
}

// Score returns the similarity between moves i and j, in either order.
func (t LinkTable) Score(i, j int) (float64, bool) {
	if i < j {
		i, j = j, i
	}
	if i == j || j < 0 || i >= len(t) {
		return 0, false
	}
	return t[i][j], true
}

// Pairs returns the number of scored pairs, n*(n-1)/2.
func (t LinkTable) Pairs() int {
	n := len(t)
	return n * (n - 1) / 2
}

// Validate checks the lower-triangular shape.
func (t LinkTable) Validate() error {
	for i, row := range t {
		if len(row) != i {
			return fmt.Errorf("link row %d has %d entries, want %d", i, len(row), i)
		}
	}
	return nil
}

// MarshalJSON writes the table as {"i": {"j": score}} with indices as string keys
// in ascending order. Every row appears, including the empty row 0.
func (t LinkTable) MarshalJSON() ([]byte, error) {
	outer := newObjectWriter()
	for i, row := range t {
		inner := newObjectWriter()
		for j, score := range row {
			if err := inner.value(strconv.Itoa(j), score); err != nil {
				return nil, err
			}
		}
		if err := outer.raw(strconv.Itoa(i), inner.bytes()); err != nil {
			return nil, err
		}
	}
	return outer.bytes(), nil
}

// UnmarshalJSON reads the nested string-keyed form and rejects anything that is not
// exactly lower-triangular.
func (t *LinkTable) UnmarshalJSON(data []byte) error {
	var raw map[string]map[string]float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	table := NewLinkTable(len(raw))
	for key, row := range raw {
		i, err := strconv.Atoi(key)
		if err != nil || i < 0 || i >= len(raw) {
			return fmt.Errorf("invalid link row key %q", key)
		}
		if len(row) != i {
			return fmt.Errorf("link row %d has %d entries, want %d", i, len(row), i)
		}
		for innerKey, score := range row {
			j, err := strconv.Atoi(innerKey)
			if err != nil || j < 0 || j >= i {
				return fmt.Errorf("invalid link column key %q in row %d", innerKey, i)
			}
			table[i][j] = score
		}
	}
	*t = table
	return nil
}
