// Package models defines the episode, move and link-table records linkograph reads and writes.
package models

import (
	"bytes"
	"encoding/json"
	"errors"
)

// TextField is the move field whose value is embedded.
const TextField = "text"

// Field is a single member of a move record, kept as raw JSON so it round-trips untouched.
type Field struct {
	Key   string
	Value json.RawMessage
}

// Move is one recorded event of an episode. Only the "text" field is interpreted;
// every other field is carried through verbatim and in its original order.
type Move struct {
	fields []Field
	// raw holds a move that is not a JSON object at all. It is preserved for output
	// but can never yield text.
	raw json.RawMessage
}

// NewMove builds a move with the given text followed by extra fields.
func NewMove(text string, extra ...Field) Move {
	value, _ := json.Marshal(text)
	fields := make([]Field, 0, len(extra)+1)
	fields = append(fields, Field{Key: TextField, Value: value})
	fields = append(fields, extra...)
	return Move{fields: fields}
}

// NewMoveFields builds a move from fields as given; it need not contain text.
func NewMoveFields(fields ...Field) Move {
	return Move{fields: append([]Field(nil), fields...)}
}

// Fields returns the move's fields in document order.
func (m Move) Fields() []Field {
	return m.fields
}

// IsRecord reports whether the move was a JSON object.
func (m Move) IsRecord() bool {
	return m.raw == nil
}

// Get returns the raw value of the last field named key.
func (m Move) Get(key string) (json.RawMessage, bool) {
	for i := len(m.fields) - 1; i >= 0; i-- {
		if m.fields[i].Key == key {
			return m.fields[i].Value, true
		}
	}
	return nil, false
}

// ErrNoText is returned by Move.Text when the text field is absent.
var ErrNoText = errors.New("move has no text field")

// ErrTextNotString is returned by Move.Text when the text field holds a non-string value.
var ErrTextNotString = errors.New("move text is not a string")

// ErrNotRecord is returned by Move.Text when the move is not an object.
var ErrNotRecord = errors.New("move is not an object")

// Text returns the move's text.
func (m Move) Text() (string, error) {
	if !m.IsRecord() {
		return "", ErrNotRecord
	}
	value, ok := m.Get(TextField)
	if !ok {
		return "", ErrNoText
	}
	var text string
	if bytes.Equal(bytes.TrimSpace(value), []byte("null")) {
		return "", ErrTextNotString
	}
	if err := json.Unmarshal(value, &text); err != nil {
		return "", ErrTextNotString
	}
	return text, nil
}

// MarshalJSON writes the move's fields back in their original order with their
// original value bytes. Encode with Marshal, or an Encoder with HTML escaping off,
// to keep <, > and & as written.
func (m Move) MarshalJSON() ([]byte, error) {
	if !m.IsRecord() {
		return m.raw, nil
	}
	w := newObjectWriter()
	for _, f := range m.fields {
		if err := w.raw(f.Key, f.Value); err != nil {
			return nil, err
		}
	}
	return w.bytes(), nil
}

// UnmarshalJSON reads a move, keeping field order. Non-object values are retained as-is.
func (m *Move) UnmarshalJSON(data []byte) error {
	if !isJSONObject(data) {
		if !json.Valid(data) {
			return errors.New("invalid move JSON")
		}
		m.fields = nil
		m.raw = append(json.RawMessage(nil), bytes.TrimSpace(data)...)
		return nil
	}

	fields := []Field{}
	err := decodeObject(data, func(key string, value json.RawMessage) error {
		fields = append(fields, Field{Key: key, Value: value})
		return nil
	})
	if err != nil {
		return err
	}
	m.fields = fields
	m.raw = nil
	return nil
}
