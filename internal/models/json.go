package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// decodeObject walks a JSON object in document order, handing each member's raw value to fn.
// encoding/json maps lose member order, so the token stream is read directly.
func decodeObject(data []byte, fn func(key string, value json.RawMessage) error) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("expected JSON object, got %v", tok)
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("expected object key, got %v", tok)
		}

		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("decode %q: %w", key, err)
		}
		if err := fn(key, value); err != nil {
			return err
		}
	}

	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}

// objectWriter emits a JSON object member by member, keeping insertion order.
type objectWriter struct {
	buf   bytes.Buffer
	count int
}

func newObjectWriter() *objectWriter {
	w := &objectWriter{}
	w.buf.WriteByte('{')
	return w
}

func (w *objectWriter) raw(key string, value []byte) error {
	if w.count > 0 {
		w.buf.WriteByte(',')
	}
	k, err := Marshal(key)
	if err != nil {
		return err
	}
	w.buf.Write(k)
	w.buf.WriteByte(':')
	w.buf.Write(value)
	w.count++
	return nil
}

func (w *objectWriter) value(key string, v any) error {
	data, err := Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %q: %w", key, err)
	}
	return w.raw(key, data)
}

func (w *objectWriter) bytes() []byte {
	w.buf.WriteByte('}')
	return w.buf.Bytes()
}

// Marshal is json.Marshal without HTML escaping, so raw move values are not
// rewritten on the way out.
func Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

func isJSONObject(data []byte) bool {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	return len(trimmed) > 0 && trimmed[0] == '{'
}

func isJSONArray(data []byte) bool {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	return len(trimmed) > 0 && trimmed[0] == '['
}
