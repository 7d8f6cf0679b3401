// Package credentialhandler reads and writes the key=value attribute format
// git uses to talk to credential helpers.
package credentialhandler

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

const arraySuffix = "[]"

type entry struct {
	key   string
	value string
}

// ArrayMap is an insertion-ordered attribute map. Keys ending in "[]" are
// multi-valued: each Set appends.
type ArrayMap struct {
	entries []entry
}

func NewMap(capacity int) *ArrayMap {
	return &ArrayMap{entries: make([]entry, 0, capacity)}
}

// Set stores value under key, replacing any earlier value for single-valued
// keys.
func (m *ArrayMap) Set(key, value string) {
	if !strings.HasSuffix(key, arraySuffix) {
		for i := range m.entries {
			if m.entries[i].key == key {
				m.entries[i].value = value
				return
			}
		}
	}

	m.entries = append(m.entries, entry{key: key, value: value})
}

// Get returns the first value stored for key.
func (m *ArrayMap) Get(key string) (string, bool) {
	for _, e := range m.entries {
		if e.key == key {
			return e.value, true
		}
	}
	return "", false
}

func (m *ArrayMap) Len() int {
	return len(m.entries)
}

func (m *ArrayMap) Iter() *Iterator {
	return &Iterator{entries: m.entries}
}

type Iterator struct {
	entries []entry
	pos     int
}

func (it *Iterator) HasNext() bool {
	return it.pos < len(it.entries)
}

func (it *Iterator) Next() (string, string) {
	e := it.entries[it.pos]
	it.pos++
	return e.key, e.value
}

// ReadProperties parses attributes until a blank line or end of input.
func ReadProperties(r io.Reader) (*ArrayMap, error) {
	m := NewMap(8)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			break
		}

		key, value, found := strings.Cut(line, "=")
		if !found {
			return nil, fmt.Errorf("invalid attribute line %q: expected key=value", line)
		}

		if key == "" {
			return nil, errors.New("invalid attribute: empty key")
		}

		if strings.ContainsRune(key, 0) || strings.ContainsRune(value, 0) {
			return nil, fmt.Errorf("invalid attribute %q: contains NUL", key)
		}

		m.Set(key, value)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read attributes: %w", err)
	}

	return m, nil
}

// WriteProperties writes each attribute as a key=value line. Attributes that
// could not be read back unchanged are rejected before anything is written.
func WriteProperties(m *ArrayMap, w io.Writer) error {
	var sb strings.Builder

	it := m.Iter()
	for it.HasNext() {
		k, v := it.Next()

		if k == "" {
			return errors.New("cannot write attribute with empty key")
		}
		if strings.ContainsAny(k, "=\n\r\x00") {
			return fmt.Errorf("cannot write attribute %q: invalid key", k)
		}
		if strings.ContainsAny(v, "\n\x00") {
			return fmt.Errorf("cannot write attribute %q: value contains newline or NUL", k)
		}

		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(v)
		sb.WriteByte('\n')
	}

	_, err := io.WriteString(w, sb.String())
	return err
}
