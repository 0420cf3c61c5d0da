// Package sseclient reads conversation event streams served as
// server-sent events.
//
// Servers may frame each event as a bare "data:" line or precede it with an
// "event:" line. Events are classified by their JSON payload; the event name
// is only consulted when the payload alone is ambiguous.
package sseclient

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/satriahrh/lingua/domain"
)

// Reader decodes events from a stream
type Reader struct {
	r *bufio.Reader
}

// NewReader creates a reader over r. Lines are read unbounded so inline
// base64 audio fits.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// Next returns the next event, or io.EOF once the stream ends.
func (r *Reader) Next() (domain.Event, error) {
	var (
		name string
		data []string
	)
	for {
		line, err := r.r.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return domain.Event{}, err
		}
		eof := err != nil
		line = strings.TrimRight(line, "\r\n")

		if line == "" {
			if len(data) > 0 {
				return decode(name, strings.Join(data, "\n"))
			}
			name = ""
			if eof {
				return domain.Event{}, io.EOF
			}
			continue
		}

		field, value := splitField(line)
		switch field {
		case "":
			// comment
		case "event":
			name = value
		case "data":
			data = append(data, value)
		}

		if eof {
			if len(data) > 0 {
				return decode(name, strings.Join(data, "\n"))
			}
			return domain.Event{}, io.EOF
		}
	}
}

// Each calls fn for every event until the stream ends, fn fails, or a
// terminal event has been handled.
func Each(r io.Reader, fn func(domain.Event) error) error {
	reader := NewReader(r)
	for {
		ev, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(ev); err != nil {
			return err
		}
		if ev.Terminal() {
			return nil
		}
	}
}

func splitField(line string) (string, string) {
	if strings.HasPrefix(line, ":") {
		return "", ""
	}
	field, value, found := strings.Cut(line, ":")
	if !found {
		return field, ""
	}
	return field, strings.TrimPrefix(value, " ")
}

func decode(name, payload string) (domain.Event, error) {
	var ev domain.Event
	err := json.Unmarshal([]byte(payload), &ev)
	if err == nil || name == "" || name == "message" {
		return ev, err
	}

	// An untyped payload the shape rules could not place: take the type
	// from the event name.
	var raw map[string]json.RawMessage
	if json.Unmarshal([]byte(payload), &raw) != nil {
		return ev, err
	}
	if _, typed := raw["type"]; typed {
		return ev, err
	}
	raw["type"], _ = json.Marshal(name)
	patched, _ := json.Marshal(raw)
	if json.Unmarshal(patched, &ev) != nil {
		return ev, err
	}
	return ev, nil
}
