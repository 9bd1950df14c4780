package live

import (
	"bufio"
	"io"
	"strings"
)

const maxEventSize = 1 << 20

// Event is one dispatched server-sent event.
type Event struct {
	Name string
	Data string
}

// Decoder reads server-sent events from a stream.
type Decoder struct {
	scanner *bufio.Scanner
}

// NewDecoder creates a decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 4096), maxEventSize)
	return &Decoder{scanner: s}
}

// Next returns the next event. It returns io.EOF when the stream ends
// cleanly between events, and io.ErrUnexpectedEOF when it ends inside one.
func (d *Decoder) Next() (Event, error) {
	var (
		name    string
		data    []string
		pending bool
	)
	for d.scanner.Scan() {
		line := strings.TrimSuffix(d.scanner.Text(), "\r")
		if line == "" {
			if len(data) == 0 {
				name, pending = "", false
				continue
			}
			if name == "" {
				name = "message"
			}
			return Event{Name: name, Data: strings.Join(data, "\n")}, nil
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		pending = true
		switch field {
		case "event":
			name = value
		case "data":
			data = append(data, value)
		}
	}
	if err := d.scanner.Err(); err != nil {
		return Event{}, err
	}
	if pending {
		return Event{}, io.ErrUnexpectedEOF
	}
	return Event{}, io.EOF
}
