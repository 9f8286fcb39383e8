package client

import (
	"bufio"
	"io"
	"strings"
)

// event is one server-sent event.
type event struct {
	name string
	data string
}

// eventReader decodes a text/event-stream body.
type eventReader struct {
	scanner *bufio.Scanner
}

func newEventReader(body io.Reader) *eventReader {
	s := bufio.NewScanner(body)
	s.Buffer(make([]byte, 0, 64*1024), maxEventSize)
	return &eventReader{scanner: s}
}

// maxEventSize bounds a single data line.
const maxEventSize = 8 << 20

// next returns the next event, or io.EOF once the stream ends.
func (r *eventReader) next() (*event, error) {
	var ev event
	var hasData bool

	for r.scanner.Scan() {
		line := r.scanner.Text()
		if line == "" {
			if hasData {
				return &ev, nil
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value := parseField(line)
		switch field {
		case "data":
			if hasData {
				ev.data += "\n" + value
			} else {
				ev.data = value
				hasData = true
			}
		case "event":
			ev.name = value
		}
	}

	if err := r.scanner.Err(); err != nil {
		return nil, err
	}
	if hasData {
		return &ev, nil
	}
	return nil, io.EOF
}

// parseField splits "field: value", dropping one optional space after the colon.
func parseField(line string) (field, value string) {
	field, value, ok := strings.Cut(line, ":")
	if !ok {
		return line, ""
	}
	return field, strings.TrimPrefix(value, " ")
}
