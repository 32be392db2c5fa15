package testutil

import (
	"bufio"
	"strings"
)

// SSEEvent is one parsed server-sent event.
type SSEEvent struct {
	Event string
	Data  string
}

// ParseSSE parses a server-sent event stream body into events. Multi-line
// data fields are joined with newlines per the SSE wire format.
func ParseSSE(body string) []SSEEvent {
	var (
		events  []SSEEvent
		current SSEEvent
		data    []string
	)

	flush := func() {
		if current.Event == "" && len(data) == 0 {
			return
		}
		current.Data = strings.Join(data, "\n")
		events = append(events, current)
		current = SSEEvent{}
		data = nil
	}

	scanner := bufio.NewScanner(strings.NewReader(body))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			flush()
		case strings.HasPrefix(line, "event:"):
			current.Event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	flush()
	return events
}
