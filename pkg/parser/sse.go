package parser

import (
	"bufio"
	"bytes"
	"strings"
)

// SSEEvent is one parsed server-sent event.
type SSEEvent struct {
	Event string
	Data  string
}

// parseSSE splits a raw SSE transcript into events. Lines starting
// "event:" set the event name; lines starting "data:" accumulate into the
// event's data (joined by newline, per the SSE spec); a blank line
// terminates the current event. The literal "[DONE]" data sentinel used by
// OpenAI-family streams produces no event (it only signals stream end).
func parseSSE(transcript []byte) []SSEEvent {
	var events []SSEEvent
	var curEvent string
	var dataLines []string

	flush := func() {
		if len(dataLines) == 0 && curEvent == "" {
			return
		}
		data := strings.Join(dataLines, "\n")
		if strings.TrimSpace(data) == "[DONE]" {
			curEvent, dataLines = "", nil
			return
		}
		if data != "" {
			events = append(events, SSEEvent{Event: curEvent, Data: data})
		}
		curEvent, dataLines = "", nil
	}

	scanner := bufio.NewScanner(bytes.NewReader(transcript))
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			flush()
		case strings.HasPrefix(line, "event:"):
			curEvent = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			dataLines = append(dataLines, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		default:
			// Comment lines (":") or unrecognized fields are ignored.
		}
	}
	flush()
	return events
}
