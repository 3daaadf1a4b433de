// ABOUTME: Server-Sent Events parser for upstream run streams
// ABOUTME: Tracks the run id and the latest full message snapshot

package langgraph

import (
	"bufio"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
)

// RunSnapshot is the distilled result of a streamed run: the run id from the
// metadata event and the message list from the last values event seen.
type RunSnapshot struct {
	RunID    string
	Messages []json.RawMessage
}

// eventParser accumulates SSE frames. An event is committed when its frame
// ends, either at the blank line terminator or when the next event: line
// begins. Data still buffered at stream end is discarded; the upstream always
// terminates frames before closing.
type eventParser struct {
	snapshot RunSnapshot
	event    string
	data     []string
	logger   *slog.Logger
}

func newEventParser(logger *slog.Logger) *eventParser {
	if logger == nil {
		logger = slog.Default()
	}
	return &eventParser{logger: logger}
}

// consume feeds one line of the stream into the parser.
func (p *eventParser) consume(line string) {
	line = strings.TrimSpace(line)

	switch {
	case strings.HasPrefix(line, "event:"):
		p.flush()
		p.event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		p.data = nil
	case strings.HasPrefix(line, "data:"):
		p.data = append(p.data, strings.TrimSpace(strings.TrimPrefix(line, "data:")))
	case line == "":
		p.flush()
		p.event = ""
		p.data = nil
	}
}

// flush commits the buffered event. Only metadata and values events carry
// information the gateway uses; every values event overwrites the previous
// snapshot so the last one wins. Malformed payloads are skipped, a single bad
// frame must not kill the run.
func (p *eventParser) flush() {
	if p.event == "" || len(p.data) == 0 {
		return
	}

	payload := strings.Join(p.data, "\n")

	switch p.event {
	case "metadata":
		var meta struct {
			RunID string `json:"run_id"`
		}
		if err := json.Unmarshal([]byte(payload), &meta); err != nil {
			p.logger.Debug("skipping malformed metadata event", "error", err)
			return
		}
		if meta.RunID != "" {
			p.snapshot.RunID = meta.RunID
		}
	case "values":
		var values struct {
			Messages []json.RawMessage `json:"messages"`
		}
		if err := json.Unmarshal([]byte(payload), &values); err != nil {
			p.logger.Debug("skipping malformed values event", "error", err)
			return
		}
		if values.Messages != nil {
			p.snapshot.Messages = values.Messages
		}
	}
}

// ParseEventStream reads an SSE stream to EOF and returns the run snapshot.
// A stream with no metadata or values events yields an empty snapshot, not
// an error.
func ParseEventStream(r io.Reader, logger *slog.Logger) (RunSnapshot, error) {
	parser := newEventParser(logger)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 10*1024*1024)
	for scanner.Scan() {
		parser.consume(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return parser.snapshot, err
	}

	return parser.snapshot, nil
}
