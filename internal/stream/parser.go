package stream

import (
	"bytes"
	"encoding/json"

	"github.com/playground-ai/agent-platform/pkg/logger"
)

// recordDelimiter separates SSE records.
var recordDelimiter = []byte("\n\n")

// Split consumes as many complete SSE records as buf+chunk contains and
// returns the decoded frames plus the unconsumed remainder. It is a pure
// function of its inputs: a record is only parsed once its delimiter has
// arrived, so frames split across reads at any byte offset reassemble
// identically. Malformed records are counted and skipped; one bad frame
// never loses the rest of the stream.
func Split(buf, chunk []byte) (frames []Frame, rest []byte, malformed int) {
	data := append(append([]byte{}, buf...), chunk...)

	for {
		idx := bytes.Index(data, recordDelimiter)
		if idx < 0 {
			break
		}
		record := data[:idx]
		data = data[idx+len(recordDelimiter):]

		payload, ok := extractData(record)
		if !ok {
			continue // comment, heartbeat, or empty record
		}

		var f Frame
		if err := json.Unmarshal(payload, &f); err != nil || f.Type == "" {
			malformed++
			continue
		}
		frames = append(frames, f)
	}

	return frames, data, malformed
}

// extractData pulls the data payload out of one SSE record. Multiple data
// lines are joined with a newline per the SSE spec; comment lines and other
// fields are ignored.
func extractData(record []byte) ([]byte, bool) {
	var payload []byte
	found := false

	for _, line := range bytes.Split(record, []byte("\n")) {
		line = bytes.TrimSuffix(line, []byte("\r"))
		if !bytes.HasPrefix(line, []byte("data:")) {
			continue
		}
		value := bytes.TrimPrefix(line, []byte("data:"))
		value = bytes.TrimPrefix(value, []byte(" "))
		if found {
			payload = append(payload, '\n')
		}
		payload = append(payload, value...)
		found = true
	}

	return payload, found
}

// Parser is the stateful wrapper around Split used by streaming clients: it
// keeps the rolling buffer between reads and logs skipped records.
type Parser struct {
	buf    []byte
	logger *logger.Logger
}

// NewParser creates a parser. The logger may be nil.
func NewParser(log *logger.Logger) *Parser {
	return &Parser{logger: log}
}

// Feed appends chunk to the rolling buffer and returns every frame that is
// now complete. Partial trailing records are retained for the next read.
func (p *Parser) Feed(chunk []byte) []Frame {
	frames, rest, malformed := Split(p.buf, chunk)
	p.buf = rest
	if malformed > 0 && p.logger != nil {
		p.logger.Warn("skipped malformed frames", "count", malformed)
	}
	return frames
}
