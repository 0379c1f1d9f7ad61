package stream

import (
	"errors"
	"net/http"
	"strings"

	"github.com/playground-ai/agent-platform/pkg/metrics"
)

// ErrStreamingUnsupported is returned when the ResponseWriter cannot flush.
var ErrStreamingUnsupported = errors.New("streaming not supported by response writer")

// Writer writes frames to an HTTP response, flushing after every frame.
// Flushing per frame is a hard latency requirement: any buffering window
// here shows up to the user as seconds of blank "thinking".
type Writer struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewWriter prepares w for SSE streaming and returns a frame writer.
func NewWriter(w http.ResponseWriter) (*Writer, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrStreamingUnsupported
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache, no-transform")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	return &Writer{w: w, flusher: flusher}, nil
}

// WritePadding emits a leading SSE comment record. Some intermediaries hold
// small responses until a buffer fills; 2KiB of padding forces them to hand
// the first real frames to the client immediately.
func (sw *Writer) WritePadding() error {
	record := ": " + strings.Repeat(" ", 2048) + "\n\n"
	if _, err := sw.w.Write([]byte(record)); err != nil {
		return err
	}
	sw.flusher.Flush()
	return nil
}

// WriteFrame writes one frame and flushes it.
func (sw *Writer) WriteFrame(f Frame) error {
	data, err := f.MarshalSSE()
	if err != nil {
		return err
	}
	if _, err := sw.w.Write(data); err != nil {
		return err
	}
	sw.flusher.Flush()
	metrics.FramesEmitted.WithLabelValues(string(f.Type)).Inc()
	return nil
}
