package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/jonathan/skillsense/internal/pipeline"
)

var errStreamingUnsupported = errors.New("response writer does not support streaming")

// eventStream writes an analysis run as Server-Sent Events: one "step" event per
// pipeline stage, then a single "complete" or "error" event. Each event carries
// an increasing id so clients can tell where a dropped stream stopped.
type eventStream struct {
	w   http.ResponseWriter
	f   http.Flusher
	seq int
}

func newEventStream(w http.ResponseWriter) (*eventStream, error) {
	f, ok := w.(http.Flusher)
	if !ok {
		return nil, errStreamingUnsupported
	}
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	return &eventStream{w: w, f: f}, nil
}

func (e *eventStream) send(name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", name, err)
	}
	e.seq++
	if _, err := fmt.Fprintf(e.w, "id: %d\nevent: %s\ndata: %s\n\n", e.seq, name, data); err != nil {
		return err
	}
	e.f.Flush()
	return nil
}

// progress forwards a pipeline stage without its payload; the result is only sent once.
func (e *eventStream) progress(ev pipeline.ProgressEvent) error {
	ev.Content = nil
	return e.send("step", ev)
}

func (e *eventStream) fail(err error) error {
	return e.send("error", map[string]any{"error": err.Error(), "status": HTTPStatus(err)})
}

func (e *eventStream) complete(a *pipeline.Analysis) error {
	return e.send("complete", NewAnalysisResponse(a))
}
