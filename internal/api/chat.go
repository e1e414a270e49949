package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/folioworks/folio/internal/chat"
	"github.com/folioworks/folio/internal/log"
	"github.com/folioworks/folio/internal/retrieval"
)

// maxChatBodyBytes limits the chat request body size.
const maxChatBodyBytes = 64 * 1024

// streamTimeout bounds one complete chat stream, covering embedding,
// retrieval, and the full generation.
const streamTimeout = 3 * time.Minute

// doneSentinel terminates every chat stream.
const doneSentinel = "[DONE]"

// apologyMessage is streamed when generation fails after the response
// has already started.
const apologyMessage = "I apologize, but something went wrong while generating a response. Please try again."

// ChatStreamer runs one chat exchange, delivering partial answer text
// through onChunk as it becomes available and returning the final
// output. Implemented by flowStreamer over the Genkit flow; tests
// substitute stubs.
type ChatStreamer interface {
	Stream(ctx context.Context, input chat.Input, onChunk func(text string) error) (chat.Output, error)
}

// flowStreamer adapts the Genkit streaming flow to ChatStreamer.
type flowStreamer struct {
	flow *chat.Flow
}

// NewFlowStreamer wraps a chat flow for use with the chat handler.
func NewFlowStreamer(flow *chat.Flow) ChatStreamer {
	return &flowStreamer{flow: flow}
}

func (f *flowStreamer) Stream(ctx context.Context, input chat.Input, onChunk func(text string) error) (chat.Output, error) {
	for streamValue, err := range f.flow.Stream(ctx, input) {
		if err != nil {
			return chat.Output{}, err
		}
		if streamValue.Done {
			return streamValue.Output, nil
		}
		if streamValue.Stream.Content != "" {
			if err := onChunk(streamValue.Stream.Content); err != nil {
				return chat.Output{}, err
			}
		}
	}
	return chat.Output{}, errors.New("stream ended without final output")
}

// ChatRequest is the POST /api/chat request body.
type ChatRequest struct {
	Message string `json:"message"`
}

// contentFrame carries one partial answer fragment.
type contentFrame struct {
	Content string `json:"content"`
}

// sourcesFrame carries the documents that grounded the answer. Sent
// exactly once per stream, before the terminating sentinel.
type sourcesFrame struct {
	Sources []retrieval.Source `json:"sources"`
}

// chatHandler serves the streaming chat endpoint.
//
// A nil streamer means the model credential was absent at startup; the
// handler then fails each request with 500 instead of preventing the
// rest of the site's API from serving.
type chatHandler struct {
	streamer ChatStreamer
	logger   log.Logger
}

// send handles POST /api/chat. On success the response is a stream of
// newline-delimited frames: zero or more content frames, exactly one
// sources frame, then the [DONE] sentinel.
func (h *chatHandler) send(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxChatBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", "invalid request body", h.logger)
		return
	}

	if strings.TrimSpace(req.Message) == "" {
		WriteError(w, http.StatusBadRequest, "missing_message", "message is required", h.logger)
		return
	}

	if h.streamer == nil {
		WriteError(w, http.StatusInternalServerError, "not_configured", "chat is not configured", h.logger)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteError(w, http.StatusInternalServerError, "streaming_unsupported", "streaming not supported", h.logger)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	ctx, cancel := context.WithTimeout(r.Context(), streamTimeout)
	defer cancel()

	requestID, _ := requestIDFromContext(r.Context())
	h.logger.Debug("chat stream started", "request_id", requestID)

	onChunk := func(text string) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		return writeFrame(w, flusher, contentFrame{Content: text})
	}

	output, err := h.streamer.Stream(ctx, chat.Input{Message: req.Message}, onChunk)
	if err != nil {
		if ctx.Err() != nil {
			// Client gone or deadline hit; nothing useful to send.
			h.logger.Info("chat stream aborted", "request_id", requestID, "error", ctx.Err())
			return
		}
		h.logger.Error("chat stream failed", "request_id", requestID, "error", err)

		// The response already started, so degrade inside the stream:
		// an apology, an empty sources frame, then the sentinel.
		if writeFrame(w, flusher, contentFrame{Content: apologyMessage}) != nil {
			return
		}
		if writeFrame(w, flusher, sourcesFrame{Sources: []retrieval.Source{}}) != nil {
			return
		}
		writeSentinel(w, flusher)
		return
	}

	sources := output.Sources
	if sources == nil {
		sources = []retrieval.Source{}
	}
	if writeFrame(w, flusher, sourcesFrame{Sources: sources}) != nil {
		return
	}
	writeSentinel(w, flusher)

	h.logger.Debug("chat stream completed",
		"request_id", requestID,
		"sources", len(sources),
	)
}

// writeFrame writes one newline-delimited data frame with a JSON
// payload: "data: <json>\n\n".
func writeFrame[T any](w io.Writer, flusher http.Flusher, payload T) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}

	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}

	flusher.Flush()
	return nil
}

// writeSentinel terminates the stream with the [DONE] frame.
func writeSentinel(w io.Writer, flusher http.Flusher) {
	if _, err := fmt.Fprintf(w, "data: %s\n\n", doneSentinel); err != nil {
		return
	}
	flusher.Flush()
}
