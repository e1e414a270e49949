package chat

import (
	"context"
	"fmt"
	"sync"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core"
	"github.com/firebase/genkit/go/genkit"

	"github.com/folioworks/folio/internal/retrieval"
)

// Input is the request payload for the portfolio chat flow.
type Input struct {
	Message string `json:"message"`
}

// Output is the final response payload from the flow.
type Output struct {
	Response string             `json:"response"`
	Sources  []retrieval.Source `json:"sources"`
}

// StreamChunk is the streaming output type of the flow. Each chunk
// carries a partial text fragment ready for immediate display.
type StreamChunk struct {
	Content string `json:"content"`
}

// FlowName is the registered name of the chat flow in Genkit.
const FlowName = "folio/chat"

// Flow is the type alias for the portfolio chat streaming flow.
type Flow = core.Flow[Input, Output, StreamChunk]

// Package-level singleton for Flow to prevent panic on
// re-registration. sync.Once ensures genkit.DefineStreamingFlow is
// called only once.
var (
	flowOnce sync.Once
	flow     *Flow
)

// NewFlow returns the chat flow singleton, initializing it on first
// call. Subsequent calls return the existing flow and ignore the
// arguments. genkit.DefineStreamingFlow panics on re-registration, so
// always go through NewFlow.
func NewFlow(g *genkit.Genkit, pipeline *Pipeline) *Flow {
	flowOnce.Do(func() {
		flow = pipeline.DefineFlow(g)
	})
	return flow
}

// ResetFlowForTesting resets the flow singleton so tests can
// initialize with different configurations. Not safe for concurrent
// use; tests only.
func ResetFlowForTesting() {
	flowOnce = sync.Once{}
	flow = nil
}

// DefineFlow registers the Genkit streaming flow wrapping the
// pipeline. The flow gives the pipeline an Input/Output schema,
// DevUI tracing, and streaming support; Pipeline.Execute holds the
// actual logic.
//
// Use NewFlow instead of calling DefineFlow directly; registering the
// same flow name twice panics.
func (p *Pipeline) DefineFlow(g *genkit.Genkit) *Flow {
	return genkit.DefineStreamingFlow(g, FlowName,
		func(ctx context.Context, input Input, streamCb func(context.Context, StreamChunk) error) (Output, error) {
			// When streamCb is nil (invoked via Run instead of
			// Stream) the pipeline runs in non-streaming mode.
			var callback StreamCallback
			if streamCb != nil {
				callback = func(ctx context.Context, chunk *ai.ModelResponseChunk) error {
					if chunk == nil {
						return nil
					}
					for _, part := range chunk.Content {
						if part.Text == "" {
							continue
						}
						if err := streamCb(ctx, StreamChunk{Content: part.Text}); err != nil {
							return err
						}
					}
					return nil
				}
			}

			result, err := p.Execute(ctx, input.Message, callback)
			if err != nil {
				return Output{}, fmt.Errorf("executing chat pipeline: %w", err)
			}

			return Output{
				Response: result.FinalText,
				Sources:  result.Sources,
			}, nil
		},
	)
}
