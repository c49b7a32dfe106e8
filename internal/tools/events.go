// Package tools implements the AI-invocable tools: weather lookup,
// document creation and revision, and writing suggestions.
//
// Tools run inside a model generation loop but need to push UI state
// to the client while they work (the document panel streams in real
// time). That side channel is the Emitter: the streaming handler binds
// one to the request context, tools retrieve it and emit typed events
// alongside the model's own text stream.
package tools

import "context"

// EventType identifies a UI event emitted by a tool.
type EventType string

const (
	// EventID announces the ID of the document being worked on.
	EventID EventType = "id"

	// EventTitle announces the document title.
	EventTitle EventType = "title"

	// EventClear tells the client to reset the document panel before
	// new content streams in.
	EventClear EventType = "clear"

	// EventTextDelta carries a chunk of generated document content.
	EventTextDelta EventType = "text-delta"

	// EventSuggestion carries one complete writing suggestion.
	EventSuggestion EventType = "suggestion"

	// EventFinish marks the end of a tool's UI stream.
	EventFinish EventType = "finish"
)

// Event is one UI event. Content is event-specific: a string for most
// types, a structured suggestion for EventSuggestion, empty for
// EventClear and EventFinish.
type Event struct {
	Type    EventType `json:"type"`
	Content any       `json:"content,omitempty"`
}

// Emitter receives tool UI events. The streaming layer implements it
// over SSE; tests implement it with a slice.
type Emitter interface {
	Emit(ctx context.Context, event Event) error
}

// emitterKey uses an empty struct for zero-allocation context keys.
type emitterKey struct{}

// ContextWithEmitter binds the per-request emitter into context.
func ContextWithEmitter(ctx context.Context, emitter Emitter) context.Context {
	return context.WithValue(ctx, emitterKey{}, emitter)
}

// EmitterFromContext retrieves the emitter. Returns nil when the
// request has no UI stream; tools must tolerate that and run silently.
func EmitterFromContext(ctx context.Context) Emitter {
	emitter, _ := ctx.Value(emitterKey{}).(Emitter)
	return emitter
}

// emit sends an event if an emitter is bound, and is a no-op otherwise.
func emit(ctx context.Context, event Event) error {
	if emitter := EmitterFromContext(ctx); emitter != nil {
		return emitter.Emit(ctx, event)
	}
	return nil
}
