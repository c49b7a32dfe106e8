package tools

import (
	"encoding/json"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// Tool names as the model sees them.
const (
	ToolGetWeather         = "getWeather"
	ToolCreateDocument     = "createDocument"
	ToolUpdateDocument     = "updateDocument"
	ToolRequestSuggestions = "requestSuggestions"
)

// toolNames is the single source of truth for registered tool names.
var toolNames = []string{
	ToolGetWeather,
	ToolCreateDocument,
	ToolUpdateDocument,
	ToolRequestSuggestions,
}

// ToolNames returns all registered tool names.
func ToolNames() []string {
	return toolNames
}

// Register defines the tools on the Genkit instance. Tool bodies
// delegate to the Handler; the Genkit closures only adapt parameters.
func Register(g *genkit.Genkit, handler *Handler) {
	genkit.DefineTool(
		g, ToolGetWeather,
		"Get the current weather at a location",
		func(ctx *ai.ToolContext, input WeatherInput) (json.RawMessage, error) {
			return handler.GetWeather(ctx, input)
		},
	)

	genkit.DefineTool(
		g, ToolCreateDocument,
		"Create a document for a writing activity",
		func(ctx *ai.ToolContext, input CreateDocumentInput) (DocumentOutput, error) {
			return handler.CreateDocument(ctx, input)
		},
	)

	genkit.DefineTool(
		g, ToolUpdateDocument,
		"Update a document with the given description",
		func(ctx *ai.ToolContext, input UpdateDocumentInput) (DocumentOutput, error) {
			return handler.UpdateDocument(ctx, input)
		},
	)

	genkit.DefineTool(
		g, ToolRequestSuggestions,
		"Request suggestions for a document",
		func(ctx *ai.ToolContext, input SuggestionsInput) (SuggestionsOutput, error) {
			return handler.RequestSuggestions(ctx, input)
		},
	)
}

// Refs looks up the registered tools for use in a generation request.
func Refs(g *genkit.Genkit) ([]ai.ToolRef, error) {
	refs := make([]ai.ToolRef, 0, len(toolNames))
	for _, name := range toolNames {
		tool := genkit.LookupTool(g, name)
		if tool == nil {
			return nil, fmt.Errorf("tool %q is not registered", name)
		}
		refs = append(refs, tool)
	}
	return refs, nil
}
