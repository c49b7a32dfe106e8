// Package chat orchestrates a full conversation turn: chat creation,
// message persistence, model generation with tools, and streaming the
// result back through a Sink.
package chat

// Model describes a selectable chat model.
type Model struct {
	ID            string `json:"id"`
	Label         string `json:"label"`
	APIIdentifier string `json:"-"`
	Description   string `json:"description"`
}

// Models lists the chat models users can pick from. APIIdentifier is
// the provider-qualified name Genkit resolves.
var Models = []Model{
	{
		ID:            "gemini-2.5-flash",
		Label:         "Gemini 2.5 Flash",
		APIIdentifier: "googleai/gemini-2.5-flash",
		Description:   "Fast model for everyday chat",
	},
	{
		ID:            "gemini-2.5-pro",
		Label:         "Gemini 2.5 Pro",
		APIIdentifier: "googleai/gemini-2.5-pro",
		Description:   "Stronger reasoning for complex tasks",
	},
}

// DefaultModelID is used when a request names no model.
const DefaultModelID = "gemini-2.5-flash"

// LookupModel finds a model by ID. The bool is false for unknown IDs.
func LookupModel(id string) (Model, bool) {
	for _, m := range Models {
		if m.ID == id {
			return m, true
		}
	}
	return Model{}, false
}
