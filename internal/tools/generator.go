package tools

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// DraftSuggestion is one AI-proposed edit to a document.
type DraftSuggestion struct {
	OriginalSentence  string `json:"originalSentence" jsonschema_description:"The original sentence"`
	SuggestedSentence string `json:"suggestedSentence" jsonschema_description:"The suggested sentence"`
	Description       string `json:"description" jsonschema_description:"The description of the suggestion"`
}

// Generator produces document content and suggestions. The production
// implementation runs a second Genkit generation alongside the chat
// turn; tests substitute a canned one.
type Generator interface {
	// DraftDocument writes a fresh document about the given title,
	// streaming content chunks through onDelta as they arrive.
	DraftDocument(ctx context.Context, title string, onDelta func(delta string) error) (string, error)

	// ReviseDocument rewrites current content per the description,
	// streaming the new content through onDelta.
	ReviseDocument(ctx context.Context, current, description string, onDelta func(delta string) error) (string, error)

	// Suggestions proposes edits to the given content.
	Suggestions(ctx context.Context, content string) ([]DraftSuggestion, error)
}

const (
	draftSystemPrompt = "Write about the given topic. Markdown is supported. Use headings wherever appropriate."

	suggestionsSystemPrompt = "You are a help writing assistant. Given a piece of writing, " +
		"please offer suggestions to improve the piece of writing and describe the change. " +
		"It is very important for the edits to contain full sentences instead of just words."
)

// GenkitGenerator implements Generator over a Genkit instance.
type GenkitGenerator struct {
	g         *genkit.Genkit
	modelName string
}

// NewGenkitGenerator creates a content generator using the given
// provider-qualified model name.
func NewGenkitGenerator(g *genkit.Genkit, modelName string) *GenkitGenerator {
	return &GenkitGenerator{g: g, modelName: modelName}
}

func (gg *GenkitGenerator) DraftDocument(ctx context.Context, title string, onDelta func(string) error) (string, error) {
	resp, err := genkit.Generate(ctx, gg.g,
		ai.WithModelName(gg.modelName),
		ai.WithSystem(draftSystemPrompt),
		ai.WithPrompt(title),
		ai.WithStreaming(func(_ context.Context, chunk *ai.ModelResponseChunk) error {
			if text := chunk.Text(); text != "" {
				return onDelta(text)
			}
			return nil
		}),
	)
	if err != nil {
		return "", fmt.Errorf("drafting document: %w", err)
	}
	return resp.Text(), nil
}

func (gg *GenkitGenerator) ReviseDocument(ctx context.Context, current, description string, onDelta func(string) error) (string, error) {
	resp, err := genkit.Generate(ctx, gg.g,
		ai.WithModelName(gg.modelName),
		ai.WithSystem(revisionSystemPrompt(current)),
		ai.WithPrompt(description),
		ai.WithStreaming(func(_ context.Context, chunk *ai.ModelResponseChunk) error {
			if text := chunk.Text(); text != "" {
				return onDelta(text)
			}
			return nil
		}),
	)
	if err != nil {
		return "", fmt.Errorf("revising document: %w", err)
	}
	return resp.Text(), nil
}

func revisionSystemPrompt(current string) string {
	return "Update the following contents of the document based on the given prompt.\n\n" + current
}

// maxSuggestions bounds how many edits one request produces.
const maxSuggestions = 5

// suggestionList wraps the slice so structured output has an object
// root, which the provider schemas require.
type suggestionList struct {
	Suggestions []DraftSuggestion `json:"suggestions"`
}

func (gg *GenkitGenerator) Suggestions(ctx context.Context, content string) ([]DraftSuggestion, error) {
	out, _, err := genkit.GenerateData[suggestionList](ctx, gg.g,
		ai.WithModelName(gg.modelName),
		ai.WithSystem(suggestionsSystemPrompt),
		ai.WithPrompt(content),
	)
	if err != nil {
		return nil, fmt.Errorf("generating suggestions: %w", err)
	}
	suggestions := out.Suggestions
	if len(suggestions) > maxSuggestions {
		suggestions = suggestions[:maxSuggestions]
	}
	return suggestions, nil
}
