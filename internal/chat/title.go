package chat

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

const titleSystemPrompt = "You will generate a short title based on the first message " +
	"a user begins a conversation with. Ensure it is not more than 80 characters long. " +
	"The title should be a summary of the user's message. Do not use quotes or colons."

// maxTitleLength bounds chat titles in characters.
const maxTitleLength = 80

// GenerateTitle asks the model for a short chat title derived from the
// first user message. Generation failures fall back to a truncation of
// the message itself: a chat must never fail to create over its title.
func GenerateTitle(ctx context.Context, g *genkit.Genkit, modelName, firstMessage string) string {
	resp, err := genkit.Generate(ctx, g,
		ai.WithModelName(modelName),
		ai.WithSystem(titleSystemPrompt),
		ai.WithPrompt(firstMessage),
	)
	if err == nil {
		if title := cleanTitle(resp.Text()); title != "" {
			return title
		}
	}
	return fallbackTitle(firstMessage)
}

func cleanTitle(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `"'`)
	return truncateRunes(s, maxTitleLength)
}

func fallbackTitle(firstMessage string) string {
	title := truncateRunes(strings.TrimSpace(firstMessage), maxTitleLength)
	if title == "" {
		return "New chat"
	}
	return title
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}
