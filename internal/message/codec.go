// Package message converts between Genkit model messages, the stored
// wire form, and the UI-facing shape.
//
// Storage format: user messages are stored verbatim. Assistant and tool
// messages are stored as a JSON array of typed parts so tool calls and
// their results survive round trips. Decoding sniffs the content: a
// parseable JSON part array is expanded, anything else is treated as
// plain text, so legacy plain-text rows keep working.
package message

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"
)

// Roles in the stored and UI representations.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
	RoleSystem    = "system"
)

// Part type tags in the stored JSON form.
const (
	partText       = "text"
	partToolCall   = "tool-call"
	partToolResult = "tool-result"
)

// Tool invocation states in the UI shape.
const (
	StateCall   = "call"
	StateResult = "result"
)

// Record is a stored message: the role plus the encoded content.
type Record struct {
	ID      string
	Role    string
	Content string
}

// ToolInvocation is a tool call surfaced to the UI, optionally merged
// with its result.
type ToolInvocation struct {
	State      string `json:"state"`
	ToolCallID string `json:"toolCallId"`
	ToolName   string `json:"toolName"`
	Args       any    `json:"args,omitempty"`
	Result     any    `json:"result,omitempty"`
}

// UIMessage is the shape chat history is served in.
type UIMessage struct {
	ID              string           `json:"id"`
	Role            string           `json:"role"`
	Content         string           `json:"content"`
	ToolInvocations []ToolInvocation `json:"toolInvocations,omitempty"`
}

// wirePart is one element of the stored JSON array.
type wirePart struct {
	Type       string `json:"type"`
	Text       string `json:"text,omitempty"`
	ToolCallID string `json:"toolCallId,omitempty"`
	ToolName   string `json:"toolName,omitempty"`
	Args       any    `json:"args,omitempty"`
	Result     any    `json:"result,omitempty"`
}

// RoleName maps a Genkit role to the stored role string. Genkit calls
// the assistant role "model".
func RoleName(r ai.Role) string {
	switch r {
	case ai.RoleModel:
		return RoleAssistant
	case ai.RoleTool:
		return RoleTool
	case ai.RoleSystem:
		return RoleSystem
	default:
		return RoleUser
	}
}

// Encode serializes a model message into its stored content string.
func Encode(msg *ai.Message) (string, error) {
	switch msg.Role {
	case ai.RoleUser, ai.RoleSystem:
		var b strings.Builder
		for _, p := range msg.Content {
			if p.IsText() {
				b.WriteString(p.Text)
			}
		}
		return b.String(), nil

	case ai.RoleModel:
		parts := make([]wirePart, 0, len(msg.Content))
		for _, p := range msg.Content {
			switch {
			case p.IsText():
				parts = append(parts, wirePart{Type: partText, Text: p.Text})
			case p.ToolRequest != nil:
				parts = append(parts, wirePart{
					Type:       partToolCall,
					ToolCallID: toolCallID(p.ToolRequest.Ref, p.ToolRequest.Name),
					ToolName:   p.ToolRequest.Name,
					Args:       p.ToolRequest.Input,
				})
			}
		}
		return marshalParts(parts)

	case ai.RoleTool:
		parts := make([]wirePart, 0, len(msg.Content))
		for _, p := range msg.Content {
			if p.ToolResponse == nil {
				continue
			}
			parts = append(parts, wirePart{
				Type:       partToolResult,
				ToolCallID: toolCallID(p.ToolResponse.Ref, p.ToolResponse.Name),
				ToolName:   p.ToolResponse.Name,
				Result:     p.ToolResponse.Output,
			})
		}
		return marshalParts(parts)

	default:
		return "", fmt.Errorf("unsupported message role %q", msg.Role)
	}
}

func marshalParts(parts []wirePart) (string, error) {
	data, err := json.Marshal(parts)
	if err != nil {
		return "", fmt.Errorf("encoding message parts: %w", err)
	}
	return string(data), nil
}

// toolCallID prefers the provider-assigned ref, falling back to the
// tool name when the provider did not assign one.
func toolCallID(ref, name string) string {
	if ref != "" {
		return ref
	}
	return name
}

// decodeParts sniffs content for the stored JSON part array. The bool
// reports whether content was in the structured form.
func decodeParts(content string) ([]wirePart, bool) {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "[") {
		return nil, false
	}
	var parts []wirePart
	if err := json.Unmarshal([]byte(trimmed), &parts); err != nil {
		return nil, false
	}
	return parts, true
}

// DecodeAll converts stored records into UI messages. Tool records do
// not surface as messages of their own: each tool result merges into
// the invocation on the assistant message that made the call, flipping
// its state from "call" to "result", even when other messages landed
// in between.
func DecodeAll(records []Record) []UIMessage {
	out := make([]UIMessage, 0, len(records))
	// pending maps toolCallId to an invocation still awaiting its
	// result, on whichever assistant message made the call.
	pending := make(map[string]*ToolInvocation)

	for _, rec := range records {
		parts, structured := decodeParts(rec.Content)

		switch rec.Role {
		case RoleTool:
			if !structured {
				continue
			}
			for _, p := range parts {
				if p.Type != partToolResult {
					continue
				}
				if inv, ok := pending[p.ToolCallID]; ok {
					inv.State = StateResult
					inv.Result = p.Result
					delete(pending, p.ToolCallID)
				}
			}

		case RoleAssistant:
			msg := UIMessage{ID: rec.ID, Role: RoleAssistant}
			if !structured {
				msg.Content = rec.Content
				out = append(out, msg)
				continue
			}
			var text strings.Builder
			for _, p := range parts {
				switch p.Type {
				case partText:
					text.WriteString(p.Text)
				case partToolCall:
					msg.ToolInvocations = append(msg.ToolInvocations, ToolInvocation{
						State:      StateCall,
						ToolCallID: p.ToolCallID,
						ToolName:   p.ToolName,
						Args:       p.Args,
					})
				}
			}
			msg.Content = text.String()
			out = append(out, msg)
			for i := range msg.ToolInvocations {
				inv := &out[len(out)-1].ToolInvocations[i]
				pending[inv.ToolCallID] = inv
			}

		default:
			out = append(out, UIMessage{ID: rec.ID, Role: rec.Role, Content: rec.Content})
		}
	}
	return out
}

// ToModelMessages reconstructs Genkit messages from stored records, for
// replaying history into a generation request.
func ToModelMessages(records []Record) []*ai.Message {
	out := make([]*ai.Message, 0, len(records))
	for _, rec := range records {
		switch rec.Role {
		case RoleUser:
			out = append(out, ai.NewUserMessage(ai.NewTextPart(rec.Content)))

		case RoleSystem:
			out = append(out, ai.NewSystemMessage(ai.NewTextPart(rec.Content)))

		case RoleAssistant:
			parts, structured := decodeParts(rec.Content)
			if !structured {
				out = append(out, ai.NewModelMessage(ai.NewTextPart(rec.Content)))
				continue
			}
			var content []*ai.Part
			for _, p := range parts {
				switch p.Type {
				case partText:
					content = append(content, ai.NewTextPart(p.Text))
				case partToolCall:
					content = append(content, ai.NewToolRequestPart(&ai.ToolRequest{
						Ref:   p.ToolCallID,
						Name:  p.ToolName,
						Input: p.Args,
					}))
				}
			}
			if len(content) > 0 {
				out = append(out, ai.NewModelMessage(content...))
			}

		case RoleTool:
			parts, structured := decodeParts(rec.Content)
			if !structured {
				continue
			}
			var content []*ai.Part
			for _, p := range parts {
				if p.Type != partToolResult {
					continue
				}
				content = append(content, ai.NewToolResponsePart(&ai.ToolResponse{
					Ref:    p.ToolCallID,
					Name:   p.ToolName,
					Output: p.Result,
				}))
			}
			if len(content) > 0 {
				out = append(out, &ai.Message{Role: ai.RoleTool, Content: content})
			}
		}
	}
	return out
}
