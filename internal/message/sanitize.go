package message

import "github.com/firebase/genkit/go/ai"

// Sanitize cleans a model response before persistence:
//
//   - tool requests with no matching tool response anywhere in the
//     sequence are dropped (interrupted generations leave these behind)
//   - empty text parts are dropped
//   - messages left with no parts are dropped
//
// The input is not modified.
func Sanitize(msgs []*ai.Message) []*ai.Message {
	answered := make(map[string]bool)
	for _, msg := range msgs {
		for _, p := range msg.Content {
			if p.ToolResponse != nil {
				answered[toolCallID(p.ToolResponse.Ref, p.ToolResponse.Name)] = true
			}
		}
	}

	out := make([]*ai.Message, 0, len(msgs))
	for _, msg := range msgs {
		kept := make([]*ai.Part, 0, len(msg.Content))
		for _, p := range msg.Content {
			switch {
			case p.IsText():
				if p.Text != "" {
					kept = append(kept, p)
				}
			case p.ToolRequest != nil:
				if answered[toolCallID(p.ToolRequest.Ref, p.ToolRequest.Name)] {
					kept = append(kept, p)
				}
			default:
				kept = append(kept, p)
			}
		}
		if len(kept) == 0 {
			continue
		}
		out = append(out, &ai.Message{
			Role:     msg.Role,
			Content:  kept,
			Metadata: msg.Metadata,
		})
	}
	return out
}
