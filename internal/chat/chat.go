package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/google/uuid"

	"github.com/quillhq/quill/internal/log"
	"github.com/quillhq/quill/internal/message"
	"github.com/quillhq/quill/internal/store"
	"github.com/quillhq/quill/internal/tools"
)

var (
	// ErrUnknownModel indicates the request named a model that is not
	// in the catalog.
	ErrUnknownModel = errors.New("unknown chat model")

	// ErrNoUserMessage indicates the request carried no user message to
	// respond to.
	ErrNoUserMessage = errors.New("no user message in request")
)

// Store is the persistence the orchestrator needs.
type Store interface {
	ChatByID(ctx context.Context, id string) (store.Chat, error)
	SaveChat(ctx context.Context, chat store.Chat) error
	MessagesByChat(ctx context.Context, chatID string) ([]store.Message, error)
	SaveMessages(ctx context.Context, msgs []store.Message) error
}

// Sink receives everything a turn streams to the client: model text,
// tool UI events, and the server-assigned IDs of persisted assistant
// messages.
type Sink interface {
	tools.Emitter

	// Text delivers a chunk of the assistant's reply.
	Text(ctx context.Context, delta string) error

	// Annotation delivers the persisted ID of an assistant message so
	// the client can reference it (for voting) without a refetch.
	Annotation(ctx context.Context, messageID string) error
}

// Request is the body of a chat turn.
type Request struct {
	ID       string              `json:"id"`
	Messages []message.UIMessage `json:"messages"`
	ModelID  string              `json:"modelId"`
}

// Orchestrator runs chat turns.
type Orchestrator struct {
	g          *genkit.Genkit
	store      Store
	toolRefs   []ai.ToolRef
	titleModel string
	maxTurns   int
	logger     log.Logger
}

// Config assembles an Orchestrator.
type Config struct {
	Genkit     *genkit.Genkit
	Store      Store
	ToolRefs   []ai.ToolRef
	TitleModel string
	MaxTurns   int
	Logger     log.Logger
}

// New creates an Orchestrator.
func New(cfg Config) *Orchestrator {
	maxTurns := cfg.MaxTurns
	if maxTurns <= 0 {
		maxTurns = 5
	}
	return &Orchestrator{
		g:          cfg.Genkit,
		store:      cfg.Store,
		toolRefs:   cfg.ToolRefs,
		titleModel: cfg.TitleModel,
		maxTurns:   maxTurns,
		logger:     cfg.Logger,
	}
}

// ExecuteTurn runs one conversation turn for the authenticated user:
// ensures the chat exists (titling it on first contact), persists the
// incoming user message, generates the reply with tools enabled, and
// persists the sanitized response messages. Streaming output flows
// through sink for the whole turn.
func (o *Orchestrator) ExecuteTurn(ctx context.Context, userID uuid.UUID, req Request, sink Sink) error {
	modelID := req.ModelID
	if modelID == "" {
		modelID = DefaultModelID
	}
	model, ok := LookupModel(modelID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownModel, modelID)
	}

	userMsg, ok := latestUserMessage(req.Messages)
	if !ok {
		return ErrNoUserMessage
	}

	if err := o.ensureChat(ctx, userID, req.ID, userMsg.Content); err != nil {
		return err
	}

	userMsgID := userMsg.ID
	if userMsgID == "" {
		userMsgID = uuid.NewString()
	}
	err := o.store.SaveMessages(ctx, []store.Message{{
		ID:      userMsgID,
		ChatID:  req.ID,
		Role:    message.RoleUser,
		Content: userMsg.Content,
	}})
	if err != nil {
		return fmt.Errorf("saving user message: %w", err)
	}

	records, err := o.store.MessagesByChat(ctx, req.ID)
	if err != nil {
		return fmt.Errorf("loading chat history: %w", err)
	}
	history := message.ToModelMessages(toRecords(records))

	// Tools read the emitter and user from context.
	genCtx := tools.ContextWithEmitter(ctx, sink)
	genCtx = tools.ContextWithUserID(genCtx, userID)

	resp, err := genkit.Generate(genCtx, o.g,
		ai.WithModelName(model.APIIdentifier),
		ai.WithMessages(history...),
		ai.WithTools(o.toolRefs...),
		ai.WithMaxTurns(o.maxTurns),
		ai.WithStreaming(func(ctx context.Context, chunk *ai.ModelResponseChunk) error {
			if text := chunk.Text(); text != "" {
				return sink.Text(ctx, text)
			}
			return nil
		}),
	)
	if err != nil {
		return fmt.Errorf("generating response: %w", err)
	}

	return o.persistResponse(ctx, req.ID, len(history), resp, sink)
}

// ensureChat creates the chat on first contact and verifies ownership
// afterwards. A concurrent creation racing this one is benign.
func (o *Orchestrator) ensureChat(ctx context.Context, userID uuid.UUID, chatID, firstMessage string) error {
	existing, err := o.store.ChatByID(ctx, chatID)
	switch {
	case err == nil:
		if existing.UserID != userID {
			return store.ErrUnauthorized
		}
		return nil
	case !errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("looking up chat: %w", err)
	}

	title := GenerateTitle(ctx, o.g, o.titleModel, firstMessage)
	err = o.store.SaveChat(ctx, store.Chat{ID: chatID, UserID: userID, Title: title})
	if err != nil {
		if errors.Is(err, store.ErrChatExists) {
			o.logger.Debug("chat created concurrently", "chat_id", chatID)
			return nil
		}
		return fmt.Errorf("creating chat: %w", err)
	}
	o.logger.Info("chat created", "chat_id", chatID, "title", title)
	return nil
}

// persistResponse stores the sanitized model output. The generation
// request accumulates every intermediate message from the tool loop, so
// everything past the input history plus the final message is new.
func (o *Orchestrator) persistResponse(ctx context.Context, chatID string, historyLen int, resp *ai.ModelResponse, sink Sink) error {
	var produced []*ai.Message
	if resp.Request != nil && len(resp.Request.Messages) > historyLen {
		produced = append(produced, resp.Request.Messages[historyLen:]...)
	}
	if resp.Message != nil {
		produced = append(produced, resp.Message)
	}
	produced = message.Sanitize(produced)

	msgs := make([]store.Message, 0, len(produced))
	var assistantIDs []string
	for _, m := range produced {
		content, err := message.Encode(m)
		if err != nil {
			return fmt.Errorf("encoding response message: %w", err)
		}
		id := uuid.NewString()
		msgs = append(msgs, store.Message{
			ID:      id,
			ChatID:  chatID,
			Role:    message.RoleName(m.Role),
			Content: content,
		})
		if m.Role == ai.RoleModel {
			assistantIDs = append(assistantIDs, id)
		}
	}

	if err := o.store.SaveMessages(ctx, msgs); err != nil {
		return fmt.Errorf("saving response messages: %w", err)
	}

	// IDs go out only after the save succeeds, so every annotated
	// message is votable.
	for _, id := range assistantIDs {
		if err := sink.Annotation(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func latestUserMessage(msgs []message.UIMessage) (message.UIMessage, bool) {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == message.RoleUser {
			return msgs[i], true
		}
	}
	return message.UIMessage{}, false
}

func toRecords(msgs []store.Message) []message.Record {
	records := make([]message.Record, len(msgs))
	for i, m := range msgs {
		records[i] = message.Record{ID: m.ID, Role: m.Role, Content: m.Content}
	}
	return records
}
