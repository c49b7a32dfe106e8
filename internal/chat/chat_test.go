package chat

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillhq/quill/internal/log"
	"github.com/quillhq/quill/internal/message"
	"github.com/quillhq/quill/internal/store"
	"github.com/quillhq/quill/internal/testutil"
	"github.com/quillhq/quill/internal/tools"
)

// fakeChatStore implements Store in memory.
type fakeChatStore struct {
	mu       sync.Mutex
	chats    map[string]store.Chat
	messages []store.Message
}

func newFakeChatStore() *fakeChatStore {
	return &fakeChatStore{chats: make(map[string]store.Chat)}
}

func (f *fakeChatStore) ChatByID(_ context.Context, id string) (store.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.chats[id]
	if !ok {
		return store.Chat{}, store.ErrNotFound
	}
	return c, nil
}

func (f *fakeChatStore) SaveChat(_ context.Context, chat store.Chat) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.chats[chat.ID]; ok {
		return store.ErrChatExists
	}
	chat.CreatedAt = time.Now()
	f.chats[chat.ID] = chat
	return nil
}

func (f *fakeChatStore) MessagesByChat(_ context.Context, chatID string) ([]store.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.Message
	for _, m := range f.messages {
		if m.ChatID == chatID {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeChatStore) SaveMessages(_ context.Context, msgs []store.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	base := time.Now()
	for i, m := range msgs {
		if m.CreatedAt.IsZero() {
			m.CreatedAt = base.Add(time.Duration(len(f.messages)+i) * time.Millisecond)
		}
		f.messages = append(f.messages, m)
	}
	return nil
}

// captureSink records everything a turn streams.
type captureSink struct {
	mu          sync.Mutex
	text        []string
	events      []tools.Event
	annotations []string
}

func (c *captureSink) Text(_ context.Context, delta string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.text = append(c.text, delta)
	return nil
}

func (c *captureSink) Emit(_ context.Context, event tools.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}

func (c *captureSink) Annotation(_ context.Context, messageID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.annotations = append(c.annotations, messageID)
	return nil
}

func (c *captureSink) fullText() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out string
	for _, t := range c.text {
		out += t
	}
	return out
}

// withTestModel temporarily maps a catalog entry onto the mock model.
func withTestModel(t *testing.T) {
	t.Helper()
	orig := Models
	Models = append([]Model{{
		ID:            "test-model",
		Label:         "Test Model",
		APIIdentifier: testutil.MockModelName,
	}}, orig...)
	t.Cleanup(func() { Models = orig })
}

func newTestOrchestrator(t *testing.T, mock *testutil.MockLLM, toolRefs []ai.ToolRef) (*Orchestrator, *fakeChatStore) {
	t.Helper()
	g := genkit.Init(context.Background())
	mock.RegisterModel(g)
	st := newFakeChatStore()
	o := New(Config{
		Genkit:     g,
		Store:      st,
		ToolRefs:   toolRefs,
		TitleModel: testutil.MockModelName,
		MaxTurns:   5,
		Logger:     log.NewNop(),
	})
	return o, st
}

func userRequest(chatID, text string) Request {
	return Request{
		ID:      chatID,
		ModelID: "test-model",
		Messages: []message.UIMessage{
			{ID: uuid.NewString(), Role: message.RoleUser, Content: text},
		},
	}
}

func TestExecuteTurn(t *testing.T) {
	withTestModel(t)
	ctx := context.Background()

	t.Run("first turn creates chat and streams reply", func(t *testing.T) {
		mock := testutil.NewMockLLM("fallback")
		mock.AddResponse("hello", "Hi there!")
		o, st := newTestOrchestrator(t, mock, nil)
		sink := &captureSink{}
		userID := uuid.New()

		err := o.ExecuteTurn(ctx, userID, userRequest("chat-1", "hello"), sink)
		require.NoError(t, err)

		chat, err := st.ChatByID(ctx, "chat-1")
		require.NoError(t, err)
		assert.Equal(t, userID, chat.UserID)
		assert.NotEmpty(t, chat.Title)

		assert.Equal(t, "Hi there!", sink.fullText())

		msgs, err := st.MessagesByChat(ctx, "chat-1")
		require.NoError(t, err)
		require.Len(t, msgs, 2)
		assert.Equal(t, message.RoleUser, msgs[0].Role)
		assert.Equal(t, "hello", msgs[0].Content)
		assert.Equal(t, message.RoleAssistant, msgs[1].Role)

		require.Len(t, sink.annotations, 1)
		assert.Equal(t, msgs[1].ID, sink.annotations[0],
			"annotation must carry the persisted assistant message ID")
	})

	t.Run("second turn reuses existing chat", func(t *testing.T) {
		mock := testutil.NewMockLLM("ok")
		o, st := newTestOrchestrator(t, mock, nil)
		userID := uuid.New()

		require.NoError(t, o.ExecuteTurn(ctx, userID, userRequest("chat-1", "first"), sinkDiscard()))
		require.NoError(t, o.ExecuteTurn(ctx, userID, userRequest("chat-1", "second"), sinkDiscard()))

		msgs, err := st.MessagesByChat(ctx, "chat-1")
		require.NoError(t, err)
		assert.Len(t, msgs, 4)
	})

	t.Run("unknown model", func(t *testing.T) {
		mock := testutil.NewMockLLM("ok")
		o, _ := newTestOrchestrator(t, mock, nil)

		req := userRequest("chat-1", "hi")
		req.ModelID = "gpt-99"
		err := o.ExecuteTurn(ctx, uuid.New(), req, sinkDiscard())
		assert.ErrorIs(t, err, ErrUnknownModel)
	})

	t.Run("no user message", func(t *testing.T) {
		mock := testutil.NewMockLLM("ok")
		o, _ := newTestOrchestrator(t, mock, nil)

		req := Request{ID: "chat-1", ModelID: "test-model"}
		err := o.ExecuteTurn(ctx, uuid.New(), req, sinkDiscard())
		assert.ErrorIs(t, err, ErrNoUserMessage)
	})

	t.Run("foreign chat is rejected", func(t *testing.T) {
		mock := testutil.NewMockLLM("ok")
		o, st := newTestOrchestrator(t, mock, nil)
		owner := uuid.New()
		require.NoError(t, st.SaveChat(ctx, store.Chat{ID: "chat-1", UserID: owner, Title: "t"}))

		err := o.ExecuteTurn(ctx, uuid.New(), userRequest("chat-1", "hi"), sinkDiscard())
		assert.ErrorIs(t, err, store.ErrUnauthorized)
	})
}

func TestExecuteTurnWithTool(t *testing.T) {
	withTestModel(t)
	ctx := context.Background()

	g := genkit.Init(ctx)
	mock := testutil.NewMockLLM("done")
	mock.RegisterModel(g)

	echo := genkit.DefineTool(g, "echoTool", "Echo the input back",
		func(_ *ai.ToolContext, input struct {
			Value string `json:"value"`
		}) (string, error) {
			return "echo: " + input.Value, nil
		})
	mock.AddToolResponse("use the tool", []*ai.ToolRequest{
		{Name: "echoTool", Input: map[string]any{"value": "ping"}},
	}, "The tool said ping.")

	st := newFakeChatStore()
	o := New(Config{
		Genkit:     g,
		Store:      st,
		ToolRefs:   []ai.ToolRef{echo},
		TitleModel: testutil.MockModelName,
		MaxTurns:   5,
		Logger:     log.NewNop(),
	})

	sink := &captureSink{}
	err := o.ExecuteTurn(ctx, uuid.New(), userRequest("chat-1", "use the tool"), sink)
	require.NoError(t, err)

	msgs, err := st.MessagesByChat(ctx, "chat-1")
	require.NoError(t, err)

	// user + assistant(tool-call) + tool(result) + assistant(text)
	require.Len(t, msgs, 4)
	assert.Equal(t, message.RoleUser, msgs[0].Role)
	assert.Equal(t, message.RoleAssistant, msgs[1].Role)
	assert.Contains(t, msgs[1].Content, "tool-call")
	assert.Equal(t, message.RoleTool, msgs[2].Role)
	assert.Contains(t, msgs[2].Content, "tool-result")
	assert.Equal(t, message.RoleAssistant, msgs[3].Role)

	// Both assistant messages get annotated.
	assert.Len(t, sink.annotations, 2)
}

func sinkDiscard() Sink { return &captureSink{} }

func TestLookupModel(t *testing.T) {
	m, ok := LookupModel(DefaultModelID)
	require.True(t, ok)
	assert.Equal(t, "googleai/gemini-2.5-flash", m.APIIdentifier)

	_, ok = LookupModel("nope")
	assert.False(t, ok)
}

func TestFallbackTitle(t *testing.T) {
	assert.Equal(t, "New chat", fallbackTitle("   "))
	assert.Equal(t, "hello", fallbackTitle("hello"))

	long := make([]rune, 200)
	for i := range long {
		long[i] = 'x'
	}
	assert.Len(t, []rune(fallbackTitle(string(long))), maxTitleLength)
}
