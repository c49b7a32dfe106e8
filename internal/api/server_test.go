package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillhq/quill/internal/blob"
	"github.com/quillhq/quill/internal/chat"
	"github.com/quillhq/quill/internal/log"
	"github.com/quillhq/quill/internal/message"
	"github.com/quillhq/quill/internal/store"
	"github.com/quillhq/quill/internal/testutil"
	"github.com/quillhq/quill/internal/tools"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

type fakeStore struct {
	chats       map[string]store.Chat
	messages    map[string][]store.Message
	votes       map[string]store.Vote
	documents   map[string][]store.Document
	suggestions map[string][]store.Suggestion
	uploads     map[string]store.FileUpload

	err error // when set, every call fails with it
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		chats:       make(map[string]store.Chat),
		messages:    make(map[string][]store.Message),
		votes:       make(map[string]store.Vote),
		documents:   make(map[string][]store.Document),
		suggestions: make(map[string][]store.Suggestion),
		uploads:     make(map[string]store.FileUpload),
	}
}

func (f *fakeStore) ChatByID(_ context.Context, id string) (store.Chat, error) {
	if f.err != nil {
		return store.Chat{}, f.err
	}
	c, ok := f.chats[id]
	if !ok {
		return store.Chat{}, store.ErrNotFound
	}
	return c, nil
}

func (f *fakeStore) ChatsByUser(_ context.Context, userID uuid.UUID) ([]store.Chat, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []store.Chat
	for _, c := range f.chats {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeStore) DeleteChat(_ context.Context, id string, userID uuid.UUID) error {
	if f.err != nil {
		return f.err
	}
	c, ok := f.chats[id]
	if !ok {
		return store.ErrNotFound
	}
	if c.UserID != userID {
		return store.ErrUnauthorized
	}
	delete(f.chats, id)
	return nil
}

func (f *fakeStore) MessagesByChat(_ context.Context, chatID string) ([]store.Message, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.messages[chatID], nil
}

func (f *fakeStore) VotesByChat(_ context.Context, chatID string) ([]store.Vote, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []store.Vote
	for _, v := range f.votes {
		if v.ChatID == chatID {
			out = append(out, v)
		}
	}
	return out, nil
}

func (f *fakeStore) VoteMessage(_ context.Context, vote store.Vote) error {
	if f.err != nil {
		return f.err
	}
	found := false
	for _, m := range f.messages[vote.ChatID] {
		if m.ID == vote.MessageID {
			found = true
			break
		}
	}
	if !found {
		return store.ErrMessageNotFound
	}
	f.votes[vote.ChatID+"/"+vote.MessageID] = vote
	return nil
}

func (f *fakeStore) SaveDocument(_ context.Context, id, title, content string, userID uuid.UUID) (store.Document, error) {
	if f.err != nil {
		return store.Document{}, f.err
	}
	// Distinct, increasing stamps regardless of clock resolution.
	createdAt := time.Now().Add(time.Duration(len(f.documents[id])) * time.Second)
	doc := store.Document{ID: id, Title: title, Content: content, UserID: userID, CreatedAt: createdAt}
	f.documents[id] = append(f.documents[id], doc)
	return doc, nil
}

func (f *fakeStore) LatestDocument(_ context.Context, id string) (store.Document, error) {
	if f.err != nil {
		return store.Document{}, f.err
	}
	versions := f.documents[id]
	if len(versions) == 0 {
		return store.Document{}, store.ErrNotFound
	}
	return versions[len(versions)-1], nil
}

func (f *fakeStore) DocumentVersions(_ context.Context, id string) ([]store.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.documents[id], nil
}

func (f *fakeStore) DeleteDocumentVersionsAfter(_ context.Context, id string, after time.Time, userID uuid.UUID) error {
	if f.err != nil {
		return f.err
	}
	versions := f.documents[id]
	if len(versions) == 0 {
		return store.ErrNotFound
	}
	if versions[0].UserID != userID {
		return store.ErrUnauthorized
	}
	var kept []store.Document
	for _, v := range versions {
		if v.CreatedAt.Before(after) {
			kept = append(kept, v)
		}
	}
	f.documents[id] = kept
	return nil
}

func (f *fakeStore) SuggestionsByDocument(_ context.Context, documentID string) ([]store.Suggestion, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.suggestions[documentID], nil
}

func (f *fakeStore) SaveFileUpload(_ context.Context, upload store.FileUpload) (store.FileUpload, error) {
	if f.err != nil {
		return store.FileUpload{}, f.err
	}
	if existing, ok := f.uploads[upload.StoragePath]; ok {
		return existing, nil
	}
	upload.CreatedAt = time.Now()
	f.uploads[upload.StoragePath] = upload
	return upload, nil
}

// fakeRunner scripts one chat turn.
type fakeRunner struct {
	run func(ctx context.Context, userID uuid.UUID, req chat.Request, sink chat.Sink) error

	gotUserID uuid.UUID
	gotReq    chat.Request
}

func (f *fakeRunner) ExecuteTurn(ctx context.Context, userID uuid.UUID, req chat.Request, sink chat.Sink) error {
	f.gotUserID = userID
	f.gotReq = req
	if f.run == nil {
		return nil
	}
	return f.run(ctx, userID, req, sink)
}

func signToken(t *testing.T, userID uuid.UUID) string {
	t.Helper()
	claims := Claims{
		UserID: userID.String(),
		Email:  "test@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	require.NoError(t, err)
	return token
}

func newTestServer(t *testing.T, st *fakeStore, runner *fakeRunner) *httptest.Server {
	t.Helper()
	blobStore, err := blob.NewStore(t.TempDir(), "http://localhost:8080/files")
	require.NoError(t, err)

	srv := NewServer(ServerConfig{
		Store:     st,
		Runner:    runner,
		Blob:      blobStore,
		JWTSecret: testSecret,
		Registry:  prometheus.NewRegistry(),
		Logger:    log.NewNop(),
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func doRequest(t *testing.T, ts *httptest.Server, method, path, token string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, ts.URL+path, reader)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	return resp
}

func TestAuthRequired(t *testing.T) {
	ts := newTestServer(t, newFakeStore(), &fakeRunner{})

	resp := doRequest(t, ts, http.MethodGet, "/api/v1/history", "", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp2 := doRequest(t, ts, http.MethodGet, "/api/v1/history", "not-a-token", nil)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp2.StatusCode)
}

func TestHealthIsPublic(t *testing.T) {
	ts := newTestServer(t, newFakeStore(), &fakeRunner{})

	resp := doRequest(t, ts, http.MethodGet, "/health", "", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestChatStream(t *testing.T) {
	userID := uuid.New()
	runner := &fakeRunner{
		run: func(ctx context.Context, _ uuid.UUID, _ chat.Request, sink chat.Sink) error {
			require.NoError(t, sink.Text(ctx, "Hello"))
			require.NoError(t, sink.Text(ctx, ", world"))
			require.NoError(t, sink.Emit(ctx, tools.Event{Type: tools.EventTitle, Content: "Report"}))
			require.NoError(t, sink.Annotation(ctx, "msg-1"))
			return nil
		},
	}
	ts := newTestServer(t, newFakeStore(), runner)

	resp := doRequest(t, ts, http.MethodPost, "/api/v1/chat", signToken(t, userID), chat.Request{
		ID:       "chat-1",
		Messages: []message.UIMessage{{ID: "u1", Role: "user", Content: "hi"}},
		ModelID:  "gemini-2.5-flash",
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	events := testutil.ParseSSEEvents(t, string(body))
	chunks := testutil.FindAllEvents(events, "chunk")
	require.Len(t, chunks, 2)
	assert.Contains(t, chunks[0].Data, "Hello")

	require.NotNil(t, testutil.FindEvent(events, string(tools.EventTitle)))

	annotation := testutil.FindEvent(events, "annotation")
	require.NotNil(t, annotation)
	assert.Contains(t, annotation.Data, "messageIdFromServer")
	assert.Contains(t, annotation.Data, "msg-1")

	require.NotNil(t, testutil.FindEvent(events, "done"))
	assert.Equal(t, userID, runner.gotUserID)
	assert.Equal(t, "chat-1", runner.gotReq.ID)
}

func TestChatStreamError(t *testing.T) {
	runner := &fakeRunner{
		run: func(context.Context, uuid.UUID, chat.Request, chat.Sink) error {
			return errors.New("model unavailable")
		},
	}
	ts := newTestServer(t, newFakeStore(), runner)

	resp := doRequest(t, ts, http.MethodPost, "/api/v1/chat", signToken(t, uuid.New()), chat.Request{
		ID:       "chat-1",
		Messages: []message.UIMessage{{ID: "u1", Role: "user", Content: "hi"}},
	})
	defer resp.Body.Close()
	// Headers were already sent; the failure arrives as an event.
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	events := testutil.ParseSSEEvents(t, string(body))
	errEvent := testutil.FindEvent(events, "error")
	require.NotNil(t, errEvent)
	assert.Contains(t, errEvent.Data, "internal_error")
	assert.Nil(t, testutil.FindEvent(events, "done"))
}

func TestChatRequestValidation(t *testing.T) {
	userID := uuid.New()
	st := newFakeStore()
	st.chats["taken"] = store.Chat{ID: "taken", UserID: uuid.New()}
	ts := newTestServer(t, st, &fakeRunner{})
	token := signToken(t, userID)

	tests := []struct {
		name string
		req  chat.Request
		want int
	}{
		{"missing chat id", chat.Request{}, http.StatusBadRequest},
		{
			"unknown model",
			chat.Request{
				ID:       "chat-1",
				Messages: []message.UIMessage{{Role: "user", Content: "hi"}},
				ModelID:  "gpt-99",
			},
			http.StatusNotFound,
		},
		{
			"no user message",
			chat.Request{ID: "chat-1"},
			http.StatusBadRequest,
		},
		{
			"someone else's chat",
			chat.Request{
				ID:       "taken",
				Messages: []message.UIMessage{{Role: "user", Content: "hi"}},
			},
			http.StatusUnauthorized,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doRequest(t, ts, http.MethodPost, "/api/v1/chat", token, tt.req)
			defer resp.Body.Close()
			assert.Equal(t, tt.want, resp.StatusCode)
			assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
		})
	}
}

func TestHistory(t *testing.T) {
	userID := uuid.New()
	st := newFakeStore()
	st.chats["chat-1"] = store.Chat{ID: "chat-1", UserID: userID, Title: "First"}
	st.chats["chat-2"] = store.Chat{ID: "chat-2", UserID: uuid.New(), Title: "Someone else's"}
	ts := newTestServer(t, st, &fakeRunner{})

	resp := doRequest(t, ts, http.MethodGet, "/api/v1/history", signToken(t, userID), nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var chats []store.Chat
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&chats))
	require.Len(t, chats, 1)
	assert.Equal(t, "chat-1", chats[0].ID)
}

func TestDeleteChat(t *testing.T) {
	userID := uuid.New()
	st := newFakeStore()
	st.chats["chat-1"] = store.Chat{ID: "chat-1", UserID: userID}
	ts := newTestServer(t, st, &fakeRunner{})

	resp := doRequest(t, ts, http.MethodDelete, "/api/v1/chat?id=chat-1", signToken(t, userID), nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, st.chats)

	resp2 := doRequest(t, ts, http.MethodDelete, "/api/v1/chat?id=chat-1", signToken(t, userID), nil)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp2.StatusCode)
}

func TestDeleteChatForeign(t *testing.T) {
	st := newFakeStore()
	st.chats["chat-1"] = store.Chat{ID: "chat-1", UserID: uuid.New()}
	ts := newTestServer(t, st, &fakeRunner{})

	resp := doRequest(t, ts, http.MethodDelete, "/api/v1/chat?id=chat-1", signToken(t, uuid.New()), nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestChatMessages(t *testing.T) {
	userID := uuid.New()
	st := newFakeStore()
	st.chats["chat-1"] = store.Chat{ID: "chat-1", UserID: userID}
	st.messages["chat-1"] = []store.Message{
		{ID: "m1", ChatID: "chat-1", Role: "user", Content: "Hi there"},
		{ID: "m2", ChatID: "chat-1", Role: "assistant", Content: `[{"type":"text","text":"Hello!"}]`},
	}
	ts := newTestServer(t, st, &fakeRunner{})

	resp := doRequest(t, ts, http.MethodGet, "/api/v1/chat/messages?chatId=chat-1", signToken(t, userID), nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var msgs []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&msgs))
	require.Len(t, msgs, 2)
	assert.Equal(t, "Hi there", msgs[0]["content"])
	assert.Equal(t, "Hello!", msgs[1]["content"])
}

func TestChatMessagesForeign(t *testing.T) {
	st := newFakeStore()
	st.chats["chat-1"] = store.Chat{ID: "chat-1", UserID: uuid.New()}
	ts := newTestServer(t, st, &fakeRunner{})

	resp := doRequest(t, ts, http.MethodGet, "/api/v1/chat/messages?chatId=chat-1", signToken(t, uuid.New()), nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestDocumentLifecycle(t *testing.T) {
	userID := uuid.New()
	st := newFakeStore()
	ts := newTestServer(t, st, &fakeRunner{})
	token := signToken(t, userID)

	// Unknown document.
	resp := doRequest(t, ts, http.MethodGet, "/api/v1/document?id=doc-1", token, nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Save two versions.
	for _, content := range []string{"v1", "v2"} {
		resp := doRequest(t, ts, http.MethodPost, "/api/v1/document?id=doc-1", token,
			saveDocumentRequest{Title: "Essay", Content: content})
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp2 := doRequest(t, ts, http.MethodGet, "/api/v1/document?id=doc-1", token, nil)
	defer resp2.Body.Close()
	require.Equal(t, http.StatusOK, resp2.StatusCode)

	var versions []store.Document
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&versions))
	require.Len(t, versions, 2)
	assert.Equal(t, "v2", versions[1].Content)

	// Revert to the first version by pruning from the second onward.
	resp3 := doRequest(t, ts, http.MethodPatch, "/api/v1/document?id=doc-1", token,
		revertDocumentRequest{Timestamp: versions[1].CreatedAt})
	defer resp3.Body.Close()
	require.Equal(t, http.StatusOK, resp3.StatusCode)
	require.Len(t, st.documents["doc-1"], 1)
	assert.Equal(t, "v1", st.documents["doc-1"][0].Content)
}

func TestGetDocumentForeign(t *testing.T) {
	st := newFakeStore()
	st.documents["doc-1"] = []store.Document{{ID: "doc-1", UserID: uuid.New(), CreatedAt: time.Now()}}
	ts := newTestServer(t, st, &fakeRunner{})

	resp := doRequest(t, ts, http.MethodGet, "/api/v1/document?id=doc-1", signToken(t, uuid.New()), nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSuggestions(t *testing.T) {
	userID := uuid.New()
	st := newFakeStore()
	st.documents["doc-1"] = []store.Document{{ID: "doc-1", UserID: userID, CreatedAt: time.Now()}}
	st.suggestions["doc-1"] = []store.Suggestion{
		{ID: uuid.New(), DocumentID: "doc-1", OriginalText: "teh", SuggestedText: "the"},
	}
	ts := newTestServer(t, st, &fakeRunner{})

	resp := doRequest(t, ts, http.MethodGet, "/api/v1/suggestions?documentId=doc-1", signToken(t, userID), nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var suggestions []store.Suggestion
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&suggestions))
	require.Len(t, suggestions, 1)
	assert.Equal(t, "the", suggestions[0].SuggestedText)
}

func TestVote(t *testing.T) {
	userID := uuid.New()
	st := newFakeStore()
	st.chats["chat-1"] = store.Chat{ID: "chat-1", UserID: userID}
	st.messages["chat-1"] = []store.Message{{ID: "m1", ChatID: "chat-1", Role: "assistant"}}
	ts := newTestServer(t, st, &fakeRunner{})
	token := signToken(t, userID)

	resp := doRequest(t, ts, http.MethodPatch, "/api/v1/vote", token,
		voteRequest{ChatID: "chat-1", MessageID: "m1", Type: "up"})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Re-voting overwrites.
	resp2 := doRequest(t, ts, http.MethodPatch, "/api/v1/vote", token,
		voteRequest{ChatID: "chat-1", MessageID: "m1", Type: "down"})
	defer resp2.Body.Close()
	require.Equal(t, http.StatusOK, resp2.StatusCode)

	resp3 := doRequest(t, ts, http.MethodGet, "/api/v1/vote?chatId=chat-1", token, nil)
	defer resp3.Body.Close()
	require.Equal(t, http.StatusOK, resp3.StatusCode)

	var votes []store.Vote
	require.NoError(t, json.NewDecoder(resp3.Body).Decode(&votes))
	require.Len(t, votes, 1)
	assert.False(t, votes[0].IsUpvoted)
}

func TestVoteValidation(t *testing.T) {
	userID := uuid.New()
	st := newFakeStore()
	st.chats["chat-1"] = store.Chat{ID: "chat-1", UserID: userID}
	ts := newTestServer(t, st, &fakeRunner{})
	token := signToken(t, userID)

	resp := doRequest(t, ts, http.MethodPatch, "/api/v1/vote", token,
		voteRequest{ChatID: "chat-1", MessageID: "m1", Type: "sideways"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Message not in the chat.
	resp2 := doRequest(t, ts, http.MethodPatch, "/api/v1/vote", token,
		voteRequest{ChatID: "chat-1", MessageID: "ghost", Type: "up"})
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp2.StatusCode)
}

func uploadFile(t *testing.T, ts *httptest.Server, token, filename, contentType, content string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Disposition": {fmt.Sprintf(`form-data; name="file"; filename=%q`, filename)},
		"Content-Type":        {contentType},
	})
	require.NoError(t, err)
	_, err = io.WriteString(part, content)
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("chatId", "chat-1"))
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/v1/files/upload", &buf)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	return resp
}

func TestUploadAndServe(t *testing.T) {
	userID := uuid.New()
	st := newFakeStore()
	ts := newTestServer(t, st, &fakeRunner{})
	token := signToken(t, userID)

	resp := uploadFile(t, ts, token, "My Photo.PNG", "image/png", "fake png bytes")
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out uploadResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "image/png", out.ContentType)
	assert.True(t, strings.HasSuffix(out.Pathname, "/chat-1/my_photo.png"), out.Pathname)
	require.Len(t, st.uploads, 1)

	// Fetch it back through the file endpoint.
	req, err := http.NewRequest(http.MethodGet, ts.URL+"/files/"+out.Pathname, nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	resp2, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp2.Body.Close()
	require.Equal(t, http.StatusOK, resp2.StatusCode)

	body, err := io.ReadAll(resp2.Body)
	require.NoError(t, err)
	assert.Equal(t, "fake png bytes", string(body))
}

func TestUploadRejectsUnsupportedType(t *testing.T) {
	ts := newTestServer(t, newFakeStore(), &fakeRunner{})

	resp := uploadFile(t, ts, signToken(t, uuid.New()), "notes.txt", "text/plain", "hello")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
