package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// fakeQuerier is an in-memory Querier for unit tests. It mirrors the
// database's constraint behavior, including unique violations on
// (id, created_at) for documents.
type fakeQuerier struct {
	mu        sync.Mutex
	users     map[string]User // by email
	chats     map[string]Chat
	messages  map[string]Message
	votes     map[string]Vote // chatID + "\x00" + messageID
	documents map[string]Document
	sugg      []Suggestion
	uploads   map[string]FileUpload // by storage path

	// insertDocHook runs inside InsertDocument before the write, for
	// injecting conflicts.
	insertDocHook func(Document) error
}

func newFakeQuerier() *fakeQuerier {
	return &fakeQuerier{
		users:     make(map[string]User),
		chats:     make(map[string]Chat),
		messages:  make(map[string]Message),
		votes:     make(map[string]Vote),
		documents: make(map[string]Document),
		uploads:   make(map[string]FileUpload),
	}
}

func docKey(id string, createdAt time.Time) string {
	return id + "\x00" + createdAt.UTC().Format(time.RFC3339Nano)
}

func (f *fakeQuerier) UserByEmail(_ context.Context, email string) (User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[email]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (f *fakeQuerier) InsertUser(_ context.Context, email, passwordHash string) (User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[email]; ok {
		return User{}, ErrUniqueViolation
	}
	u := User{ID: uuid.New(), Email: email, PasswordHash: passwordHash, CreatedAt: time.Now()}
	f.users[email] = u
	return u, nil
}

func (f *fakeQuerier) ChatByID(_ context.Context, id string) (Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.chats[id]
	if !ok {
		return Chat{}, ErrNotFound
	}
	return c, nil
}

func (f *fakeQuerier) InsertChat(_ context.Context, chat Chat) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.chats[chat.ID]; ok {
		return fmt.Errorf("%w: chats_pkey", ErrUniqueViolation)
	}
	f.chats[chat.ID] = chat
	return nil
}

func (f *fakeQuerier) DeleteChat(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.chats[id]; !ok {
		return ErrNotFound
	}
	delete(f.chats, id)
	for mid, m := range f.messages {
		if m.ChatID == id {
			delete(f.messages, mid)
		}
	}
	for k, v := range f.votes {
		if v.ChatID == id {
			delete(f.votes, k)
		}
	}
	return nil
}

func (f *fakeQuerier) ChatsByUser(_ context.Context, userID uuid.UUID) ([]Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Chat
	for _, c := range f.chats {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeQuerier) MessageByID(_ context.Context, id string) (Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.messages[id]
	if !ok {
		return Message{}, ErrNotFound
	}
	return m, nil
}

func (f *fakeQuerier) MessagesByChat(_ context.Context, chatID string) ([]Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Message
	for _, m := range f.messages {
		if m.ChatID == chatID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeQuerier) InsertMessages(_ context.Context, msgs []Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range msgs {
		if _, ok := f.messages[m.ID]; ok {
			return fmt.Errorf("%w: messages_pkey", ErrUniqueViolation)
		}
	}
	for _, m := range msgs {
		f.messages[m.ID] = m
	}
	return nil
}

func (f *fakeQuerier) UpsertVote(_ context.Context, vote Vote) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.votes[vote.ChatID+"\x00"+vote.MessageID] = vote
	return nil
}

func (f *fakeQuerier) VotesByChat(_ context.Context, chatID string) ([]Vote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Vote
	for _, v := range f.votes {
		if v.ChatID == chatID {
			out = append(out, v)
		}
	}
	return out, nil
}

func (f *fakeQuerier) InsertDocument(_ context.Context, doc Document) error {
	f.mu.Lock()
	hook := f.insertDocHook
	f.mu.Unlock()
	if hook != nil {
		if err := hook(doc); err != nil {
			return err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	key := docKey(doc.ID, doc.CreatedAt)
	if _, ok := f.documents[key]; ok {
		return fmt.Errorf("%w: documents_pkey", ErrUniqueViolation)
	}
	f.documents[key] = doc
	return nil
}

func (f *fakeQuerier) LatestDocument(_ context.Context, id string) (Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest Document
	found := false
	for _, d := range f.documents {
		if d.ID == id && (!found || d.CreatedAt.After(latest.CreatedAt)) {
			latest = d
			found = true
		}
	}
	if !found {
		return Document{}, ErrNotFound
	}
	return latest, nil
}

func (f *fakeQuerier) DocumentVersions(_ context.Context, id string) ([]Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Document
	for _, d := range f.documents {
		if d.ID == id {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeQuerier) DeleteDocumentVersionsAfter(_ context.Context, id string, after time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for k, d := range f.documents {
		if d.ID == id && !d.CreatedAt.Before(after) {
			delete(f.documents, k)
			remaining := f.sugg[:0]
			for _, s := range f.sugg {
				if !(s.DocumentID == id && s.DocumentCreatedAt.Equal(d.CreatedAt)) {
					remaining = append(remaining, s)
				}
			}
			f.sugg = remaining
		}
	}
	return nil
}

func (f *fakeQuerier) InsertSuggestions(_ context.Context, suggestions []Suggestion) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sugg = append(f.sugg, suggestions...)
	return nil
}

func (f *fakeQuerier) SuggestionsByDocument(_ context.Context, documentID string) ([]Suggestion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Suggestion
	for _, s := range f.sugg {
		if s.DocumentID == documentID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeQuerier) FileUploadByPath(_ context.Context, storagePath string) (FileUpload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.uploads[storagePath]
	if !ok {
		return FileUpload{}, ErrNotFound
	}
	return u, nil
}

func (f *fakeQuerier) InsertFileUpload(_ context.Context, upload FileUpload) (FileUpload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.uploads[upload.StoragePath]; ok {
		return FileUpload{}, fmt.Errorf("%w: file_uploads_storage_path_key", ErrUniqueViolation)
	}
	upload.CreatedAt = time.Now()
	f.uploads[upload.StoragePath] = upload
	return upload, nil
}
