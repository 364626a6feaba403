package chat_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hkacimi/studymate/internal/backend"
	"github.com/hkacimi/studymate/internal/chat"
	"github.com/hkacimi/studymate/internal/identity"
	"github.com/hkacimi/studymate/internal/models"
)

// fakeBackend records every AskRequest and replays a scripted stream.
type fakeBackend struct {
	mu       sync.Mutex
	requests []backend.AskRequest

	chunks  []string // streamed before EOF
	askErr  error    // returned instead of a stream
	readErr error    // returned mid-stream, after the chunks
}

func (f *fakeBackend) Ask(_ context.Context, req backend.AskRequest) (io.ReadCloser, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.askErr != nil {
		return nil, f.askErr
	}
	return &chunkReader{chunks: append([]string(nil), f.chunks...), err: f.readErr}, nil
}

func (f *fakeBackend) recorded() []backend.AskRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]backend.AskRequest(nil), f.requests...)
}

// chunkReader hands out one scripted chunk per Read call.
type chunkReader struct {
	chunks []string
	err    error
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if len(r.chunks) == 0 {
		if r.err != nil {
			err := r.err
			r.err = nil
			return 0, err
		}
		return 0, io.EOF
	}
	n := copy(p, r.chunks[0])
	r.chunks = r.chunks[1:]
	return n, nil
}

func (r *chunkReader) Close() error { return nil }

// countingStore wraps a Store and counts writes.
type countingStore struct {
	identity.Store
	saves int
}

func (s *countingStore) Save(id models.Identity) error {
	s.saves++
	return s.Store.Save(id)
}

func newSession(t *testing.T, fb *fakeBackend, opts ...chat.Option) *chat.Session {
	t.Helper()
	return chat.NewSession(fb, identity.NewMemoryStore(), nil, opts...)
}

func TestSubmitEmptyIsNoOp(t *testing.T) {
	fb := &fakeBackend{}
	s := newSession(t, fb)
	s.UpdateDraft("   ")

	require.NoError(t, s.Submit(context.Background(), chat.SubmitOptions{}))

	assert.Empty(t, s.Messages())
	assert.Equal(t, "   ", s.Draft())
	assert.False(t, s.Loading())
	assert.False(t, s.Submitting())
	assert.Empty(t, fb.recorded())
}

func TestSubmitOptimisticAppend(t *testing.T) {
	fb := &fakeBackend{}
	var sawUserTurnFirst bool
	s := chat.NewSession(fb, identity.NewMemoryStore(), nil,
		chat.WithOnChange(func(snap chat.Snapshot) {
			if sawUserTurnFirst || len(snap.Messages) == 0 {
				return
			}
			last := snap.Messages[len(snap.Messages)-1]
			sawUserTurnFirst = last.Role == models.RoleUser && last.Content == "T"
		}))

	s.UpdateDraft("  T  ")
	require.NoError(t, s.Submit(context.Background(), chat.SubmitOptions{}))

	assert.True(t, sawUserTurnFirst, "user message must appear before any response")
	msgs := s.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, models.RoleUser, msgs[0].Role)
	assert.Equal(t, "T", msgs[0].Content)
	assert.Equal(t, "", s.Draft(), "typed-and-sent flow clears the draft")
}

func TestStreamingMonotonicity(t *testing.T) {
	fb := &fakeBackend{chunks: []string{"Hel", "lo"}}

	var streamed []string
	s := chat.NewSession(fb, identity.NewMemoryStore(), nil,
		chat.WithOnChange(func(snap chat.Snapshot) {
			var live int
			for _, m := range snap.Messages {
				if m.IsStreaming() {
					live++
					streamed = append(streamed, m.Content)
				}
			}
			assert.LessOrEqual(t, live, 1, "at most one streaming message")
		}))

	s.UpdateDraft("T")
	require.NoError(t, s.Submit(context.Background(), chat.SubmitOptions{}))

	assert.Equal(t, []string{"Hel", "Hello"}, streamed)

	msgs := s.Messages()
	require.Len(t, msgs, 2)
	final := msgs[1]
	assert.Equal(t, models.RoleAssistant, final.Role)
	assert.Equal(t, "Hello", final.Content)
	assert.NotEqual(t, models.StreamingID, final.ID)
	assert.NotEmpty(t, final.ID)
}

func TestFinalizesEmptyResponse(t *testing.T) {
	fb := &fakeBackend{}
	s := newSession(t, fb)
	s.UpdateDraft("T")

	require.NoError(t, s.Submit(context.Background(), chat.SubmitOptions{}))

	msgs := s.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, models.RoleAssistant, msgs[1].Role)
	assert.Equal(t, "", msgs[1].Content)
	assert.NotEqual(t, models.StreamingID, msgs[1].ID)
}

func TestLoadingFlagsClearWhenStreamStarts(t *testing.T) {
	fb := &fakeBackend{chunks: []string{"Hi"}}

	var sawBothSet, clearBeforeFirstChunk bool
	s := chat.NewSession(fb, identity.NewMemoryStore(), nil,
		chat.WithOnChange(func(snap chat.Snapshot) {
			if snap.Loading && snap.Submitting {
				sawBothSet = true
			}
			for _, m := range snap.Messages {
				if m.IsStreaming() && !snap.Loading && !snap.Submitting {
					clearBeforeFirstChunk = true
				}
			}
		}))

	s.UpdateDraft("T")
	require.NoError(t, s.Submit(context.Background(), chat.SubmitOptions{}))

	assert.True(t, sawBothSet)
	assert.True(t, clearBeforeFirstChunk)
	assert.False(t, s.Loading())
	assert.False(t, s.Submitting())
}

func TestQuickPromptDedup(t *testing.T) {
	fb := &fakeBackend{chunks: []string{"ok"}}
	s := newSession(t, fb)

	require.NoError(t, s.SubmitInitialPrompt(context.Background(), "Explain X"))
	require.NoError(t, s.SubmitInitialPrompt(context.Background(), "Explain X"))

	var userTurns int
	for _, m := range s.Messages() {
		if m.Role == models.RoleUser && m.Content == "Explain X" {
			userTurns++
		}
	}
	assert.Equal(t, 1, userTurns)
	assert.Len(t, fb.recorded(), 2, "the request itself still goes out")
}

func TestGuestBootstrapIdempotent(t *testing.T) {
	fb := &fakeBackend{chunks: []string{"ok"}}
	store := &countingStore{Store: identity.NewMemoryStore()}
	s := chat.NewSession(fb, store, nil)

	s.UpdateDraft("first")
	require.NoError(t, s.Submit(context.Background(), chat.SubmitOptions{}))
	s.UpdateDraft("second")
	require.NoError(t, s.Submit(context.Background(), chat.SubmitOptions{}))

	reqs := fb.recorded()
	require.Len(t, reqs, 2)
	assert.Equal(t, 1, store.saves, "identity is written once")
	assert.Equal(t, reqs[0].UserID, reqs[1].UserID)
	assert.True(t, strings.HasPrefix(reqs[0].UserID, "guest_"))
}

func TestAuthenticatedWithoutIdentityAborts(t *testing.T) {
	fb := &fakeBackend{}
	s := chat.NewSession(fb, identity.NewMemoryStore(), nil, chat.WithAuthenticated())
	s.UpdateDraft("T")

	err := s.Submit(context.Background(), chat.SubmitOptions{})
	require.ErrorIs(t, err, chat.ErrIdentityUnresolved)

	assert.Empty(t, s.Messages(), "no transcript change on internal faults")
	assert.Empty(t, fb.recorded())
	assert.False(t, s.Loading())
	assert.False(t, s.Submitting())
}

func TestFailureCleanup(t *testing.T) {
	fb := &fakeBackend{askErr: errors.New("connection refused")}
	s := newSession(t, fb)
	s.UpdateDraft("T")

	require.NoError(t, s.Submit(context.Background(), chat.SubmitOptions{}))

	assert.False(t, s.Loading())
	assert.False(t, s.Submitting())

	msgs := s.Messages()
	require.Len(t, msgs, 2)
	last := msgs[len(msgs)-1]
	assert.Equal(t, models.RoleAssistant, last.Role)
	assert.Contains(t, last.Content, "try again")
	for _, m := range msgs {
		assert.False(t, m.IsStreaming())
	}
}

func TestMidStreamFailureLeavesNoPartialMessage(t *testing.T) {
	fb := &fakeBackend{chunks: []string{"par"}, readErr: errors.New("connection reset")}
	s := newSession(t, fb)
	s.UpdateDraft("T")

	require.NoError(t, s.Submit(context.Background(), chat.SubmitOptions{}))

	msgs := s.Messages()
	require.Len(t, msgs, 2)
	last := msgs[len(msgs)-1]
	assert.Equal(t, models.RoleAssistant, last.Role)
	assert.NotContains(t, last.Content, "par")
	for _, m := range msgs {
		assert.False(t, m.IsStreaming())
	}
	assert.False(t, s.Loading())
	assert.False(t, s.Submitting())
}

func TestLocaleInstructionIsolation(t *testing.T) {
	fb := &fakeBackend{chunks: []string{"ok"}}
	s := newSession(t, fb)

	s.UpdateDraft("Explain photosynthesis")
	require.NoError(t, s.Submit(context.Background(), chat.SubmitOptions{Locale: "fr"}))

	msgs := s.Messages()
	require.NotEmpty(t, msgs)
	assert.Equal(t, "Explain photosynthesis", msgs[0].Content)

	reqs := fb.recorded()
	require.Len(t, reqs, 1)
	assert.Equal(t, "Explain photosynthesis Réponds en français, s'il te plaît.", reqs[0].Query)
	assert.Equal(t, "fr", reqs[0].Locale)
}

func TestCustomTextSkipsInstructionAndKeepsDraft(t *testing.T) {
	fb := &fakeBackend{chunks: []string{"ok"}}
	s := newSession(t, fb)

	s.UpdateDraft("typed but not sent")
	require.NoError(t, s.Submit(context.Background(), chat.SubmitOptions{
		CustomText: "Generate 10 questions",
		Locale:     "fr",
	}))

	assert.Equal(t, "typed but not sent", s.Draft())

	reqs := fb.recorded()
	require.Len(t, reqs, 1)
	assert.Equal(t, "Generate 10 questions", reqs[0].Query)

	msgs := s.Messages()
	require.NotEmpty(t, msgs)
	assert.Equal(t, "Generate 10 questions", msgs[0].Content)
}

func TestAttachmentOnlySubmit(t *testing.T) {
	fb := &fakeBackend{chunks: []string{"ok"}}
	s := newSession(t, fb)

	att := models.Attachment{Name: "notes.pdf", ContentType: "application/pdf", Data: []byte("%PDF")}
	require.NoError(t, s.Submit(context.Background(), chat.SubmitOptions{
		Attachments: []models.Attachment{att},
	}))

	msgs := s.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "", msgs[0].Content)
	require.Len(t, msgs[0].Attachments, 1)
	assert.Equal(t, "notes.pdf", msgs[0].Attachments[0].Name)

	reqs := fb.recorded()
	require.Len(t, reqs, 1)
	require.Len(t, reqs[0].Files, 1)
}

func TestClearResetsFully(t *testing.T) {
	fb := &fakeBackend{chunks: []string{"answer"}}
	s := newSession(t, fb)

	s.UpdateDraft("T")
	require.NoError(t, s.Submit(context.Background(), chat.SubmitOptions{
		Attachments: []models.Attachment{{Name: "a.png", ContentType: "image/png", Data: []byte{1, 2}}},
	}))
	s.UpdateDraft("leftover")

	s.Clear()

	assert.Empty(t, s.Messages())
	assert.Equal(t, "", s.Draft())
	assert.False(t, s.Loading())
	assert.False(t, s.Submitting())
}

// blockingBackend parks the first Ask until released so a second submit
// can race against it.
type blockingBackend struct {
	startOnce sync.Once
	started   chan struct{}
	released  chan struct{}
}

func (b *blockingBackend) Ask(context.Context, backend.AskRequest) (io.ReadCloser, error) {
	b.startOnce.Do(func() { close(b.started) })
	<-b.released
	return io.NopCloser(strings.NewReader("done")), nil
}

func TestSubmitWhileInFlightIsRejected(t *testing.T) {
	bb := &blockingBackend{started: make(chan struct{}), released: make(chan struct{})}
	s := chat.NewSession(bb, identity.NewMemoryStore(), nil)

	done := make(chan error, 1)
	go func() {
		done <- s.Submit(context.Background(), chat.SubmitOptions{CustomText: "slow one"})
	}()

	<-bb.started
	err := s.Submit(context.Background(), chat.SubmitOptions{CustomText: "too eager"})
	assert.ErrorIs(t, err, chat.ErrBusy)

	close(bb.released)
	require.NoError(t, <-done)

	// Once the first submission finished, a new one is accepted again.
	assert.NotErrorIs(t, s.SubmitInitialPrompt(context.Background(), "next"), chat.ErrBusy)
}

func TestQuickPromptCatalog(t *testing.T) {
	assert.NotEmpty(t, chat.ChatQuickPrompts("fr"))
	assert.NotEmpty(t, chat.QuizQuickPrompts("ar"))
	assert.Equal(t, chat.ChatQuickPrompts("en"), chat.ChatQuickPrompts("xx"))
}
