package chat

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hkacimi/studymate/internal/backend"
	"github.com/hkacimi/studymate/internal/identity"
	"github.com/hkacimi/studymate/internal/models"
	"github.com/hkacimi/studymate/internal/tokens"
)

// Asker is the slice of the backend client a session needs.
type Asker interface {
	Ask(ctx context.Context, req backend.AskRequest) (io.ReadCloser, error)
}

var (
	// ErrBusy is returned while a previous submission is still in flight.
	ErrBusy = errors.New("chat: submission already in flight")

	// ErrIdentityUnresolved is returned when a session that claims to be
	// authenticated has no stored identity to attach to the request.
	ErrIdentityUnresolved = errors.New("chat: authenticated session has no resolvable identity")
)

// apologyMessage is the only failure text that ever reaches the transcript.
const apologyMessage = "Sorry, I couldn't answer that right now. Please try again in a moment."

// Snapshot is an immutable view of the session state handed to change
// observers. The message slice is a copy and safe to retain.
type Snapshot struct {
	Messages   []models.Message
	Draft      string
	Loading    bool
	Submitting bool
}

// Session coordinates one conversation's request/response lifecycle: the
// transcript, the draft input, the streaming decode loop and the identity
// bootstrap. At most one submission is in flight per session.
type Session struct {
	mu sync.Mutex

	backend       Asker
	store         identity.Store
	logger        *zap.Logger
	onChange      func(Snapshot)
	count         tokens.Counter
	authenticated bool

	messages   []models.Message
	draft      string
	loading    bool
	submitting bool
	inFlight   bool
}

type Option func(*Session)

// WithOnChange registers a callback invoked after every state change so a
// UI can re-render. It is called synchronously, outside the session lock.
func WithOnChange(fn func(Snapshot)) Option {
	return func(s *Session) { s.onChange = fn }
}

// WithTokenCounter attaches a token estimator whose result is included in
// submission log lines.
func WithTokenCounter(c tokens.Counter) Option {
	return func(s *Session) { s.count = c }
}

// WithAuthenticated marks the session as belonging to an externally
// signed-in user. Submissions then require a stored identity instead of
// synthesizing a guest one.
func WithAuthenticated() Option {
	return func(s *Session) { s.authenticated = true }
}

func NewSession(asker Asker, store identity.Store, logger *zap.Logger, opts ...Option) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Session{
		backend: asker,
		store:   store,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Messages returns a copy of the transcript in insertion order.
func (s *Session) Messages() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Message(nil), s.messages...)
}

func (s *Session) Draft() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft
}

// Loading reports whether the session is waiting for the backend to start
// responding.
func (s *Session) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Submitting reports whether a request has been sent and its response
// stream is not yet available.
func (s *Session) Submitting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submitting
}

// UpdateDraft replaces the uncommitted composer text.
func (s *Session) UpdateDraft(text string) {
	s.mu.Lock()
	changed := s.draft != text
	s.draft = text
	s.mu.Unlock()
	if changed {
		s.notify()
	}
}

// SubmitOptions carries the optional parts of a submission. CustomText
// overrides the draft (the "quick prompt sent" flow); Locale selects the
// hidden language instruction appended to the backend-facing query.
type SubmitOptions struct {
	Attachments []models.Attachment
	CustomText  string
	Locale      string
}

// Submit sends the effective text and attachments to the backend and
// consumes the streamed answer into the transcript. An empty submission is
// a silent no-op. Transport failures are fully handled inside the session
// (apology message, flags cleared) and do not surface as errors.
func (s *Session) Submit(ctx context.Context, opts SubmitOptions) error {
	s.mu.Lock()
	text := opts.CustomText
	fromDraft := text == ""
	if fromDraft {
		text = s.draft
	}
	text = strings.TrimSpace(text)
	if text == "" && len(opts.Attachments) == 0 {
		s.mu.Unlock()
		return nil
	}
	if s.inFlight {
		s.mu.Unlock()
		return ErrBusy
	}
	s.inFlight = true
	s.mu.Unlock()

	id, err := s.resolveIdentity()
	if err != nil {
		s.clearInFlight()
		return err
	}

	return s.run(ctx, runInput{
		displayText: text,
		attachments: opts.Attachments,
		locale:      opts.Locale,
		fromDraft:   fromDraft,
		userID:      id.UserID,
	})
}

// SubmitInitialPrompt submits a one-click quick prompt. The optimistic
// user message is deduplicated against the transcript so a rapid double
// click never shows the same prompt twice.
func (s *Session) SubmitInitialPrompt(ctx context.Context, prompt string) error {
	text := strings.TrimSpace(prompt)
	if text == "" {
		return nil
	}

	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		return ErrBusy
	}
	s.inFlight = true
	s.mu.Unlock()

	id, err := s.resolveIdentity()
	if err != nil {
		s.clearInFlight()
		return err
	}

	return s.run(ctx, runInput{
		displayText: text,
		userID:      id.UserID,
		dedupe:      true,
	})
}

// Clear returns the session to its initial prompt-picker state and
// releases the attachment buffers held by pruned messages.
func (s *Session) Clear() {
	s.mu.Lock()
	for i := range s.messages {
		for j := range s.messages[i].Attachments {
			s.messages[i].Attachments[j].Dispose()
		}
	}
	s.messages = nil
	s.draft = ""
	s.loading = false
	s.submitting = false
	s.mu.Unlock()
	s.notify()
}

type runInput struct {
	displayText string
	attachments []models.Attachment
	locale      string
	userID      string
	fromDraft   bool
	dedupe      bool
}

func (s *Session) run(ctx context.Context, in runInput) error {
	defer s.clearInFlight()

	// Optimistic update: the user turn is visible before any network I/O.
	s.mu.Lock()
	shouldAppend := true
	if in.dedupe {
		for _, m := range s.messages {
			if m.Role == models.RoleUser && m.Content == in.displayText {
				shouldAppend = false
				break
			}
		}
	}
	if shouldAppend {
		s.messages = append(s.messages, models.Message{
			ID:          uuid.NewString(),
			Role:        models.RoleUser,
			Content:     in.displayText,
			Attachments: in.attachments,
		})
	}
	if in.fromDraft {
		s.draft = ""
	}
	s.loading = true
	s.submitting = true
	s.mu.Unlock()
	s.notify()

	// The language instruction rides on the backend-facing query only;
	// the displayed user message never carries it.
	query := in.displayText
	if in.locale != "" && in.fromDraft {
		query += queryInstruction(in.locale)
	}

	fields := []zap.Field{
		zap.String("user_id", in.userID),
		zap.String("locale", in.locale),
		zap.Int("attachments", len(in.attachments)),
	}
	if s.count != nil {
		fields = append(fields, zap.Int("query_tokens", s.count(query)))
	}
	s.logger.Info("submitting query", fields...)

	body, err := s.backend.Ask(ctx, backend.AskRequest{
		Query:  query,
		UserID: in.userID,
		Locale: in.locale,
		Files:  in.attachments,
	})
	if err != nil {
		s.fail(err)
		return nil
	}
	defer body.Close()

	// The server started responding; both flags clear together.
	s.mu.Lock()
	s.loading = false
	s.submitting = false
	s.mu.Unlock()
	s.notify()

	var acc strings.Builder
	buf := make([]byte, 4096)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			acc.Write(buf[:n])
			s.setStreaming(acc.String())
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			s.fail(err)
			return nil
		}
	}

	s.finalize(acc.String())
	return nil
}

func (s *Session) resolveIdentity() (models.Identity, error) {
	id, ok, err := s.store.Load()
	if err != nil {
		s.logger.Error("failed to load identity", zap.Error(err))
		return models.Identity{}, err
	}
	if ok {
		return id, nil
	}
	if s.authenticated {
		s.logger.Error("authenticated session has no stored identity")
		return models.Identity{}, ErrIdentityUnresolved
	}

	guest := identity.NewGuest()
	if err := s.store.Save(guest); err != nil {
		s.logger.Error("failed to persist guest identity", zap.Error(err))
		return models.Identity{}, err
	}
	s.logger.Info("created guest identity", zap.String("user_id", guest.UserID))
	return guest, nil
}

// setStreaming replaces the transient assistant message with the grown
// accumulator. The sentinel id keeps it unique across re-renders.
func (s *Session) setStreaming(content string) {
	s.mu.Lock()
	s.messages = append(withoutStreaming(s.messages), models.Message{
		ID:      models.StreamingID,
		Role:    models.RoleAssistant,
		Content: content,
	})
	s.mu.Unlock()
	s.notify()
}

// finalize swaps the transient message for one with a stable id. This runs
// even when the accumulated text is empty.
func (s *Session) finalize(content string) {
	s.mu.Lock()
	s.messages = append(withoutStreaming(s.messages), models.Message{
		ID:      uuid.NewString(),
		Role:    models.RoleAssistant,
		Content: strings.TrimSpace(content),
	})
	s.mu.Unlock()
	s.notify()
}

// fail converts any transport error into the fixed apology message. No
// partial streaming message survives and no retry is attempted.
func (s *Session) fail(err error) {
	s.logger.Error("chat request failed", zap.Error(err))
	s.mu.Lock()
	s.loading = false
	s.submitting = false
	s.messages = append(withoutStreaming(s.messages), models.Message{
		ID:      uuid.NewString(),
		Role:    models.RoleAssistant,
		Content: apologyMessage,
	})
	s.mu.Unlock()
	s.notify()
}

func (s *Session) clearInFlight() {
	s.mu.Lock()
	s.inFlight = false
	s.mu.Unlock()
}

func (s *Session) notify() {
	if s.onChange == nil {
		return
	}
	s.mu.Lock()
	snap := Snapshot{
		Messages:   append([]models.Message(nil), s.messages...),
		Draft:      s.draft,
		Loading:    s.loading,
		Submitting: s.submitting,
	}
	s.mu.Unlock()
	s.onChange(snap)
}

func withoutStreaming(msgs []models.Message) []models.Message {
	filtered := msgs[:0]
	for _, m := range msgs {
		if m.IsStreaming() {
			continue
		}
		filtered = append(filtered, m)
	}
	return filtered
}
