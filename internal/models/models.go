package models

import "strings"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// StreamingID is the sentinel message id carried by the single in-progress
// assistant message while its response stream is still being assembled.
const StreamingID = "streaming"

// Message is one turn in a conversation transcript.
type Message struct {
	ID          string       `json:"id"`
	Role        string       `json:"role"` // user or assistant
	Content     string       `json:"content"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// IsStreaming reports whether the message is the transient in-progress
// assistant turn.
func (m Message) IsStreaming() bool {
	return m.Role == RoleAssistant && m.ID == StreamingID
}

// Attachment describes a file contributed by the user in a turn. The data
// buffer is owned by the attachment and released with Dispose once the
// message holding it is pruned.
type Attachment struct {
	Name        string `json:"name,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Data        []byte `json:"-"`
}

// IsImage reports whether the attachment should render as an image.
func (a Attachment) IsImage() bool {
	return strings.HasPrefix(a.ContentType, "image/")
}

// Dispose releases the attachment's data buffer.
func (a *Attachment) Dispose() {
	a.Data = nil
}

const ProviderGuest = "guest"

// Identity is the persisted user id and the provider label it came from.
type Identity struct {
	UserID   string `json:"user_id"`
	Provider string `json:"provider"` // google, microsoft, guest, ...
}

func (id Identity) IsGuest() bool {
	return id.Provider == ProviderGuest
}

// Quiz is a generated multiple-choice quiz.
type Quiz struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Questions   []QuizQuestion `json:"questions"`
}

type QuizQuestion struct {
	ID          int      `json:"id"`
	Question    string   `json:"question"`
	Options     []string `json:"options"`
	Correct     int      `json:"correct"` // index into Options
	Explanation string   `json:"explanation"`
}

// FileList is the backend's listing of a user's uploaded files.
type FileList struct {
	Files []string `json:"files"`
}
