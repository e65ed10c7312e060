package chat

import (
	"strings"
	"time"
)

// Author identifies which side of the conversation produced a turn.
type Author string

const (
	AuthorUser      Author = "user"
	AuthorAssistant Author = "assistant"
)

// Turn is one immutable entry in a session transcript. Turns are only
// ever appended; corrections show up as new turns.
type Turn struct {
	ID         string      `json:"id"`
	Author     Author      `json:"author"`
	Text       string      `json:"text"`
	Attachment *Attachment `json:"attachment,omitempty"`
	CreatedAt  time.Time   `json:"createdAt"`
	Failed     bool        `json:"failed,omitempty"`
}

// Attachment is an opaque handle to an uploaded image. The raw bytes
// travel with the handle until the dispatcher consumes them; they are
// never serialized back to clients.
type Attachment struct {
	ID        string `json:"id"`
	Filename  string `json:"filename"`
	MediaType string `json:"mediaType"`
	Data      []byte `json:"-"`
}

// IsImage reports whether the declared media kind is an image type.
func (a *Attachment) IsImage() bool {
	return strings.HasPrefix(a.MediaType, "image/")
}

// PendingPayload is the not-yet-submitted composition state for one
// session: the shared text buffer, at most one staged attachment, and
// the selected response language.
type PendingPayload struct {
	Text       string      `json:"text"`
	Attachment *Attachment `json:"attachment,omitempty"`
	Language   string      `json:"language"`
}

// Empty reports whether a submit of this payload would be a no-op.
func (p PendingPayload) Empty() bool {
	return strings.TrimSpace(p.Text) == "" && p.Attachment == nil
}

// Session captures a transient anonymous conversation.
type Session struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
}
