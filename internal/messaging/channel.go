package messaging

import (
	"context"
	"strconv"
	"strings"
)

// ChatRef addresses a chat either by numeric id or by public @username.
type ChatRef struct {
	ID       int64
	Username string
}

// Chat returns a reference to a numeric chat id.
func Chat(id int64) ChatRef { return ChatRef{ID: id} }

// ParseChatRef interprets a configured destination. Numeric values become ids;
// anything else is treated as a channel username and gains a leading "@".
// Blank input reports false.
func ParseChatRef(raw string) (ChatRef, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ChatRef{}, false
	}
	if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return ChatRef{ID: id}, id != 0
	}
	if !strings.HasPrefix(raw, "@") {
		raw = "@" + raw
	}
	return ChatRef{Username: raw}, true
}

// IsZero reports whether the reference addresses nothing.
func (c ChatRef) IsZero() bool { return c.ID == 0 && c.Username == "" }

func (c ChatRef) String() string {
	if c.Username != "" {
		return c.Username
	}
	return strconv.FormatInt(c.ID, 10)
}

// MessageRef identifies a sent message.
type MessageRef struct {
	Chat      ChatRef
	MessageID int
}

// IsZero reports whether the reference points at no message.
func (m MessageRef) IsZero() bool { return m.MessageID == 0 }

// MediaKind selects how an artifact is uploaded.
type MediaKind int

const (
	MediaVideo MediaKind = iota
	MediaAudio
	MediaDocument
)

func (k MediaKind) String() string {
	switch k {
	case MediaVideo:
		return "video"
	case MediaAudio:
		return "audio"
	default:
		return "document"
	}
}

// Media describes a file upload.
type Media struct {
	Kind            MediaKind
	Path            string
	Caption         string
	Title           string
	DurationSeconds int
}

// Channel is the chat transport used by the pipeline and delivery stage.
type Channel interface {
	Send(ctx context.Context, to ChatRef, text string) (MessageRef, error)
	SendMedia(ctx context.Context, to ChatRef, media Media) (MessageRef, error)
	Edit(ctx context.Context, ref MessageRef, text string) error
	Delete(ctx context.Context, ref MessageRef) error
	Forward(ctx context.Context, to ChatRef, ref MessageRef) (MessageRef, error)
}
