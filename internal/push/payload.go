package push

import (
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// EventKind identifies the chat event a notification is about.
type EventKind string

const (
	KindMessage      EventKind = "message"
	KindGroupMessage EventKind = "group_message"
	KindCall         EventKind = "call"
	KindMissedCall   EventKind = "missed_call"
)

// CallType distinguishes video from voice calls.
type CallType string

const (
	CallVideo CallType = "video"
	CallVoice CallType = "voice"
)

// Media markers used when a message carries no text.
const (
	bodyPhoto    = "📷 Sent a photo"
	bodyAudio    = "🎵 Sent an audio message"
	bodyVideo    = "🎥 Sent a video"
	bodyFile     = "📎 Sent a file"
	bodyFallback = "Sent a message"
	ellipsis     = "…"
)

// Truncation limits, in runes.
const (
	DefaultDirectLimit = 200
	DefaultGroupLimit  = 100
)

// Sender is the resolved display identity of whoever triggered the event.
type Sender struct {
	ID     string
	Name   string
	Avatar string
}

// MessageEvent is a direct or group chat message as handed over by the
// message service.
type MessageEvent struct {
	ID       string   `json:"id"`
	SenderID string   `json:"sender_id"`
	Text     string   `json:"text,omitempty"`
	Image    []string `json:"image,omitempty"`
	Audio    string   `json:"audio,omitempty"`
	Video    []string `json:"video,omitempty"`
	File     string   `json:"file,omitempty"`
}

// GroupInfo describes the group a message was posted to.
type GroupInfo struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Image string `json:"image,omitempty"`
}

// CallEvent is an incoming or missed call.
type CallEvent struct {
	ID       string   `json:"id"`
	CallerID string   `json:"caller_id"`
	Type     CallType `json:"type"`
}

// Payload is the channel-agnostic notification content. JSON field names
// follow the browser Notification options so the service worker can pass
// them straight to showNotification.
type Payload struct {
	Title              string            `json:"title"`
	Body               string            `json:"body"`
	Icon               string            `json:"icon,omitempty"`
	Image              string            `json:"image,omitempty"`
	Badge              string            `json:"badge,omitempty"`
	Tag                string            `json:"tag,omitempty"`
	Data               map[string]string `json:"data,omitempty"`
	RequireInteraction bool              `json:"requireInteraction"`
	Silent             bool              `json:"silent"`
	Timestamp          int64             `json:"timestamp,omitempty"`
}

// Builder turns chat events into Payloads.
type Builder struct {
	// DefaultIcon is used when the sender has no avatar.
	DefaultIcon string
	// Badge is the monochrome badge icon shown on Android.
	Badge string
	// DirectLimit caps direct-message bodies (runes). <= 0 uses DefaultDirectLimit.
	DirectLimit int
	// GroupLimit caps group-message bodies (runes). <= 0 uses DefaultGroupLimit.
	GroupLimit int
	// Now stamps Payload.Timestamp; nil uses time.Now.
	Now func() time.Time
}

// NewBuilder returns a Builder with default limits.
func NewBuilder(defaultIcon string) *Builder {
	return &Builder{
		DefaultIcon: defaultIcon,
		DirectLimit: DefaultDirectLimit,
		GroupLimit:  DefaultGroupLimit,
	}
}

// DirectMessage builds the notification for a one-to-one message.
func (b *Builder) DirectMessage(sender Sender, msg MessageEvent) Payload {
	return Payload{
		Title:     "New message from " + sender.Name,
		Body:      MessageBody(msg, b.limit(b.DirectLimit, DefaultDirectLimit)),
		Icon:      b.icon(sender.Avatar),
		Image:     previewImage(msg),
		Badge:     b.Badge,
		Tag:       "message-" + msg.ID,
		Timestamp: b.stamp(),
		Data: map[string]string{
			"type":      string(KindMessage),
			"messageId": msg.ID,
			"senderId":  sender.ID,
			"url":       "/chat/" + sender.ID,
		},
	}
}

// GroupMessage builds the notification for a message posted to a group.
func (b *Builder) GroupMessage(sender Sender, msg MessageEvent, group GroupInfo) Payload {
	return Payload{
		Title:     "New message from " + sender.Name + " in " + group.Name,
		Body:      MessageBody(msg, b.limit(b.GroupLimit, DefaultGroupLimit)),
		Icon:      b.icon(sender.Avatar),
		Image:     previewImage(msg),
		Badge:     b.Badge,
		Tag:       "group-message-" + msg.ID,
		Timestamp: b.stamp(),
		Data: map[string]string{
			"type":      string(KindGroupMessage),
			"messageId": msg.ID,
			"senderId":  sender.ID,
			"groupId":   group.ID,
			"url":       "/group/" + group.ID,
		},
	}
}

// Call builds the notification for an incoming call. It stays on screen
// until the user interacts with it.
func (b *Builder) Call(caller Sender, call CallEvent) Payload {
	kind := normalizeCallType(call.Type)
	return Payload{
		Title:              "Incoming " + string(kind) + " call",
		Body:               caller.Name + " is calling you",
		Icon:               b.icon(caller.Avatar),
		Badge:              b.Badge,
		Tag:                "call-" + call.ID,
		RequireInteraction: true,
		Timestamp:          b.stamp(),
		Data: map[string]string{
			"type":     string(KindCall),
			"callId":   call.ID,
			"callType": string(kind),
			"senderId": caller.ID,
			"url":      "/call/" + call.ID,
		},
	}
}

// MissedCall builds the notification for a call nobody answered.
func (b *Builder) MissedCall(caller Sender, call CallEvent) Payload {
	kind := normalizeCallType(call.Type)
	return Payload{
		Title:     "Missed call",
		Body:      "You missed a " + string(kind) + " call from " + caller.Name,
		Icon:      b.icon(caller.Avatar),
		Badge:     b.Badge,
		Tag:       "missed-call-" + call.ID,
		Timestamp: b.stamp(),
		Data: map[string]string{
			"type":     string(KindMissedCall),
			"callId":   call.ID,
			"callType": string(kind),
			"senderId": caller.ID,
			"url":      "/chat/" + caller.ID,
		},
	}
}

// MessageBody picks the body text for a message: its text when present,
// otherwise a marker for the first attached media kind. Text is trimmed
// before the check and before truncation, so whitespace-only text counts as
// absent and surrounding blanks never use up the limit.
func MessageBody(msg MessageEvent, limit int) string {
	if text := strings.TrimSpace(msg.Text); text != "" {
		return Truncate(text, limit)
	}
	switch {
	case len(msg.Image) > 0:
		return bodyPhoto
	case msg.Audio != "":
		return bodyAudio
	case len(msg.Video) > 0:
		return bodyVideo
	case msg.File != "":
		return bodyFile
	default:
		return bodyFallback
	}
}

// Truncate NFC-normalizes s and, when it is longer than limit runes, keeps the
// first limit runes followed by an ellipsis. A limit <= 0 disables truncation.
func Truncate(s string, limit int) string {
	s = norm.NFC.String(s)
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit]) + ellipsis
}

// previewImage returns the first image, or the first video poster, of msg.
func previewImage(msg MessageEvent) string {
	if len(msg.Image) > 0 {
		return msg.Image[0]
	}
	if len(msg.Video) > 0 {
		return msg.Video[0]
	}
	return ""
}

func normalizeCallType(t CallType) CallType {
	if strings.EqualFold(string(t), string(CallVideo)) {
		return CallVideo
	}
	return CallVoice
}

func (b *Builder) icon(avatar string) string {
	if strings.TrimSpace(avatar) != "" {
		return avatar
	}
	return b.DefaultIcon
}

func (b *Builder) limit(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func (b *Builder) stamp() int64 {
	if b.Now != nil {
		return b.Now().UnixMilli()
	}
	return time.Now().UnixMilli()
}
