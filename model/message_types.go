package model

import "time"

type MediaKind string

const (
	MediaImage    MediaKind = "image"
	MediaDocument MediaKind = "document"
	MediaOther    MediaKind = "other"
)

// MediaInfo describes an attachment of an inbound message. The bytes are
// fetched separately through the transport.
type MediaInfo struct {
	Kind     MediaKind `json:"kind"`
	MimeType string    `json:"mimeType"`
	Filename string    `json:"filename,omitempty"`
}

// InboundMessage is a message received from the chat transport. For media
// messages Body carries the caption.
type InboundMessage struct {
	ID        string     `json:"id"`
	ChatID    string     `json:"chatId"`
	From      string     `json:"from"`
	FromMe    bool       `json:"fromMe"`
	IsGroup   bool       `json:"isGroup"`
	PushName  string     `json:"pushName,omitempty"`
	Body      string     `json:"body"`
	ButtonID  string     `json:"buttonId,omitempty"`
	Media     *MediaInfo `json:"media,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// Reply returns the button id when the message is a button reply, else the body.
func (m InboundMessage) Reply() string {
	if m.ButtonID != "" {
		return m.ButtonID
	}
	return m.Body
}

type Button struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

type Attachment struct {
	Data     []byte `json:"data"`
	MimeType string `json:"mimeType"`
	Filename string `json:"filename,omitempty"`
}

// OutboundMessage is what the bot hands to the transport. With an attachment,
// Text is used as the caption.
type OutboundMessage struct {
	Text       string      `json:"text"`
	Buttons    []Button    `json:"buttons,omitempty"`
	Attachment *Attachment `json:"attachment,omitempty"`
}
