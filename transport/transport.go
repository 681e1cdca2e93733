// Package transport is the boundary to the chat service. The bot only needs
// to send messages, download attachments and re-load a past message by id.
package transport

import (
	"context"
	"errors"
	"pagobot/model"
)

var (
	ErrUnreachable  = errors.New("recipient unreachable")
	ErrBridgeClosed = errors.New("bridge connection closed")
)

type Transport interface {
	SendMessage(ctx context.Context, to string, msg model.OutboundMessage) error
	DownloadMedia(ctx context.Context, msg model.InboundMessage) ([]byte, error)
	// LoadMessage returns (nil, nil) when the chat has no message with that id.
	LoadMessage(ctx context.Context, chatID, messageID string) (*model.InboundMessage, error)
}
