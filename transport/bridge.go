package transport

import (
	"context"
	"errors"
	"fmt"
	"log"
	"pagobot/model"
	"sync"

	"github.com/google/uuid"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// frame is the JSON envelope exchanged with the chat bridge.
// Requests: send, download, load. Replies: result. Pushed events: message.
type frame struct {
	Type      string                 `json:"type"`
	ID        string                 `json:"id,omitempty"`
	To        string                 `json:"to,omitempty"`
	ChatID    string                 `json:"chatId,omitempty"`
	MessageID string                 `json:"messageId,omitempty"`
	Outbound  *model.OutboundMessage `json:"outbound,omitempty"`
	Inbound   *model.InboundMessage  `json:"inbound,omitempty"`
	Data      []byte                 `json:"data,omitempty"`
	Error     string                 `json:"error,omitempty"`
}

const maxFrameBytes = 32 << 20

// Bridge talks to a chat gateway over a websocket. Calls are matched to
// results by request id; inbound messages are queued so a slow consumer
// never stalls result delivery.
type Bridge struct {
	conn *websocket.Conn

	mu      sync.Mutex
	pending map[string]chan frame

	qmu   sync.Mutex
	queue []model.InboundMessage
	wake  chan struct{}

	inbound chan model.InboundMessage
	done    chan struct{}
}

func DialBridge(ctx context.Context, url string) (*Bridge, error) {
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial bridge %s: %w", url, err)
	}
	conn.SetReadLimit(maxFrameBytes)
	b := &Bridge{
		conn:    conn,
		pending: make(map[string]chan frame),
		wake:    make(chan struct{}, 1),
		inbound: make(chan model.InboundMessage),
		done:    make(chan struct{}),
	}
	go b.readLoop()
	go b.pump()
	return b, nil
}

// Messages delivers inbound chat messages in arrival order. It is closed when
// the connection ends.
func (b *Bridge) Messages() <-chan model.InboundMessage {
	return b.inbound
}

// Done is closed once the connection has ended.
func (b *Bridge) Done() <-chan struct{} {
	return b.done
}

func (b *Bridge) Close() error {
	return b.conn.Close(websocket.StatusNormalClosure, "")
}

func (b *Bridge) readLoop() {
	defer close(b.done)
	ctx := context.Background()
	for {
		var f frame
		if err := wsjson.Read(ctx, b.conn, &f); err != nil {
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure {
				log.Printf("WARN: [Bridge] read loop ended: %v", err)
			}
			return
		}
		switch f.Type {
		case "result":
			b.mu.Lock()
			ch, ok := b.pending[f.ID]
			delete(b.pending, f.ID)
			b.mu.Unlock()
			if ok {
				ch <- f
			}
		case "message":
			if f.Inbound != nil {
				b.enqueue(*f.Inbound)
			}
		default:
			log.Printf("WARN: [Bridge] ignoring frame of type %q", f.Type)
		}
	}
}

func (b *Bridge) enqueue(msg model.InboundMessage) {
	b.qmu.Lock()
	b.queue = append(b.queue, msg)
	b.qmu.Unlock()
	select {
	case b.wake <- struct{}{}:
	default:
	}
}

func (b *Bridge) pump() {
	defer close(b.inbound)
	for {
		b.qmu.Lock()
		if len(b.queue) == 0 {
			b.qmu.Unlock()
			select {
			case <-b.wake:
				continue
			case <-b.done:
				return
			}
		}
		msg := b.queue[0]
		b.queue = b.queue[1:]
		b.qmu.Unlock()

		select {
		case b.inbound <- msg:
		case <-b.done:
			return
		}
	}
}

func (b *Bridge) call(ctx context.Context, req frame) (frame, error) {
	req.ID = uuid.NewString()
	ch := make(chan frame, 1)
	b.mu.Lock()
	b.pending[req.ID] = ch
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		delete(b.pending, req.ID)
		b.mu.Unlock()
	}()

	if err := wsjson.Write(ctx, b.conn, req); err != nil {
		return frame{}, fmt.Errorf("bridge %s request failed: %w", req.Type, err)
	}
	select {
	case res := <-ch:
		if res.Error != "" {
			return res, resultError(res.Error)
		}
		return res, nil
	case <-ctx.Done():
		return frame{}, ctx.Err()
	case <-b.done:
		return frame{}, ErrBridgeClosed
	}
}

func resultError(msg string) error {
	if msg == "unreachable" {
		return ErrUnreachable
	}
	return errors.New(msg)
}

func (b *Bridge) SendMessage(ctx context.Context, to string, msg model.OutboundMessage) error {
	_, err := b.call(ctx, frame{Type: "send", To: to, Outbound: &msg})
	return err
}

func (b *Bridge) DownloadMedia(ctx context.Context, msg model.InboundMessage) ([]byte, error) {
	res, err := b.call(ctx, frame{Type: "download", ChatID: msg.ChatID, MessageID: msg.ID})
	if err != nil {
		return nil, err
	}
	return res.Data, nil
}

func (b *Bridge) LoadMessage(ctx context.Context, chatID, messageID string) (*model.InboundMessage, error) {
	res, err := b.call(ctx, frame{Type: "load", ChatID: chatID, MessageID: messageID})
	if err != nil {
		return nil, err
	}
	return res.Inbound, nil
}
