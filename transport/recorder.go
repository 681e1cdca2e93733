package transport

import (
	"context"
	"fmt"
	"pagobot/model"
	"sync"
	"time"
)

// Sent is one message captured by Recorder.
type Sent struct {
	To      string
	Message model.OutboundMessage
	At      time.Time
}

// Recorder is an in-memory Transport for tests. It records every send and
// serves media and history that the test registered beforehand.
type Recorder struct {
	mu       sync.Mutex
	sent     []Sent
	media    map[string][]byte
	history  map[string]model.InboundMessage
	failures map[string]error
}

func NewRecorder() *Recorder {
	return &Recorder{
		media:    make(map[string][]byte),
		history:  make(map[string]model.InboundMessage),
		failures: make(map[string]error),
	}
}

// FailSendsTo makes every send to recipient fail with err.
func (r *Recorder) FailSendsTo(recipient string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures[recipient] = err
}

// SetMedia registers the attachment bytes of message id.
func (r *Recorder) SetMedia(messageID string, data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.media[messageID] = data
}

// AddHistory makes msg loadable from chatID.
func (r *Recorder) AddHistory(chatID string, msg model.InboundMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history[chatID+"/"+msg.ID] = msg
}

func (r *Recorder) SendMessage(_ context.Context, to string, msg model.OutboundMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err, ok := r.failures[to]; ok {
		return err
	}
	r.sent = append(r.sent, Sent{To: to, Message: msg, At: time.Now()})
	return nil
}

func (r *Recorder) DownloadMedia(_ context.Context, msg model.InboundMessage) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	data, ok := r.media[msg.ID]
	if !ok {
		return nil, fmt.Errorf("no media for message %s", msg.ID)
	}
	return data, nil
}

func (r *Recorder) LoadMessage(_ context.Context, chatID, messageID string) (*model.InboundMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	msg, ok := r.history[chatID+"/"+messageID]
	if !ok {
		return nil, nil
	}
	return &msg, nil
}

// Sent returns a copy of everything sent so far.
func (r *Recorder) Sent() []Sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Sent(nil), r.sent...)
}

// SentTo returns the messages sent to one recipient.
func (r *Recorder) SentTo(to string) []Sent {
	var out []Sent
	for _, s := range r.Sent() {
		if s.To == to {
			out = append(out, s)
		}
	}
	return out
}
