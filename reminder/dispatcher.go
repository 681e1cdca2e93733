// Package reminder sends payment reminders, one client at a time or as a
// rate-limited batch, and moves each recipient's conversation to
// AWAITING_PAYMENT_RESPONSE.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"log"
	"pagobot/conversation"
	"pagobot/model"
	"pagobot/registry"
	"pagobot/transport"
	"time"
)

// Reply button ids carried by every reminder.
const (
	ButtonPaid = "reminder_paid"
	ButtonHelp = "reminder_help"
)

var ErrClientSuspended = errors.New("client is suspended")

type Status string

const (
	StatusSent      Status = "sent"
	StatusFailed    Status = "failed"
	StatusSuspended Status = "suspended"
)

// Outcome is the result of one reminder.
type Outcome struct {
	Key    string `json:"key"`
	Name   string `json:"name"`
	Status Status `json:"status"`
	Error  string `json:"error,omitempty"`
}

type Dispatcher struct {
	transport    transport.Transport
	states       conversation.Store
	instructions Instructions
	delay        time.Duration
	now          func() time.Time
}

func NewDispatcher(t transport.Transport, states conversation.Store, instructions Instructions, delay time.Duration) *Dispatcher {
	return &Dispatcher{
		transport:    t,
		states:       states,
		instructions: instructions,
		delay:        delay,
		now:          time.Now,
	}
}

// BuildMessage renders the reminder for a client.
func (d *Dispatcher) BuildMessage(c model.Client) model.OutboundMessage {
	text := fmt.Sprintf(
		"Hola %s 👋\n\nTe recordamos que tu pago de *$%s* vence el día %d.\n\n%s\n\nResponde *1* si ya realizaste el pago o *2* si necesitas ayuda.",
		c.Name, c.Amount, c.PayDay, d.instructions.For(c.CountryFlag))
	return model.OutboundMessage{
		Text: text,
		Buttons: []model.Button{
			{ID: ButtonPaid, Label: "Ya realicé el pago"},
			{ID: ButtonHelp, Label: "Necesito ayuda"},
		},
	}
}

// SendReminder sends one reminder. Suspended clients are refused with
// ErrClientSuspended; the transport is not touched and no state changes.
func (d *Dispatcher) SendReminder(ctx context.Context, c model.Client) (Outcome, error) {
	out := Outcome{Key: c.Key, Name: c.Name}
	if c.Suspended {
		out.Status = StatusSuspended
		out.Error = ErrClientSuspended.Error()
		return out, ErrClientSuspended
	}
	chatID := registry.ChatID(c.Key)
	if chatID == "" {
		out.Status = StatusFailed
		out.Error = "invalid phone key"
		return out, fmt.Errorf("cannot send reminder to %q: %w", c.Key, transport.ErrUnreachable)
	}

	if err := d.transport.SendMessage(ctx, chatID, d.BuildMessage(c)); err != nil {
		out.Status = StatusFailed
		out.Error = err.Error()
		return out, fmt.Errorf("failed to send reminder to %s: %w", c.Key, err)
	}

	if err := d.states.SetState(chatID, model.StateAwaitingPaymentResponse); err != nil {
		out.Status = StatusFailed
		out.Error = err.Error()
		return out, fmt.Errorf("reminder sent to %s but state update failed: %w", c.Key, err)
	}
	if err := d.states.SetLinkedClient(chatID, c.Name, c.Key); err != nil {
		log.Printf("WARN: [Reminder] failed to link client %s to conversation: %v", c.Key, err)
	}
	out.Status = StatusSent
	log.Printf("INFO: [Reminder] Sent reminder to %s (%s)", c.Key, c.Name)
	return out, nil
}
