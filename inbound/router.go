// Package inbound routes every inbound chat message to the component that
// owns it: approver decisions, reminder replies or proof submissions.
package inbound

import (
	"context"
	"fmt"
	"log"
	"pagobot/conversation"
	"pagobot/model"
	"pagobot/registry"
	"pagobot/reminder"
	"pagobot/textmatch"
	"pagobot/transport"
	"runtime/debug"
	"strings"
)

type DecisionHandler interface {
	IsApprover(from string) bool
	OnApproverReply(ctx context.Context, msg model.InboundMessage) (bool, error)
}

type ProofIngester interface {
	Ingest(ctx context.Context, msg model.InboundMessage) (bool, error)
}

const (
	msgAskProof = "🙌 ¡Gracias! Por favor envía una foto o PDF de tu comprobante con la palabra *comprobante* en el mensaje."
	msgHelp     = "🤝 Un asesor se pondrá en contacto contigo en breve."
	msgReprompt = "No entendimos tu respuesta. Responde *1* si ya realizaste el pago o *2* si necesitas ayuda."
)

var (
	paidReplies = []string{"1", reminder.ButtonPaid, "he realizado el pago"}
	helpReplies = []string{"2", reminder.ButtonHelp, "necesito ayuda"}
)

type Router struct {
	transport  transport.Transport
	clients    registry.Store
	states     conversation.Store
	decisions  DecisionHandler
	proofs     ProofIngester
	approverID string
}

func NewRouter(t transport.Transport, clients registry.Store, states conversation.Store, decisions DecisionHandler, proofs ProofIngester, approverID string) *Router {
	return &Router{
		transport:  t,
		clients:    clients,
		states:     states,
		decisions:  decisions,
		proofs:     proofs,
		approverID: approverID,
	}
}

// Run handles messages one at a time until ctx is done or msgs is closed.
func (r *Router) Run(ctx context.Context, msgs <-chan model.InboundMessage) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				log.Println("INFO: [Inbound] message stream closed")
				return
			}
			r.Handle(ctx, msg)
		}
	}
}

// Handle processes one message. Errors and panics are logged and swallowed
// so one bad event cannot stop the loop.
func (r *Router) Handle(ctx context.Context, msg model.InboundMessage) {
	defer func() {
		if p := recover(); p != nil {
			log.Printf("ERROR: [Inbound] panic handling %s from %s: %v\n%s", msg.ID, msg.From, p, debug.Stack())
		}
	}()
	if err := r.handle(ctx, msg); err != nil {
		log.Printf("ERROR: [Inbound] message %s from %s: %v", msg.ID, msg.From, err)
	}
}

func (r *Router) handle(ctx context.Context, msg model.InboundMessage) error {
	if msg.FromMe || msg.IsGroup || msg.From == "" {
		return nil
	}

	// The approver only ever issues decisions; other approver chatter is
	// not a client conversation.
	if r.decisions.IsApprover(msg.From) {
		_, err := r.decisions.OnApproverReply(ctx, msg)
		return err
	}

	st, err := r.states.GetOrCreate(msg.From)
	if err != nil {
		return fmt.Errorf("failed to load conversation state: %w", err)
	}

	if st.State == model.StateAwaitingPaymentResponse {
		consumed, err := r.respond(ctx, st, msg)
		if consumed || err != nil {
			return err
		}
	}

	_, err = r.proofs.Ingest(ctx, msg)
	return err
}

func matches(reply string, options []string) bool {
	for _, o := range options {
		if reply == o || textmatch.Equal(reply, o) {
			return true
		}
	}
	return false
}

// respond runs the reminder reply flow and reports whether it consumed msg.
// Text that is neither a known answer nor a number is left to the proof
// pipeline.
func (r *Router) respond(ctx context.Context, st model.ConversationState, msg model.InboundMessage) (bool, error) {
	reply := strings.TrimSpace(msg.Reply())
	switch {
	case matches(reply, paidReplies):
		if err := r.states.SetState(st.SenderID, model.StateAwaitingPaymentProof); err != nil {
			return true, fmt.Errorf("failed to move %s to AWAITING_PAYMENT_PROOF: %w", st.SenderID, err)
		}
		log.Printf("INFO: [Inbound] %s reports payment, awaiting proof", st.SenderID)
		r.send(ctx, st.SenderID, msgAskProof)
		return true, nil

	case matches(reply, helpReplies):
		if err := r.states.SetState(st.SenderID, model.StateActive); err != nil {
			return true, fmt.Errorf("failed to move %s to ACTIVE: %w", st.SenderID, err)
		}
		r.escalate(ctx, st, msg)
		r.send(ctx, st.SenderID, msgHelp)
		return true, nil

	case textmatch.IsNumeric(reply):
		r.send(ctx, st.SenderID, msgReprompt)
		return true, nil
	}
	return false, nil
}

// escalate tells the approver that a client asked for help. Suspended
// clients are not escalated.
func (r *Router) escalate(ctx context.Context, st model.ConversationState, msg model.InboundMessage) {
	key := st.LinkedClientNumber
	if key == "" {
		key = registry.NormalizeKey(st.SenderID)
	}
	name := st.LinkedClientName
	rec, err := r.clients.Get(key)
	if err != nil {
		log.Printf("WARN: [Inbound] registry lookup for %s failed: %v", key, err)
	}
	if rec != nil {
		if rec.Suspended {
			log.Printf("INFO: [Inbound] %s is suspended, help request not escalated", key)
			return
		}
		name = rec.Name
	}
	if name == "" {
		name = msg.PushName
	}
	text := fmt.Sprintf("🆘 *%s* (%s) necesita ayuda con su pago.", name, key)
	r.send(ctx, r.approverID, text)
}

func (r *Router) send(ctx context.Context, to, text string) {
	if err := r.transport.SendMessage(ctx, to, model.OutboundMessage{Text: text}); err != nil {
		log.Printf("WARN: [Inbound] failed to send to %s: %v", to, err)
	}
}
