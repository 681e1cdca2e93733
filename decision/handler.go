// Package decision applies the approver's accept/reject verdicts on
// forwarded proofs of payment.
package decision

import (
	"context"
	"errors"
	"fmt"
	"log"
	"pagobot/conversation"
	"pagobot/model"
	"pagobot/proof"
	"pagobot/proofstore"
	"pagobot/registry"
	"pagobot/transport"
	"time"
)

var (
	ErrOriginalNotFound = errors.New("original proof message not found")
	ErrEmptyMedia       = errors.New("original proof has no media")
)

const (
	msgClientAccepted = "✅ ¡Tu pago ha sido confirmado! Gracias por tu puntualidad."
	msgClientRejected = "❌ Tu comprobante no pudo ser validado. Por favor envía un nuevo comprobante de pago."
)

type Handler struct {
	transport  transport.Transport
	clients    registry.Store
	states     conversation.Store
	proofs     proofstore.Store
	approverID string
	now        func() time.Time
}

func NewHandler(t transport.Transport, clients registry.Store, states conversation.Store, proofs proofstore.Store, approverID string) *Handler {
	return &Handler{
		transport:  t,
		clients:    clients,
		states:     states,
		proofs:     proofs,
		approverID: approverID,
		now:        time.Now,
	}
}

// IsApprover reports whether from is the configured approver.
func (h *Handler) IsApprover(from string) bool {
	k := registry.NormalizeKey(from)
	return k != "" && k == registry.NormalizeKey(h.approverID)
}

// OnApproverReply applies a decision carried by msg. It reports false for
// messages that are not an approver decision. A decision that was already
// applied is acknowledged as handled without any writes or notifications.
func (h *Handler) OnApproverReply(ctx context.Context, msg model.InboundMessage) (bool, error) {
	if !h.IsApprover(msg.From) {
		return false, nil
	}
	d, err := proof.ParseDecision(msg.Reply())
	if err != nil {
		if errors.Is(err, proof.ErrNotDecision) && msg.Reply() != "" {
			log.Printf("INFO: [Decision] Ignoring approver message %q: %v", msg.Reply(), err)
		}
		return false, nil
	}

	now := h.now()
	corr := d.CorrelationID(now.Format(model.DateLayout))
	seen, err := h.states.HasDecision(corr)
	if err != nil {
		h.notify(ctx, h.approverID, fmt.Sprintf("❌ Error al consultar la decisión %s: %v", corr, err))
		return true, fmt.Errorf("failed to check decision %s: %w", corr, err)
	}
	if seen {
		log.Printf("INFO: [Decision] %s already applied, skipping", corr)
		return true, nil
	}

	switch d.Kind {
	case proof.Accept:
		err = h.accept(ctx, d, corr, now)
	case proof.Reject:
		err = h.reject(ctx, d, corr, now)
	}
	if err != nil {
		h.notify(ctx, h.approverID, fmt.Sprintf("❌ Error al procesar la decisión para %s: %v", d.ClientKey, err))
		return true, err
	}
	return true, nil
}

// loadOriginal finds the forwarded message in the approver's chat, then in
// the client's own chat.
func (h *Handler) loadOriginal(ctx context.Context, d proof.Decision) (*model.InboundMessage, error) {
	for _, chat := range []string{h.approverID, registry.ChatID(d.ClientKey)} {
		msg, err := h.transport.LoadMessage(ctx, chat, d.OriginalMessageID)
		if err != nil {
			return nil, fmt.Errorf("failed to load message %s from %s: %w", d.OriginalMessageID, chat, err)
		}
		if msg != nil {
			return msg, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrOriginalNotFound, d.OriginalMessageID)
}

// baseRecord returns the client's record, or a minimal pending-setup record
// built from what the conversation knows about the client.
func (h *Handler) baseRecord(key string, original *model.InboundMessage) (model.ClientRecord, error) {
	rec, err := h.clients.Get(key)
	if err != nil {
		return model.ClientRecord{}, fmt.Errorf("failed to get client %s: %w", key, err)
	}
	if rec != nil {
		return rec.Clone(), nil
	}

	name := key
	if original != nil && original.PushName != "" {
		name = original.PushName
	}
	if st, err := h.states.Get(registry.ChatID(key)); err == nil && st != nil && st.LinkedClientName != "" {
		name = st.LinkedClientName
	}
	log.Printf("WARN: [Decision] Client %s not registered, creating pending record %q", key, name)
	fresh := model.ClientRecord{Name: name, PendingSetup: true}
	fresh.Normalize()
	return fresh, nil
}

func (h *Handler) accept(ctx context.Context, d proof.Decision, corr string, now time.Time) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while accepting proof: %v", r)
		}
	}()

	proofID := d.ProofID(now.Format(model.DateLayout))

	var original *model.InboundMessage
	if !d.Legacy {
		if original, err = h.loadOriginal(ctx, d); err != nil {
			return err
		}
	}

	rec, err := h.baseRecord(d.ClientKey, original)
	if err != nil {
		return err
	}
	if rec.HasProof(proofID) {
		log.Printf("INFO: [Decision] Proof %s already recorded for %s", proofID, d.ClientKey)
		if _, err := h.states.RecordDecision(corr, now); err != nil {
			log.Printf("WARN: [Decision] failed to record decision %s: %v", corr, err)
		}
		return nil
	}

	var ref string
	if original != nil {
		if ref, err = h.storeProof(ctx, d.ClientKey, proofID, *original); err != nil {
			return err
		}
	}

	rec.Payments = append(rec.Payments, model.PaymentEntry{
		Amount:    rec.Amount,
		Date:      now.Format(model.DateLayout),
		Confirmed: true,
		ProofID:   proofID,
	})
	if ref != "" {
		rec.ProofHistory = append(rec.ProofHistory, model.ProofRecord{Timestamp: now.UTC(), StorageRef: ref})
	}
	if err := h.clients.Upsert(d.ClientKey, rec); err != nil {
		return fmt.Errorf("failed to save payment for %s: %w", d.ClientKey, err)
	}
	log.Printf("INFO: [Decision] Payment %s confirmed for %s (%s)", proofID, d.ClientKey, rec.Name)

	sender := h.senderOf(original, d.ClientKey)
	h.finish(corr, sender, now)
	h.notify(ctx, h.approverID, fmt.Sprintf("✅ Pago de *%s* (%s) confirmado.", rec.Name, d.ClientKey))
	h.notify(ctx, sender, msgClientAccepted)
	return nil
}

func (h *Handler) reject(ctx context.Context, d proof.Decision, corr string, now time.Time) error {
	rec, err := h.clients.Get(d.ClientKey)
	if err != nil {
		return fmt.Errorf("failed to get client %s: %w", d.ClientKey, err)
	}
	if proofID := d.ProofID(now.Format(model.DateLayout)); rec != nil && rec.HasProof(proofID) {
		log.Printf("INFO: [Decision] Proof %s for %s already confirmed, ignoring reject", proofID, d.ClientKey)
		if _, err := h.states.RecordDecision(corr, now); err != nil {
			log.Printf("WARN: [Decision] failed to record decision %s: %v", corr, err)
		}
		h.notify(ctx, h.approverID, fmt.Sprintf("ℹ️ El pago de %s ya estaba confirmado; el rechazo no se aplicó.", d.ClientKey))
		return nil
	}

	var original *model.InboundMessage
	if !d.Legacy {
		// Only used to find the submitting sender; a missing message is not fatal.
		if msg, err := h.loadOriginal(ctx, d); err == nil {
			original = msg
		}
	}
	sender := h.senderOf(original, d.ClientKey)

	h.finish(corr, sender, now)
	log.Printf("INFO: [Decision] Proof for %s rejected", d.ClientKey)
	h.notify(ctx, sender, msgClientRejected)
	h.notify(ctx, h.approverID, fmt.Sprintf("🚫 Comprobante de %s rechazado. Se pidió al cliente reenviarlo.", d.ClientKey))
	return nil
}

// storeProof downloads the proof media and saves it to the proof store.
func (h *Handler) storeProof(ctx context.Context, key, proofID string, original model.InboundMessage) (string, error) {
	data, err := h.transport.DownloadMedia(ctx, original)
	if err != nil {
		return "", fmt.Errorf("failed to download proof %s: %w", proofID, err)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("%w: %s", ErrEmptyMedia, proofID)
	}
	mimeType := ""
	if original.Media != nil {
		mimeType = original.Media.MimeType
	}
	ref, err := h.proofs.Put(ctx, key, proofID, data, mimeType)
	if err != nil {
		return "", fmt.Errorf("failed to store proof %s: %w", proofID, err)
	}
	return ref, nil
}

// finish logs the decision and closes the sender's cycle. Failures here do
// not undo a saved payment; the proof id on the entry still blocks replays.
func (h *Handler) finish(corr, sender string, now time.Time) {
	if _, err := h.states.RecordDecision(corr, now); err != nil {
		log.Printf("WARN: [Decision] failed to record decision %s: %v", corr, err)
	}
	if err := h.states.SetState(sender, model.StateActive); err != nil {
		log.Printf("WARN: [Decision] failed to set %s ACTIVE: %v", sender, err)
	}
}

// senderOf is the chat that submitted the proof.
func (h *Handler) senderOf(original *model.InboundMessage, key string) string {
	if original != nil && !original.FromMe && original.From != "" && !h.IsApprover(original.From) {
		return original.From
	}
	return registry.ChatID(key)
}

func (h *Handler) notify(ctx context.Context, to, text string) {
	if err := h.transport.SendMessage(ctx, to, model.OutboundMessage{Text: text}); err != nil {
		log.Printf("WARN: [Decision] failed to notify %s: %v", to, err)
	}
}
