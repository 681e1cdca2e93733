// Package proof handles proof-of-payment media: it classifies inbound
// attachments, forwards them to the approver with decision buttons and
// encodes/decodes those decisions.
package proof

import (
	"context"
	"fmt"
	"log"
	"pagobot/conversation"
	"pagobot/model"
	"pagobot/registry"
	"pagobot/textmatch"
	"pagobot/transport"
)

// Keywords a caption must contain for an attachment to count as a proof.
var Keywords = []string{"pago", "comprobante", "recibo", "voucher"}

const (
	msgDownloadFailed = "⚠️ No pudimos descargar tu comprobante. Por favor envíalo nuevamente."
	msgForwardFailed  = "⚠️ No pudimos enviar tu comprobante a revisión. Intenta de nuevo más tarde."
	msgReceived       = "✅ Recibimos tu comprobante. Te avisaremos en cuanto sea revisado."
)

// IsProofCandidate reports whether msg looks like a proof submission.
func IsProofCandidate(msg model.InboundMessage) bool {
	if msg.IsGroup || msg.FromMe || msg.Media == nil {
		return false
	}
	if msg.Media.Kind != model.MediaImage && msg.Media.Kind != model.MediaDocument {
		return false
	}
	return textmatch.ContainsAny(msg.Body, Keywords)
}

// Pipeline forwards proofs to the approver. It never writes the registry;
// the decision buttons it sends are the only record of a pending proof.
type Pipeline struct {
	transport  transport.Transport
	clients    registry.Store
	states     conversation.Store
	approverID string
}

func NewPipeline(t transport.Transport, clients registry.Store, states conversation.Store, approverID string) *Pipeline {
	return &Pipeline{transport: t, clients: clients, states: states, approverID: approverID}
}

// subject resolves the key and display name of the client behind a sender.
func (p *Pipeline) subject(msg model.InboundMessage) (key, name string) {
	key = registry.NormalizeKey(msg.From)
	st, err := p.states.Get(msg.From)
	if err != nil {
		log.Printf("WARN: [Proof] state lookup for %s failed: %v", msg.From, err)
	}
	if st != nil && st.LinkedClientNumber != "" {
		key = st.LinkedClientNumber
	}

	rec, err := p.clients.Get(key)
	if err != nil {
		log.Printf("WARN: [Proof] registry lookup for %s failed: %v", key, err)
	}
	switch {
	case rec != nil && rec.Name != "":
		name = rec.Name
	case st != nil && st.LinkedClientName != "":
		name = st.LinkedClientName
	case msg.PushName != "":
		name = msg.PushName
	default:
		name = key
	}
	return key, name
}

// Ingest handles msg when it is a proof submission and reports whether it did.
func (p *Pipeline) Ingest(ctx context.Context, msg model.InboundMessage) (bool, error) {
	if !IsProofCandidate(msg) {
		return false, nil
	}
	key, name := p.subject(msg)
	log.Printf("INFO: [Proof] Proof candidate %s from %s (%s)", msg.ID, key, name)

	data, err := p.transport.DownloadMedia(ctx, msg)
	if err != nil || len(data) == 0 {
		if err == nil {
			err = fmt.Errorf("empty download")
		}
		log.Printf("WARN: [Proof] download of %s failed: %v", msg.ID, err)
		p.reply(ctx, msg.From, msgDownloadFailed)
		return true, nil
	}

	accept, reject := Buttons(msg.ID, key)
	forward := model.OutboundMessage{
		Text: fmt.Sprintf("🧾 Comprobante de pago de *%s* (%s)\nMensaje: %q", name, key, msg.Body),
		Buttons: []model.Button{
			{ID: accept.ButtonID(), Label: "Aceptar"},
			{ID: reject.ButtonID(), Label: "Rechazar"},
		},
		Attachment: &model.Attachment{Data: data, MimeType: msg.Media.MimeType, Filename: msg.Media.Filename},
	}
	if err := p.transport.SendMessage(ctx, p.approverID, forward); err != nil {
		p.reply(ctx, msg.From, msgForwardFailed)
		return true, fmt.Errorf("failed to forward proof %s to approver: %w", msg.ID, err)
	}

	p.reply(ctx, msg.From, msgReceived)
	return true, nil
}

func (p *Pipeline) reply(ctx context.Context, to, text string) {
	if err := p.transport.SendMessage(ctx, to, model.OutboundMessage{Text: text}); err != nil {
		log.Printf("WARN: [Proof] failed to notify %s: %v", to, err)
	}
}
