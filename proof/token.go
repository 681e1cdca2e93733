package proof

import (
	"errors"
	"fmt"
	"pagobot/registry"
	"strings"
)

type Kind int

const (
	Accept Kind = iota + 1
	Reject
)

func (k Kind) String() string {
	switch k {
	case Accept:
		return "ACCEPT"
	case Reject:
		return "REJECT"
	}
	return "UNKNOWN"
}

var ErrNotDecision = errors.New("not a proof decision")

// Decision is an approver's verdict on one proof. Legacy decisions carry only
// the client and no original message.
type Decision struct {
	Kind              Kind
	OriginalMessageID string
	ClientKey         string
	Legacy            bool
}

const proofSuffix = "_PROOF_"

// ButtonID serialises the decision for the approver's reply button:
// ACCEPT_PROOF_<messageId>_<clientKey>.
func (d Decision) ButtonID() string {
	if d.Legacy {
		return fmt.Sprintf("%s_payment_%s", strings.ToLower(d.Kind.String()), registry.ChatID(d.ClientKey))
	}
	return d.Kind.String() + proofSuffix + d.OriginalMessageID + "_" + d.ClientKey
}

// CorrelationID identifies one verdict on one proof. Legacy decisions carry no
// message id, so they are scoped to the day.
func (d Decision) CorrelationID(day string) string {
	if d.Legacy {
		return d.ButtonID() + "_" + day
	}
	return d.ButtonID()
}

// ProofID is the id a confirmed payment entry carries for this proof.
func (d Decision) ProofID(day string) string {
	if d.Legacy {
		return "legacy-" + day
	}
	return d.OriginalMessageID
}

// Buttons returns the accept/reject pair sent with a forwarded proof.
func Buttons(messageID, clientKey string) (accept, reject Decision) {
	accept = Decision{Kind: Accept, OriginalMessageID: messageID, ClientKey: clientKey}
	reject = Decision{Kind: Reject, OriginalMessageID: messageID, ClientKey: clientKey}
	return accept, reject
}

// ParseDecision decodes ACCEPT_PROOF_<id>_<key>, REJECT_PROOF_<id>_<key> and
// the legacy accept_payment_<jid> / reject_payment_<jid>. The client key is
// the text after the last underscore, so message ids may contain underscores.
func ParseDecision(s string) (Decision, error) {
	s = strings.TrimSpace(s)
	for _, k := range []Kind{Accept, Reject} {
		prefix := k.String() + proofSuffix
		if !strings.HasPrefix(s, prefix) {
			continue
		}
		rest := s[len(prefix):]
		i := strings.LastIndex(rest, "_")
		if i <= 0 || i == len(rest)-1 {
			return Decision{}, fmt.Errorf("%w: malformed %q", ErrNotDecision, s)
		}
		key := registry.NormalizeKey(rest[i+1:])
		if key == "" {
			return Decision{}, fmt.Errorf("%w: no client key in %q", ErrNotDecision, s)
		}
		return Decision{Kind: k, OriginalMessageID: rest[:i], ClientKey: key}, nil
	}

	lower := strings.ToLower(s)
	for _, k := range []Kind{Accept, Reject} {
		prefix := strings.ToLower(k.String()) + "_payment_"
		if !strings.HasPrefix(lower, prefix) {
			continue
		}
		key := registry.NormalizeKey(s[len(prefix):])
		if key == "" {
			return Decision{}, fmt.Errorf("%w: no client in %q", ErrNotDecision, s)
		}
		return Decision{Kind: k, ClientKey: key, Legacy: true}, nil
	}
	return Decision{}, ErrNotDecision
}
