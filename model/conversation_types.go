package model

import "time"

// State is the position of a sender in the reminder -> response -> proof ->
// decision cycle.
type State string

const (
	StateInitial                 State = "INITIAL"
	StateAwaitingPaymentResponse State = "AWAITING_PAYMENT_RESPONSE"
	StateAwaitingPaymentProof    State = "AWAITING_PAYMENT_PROOF"
	StateActive                  State = "ACTIVE"
)

func (s State) Valid() bool {
	switch s {
	case StateInitial, StateAwaitingPaymentResponse, StateAwaitingPaymentProof, StateActive:
		return true
	}
	return false
}

// ConversationState is stored per sender and lives independently of the
// client registry. LinkedClientName/Number snapshot the client the
// conversation is about.
type ConversationState struct {
	SenderID           string    `json:"senderId"`
	State              State     `json:"state"`
	LinkedClientName   string    `json:"linkedClientName,omitempty"`
	LinkedClientNumber string    `json:"linkedClientNumber,omitempty"`
	UpdatedAt          time.Time `json:"updatedAt"`
}
