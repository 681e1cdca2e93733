// Package conversation stores per-sender conversation state. A sender can
// have state long before it is a known client, so this store is kept apart
// from the client registry.
package conversation

import (
	"errors"
	"pagobot/model"
	"time"
)

var ErrInvalidState = errors.New("invalid conversation state")

// Store is the conversation state store. Besides per-sender state it keeps a
// decision log so approver decisions are applied once.
type Store interface {
	// Get returns (nil, nil) for a sender that has no state yet.
	Get(senderID string) (*model.ConversationState, error)
	GetOrCreate(senderID string) (model.ConversationState, error)
	SetState(senderID string, state model.State) error
	SetLinkedClient(senderID, name, number string) error
	// Reset puts the sender back to INITIAL and clears the linked client.
	Reset(senderID string) error

	// RecordDecision stores decisionID and reports whether it was new.
	RecordDecision(decisionID string, at time.Time) (bool, error)
	HasDecision(decisionID string) (bool, error)
}

func newState(senderID string, now time.Time) model.ConversationState {
	return model.ConversationState{
		SenderID:  senderID,
		State:     model.StateInitial,
		UpdatedAt: now,
	}
}
