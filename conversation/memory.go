package conversation

import (
	"fmt"
	"pagobot/model"
	"sync"
	"time"
)

// MemoryStore is an in-process Store for tests.
type MemoryStore struct {
	mu        sync.Mutex
	states    map[string]model.ConversationState
	decisions map[string]time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		states:    make(map[string]model.ConversationState),
		decisions: make(map[string]time.Time),
	}
}

func (m *MemoryStore) update(senderID string, fn func(*model.ConversationState)) error {
	if senderID == "" {
		return fmt.Errorf("empty sender id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[senderID]
	if !ok {
		st = newState(senderID, time.Now())
	}
	fn(&st)
	st.UpdatedAt = time.Now()
	m.states[senderID] = st
	return nil
}

func (m *MemoryStore) Get(senderID string) (*model.ConversationState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[senderID]
	if !ok {
		return nil, nil
	}
	return &st, nil
}

func (m *MemoryStore) GetOrCreate(senderID string) (model.ConversationState, error) {
	if senderID == "" {
		return model.ConversationState{}, fmt.Errorf("empty sender id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[senderID]
	if !ok {
		st = newState(senderID, time.Now())
		m.states[senderID] = st
	}
	return st, nil
}

func (m *MemoryStore) SetState(senderID string, state model.State) error {
	if !state.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidState, state)
	}
	return m.update(senderID, func(st *model.ConversationState) { st.State = state })
}

func (m *MemoryStore) SetLinkedClient(senderID, name, number string) error {
	return m.update(senderID, func(st *model.ConversationState) {
		st.LinkedClientName = name
		st.LinkedClientNumber = number
	})
}

func (m *MemoryStore) Reset(senderID string) error {
	return m.update(senderID, func(st *model.ConversationState) {
		st.State = model.StateInitial
		st.LinkedClientName = ""
		st.LinkedClientNumber = ""
	})
}

func (m *MemoryStore) RecordDecision(decisionID string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.decisions[decisionID]; ok {
		return false, nil
	}
	m.decisions[decisionID] = at
	return true, nil
}

func (m *MemoryStore) HasDecision(decisionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.decisions[decisionID]
	return ok, nil
}
