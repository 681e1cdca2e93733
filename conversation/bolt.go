package conversation

import (
	"encoding/json"
	"fmt"
	"os"
	"pagobot/model"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	conversationsBucket = []byte("conversations")
	decisionsBucket     = []byte("decisions")
)

// BoltStore keeps conversation state in a bbolt file, one JSON value per sender.
type BoltStore struct {
	db  *bolt.DB
	now func() time.Time
}

func OpenBoltStore(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open state store %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(conversationsBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(decisionsBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create state buckets: %w", err)
	}
	return &BoltStore{db: db, now: time.Now}, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

func getState(b *bolt.Bucket, senderID string) (model.ConversationState, bool, error) {
	v := b.Get([]byte(senderID))
	if v == nil {
		return model.ConversationState{}, false, nil
	}
	var st model.ConversationState
	if err := json.Unmarshal(v, &st); err != nil {
		return model.ConversationState{}, false, fmt.Errorf("malformed state for %s: %w", senderID, err)
	}
	return st, true, nil
}

func putState(b *bolt.Bucket, st model.ConversationState) error {
	enc, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return b.Put([]byte(st.SenderID), enc)
}

// update runs fn on the sender's state, creating it first when missing, and
// writes the result back in the same transaction.
func (s *BoltStore) update(senderID string, fn func(*model.ConversationState)) error {
	if senderID == "" {
		return fmt.Errorf("empty sender id")
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(conversationsBucket)
		st, ok, err := getState(b, senderID)
		if err != nil {
			return err
		}
		if !ok {
			st = newState(senderID, s.now())
		}
		fn(&st)
		st.UpdatedAt = s.now()
		return putState(b, st)
	})
}

func (s *BoltStore) Get(senderID string) (*model.ConversationState, error) {
	var out *model.ConversationState
	err := s.db.View(func(tx *bolt.Tx) error {
		st, ok, err := getState(tx.Bucket(conversationsBucket), senderID)
		if err != nil || !ok {
			return err
		}
		out = &st
		return nil
	})
	return out, err
}

func (s *BoltStore) GetOrCreate(senderID string) (model.ConversationState, error) {
	if senderID == "" {
		return model.ConversationState{}, fmt.Errorf("empty sender id")
	}
	var out model.ConversationState
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(conversationsBucket)
		st, ok, err := getState(b, senderID)
		if err != nil {
			return err
		}
		if ok {
			out = st
			return nil
		}
		out = newState(senderID, s.now())
		return putState(b, out)
	})
	return out, err
}

func (s *BoltStore) SetState(senderID string, state model.State) error {
	if !state.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidState, state)
	}
	return s.update(senderID, func(st *model.ConversationState) {
		st.State = state
	})
}

func (s *BoltStore) SetLinkedClient(senderID, name, number string) error {
	return s.update(senderID, func(st *model.ConversationState) {
		st.LinkedClientName = name
		st.LinkedClientNumber = number
	})
}

func (s *BoltStore) Reset(senderID string) error {
	return s.update(senderID, func(st *model.ConversationState) {
		st.State = model.StateInitial
		st.LinkedClientName = ""
		st.LinkedClientNumber = ""
	})
}

func (s *BoltStore) RecordDecision(decisionID string, at time.Time) (bool, error) {
	created := false
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(decisionsBucket)
		if b.Get([]byte(decisionID)) != nil {
			return nil
		}
		created = true
		return b.Put([]byte(decisionID), []byte(at.UTC().Format(time.RFC3339)))
	})
	return created, err
}

func (s *BoltStore) HasDecision(decisionID string) (bool, error) {
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		found = tx.Bucket(decisionsBucket).Get([]byte(decisionID)) != nil
		return nil
	})
	return found, err
}
