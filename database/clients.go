package database

import (
	"database/sql"
	"fmt"
	"pagobot/model"
	"pagobot/registry"
	"time"

	"github.com/jmoiron/sqlx"
)

const clientColumns = `client_key, client_name, pay_day, amount, country_flag, suspended, pending_setup`

// ClientStore is the SQLite-backed client registry.
type ClientStore struct {
	db *sqlx.DB
}

func NewClientStore(db *sqlx.DB) *ClientStore {
	return &ClientStore{db: db}
}

type proofRow struct {
	RecordedAt string `db:"recorded_at"`
	StorageRef string `db:"storage_ref"`
}

// loadDetails fills payments and proof history in insertion order.
func loadDetails(dbtx DBTX, key string, rec *model.ClientRecord) error {
	payments := []model.PaymentEntry{}
	err := dbtx.Select(&payments, `
		SELECT amount, payment_date, confirmed, proof_id
		FROM payments WHERE client_key = ? ORDER BY seq`, key)
	if err != nil {
		return fmt.Errorf("failed to get payments for %s: %w", key, err)
	}

	var rows []proofRow
	err = dbtx.Select(&rows, `
		SELECT recorded_at, storage_ref
		FROM proof_history WHERE client_key = ? ORDER BY seq`, key)
	if err != nil {
		return fmt.Errorf("failed to get proof history for %s: %w", key, err)
	}
	proofs := make([]model.ProofRecord, 0, len(rows))
	for _, r := range rows {
		ts, err := time.Parse(time.RFC3339Nano, r.RecordedAt)
		if err != nil {
			return fmt.Errorf("malformed proof timestamp %q for %s: %w", r.RecordedAt, key, err)
		}
		proofs = append(proofs, model.ProofRecord{Timestamp: ts, StorageRef: r.StorageRef})
	}

	rec.Payments = payments
	rec.ProofHistory = proofs
	return nil
}

func (s *ClientStore) Get(key string) (*model.ClientRecord, error) {
	var c model.Client
	err := s.db.Get(&c, "SELECT "+clientColumns+" FROM clients WHERE client_key = ?", key)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get client %s: %w", key, err)
	}
	if err := loadDetails(s.db, key, &c.ClientRecord); err != nil {
		return nil, err
	}
	return &c.ClientRecord, nil
}

// Upsert replaces the whole record for key, payments and proofs included,
// inside one transaction. Other keys are never touched.
func (s *ClientStore) Upsert(key string, rec model.ClientRecord) error {
	tx, err := s.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := upsertClientInTx(tx, key, rec); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit client %s: %w", key, err)
	}
	return nil
}

func upsertClientInTx(tx *sqlx.Tx, key string, rec model.ClientRecord) error {
	const q = `
		INSERT INTO clients (` + clientColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(client_key) DO UPDATE SET
			client_name = excluded.client_name,
			pay_day = excluded.pay_day,
			amount = excluded.amount,
			country_flag = excluded.country_flag,
			suspended = excluded.suspended,
			pending_setup = excluded.pending_setup
	`
	_, err := tx.Exec(q, key, rec.Name, rec.PayDay, rec.Amount, rec.CountryFlag, rec.Suspended, rec.PendingSetup)
	if err != nil {
		return fmt.Errorf("upsertClientInTx (Key: %s, Name: %s) failed: %w", key, rec.Name, err)
	}

	if _, err := tx.Exec(`DELETE FROM payments WHERE client_key = ?`, key); err != nil {
		return fmt.Errorf("failed to clear payments for %s: %w", key, err)
	}
	for i, p := range rec.Payments {
		_, err := tx.Exec(`
			INSERT INTO payments (client_key, seq, amount, payment_date, confirmed, proof_id)
			VALUES (?, ?, ?, ?, ?, ?)`,
			key, i, p.Amount, p.Date, p.Confirmed, p.ProofID)
		if err != nil {
			return fmt.Errorf("failed to insert payment %d for %s: %w", i, key, err)
		}
	}

	if _, err := tx.Exec(`DELETE FROM proof_history WHERE client_key = ?`, key); err != nil {
		return fmt.Errorf("failed to clear proof history for %s: %w", key, err)
	}
	for i, p := range rec.ProofHistory {
		_, err := tx.Exec(`
			INSERT INTO proof_history (client_key, seq, recorded_at, storage_ref)
			VALUES (?, ?, ?, ?)`,
			key, i, p.Timestamp.UTC().Format(time.RFC3339Nano), p.StorageRef)
		if err != nil {
			return fmt.Errorf("failed to insert proof %d for %s: %w", i, key, err)
		}
	}
	return nil
}

func (s *ClientStore) Delete(key string) error {
	tx, err := s.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM payments WHERE client_key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete payments of %s: %w", key, err)
	}
	if _, err := tx.Exec(`DELETE FROM proof_history WHERE client_key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete proof history of %s: %w", key, err)
	}
	res, err := tx.Exec(`DELETE FROM clients WHERE client_key = ?`, key)
	if err != nil {
		return fmt.Errorf("failed to delete client with key %s: %w", key, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return registry.ErrNotFound
	}
	return tx.Commit()
}

// Find loads clients one at a time in key order and stops at the first match.
func (s *ClientStore) Find(pred func(model.Client) bool) (*model.Client, error) {
	var heads []model.Client
	if err := s.db.Select(&heads, "SELECT "+clientColumns+" FROM clients ORDER BY client_key"); err != nil {
		return nil, fmt.Errorf("failed to scan clients: %w", err)
	}
	for i := range heads {
		if err := loadDetails(s.db, heads[i].Key, &heads[i].ClientRecord); err != nil {
			return nil, err
		}
		if pred(heads[i]) {
			return &heads[i], nil
		}
	}
	return nil, nil
}

func (s *ClientStore) List() ([]model.Client, error) {
	clients := []model.Client{}
	if err := s.db.Select(&clients, "SELECT "+clientColumns+" FROM clients ORDER BY client_key"); err != nil {
		return nil, fmt.Errorf("failed to get all clients: %w", err)
	}
	for i := range clients {
		if err := loadDetails(s.db, clients[i].Key, &clients[i].ClientRecord); err != nil {
			return nil, err
		}
	}
	return clients, nil
}
