// Package client holds the operator-facing client management operations
// shared by the admin HTTP API and the command line.
package client

import (
	"fmt"
	"log"
	"pagobot/model"
	"pagobot/parsers"
	"pagobot/registry"
	"pagobot/validate"
	"strings"
)

// Input is the operator-editable part of a client record.
type Input struct {
	Phone       string `json:"phone"`
	Name        string `json:"name"`
	PayDay      int    `json:"payDay"`
	Amount      string `json:"amount"`
	CountryFlag string `json:"countryFlag"`
	Suspended   bool   `json:"suspended"`
}

// Save validates in and writes it over the client's editable fields. Payment
// and proof history of an existing record are kept.
func Save(store registry.Store, in Input) (model.Client, error) {
	key := registry.NormalizeKey(in.Phone)
	rec := model.ClientRecord{
		Name:        strings.TrimSpace(in.Name),
		PayDay:      in.PayDay,
		Amount:      strings.TrimSpace(in.Amount),
		CountryFlag: strings.TrimSpace(in.CountryFlag),
		Suspended:   in.Suspended,
	}
	if err := validate.Client(key, rec); err != nil {
		return model.Client{}, err
	}

	existing, err := store.Get(key)
	if err != nil {
		return model.Client{}, fmt.Errorf("failed to get client %s: %w", key, err)
	}
	if existing != nil {
		rec.Payments = existing.Payments
		rec.ProofHistory = existing.ProofHistory
	}
	rec.Normalize()
	if err := store.Upsert(key, rec); err != nil {
		return model.Client{}, fmt.Errorf("failed to save client %s: %w", key, err)
	}
	return model.Client{Key: key, ClientRecord: rec}, nil
}

// SetSuspended turns reminders and escalations off or on for a client.
func SetSuspended(store registry.Store, phone string, suspended bool) error {
	key := registry.NormalizeKey(phone)
	if err := validate.KeyOK(key); err != nil {
		return err
	}
	rec, err := store.Get(key)
	if err != nil {
		return fmt.Errorf("failed to get client %s: %w", key, err)
	}
	if rec == nil {
		return fmt.Errorf("%w: %s", registry.ErrNotFound, key)
	}
	rec.Suspended = suspended
	if err := store.Upsert(key, *rec); err != nil {
		return fmt.Errorf("failed to save client %s: %w", key, err)
	}
	log.Printf("INFO: [Clients] %s suspended=%v", key, suspended)
	return nil
}

// Remove deletes a client by phone.
func Remove(store registry.Store, phone string) error {
	key := registry.NormalizeKey(phone)
	if err := validate.KeyOK(key); err != nil {
		return err
	}
	return store.Delete(key)
}

// ImportResult summarises a CSV import.
type ImportResult struct {
	Imported int                `json:"imported"`
	Skipped  []parsers.RowError `json:"skipped"`
}

// Import saves every valid row of a parsed CSV. Rows that fail to save are
// added to the skipped list and the import continues.
func Import(store registry.Store, rows []parsers.ClientRow, skipped []parsers.RowError) ImportResult {
	res := ImportResult{Skipped: append([]parsers.RowError{}, skipped...)}
	for _, row := range rows {
		in := Input{
			Phone:       row.Key,
			Name:        row.Record.Name,
			PayDay:      row.Record.PayDay,
			Amount:      row.Record.Amount,
			CountryFlag: row.Record.CountryFlag,
		}
		if existing, err := store.Get(row.Key); err == nil && existing != nil {
			in.Suspended = existing.Suspended
		}
		if _, err := Save(store, in); err != nil {
			log.Printf("ERROR: [Clients] import line %d (%s): %v", row.Line, row.Key, err)
			res.Skipped = append(res.Skipped, parsers.RowError{Line: row.Line, Reason: err.Error()})
			continue
		}
		res.Imported++
	}
	return res
}
