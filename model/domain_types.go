package model

import "time"

// PaymentEntry is one payment line of a client. Entries are appended in
// chronological order and never edited after creation.
type PaymentEntry struct {
	Amount    string `db:"amount" json:"amount"`
	Date      string `db:"payment_date" json:"date"`
	Confirmed bool   `db:"confirmed" json:"confirmed"`
	ProofID   string `db:"proof_id" json:"proofId,omitempty"`
}

// ProofRecord points at a stored proof-of-payment file.
type ProofRecord struct {
	Timestamp  time.Time `db:"recorded_at" json:"timestamp"`
	StorageRef string    `db:"storage_ref" json:"storageRef"`
}

// ClientRecord is the registry entry of a client, keyed by its phone key.
type ClientRecord struct {
	Name        string `db:"client_name" json:"name"`
	PayDay      int    `db:"pay_day" json:"payDay"`
	Amount      string `db:"amount" json:"amount"`
	CountryFlag string `db:"country_flag" json:"countryFlag"`
	Suspended   bool   `db:"suspended" json:"suspended"`
	// PendingSetup marks records created from a payment decision before an
	// operator filled in pay day and amount.
	PendingSetup bool `db:"pending_setup" json:"pendingSetup,omitempty"`

	Payments     []PaymentEntry `db:"-" json:"payments"`
	ProofHistory []ProofRecord  `db:"-" json:"proofHistory"`
}

// Client pairs a record with its registry key.
type Client struct {
	Key string `db:"client_key" json:"key"`
	ClientRecord
}

// Normalize replaces nil sequences with empty ones so that a freshly created
// record and its stored copy compare equal.
func (r *ClientRecord) Normalize() {
	if r.Payments == nil {
		r.Payments = []PaymentEntry{}
	}
	if r.ProofHistory == nil {
		r.ProofHistory = []ProofRecord{}
	}
}

// Clone returns a deep copy of the record.
func (r ClientRecord) Clone() ClientRecord {
	out := r
	out.Payments = append([]PaymentEntry{}, r.Payments...)
	out.ProofHistory = append([]ProofRecord{}, r.ProofHistory...)
	return out
}

// HasProof reports whether a payment entry already references proofID.
func (r ClientRecord) HasProof(proofID string) bool {
	if proofID == "" {
		return false
	}
	for _, p := range r.Payments {
		if p.ProofID == proofID {
			return true
		}
	}
	return false
}

// ConfirmedIn reports whether a confirmed payment is dated in the given month.
func (r ClientRecord) ConfirmedIn(year int, month time.Month) bool {
	for _, p := range r.Payments {
		if !p.Confirmed {
			continue
		}
		d, err := time.Parse(DateLayout, p.Date)
		if err != nil {
			continue
		}
		if d.Year() == year && d.Month() == month {
			return true
		}
	}
	return false
}

// DateLayout is the format of PaymentEntry.Date.
const DateLayout = "2006-01-02"
