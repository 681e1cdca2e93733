// Package registry holds the client registry contract, phone key handling and
// the document-file and in-memory implementations. The SQLite implementation
// lives in package database.
package registry

import (
	"errors"
	"pagobot/model"
)

var ErrNotFound = errors.New("client not found")

// Store is the client registry. Get returns (nil, nil) for an unknown key.
// Find and List walk clients in ascending key order.
type Store interface {
	Get(key string) (*model.ClientRecord, error)
	Upsert(key string, rec model.ClientRecord) error
	Delete(key string) error
	Find(pred func(model.Client) bool) (*model.Client, error)
	List() ([]model.Client, error)
}
