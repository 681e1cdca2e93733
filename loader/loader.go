package loader

import (
	_ "embed"
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
)

//go:embed schema.sql
var schemaSQL string

// InitDatabase applies the registry schema. It is safe to run on every start.
func InitDatabase(db *sqlx.DB) error {
	log.Println("Applying database schema...")
	if err := applySchema(db); err != nil {
		return fmt.Errorf("failed to apply schema.sql: %w", err)
	}
	log.Println("Schema applied successfully.")
	return nil
}

func applySchema(db *sqlx.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	return nil
}
