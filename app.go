package main

import (
	"context"
	"fmt"
	"log"
	"pagobot/config"
	"pagobot/conversation"
	"pagobot/database"
	"pagobot/loader"
	"pagobot/proofstore"
	"pagobot/registry"
	"pagobot/reminder"
	"pagobot/transport"
	"time"

	"github.com/jmoiron/sqlx"
)

// app holds the stores every command works on.
type app struct {
	cfg     config.Config
	db      *sqlx.DB
	clients registry.Store
	states  *conversation.BoltStore
}

func openRegistry(cfg config.Config) (registry.Store, *sqlx.DB, error) {
	if cfg.RegistryBackend == config.BackendFile {
		log.Printf("INFO: Using file registry %s", cfg.RegistryFilePath)
		return registry.NewFileStore(cfg.RegistryFilePath), nil, nil
	}

	log.Println("Connecting to database...")
	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		return nil, nil, err
	}
	if err := loader.InitDatabase(db); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("database initialization failed: %w", err)
	}
	log.Println("Database initialization complete.")
	return database.NewClientStore(db), db, nil
}

// openApp opens the registry. The conversation store is opened only when
// withStates is set, since bbolt allows one process at a time.
func openApp(cfg config.Config, withStates bool) (*app, error) {
	clients, db, err := openRegistry(cfg)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, db: db, clients: clients}
	if withStates {
		a.states, err = conversation.OpenBoltStore(cfg.StatePath)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to open state store %s: %w", cfg.StatePath, err)
		}
	}
	return a, nil
}

func (a *app) Close() {
	if a.states != nil {
		if err := a.states.Close(); err != nil {
			log.Printf("WARN: failed to close state store: %v", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			log.Printf("WARN: failed to close database: %v", err)
		}
	}
}

func (a *app) proofStore(ctx context.Context) (proofstore.Store, error) {
	if a.cfg.ProofStorage == config.StorageS3 {
		client, err := proofstore.NewS3Client(ctx, a.cfg.S3Region)
		if err != nil {
			return nil, err
		}
		log.Printf("INFO: Storing proofs in s3://%s/%s", a.cfg.S3Bucket, a.cfg.S3Prefix)
		return proofstore.NewS3Store(client, a.cfg.S3Bucket, a.cfg.S3Prefix), nil
	}
	log.Printf("INFO: Storing proofs in %s", a.cfg.ProofDir)
	return proofstore.NewLocalStore(a.cfg.ProofDir), nil
}

func (a *app) dispatcher(t transport.Transport) *reminder.Dispatcher {
	delay := time.Duration(a.cfg.ReminderDelaySeconds) * time.Second
	return reminder.NewDispatcher(t, a.states, reminder.NewInstructions(a.cfg.PaymentInstructions), delay)
}
