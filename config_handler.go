package main

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"pagobot/config"
)

func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{"message": message})
}

// GetConfigHandler returns the current settings.
func GetConfigHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cfg := config.GetConfig()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(cfg)
	}
}

// SaveConfigHandler validates and saves new settings. They take effect on
// the next start.
func SaveConfigHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var newCfg config.Config
		if err := json.NewDecoder(r.Body).Decode(&newCfg); err != nil {
			writeJSONError(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if newCfg.RegistryBackend == "" {
			newCfg.RegistryBackend = config.BackendSQLite
		}
		if newCfg.ProofStorage == "" {
			newCfg.ProofStorage = config.StorageLocal
		}
		if err := newCfg.Validate(); err != nil {
			writeJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		if newCfg.ProofStorage == config.StorageLocal {
			if err := validateFolderPath(newCfg.ProofDir); err != nil {
				writeJSONError(w, err.Error(), http.StatusBadRequest)
				return
			}
		}

		if err := config.SaveConfig(newCfg); err != nil {
			log.Printf("ERROR: saving config: %v", err)
			writeJSONError(w, "Failed to save settings", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"message": "Settings saved. Restart to apply them."})
	}
}

// validateFolderPath accepts an empty or not yet existing path; an existing
// path must be a directory.
func validateFolderPath(path string) error {
	if path == "" {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		log.Printf("ERROR: checking folder path: %v", err)
		return errors.New("failed to check folder path")
	}
	if !info.IsDir() {
		return errors.New("path is not a folder: " + path)
	}
	return nil
}
