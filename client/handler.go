package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"pagobot/parsers"
	"pagobot/registry"
	"pagobot/validate"
)

func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{"message": message})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// statusFor maps store and validation errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, validate.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, registry.ErrNotFound):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func ListClientsHandler(store registry.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clients, err := store.List()
		if err != nil {
			log.Printf("ERROR: [Clients] list failed: %v", err)
			writeJSONError(w, "Failed to get clients", http.StatusInternalServerError)
			return
		}
		writeJSON(w, clients)
	}
}

func UpsertClientHandler(store registry.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeJSONError(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}
		var in Input
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeJSONError(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		c, err := Save(store, in)
		if err != nil {
			writeJSONError(w, err.Error(), statusFor(err))
			return
		}
		writeJSON(w, c)
	}
}

type phoneRequest struct {
	Phone     string `json:"phone"`
	Suspended *bool  `json:"suspended,omitempty"`
}

func DeleteClientHandler(store registry.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeJSONError(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}
		var req phoneRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if err := Remove(store, req.Phone); err != nil {
			writeJSONError(w, err.Error(), statusFor(err))
			return
		}
		writeJSON(w, map[string]string{"message": "Client deleted"})
	}
}

// SuspendClientHandler suspends a client, or resumes it when the body
// carries "suspended": false.
func SuspendClientHandler(store registry.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeJSONError(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}
		var req phoneRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		suspended := true
		if req.Suspended != nil {
			suspended = *req.Suspended
		}
		if err := SetSuspended(store, req.Phone, suspended); err != nil {
			writeJSONError(w, err.Error(), statusFor(err))
			return
		}
		writeJSON(w, map[string]interface{}{"phone": registry.NormalizeKey(req.Phone), "suspended": suspended})
	}
}

func ImportClientsHandler(store registry.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeJSONError(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			writeJSONError(w, "Failed to read CSV file: "+err.Error(), http.StatusBadRequest)
			return
		}
		defer file.Close()

		rows, skipped, err := parsers.ParseClientCSV(file)
		if err != nil {
			writeJSONError(w, "Failed to parse CSV: "+err.Error(), http.StatusBadRequest)
			return
		}
		if len(rows) == 0 && len(skipped) == 0 {
			writeJSONError(w, "No rows to import", http.StatusBadRequest)
			return
		}

		res := Import(store, rows, skipped)
		message := fmt.Sprintf("Import finished: %d clients", res.Imported)
		if len(res.Skipped) > 0 {
			message += fmt.Sprintf(", %d rows skipped", len(res.Skipped))
		}
		writeJSON(w, map[string]interface{}{
			"message":  message,
			"imported": res.Imported,
			"skipped":  res.Skipped,
		})
	}
}

// GetClientByNameHandler looks a client up by name. When several clients
// share the name the first one is returned together with a warning.
func GetClientByNameHandler(store registry.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Query().Get("name")
		if err := validate.NameOK(name); err != nil {
			writeJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		c, dups, err := registry.FindByName(store, name)
		if errors.Is(err, registry.ErrNotFound) {
			writeJSONError(w, "Client not found: "+name, http.StatusNotFound)
			return
		}
		if err != nil {
			log.Printf("ERROR: [Clients] name lookup %q failed: %v", name, err)
			writeJSONError(w, "Failed to search clients", http.StatusInternalServerError)
			return
		}
		resp := map[string]interface{}{"client": c}
		if len(dups) > 0 {
			resp["warning"] = fmt.Sprintf("%d other clients are named %q", len(dups), name)
			resp["duplicates"] = dups
		}
		writeJSON(w, resp)
	}
}
