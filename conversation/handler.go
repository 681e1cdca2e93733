package conversation

import (
	"encoding/json"
	"log"
	"net/http"
	"pagobot/registry"
	"strings"
)

// SenderID accepts either a chat id or a phone number and returns the chat
// id conversations are keyed by.
func SenderID(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.Contains(raw, "@") {
		return raw
	}
	return registry.ChatID(registry.NormalizeKey(raw))
}

func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{"message": message})
}

// GetStateHandler serves /api/state/{sender}.
func GetStateHandler(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sender := SenderID(strings.TrimPrefix(r.URL.Path, "/api/state/"))
		if sender == "" {
			writeJSONError(w, "sender is required", http.StatusBadRequest)
			return
		}
		st, err := store.Get(sender)
		if err != nil {
			log.Printf("ERROR: [State] get %s failed: %v", sender, err)
			writeJSONError(w, "Failed to get state", http.StatusInternalServerError)
			return
		}
		if st == nil {
			writeJSONError(w, "No conversation for "+sender, http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(st)
	}
}

// ResetStateHandler puts a sender back to INITIAL.
func ResetStateHandler(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeJSONError(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}
		var req struct {
			Sender string `json:"sender"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		sender := SenderID(req.Sender)
		if sender == "" {
			writeJSONError(w, "sender is required", http.StatusBadRequest)
			return
		}
		if err := store.Reset(sender); err != nil {
			log.Printf("ERROR: [State] reset %s failed: %v", sender, err)
			writeJSONError(w, "Failed to reset state", http.StatusInternalServerError)
			return
		}
		log.Printf("INFO: [State] %s reset to INITIAL", sender)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"message": "State reset", "sender": sender})
	}
}
