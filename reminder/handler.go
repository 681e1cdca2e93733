package reminder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"pagobot/model"
	"pagobot/registry"
)

// Lookup resolves a client by phone key or, when key is empty, by name. For
// name lookups it also returns the keys of other clients with that name.
func Lookup(store registry.Store, key, name string) (model.Client, []string, error) {
	if key != "" {
		k := registry.NormalizeKey(key)
		rec, err := store.Get(k)
		if err != nil {
			return model.Client{}, nil, err
		}
		if rec == nil {
			return model.Client{}, nil, fmt.Errorf("%w: %s", registry.ErrNotFound, k)
		}
		return model.Client{Key: k, ClientRecord: *rec}, nil, nil
	}
	if name == "" {
		return model.Client{}, nil, fmt.Errorf("a phone or a name is required")
	}
	c, dups, err := registry.FindByName(store, name)
	if err != nil {
		return model.Client{}, nil, err
	}
	if len(dups) > 0 {
		log.Printf("WARN: [Reminder] name %q matches %d clients, using %s", name, len(dups)+1, c.Key)
	}
	return *c, dups, nil
}

func respondJSONError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{"message": message})
}

type sendRequest struct {
	Phone string `json:"phone"`
	Name  string `json:"name"`
}

// SendReminderHandler sends one reminder to the client named by phone or name.
func SendReminderHandler(d *Dispatcher, store registry.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			respondJSONError(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}
		var req sendRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondJSONError(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		c, dups, err := Lookup(store, req.Phone, req.Name)
		if errors.Is(err, registry.ErrNotFound) {
			respondJSONError(w, err.Error(), http.StatusNotFound)
			return
		}
		if err != nil {
			respondJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}

		out, err := d.SendReminder(context.WithoutCancel(r.Context()), c)
		status := http.StatusOK
		switch {
		case errors.Is(err, ErrClientSuspended):
			status = http.StatusConflict
		case err != nil:
			status = http.StatusBadGateway
		}
		resp := map[string]interface{}{"outcome": out}
		if len(dups) > 0 {
			resp["warning"] = fmt.Sprintf("%d other clients are named %q", len(dups), req.Name)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(resp)
	}
}

type batchRequest struct {
	Offset int `json:"offset"`
}

// BatchReminderHandler runs one batch with the given day offset and returns
// its report once every reminder went out.
func BatchReminderHandler(d *Dispatcher, store registry.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			respondJSONError(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}
		var req batchRequest
		if r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				respondJSONError(w, "Invalid request body", http.StatusBadRequest)
				return
			}
		}
		if req.Offset < -31 || req.Offset > 31 {
			respondJSONError(w, "offset must be between -31 and 31", http.StatusBadRequest)
			return
		}
		clients, err := store.List()
		if err != nil {
			log.Printf("ERROR: [Reminder] failed to list clients: %v", err)
			respondJSONError(w, "Failed to get clients", http.StatusInternalServerError)
			return
		}
		report := d.RunBatch(context.WithoutCancel(r.Context()), clients, Rule{Offset: req.Offset})
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(report)
	}
}
