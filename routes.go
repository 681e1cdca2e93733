package main

import (
	"net/http"
	"pagobot/client"
	"pagobot/conversation"
	"pagobot/reminder"
)

func SetupRoutes(mux *http.ServeMux, a *app, d *reminder.Dispatcher) {
	mux.HandleFunc("/api/clients", client.ListClientsHandler(a.clients))
	mux.HandleFunc("/api/clients/upsert", client.UpsertClientHandler(a.clients))
	mux.HandleFunc("/api/clients/delete", client.DeleteClientHandler(a.clients))
	mux.HandleFunc("/api/clients/suspend", client.SuspendClientHandler(a.clients))
	mux.HandleFunc("/api/clients/import", client.ImportClientsHandler(a.clients))
	mux.HandleFunc("/api/clients/by_name", client.GetClientByNameHandler(a.clients))

	mux.HandleFunc("/api/reminders/send", reminder.SendReminderHandler(d, a.clients))
	mux.HandleFunc("/api/reminders/batch", reminder.BatchReminderHandler(d, a.clients))

	mux.HandleFunc("/api/state/reset", conversation.ResetStateHandler(a.states))
	mux.HandleFunc("/api/state/", conversation.GetStateHandler(a.states))

	mux.HandleFunc("/api/config", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			GetConfigHandler()(w, r)
		case http.MethodPost:
			SaveConfigHandler()(w, r)
		default:
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		}
	})
}
