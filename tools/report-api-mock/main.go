package main

import (
	"encoding/json"
	"net/http"
	"os"
	"sync"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"punch.service/internal/ports/messaging"
)

// seen remembers idempotency keys so redelivered exports are acknowledged once.
var seen sync.Map

func punchesHandler(w http.ResponseWriter, r *http.Request) {
	var event messaging.PunchRecordedEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	key := r.Header.Get("Idempotency-Key")
	if key == "" {
		key = event.RecordID
	}
	if _, dup := seen.LoadOrStore(key, struct{}{}); dup {
		log.Info().Str("record_id", event.RecordID).Msg("Duplicate export ignored")
		w.WriteHeader(http.StatusOK)
		return
	}

	log.Info().
		Str("subdomain", event.Subdomain).
		Str("rfid", event.RFID).
		Str("date", event.Date).
		Str("time", event.Time).
		Bool("presence", event.Presence).
		Bool("missed_out", event.IsMissedOutPunch).
		Msg("Received punch export")
	w.WriteHeader(http.StatusCreated)
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	r := mux.NewRouter()
	r.HandleFunc("/punches", punchesHandler).Methods(http.MethodPost)

	log.Info().Msg("Report API mock server starting on port 8081...")
	log.Fatal().Err(http.ListenAndServe(":8081", r)).Msg("Report API mock stopped")
}
