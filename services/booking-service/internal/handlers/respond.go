package handlers

import (
	"encoding/json"
	"net/http"
)

// Error codes returned to the conversational transport. The transport keys its
// replies off code, not the message text.
const (
	codeBadRequest          = "bad_request"
	codeInvalidInterval     = "invalid_interval"
	codeNoAvailability      = "no_availability"
	codeConflict            = "conflict"
	codeAlreadyBooked       = "already_booked"
	codeOutsideAvailability = "outside_availability"
	codeConfirmRequired     = "confirm_required"
	codeInternal            = "internal"
)

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, msg string) {
	writeJSON(w, status, errorBody{Error: msg, Code: code})
}

func writeInternal(w http.ResponseWriter) {
	writeError(w, http.StatusInternalServerError, codeInternal, "something went wrong, please try again later")
}
