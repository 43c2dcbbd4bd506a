package httpx

import (
	"bytes"
	"encoding/json"
	"net/http"
)

// WriteJSON writes a JSON response with the given status code and data.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := buf.WriteTo(w); err != nil {
		// Response writer errors (e.g., client disconnect) can't be recovered from here.
		return
	}
}

// failureBody is the error envelope shared by every endpoint.
type failureBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// WriteFailure writes {success:false, error:msg}.
func WriteFailure(w http.ResponseWriter, code int, msg string) {
	WriteJSON(w, code, failureBody{Success: false, Error: msg})
}
