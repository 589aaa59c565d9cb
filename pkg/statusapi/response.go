package statusapi

import (
	"encoding/json"
	"net/http"
)

type response struct {
	Data any `json:"data"`
}

type errorResponse struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, code int, data any) {
	writeJSON(w, code, response{Data: data})
}

func writeError(w http.ResponseWriter, code int, errCode, msg string, details ...string) {
	writeJSON(w, code, errorResponse{Error: errorDetail{Code: errCode, Message: msg, Details: details}})
}
