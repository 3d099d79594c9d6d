package httpkit

import (
	"encoding/json"
	"errors"
	"net/http"
)

type ErrorEnvelope struct {
	Error struct {
		Code    string   `json:"code"`
		Message string   `json:"message"`
		Details []string `json:"details,omitempty"`
	} `json:"error"`
}

// DecodeJSON rejects unknown top-level fields and trailing garbage.
func DecodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("unexpected data after JSON body")
	}
	return nil
}

func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func WriteErr(w http.ResponseWriter, status int, code, msg string, details []string) {
	var env ErrorEnvelope
	env.Error.Code = code
	env.Error.Message = msg
	env.Error.Details = details
	WriteJSON(w, status, env)
}
