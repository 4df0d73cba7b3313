package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/mux"
)

// maxBodyBytes caps request bodies to keep malformed or hostile payloads
// from exhausting memory.
const maxBodyBytes = 1 << 20 // 1 MiB

// DecodeJSON decodes a JSON request body into dst, rejecting unknown fields
func DecodeJSON(r *http.Request, dst interface{}) error {
	body := http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		switch {
		case errors.Is(err, io.EOF):
			return errors.New("request body is empty")
		default:
			return fmt.Errorf("invalid request body: %w", err)
		}
	}

	// A second document in the body is a client bug worth rejecting.
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}

// PathVar returns a gorilla/mux path variable. Routes declare their
// variables, so a matched route always carries them; absent names
// return "".
func PathVar(r *http.Request, name string) string {
	return mux.Vars(r)[name]
}
