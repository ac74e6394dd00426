package endpoints

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"codesync-backend/internal/api"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

type HTTPError = api.HTTPError

type ApiMessageResponse struct {
	Message string `json:"message"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) error {
	return api.WriteJSON(w, status, v)
}

func MethodHandler(
	w http.ResponseWriter,
	r *http.Request,
	allowed map[string]func(http.ResponseWriter, *http.Request) error,
) error {
	if handler, ok := allowed[r.Method]; ok {
		return handler(w, r)
	}
	return &HTTPError{
		StatusCode: http.StatusMethodNotAllowed,
		Message:    "Method not allowed.",
		ErrorLog:   fmt.Errorf("method not allowed: %s %s", r.Method, r.URL.Path),
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		if err == io.EOF {
			return &HTTPError{StatusCode: http.StatusBadRequest, Message: "Request body is required", ErrorLog: err}
		}
		return &HTTPError{StatusCode: http.StatusBadRequest, Message: "Invalid request body", ErrorLog: err}
	}
	return nil
}
