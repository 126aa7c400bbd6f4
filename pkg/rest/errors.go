package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// RemoteError — сервер ответил не-2xx.
type RemoteError struct {
	Status  int
	Code    int
	Message string
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("adapt api: %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("adapt api: %d %s", e.Status, e.Message)
}

func IsNotFound(err error) bool {
	var re *RemoteError
	return errors.As(err, &re) && re.Status == http.StatusNotFound
}

func newRemoteError(status int, body []byte) *RemoteError {
	e := &RemoteError{Status: status}
	var apiErr struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	}
	// тело может быть не JSON (прокси, html-страница) — тогда только статус
	if json.Unmarshal(body, &apiErr) == nil {
		e.Message = apiErr.Message
		e.Code = apiErr.Code
	}
	return e
}
