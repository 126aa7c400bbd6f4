package gateway

import (
	"errors"
	"fmt"
)

var ErrAlreadyConnected = errors.New("gateway: already connected")

// CloseError — соединение закрыто (сервером, сетью или нами).
type CloseError struct {
	Code   int
	Reason string
	Err    error
}

func (e *CloseError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("gateway closed: %d", e.Code)
	}
	return fmt.Sprintf("gateway closed: %d %s", e.Code, e.Reason)
}

func (e *CloseError) Unwrap() error { return e.Err }

func (e *CloseError) Terminal() bool { return Terminal(e.Code) }
