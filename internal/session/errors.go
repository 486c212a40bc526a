package session

import (
	"errors"

	"github.com/alejor21/trabajo-final-IA/internal/client"
)

var (
	// ErrEmptyInput is the transport sentinel so callers match a single value.
	ErrEmptyInput = client.ErrEmptyInput

	ErrNoAsset           = errors.New("no asset selected")
	ErrBusy              = errors.New("analysis already in flight")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrClosed            = errors.New("session closed")

	// ErrStaleResponse marks a response for a superseded selection. It never
	// leaves the controller; it is only logged and counted.
	ErrStaleResponse = errors.New("stale response")
)

// User-facing failure messages; transport detail stays in the logs.
const (
	MessageImageFailed = "Error al procesar la imagen. Por favor, intenta de nuevo."
	MessageVideoFailed = "Error al procesar el video. Por favor, intenta de nuevo."
)
