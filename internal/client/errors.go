package client

import (
	"errors"
	"fmt"
)

var (
	// ErrRequestFailed matches every transport failure: network errors, non-2xx
	// statuses and undecodable success bodies.
	ErrRequestFailed = errors.New("request failed")

	// ErrEmptyInput is returned before any request is issued when there is no
	// file or the chat text is blank.
	ErrEmptyInput = errors.New("empty input")
)

// Operation names carried by RequestError.
const (
	OpDetectImage = "detect image"
	OpDetectVideo = "detect video"
	OpChatbot     = "chatbot"
	OpHealth      = "health"
	OpFetchImage  = "fetch image"
	OpFetchVideo  = "fetch video"
)

// RequestError is the uniform failure of a backend call.
type RequestError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *RequestError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: backend returned status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

func (e *RequestError) Is(target error) bool {
	return target == ErrRequestFailed
}

func requestFailed(op string, status int, err error) *RequestError {
	return &RequestError{Op: op, StatusCode: status, Err: err}
}
