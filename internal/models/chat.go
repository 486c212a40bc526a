package models

import (
	"time"

	"github.com/google/uuid"
)

type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// ChatMessage is an append-only entry of the assistant conversation.
type ChatMessage struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Sender    Sender    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
}

func NewChatMessage(sender Sender, text string, at time.Time) ChatMessage {
	return ChatMessage{
		ID:        uuid.New().String(),
		Text:      text,
		Sender:    sender,
		Timestamp: at,
	}
}
