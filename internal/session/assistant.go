package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/apex/log"

	"github.com/alejor21/trabajo-final-IA/internal/models"
)

// ChatSender is the slice of the transport client the assistant needs.
type ChatSender interface {
	SendChat(ctx context.Context, text string) (string, error)
}

// AnalysisState answers whether any detection analysis has completed.
type AnalysisState interface {
	AnalysisCompleted() bool
}

const (
	GreetingMessage = "¡Hola! Soy el asistente virtual del sistema de detección EPP. ¿En qué puedo ayudarte?"
	FallbackEmpty   = "Lo siento, no pude procesar tu pregunta."
	FallbackError   = "Lo siento, hubo un error al procesar tu pregunta."
)

var (
	GeneralSuggestions = []string{
		"¿Qué es EPP?",
		"Normativas de seguridad",
		"¿Cómo funciona el sistema?",
		"Tipos de cascos",
		"Importancia del chaleco",
		"Protección de manos",
	}
	AnalysisSuggestions = []string{
		"¿Qué le falta a la persona que no cumple?",
		"¿Cómo puedo mejorar el cumplimiento?",
		"Muestra detalles del último análisis",
	}
)

// AssistantSession is an append-only conversation with the chat endpoint.
// Sends are not single-flight: each reply is appended when it arrives, so the
// message order follows completion order.
type AssistantSession struct {
	emitter

	sender   ChatSender
	analysis AnalysisState
	now      func() time.Time

	mu       sync.Mutex
	messages []models.ChatMessage
	pending  int
}

func NewAssistantSession(sender ChatSender, analysis AnalysisState) *AssistantSession {
	a := &AssistantSession{
		sender:   sender,
		analysis: analysis,
		now:      time.Now,
	}
	a.messages = []models.ChatMessage{
		models.NewChatMessage(models.SenderAssistant, GreetingMessage, a.now()),
	}
	return a
}

// Messages returns a copy of the conversation.
func (a *AssistantSession) Messages() []models.ChatMessage {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]models.ChatMessage, len(a.messages))
	copy(out, a.messages)
	return out
}

// Typing reports whether any reply is outstanding.
func (a *AssistantSession) Typing() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pending > 0
}

func (a *AssistantSession) Phase() models.SessionPhase {
	if a.Typing() {
		return models.PhaseProcessing
	}
	return models.PhaseIdle
}

// Suggestions returns the follow-up set once an analysis has completed.
func (a *AssistantSession) Suggestions() []string {
	src := GeneralSuggestions
	if a.analysis != nil && a.analysis.AnalysisCompleted() {
		src = AnalysisSuggestions
	}
	out := make([]string, len(src))
	copy(out, src)
	return out
}

// Send appends the user message, waits for the backend and appends the reply.
// Transport failures become a fallback reply rather than an error.
func (a *AssistantSession) Send(ctx context.Context, text string) (models.ChatMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return models.ChatMessage{}, ErrEmptyInput
	}

	userMsg := a.append(models.SenderUser, text, true)

	reply, err := a.sender.SendChat(ctx, text)
	switch {
	case err != nil:
		log.WithError(err).Warn("chatbot request failed")
		reply = FallbackError
	case strings.TrimSpace(reply) == "":
		reply = FallbackEmpty
	}

	botMsg := a.append(models.SenderAssistant, reply, false)

	log.WithFields(log.Fields{"user": userMsg.ID, "reply": botMsg.ID}).Debug("chat exchange complete")
	return botMsg, nil
}

func (a *AssistantSession) append(sender models.Sender, text string, opening bool) models.ChatMessage {
	a.mu.Lock()
	msg := models.NewChatMessage(sender, text, a.now())
	a.messages = append(a.messages, msg)
	if opening {
		a.pending++
	} else {
		a.pending--
	}
	typing := a.pending > 0
	slot := a.reserve()
	a.mu.Unlock()

	phase := models.PhaseIdle
	if typing {
		phase = models.PhaseProcessing
	}
	a.deliver(slot, Event{Type: EventChatMessage, Session: NameAssistant, Phase: phase, Message: &msg})
	return msg
}
