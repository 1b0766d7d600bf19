package chat

import "time"

// Sender values for Message.
const (
	SenderUser      = "user"
	SenderAssistant = "assistant"
	SenderSystem    = "system"
)

// Message is one immutable turn in a conversation. Messages are appended,
// never edited; timestamps are non-decreasing within a session.
type Message struct {
	SessionID string    `json:"sessionId"`
	Timestamp time.Time `json:"timestamp"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
}
