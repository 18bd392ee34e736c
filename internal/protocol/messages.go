package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// MessageType identifies duplex frame variants.
type MessageType string

const (
	TypeChat      MessageType = "chat"
	TypeHeartbeat MessageType = "heartbeat"

	TypeChatResponse    MessageType = "chat_response"
	TypeError           MessageType = "error"
	TypePong            MessageType = "pong"
	TypeProcessingStart MessageType = "processing_start"
)

// ErrUnsupportedType marks a recognized-envelope frame with an unknown
// discriminant. The session manager ignores these silently by policy.
var ErrUnsupportedType = errors.New("unsupported message type")

type Envelope struct {
	Type MessageType `json:"type"`
}

type ChatMessage struct {
	Type MessageType `json:"type"`
	Text string      `json:"text"`
}

type Heartbeat struct {
	Type MessageType `json:"type"`
}

type ChatResponse struct {
	Type    MessageType `json:"type"`
	Text    string      `json:"text"`
	Emotion string      `json:"emotion"`
}

type ErrorMessage struct {
	Type MessageType `json:"type"`
	Text string      `json:"text"`
}

type Pong struct {
	Type MessageType `json:"type"`
}

type ProcessingStart struct {
	Type MessageType `json:"type"`
}

func NewChatResponse(text, emotion string) ChatResponse {
	return ChatResponse{Type: TypeChatResponse, Text: text, Emotion: emotion}
}

func NewError(text string) ErrorMessage {
	return ErrorMessage{Type: TypeError, Text: text}
}

func NewPong() Pong {
	return Pong{Type: TypePong}
}

func NewProcessingStart() ProcessingStart {
	return ProcessingStart{Type: TypeProcessingStart}
}

// ParseClientMessage decodes an inbound frame into its typed variant.
func ParseClientMessage(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeChat:
		var msg ChatMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		return msg, nil
	case TypeHeartbeat:
		return Heartbeat{Type: TypeHeartbeat}, nil
	default:
		return nil, ErrUnsupportedType
	}
}
