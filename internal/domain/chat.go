package domain

import (
	"encoding/json"
	"time"
)

// ChatMessage is the provider-agnostic chat message shape used by the
// assistant and LLM integrations.
type ChatMessage struct {
	Role       string     `json:"role"`
	Content    string     `json:"content,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
}

// ToolCall is a function invocation requested by the model. Arguments is the
// raw JSON object produced by the model.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolDefinition describes a function the model may call.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// ChatRequest is one completion call.
type ChatRequest struct {
	Model       string
	Messages    []ChatMessage
	Tools       []ToolDefinition
	Temperature float64
	MaxTokens   int
}

// ChatResponse is the first choice of a completion call.
type ChatResponse struct {
	Content      string
	ToolCalls    []ToolCall
	FinishReason string
}

// Speaker roles recorded in a conversation transcript.
const (
	SpeakerGuest     = "guest"
	SpeakerAssistant = "assistant"
)

// TranscriptEntry is one recorded message of a conversation.
type TranscriptEntry struct {
	Speaker string
	Text    string
	At      time.Time
}
