// Copyright 2026 Gateway Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license.

// Package chatapi defines the gateway's canonical chat-completion wire
// shape: the request and response types every client sees, regardless of
// which provider dialect ultimately serves the call.
package chatapi

import "time"

// Request is a canonical chat completion request, OpenAI-compatible at the
// top level so existing OpenAI SDKs work against the gateway unmodified.
type Request struct {
	Model       string            `json:"model"`
	Messages    []Message         `json:"messages"`
	MaxTokens   int               `json:"max_tokens,omitempty"`
	Temperature float32           `json:"temperature,omitempty"`
	TopP        float32           `json:"top_p,omitempty"`
	Stop        []string          `json:"stop,omitempty"`
	Stream      bool              `json:"stream,omitempty"`
	Tools       []Tool            `json:"tools,omitempty"`
	ToolChoice  string            `json:"tool_choice,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Message is one canonical conversation turn.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content,omitempty"`
	Name       string     `json:"name,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// Tool is an opaque tool/function definition, passed through to dialects
// that support native tool calling and ignored by those that don't.
type Tool struct {
	Type     string `json:"type"`
	Function any    `json:"function"`
}

// ToolCall is an opaque tool invocation surfaced by the model.
type ToolCall struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Function  any    `json:"function"`
	Arguments string `json:"-"`
}

// Response is a canonical, non-streaming chat completion response.
type Response struct {
	ID        string    `json:"id"`
	Provider  string    `json:"provider"`
	Model     string    `json:"model"`
	Choices   []Choice  `json:"choices"`
	Usage     Usage     `json:"usage"`
	CreatedAt time.Time `json:"created_at"`
}

// Choice is a single candidate completion.
type Choice struct {
	Index        int     `json:"index"`
	FinishReason string  `json:"finish_reason,omitempty"`
	Message      Message `json:"message"`
}

// Usage reports token counts exactly as the provider declared them; the
// gateway never recomputes or estimates these.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// StreamChunk is a single canonical server-sent-event payload. The
// dispatch pipeline emits a sequence of these, terminated by the SSE
// `[DONE]` marker, for every streaming request.
type StreamChunk struct {
	ID           string  `json:"id,omitempty"`
	Provider     string  `json:"provider,omitempty"`
	Model        string  `json:"model,omitempty"`
	Index        int     `json:"index"`
	Delta        Message `json:"delta"`
	FinishReason string  `json:"finish_reason,omitempty"`
	Usage        *Usage  `json:"usage,omitempty"`
}

// StreamEvent is one item of a dialect adapter's lazy streaming iterator:
// either a translated canonical chunk or a terminal error.
type StreamEvent struct {
	Chunk *StreamChunk
	Err   error
}

// ErrorBody is the JSON shape of an error response at the canonical
// endpoint: {"error": {"message", "type", "code"}}.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail is the nested object inside ErrorBody.
type ErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}
