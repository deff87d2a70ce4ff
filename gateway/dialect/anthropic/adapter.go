// Copyright 2026 Gateway Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license.

// Package anthropic implements dialect.Adapter for Claude's message
// format: system messages are promoted to a top-level parameter,
// max_tokens is required rather than optional, and the response content
// is an array of typed blocks rather than a single string.
package anthropic

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/gatewaylabs/llmgateway/gateway/chatapi"
)

// Adapter is the Anthropic Claude dialect.
type Adapter struct{}

// New returns an anthropic Adapter. It holds no state.
func New() Adapter { return Adapter{} }

const defaultMaxTokens = 4096

type message struct {
	Role    string    `json:"role"`
	Content []content `json:"content"`
}

type content struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
}

type wireRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	System      string    `json:"system,omitempty"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float32   `json:"temperature,omitempty"`
	TopP        float32   `json:"top_p,omitempty"`
	StopSeq     []string  `json:"stop_sequences,omitempty"`
	Stream      bool      `json:"stream,omitempty"`
}

func (Adapter) TranslateRequest(req chatapi.Request, targetModel string) ([]byte, error) {
	system, messages := convertMessages(req.Messages)

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	wire := wireRequest{
		Model:       targetModel,
		Messages:    messages,
		System:      system,
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		StopSeq:     req.Stop,
		Stream:      req.Stream,
	}
	return json.Marshal(wire)
}

// convertMessages promotes every system message, wherever it appears, to a
// top-level system parameter (joined by newlines) and wraps tool-role
// messages as Claude's tool_result blocks.
func convertMessages(msgs []chatapi.Message) (string, []message) {
	var system string
	var out []message

	for _, m := range msgs {
		if m.Role == "system" {
			if system != "" {
				system += "\n" + m.Content
			} else {
				system = m.Content
			}
			continue
		}

		if m.Role == "tool" {
			out = append(out, message{
				Role: "user",
				Content: []content{{
					Type:      "tool_result",
					ToolUseID: m.ToolCallID,
					Text:      m.Content,
				}},
			})
			continue
		}

		cm := message{Role: m.Role}
		if m.Content != "" {
			cm.Content = append(cm.Content, content{Type: "text", Text: m.Content})
		}
		for _, tc := range m.ToolCalls {
			cm.Content = append(cm.Content, content{Type: "tool_use", ID: tc.ID})
		}
		if len(cm.Content) > 0 {
			out = append(out, cm)
		}
	}

	return system, out
}

type usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type wireResponse struct {
	ID         string    `json:"id"`
	Model      string    `json:"model"`
	Content    []content `json:"content"`
	StopReason string    `json:"stop_reason"`
	Usage      *usage    `json:"usage,omitempty"`
}

func (Adapter) TranslateResponse(body []byte) (chatapi.Response, error) {
	var wire wireResponse
	if err := json.Unmarshal(body, &wire); err != nil {
		return chatapi.Response{}, fmt.Errorf("anthropic: decode response: %w", err)
	}

	var text strings.Builder
	for _, c := range wire.Content {
		if c.Type == "text" {
			text.WriteString(c.Text)
		}
	}

	resp := chatapi.Response{
		ID:    wire.ID,
		Model: wire.Model,
		Choices: []chatapi.Choice{{
			Index:        0,
			FinishReason: wire.StopReason,
			Message:      chatapi.Message{Role: "assistant", Content: text.String()},
		}},
	}
	if wire.Usage != nil {
		resp.Usage = chatapi.Usage{
			PromptTokens:     wire.Usage.InputTokens,
			CompletionTokens: wire.Usage.OutputTokens,
			TotalTokens:      wire.Usage.InputTokens + wire.Usage.OutputTokens,
		}
	}
	return resp, nil
}

type streamEvent struct {
	Type    string        `json:"type"`
	Index   int           `json:"index"`
	Delta   *delta        `json:"delta,omitempty"`
	Message *wireResponse `json:"message,omitempty"`
	Usage   *usage        `json:"usage,omitempty"`
}

type delta struct {
	Type       string `json:"type"`
	Text       string `json:"text,omitempty"`
	StopReason string `json:"stop_reason,omitempty"`
}

// StreamChunks converts content_block_delta events into canonical text
// chunks and ends the stream at message_stop, per the Claude event-stream
// dialect. A message_delta stop_reason becomes the finish chunk; when none
// arrived first, message_stop yields a terminal chunk with finish reason
// "stop". Usage carried on message_stop rides on a final chunk.
func (Adapter) StreamChunks(ctx context.Context, body io.ReadCloser) <-chan chatapi.StreamEvent {
	out := make(chan chatapi.StreamEvent)

	go func() {
		defer close(out)
		defer body.Close()

		var currentID, currentModel string
		finished := false
		reader := bufio.NewReader(body)

		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			line, err := reader.ReadString('\n')
			if err != nil {
				if err != io.EOF {
					emit(ctx, out, chatapi.StreamEvent{Err: fmt.Errorf("anthropic: read stream: %w", err)})
				}
				return
			}

			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "event:") || !strings.HasPrefix(line, "data:") {
				continue
			}

			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			var ev streamEvent
			if err := json.Unmarshal([]byte(data), &ev); err != nil {
				emit(ctx, out, chatapi.StreamEvent{Err: fmt.Errorf("anthropic: decode event: %w", err)})
				return
			}

			switch ev.Type {
			case "message_start":
				if ev.Message != nil {
					currentID = ev.Message.ID
					currentModel = ev.Message.Model
				}

			case "content_block_delta":
				if ev.Delta != nil && ev.Delta.Type == "text_delta" {
					chunk := &chatapi.StreamChunk{
						ID: currentID, Model: currentModel, Index: ev.Index,
						Delta: chatapi.Message{Role: "assistant", Content: ev.Delta.Text},
					}
					if !emit(ctx, out, chatapi.StreamEvent{Chunk: chunk}) {
						return
					}
				}

			case "message_delta":
				if ev.Delta != nil && ev.Delta.StopReason != "" {
					finished = true
					chunk := &chatapi.StreamChunk{ID: currentID, Model: currentModel, FinishReason: ev.Delta.StopReason}
					if !emit(ctx, out, chatapi.StreamEvent{Chunk: chunk}) {
						return
					}
				}

			case "message_stop":
				chunk := &chatapi.StreamChunk{ID: currentID, Model: currentModel}
				if !finished {
					chunk.FinishReason = "stop"
				}
				if ev.Usage != nil {
					chunk.Usage = &chatapi.Usage{
						PromptTokens:     ev.Usage.InputTokens,
						CompletionTokens: ev.Usage.OutputTokens,
						TotalTokens:      ev.Usage.InputTokens + ev.Usage.OutputTokens,
					}
				}
				if chunk.FinishReason != "" || chunk.Usage != nil {
					emit(ctx, out, chatapi.StreamEvent{Chunk: chunk})
				}
				return
			}
		}
	}()

	return out
}

func emit(ctx context.Context, out chan<- chatapi.StreamEvent, ev chatapi.StreamEvent) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func (Adapter) AuthHeader(credential string) map[string]string {
	return map[string]string{
		"x-api-key":         credential,
		"anthropic-version": "2023-06-01",
	}
}

func (Adapter) AuthQuery(credential string) map[string]string { return nil }

func (Adapter) EndpointPath(targetModel string, stream bool) string {
	return "/v1/messages"
}
