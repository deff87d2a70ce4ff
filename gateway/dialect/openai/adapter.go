// Copyright 2026 Gateway Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license.

// Package openai implements dialect.Adapter for providers whose API is
// already shaped like the canonical chat-completion contract: translation
// is the identity function, and streaming is a line-by-line SSE
// reframing of the provider's own chunks.
package openai

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/gatewaylabs/llmgateway/gateway/chatapi"
)

// Adapter is the default dialect: OpenAI-compatible providers.
type Adapter struct{}

// New returns an openai Adapter. It holds no state.
func New() Adapter { return Adapter{} }

type wireRequest struct {
	Model       string            `json:"model"`
	Messages    []chatapi.Message `json:"messages"`
	MaxTokens   int               `json:"max_tokens,omitempty"`
	Temperature float32           `json:"temperature,omitempty"`
	TopP        float32           `json:"top_p,omitempty"`
	Stop        []string          `json:"stop,omitempty"`
	Stream      bool              `json:"stream,omitempty"`
	Tools       []chatapi.Tool    `json:"tools,omitempty"`
	ToolChoice  string            `json:"tool_choice,omitempty"`
}

func (Adapter) TranslateRequest(req chatapi.Request, targetModel string) ([]byte, error) {
	wire := wireRequest{
		Model:       targetModel,
		Messages:    req.Messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Stop:        req.Stop,
		Stream:      req.Stream,
		Tools:       req.Tools,
		ToolChoice:  req.ToolChoice,
	}
	return json.Marshal(wire)
}

type wireResponse struct {
	ID      string           `json:"id"`
	Model   string           `json:"model"`
	Choices []chatapi.Choice `json:"choices"`
	Usage   chatapi.Usage    `json:"usage"`
}

func (Adapter) TranslateResponse(body []byte) (chatapi.Response, error) {
	var wire wireResponse
	if err := json.Unmarshal(body, &wire); err != nil {
		return chatapi.Response{}, fmt.Errorf("openai: decode response: %w", err)
	}
	return chatapi.Response{
		ID:      wire.ID,
		Model:   wire.Model,
		Choices: wire.Choices,
		Usage:   wire.Usage,
	}, nil
}

type wireChunk struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int             `json:"index"`
		Delta        chatapi.Message `json:"delta"`
		FinishReason string          `json:"finish_reason,omitempty"`
	} `json:"choices"`
	Usage *chatapi.Usage `json:"usage,omitempty"`
}

// StreamChunks reframes the provider's own `data: <json>\n\n` SSE lines
// into canonical chunks; the payload shape already matches, so only the
// framing changes.
func (Adapter) StreamChunks(ctx context.Context, body io.ReadCloser) <-chan chatapi.StreamEvent {
	out := make(chan chatapi.StreamEvent)

	go func() {
		defer close(out)
		defer body.Close()

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
					emit(ctx, out, chatapi.StreamEvent{Err: fmt.Errorf("openai: read stream: %w", err)})
				}
				return
			}

			line = strings.TrimSpace(line)
			if line == "" || !strings.HasPrefix(line, "data:") {
				continue
			}

			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "[DONE]" {
				return
			}

			var wc wireChunk
			if err := json.Unmarshal([]byte(data), &wc); err != nil {
				emit(ctx, out, chatapi.StreamEvent{Err: fmt.Errorf("openai: decode chunk: %w", err)})
				return
			}

			chunk := &chatapi.StreamChunk{ID: wc.ID, Model: wc.Model, Usage: wc.Usage}
			if len(wc.Choices) > 0 {
				chunk.Index = wc.Choices[0].Index
				chunk.Delta = wc.Choices[0].Delta
				chunk.FinishReason = wc.Choices[0].FinishReason
			}

			if !emit(ctx, out, chatapi.StreamEvent{Chunk: chunk}) {
				return
			}
		}
	}()

	return out
}

// emit sends ev on out unless ctx is cancelled first, returning false if
// the caller should stop producing.
func emit(ctx context.Context, out chan<- chatapi.StreamEvent, ev chatapi.StreamEvent) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func (Adapter) AuthHeader(credential string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + credential}
}

func (Adapter) AuthQuery(credential string) map[string]string { return nil }

func (Adapter) EndpointPath(targetModel string, stream bool) string {
	return "/v1/chat/completions"
}
