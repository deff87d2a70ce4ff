// Copyright 2026 Gateway Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license.

// Package gemini implements dialect.Adapter for Google's generateContent
// API: messages become content parts grouped by role, system messages
// fold into a separate systemInstruction field, and the API key travels
// in the URL query string rather than a header.
package gemini

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/gatewaylabs/llmgateway/gateway/chatapi"
)

// Adapter is the Gemini dialect.
type Adapter struct{}

// New returns a gemini Adapter. It holds no state.
func New() Adapter { return Adapter{} }

type part struct {
	Text string `json:"text,omitempty"`
}

type geminiContent struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
	Temperature     float32  `json:"temperature,omitempty"`
	TopP            float32  `json:"topP,omitempty"`
	StopSequences   []string `json:"stopSequences,omitempty"`
}

type wireRequest struct {
	Contents          []geminiContent   `json:"contents"`
	SystemInstruction *geminiContent    `json:"systemInstruction,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

// geminiRole maps a canonical role onto Gemini's two-party turn model:
// everything that isn't the model is "user".
func geminiRole(role string) string {
	if role == "assistant" {
		return "model"
	}
	return "user"
}

func (Adapter) TranslateRequest(req chatapi.Request, targetModel string) ([]byte, error) {
	var system *geminiContent
	var contents []geminiContent

	for _, m := range req.Messages {
		if m.Role == "system" {
			if system == nil {
				system = &geminiContent{Parts: []part{{Text: m.Content}}}
			} else {
				system.Parts[0].Text += "\n" + m.Content
			}
			continue
		}
		if m.Content == "" {
			continue
		}
		contents = append(contents, geminiContent{Role: geminiRole(m.Role), Parts: []part{{Text: m.Content}}})
	}

	var gen *generationConfig
	if req.MaxTokens > 0 || req.Temperature != 0 || req.TopP != 0 || len(req.Stop) > 0 {
		gen = &generationConfig{
			MaxOutputTokens: req.MaxTokens,
			Temperature:     req.Temperature,
			TopP:            req.TopP,
			StopSequences:   req.Stop,
		}
	}

	wire := wireRequest{Contents: contents, SystemInstruction: system, GenerationConfig: gen}
	return json.Marshal(wire)
}

type candidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason,omitempty"`
	Index        int           `json:"index"`
}

type usageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

type wireResponse struct {
	Candidates    []candidate    `json:"candidates"`
	UsageMetadata *usageMetadata `json:"usageMetadata,omitempty"`
}

func textOf(c geminiContent) string {
	var b strings.Builder
	for _, p := range c.Parts {
		b.WriteString(p.Text)
	}
	return b.String()
}

func (Adapter) TranslateResponse(body []byte) (chatapi.Response, error) {
	var wire wireResponse
	if err := json.Unmarshal(body, &wire); err != nil {
		return chatapi.Response{}, fmt.Errorf("gemini: decode response: %w", err)
	}

	resp := chatapi.Response{}
	for _, c := range wire.Candidates {
		resp.Choices = append(resp.Choices, chatapi.Choice{
			Index:        c.Index,
			FinishReason: c.FinishReason,
			Message:      chatapi.Message{Role: "assistant", Content: textOf(c.Content)},
		})
	}
	if wire.UsageMetadata != nil {
		resp.Usage = chatapi.Usage{
			PromptTokens:     wire.UsageMetadata.PromptTokenCount,
			CompletionTokens: wire.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      wire.UsageMetadata.TotalTokenCount,
		}
	}
	return resp, nil
}

// StreamChunks parses Gemini's streamed JSON array: `[` then a sequence
// of comma-separated response objects, one per emitted chunk, then `]`.
// There is no line-delimited framing, so this scans balanced top-level
// JSON values out of the stream instead of reading by line.
func (Adapter) StreamChunks(ctx context.Context, body io.ReadCloser) <-chan chatapi.StreamEvent {
	out := make(chan chatapi.StreamEvent)

	go func() {
		defer close(out)
		defer body.Close()

		dec := json.NewDecoder(bufio.NewReader(body))

		// Consume the opening '[' of the array; any other first token is an error.
		tok, err := dec.Token()
		if err != nil {
			if err != io.EOF {
				emit(ctx, out, chatapi.StreamEvent{Err: fmt.Errorf("gemini: read stream: %w", err)})
			}
			return
		}
		if delim, ok := tok.(json.Delim); !ok || delim != '[' {
			emit(ctx, out, chatapi.StreamEvent{Err: fmt.Errorf("gemini: unexpected stream start %v", tok)})
			return
		}

		for dec.More() {
			select {
			case <-ctx.Done():
				return
			default:
			}

			var wire wireResponse
			if err := dec.Decode(&wire); err != nil {
				emit(ctx, out, chatapi.StreamEvent{Err: fmt.Errorf("gemini: decode chunk: %w", err)})
				return
			}

			chunk := &chatapi.StreamChunk{}
			if len(wire.Candidates) > 0 {
				c := wire.Candidates[0]
				chunk.Index = c.Index
				chunk.Delta = chatapi.Message{Role: "assistant", Content: textOf(c.Content)}
				chunk.FinishReason = c.FinishReason
			}
			if wire.UsageMetadata != nil {
				chunk.Usage = &chatapi.Usage{
					PromptTokens:     wire.UsageMetadata.PromptTokenCount,
					CompletionTokens: wire.UsageMetadata.CandidatesTokenCount,
					TotalTokens:      wire.UsageMetadata.TotalTokenCount,
				}
			}

			if !emit(ctx, out, chatapi.StreamEvent{Chunk: chunk}) {
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

// AuthHeader returns nil: Gemini authenticates via the key query
// parameter rendered by AuthQuery, not a header.
func (Adapter) AuthHeader(credential string) map[string]string { return nil }

func (Adapter) AuthQuery(credential string) map[string]string {
	return map[string]string{"key": credential}
}

func (Adapter) EndpointPath(targetModel string, stream bool) string {
	action := "generateContent"
	if stream {
		action = "streamGenerateContent"
	}
	return fmt.Sprintf("/v1beta/models/%s:%s", targetModel, action)
}
