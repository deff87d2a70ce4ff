package anthropic

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatewaylabs/llmgateway/gateway/chatapi"
)

func TestTranslateRequest_PromotesSystemMessage(t *testing.T) {
	req := chatapi.Request{
		Messages: []chatapi.Message{
			{Role: "system", Content: "be terse"},
			{Role: "user", Content: "hi"},
		},
	}

	body, err := New().TranslateRequest(req, "claude-3-opus")
	require.NoError(t, err)

	var wire wireRequest
	require.NoError(t, json.Unmarshal(body, &wire))
	assert.Equal(t, "be terse", wire.System)
	require.Len(t, wire.Messages, 1)
	assert.Equal(t, "user", wire.Messages[0].Role)
	assert.Equal(t, defaultMaxTokens, wire.MaxTokens)
}

func TestTranslateRequest_MultipleSystemMessagesJoined(t *testing.T) {
	req := chatapi.Request{
		Messages: []chatapi.Message{
			{Role: "system", Content: "first"},
			{Role: "system", Content: "second"},
			{Role: "user", Content: "hi"},
		},
	}

	body, err := New().TranslateRequest(req, "claude-3-opus")
	require.NoError(t, err)

	var wire wireRequest
	require.NoError(t, json.Unmarshal(body, &wire))
	assert.Equal(t, "first\nsecond", wire.System)
}

func TestTranslateRequest_ToolMessageBecomesToolResult(t *testing.T) {
	req := chatapi.Request{
		Messages: []chatapi.Message{
			{Role: "tool", ToolCallID: "call_1", Content: "42"},
		},
	}

	body, err := New().TranslateRequest(req, "claude-3-opus")
	require.NoError(t, err)

	var wire wireRequest
	require.NoError(t, json.Unmarshal(body, &wire))
	require.Len(t, wire.Messages, 1)
	require.Len(t, wire.Messages[0].Content, 1)
	assert.Equal(t, "tool_result", wire.Messages[0].Content[0].Type)
	assert.Equal(t, "call_1", wire.Messages[0].Content[0].ToolUseID)
}

func TestTranslateRequest_RespectsExplicitMaxTokens(t *testing.T) {
	req := chatapi.Request{MaxTokens: 100, Messages: []chatapi.Message{{Role: "user", Content: "hi"}}}
	body, err := New().TranslateRequest(req, "claude-3-opus")
	require.NoError(t, err)

	var wire wireRequest
	require.NoError(t, json.Unmarshal(body, &wire))
	assert.Equal(t, 100, wire.MaxTokens)
}

func TestTranslateResponse_ConcatenatesTextBlocks(t *testing.T) {
	body := []byte(`{
		"id": "msg_1",
		"model": "claude-3-opus",
		"content": [{"type": "text", "text": "hello "}, {"type": "text", "text": "world"}],
		"stop_reason": "end_turn",
		"usage": {"input_tokens": 5, "output_tokens": 2}
	}`)

	resp, err := New().TranslateResponse(body)
	require.NoError(t, err)
	assert.Equal(t, "msg_1", resp.ID)
	require.Len(t, resp.Choices, 1)
	assert.Equal(t, "hello world", resp.Choices[0].Message.Content)
	assert.Equal(t, "end_turn", resp.Choices[0].FinishReason)
	assert.Equal(t, 7, resp.Usage.TotalTokens)
}

type fakeReadCloser struct {
	io.Reader
}

func (fakeReadCloser) Close() error { return nil }

func TestStreamChunks_DeltasAndStop(t *testing.T) {
	stream := strings.Join([]string{
		`event: message_start`,
		`data: {"type":"message_start","message":{"id":"msg_1","model":"claude-3-opus"}}`,
		``,
		`event: content_block_delta`,
		`data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"hi"}}`,
		``,
		`event: message_delta`,
		`data: {"type":"message_delta","delta":{"stop_reason":"end_turn"}}`,
		``,
		`event: message_stop`,
		`data: {"type":"message_stop","usage":{"input_tokens":3,"output_tokens":1}}`,
		``,
	}, "\n")

	events := collect(t, New().StreamChunks(context.Background(), fakeReadCloser{strings.NewReader(stream)}))
	require.Len(t, events, 3)

	assert.Equal(t, "hi", events[0].Chunk.Delta.Content)
	assert.Equal(t, "end_turn", events[1].Chunk.FinishReason)
	assert.Equal(t, 4, events[2].Chunk.Usage.TotalTokens)
}

func TestStreamChunks_CancelStopsProducer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	events := collect(t, New().StreamChunks(ctx, fakeReadCloser{strings.NewReader("data: {}\n\n")}))
	assert.Empty(t, events)
}

func collect(t *testing.T, ch <-chan chatapi.StreamEvent) []chatapi.StreamEvent {
	t.Helper()
	var out []chatapi.StreamEvent
	for ev := range ch {
		out = append(out, ev)
	}
	return out
}

func TestAuthHeader(t *testing.T) {
	h := New().AuthHeader("sk-ant-123")
	assert.Equal(t, "sk-ant-123", h["x-api-key"])
	assert.NotEmpty(t, h["anthropic-version"])
}

func TestEndpointPath(t *testing.T) {
	assert.Equal(t, "/v1/messages", New().EndpointPath("claude-3-opus", false))
	assert.Equal(t, "/v1/messages", New().EndpointPath("claude-3-opus", true))
}
