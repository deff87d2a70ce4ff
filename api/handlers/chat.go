// Copyright 2026 Gateway Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license.

package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/gatewaylabs/llmgateway/gateway/chatapi"
	"github.com/gatewaylabs/llmgateway/gateway/dispatch"
	"github.com/gatewaylabs/llmgateway/types"
)

// ChatHandler serves the canonical, OpenAI-compatible chat completion
// endpoint, buffered or streamed depending on the request body's
// "stream" field — the same branching an OpenAI SDK expects.
type ChatHandler struct {
	pipeline *dispatch.Pipeline
	logger   *zap.Logger
}

// NewChatHandler builds a ChatHandler around pipeline.
func NewChatHandler(pipeline *dispatch.Pipeline, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{pipeline: pipeline, logger: logger}
}

// HandleCompletion serves POST /v1/chat/completions.
func (h *ChatHandler) HandleCompletion(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, h.logger) {
		return
	}

	var req chatapi.Request
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	if err := validateChatRequest(&req); err != nil {
		WriteError(w, err, h.logger)
		return
	}

	if req.Stream {
		h.stream(w, r, req)
		return
	}

	resp, err := h.pipeline.Dispatch(r.Context(), req)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}

	h.logger.Info("chat completion",
		zap.String("model", req.Model),
		zap.String("provider", resp.Provider),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
	)

	WriteJSON(w, http.StatusOK, resp)
}

// stream serves the same request over server-sent events, one canonical
// chatapi.StreamChunk per "data:" line, terminated by "[DONE]".
func (h *ChatHandler) stream(w http.ResponseWriter, r *http.Request, req chatapi.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	events, err := h.pipeline.DispatchStream(r.Context(), req)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		err := types.NewError(types.ErrorCode("internal_error"), "streaming not supported by this connection").WithHTTPStatus(http.StatusInternalServerError)
		WriteError(w, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusOK)

	for ev := range events {
		if ev.Err != nil {
			h.logger.Error("stream error", zap.Error(ev.Err))
			payload, _ := json.Marshal(chatapi.ErrorBody{Error: chatapi.ErrorDetail{
				Message: ev.Err.Error(),
				Type:    "upstream_error",
			}})
			w.Write([]byte("data: "))
			w.Write(payload)
			w.Write([]byte("\n\ndata: [DONE]\n\n"))
			flusher.Flush()
			return
		}

		w.Write([]byte("data: "))
		_ = json.NewEncoder(w).Encode(ev.Chunk)
		w.Write([]byte("\n"))
		flusher.Flush()
	}

	w.Write([]byte("data: [DONE]\n\n"))
	flusher.Flush()
}

func validateChatRequest(req *chatapi.Request) error {
	if req.Messages == nil {
		return types.NewError(types.ErrorCode("invalid_request"), "messages is required").WithHTTPStatus(http.StatusBadRequest)
	}
	if len(req.Messages) == 0 {
		return types.NewError(types.ErrorCode("invalid_request"), "messages cannot be empty").WithHTTPStatus(http.StatusBadRequest)
	}
	if req.Temperature < 0 || req.Temperature > 2 {
		return types.NewError(types.ErrorCode("invalid_request"), "temperature must be between 0 and 2").WithHTTPStatus(http.StatusBadRequest)
	}
	if req.TopP < 0 || req.TopP > 1 {
		return types.NewError(types.ErrorCode("invalid_request"), "top_p must be between 0 and 1").WithHTTPStatus(http.StatusBadRequest)
	}
	return nil
}
