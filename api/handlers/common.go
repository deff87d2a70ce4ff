// Copyright 2026 Gateway Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license.

// Package handlers implements the gateway's HTTP surface: the canonical
// chat completion endpoint, the admin CRUD surface over providers and
// routes, and the health/readiness probes a load balancer polls.
package handlers

import (
	"encoding/json"
	"mime"
	"net/http"
	"time"

	"github.com/gatewaylabs/llmgateway/gwerrors"
	"github.com/gatewaylabs/llmgateway/types"
	"go.uber.org/zap"
)

// Response is the gateway's JSON envelope for every admin and health
// response. The canonical chat completion endpoint returns the bare
// chatapi shapes instead, to stay OpenAI-compatible.
type Response struct {
	Success   bool      `json:"success"`
	Data      any       `json:"data,omitempty"`
	Error     *ErrorInfo `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

// ErrorInfo is the nested error object inside Response.
type ErrorInfo struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Retryable  bool   `json:"retryable"`
	HTTPStatus int    `json:"-"`
}

// WriteJSON writes data as a JSON body with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteSuccess wraps data in the success envelope and writes it with 200.
func WriteSuccess(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusOK, Response{
		Success:   true,
		Data:      data,
		Timestamp: time.Now(),
		RequestID: w.Header().Get("X-Request-ID"),
	})
}

// WriteCreated is WriteSuccess with a 201 status, for CRUD creates.
func WriteCreated(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusCreated, Response{
		Success:   true,
		Data:      data,
		Timestamp: time.Now(),
		RequestID: w.Header().Get("X-Request-ID"),
	})
}

// WriteError renders err as the error envelope. A *gwerrors.Error
// contributes its HTTP status and retryable flag; any other error is
// reported as an opaque internal error so upstream failure detail never
// leaks to a caller unannounced.
func WriteError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var status int
	var code, message string
	var retryable bool

	if ge, ok := gwerrors.As(err); ok {
		status = ge.HTTPStatus
		if status == 0 {
			status = http.StatusInternalServerError
		}
		code = string(ge.Code)
		message = ge.Message
		retryable = ge.Retryable
	} else if te, ok := err.(*types.Error); ok {
		status = te.HTTPStatus
		if status == 0 {
			status = http.StatusInternalServerError
		}
		code = string(te.Code)
		message = te.Message
		retryable = te.Retryable
	} else {
		status = http.StatusInternalServerError
		code = "internal_error"
		message = "internal server error"
	}

	if logger != nil {
		logger.Error("api error",
			zap.String("code", code),
			zap.String("message", message),
			zap.Int("status", status),
			zap.Error(err),
		)
	}

	WriteJSON(w, status, Response{
		Success:   false,
		Error:     &ErrorInfo{Code: code, Message: message, Retryable: retryable},
		Timestamp: time.Now(),
		RequestID: w.Header().Get("X-Request-ID"),
	})
}

// WriteErrorMessage is a convenience for handler-local validation errors
// that never travel through gwerrors.
func WriteErrorMessage(w http.ResponseWriter, status int, code, message string, logger *zap.Logger) {
	err := types.NewError(types.ErrorCode(code), message).WithHTTPStatus(status)
	WriteError(w, err, logger)
}

// DecodeJSONBody decodes r's body into dst, rejecting unknown fields and
// bodies over 1 MB. On failure it writes the error response itself.
func DecodeJSONBody(w http.ResponseWriter, r *http.Request, dst any, logger *zap.Logger) error {
	if r.Body == nil {
		err := types.NewError(types.ErrorCode("invalid_request"), "request body is empty").WithHTTPStatus(http.StatusBadRequest)
		WriteError(w, err, logger)
		return err
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		apiErr := types.NewError(types.ErrorCode("invalid_request"), "invalid JSON body").
			WithCause(err).
			WithHTTPStatus(http.StatusBadRequest)
		WriteError(w, apiErr, logger)
		return apiErr
	}

	return nil
}

// ValidateContentType requires an application/json request body, parsed
// leniently so "application/json; charset=UTF-8" still matches.
func ValidateContentType(w http.ResponseWriter, r *http.Request, logger *zap.Logger) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		apiErr := types.NewError(types.ErrorCode("invalid_request"), "Content-Type must be application/json").WithHTTPStatus(http.StatusBadRequest)
		WriteError(w, apiErr, logger)
		return false
	}
	return true
}

// ResponseWriter wraps http.ResponseWriter to capture the status code
// written, for middleware that needs to observe it after the fact.
type ResponseWriter struct {
	http.ResponseWriter
	StatusCode int
	Written    bool
}

// NewResponseWriter wraps w.
func NewResponseWriter(w http.ResponseWriter) *ResponseWriter {
	return &ResponseWriter{ResponseWriter: w, StatusCode: http.StatusOK}
}

func (rw *ResponseWriter) WriteHeader(code int) {
	if !rw.Written {
		rw.StatusCode = code
		rw.Written = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

func (rw *ResponseWriter) Write(b []byte) (int, error) {
	if !rw.Written {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

// Flush implements http.Flusher so SSE streaming handlers still work
// underneath this wrapper.
func (rw *ResponseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
