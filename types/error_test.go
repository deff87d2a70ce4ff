package types

import (
	"errors"
	"testing"
)

func TestError_ChainingAndHelpers(t *testing.T) {
	t.Parallel()

	const codeUpstreamError ErrorCode = "UPSTREAM_ERROR"

	root := errors.New("root")
	err := NewError(codeUpstreamError, "upstream failed").
		WithCause(root).
		WithHTTPStatus(502).
		WithRetryable(true).
		WithProvider("openai")

	if GetErrorCode(err) != codeUpstreamError {
		t.Fatalf("expected code %s, got %s", codeUpstreamError, GetErrorCode(err))
	}
	if !IsRetryable(err) {
		t.Fatalf("expected retryable")
	}
	if !errors.Is(err, root) {
		t.Fatalf("expected errors.Is unwrap to root")
	}
	if got := err.Error(); got == "" {
		t.Fatalf("expected non-empty error string")
	}
}

func TestError_NotRetryableByDefault(t *testing.T) {
	t.Parallel()

	err := NewError("NOT_FOUND", "missing")
	if IsRetryable(err) {
		t.Fatal("expected retryable to default to false")
	}
	if IsRetryable(errors.New("plain")) {
		t.Fatal("expected a plain error to be non-retryable")
	}
}
