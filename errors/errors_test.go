package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestNew_RetryableDetection(t *testing.T) {
	tests := []struct {
		code      ErrorCode
		retryable bool
	}{
		{ErrCodeNoCapacity, true},
		{ErrCodeTimeout, true},
		{ErrCodePersistenceFailed, true},
		{ErrCodeIdentificationFailed, false},
		{ErrCodeNotFound, false},
		{ErrCodeInternal, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			err := New(tt.code, "msg", http.StatusTeapot)
			if err.Retryable != tt.retryable {
				t.Errorf("retryable = %v, want %v", err.Retryable, tt.retryable)
			}
			if err.HTTPStatus != http.StatusTeapot {
				t.Errorf("status = %d", err.HTTPStatus)
			}
		})
	}
}

func TestNoCapacity(t *testing.T) {
	err := NoCapacity("no fresh idle node")
	if err.HTTPStatus != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", err.HTTPStatus)
	}
	if !err.Retryable {
		t.Error("no-capacity should be retryable")
	}
	if err.Details["reason"] != "no fresh idle node" {
		t.Errorf("unexpected reason %v", err.Details["reason"])
	}
}

func TestIdentificationFailed_CarriesFailureCode(t *testing.T) {
	cause := fmt.Errorf("compare exhausted")
	err := IdentificationFailed(FailureRemoteStep, cause)
	if err.Details["failure_code"] != 101 {
		t.Errorf("failure_code = %v, want 101", err.Details["failure_code"])
	}
	if !stderrors.Is(err, cause) {
		t.Error("expected cause to be unwrappable")
	}
}

func TestNotFound_EmptyID(t *testing.T) {
	err := NotFound("speaker", "")
	if _, ok := err.Details["id"]; ok {
		t.Error("expected no 'id' key in details when id is empty")
	}
}

func TestAppError_ErrorString(t *testing.T) {
	err := Internal(fmt.Errorf("boom"))
	want := "INTERNAL_ERROR: An unexpected error occurred. (cause: boom)"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	plain := New(ErrCodeNotFound, "gone", http.StatusNotFound)
	if plain.Error() != "NOT_FOUND: gone" {
		t.Errorf("Error() = %q", plain.Error())
	}
}

func TestWithDetails_Merges(t *testing.T) {
	err := NotFound("subclip", "abc").WithDetails(map[string]any{"hint": "deleted"})
	if err.Details["id"] != "abc" || err.Details["hint"] != "deleted" {
		t.Errorf("unexpected details %v", err.Details)
	}
}

func TestAsAppError_Wrapped(t *testing.T) {
	base := NoCapacity("x")
	wrapped := fmt.Errorf("assign: %w", base)

	got, ok := AsAppError(wrapped)
	if !ok || got != base {
		t.Fatal("expected to find wrapped AppError")
	}
	if !HasCode(wrapped, ErrCodeNoCapacity) {
		t.Error("HasCode should match wrapped code")
	}
	if HasCode(fmt.Errorf("plain"), ErrCodeNoCapacity) {
		t.Error("HasCode should not match plain error")
	}
}

func TestFrom_WrapsUnknown(t *testing.T) {
	err := From(fmt.Errorf("raw"))
	if err.Code != ErrCodeInternal {
		t.Errorf("expected INTERNAL_ERROR, got %s", err.Code)
	}
}

func TestToResponse(t *testing.T) {
	resp := PersistenceFailed(fmt.Errorf("disk")).WithDetail("speaker_id", 7).ToResponse()
	if resp.Error.Code != ErrCodePersistenceFailed {
		t.Errorf("code = %s", resp.Error.Code)
	}
	if !resp.Error.Retryable {
		t.Error("expected retryable")
	}
	if resp.Error.Details["speaker_id"] != 7 {
		t.Errorf("details = %v", resp.Error.Details)
	}
}
