package debrid

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestAPIError_Kind(t *testing.T) {
	tests := []struct {
		name     string
		code     int
		expected ErrorKind
	}{
		{"capacity_exceeded", 21, KindCapacityExceeded},
		{"rate_limited", 34, KindRateLimited},
		{"unknown_code", 8, KindOther},
		{"zero_code", 0, KindOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := &APIError{Code: tt.code, Message: "x", HTTPStatus: 400}
			if got := err.Kind(); got != tt.expected {
				t.Errorf("Kind() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestIsCapacityExceeded(t *testing.T) {
	capErr := &APIError{Code: CodeCapacityExceeded, Message: "too_many_active_downloads"}

	if !IsCapacityExceeded(capErr) {
		t.Error("IsCapacityExceeded(code 21) = false, want true")
	}
	if IsCapacityExceeded(&APIError{Code: CodeRateLimited}) {
		t.Error("IsCapacityExceeded(code 34) = true, want false")
	}
	if IsCapacityExceeded(errors.New("plain")) {
		t.Error("IsCapacityExceeded(plain error) = true, want false")
	}

	// Wrapped provider errors still classify.
	wrapped := fmt.Errorf("submit: %w", capErr)
	if !IsCapacityExceeded(wrapped) {
		t.Error("IsCapacityExceeded(wrapped) = false, want true")
	}
}

func TestIsRateLimited(t *testing.T) {
	rlErr := &APIError{Code: CodeRateLimited, Message: "too_many_requests"}

	if !IsRateLimited(rlErr) {
		t.Error("IsRateLimited(code 34) = false, want true")
	}
	if IsRateLimited(&APIError{Code: CodeCapacityExceeded}) {
		t.Error("IsRateLimited(code 21) = true, want false")
	}
	if IsRateLimited(nil) {
		t.Error("IsRateLimited(nil) = true, want false")
	}
}

func TestAPIError_Message(t *testing.T) {
	err := &APIError{Code: 34, Message: "too_many_requests", HTTPStatus: 429}

	msg := err.Error()
	for _, want := range []string{"rate_limited", "34", "429", "too_many_requests"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() = %q, missing %q", msg, want)
		}
	}
}
