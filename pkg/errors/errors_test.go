package errors

import (
	"fmt"
	"net/http"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	err := NewRobotOfflineError("Robot_01")
	if err.HTTPStatus != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", err.HTTPStatus)
	}
	if err.Error() != "ROBOT_OFFLINE: robot Robot_01 is not connected" {
		t.Errorf("unexpected error string: %s", err.Error())
	}
}

func TestGetAppError_Wrapped(t *testing.T) {
	inner := NewInvalidInputError("Body field is required")
	wrapped := fmt.Errorf("handling command: %w", inner)

	got := GetAppError(wrapped)
	if got == nil {
		t.Fatal("expected AppError from wrapped chain, got nil")
	}
	if got.Code != ErrCodeInvalidInput {
		t.Errorf("expected INVALID_INPUT, got %s", got.Code)
	}
}

func TestGetAppError_Plain(t *testing.T) {
	if got := GetAppError(fmt.Errorf("boom")); got != nil {
		t.Errorf("expected nil for plain error, got %v", got)
	}
}
