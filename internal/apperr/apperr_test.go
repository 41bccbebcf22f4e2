package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestMessage_UnwrapsTypedErrors(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"plain", boom, "boom"},
		{"validation", &ValidationError{Field: "file", Reason: "too large"}, "invalid file: too large"},
		{"validation no field", &ValidationError{Reason: "empty"}, "invalid input: empty"},
		{"wrapped mutation", fmt.Errorf("ui: %w", &MutationError{Op: "delete task", Key: "board", Err: boom}), "delete task failed: boom"},
		{"fetch", &FetchError{Key: "board", Err: boom}, "could not load board: boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Message(tt.err); got != tt.want {
				t.Fatalf("Message() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTypedErrorsUnwrap(t *testing.T) {
	boom := errors.New("boom")
	if !errors.Is(&FetchError{Key: "k", Err: boom}, boom) {
		t.Fatal("FetchError should unwrap to its cause")
	}
	if !errors.Is(&MutationError{Op: "op", Err: boom}, boom) {
		t.Fatal("MutationError should unwrap to its cause")
	}
	if !IsValidation(fmt.Errorf("x: %w", &ValidationError{Reason: "r"})) {
		t.Fatal("IsValidation should see wrapped ValidationError")
	}
	if IsValidation(boom) {
		t.Fatal("IsValidation(boom) = true, want false")
	}
}
