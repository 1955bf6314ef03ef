package model

import (
	"errors"
	"testing"
)

func TestClampStatus(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{200, 500},
		{201, 500},
		{400, 400},
		{404, 404},
		{409, 409},
		{500, 500},
		{401, 500},
		{422, 500},
		{502, 500},
		{0, 500},
	}
	for _, tt := range tests {
		if got := ClampStatus(tt.in); got != tt.want {
			t.Errorf("ClampStatus(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestAPIError_UnwrapsCause(t *testing.T) {
	cause := errors.New("db down")
	err := NewInternalError(MsgInternalServerError, cause)

	if !errors.Is(err, cause) {
		t.Error("internal error should unwrap to its cause")
	}
	if err.Code != ErrCodeInternal {
		t.Errorf("Code = %q, want %q", err.Code, ErrCodeInternal)
	}
}

func TestNewDuplicateConnectionError(t *testing.T) {
	err := NewDuplicateConnectionError("c-1")

	if err.Code != ErrCodeConflict {
		t.Errorf("Code = %q, want %q", err.Code, ErrCodeConflict)
	}
	if err.ConnectionID != "c-1" {
		t.Errorf("ConnectionID = %q, want %q", err.ConnectionID, "c-1")
	}
}
