package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(ErrCodeBatchConfig, "bad input: %d carousels", 0)

	if err.Code != ErrCodeBatchConfig {
		t.Errorf("Code = %q, want %q", err.Code, ErrCodeBatchConfig)
	}
	if err.Message != "bad input: 0 carousels" {
		t.Errorf("Message = %q", err.Message)
	}
	if !strings.Contains(err.Error(), "BATCH_CONFIG") {
		t.Errorf("Error() should contain the code, got %q", err.Error())
	}
}

func TestWrap(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := Wrap(ErrCodeAdapterCrash, cause, "browser died")

	if !stderrors.Is(err, cause) {
		t.Error("wrapped error should match cause via errors.Is")
	}
	if !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("Error() should include the cause, got %q", err.Error())
	}
}

func TestIs(t *testing.T) {
	err := New(ErrCodeValidationFailed, "too small")

	if !Is(err, ErrCodeValidationFailed) {
		t.Error("Is should match the error's own code")
	}
	if Is(err, ErrCodeAdapterTimeout) {
		t.Error("Is should not match a different code")
	}
	if Is(stderrors.New("plain"), ErrCodeValidationFailed) {
		t.Error("Is should not match plain errors")
	}

	// Code survives wrapping by fmt.Errorf
	wrapped := fmt.Errorf("outer: %w", err)
	if !Is(wrapped, ErrCodeValidationFailed) {
		t.Error("Is should unwrap through fmt.Errorf")
	}
}

func TestGetCode(t *testing.T) {
	if got := GetCode(New(ErrCodeRoutingFailed, "x")); got != ErrCodeRoutingFailed {
		t.Errorf("GetCode = %q, want %q", got, ErrCodeRoutingFailed)
	}
	if got := GetCode(stderrors.New("plain")); got != "" {
		t.Errorf("GetCode for plain error = %q, want empty", got)
	}
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		code Code
		want bool
	}{
		{ErrCodeAdapterTimeout, true},
		{ErrCodeAdapterCrash, true},
		{ErrCodeValidationFailed, true},
		{ErrCodeRoutingFailed, false},
		{ErrCodeBatchConfig, false},
		{ErrCodeInternal, false},
		{ErrCodeInvalidSlide, false},
	}
	for _, tt := range tests {
		err := New(tt.code, "test")
		if got := Retryable(err); got != tt.want {
			t.Errorf("Retryable(%s) = %v, want %v", tt.code, got, tt.want)
		}
	}

	if Retryable(stderrors.New("plain")) {
		t.Error("plain errors should not be retryable")
	}
	if Retryable(nil) {
		t.Error("nil should not be retryable")
	}
}

func TestRoutingError(t *testing.T) {
	err := &RoutingError{SlideType: "data", Tried: []string{"grammar", "composer"}}
	msg := err.Error()
	if !strings.Contains(msg, "data") || !strings.Contains(msg, "grammar, composer") {
		t.Errorf("unexpected message: %q", msg)
	}
	if err.Code() != ErrCodeRoutingFailed {
		t.Errorf("Code() = %q, want %q", err.Code(), ErrCodeRoutingFailed)
	}

	// No backends considered at all
	empty := &RoutingError{SlideType: "hook"}
	if !strings.Contains(empty.Error(), "no backend registered") {
		t.Errorf("unexpected message: %q", empty.Error())
	}

	// Retrievable from a wrapped chain
	wrapped := Wrap(ErrCodeRoutingFailed, err, "routing failed")
	var re *RoutingError
	if !stderrors.As(wrapped, &re) {
		t.Fatal("RoutingError should be extractable with errors.As")
	}
	if re.SlideType != "data" {
		t.Errorf("SlideType = %q, want data", re.SlideType)
	}
}

func TestUserMessage(t *testing.T) {
	err := New(ErrCodeBatchConfig, "no carousels")
	if got := UserMessage(err); got != "no carousels" {
		t.Errorf("UserMessage = %q", got)
	}
	plain := stderrors.New("plain failure")
	if got := UserMessage(plain); got != "plain failure" {
		t.Errorf("UserMessage for plain = %q", got)
	}
}
