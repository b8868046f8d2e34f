package message

import (
	"errors"
	"fmt"
	"testing"
)

func TestPlatformErrorMessage(t *testing.T) {
	err := &PlatformError{Code: "E1", Message: "boom", Details: 42}
	want := "platform error E1: boom"
	if err.Error() != want {
		t.Errorf("Error(): got %q, want %q", err.Error(), want)
	}

	bare := &PlatformError{Code: "E2"}
	if bare.Error() != "platform error E2" {
		t.Errorf("Error(): got %q", bare.Error())
	}
}

func TestMissingPluginErrorMessage(t *testing.T) {
	err := &MissingPluginError{ChannelName: "counter", MethodName: "increment"}
	want := "no implementation found for method increment on channel counter"
	if err.Error() != want {
		t.Errorf("Error(): got %q, want %q", err.Error(), want)
	}

	channelOnly := &MissingPluginError{ChannelName: "counter"}
	want = "no implementation found on channel counter"
	if channelOnly.Error() != want {
		t.Errorf("Error(): got %q, want %q", channelOnly.Error(), want)
	}
}

func TestErrorTypesSurviveWrapping(t *testing.T) {
	wrapped := fmt.Errorf("invoking: %w", &PlatformError{Code: "E1"})

	var platformErr *PlatformError
	if !errors.As(wrapped, &platformErr) {
		t.Fatal("errors.As failed to unwrap PlatformError")
	}
	if platformErr.Code != "E1" {
		t.Errorf("Code: got %q, want E1", platformErr.Code)
	}

	var formatErr *FormatError
	if errors.As(wrapped, &formatErr) {
		t.Error("PlatformError must not match FormatError")
	}
}
