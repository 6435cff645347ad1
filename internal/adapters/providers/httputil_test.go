package providers

import (
	"io"
	"strings"
	"testing"
)

func TestSSEScannerParsesEvents(t *testing.T) {
	input := ": keep-alive comment\n" +
		"data: first\n\n" +
		"data: second\n\n" +
		"data: [DONE]\n\n"

	scanner := newSSEScanner(strings.NewReader(input))

	payload, err := scanner.Next()
	if err != nil || payload != "first" {
		t.Fatalf("unexpected first event: %q err=%v", payload, err)
	}

	payload, err = scanner.Next()
	if err != nil || payload != "second" {
		t.Fatalf("unexpected second event: %q err=%v", payload, err)
	}

	if _, err = scanner.Next(); err != io.EOF {
		t.Fatalf("expected EOF on [DONE], got %v", err)
	}
}

func TestSSEScannerJoinsMultiLineData(t *testing.T) {
	input := "data: {\"a\":\n" +
		"data: 1}\n\n"

	scanner := newSSEScanner(strings.NewReader(input))

	payload, err := scanner.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if payload != "{\"a\":\n1}" {
		t.Fatalf("unexpected joined payload: %q", payload)
	}
}

func TestSSEScannerIgnoresOtherFields(t *testing.T) {
	input := "event: message_start\n" +
		"id: 42\n" +
		"data: payload\n\n"

	scanner := newSSEScanner(strings.NewReader(input))

	payload, err := scanner.Next()
	if err != nil || payload != "payload" {
		t.Fatalf("unexpected event: %q err=%v", payload, err)
	}
}

func TestSSEScannerEOFWithoutTrailingBlank(t *testing.T) {
	scanner := newSSEScanner(strings.NewReader("data: tail"))

	payload, err := scanner.Next()
	if err != nil || payload != "tail" {
		t.Fatalf("expected trailing data flush, got %q err=%v", payload, err)
	}

	if _, err = scanner.Next(); err != io.EOF {
		t.Fatalf("expected EOF, got %v", err)
	}
}
