package errs

import (
	"errors"
	"fmt"
	"testing"

	"pgregory.net/rapid"
)

var allCodes = []Code{Validation, NotFound, Conflict, Storage}

func testCodeOf_RoundtripForTypedErrors(t *rapid.T) {
	code := rapid.SampledFrom(allCodes).Draw(t, "code")
	message := rapid.StringMatching(`[a-zA-Z0-9 _:\-]{1,80}`).Draw(t, "message")

	err := New(code, message)
	if got := CodeOf(err); got != code {
		t.Fatalf("CodeOf(New) mismatch: got=%q want=%q", got, code)
	}
	if got := MessageOf(err); got != message {
		t.Fatalf("MessageOf(New) mismatch: got=%q want=%q", got, message)
	}
}

func TestCodeOf_RoundtripForTypedErrors(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testCodeOf_RoundtripForTypedErrors)
}

func testCodeOf_SurvivesWrapping(t *rapid.T) {
	code := rapid.SampledFrom(allCodes).Draw(t, "code")
	message := rapid.StringMatching(`[a-zA-Z0-9 _\-]{1,40}`).Draw(t, "message")
	cause := errors.New(rapid.StringMatching(`[a-z]{1,20}`).Draw(t, "cause"))

	err := fmt.Errorf("outer: %w", Wrap(code, message, cause))

	if got := CodeOf(err); got != code {
		t.Fatalf("CodeOf(wrapped) mismatch: got=%q want=%q", got, code)
	}
	if !Is(err, code) {
		t.Fatalf("Is(wrapped, %q) = false", code)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("cause lost through Unwrap")
	}
}

func TestCodeOf_SurvivesWrapping(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testCodeOf_SurvivesWrapping)
}

func TestUntypedAndNilFallbacks(t *testing.T) {
	raw := errors.New("disk I/O error")
	if got := CodeOf(raw); got != Storage {
		t.Errorf("CodeOf(untyped) = %q, want %q", got, Storage)
	}
	if got := MessageOf(raw); got != "disk I/O error" {
		t.Errorf("MessageOf(untyped) = %q", got)
	}
	if got := CodeOf(nil); got != "" {
		t.Errorf("CodeOf(nil) = %q, want empty", got)
	}
	if Is(nil, Storage) {
		t.Error("Is(nil, Storage) should be false")
	}
}

func TestError_Formatting(t *testing.T) {
	err := Wrap(Storage, "insert note", errors.New("database is locked"))
	if got := err.Error(); got != "insert note: database is locked" {
		t.Errorf("Error() = %q", got)
	}
	if got := MessageOf(err); got != "insert note" {
		t.Errorf("MessageOf() = %q", got)
	}
	if got := (&Error{Code: NotFound}).Error(); got != "not_found" {
		t.Errorf("bare Error() = %q", got)
	}
}
