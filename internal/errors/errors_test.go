package errors

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestParseErrorError(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewStorageFailedError("pp-123", cause)

	msg := err.Error()
	if !strings.Contains(msg, "STORAGE_FAILED") {
		t.Errorf("error string missing code: %q", msg)
	}
	if !strings.Contains(msg, "connection refused") {
		t.Errorf("error string missing cause: %q", msg)
	}
	if !errors.Is(err, cause) {
		t.Error("Unwrap chain broken")
	}
}

func TestParseErrorToMap(t *testing.T) {
	err := NewNoTextError("pp-123", 42)
	m := err.ToMap()

	if m["error_code"] != "NO_TEXT" {
		t.Errorf("error_code = %v", m["error_code"])
	}
	if m["total_pages"] != 42 {
		t.Errorf("total_pages = %v", m["total_pages"])
	}
	if _, ok := m["timestamp"].(time.Time); !ok {
		t.Errorf("timestamp = %v", m["timestamp"])
	}
	if _, ok := m["cause"]; ok {
		t.Error("cause present without an underlying error")
	}
}

func TestUserFacingMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "rate limited gateway",
			err:  errors.New("gateway extraction failed: 429 rate limit exceeded"),
			want: "temporarily unavailable",
		},
		{
			name: "overloaded model",
			err:  errors.New("model overloaded, status 529"),
			want: "temporarily unavailable",
		},
		{
			name: "scanned document",
			err:  NewNoTextError("pp-1", 10),
			want: "scanned or image-only",
		},
		{
			name: "no rooms",
			err:  NewNoRoomsFoundError("pp-1", 5),
			want: "No rooms could be identified",
		},
		{
			name: "corrupt file",
			err:  errors.New("invalid pdf header"),
			want: "corrupted or unreadable",
		},
		{
			name: "timeout",
			err:  errors.New("context deadline exceeded"),
			want: "took too long",
		},
		{
			name: "auth failure",
			err:  errors.New("status 401 unauthorized"),
			want: "could not authenticate",
		},
		{
			name: "unknown error surfaces raw text",
			err:  errors.New("totally novel failure"),
			want: "totally novel failure",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := UserFacingMessage(tt.err)
			if !strings.Contains(got, tt.want) {
				t.Errorf("UserFacingMessage() = %q, want substring %q", got, tt.want)
			}
		})
	}
}

func TestUserFacingMessageCategoryOrder(t *testing.T) {
	// An unavailable gateway that also mentions a timeout reads as an
	// availability problem, not a timeout.
	err := errors.New("service unavailable, request timeout after retries")
	got := UserFacingMessage(err)
	if !strings.Contains(got, "temporarily unavailable") {
		t.Errorf("got %q, want the availability message", got)
	}
}

func TestUserFacingMessageTruncation(t *testing.T) {
	raw := strings.Repeat("z", 500)
	got := UserFacingMessage(errors.New(raw))
	if len(got) != 203 || !strings.HasSuffix(got, "...") {
		t.Errorf("len = %d, suffix ok = %v", len(got), strings.HasSuffix(got, "..."))
	}
}

func TestUserFacingMessageNil(t *testing.T) {
	if got := UserFacingMessage(nil); got != "" {
		t.Errorf("got %q, want empty", got)
	}
}
