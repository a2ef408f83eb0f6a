package apperr

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{Unauthenticated(), 401},
		{Unauthorized("no"), 403},
		{NotFound("x"), 404},
		{Validation("x"), 422},
		{Conflict("x"), 409},
		{RateLimited("x"), 429},
		{New(KindConfig, "x"), 500},
		{New(KindSendEmail, "x"), 500},
		{errors.New("plain"), 500},
		{fmt.Errorf("wrapped: %w", NotFound("x")), 404},
	}
	for _, tt := range tests {
		if got := Status(tt.err); got != tt.want {
			t.Errorf("Status(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestKindAndMessage(t *testing.T) {
	if !errors.Is(Conflict("a"), Conflict("b")) {
		t.Error("errors.Is should compare kinds")
	}
	if KindOf(errors.New("x")) != KindInternal {
		t.Error("plain errors are internal")
	}
	internal := Wrap(KindInternal, "db exploded", errors.New("password=hunter2"))
	if PublicMessage(internal) != "internal server error" {
		t.Errorf("internal detail leaked: %q", PublicMessage(internal))
	}
	if PublicMessage(Validation("name is required")) != "name is required" {
		t.Error("validation message should pass through")
	}
	if RetryAfter(RateLimitedFor("wait", 3*time.Second)) != 3*time.Second || RetryAfter(NotFound("x")) != 0 {
		t.Error("RetryAfter wrong")
	}
}
