package mail

import (
	"testing"

	"crowdfund-server/internal/observability"
)

func TestNewResendClientRequiresSender(t *testing.T) {
	if _, err := NewResendClient("re_test_key", "", observability.NewLogger()); err == nil {
		t.Fatal("expected error for missing sender address")
	}
	if _, err := NewResendClient("re_test_key", "   ", observability.NewLogger()); err == nil {
		t.Fatal("expected error for blank sender address")
	}
}

func TestNewResendClientSetsSender(t *testing.T) {
	c, err := NewResendClient("re_test_key", "noreply@example.com", observability.NewLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.from != "noreply@example.com" {
		t.Errorf("expected configured sender, got %q", c.from)
	}
}
