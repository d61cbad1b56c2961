package validation_test

import (
	"testing"

	"github.com/PabloGalante/rentchat/internal/domain"
	"github.com/PabloGalante/rentchat/internal/validation"
)

func TestConversationRequiresID(t *testing.T) {
	err := validation.Struct(domain.Conversation{SenderID: "alice"})
	if err == nil {
		t.Fatalf("expected a validation error")
	}

	msgs := validation.Messages(err)
	if len(msgs) != 1 || msgs[0].Field != "id" || msgs[0].Tag != "required" {
		t.Fatalf("unexpected field errors %+v", msgs)
	}
	if got := validation.Summary(err); got != "id is required" {
		t.Fatalf("unexpected summary %q", got)
	}
}

func TestValidConversation(t *testing.T) {
	if err := validation.Struct(domain.Conversation{ID: "c1"}); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if validation.Messages(nil) != nil || validation.Summary(nil) != "" {
		t.Fatalf("nil error must produce nothing")
	}
}
