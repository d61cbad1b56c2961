package chatroom_test

import (
	"context"
	"errors"
	"testing"

	"github.com/PabloGalante/rentchat/internal/adapters/auth"
	"github.com/PabloGalante/rentchat/internal/app/chatroom"
	"github.com/PabloGalante/rentchat/internal/domain"
)

func TestRegistryOpenGetClose(t *testing.T) {
	f := newFixture(t)
	reg := chatroom.NewRegistry(context.Background(), f.deps)
	defer reg.CloseAll()

	bob := auth.StaticSession{User: domain.User{ID: "bob", DisplayName: "Bob"}}
	id, room, err := reg.Open(conv, bob)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	got, err := reg.Get(id)
	if err != nil || got != room {
		t.Fatalf("Get(%s) = %v, %v", id, got, err)
	}
	if viewer, _ := room.Viewer(); viewer.ID != "bob" {
		t.Fatalf("expected room bound to bob, got %q", viewer.ID)
	}
	waitFor(t, "partner resolved", func() bool { return room.View().Partner.Name == "Alice" })

	if err := reg.Close(id); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, err := reg.Get(id); !errors.Is(err, domain.ErrViewNotFound) {
		t.Fatalf("expected ErrViewNotFound, got %v", err)
	}
	if err := reg.Close(id); !errors.Is(err, domain.ErrViewNotFound) {
		t.Fatalf("expected ErrViewNotFound on second close, got %v", err)
	}
	if n := f.store.Watchers(conv.ID); n != 0 {
		t.Fatalf("expected no open subscription, got %d", n)
	}
}

func TestRegistryCloseAll(t *testing.T) {
	f := newFixture(t)
	reg := chatroom.NewRegistry(context.Background(), f.deps)

	for i := 0; i < 3; i++ {
		if _, _, err := reg.Open(conv, f.deps.Session); err != nil {
			t.Fatalf("Open failed: %v", err)
		}
	}
	if reg.Len() != 3 {
		t.Fatalf("expected 3 views, got %d", reg.Len())
	}

	reg.CloseAll()
	if reg.Len() != 0 {
		t.Fatalf("expected no views, got %d", reg.Len())
	}
	if n := f.store.Watchers(conv.ID); n != 0 {
		t.Fatalf("expected no open subscription, got %d", n)
	}
}
