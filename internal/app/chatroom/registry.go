package chatroom

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/PabloGalante/rentchat/internal/domain"
	"github.com/PabloGalante/rentchat/internal/observability"
)

// Registry keeps the chat rooms opened by the clients of this process,
// keyed by a generated view id.
type Registry struct {
	ctx   context.Context
	deps  Deps
	newID func() string

	mu    sync.Mutex
	rooms map[string]*Room
}

// NewRegistry creates a registry whose rooms live at most as long as ctx.
// deps.Session is replaced per room.
func NewRegistry(ctx context.Context, deps Deps) *Registry {
	return &Registry{
		ctx:   ctx,
		deps:  deps,
		newID: uuid.NewString,
		rooms: make(map[string]*Room),
	}
}

// Open starts a room for conv seen by the session's user.
func (g *Registry) Open(conv domain.Conversation, session domain.SessionProvider) (string, *Room, error) {
	deps := g.deps
	deps.Session = session

	room, err := Open(g.ctx, deps, conv)
	if err != nil {
		return "", nil, err
	}

	id := g.newID()
	g.mu.Lock()
	g.rooms[id] = room
	g.mu.Unlock()

	// forget rooms that stop on their own (registry context ended)
	go func() {
		<-room.Done()
		g.mu.Lock()
		if g.rooms[id] == room {
			delete(g.rooms, id)
		}
		g.mu.Unlock()
	}()

	observability.Logger().Info("chat view opened", "view_id", id, "conversation_id", conv.ID)
	return id, room, nil
}

func (g *Registry) Get(id string) (*Room, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	room, ok := g.rooms[id]
	if !ok {
		return nil, domain.ErrViewNotFound
	}
	return room, nil
}

// Close stops the room of a view and forgets it.
func (g *Registry) Close(id string) error {
	g.mu.Lock()
	room, ok := g.rooms[id]
	delete(g.rooms, id)
	g.mu.Unlock()

	if !ok {
		return domain.ErrViewNotFound
	}
	room.Close()
	return nil
}

// Len reports the number of open views.
func (g *Registry) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.rooms)
}

// CloseAll stops every room. Used on shutdown.
func (g *Registry) CloseAll() {
	g.mu.Lock()
	rooms := make([]*Room, 0, len(g.rooms))
	for id, r := range g.rooms {
		rooms = append(rooms, r)
		delete(g.rooms, id)
	}
	g.mu.Unlock()

	for _, r := range rooms {
		r.Close()
	}
}
