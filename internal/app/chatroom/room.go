package chatroom

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/PabloGalante/rentchat/internal/app/booking"
	"github.com/PabloGalante/rentchat/internal/app/directory"
	"github.com/PabloGalante/rentchat/internal/domain"
	"github.com/PabloGalante/rentchat/internal/observability"
	"github.com/PabloGalante/rentchat/internal/validation"
)

const defaultNotifyTimeout = 5 * time.Second

// Deps are the collaborators of a chat room.
type Deps struct {
	Log      domain.MessageLog
	Chats    domain.ConversationStore
	Profiles domain.ProfileStore
	Session  domain.SessionProvider
	Notifier domain.Notifier
	Booking  *booking.Channel

	NotifyTimeout time.Duration
	Now           func() time.Time
	NewMessageID  func() string
}

func (d *Deps) setDefaults() {
	if d.NotifyTimeout <= 0 {
		d.NotifyTimeout = defaultNotifyTimeout
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.NewMessageID == nil {
		d.NewMessageID = newMessageID
	}
}

// message ids are UUIDv7 so that ordering by id follows creation order
func newMessageID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

type resolveKey struct {
	sender, receiver, self domain.UserID
}

type streamEvent struct {
	batch *domain.Batch[*domain.Message]
	err   error
}

// Room is one open chat view. A single goroutine applies every stream batch
// and directory update in arrival order, re-rendering the view each time.
type Room struct {
	conv     domain.Conversation
	deps     Deps
	resolver *directory.Resolver
	dir      *directory.Directory
	gate     Gate
	log      *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	events chan streamEvent
	stream domain.Stream[*domain.Message]

	// serializes Send and SubmitBooking
	opMu sync.Mutex

	mu          sync.RWMutex
	view        View
	raw         []*domain.Message
	loaded      bool
	resolveKey  resolveKey
	resolveSeq  uint64
	hasResolved bool
	watchers    map[int]chan View
	nextWatch   int
}

// Open validates conv and starts synchronizing it. A conversation without id
// is rejected before any subscription is attempted. ctx bounds the room's
// lifetime; Close ends it earlier.
//
// A subscription that cannot be opened does not fail Open: the room starts in
// its terminal error state, exactly as if the live query had failed later.
func Open(ctx context.Context, deps Deps, conv domain.Conversation) (*Room, error) {
	if err := validation.Struct(conv); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidConversation, validation.Summary(err))
	}
	deps.setDefaults()

	rctx, cancel := context.WithCancel(ctx)
	r := &Room{
		conv:     conv,
		deps:     deps,
		resolver: directory.NewResolver(deps.Profiles),
		dir:      directory.New(),
		log:      observability.LoggerFromContext(ctx).With("conversation_id", conv.ID),
		ctx:      rctx,
		cancel:   cancel,
		done:     make(chan struct{}),
		events:   make(chan streamEvent),
		watchers: make(map[int]chan View),
	}
	r.view = View{
		ConversationID: conv.ID,
		Loading:        true,
		Partner:        domain.UnknownProfile(conv.PartnerOf(r.selfID())),
	}

	dirCh, unsubscribe := r.dir.Subscribe()
	r.maybeResolve()

	stream, err := deps.Log.WatchMessages(rctx, conv.ID, 0)
	if err != nil {
		r.log.Error("failed to subscribe to messages", "error", err)
		r.fail()
	} else {
		r.stream = stream
		go r.readStream(stream)
	}

	go r.loop(dirCh, unsubscribe)

	r.log.Info("chat room opened")
	return r, nil
}

func (r *Room) Conversation() domain.Conversation { return r.conv }

// Viewer returns the user the room renders for.
func (r *Room) Viewer() (domain.User, bool) { return r.currentUser() }

// View returns the current snapshot.
func (r *Room) View() View {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.view
}

// Watch streams view snapshots, starting with the current one. A slow
// consumer only sees the latest snapshot. The channel closes with the room.
func (r *Room) Watch() (<-chan View, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch := make(chan View, 1)
	if r.view.Closed {
		ch <- r.view
		close(ch)
		return ch, func() {}
	}

	id := r.nextWatch
	r.nextWatch++
	r.watchers[id] = ch
	ch <- r.view

	return ch, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if w, ok := r.watchers[id]; ok {
			delete(r.watchers, id)
			close(w)
		}
	}
}

// Done is closed once the room has stopped.
func (r *Room) Done() <-chan struct{} { return r.done }

// Close cancels the subscription and stops the room. It is safe to call more than once.
func (r *Room) Close() {
	r.cancel()
	<-r.done
}

func (r *Room) currentUser() (domain.User, bool) {
	if r.deps.Session == nil {
		return domain.User{}, false
	}
	return r.deps.Session.CurrentUser()
}

func (r *Room) selfID() domain.UserID {
	u, ok := r.currentUser()
	if !ok {
		return ""
	}
	return u.ID
}

func (r *Room) readStream(stream domain.Stream[*domain.Message]) {
	for {
		b, err := stream.Next()
		ev := streamEvent{batch: b, err: err}
		select {
		case r.events <- ev:
		case <-r.ctx.Done():
			return
		}
		if err != nil {
			return
		}
	}
}

func (r *Room) loop(dirCh <-chan directory.Snapshot, unsubscribe func()) {
	defer close(r.done)
	defer unsubscribe()

	for {
		select {
		case <-r.ctx.Done():
			r.shutdown()
			return

		case ev := <-r.events:
			if ev.err != nil {
				if r.ctx.Err() != nil {
					continue
				}
				r.log.Error("message subscription failed", "error", ev.err)
				r.fail()
				continue
			}
			r.mu.Lock()
			r.raw = ev.batch.Items
			r.loaded = true
			r.mu.Unlock()

			r.maybeResolve()
			r.render("batch")

		case <-dirCh:
			r.render("directory")
		}
	}
}

func (r *Room) shutdown() {
	if r.stream != nil {
		r.stream.Stop()
	}

	r.mu.Lock()
	r.view.Closed = true
	r.view.Version++
	for id, ch := range r.watchers {
		select {
		case <-ch:
		default:
		}
		ch <- r.view
		close(ch)
		delete(r.watchers, id)
	}
	r.mu.Unlock()

	r.log.Info("chat room closed")
}

// fail moves the room to its terminal error state.
func (r *Room) fail() {
	if r.stream != nil {
		r.stream.Stop()
	}
	r.update(func(v *View) {
		v.Loading = false
		v.Failed = true
		v.Error = msgLoadFailed
	})
}

// maybeResolve starts a resolution when the participant pair or the viewer
// changed since the last one. Results of superseded resolutions are dropped.
func (r *Room) maybeResolve() {
	self := r.selfID()
	key := resolveKey{sender: r.conv.SenderID, receiver: r.conv.ReceiverID, self: self}

	r.mu.Lock()
	if r.hasResolved && key == r.resolveKey {
		r.mu.Unlock()
		return
	}
	r.hasResolved = true
	r.resolveKey = key
	r.resolveSeq++
	seq := r.resolveSeq
	r.mu.Unlock()

	go func() {
		snap := r.resolver.Resolve(r.ctx, r.conv, self)

		r.mu.RLock()
		defer r.mu.RUnlock()
		if seq != r.resolveSeq || r.ctx.Err() != nil {
			return
		}
		r.dir.Publish(snap)
	}()
}

// render decorates the cached raw batch with the current directory and runs
// the notification gate on the result.
func (r *Room) render(cause string) {
	snap := r.dir.Snapshot()
	self := r.selfID()
	now := r.deps.Now()

	r.mu.RLock()
	raw := r.raw
	loaded := r.loaded
	r.mu.RUnlock()

	msgs := make([]DisplayMessage, 0, len(raw))
	for _, m := range raw {
		created := m.CreatedAt
		if created.IsZero() {
			created = now
		}
		msgs = append(msgs, DisplayMessage{
			ID:        m.ID,
			Text:      m.Text,
			CreatedAt: created,
			Author:    snap.Lookup(m.Author.ID),
			Mine:      self != "" && m.Author.ID == self,
		})
	}
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})

	partner := domain.UnknownProfile(r.conv.PartnerOf(self))
	if snap.Resolved {
		partner = snap.Partner
	}

	view := r.update(func(v *View) {
		v.Partner = partner
		if v.Failed {
			return
		}
		v.Messages = msgs
		if loaded {
			v.Loading = false
		}
	})

	r.log.Debug("rendered", "cause", cause, "messages", len(msgs), "version", view.Version)

	if view.Failed || !loaded {
		return
	}
	if latest, ok := view.Latest(); ok && r.gate.Observe(latest, self) {
		r.notify(latest, self)
	}
}

func (r *Room) notify(m DisplayMessage, self domain.UserID) {
	if r.deps.Notifier == nil {
		return
	}

	ctx, cancel := context.WithTimeout(r.ctx, r.deps.NotifyTimeout)
	defer cancel()

	err := r.deps.Notifier.Notify(ctx, domain.Notification{
		Recipient:      self,
		ConversationID: r.conv.ID,
		Title:          m.Author.Name,
		Body:           m.Text,
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		r.log.Warn("local notification failed", "message_id", m.ID, "error", err)
	}
}

// update applies fn to the view, bumps its version and fans the result out.
func (r *Room) update(fn func(v *View)) View {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.view.Closed {
		return r.view
	}
	fn(&r.view)
	r.view.Version++

	for _, ch := range r.watchers {
		select {
		case <-ch:
		default:
		}
		ch <- r.view
	}
	return r.view
}
