package directory

import (
	"sync"

	"github.com/PabloGalante/rentchat/internal/domain"
)

// Snapshot is one resolution of a conversation's participants.
type Snapshot struct {
	Profiles map[domain.UserID]domain.ParticipantProfile
	Partner  domain.ParticipantProfile
	Self     domain.UserID
	Resolved bool
}

// Lookup returns the profile for id, or the sentinel when id is unknown.
func (s Snapshot) Lookup(id domain.UserID) domain.ParticipantProfile {
	if p, ok := s.Profiles[id]; ok {
		return p
	}
	return domain.UnknownProfile(id)
}

// Directory is an observable holder of the latest Snapshot.
// It is written by the resolver and read by chat rooms.
type Directory struct {
	mu     sync.RWMutex
	snap   Snapshot
	subs   map[int]chan Snapshot
	nextID int
}

func New() *Directory {
	return &Directory{
		subs: make(map[int]chan Snapshot),
	}
}

func (d *Directory) Snapshot() Snapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.snap
}

func (d *Directory) Lookup(id domain.UserID) domain.ParticipantProfile {
	return d.Snapshot().Lookup(id)
}

// Publish stores snap and hands it to every subscriber. A subscriber that has
// not consumed the previous snapshot only sees the latest one.
func (d *Directory) Publish(snap Snapshot) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.snap = snap
	for _, ch := range d.subs {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}

// Subscribe returns a channel receiving every published snapshot and a func
// that cancels the subscription.
func (d *Directory) Subscribe() (<-chan Snapshot, func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	id := d.nextID
	d.nextID++
	ch := make(chan Snapshot, 1)
	d.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			d.mu.Lock()
			delete(d.subs, id)
			d.mu.Unlock()
		})
	}
}
