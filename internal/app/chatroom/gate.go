package chatroom

import (
	"time"

	"github.com/PabloGalante/rentchat/internal/domain"
)

// Gate decides whether a rendered batch deserves a local notification.
// It keeps a watermark of the last notified message: the same message never
// fires twice, and a message created before the watermark never fires.
type Gate struct {
	lastID domain.MessageID
	lastAt time.Time
}

// Watermark returns the id of the last notified message.
func (g *Gate) Watermark() (domain.MessageID, bool) {
	return g.lastID, g.lastID != ""
}

// Observe inspects the latest message of a rendered batch. It returns true
// when a notification must fire, and then moves the watermark to latest.
// Earlier messages of the batch are never considered.
func (g *Gate) Observe(latest DisplayMessage, self domain.UserID) bool {
	if latest.ID == "" || latest.Author.ID == self || latest.ID == g.lastID {
		return false
	}
	if g.lastID != "" && latest.CreatedAt.Before(g.lastAt) {
		return false
	}
	g.lastID = latest.ID
	g.lastAt = latest.CreatedAt
	return true
}
