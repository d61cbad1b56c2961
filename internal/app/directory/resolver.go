package directory

import (
	"context"
	"errors"
	"log/slog"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/PabloGalante/rentchat/internal/domain"
	"github.com/PabloGalante/rentchat/internal/observability"
)

// Resolver fetches the profiles of a conversation's participants.
type Resolver struct {
	profiles domain.ProfileStore
}

func NewResolver(profiles domain.ProfileStore) *Resolver {
	return &Resolver{profiles: profiles}
}

// Resolve never fails: a profile that cannot be fetched, or does not exist,
// resolves to the sentinel profile. Each distinct non-empty id is fetched once.
func (r *Resolver) Resolve(ctx context.Context, conv domain.Conversation, self domain.UserID) Snapshot {
	log := observability.LoggerFromContext(ctx).With(
		"conversation_id", conv.ID,
		"self_id", self,
	)

	var ids []domain.UserID
	for _, id := range conv.Participants() {
		if id != "" && !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}

	// both participants are fetched at the same time; fetch never fails
	fetched := make([]domain.ParticipantProfile, len(ids))
	var g errgroup.Group
	for i, id := range ids {
		g.Go(func() error {
			fetched[i] = r.fetch(ctx, log, id)
			return nil
		})
	}
	_ = g.Wait()

	profiles := make(map[domain.UserID]domain.ParticipantProfile, len(ids))
	for i, id := range ids {
		profiles[id] = fetched[i]
	}

	partnerID := conv.PartnerOf(self)
	snap := Snapshot{
		Profiles: profiles,
		Self:     self,
		Resolved: true,
	}
	snap.Partner = snap.Lookup(partnerID)

	log.Debug("participants resolved", "partner_id", partnerID, "profiles", len(profiles))
	return snap
}

func (r *Resolver) fetch(ctx context.Context, log *slog.Logger, id domain.UserID) domain.ParticipantProfile {
	p, err := r.profiles.GetProfile(ctx, id)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return domain.UnknownProfile(id)
	case err != nil:
		log.Warn("profile fetch failed, using sentinel", "user_id", id, "error", err)
		return domain.UnknownProfile(id)
	case p == nil:
		return domain.UnknownProfile(id)
	}

	out := domain.ParticipantProfile{ID: id, Name: p.Name, PhotoURL: p.PhotoURL}
	if out.Name == "" {
		out.Name = domain.UnknownUserName
	}
	return out
}
