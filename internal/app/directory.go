package app

import (
	"context"

	"github.com/dkeye/Pulse/internal/domain"
)

// Directory is the identity collaborator: it resolves a user id to the
// profile snapshot (name/username/avatar) attached to outbound chat
// payloads. The production adapter reads the profile store through a cache;
// tests plug in fakes.
type Directory interface {
	Lookup(ctx context.Context, id domain.UserID) (domain.Identity, error)
}

// NopDirectory yields bare identities. Used when no identity backend is
// configured; recipients still learn the sender's user id.
type NopDirectory struct{}

func (NopDirectory) Lookup(_ context.Context, id domain.UserID) (domain.Identity, error) {
	return domain.BareIdentity(id), nil
}
