package storage

import (
	"context"
	"errors"

	"wedding-site/internal/models"
)

// ErrNotFound is returned when a lookup matches no row
var ErrNotFound = errors.New("not found")

// InvitationStore answers narrow invitation queries. List is for the admin
// CLI only and is never reachable from the public API.
type InvitationStore interface {
	FindByCode(ctx context.Context, code string) (*models.Invitation, error)
	FindByID(ctx context.Context, id string) (*models.Invitation, error)
	SearchByName(ctx context.Context, fragment string, limit int) ([]models.Invitation, error)
	UpsertByCode(ctx context.Context, inv *models.Invitation) (created bool, err error)
	List(ctx context.Context) ([]models.Invitation, error)
}

// RSVPStore keeps at most one response per invitation
type RSVPStore interface {
	GetByInvitation(ctx context.Context, invitationID string) (*models.RSVPResponse, error)
	Upsert(ctx context.Context, resp *models.RSVPResponse) (*models.RSVPResponse, error)
	ListResponses(ctx context.Context) ([]models.RSVPResponse, error)
}

// PhotoStore is the append-only shared photo metadata table
type PhotoStore interface {
	InsertPhoto(ctx context.Context, photo *models.SharedPhoto) error
	ListPhotos(ctx context.Context, offset, limit int) ([]models.SharedPhoto, error)
}

// Store bundles the three tables
type Store interface {
	InvitationStore
	RSVPStore
	PhotoStore
	Close() error
}

// ChangeSink receives change events after successful writes
type ChangeSink interface {
	Publish(ev models.ChangeEvent)
}

type discardSink struct{}

func (discardSink) Publish(models.ChangeEvent) {}

func sinkOrDiscard(s ChangeSink) ChangeSink {
	if s == nil {
		return discardSink{}
	}
	return s
}
