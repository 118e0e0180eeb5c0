// Package invitesync upserts the guest list from a JSON file into the
// invitation store.
package invitesync

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"wedding-site/internal/models"
)

// Entry is one invitation as written in the sync file
type Entry struct {
	Code       string   `json:"code" validate:"required"`
	PartyName  string   `json:"party_name" validate:"required"`
	GuestNames []string `json:"guest_names" validate:"min=1,dive,required"`
	Email      string   `json:"email" validate:"omitempty,email"`
	Notes      string   `json:"notes"`
}

type file struct {
	Invitations []Entry `json:"invitations"`
}

// Summary counts what a sync did
type Summary struct {
	Added   int
	Updated int
	Errors  int
	Total   int
}

// Upserter writes invitations keyed by code
type Upserter interface {
	UpsertByCode(ctx context.Context, inv *models.Invitation) (bool, error)
}

// Syncer applies sync files
type Syncer struct {
	store    Upserter
	validate *validator.Validate
	log      zerolog.Logger
}

// NewSyncer creates a syncer writing to store
func NewSyncer(store Upserter, log zerolog.Logger) *Syncer {
	return &Syncer{
		store:    store,
		validate: validator.New(),
		log:      log.With().Str("component", "invitesync").Logger(),
	}
}

// Sync reads {"invitations":[...]} from r and upserts every valid entry.
// Invalid entries and store errors are counted and skipped.
func (s *Syncer) Sync(ctx context.Context, r io.Reader) (Summary, error) {
	var f file
	if err := json.NewDecoder(r).Decode(&f); err != nil {
		return Summary{}, fmt.Errorf("failed to parse invitations file: %w", err)
	}

	summary := Summary{Total: len(f.Invitations)}
	for _, e := range f.Invitations {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		e.Code = strings.TrimSpace(e.Code)
		e.PartyName = strings.TrimSpace(e.PartyName)
		if err := s.validate.Struct(e); err != nil {
			s.log.Error().Err(err).Str("code", e.Code).Msg("Skipping invalid invitation")
			summary.Errors++
			continue
		}

		inv := ToInvitation(e)
		created, err := s.store.UpsertByCode(ctx, &inv)
		if err != nil {
			s.log.Error().Err(err).Str("code", inv.Code).Msg("Error syncing invitation")
			summary.Errors++
			continue
		}

		action := "Updated"
		if created {
			action = "Added"
			summary.Added++
		} else {
			summary.Updated++
		}
		s.log.Info().
			Str("code", inv.Code).
			Str("party", inv.PartyName).
			Int("guests", inv.PartySize).
			Msg(action)
	}
	return summary, nil
}

// ToInvitation converts an entry, upper-casing the code and deriving the
// party size from the guest names.
func ToInvitation(e Entry) models.Invitation {
	names := make(models.StringList, len(e.GuestNames))
	for i, n := range e.GuestNames {
		names[i] = strings.TrimSpace(n)
	}
	return models.Invitation{
		Code:       models.NormalizeCode(e.Code),
		PartyName:  e.PartyName,
		GuestNames: names,
		PartySize:  len(names),
		Email:      strings.TrimSpace(e.Email),
		Notes:      e.Notes,
	}
}
