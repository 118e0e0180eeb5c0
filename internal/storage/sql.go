package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"wedding-site/internal/models"
)

const (
	invitationColumns = `id, code, party_name, guest_names, party_size, email, notes, created_at, updated_at`
	rsvpColumns       = `id, invitation_id, guest_responses, dietary_restrictions, castle_preference, email, message, revision, submitted_at, created_at, updated_at`
	photoColumns      = `id, file_path, file_url, uploader_name, caption, created_at`

	defaultSearchLimit = 50
)

// SQLStore implements Store on SQLite or PostgreSQL through sqlx
type SQLStore struct {
	db      *sqlx.DB
	changes ChangeSink
	log     zerolog.Logger
	now     func() time.Time
}

// NewSQLStore wraps an open database
func NewSQLStore(db *sqlx.DB, changes ChangeSink, log zerolog.Logger) *SQLStore {
	return &SQLStore{
		db:      db,
		changes: sinkOrDiscard(changes),
		log:     log.With().Str("component", "sql-store").Logger(),
		now:     time.Now,
	}
}

// FindByCode returns the invitation whose code equals code, ignoring case
func (s *SQLStore) FindByCode(ctx context.Context, code string) (*models.Invitation, error) {
	var inv models.Invitation
	q := s.db.Rebind(`SELECT ` + invitationColumns + ` FROM invitations WHERE code = ?`)
	if err := s.db.GetContext(ctx, &inv, q, models.NormalizeCode(code)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find invitation by code: %w", err)
	}
	return &inv, nil
}

// FindByID returns the invitation with the given id
func (s *SQLStore) FindByID(ctx context.Context, id string) (*models.Invitation, error) {
	var inv models.Invitation
	q := s.db.Rebind(`SELECT ` + invitationColumns + ` FROM invitations WHERE id = ?`)
	if err := s.db.GetContext(ctx, &inv, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find invitation %s: %w", id, err)
	}
	return &inv, nil
}

// SearchByName runs a parameterised LIKE prefilter over search_text and
// re-checks every candidate with Invitation.MatchesName. search_text is
// lower-cased in Go because SQLite's LOWER only folds ASCII.
func (s *SQLStore) SearchByName(ctx context.Context, fragment string, limit int) ([]models.Invitation, error) {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	pattern := "%" + escapeLike(strings.ToLower(fragment)) + "%"

	q := s.db.Rebind(`SELECT ` + invitationColumns + ` FROM invitations
		WHERE search_text LIKE ? ESCAPE '\'
		ORDER BY party_name, id
		LIMIT ?`)

	var candidates []models.Invitation
	if err := s.db.SelectContext(ctx, &candidates, q, pattern, limit); err != nil {
		return nil, fmt.Errorf("failed to search invitations: %w", err)
	}

	result := candidates[:0]
	for _, inv := range candidates {
		if inv.MatchesName(fragment) {
			result = append(result, inv)
		}
	}
	return result, nil
}

// UpsertByCode inserts inv or updates the row with the same code. The id
// returned by the statement tells the two apart.
func (s *SQLStore) UpsertByCode(ctx context.Context, inv *models.Invitation) (bool, error) {
	now := s.now().UTC()
	newID := inv.ID
	if newID == "" {
		newID = uuid.NewString()
	}
	inv.Code = models.NormalizeCode(inv.Code)

	q := s.db.Rebind(`INSERT INTO invitations (` + invitationColumns + `, search_text)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (code) DO UPDATE SET
			party_name = excluded.party_name,
			guest_names = excluded.guest_names,
			search_text = excluded.search_text,
			party_size = excluded.party_size,
			email = excluded.email,
			notes = excluded.notes,
			updated_at = excluded.updated_at
		RETURNING id`)

	var id string
	err := s.db.GetContext(ctx, &id, q,
		newID, inv.Code, inv.PartyName, inv.GuestNames, inv.PartySize, inv.Email, inv.Notes, now, now, inv.SearchText())
	if err != nil {
		return false, fmt.Errorf("failed to upsert invitation %s: %w", inv.Code, err)
	}

	created := id == newID
	inv.ID = id
	inv.UpdatedAt = now
	if created {
		inv.CreatedAt = now
	}
	return created, nil
}

// List returns every invitation ordered by code
func (s *SQLStore) List(ctx context.Context) ([]models.Invitation, error) {
	var invitations []models.Invitation
	q := `SELECT ` + invitationColumns + ` FROM invitations ORDER BY code`
	if err := s.db.SelectContext(ctx, &invitations, q); err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}
	return invitations, nil
}

// GetByInvitation returns the stored response for an invitation
func (s *SQLStore) GetByInvitation(ctx context.Context, invitationID string) (*models.RSVPResponse, error) {
	var resp models.RSVPResponse
	q := s.db.Rebind(`SELECT ` + rsvpColumns + ` FROM rsvps WHERE invitation_id = ?`)
	if err := s.db.GetContext(ctx, &resp, q, invitationID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get rsvp for invitation %s: %w", invitationID, err)
	}
	return &resp, nil
}

// Upsert writes resp in a single INSERT ... ON CONFLICT statement keyed by
// invitation_id, so concurrent submissions cannot create duplicates.
func (s *SQLStore) Upsert(ctx context.Context, resp *models.RSVPResponse) (*models.RSVPResponse, error) {
	now := s.now().UTC()

	q := s.db.Rebind(`INSERT INTO rsvps (` + rsvpColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?, ?, ?)
		ON CONFLICT (invitation_id) DO UPDATE SET
			guest_responses = excluded.guest_responses,
			dietary_restrictions = excluded.dietary_restrictions,
			castle_preference = excluded.castle_preference,
			email = excluded.email,
			message = excluded.message,
			revision = rsvps.revision + 1,
			submitted_at = excluded.submitted_at,
			updated_at = excluded.updated_at
		RETURNING revision`)

	var revision int
	err := s.db.GetContext(ctx, &revision, q,
		uuid.NewString(), resp.InvitationID, resp.GuestResponses, resp.DietaryRestrictions,
		resp.CastlePreference, resp.Email, resp.Message, now, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert rsvp for invitation %s: %w", resp.InvitationID, err)
	}

	stored, err := s.GetByInvitation(ctx, resp.InvitationID)
	if err != nil {
		return nil, err
	}

	changeType := models.ChangeUpdate
	if revision == 1 {
		changeType = models.ChangeInsert
	}
	s.publish(changeType, models.TableRSVPs, stored)

	return stored, nil
}

// ListResponses returns every response, newest first
func (s *SQLStore) ListResponses(ctx context.Context) ([]models.RSVPResponse, error) {
	var responses []models.RSVPResponse
	q := `SELECT ` + rsvpColumns + ` FROM rsvps ORDER BY submitted_at DESC`
	if err := s.db.SelectContext(ctx, &responses, q); err != nil {
		return nil, fmt.Errorf("failed to list rsvps: %w", err)
	}
	return responses, nil
}

// InsertPhoto appends a shared photo row
func (s *SQLStore) InsertPhoto(ctx context.Context, photo *models.SharedPhoto) error {
	if photo.ID == "" {
		photo.ID = uuid.NewString()
	}
	if photo.CreatedAt.IsZero() {
		photo.CreatedAt = s.now().UTC()
	}

	q := s.db.Rebind(`INSERT INTO shared_photos (` + photoColumns + `) VALUES (?, ?, ?, ?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, q,
		photo.ID, photo.FilePath, photo.FileURL, photo.UploaderName, photo.Caption, photo.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert photo %s: %w", photo.FilePath, err)
	}

	s.publish(models.ChangeInsert, models.TableSharedPhotos, photo)
	return nil
}

// ListPhotos returns one page of photos, newest first
func (s *SQLStore) ListPhotos(ctx context.Context, offset, limit int) ([]models.SharedPhoto, error) {
	var photos []models.SharedPhoto
	q := s.db.Rebind(`SELECT ` + photoColumns + ` FROM shared_photos
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?`)
	if err := s.db.SelectContext(ctx, &photos, q, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list photos: %w", err)
	}
	return photos, nil
}

// Close closes the database
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) publish(changeType, table string, record any) {
	ev, err := models.NewChangeEvent(changeType, table, record)
	if err != nil {
		s.log.Error().Err(err).Str("table", table).Msg("Failed to encode change event")
		return
	}
	s.changes.Publish(ev)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
