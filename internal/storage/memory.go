package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"wedding-site/internal/models"
)

type snapshot struct {
	Invitations []models.Invitation   `json:"invitations"`
	RSVPs       []models.RSVPResponse `json:"rsvps"`
	Photos      []models.SharedPhoto  `json:"photos"`
}

// MemoryStore is the demo backend. It keeps everything in memory and, when a
// file path is given, mirrors it to a JSON file after every write.
type MemoryStore struct {
	mu      sync.RWMutex
	data    snapshot
	file    string
	changes ChangeSink
	log     zerolog.Logger
	now     func() time.Time
}

// NewMemoryStore creates a memory store seeded with invitations. Existing data
// in filePath, if any, replaces the seed.
func NewMemoryStore(filePath string, seed []models.Invitation, changes ChangeSink, log zerolog.Logger) (*MemoryStore, error) {
	s := &MemoryStore{
		file:    filePath,
		changes: sinkOrDiscard(changes),
		log:     log.With().Str("component", "demo-store").Logger(),
		now:     time.Now,
	}
	s.data.Invitations = append(s.data.Invitations, seed...)

	if filePath != "" {
		if _, err := os.Stat(filePath); err == nil {
			if err := s.Load(); err != nil {
				return nil, fmt.Errorf("failed to load storage: %w", err)
			}
		}
	}

	return s, nil
}

// FindByCode returns the invitation with the given code
func (s *MemoryStore) FindByCode(_ context.Context, code string) (*models.Invitation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	code = models.NormalizeCode(code)
	for _, inv := range s.data.Invitations {
		if models.NormalizeCode(inv.Code) == code {
			return &inv, nil
		}
	}
	return nil, ErrNotFound
}

// FindByID returns the invitation with the given id
func (s *MemoryStore) FindByID(_ context.Context, id string) (*models.Invitation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, inv := range s.data.Invitations {
		if inv.ID == id {
			return &inv, nil
		}
	}
	return nil, ErrNotFound
}

// SearchByName returns up to limit invitations matching fragment
func (s *MemoryStore) SearchByName(_ context.Context, fragment string, limit int) ([]models.Invitation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []models.Invitation
	for _, inv := range s.data.Invitations {
		if limit > 0 && len(result) == limit {
			break
		}
		if inv.MatchesName(fragment) {
			result = append(result, inv)
		}
	}
	return result, nil
}

// UpsertByCode adds a new invitation or updates the one with the same code
func (s *MemoryStore) UpsertByCode(_ context.Context, inv *models.Invitation) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	inv.Code = models.NormalizeCode(inv.Code)
	inv.UpdatedAt = now

	next := s.data.clone()
	for i, existing := range next.Invitations {
		if existing.Code == inv.Code {
			inv.ID = existing.ID
			inv.CreatedAt = existing.CreatedAt
			next.Invitations[i] = *inv
			return false, s.commit(next)
		}
	}

	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	inv.CreatedAt = now
	next.Invitations = append(next.Invitations, *inv)
	return true, s.commit(next)
}

// List returns all invitations
func (s *MemoryStore) List(_ context.Context) ([]models.Invitation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	invitations := make([]models.Invitation, len(s.data.Invitations))
	copy(invitations, s.data.Invitations)
	return invitations, nil
}

// GetByInvitation returns the response for an invitation
func (s *MemoryStore) GetByInvitation(_ context.Context, invitationID string) (*models.RSVPResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.data.RSVPs {
		if r.InvitationID == invitationID {
			return &r, nil
		}
	}
	return nil, ErrNotFound
}

// Upsert inserts or replaces the response for resp.InvitationID
func (s *MemoryStore) Upsert(_ context.Context, resp *models.RSVPResponse) (*models.RSVPResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	stored := *resp
	stored.SubmittedAt = now
	stored.UpdatedAt = now

	next := s.data.clone()
	changeType := models.ChangeInsert
	found := false
	for i, existing := range next.RSVPs {
		if existing.InvitationID == resp.InvitationID {
			stored.ID = existing.ID
			stored.CreatedAt = existing.CreatedAt
			stored.Revision = existing.Revision + 1
			next.RSVPs[i] = stored
			changeType = models.ChangeUpdate
			found = true
			break
		}
	}
	if !found {
		stored.ID = uuid.NewString()
		stored.CreatedAt = now
		stored.Revision = 1
		next.RSVPs = append(next.RSVPs, stored)
	}

	if err := s.commit(next); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("invitation_id", stored.InvitationID).
		Int("attending", stored.AttendingCount()).
		Int("guests", len(stored.GuestResponses)).
		Str("change", changeType).
		Msg("Demo mode RSVP recorded")

	s.publish(changeType, models.TableRSVPs, stored)
	return &stored, nil
}

// ListResponses returns all responses, newest first
func (s *MemoryStore) ListResponses(_ context.Context) ([]models.RSVPResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]models.RSVPResponse, len(s.data.RSVPs))
	copy(result, s.data.RSVPs)
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].SubmittedAt.After(result[j].SubmittedAt)
	})
	return result, nil
}

// InsertPhoto appends a shared photo
func (s *MemoryStore) InsertPhoto(_ context.Context, photo *models.SharedPhoto) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if photo.ID == "" {
		photo.ID = uuid.NewString()
	}
	if photo.CreatedAt.IsZero() {
		photo.CreatedAt = s.now().UTC()
	}
	next := s.data.clone()
	next.Photos = append(next.Photos, *photo)
	if err := s.commit(next); err != nil {
		return err
	}
	s.publish(models.ChangeInsert, models.TableSharedPhotos, *photo)
	return nil
}

// ListPhotos returns a page of photos, newest first
func (s *MemoryStore) ListPhotos(_ context.Context, offset, limit int) ([]models.SharedPhoto, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ordered := make([]models.SharedPhoto, len(s.data.Photos))
	copy(ordered, s.data.Photos)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].CreatedAt.After(ordered[j].CreatedAt)
	})

	if offset >= len(ordered) {
		return nil, nil
	}
	end := len(ordered)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return ordered[offset:end], nil
}

// Close is a no-op
func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) publish(changeType, table string, record any) {
	ev, err := models.NewChangeEvent(changeType, table, record)
	if err != nil {
		s.log.Error().Err(err).Str("table", table).Msg("Failed to encode change event")
		return
	}
	s.changes.Publish(ev)
}

func (d snapshot) clone() snapshot {
	return snapshot{
		Invitations: slices.Clone(d.Invitations),
		RSVPs:       slices.Clone(d.RSVPs),
		Photos:      slices.Clone(d.Photos),
	}
}

// commit writes next to file and only then makes it the current data, so a
// failed write leaves the store unchanged. Callers hold the write lock.
func (s *MemoryStore) commit(next snapshot) error {
	if err := s.write(next); err != nil {
		return err
	}
	s.data = next
	return nil
}

func (s *MemoryStore) write(d snapshot) error {
	if s.file == "" {
		return nil
	}

	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	dir := filepath.Dir(s.file)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	return os.WriteFile(s.file, data, 0644)
}

// Load reads the snapshot from file
func (s *MemoryStore) Load() error {
	data, err := os.ReadFile(s.file)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	if len(data) == 0 {
		return nil
	}

	var loaded snapshot
	if err := json.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("failed to unmarshal data: %w", err)
	}
	if len(loaded.Invitations) == 0 {
		loaded.Invitations = s.data.Invitations
	}
	s.data = loaded

	return nil
}
