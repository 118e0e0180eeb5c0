package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wedding-site/internal/models"
)

func TestMemoryStore_DemoLookup(t *testing.T) {
	s, err := NewMemoryStore("", DemoInvitations(), nil, zerolog.Nop())
	require.NoError(t, err)

	inv, err := s.FindByCode(context.Background(), "taylor5")
	require.NoError(t, err)
	assert.Equal(t, "demo-5", inv.ID)
	assert.Equal(t, models.StringList{"Sarah Taylor", "Guest"}, inv.GuestNames)

	_, err = s.FindByCode(context.Background(), "TAYLOR6")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_UpsertKeepsOneResponse(t *testing.T) {
	sink := &recordingSink{}
	s, err := NewMemoryStore("", DemoInvitations(), sink, zerolog.Nop())
	require.NoError(t, err)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := s.Upsert(ctx, &models.RSVPResponse{
			InvitationID:   "demo-3",
			GuestResponses: models.GuestResponses{{Name: "David Brown", Attending: i%2 == 0}},
			Email:          "dbrown@email.com",
		})
		require.NoError(t, err)
	}

	resp, err := s.GetByInvitation(ctx, "demo-3")
	require.NoError(t, err)
	assert.Equal(t, 3, resp.Revision)
	assert.True(t, resp.GuestResponses[0].Attending)

	all, err := s.ListResponses(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	events := sink.all()
	require.Len(t, events, 3)
	assert.Equal(t, models.ChangeInsert, events[0].Type)
	assert.Equal(t, models.ChangeUpdate, events[2].Type)
}

func TestMemoryStore_PersistsToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "demo", "store.json")
	ctx := context.Background()

	s, err := NewMemoryStore(path, DemoInvitations(), nil, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, s.InsertPhoto(ctx, &models.SharedPhoto{FilePath: "a.jpg", FileURL: "/uploads/a.jpg", UploaderName: "Ann"}))

	reopened, err := NewMemoryStore(path, DemoInvitations(), nil, zerolog.Nop())
	require.NoError(t, err)
	photos, err := reopened.ListPhotos(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, photos, 1)
	assert.Equal(t, "Ann", photos[0].UploaderName)

	invitations, err := reopened.List(ctx)
	require.NoError(t, err)
	assert.Len(t, invitations, 5)
}

func TestMemoryStore_FailedWriteLeavesDataUnchanged(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))

	sink := &recordingSink{}
	s, err := NewMemoryStore(filepath.Join(blocker, "store.json"), DemoInvitations(), sink, zerolog.Nop())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = s.Upsert(ctx, &models.RSVPResponse{
		InvitationID:   "demo-1",
		GuestResponses: models.GuestResponses{{Name: "John Smith", Attending: true}},
		Email:          "john.smith@email.com",
	})
	require.Error(t, err)
	_, err = s.GetByInvitation(ctx, "demo-1")
	require.ErrorIs(t, err, ErrNotFound)

	require.Error(t, s.InsertPhoto(ctx, &models.SharedPhoto{FilePath: "a.jpg", FileURL: "/uploads/a.jpg", UploaderName: "Ann"}))
	photos, err := s.ListPhotos(ctx, 0, 10)
	require.NoError(t, err)
	assert.Empty(t, photos)

	_, err = s.UpsertByCode(ctx, &models.Invitation{Code: "NEW01", PartyName: "New", GuestNames: models.StringList{"New"}, PartySize: 1})
	require.Error(t, err)
	_, err = s.FindByCode(ctx, "NEW01")
	require.ErrorIs(t, err, ErrNotFound)

	assert.Empty(t, sink.all())
}

func TestMemoryStore_ListPhotos_OffsetPastEnd(t *testing.T) {
	s, err := NewMemoryStore("", nil, nil, zerolog.Nop())
	require.NoError(t, err)

	photos, err := s.ListPhotos(context.Background(), 10, 5)
	require.NoError(t, err)
	assert.Empty(t, photos)
}
