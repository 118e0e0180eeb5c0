package invitesync

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wedding-site/internal/models"
	"wedding-site/internal/storage"
)

const syncFile = `{
  "invitations": [
    {"code": "smith01", "party_name": "The Smith Family", "guest_names": ["John Smith", "Jane Smith"], "email": "john.smith@email.com"},
    {"code": "NEW01", "party_name": "New Party", "guest_names": ["Ann", "Guest"]},
    {"code": "", "party_name": "No Code", "guest_names": ["X"]},
    {"code": "EMPTY1", "party_name": "Nobody", "guest_names": []},
    {"code": "BAD1", "party_name": "Bad Email", "guest_names": ["Y"], "email": "not-an-email"}
  ]
}`

type failingUpserter struct{}

func (failingUpserter) UpsertByCode(context.Context, *models.Invitation) (bool, error) {
	return false, errors.New("database is locked")
}

func TestSync(t *testing.T) {
	store, err := storage.NewMemoryStore("", storage.DemoInvitations(), nil, zerolog.Nop())
	require.NoError(t, err)
	ctx := context.Background()

	summary, err := NewSyncer(store, zerolog.Nop()).Sync(ctx, strings.NewReader(syncFile))
	require.NoError(t, err)
	assert.Equal(t, Summary{Added: 1, Updated: 1, Errors: 3, Total: 5}, summary)

	smith, err := store.FindByCode(ctx, "SMITH01")
	require.NoError(t, err)
	assert.Equal(t, 2, smith.PartySize)
	assert.Equal(t, "demo-1", smith.ID)

	added, err := store.FindByCode(ctx, "new01")
	require.NoError(t, err)
	assert.Equal(t, models.StringList{"Ann", "Guest"}, added.GuestNames)
	require.NoError(t, added.Validate())
}

func TestSync_StoreErrorsAreCounted(t *testing.T) {
	summary, err := NewSyncer(failingUpserter{}, zerolog.Nop()).Sync(context.Background(), strings.NewReader(syncFile))
	require.NoError(t, err)
	assert.Equal(t, 5, summary.Errors)
}

func TestSync_InvalidJSON(t *testing.T) {
	_, err := NewSyncer(failingUpserter{}, zerolog.Nop()).Sync(context.Background(), strings.NewReader("{"))
	require.Error(t, err)
}

func TestToInvitation(t *testing.T) {
	inv := ToInvitation(Entry{Code: " wilson4 ", PartyName: "The Wilsons", GuestNames: []string{" Robert ", "Emily"}})
	assert.Equal(t, "WILSON4", inv.Code)
	assert.Equal(t, 2, inv.PartySize)
	assert.Equal(t, "Robert", inv.GuestNames[0])
}
