package matching

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

type failingFinder struct{}

func (failingFinder) FindByCode(context.Context, string) (*models.Invitation, error) {
	return nil, errors.New("backend unavailable")
}

func (failingFinder) SearchByName(context.Context, string, int) ([]models.Invitation, error) {
	return nil, errors.New("backend unavailable")
}

func demoEngine(t *testing.T, maxMatches int) *Engine {
	t.Helper()
	s, err := storage.NewMemoryStore("", storage.DemoInvitations(), nil, zerolog.Nop())
	require.NoError(t, err)
	return NewEngine(s, maxMatches, zerolog.Nop())
}

func TestLookupCode(t *testing.T) {
	e := demoEngine(t, 10)
	ctx := context.Background()

	for _, inv := range storage.DemoInvitations() {
		for _, code := range []string{inv.Code, "  " + inv.Code + " ", strings.ToLower(inv.Code)} {
			m, err := e.LookupCode(ctx, code)
			require.NoError(t, err, code)
			require.Equal(t, Single, m.Outcome())
			assert.Equal(t, inv.ID, m.Invitations[0].ID)
		}
	}

	for _, code := range []string{"", "SMITH0", "SMITH011", "XYZ"} {
		m, err := e.LookupCode(ctx, code)
		require.ErrorIs(t, err, ErrNotFound, code)
		assert.Equal(t, NotFound, m.Outcome())
	}
}

func TestLookupCode_DemoScenario(t *testing.T) {
	e := demoEngine(t, 10)

	m, err := e.LookupCode(context.Background(), "SMITH01")
	require.NoError(t, err)
	inv := m.Invitations[0]
	assert.Equal(t, "The Smith Family", inv.PartyName)
	assert.Equal(t, models.StringList{"John Smith", "Jane Smith", "Tommy Smith", "Sarah Smith"}, inv.GuestNames)
	assert.Equal(t, "john.smith@email.com", inv.Email)
}

func TestLookupName(t *testing.T) {
	e := demoEngine(t, 10)
	ctx := context.Background()

	tests := []struct {
		fragment string
		outcome  Outcome
		ids      []string
	}{
		{fragment: "brown", outcome: Single, ids: []string{"demo-3"}},
		{fragment: "LISA", outcome: Single, ids: []string{"demo-2"}},
		{fragment: "smith", outcome: Single, ids: []string{"demo-1"}},
		{fragment: "sarah", outcome: Ambiguous, ids: []string{"demo-1", "demo-5"}},
		{fragment: "family", outcome: Ambiguous, ids: []string{"demo-1", "demo-4"}},
		{fragment: "guest", outcome: Single, ids: []string{"demo-5"}},
		{fragment: "nobody", outcome: NotFound},
		{fragment: "a", outcome: NotFound},
		{fragment: "   ", outcome: NotFound},
	}

	for _, tt := range tests {
		t.Run(tt.fragment, func(t *testing.T) {
			m, err := e.LookupName(ctx, tt.fragment)
			assert.Equal(t, tt.outcome, m.Outcome())
			if tt.outcome == NotFound {
				require.ErrorIs(t, err, ErrNotFound)
				return
			}
			require.NoError(t, err)
			var ids []string
			for _, inv := range m.Invitations {
				ids = append(ids, inv.ID)
			}
			assert.ElementsMatch(t, tt.ids, ids)
		})
	}
}

func TestLookupName_CappedAtMaxMatches(t *testing.T) {
	e := demoEngine(t, 1)

	m, err := e.LookupName(context.Background(), "family")
	require.NoError(t, err)
	assert.Len(t, m.Invitations, 1)
}

func TestLookup_BackendFailureLooksLikeNotFound(t *testing.T) {
	e := NewEngine(failingFinder{}, 10, zerolog.Nop())
	ctx := context.Background()

	_, err := e.LookupCode(ctx, "SMITH01")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = e.LookupName(ctx, "smith")
	require.ErrorIs(t, err, ErrNotFound)
}
