package gallery

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wedding-site/internal/models"
	"wedding-site/internal/storage"
)

func seededStore(t *testing.T, n int) *storage.MemoryStore {
	t.Helper()
	s, err := storage.NewMemoryStore("", nil, nil, zerolog.Nop())
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < n; i++ {
		p := &models.SharedPhoto{
			FilePath:     fmt.Sprintf("p%03d.jpg", i),
			FileURL:      fmt.Sprintf("/uploads/p%03d.jpg", i),
			UploaderName: fmt.Sprintf("Uploader %d", i%3),
			CreatedAt:    time.Date(2026, 6, 20, 18, 0, i, 0, time.UTC),
		}
		if i%4 == 0 {
			p.Caption = "With our Guest of honour"
		}
		require.NoError(t, s.InsertPhoto(ctx, p))
	}
	return s
}

type failingLister struct{}

func (failingLister) ListPhotos(context.Context, int, int) ([]models.SharedPhoto, error) {
	return nil, errors.New("bucket unavailable")
}

func TestFeed_LoadMoreAppends(t *testing.T) {
	f := NewFeed(seededStore(t, 120), PageSize)
	ctx := context.Background()

	n, err := f.Load(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 50, n)
	assert.True(t, f.HasMore())
	first := f.All()[0].FilePath

	_, err = f.Load(ctx, true)
	require.NoError(t, err)
	assert.Len(t, f.All(), 100)
	assert.Equal(t, first, f.All()[0].FilePath)

	n, err = f.Load(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 20, n)
	assert.Len(t, f.All(), 120)
	assert.False(t, f.HasMore())

	_, err = f.Load(ctx, false)
	require.NoError(t, err)
	assert.Len(t, f.All(), 50)
}

func TestFeed_NewestFirst(t *testing.T) {
	f := NewFeed(seededStore(t, 3), PageSize)
	_, err := f.Load(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, "p002.jpg", f.All()[0].FilePath)
	assert.False(t, f.HasMore())
}

func TestFeed_FilterNeverMutatesLoaded(t *testing.T) {
	f := NewFeed(seededStore(t, 12), PageSize)
	_, err := f.Load(context.Background(), false)
	require.NoError(t, err)

	filtered := f.Filter("guest")
	require.NotEmpty(t, filtered)
	for _, p := range filtered {
		assert.True(t,
			strings.Contains(strings.ToLower(p.UploaderName), "guest") ||
				strings.Contains(strings.ToLower(p.Caption), "guest"))
	}
	assert.Len(t, f.All(), 12)
	assert.Len(t, f.Images(), len(filtered))

	assert.Len(t, f.Filter(""), 12)

	assert.Empty(t, f.Filter("nobody"))
	assert.Equal(t, "No photos match your filter.", f.EmptyMessage())
}

func TestFeed_FilterSurvivesReload(t *testing.T) {
	f := NewFeed(seededStore(t, 8), PageSize)
	f.Filter("uploader 1")

	_, err := f.Load(context.Background(), false)
	require.NoError(t, err)
	for _, p := range f.Photos() {
		assert.Equal(t, "Uploader 1", p.UploaderName)
	}
}

func TestFeed_EmptyAndFailure(t *testing.T) {
	f := NewFeed(seededStore(t, 0), 0)
	_, err := f.Load(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, "Photos shared during the celebration will appear here.", f.EmptyMessage())

	broken := NewFeed(failingLister{}, PageSize)
	_, err = broken.Load(context.Background(), false)
	require.Error(t, err)
}

func TestFilterPhotos(t *testing.T) {
	photos := []models.SharedPhoto{
		{UploaderName: "Best Guest"},
		{UploaderName: "Ann", Caption: "first dance"},
		{UploaderName: "Bob", Caption: "GUEST book"},
		{UploaderName: "Cy"},
	}

	assert.Equal(t, photos, FilterPhotos(photos, ""))
	assert.Equal(t, photos, FilterPhotos(photos, "   "))

	got := FilterPhotos(photos, "guest")
	require.Len(t, got, 2)
	assert.Equal(t, "Best Guest", got[0].UploaderName)
	assert.Equal(t, "Bob", got[1].UploaderName)
	assert.Equal(t, "Best Guest", photos[0].UploaderName)
}

func TestPhotoCaption(t *testing.T) {
	assert.Equal(t, "First dance - Ann", PhotoCaption(models.SharedPhoto{UploaderName: "Ann", Caption: "First dance"}))
	assert.Equal(t, "Shared by Ann", PhotoCaption(models.SharedPhoto{UploaderName: "Ann"}))
}

func TestLoadStatic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gallery.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"src": "images/castle.jpg", "alt": "The castle at dusk"},
		{"src": "", "alt": "skipped"},
		{"src": "images/garden.jpg", "alt": "Garden"}
	]`), 0644))

	imgs, err := LoadStatic(path)
	require.NoError(t, err)
	require.Len(t, imgs, 2)
	assert.Equal(t, Image{Src: "images/castle.jpg", Caption: "The castle at dusk"}, imgs[0])

	imgs, err = LoadStatic("")
	require.NoError(t, err)
	assert.Empty(t, imgs)

	_, err = LoadStatic(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}
