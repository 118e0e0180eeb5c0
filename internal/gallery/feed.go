package gallery

import (
	"context"
	"strings"

	"wedding-site/internal/models"
)

// PageSize is how many shared photos one load fetches
const PageSize = 50

const (
	emptyMessage   = "Photos shared during the celebration will appear here."
	noMatchMessage = "No photos match your filter."
)

// PhotoLister is the read side of the photo store
type PhotoLister interface {
	ListPhotos(ctx context.Context, offset, limit int) ([]models.SharedPhoto, error)
}

// Feed pages through shared photos newest-first and keeps a filtered view of
// everything loaded so far. It is not safe for concurrent use.
type Feed struct {
	lister   PhotoLister
	pageSize int

	all      []models.SharedPhoto
	filtered []models.SharedPhoto
	query    string
	offset   int
	hasMore  bool
}

// NewFeed creates an empty feed
func NewFeed(lister PhotoLister, pageSize int) *Feed {
	if pageSize <= 0 {
		pageSize = PageSize
	}
	return &Feed{lister: lister, pageSize: pageSize}
}

// Load fetches one page. With more set the page is appended to what is
// already loaded; otherwise the feed starts over from offset zero. The
// active filter is applied to the result.
func (f *Feed) Load(ctx context.Context, more bool) (int, error) {
	offset := f.offset
	if !more {
		offset = 0
	}

	page, err := f.lister.ListPhotos(ctx, offset, f.pageSize)
	if err != nil {
		return 0, err
	}

	if !more {
		f.all = nil
	}
	f.all = append(f.all, page...)
	f.offset = offset + len(page)
	f.hasMore = len(page) == f.pageSize
	f.filtered = FilterPhotos(f.all, f.query)
	return len(page), nil
}

// HasMore reports whether the last page was full
func (f *Feed) HasMore() bool { return f.hasMore }

// Filter sets the active query and returns the matching photos. An empty
// query shows everything.
func (f *Feed) Filter(query string) []models.SharedPhoto {
	f.query = query
	f.filtered = FilterPhotos(f.all, query)
	return f.filtered
}

// Query returns the active filter
func (f *Feed) Query() string { return f.query }

// All returns every loaded photo
func (f *Feed) All() []models.SharedPhoto { return f.all }

// Photos returns the active sequence
func (f *Feed) Photos() []models.SharedPhoto {
	if f.filtered == nil {
		return f.all
	}
	return f.filtered
}

// Images returns the active sequence as lightbox entries
func (f *Feed) Images() []Image {
	return PhotoImages(f.Photos())
}

// EmptyMessage is the placeholder text when the active sequence is empty
func (f *Feed) EmptyMessage() string {
	if len(f.Photos()) > 0 {
		return ""
	}
	if len(f.all) == 0 {
		return emptyMessage
	}
	return noMatchMessage
}

// FilterPhotos returns the photos whose uploader name or caption contains
// query, ignoring case. photos is never modified.
func FilterPhotos(photos []models.SharedPhoto, query string) []models.SharedPhoto {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return photos
	}

	result := make([]models.SharedPhoto, 0, len(photos))
	for _, p := range photos {
		if strings.Contains(strings.ToLower(p.UploaderName), query) ||
			strings.Contains(strings.ToLower(p.Caption), query) {
			result = append(result, p)
		}
	}
	return result
}

// PhotoCaption is the lightbox caption for a shared photo
func PhotoCaption(p models.SharedPhoto) string {
	if p.Caption != "" {
		return p.Caption + " - " + p.UploaderName
	}
	return "Shared by " + p.UploaderName
}

// PhotoImages converts shared photos to lightbox entries
func PhotoImages(photos []models.SharedPhoto) []Image {
	images := make([]Image, len(photos))
	for i, p := range photos {
		images[i] = Image{Src: p.FileURL, Caption: PhotoCaption(p)}
	}
	return images
}
