package handler

import (
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/hlog"

	"wedding-site/internal/gallery"
	"wedding-site/internal/models"
	"wedding-site/internal/photos"
)

// Each file is size-checked on its own; maxUploadRequest bounds a whole post.
const (
	maxUploadRequest = 1 << 30
	maxFieldSize     = 4 << 10
)

// PhotoHandler serves the gallery, the shared photo feed and uploads
type PhotoHandler struct {
	static   []gallery.Image
	lister   gallery.PhotoLister
	uploader *photos.Uploader
}

// NewPhotoHandler creates a new photo handler
func NewPhotoHandler(static []gallery.Image, lister gallery.PhotoLister, uploader *photos.Uploader) *PhotoHandler {
	if static == nil {
		static = []gallery.Image{}
	}
	return &PhotoHandler{static: static, lister: lister, uploader: uploader}
}

// Register mounts the gallery and photo routes
func (h *PhotoHandler) Register(r *mux.Router) {
	r.HandleFunc("/api/gallery", h.gallery).Methods(http.MethodGet)
	r.HandleFunc("/api/photos", h.list).Methods(http.MethodGet)
	r.HandleFunc("/api/photos", h.upload).Methods(http.MethodPost)
}

func (h *PhotoHandler) gallery(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"images": h.static})
}

type photoPage struct {
	Photos       []models.SharedPhoto `json:"photos"`
	Images       []gallery.Image      `json:"images"`
	Loaded       int                  `json:"loaded"`
	NextOffset   int                  `json:"next_offset"`
	HasMore      bool                 `json:"has_more"`
	EmptyMessage string               `json:"empty_message,omitempty"`
}

func (h *PhotoHandler) list(w http.ResponseWriter, r *http.Request) {
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}

	page, err := h.lister.ListPhotos(r.Context(), offset, gallery.PageSize)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("Error loading photos")
		writeError(w, http.StatusBadGateway, "Could not load photos. Please try again.")
		return
	}

	filtered := gallery.FilterPhotos(page, r.URL.Query().Get("q"))
	resp := photoPage{
		Photos:     filtered,
		Images:     gallery.PhotoImages(filtered),
		Loaded:     len(page),
		NextOffset: offset + len(page),
		HasMore:    len(page) == gallery.PageSize,
	}
	if resp.Photos == nil {
		resp.Photos = []models.SharedPhoto{}
	}
	if len(filtered) == 0 {
		if len(page) == 0 && offset == 0 {
			resp.EmptyMessage = "Photos shared during the celebration will appear here."
		} else {
			resp.EmptyMessage = "No photos match your filter."
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *PhotoHandler) upload(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadRequest)

	mr, err := r.MultipartReader()
	if err != nil {
		writeError(w, http.StatusBadRequest, "There was an error uploading your photos. Please try again.")
		return
	}

	spool, err := os.MkdirTemp("", "photo-upload-*")
	if err != nil {
		log.Error().Err(err).Msg("Failed to create upload spool")
		writeError(w, http.StatusInternalServerError, "There was an error uploading your photos. Please try again.")
		return
	}
	defer os.RemoveAll(spool)

	var req photos.Request
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Warn().Err(err).Msg("Failed to read upload")
			writeError(w, http.StatusBadRequest, "There was an error uploading your photos. Please try again.")
			return
		}

		switch part.FormName() {
		case "uploader_name":
			req.UploaderName, err = readField(part)
		case "caption":
			req.Caption, err = readField(part)
		case "photos":
			if part.FileName() != "" {
				var f photos.File
				f, err = spoolPart(spool, len(req.Files), part)
				req.Files = append(req.Files, f)
			}
		}
		part.Close()
		if err != nil {
			log.Warn().Err(err).Msg("Failed to read upload")
			writeError(w, http.StatusBadRequest, "There was an error uploading your photos. Please try again.")
			return
		}
	}

	results, err := h.uploader.Upload(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, photos.UserMessage(err))
		return
	}

	uploaded := 0
	for _, res := range results {
		if res.Status == photos.StatusUploaded {
			uploaded++
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"uploaded": uploaded, "results": results})
}

func readField(part *multipart.Part) (string, error) {
	data, err := io.ReadAll(io.LimitReader(part, maxFieldSize))
	return string(data), err
}

// spoolPart copies at most photos.MaxFileSize+1 bytes of part to dir. The
// rest of an oversized part is discarded but counted, so the uploader sees
// the real size and rejects only that file.
func spoolPart(dir string, n int, part *multipart.Part) (photos.File, error) {
	f := photos.File{
		Name:        part.FileName(),
		ContentType: part.Header.Get("Content-Type"),
	}

	name := filepath.Join(dir, strconv.Itoa(n))
	tmp, err := os.Create(name)
	if err != nil {
		return f, err
	}
	written, err := io.Copy(tmp, io.LimitReader(part, photos.MaxFileSize+1))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return f, err
	}

	f.Size = written
	if written > photos.MaxFileSize {
		rest, err := io.Copy(io.Discard, part)
		if err != nil {
			return f, err
		}
		f.Size += rest
		os.Remove(name)
	}

	f.Open = func() (io.ReadCloser, error) {
		return os.Open(name)
	}
	return f, nil
}
