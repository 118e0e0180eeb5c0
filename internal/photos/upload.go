package photos

import (
	"context"
	"errors"
	"io"
	"math/rand/v2"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"wedding-site/internal/models"
)

var (
	ErrUploaderRequired = errors.New("uploader name required")
	ErrNoFiles          = errors.New("no files selected")
)

// UserMessage maps a request error to the text shown to the uploader
func UserMessage(err error) string {
	switch {
	case errors.Is(err, ErrUploaderRequired):
		return "Please enter your name."
	case errors.Is(err, ErrNoFiles):
		return "Please select at least one photo."
	default:
		return "There was an error uploading your photos. Please try again."
	}
}

// Status of one file in an upload
type Status string

const (
	StatusUploaded Status = "uploaded"
	StatusRejected Status = "rejected"
	StatusFailed   Status = "failed"
)

// File is one file in an upload request
type File struct {
	Name        string `validate:"required"`
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

// Request is a multi-file upload by one guest
type Request struct {
	UploaderName string `validate:"required"`
	Caption      string `validate:"max=500"`
	Files        []File `validate:"min=1,dive"`
}

// FileResult reports what happened to one file
type FileResult struct {
	Name   string `json:"name"`
	Status Status `json:"status"`
	URL    string `json:"url,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// PhotoInserter records photo metadata
type PhotoInserter interface {
	InsertPhoto(ctx context.Context, photo *models.SharedPhoto) error
}

// Uploader stores files one at a time and records their metadata
type Uploader struct {
	objects  ObjectStore
	photos   PhotoInserter
	validate *validator.Validate
	log      zerolog.Logger
	now      func() time.Time
}

// NewUploader creates an uploader
func NewUploader(objects ObjectStore, photos PhotoInserter, log zerolog.Logger) *Uploader {
	return &Uploader{
		objects:  objects,
		photos:   photos,
		validate: validator.New(),
		log:      log.With().Str("component", "photos").Logger(),
		now:      time.Now,
	}
}

// Upload processes req.Files in order. A file that fails validation or
// storage is reported and skipped; earlier uploads are kept. The returned
// error is only set when the request itself is invalid.
func (u *Uploader) Upload(ctx context.Context, req Request) ([]FileResult, error) {
	req.UploaderName = strings.TrimSpace(req.UploaderName)
	req.Caption = strings.TrimSpace(req.Caption)
	if err := u.validateRequest(req); err != nil {
		return nil, err
	}

	results := make([]FileResult, 0, len(req.Files))
	for _, f := range req.Files {
		results = append(results, u.uploadOne(ctx, req, f))
	}
	return results, nil
}

func (u *Uploader) validateRequest(req Request) error {
	err := u.validate.Struct(req)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		switch verrs[0].StructField() {
		case "UploaderName":
			return ErrUploaderRequired
		case "Files":
			return ErrNoFiles
		}
	}
	return err
}

func (u *Uploader) uploadOne(ctx context.Context, req Request, f File) FileResult {
	result := FileResult{Name: f.Name}

	if err := CheckFile(f.Name, f.ContentType, f.Size); err != nil {
		result.Status = StatusRejected
		result.Reason = RejectionMessage(f.Name, err)
		return result
	}

	fail := func(err error, msg string) FileResult {
		u.log.Error().Err(err).Str("file", f.Name).Msg(msg)
		result.Status = StatusFailed
		result.Reason = RejectionMessage(f.Name, err)
		return result
	}

	body, err := f.Open()
	if err != nil {
		return fail(err, "Failed to open upload")
	}
	defer body.Close()

	key := ObjectKey(u.now(), f.Name)
	fileURL, err := u.objects.Put(ctx, key, f.ContentType, body, f.Size)
	if err != nil {
		return fail(err, "Upload error")
	}

	photo := &models.SharedPhoto{
		FilePath:     key,
		FileURL:      fileURL,
		UploaderName: req.UploaderName,
		Caption:      req.Caption,
	}
	if err := u.photos.InsertPhoto(ctx, photo); err != nil {
		return fail(err, "Failed to save photo metadata")
	}

	u.log.Info().
		Str("key", key).
		Str("uploader", req.UploaderName).
		Msg("Photo uploaded")

	result.Status = StatusUploaded
	result.URL = fileURL
	return result
}

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

// ObjectKey names a stored file <unix-millis>_<9 random chars>_<base name>
func ObjectKey(now time.Time, name string) string {
	var suffix [9]byte
	for i := range suffix {
		suffix[i] = base36[rand.IntN(len(base36))]
	}

	base := path.Base(strings.ReplaceAll(name, `\`, "/"))
	if base == "." || base == "/" {
		base = "photo"
	}
	return strconv.FormatInt(now.UnixMilli(), 10) + "_" + string(suffix[:]) + "_" + base
}
