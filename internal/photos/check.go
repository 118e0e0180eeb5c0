// Package photos validates and stores guest photo uploads.
package photos

import (
	"errors"
	"fmt"
	"strings"
)

// MaxFileSize is the largest accepted upload
const MaxFileSize = 10 * 1024 * 1024

var acceptedTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/heic": true,
}

var (
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrFileTooLarge    = errors.New("file too large")
)

// CheckFile reports why a file cannot be uploaded, or nil when it can
func CheckFile(name, contentType string, size int64) error {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	if !acceptedTypes[ct] && !strings.HasSuffix(strings.ToLower(name), ".heic") {
		return ErrUnsupportedType
	}
	if size > MaxFileSize {
		return fmt.Errorf("%w: %d bytes", ErrFileTooLarge, size)
	}
	return nil
}

// RejectionMessage is the text shown to the uploader for a CheckFile error
func RejectionMessage(name string, err error) string {
	switch {
	case errors.Is(err, ErrUnsupportedType):
		return "Please upload only JPG, PNG, or WebP images."
	case errors.Is(err, ErrFileTooLarge):
		return `File "` + name + `" is too large. Maximum size is 10MB.`
	default:
		return "There was an error uploading your photos. Please try again."
	}
}
