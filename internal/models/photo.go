package models

import (
	"encoding/json"
	"time"
)

// SharedPhoto is the metadata row of a guest-uploaded image
type SharedPhoto struct {
	ID           string    `json:"id" db:"id"`
	FilePath     string    `json:"file_path" db:"file_path"`
	FileURL      string    `json:"file_url" db:"file_url"`
	UploaderName string    `json:"uploader_name" db:"uploader_name"`
	Caption      string    `json:"caption,omitempty" db:"caption"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Change types carried by ChangeEvent
const (
	ChangeInsert = "INSERT"
	ChangeUpdate = "UPDATE"
)

// Tables that emit change events
const (
	TableRSVPs        = "rsvps"
	TableSharedPhotos = "shared_photos"
)

// ChangeEvent is the payload delivered to the notification functions when a
// row is inserted or updated.
type ChangeEvent struct {
	Type      string          `json:"type"`
	Table     string          `json:"table"`
	Record    json.RawMessage `json:"record"`
	OldRecord json.RawMessage `json:"old_record,omitempty"`
}

// NewChangeEvent marshals record into a change event
func NewChangeEvent(changeType, table string, record any) (ChangeEvent, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return ChangeEvent{}, err
	}
	return ChangeEvent{Type: changeType, Table: table, Record: data}, nil
}
