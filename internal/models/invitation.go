package models

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Invitation is a party-level record identifying who is invited and by what code
type Invitation struct {
	ID         string     `json:"id" db:"id"`
	Code       string     `json:"code" db:"code"`
	PartyName  string     `json:"party_name" db:"party_name"`
	GuestNames StringList `json:"guest_names" db:"guest_names"`
	PartySize  int        `json:"party_size" db:"party_size"`
	Email      string     `json:"email,omitempty" db:"email"`
	Notes      string     `json:"notes,omitempty" db:"notes"`
	CreatedAt  time.Time  `json:"created_at,omitempty" db:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at,omitempty" db:"updated_at"`
}

// NormalizeCode trims and upper-cases an invitation code
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// MatchesName reports whether fragment occurs, case-insensitively, in the
// party name or in any of the guest names.
func (inv Invitation) MatchesName(fragment string) bool {
	fragment = strings.ToLower(strings.TrimSpace(fragment))
	if fragment == "" {
		return false
	}
	if strings.Contains(strings.ToLower(inv.PartyName), fragment) {
		return true
	}
	for _, name := range inv.GuestNames {
		if strings.Contains(strings.ToLower(name), fragment) {
			return true
		}
	}
	return false
}

// SearchText is the lower-cased party and guest names, one per line. Stores
// that cannot fold non-ASCII case keep it next to the record for LIKE queries.
func (inv Invitation) SearchText() string {
	names := make([]string, 0, len(inv.GuestNames)+1)
	names = append(names, strings.ToLower(inv.PartyName))
	for _, name := range inv.GuestNames {
		names = append(names, strings.ToLower(name))
	}
	return strings.Join(names, "\n")
}

// Validate checks the party size invariant
func (inv Invitation) Validate() error {
	if len(inv.GuestNames) == 0 {
		return fmt.Errorf("invitation %s has no guests", inv.Code)
	}
	if inv.PartySize != len(inv.GuestNames) {
		return fmt.Errorf("invitation %s: party size %d does not match %d guest names", inv.Code, inv.PartySize, len(inv.GuestNames))
	}
	return nil
}

// StringList is stored as a JSON array in a text column
type StringList []string

// Value implements driver.Valuer
func (l StringList) Value() (driver.Value, error) {
	return marshalColumn(l)
}

// Scan implements sql.Scanner
func (l *StringList) Scan(src any) error {
	return unmarshalColumn(src, l)
}

func marshalColumn(v any) (driver.Value, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

func unmarshalColumn(src any, dst any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported column type %T", src)
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, dst)
}
