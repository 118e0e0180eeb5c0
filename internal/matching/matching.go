// Package matching resolves a guest-supplied invitation code or name fragment
// to invitation records.
package matching

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"wedding-site/internal/models"
	"wedding-site/internal/storage"
)

// MinNameFragment is the shortest name fragment that is searched at all
const MinNameFragment = 2

// ErrNotFound covers both "no match" and "backend unavailable"; guests see
// the same message either way.
var ErrNotFound = errors.New("invitation not found")

// Outcome classifies a lookup result
type Outcome int

const (
	NotFound Outcome = iota
	Single
	Ambiguous
)

func (o Outcome) String() string {
	switch o {
	case Single:
		return "single"
	case Ambiguous:
		return "ambiguous"
	default:
		return "not_found"
	}
}

// Match is the set of invitations a lookup resolved to
type Match struct {
	Invitations []models.Invitation
}

// Outcome reports whether the match auto-selects, needs disambiguation, or
// found nothing.
func (m Match) Outcome() Outcome {
	switch len(m.Invitations) {
	case 0:
		return NotFound
	case 1:
		return Single
	default:
		return Ambiguous
	}
}

// Finder is the narrow query surface the engine needs
type Finder interface {
	FindByCode(ctx context.Context, code string) (*models.Invitation, error)
	SearchByName(ctx context.Context, fragment string, limit int) ([]models.Invitation, error)
}

// Engine performs invitation lookups
type Engine struct {
	finder     Finder
	maxMatches int
	log        zerolog.Logger
}

// NewEngine creates an engine returning at most maxMatches name matches
func NewEngine(finder Finder, maxMatches int, log zerolog.Logger) *Engine {
	if maxMatches < 1 {
		maxMatches = 1
	}
	return &Engine{
		finder:     finder,
		maxMatches: maxMatches,
		log:        log.With().Str("component", "matching").Logger(),
	}
}

// LookupCode finds the invitation whose code equals code, ignoring case
func (e *Engine) LookupCode(ctx context.Context, code string) (Match, error) {
	code = models.NormalizeCode(code)
	if code == "" {
		return Match{}, ErrNotFound
	}

	inv, err := e.finder.FindByCode(ctx, code)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			e.log.Error().Err(err).Msg("Invitation code lookup failed")
		}
		return Match{}, ErrNotFound
	}
	if inv == nil || models.NormalizeCode(inv.Code) != code {
		return Match{}, ErrNotFound
	}

	return Match{Invitations: []models.Invitation{*inv}}, nil
}

// LookupName finds invitations whose party name or any guest name contains
// fragment, ignoring case.
func (e *Engine) LookupName(ctx context.Context, fragment string) (Match, error) {
	fragment = strings.TrimSpace(fragment)
	if utf8.RuneCountInString(fragment) < MinNameFragment {
		return Match{}, ErrNotFound
	}

	found, err := e.finder.SearchByName(ctx, fragment, e.maxMatches)
	if err != nil {
		e.log.Error().Err(err).Msg("Invitation name lookup failed")
		return Match{}, ErrNotFound
	}

	var result []models.Invitation
	for _, inv := range found {
		if len(result) == e.maxMatches {
			break
		}
		if inv.MatchesName(fragment) {
			result = append(result, inv)
		}
	}
	if len(result) == 0 {
		return Match{}, ErrNotFound
	}

	return Match{Invitations: result}, nil
}
