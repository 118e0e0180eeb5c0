package handler

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/hlog"

	"wedding-site/internal/rsvp"
)

// RSVPHandler serves the RSVP session endpoints
type RSVPHandler struct {
	manager *rsvp.Manager
}

// NewRSVPHandler creates a new RSVP handler
func NewRSVPHandler(manager *rsvp.Manager) *RSVPHandler {
	return &RSVPHandler{manager: manager}
}

type candidateView struct {
	ID        string `json:"id"`
	PartyName string `json:"party_name"`
}

type invitationView struct {
	ID        string `json:"id"`
	Code      string `json:"code"`
	PartyName string `json:"party_name"`
	PartySize int    `json:"party_size"`
}

// sessionView is what the browser sees of a session. Candidates only carry
// id and party name.
type sessionView struct {
	ID              string              `json:"id"`
	State           rsvp.State          `json:"state"`
	LookupCode      string              `json:"lookup_code,omitempty"`
	Greeting        string              `json:"greeting,omitempty"`
	PartyInfo       string              `json:"party_info,omitempty"`
	Invitation      *invitationView     `json:"invitation,omitempty"`
	Candidates      []candidateView     `json:"candidates,omitempty"`
	Guests          []rsvp.GuestControl `json:"guests,omitempty"`
	Form            rsvp.Form           `json:"form"`
	Confirmation    *rsvp.Confirmation  `json:"confirmation,omitempty"`
	AutoLookupDelay int64               `json:"auto_lookup_delay_ms,omitempty"`
}

func newSessionView(s *rsvp.Session) *sessionView {
	if s == nil {
		return nil
	}
	v := &sessionView{
		ID:           s.ID,
		State:        s.State,
		LookupCode:   s.LookupCode,
		Greeting:     s.Greeting(),
		PartyInfo:    s.PartyInfo(),
		Guests:       s.Guests,
		Form:         s.Form,
		Confirmation: s.Confirmation,
	}
	if s.Invitation != nil {
		v.Invitation = &invitationView{
			ID:        s.Invitation.ID,
			Code:      s.Invitation.Code,
			PartyName: s.Invitation.PartyName,
			PartySize: s.Invitation.PartySize,
		}
	}
	for _, c := range s.Candidates {
		v.Candidates = append(v.Candidates, candidateView{ID: c.ID, PartyName: c.PartyName})
	}
	return v
}

// Register mounts the RSVP routes. lookup wraps the endpoints that search
// invitations.
func (h *RSVPHandler) Register(r *mux.Router, lookup func(http.Handler) http.Handler) {
	sr := r.PathPrefix("/api/rsvp/sessions").Subrouter()
	sr.Handle("", lookup(http.HandlerFunc(h.start))).Methods(http.MethodPost)
	sr.HandleFunc("/{id}", h.get).Methods(http.MethodGet)
	sr.Handle("/{id}/lookup", lookup(http.HandlerFunc(h.lookup))).Methods(http.MethodPost)
	sr.HandleFunc("/{id}/choose", h.choose).Methods(http.MethodPost)
	sr.HandleFunc("/{id}/attendance", h.attendance).Methods(http.MethodPost)
	sr.HandleFunc("/{id}/change", h.change).Methods(http.MethodPost)
	sr.HandleFunc("/{id}/submit", h.submit).Methods(http.MethodPost)
}

func (h *RSVPHandler) start(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Code string `json:"code"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request.")
		return
	}

	values := r.URL.Query()
	if body.Code != "" {
		values.Set("code", body.Code)
	}

	s, err := h.manager.StartFromQuery(r.Context(), values)
	if s == nil {
		h.respond(w, r, nil, err)
		return
	}

	view := newSessionView(s)
	if values.Get("code") != "" {
		view.AutoLookupDelay = h.manager.AutoLookupDelay().Milliseconds()
	}
	if err != nil {
		h.fail(w, r, view, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (h *RSVPHandler) get(w http.ResponseWriter, r *http.Request) {
	s, err := h.manager.Get(r.Context(), mux.Vars(r)["id"])
	h.respond(w, r, s, err)
}

func (h *RSVPHandler) lookup(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Code string `json:"code"`
		Name string `json:"name"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request.")
		return
	}

	id := mux.Vars(r)["id"]
	var (
		s   *rsvp.Session
		err error
	)
	switch {
	case body.Code != "":
		s, err = h.manager.LookupCode(r.Context(), id, body.Code)
	case body.Name != "":
		s, err = h.manager.LookupName(r.Context(), id, body.Name)
	default:
		writeError(w, http.StatusBadRequest, "Please enter your invitation code or name.")
		return
	}
	h.respond(w, r, s, err)
}

func (h *RSVPHandler) choose(w http.ResponseWriter, r *http.Request) {
	var body struct {
		InvitationID string `json:"invitation_id"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request.")
		return
	}
	s, err := h.manager.Choose(r.Context(), mux.Vars(r)["id"], body.InvitationID)
	h.respond(w, r, s, err)
}

func (h *RSVPHandler) attendance(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Index     int  `json:"index"`
		Attending bool `json:"attending"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request.")
		return
	}
	s, err := h.manager.SetAttendance(r.Context(), mux.Vars(r)["id"], body.Index, body.Attending)
	h.respond(w, r, s, err)
}

func (h *RSVPHandler) change(w http.ResponseWriter, r *http.Request) {
	s, err := h.manager.ChangeInvitation(r.Context(), mux.Vars(r)["id"])
	h.respond(w, r, s, err)
}

func (h *RSVPHandler) submit(w http.ResponseWriter, r *http.Request) {
	var in rsvp.SubmitInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request.")
		return
	}
	s, err := h.manager.Submit(r.Context(), mux.Vars(r)["id"], in)
	h.respond(w, r, s, err)
}

func (h *RSVPHandler) respond(w http.ResponseWriter, r *http.Request, s *rsvp.Session, err error) {
	if err != nil {
		h.fail(w, r, newSessionView(s), err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionView(s))
}

func (h *RSVPHandler) fail(w http.ResponseWriter, r *http.Request, view *sessionView, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		hlog.FromRequest(r).Error().Err(err).Msg("RSVP request failed")
	}
	writeJSON(w, status, errorResponse{Error: rsvp.UserMessage(err), Session: view})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, rsvp.ErrSessionNotFound), errors.Is(err, rsvp.ErrNotFound):
		return http.StatusNotFound
	case rsvp.IsValidation(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, rsvp.ErrSubmitInFlight),
		errors.Is(err, rsvp.ErrInvalidState),
		errors.Is(err, rsvp.ErrUnknownCandidate):
		return http.StatusConflict
	case errors.Is(err, rsvp.ErrSubmitFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
