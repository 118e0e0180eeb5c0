package handler

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

// Hooks are the notification functions mounted under /hooks
type Hooks struct {
	RSVP  http.Handler
	Photo http.Handler
}

// Options wires the router
type Options struct {
	RSVP        *RSVPHandler
	Photos      *PhotoHandler
	Hooks       *Hooks
	Uploads     http.Handler
	Limiter     *RateLimiter
	CORSOrigins []string
	Log         zerolog.Logger
}

// NewRouter builds the HTTP handler with logging and CORS applied
func NewRouter(opts Options) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	}).Methods(http.MethodGet)

	lookup := func(h http.Handler) http.Handler { return h }
	if opts.Limiter != nil {
		lookup = opts.Limiter.Middleware
	}

	if opts.RSVP != nil {
		opts.RSVP.Register(r, lookup)
	}
	if opts.Photos != nil {
		opts.Photos.Register(r)
	}
	if opts.Hooks != nil {
		r.Handle("/hooks/rsvp", opts.Hooks.RSVP).Methods(http.MethodPost)
		r.Handle("/hooks/photo", opts.Hooks.Photo).Methods(http.MethodPost)
	}
	if opts.Uploads != nil {
		r.PathPrefix("/uploads/").Handler(http.StripPrefix("/uploads/", opts.Uploads)).Methods(http.MethodGet)
	}

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	var h http.Handler = cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	}).Handler(r)

	h = hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Stringer("url", r.URL).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("Request")
	})(h)
	h = hlog.RequestIDHandler("req_id", "X-Request-Id")(h)
	h = hlog.NewHandler(opts.Log)(h)
	return h
}
