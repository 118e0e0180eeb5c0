package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"wedding-site/internal/config"
	"wedding-site/internal/gallery"
	"wedding-site/internal/handler"
	"wedding-site/internal/matching"
	"wedding-site/internal/models"
	"wedding-site/internal/notify"
	"wedding-site/internal/photos"
	"wedding-site/internal/rsvp"
	"wedding-site/internal/storage"
	"wedding-site/internal/whatsapp"
)

const feedBuffer = 256

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}

	var out io.Writer = os.Stderr
	if cfg.LogFormat == "console" {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// openStore returns the demo memory store or the migrated SQL store. Writes
// are published to changes.
func openStore(ctx context.Context, cfg *config.Config, changes storage.ChangeSink, log zerolog.Logger) (storage.Store, error) {
	if cfg.Mode == config.BackendDemo {
		log.Warn().Msg("Running with demo data")
		store, err := storage.NewMemoryStore(cfg.DemoDataFile, storage.DemoInvitations(), changes, log)
		if err != nil {
			return nil, err
		}
		return store, nil
	}

	db, err := storage.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		return nil, err
	}
	if err := storage.Migrate(ctx, db, log); err != nil {
		db.Close()
		return nil, err
	}
	return storage.NewSQLStore(db, changes, log), nil
}

func newMailer(cfg *config.Config, log zerolog.Logger) (notify.Mailer, error) {
	if !cfg.SMTPEnabled() {
		log.Warn().Msg("SMTP not configured, notifications are logged only")
		return notify.NewLogMailer(log), nil
	}
	return notify.NewSMTPMailer(notify.SMTPConfig{
		Host:       cfg.SMTPHost,
		Port:       cfg.SMTPPort,
		User:       cfg.SMTPUser,
		Password:   cfg.SMTPPassword,
		Recipients: cfg.NotificationEmails,
	})
}

func newSessionStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (rsvp.SessionStore, error) {
	if cfg.RedisURL == "" {
		return rsvp.NewMemorySessionStore(cfg.SessionTTL), nil
	}
	store, err := rsvp.NewRedisSessionStore(ctx, cfg.RedisURL, cfg.SessionTTL)
	if err != nil {
		return nil, err
	}
	log.Info().Msg("Sessions stored in Redis")
	return store, nil
}

// newObjectStore returns the bucket store, or a local directory together with
// the handler serving it under /uploads/.
func newObjectStore(ctx context.Context, cfg *config.Config) (photos.ObjectStore, http.Handler, error) {
	if cfg.UseS3() {
		store, err := photos.NewS3Store(ctx, photos.S3Options{
			Bucket:        cfg.S3Bucket,
			Region:        cfg.S3Region,
			Endpoint:      cfg.S3Endpoint,
			AccessKey:     cfg.S3AccessKey,
			SecretKey:     cfg.S3SecretKey,
			PublicBaseURL: cfg.S3PublicBaseURL,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil
	}

	dir, err := photos.NewDirStore(cfg.UploadDir, strings.TrimRight(cfg.PublicBaseURL, "/")+"/uploads")
	if err != nil {
		return nil, nil, err
	}
	return dir, http.FileServer(http.Dir(dir.Dir())), nil
}

// app is everything serve runs
type app struct {
	server  *http.Server
	feed    *notify.Feed
	store   storage.Store
	closers []io.Closer
	chat    *whatsapp.Service
	limiter *handler.RateLimiter
	log     zerolog.Logger
}

func newApp(ctx context.Context, cfg *config.Config, log zerolog.Logger) (_ *app, err error) {
	a := &app{log: log}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	mailer, err := newMailer(cfg, log)
	if err != nil {
		return nil, err
	}

	var opts []notify.Option
	if cfg.WhatsAppEnabled {
		wa, err := whatsapp.NewService(ctx, whatsapp.Config{
			DataDir:     cfg.WhatsAppDataDir,
			CountryCode: cfg.WhatsAppCountryCode,
		}, log)
		if err != nil {
			return nil, err
		}
		if !wa.IsLinked() {
			return nil, fmt.Errorf("no WhatsApp device linked, run whatsapp-link first")
		}
		if err := wa.Connect(ctx, io.Discard); err != nil {
			return nil, err
		}
		a.chat = wa
		opts = append(opts, notify.WithChat(wa, cfg.HostPhones))
	}
	opts = append(opts, notify.WithSecret(cfg.NotifyWebhookSecret))
	notifier := notify.NewNotifier(mailer, log, opts...)

	sinks := []notify.Sink{notifier}
	if cfg.NotifyWebhookURL != "" {
		sinks = append(sinks, notify.NewWebhookSink(cfg.NotifyWebhookURL, cfg.NotifyWebhookSecret, &http.Client{Timeout: 15 * time.Second}))
	}
	a.feed = notify.NewFeed(feedBuffer, log, sinks...)

	if a.store, err = openStore(ctx, cfg, a.feed, log); err != nil {
		return nil, err
	}

	sessions, err := newSessionStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	if c, ok := sessions.(io.Closer); ok {
		a.closers = append(a.closers, c)
	}

	engine := matching.NewEngine(a.store, cfg.MaxNameMatches, log)
	manager := rsvp.NewManager(engine, a.store, sessions, cfg.AutoLookupDelay, log)

	objects, uploads, err := newObjectStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	uploader := photos.NewUploader(objects, a.store, log)

	static, err := gallery.LoadStatic(cfg.GalleryFile)
	if err != nil {
		return nil, err
	}

	a.limiter = handler.NewRateLimiter(cfg.LookupRateLimit, time.Minute)

	// hooks are mounted only when callers can be authenticated
	var hooks *handler.Hooks
	if cfg.NotifyWebhookSecret != "" {
		hooks = &handler.Hooks{
			RSVP:  notifier.Handler(models.TableRSVPs),
			Photo: notifier.Handler(models.TableSharedPhotos),
		}
	}

	router := handler.NewRouter(handler.Options{
		RSVP:        handler.NewRSVPHandler(manager),
		Photos:      handler.NewPhotoHandler(static, a.store, uploader),
		Hooks:       hooks,
		Uploads:     uploads,
		Limiter:     a.limiter,
		CORSOrigins: cfg.CORSOrigins,
		Log:         log,
	})

	a.server = &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       5 * time.Minute,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}
	return a, nil
}

// run serves until ctx is cancelled, then shuts down and drains the
// notification feed.
func (a *app) run(ctx context.Context) error {
	go a.feed.Run(ctx)
	go a.cleanupLimiter(ctx)

	errCh := make(chan error, 1)
	go func() {
		a.log.Info().Str("addr", a.server.Addr).Msg("Listening")
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}

	a.log.Info().Msg("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.log.Error().Err(err).Msg("HTTP shutdown failed")
	}

	a.feed.Close()
	a.close()
	return serveErr
}

func (a *app) cleanupLimiter(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.limiter.Cleanup()
		}
	}
}

func (a *app) close() {
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.log.Warn().Err(err).Msg("Close failed")
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("Failed to close store")
		}
	}
	if a.chat != nil {
		a.chat.Disconnect()
	}
}
