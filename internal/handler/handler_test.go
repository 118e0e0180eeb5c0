package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wedding-site/internal/gallery"
	"wedding-site/internal/matching"
	"wedding-site/internal/models"
	"wedding-site/internal/notify"
	"wedding-site/internal/photos"
	"wedding-site/internal/rsvp"
	"wedding-site/internal/storage"
)

type nopMailer struct{ sent int }

func (m *nopMailer) Send(context.Context, notify.Email) error {
	m.sent++
	return nil
}

const hookSecret = "test-secret"

type testServer struct {
	handler http.Handler
	store   *storage.MemoryStore
	mailer  *nopMailer
}

func newTestServer(t *testing.T, lookupLimit int) *testServer {
	t.Helper()
	store, err := storage.NewMemoryStore("", storage.DemoInvitations(), nil, zerolog.Nop())
	require.NoError(t, err)

	engine := matching.NewEngine(store, 10, zerolog.Nop())
	manager := rsvp.NewManager(engine, store, rsvp.NewMemorySessionStore(time.Hour), 500*time.Millisecond, zerolog.Nop())

	objects, err := photos.NewDirStore(t.TempDir(), "http://localhost/uploads")
	require.NoError(t, err)
	uploader := photos.NewUploader(objects, store, zerolog.Nop())

	mailer := &nopMailer{}
	notifier := notify.NewNotifier(mailer, zerolog.Nop(), notify.WithSecret(hookSecret))

	h := NewRouter(Options{
		RSVP:    NewRSVPHandler(manager),
		Photos:  NewPhotoHandler([]gallery.Image{{Src: "images/castle.jpg", Caption: "The castle"}}, store, uploader),
		Hooks:   &Hooks{RSVP: notifier.Handler(models.TableRSVPs), Photo: notifier.Handler(models.TableSharedPhotos)},
		Limiter: NewRateLimiter(lookupLimit, time.Minute),
		Log:     zerolog.Nop(),
	})
	return &testServer{handler: h, store: store, mailer: mailer}
}

func (s *testServer) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec, out
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, 0)
	rec, body := s.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", body["status"])
}

func TestRSVPFlow(t *testing.T) {
	s := newTestServer(t, 0)

	rec, body := s.do(t, http.MethodPost, "/api/rsvp/sessions?code=smith01", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "selected", body["state"])
	assert.Equal(t, "Welcome, The Smith Family!", body["greeting"])
	assert.EqualValues(t, 500, body["auto_lookup_delay_ms"])
	id := body["id"].(string)

	submit := map[string]any{
		"attendance":        []any{true, true, nil, false},
		"castle_preference": "castle",
		"email":             "john.smith@email.com",
	}
	rec, body = s.do(t, http.MethodPost, "/api/rsvp/sessions/"+id+"/submit", submit)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "Please indicate attendance for all guests in your party.", body["error"])

	submit["attendance"] = []any{true, true, false, false}
	rec, body = s.do(t, http.MethodPost, "/api/rsvp/sessions/"+id+"/submit", submit)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "submitted", body["state"])
	conf := body["confirmation"].(map[string]any)
	assert.Equal(t, "2 of 4 guests will be attending. We look forward to celebrating with you! We will be in touch with more details soon.", conf["message"])

	resp, err := s.store.GetByInvitation(context.Background(), "demo-1")
	require.NoError(t, err)
	assert.Equal(t, 2, resp.AttendingCount())
}

func TestRSVPLookupByNameHidesCandidateDetails(t *testing.T) {
	s := newTestServer(t, 0)
	_, body := s.do(t, http.MethodPost, "/api/rsvp/sessions", nil)
	id := body["id"].(string)

	rec, body := s.do(t, http.MethodPost, "/api/rsvp/sessions/"+id+"/lookup", map[string]string{"name": "family"})
	require.Equal(t, http.StatusOK, rec.Code)
	candidates := body["candidates"].([]any)
	require.Len(t, candidates, 2)
	for _, c := range candidates {
		assert.ElementsMatch(t, []string{"id", "party_name"}, keys(c.(map[string]any)))
	}

	rec, body = s.do(t, http.MethodPost, "/api/rsvp/sessions/"+id+"/choose", map[string]string{"invitation_id": "demo-4"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "rwilson@email.com", body["form"].(map[string]any)["email"])

	rec, body = s.do(t, http.MethodPost, "/api/rsvp/sessions/"+id+"/change", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "lookup", body["state"])
}

func TestRSVPErrors(t *testing.T) {
	s := newTestServer(t, 0)
	_, body := s.do(t, http.MethodPost, "/api/rsvp/sessions", nil)
	id := body["id"].(string)

	rec, body := s.do(t, http.MethodPost, "/api/rsvp/sessions/"+id+"/lookup", map[string]string{"code": "NOPE99"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "We couldn't find your invitation. Please check your code and try again.", body["error"])
	assert.Equal(t, "lookup", body["session"].(map[string]any)["state"])

	rec, _ = s.do(t, http.MethodPost, "/api/rsvp/sessions/"+id+"/lookup", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = s.do(t, http.MethodPost, "/api/rsvp/sessions/"+id+"/submit", map[string]any{})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, _ = s.do(t, http.MethodGet, "/api/rsvp/sessions/unknown", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLookupRateLimit(t *testing.T) {
	s := newTestServer(t, 2)
	_, body := s.do(t, http.MethodPost, "/api/rsvp/sessions", nil)
	id := body["id"].(string)

	rec, _ := s.do(t, http.MethodPost, "/api/rsvp/sessions/"+id+"/lookup", map[string]string{"code": "X1"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = s.do(t, http.MethodPost, "/api/rsvp/sessions/"+id+"/lookup", map[string]string{"code": "X2"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
}

func TestPhotosUploadAndList(t *testing.T) {
	s := newTestServer(t, 0)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("uploader_name", "Best Guest"))
	require.NoError(t, mw.WriteField("caption", "Cake"))
	for _, f := range []struct{ name, ct string }{{"cake.jpg", "image/jpeg"}, {"notes.txt", "text/plain"}} {
		hdr := textproto.MIMEHeader{}
		hdr.Set("Content-Disposition", `form-data; name="photos"; filename="`+f.name+`"`)
		hdr.Set("Content-Type", f.ct)
		part, err := mw.CreatePart(hdr)
		require.NoError(t, err)
		_, err = part.Write([]byte("data"))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/photos", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var upload struct {
		Uploaded int                 `json:"uploaded"`
		Results  []photos.FileResult `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &upload))
	assert.Equal(t, 1, upload.Uploaded)
	assert.Equal(t, photos.StatusRejected, upload.Results[1].Status)

	rec, body := s.do(t, http.MethodGet, "/api/photos?q=guest", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, body["photos"].([]any), 1)
	assert.Equal(t, "Cake - Best Guest", body["images"].([]any)[0].(map[string]any)["caption"])
	assert.Equal(t, false, body["has_more"])

	_, body = s.do(t, http.MethodGet, "/api/photos?q=nobody", nil)
	assert.Empty(t, body["photos"])
	assert.Equal(t, "No photos match your filter.", body["empty_message"])
}

func TestPhotosUploadOversizedFileRejectedAlone(t *testing.T) {
	s := newTestServer(t, 0)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("uploader_name", "Ann"))
	for _, f := range []struct {
		name string
		size int
	}{{"a.jpg", 1024}, {"huge.jpg", photos.MaxFileSize + 1024}, {"b.jpg", 1024}} {
		hdr := textproto.MIMEHeader{}
		hdr.Set("Content-Disposition", `form-data; name="photos"; filename="`+f.name+`"`)
		hdr.Set("Content-Type", "image/jpeg")
		part, err := mw.CreatePart(hdr)
		require.NoError(t, err)
		_, err = part.Write(bytes.Repeat([]byte{0xff}, f.size))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/photos", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var upload struct {
		Uploaded int                 `json:"uploaded"`
		Results  []photos.FileResult `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &upload))
	assert.Equal(t, 2, upload.Uploaded)
	require.Len(t, upload.Results, 3)
	assert.Equal(t, photos.StatusUploaded, upload.Results[0].Status)
	assert.Equal(t, photos.StatusRejected, upload.Results[1].Status)
	assert.Equal(t, `File "huge.jpg" is too large. Maximum size is 10MB.`, upload.Results[1].Reason)
	assert.Equal(t, photos.StatusUploaded, upload.Results[2].Status)

	stored, err := s.store.ListPhotos(context.Background(), 0, 10)
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestPhotosUploadRequiresName(t *testing.T) {
	s := newTestServer(t, 0)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("caption", "x"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/photos", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "Please enter your name.")
}

func TestGalleryAndHooks(t *testing.T) {
	s := newTestServer(t, 0)

	rec, body := s.do(t, http.MethodGet, "/api/gallery", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["images"], 1)

	payload := map[string]any{
		"type":   "INSERT",
		"table":  "shared_photos",
		"record": map[string]any{"file_url": "x.jpg", "uploader_name": "Ann"},
	}
	rec, _ = s.do(t, http.MethodPost, "/hooks/photo", payload)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, 0, s.mailer.sent)

	data, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/hooks/photo", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(notify.SecretHeader, hookSecret)
	rec = httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"message":"Email sent"}`, rec.Body.String())
	assert.Equal(t, 1, s.mailer.sent)
}

func TestRateLimiter_SlidingWindow(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	now := time.Date(2026, 6, 20, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"))

	now = now.Add(61 * time.Second)
	assert.True(t, rl.Allow("a"))

	now = now.Add(2 * time.Minute)
	rl.Cleanup()
	assert.Empty(t, rl.requests)
}

func keys(m map[string]any) []string {
	var out []string
	for k := range m {
		out = append(out, k)
	}
	return out
}
