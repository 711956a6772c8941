package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scheme-admin/internal/models"
	"scheme-admin/internal/session"
)

type recorded struct {
	listQuery  map[string]string
	form       map[string]string
	files      []string
	submitPath string
}

// fakeBackend records the last request of interest and serves canned data.
type fakeBackend struct {
	mu         sync.Mutex
	rec        recorded
	verifyCode int
	schemes    []models.SchemeSummary
	detail     map[string]interface{}
}

func (fb *fakeBackend) recorded() recorded {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.rec
}

func (fb *fakeBackend) set(fn func(fb *fakeBackend)) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fn(fb)
}

func newFakeBackend(t *testing.T) (*fakeBackend, *httptest.Server) {
	t.Helper()
	fb := &fakeBackend{verifyCode: http.StatusOK}

	writeJSON := func(w http.ResponseWriter, status int, v interface{}) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(v)
	}

	r := chi.NewRouter()
	r.Get("/user/getAllStates", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"data": []models.NamedEntity{{ID: "s1", Name: "Kerala", Slug: "kerala"}}})
	})
	r.Get("/user/allCategories", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"data": []models.NamedEntity{{ID: "c1", Name: "Agriculture", Slug: "agriculture"}}})
	})
	r.Get("/user/getAllSchemes", func(w http.ResponseWriter, r *http.Request) {
		fb.mu.Lock()
		fb.rec.listQuery = map[string]string{}
		for k := range r.URL.Query() {
			fb.rec.listQuery[k] = r.URL.Query().Get(k)
		}
		items := fb.schemes
		fb.mu.Unlock()
		if len(items) == 0 {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "No schemes found"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"data": items, "total": len(items), "totalPages": 1})
	})
	r.Get("/user/getSchemeBySlug/{key}", func(w http.ResponseWriter, _ *http.Request) {
		fb.mu.Lock()
		detail := fb.detail
		fb.mu.Unlock()
		if detail == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "Scheme not found"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"data": detail})
	})
	record := func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
			return
		}
		fb.mu.Lock()
		fb.rec.submitPath = r.URL.Path
		fb.rec.form = map[string]string{}
		for k := range r.MultipartForm.Value {
			fb.rec.form[k] = r.MultipartForm.Value[k][0]
		}
		fb.rec.files = nil
		for k := range r.MultipartForm.File {
			fb.rec.files = append(fb.rec.files, k)
		}
		slug := fb.rec.form["slug"]
		fb.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]interface{}{"data": map[string]interface{}{"_id": "abc", "slug": slug, "title": "saved"}})
	}
	r.Post("/admin/registerScheme", record)
	r.Put("/admin/updateSchemeById/{id}", record)
	r.Get("/user/verifyToken", func(w http.ResponseWriter, _ *http.Request) {
		fb.mu.Lock()
		code := fb.verifyCode
		fb.mu.Unlock()
		writeJSON(w, code, map[string]interface{}{"valid": code == http.StatusOK})
	})
	r.Post("/admin/loginUser", func(w http.ResponseWriter, r *http.Request) {
		var creds map[string]string
		_ = json.NewDecoder(r.Body).Decode(&creds)
		if creds["password"] != "supersecret1" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid email or password"})
			return
		}
		writeJSON(w, http.StatusOK, models.AuthResponse{Token: "fresh-token", User: models.User{ID: "u1", Email: creds["email"], Role: "admin"}})
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return fb, srv
}

func run(t *testing.T, srv *httptest.Server, args ...string) (string, error) {
	t.Helper()
	t.Setenv("LOG_LEVEL", "error")
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--api-url", srv.URL}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestTemplatePrintsBlankDraft(t *testing.T) {
	_, srv := newFakeBackend(t)
	t.Setenv("SCHEME_ADMIN_TOKEN", "tok")

	out, err := run(t, srv, "schemes", "template")
	require.NoError(t, err)
	assert.Contains(t, out, "title:")
	assert.Contains(t, out, "keyHighlightsOfTheScheme:")
	assert.Contains(t, out, "isFeatured: true")
}

func TestStatesListing(t *testing.T) {
	_, srv := newFakeBackend(t)
	t.Setenv("SCHEME_ADMIN_TOKEN", "")

	out, err := run(t, srv, "states")
	require.NoError(t, err)
	assert.Contains(t, out, "Kerala")
	assert.Contains(t, out, "s1")
}

func TestSchemesListAllWithState(t *testing.T) {
	fb, srv := newFakeBackend(t)
	t.Setenv("SCHEME_ADMIN_TOKEN", "")
	fb.set(func(fb *fakeBackend) {
		fb.schemes = []models.SchemeSummary{{ID: "1", Slug: "pm-kisan", Title: "PM Kisan", Category: models.Ref{ID: "c1"}, States: models.Refs{{ID: "s1"}}}}
	})

	out, err := run(t, srv, "schemes", "list", "--all", "--state", "s1", "--names")
	require.NoError(t, err)
	rec := fb.recorded()
	assert.Equal(t, "1000", rec.listQuery["limit"])
	assert.Equal(t, "s1", rec.listQuery["stateId"])
	assert.NotContains(t, rec.listQuery, "categoryId")
	assert.Contains(t, out, "PM Kisan")
	assert.Contains(t, out, "Agriculture")
	assert.Contains(t, out, "Kerala")
}

func TestSchemesListByCategoryFollowsFilter(t *testing.T) {
	fb, srv := newFakeBackend(t)
	t.Setenv("SCHEME_ADMIN_TOKEN", "")
	fb.set(func(fb *fakeBackend) { fb.schemes = []models.SchemeSummary{{ID: "1", Slug: "pm-kisan", Title: "PM Kisan"}} })

	_, err := run(t, srv, "schemes", "list", "--category", "c1", "--limit", "5")
	require.NoError(t, err)
	rec := fb.recorded()
	assert.Equal(t, "c1", rec.listQuery["categoryId"])
	assert.Equal(t, "1", rec.listQuery["page"])
	assert.Equal(t, "5", rec.listQuery["limit"])
}

func TestSchemesListRejectsStateAndCategory(t *testing.T) {
	_, srv := newFakeBackend(t)
	t.Setenv("SCHEME_ADMIN_TOKEN", "")

	_, err := run(t, srv, "schemes", "list", "--state", "s1", "--category", "c1")
	require.Error(t, err)
}

func TestSchemesListEmpty(t *testing.T) {
	_, srv := newFakeBackend(t)
	t.Setenv("SCHEME_ADMIN_TOKEN", "")

	out, err := run(t, srv, "schemes", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "no schemes found")
}

const draftYAML = `title: PM Kisan
about: Income support for farmers
objectives: Supplement farm income
category: c1
state: [s1]
textWithHTMLParsing:
  htmlDescription: "<p>Direct benefit transfer</p>"
`

func TestSchemesCreateSendsMultipart(t *testing.T) {
	fb, srv := newFakeBackend(t)
	t.Setenv("SCHEME_ADMIN_TOKEN", "tok")
	path := writeFile(t, "draft.yaml", draftYAML)
	card := writeFile(t, "card.png", "\x89PNG\r\n\x1a\nfake")

	out, err := run(t, srv, "schemes", "create", "-f", path, "--card", card)
	require.NoError(t, err)
	assert.Contains(t, out, "created pm-kisan (abc)")

	rec := fb.recorded()
	assert.Equal(t, "/admin/registerScheme", rec.submitPath)
	assert.Equal(t, "PM Kisan", rec.form["title"])
	assert.Equal(t, "pm-kisan", rec.form["slug"])
	assert.Equal(t, `"c1"`, rec.form["category"])
	assert.Equal(t, `["s1"]`, rec.form["state"])
	assert.Equal(t, "[]", rec.form["benefits"])
	assert.Equal(t, "{}", rec.form["helplineNumber"])
	assert.Equal(t, []string{"cardImage"}, rec.files)
}

func TestSchemesCreateReportsFirstMissingField(t *testing.T) {
	fb, srv := newFakeBackend(t)
	t.Setenv("SCHEME_ADMIN_TOKEN", "tok")
	path := writeFile(t, "draft.yaml", "title: PM Kisan\nabout: a\nobjectives: b\nstate: [s1]\n")

	_, err := run(t, srv, "schemes", "create", "-f", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Please select a category")
	rec := fb.recorded()
	assert.Empty(t, rec.submitPath)
}

func TestSchemesCreateRequiresSession(t *testing.T) {
	_, srv := newFakeBackend(t)
	t.Setenv("SCHEME_ADMIN_TOKEN", "")
	t.Setenv("SCHEME_ADMIN_TOKEN_FILE", filepath.Join(t.TempDir(), "session.json"))
	path := writeFile(t, "draft.yaml", draftYAML)

	_, err := run(t, srv, "schemes", "create", "-f", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not logged in")
}

func storedDetail() map[string]interface{} {
	return map[string]interface{}{
		"_id":                 "abc",
		"slug":                "pm-kisan",
		"title":               "PM Kisan",
		"about":               "Income support",
		"objectives":          "Farm income",
		"category":            map[string]string{"_id": "c1", "name": "Agriculture"},
		"state":               []map[string]string{{"_id": "s1", "name": "Kerala"}},
		"publishedOn":         "2024-02-01T00:00:00.000Z",
		"isFeatured":          false,
		"bannerImage":         map[string]string{"url": "/uploads/f1"},
		"benefits":            []map[string]string{{"_id": "b1", "subTitle": "Cash", "subDescription": "6000 a year"}},
		"textWithHTMLParsing": map[string]string{"htmlDescription": "<p>Body</p>"},
	}
}

func TestSchemesEditKeepsBannerImage(t *testing.T) {
	fb, srv := newFakeBackend(t)
	t.Setenv("SCHEME_ADMIN_TOKEN", "tok")
	fb.set(func(fb *fakeBackend) { fb.detail = storedDetail() })
	path := writeFile(t, "changes.yaml", "title: PM Kisan Samman Nidhi\n")

	out, err := run(t, srv, "schemes", "edit", "pm-kisan", "-f", path)
	require.NoError(t, err)
	assert.Contains(t, out, "updated")

	rec := fb.recorded()
	assert.Equal(t, "/admin/updateSchemeById/abc", rec.submitPath)
	assert.Equal(t, "PM Kisan Samman Nidhi", rec.form["title"])
	assert.Equal(t, "true", rec.form["keepBannerImage"])
	assert.NotContains(t, rec.form, "keepCardImage")
	assert.Equal(t, "2024-02-01", rec.form["publishedOn"])
	assert.Contains(t, rec.form["benefits"], `"subTitle":"Cash"`)
}

func TestSchemesEditWithoutChanges(t *testing.T) {
	fb, srv := newFakeBackend(t)
	t.Setenv("SCHEME_ADMIN_TOKEN", "tok")
	fb.set(func(fb *fakeBackend) { fb.detail = storedDetail() })

	out, err := run(t, srv, "schemes", "edit", "pm-kisan")
	require.NoError(t, err)
	assert.Contains(t, out, "no changes")
	rec := fb.recorded()
	assert.Empty(t, rec.submitPath)
}

func TestSchemesGetRoundTripsIntoEdit(t *testing.T) {
	fb, srv := newFakeBackend(t)
	t.Setenv("SCHEME_ADMIN_TOKEN", "tok")
	fb.set(func(fb *fakeBackend) { fb.detail = storedDetail() })

	out, err := run(t, srv, "schemes", "get", "pm-kisan")
	require.NoError(t, err)
	assert.Contains(t, out, "id: abc")
	assert.Contains(t, out, "category: c1")

	path := writeFile(t, "full.yaml", out)
	out, err = run(t, srv, "schemes", "edit", "pm-kisan", "-f", path)
	require.NoError(t, err)
	assert.Contains(t, out, "no changes")
}

func TestSchemesGetMissing(t *testing.T) {
	_, srv := newFakeBackend(t)
	t.Setenv("SCHEME_ADMIN_TOKEN", "")

	_, err := run(t, srv, "schemes", "get", "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scheme not found")
}

func TestLoginPersistsSession(t *testing.T) {
	_, srv := newFakeBackend(t)
	t.Setenv("SCHEME_ADMIN_TOKEN", "")
	tokenFile := filepath.Join(t.TempDir(), "session.json")

	out, err := run(t, srv, "--token-file", tokenFile, "login", "--email", "admin@example.com", "--password", "supersecret1")
	require.NoError(t, err)
	assert.Contains(t, out, "logged in as admin@example.com")
	assert.Equal(t, "fresh-token", session.NewFileStore(tokenFile).Token())

	_, err = run(t, srv, "--token-file", tokenFile, "login", "--email", "admin@example.com", "--password", "wrong")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid email or password")
}

func TestWhoamiClearsRejectedSession(t *testing.T) {
	fb, srv := newFakeBackend(t)
	t.Setenv("SCHEME_ADMIN_TOKEN", "")
	tokenFile := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, session.NewFileStore(tokenFile).Save(session.Session{Token: "old", User: models.User{Email: "admin@example.com", Role: "admin"}}))

	out, err := run(t, srv, "--token-file", tokenFile, "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "admin@example.com (admin)")

	fb.set(func(fb *fakeBackend) { fb.verifyCode = http.StatusUnauthorized })
	_, err = run(t, srv, "--token-file", tokenFile, "whoami")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session expired")
	assert.Empty(t, session.NewFileStore(tokenFile).Token())
}
