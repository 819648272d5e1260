package api

import (
	"context"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Togather-Foundation/agenda/internal/config"
	"github.com/Togather-Foundation/agenda/internal/metrics"
	"github.com/Togather-Foundation/agenda/internal/storage"
)

var (
	editLinkRe  = regexp.MustCompile(`/event/(\d+)/edit`)
	csrfTokenRe = regexp.MustCompile(`name="gorilla.csrf.Token" value="([^"]+)"`)
)

type testApp struct {
	server *httptest.Server
	store  storage.Repository
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Defaults()
	cfg.Database.Path = filepath.Join(t.TempDir(), "events.db")
	cfg.Session.Secret = "router-test-secret"
	cfg.Session.CSRFEnabled = false
	cfg.Auth.BcryptCost = bcrypt.MinCost
	cfg.RateLimit.LoginPer15Minutes = 0
	return cfg
}

func newTestApp(t *testing.T, cfg config.Config) *testApp {
	t.Helper()
	require.NoError(t, storage.MigrateUp(cfg.Database, zerolog.Nop()))
	store, err := storage.Open(context.Background(), cfg.Database)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	handler, err := NewRouter(Dependencies{
		Config: cfg,
		Store:  store,
		Logger: zerolog.Nop(),
		Build:  BuildInfo{Version: "test"},
	})
	require.NoError(t, err)

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return &testApp{server: server, store: store}
}

// browser keeps cookies and does not follow redirects, so each response can
// be inspected.
type browser struct {
	t      *testing.T
	app    *testApp
	client *http.Client
}

type page struct {
	status   int
	location string
	body     string
	header   http.Header
}

func (a *testApp) browser(t *testing.T) *browser {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &browser{
		t:   t,
		app: a,
		client: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (b *browser) do(req *http.Request) page {
	b.t.Helper()
	res, err := b.client.Do(req)
	require.NoError(b.t, err)
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	require.NoError(b.t, err)
	return page{status: res.StatusCode, location: res.Header.Get("Location"), body: string(body), header: res.Header}
}

func (b *browser) get(path string) page {
	b.t.Helper()
	req, err := http.NewRequest(http.MethodGet, b.app.server.URL+path, nil)
	require.NoError(b.t, err)
	return b.do(req)
}

func (b *browser) post(path string, form url.Values) page {
	b.t.Helper()
	req, err := http.NewRequest(http.MethodPost, b.app.server.URL+path, strings.NewReader(form.Encode()))
	require.NoError(b.t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return b.do(req)
}

func (b *browser) register(username, password string) page {
	b.t.Helper()
	return b.post("/register", url.Values{"username": {username}, "password": {password}})
}

func (b *browser) login(username, password string) page {
	b.t.Helper()
	return b.post("/login", url.Values{"username": {username}, "password": {password}})
}

func (b *browser) signUp(username, password string) {
	b.t.Helper()
	require.Equal(b.t, http.StatusSeeOther, b.register(username, password).status)
	require.Equal(b.t, http.StatusSeeOther, b.login(username, password).status)
}

func (b *browser) createEvent(name, when string) page {
	b.t.Helper()
	return b.post("/event/new", url.Values{"name": {name}, "event_time": {when}})
}

func eventIDs(body string) []string {
	var ids []string
	for _, m := range editLinkRe.FindAllStringSubmatch(body, -1) {
		ids = append(ids, m[1])
	}
	return ids
}

func TestEndToEnd_EventLifecycle(t *testing.T) {
	app := newTestApp(t, testConfig(t))
	alice := app.browser(t)

	res := alice.get("/dashboard")
	assert.Equal(t, http.StatusFound, res.status)
	assert.Equal(t, "/login", res.location)

	res = alice.register("alice", "secret1")
	require.Equal(t, http.StatusSeeOther, res.status)
	assert.Equal(t, "/login", res.location)

	res = alice.get("/login")
	assert.Equal(t, http.StatusOK, res.status)
	assert.Contains(t, res.body, "Registration successful. Please log in.")

	res = alice.login("alice", "secret1")
	require.Equal(t, http.StatusSeeOther, res.status)
	assert.Equal(t, "/dashboard", res.location)

	res = alice.get("/dashboard")
	require.Equal(t, http.StatusOK, res.status)
	assert.Contains(t, res.body, "Signed in successfully")
	assert.Contains(t, res.body, "alice")
	assert.Contains(t, res.body, "No events yet.")

	res = alice.createEvent("Standup", "2024-01-10T09:00")
	require.Equal(t, http.StatusSeeOther, res.status)
	assert.Equal(t, "/dashboard", res.location)

	res = alice.get("/dashboard")
	require.Equal(t, http.StatusOK, res.status)
	assert.Contains(t, res.body, "Event created")
	assert.Equal(t, 1, strings.Count(res.body, `<td class="event-name">Standup</td>`))
	assert.Contains(t, res.body, `data-time="2024-01-10T09:00:00"`)
	ids := eventIDs(res.body)
	require.Len(t, ids, 1)
	id := ids[0]

	res = alice.get("/event/" + id + "/edit")
	require.Equal(t, http.StatusOK, res.status)
	assert.Contains(t, res.body, `value="Standup"`)
	assert.Contains(t, res.body, `value="2024-01-10T09:00"`)

	res = alice.post("/event/"+id+"/edit", url.Values{"name": {"Standup"}, "event_time": {"2024-01-10T10:00"}})
	require.Equal(t, http.StatusSeeOther, res.status)

	res = alice.get("/dashboard")
	assert.Contains(t, res.body, "Event updated")
	assert.Contains(t, res.body, `data-time="2024-01-10T10:00:00"`)
	assert.NotContains(t, res.body, `data-time="2024-01-10T09:00:00"`)
	assert.Equal(t, 1, strings.Count(res.body, `<td class="event-name">Standup</td>`))

	res = alice.post("/event/"+id+"/delete", nil)
	require.Equal(t, http.StatusSeeOther, res.status)

	res = alice.get("/dashboard")
	assert.Contains(t, res.body, "Event deleted")
	assert.Contains(t, res.body, "No events yet.")
	assert.Empty(t, eventIDs(res.body))

	res = alice.get("/logout")
	assert.Equal(t, http.StatusSeeOther, res.status)
	assert.Equal(t, "/login", res.location)

	res = alice.get("/dashboard")
	assert.Equal(t, http.StatusFound, res.status)
	assert.Equal(t, "/login", res.location)

	res = alice.get("/login")
	assert.Contains(t, res.body, "Signed out")
}

func TestDashboard_OrderedByTime(t *testing.T) {
	app := newTestApp(t, testConfig(t))
	alice := app.browser(t)
	alice.signUp("alice", "secret1")

	alice.createEvent("Late", "2024-03-01T18:00")
	alice.createEvent("Early", "2024-01-01T08:00")
	alice.createEvent("Middle", "2024-02-01T12:00")

	body := alice.get("/dashboard").body
	early := strings.Index(body, ">Early<")
	middle := strings.Index(body, ">Middle<")
	late := strings.Index(body, ">Late<")
	require.True(t, early > 0 && middle > 0 && late > 0)
	assert.Less(t, early, middle)
	assert.Less(t, middle, late)
}

func TestIndex_Redirects(t *testing.T) {
	app := newTestApp(t, testConfig(t))
	b := app.browser(t)

	res := b.get("/")
	assert.Equal(t, http.StatusFound, res.status)
	assert.Equal(t, "/login", res.location)

	b.signUp("alice", "secret1")
	res = b.get("/")
	assert.Equal(t, http.StatusFound, res.status)
	assert.Equal(t, "/dashboard", res.location)
}

func TestRegister_DuplicateUsername(t *testing.T) {
	app := newTestApp(t, testConfig(t))
	b := app.browser(t)
	require.Equal(t, http.StatusSeeOther, b.register("alice", "secret1").status)

	res := b.register("alice", "other-password")
	assert.Equal(t, http.StatusOK, res.status)
	assert.Contains(t, res.body, "Username already taken")
	assert.Contains(t, res.body, `value="alice"`)

	res = b.login("alice", "secret1")
	assert.Equal(t, http.StatusSeeOther, res.status)
}

func TestRegister_MissingFields(t *testing.T) {
	app := newTestApp(t, testConfig(t))
	b := app.browser(t)

	for _, form := range []url.Values{
		{"username": {""}, "password": {"secret1"}},
		{"username": {"alice"}, "password": {""}},
		{},
	} {
		res := b.post("/register", form)
		assert.Equal(t, http.StatusOK, res.status)
		assert.Contains(t, res.body, "Username and password required")
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	app := newTestApp(t, testConfig(t))
	b := app.browser(t)
	require.Equal(t, http.StatusSeeOther, b.register("alice", "secret1").status)

	before := testutil.ToFloat64(metrics.AuthAttempts.WithLabelValues("login", "invalid"))

	for _, creds := range [][2]string{{"alice", "wrong"}, {"nobody", "secret1"}, {"", ""}} {
		res := b.login(creds[0], creds[1])
		assert.Equal(t, http.StatusOK, res.status)
		assert.Contains(t, res.body, "Invalid username or password")
	}

	assert.Equal(t, before+3, testutil.ToFloat64(metrics.AuthAttempts.WithLabelValues("login", "invalid")))
	res := b.get("/dashboard")
	assert.Equal(t, http.StatusFound, res.status)
}

func TestCreateEvent_ValidationRerendersForm(t *testing.T) {
	app := newTestApp(t, testConfig(t))
	alice := app.browser(t)
	alice.signUp("alice", "secret1")

	tests := []struct {
		name    string
		title   string
		when    string
		message string
	}{
		{"empty name", "", "2024-01-10T09:00", "Both name and time are required"},
		{"blank name", "   ", "2024-01-10T09:00", "Both name and time are required"},
		{"empty time", "Standup", "", "Both name and time are required"},
		{"bad time", "Standup", "not-a-date", "Invalid date/time format"},
		{"name too long", strings.Repeat("x", 201), "2024-01-10T09:00", "Name must be at most 200 characters"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := alice.createEvent(tt.title, tt.when)
			assert.Equal(t, http.StatusOK, res.status)
			assert.Contains(t, res.body, tt.message)
			if tt.when != "" {
				assert.Contains(t, res.body, `value="`+tt.when+`"`)
			}
		})
	}

	assert.Contains(t, alice.get("/dashboard").body, "No events yet.")
}

func TestEditEvent_ValidationKeepsEvent(t *testing.T) {
	app := newTestApp(t, testConfig(t))
	alice := app.browser(t)
	alice.signUp("alice", "secret1")
	alice.createEvent("Standup", "2024-01-10T09:00")
	id := eventIDs(alice.get("/dashboard").body)[0]

	res := alice.post("/event/"+id+"/edit", url.Values{"name": {"Standup"}, "event_time": {"tomorrow"}})
	assert.Equal(t, http.StatusOK, res.status)
	assert.Contains(t, res.body, "Invalid date/time format")
	assert.Contains(t, res.body, "/event/"+id+"/edit")

	assert.Contains(t, alice.get("/dashboard").body, `data-time="2024-01-10T09:00:00"`)
}

func TestEvents_OwnershipEnforced(t *testing.T) {
	app := newTestApp(t, testConfig(t))
	alice := app.browser(t)
	alice.signUp("alice", "secret1")
	alice.createEvent("Standup", "2024-01-10T09:00")
	id := eventIDs(alice.get("/dashboard").body)[0]

	bob := app.browser(t)
	bob.signUp("bob", "secret2")

	assert.Empty(t, eventIDs(bob.get("/dashboard").body))
	assert.Equal(t, http.StatusForbidden, bob.get("/event/"+id+"/edit").status)
	assert.Equal(t, http.StatusForbidden,
		bob.post("/event/"+id+"/edit", url.Values{"name": {"Hijacked"}, "event_time": {"2030-01-01T00:00"}}).status)
	assert.Equal(t, http.StatusForbidden, bob.post("/event/"+id+"/delete", nil).status)

	body := alice.get("/dashboard").body
	assert.Contains(t, body, `<td class="event-name">Standup</td>`)
	assert.Contains(t, body, `data-time="2024-01-10T09:00:00"`)
	assert.NotContains(t, body, "Hijacked")
}

func TestEvents_MissingIDs(t *testing.T) {
	app := newTestApp(t, testConfig(t))
	alice := app.browser(t)
	alice.signUp("alice", "secret1")

	assert.Equal(t, http.StatusNotFound, alice.get("/event/9999/edit").status)
	assert.Equal(t, http.StatusNotFound,
		alice.post("/event/9999/edit", url.Values{"name": {"x"}, "event_time": {"2024-01-10T09:00"}}).status)
	assert.Equal(t, http.StatusNotFound, alice.post("/event/9999/delete", nil).status)
	assert.Equal(t, http.StatusNotFound, alice.get("/event/abc/edit").status)
	assert.Equal(t, http.StatusNotFound, alice.get("/event/-1/edit").status)
}

func TestEvents_RequireLogin(t *testing.T) {
	app := newTestApp(t, testConfig(t))
	b := app.browser(t)

	for _, path := range []string{"/dashboard", "/event/new", "/event/1/edit"} {
		res := b.get(path)
		assert.Equal(t, http.StatusFound, res.status, path)
		assert.Equal(t, "/login", res.location, path)
	}
	res := b.createEvent("Standup", "2024-01-10T09:00")
	assert.Equal(t, http.StatusFound, res.status)
	res = b.post("/event/1/delete", nil)
	assert.Equal(t, http.StatusFound, res.status)
}

func TestLogout_WithoutSession(t *testing.T) {
	app := newTestApp(t, testConfig(t))
	res := app.browser(t).get("/logout")
	assert.Equal(t, http.StatusSeeOther, res.status)
	assert.Equal(t, "/login", res.location)
}

func TestLoginPage_RendersWhenSignedIn(t *testing.T) {
	app := newTestApp(t, testConfig(t))
	b := app.browser(t)
	b.signUp("alice", "secret1")

	res := b.get("/login")
	assert.Equal(t, http.StatusOK, res.status)
	assert.Contains(t, res.body, `action="/login"`)
}

func TestOperationalEndpoints(t *testing.T) {
	app := newTestApp(t, testConfig(t))
	b := app.browser(t)

	res := b.get("/healthz")
	assert.Equal(t, http.StatusOK, res.status)
	assert.Equal(t, "ok", res.body)

	res = b.get("/readyz")
	assert.Equal(t, http.StatusOK, res.status)
	assert.Contains(t, res.body, `"status":"healthy"`)

	res = b.get("/version")
	assert.Equal(t, http.StatusOK, res.status)
	assert.Contains(t, res.body, `"version":"test"`)

	res = b.get("/metrics")
	assert.Equal(t, http.StatusOK, res.status)
	assert.Contains(t, res.body, "agenda_http_requests_total")

	res = b.get("/static/js/main.js")
	assert.Equal(t, http.StatusOK, res.status)

	res = b.get("/no-such-page")
	assert.Equal(t, http.StatusNotFound, res.status)
	assert.Contains(t, res.header.Get("Content-Type"), "text/html")
}

func TestMiddlewareApplied(t *testing.T) {
	app := newTestApp(t, testConfig(t))
	res := app.browser(t).get("/login")

	assert.Equal(t, "DENY", res.header.Get("X-Frame-Options"))
	assert.NotEmpty(t, res.header.Get("Content-Security-Policy"))
	assert.NotEmpty(t, res.header.Get("X-Request-ID"))
}

func TestMetricsDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Metrics.Enabled = false
	app := newTestApp(t, cfg)

	assert.Equal(t, http.StatusNotFound, app.browser(t).get("/metrics").status)
}

func TestLoginRateLimited(t *testing.T) {
	cfg := testConfig(t)
	cfg.RateLimit.LoginPer15Minutes = 2
	app := newTestApp(t, cfg)
	b := app.browser(t)

	assert.Equal(t, http.StatusOK, b.login("alice", "x").status)
	assert.Equal(t, http.StatusOK, b.login("alice", "x").status)
	res := b.login("alice", "x")
	assert.Equal(t, http.StatusTooManyRequests, res.status)
	assert.Equal(t, "180", res.header.Get("Retry-After"))

	assert.Equal(t, http.StatusOK, b.get("/login").status)
}

func TestCSRF_EnforcedOnForms(t *testing.T) {
	cfg := testConfig(t)
	cfg.Session.CSRFEnabled = true
	app := newTestApp(t, cfg)
	b := app.browser(t)

	res := b.register("alice", "secret1")
	assert.Equal(t, http.StatusForbidden, res.status)
	assert.Contains(t, res.header.Get("Content-Type"), "text/html")

	form := b.get("/register")
	require.Equal(t, http.StatusOK, form.status)
	match := csrfTokenRe.FindStringSubmatch(form.body)
	require.Len(t, match, 2, "register form carries a CSRF token")

	res = b.post("/register", url.Values{
		"username":           {"alice"},
		"password":           {"secret1"},
		"gorilla.csrf.Token": {match[1]},
	})
	assert.Equal(t, http.StatusSeeOther, res.status)
	assert.Equal(t, "/login", res.location)
}
