package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"jnsite/internal/config"
	"jnsite/internal/database"
	"jnsite/internal/domain"
	"jnsite/internal/services"
)

var customerNumberRe = regexp.MustCompile(`^JN\d{1,6}$`)

type testEnv struct {
	srv *httptest.Server
	db  *gorm.DB
	cfg *config.Config
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()

	cfg := &config.Config{
		App:      config.AppConfig{Name: "JN Site", Version: "test", Debug: true},
		Database: config.DatabaseConfig{URL: "sqlite:///" + filepath.Join(dir, "data", "site.db")},
		Session: config.SessionConfig{
			Secret:          "test-secret",
			CookieName:      "jn_session",
			TTL:             time.Hour,
			CleanupInterval: time.Minute,
		},
		Admin: config.AdminConfig{Username: "admin", Password: "s3cret"},
		Site: config.SiteConfig{
			LandingFile:     filepath.Join(dir, "public", "index.html"),
			StaticDir:       filepath.Join(dir, "public"),
			DisplayLocale:   "ru-RU",
			DisplayTimezone: "UTC",
		},
		CORS: config.CORSConfig{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type"},
			MaxAge:         600,
		},
	}

	db, err := database.Open(&cfg.Database)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	locale := services.NewLocale(cfg.Site.DisplayLocale, cfg.Site.DisplayTimezone)
	auth := services.NewAuthService(db, &cfg.Admin)
	require.NoError(t, auth.EnsureAdmin(context.Background()))
	content := services.NewContentService(cfg.Site.LandingFile)
	require.NoError(t, content.EnsureDefault("<h1>Welcome</h1>"))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Site.StaticDir, "site.css"), []byte("body{}"), 0o644))

	s, err := New(cfg, Deps{
		Auth:        auth,
		Sessions:    services.NewSessionService(db, &cfg.Session),
		Visits:      services.NewVisitService(db),
		Submissions: services.NewSubmissionService(db, locale, nil, nil),
		Stats:       services.NewStatsService(db),
		Content:     content,
		Health:      services.NewHealthService(db, cfg.App.Name, cfg.App.Version),
		Locale:      locale,
	})
	require.NoError(t, err)

	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, db: db, cfg: cfg}
}

// client keeps cookies and does not follow redirects.
func (e *testEnv) client(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func (e *testEnv) url(path string) string { return e.srv.URL + path }

func (e *testEnv) visitCount(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(&domain.Visit{}).Count(&n).Error)
	return n
}

func (e *testEnv) login(t *testing.T, c *http.Client, password string) *http.Response {
	t.Helper()
	resp, err := c.PostForm(e.url("/admin/login"), url.Values{"username": {"admin"}, "password": {password}})
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func get(t *testing.T, c *http.Client, u string) (*http.Response, string) {
	t.Helper()
	resp, err := c.Get(u)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func postJSON(t *testing.T, c *http.Client, u, body string) (*http.Response, map[string]interface{}) {
	t.Helper()
	resp, err := c.Post(u, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func postMultipart(t *testing.T, c *http.Client, u string, fields map[string]string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	resp, err := c.Post(u, mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	resp.Body.Close()
	return resp
}

func assertRedirectsToLogin(t *testing.T, resp *http.Response) {
	t.Helper()
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/admin/login", resp.Header.Get("Location"))
}

func TestVisits_RecordedOnlyForPublicPaths(t *testing.T) {
	e := newTestEnv(t)
	c := e.client(t)

	public := []string{"/", "/pricing", "/static/site.css", "/deep/nested/page"}
	for _, p := range public {
		get(t, c, e.url(p))
	}
	for _, p := range []string{"/admin", "/admin/login", "/admin/visits", "/api/health", "/api/stats", "/api/metrics"} {
		get(t, c, e.url(p))
	}

	var visits []domain.Visit
	require.NoError(t, e.db.Order("id ASC").Find(&visits).Error)
	require.Len(t, visits, len(public))
	for i, v := range visits {
		assert.Equal(t, public[i], v.Path)
		assert.Equal(t, "127.0.0.1", v.IP)
		assert.Equal(t, "Go-http-client/1.1", v.UserAgent)
	}
}

func TestLanding_AndStatic(t *testing.T) {
	e := newTestEnv(t)
	c := e.client(t)

	resp, body := get(t, c, e.url("/"))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "<h1>Welcome</h1>", body)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))

	resp, body = get(t, c, e.url("/static/site.css"))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "body{}", body)

	resp, _ = get(t, c, e.url("/static/"))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	require.NoError(t, os.Remove(e.cfg.Site.LandingFile))
	resp, _ = get(t, c, e.url("/"))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSubmit_ServicesShapes(t *testing.T) {
	e := newTestEnv(t)
	c := e.client(t)

	tests := []struct {
		name string
		body string
		want string
	}{
		{"list", `{"name":"A","services":["A","B"]}`, "A, B"},
		{"single", `{"name":"B","services":"A"}`, "A"},
		{"absent", `{"name":"C"}`, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			start := time.Now()
			resp, out := postJSON(t, c, e.url("/api/submit"), tc.body)
			require.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Contains(t, resp.Header.Get("Content-Type"), "application/json")
			assert.Equal(t, true, out["ok"])
			assert.NotEmpty(t, out["submissionDate"])

			num, _ := out["customerNumber"].(string)
			assert.Regexp(t, customerNumberRe, num)

			var sub domain.Submission
			require.NoError(t, e.db.Where("customer_number = ?", num).Order("id DESC").First(&sub).Error)
			assert.Equal(t, tc.want, sub.Services)
			assert.False(t, sub.CreatedAt.Before(start.Truncate(time.Millisecond)))
		})
	}
}

func TestSubmit_EmptyPayloads(t *testing.T) {
	e := newTestEnv(t)
	c := e.client(t)

	resp, out := postJSON(t, c, e.url("/api/submit"), `{}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, out["ok"])

	resp, err := c.Post(e.url("/api/submit"), "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var subs []domain.Submission
	require.NoError(t, e.db.Find(&subs).Error)
	require.Len(t, subs, 2)
	for _, s := range subs {
		assert.Equal(t, "", s.Name)
		assert.Equal(t, "", s.Phone)
		assert.Equal(t, "", s.Email)
		assert.Equal(t, "", s.Message)
		assert.Equal(t, "", s.Services)
	}
}

func TestSubmit_FormEncoded(t *testing.T) {
	e := newTestEnv(t)
	c := e.client(t)

	resp, err := c.PostForm(e.url("/api/submit"), url.Values{
		"name":       {"Anna"},
		"email":      {"anna@example.com"},
		"services[]": {"Design", "Hosting"},
	})
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var sub domain.Submission
	require.NoError(t, e.db.First(&sub).Error)
	assert.Equal(t, "Anna", sub.Name)
	assert.Equal(t, "Design, Hosting", sub.Services)
}

func TestSubmit_MalformedJSON(t *testing.T) {
	e := newTestEnv(t)
	c := e.client(t)

	resp, out := postJSON(t, c, e.url("/api/submit"), `{"name":`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, false, out["ok"])
	assert.NotEmpty(t, out["error"])

	resp, _ = postJSON(t, c, e.url("/api/submit"), `{"services":42}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSubmit_ConcurrentRequestsGetTheirOwnRows(t *testing.T) {
	e := newTestEnv(t)
	c := e.client(t)

	const n = 10
	numbers := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := c.Post(e.url("/api/submit"), "application/json",
				strings.NewReader(fmt.Sprintf(`{"name":"client-%d"}`, i)))
			if !assert.NoError(t, err) {
				return
			}
			defer resp.Body.Close()
			var out struct {
				CustomerNumber string `json:"customerNumber"`
			}
			assert.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
			numbers[i] = out.CustomerNumber
		}(i)
	}
	wg.Wait()

	var subs []domain.Submission
	require.NoError(t, e.db.Find(&subs).Error)
	require.Len(t, subs, n)
	for _, s := range subs {
		var i int
		_, err := fmt.Sscanf(s.Name, "client-%d", &i)
		require.NoError(t, err)
		assert.Equal(t, s.CustomerNumber, numbers[i], s.Name)
	}
}

func TestLogin_Flow(t *testing.T) {
	e := newTestEnv(t)
	c := e.client(t)

	resp, _ := get(t, c, e.url("/admin"))
	assertRedirectsToLogin(t, resp)

	resp, body := get(t, c, e.url("/admin/login"))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Вход администратора")

	bad := e.login(t, c, "wrong")
	assert.Equal(t, http.StatusUnauthorized, bad.StatusCode)
	badBody, err := io.ReadAll(bad.Body)
	require.NoError(t, err)
	assert.Contains(t, string(badBody), "Неверное имя пользователя или пароль")

	resp, _ = get(t, c, e.url("/admin"))
	assertRedirectsToLogin(t, resp)

	ok := e.login(t, c, "s3cret")
	assert.Equal(t, http.StatusFound, ok.StatusCode)
	assert.Equal(t, "/admin", ok.Header.Get("Location"))

	for _, p := range []string{"/admin", "/admin/submissions", "/admin/visits", "/admin/editor"} {
		resp, _ = get(t, c, e.url(p))
		assert.Equal(t, http.StatusOK, resp.StatusCode, p)
	}

	resp, err = c.Post(e.url("/admin/logout"), "application/x-www-form-urlencoded", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assertRedirectsToLogin(t, resp)

	resp, _ = get(t, c, e.url("/admin"))
	assertRedirectsToLogin(t, resp)

	var n int64
	require.NoError(t, e.db.Model(&domain.Session{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestAdminPages_RenderInDisplayLocale(t *testing.T) {
	e := newTestEnv(t)
	c := e.client(t)

	_, body := get(t, c, e.url("/admin/login"))
	assert.Contains(t, body, "Войти")
	assert.Contains(t, body, "Пароль")
	assert.NotContains(t, body, "Sign in")

	e.login(t, c, "s3cret")

	_, body = get(t, c, e.url("/admin"))
	assert.Contains(t, body, "Всего посещений")
	assert.Contains(t, body, "Последние заявки")
	assert.Contains(t, body, "Заявок пока нет")
	assert.NotContains(t, body, "Total visits")

	_, body = get(t, c, e.url("/admin/visits"))
	assert.Contains(t, body, "Браузер")

	_, body = get(t, c, e.url("/admin/editor"))
	assert.Contains(t, body, "Сохранить")
}

func TestLogout_RequiresSession(t *testing.T) {
	e := newTestEnv(t)
	c := e.client(t)

	resp, err := c.Post(e.url("/admin/logout"), "application/x-www-form-urlencoded", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assertRedirectsToLogin(t, resp)
}

func TestAuthGate_RejectsForgedCookie(t *testing.T) {
	e := newTestEnv(t)
	c := e.client(t)

	u, err := url.Parse(e.srv.URL)
	require.NoError(t, err)
	c.Jar.SetCookies(u, []*http.Cookie{{Name: "jn_session", Value: "not-a-token", Path: "/"}})

	resp, _ := get(t, c, e.url("/admin"))
	assertRedirectsToLogin(t, resp)
}

func TestEditor_UpdatesLandingPage(t *testing.T) {
	e := newTestEnv(t)
	c := e.client(t)
	e.login(t, c, "s3cret")

	resp, err := c.PostForm(e.url("/admin/editor"), url.Values{"content": {"<h1>Hi</h1>"}})
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/admin/editor", resp.Header.Get("Location"))

	resp, body := get(t, c, e.url("/"))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "<h1>Hi</h1>", body)

	_, body = get(t, c, e.url("/admin/editor"))
	assert.Contains(t, body, "&lt;h1&gt;Hi&lt;/h1&gt;")
}

func TestEditor_AcceptsMultipartForm(t *testing.T) {
	e := newTestEnv(t)
	c := e.client(t)

	resp := postMultipart(t, c, e.url("/admin/login"), map[string]string{"username": "admin", "password": "s3cret"})
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/admin", resp.Header.Get("Location"))

	resp = postMultipart(t, c, e.url("/admin/editor"), map[string]string{"content": "<h1>Multi</h1>"})
	assert.Equal(t, http.StatusFound, resp.StatusCode)

	_, body := get(t, c, e.url("/"))
	assert.Equal(t, "<h1>Multi</h1>", body)
}

func TestLogin_MultipartWrongPasswordRejected(t *testing.T) {
	e := newTestEnv(t)
	c := e.client(t)

	resp := postMultipart(t, c, e.url("/admin/login"), map[string]string{"username": "admin", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestEditor_RequiresSession(t *testing.T) {
	e := newTestEnv(t)
	c := e.client(t)

	resp, err := c.PostForm(e.url("/admin/editor"), url.Values{"content": {"defaced"}})
	require.NoError(t, err)
	resp.Body.Close()
	assertRedirectsToLogin(t, resp)

	_, body := get(t, c, e.url("/"))
	assert.Equal(t, "<h1>Welcome</h1>", body)
}

func TestStats_Endpoint(t *testing.T) {
	e := newTestEnv(t)
	c := e.client(t)

	resp, _ := get(t, c, e.url("/api/stats"))
	assertRedirectsToLogin(t, resp)

	now := time.Now().UTC()
	var seed []domain.Visit
	for i := 1; i <= 40; i++ {
		seed = append(seed, domain.Visit{IP: "ip", UserAgent: "ua", Path: "/old", CreatedAt: now.AddDate(0, 0, -i)})
	}
	require.NoError(t, e.db.Create(&seed).Error)

	get(t, c, e.url("/"))
	get(t, c, e.url("/"))
	e.login(t, c, "s3cret")

	resp, body := get(t, c, e.url("/api/stats"))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var stats struct {
		Total  int64                `json:"total"`
		Today  int64                `json:"today"`
		ByDay  []services.DayCount  `json:"byDay"`
		ByPath []services.PathCount `json:"byPath"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &stats))

	assert.Equal(t, e.visitCount(t), stats.Total)
	assert.Equal(t, int64(42), stats.Total)
	assert.Equal(t, int64(2), stats.Today)
	assert.LessOrEqual(t, len(stats.ByDay), 30)
	assert.Len(t, stats.ByDay, 30)
	assert.True(t, sort.SliceIsSorted(stats.ByDay, func(i, j int) bool { return stats.ByDay[i].Day > stats.ByDay[j].Day }))
	assert.Equal(t, now.Format("2006-01-02"), stats.ByDay[0].Day)

	var sum int64
	for _, p := range stats.ByPath {
		sum += p.Visits
	}
	assert.Equal(t, stats.Total, sum)
	assert.Equal(t, services.PathCount{Path: "/old", Visits: 40}, stats.ByPath[0])
}

func TestHealthAndMetrics(t *testing.T) {
	e := newTestEnv(t)
	c := e.client(t)

	resp, body := get(t, c, e.url("/api/health"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var health map[string]string
	require.NoError(t, json.Unmarshal([]byte(body), &health))
	assert.Equal(t, "healthy", health["status"])
	assert.Equal(t, "JN Site", health["service"])

	get(t, c, e.url("/"))
	resp, body = get(t, c, e.url("/api/metrics"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "http_requests_total")
	assert.Contains(t, body, "visits_recorded_total")
}

func TestMetrics_UnknownPathsShareOneLabel(t *testing.T) {
	e := newTestEnv(t)
	c := e.client(t)

	for i := 0; i < 20; i++ {
		resp, _ := get(t, c, e.url(fmt.Sprintf("/api/unknown-%d", i)))
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	}
	get(t, c, e.url("/api/health"))

	_, body := get(t, c, e.url("/api/metrics"))
	assert.NotContains(t, body, `endpoint="/api/unknown-`)
	assert.Contains(t, body, `endpoint="other"`)
	assert.Contains(t, body, `endpoint="/api/health"`)
}

func TestCORS_Preflight(t *testing.T) {
	e := newTestEnv(t)

	req, err := http.NewRequest(http.MethodOptions, e.url("/api/submit"), nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), "POST")
}
