package http

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/microstore/internal/fragment"
	"github.com/kjstillabower/microstore/internal/lifecycle"
	"github.com/kjstillabower/microstore/internal/models"
	"github.com/kjstillabower/microstore/internal/store"
	"github.com/kjstillabower/microstore/internal/traffic"
)

// resetGlobals clears process-wide state shared by handlers before and after a test.
func resetGlobals(t testing.TB) {
	t.Helper()
	traffic.Reset()
	lifecycle.SetShuttingDown(false)
	t.Cleanup(func() {
		traffic.Reset()
		lifecycle.SetShuttingDown(false)
	})
}

func newTestSessions() *store.Sessions {
	return store.NewSessions(store.NewInMemoryStore(), time.Hour, zap.NewNop())
}

// newTestApp builds the named fragment app with simulated delays disabled.
func newTestApp(name string) FragmentApp {
	switch name {
	case fragment.Header:
		return NewHeaderApp("5001", zap.NewNop())
	case fragment.Products:
		return NewProductsApp("5002", zap.NewNop())
	case fragment.Cart:
		return NewCartApp(newTestSessions(), 0, "5003", zap.NewNop())
	default:
		return NewUserApp(newTestSessions(), 0, "5004", zap.NewNop())
	}
}

// newFragmentServer serves app through the full fragment router.
func newFragmentServer(t testing.TB, app FragmentApp) *httptest.Server {
	t.Helper()
	health := NewHealthHandler("fragment-"+app.Name(), nil, zap.NewNop())
	srv := httptest.NewServer(NewFragmentRouter(app, health, RouterOptions{SessionCookie: "test_" + app.Name()}, zap.NewNop()))
	t.Cleanup(srv.Close)
	return srv
}

// downURL returns the URL of a server that has already been closed.
func downURL(t testing.TB) string {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	u := srv.URL
	srv.Close()
	return u
}

// newBrowser returns a client that keeps cookies and follows redirects.
func newBrowser(t testing.TB) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar.New() error = %v", err)
	}
	return &http.Client{Jar: jar, Timeout: 10 * time.Second}
}

// testStack is a shell wired to fragment servers, some of which may be down.
type testStack struct {
	shell    *httptest.Server
	remotes  map[string]string
	browser  *http.Client
	statuses *stubStatuses
}

type stubStatuses struct {
	reachable map[string]bool
}

func (s *stubStatuses) Snapshot() []models.RemoteStatus {
	var out []models.RemoteStatus
	for _, name := range fragment.Names() {
		out = append(out, models.RemoteStatus{Name: name, Reachable: s.reachable[name]})
	}
	return out
}

func (s *stubStatuses) Reachable(name string) bool { return s.reachable[name] }

func newTestStack(t testing.TB, down ...string) *testStack {
	t.Helper()
	isDown := make(map[string]bool, len(down))
	for _, d := range down {
		isDown[d] = true
	}
	remotes := make(map[string]string)
	statuses := &stubStatuses{reachable: make(map[string]bool)}
	for _, name := range fragment.Names() {
		if isDown[name] {
			remotes[name] = downURL(t)
			continue
		}
		remotes[name] = newFragmentServer(t, newTestApp(name)).URL
		statuses.reachable[name] = true
	}

	loader, err := fragment.NewHTTPLoader(remotes, 2*time.Second)
	if err != nil {
		t.Fatalf("NewHTTPLoader() error = %v", err)
	}
	shell := NewShell(fragment.NewBoundary(loader, zap.NewNop()), loader, statuses, newTestSessions(),
		ShellConfig{Port: "5000", Remotes: remotes, StatusWindow: time.Minute}, zap.NewNop())
	shell.price = func() float64 { return 42 }
	health := NewHealthHandler("shell", &HealthConfig{Remotes: statuses}, zap.NewNop())

	srv := httptest.NewServer(NewShellRouter(shell, health, RouterOptions{TestingMode: true}, zap.NewNop()))
	t.Cleanup(srv.Close)
	return &testStack{shell: srv, remotes: remotes, browser: newBrowser(t), statuses: statuses}
}

// page fetches the shell page and returns its body.
func (s *testStack) page(t testing.TB) string {
	t.Helper()
	return getBody(t, s.browser, s.shell.URL+"/")
}

// post submits a form to the shell and returns the page it redirects to.
func (s *testStack) post(t *testing.T, path string, form url.Values) string {
	t.Helper()
	resp, err := s.browser.PostForm(s.shell.URL+path, form)
	if err != nil {
		t.Fatalf("POST %s error = %v", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("POST %s final status = %d, want 200", path, resp.StatusCode)
	}
	return readBody(t, resp)
}

func getBody(t testing.TB, c *http.Client, target string) string {
	t.Helper()
	resp, err := c.Get(target)
	if err != nil {
		t.Fatalf("GET %s error = %v", target, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s status = %d, want 200", target, resp.StatusCode)
	}
	return readBody(t, resp)
}

func readBody(t testing.TB, resp *http.Response) string {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(b)
}

// errorBody is the JSON error envelope.
type errorBody struct {
	Error struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RequestID string `json:"requestId"`
	} `json:"error"`
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v (body %q)", err, w.Body.String())
	}
	return body
}
