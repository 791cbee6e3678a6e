package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kjstillabower/microstore/internal/fragment"
	"github.com/kjstillabower/microstore/internal/models"
)

func TestHeaderApp_RenderView(t *testing.T) {
	app := NewHeaderApp("5001", nil)
	app.now = func() time.Time { return time.Date(2024, 5, 1, 9, 30, 15, 0, time.UTC) }
	req := httptest.NewRequest("POST", "/fragments/Header", nil)

	html, err := app.RenderView(req, fragment.ViewHeader, fragment.Props{Session: "s1"})
	if err != nil {
		t.Fatalf("RenderView() error = %v", err)
	}
	body := string(html)
	for _, want := range []string{"09:30:15", `<span class="badge">3</span>`, "Iniciar Sesión", `<button type="button">🏠 Inicio</button>`} {
		if !strings.Contains(body, want) {
			t.Errorf("logged-out header missing %q", want)
		}
	}

	user := &models.User{ID: "7", Name: "zoe"}
	html, _ = app.RenderView(req, fragment.ViewHeader, fragment.Props{Session: "s1", User: user, Embedded: true})
	body = string(html)
	for _, want := range []string{`<span class="avatar">Z</span> zoe`, `action="/actions/menu"`, `action="/actions/logout"`} {
		if !strings.Contains(body, want) {
			t.Errorf("embedded header missing %q", want)
		}
	}

	if _, err := app.RenderView(req, fragment.ViewCart, fragment.Props{}); err == nil {
		t.Error("RenderView() should reject views of other fragments")
	}
}

func TestHeaderAPI_ClearNotifications(t *testing.T) {
	srv := newFragmentServer(t, newTestApp(fragment.Header))

	resp, err := http.Post(srv.URL+"/api/notifications/clear", "application/json", strings.NewReader(`{"session":"shell-1"}`))
	if err != nil {
		t.Fatalf("POST error = %v", err)
	}
	var out map[string]int
	err = json.NewDecoder(resp.Body).Decode(&out)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out["notifications"] != 0 {
		t.Errorf("notifications = %d, want 0", out["notifications"])
	}

	cleared := postFragment(t, srv.URL, `{"session":"shell-1"}`)
	other := postFragment(t, srv.URL, `{"session":"shell-2"}`)
	if strings.Contains(cleared, `class="badge"`) {
		t.Error("cleared session still shows a badge")
	}
	if !strings.Contains(other, `<span class="badge">3</span>`) {
		t.Error("other sessions keep their badge")
	}
}

func postFragment(t *testing.T, base, props string) string {
	t.Helper()
	resp, err := http.Post(base+"/fragments/Header", "application/json", strings.NewReader(props))
	if err != nil {
		t.Fatalf("POST error = %v", err)
	}
	defer resp.Body.Close()
	return readBody(t, resp)
}

func TestHeaderApp_StandaloneClearForm(t *testing.T) {
	srv := newFragmentServer(t, newTestApp(fragment.Header))
	browser := newBrowser(t)

	page := getBody(t, browser, srv.URL+"/")
	if !strings.Contains(page, "Ana García") || !strings.Contains(page, "Notificaciones iniciales: 3") {
		t.Error("standalone header should show the demo user and the demo card")
	}

	resp, err := browser.PostForm(srv.URL+"/notifications/clear", nil)
	if err != nil {
		t.Fatalf("POST error = %v", err)
	}
	body := readBody(t, resp)
	resp.Body.Close()
	if strings.Contains(body, `<span class="badge">`) {
		t.Error("badge should be gone after clearing")
	}
}
