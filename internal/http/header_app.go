package http

import (
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kjstillabower/microstore/internal/account"
	"github.com/kjstillabower/microstore/internal/fragment"
	"github.com/kjstillabower/microstore/internal/header"
	"github.com/kjstillabower/microstore/internal/models"
)

// HeaderApp serves the header fragment.
type HeaderApp struct {
	notifications *header.Notifications
	port          string
	logger        *zap.Logger
	now           func() time.Time
}

func NewHeaderApp(port string, logger *zap.Logger) *HeaderApp {
	return &HeaderApp{
		notifications: header.NewNotifications(header.DefaultNotificationTTL),
		port:          port,
		logger:        logger,
		now:           time.Now,
	}
}

func (a *HeaderApp) Name() string { return fragment.Header }

type headerData struct {
	View     header.View
	Embedded bool
}

// RenderView renders the Header view. The badge count is keyed by the shell
// session carried in props, or by this server's own session when standalone.
func (a *HeaderApp) RenderView(r *http.Request, view string, props fragment.Props) (template.HTML, error) {
	if view != fragment.ViewHeader {
		return "", fmt.Errorf("%w: %s", fragment.ErrViewNotFound, view)
	}
	n := a.notifications.Count(a.session(r, props.Session))
	return renderView(fragment.ViewHeader, headerData{
		View:     header.Build(props.User, n, a.now()),
		Embedded: props.Embedded,
	})
}

func (a *HeaderApp) session(r *http.Request, fromProps string) string {
	if fromProps != "" {
		return fromProps
	}
	return sessionID(r)
}

// Standalone handles GET / with the demo user logged in.
func (a *HeaderApp) Standalone(w http.ResponseWriter, r *http.Request) {
	user := account.DemoUser()
	html, err := a.RenderView(r, fragment.ViewHeader, fragment.Props{User: &user})
	if err != nil {
		requestLogger(r, a.logger).Error("header render failed", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "RENDER_FAILED", "Unable to render header")
		return
	}
	writeStandalone(w, r, http.StatusOK, a.logger, standalonePage{
		Icon:  "🎯",
		Title: "Header Microfrontend",
		Port:  a.port,
		Views: []template.HTML{html, a.demoCard(user)},
	})
}

func (a *HeaderApp) demoCard(user models.User) template.HTML {
	return template.HTML(fmt.Sprintf(`<section class="demo-info"><p>Usuario demo: %s</p><p>Notificaciones iniciales: %d</p></section>`,
		template.HTMLEscapeString(user.Name), header.InitialNotifications))
}

func (a *HeaderApp) Routes(router *mux.Router) {
	router.HandleFunc("/api/notifications/clear", a.ClearNotifications).Methods("POST")
	router.HandleFunc("/notifications/clear", a.clearNotificationsForm).Methods("POST")
}

// ClearNotifications handles POST /api/notifications/clear. The body may name
// the session to clear; otherwise the caller's own session is used.
func (a *HeaderApp) ClearNotifications(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Session string `json:"session"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_REQUEST", "request body must be JSON")
		return
	}
	sid := a.session(r, body.Session)
	a.notifications.Clear(sid)
	writeJSON(w, http.StatusOK, map[string]interface{}{"notifications": a.notifications.Count(sid)})
}

func (a *HeaderApp) clearNotificationsForm(w http.ResponseWriter, r *http.Request) {
	a.notifications.Clear(sessionID(r))
	redirectHome(w, r)
}
