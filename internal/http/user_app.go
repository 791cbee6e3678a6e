package http

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kjstillabower/microstore/internal/account"
	"github.com/kjstillabower/microstore/internal/fragment"
	"github.com/kjstillabower/microstore/internal/models"
	"github.com/kjstillabower/microstore/internal/observability"
	"github.com/kjstillabower/microstore/internal/store"
	"github.com/kjstillabower/microstore/internal/validation"
)

// UserApp serves the user fragment: login, profile and settings.
type UserApp struct {
	sessions  *store.Sessions
	saveDelay time.Duration
	port      string
	logger    *zap.Logger
}

func NewUserApp(sessions *store.Sessions, saveDelay time.Duration, port string, logger *zap.Logger) *UserApp {
	return &UserApp{sessions: sessions, saveDelay: saveDelay, port: port, logger: logger}
}

func (a *UserApp) Name() string { return fragment.User }

type userData struct {
	User         *models.User
	Prefs        models.UserPreferences
	Themes       []string
	Languages    []string
	Message      string
	Error        string
	Email        string
	Embedded     bool
	DemoEmail    string
	DemoPassword string
	// SettingsOnly is set when UserSettings renders outside the profile.
	SettingsOnly bool
}

func newUserData(user *models.User, props fragment.Props) userData {
	email, password := account.DemoCredentials()
	d := userData{
		User:         user,
		Prefs:        account.DefaultPreferences(),
		Themes:       account.Themes(),
		Languages:    account.Languages(),
		Message:      props.Message,
		Error:        props.Error,
		Embedded:     props.Embedded,
		DemoEmail:    email,
		DemoPassword: password,
	}
	if user != nil && user.Preferences != nil {
		d.Prefs = *user.Preferences
	}
	return d
}

// RenderView renders Login, Profile or UserSettings.
func (a *UserApp) RenderView(r *http.Request, view string, props fragment.Props) (template.HTML, error) {
	switch view {
	case fragment.ViewLogin, fragment.ViewProfile, fragment.ViewUserSettings:
		d := newUserData(props.User, props)
		d.SettingsOnly = view == fragment.ViewUserSettings
		return renderView(view, d)
	}
	return "", fmt.Errorf("%w: %s", fragment.ErrViewNotFound, view)
}

// Standalone handles GET /: the profile when logged in, otherwise the login form.
func (a *UserApp) Standalone(w http.ResponseWriter, r *http.Request) {
	if a.sessions.User(r.Context(), sessionID(r)) != nil {
		a.renderStandalone(w, r, http.StatusOK, fragment.ViewProfile, fragment.Props{})
		return
	}
	a.renderStandalone(w, r, http.StatusOK, fragment.ViewLogin, fragment.Props{})
}

func (a *UserApp) renderStandalone(w http.ResponseWriter, r *http.Request, status int, view string, props fragment.Props) {
	props.User = a.sessions.User(r.Context(), sessionID(r))
	html, err := a.RenderView(r, view, props)
	if err != nil {
		requestLogger(r, a.logger).Error("user render failed", zap.String("view", view), zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "RENDER_FAILED", "Unable to render "+view)
		return
	}
	writeStandalone(w, r, status, a.logger, standalonePage{
		Icon:  "👤",
		Title: "User Microfrontend",
		Port:  a.port,
		Nav: []standaloneLink{
			{Label: "Login", Href: "/login"},
			{Label: "Perfil", Href: "/profile"},
			{Label: "Configuración", Href: "/settings"},
		},
		Views: []template.HTML{html},
	})
}

func (a *UserApp) Routes(router *mux.Router) {
	router.HandleFunc("/api/login", a.PostLogin).Methods("POST")
	router.HandleFunc("/api/profile", a.PutProfile).Methods("PUT")
	router.HandleFunc("/api/preferences", a.PutPreferences).Methods("PUT")

	router.HandleFunc("/login", a.showView(fragment.ViewLogin)).Methods("GET")
	router.HandleFunc("/profile", a.showView(fragment.ViewProfile)).Methods("GET")
	router.HandleFunc("/settings", a.showView(fragment.ViewUserSettings)).Methods("GET")
	router.HandleFunc("/login", a.loginForm).Methods("POST")
	router.HandleFunc("/profile", a.profileForm).Methods("POST")
	router.HandleFunc("/settings", a.settingsForm).Methods("POST")
}

func (a *UserApp) showView(view string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a.renderStandalone(w, r, http.StatusOK, view, fragment.Props{})
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// PostLogin handles POST /api/login. The password is compared literally
// against the demo records.
func (a *UserApp) PostLogin(w http.ResponseWriter, r *http.Request) {
	var body loginRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_REQUEST", "request body must be JSON")
		return
	}
	user, err := a.login(r, body.Email, body.Password)
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Credenciales incorrectas")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"user": user})
}

func (a *UserApp) login(r *http.Request, email, password string) (models.User, error) {
	user, err := account.Login(email, password)
	if err != nil {
		observability.LoginAttemptsTotal.WithLabelValues("failure").Inc()
		requestLogger(r, a.logger).Info("login rejected", zap.String("email", validation.Sanitize(email)))
		return models.User{}, err
	}
	observability.LoginAttemptsTotal.WithLabelValues("success").Inc()
	return user, nil
}

func (a *UserApp) loginForm(w http.ResponseWriter, r *http.Request) {
	email := r.PostFormValue("email")
	user, err := a.login(r, email, r.PostFormValue("password"))
	if err != nil {
		a.renderStandalone(w, r, http.StatusUnauthorized, fragment.ViewLogin, fragment.Props{Error: "Credenciales incorrectas"})
		return
	}
	if err := a.sessions.SaveUser(r.Context(), sessionID(r), user); err != nil {
		requestLogger(r, a.logger).Error("user save failed", zap.Error(err))
	}
	http.Redirect(w, r, "/profile", http.StatusSeeOther)
}

type profileRequest struct {
	User  models.User `json:"user"`
	Name  string      `json:"name"`
	Email string      `json:"email"`
}

// PutProfile handles PUT /api/profile and returns the edited user.
func (a *UserApp) PutProfile(w http.ResponseWriter, r *http.Request) {
	var body profileRequest
	if err := decodeJSON(r, &body); err != nil || body.User.ID == "" {
		writeError(w, r, http.StatusBadRequest, "INVALID_REQUEST", "user, name and email are required")
		return
	}
	user, msg, err := account.UpdateProfile(body.User, body.Name, body.Email)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_PROFILE", profileErrorMessage(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"user": user, "message": msg})
}

func (a *UserApp) profileForm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	current := a.sessions.User(ctx, sessionID(r))
	if current == nil {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	user, msg, err := account.UpdateProfile(*current, r.PostFormValue("name"), r.PostFormValue("email"))
	if err != nil {
		a.renderStandalone(w, r, http.StatusBadRequest, fragment.ViewProfile, fragment.Props{Error: profileErrorMessage(err)})
		return
	}
	if err := a.sessions.SaveUser(ctx, sessionID(r), user); err != nil {
		requestLogger(r, a.logger).Error("user save failed", zap.Error(err))
	}
	a.renderStandalone(w, r, http.StatusOK, fragment.ViewProfile, fragment.Props{Message: msg})
}

// profileErrorMessage is the message shown for a rejected profile edit.
func profileErrorMessage(err error) string {
	switch {
	case errors.Is(err, validation.ErrNameEmpty):
		return "El nombre es obligatorio"
	case errors.Is(err, validation.ErrNameTooLong):
		return "El nombre es demasiado largo"
	case errors.Is(err, validation.ErrNameInvalidChars):
		return "El nombre contiene caracteres no válidos"
	case errors.Is(err, validation.ErrEmailInvalid):
		return "El email no es válido"
	}
	return "No se pudo actualizar el perfil"
}

type preferencesRequest struct {
	User        models.User            `json:"user"`
	Preferences models.UserPreferences `json:"preferences"`
}

// PutPreferences handles PUT /api/preferences. The save is simulated with a delay.
func (a *UserApp) PutPreferences(w http.ResponseWriter, r *http.Request) {
	var body preferencesRequest
	if err := decodeJSON(r, &body); err != nil || body.User.ID == "" {
		writeError(w, r, http.StatusBadRequest, "INVALID_REQUEST", "user and preferences are required")
		return
	}
	user, err := account.UpdatePreferences(r.Context(), body.User, body.Preferences, a.saveDelay)
	if err != nil {
		writePreferencesError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"user": user, "message": preferencesSaved})
}

const preferencesSaved = "✅ Preferencias guardadas"

func writePreferencesError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, account.ErrInvalidPreference):
		writeError(w, r, http.StatusBadRequest, "INVALID_PREFERENCES", err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, r, http.StatusServiceUnavailable, "TIMEOUT", "Request timed out")
	default:
		writeError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred")
	}
}

func (a *UserApp) settingsForm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	current := a.sessions.User(ctx, sessionID(r))
	if current == nil {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	user, err := account.UpdatePreferences(ctx, *current, preferencesFromForm(r), a.saveDelay)
	if err != nil {
		a.renderStandalone(w, r, http.StatusBadRequest, fragment.ViewUserSettings, fragment.Props{Error: "Preferencias no válidas"})
		return
	}
	if err := a.sessions.SaveUser(ctx, sessionID(r), user); err != nil {
		requestLogger(r, a.logger).Error("user save failed", zap.Error(err))
	}
	a.renderStandalone(w, r, http.StatusOK, fragment.ViewUserSettings, fragment.Props{Message: preferencesSaved})
}

// preferencesFromForm reads the settings form. reset=1 restores the defaults.
func preferencesFromForm(r *http.Request) models.UserPreferences {
	if r.PostFormValue("reset") == "1" {
		return account.DefaultPreferences()
	}
	checked := func(name string) bool { return r.PostFormValue(name) == "1" }
	return models.UserPreferences{
		Theme:             r.PostFormValue("theme"),
		Language:          r.PostFormValue("language"),
		Notifications:     checked("notifications"),
		EmailUpdates:      checked("emailUpdates"),
		PushNotifications: checked("pushNotifications"),
		MarketingEmails:   checked("marketingEmails"),
	}
}
