// Package account implements the user fragment: demo login, profile edits and
// preference changes. Nothing is persisted beyond the caller's session store.
package account

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kjstillabower/microstore/internal/models"
	"github.com/kjstillabower/microstore/internal/validation"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidPreference  = errors.New("invalid preference")
)

// DefaultSaveDelay mirrors the demo's simulated preference save.
const DefaultSaveDelay = time.Second

var (
	themes    = []string{"light", "dark", "auto"}
	languages = []string{"es", "en", "pt", "fr"}
)

type demoRecord struct {
	password string
	user     models.User
}

var demoUsers = []demoRecord{
	{
		password: "admin123",
		user: models.User{
			ID:     "1",
			Name:   "Nacho RS",
			Email:  "nacho@microfrontends.dev",
			Avatar: "👤",
			Role:   "Admin",
		},
	},
	{
		password: "demo123",
		user: models.User{
			ID:     "2",
			Name:   "Ana García",
			Email:  "ana@microstore.com",
			Avatar: "👩‍💼",
			Role:   "Premium User",
		},
	},
}

// DemoCredentials returns the email and password prefilled in the login form.
func DemoCredentials() (email, password string) {
	return demoUsers[0].user.Email, demoUsers[0].password
}

// DemoUser returns the standalone header/profile user.
func DemoUser() models.User {
	return withDefaults(demoUsers[1].user)
}

// FallbackUser is logged in by the shell when the user remote is unavailable.
func FallbackUser() models.User {
	return models.User{ID: "1", Name: "Demo User", Email: "demo@example.com"}
}

// Login matches email (case-insensitive) against the demo records and compares
// the password as a literal string.
func Login(email, password string) (models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	for _, rec := range demoUsers {
		if rec.user.Email == email && rec.password == password {
			return withDefaults(rec.user), nil
		}
	}
	return models.User{}, ErrInvalidCredentials
}

// Lookup returns the demo user with id.
func Lookup(id string) (models.User, bool) {
	for _, rec := range demoUsers {
		if rec.user.ID == id {
			return withDefaults(rec.user), true
		}
	}
	return models.User{}, false
}

// DefaultPreferences returns the preferences a new session starts with.
func DefaultPreferences() models.UserPreferences {
	return models.UserPreferences{
		Theme:             "light",
		Language:          "es",
		Notifications:     true,
		EmailUpdates:      true,
		PushNotifications: true,
		MarketingEmails:   false,
	}
}

// UpdateProfile validates name and email and returns the edited user together
// with the confirmation shown to the user.
func UpdateProfile(user models.User, name, email string) (models.User, string, error) {
	n, err := validation.ValidateName(validation.Sanitize(name))
	if err != nil {
		return models.User{}, "", fmt.Errorf("update profile: %w", err)
	}
	e, err := validation.ValidateEmail(email)
	if err != nil {
		return models.User{}, "", fmt.Errorf("update profile: %w", err)
	}
	user.Name = n
	user.Email = e
	return user, "✅ Perfil actualizado correctamente", nil
}

// ValidatePreferences checks theme and language against the supported values.
func ValidatePreferences(p models.UserPreferences) error {
	if !contains(themes, p.Theme) {
		return fmt.Errorf("%w: theme %q", ErrInvalidPreference, p.Theme)
	}
	if !contains(languages, p.Language) {
		return fmt.Errorf("%w: language %q", ErrInvalidPreference, p.Language)
	}
	return nil
}

// UpdatePreferences validates prefs, waits the simulated save delay and
// returns the user carrying the new preferences.
func UpdatePreferences(ctx context.Context, user models.User, prefs models.UserPreferences, delay time.Duration) (models.User, error) {
	if err := ValidatePreferences(prefs); err != nil {
		return models.User{}, err
	}
	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return models.User{}, ctx.Err()
		case <-timer.C:
		}
	}
	p := prefs
	user.Preferences = &p
	return user, nil
}

// Themes and Languages list the supported preference values.
func Themes() []string    { return append([]string(nil), themes...) }
func Languages() []string { return append([]string(nil), languages...) }

func withDefaults(u models.User) models.User {
	if u.Preferences == nil {
		p := DefaultPreferences()
		u.Preferences = &p
	}
	return u
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
