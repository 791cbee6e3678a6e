// Package header builds the header fragment's view model: navigation, search
// box, notification badge, user menu and clock.
package header

import (
	"strings"
	"sync"
	"time"

	"github.com/kjstillabower/microstore/internal/models"
)

// InitialNotifications is the static badge count shown until cleared.
const InitialNotifications = 3

// NavItem is one entry of the main navigation.
type NavItem struct {
	Label string
	Icon  string
	// Menu marks the entry wired to the host's menu callback.
	Menu bool
}

// View is everything the header template needs.
type View struct {
	Nav           []NavItem
	UserMenu      []NavItem
	User          *models.User
	Initial       string
	Notifications int
	Time          string
	Standalone    bool
}

var nav = []NavItem{
	{Label: "Inicio", Icon: "🏠", Menu: true},
	{Label: "Productos", Icon: "🛍️"},
	{Label: "Analytics", Icon: "📊"},
	{Label: "Configuración", Icon: "⚙️"},
}

var userMenu = []NavItem{
	{Label: "Mi Perfil", Icon: "👤"},
	{Label: "Configuración", Icon: "⚙️"},
	{Label: "Tema", Icon: "🎨"},
	{Label: "Cerrar Sesión", Icon: "🚪"},
}

// DefaultNotificationTTL matches the session cookie lifetime.
const DefaultNotificationTTL = 24 * time.Hour

// Notifications tracks the badge count per session. A cleared session stays at
// zero until ttl passes; expired entries are pruned on Clear.
type Notifications struct {
	mu      sync.Mutex
	cleared map[string]time.Time
	ttl     time.Duration
	now     func() time.Time
}

// NewNotifications returns a tracker whose cleared marks last ttl
// (DefaultNotificationTTL when ttl <= 0).
func NewNotifications(ttl time.Duration) *Notifications {
	if ttl <= 0 {
		ttl = DefaultNotificationTTL
	}
	return &Notifications{cleared: make(map[string]time.Time), ttl: ttl, now: time.Now}
}

// Count returns the badge count for session.
func (n *Notifications) Count(session string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	if exp, ok := n.cleared[session]; ok && n.now().Before(exp) {
		return 0
	}
	return InitialNotifications
}

// Clear sets the badge for session to zero.
func (n *Notifications) Clear(session string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	now := n.now()
	for id, exp := range n.cleared {
		if !now.Before(exp) {
			delete(n.cleared, id)
		}
	}
	n.cleared[session] = now.Add(n.ttl)
}

// Len reports how many sessions are tracked.
func (n *Notifications) Len() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.cleared)
}

// Build assembles the header view for user (nil when logged out) at now.
func Build(user *models.User, notifications int, now time.Time) View {
	v := View{
		Nav:           append([]NavItem(nil), nav...),
		User:          user,
		Notifications: notifications,
		Time:          now.Format("15:04:05"),
	}
	if user != nil {
		v.UserMenu = append([]NavItem(nil), userMenu...)
		v.Initial = initial(*user)
	}
	return v
}

// initial is the avatar glyph, or the upper-cased first letter of the name.
func initial(u models.User) string {
	if u.Avatar != "" {
		return u.Avatar
	}
	for _, r := range strings.TrimSpace(u.Name) {
		return strings.ToUpper(string(r))
	}
	return "?"
}
