package http

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"math/rand"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kjstillabower/microstore/internal/account"
	"github.com/kjstillabower/microstore/internal/cart"
	"github.com/kjstillabower/microstore/internal/fragment"
	"github.com/kjstillabower/microstore/internal/models"
	"github.com/kjstillabower/microstore/internal/store"
	"github.com/kjstillabower/microstore/internal/traffic"
)

// RemoteCaller issues JSON API calls to fragment remotes.
type RemoteCaller interface {
	Call(ctx context.Context, fragment, method, path string, in, out any) error
}

// RemoteStatuses reports the last probe result of each remote.
type RemoteStatuses interface {
	Snapshot() []models.RemoteStatus
	Reachable(name string) bool
}

// ShellConfig holds what the shell shows about itself and its remotes.
type ShellConfig struct {
	Port string
	// Remotes maps fragment names to base URLs.
	Remotes map[string]string
	// StatusWindow is the traffic window reported by GET /status.
	StatusWindow time.Duration
}

// Shell composes the page from the fragment remotes and handles its form actions.
type Shell struct {
	boundary *fragment.Boundary
	remotes  RemoteCaller
	statuses RemoteStatuses
	sessions *store.Sessions
	cfg      ShellConfig
	logger   *zap.Logger
	// price returns the placeholder price used when the products remote is down.
	price func() float64
}

func NewShell(
	boundary *fragment.Boundary,
	remotes RemoteCaller,
	statuses RemoteStatuses,
	sessions *store.Sessions,
	cfg ShellConfig,
	logger *zap.Logger,
) *Shell {
	if cfg.StatusWindow <= 0 {
		cfg.StatusWindow = time.Minute
	}
	return &Shell{
		boundary: boundary,
		remotes:  remotes,
		statuses: statuses,
		sessions: sessions,
		cfg:      cfg,
		logger:   logger,
		price:    func() float64 { return float64(rand.Intn(100) + 10) },
	}
}

type categoryOption struct {
	Value    string
	Label    string
	Selected bool
}

var shellCategories = []categoryOption{
	{Value: "all", Label: "Todas las categorías"},
	{Value: "electronics", Label: "Electrónicos"},
	{Value: "clothing", Label: "Ropa"},
	{Value: "books", Label: "Libros"},
}

type archCard struct {
	Icon        string
	Title       string
	Port        string
	Description string
	Remote      bool
	Reachable   bool
}

type shellData struct {
	Header       template.HTML
	CartButton   template.HTML
	Login        template.HTML
	Main         template.HTML
	Cart         template.HTML
	User         *models.User
	UI           store.UIState
	Categories   []categoryOption
	Notice       string
	Architecture []archCard
}

// Home handles GET /. The fragments for the session's current state load in
// parallel; each failed load is replaced by its fallback.
func (s *Shell) Home(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sid := sessionID(r)
	user := s.sessions.User(ctx, sid)
	items := s.sessions.Cart(ctx, sid)
	ui := s.sessions.UI(ctx, sid)

	if ui.Notice != "" || ui.LoginError != "" {
		cleared := ui
		cleared.Notice, cleared.LoginError = "", ""
		_ = s.sessions.SaveUI(ctx, sid, cleared)
	}

	q := r.URL.Query()
	slots := []fragment.Slot{
		{Ref: fragment.Ref{Fragment: fragment.Header, View: fragment.ViewHeader},
			Props: fragment.Props{Embedded: true, Session: sid, User: user}},
		{Ref: fragment.Ref{Fragment: fragment.Cart, View: fragment.ViewCartButton},
			Props: fragment.Props{Embedded: true, ItemCount: cart.Summarize(items).ItemCount, Variant: VariantDefault}},
	}
	if ui.View == store.ViewProfile && user != nil {
		slots = append(slots, fragment.Slot{Ref: fragment.Ref{Fragment: fragment.User, View: fragment.ViewProfile},
			Props: fragment.Props{Embedded: true, User: user}})
	} else {
		slots = append(slots, fragment.Slot{Ref: fragment.Ref{Fragment: fragment.Products, View: fragment.ViewProductList},
			Props: fragment.Props{
				Embedded:    true,
				Category:    ui.Category,
				Search:      q.Get("search"),
				Sort:        q.Get("sort"),
				InStockOnly: queryBool(q, "inStock"),
			}})
	}
	if user == nil {
		slots = append(slots, fragment.Slot{Ref: fragment.Ref{Fragment: fragment.User, View: fragment.ViewLogin},
			Props: fragment.Props{Embedded: true, Error: ui.LoginError}})
	}
	if ui.CartOpen {
		slots = append(slots, fragment.Slot{Ref: fragment.Ref{Fragment: fragment.Cart, View: fragment.ViewCart},
			Props: fragment.Props{Embedded: true, Items: items, IsOpen: true}})
	}

	data := shellData{
		User:         user,
		UI:           ui,
		Categories:   categoryOptions(ui.Category),
		Notice:       ui.Notice,
		Architecture: s.architecture(),
	}
	for _, res := range fragment.ComposeAll(ctx, s.boundary, slots) {
		switch res.Ref.View {
		case fragment.ViewHeader:
			data.Header = res.HTML
		case fragment.ViewCartButton:
			data.CartButton = res.HTML
		case fragment.ViewLogin:
			data.Login = res.HTML
		case fragment.ViewCart:
			data.Cart = res.HTML
		default:
			data.Main = res.HTML
		}
	}

	body, err := renderView("shell", data)
	if err != nil {
		requestLogger(r, s.logger).Error("shell render failed", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "RENDER_FAILED", "Unable to render page")
		return
	}
	writePage(w, r, http.StatusOK, "MicroStore - Microfrontends Demo", body)
}

func categoryOptions(selected string) []categoryOption {
	out := make([]categoryOption, len(shellCategories))
	for i, c := range shellCategories {
		c.Selected = c.Value == selected
		out[i] = c
	}
	return out
}

func validCategory(v string) bool {
	for _, c := range shellCategories {
		if c.Value == v {
			return true
		}
	}
	return false
}

func (s *Shell) architecture() []archCard {
	cards := []archCard{
		{Icon: "🏠", Title: "Shell (Host)", Port: s.cfg.Port, Description: "Orquesta todos los MF"},
	}
	for _, rc := range []struct {
		name, icon, title, desc string
	}{
		{fragment.Header, "🎯", "Header MF", "Navegación y usuario"},
		{fragment.Products, "🛍️", "Products MF", "Catálogo de productos"},
		{fragment.Cart, "🛒", "Cart MF", "Carrito de compras"},
		{fragment.User, "👤", "User MF", "Autenticación y perfil"},
	} {
		card := archCard{Icon: rc.icon, Title: rc.title, Description: rc.desc, Remote: true}
		if u, err := url.Parse(s.cfg.Remotes[rc.name]); err == nil {
			card.Port = u.Port()
		}
		if s.statuses != nil {
			card.Reachable = s.statuses.Reachable(rc.name)
		}
		cards = append(cards, card)
	}
	return cards
}

// AddToCart handles POST /actions/cart/{productId}. The product comes from the
// products remote; when that is unreachable a placeholder line is added.
func (s *Shell) AddToCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sid := sessionID(r)
	id := mux.Vars(r)["productId"]
	ui := s.sessions.UI(ctx, sid)

	item, notice := s.cartItemFor(ctx, r, id)
	if notice != "" {
		ui.Notice = notice
		s.finish(w, r, sid, ui)
		return
	}
	c := cart.New(s.sessions.Cart(ctx, sid))
	if err := c.Add(item); err != nil {
		ui.Notice = "No se pudo agregar el producto"
		s.finish(w, r, sid, ui)
		return
	}
	if err := s.sessions.SaveCart(ctx, sid, c.Items()); err != nil {
		ui.Notice = "No se pudo guardar el carrito"
	}
	ui.CartOpen = true
	s.finish(w, r, sid, ui)
}

// cartItemFor resolves productID into a cart line. A non-empty notice means
// nothing should be added.
func (s *Shell) cartItemFor(ctx context.Context, r *http.Request, productID string) (models.CartItem, string) {
	var p models.Product
	err := s.remotes.Call(ctx, fragment.Products, http.MethodGet, "/api/products/"+url.PathEscape(productID), nil, &p)
	var se *fragment.StatusError
	switch {
	case err == nil:
		if !p.InStock {
			return models.CartItem{}, fmt.Sprintf("%s está agotado", p.Name)
		}
		return models.CartItem{ID: p.ID, ProductID: p.ID, Name: p.Name, Price: p.Price, Quantity: 1, Image: p.Image}, ""
	case errors.As(err, &se) && se.StatusCode == http.StatusNotFound:
		return models.CartItem{}, "Producto no encontrado"
	default:
		requestLogger(r, s.logger).Warn("product lookup failed, adding placeholder",
			zap.String("product_id", productID), zap.Error(err))
		return models.CartItem{ID: productID, Name: "Producto " + productID, Price: s.price(), Quantity: 1}, ""
	}
}

// DecrementCartItem handles POST /actions/cart/{productId}/decrement.
func (s *Shell) DecrementCartItem(w http.ResponseWriter, r *http.Request) {
	s.editCart(w, r, func(c *cart.Cart, id string) error { return c.Decrement(id) })
}

// RemoveFromCart handles POST /actions/cart/{productId}/remove.
func (s *Shell) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	s.editCart(w, r, func(c *cart.Cart, id string) error { return c.Remove(id) })
}

func (s *Shell) editCart(w http.ResponseWriter, r *http.Request, fn func(*cart.Cart, string) error) {
	ctx := r.Context()
	sid := sessionID(r)
	c := cart.New(s.sessions.Cart(ctx, sid))
	if err := fn(c, mux.Vars(r)["productId"]); err == nil {
		_ = s.sessions.SaveCart(ctx, sid, c.Items())
	}
	redirectHome(w, r)
}

// ToggleCart handles POST /actions/cart/toggle.
func (s *Shell) ToggleCart(w http.ResponseWriter, r *http.Request) {
	sid := sessionID(r)
	ui := s.sessions.UI(r.Context(), sid)
	ui.CartOpen = !ui.CartOpen
	s.finish(w, r, sid, ui)
}

type checkoutRequest struct {
	Items []models.CartItem `json:"items"`
}

// Checkout handles POST /actions/cart/checkout through the cart remote.
func (s *Shell) Checkout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sid := sessionID(r)
	ui := s.sessions.UI(ctx, sid)
	items := s.sessions.Cart(ctx, sid)
	if len(items) == 0 {
		ui.Notice = "Tu carrito está vacío"
		s.finish(w, r, sid, ui)
		return
	}

	var receipt models.Receipt
	err := s.remotes.Call(ctx, fragment.Cart, http.MethodPost, "/api/cart/checkout", checkoutRequest{Items: items}, &receipt)
	if err != nil {
		ui.Notice = s.remoteFailureNotice(r, fragment.Cart, err)
		s.finish(w, r, sid, ui)
		return
	}
	_ = s.sessions.SaveCart(ctx, sid, nil)
	ui.CartOpen = false
	ui.Notice = checkoutMessage(receipt)
	s.finish(w, r, sid, ui)
}

// remoteFailureNotice is the message shown when an action's remote call fails.
func (s *Shell) remoteFailureNotice(r *http.Request, name string, err error) string {
	var se *fragment.StatusError
	if errors.As(err, &se) {
		return se.Message
	}
	requestLogger(r, s.logger).Warn("remote action failed",
		zap.String("fragment", name),
		zap.String("category", string(fragment.CategorizeError(err))),
		zap.Error(err))
	return fmt.Sprintf("❌ %s MF no disponible", remoteLabels[name])
}

var remoteLabels = map[string]string{
	fragment.Header:   "Header",
	fragment.Products: "Product",
	fragment.Cart:     "Cart",
	fragment.User:     "User",
}

type loginResponse struct {
	User models.User `json:"user"`
}

// Login handles POST /actions/login. When the user remote is unreachable, or
// the fallback's demo button was used, the fallback demo user is logged in.
func (s *Shell) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sid := sessionID(r)
	ui := s.sessions.UI(ctx, sid)

	var user models.User
	if r.PostFormValue("demo") == "1" {
		user = account.FallbackUser()
	} else {
		var resp loginResponse
		err := s.remotes.Call(ctx, fragment.User, http.MethodPost, "/api/login",
			loginRequest{Email: r.PostFormValue("email"), Password: r.PostFormValue("password")}, &resp)
		var se *fragment.StatusError
		switch {
		case err == nil:
			user = resp.User
		case errors.As(err, &se):
			ui.LoginError = se.Message
			s.finish(w, r, sid, ui)
			return
		default:
			requestLogger(r, s.logger).Warn("user remote unavailable, logging in fallback user", zap.Error(err))
			user = account.FallbackUser()
		}
	}

	if err := s.sessions.SaveUser(ctx, sid, user); err != nil {
		ui.LoginError = "No se pudo iniciar sesión"
		s.finish(w, r, sid, ui)
		return
	}
	ui.View = store.ViewProducts
	ui.LoginError = ""
	s.finish(w, r, sid, ui)
}

// Logout handles POST /actions/logout.
func (s *Shell) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sid := sessionID(r)
	_ = s.sessions.ClearUser(ctx, sid)
	ui := s.sessions.UI(ctx, sid)
	ui.View = store.ViewProducts
	s.finish(w, r, sid, ui)
}

// Menu handles POST /actions/menu, switching between products and profile.
func (s *Shell) Menu(w http.ResponseWriter, r *http.Request) {
	sid := sessionID(r)
	ui := s.sessions.UI(r.Context(), sid)
	if ui.View == store.ViewProducts {
		ui.View = store.ViewProfile
	} else {
		ui.View = store.ViewProducts
	}
	s.finish(w, r, sid, ui)
}

// SetView handles POST /actions/view/{view}.
func (s *Shell) SetView(w http.ResponseWriter, r *http.Request) {
	view := mux.Vars(r)["view"]
	if view != store.ViewProducts && view != store.ViewProfile {
		writeError(w, r, http.StatusNotFound, "UNKNOWN_VIEW", "unknown view: "+view)
		return
	}
	sid := sessionID(r)
	ui := s.sessions.UI(r.Context(), sid)
	ui.View = view
	s.finish(w, r, sid, ui)
}

// SetCategory handles POST /actions/category. Unknown values select all categories.
func (s *Shell) SetCategory(w http.ResponseWriter, r *http.Request) {
	sid := sessionID(r)
	ui := s.sessions.UI(r.Context(), sid)
	ui.Category = r.PostFormValue("category")
	if !validCategory(ui.Category) {
		ui.Category = "all"
	}
	ui.View = store.ViewProducts
	s.finish(w, r, sid, ui)
}

// ClearNotifications handles POST /actions/notifications/clear through the header remote.
func (s *Shell) ClearNotifications(w http.ResponseWriter, r *http.Request) {
	sid := sessionID(r)
	body := map[string]string{"session": sid}
	if err := s.remotes.Call(r.Context(), fragment.Header, http.MethodPost, "/api/notifications/clear", body, nil); err != nil {
		requestLogger(r, s.logger).Warn("notification clear failed", zap.Error(err))
	}
	redirectHome(w, r)
}

type userResponse struct {
	User    models.User `json:"user"`
	Message string      `json:"message"`
}

// UpdateProfile handles POST /actions/profile through the user remote.
func (s *Shell) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	body := func(u models.User) any {
		return profileRequest{User: u, Name: r.PostFormValue("name"), Email: r.PostFormValue("email")}
	}
	s.updateUser(w, r, "/api/profile", body)
}

// UpdatePreferences handles POST /actions/preferences through the user remote.
func (s *Shell) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	body := func(u models.User) any {
		return preferencesRequest{User: u, Preferences: preferencesFromForm(r)}
	}
	s.updateUser(w, r, "/api/preferences", body)
}

func (s *Shell) updateUser(w http.ResponseWriter, r *http.Request, path string, body func(models.User) any) {
	ctx := r.Context()
	sid := sessionID(r)
	ui := s.sessions.UI(ctx, sid)
	current := s.sessions.User(ctx, sid)
	if current == nil {
		s.finish(w, r, sid, ui)
		return
	}
	var resp userResponse
	if err := s.remotes.Call(ctx, fragment.User, http.MethodPut, path, body(*current), &resp); err != nil {
		ui.Notice = s.remoteFailureNotice(r, fragment.User, err)
		s.finish(w, r, sid, ui)
		return
	}
	if err := s.sessions.SaveUser(ctx, sid, resp.User); err != nil {
		ui.Notice = "No se pudo guardar el perfil"
	} else {
		ui.Notice = resp.Message
	}
	ui.View = store.ViewProfile
	s.finish(w, r, sid, ui)
}

// finish saves the presentation state and sends the browser back to the page.
func (s *Shell) finish(w http.ResponseWriter, r *http.Request, sid string, ui store.UIState) {
	if err := s.sessions.SaveUI(r.Context(), sid, ui); err != nil {
		requestLogger(r, s.logger).Warn("ui state not saved", zap.Error(err))
	}
	redirectHome(w, r)
}

// GetStatus handles GET /status: remote reachability and per-fragment
// render outcomes in the status window.
func (s *Shell) GetStatus(w http.ResponseWriter, r *http.Request) {
	remotes := []models.RemoteStatus{}
	if s.statuses != nil {
		remotes = s.statuses.Snapshot()
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"remotes":   remotes,
		"fragments": traffic.ByFragment(s.cfg.StatusWindow),
		"window":    s.cfg.StatusWindow.String(),
	})
}
