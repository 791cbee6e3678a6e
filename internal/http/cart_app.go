package http

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"math/rand"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kjstillabower/microstore/internal/cart"
	"github.com/kjstillabower/microstore/internal/fragment"
	"github.com/kjstillabower/microstore/internal/models"
	"github.com/kjstillabower/microstore/internal/observability"
	"github.com/kjstillabower/microstore/internal/store"
)

// Cart button variants.
const (
	VariantDefault  = "default"
	VariantMinimal  = "minimal"
	VariantFloating = "floating"
)

// CartApp serves the cart fragment. Its standalone cart lives in the
// session store, seeded with the demo items.
type CartApp struct {
	sessions      *store.Sessions
	checkoutDelay time.Duration
	port          string
	logger        *zap.Logger
}

func NewCartApp(sessions *store.Sessions, checkoutDelay time.Duration, port string, logger *zap.Logger) *CartApp {
	return &CartApp{sessions: sessions, checkoutDelay: checkoutDelay, port: port, logger: logger}
}

func (a *CartApp) Name() string { return fragment.Cart }

type cartData struct {
	Items    []models.CartItem
	Summary  models.CartSummary
	Embedded bool
	Message  string
	Port     string
}

type cartButtonData struct {
	ItemCount int
	Variant   string
	Embedded  bool
}

// RenderView renders Cart from props.Items and CartButton from props.ItemCount
// (or the item quantities when no count is given). Invalid lines are dropped.
func (a *CartApp) RenderView(r *http.Request, view string, props fragment.Props) (template.HTML, error) {
	items := cart.New(props.Items).Items()
	switch view {
	case fragment.ViewCart:
		return renderView(fragment.ViewCart, cartData{
			Items:    items,
			Summary:  cart.Summarize(items),
			Embedded: props.Embedded,
			Message:  props.Message,
			Port:     a.port,
		})
	case fragment.ViewCartButton:
		count := props.ItemCount
		if count <= 0 {
			count = cart.Summarize(items).ItemCount
		}
		return renderView(fragment.ViewCartButton, cartButtonData{
			ItemCount: count,
			Variant:   normalizeVariant(props.Variant),
			Embedded:  props.Embedded,
		})
	}
	return "", fmt.Errorf("%w: %s", fragment.ErrViewNotFound, view)
}

func normalizeVariant(v string) string {
	switch v {
	case VariantMinimal, VariantFloating:
		return v
	}
	return VariantDefault
}

// load returns the caller's standalone cart. A session that never saved a
// cart starts with the demo items.
func (a *CartApp) load(ctx context.Context, sid string) *cart.Cart {
	items := a.sessions.Cart(ctx, sid)
	if items == nil {
		items = cart.DemoItems()
	}
	return cart.New(items)
}

func (a *CartApp) save(ctx context.Context, sid string, c *cart.Cart) error {
	return a.sessions.SaveCart(ctx, sid, c.Items())
}

// Standalone handles GET /: the three button variants above the cart.
func (a *CartApp) Standalone(w http.ResponseWriter, r *http.Request) {
	a.renderStandalone(w, r, "")
}

func (a *CartApp) renderStandalone(w http.ResponseWriter, r *http.Request, message string) {
	c := a.load(r.Context(), sessionID(r))
	items := c.Items()
	var views []template.HTML
	for _, variant := range []string{VariantDefault, VariantMinimal, VariantFloating} {
		html, err := a.RenderView(r, fragment.ViewCartButton, fragment.Props{Items: items, Variant: variant})
		if err != nil {
			a.renderFailed(w, r, err)
			return
		}
		views = append(views, html)
	}
	html, err := a.RenderView(r, fragment.ViewCart, fragment.Props{Items: items, Message: message})
	if err != nil {
		a.renderFailed(w, r, err)
		return
	}
	views = append(views, html)
	writeStandalone(w, r, http.StatusOK, a.logger, standalonePage{
		Icon:  "🛒",
		Title: "Cart Microfrontend",
		Port:  a.port,
		Nav:   []standaloneLink{{Label: "API", Href: "/api/cart"}},
		Views: views,
	})
}

func (a *CartApp) renderFailed(w http.ResponseWriter, r *http.Request, err error) {
	requestLogger(r, a.logger).Error("cart render failed", zap.Error(err))
	writeError(w, r, http.StatusInternalServerError, "RENDER_FAILED", "Unable to render cart")
}

func (a *CartApp) Routes(router *mux.Router) {
	router.HandleFunc("/api/cart", a.GetCart).Methods("GET")
	router.HandleFunc("/api/cart/items", a.AddItem).Methods("POST")
	router.HandleFunc("/api/cart/items/{id}", a.UpdateItem).Methods("PATCH")
	router.HandleFunc("/api/cart/items/{id}", a.RemoveItem).Methods("DELETE")
	router.HandleFunc("/api/cart/checkout", a.PostCheckout).Methods("POST")
	router.HandleFunc("/api/cart/demo-item", a.AddDemoItem).Methods("POST")
	router.HandleFunc("/checkout", a.checkoutForm).Methods("POST")
}

type cartResponse struct {
	Items   []models.CartItem  `json:"items"`
	Summary models.CartSummary `json:"summary"`
}

func newCartResponse(c *cart.Cart) cartResponse {
	items := c.Items()
	if items == nil {
		items = []models.CartItem{}
	}
	return cartResponse{Items: items, Summary: c.Summary()}
}

// GetCart handles GET /api/cart.
func (a *CartApp) GetCart(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newCartResponse(a.load(r.Context(), sessionID(r))))
}

// AddItem handles POST /api/cart/items. A line with an existing ID gains the
// posted quantity.
func (a *CartApp) AddItem(w http.ResponseWriter, r *http.Request) {
	var item models.CartItem
	if err := decodeJSON(r, &item); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_REQUEST", "request body must be a cart item")
		return
	}
	a.mutate(w, r, "add", func(c *cart.Cart) error { return c.Add(item) })
}

// UpdateItem handles PATCH /api/cart/items/{id} with {"quantity": n}.
// A quantity of zero or less removes the line.
func (a *CartApp) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Quantity *int `json:"quantity"`
	}
	if err := decodeJSON(r, &body); err != nil || body.Quantity == nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_REQUEST", "quantity is required")
		return
	}
	id := mux.Vars(r)["id"]
	a.mutate(w, r, "update", func(c *cart.Cart) error { return c.UpdateQuantity(id, *body.Quantity) })
}

// RemoveItem handles DELETE /api/cart/items/{id}.
func (a *CartApp) RemoveItem(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	a.mutate(w, r, "remove", func(c *cart.Cart) error { return c.Remove(id) })
}

// AddDemoItem handles POST /api/cart/demo-item, adding one of the extra demo products.
func (a *CartApp) AddDemoItem(w http.ResponseWriter, r *http.Request) {
	extras := cart.ExtraDemoItems()
	item := extras[rand.Intn(len(extras))]
	a.mutate(w, r, "add", func(c *cart.Cart) error { return c.Add(item) })
}

func (a *CartApp) mutate(w http.ResponseWriter, r *http.Request, op string, fn func(*cart.Cart) error) {
	ctx := r.Context()
	sid := sessionID(r)
	c := a.load(ctx, sid)
	if err := fn(c); err != nil {
		writeCartError(w, r, err)
		return
	}
	if err := a.save(ctx, sid, c); err != nil {
		requestLogger(r, a.logger).Error("cart save failed", zap.String("operation", op), zap.Error(err))
		writeError(w, r, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "Unable to save cart")
		return
	}
	observability.CartOperationsTotal.WithLabelValues(op).Inc()
	writeJSON(w, http.StatusOK, newCartResponse(c))
}

func writeCartError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, cart.ErrItemNotFound):
		writeError(w, r, http.StatusNotFound, "ITEM_NOT_FOUND", "cart item not found")
	case errors.Is(err, cart.ErrInvalidItem):
		writeError(w, r, http.StatusBadRequest, "INVALID_ITEM", "cart lines need an id, a positive quantity and a non-negative price")
	case errors.Is(err, cart.ErrEmptyCart):
		writeError(w, r, http.StatusBadRequest, "EMPTY_CART", "cart is empty")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, r, http.StatusServiceUnavailable, "TIMEOUT", "Request timed out")
	default:
		writeError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred")
	}
}

// PostCheckout handles POST /api/cart/checkout. When the body carries items
// (the shell's cart) those are checked out; otherwise the caller's standalone
// cart is checked out and emptied.
func (a *CartApp) PostCheckout(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Items []models.CartItem `json:"items"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_REQUEST", "request body must be JSON")
		return
	}
	items, own := body.Items, false
	if items == nil {
		items, own = a.load(r.Context(), sessionID(r)).Items(), true
	}
	receipt, err := a.checkout(r.Context(), items)
	if err != nil {
		writeCartError(w, r, err)
		return
	}
	if own {
		a.clearSaved(r)
	}
	writeJSON(w, http.StatusOK, receipt)
}

func (a *CartApp) checkoutForm(w http.ResponseWriter, r *http.Request) {
	receipt, err := a.checkout(r.Context(), a.load(r.Context(), sessionID(r)).Items())
	if err != nil {
		a.renderStandalone(w, r, "No se pudo completar la compra")
		return
	}
	a.clearSaved(r)
	a.renderStandalone(w, r, checkoutMessage(receipt))
}

func (a *CartApp) checkout(ctx context.Context, items []models.CartItem) (models.Receipt, error) {
	receipt, err := cart.Checkout(ctx, items, a.checkoutDelay)
	switch {
	case err == nil:
		observability.CheckoutsTotal.WithLabelValues("success").Inc()
	case errors.Is(err, cart.ErrEmptyCart):
		observability.CheckoutsTotal.WithLabelValues("empty").Inc()
	case errors.Is(err, cart.ErrInvalidItem):
		observability.CheckoutsTotal.WithLabelValues("invalid").Inc()
	default:
		observability.CheckoutsTotal.WithLabelValues("cancelled").Inc()
	}
	return receipt, err
}

func (a *CartApp) clearSaved(r *http.Request) {
	if err := a.sessions.SaveCart(r.Context(), sessionID(r), nil); err != nil {
		requestLogger(r, a.logger).Warn("cart clear after checkout failed", zap.Error(err))
	}
}

// checkoutMessage is the confirmation shown after a simulated purchase.
func checkoutMessage(receipt models.Receipt) string {
	return fmt.Sprintf("🎉 ¡Compra realizada con éxito! Total: $%.2f (pedido %s)", receipt.Summary.Total, receipt.OrderID)
}
