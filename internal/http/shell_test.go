package http

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/kjstillabower/microstore/internal/fragment"
	"github.com/kjstillabower/microstore/internal/traffic"
)

func TestShell_Home_ComposesAllFragments(t *testing.T) {
	resetGlobals(t)
	stack := newTestStack(t)

	body := stack.page(t)
	for _, want := range []string{
		`data-fragment="header"`,
		`data-fragment="products"`,
		`class="cart-button cart-button-default"`,
		`data-fragment="user"`,
		"🔐 Iniciar Sesión",
		"🏗️ Arquitectura de Microfrontends",
		"🟢 disponible",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}
	if strings.Contains(body, `class="mf-fallback`) {
		t.Error("page rendered a fallback with every remote up")
	}
	if strings.Contains(body, `class="modal"`) {
		t.Error("cart modal rendered while closed")
	}
}

func TestShell_Home_FallbacksWhenRemotesDown(t *testing.T) {
	resetGlobals(t)
	stack := newTestStack(t, fragment.Header, fragment.Products, fragment.Cart, fragment.User)

	body := stack.page(t)
	for _, want := range []string{
		"❌ Header MF no disponible",
		"❌ Product MF no disponible",
		"Cart (0)",
		"⚠️ Login MF no disponible",
		"Login Demo",
		"🔴 no disponible",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing fallback %q", want)
		}
	}

	fallbacks, total := traffic.FallbackRate(time.Minute)
	if fallbacks != 4 || total != 4 {
		t.Errorf("FallbackRate() = %d/%d, want 4/4", fallbacks, total)
	}
}

func TestShell_Home_OneRemoteDownDoesNotAffectOthers(t *testing.T) {
	resetGlobals(t)
	stack := newTestStack(t, fragment.Header)

	body := stack.page(t)
	if !strings.Contains(body, "❌ Header MF no disponible") {
		t.Error("header fallback missing")
	}
	if !strings.Contains(body, "🛍️ Catálogo de Productos") {
		t.Error("product list should still render")
	}
}

func TestShell_AddToCart_UsesProductsRemote(t *testing.T) {
	resetGlobals(t)
	stack := newTestStack(t)

	body := stack.post(t, "/actions/cart/2", nil)
	if !strings.Contains(body, `class="modal"`) {
		t.Fatal("cart should open after adding")
	}
	if !strings.Contains(body, "iPhone 15 Pro Max") {
		t.Error("cart missing product name from the catalog")
	}
	if !strings.Contains(body, "$1199.00 cada uno") {
		t.Error("cart missing catalog price")
	}

	body = stack.post(t, "/actions/cart/2", nil)
	if !strings.Contains(body, `<span class="badge">2</span>`) {
		t.Error("cart button badge should count 2 units after adding twice")
	}
}

func TestShell_AddToCart_PlaceholderWhenProductsDown(t *testing.T) {
	resetGlobals(t)
	stack := newTestStack(t, fragment.Products)

	body := stack.post(t, "/actions/cart/9", nil)
	if !strings.Contains(body, "Producto 9") {
		t.Error("placeholder line missing")
	}
	if !strings.Contains(body, "$42.00 cada uno") {
		t.Error("placeholder price missing")
	}
}

func TestShell_AddToCart_OutOfStockAndUnknown(t *testing.T) {
	resetGlobals(t)
	stack := newTestStack(t)

	body := stack.post(t, "/actions/cart/4", nil)
	if !strings.Contains(body, "Apple Watch Ultra está agotado") {
		t.Error("out of stock notice missing")
	}
	body = stack.post(t, "/actions/cart/404", nil)
	if !strings.Contains(body, "Producto no encontrado") {
		t.Error("not found notice missing")
	}
	if strings.Contains(body, `class="modal"`) {
		t.Error("cart should stay closed when nothing was added")
	}
}

func TestShell_CartEditing(t *testing.T) {
	resetGlobals(t)
	stack := newTestStack(t)

	stack.post(t, "/actions/cart/3", nil)
	stack.post(t, "/actions/cart/3", nil)
	body := stack.post(t, "/actions/cart/3/decrement", nil)
	if !strings.Contains(body, "1 producto en tu carrito") {
		t.Error("decrement should leave one unit")
	}
	body = stack.post(t, "/actions/cart/3/decrement", nil)
	if !strings.Contains(body, "Carrito vacío") {
		t.Error("removing the last unit should remove the line")
	}

	stack.post(t, "/actions/cart/5", nil)
	body = stack.post(t, "/actions/cart/5/remove", nil)
	if !strings.Contains(body, "Carrito vacío") {
		t.Error("remove should drop the line")
	}

	body = stack.post(t, "/actions/cart/toggle", nil)
	if strings.Contains(body, `class="modal"`) {
		t.Error("toggle should close the open cart")
	}
}

func TestShell_Checkout(t *testing.T) {
	resetGlobals(t)
	stack := newTestStack(t)

	body := stack.post(t, "/actions/cart/checkout", nil)
	if !strings.Contains(body, "Tu carrito está vacío") {
		t.Error("empty checkout notice missing")
	}

	stack.post(t, "/actions/cart/6", nil)
	body = stack.post(t, "/actions/cart/checkout", nil)
	if !strings.Contains(body, "¡Compra realizada con éxito! Total: $218.90") {
		t.Error("checkout confirmation missing")
	}
	if strings.Contains(body, `class="modal"`) {
		t.Error("cart should close after checkout")
	}

	body = stack.post(t, "/actions/cart/toggle", nil)
	if !strings.Contains(body, "Carrito vacío") {
		t.Error("cart should be empty after checkout")
	}
}

func TestShell_Checkout_CartRemoteDown(t *testing.T) {
	resetGlobals(t)
	stack := newTestStack(t, fragment.Cart)

	stack.post(t, "/actions/cart/6", nil)
	body := stack.post(t, "/actions/cart/checkout", nil)
	if !strings.Contains(body, "❌ Cart MF no disponible") {
		t.Error("checkout should report the cart remote as unavailable")
	}
	if !strings.Contains(body, "Cart (1)") {
		t.Error("cart button fallback should keep the item count")
	}
}

func TestShell_LoginLogout(t *testing.T) {
	resetGlobals(t)
	stack := newTestStack(t)

	body := stack.post(t, "/actions/login", url.Values{"email": {"nacho@microfrontends.dev"}, "password": {"wrong"}})
	if !strings.Contains(body, "Credenciales incorrectas") {
		t.Error("login error missing")
	}

	body = stack.post(t, "/actions/login", url.Values{"email": {"nacho@microfrontends.dev"}, "password": {"admin123"}})
	if !strings.Contains(body, "Hola, Nacho RS") {
		t.Error("greeting missing after login")
	}
	if !strings.Contains(body, "👤 Mi Perfil") {
		t.Error("profile nav missing after login")
	}
	if strings.Contains(body, "Credenciales incorrectas") {
		t.Error("login error should be shown once")
	}

	body = stack.post(t, "/actions/view/profile", nil)
	if !strings.Contains(body, "💾 Guardar cambios") {
		t.Error("profile view missing")
	}

	body = stack.post(t, "/actions/logout", nil)
	if strings.Contains(body, "Hola, Nacho RS") {
		t.Error("still greeted after logout")
	}
	if !strings.Contains(body, "🛍️ Catálogo de Productos") {
		t.Error("logout should return to products")
	}
}

func TestShell_Login_FallbackUserWhenUserRemoteDown(t *testing.T) {
	resetGlobals(t)
	stack := newTestStack(t, fragment.User)

	body := stack.post(t, "/actions/login", url.Values{"demo": {"1"}})
	if !strings.Contains(body, "Hola, Demo User") {
		t.Error("demo button should log in the fallback user")
	}

	stack.post(t, "/actions/logout", nil)
	body = stack.post(t, "/actions/login", url.Values{"email": {"x@y.z"}, "password": {"p"}})
	if !strings.Contains(body, "Hola, Demo User") {
		t.Error("unreachable user remote should log in the fallback user")
	}
}

func TestShell_ProfileAndPreferences(t *testing.T) {
	resetGlobals(t)
	stack := newTestStack(t)
	stack.post(t, "/actions/login", url.Values{"email": {"ana@microstore.com"}, "password": {"demo123"}})

	body := stack.post(t, "/actions/profile", url.Values{"name": {"Ana Lopez"}, "email": {"ANA@example.com"}})
	if !strings.Contains(body, "✅ Perfil actualizado correctamente") {
		t.Error("profile confirmation missing")
	}
	if !strings.Contains(body, "Hola, Ana Lopez") {
		t.Error("shell should carry the edited name")
	}

	body = stack.post(t, "/actions/profile", url.Values{"name": {""}, "email": {"ana@example.com"}})
	if !strings.Contains(body, "El nombre es obligatorio") {
		t.Error("validation message missing")
	}

	body = stack.post(t, "/actions/preferences", url.Values{"theme": {"dark"}, "language": {"en"}})
	if !strings.Contains(body, "✅ Preferencias guardadas") {
		t.Error("preferences confirmation missing")
	}
	if !strings.Contains(body, `<option value="dark" selected>`) {
		t.Error("saved theme not selected")
	}
}

func TestShell_MenuCategoryAndView(t *testing.T) {
	resetGlobals(t)
	stack := newTestStack(t)
	stack.post(t, "/actions/login", url.Values{"email": {"nacho@microfrontends.dev"}, "password": {"admin123"}})

	body := stack.post(t, "/actions/menu", nil)
	if !strings.Contains(body, "💾 Guardar cambios") {
		t.Error("menu should switch to profile")
	}
	body = stack.post(t, "/actions/menu", nil)
	if !strings.Contains(body, "🛍️ Catálogo de Productos") {
		t.Error("menu should switch back to products")
	}

	body = stack.post(t, "/actions/category", url.Values{"category": {"electronics"}})
	if !strings.Contains(body, "5 de 6 productos") {
		t.Error("electronics filter should show 5 of 6 products")
	}
	if !strings.Contains(body, `<option value="electronics" selected>`) {
		t.Error("selected category not marked")
	}
	body = stack.post(t, "/actions/category", url.Values{"category": {"toys"}})
	if !strings.Contains(body, "6 de 6 productos") {
		t.Error("unknown category should select all")
	}

	resp, err := stack.browser.PostForm(stack.shell.URL+"/actions/view/settings", nil)
	if err != nil {
		t.Fatalf("POST error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown view status = %d, want 404", resp.StatusCode)
	}
}

func TestShell_Home_ForwardsProductQuery(t *testing.T) {
	resetGlobals(t)
	stack := newTestStack(t)

	body := getBody(t, stack.browser, stack.shell.URL+"/?search=watch")
	if !strings.Contains(body, "1 de 6 productos") {
		t.Error("search should narrow the list to one product")
	}
	body = getBody(t, stack.browser, stack.shell.URL+"/?inStock=1")
	if strings.Contains(body, "Apple Watch Ultra") {
		t.Error("in-stock filter should hide the sold out product")
	}
}

func TestShell_ClearNotifications(t *testing.T) {
	resetGlobals(t)
	stack := newTestStack(t)

	if body := stack.page(t); !strings.Contains(body, `<span class="badge">3</span>`) {
		t.Fatal("initial notification badge missing")
	}
	body := stack.post(t, "/actions/notifications/clear", nil)
	if strings.Contains(body, `<span class="badge">3</span>`) {
		t.Error("badge should be cleared")
	}

	other := newBrowser(t)
	if body := getBody(t, other, stack.shell.URL+"/"); !strings.Contains(body, `<span class="badge">3</span>`) {
		t.Error("clearing is per session")
	}
}

func TestShell_GetStatus(t *testing.T) {
	resetGlobals(t)
	stack := newTestStack(t, fragment.Cart)
	stack.page(t)

	resp, err := stack.browser.Get(stack.shell.URL + "/status")
	if err != nil {
		t.Fatalf("GET /status error = %v", err)
	}
	defer resp.Body.Close()
	var body struct {
		Remotes []struct {
			Name      string `json:"name"`
			Reachable bool   `json:"reachable"`
		} `json:"remotes"`
		Fragments []traffic.FragmentCounts `json:"fragments"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Remotes) != 4 {
		t.Fatalf("remotes = %d, want 4", len(body.Remotes))
	}
	for _, r := range body.Remotes {
		if want := r.Name != fragment.Cart; r.Reachable != want {
			t.Errorf("remote %s reachable = %v, want %v", r.Name, r.Reachable, want)
		}
	}
	var cartFallbacks int
	for _, fc := range body.Fragments {
		if fc.Fragment == fragment.Cart {
			cartFallbacks = fc.Fallbacks
		}
	}
	if cartFallbacks != 1 {
		t.Errorf("cart fallbacks = %d, want 1 (CartButton)", cartFallbacks)
	}
}

func TestShell_SessionCookieIssued(t *testing.T) {
	resetGlobals(t)
	stack := newTestStack(t)
	resp, err := http.Get(stack.shell.URL + "/")
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	resp.Body.Close()
	var found bool
	for _, c := range resp.Cookies() {
		if c.Name == "microstore_session" && c.HttpOnly {
			found = true
		}
	}
	if !found {
		t.Error("session cookie not issued")
	}
}
