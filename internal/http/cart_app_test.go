package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/kjstillabower/microstore/internal/fragment"
	"github.com/kjstillabower/microstore/internal/models"
)

// cartClient talks to one cart fragment server as a single browser session.
type cartClient struct {
	t       *testing.T
	base    string
	browser *http.Client
}

func newCartClient(t *testing.T) *cartClient {
	srv := newFragmentServer(t, newTestApp(fragment.Cart))
	return &cartClient{t: t, base: srv.URL, browser: newBrowser(t)}
}

func (c *cartClient) do(method, path string, body any) (int, cartResponse) {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			c.t.Fatalf("encode: %v", err)
		}
	}
	req, err := http.NewRequest(method, c.base+path, &buf)
	if err != nil {
		c.t.Fatalf("NewRequest: %v", err)
	}
	resp, err := c.browser.Do(req)
	if err != nil {
		c.t.Fatalf("%s %s error = %v", method, path, err)
	}
	defer resp.Body.Close()
	var out cartResponse
	if resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			c.t.Fatalf("decode: %v", err)
		}
	}
	return resp.StatusCode, out
}

func lineQuantities(items []models.CartItem) map[string]int {
	out := make(map[string]int, len(items))
	for _, it := range items {
		out[it.ID] = it.Quantity
	}
	return out
}

func TestCartAPI_StartsWithDemoItems(t *testing.T) {
	c := newCartClient(t)
	code, cart := c.do("GET", "/api/cart", nil)
	if code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if diff := cmp.Diff(map[string]int{"1": 1, "2": 2, "3": 1}, lineQuantities(cart.Items)); diff != "" {
		t.Errorf("demo cart mismatch (-want +got):\n%s", diff)
	}
	if cart.Summary.ItemCount != 4 || cart.Summary.Subtotal != 5946 {
		t.Errorf("summary = %+v", cart.Summary)
	}
}

func TestCartAPI_Mutations(t *testing.T) {
	c := newCartClient(t)

	_, cart := c.do("POST", "/api/cart/items", models.CartItem{ID: "9", Name: "Cable", Price: 10, Quantity: 2})
	if lineQuantities(cart.Items)["9"] != 2 {
		t.Fatalf("added line quantity = %d, want 2", lineQuantities(cart.Items)["9"])
	}
	_, cart = c.do("POST", "/api/cart/items", models.CartItem{ID: "9", Name: "Cable", Price: 10, Quantity: 1})
	if lineQuantities(cart.Items)["9"] != 3 {
		t.Errorf("merged line quantity = %d, want 3", lineQuantities(cart.Items)["9"])
	}

	_, cart = c.do("PATCH", "/api/cart/items/2", map[string]int{"quantity": 9})
	if got := lineQuantities(cart.Items)["2"]; got != 3 {
		t.Errorf("quantity above max = %d, want capped at 3", got)
	}

	_, cart = c.do("PATCH", "/api/cart/items/9", map[string]int{"quantity": 0})
	if _, ok := lineQuantities(cart.Items)["9"]; ok {
		t.Error("quantity 0 should remove the line")
	}

	_, cart = c.do("DELETE", "/api/cart/items/1", nil)
	if diff := cmp.Diff(map[string]int{"2": 3, "3": 1}, lineQuantities(cart.Items)); diff != "" {
		t.Errorf("cart after delete mismatch (-want +got):\n%s", diff)
	}

	_, persisted := c.do("GET", "/api/cart", nil)
	if diff := cmp.Diff(cart.Items, persisted.Items); diff != "" {
		t.Errorf("cart not persisted in session (-mutated +reloaded):\n%s", diff)
	}
}

func TestCartAPI_Errors(t *testing.T) {
	c := newCartClient(t)
	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"unknown line", "DELETE", "/api/cart/items/nope", nil, http.StatusNotFound},
		{"missing quantity", "PATCH", "/api/cart/items/1", map[string]int{}, http.StatusBadRequest},
		{"invalid item", "POST", "/api/cart/items", models.CartItem{Name: "no id", Price: 1}, http.StatusBadRequest},
		{"negative price", "POST", "/api/cart/items", models.CartItem{ID: "x", Price: -1}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code, _ := c.do(tt.method, tt.path, tt.body); code != tt.want {
				t.Errorf("status = %d, want %d", code, tt.want)
			}
		})
	}
}

func TestCartAPI_DemoItem(t *testing.T) {
	c := newCartClient(t)
	_, cart := c.do("POST", "/api/cart/demo-item", nil)
	if len(cart.Items) != 4 {
		t.Errorf("lines after demo item = %d, want 4", len(cart.Items))
	}
}

func TestCartAPI_Checkout(t *testing.T) {
	c := newCartClient(t)

	resp, err := c.browser.Post(c.base+"/api/cart/checkout", "application/json",
		strings.NewReader(`{"items":[{"id":"6","name":"Magic Keyboard","price":199,"quantity":1}]}`))
	if err != nil {
		t.Fatalf("POST error = %v", err)
	}
	var receipt models.Receipt
	err = json.NewDecoder(resp.Body).Decode(&receipt)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if receipt.OrderID == "" || receipt.Summary.Total < 218.89 || receipt.Summary.Total > 218.91 {
		t.Errorf("receipt = %+v", receipt)
	}
	if _, own := c.do("GET", "/api/cart", nil); len(own.Items) != 3 {
		t.Error("checking out posted items should not touch the session cart")
	}

	resp, err = c.browser.Post(c.base+"/api/cart/checkout", "application/json", nil)
	if err != nil {
		t.Fatalf("POST error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("own checkout status = %d, want 200", resp.StatusCode)
	}
	if _, own := c.do("GET", "/api/cart", nil); len(own.Items) != 0 {
		t.Errorf("session cart after checkout has %d lines, want 0", len(own.Items))
	}

	resp, err = c.browser.Post(c.base+"/api/cart/checkout", "application/json", strings.NewReader(`{"items":[]}`))
	if err != nil {
		t.Fatalf("POST error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("empty checkout status = %d, want 400", resp.StatusCode)
	}
}

func TestCartApp_StandaloneCheckoutForm(t *testing.T) {
	c := newCartClient(t)

	page := getBody(t, c.browser, c.base+"/")
	for _, want := range []string{"cart-button-default", "cart-button-minimal", "cart-button-floating", "4 productos en tu carrito"} {
		if !strings.Contains(page, want) {
			t.Errorf("standalone page missing %q", want)
		}
	}

	resp, err := c.browser.PostForm(c.base+"/checkout", url.Values{})
	if err != nil {
		t.Fatalf("POST /checkout error = %v", err)
	}
	body := readBody(t, resp)
	resp.Body.Close()
	if !strings.Contains(body, "¡Compra realizada con éxito! Total: $6540.60") {
		t.Error("confirmation missing from standalone checkout")
	}
	if !strings.Contains(body, "Carrito vacío") {
		t.Error("cart should be empty after checkout")
	}
}

func TestCartApp_RenderButton(t *testing.T) {
	app := NewCartApp(newTestSessions(), 0, "5003", nil)
	html, err := app.RenderView(nil, fragment.ViewCartButton, fragment.Props{
		Items:   []models.CartItem{{ID: "a", Quantity: 2}, {ID: "b", Quantity: 3}},
		Variant: "unknown",
	})
	if err != nil {
		t.Fatalf("RenderView() error = %v", err)
	}
	body := string(html)
	if !strings.Contains(body, `<span class="badge">5</span>`) || !strings.Contains(body, "cart-button-default") {
		t.Errorf("button = %s", body)
	}

	html, _ = app.RenderView(nil, fragment.ViewCartButton, fragment.Props{})
	if strings.Contains(string(html), "badge") {
		t.Error("empty cart button should not show a badge")
	}
}

func TestCartAPI_CheckoutRejectsInvalidLines(t *testing.T) {
	c := newCartClient(t)

	resp, err := c.browser.Post(c.base+"/api/cart/checkout", "application/json",
		strings.NewReader(`{"items":[{"id":"x","price":10,"quantity":-5},{"id":"y","price":20,"quantity":0}]}`))
	if err != nil {
		t.Fatalf("POST error = %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	var body errorBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error.Code != "INVALID_ITEM" {
		t.Errorf("code = %q, want INVALID_ITEM", body.Error.Code)
	}
}

func TestCartApp_RenderDropsInvalidLines(t *testing.T) {
	app := NewCartApp(newTestSessions(), 0, "5003", nil)
	items := []models.CartItem{{ID: "x", Name: "Ghost", Price: 10, Quantity: -5}, {ID: "y", Price: 20, Quantity: 0}}

	html, err := app.RenderView(nil, fragment.ViewCart, fragment.Props{Items: items})
	if err != nil {
		t.Fatalf("RenderView() error = %v", err)
	}
	body := string(html)
	if !strings.Contains(body, "Carrito vacío") || strings.Contains(body, "Ghost") || strings.Contains(body, "$-") {
		t.Errorf("cart = %s", body)
	}

	html, _ = app.RenderView(nil, fragment.ViewCartButton, fragment.Props{Items: items, ItemCount: -5})
	if strings.Contains(string(html), "badge") {
		t.Errorf("button with only invalid lines shows a badge: %s", html)
	}
}
