// Package fragment loads remote UI fragments and converts load failures into
// static fallback views.
package fragment

import (
	"github.com/kjstillabower/microstore/internal/models"
)

// Remote fragment names.
const (
	Header   = "header"
	Products = "products"
	Cart     = "cart"
	User     = "user"
)

// View names exposed by the remotes.
const (
	ViewHeader       = "Header"
	ViewProductList  = "ProductList"
	ViewCart         = "Cart"
	ViewCartButton   = "CartButton"
	ViewLogin        = "Login"
	ViewProfile      = "Profile"
	ViewUserSettings = "UserSettings"
)

// Ref names one view of one remote fragment.
type Ref struct {
	Fragment string
	View     string
}

func (r Ref) String() string { return r.Fragment + "/" + r.View }

var views = map[string][]string{
	Header:   {ViewHeader},
	Products: {ViewProductList},
	Cart:     {ViewCart, ViewCartButton},
	User:     {ViewLogin, ViewProfile, ViewUserSettings},
}

// Names returns the remote fragment names in a fixed order.
func Names() []string {
	return []string{Header, Products, Cart, User}
}

// Views returns the views a fragment exposes.
func Views(fragment string) []string {
	return append([]string(nil), views[fragment]...)
}

// Known reports whether ref names a view some remote exposes.
func Known(ref Ref) bool {
	for _, v := range views[ref.Fragment] {
		if v == ref.View {
			return true
		}
	}
	return false
}

// Props is the JSON body posted to a fragment view. Each view reads the
// fields it needs and ignores the rest.
type Props struct {
	// Embedded marks markup rendered inside the shell. Embedded views post
	// their actions to the shell instead of acting locally.
	Embedded bool `json:"embedded,omitempty"`
	// Session identifies the shell session for per-session remote state.
	Session string `json:"session,omitempty"`

	User *models.User `json:"user,omitempty"`

	Items     []models.CartItem `json:"items,omitempty"`
	ItemCount int               `json:"itemCount,omitempty"`
	IsOpen    bool              `json:"isOpen,omitempty"`
	Variant   string            `json:"variant,omitempty"`

	Category    string `json:"category,omitempty"`
	Search      string `json:"search,omitempty"`
	Sort        string `json:"sort,omitempty"`
	InStockOnly bool   `json:"inStockOnly,omitempty"`

	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}
