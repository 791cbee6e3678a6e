package fragment

import (
	"bytes"
	_ "embed"
	"html/template"
)

//go:embed fallback.html
var fallbackHTML string

var fallbackTemplates = template.Must(template.New("fallback").Parse(fallbackHTML))

// minimalFallback is served if a fallback template itself fails to execute.
const minimalFallback template.HTML = `<div class="mf-fallback mf-fallback-error">❌ Microfrontend no disponible <a class="mf-retry" href="/">Reintentar</a></div>`

// fallbackLabels is the short name shown in the "no disponible" placeholders.
var fallbackLabels = map[Ref]string{
	{Header, ViewHeader}:        "Header",
	{Products, ViewProductList}: "Product",
	{Cart, ViewCart}:            "Cart",
	{User, ViewProfile}:         "User",
	{User, ViewUserSettings}:    "User",
}

var displayNames = map[Ref]string{
	{Header, ViewHeader}:        "Header",
	{Products, ViewProductList}: "Product List",
	{Cart, ViewCart}:            "Cart",
	{Cart, ViewCartButton}:      "Cart Button",
	{User, ViewLogin}:           "Login",
	{User, ViewProfile}:         "Profile",
	{User, ViewUserSettings}:    "User Settings",
}

type fallbackData struct {
	Ref   Ref
	Label string
	Name  string
	Props Props
}

// Fallback renders the static placeholder that stands in for ref. The
// CartButton placeholder still shows the item count and still toggles the
// cart; the Login placeholder offers a demo login. Refs without a dedicated
// placeholder get a generic error panel with a retry link.
func Fallback(ref Ref, props Props) template.HTML {
	data := fallbackData{Ref: ref, Props: props, Name: DisplayName(ref)}

	name := "panel"
	switch {
	case ref == Ref{Cart, ViewCartButton}:
		name = ViewCartButton
	case ref == Ref{User, ViewLogin}:
		name = ViewLogin
	default:
		if label, ok := fallbackLabels[ref]; ok {
			name = "unavailable"
			data.Label = label
		}
	}

	var buf bytes.Buffer
	if err := fallbackTemplates.ExecuteTemplate(&buf, name, data); err != nil {
		return minimalFallback
	}
	return template.HTML(buf.String())
}

// DisplayName is the human-readable name of ref used in logs and error panels.
func DisplayName(ref Ref) string {
	if n, ok := displayNames[ref]; ok {
		return n
	}
	if ref.View != "" {
		return ref.View
	}
	return ref.Fragment
}
