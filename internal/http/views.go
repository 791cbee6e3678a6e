package http

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"

	"github.com/kjstillabower/microstore/internal/models"
)

//go:embed templates/*.html
var templateFS embed.FS

var viewFuncs = template.FuncMap{
	"money": func(v float64) string { return fmt.Sprintf("$%.2f", v) },
	"badge": func(n int) string {
		if n > 99 {
			return "99+"
		}
		return fmt.Sprint(n)
	},
	"plural": func(n int) string {
		if n == 1 {
			return ""
		}
		return "s"
	},
	"lineTotal": func(it models.CartItem) float64 { return it.Price * float64(it.Quantity) },
	"atMax": func(it models.CartItem) bool {
		return it.MaxQuantity > 0 && it.Quantity >= it.MaxQuantity
	},
	"stars": stars,
	"card": func(p models.Product, embedded bool) productCard {
		return productCard{Product: p, Embedded: embedded}
	},
}

var views = template.Must(template.New("views").Funcs(viewFuncs).ParseFS(templateFS, "templates/*.html"))

type productCard struct {
	Product  models.Product
	Embedded bool
}

// stars renders a 0–5 rating as filled and empty stars, rounding to the nearest whole star.
func stars(rating float64) string {
	n := int(rating + 0.5)
	if n < 0 {
		n = 0
	}
	if n > 5 {
		n = 5
	}
	out := ""
	for i := 0; i < 5; i++ {
		if i < n {
			out += "★"
		} else {
			out += "☆"
		}
	}
	return out
}

// renderView executes the named template into markup.
func renderView(name string, data any) (template.HTML, error) {
	var buf bytes.Buffer
	if err := views.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return template.HTML(buf.String()), nil
}

// writePage wraps body in the document layout and writes it.
func writePage(w http.ResponseWriter, r *http.Request, status int, title string, body template.HTML) {
	page, err := renderView("page", struct {
		Title string
		Body  template.HTML
	}{title, body})
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "RENDER_FAILED", "Unable to render page")
		return
	}
	writeHTML(w, status, page)
}
