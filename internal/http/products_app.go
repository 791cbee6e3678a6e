package http

import (
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kjstillabower/microstore/internal/catalog"
	"github.com/kjstillabower/microstore/internal/fragment"
	"github.com/kjstillabower/microstore/internal/models"
	"github.com/kjstillabower/microstore/internal/validation"
)

// ProductsApp serves the product catalog fragment.
type ProductsApp struct {
	port   string
	logger *zap.Logger
}

func NewProductsApp(port string, logger *zap.Logger) *ProductsApp {
	return &ProductsApp{port: port, logger: logger}
}

func (a *ProductsApp) Name() string { return fragment.Products }

type sortOption struct {
	Value string
	Label string
}

var sortOptions = []sortOption{
	{catalog.SortByName, "Nombre"},
	{catalog.SortByPriceAsc, "Precio: menor a mayor"},
	{catalog.SortByPriceDesc, "Precio: mayor a menor"},
	{catalog.SortByRating, "Mejor valorados"},
}

type productListData struct {
	Products    []models.Product
	Categories  []string
	Category    string
	Search      string
	Sort        string
	SortOptions []sortOption
	InStockOnly bool
	Embedded    bool
	Count       int
	Total       int
	Error       string
}

// RenderView renders the ProductList view filtered by the props.
func (a *ProductsApp) RenderView(r *http.Request, view string, props fragment.Props) (template.HTML, error) {
	if view != fragment.ViewProductList {
		return "", fmt.Errorf("%w: %s", fragment.ErrViewNotFound, view)
	}
	return renderView(fragment.ViewProductList, a.listData(props))
}

func (a *ProductsApp) listData(props fragment.Props) productListData {
	sortKey := props.Sort
	if sortKey == "" {
		sortKey = catalog.SortByName
	}
	data := productListData{
		Categories:  catalog.Categories(),
		Category:    catalog.ResolveCategory(props.Category),
		Sort:        sortKey,
		SortOptions: sortOptions,
		InStockOnly: props.InStockOnly,
		Embedded:    props.Embedded,
		Total:       len(catalog.All()),
	}
	search, err := validation.ValidateSearch(props.Search)
	if err != nil {
		data.Error = "La búsqueda es demasiado larga"
	}
	data.Search = search
	data.Products = catalog.Query(catalog.Filter{
		Category:    data.Category,
		Search:      search,
		InStockOnly: props.InStockOnly,
	}, sortKey)
	data.Count = len(data.Products)
	return data
}

// Standalone handles GET / with filters taken from the query string.
func (a *ProductsApp) Standalone(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	props := fragment.Props{
		Category:    q.Get("category"),
		Search:      q.Get("search"),
		Sort:        q.Get("sort"),
		InStockOnly: queryBool(q, "inStock"),
	}
	html, err := a.RenderView(r, fragment.ViewProductList, props)
	if err != nil {
		requestLogger(r, a.logger).Error("product list render failed", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "RENDER_FAILED", "Unable to render products")
		return
	}
	writeStandalone(w, r, http.StatusOK, a.logger, standalonePage{
		Icon:  "🛍️",
		Title: "Products Microfrontend",
		Port:  a.port,
		Nav: []standaloneLink{
			{Label: "Todos", Href: "/"},
			{Label: "En stock", Href: "/?inStock=1"},
			{Label: "API", Href: "/api/products"},
		},
		Views: []template.HTML{html},
	})
}

func (a *ProductsApp) Routes(router *mux.Router) {
	router.HandleFunc("/api/products", a.ListProducts).Methods("GET")
	router.HandleFunc("/api/products/{id}", a.GetProduct).Methods("GET")
}

var errInvalidFilter = errors.New("invalid filter")

// ListProducts handles GET /api/products. Query parameters: category, search,
// minPrice, maxPrice, minRating, inStock and sort.
func (a *ProductsApp) ListProducts(w http.ResponseWriter, r *http.Request) {
	f, err := filterFromQuery(r.URL.Query())
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_FILTER", err.Error())
		return
	}
	products := catalog.Query(f, r.URL.Query().Get("sort"))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"products": products,
		"count":    len(products),
		"total":    len(catalog.All()),
	})
}

// GetProduct handles GET /api/products/{id}.
func (a *ProductsApp) GetProduct(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	p, ok := catalog.Find(id)
	if !ok {
		writeError(w, r, http.StatusNotFound, "PRODUCT_NOT_FOUND", "product not found: "+id)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func filterFromQuery(q url.Values) (catalog.Filter, error) {
	search, err := validation.ValidateSearch(q.Get("search"))
	if err != nil {
		return catalog.Filter{}, fmt.Errorf("%w: %w", errInvalidFilter, err)
	}
	f := catalog.Filter{
		Category:    q.Get("category"),
		Search:      search,
		InStockOnly: queryBool(q, "inStock"),
	}
	for name, dst := range map[string]*float64{
		"minPrice":  &f.MinPrice,
		"maxPrice":  &f.MaxPrice,
		"minRating": &f.MinRating,
	} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 {
			return catalog.Filter{}, fmt.Errorf("%w: %s must be a non-negative number", errInvalidFilter, name)
		}
		*dst = v
	}
	return f, nil
}

func queryBool(q url.Values, name string) bool {
	switch q.Get(name) {
	case "1", "true", "on":
		return true
	}
	return false
}
