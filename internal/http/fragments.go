package http

import (
	"encoding/json"
	"errors"
	"html/template"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kjstillabower/microstore/internal/fragment"
)

// maxPropsBytes caps the JSON props body accepted by a fragment view.
const maxPropsBytes = 1 << 20

// FragmentApp is one remote fragment served over HTTP: its views, its
// standalone page and its API.
type FragmentApp interface {
	Name() string
	RenderView(r *http.Request, view string, props fragment.Props) (template.HTML, error)
	Standalone(w http.ResponseWriter, r *http.Request)
	Routes(router *mux.Router)
}

// FragmentHandler serves /fragments/{view} for one FragmentApp.
type FragmentHandler struct {
	app    FragmentApp
	logger *zap.Logger
}

func NewFragmentHandler(app FragmentApp, logger *zap.Logger) *FragmentHandler {
	return &FragmentHandler{app: app, logger: logger}
}

// ServeView handles GET|POST /fragments/{view}. POST bodies carry JSON props;
// GET renders with empty props.
func (h *FragmentHandler) ServeView(w http.ResponseWriter, r *http.Request) {
	view := mux.Vars(r)["view"]
	if !fragment.Known(fragment.Ref{Fragment: h.app.Name(), View: view}) {
		writeError(w, r, http.StatusNotFound, "VIEW_NOT_FOUND", "unknown view: "+view)
		return
	}

	var props fragment.Props
	if r.Method == http.MethodPost {
		err := json.NewDecoder(io.LimitReader(r.Body, maxPropsBytes)).Decode(&props)
		if err != nil && !errors.Is(err, io.EOF) {
			writeError(w, r, http.StatusBadRequest, "INVALID_PROPS", "props must be a JSON object")
			return
		}
	}

	html, err := h.app.RenderView(r, view, props)
	if err != nil {
		requestLogger(r, h.logger).Error("fragment render failed",
			zap.String("fragment", h.app.Name()), zap.String("view", view), zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "RENDER_FAILED", "Unable to render "+view)
		return
	}
	writeHTML(w, http.StatusOK, html)
}

// standalonePage is the chrome around a fragment run on its own.
type standalonePage struct {
	Icon  string
	Title string
	Port  string
	Nav   []standaloneLink
	Views []template.HTML
}

type standaloneLink struct {
	Label string
	Href  string
}

func writeStandalone(w http.ResponseWriter, r *http.Request, status int, logger *zap.Logger, page standalonePage) {
	body, err := renderView("standalone", page)
	if err != nil {
		requestLogger(r, logger).Error("standalone render failed", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "RENDER_FAILED", "Unable to render page")
		return
	}
	writePage(w, r, status, page.Title, body)
}

// decodeJSON reads a JSON request body into dst. An empty body leaves dst unchanged.
func decodeJSON(r *http.Request, dst any) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxPropsBytes)).Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
