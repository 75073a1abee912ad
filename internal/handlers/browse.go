package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/liamwears/marquee/internal/browse"
	"github.com/liamwears/marquee/internal/middleware"
)

// IndexView is the data of the index page
type IndexView struct {
	Query   string
	Results browse.Snapshot
}

// BrowseHandler serves the movie list of the caller's session
type BrowseHandler struct {
	renderer *Renderer
	logger   *zap.SugaredLogger
}

// NewBrowseHandler creates a new browse handler
func NewBrowseHandler(renderer *Renderer, logger *zap.SugaredLogger) *BrowseHandler {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &BrowseHandler{
		renderer: renderer,
		logger:   logger,
	}
}

// controller returns the session's controller or writes an error response
func (h *BrowseHandler) controller(w http.ResponseWriter, r *http.Request) (*browse.Controller, bool) {
	c, ok := middleware.ControllerFromContext(r.Context())
	if !ok {
		h.logger.Errorw("No browse session on request", "path", r.URL.Path)
		http.Error(w, "Session unavailable", http.StatusInternalServerError)
		return nil, false
	}
	return c, true
}

// Index handles GET /
func (h *BrowseHandler) Index(w http.ResponseWriter, r *http.Request) {
	c, ok := h.controller(w, r)
	if !ok {
		return
	}

	snap := c.Snapshot()
	h.renderer.RenderPage(w, http.StatusOK, "index.html", IndexView{
		Query:   snap.Mode.Query(),
		Results: snap,
	})
}

// Results handles GET /browse/results
func (h *BrowseHandler) Results(w http.ResponseWriter, r *http.Request) {
	c, ok := h.controller(w, r)
	if !ok {
		return
	}

	h.renderer.RenderPage(w, http.StatusOK, "results.html", c.Snapshot())
}

// Query handles POST /browse/query
func (h *BrowseHandler) Query(w http.ResponseWriter, r *http.Request) {
	c, ok := h.controller(w, r)
	if !ok {
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}

	c.OnQueryTextChanged(r.PostFormValue("query"))
	h.renderer.RenderPage(w, http.StatusOK, "results.html", c.Snapshot())
}

// More handles POST /browse/more
func (h *BrowseHandler) More(w http.ResponseWriter, r *http.Request) {
	c, ok := h.controller(w, r)
	if !ok {
		return
	}

	c.LoadMore()
	h.renderer.RenderPage(w, http.StatusOK, "results.html", c.Snapshot())
}

// Clear handles POST /browse/clear
func (h *BrowseHandler) Clear(w http.ResponseWriter, r *http.Request) {
	c, ok := h.controller(w, r)
	if !ok {
		return
	}

	c.Clear()
	h.renderer.RenderPage(w, http.StatusOK, "results.html", c.Snapshot())
}

// Snapshot handles GET /api/browse
func (h *BrowseHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	c, ok := middleware.ControllerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusInternalServerError, "Session unavailable")
		return
	}

	writeJSON(w, http.StatusOK, c.Snapshot())
}
