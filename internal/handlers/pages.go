package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/liamwears/marquee/internal/models"
	"github.com/liamwears/marquee/internal/services"
)

// MovieView is the data of the movie detail page
type MovieView struct {
	Movie   *models.MovieDetail
	Message string
}

// PageHandler handles standalone page rendering
type PageHandler struct {
	movies   DetailFetcher
	renderer *Renderer
	logger   *zap.SugaredLogger
}

// NewPageHandler creates a new page handler
func NewPageHandler(movies DetailFetcher, renderer *Renderer, logger *zap.SugaredLogger) *PageHandler {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &PageHandler{
		movies:   movies,
		renderer: renderer,
		logger:   logger,
	}
}

// MovieDetail handles GET /movie/{id}
func (h *PageHandler) MovieDetail(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	movie, err := h.movies.FetchDetail(r.Context(), id)
	switch {
	case errors.Is(err, services.ErrNotFound):
		h.renderer.RenderPage(w, http.StatusNotFound, "movie.html", MovieView{Message: "Details not found"})
	case err != nil:
		h.logger.Warnw("Failed to fetch movie details", "id", id, "error", err)
		h.renderer.RenderPage(w, http.StatusBadGateway, "movie.html", MovieView{Message: "Details could not be loaded"})
	default:
		h.renderer.RenderPage(w, http.StatusOK, "movie.html", MovieView{Movie: movie})
	}
}
