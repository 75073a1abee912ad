package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/liamwears/marquee/internal/models"
	"github.com/liamwears/marquee/internal/services"
)

// DetailFetcher loads the detail record of one movie
type DetailFetcher interface {
	FetchDetail(ctx context.Context, id string) (*models.MovieDetail, error)
}

// MovieHandler handles movie detail API requests
type MovieHandler struct {
	movies DetailFetcher
	logger *zap.SugaredLogger
}

// NewMovieHandler creates a new movie handler
func NewMovieHandler(movies DetailFetcher, logger *zap.SugaredLogger) *MovieHandler {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &MovieHandler{
		movies: movies,
		logger: logger,
	}
}

// Get handles GET /api/movies/{id}
func (h *MovieHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	movie, err := h.movies.FetchDetail(r.Context(), id)
	if errors.Is(err, services.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Movie not found")
		return
	}
	if err != nil {
		h.logger.Warnw("Failed to fetch movie", "id", id, "error", err)
		writeError(w, http.StatusBadGateway, "Failed to fetch movie")
		return
	}

	writeJSON(w, http.StatusOK, movie)
}
