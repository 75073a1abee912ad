package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/liamwears/marquee/internal/models"
)

// maxErrorBody caps how much of an error response is kept in a TransportError
const maxErrorBody = 512

// TMDBService handles interactions with The Movie Database API
type TMDBService struct {
	client       *http.Client
	limiter      *rate.Limiter
	metrics      *TMDBMetrics
	logger       *zap.SugaredLogger
	baseURL      string
	imageBaseURL string
	language     string
}

// TMDBConfig holds TMDB service configuration
type TMDBConfig struct {
	APIKey            string
	BaseURL           string
	ImageBaseURL      string
	Language          string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
}

// NewTMDBService creates a new TMDB service. The API read token is attached
// to every request by an oauth2 transport.
func NewTMDBService(cfg TMDBConfig, metrics *TMDBMetrics, logger *zap.SugaredLogger) *TMDBService {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Language == "" {
		cfg.Language = "en-US"
	}
	if metrics == nil {
		metrics = NewTMDBMetrics(nil)
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}

	src := oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: cfg.APIKey,
		TokenType:   "Bearer",
	})
	client := oauth2.NewClient(context.Background(), src)
	client.Timeout = cfg.Timeout

	return &TMDBService{
		client:       client,
		limiter:      rate.NewLimiter(limit, burst),
		metrics:      metrics,
		logger:       logger,
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		imageBaseURL: strings.TrimRight(cfg.ImageBaseURL, "/"),
		language:     cfg.Language,
	}
}

// tmdbMovie is the wire shape of a listing entry. Only the fields we keep are decoded.
type tmdbMovie struct {
	ID          *int64  `json:"id"`
	Title       string  `json:"title"`
	ReleaseDate string  `json:"release_date"`
	PosterPath  *string `json:"poster_path"`
	Overview    string  `json:"overview"`
}

// tmdbPageResponse is the wire shape of /movie/popular and /search/movie
type tmdbPageResponse struct {
	Page       *int         `json:"page"`
	TotalPages *int         `json:"total_pages"`
	Results    *[]tmdbMovie `json:"results"`
}

// tmdbMovieDetail is the wire shape of /movie/{id}
type tmdbMovieDetail struct {
	ID          *int64  `json:"id"`
	Title       string  `json:"title"`
	PosterPath  *string `json:"poster_path"`
	ReleaseDate string  `json:"release_date"`
	Runtime     *int    `json:"runtime"`
	Overview    string  `json:"overview"`
}

// doRequest performs an HTTP request to TMDB API
func (s *TMDBService) doRequest(ctx context.Context, op, endpoint string, params url.Values) ([]byte, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, &TransportError{Op: op, Err: fmt.Errorf("rate limiter: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+endpoint, nil)
	if err != nil {
		return nil, &TransportError{Op: op, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")

	q := url.Values{}
	q.Set("language", s.language)
	for key, values := range params {
		for _, v := range values {
			q.Add(key, v)
		}
	}
	req.URL.RawQuery = q.Encode()

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &TransportError{Op: op, Err: fmt.Errorf("failed to execute request: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: op, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	case resp.StatusCode != http.StatusOK:
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return nil, &TransportError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("body: %s", string(body)),
		}
	}

	return body, nil
}

// observe records the outcome of one logical TMDB call
func (s *TMDBService) observe(endpoint string, start time.Time, err error) {
	s.metrics.Requests.WithLabelValues(endpoint, outcomeOf(err)).Inc()
	s.metrics.Duration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())

	if err != nil && s.logger != nil {
		s.logger.Debugw("TMDB request failed", "endpoint", endpoint, "error", err)
	}
}

// FetchPopular retrieves one page of the popular movies listing
func (s *TMDBService) FetchPopular(ctx context.Context, page int) (result *models.MoviePage, err error) {
	defer func(start time.Time) { s.observe("popular", start, err) }(time.Now())

	if page < 1 {
		page = 1
	}

	params := url.Values{}
	params.Set("page", strconv.Itoa(page))

	body, err := s.doRequest(ctx, "fetch popular", "/movie/popular", params)
	if err != nil {
		return nil, err
	}

	return decodePage("fetch popular", body)
}

// FetchSearch retrieves one page of movies matching query
func (s *TMDBService) FetchSearch(ctx context.Context, query string, page int) (result *models.MoviePage, err error) {
	defer func(start time.Time) { s.observe("search", start, err) }(time.Now())

	if page < 1 {
		page = 1
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("include_adult", "false")
	params.Set("page", strconv.Itoa(page))

	body, err := s.doRequest(ctx, "fetch search", "/search/movie", params)
	if err != nil {
		return nil, err
	}

	return decodePage("fetch search", body)
}

// FetchDetail retrieves a movie by ID. Unknown or malformed IDs yield ErrNotFound.
func (s *TMDBService) FetchDetail(ctx context.Context, id string) (result *models.MovieDetail, err error) {
	defer func(start time.Time) { s.observe("detail", start, err) }(time.Now())

	movieID, convErr := strconv.ParseInt(id, 10, 64)
	if convErr != nil || movieID <= 0 {
		return nil, fmt.Errorf("fetch detail %q: %w", id, ErrNotFound)
	}

	body, err := s.doRequest(ctx, "fetch detail", fmt.Sprintf("/movie/%d", movieID), nil)
	if err != nil {
		return nil, err
	}

	var raw tmdbMovieDetail
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &DecodeError{Op: "fetch detail", Err: err}
	}
	if raw.ID == nil {
		return nil, &DecodeError{Op: "fetch detail", Err: errors.New("missing id")}
	}

	detail := &models.MovieDetail{
		ID:          strconv.FormatInt(*raw.ID, 10),
		Title:       raw.Title,
		PosterPath:  deref(raw.PosterPath),
		ReleaseDate: raw.ReleaseDate,
		Overview:    raw.Overview,
	}
	if raw.Runtime != nil {
		detail.Runtime = *raw.Runtime
	}

	return detail, nil
}

// ImageURL returns the full URL for a poster path
func (s *TMDBService) ImageURL(path string) string {
	if path == "" {
		return ""
	}
	return s.imageBaseURL + "/" + strings.TrimLeft(path, "/")
}

// decodePage narrows a paged TMDB response to a MoviePage, failing on any
// missing pagination field or result ID.
func decodePage(op string, body []byte) (*models.MoviePage, error) {
	var raw tmdbPageResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &DecodeError{Op: op, Err: err}
	}

	switch {
	case raw.Page == nil:
		return nil, &DecodeError{Op: op, Err: errors.New("missing page")}
	case raw.TotalPages == nil:
		return nil, &DecodeError{Op: op, Err: errors.New("missing total_pages")}
	case raw.Results == nil:
		return nil, &DecodeError{Op: op, Err: errors.New("missing results")}
	}

	movies := make([]models.Movie, 0, len(*raw.Results))
	for i, m := range *raw.Results {
		if m.ID == nil {
			return nil, &DecodeError{Op: op, Err: fmt.Errorf("result %d: missing id", i)}
		}
		movies = append(movies, models.Movie{
			ID:          strconv.FormatInt(*m.ID, 10),
			Title:       m.Title,
			ReleaseDate: m.ReleaseDate,
			PosterPath:  deref(m.PosterPath),
			Overview:    m.Overview,
		})
	}

	return &models.MoviePage{
		Page:       *raw.Page,
		TotalPages: *raw.TotalPages,
		Results:    movies,
	}, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
