// Package browse drives incremental retrieval of paged movie listings.
//
// A Controller accumulates the pages of one query (the popular listing or a
// text search) into an ordered result list. Changing the query discards the
// list and starts over from page 1. Every fetch is tagged with the
// controller's generation at issue time; a response is applied only if no
// reset happened in between, so a slow response for an old query can never
// overwrite the list of the current one.
package browse

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/liamwears/marquee/internal/debounce"
	"github.com/liamwears/marquee/internal/models"
)

// PageSource is the remote paged-query collaborator
type PageSource interface {
	FetchPopular(ctx context.Context, page int) (*models.MoviePage, error)
	FetchSearch(ctx context.Context, query string, page int) (*models.MoviePage, error)
}

// State is the loading state of a Controller
type State string

const (
	StateIdle    State = "IDLE"
	StateLoading State = "LOADING"
	StateLoaded  State = "LOADED"
)

// Options configures a Controller
type Options struct {
	// DebounceDelay is the typing pause before a search is issued.
	DebounceDelay time.Duration
	// FetchTimeout bounds a single remote call. Zero means no bound.
	FetchTimeout time.Duration
}

// DefaultOptions returns the options used when none are configured
func DefaultOptions() Options {
	return Options{
		DebounceDelay: 500 * time.Millisecond,
		FetchTimeout:  10 * time.Second,
	}
}

// Snapshot is a read-only view of a Controller at one point in time.
// Items is never modified after the snapshot is taken.
type Snapshot struct {
	Mode       models.QueryMode  `json:"mode"`
	Items      []models.Movie    `json:"items"`
	Cursor     models.PageCursor `json:"cursor"`
	State      State             `json:"state"`
	Loading    bool              `json:"loading"`
	Pending    bool              `json:"pending"`
	Generation uint64            `json:"generation"`
}

// Settled reports whether the last requested fetch has completed and no
// search is waiting on the debounce delay.
func (s Snapshot) Settled() bool {
	return s.State == StateLoaded && !s.Pending
}

// Controller owns the result list and page cursor of one browsing session
type Controller struct {
	mu         sync.Mutex
	source     PageSource
	logger     *zap.SugaredLogger
	opts       Options
	search     *debounce.Debouncer[models.QueryMode]
	mode       models.QueryMode
	items      []models.Movie
	cursor     models.PageCursor
	state      State
	generation uint64
	closed     bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewController creates an idle controller in popular mode. Nothing is
// fetched until Reset, FetchPage or OnQueryTextChanged is called.
func NewController(source PageSource, logger *zap.SugaredLogger, opts Options) *Controller {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		source: source,
		logger: logger,
		opts:   opts,
		mode:   models.PopularMode(),
		items:  []models.Movie{},
		state:  StateIdle,
		ctx:    ctx,
		cancel: cancel,
	}
	c.search = debounce.New(opts.DebounceDelay, c.resetIfCurrent)

	return c
}

// Reset discards the accumulated list, zeroes the cursor and fetches page 1 of mode
func (c *Controller) Reset(mode models.QueryMode) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	c.clearLocked(mode)
	c.fetchLocked(1)
}

// resetIfCurrent runs a debounced search unless the query changed again
// after it was scheduled.
func (c *Controller) resetIfCurrent(mode models.QueryMode) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || !c.mode.Equal(mode) {
		return
	}

	c.clearLocked(mode)
	c.fetchLocked(1)
}

// FetchPage fetches page under the current mode. A page below 1 means the
// page after the current one. It reports false when a fetch for the current
// query is already in flight or the controller is closed.
func (c *Controller) FetchPage(page int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.state == StateLoading {
		return false
	}
	if page < 1 {
		page = c.cursor.CurrentPage + 1
	}

	c.fetchLocked(page)
	return true
}

// LoadMore fetches the next page when more pages are available.
// It reports whether a fetch was issued.
func (c *Controller) LoadMore() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || !c.cursor.HasMore || c.state == StateLoading {
		return false
	}

	c.fetchLocked(c.cursor.CurrentPage + 1)
	return true
}

// OnQueryTextChanged switches the query. Empty text returns to the popular
// listing right away. Other text clears the list at once and issues the
// search once typing pauses for the debounce delay.
func (c *Controller) OnQueryTextChanged(text string) {
	text = strings.TrimSpace(text)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	// The switch and the debouncer update happen under one lock so that
	// concurrent edits schedule searches in the order they changed the mode.
	if text == "" {
		c.search.Cancel()
		c.clearLocked(models.PopularMode())
		c.fetchLocked(1)
		return
	}

	mode := models.SearchMode(text)
	c.clearLocked(mode)
	c.search.Call(mode)
}

// Clear returns to the popular listing
func (c *Controller) Clear() {
	c.OnQueryTextChanged("")
}

// Snapshot returns the current state for rendering
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Snapshot{
		Mode:       c.mode,
		Items:      c.items,
		Cursor:     c.cursor,
		State:      c.state,
		Loading:    c.state == StateLoading,
		Pending:    c.search.Pending(),
		Generation: c.generation,
	}
}

// Wait blocks until every fetch started so far has finished
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Close tears the controller down: the pending search is dropped, in-flight
// calls are cancelled and their results ignored. Close waits for fetch
// goroutines to return and is safe to call more than once.
func (c *Controller) Close() {
	c.search.Stop()

	c.mu.Lock()
	if !c.closed {
		c.closed = true
		c.generation++
		c.cancel()
	}
	c.mu.Unlock()

	c.wg.Wait()
}

// clearLocked starts a new generation for mode with an empty list
func (c *Controller) clearLocked(mode models.QueryMode) {
	c.generation++
	c.mode = mode
	c.items = []models.Movie{}
	c.cursor = models.PageCursor{}
	c.state = StateIdle
}

// fetchLocked marks the controller as loading and issues the remote call
// for page under the current generation on its own goroutine.
func (c *Controller) fetchLocked(page int) {
	c.state = StateLoading
	gen, mode := c.generation, c.mode

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		ctx, cancel := c.ctx, context.CancelFunc(func() {})
		if c.opts.FetchTimeout > 0 {
			ctx, cancel = context.WithTimeout(c.ctx, c.opts.FetchTimeout)
		}
		defer cancel()

		var (
			result *models.MoviePage
			err    error
		)
		if mode.IsPopular() {
			result, err = c.source.FetchPopular(ctx, page)
		} else {
			result, err = c.source.FetchSearch(ctx, mode.Query(), page)
		}

		c.apply(gen, mode, page, result, err)
	}()
}

// apply merges a finished fetch into the list if its generation is still current
func (c *Controller) apply(gen uint64, mode models.QueryMode, page int, result *models.MoviePage, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation {
		c.logger.Debugw("Discarding stale page",
			"mode", mode.String(), "page", page, "generation", gen, "current", c.generation)
		return
	}

	c.state = StateLoaded

	if err != nil {
		c.logger.Warnw("Failed to fetch movies", "mode", mode.String(), "page", page, "error", err)
		return
	}
	if result == nil {
		c.logger.Warnw("Empty response for page", "mode", mode.String(), "page", page)
		return
	}
	if result.Page <= c.cursor.CurrentPage {
		c.logger.Warnw("Ignoring page that does not advance the cursor",
			"mode", mode.String(), "page", result.Page, "current", c.cursor.CurrentPage)
		return
	}

	items := make([]models.Movie, 0, len(c.items)+len(result.Results))
	items = append(items, c.items...)
	items = append(items, result.Results...)
	c.items = items

	c.cursor = models.PageCursor{
		CurrentPage: result.Page,
		TotalPages:  result.TotalPages,
		HasMore:     result.TotalPages != result.Page,
	}
}
