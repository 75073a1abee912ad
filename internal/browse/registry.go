package browse

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"github.com/liamwears/marquee/internal/models"
)

// RegistryConfig holds session registry configuration
type RegistryConfig struct {
	MaxSessions int
	TTL         time.Duration
	Controller  Options
}

// Registry keeps one Controller per browser session. Sessions expire after
// TTL without access; an expired or evicted session's controller is closed.
type Registry struct {
	mu       sync.Mutex
	sessions *expirable.LRU[string, *Controller]
	source   PageSource
	logger   *zap.SugaredLogger
	opts     Options
	closers  sync.WaitGroup
}

// NewRegistry creates a new session registry
func NewRegistry(source PageSource, cfg RegistryConfig, logger *zap.SugaredLogger) *Registry {
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = 1000
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	r := &Registry{
		source: source,
		logger: logger,
		opts:   cfg.Controller,
	}
	r.sessions = expirable.NewLRU[string, *Controller](cfg.MaxSessions, r.onEvict, cfg.TTL)

	return r
}

// GetOrCreate returns the controller for sessionID, creating it and loading
// the first popular page when the session is new. The boolean reports
// whether the controller was created by this call.
func (r *Registry) GetOrCreate(sessionID string) (*Controller, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.sessions.Get(sessionID); ok {
		r.sessions.Add(sessionID, c)
		return c, false
	}

	c := NewController(r.source, r.logger.With("session", sessionID), r.opts)
	r.sessions.Add(sessionID, c)
	c.Reset(models.PopularMode())

	r.logger.Debugw("Session started", "session", sessionID)
	return c, true
}

// Get returns the controller for sessionID if the session is live.
// Access extends the session's TTL.
func (r *Registry) Get(sessionID string) (*Controller, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.sessions.Get(sessionID)
	if ok {
		r.sessions.Add(sessionID, c)
	}
	return c, ok
}

// Remove ends a session and closes its controller
func (r *Registry) Remove(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions.Remove(sessionID)
}

// Len returns the number of live sessions
func (r *Registry) Len() int {
	return r.sessions.Len()
}

// Close ends every session and waits for their controllers to shut down
func (r *Registry) Close() {
	r.mu.Lock()
	r.sessions.Purge()
	r.mu.Unlock()

	r.closers.Wait()
}

// onEvict closes the controller off the cache's lock, since Close waits for
// in-flight fetches.
func (r *Registry) onEvict(sessionID string, c *Controller) {
	r.closers.Add(1)
	go func() {
		defer r.closers.Done()
		c.Close()
		r.logger.Debugw("Session closed", "session", sessionID)
	}()
}
