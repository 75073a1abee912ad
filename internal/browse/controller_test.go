package browse

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/liamwears/marquee/internal/models"
)

type reply struct {
	page *models.MoviePage
	err  error
}

// fetchCall is one remote call held open until the test answers it
type fetchCall struct {
	mode  models.QueryMode
	page  int
	reply chan reply
}

func (c *fetchCall) respond(page *models.MoviePage) {
	c.reply <- reply{page: page}
}

func (c *fetchCall) fail(err error) {
	c.reply <- reply{err: err}
}

// gatedSource records each call and blocks it until answered or cancelled
type gatedSource struct {
	calls chan *fetchCall
}

func newGatedSource() *gatedSource {
	return &gatedSource{calls: make(chan *fetchCall, 32)}
}

func (s *gatedSource) FetchPopular(ctx context.Context, page int) (*models.MoviePage, error) {
	return s.do(ctx, models.PopularMode(), page)
}

func (s *gatedSource) FetchSearch(ctx context.Context, query string, page int) (*models.MoviePage, error) {
	return s.do(ctx, models.SearchMode(query), page)
}

func (s *gatedSource) do(ctx context.Context, mode models.QueryMode, page int) (*models.MoviePage, error) {
	call := &fetchCall{mode: mode, page: page, reply: make(chan reply, 1)}
	s.calls <- call

	select {
	case r := <-call.reply:
		return r.page, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *gatedSource) next(t *testing.T) *fetchCall {
	t.Helper()
	select {
	case call := <-s.calls:
		return call
	case <-time.After(2 * time.Second):
		t.Fatal("expected a remote call")
		return nil
	}
}

func (s *gatedSource) assertNoCall(t *testing.T, within time.Duration) {
	t.Helper()
	select {
	case call := <-s.calls:
		t.Fatalf("unexpected remote call: %s page %d", call.mode, call.page)
	case <-time.After(within):
	}
}

func movie(id string) models.Movie {
	return models.Movie{ID: id, Title: "Movie " + id}
}

func page(n, total int, ids ...string) *models.MoviePage {
	p := &models.MoviePage{Page: n, TotalPages: total, Results: []models.Movie{}}
	for _, id := range ids {
		p.Results = append(p.Results, movie(id))
	}
	return p
}

func ids(items []models.Movie) []string {
	out := make([]string, 0, len(items))
	for _, m := range items {
		out = append(out, m.ID)
	}
	return out
}

func newTestController(t *testing.T, delay time.Duration) (*Controller, *gatedSource) {
	t.Helper()

	src := newGatedSource()
	c := NewController(src, zap.NewNop().Sugar(), Options{
		DebounceDelay: delay,
		FetchTimeout:  5 * time.Second,
	})
	t.Cleanup(c.Close)

	return c, src
}

func waitFor(t *testing.T, c *Controller, cond func(Snapshot) bool) Snapshot {
	t.Helper()
	require.Eventually(t, func() bool { return cond(c.Snapshot()) }, 2*time.Second, 5*time.Millisecond)
	return c.Snapshot()
}

func loaded(s Snapshot) bool { return s.State == StateLoaded }

func TestController_ResetPopularFirstPage(t *testing.T) {
	c, src := newTestController(t, 10*time.Millisecond)

	assert.Equal(t, StateIdle, c.Snapshot().State)

	c.Reset(models.PopularMode())
	s := c.Snapshot()
	assert.True(t, s.Loading)
	assert.Empty(t, s.Items)

	call := src.next(t)
	assert.True(t, call.mode.IsPopular())
	assert.Equal(t, 1, call.page)
	call.respond(page(1, 5, "r1", "r2"))

	s = waitFor(t, c, loaded)
	assert.Equal(t, []string{"r1", "r2"}, ids(s.Items))
	assert.Equal(t, models.PageCursor{CurrentPage: 1, TotalPages: 5, HasMore: true}, s.Cursor)
	assert.False(t, s.Loading)
}

func TestController_LoadMoreAppendsInReceivedOrder(t *testing.T) {
	c, src := newTestController(t, 10*time.Millisecond)

	c.Reset(models.PopularMode())
	src.next(t).respond(page(1, 3, "b", "a"))
	first := waitFor(t, c, loaded)

	require.True(t, c.LoadMore())
	call := src.next(t)
	assert.Equal(t, 2, call.page)
	call.respond(page(2, 3, "d", "c"))

	s := waitFor(t, c, func(s Snapshot) bool { return s.Cursor.CurrentPage == 2 })
	assert.Equal(t, []string{"b", "a", "d", "c"}, ids(s.Items))
	assert.True(t, s.Cursor.HasMore)

	// earlier snapshots keep their own version of the list
	assert.Equal(t, []string{"b", "a"}, ids(first.Items))
}

func TestController_LoadMoreWithoutMorePagesIsNoop(t *testing.T) {
	c, src := newTestController(t, 10*time.Millisecond)

	c.Reset(models.PopularMode())
	src.next(t).respond(page(1, 1, "only"))
	before := waitFor(t, c, loaded)
	require.False(t, before.Cursor.HasMore)

	assert.False(t, c.LoadMore())
	src.assertNoCall(t, 50*time.Millisecond)

	after := c.Snapshot()
	assert.Equal(t, before.Items, after.Items)
	assert.Equal(t, before.Cursor, after.Cursor)
	assert.Equal(t, StateLoaded, after.State)
}

func TestController_SingleFetchInFlight(t *testing.T) {
	c, src := newTestController(t, 10*time.Millisecond)

	c.Reset(models.PopularMode())
	src.next(t).respond(page(1, 4, "1"))
	waitFor(t, c, loaded)

	require.True(t, c.LoadMore())
	assert.False(t, c.LoadMore())
	assert.False(t, c.FetchPage(3))

	call := src.next(t)
	src.assertNoCall(t, 30*time.Millisecond)
	call.respond(page(2, 4, "2"))

	s := waitFor(t, c, loaded)
	assert.Equal(t, []string{"1", "2"}, ids(s.Items))
}

func TestController_FetchPageDefaultsToNextPage(t *testing.T) {
	c, src := newTestController(t, 10*time.Millisecond)

	c.Reset(models.PopularMode())
	src.next(t).respond(page(1, 4, "1"))
	waitFor(t, c, loaded)

	require.True(t, c.FetchPage(0))
	call := src.next(t)
	assert.Equal(t, 2, call.page)
	call.respond(page(2, 4, "2"))
	waitFor(t, c, func(s Snapshot) bool { return s.Cursor.CurrentPage == 2 })
}

func TestController_HasMore(t *testing.T) {
	tests := []struct {
		name       string
		page       int
		totalPages int
		hasMore    bool
	}{
		{name: "last page", page: 1, totalPages: 1, hasMore: false},
		{name: "more pages", page: 1, totalPages: 2, hasMore: true},
		{name: "no pages reported", page: 1, totalPages: 0, hasMore: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, src := newTestController(t, 10*time.Millisecond)

			c.Reset(models.PopularMode())
			src.next(t).respond(page(tt.page, tt.totalPages, "x"))

			s := waitFor(t, c, loaded)
			assert.Equal(t, tt.hasMore, s.Cursor.HasMore)
			assert.Equal(t, tt.totalPages, s.Cursor.TotalPages)
		})
	}
}

func TestController_FailedFetchKeepsList(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	src := newGatedSource()
	c := NewController(src, zap.New(core).Sugar(), Options{DebounceDelay: 10 * time.Millisecond})
	t.Cleanup(c.Close)

	c.Reset(models.PopularMode())
	src.next(t).respond(page(1, 3, "r1", "r2"))
	before := waitFor(t, c, loaded)

	require.True(t, c.LoadMore())
	src.next(t).fail(errors.New("connection reset by peer"))

	after := waitFor(t, c, loaded)
	assert.Equal(t, before.Items, after.Items)
	assert.Equal(t, before.Cursor, after.Cursor)
	assert.Equal(t, before.Generation, after.Generation)

	entries := logs.FilterMessage("Failed to fetch movies").All()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(2), entries[0].ContextMap()["page"])

	// the next user action retries
	require.True(t, c.LoadMore())
	src.next(t).respond(page(2, 3, "r3"))
	s := waitFor(t, c, func(s Snapshot) bool { return s.Cursor.CurrentPage == 2 })
	assert.Equal(t, []string{"r1", "r2", "r3"}, ids(s.Items))
}

func TestController_FailedFirstPageLeavesEmptyList(t *testing.T) {
	c, src := newTestController(t, 10*time.Millisecond)

	c.Reset(models.PopularMode())
	src.next(t).fail(errors.New("timeout"))

	s := waitFor(t, c, loaded)
	assert.Empty(t, s.Items)
	assert.Equal(t, models.PageCursor{}, s.Cursor)
	assert.False(t, c.LoadMore())
}

func TestController_QueryTextIsDebounced(t *testing.T) {
	c, src := newTestController(t, 40*time.Millisecond)

	for _, text := range []string{"a", "al", "ali", "alie", "alien"} {
		c.OnQueryTextChanged(text)
	}

	s := c.Snapshot()
	assert.True(t, s.Pending)
	assert.Equal(t, models.SearchMode("alien"), s.Mode)
	assert.Empty(t, s.Items)

	call := src.next(t)
	assert.Equal(t, "alien", call.mode.Query())
	assert.Equal(t, 1, call.page)
	src.assertNoCall(t, 100*time.Millisecond)

	call.respond(page(1, 2, "s1"))
	s = waitFor(t, c, loaded)
	assert.Equal(t, []string{"s1"}, ids(s.Items))
	assert.False(t, s.Pending)
}

func TestController_ModeSwitchDiscardsAccumulation(t *testing.T) {
	c, src := newTestController(t, 10*time.Millisecond)

	c.OnQueryTextChanged("a")
	src.next(t).respond(page(1, 2, "r1", "r2"))
	s := waitFor(t, c, loaded)
	require.Equal(t, []string{"r1", "r2"}, ids(s.Items))

	c.OnQueryTextChanged("")
	s = c.Snapshot()
	assert.Empty(t, s.Items)
	assert.True(t, s.Mode.IsPopular())

	call := src.next(t)
	assert.True(t, call.mode.IsPopular())
	assert.Equal(t, 1, call.page)
	call.respond(page(1, 10, "p1", "p2"))

	s = waitFor(t, c, loaded)
	assert.Equal(t, []string{"p1", "p2"}, ids(s.Items))
	assert.Equal(t, 1, s.Cursor.CurrentPage)
}

func TestController_StaleResponseIsIgnored(t *testing.T) {
	c, src := newTestController(t, 10*time.Millisecond)

	c.Reset(models.SearchMode("a"))
	searchCall := src.next(t)

	c.Reset(models.PopularMode())
	popularCall := src.next(t)

	popularCall.respond(page(1, 3, "p1"))
	waitFor(t, c, loaded)

	searchCall.respond(page(1, 1, "a1", "a2"))
	c.Wait()

	s := c.Snapshot()
	assert.Equal(t, []string{"p1"}, ids(s.Items))
	assert.True(t, s.Mode.IsPopular())
	assert.Equal(t, models.PageCursor{CurrentPage: 1, TotalPages: 3, HasMore: true}, s.Cursor)
}

func TestController_StaleResponseBeforeCurrentOne(t *testing.T) {
	c, src := newTestController(t, 10*time.Millisecond)

	c.Reset(models.SearchMode("a"))
	searchCall := src.next(t)
	c.Reset(models.PopularMode())
	popularCall := src.next(t)

	// the superseded search answers first and must not end the loading state
	searchCall.respond(page(1, 1, "a1"))
	time.Sleep(30 * time.Millisecond)
	s := c.Snapshot()
	assert.True(t, s.Loading)
	assert.Empty(t, s.Items)

	popularCall.respond(page(1, 2, "p1"))
	s = waitFor(t, c, loaded)
	assert.Equal(t, []string{"p1"}, ids(s.Items))
}

func TestController_ClearDropsPendingSearch(t *testing.T) {
	c, src := newTestController(t, 60*time.Millisecond)

	c.OnQueryTextChanged("matrix")
	c.Clear()

	call := src.next(t)
	assert.True(t, call.mode.IsPopular())
	call.respond(page(1, 1, "p1"))

	src.assertNoCall(t, 150*time.Millisecond)
	s := waitFor(t, c, loaded)
	assert.Equal(t, []string{"p1"}, ids(s.Items))
	assert.False(t, s.Pending)
}

func TestController_TypingSupersedesInFlightFetch(t *testing.T) {
	c, src := newTestController(t, 20*time.Millisecond)

	c.Reset(models.PopularMode())
	popularCall := src.next(t)

	c.OnQueryTextChanged("heat")
	popularCall.respond(page(1, 5, "p1"))

	searchCall := src.next(t)
	assert.Equal(t, "heat", searchCall.mode.Query())
	searchCall.respond(page(1, 1, "h1"))

	s := waitFor(t, c, loaded)
	assert.Equal(t, []string{"h1"}, ids(s.Items))
	assert.False(t, s.Cursor.HasMore)
}

func TestController_ClosePreventsPendingSearch(t *testing.T) {
	src := newGatedSource()
	c := NewController(src, nil, Options{DebounceDelay: 30 * time.Millisecond})

	c.OnQueryTextChanged("never")
	c.Close()

	src.assertNoCall(t, 100*time.Millisecond)

	// operations after Close are ignored
	c.Reset(models.PopularMode())
	assert.False(t, c.LoadMore())
	assert.False(t, c.FetchPage(1))
	src.assertNoCall(t, 30*time.Millisecond)

	c.Close()
}

func TestController_CloseCancelsInFlightFetch(t *testing.T) {
	src := newGatedSource()
	c := NewController(src, nil, Options{DebounceDelay: 10 * time.Millisecond})

	c.Reset(models.PopularMode())
	src.next(t)

	done := make(chan struct{})
	go func() {
		c.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return while a fetch was in flight")
	}
	assert.Empty(t, c.Snapshot().Items)
}

func TestController_IgnoresPageThatDoesNotAdvance(t *testing.T) {
	c, src := newTestController(t, 10*time.Millisecond)

	c.Reset(models.PopularMode())
	src.next(t).respond(page(1, 3, "1"))
	waitFor(t, c, loaded)

	require.True(t, c.FetchPage(1))
	src.next(t).respond(page(1, 3, "1"))

	s := waitFor(t, c, loaded)
	assert.Equal(t, []string{"1"}, ids(s.Items))
	assert.Equal(t, 1, s.Cursor.CurrentPage)
}

func TestController_SettledAcrossDebouncedSearch(t *testing.T) {
	c, src := newTestController(t, 20*time.Millisecond)

	c.Reset(models.PopularMode())
	assert.False(t, c.Snapshot().Settled())
	src.next(t).respond(page(1, 1, "a"))
	waitFor(t, c, loaded)
	assert.True(t, c.Snapshot().Settled())

	c.OnQueryTextChanged("dune")
	s := c.Snapshot()
	assert.True(t, s.Pending)
	assert.False(t, s.Settled())

	call := src.next(t)
	assert.False(t, c.Snapshot().Settled(), "issued search is still outstanding")

	call.respond(page(1, 1, "d"))
	s = waitFor(t, c, Snapshot.Settled)
	assert.Equal(t, []string{"d"}, ids(s.Items))
}

func TestController_ConcurrentEditsAlwaysSettle(t *testing.T) {
	texts := []string{"a", "b", "", "c"}

	for i := 0; i < 200; i++ {
		c := NewController(&staticSource{}, nil, Options{DebounceDelay: time.Millisecond})

		var wg sync.WaitGroup
		for _, text := range texts {
			wg.Add(1)
			go func(text string) {
				defer wg.Done()
				c.OnQueryTextChanged(text)
			}(text)
		}
		wg.Wait()

		s := waitFor(t, c, Snapshot.Settled)
		want := []string{"p"}
		if !s.Mode.IsPopular() {
			want = []string{s.Mode.Query()}
		}
		assert.Equal(t, want, ids(s.Items), "iteration %d: items must belong to mode %s", i, s.Mode)

		c.Close()
	}
}
