package semtok

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	protocol "github.com/tliron/glsp/protocol_3_16"
	"go.uber.org/zap"

	"github.com/cptaffe/acme-semtok/logger"
	"github.com/cptaffe/acme-semtok/lsp"
)

// TokenSource requests semantic tokens for a document.  *lsp.Client
// implements it.
type TokenSource interface {
	SemanticTokensFull(ctx context.Context, uri protocol.DocumentUri) (lsp.TokensResult, error)
	SemanticTokensFullDelta(ctx context.Context, uri protocol.DocumentUri, previousResultID string) (lsp.TokensResult, error)
}

// ScreenSource looks up the current Screen of a window.  *Sessions
// implements it.
type ScreenSource interface {
	Screen(id int) (Screen, bool)
}

// Options configures a Coordinator.
type Options struct {
	URI    protocol.DocumentUri
	Source TokenSource
	Legend *Legend

	// Screens and Window locate the editor text the document is shown in.
	Screens ScreenSource
	Window  int

	// Store defaults to NewTokenStore().
	Store Storage
}

// Highlight is a styled span clipped to the range it was queried for.
type Highlight struct {
	ScreenRange
	Style     Style
	Modifiers []Style
}

// Coordinator keeps one document's Storage in step with the server and
// answers highlight queries from it.
//
// Until the first response arrives, highlight queries wait; once it arrives
// they return ErrCancelled so the caller asks again against real data.
//
// The edit callback registered by ApplyEdit is a single slot, not a queue:
// registering a new callback resolves the previous one with an empty set.
type Coordinator struct {
	uri     protocol.DocumentUri
	src     TokenSource
	store   Storage
	legend  *Legend
	screens ScreenSource
	win     int

	// changeMu serializes DocumentDidChange.
	changeMu sync.Mutex

	ready     chan struct{} // closed once the store has data
	readyOnce sync.Once

	mu   sync.Mutex
	edit func([]ScreenRange)
}

// NewCoordinator returns a coordinator with no data.
func NewCoordinator(opts Options) *Coordinator {
	store := opts.Store
	if store == nil {
		store = NewTokenStore()
	}
	return &Coordinator{
		uri:     opts.URI,
		src:     opts.Source,
		store:   store,
		legend:  opts.Legend,
		screens: opts.Screens,
		win:     opts.Window,
		ready:   make(chan struct{}),
	}
}

// HasData reports whether a response has been stored.
func (c *Coordinator) HasData() bool {
	return c.store.State() != nil
}

// ApplyEdit registers done to receive the screen ranges invalidated by the
// next DocumentDidChange.  A callback still waiting from an earlier edit is
// called first with no ranges.
//
// done is called without locks held, from the goroutine running
// DocumentDidChange (or ApplyEdit, for a superseded callback).
func (c *Coordinator) ApplyEdit(done func([]ScreenRange)) {
	c.mu.Lock()
	prev := c.edit
	c.edit = done
	c.mu.Unlock()
	if prev != nil {
		prev(nil)
	}
}

// resolveEdit empties the edit slot, calling its callback with ranges.
func (c *Coordinator) resolveEdit(ranges []ScreenRange) {
	c.mu.Lock()
	done := c.edit
	c.edit = nil
	c.mu.Unlock()
	if done != nil {
		done(ranges)
	}
}

// DocumentDidChange brings the store up to date with the server: a full
// request while there is no data or no result id to chain from, a delta
// request otherwise.  The pending edit callback receives the invalidated
// screen ranges; it receives no ranges if the request fails, and the store
// keeps its last good state.
//
// Calls are serialized.
func (c *Coordinator) DocumentDidChange(ctx context.Context) error {
	c.changeMu.Lock()
	defer c.changeMu.Unlock()

	st := c.store.State()
	if st == nil || st.ResultID == nil {
		return c.requestFull(ctx)
	}
	return c.requestDelta(ctx, *st.ResultID)
}

func (c *Coordinator) requestFull(ctx context.Context) error {
	log := logger.L(ctx)
	log.Debug("requesting full semantic tokens")
	res, err := c.src.SemanticTokensFull(ctx, c.uri)
	if err != nil {
		c.resolveEdit(nil)
		return fmt.Errorf("full semantic tokens: %w", err)
	}
	switch {
	case res.Full != nil:
		c.setData(*res.Full)
	case res.Delta != nil:
		c.resolveEdit(nil)
		return fmt.Errorf("%w: delta answer to a full request", ErrMalformedDelta)
	case c.HasData():
		c.resolveEdit(nil)
	default:
		// null: the document has no tokens.
		c.setData(protocol.SemanticTokens{})
	}
	return nil
}

func (c *Coordinator) requestDelta(ctx context.Context, prev string) error {
	log := logger.L(ctx)
	log.Debug("requesting semantic tokens delta", zap.String("previousResultId", prev))
	res, err := c.src.SemanticTokensFullDelta(ctx, c.uri, prev)
	if err != nil {
		c.resolveEdit(nil)
		return fmt.Errorf("semantic tokens delta: %w", err)
	}
	switch {
	case res.Delta != nil:
		ranges, err := c.store.ApplyDelta(*res.Delta)
		switch {
		case errors.Is(err, ErrNoState):
			log.DPanic("delta applied to empty store", zap.Error(err))
			c.resolveEdit(nil)
			return err
		case err != nil:
			log.Warn("discarding delta, requesting full tokens", zap.Error(err))
			return c.requestFull(ctx)
		}
		screen := c.screenRanges(ranges)
		log.Debug("applied semantic tokens delta",
			zap.Int("edits", len(res.Delta.Edits)),
			zap.Int("invalidated", len(ranges)),
			zap.Int("screenRanges", len(screen)))
		c.resolveEdit(screen)
	case res.Full != nil:
		c.setData(*res.Full)
	default:
		c.resolveEdit(nil)
	}
	return nil
}

// setData replaces the store's state and invalidates the whole text.
func (c *Coordinator) setData(tokens protocol.SemanticTokens) {
	c.store.SetData(tokens)
	c.readyOnce.Do(func() { close(c.ready) })
	var all []ScreenRange
	if s, ok := c.screens.Screen(c.win); ok {
		all = []ScreenRange{s.Extent()}
	}
	c.resolveEdit(all)
}

// screenRanges resolves token ranges against the current screen and
// coalesces the result.  The ranges hold raw relative fields, so one that
// does not resolve still names a changed token somewhere: the whole text is
// invalidated instead.
func (c *Coordinator) screenRanges(ranges []TokenRange) []ScreenRange {
	if len(ranges) == 0 {
		return nil
	}
	s, ok := c.screens.Screen(c.win)
	if !ok {
		return nil
	}
	out := make([]ScreenRange, 0, len(ranges))
	for _, r := range ranges {
		sr, ok := s.ScreenRange(r.Line, r.Char, r.Length)
		if !ok {
			return []ScreenRange{s.Extent()}
		}
		out = append(out, sr)
	}
	return coalesce(out)
}

// Highlights returns the styled spans starting inside r, clipped to r.
//
// Before the first response it blocks until data arrives and then returns
// ErrCancelled; ask again.  It returns ErrRangeResolution if r no longer maps
// onto the document.
func (c *Coordinator) Highlights(ctx context.Context, r ScreenRange) ([]Highlight, error) {
	select {
	case <-c.ready:
	default:
		select {
		case <-c.ready:
			return nil, ErrCancelled
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	s, ok := c.screens.Screen(c.win)
	if !ok {
		return nil, ErrRangeResolution
	}
	pr, ok := s.PositionRange(r)
	if !ok {
		return nil, ErrRangeResolution
	}

	var out []Highlight
	for _, sp := range c.legend.Decode(c.store.TokensFor(pr)) {
		if sp.Empty() {
			continue
		}
		sr, ok := s.ScreenRange(sp.Line, sp.Char, sp.Length)
		if !ok {
			continue
		}
		if sr = sr.Intersect(r); sr.Empty() {
			continue
		}
		out = append(out, Highlight{ScreenRange: sr, Style: sp.Type, Modifiers: sp.Modifiers})
	}
	return out, nil
}

// coalesce sorts ranges and merges those that overlap or touch.
func coalesce(ranges []ScreenRange) []ScreenRange {
	if len(ranges) < 2 {
		return ranges
	}
	sort.Slice(ranges, func(i, j int) bool {
		if ranges[i].Q0 != ranges[j].Q0 {
			return ranges[i].Q0 < ranges[j].Q0
		}
		return ranges[i].Q1 < ranges[j].Q1
	})
	out := ranges[:1]
	for _, r := range ranges[1:] {
		last := &out[len(out)-1]
		if r.Q0 <= last.Q1 {
			last.Q1 = max(last.Q1, r.Q1)
			continue
		}
		out = append(out, r)
	}
	return out
}
