package semtok

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"9fans.net/go/acme"
	"github.com/cptaffe/acme-styles/layer"
	"go.uber.org/zap"

	"github.com/cptaffe/acme-semtok/logger"
	"github.com/cptaffe/acme-semtok/lsp"
)

const layerName = "semtok"

// errWindowClosed is returned by runWindowOnce when the window's edit log
// reaches EOF cleanly, i.e. the user closed the window.
var errWindowClosed = errors.New("window closed")

// errServerLost is returned by runWindowOnce when the language server's
// connection drops.  The retry starts a new server.
var errServerLost = errors.New("language server connection lost")

// maxRetries is the number of times RunWindow will retry a failed session
// before giving up on a window.
const maxRetries = 8

// sessionResetAfter is how long a session must have run for its failure to
// count as fresh: the retry budget and backoff start over.
const sessionResetAfter = time.Minute

// Env is what every window session shares.
type Env struct {
	Handlers []Handler
	Servers  *Servers
	Sessions *Sessions
	Styles   StyleMap
	Debounce time.Duration
}

// RunWindow is the per-window entry point.  It detects the file's language
// (filename handlers first, shebang fallback) and runs highlight sessions via
// runWindowOnce, retrying failures with exponential backoff.  It exits when
// the window is closed, the context is cancelled, or retries are exhausted.
func RunWindow(ctx context.Context, id int, name string, env *Env) {
	ctx, log := logger.With(ctx, zap.Int("window", id), zap.String("name", name))

	lang := detectLang(id, name, env)
	if lang == "" {
		log.Debug("no language server for window")
		return
	}
	ctx, log = logger.With(ctx, zap.String("lang", lang))
	log.Debug("matched language")

	bo := backoff{min: 100 * time.Millisecond, max: 5 * time.Second}
	for attempt := 0; attempt < maxRetries; attempt++ {
		started := time.Now()
		err := runWindowOnce(ctx, id, name, lang, env)
		switch {
		case errors.Is(err, errWindowClosed):
			log.Debug("window closed")
			return
		case ctx.Err() != nil:
			return
		}
		if time.Since(started) > sessionResetAfter {
			bo.reset()
			attempt = 0
		}
		delay := bo.next()
		log.Warn("session error, retrying",
			zap.Error(err), zap.Int("attempt", attempt+1), zap.Duration("in", delay))
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
	log.Warn("session failed after retries", zap.Int("attempts", maxRetries))
}

// detectLang returns the language ID for the given window, trying filename
// handlers first and falling back to the body's shebang line.  It returns ""
// when neither names a language with a configured server.
func detectLang(id int, name string, env *Env) string {
	if lang := detectLanguage(env.Handlers, name); lang != "" && env.Servers.Has(lang) {
		return lang
	}
	w, err := acme.Open(id, nil)
	if err != nil {
		return ""
	}
	body, err := w.ReadBody()
	w.CloseFiles()
	if err != nil {
		return ""
	}
	if lang := detectByShebang(firstLine(body)); env.Servers.Has(lang) {
		return lang
	}
	return ""
}

// firstLine returns the content of body up to (but not including) the first
// newline, or the whole body if there is no newline.
func firstLine(body []byte) string {
	if i := bytes.IndexByte(body, '\n'); i >= 0 {
		return string(body[:i])
	}
	return string(body)
}

// styleLayer is where a session writes its highlighting.  *layer.StyleLayer
// implements it.
type styleLayer interface {
	Apply(entries []layer.Entry) error
}

var _ styleLayer = (*layer.StyleLayer)(nil)

// window is the state of one highlight session.  It is owned by the
// goroutine running runWindowOnce.
type window struct {
	id       int
	uri      string
	win      *acme.Win
	layer    styleLayer
	client   *lsp.Client
	coord    *Coordinator
	sessions *Sessions
	text     *Text
	version  int32
}

// runWindowOnce performs one complete highlight session for a window:
//   - gets (or starts) the language server,
//   - opens an acme-styles compositor layer and the acme window,
//   - opens the document on the server and draws the initial tokens,
//   - watches the per-window edit log, sending the new text and redrawing
//     after edits, and redraws when the server asks for a refresh.
//
// It returns errWindowClosed on clean log EOF, ctx.Err() if the context is
// cancelled, or another error for failures the caller should retry.
func runWindowOnce(ctx context.Context, id int, name, lang string, env *Env) error {
	log := logger.L(ctx)

	client, err := env.Servers.Get(ctx, lang, name)
	if err != nil {
		return fmt.Errorf("language server: %w", err)
	}

	sl, err := layer.Open(id, layerName)
	if err != nil {
		return fmt.Errorf("open layer: %w", err)
	}
	log.Debug("allocated layer", zap.Int("layerID", sl.LayerID))
	defer sl.Delete()

	w, err := acme.Open(id, nil)
	if err != nil {
		return fmt.Errorf("open acme win: %w", err)
	}

	body, err := w.ReadBody()
	if err != nil {
		w.CloseFiles()
		return fmt.Errorf("read body: %w", err)
	}
	uri := FileURI(name)
	win := &window{
		id:       id,
		uri:      uri,
		win:      w,
		layer:    sl,
		client:   client,
		sessions: env.Sessions,
		text:     NewText(body),
		version:  1,
	}
	win.coord = NewCoordinator(Options{
		URI:     uri,
		Source:  client,
		Legend:  NewLegend(client.Legend(), env.Styles),
		Screens: env.Sessions,
		Window:  id,
	})
	env.Sessions.Put(id, win.text)
	defer env.Sessions.Delete(id)

	if err := client.DidOpen(ctx, uri, lang, win.version, string(body)); err != nil {
		w.CloseFiles()
		return fmt.Errorf("didOpen: %w", err)
	}
	defer func() {
		if err := client.DidClose(ctx, uri); err != nil {
			log.Debug("didClose", zap.Error(err))
		}
	}()

	if err := win.update(ctx); err != nil {
		w.CloseFiles()
		return fmt.Errorf("initial highlight: %w", err)
	}
	log.Debug("initial highlight ok")

	timer := time.NewTimer(env.Debounce)
	timer.Stop()
	pending := false

	// edits carries edit notifications (I/D events) from the scanner goroutine.
	// scanResult carries the exit reason: nil = clean EOF (window closed), else error.
	// goroutineExited is closed after the goroutine writes to scanResult.
	edits := make(chan struct{}, 32)
	scanResult := make(chan error, 1)
	goroutineExited := make(chan struct{})

	go func() {
		defer close(goroutineExited)
		for {
			e, err := w.ReadLog()
			if err != nil {
				scanResult <- err
				return
			}
			if e.Op == 'I' || e.Op == 'D' {
				select {
				case edits <- struct{}{}:
				default:
				}
			}
		}
	}()

	defer func() {
		w.CloseFiles()    // closes the log fid, unblocking ReadLog in the goroutine
		<-goroutineExited // wait for it to finish
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-edits:
			if !pending {
				timer.Reset(env.Debounce)
				pending = true
			}

		case err := <-scanResult:
			if err == nil {
				return errWindowClosed
			}
			return err

		case <-client.Done():
			return errServerLost

		case <-client.Refreshed():
			log.Debug("server requested refresh")
			if err := win.update(ctx); err != nil {
				return fmt.Errorf("refresh: %w", err)
			}

		case <-timer.C:
			pending = false
			if err := win.sync(ctx); err != nil {
				return fmt.Errorf("sync text: %w", err)
			}
			if err := win.update(ctx); err != nil {
				return fmt.Errorf("re-highlight: %w", err)
			}
		}
	}
}

// sync re-reads the body, publishes the new text to the session registry,
// and sends it to the server.
func (win *window) sync(ctx context.Context) error {
	body, err := win.win.ReadBody()
	if err != nil {
		return err
	}
	win.text = NewText(body)
	win.sessions.Put(win.id, win.text)
	win.version++
	return win.client.DidChange(ctx, win.uri, win.version, string(body))
}

// update fetches new tokens and redraws the whole layer if anything was
// invalidated.  A failed token request leaves the last highlighting in place
// and is not returned; only a lost server connection or a layer write failure
// is.
func (win *window) update(ctx context.Context) error {
	log := logger.L(ctx)

	var dirty []ScreenRange
	win.coord.ApplyEdit(func(rs []ScreenRange) { dirty = rs })
	if err := win.coord.DocumentDidChange(ctx); err != nil {
		if errors.Is(err, lsp.ErrClosed) {
			return err
		}
		log.Warn("semantic tokens update failed", zap.Error(err))
		return nil
	}
	if len(dirty) == 0 {
		log.Debug("no ranges invalidated")
		return nil
	}
	return win.redraw(ctx)
}

// redraw writes the highlights for the whole body to the layer.
func (win *window) redraw(ctx context.Context) error {
	log := logger.L(ctx)

	all := win.text.Extent()
	hs, err := win.coord.Highlights(ctx, all)
	if errors.Is(err, ErrCancelled) {
		hs, err = win.coord.Highlights(ctx, all)
	}
	switch {
	case errors.Is(err, ErrRangeResolution):
		log.Debug("highlight range no longer resolves", zap.Error(err))
		return nil
	case err != nil:
		return err
	}
	entries := layerEntries(hs)
	log.Debug("highlight entries computed", zap.Int("count", len(entries)))
	return win.layer.Apply(entries)
}
