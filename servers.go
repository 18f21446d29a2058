package semtok

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"sort"
	"sync"

	protocol "github.com/tliron/glsp/protocol_3_16"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/cptaffe/acme-semtok/config"
	"github.com/cptaffe/acme-semtok/logger"
	"github.com/cptaffe/acme-semtok/lsp"
)

// Servers starts language servers on first use and shares each one between
// all windows of its language.  A server whose connection dropped is started
// again on the next Get.
type Servers struct {
	cfg   map[string]config.Server
	trace bool

	// start is lsp.Start; replaced in tests.
	start func(context.Context, lsp.Options) (*lsp.Client, error)

	mu      sync.Mutex
	clients map[string]*lsp.Client
}

// NewServers returns a pool for the servers in cfg.  trace enables JSON-RPC
// message logging.
func NewServers(cfg map[string]config.Server, trace bool) *Servers {
	return &Servers{
		cfg:     cfg,
		trace:   trace,
		start:   lsp.Start,
		clients: make(map[string]*lsp.Client),
	}
}

// Has reports whether a server is configured for languageID.
func (s *Servers) Has(languageID string) bool {
	_, ok := s.cfg[languageID]
	return ok
}

// Get returns the running client for languageID, starting it if necessary.
// path is the file being opened; it provides the workspace root when the
// server's config has none.
func (s *Servers) Get(ctx context.Context, languageID, path string) (*lsp.Client, error) {
	sc, ok := s.cfg[languageID]
	if !ok {
		return nil, fmt.Errorf("no language server configured for %q", languageID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.clients[languageID]; ok {
		select {
		case <-c.Done():
			logger.L(ctx).Info("language server connection lost, restarting", zap.String("lang", languageID))
			delete(s.clients, languageID)
		default:
			return c, nil
		}
	}

	root := sc.Root
	if root == "" {
		root = filepath.Dir(path)
	}
	opts := lsp.Options{
		Name:    languageID,
		Command: sc.Command,
		Args:    sc.Args,
		Dir:     root,
		RootURI: FileURI(root),
		Trace:   s.trace,
	}
	if len(sc.InitializationOptions) > 0 {
		opts.InitializationOptions = sc.InitializationOptions
	}
	c, err := s.start(ctx, opts)
	if err != nil {
		return nil, err
	}
	s.clients[languageID] = c
	return c, nil
}

// CloseAll shuts down every running server.
func (s *Servers) CloseAll(ctx context.Context) error {
	s.mu.Lock()
	ids := make([]string, 0, len(s.clients))
	for id := range s.clients {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	clients := s.clients
	s.clients = make(map[string]*lsp.Client)
	s.mu.Unlock()

	var err error
	for _, id := range ids {
		if cerr := clients[id].Close(ctx); cerr != nil {
			err = multierr.Append(err, fmt.Errorf("close %s server: %w", id, cerr))
		}
	}
	return err
}

// FileURI returns the file:// URI of an absolute path.
func FileURI(path string) protocol.DocumentUri {
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(path)}
	return u.String()
}
