// Package lsp is a minimal language-server client: it starts a server, keeps
// documents in sync with whole-text updates, and requests semantic tokens.
package lsp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/sourcegraph/jsonrpc2"
	protocol "github.com/tliron/glsp/protocol_3_16"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/cptaffe/acme-semtok/logger"
)

var (
	// ErrNoSemanticTokens is returned when the server does not offer
	// semantic tokens.
	ErrNoSemanticTokens = errors.New("server does not provide semantic tokens")

	// ErrClosed is returned by requests on a closed client.
	ErrClosed = errors.New("language server connection closed")
)

// Options configures a client.
type Options struct {
	Name    string // for logs
	Command string
	Args    []string
	Dir     string // working directory of the server process

	RootURI               protocol.DocumentUri
	InitializationOptions any

	// Trace logs every JSON-RPC message at debug level.
	Trace bool
}

// Client is a connection to one language server.  It is safe for concurrent
// use; the server process is shared by every document it serves.
type Client struct {
	name string
	log  *zap.Logger
	conn *jsonrpc2.Conn
	cmd  *exec.Cmd // nil when connected to an existing stream

	legend protocol.SemanticTokensLegend
	delta  bool

	mu      sync.Mutex
	refresh chan struct{}

	closeOnce sync.Once
	closeErr  error
}

// stdio joins a server process's stdout and stdin into one stream.
type stdio struct {
	io.ReadCloser
	io.WriteCloser
}

func (s stdio) Close() error {
	return multierr.Append(s.WriteCloser.Close(), s.ReadCloser.Close())
}

// Start launches the server described by opts and initializes it.
func Start(ctx context.Context, opts Options) (*Client, error) {
	log := logger.L(ctx).With(zap.String("server", opts.Name))

	cmd := exec.Command(opts.Command, opts.Args...)
	cmd.Dir = opts.Dir
	cmd.Stderr = zap.NewStdLog(log.Named("stderr")).Writer()
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", opts.Command, err)
	}
	log.Info("language server started", zap.String("command", opts.Command), zap.Int("pid", cmd.Process.Pid))

	return connect(ctx, stdio{stdout, stdin}, opts, cmd)
}

// NewClient initializes a server already connected through rwc.
func NewClient(ctx context.Context, rwc io.ReadWriteCloser, opts Options) (*Client, error) {
	return connect(ctx, rwc, opts, nil)
}

func connect(ctx context.Context, rwc io.ReadWriteCloser, opts Options, cmd *exec.Cmd) (*Client, error) {
	log := logger.L(ctx).With(zap.String("server", opts.Name))
	c := &Client{
		name:    opts.Name,
		log:     log,
		cmd:     cmd,
		refresh: make(chan struct{}),
	}

	connOpts := []jsonrpc2.ConnOpt{jsonrpc2.SetLogger(zap.NewStdLog(log.Named("jsonrpc2")))}
	if opts.Trace {
		connOpts = append(connOpts, jsonrpc2.LogMessages(zap.NewStdLog(log.Named("trace"))))
	}
	// The connection outlives ctx, which only bounds initialization.
	c.conn = jsonrpc2.NewConn(context.Background(),
		jsonrpc2.NewBufferedStream(rwc, jsonrpc2.VSCodeObjectCodec{}),
		jsonrpc2.AsyncHandler(jsonrpc2.HandlerWithError(c.handle)),
		connOpts...)

	if err := c.initialize(ctx, opts); err != nil {
		return nil, multierr.Append(fmt.Errorf("initialize %s: %w", opts.Name, err), c.Close(ctx))
	}
	return c, nil
}

type clientInfo struct {
	Name string `json:"name"`
}

type workspaceClientCapabilities struct {
	SemanticTokens *protocol.SemanticTokensWorkspaceClientCapabilities `json:"semanticTokens,omitempty"`
}

type clientCapabilities struct {
	TextDocument *protocol.TextDocumentClientCapabilities `json:"textDocument,omitempty"`
	Workspace    *workspaceClientCapabilities             `json:"workspace,omitempty"`
}

// initializeParams mirrors protocol.InitializeParams, whose anonymous
// struct fields cannot be filled in from outside the package.
type initializeParams struct {
	ProcessID             *protocol.Integer          `json:"processId"`
	ClientInfo            *clientInfo                `json:"clientInfo,omitempty"`
	RootURI               *protocol.DocumentUri      `json:"rootUri"`
	InitializationOptions any                        `json:"initializationOptions,omitempty"`
	Capabilities          clientCapabilities         `json:"capabilities"`
	WorkspaceFolders      []protocol.WorkspaceFolder `json:"workspaceFolders,omitempty"`
}

type semanticTokensProvider struct {
	Legend protocol.SemanticTokensLegend `json:"legend"`
	Full   json.RawMessage               `json:"full,omitempty"` // bool | SemanticDelta
}

type initializeResult struct {
	Capabilities struct {
		SemanticTokensProvider *semanticTokensProvider `json:"semanticTokensProvider,omitempty"`
	} `json:"capabilities"`
}

func (c *Client) initialize(ctx context.Context, opts Options) error {
	pid := protocol.Integer(os.Getpid())
	params := initializeParams{
		ProcessID:             &pid,
		ClientInfo:            &clientInfo{Name: "acme-semtok"},
		InitializationOptions: opts.InitializationOptions,
		Capabilities: clientCapabilities{
			TextDocument: &protocol.TextDocumentClientCapabilities{
				SemanticTokens: semanticTokensCapabilities(),
			},
			Workspace: &workspaceClientCapabilities{
				SemanticTokens: &protocol.SemanticTokensWorkspaceClientCapabilities{RefreshSupport: &protocol.True},
			},
		},
	}
	if opts.RootURI != "" {
		root := opts.RootURI
		params.RootURI = &root
		params.WorkspaceFolders = []protocol.WorkspaceFolder{{URI: root, Name: opts.Name}}
	}

	var res initializeResult
	if err := c.conn.Call(ctx, protocol.MethodInitialize, params, &res); err != nil {
		return err
	}
	p := res.Capabilities.SemanticTokensProvider
	if p == nil {
		return ErrNoSemanticTokens
	}
	c.legend = p.Legend
	c.delta = fullSupportsDelta(p.Full)
	c.log.Debug("server capabilities",
		zap.Int("tokenTypes", len(p.Legend.TokenTypes)),
		zap.Int("tokenModifiers", len(p.Legend.TokenModifiers)),
		zap.Bool("delta", c.delta))

	return c.conn.Notify(ctx, protocol.MethodInitialized, protocol.InitializedParams{})
}

func semanticTokensCapabilities() *protocol.SemanticTokensClientCapabilities {
	caps := &protocol.SemanticTokensClientCapabilities{
		TokenTypes:     standardTokenTypes,
		TokenModifiers: standardTokenModifiers,
		Formats:        []protocol.TokenFormat{protocol.TokenFormatRelative},
	}
	caps.Requests.Full = protocol.SemanticDelta{Delta: &protocol.True}
	return caps
}

// fullSupportsDelta reads the "full" server option, which is either a bool
// or {"delta": bool}.
func fullSupportsDelta(full json.RawMessage) bool {
	var d protocol.SemanticDelta
	if err := json.Unmarshal(full, &d); err != nil || d.Delta == nil {
		return false
	}
	return *d.Delta
}

var standardTokenTypes = []string{
	string(protocol.SemanticTokenTypeNamespace),
	string(protocol.SemanticTokenTypeType),
	string(protocol.SemanticTokenTypeClass),
	string(protocol.SemanticTokenTypeEnum),
	string(protocol.SemanticTokenTypeInterface),
	string(protocol.SemanticTokenTypeStruct),
	string(protocol.SemanticTokenTypeTypeParameter),
	string(protocol.SemanticTokenTypeParameter),
	string(protocol.SemanticTokenTypeVariable),
	string(protocol.SemanticTokenTypeProperty),
	string(protocol.SemanticTokenTypeEnumMember),
	string(protocol.SemanticTokenTypeEvent),
	string(protocol.SemanticTokenTypeFunction),
	string(protocol.SemanticTokenTypeMethod),
	string(protocol.SemanticTokenTypeMacro),
	string(protocol.SemanticTokenTypeKeyword),
	string(protocol.SemanticTokenTypeModifier),
	string(protocol.SemanticTokenTypeComment),
	string(protocol.SemanticTokenTypeString),
	string(protocol.SemanticTokenTypeNumber),
	string(protocol.SemanticTokenTypeRegexp),
	string(protocol.SemanticTokenTypeOperator),
}

var standardTokenModifiers = []string{
	string(protocol.SemanticTokenModifierDeclaration),
	string(protocol.SemanticTokenModifierDefinition),
	string(protocol.SemanticTokenModifierReadonly),
	string(protocol.SemanticTokenModifierStatic),
	string(protocol.SemanticTokenModifierDeprecated),
	string(protocol.SemanticTokenModifierAbstract),
	string(protocol.SemanticTokenModifierAsync),
	string(protocol.SemanticTokenModifierModification),
	string(protocol.SemanticTokenModifierDocumentation),
	string(protocol.SemanticTokenModifierDefaultLibrary),
}

// Legend returns the token legend the server declared at initialization.
func (c *Client) Legend() protocol.SemanticTokensLegend { return c.legend }

// SupportsDelta reports whether the server answers delta requests.
func (c *Client) SupportsDelta() bool { return c.delta }

// Done is closed when the connection to the server is lost.
func (c *Client) Done() <-chan struct{} { return c.conn.DisconnectNotify() }

// Refreshed returns a channel that is closed the next time the server asks
// the client to refresh all semantic tokens.  Call it again after each
// refresh to wait for the next one.
func (c *Client) Refreshed() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refresh
}

func (c *Client) broadcastRefresh() {
	c.mu.Lock()
	close(c.refresh)
	c.refresh = make(chan struct{})
	c.mu.Unlock()
}

// DidOpen announces a document and its full text.
func (c *Client) DidOpen(ctx context.Context, uri protocol.DocumentUri, languageID string, version int32, text string) error {
	return c.notify(ctx, protocol.MethodTextDocumentDidOpen, protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{
			URI:        uri,
			LanguageID: languageID,
			Version:    version,
			Text:       text,
		},
	})
}

// DidChange replaces the document's text.
func (c *Client) DidChange(ctx context.Context, uri protocol.DocumentUri, version int32, text string) error {
	return c.notify(ctx, protocol.MethodTextDocumentDidChange, protocol.DidChangeTextDocumentParams{
		TextDocument: protocol.VersionedTextDocumentIdentifier{
			TextDocumentIdentifier: protocol.TextDocumentIdentifier{URI: uri},
			Version:                version,
		},
		ContentChanges: []any{protocol.TextDocumentContentChangeEventWhole{Text: text}},
	})
}

// DidClose announces that the document is no longer open.
func (c *Client) DidClose(ctx context.Context, uri protocol.DocumentUri) error {
	return c.notify(ctx, protocol.MethodTextDocumentDidClose, protocol.DidCloseTextDocumentParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: uri},
	})
}

// SemanticTokensFull requests all tokens of a document.
func (c *Client) SemanticTokensFull(ctx context.Context, uri protocol.DocumentUri) (TokensResult, error) {
	return c.tokens(ctx, protocol.MethodTextDocumentSemanticTokensFull, protocol.SemanticTokensParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: uri},
	})
}

// SemanticTokensFullDelta requests the changes since previousResultID.  The
// server may answer with a delta or with full tokens.  A server that never
// advertised delta support gets a full request instead.
func (c *Client) SemanticTokensFullDelta(ctx context.Context, uri protocol.DocumentUri, previousResultID string) (TokensResult, error) {
	if !c.delta {
		return c.SemanticTokensFull(ctx, uri)
	}
	return c.tokens(ctx, protocol.MethodTextDocumentSemanticTokensFullDelta, protocol.SemanticTokensDeltaParams{
		TextDocument:     protocol.TextDocumentIdentifier{URI: uri},
		PreviousResultID: previousResultID,
	})
}

func (c *Client) tokens(ctx context.Context, method string, params any) (TokensResult, error) {
	var raw json.RawMessage
	if err := c.conn.Call(ctx, method, params, &raw); err != nil {
		return TokensResult{}, fmt.Errorf("%s: %w", method, c.connErr(err))
	}
	return decodeTokens(raw)
}

func (c *Client) notify(ctx context.Context, method string, params any) error {
	if err := c.conn.Notify(ctx, method, params); err != nil {
		return fmt.Errorf("%s: %w", method, c.connErr(err))
	}
	return nil
}

func (c *Client) connErr(err error) error {
	if errors.Is(err, jsonrpc2.ErrClosed) {
		return ErrClosed
	}
	return err
}

// Close asks the server to shut down and exit, closes the connection and
// waits for the process.  If ctx ends first the process is killed.
func (c *Client) Close(ctx context.Context) error {
	c.closeOnce.Do(func() {
		c.closeErr = c.close(ctx)
	})
	return c.closeErr
}

func (c *Client) close(ctx context.Context) error {
	var err error
	if cerr := c.conn.Call(ctx, protocol.MethodShutdown, nil, nil); cerr != nil && !errors.Is(cerr, jsonrpc2.ErrClosed) {
		err = multierr.Append(err, fmt.Errorf("shutdown: %w", cerr))
	}
	_ = c.conn.Notify(ctx, protocol.MethodExit, nil)
	if cerr := c.conn.Close(); cerr != nil && !errors.Is(cerr, jsonrpc2.ErrClosed) {
		err = multierr.Append(err, fmt.Errorf("close connection: %w", cerr))
	}
	if c.cmd == nil {
		return err
	}

	waited := make(chan error, 1)
	go func() { waited <- c.cmd.Wait() }()
	select {
	case werr := <-waited:
		if werr != nil {
			c.log.Debug("language server exited", zap.Error(werr))
		}
	case <-ctx.Done():
		err = multierr.Append(err, c.cmd.Process.Kill())
		<-waited
	}
	return err
}
