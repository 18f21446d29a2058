// acme-semtok: semantic highlighting for acme from language servers.
//
// Watches acme/log for window opens.  For each window whose file maps to a
// configured language server (filename handler or shebang), it:
//
//   - starts the server, or shares the one already running for the language,
//   - allocates a compositor layer in acme-styles,
//   - requests the document's semantic tokens and writes highlight entries,
//   - after body edits (debounced) sends the new text and applies the
//     server's token delta, redrawing only when something changed.
//
// Usage:
//
//	acme-semtok -config ~/lib/acme-semtok/config.yaml
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"sync"
	"time"

	"9fans.net/go/acme"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	semtok "github.com/cptaffe/acme-semtok"
	"github.com/cptaffe/acme-semtok/config"
	"github.com/cptaffe/acme-semtok/logger"
)

// shutdownTimeout bounds how long language servers get to exit cleanly.
const shutdownTimeout = 3 * time.Second

func main() {
	cfgPath := flag.String("config", "", "path to config.yaml (required)")
	verbose := flag.Bool("v", false, "verbose logging")
	trace := flag.Bool("trace", false, "log every language server message (implies -v)")
	flag.Parse()

	if *cfgPath == "" {
		log.Fatal("acme-semtok: -config flag is required")
	}

	var l *zap.Logger
	var err error
	if *verbose || *trace {
		l, err = zap.NewDevelopment()
	} else {
		l, err = zap.NewProduction()
	}
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	zap.ReplaceGlobals(l)
	defer l.Sync() //nolint:errcheck

	cfg, err := config.Load(afero.NewOsFs(), *cfgPath)
	if err != nil {
		l.Fatal("load config", zap.Error(err))
	}

	handlers, err := semtok.CompileHandlers(cfg)
	if err != nil {
		l.Fatal("compile filename handlers", zap.Error(err))
	}
	l.Info("config loaded",
		zap.Int("handlers", len(handlers)),
		zap.Int("servers", len(cfg.Servers)),
		zap.Duration("debounce", cfg.Debounce))

	env := &semtok.Env{
		Handlers: handlers,
		Servers:  semtok.NewServers(cfg.Servers, *trace),
		Sessions: semtok.NewSessions(),
		Styles:   semtok.DefaultStyles().Merge(cfg.Styles.Types, cfg.Styles.Modifiers),
		Debounce: cfg.Debounce,
	}

	ctx, stop := signal.NotifyContext(context.Background(), shutdownSignals...)
	defer stop()
	ctx = logger.NewContext(ctx, l)

	var wg sync.WaitGroup

	// active tracks which window IDs currently have a RunWindow goroutine.
	// Guarded by activeMu.
	var activeMu sync.Mutex
	active := make(map[int]struct{})

	start := func(id int, name string) {
		activeMu.Lock()
		if _, ok := active[id]; ok {
			activeMu.Unlock()
			return
		}
		active[id] = struct{}{}
		activeMu.Unlock()

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				activeMu.Lock()
				delete(active, id)
				activeMu.Unlock()
			}()
			semtok.RunWindow(ctx, id, name, env)
		}()
	}

	f, err := acme.Mount()
	if err != nil {
		l.Fatal("mount acme", zap.Error(err))
	}

	wins, err := f.Windows()
	if err != nil {
		l.Fatal("acme.Windows", zap.Error(err))
	}
	for _, w := range wins {
		start(w.ID, w.Name)
	}

	lr, err := f.Log()
	if err != nil {
		l.Fatal("acme.Log", zap.Error(err))
	}
	defer lr.Close()

	// Unblock the log read below on shutdown.
	go func() {
		<-ctx.Done()
		lr.Close()
	}()

	l.Info("connected to acme log")
	for {
		ev, err := lr.Read()
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			l.Fatal("acme log read", zap.Error(err))
		}
		switch ev.Op {
		case "new":
			start(ev.ID, ev.Name)
		}
	}

	wg.Wait()

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := env.Servers.CloseAll(logger.NewContext(sctx, l)); err != nil {
		l.Warn("shutting down language servers", zap.Error(err))
	}
}
