//go:build !plan9

package main

import (
	"os"
	"syscall"
)

// shutdownSignals stop acme-semtok and shut its language servers down.
// SIGTERM covers service managers; SIGHUP covers the terminal going away.
var shutdownSignals = []os.Signal{os.Interrupt, syscall.SIGTERM, syscall.SIGHUP}
