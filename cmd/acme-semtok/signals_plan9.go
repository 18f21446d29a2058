//go:build plan9

package main

import "os"

// shutdownSignals stop acme-semtok and shut its language servers down.
var shutdownSignals = []os.Signal{os.Interrupt}
