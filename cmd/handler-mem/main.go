// Package main builds the mem subtype handler as a Go plugin
// (-buildmode=plugin), the loadable equivalent of tcmu-runner's
// dlopen'd handler_mem.so.
package main

import (
	"github.com/behrlich/tcmud/handler"
	"github.com/behrlich/tcmud/internal/interfaces"
)

// Handler is the symbol tcmud's registry looks up via plugin.Lookup.
var Handler interfaces.Handler = handler.NewMem()

func main() {}
