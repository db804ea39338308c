// Package registry loads subtype handler plugins from a directory and
// resolves a device's cfgstring to the handler that should service it — the
// Go equivalent of tcmu-runner's open_handlers/find_handler pair, built on
// Go's own plugin package instead of dlopen/dlsym.
package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"plugin"
	"strings"
	"sync"

	"github.com/behrlich/tcmud/internal/constants"
	"github.com/behrlich/tcmud/internal/interfaces"
)

// Registry holds every handler successfully loaded by LoadAll, looked up by
// subtype.
type Registry struct {
	mu       sync.RWMutex
	handlers []interfaces.Handler
}

func New() *Registry {
	return &Registry{}
}

// LoadAll scans dir for files prefixed with "handler_", opens each as a Go
// plugin, and looks up its exported Handler symbol. A single plugin's
// failure to open or satisfy the Handler interface is logged and skipped —
// it never aborts the scan, matching is_handler's best-effort enumeration.
func (r *Registry) LoadAll(dir string, log interfaces.Logger) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("registry: read handler dir %s: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasPrefix(e.Name(), constants.HandlerFilePrefix) {
			names = append(names, e.Name())
		}
	}

	loaded := 0
	for _, name := range names {
		h, err := r.loadOne(filepath.Join(dir, name))
		if err != nil {
			if log != nil {
				log.Warnf("registry: skipping plugin %s: %v", name, err)
			}
			continue
		}
		r.mu.Lock()
		r.handlers = append(r.handlers, h)
		r.mu.Unlock()
		if log != nil {
			log.Infof("registry: loaded handler %s subtype=%s", h.Name(), h.Subtype())
		}
		loaded++
	}
	return loaded, nil
}

func (r *Registry) loadOne(path string) (interfaces.Handler, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	sym, err := p.Lookup(constants.HandlerSymbolName)
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", constants.HandlerSymbolName, err)
	}
	h, ok := sym.(interfaces.Handler)
	if ok {
		return h, nil
	}
	// plugin symbols are frequently looked up as *T rather than T; accept a
	// pointer-to-interface-value layout as well.
	if hp, ok := sym.(*interfaces.Handler); ok {
		return *hp, nil
	}
	return nil, fmt.Errorf("symbol %s does not implement interfaces.Handler", constants.HandlerSymbolName)
}

// Register adds a handler directly, bypassing plugin loading — used by
// tests and by daemons that link a handler in statically.
func (r *Registry) Register(h interfaces.Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers = append(r.handlers, h)
}

// Find resolves cfgstring's subtype (the text before its first '/') to a
// loaded handler. Matching is exact and case-sensitive, mirroring
// find_handler's strtok/strcmp pair.
func (r *Registry) Find(cfgString string) (interfaces.Handler, bool) {
	subtype := cfgString
	if i := strings.IndexByte(cfgString, '/'); i >= 0 {
		subtype = cfgString[:i]
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, h := range r.handlers {
		if h.Subtype() == subtype {
			return h, true
		}
	}
	return nil, false
}

// Len reports how many handlers are currently registered.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers)
}
