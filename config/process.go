package config

import "sync"

// processStore holds the process-wide configuration layer (spec.md
// §4.I level 2). Unlike the codec/query caches, this one IS meant to
// be a global — it is itself one rung of the resolver ladder, analogous
// to a process-level "set default connect options" call a host
// application makes once at startup.
var (
	processMu    sync.RWMutex
	processStore Options
	processSet   bool
)

// SetProcessConfig installs the process-wide configuration layer.
// Subsequent resolutions see it unless a higher-precedence level (an
// explicit argument) provides a compound parameter first.
func SetProcessConfig(o Options) {
	processMu.Lock()
	defer processMu.Unlock()
	processStore = o
	processSet = true
}

// ClearProcessConfig removes the process-wide layer (mainly for tests).
func ClearProcessConfig() {
	processMu.Lock()
	defer processMu.Unlock()
	processStore = Options{}
	processSet = false
}

func currentProcessConfig() (Options, bool) {
	processMu.RLock()
	defer processMu.RUnlock()
	return processStore, processSet
}
