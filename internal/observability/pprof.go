package observability

import (
	nethttp "net/http"
	"net/http/pprof"
)

// MountPprof registers the runtime profiling handlers under /debug/pprof/
// when enabled.
func MountPprof(mux *nethttp.ServeMux, cfg Config) {
	if mux == nil || !cfg.EnablePprofTrace {
		return
	}
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
}
