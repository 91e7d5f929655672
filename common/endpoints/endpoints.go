// Package endpoints serves the admin http surface: health, metrics and
// any extra handlers the binary registers.
package endpoints

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sort"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/twitter/jobgate/common/stats"
)

type Addr string

func NewTwitterServer(addr Addr, stats stats.StatsReceiver, handlers map[string]http.Handler) *TwitterServer {
	return &TwitterServer{
		Addr:     string(addr),
		Stats:    stats,
		Handlers: handlers,
	}
}

type TwitterServer struct {
	Addr     string
	Stats    stats.StatsReceiver
	Handlers map[string]http.Handler
}

// Mux builds the handler tree: /health, /admin/metrics.json, the extra handlers,
// and a help page listing them.
func (s *TwitterServer) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	paths := []string{"/health", "/admin/metrics.json"}
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/admin/metrics.json", s.statsHandler)
	for path, handler := range s.Handlers {
		mux.Handle(path, handler)
		paths = append(paths, path)
	}
	sort.Strings(paths)
	help := fmt.Sprintf("Common paths: %s", strings.Join(paths, ", "))
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, help, http.StatusNotImplemented)
	})
	return mux
}

// Serve blocks serving on Addr until ctx is done, then shuts the server down.
func (s *TwitterServer) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}
	return s.serve(ctx, ln)
}

func (s *TwitterServer) serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{Handler: s.Mux()}
	errCh := make(chan error, 1)
	go func() {
		log.Infof("Serving http & stats on %s", ln.Addr())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Errorf("http server shutdown: %v", err)
		}
		return nil
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	fmt.Fprintf(w, "ok")
}

func (s *TwitterServer) statsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	pretty := r.URL.Query().Get("pretty") == "true"
	if _, err := w.Write(s.Stats.Render(pretty)); err != nil {
		log.Errorf("writing stats response: %v", err)
	}
}
