package cmdutil

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "net/http/pprof" // anonymous import to get the pprof handler registered

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/gorilla/mux"
	"github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter returns the HTTP routes shared by the commands: /metrics for reg
// and /debug/pprof.
func NewRouter(reg *prometheus.Registry) *mux.Router {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	r.PathPrefix("/debug/pprof").Handler(http.DefaultServeMux)
	return r
}

// AddHTTPServer adds an actor to group serving NewRouter(reg) on lis.
func AddHTTPServer(group *run.Group, l log.Logger, lis net.Listener, reg *prometheus.Registry) {
	srv := http.Server{Handler: NewRouter(reg)}

	group.Add(func() error {
		level.Debug(l).Log("msg", "listening for http traffic", "addr", lis.Addr())
		err := srv.Serve(lis)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}, func(_ error) {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			_ = srv.Close()
		}
	})
}

// AddSignalHandler adds an actor to group which exits on SIGINT or SIGTERM.
func AddSignalHandler(group *run.Group, l log.Logger) {
	ctx, cancel := context.WithCancel(context.Background())

	group.Add(func() error {
		ch := make(chan os.Signal, 2)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(ch)

		select {
		case <-ch:
			level.Info(l).Log("msg", "received shutdown signal")
		case <-ctx.Done():
		}
		return nil
	}, func(_ error) {
		cancel()
	})
}
