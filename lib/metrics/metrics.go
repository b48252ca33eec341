// Package metrics exports the prometheus metrics of the process over http.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/enfabrica/sdrand/lib/goroutine"
	"github.com/enfabrica/sdrand/lib/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var metricStartTime = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "sdrand",
	Subsystem: "runtime",
	Name:      "start_time",
	Help:      "When this instance started exporting metrics",
})

func AddHandler(mux *http.ServeMux, endpoint string) {
	metricStartTime.SetToCurrentTime()
	mux.Handle(endpoint, promhttp.Handler())
}

// Server serves the metrics until stopped.
type Server struct {
	server   *http.Server
	listener net.Listener
	done     goroutine.ErrorChannel
}

// StartServer starts serving the metrics on hostPort, like ":9090", at endpoint, like "/metrics".
func StartServer(hostPort, endpoint string, log logger.Logger) (*Server, error) {
	listener, err := net.Listen("tcp", hostPort)
	if err != nil {
		return nil, fmt.Errorf("could not export metrics on %s: %w", hostPort, err)
	}

	mux := http.NewServeMux()
	AddHandler(mux, endpoint)
	server := &http.Server{Handler: mux}
	log.Infof("exporting metrics on http://%s%s", listener.Addr(), endpoint)
	return &Server{
		server:   server,
		listener: listener,
		done: goroutine.Run(func() error {
			return server.Serve(listener)
		}),
	}, nil
}

func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Stop shuts the server down, waiting up to timeout for pending requests.
func (s *Server) Stop(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	err := s.server.Shutdown(ctx)
	if werr := s.done.Wait(timeout); werr != nil && !errors.Is(werr, http.ErrServerClosed) {
		return werr
	}
	return err
}
