package server

import (
	"context"
	"errors"
	"log"
	"net/http"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// Server wraps the gateway HTTP server. Cleartext HTTP/2 keeps the SSE and
// websocket watch streams multiplexable behind plain-HTTP ingress.
type Server struct {
	inner *http.Server
}

func New(addr string, handler http.Handler) *Server {
	return &Server{
		inner: &http.Server{
			Addr:    addr,
			Handler: h2c.NewHandler(handler, &http2.Server{}),
		},
	}
}

func (s *Server) Start() error {
	log.Printf("firedesk api listening on %s", s.inner.Addr)
	err := s.inner.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.inner.Shutdown(ctx)
}
