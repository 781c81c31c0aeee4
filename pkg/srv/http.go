package srv

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/sandevgo/deskbot/pkg/log"
)

// httpService runs an http.Server as a Service.
type httpService struct {
	server *http.Server
}

func NewHTTPService(addr string, handler http.Handler) Service {
	return &httpService{
		server: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

func (s *httpService) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return err
	}
	log.FromCtx(ctx).Info().Str("addr", ln.Addr().String()).Msg("http listener started")

	if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *httpService) Shutdown(ctx context.Context) error {
	// ctx is already cancelled during shutdown
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}
