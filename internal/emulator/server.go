package emulator

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
)

// Server hosts the control-plane API on a single listener. A fatal
// simulation error shuts the server down and is returned from Serve so the
// process exits non-zero.
type Server struct {
	log *slog.Logger
	cfg Config

	handler *Handler
	fatalCh chan error

	httpSrv      *http.Server
	shutdownOnce sync.Once
}

func New(log *slog.Logger, cfg Config) (*Server, error) {
	if log == nil {
		return nil, errors.New("logger is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Server{
		log:     log,
		cfg:     cfg,
		fatalCh: make(chan error, 1),
	}
	handler, err := NewHandler(log, cfg, s.reportFatal)
	if err != nil {
		return nil, err
	}
	s.handler = handler
	return s, nil
}

// reportFatal keeps the first fatal error; later ones are dropped.
func (s *Server) reportFatal(err error) {
	select {
	case s.fatalCh <- err:
	default:
	}
}

func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	mux := http.NewServeMux()
	s.handler.Register(mux)
	s.httpSrv = &http.Server{Handler: allowAllCORS(mux)}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpSrv.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		s.shutdown()
		s.log.Info("server shutdown via context")
		return nil
	case err := <-s.fatalCh:
		s.shutdown()
		return err
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			s.log.Info("server closed")
			return nil
		}
		return err
	}
}

// Start runs Serve on a goroutine and reports its result on the returned
// channel, which closes when the server stops.
func (s *Server) Start(ctx context.Context, listener net.Listener) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if err := s.Serve(ctx, listener); err != nil {
			s.log.Error("server exited with error", "error", err)
			errCh <- err
		}
	}()
	return errCh
}

func (s *Server) shutdown() {
	s.shutdownOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if s.httpSrv != nil {
			_ = s.httpSrv.Shutdown(ctx)
		}
	})
}

// allowAllCORS stamps permissive CORS headers and answers preflights; the
// API is read cross-origin by the map frontend.
func allowAllCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
