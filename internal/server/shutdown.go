package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// httpServer is the running server and its listener.
type httpServer struct {
	server   *http.Server
	listener net.Listener
}

func (s *Server) running() *httpServer {
	s.httpServerMu.RLock()
	defer s.httpServerMu.RUnlock()
	return s.httpServer
}

// Shutdown drains in-flight requests and stops the server. It is a no-op
// before the server has started.
func (s *Server) Shutdown(ctx context.Context) error {
	hs := s.running()
	if hs == nil {
		return nil
	}
	return hs.server.Shutdown(ctx)
}

// Addr returns the listening address, or "" before the server has started.
func (s *Server) Addr() string {
	hs := s.running()
	if hs == nil {
		return ""
	}
	return hs.listener.Addr().String()
}

// ListenAndServeWithShutdown serves until ctx is done, SIGINT or SIGTERM
// arrives, or Shutdown is called, then drains in-flight requests.
// Returns nil on a clean shutdown.
func (s *Server) ListenAndServeWithShutdown(ctx context.Context) error {
	// Create listener first so we know the actual address (important for port 0)
	listener, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	hs := &httpServer{
		server: &http.Server{
			Handler:           s.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		},
		listener: listener,
	}

	s.httpServerMu.Lock()
	s.httpServer = hs
	s.httpServerMu.Unlock()

	// Channel for shutdown signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	// Channel to signal server has stopped
	serverDone := make(chan error, 1)

	go func() {
		if err := hs.server.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
			serverDone <- err
			return
		}
		serverDone <- nil
	}()

	s.log.Infow("server started", "addr", listener.Addr().String())

	// Signal that server is ready
	close(s.ready)

	// Wait for shutdown signal or programmatic shutdown
	select {
	case sig := <-shutdown:
		s.log.Infow("received signal, initiating shutdown", "signal", sig.String())
	case <-ctx.Done():
		s.log.Infow("context done, initiating shutdown")
	case err := <-serverDone:
		// Server stopped on its own (error or shutdown called)
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	timeout := s.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := hs.server.Shutdown(shutdownCtx); err != nil {
		s.log.Errorw("shutdown error", "error", err)
		return err
	}

	s.log.Infow("server shutdown complete")

	// Wait for Serve to return
	<-serverDone

	return nil
}
