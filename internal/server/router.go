// Package server wires the rename service's HTTP surface.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/matsen/bibrename/internal/server/handler"
	mw "github.com/matsen/bibrename/internal/server/middleware"
	"github.com/matsen/bibrename/internal/server/response"
)

const shutdownTimeout = 30 * time.Second

// Dependencies holds the route handlers.
type Dependencies struct {
	HealthHandler http.HandlerFunc
	RenameHandler http.HandlerFunc
	DetectHandler http.HandlerFunc
	LookupHandler http.HandlerFunc
}

// NewDependencies builds every handler around one pipeline.
func NewDependencies(p handler.Pipeline) Dependencies {
	return Dependencies{
		HealthHandler: handler.NewHealthHandler(),
		RenameHandler: handler.NewRenameHandler(p),
		DetectHandler: handler.NewDetectHandler(p),
		LookupHandler: handler.NewLookupHandler(p),
	}
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(mw.Logger)
	r.Use(mw.Recovery)
	r.Use(mw.CORS)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotFound, response.CodeNotFound, "Not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusMethodNotAllowed, response.CodeMethodNotAllowed, "Method not allowed", nil)
	})

	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))
	r.Post("/api/v1/rename", orNotImplemented(deps.RenameHandler))
	r.Post("/api/v1/detect", orNotImplemented(deps.DetectHandler))
	r.Get("/api/v1/lookup/*", orNotImplemented(deps.LookupHandler))

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}

// Serve runs h on addr until ctx is done, then drains connections.
func Serve(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      h,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}
