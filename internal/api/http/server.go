package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"comanda/internal/api/http/handle"
	"comanda/internal/core"
	"comanda/pkg/logger"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Deps struct {
	Orders       handle.Orders
	Calls        handle.Calls
	Reservations handle.Reservations
	Archiver     handle.Archiver
	Chain        handle.Verifier
}

type Server struct {
	srv   *http.Server
	mylog logger.Logger
}

func NewServer(port int, deps Deps, mylog logger.Logger) *Server {
	s := &Server{mylog: mylog}
	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.router(deps),
		ReadHeaderTimeout: core.WaitTime * time.Second,
	}
	return s
}

func (s *Server) router(deps Deps) chi.Router {
	orderH := handle.NewOrderHandler(deps.Orders, s.mylog)
	callH := handle.NewCallHandler(deps.Calls, s.mylog)
	resH := handle.NewReservationHandler(deps.Reservations, s.mylog)
	tableH := handle.NewTableHandler(deps.Archiver, s.mylog)
	auditH := handle.NewAuditHandler(deps.Chain, s.mylog)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.withLogging)

	r.Route("/api", func(r chi.Router) {
		r.Route("/orders", func(r chi.Router) {
			r.Post("/", orderH.Create)
			r.Get("/", orderH.ListActive)
			r.Patch("/{id}", orderH.Update)
			r.Post("/{id}/items/{index}/advance", orderH.AdvanceItem)
			r.Post("/{id}/delivering", orderH.MarkDelivering)
		})
		r.Route("/waiter-calls", func(r chi.Router) {
			r.Post("/", callH.Create)
			r.Get("/", callH.ListPending)
			r.Patch("/{id}/attend", callH.Attend)
		})
		r.Route("/reservations", func(r chi.Router) {
			r.Post("/", resH.Book)
			r.Get("/", resH.ListBooked)
			r.Patch("/{id}", resH.Resolve)
		})
		r.Post("/tables/{number}/liberate", tableH.Liberate)
		r.Get("/audit/verify", auditH.Verify)
	})
	return r
}

// Run starts listening and returns when the server stops or ctx is done.
func (s *Server) Run(ctx context.Context) error {
	mylog := s.mylog.Action("server_started")
	mylog.Info("HTTP server is running", "addr", s.srv.Addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		} else {
			errCh <- nil
		}
	}()

	select {
	case <-ctx.Done():
		return s.Stop(context.Background())
	case err := <-errCh:
		return err
	}
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	mylog := s.mylog.Action("graceful_shutdown_started")
	mylog.Info("Shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(ctx, core.WaitTime*time.Second)
	defer cancel()

	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		s.mylog.Action("graceful_shutdown_failed").Error("Failed to shut down HTTP server gracefully", err)
		return fmt.Errorf("http server shutdown: %w", err)
	}

	s.mylog.Action("graceful_shutdown_completed").Info("HTTP server shut down gracefully")
	return nil
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.mylog.Action("http_request").Debug("Request handled",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}
