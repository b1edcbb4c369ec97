// Package httpapi serves the attestation services as a JSON HTTP API.
package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dmitrijs2005/docattest/internal/logging"
	"github.com/dmitrijs2005/docattest/internal/server/identity"
	"github.com/dmitrijs2005/docattest/internal/server/models"
	"github.com/dmitrijs2005/docattest/internal/server/services"
)

type Lifecycle interface {
	Publish(ctx context.Context, req services.PublishRequest) (*models.Document, error)
	Get(ctx context.Context, id string) (*models.Document, error)
	Check(ctx context.Context, contentHash string) (services.CheckResult, error)
}

type Collector interface {
	Submit(ctx context.Context, req services.SubmitRequest) (*services.SignatureResult, error)
}

type Finalizer interface {
	Finalize(ctx context.Context, documentID string) (*services.FinalAttestationResult, error)
}

type ContentStore interface {
	Upload(ctx context.Context, r io.Reader, filename string) (string, error)
	PresignedURL(ctx context.Context, contentHash string) (string, error)
}

// Deps are the services behind the routes.
type Deps struct {
	Lifecycle Lifecycle
	Collector Collector
	Finalizer Finalizer
	Verifier  identity.Verifier
	Content   ContentStore
}

type Server struct {
	address string
	engine  *gin.Engine
	logger  logging.Logger
}

// NewServer builds the router. origins is a comma-separated CORS allow list.
func NewServer(address string, l logging.Logger, d Deps, origins string) *Server {
	log := l.With("module", "http_server")

	g := gin.New()
	g.Use(gin.Recovery(), requestID(), accessLog(log))
	attachRoutes(g, newHandlers(d, log), origins)

	return &Server{address: address, engine: g, logger: log}
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.address,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "HTTP shutdown", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
