// Package server wires the attestation service together: storage, identity
// verification, the attestation ledger, the protocol services and the gRPC
// and HTTP transports, and runs them until a shutdown signal arrives.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/redis/go-redis/v9"

	"github.com/dmitrijs2005/docattest/internal/cryptox"
	"github.com/dmitrijs2005/docattest/internal/logging"
	"github.com/dmitrijs2005/docattest/internal/server/config"
	"github.com/dmitrijs2005/docattest/internal/server/contentstore"
	"github.com/dmitrijs2005/docattest/internal/server/httpapi"
	"github.com/dmitrijs2005/docattest/internal/server/identity"
	"github.com/dmitrijs2005/docattest/internal/server/ledger"
	"github.com/dmitrijs2005/docattest/internal/server/locks"
	"github.com/dmitrijs2005/docattest/internal/server/repositories/docstore"
	"github.com/dmitrijs2005/docattest/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/docattest/internal/server/services"

	gs "github.com/dmitrijs2005/docattest/internal/server/grpc"
)

const attestorIssuer = "docattest"

type App struct {
	config *config.Config
	logger logging.Logger

	db  *sql.DB
	rdb *redis.Client
	eth *ethclient.Client

	lifecycle *services.DocumentLifecycle
	collector *services.SignatureCollector
	finalizer *services.Finalizer
	verifier  identity.Verifier
	content   *contentstore.S3Store
}

func NewApp(ctx context.Context, c *config.Config) (app *App, err error) {
	logger, err := logging.New(c.LogFormat, os.Stdout)
	if err != nil {
		return nil, err
	}

	app = &App{config: c, logger: logger}
	defer func() {
		if err != nil {
			app.close(ctx)
		}
	}()

	app.db, err = sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	if err := app.db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, app.db); err != nil {
		return nil, fmt.Errorf("migrations error: %w", err)
	}
	store := docstore.New(app.db, rm)

	ref, err := cryptox.NewReferencer(c.ReferenceMode, c.ReferenceSecret)
	if err != nil {
		return nil, err
	}

	app.content, err = contentstore.NewS3Store(ctx, contentstore.Options{
		Region:       c.S3Region,
		AccessKey:    c.S3RootUser,
		SecretKey:    c.S3RootPassword,
		BaseEndpoint: c.S3BaseEndpoint,
		Bucket:       c.S3Bucket,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("content store error: %w", err)
	}

	worldID := identity.NewWorldIDVerifier(identity.WorldIDOptions{
		BaseURL: c.WorldIDBaseURL,
		AppID:   c.WorldIDAppID,
		Action:  c.WorldIDAction,
	}, nil, logger)
	app.verifier = identity.NewPolicyVerifier(worldID)

	attestations, err := app.newLedger(ctx)
	if err != nil {
		return nil, err
	}

	locker, err := app.newLocker()
	if err != nil {
		return nil, err
	}

	opts := services.Options{
		EnforceRecipients: c.EnforceRecipients,
		AutoFinalize:      c.AutoFinalize,
		VerifyTimeout:     c.VerifyTimeout,
		LedgerTimeout:     c.LedgerTimeout,
		LockTTL:           c.FinalizeLockTTL,
	}
	app.lifecycle = services.NewDocumentLifecycle(store, ref, opts, logger)
	app.finalizer = services.NewFinalizer(store, attestations, locker, opts, logger)
	app.collector = services.NewSignatureCollector(store, app.verifier, attestations, app.finalizer, opts, logger)

	return app, nil
}

func (app *App) newLedger(ctx context.Context) (*ledger.Ledger, error) {
	off, err := ledger.NewOffchainSigner(app.config.AttestorKey, attestorIssuer)
	if err != nil {
		return nil, err
	}

	app.eth, err = ethclient.DialContext(ctx, app.config.LedgerRPCURL)
	if err != nil {
		return nil, fmt.Errorf("ledger rpc error: %w", err)
	}
	anchor, err := ledger.NewEVMAnchor(app.eth, app.config.LedgerPrivateKey, app.config.LedgerChainID, app.logger)
	if err != nil {
		return nil, fmt.Errorf("ledger key error: %w", err)
	}
	app.logger.Info(ctx, "ledger configured", "attestor", anchor.Address().Hex(), "rpc", app.config.LedgerRPCURL)

	return ledger.New(off, anchor), nil
}

// newLocker uses Redis when configured and an in-process lock otherwise,
// which is only safe for a single instance.
func (app *App) newLocker() (locks.Locker, error) {
	if app.config.RedisURL == "" {
		app.logger.Warn(context.Background(), "redis not configured, finalization lock is process-local")
		return locks.NewLocalLocker(), nil
	}
	rdb, err := locks.Connect(app.config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("redis error: %w", err)
	}
	app.rdb = rdb
	return locks.NewRedisLocker(rdb), nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.lifecycle, app.collector, app.finalizer, app.verifier)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := httpapi.NewServer(app.config.EndpointAddrHTTP, app.logger, httpapi.Deps{
		Lifecycle: app.lifecycle,
		Collector: app.collector,
		Finalizer: app.finalizer,
		Verifier:  app.verifier,
		Content:   app.content,
	}, app.config.CORSOrigins)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	app.close(context.WithoutCancel(ctx))
	app.logger.Info(ctx, "App stopped")
}

func (app *App) close(ctx context.Context) {
	if app.eth != nil {
		app.eth.Close()
	}
	if app.rdb != nil {
		if err := app.rdb.Close(); err != nil {
			app.logger.Error(ctx, "redis close", "error", err)
		}
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error(ctx, "db close", "error", err)
		}
	}
	if s, ok := app.logger.(interface{ Sync() error }); ok {
		_ = s.Sync()
	}
}
